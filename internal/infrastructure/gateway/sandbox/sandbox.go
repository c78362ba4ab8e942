package sandbox

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/DanielPopoola/chargecore/internal/application"
	"github.com/DanielPopoola/chargecore/internal/domain"
	"github.com/google/uuid"
)

// Magic card numbers with fixed behaviour. Any other valid card authorises.
const (
	CardDeclined       = "4000000000000002"
	CardGatewayError   = "4000000000000119"
	CardRequires3DS    = "4000000000003220"
	CardCaptureRefused = "4000000000000341"

	PaResponseApproved = "approved"
)

var ErrBadCredentials = errors.New("sandbox notification credentials do not match")

type transaction struct {
	status        domain.ChargeStatus
	providerState string
	amount        int64
	refuseCapture bool
}

// Adapter is an in-process gateway for development and integration testing.
type Adapter struct {
	mu           sync.Mutex
	transactions map[string]*transaction
}

func NewAdapter() *Adapter {
	return &Adapter{transactions: make(map[string]*transaction)}
}

func (a *Adapter) Provider() domain.Provider {
	return domain.ProviderSandbox
}

func (a *Adapter) GenerateTransactionID() string {
	return "sbx_" + uuid.NewString()
}

func (a *Adapter) Authorise(_ context.Context, req domain.AuthoriseRequest) domain.AuthoriseOutcome {
	txID := req.TransactionID
	if txID == "" {
		txID = a.GenerateTransactionID()
	}

	switch req.Card.CardNumber {
	case CardDeclined:
		a.record(txID, domain.StatusAuthRejected, "REJECTED", req.Amount, false)
		return domain.AuthoriseOutcome{Kind: domain.AuthoriseRejected, TransactionID: txID, Reason: "card declined"}
	case CardGatewayError:
		a.record(txID, domain.StatusAuthError, "ERROR", req.Amount, false)
		outcome := domain.AuthoriseFailed(domain.NewProtocolError(a.Provider(), "sandbox error card", nil))
		outcome.TransactionID = txID
		return outcome
	case CardRequires3DS:
		a.record(txID, domain.StatusAuth3DSRequired, "AUTH_3DS_REQUIRED", req.Amount, false)
		return domain.AuthoriseOutcome{
			Kind:          domain.AuthoriseRequires3DS,
			TransactionID: txID,
			ThreeDS: &domain.ThreeDSData{
				IssuerURL: "https://sandbox.invalid/3ds",
				PaRequest: "sandbox-pareq-" + txID,
			},
		}
	}

	a.record(txID, domain.StatusAuthSuccess, "AUTHORISED", req.Amount, req.Card.CardNumber == CardCaptureRefused)
	return domain.AuthoriseOutcome{Kind: domain.AuthoriseAuthorised, TransactionID: txID}
}

func (a *Adapter) Authorise3DSContinuation(_ context.Context, req domain.ThreeDSContinuationRequest) domain.AuthoriseOutcome {
	a.mu.Lock()
	defer a.mu.Unlock()

	tx, ok := a.transactions[req.TransactionID]
	if !ok || tx.status != domain.StatusAuth3DSRequired {
		return domain.AuthoriseFailed(domain.NewProtocolError(a.Provider(), "no 3ds challenge pending for "+req.TransactionID, nil))
	}
	if req.PaResponse != PaResponseApproved {
		tx.status, tx.providerState = domain.StatusAuthRejected, "REJECTED"
		return domain.AuthoriseOutcome{Kind: domain.AuthoriseRejected, TransactionID: req.TransactionID, Reason: "3ds failed"}
	}
	tx.status, tx.providerState = domain.StatusAuthSuccess, "AUTHORISED"
	return domain.AuthoriseOutcome{Kind: domain.AuthoriseAuthorised, TransactionID: req.TransactionID}
}

func (a *Adapter) Capture(_ context.Context, req domain.CaptureRequest) domain.OperationOutcome {
	a.mu.Lock()
	defer a.mu.Unlock()

	tx, ok := a.transactions[req.TransactionID]
	switch {
	case !ok:
		return domain.OperationOutcome{Kind: domain.OperationRejected, Reason: "unknown transaction"}
	case tx.refuseCapture:
		return domain.OperationOutcome{Kind: domain.OperationRejected, Reason: "capture refused"}
	case tx.status == domain.StatusCaptured:
		return domain.OperationOutcome{Kind: domain.OperationSubmitted, Reference: req.TransactionID}
	case tx.status != domain.StatusAuthSuccess:
		return domain.OperationOutcome{Kind: domain.OperationRejected, Reason: "transaction is " + tx.providerState}
	}
	tx.status, tx.providerState, tx.amount = domain.StatusCaptured, "CAPTURED", req.Amount
	return domain.OperationOutcome{Kind: domain.OperationSubmitted, Reference: req.TransactionID}
}

func (a *Adapter) Refund(_ context.Context, req domain.RefundRequest) domain.OperationOutcome {
	a.mu.Lock()
	defer a.mu.Unlock()

	tx, ok := a.transactions[req.TransactionID]
	if !ok || tx.status != domain.StatusCaptured {
		return domain.OperationOutcome{Kind: domain.OperationRejected, Reason: "transaction not captured"}
	}
	return domain.OperationOutcome{Kind: domain.OperationSubmitted, Reference: "sbx_rf_" + req.RefundID}
}

func (a *Adapter) Cancel(_ context.Context, req domain.CancelRequest) domain.OperationOutcome {
	a.mu.Lock()
	defer a.mu.Unlock()

	tx, ok := a.transactions[req.TransactionID]
	if !ok || tx.status != domain.StatusAuthSuccess {
		return domain.OperationOutcome{Kind: domain.OperationRejected, Reason: "nothing to cancel"}
	}
	tx.status, tx.providerState = domain.StatusSystemCancelled, "CANCELLED"
	return domain.OperationOutcome{Kind: domain.OperationSubmitted, Reference: req.TransactionID}
}

func (a *Adapter) Query(_ context.Context, req domain.QueryRequest) domain.QueryResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	tx, ok := a.transactions[req.TransactionID]
	if !ok {
		return domain.QueryResult{ProviderStatus: "UNKNOWN"}
	}
	amount := tx.amount
	return domain.QueryResult{Status: tx.status, ProviderStatus: tx.providerState, Amount: &amount}
}

func (a *Adapter) record(txID string, status domain.ChargeStatus, providerState string, amount int64, refuseCapture bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.transactions[txID] = &transaction{status: status, providerState: providerState, amount: amount, refuseCapture: refuseCapture}
}

type notification struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	Reference     string `json:"reference,omitempty"`
}

var notificationStatuses = map[string]domain.ChargeStatus{
	"AUTHORISED": domain.StatusAuthSuccess,
	"REJECTED":   domain.StatusAuthRejected,
	"ERROR":      domain.StatusAuthError,
	"CAPTURED":   domain.StatusCaptured,
}

// NotificationParser reads a JSON array of sandbox notifications sent with HTTP basic
// auth using the account's username and password.
type NotificationParser struct{}

func NewNotificationParser() *NotificationParser {
	return &NotificationParser{}
}

func (p *NotificationParser) Provider() domain.Provider {
	return domain.ProviderSandbox
}

func (p *NotificationParser) Parse(req application.NotificationRequest) ([]domain.Notification, error) {
	var items []notification
	if err := json.Unmarshal(req.Body, &items); err != nil {
		return nil, fmt.Errorf("error decoding sandbox notifications: %w", err)
	}

	out := make([]domain.Notification, 0, len(items))
	for i, item := range items {
		if item.TransactionID == "" || item.Status == "" {
			return nil, fmt.Errorf("sandbox notification %d is missing transactionId or status", i)
		}
		out = append(out, domain.Notification{
			TransactionID:  item.TransactionID,
			ProviderStatus: item.Status,
			Reference:      item.Reference,
		})
	}
	return out, nil
}

func (p *NotificationParser) Authenticate(req application.NotificationRequest, account *domain.GatewayAccount) error {
	username, password, ok := (&http.Request{Header: req.Header}).BasicAuth()
	if !ok {
		return ErrBadCredentials
	}
	wantUser := account.Credential(domain.CredentialUsername)
	wantPass := account.Credential(domain.CredentialPassword)
	if wantUser == "" || wantPass == "" {
		return ErrBadCredentials
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(wantUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(wantPass)) == 1
	if !userOK || !passOK {
		return ErrBadCredentials
	}
	return nil
}

func (p *NotificationParser) MapStatus(providerStatus string) (domain.ChargeStatus, bool) {
	s, ok := notificationStatuses[providerStatus]
	return s, ok
}

func (p *NotificationParser) Acknowledgement() (string, []byte) {
	return "text/plain", []byte("ok")
}
