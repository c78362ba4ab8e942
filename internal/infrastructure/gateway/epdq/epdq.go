package epdq

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/DanielPopoola/chargecore/internal/domain"
	"github.com/DanielPopoola/chargecore/internal/infrastructure/gateway/transport"
	"github.com/google/uuid"
)

const (
	orderPath       = "/orderdirect.asp"
	maintenancePath = "/maintenancedirect.asp"
	queryPath       = "/querydirect.asp"

	operationAuthorise = "RES"
	operationCapture   = "SAS"
	operationRefund    = "RFD"
	operationCancel    = "DES"
)

type ncResponse struct {
	XMLName     xml.Name `xml:"ncresponse"`
	OrderID     string   `xml:"orderID,attr"`
	PayID       string   `xml:"PAYID,attr"`
	PayIDSub    string   `xml:"PAYIDSUB,attr"`
	NCStatus    string   `xml:"NCSTATUS,attr"`
	NCError     string   `xml:"NCERROR,attr"`
	NCErrorPlus string   `xml:"NCERRORPLUS,attr"`
	Status      string   `xml:"STATUS,attr"`
	Amount      string   `xml:"amount,attr"`
	HTMLAnswer  string   `xml:"HTML_ANSWER"`
}

// Statuses that leave the outcome of an operation open.
var pendingStatuses = map[string]bool{
	"50": true,
	"51": true,
	"52": true,
	"55": true,
	"62": true,
	"82": true,
	"92": true,
}

var statuses = map[string]domain.ChargeStatus{
	"5":  domain.StatusAuthSuccess,
	"46": domain.StatusAuth3DSRequired,
	"51": domain.StatusAuthSubmitted,
	"2":  domain.StatusAuthRejected,
	"93": domain.StatusAuthRejected,
	"91": domain.StatusCaptureSubmitted,
	"9":  domain.StatusCaptured,
	"8":  domain.StatusCaptured,
	"81": domain.StatusCaptured,
	"6":  domain.StatusSystemCancelled,
}

func mapStatus(status string) (domain.ChargeStatus, bool) {
	s, ok := statuses[status]
	return s, ok
}

// Adapter talks to ePDQ DirectLink with SHA-IN signed form posts.
type Adapter struct {
	client *transport.Client
}

func NewAdapter(client *transport.Client) *Adapter {
	return &Adapter{client: client}
}

func (a *Adapter) Provider() domain.Provider {
	return domain.ProviderEPDQ
}

// GenerateTransactionID returns the ORDERID sent with the authorisation.
func (a *Adapter) GenerateTransactionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:30]
}

func (a *Adapter) Authorise(ctx context.Context, req domain.AuthoriseRequest) domain.AuthoriseOutcome {
	orderID := req.TransactionID
	if orderID == "" {
		orderID = a.GenerateTransactionID()
	}

	params := credentials(req.Account)
	params.Set("ORDERID", orderID)
	params.Set("AMOUNT", strconv.FormatInt(req.Amount, 10))
	params.Set("CURRENCY", req.Currency)
	params.Set("CARDNO", req.Card.CardNumber)
	params.Set("ED", fmt.Sprintf("%02d%02d", req.Card.ExpiryMonth, req.Card.ExpiryYear%100))
	params.Set("CVC", req.Card.CVC)
	params.Set("CN", req.Card.CardholderName)
	params.Set("COM", req.Description)
	params.Set("OPERATION", operationAuthorise)
	params.Set("REMOTE_ADDR", req.PayerIP)
	if addr := req.Card.Address; addr != nil {
		params.Set("OWNERADDRESS", addr.Line1)
		params.Set("OWNERZIP", addr.Postcode)
		params.Set("OWNERTOWN", addr.City)
		params.Set("OWNERCTY", addr.Country)
	}
	if req.Account.RequiresThreeDS {
		params.Set("FLAG3D", "Y")
		params.Set("WIN3DS", "MAINW")
		params.Set("HTTP_ACCEPT", req.AcceptHeader)
		params.Set("HTTP_USER_AGENT", req.UserAgent)
	}

	resp, gwErr := a.post(ctx, "authorise", orderPath, req.Account, params)
	if gwErr != nil {
		return domain.AuthoriseFailed(gwErr)
	}
	return a.authoriseOutcome(orderID, resp)
}

// Authorise3DSContinuation asks DirectLink for the result of the challenge; ePDQ completes
// the authorisation itself once the payer returns from the issuer.
func (a *Adapter) Authorise3DSContinuation(ctx context.Context, req domain.ThreeDSContinuationRequest) domain.AuthoriseOutcome {
	params := credentials(req.Account)
	params.Set("ORDERID", req.TransactionID)

	resp, gwErr := a.post(ctx, "authorise_3ds", queryPath, req.Account, params)
	if gwErr != nil {
		return domain.AuthoriseFailed(gwErr)
	}
	outcome := a.authoriseOutcome(req.TransactionID, resp)
	if outcome.Kind == domain.AuthoriseRequires3DS {
		return domain.AuthoriseFailed(domain.NewConnectionError(a.Provider(), "3ds challenge not completed yet", nil))
	}
	return outcome
}

func (a *Adapter) authoriseOutcome(orderID string, resp *ncResponse) domain.AuthoriseOutcome {
	switch resp.Status {
	case "5":
		return domain.AuthoriseOutcome{Kind: domain.AuthoriseAuthorised, TransactionID: orderID}
	case "46":
		html, err := base64.StdEncoding.DecodeString(strings.TrimSpace(resp.HTMLAnswer))
		if err != nil {
			return domain.AuthoriseFailed(domain.NewProtocolError(a.Provider(), "error decoding HTML_ANSWER", err))
		}
		return domain.AuthoriseOutcome{
			Kind:          domain.AuthoriseRequires3DS,
			TransactionID: orderID,
			ThreeDS:       &domain.ThreeDSData{HTMLOut: string(html)},
		}
	case "2", "93":
		return domain.AuthoriseOutcome{Kind: domain.AuthoriseRejected, TransactionID: orderID, Reason: resp.NCErrorPlus}
	}
	if pendingStatuses[resp.Status] {
		return domain.AuthoriseFailed(domain.NewConnectionError(a.Provider(), "authorisation pending with status "+resp.Status, nil))
	}
	return domain.AuthoriseFailed(domain.NewProtocolError(a.Provider(),
		fmt.Sprintf("status %q NCERROR %s: %s", resp.Status, resp.NCError, resp.NCErrorPlus), nil))
}

func (a *Adapter) Capture(ctx context.Context, req domain.CaptureRequest) domain.OperationOutcome {
	params := credentials(req.Account)
	params.Set("ORDERID", req.TransactionID)
	params.Set("AMOUNT", strconv.FormatInt(req.Amount, 10))
	params.Set("OPERATION", operationCapture)
	return a.maintain(ctx, "capture", req.Account, params, "91", "9")
}

func (a *Adapter) Refund(ctx context.Context, req domain.RefundRequest) domain.OperationOutcome {
	params := credentials(req.Account)
	params.Set("ORDERID", req.TransactionID)
	params.Set("AMOUNT", strconv.FormatInt(req.Amount, 10))
	params.Set("OPERATION", operationRefund)
	return a.maintain(ctx, "refund", req.Account, params, "81", "8")
}

func (a *Adapter) Cancel(ctx context.Context, req domain.CancelRequest) domain.OperationOutcome {
	params := credentials(req.Account)
	params.Set("ORDERID", req.TransactionID)
	params.Set("OPERATION", operationCancel)
	return a.maintain(ctx, "cancel", req.Account, params, "61", "6")
}

func (a *Adapter) maintain(ctx context.Context, operation string, account *domain.GatewayAccount, params url.Values, accepted ...string) domain.OperationOutcome {
	resp, gwErr := a.post(ctx, operation, maintenancePath, account, params)
	if gwErr != nil {
		return domain.OperationFailed(gwErr)
	}

	for _, status := range accepted {
		if resp.Status == status {
			ref := resp.PayID
			if resp.PayIDSub != "" {
				ref += "/" + resp.PayIDSub
			}
			return domain.OperationOutcome{Kind: domain.OperationSubmitted, Reference: ref}
		}
	}
	if pendingStatuses[resp.Status] {
		return domain.OperationFailed(domain.NewConnectionError(a.Provider(), operation+" pending with status "+resp.Status, nil))
	}
	if resp.NCError != "" && resp.NCError != "0" {
		return domain.OperationOutcome{Kind: domain.OperationRejected, Reason: resp.NCErrorPlus}
	}
	return domain.OperationFailed(domain.NewProtocolError(a.Provider(),
		fmt.Sprintf("unexpected %s status %q", operation, resp.Status), nil))
}

func (a *Adapter) Query(ctx context.Context, req domain.QueryRequest) domain.QueryResult {
	params := credentials(req.Account)
	params.Set("ORDERID", req.TransactionID)

	resp, gwErr := a.post(ctx, "query", queryPath, req.Account, params)
	if gwErr != nil {
		return domain.QueryResult{Err: gwErr}
	}

	result := domain.QueryResult{ProviderStatus: resp.Status}
	if mapped, ok := mapStatus(resp.Status); ok {
		result.Status = mapped
	}
	if resp.Amount != "" {
		if f, err := strconv.ParseFloat(resp.Amount, 64); err == nil {
			v := int64(math.Round(f * 100))
			result.Amount = &v
		}
	}
	return result
}

func credentials(account *domain.GatewayAccount) url.Values {
	params := url.Values{}
	params.Set("PSPID", account.Credential(domain.CredentialMerchantID))
	params.Set("USERID", account.Credential(domain.CredentialUsername))
	params.Set("PSWD", account.Credential(domain.CredentialPassword))
	return params
}

func (a *Adapter) post(ctx context.Context, operation, path string, account *domain.GatewayAccount, params url.Values) (*ncResponse, *domain.GatewayError) {
	params.Set(signatureParam, Sign(params, account.Credential(domain.CredentialSHAIn)))

	req, err := a.client.NewRequest(ctx, http.MethodPost, path, "application/x-www-form-urlencoded", []byte(params.Encode()))
	if err != nil {
		return nil, domain.NewProtocolError(a.Provider(), "error creating request", err)
	}

	resp, gwErr := a.client.Do(ctx, operation, req)
	if gwErr != nil {
		return nil, gwErr
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewProtocolError(a.Provider(), fmt.Sprintf("gateway returned status %d", resp.StatusCode), nil)
	}

	var nc ncResponse
	if err := xml.Unmarshal(resp.Body, &nc); err != nil {
		return nil, domain.NewProtocolError(a.Provider(), "error decoding ncresponse", err)
	}
	return &nc, nil
}
