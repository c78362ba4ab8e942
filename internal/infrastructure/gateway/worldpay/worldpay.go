package worldpay

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"

	"github.com/DanielPopoola/chargecore/internal/domain"
	"github.com/DanielPopoola/chargecore/internal/infrastructure/gateway/transport"
	"github.com/google/uuid"
)

const (
	orderPath  = "/jsp/merchant/xml/paymentService.jsp"
	cookieName = "machine"
)

// Adapter talks to Worldpay's XML order API.
type Adapter struct {
	client *transport.Client
}

func NewAdapter(client *transport.Client) *Adapter {
	return &Adapter{client: client}
}

func (a *Adapter) Provider() domain.Provider {
	return domain.ProviderWorldpay
}

// GenerateTransactionID returns the order code; Worldpay expects the merchant to choose it.
func (a *Adapter) GenerateTransactionID() string {
	return uuid.NewString()
}

type orderData struct {
	MerchantCode string
	OrderCode    string
	Description  string
	Currency     string
	Amount       int64
	Card         domain.CardDetails
	PayerIP      string
	AcceptHeader string
	UserAgent    string
	PaResponse   string
	Reference    string
}

func (a *Adapter) Authorise(ctx context.Context, req domain.AuthoriseRequest) domain.AuthoriseOutcome {
	orderCode := req.TransactionID
	if orderCode == "" {
		orderCode = a.GenerateTransactionID()
	}

	body, err := render("authorise", orderData{
		MerchantCode: req.Account.Credential(domain.CredentialMerchantID),
		OrderCode:    orderCode,
		Description:  req.Description,
		Currency:     req.Currency,
		Amount:       req.Amount,
		Card:         req.Card,
		PayerIP:      req.PayerIP,
		AcceptHeader: req.AcceptHeader,
		UserAgent:    req.UserAgent,
	})
	if err != nil {
		return domain.AuthoriseFailed(domain.NewProtocolError(a.Provider(), "error rendering order", err))
	}

	resp, gwErr := a.send(ctx, "authorise", req.Account, body, "")
	if gwErr != nil {
		return domain.AuthoriseFailed(gwErr)
	}
	return a.authoriseOutcome(orderCode, resp)
}

func (a *Adapter) Authorise3DSContinuation(ctx context.Context, req domain.ThreeDSContinuationRequest) domain.AuthoriseOutcome {
	body, err := render("3ds", orderData{
		MerchantCode: req.Account.Credential(domain.CredentialMerchantID),
		OrderCode:    req.TransactionID,
		PaResponse:   req.PaResponse,
	})
	if err != nil {
		return domain.AuthoriseFailed(domain.NewProtocolError(a.Provider(), "error rendering 3ds order", err))
	}

	resp, gwErr := a.send(ctx, "authorise_3ds", req.Account, body, req.ThreeDS.MachineCookie)
	if gwErr != nil {
		return domain.AuthoriseFailed(gwErr)
	}
	return a.authoriseOutcome(req.TransactionID, resp)
}

func (a *Adapter) authoriseOutcome(orderCode string, resp *transport.Response) domain.AuthoriseOutcome {
	doc, gwErr := a.decode(resp)
	if gwErr != nil {
		return domain.AuthoriseFailed(gwErr)
	}
	if doc.Reply.Error != nil {
		return domain.AuthoriseFailed(a.replyError(doc.Reply.Error))
	}

	status := doc.Reply.OrderStatus
	if status == nil {
		return domain.AuthoriseFailed(domain.NewProtocolError(a.Provider(), "reply carries no orderStatus", nil))
	}
	if status.Error != nil {
		return domain.AuthoriseFailed(a.replyError(status.Error))
	}

	if status.RequestInfo != nil && status.RequestInfo.Request3DSecure != nil {
		return domain.AuthoriseOutcome{
			Kind:          domain.AuthoriseRequires3DS,
			TransactionID: orderCode,
			ThreeDS: &domain.ThreeDSData{
				IssuerURL:     status.RequestInfo.Request3DSecure.IssuerURL,
				PaRequest:     status.RequestInfo.Request3DSecure.PaRequest,
				MachineCookie: machineCookie(resp.Header),
			},
		}
	}

	if status.Payment == nil {
		return domain.AuthoriseFailed(domain.NewProtocolError(a.Provider(), "orderStatus carries no payment", nil))
	}

	switch status.Payment.LastEvent {
	case "AUTHORISED":
		return domain.AuthoriseOutcome{Kind: domain.AuthoriseAuthorised, TransactionID: orderCode}
	case "REFUSED":
		reason := "REFUSED"
		if status.Payment.ReturnCode != nil && status.Payment.ReturnCode.Description != "" {
			reason = status.Payment.ReturnCode.Description
		}
		return domain.AuthoriseOutcome{Kind: domain.AuthoriseRejected, TransactionID: orderCode, Reason: reason}
	}
	return domain.AuthoriseFailed(domain.NewProtocolError(a.Provider(),
		fmt.Sprintf("unexpected lastEvent %q", status.Payment.LastEvent), nil))
}

func (a *Adapter) Capture(ctx context.Context, req domain.CaptureRequest) domain.OperationOutcome {
	return a.modify(ctx, "capture", req.Account, orderData{
		MerchantCode: req.Account.Credential(domain.CredentialMerchantID),
		OrderCode:    req.TransactionID,
		Currency:     req.Currency,
		Amount:       req.Amount,
	}, func(o *ok) *orderRef { return o.CaptureReceived })
}

func (a *Adapter) Refund(ctx context.Context, req domain.RefundRequest) domain.OperationOutcome {
	outcome := a.modify(ctx, "refund", req.Account, orderData{
		MerchantCode: req.Account.Credential(domain.CredentialMerchantID),
		OrderCode:    req.TransactionID,
		Currency:     req.Currency,
		Amount:       req.Amount,
		Reference:    req.RefundID,
	}, func(o *ok) *orderRef { return o.RefundReceived })
	if outcome.Kind == domain.OperationSubmitted {
		outcome.Reference = req.RefundID
	}
	return outcome
}

func (a *Adapter) Cancel(ctx context.Context, req domain.CancelRequest) domain.OperationOutcome {
	return a.modify(ctx, "cancel", req.Account, orderData{
		MerchantCode: req.Account.Credential(domain.CredentialMerchantID),
		OrderCode:    req.TransactionID,
	}, func(o *ok) *orderRef { return o.CancelReceived })
}

// modify sends an order modification. Worldpay answers either <ok> with a receipt
// or <error>, which means it refused the modification.
func (a *Adapter) modify(ctx context.Context, operation string, account *domain.GatewayAccount, data orderData, receipt func(*ok) *orderRef) domain.OperationOutcome {
	body, err := render(operation, data)
	if err != nil {
		return domain.OperationFailed(domain.NewProtocolError(a.Provider(), "error rendering "+operation, err))
	}

	resp, gwErr := a.send(ctx, operation, account, body, "")
	if gwErr != nil {
		return domain.OperationFailed(gwErr)
	}
	doc, gwErr := a.decode(resp)
	if gwErr != nil {
		return domain.OperationFailed(gwErr)
	}

	switch {
	case doc.Reply.Error != nil:
		return domain.OperationOutcome{
			Kind:   domain.OperationRejected,
			Reason: strings.TrimSpace(doc.Reply.Error.Message),
		}
	case doc.Reply.OK != nil && receipt(doc.Reply.OK) != nil:
		return domain.OperationOutcome{Kind: domain.OperationSubmitted, Reference: receipt(doc.Reply.OK).OrderCode}
	}
	return domain.OperationFailed(domain.NewProtocolError(a.Provider(), operation+" reply carries no receipt", nil))
}

func (a *Adapter) Query(ctx context.Context, req domain.QueryRequest) domain.QueryResult {
	body, err := render("inquiry", orderData{
		MerchantCode: req.Account.Credential(domain.CredentialMerchantID),
		OrderCode:    req.TransactionID,
	})
	if err != nil {
		return domain.QueryResult{Err: domain.NewProtocolError(a.Provider(), "error rendering inquiry", err)}
	}

	resp, gwErr := a.send(ctx, "query", req.Account, body, "")
	if gwErr != nil {
		return domain.QueryResult{Err: gwErr}
	}
	doc, gwErr := a.decode(resp)
	if gwErr != nil {
		return domain.QueryResult{Err: gwErr, Raw: string(resp.Body)}
	}

	status := doc.Reply.OrderStatus
	switch {
	case doc.Reply.Error != nil:
		return domain.QueryResult{ProviderStatus: "ERROR " + doc.Reply.Error.Code, Raw: string(resp.Body)}
	case status == nil || status.Payment == nil:
		return domain.QueryResult{Raw: string(resp.Body)}
	}

	result := domain.QueryResult{ProviderStatus: status.Payment.LastEvent, Raw: string(resp.Body)}
	if mapped, ok := mapStatus(status.Payment.LastEvent); ok {
		result.Status = mapped
	}
	if status.Payment.Amount != nil {
		v := status.Payment.Amount.Value
		result.Amount = &v
	}
	return result
}

func (a *Adapter) send(ctx context.Context, operation string, account *domain.GatewayAccount, body []byte, cookie string) (*transport.Response, *domain.GatewayError) {
	req, err := a.client.NewRequest(ctx, http.MethodPost, orderPath, "application/xml", body)
	if err != nil {
		return nil, domain.NewProtocolError(a.Provider(), "error creating request", err)
	}
	req.SetBasicAuth(account.Credential(domain.CredentialUsername), account.Credential(domain.CredentialPassword))
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: cookie})
	}
	return a.client.Do(ctx, operation, req)
}

func (a *Adapter) decode(resp *transport.Response) (*paymentService, *domain.GatewayError) {
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewProtocolError(a.Provider(), fmt.Sprintf("gateway returned status %d", resp.StatusCode), nil)
	}
	var doc paymentService
	if err := xml.Unmarshal(resp.Body, &doc); err != nil {
		return nil, domain.NewProtocolError(a.Provider(), "error decoding reply", err)
	}
	if doc.Reply == nil {
		return nil, domain.NewProtocolError(a.Provider(), "response carries no reply", nil)
	}
	return &doc, nil
}

func (a *Adapter) replyError(e *replyError) *domain.GatewayError {
	return domain.NewProtocolError(a.Provider(),
		fmt.Sprintf("error code %s: %s", e.Code, strings.TrimSpace(e.Message)), nil)
}

func machineCookie(header http.Header) string {
	for _, c := range (&http.Response{Header: header}).Cookies() {
		if c.Name == cookieName {
			return c.Value
		}
	}
	return ""
}
