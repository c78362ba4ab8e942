package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/DanielPopoola/chargecore/internal/domain"
	"github.com/DanielPopoola/chargecore/internal/infrastructure/gateway/transport"
)

const intentsPath = "/v1/payment_intents"

type cardData struct {
	Number   string `json:"number"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
	CVC      string `json:"cvc"`
}

type billingDetails struct {
	Name    string   `json:"name,omitempty"`
	Address *address `json:"address,omitempty"`
}

type address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

type paymentMethodData struct {
	Type           string         `json:"type"`
	Card           cardData       `json:"card"`
	BillingDetails billingDetails `json:"billing_details"`
}

type intentRequest struct {
	Amount            int64             `json:"amount"`
	Currency          string            `json:"currency"`
	CaptureMethod     string            `json:"capture_method"`
	Confirm           bool              `json:"confirm"`
	Description       string            `json:"description,omitempty"`
	PaymentMethodData paymentMethodData `json:"payment_method_data"`
	Metadata          map[string]string `json:"metadata"`
}

type paymentIntent struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	Amount         int64  `json:"amount"`
	AmountReceived int64  `json:"amount_received"`
	NextAction     *struct {
		RedirectToURL *struct {
			URL string `json:"url"`
		} `json:"redirect_to_url"`
	} `json:"next_action"`
	LastPaymentError *apiError `json:"last_payment_error"`
}

type apiError struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	DeclineCode string `json:"decline_code"`
	Message     string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

type searchResult struct {
	Data []paymentIntent `json:"data"`
}

type refundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

var statuses = map[string]domain.ChargeStatus{
	"requires_confirmation":   domain.StatusAuthSubmitted,
	"requires_action":         domain.StatusAuth3DSRequired,
	"requires_capture":        domain.StatusAuthSuccess,
	"requires_payment_method": domain.StatusAuthRejected,
	"processing":              domain.StatusCaptureSubmitted,
	"succeeded":               domain.StatusCaptured,
	"canceled":                domain.StatusSystemCancelled,
}

// Adapter talks to a Stripe-style payment intents API with a bearer secret key.
// The intent id is the transaction id.
type Adapter struct {
	client *transport.Client
}

func NewAdapter(client *transport.Client) *Adapter {
	return &Adapter{client: client}
}

func (a *Adapter) Provider() domain.Provider {
	return domain.ProviderStripe
}

func (a *Adapter) Authorise(ctx context.Context, req domain.AuthoriseRequest) domain.AuthoriseOutcome {
	body := intentRequest{
		Amount:        req.Amount,
		Currency:      req.Currency,
		CaptureMethod: "manual",
		Confirm:       true,
		Description:   req.Description,
		PaymentMethodData: paymentMethodData{
			Type: "card",
			Card: cardData{
				Number:   req.Card.CardNumber,
				ExpMonth: req.Card.ExpiryMonth,
				ExpYear:  req.Card.ExpiryYear,
				CVC:      req.Card.CVC,
			},
			BillingDetails: billingDetails{Name: req.Card.CardholderName},
		},
		Metadata: map[string]string{"charge_id": req.ChargeID},
	}
	if addr := req.Card.Address; addr != nil {
		body.PaymentMethodData.BillingDetails.Address = &address{
			Line1:      addr.Line1,
			Line2:      addr.Line2,
			City:       addr.City,
			PostalCode: addr.Postcode,
			Country:    addr.Country,
		}
	}

	resp, gwErr := a.send(ctx, "authorise", http.MethodPost, intentsPath, req.Account, body, "authorise-"+req.ChargeID)
	if gwErr != nil {
		return domain.AuthoriseFailed(gwErr)
	}
	return a.authoriseOutcome(resp)
}

func (a *Adapter) Authorise3DSContinuation(ctx context.Context, req domain.ThreeDSContinuationRequest) domain.AuthoriseOutcome {
	resp, gwErr := a.send(ctx, "authorise_3ds", http.MethodPost, intentsPath+"/"+req.TransactionID+"/confirm", req.Account, struct{}{}, "")
	if gwErr != nil {
		return domain.AuthoriseFailed(gwErr)
	}
	return a.authoriseOutcome(resp)
}

func (a *Adapter) authoriseOutcome(resp *transport.Response) domain.AuthoriseOutcome {
	if resp.StatusCode == http.StatusPaymentRequired {
		var e errorResponse
		if err := json.Unmarshal(resp.Body, &e); err != nil {
			return domain.AuthoriseFailed(domain.NewProtocolError(a.Provider(), "error decoding card error", err))
		}
		return domain.AuthoriseOutcome{Kind: domain.AuthoriseRejected, Reason: declineReason(&e.Error)}
	}

	var intent paymentIntent
	if gwErr := a.decode(resp, &intent); gwErr != nil {
		return domain.AuthoriseFailed(gwErr)
	}

	switch intent.Status {
	case "requires_capture":
		return domain.AuthoriseOutcome{Kind: domain.AuthoriseAuthorised, TransactionID: intent.ID}
	case "requires_action":
		threeDS := &domain.ThreeDSData{}
		if intent.NextAction != nil && intent.NextAction.RedirectToURL != nil {
			threeDS.RedirectURL = intent.NextAction.RedirectToURL.URL
		}
		return domain.AuthoriseOutcome{Kind: domain.AuthoriseRequires3DS, TransactionID: intent.ID, ThreeDS: threeDS}
	case "requires_payment_method", "canceled":
		return domain.AuthoriseOutcome{Kind: domain.AuthoriseRejected, TransactionID: intent.ID, Reason: declineReason(intent.LastPaymentError)}
	case "processing", "requires_confirmation":
		return domain.AuthoriseOutcome{
			Kind:          domain.AuthoriseError,
			TransactionID: intent.ID,
			Err:           domain.NewConnectionError(a.Provider(), "intent still "+intent.Status, nil),
		}
	}
	return domain.AuthoriseFailed(domain.NewProtocolError(a.Provider(), fmt.Sprintf("unexpected intent status %q", intent.Status), nil))
}

func (a *Adapter) Capture(ctx context.Context, req domain.CaptureRequest) domain.OperationOutcome {
	body := map[string]int64{"amount_to_capture": req.Amount}
	resp, gwErr := a.send(ctx, "capture", http.MethodPost, intentsPath+"/"+req.TransactionID+"/capture", req.Account, body, "capture-"+req.ChargeID)
	if gwErr != nil {
		return domain.OperationFailed(gwErr)
	}
	return a.intentOperation(resp, "capture", "succeeded", "processing")
}

func (a *Adapter) Cancel(ctx context.Context, req domain.CancelRequest) domain.OperationOutcome {
	resp, gwErr := a.send(ctx, "cancel", http.MethodPost, intentsPath+"/"+req.TransactionID+"/cancel", req.Account, struct{}{}, "cancel-"+req.ChargeID)
	if gwErr != nil {
		return domain.OperationFailed(gwErr)
	}
	return a.intentOperation(resp, "cancel", "canceled")
}

func (a *Adapter) intentOperation(resp *transport.Response, operation string, accepted ...string) domain.OperationOutcome {
	if rejected, ok := a.clientError(resp); ok {
		return rejected
	}

	var intent paymentIntent
	if gwErr := a.decode(resp, &intent); gwErr != nil {
		return domain.OperationFailed(gwErr)
	}
	for _, status := range accepted {
		if intent.Status == status {
			return domain.OperationOutcome{Kind: domain.OperationSubmitted, Reference: intent.ID}
		}
	}
	return domain.OperationFailed(domain.NewProtocolError(a.Provider(),
		fmt.Sprintf("unexpected intent status %q after %s", intent.Status, operation), nil))
}

func (a *Adapter) Refund(ctx context.Context, req domain.RefundRequest) domain.OperationOutcome {
	body := map[string]any{
		"payment_intent": req.TransactionID,
		"amount":         req.Amount,
		"metadata":       map[string]string{"refund_id": req.RefundID, "reference": req.Reference},
	}
	resp, gwErr := a.send(ctx, "refund", http.MethodPost, "/v1/refunds", req.Account, body, "refund-"+req.RefundID)
	if gwErr != nil {
		return domain.OperationFailed(gwErr)
	}
	if rejected, ok := a.clientError(resp); ok {
		return rejected
	}

	var refund refundResponse
	if gwErr := a.decode(resp, &refund); gwErr != nil {
		return domain.OperationFailed(gwErr)
	}
	switch refund.Status {
	case "pending", "succeeded", "requires_action":
		return domain.OperationOutcome{Kind: domain.OperationSubmitted, Reference: refund.ID}
	case "failed", "canceled":
		return domain.OperationOutcome{Kind: domain.OperationRejected, Reference: refund.ID, Reason: "refund " + refund.Status}
	}
	return domain.OperationFailed(domain.NewProtocolError(a.Provider(), fmt.Sprintf("unexpected refund status %q", refund.Status), nil))
}

// Query fetches the intent. Without a transaction id the intent is searched for by the
// charge id stored in its metadata at authorisation.
func (a *Adapter) Query(ctx context.Context, req domain.QueryRequest) domain.QueryResult {
	if req.TransactionID == "" {
		return a.search(ctx, req)
	}

	resp, gwErr := a.send(ctx, "query", http.MethodGet, intentsPath+"/"+req.TransactionID, req.Account, nil, "")
	if gwErr != nil {
		return domain.QueryResult{Err: gwErr}
	}
	if resp.StatusCode == http.StatusNotFound {
		return domain.QueryResult{ProviderStatus: "not_found", Raw: string(resp.Body)}
	}

	var intent paymentIntent
	if gwErr := a.decode(resp, &intent); gwErr != nil {
		return domain.QueryResult{Err: gwErr, Raw: string(resp.Body)}
	}
	return queryResult(&intent, string(resp.Body))
}

func (a *Adapter) search(ctx context.Context, req domain.QueryRequest) domain.QueryResult {
	query := url.Values{"query": {fmt.Sprintf("metadata['charge_id']:'%s'", req.ChargeID)}}
	resp, gwErr := a.send(ctx, "search", http.MethodGet, intentsPath+"/search?"+query.Encode(), req.Account, nil, "")
	if gwErr != nil {
		return domain.QueryResult{Err: gwErr}
	}

	var result searchResult
	if gwErr := a.decode(resp, &result); gwErr != nil {
		return domain.QueryResult{Err: gwErr, Raw: string(resp.Body)}
	}
	if len(result.Data) == 0 {
		return domain.QueryResult{ProviderStatus: "not_found", Raw: string(resp.Body)}
	}
	if len(result.Data) > 1 {
		return domain.QueryResult{
			Err: domain.NewProtocolError(a.Provider(),
				fmt.Sprintf("%d intents carry charge id %s", len(result.Data), req.ChargeID), nil),
			Raw: string(resp.Body),
		}
	}
	return queryResult(&result.Data[0], string(resp.Body))
}

func queryResult(intent *paymentIntent, raw string) domain.QueryResult {
	amount := intent.Amount
	if intent.Status == "succeeded" && intent.AmountReceived > 0 {
		amount = intent.AmountReceived
	}
	return domain.QueryResult{
		Status:         statuses[intent.Status],
		TransactionID:  intent.ID,
		ProviderStatus: intent.Status,
		Amount:         &amount,
		Raw:            raw,
	}
}

// clientError turns a 4xx answer to a follow-up operation into a rejection.
func (a *Adapter) clientError(resp *transport.Response) (domain.OperationOutcome, bool) {
	if resp.StatusCode < http.StatusBadRequest {
		return domain.OperationOutcome{}, false
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return domain.OperationFailed(domain.NewProtocolError(a.Provider(), fmt.Sprintf("gateway returned status %d", resp.StatusCode), nil)), true
	}
	var e errorResponse
	if err := json.Unmarshal(resp.Body, &e); err != nil {
		return domain.OperationFailed(domain.NewProtocolError(a.Provider(), "error decoding error response", err)), true
	}
	return domain.OperationOutcome{Kind: domain.OperationRejected, Reason: declineReason(&e.Error)}, true
}

func (a *Adapter) send(ctx context.Context, operation, method, path string, account *domain.GatewayAccount, body any, idempotencyKey string) (*transport.Response, *domain.GatewayError) {
	var payload []byte
	contentType := ""
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, domain.NewProtocolError(a.Provider(), "error marshalling json", err)
		}
		contentType = "application/json"
	}

	req, err := a.client.NewRequest(ctx, method, path, contentType, payload)
	if err != nil {
		return nil, domain.NewProtocolError(a.Provider(), "error creating request", err)
	}
	req.Header.Set("Authorization", "Bearer "+account.Credential(domain.CredentialAPIKey))
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	return a.client.Do(ctx, operation, req)
}

func (a *Adapter) decode(resp *transport.Response, v any) *domain.GatewayError {
	if resp.StatusCode != http.StatusOK {
		return domain.NewProtocolError(a.Provider(), fmt.Sprintf("gateway returned status %d", resp.StatusCode), nil)
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return domain.NewProtocolError(a.Provider(), "error decoding json response", err)
	}
	return nil
}

func declineReason(e *apiError) string {
	if e == nil {
		return "declined"
	}
	if e.DeclineCode != "" {
		return e.DeclineCode
	}
	if e.Code != "" {
		return e.Code
	}
	return e.Message
}
