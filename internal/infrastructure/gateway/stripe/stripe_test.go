package stripe_test

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/DanielPopoola/chargecore/internal/application"
	"github.com/DanielPopoola/chargecore/internal/domain"
	"github.com/DanielPopoola/chargecore/internal/infrastructure/gateway/stripe"
	"github.com/DanielPopoola/chargecore/internal/infrastructure/gateway/transport"
	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseURL = "http://stripe.test"

var account = &domain.GatewayAccount{
	ID:       3,
	Provider: domain.ProviderStripe,
	Credentials: map[string]string{
		domain.CredentialAPIKey:     "sk_test_123",
		domain.CredentialWebhookKey: "whsec_abc",
	},
}

func newAdapter() *stripe.Adapter {
	return stripe.NewAdapter(transport.New(domain.ProviderStripe, baseURL, time.Second))
}

func authoriseRequest() domain.AuthoriseRequest {
	return domain.AuthoriseRequest{
		Account:  account,
		ChargeID: "ch_1",
		Amount:   2000,
		Currency: "gbp",
		Card: domain.CardDetails{
			CardNumber:  "4242424242424242",
			CVC:         "123",
			ExpiryMonth: 12,
			ExpiryYear:  2030,
		},
	}
}

func TestAdapter_Authorise(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		reply      map[string]any
		wantKind   domain.AuthoriseOutcomeKind
		wantTxID   string
		wantReason string
		wantErr    domain.GatewayErrorKind
	}{
		{
			name:     "requires capture",
			status:   200,
			reply:    map[string]any{"id": "pi_1", "status": "requires_capture", "amount": 2000},
			wantKind: domain.AuthoriseAuthorised,
			wantTxID: "pi_1",
		},
		{
			name:   "requires action",
			status: 200,
			reply: map[string]any{"id": "pi_1", "status": "requires_action", "next_action": map[string]any{
				"redirect_to_url": map[string]any{"url": "https://hooks.stripe.test/3ds"},
			}},
			wantKind: domain.AuthoriseRequires3DS,
			wantTxID: "pi_1",
		},
		{
			name:       "card declined",
			status:     402,
			reply:      map[string]any{"error": map[string]any{"type": "card_error", "code": "card_declined", "decline_code": "insufficient_funds"}},
			wantKind:   domain.AuthoriseRejected,
			wantReason: "insufficient_funds",
		},
		{
			name:     "bad api key",
			status:   401,
			reply:    map[string]any{"error": map[string]any{"type": "invalid_request_error"}},
			wantKind: domain.AuthoriseError,
			wantErr:  domain.GatewayProtocolError,
		},
		{
			name:     "server error",
			status:   500,
			reply:    map[string]any{},
			wantKind: domain.AuthoriseError,
			wantErr:  domain.GatewayConnectionError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer gock.Off()
			gock.New(baseURL).
				Post("/v1/payment_intents").
				MatchHeader("Authorization", "^Bearer sk_test_123$").
				MatchHeader("Idempotency-Key", "^authorise-ch_1$").
				Reply(tt.status).
				JSON(tt.reply)

			outcome := newAdapter().Authorise(context.Background(), authoriseRequest())
			assert.Equal(t, tt.wantKind, outcome.Kind)
			assert.Equal(t, tt.wantTxID, outcome.TransactionID)
			assert.Equal(t, tt.wantReason, outcome.Reason)
			if tt.wantErr != "" {
				require.NotNil(t, outcome.Err)
				assert.Equal(t, tt.wantErr, outcome.Err.Kind)
			}
			if tt.wantKind == domain.AuthoriseRequires3DS {
				assert.Equal(t, "https://hooks.stripe.test/3ds", outcome.ThreeDS.RedirectURL)
			}
			assert.True(t, gock.IsDone())
		})
	}
}

func TestAdapter_CaptureAndCancel(t *testing.T) {
	defer gock.Off()
	gock.New(baseURL).
		Post("/v1/payment_intents/pi_1/capture").
		MatchHeader("Idempotency-Key", "^capture-ch_1$").
		Reply(200).
		JSON(map[string]any{"id": "pi_1", "status": "succeeded"})
	gock.New(baseURL).
		Post("/v1/payment_intents/pi_2/cancel").
		Reply(400).
		JSON(map[string]any{"error": map[string]any{"code": "payment_intent_unexpected_state"}})

	adapter := newAdapter()
	captured := adapter.Capture(context.Background(), domain.CaptureRequest{Account: account, ChargeID: "ch_1", TransactionID: "pi_1", Amount: 2000})
	assert.Equal(t, domain.OperationSubmitted, captured.Kind)

	cancelled := adapter.Cancel(context.Background(), domain.CancelRequest{Account: account, ChargeID: "ch_2", TransactionID: "pi_2"})
	assert.Equal(t, domain.OperationRejected, cancelled.Kind)
	assert.Equal(t, "payment_intent_unexpected_state", cancelled.Reason)
	assert.True(t, gock.IsDone())
}

func TestAdapter_Refund(t *testing.T) {
	tests := []struct {
		status   string
		wantKind domain.OperationOutcomeKind
	}{
		{status: "pending", wantKind: domain.OperationSubmitted},
		{status: "succeeded", wantKind: domain.OperationSubmitted},
		{status: "failed", wantKind: domain.OperationRejected},
		{status: "weird", wantKind: domain.OperationError},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			defer gock.Off()
			gock.New(baseURL).
				Post("/v1/refunds").
				MatchHeader("Idempotency-Key", "^refund-rf_1$").
				Reply(200).
				JSON(map[string]any{"id": "re_1", "status": tt.status})

			outcome := newAdapter().Refund(context.Background(), domain.RefundRequest{
				Account: account, RefundID: "rf_1", TransactionID: "pi_1", Amount: 500,
			})
			assert.Equal(t, tt.wantKind, outcome.Kind)
		})
	}
}

func TestAdapter_Query(t *testing.T) {
	defer gock.Off()
	gock.New(baseURL).
		Get("/v1/payment_intents/pi_1").
		Reply(200).
		JSON(map[string]any{"id": "pi_1", "status": "succeeded", "amount": 2000, "amount_received": 1999})
	gock.New(baseURL).
		Get("/v1/payment_intents/pi_missing").
		Reply(404).
		JSON(map[string]any{"error": map[string]any{"code": "resource_missing"}})

	result := newAdapter().Query(context.Background(), domain.QueryRequest{Account: account, TransactionID: "pi_1"})
	require.Nil(t, result.Err)
	assert.Equal(t, domain.StatusCaptured, result.Status)
	require.NotNil(t, result.Amount)
	assert.Equal(t, int64(1999), *result.Amount)

	missing := newAdapter().Query(context.Background(), domain.QueryRequest{Account: account, TransactionID: "pi_missing"})
	assert.Nil(t, missing.Err)
	assert.Empty(t, missing.Status)
	assert.Equal(t, "not_found", missing.ProviderStatus)
}

func TestAdapter_QueryWithoutTransactionIDSearchesByCharge(t *testing.T) {
	defer gock.Off()
	gock.New(baseURL).
		Get("/v1/payment_intents/search").
		MatchParam("query", `metadata\['charge_id'\]:'ch_1'`).
		MatchHeader("Authorization", "Bearer sk_test_123").
		Reply(200).
		JSON(map[string]any{"object": "search_result", "data": []any{
			map[string]any{"id": "pi_7", "status": "requires_capture", "amount": 2000},
		}})
	gock.New(baseURL).
		Get("/v1/payment_intents/search").
		MatchParam("query", `metadata\['charge_id'\]:'ch_2'`).
		Reply(200).
		JSON(map[string]any{"object": "search_result", "data": []any{}})

	found := newAdapter().Query(context.Background(), domain.QueryRequest{Account: account, ChargeID: "ch_1"})
	require.Nil(t, found.Err)
	assert.Equal(t, domain.StatusAuthSuccess, found.Status)
	assert.Equal(t, "pi_7", found.TransactionID)

	missing := newAdapter().Query(context.Background(), domain.QueryRequest{Account: account, ChargeID: "ch_2"})
	assert.Nil(t, missing.Err)
	assert.Empty(t, missing.Status)
	assert.Empty(t, missing.TransactionID)
	assert.Equal(t, "not_found", missing.ProviderStatus)
	assert.True(t, gock.IsDone())
}

const eventBody = `{"id":"evt_1","type":"payment_intent.succeeded","created":1792000000,
"data":{"object":{"id":"pi_1","object":"payment_intent","status":"succeeded"}}}`

func signedRequest(secret string, at time.Time) application.NotificationRequest {
	ts := strconv.FormatInt(at.Unix(), 10)
	header := http.Header{}
	header.Set("Stripe-Signature", "t="+ts+",v1="+stripe.Signature(secret, ts, []byte(eventBody))+",v0=legacy")
	return application.NotificationRequest{Body: []byte(eventBody), Header: header}
}

func TestWebhookParser(t *testing.T) {
	parser := stripe.NewWebhookParser()

	notifications, err := parser.Parse(signedRequest("whsec_abc", time.Now()))
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, "pi_1", notifications[0].TransactionID)
	assert.Equal(t, "payment_intent.succeeded", notifications[0].ProviderStatus)
	assert.Equal(t, "evt_1", notifications[0].Reference)
	assert.Equal(t, int64(1792000000), notifications[0].EventTime.Unix())

	status, ok := parser.MapStatus("payment_intent.succeeded")
	assert.True(t, ok)
	assert.Equal(t, domain.StatusCaptured, status)
	_, ok = parser.MapStatus("charge.dispute.created")
	assert.False(t, ok)

	contentType, body := parser.Acknowledgement()
	assert.Equal(t, "application/json", contentType)
	assert.JSONEq(t, `{"received":true}`, string(body))
}

func TestWebhookParser_Authenticate(t *testing.T) {
	parser := stripe.NewWebhookParser()

	tests := []struct {
		name    string
		req     application.NotificationRequest
		wantErr error
	}{
		{name: "valid", req: signedRequest("whsec_abc", time.Now())},
		{name: "wrong secret", req: signedRequest("whsec_other", time.Now()), wantErr: stripe.ErrInvalidSignature},
		{name: "too old", req: signedRequest("whsec_abc", time.Now().Add(-10*time.Minute)), wantErr: stripe.ErrSignatureExpired},
		{name: "missing header", req: application.NotificationRequest{Body: []byte(eventBody), Header: http.Header{}}, wantErr: stripe.ErrMissingSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parser.Authenticate(tt.req, account)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
