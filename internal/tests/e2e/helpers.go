package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/DanielPopoola/chargecore/internal/application/services"
	"github.com/DanielPopoola/chargecore/internal/interfaces/rest"
	"github.com/stretchr/testify/require"
)

// TestClient wraps HTTP calls to the gateway under test.
type TestClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewTestClient(baseURL string) *TestClient {
	return &TestClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// apiError is returned for any 4xx/5xx answer.
type apiError struct {
	Status int
	Code   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Code)
}

func (c *TestClient) post(t *testing.T, path string, body any, header http.Header, out any) error {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	return c.do(t, req, out)
}

func (c *TestClient) do(t *testing.T, req *http.Request, out any) error {
	t.Helper()

	resp, err := c.httpClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	if resp.StatusCode >= 400 {
		var errResp rest.ErrorResponse
		json.Unmarshal(bodyBytes, &errResp)
		return &apiError{Status: resp.StatusCode, Code: errResp.Error.Code}
	}
	if out != nil {
		require.NoError(t, json.Unmarshal(bodyBytes, out), string(bodyBytes))
	}
	return nil
}

func (c *TestClient) CreateCharge(t *testing.T, accountID int64, amount int64, delayed bool) *rest.ChargeResponse {
	var charge rest.ChargeResponse
	err := c.post(t, fmt.Sprintf("/v1/api/accounts/%d/charges", accountID), map[string]any{
		"amount":         amount,
		"currency":       "GBP",
		"description":    "e2e charge",
		"reference":      "e2e-ref",
		"delayedCapture": delayed,
	}, nil, &charge)
	require.NoError(t, err)
	return &charge
}

func (c *TestClient) Authorise(t *testing.T, chargeID, card, idempotencyKey string) (*services.AuthorisationResponse, error) {
	header := http.Header{}
	if idempotencyKey != "" {
		header.Set("Idempotency-Key", idempotencyKey)
	}
	var resp services.AuthorisationResponse
	err := c.post(t, "/v1/frontend/charges/"+chargeID+"/authorise", map[string]any{
		"cardNumber":     card,
		"cvc":            "123",
		"expiryMonth":    12,
		"expiryYear":     time.Now().Year() + 3,
		"cardholderName": "E2E Payer",
	}, header, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *TestClient) Capture(t *testing.T, chargeID string) (*rest.ChargeResponse, error) {
	var charge rest.ChargeResponse
	if err := c.post(t, "/v1/api/charges/"+chargeID+"/capture", nil, nil, &charge); err != nil {
		return nil, err
	}
	return &charge, nil
}

func (c *TestClient) Cancel(t *testing.T, chargeID string) (*rest.ChargeResponse, error) {
	var charge rest.ChargeResponse
	if err := c.post(t, "/v1/api/charges/"+chargeID+"/cancel", nil, nil, &charge); err != nil {
		return nil, err
	}
	return &charge, nil
}

func (c *TestClient) Refund(t *testing.T, chargeID string, amount int64) (*rest.RefundResponse, error) {
	var refund rest.RefundResponse
	if err := c.post(t, "/v1/api/charges/"+chargeID+"/refunds", map[string]any{"amount": amount}, nil, &refund); err != nil {
		return nil, err
	}
	return &refund, nil
}

func (c *TestClient) GetCharge(t *testing.T, chargeID string) *rest.ChargeResponse {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/v1/api/charges/"+chargeID, nil)
	require.NoError(t, err)
	var charge rest.ChargeResponse
	require.NoError(t, c.do(t, req, &charge))
	return &charge
}

// Notify posts a raw sandbox notification with basic auth.
func (c *TestClient) Notify(t *testing.T, body, user, pass string) int {
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/v1/api/notifications/sandbox", bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	req.SetBasicAuth(user, pass)
	resp, err := c.httpClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}
