package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/DanielPopoola/chargecore/internal/application"
	"github.com/DanielPopoola/chargecore/internal/domain"
)

const (
	signatureHeader  = "Stripe-Signature"
	defaultTolerance = 5 * time.Minute
)

var (
	ErrMissingSignature = errors.New("stripe webhook signature missing")
	ErrInvalidSignature = errors.New("stripe webhook signature invalid")
	ErrSignatureExpired = errors.New("stripe webhook signature timestamp outside tolerance")
)

type event struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object struct {
			ID     string `json:"id"`
			Object string `json:"object"`
			Status string `json:"status"`
		} `json:"object"`
	} `json:"data"`
}

// eventStatuses maps webhook event types to charge statuses. Other event types are acknowledged and ignored.
var eventStatuses = map[string]domain.ChargeStatus{
	"payment_intent.amount_capturable_updated": domain.StatusAuthSuccess,
	"payment_intent.payment_failed":            domain.StatusAuthRejected,
	"payment_intent.processing":                domain.StatusCaptureSubmitted,
	"payment_intent.succeeded":                 domain.StatusCaptured,
}

// WebhookParser reads payment intent events signed with the account's webhook secret.
type WebhookParser struct {
	tolerance time.Duration
	now       func() time.Time
}

func NewWebhookParser() *WebhookParser {
	return &WebhookParser{tolerance: defaultTolerance, now: time.Now}
}

func (p *WebhookParser) Provider() domain.Provider {
	return domain.ProviderStripe
}

func (p *WebhookParser) Parse(req application.NotificationRequest) ([]domain.Notification, error) {
	var e event
	if err := json.Unmarshal(req.Body, &e); err != nil {
		return nil, fmt.Errorf("error decoding stripe event: %w", err)
	}
	if e.Type == "" || e.Data.Object.ID == "" {
		return nil, errors.New("stripe event is missing type or object id")
	}

	created := time.Unix(e.Created, 0).UTC()
	return []domain.Notification{{
		TransactionID:  e.Data.Object.ID,
		ProviderStatus: e.Type,
		Reference:      e.ID,
		EventTime:      &created,
	}}, nil
}

func (p *WebhookParser) Authenticate(req application.NotificationRequest, account *domain.GatewayAccount) error {
	header := req.Header.Get(signatureHeader)
	if header == "" {
		return ErrMissingSignature
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return ErrMissingSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
	}
	if age := p.now().Sub(time.Unix(ts, 0)); age > p.tolerance || age < -p.tolerance {
		return ErrSignatureExpired
	}

	expected := Signature(account.Credential(domain.CredentialWebhookKey), timestamp, req.Body)
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

func (p *WebhookParser) MapStatus(providerStatus string) (domain.ChargeStatus, bool) {
	s, ok := eventStatuses[providerStatus]
	return s, ok
}

func (p *WebhookParser) Acknowledgement() (string, []byte) {
	return "application/json", []byte(`{"received":true}`)
}

// Signature is the v1 scheme: hex HMAC-SHA256 of "timestamp.body".
func Signature(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
