package epdq

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/DanielPopoola/chargecore/internal/application"
	"github.com/DanielPopoola/chargecore/internal/domain"
)

var ErrSignatureMismatch = errors.New("epdq notification signature mismatch")

// NotificationParser reads ePDQ post-sale feedback, signed with the SHA-OUT passphrase.
type NotificationParser struct{}

func NewNotificationParser() *NotificationParser {
	return &NotificationParser{}
}

func (p *NotificationParser) Provider() domain.Provider {
	return domain.ProviderEPDQ
}

func (p *NotificationParser) Parse(req application.NotificationRequest) ([]domain.Notification, error) {
	params, err := url.ParseQuery(string(req.Body))
	if err != nil {
		return nil, fmt.Errorf("error decoding epdq notification: %w", err)
	}

	orderID := param(params, "ORDERID")
	status := param(params, "STATUS")
	if orderID == "" || status == "" {
		return nil, errors.New("epdq notification is missing orderID or STATUS")
	}

	notification := domain.Notification{
		TransactionID:  orderID,
		ProviderStatus: status,
		Reference:      param(params, "PAYID"),
	}
	if t, err := time.Parse("01/02/06", param(params, "TRXDATE")); err == nil {
		notification.EventTime = &t
	}
	return []domain.Notification{notification}, nil
}

func (p *NotificationParser) Authenticate(req application.NotificationRequest, account *domain.GatewayAccount) error {
	params, err := url.ParseQuery(string(req.Body))
	if err != nil {
		return err
	}
	passphrase := account.Credential(domain.CredentialSHAOut)
	if passphrase == "" {
		return fmt.Errorf("%w: account %d has no SHA-OUT passphrase", ErrSignatureMismatch, account.ID)
	}

	got := strings.ToUpper(param(params, signatureParam))
	want := Sign(params, passphrase)
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		return ErrSignatureMismatch
	}
	return nil
}

func (p *NotificationParser) MapStatus(providerStatus string) (domain.ChargeStatus, bool) {
	return mapStatus(providerStatus)
}

func (p *NotificationParser) Acknowledgement() (string, []byte) {
	return "text/plain", []byte("OK")
}

// param looks a key up ignoring case; ePDQ is not consistent about it.
func param(params url.Values, key string) string {
	for k, v := range params {
		if strings.EqualFold(k, key) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}
