package worldpay

import (
	"encoding/xml"
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/DanielPopoola/chargecore/internal/application"
	"github.com/DanielPopoola/chargecore/internal/domain"
)

var ErrUntrustedSource = errors.New("notification did not come from a trusted address")

// NotificationParser reads Worldpay order notifications. Worldpay does not sign them,
// so they are authenticated by source address.
type NotificationParser struct {
	trusted []netip.Prefix
}

func NewNotificationParser(cidrs []string) (*NotificationParser, error) {
	p := &NotificationParser{}
	for _, cidr := range cidrs {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid worldpay notification range %q: %w", cidr, err)
		}
		p.trusted = append(p.trusted, prefix)
	}
	return p, nil
}

func (p *NotificationParser) Provider() domain.Provider {
	return domain.ProviderWorldpay
}

func (p *NotificationParser) Parse(req application.NotificationRequest) ([]domain.Notification, error) {
	var doc paymentService
	if err := xml.Unmarshal(req.Body, &doc); err != nil {
		return nil, fmt.Errorf("error decoding worldpay notification: %w", err)
	}
	if doc.Notify == nil || doc.Notify.OrderStatusEvent == nil {
		return nil, errors.New("worldpay notification carries no orderStatusEvent")
	}

	event := doc.Notify.OrderStatusEvent
	if event.OrderCode == "" || event.Payment == nil {
		return nil, errors.New("worldpay notification is missing orderCode or payment")
	}

	notification := domain.Notification{
		TransactionID:  event.OrderCode,
		ProviderStatus: event.Payment.LastEvent,
	}
	if event.Journal != nil {
		notification.Reference = event.Journal.JournalType
		notification.EventTime = event.Journal.BookingDate.time()
	}
	return []domain.Notification{notification}, nil
}

func (p *NotificationParser) Authenticate(req application.NotificationRequest, _ *domain.GatewayAccount) error {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUntrustedSource, req.RemoteAddr)
	}
	addr = addr.Unmap()
	for _, prefix := range p.trusted {
		if prefix.Contains(addr) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUntrustedSource, addr)
}

func (p *NotificationParser) MapStatus(providerStatus string) (domain.ChargeStatus, bool) {
	return mapStatus(providerStatus)
}

func (p *NotificationParser) Acknowledgement() (string, []byte) {
	return "text/plain", []byte("[OK]")
}
