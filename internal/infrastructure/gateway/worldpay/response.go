package worldpay

import (
	"encoding/xml"
	"strconv"
	"time"

	"github.com/DanielPopoola/chargecore/internal/domain"
)

type paymentService struct {
	XMLName xml.Name `xml:"paymentService"`
	Reply   *reply   `xml:"reply"`
	Notify  *notify  `xml:"notify"`
}

type reply struct {
	OrderStatus *orderStatus `xml:"orderStatus"`
	Error       *replyError  `xml:"error"`
	OK          *ok          `xml:"ok"`
}

type replyError struct {
	Code    string `xml:"code,attr"`
	Message string `xml:",chardata"`
}

type ok struct {
	CaptureReceived *orderRef `xml:"captureReceived"`
	RefundReceived  *orderRef `xml:"refundReceived"`
	CancelReceived  *orderRef `xml:"cancelReceived"`
}

type orderRef struct {
	OrderCode string `xml:"orderCode,attr"`
}

type orderStatus struct {
	OrderCode   string       `xml:"orderCode,attr"`
	Payment     *payment     `xml:"payment"`
	RequestInfo *requestInfo `xml:"requestInfo"`
	Error       *replyError  `xml:"error"`
}

type payment struct {
	PaymentMethod string      `xml:"paymentMethod"`
	Amount        *amount     `xml:"amount"`
	LastEvent     string      `xml:"lastEvent"`
	ReturnCode    *returnCode `xml:"ISO8583ReturnCode"`
}

type amount struct {
	Value        int64  `xml:"value,attr"`
	CurrencyCode string `xml:"currencyCode,attr"`
}

type returnCode struct {
	Code        string `xml:"code,attr"`
	Description string `xml:"description,attr"`
}

type requestInfo struct {
	Request3DSecure *request3DSecure `xml:"request3DSecure"`
}

type request3DSecure struct {
	PaRequest string `xml:"paRequest"`
	IssuerURL string `xml:"issuerURL"`
}

type notify struct {
	OrderStatusEvent *orderStatusEvent `xml:"orderStatusEvent"`
}

type orderStatusEvent struct {
	OrderCode string   `xml:"orderCode,attr"`
	Payment   *payment `xml:"payment"`
	Journal   *journal `xml:"journal"`
}

type journal struct {
	JournalType string       `xml:"journalType,attr"`
	BookingDate *bookingDate `xml:"bookingDate"`
}

type bookingDate struct {
	Date struct {
		Day   string `xml:"dayOfMonth,attr"`
		Month string `xml:"month,attr"`
		Year  string `xml:"year,attr"`
	} `xml:"date"`
}

func (b *bookingDate) time() *time.Time {
	if b == nil {
		return nil
	}
	day, err1 := strconv.Atoi(b.Date.Day)
	month, err2 := strconv.Atoi(b.Date.Month)
	year, err3 := strconv.Atoi(b.Date.Year)
	if err1 != nil || err2 != nil || err3 != nil {
		return nil
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &t
}

// statuses maps Worldpay lastEvent values to charge statuses.
var statuses = map[string]domain.ChargeStatus{
	"SENT_FOR_AUTHORISATION": domain.StatusAuthSubmitted,
	"AUTHORISED":             domain.StatusAuthSuccess,
	"REFUSED":                domain.StatusAuthRejected,
	"ERROR":                  domain.StatusAuthError,
	"CAPTURED":               domain.StatusCaptured,
	"SETTLED":                domain.StatusCaptured,
	"SENT_FOR_REFUND":        domain.StatusCaptured,
	"REFUNDED":               domain.StatusCaptured,
	"CANCELLED":              domain.StatusSystemCancelled,
}

func mapStatus(lastEvent string) (domain.ChargeStatus, bool) {
	s, ok := statuses[lastEvent]
	return s, ok
}
