package worldpay_test

import (
	"context"
	"testing"
	"time"

	"github.com/DanielPopoola/chargecore/internal/application"
	"github.com/DanielPopoola/chargecore/internal/domain"
	"github.com/DanielPopoola/chargecore/internal/infrastructure/gateway/transport"
	"github.com/DanielPopoola/chargecore/internal/infrastructure/gateway/worldpay"
	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseURL = "http://worldpay.test"

var account = &domain.GatewayAccount{
	ID:       1,
	Provider: domain.ProviderWorldpay,
	Credentials: map[string]string{
		domain.CredentialMerchantID: "MERCHANT1",
		domain.CredentialUsername:   "user",
		domain.CredentialPassword:   "pass",
	},
}

func newAdapter() *worldpay.Adapter {
	return worldpay.NewAdapter(transport.New(domain.ProviderWorldpay, baseURL, time.Second))
}

func orderReply(inner string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE paymentService PUBLIC "-//WorldPay//DTD WorldPay PaymentService v1//EN" "http://dtd.worldpay.com/paymentService_v1.dtd">
<paymentService version="1.4" merchantCode="MERCHANT1"><reply>` + inner + `</reply></paymentService>`
}

func authoriseRequest() domain.AuthoriseRequest {
	return domain.AuthoriseRequest{
		Account:       account,
		ChargeID:      "ch_1",
		TransactionID: "order-1",
		Amount:        1000,
		Currency:      "GBP",
		Description:   "Tea & biscuits",
		Card: domain.CardDetails{
			CardNumber:     "4444333322221111",
			CVC:            "123",
			ExpiryMonth:    3,
			ExpiryYear:     2030,
			CardholderName: "Ada <Lovelace>",
		},
		PayerIP: "203.0.113.9",
	}
}

func TestAdapter_Authorise(t *testing.T) {
	tests := []struct {
		name       string
		reply      string
		status     int
		wantKind   domain.AuthoriseOutcomeKind
		wantReason string
		wantErr    domain.GatewayErrorKind
	}{
		{
			name: "authorised",
			reply: orderReply(`<orderStatus orderCode="order-1"><payment><paymentMethod>VISA-SSL</paymentMethod>
<amount value="1000" currencyCode="GBP" exponent="2"/><lastEvent>AUTHORISED</lastEvent></payment></orderStatus>`),
			status:   200,
			wantKind: domain.AuthoriseAuthorised,
		},
		{
			name: "refused",
			reply: orderReply(`<orderStatus orderCode="order-1"><payment><lastEvent>REFUSED</lastEvent>
<ISO8583ReturnCode code="5" description="REFUSED"/></payment></orderStatus>`),
			status:     200,
			wantKind:   domain.AuthoriseRejected,
			wantReason: "REFUSED",
		},
		{
			name:     "reply error",
			reply:    orderReply(`<error code="5"><![CDATA[XML failed validation]]></error>`),
			status:   200,
			wantKind: domain.AuthoriseError,
			wantErr:  domain.GatewayProtocolError,
		},
		{
			name:     "malformed body",
			reply:    "<paymentService><reply>",
			status:   200,
			wantKind: domain.AuthoriseError,
			wantErr:  domain.GatewayProtocolError,
		},
		{
			name:     "unauthorised credentials",
			reply:    "",
			status:   401,
			wantKind: domain.AuthoriseError,
			wantErr:  domain.GatewayProtocolError,
		},
		{
			name:     "gateway unavailable",
			reply:    "",
			status:   503,
			wantKind: domain.AuthoriseError,
			wantErr:  domain.GatewayConnectionError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer gock.Off()
			gock.New(baseURL).
				Post("/jsp/merchant/xml/paymentService.jsp").
				MatchHeader("Authorization", "^Basic ").
				BodyString(`orderCode="order-1"`).
				Reply(tt.status).
				BodyString(tt.reply)

			outcome := newAdapter().Authorise(context.Background(), authoriseRequest())
			assert.Equal(t, tt.wantKind, outcome.Kind)
			assert.Equal(t, tt.wantReason, outcome.Reason)
			if tt.wantErr != "" {
				require.NotNil(t, outcome.Err)
				assert.Equal(t, tt.wantErr, outcome.Err.Kind)
			} else {
				assert.Nil(t, outcome.Err)
				assert.Equal(t, "order-1", outcome.TransactionID)
			}
			assert.True(t, gock.IsDone())
		})
	}
}

func TestAdapter_AuthoriseEscapesCardholderName(t *testing.T) {
	defer gock.Off()
	gock.New(baseURL).
		Post("/jsp/merchant/xml/paymentService.jsp").
		BodyString(`Ada &lt;Lovelace&gt;`).
		Reply(200).
		BodyString(orderReply(`<orderStatus orderCode="order-1"><payment><lastEvent>AUTHORISED</lastEvent></payment></orderStatus>`))

	outcome := newAdapter().Authorise(context.Background(), authoriseRequest())
	assert.Equal(t, domain.AuthoriseAuthorised, outcome.Kind)
	assert.True(t, gock.IsDone())
}

func TestAdapter_ThreeDSRoundTrip(t *testing.T) {
	defer gock.Off()
	gock.New(baseURL).
		Post("/jsp/merchant/xml/paymentService.jsp").
		Reply(200).
		SetHeader("Set-Cookie", "machine=0aa20016; Path=/").
		BodyString(orderReply(`<orderStatus orderCode="order-1"><requestInfo><request3DSecure>
<paRequest>eJxVUk1z</paRequest><issuerURL>https://acs.test/challenge</issuerURL></request3DSecure></requestInfo></orderStatus>`))

	outcome := newAdapter().Authorise(context.Background(), authoriseRequest())
	require.Equal(t, domain.AuthoriseRequires3DS, outcome.Kind)
	require.NotNil(t, outcome.ThreeDS)
	assert.Equal(t, "https://acs.test/challenge", outcome.ThreeDS.IssuerURL)
	assert.Equal(t, "eJxVUk1z", outcome.ThreeDS.PaRequest)
	assert.Equal(t, "0aa20016", outcome.ThreeDS.MachineCookie)

	gock.New(baseURL).
		Post("/jsp/merchant/xml/paymentService.jsp").
		MatchHeader("Cookie", "machine=0aa20016").
		BodyString(`<paResponse>pa-res</paResponse>`).
		Reply(200).
		BodyString(orderReply(`<orderStatus orderCode="order-1"><payment><lastEvent>AUTHORISED</lastEvent></payment></orderStatus>`))

	outcome = newAdapter().Authorise3DSContinuation(context.Background(), domain.ThreeDSContinuationRequest{
		Account:       account,
		ChargeID:      "ch_1",
		TransactionID: "order-1",
		ThreeDS:       *outcome.ThreeDS,
		PaResponse:    "pa-res",
	})
	assert.Equal(t, domain.AuthoriseAuthorised, outcome.Kind)
	assert.True(t, gock.IsDone())
}

func TestAdapter_Modifications(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		call     func(*worldpay.Adapter) domain.OperationOutcome
		wantKind domain.OperationOutcomeKind
	}{
		{
			name:  "capture received",
			reply: orderReply(`<ok><captureReceived orderCode="order-1"/></ok>`),
			call: func(a *worldpay.Adapter) domain.OperationOutcome {
				return a.Capture(context.Background(), domain.CaptureRequest{Account: account, TransactionID: "order-1", Amount: 1000, Currency: "GBP"})
			},
			wantKind: domain.OperationSubmitted,
		},
		{
			name:  "capture refused",
			reply: orderReply(`<error code="5">Order has already been captured</error>`),
			call: func(a *worldpay.Adapter) domain.OperationOutcome {
				return a.Capture(context.Background(), domain.CaptureRequest{Account: account, TransactionID: "order-1", Amount: 1000, Currency: "GBP"})
			},
			wantKind: domain.OperationRejected,
		},
		{
			name:  "refund received",
			reply: orderReply(`<ok><refundReceived orderCode="order-1"/></ok>`),
			call: func(a *worldpay.Adapter) domain.OperationOutcome {
				return a.Refund(context.Background(), domain.RefundRequest{Account: account, TransactionID: "order-1", RefundID: "rf_1", Amount: 500, Currency: "GBP"})
			},
			wantKind: domain.OperationSubmitted,
		},
		{
			name:  "cancel received",
			reply: orderReply(`<ok><cancelReceived orderCode="order-1"/></ok>`),
			call: func(a *worldpay.Adapter) domain.OperationOutcome {
				return a.Cancel(context.Background(), domain.CancelRequest{Account: account, TransactionID: "order-1"})
			},
			wantKind: domain.OperationSubmitted,
		},
		{
			name:  "receipt for another operation",
			reply: orderReply(`<ok><refundReceived orderCode="order-1"/></ok>`),
			call: func(a *worldpay.Adapter) domain.OperationOutcome {
				return a.Cancel(context.Background(), domain.CancelRequest{Account: account, TransactionID: "order-1"})
			},
			wantKind: domain.OperationError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer gock.Off()
			gock.New(baseURL).
				Post("/jsp/merchant/xml/paymentService.jsp").
				Reply(200).
				BodyString(tt.reply)

			outcome := tt.call(newAdapter())
			assert.Equal(t, tt.wantKind, outcome.Kind)
		})
	}
}

func TestAdapter_Query(t *testing.T) {
	defer gock.Off()
	gock.New(baseURL).
		Post("/jsp/merchant/xml/paymentService.jsp").
		BodyString(`<orderInquiry orderCode="order-1"/>`).
		Reply(200).
		BodyString(orderReply(`<orderStatus orderCode="order-1"><payment>
<amount value="999" currencyCode="GBP" exponent="2"/><lastEvent>CAPTURED</lastEvent></payment></orderStatus>`))

	result := newAdapter().Query(context.Background(), domain.QueryRequest{Account: account, TransactionID: "order-1"})
	require.Nil(t, result.Err)
	assert.Equal(t, domain.StatusCaptured, result.Status)
	assert.Equal(t, "CAPTURED", result.ProviderStatus)
	require.NotNil(t, result.Amount)
	assert.Equal(t, int64(999), *result.Amount)
}

func TestAdapter_QueryUnknownOrder(t *testing.T) {
	defer gock.Off()
	gock.New(baseURL).
		Post("/jsp/merchant/xml/paymentService.jsp").
		Reply(200).
		BodyString(orderReply(`<error code="5">Could not find payment for order</error>`))

	result := newAdapter().Query(context.Background(), domain.QueryRequest{Account: account, TransactionID: "order-1"})
	assert.Nil(t, result.Err)
	assert.Empty(t, result.Status)
	assert.Equal(t, "ERROR 5", result.ProviderStatus)
}

const notificationBody = `<?xml version="1.0" encoding="UTF-8"?>
<paymentService version="1.4" merchantCode="MERCHANT1">
  <notify>
    <orderStatusEvent orderCode="order-1">
      <payment>
        <paymentMethod>VISA-SSL</paymentMethod>
        <amount value="1000" currencyCode="GBP" exponent="2" debitCreditIndicator="credit"/>
        <lastEvent>CAPTURED</lastEvent>
      </payment>
      <journal journalType="CAPTURED">
        <bookingDate><date dayOfMonth="14" month="10" year="2026"/></bookingDate>
      </journal>
    </orderStatusEvent>
  </notify>
</paymentService>`

func TestNotificationParser(t *testing.T) {
	parser, err := worldpay.NewNotificationParser([]string{"195.35.90.0/23", "2001:db8::/32"})
	require.NoError(t, err)

	notifications, err := parser.Parse(application.NotificationRequest{Body: []byte(notificationBody)})
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, "order-1", notifications[0].TransactionID)
	assert.Equal(t, "CAPTURED", notifications[0].ProviderStatus)
	require.NotNil(t, notifications[0].EventTime)
	assert.Equal(t, time.Date(2026, time.October, 14, 0, 0, 0, 0, time.UTC), *notifications[0].EventTime)

	status, ok := parser.MapStatus("CAPTURED")
	assert.True(t, ok)
	assert.Equal(t, domain.StatusCaptured, status)
	_, ok = parser.MapStatus("SHOPPER_REDIRECTED")
	assert.False(t, ok)

	contentType, body := parser.Acknowledgement()
	assert.Equal(t, "text/plain", contentType)
	assert.Equal(t, "[OK]", string(body))
}

func TestNotificationParser_Authenticate(t *testing.T) {
	parser, err := worldpay.NewNotificationParser([]string{"195.35.90.0/23", "2001:db8::/32"})
	require.NoError(t, err)

	tests := []struct {
		remoteAddr string
		wantErr    bool
	}{
		{remoteAddr: "195.35.91.12:40112"},
		{remoteAddr: "[2001:db8::1]:443"},
		{remoteAddr: "[::ffff:195.35.90.1]:443"},
		{remoteAddr: "10.0.0.1:1234", wantErr: true},
		{remoteAddr: "not-an-address", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.remoteAddr, func(t *testing.T) {
			err := parser.Authenticate(application.NotificationRequest{RemoteAddr: tt.remoteAddr}, account)
			if tt.wantErr {
				assert.ErrorIs(t, err, worldpay.ErrUntrustedSource)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNotificationParser_RejectsBadRange(t *testing.T) {
	_, err := worldpay.NewNotificationParser([]string{"not-a-cidr"})
	assert.Error(t, err)
}
