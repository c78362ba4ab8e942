package worldpay

import (
	"bytes"
	"encoding/xml"
	"strings"
	"text/template"
)

const header = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE paymentService PUBLIC "-//WorldPay//DTD WorldPay PaymentService v1//EN" "http://dtd.worldpay.com/paymentService_v1.dtd">
`

var templates = template.Must(template.New("worldpay").Funcs(template.FuncMap{
	"x": escape,
}).Parse(`
{{define "authorise"}}<paymentService version="1.4" merchantCode="{{x .MerchantCode}}">
  <submit>
    <order orderCode="{{x .OrderCode}}">
      <description>{{x .Description}}</description>
      <amount currencyCode="{{x .Currency}}" exponent="2" value="{{.Amount}}"/>
      <paymentDetails>
        <CARD-SSL>
          <cardNumber>{{x .Card.CardNumber}}</cardNumber>
          <expiryDate><date month="{{printf "%02d" .Card.ExpiryMonth}}" year="{{.Card.ExpiryYear}}"/></expiryDate>
          <cardHolderName>{{x .Card.CardholderName}}</cardHolderName>
          <cvc>{{x .Card.CVC}}</cvc>{{with .Card.Address}}
          <cardAddress>
            <address>
              <address1>{{x .Line1}}</address1>
              <address2>{{x .Line2}}</address2>
              <postalCode>{{x .Postcode}}</postalCode>
              <city>{{x .City}}</city>
              <countryCode>{{x .Country}}</countryCode>
            </address>
          </cardAddress>{{end}}
        </CARD-SSL>
        <session shopperIPAddress="{{x .PayerIP}}" id="{{x .OrderCode}}"/>
      </paymentDetails>
      <shopper>
        <browser>
          <acceptHeader>{{x .AcceptHeader}}</acceptHeader>
          <userAgentHeader>{{x .UserAgent}}</userAgentHeader>
        </browser>
      </shopper>
    </order>
  </submit>
</paymentService>{{end}}

{{define "3ds"}}<paymentService version="1.4" merchantCode="{{x .MerchantCode}}">
  <submit>
    <order orderCode="{{x .OrderCode}}">
      <info3DSecure>
        <paResponse>{{x .PaResponse}}</paResponse>
      </info3DSecure>
      <session id="{{x .OrderCode}}"/>
    </order>
  </submit>
</paymentService>{{end}}

{{define "capture"}}<paymentService version="1.4" merchantCode="{{x .MerchantCode}}">
  <modify>
    <orderModification orderCode="{{x .OrderCode}}">
      <capture>
        <amount currencyCode="{{x .Currency}}" exponent="2" value="{{.Amount}}"/>
      </capture>
    </orderModification>
  </modify>
</paymentService>{{end}}

{{define "refund"}}<paymentService version="1.4" merchantCode="{{x .MerchantCode}}">
  <modify>
    <orderModification orderCode="{{x .OrderCode}}">
      <refund reference="{{x .Reference}}">
        <amount currencyCode="{{x .Currency}}" exponent="2" value="{{.Amount}}"/>
      </refund>
    </orderModification>
  </modify>
</paymentService>{{end}}

{{define "cancel"}}<paymentService version="1.4" merchantCode="{{x .MerchantCode}}">
  <modify>
    <orderModification orderCode="{{x .OrderCode}}">
      <cancel/>
    </orderModification>
  </modify>
</paymentService>{{end}}

{{define "inquiry"}}<paymentService version="1.4" merchantCode="{{x .MerchantCode}}">
  <inquiry>
    <orderInquiry orderCode="{{x .OrderCode}}"/>
  </inquiry>
</paymentService>{{end}}
`))

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func render(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(header)
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
