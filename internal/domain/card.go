package domain

import (
	"strings"
	"unicode"
)

type CardType string

const (
	CardTypeCredit CardType = "CREDIT"
	CardTypeDebit  CardType = "DEBIT"
)

// CardDetails is what the payer typed in. It never leaves memory except on the wire to a gateway.
type CardDetails struct {
	CardNumber     string
	CVC            string
	ExpiryMonth    int
	ExpiryYear     int
	CardholderName string
	Address        *Address
}

type Address struct {
	Line1    string
	Line2    string
	City     string
	Postcode string
	Country  string
}

// LastDigits returns the last four digits for logging.
func (c CardDetails) LastDigits() string {
	n := c.CardNumber
	if len(n) < 4 {
		return n
	}
	return n[len(n)-4:]
}

// CardInformation is the result of a BIN lookup.
type CardInformation struct {
	Brand     string
	Type      CardType
	Corporate bool
	Prepaid   bool
}

// CorporateSurcharges holds the per-card-type surcharge an account levies on corporate cards.
type CorporateSurcharges struct {
	CreditCard  int64 `json:"credit_card"`
	DebitCard   int64 `json:"debit_card"`
	PrepaidCard int64 `json:"prepaid_card"`
}

// SurchargeFor returns the surcharge applying to a card, zero when none does.
func (s CorporateSurcharges) SurchargeFor(info CardInformation) int64 {
	if !info.Corporate {
		return 0
	}
	if info.Prepaid && s.PrepaidCard > 0 {
		return s.PrepaidCard
	}
	switch info.Type {
	case CardTypeCredit:
		return s.CreditCard
	case CardTypeDebit:
		return s.DebitCard
	}
	return 0
}

// NormaliseCardNumber strips spaces and dashes.
func NormaliseCardNumber(number string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, number)
}

// LuhnValid reports whether number passes the Luhn checksum. Non-digit input is invalid.
func LuhnValid(number string) bool {
	number = NormaliseCardNumber(number)
	if len(number) < 12 || len(number) > 19 {
		return false
	}

	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		r := rune(number[i])
		if !unicode.IsDigit(r) {
			return false
		}
		d := int(r - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
