package handlers

import (
	"net"
	"net/http"
	"strings"

	"github.com/DanielPopoola/chargecore/internal/application/services"
	"github.com/DanielPopoola/chargecore/internal/domain"
	"github.com/DanielPopoola/chargecore/internal/interfaces/rest"
)

type addressRequest struct {
	Line1    string `json:"line1"`
	Line2    string `json:"line2"`
	City     string `json:"city"`
	Postcode string `json:"postcode"`
	Country  string `json:"country"`
}

type authoriseRequest struct {
	CardNumber     string          `json:"cardNumber"`
	CVC            string          `json:"cvc"`
	ExpiryMonth    int             `json:"expiryMonth"`
	ExpiryYear     int             `json:"expiryYear"`
	CardholderName string          `json:"cardholderName"`
	Address        *addressRequest `json:"address"`
}

type threeDSRequest struct {
	PaResponse string `json:"paResponse"`
}

func (h *Handlers) Authorise(w http.ResponseWriter, r *http.Request) {
	var req authoriseRequest
	if err := decode(r, &req); err != nil {
		rest.WriteError(w, err)
		return
	}

	cmd := services.AuthoriseCommand{
		ChargeExternalID: r.PathValue("chargeId"),
		CardNumber:       req.CardNumber,
		CVC:              req.CVC,
		ExpiryMonth:      req.ExpiryMonth,
		ExpiryYear:       req.ExpiryYear,
		CardholderName:   req.CardholderName,
		PayerIP:          payerIP(r),
		AcceptHeader:     r.Header.Get("Accept"),
		UserAgent:        r.UserAgent(),
		IdempotencyKey:   r.Header.Get("Idempotency-Key"),
	}
	if req.Address != nil {
		cmd.Address = &domain.Address{
			Line1:    req.Address.Line1,
			Line2:    req.Address.Line2,
			City:     req.Address.City,
			Postcode: req.Address.Postcode,
			Country:  req.Address.Country,
		}
	}

	resp, err := h.authorisation.Authorise(r.Context(), cmd)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handlers) Authorise3DS(w http.ResponseWriter, r *http.Request) {
	var req threeDSRequest
	if err := decode(r, &req); err != nil {
		rest.WriteError(w, err)
		return
	}

	resp, err := h.authorisation.Authorise3DS(r.Context(), services.ThreeDSCommand{
		ChargeExternalID: r.PathValue("chargeId"),
		PaResponse:       req.PaResponse,
	})
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, resp)
}

func payerIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
