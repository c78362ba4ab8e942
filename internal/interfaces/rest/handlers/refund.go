package handlers

import (
	"net/http"

	"github.com/DanielPopoola/chargecore/internal/application/services"
	"github.com/DanielPopoola/chargecore/internal/interfaces/rest"
)

type refundRequest struct {
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
}

func (h *Handlers) Refund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := decode(r, &req); err != nil {
		rest.WriteError(w, err)
		return
	}

	refund, err := h.refunds.Refund(r.Context(), services.RefundCommand{
		ChargeExternalID: r.PathValue("chargeId"),
		Amount:           req.Amount,
		Reference:        req.Reference,
	})
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusAccepted, rest.ToRefundResponse(refund))
}
