package handlers

import (
	"net/http"

	"github.com/DanielPopoola/chargecore/internal/application/services"
	"github.com/DanielPopoola/chargecore/internal/interfaces/rest"
)

type createChargeRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Description    string `json:"description"`
	Reference      string `json:"reference"`
	DelayedCapture bool   `json:"delayedCapture"`
}

func (h *Handlers) CreateCharge(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathInt(r, "accountId")
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	var req createChargeRequest
	if err := decode(r, &req); err != nil {
		rest.WriteError(w, err)
		return
	}

	charge, err := h.charges.Create(r.Context(), services.CreateChargeCommand{
		AccountID:      accountID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Description:    req.Description,
		Reference:      req.Reference,
		DelayedCapture: req.DelayedCapture,
	})
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	w.Header().Set("Location", "/v1/api/charges/"+charge.ExternalID)
	rest.WriteJSON(w, http.StatusCreated, rest.ToChargeResponse(charge, nil))
}

func (h *Handlers) GetCharge(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("chargeId")

	charge, err := h.charges.Get(r.Context(), id)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	events, err := h.charges.Events(r.Context(), id)
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.ToChargeResponse(charge, events))
}

func (h *Handlers) Cancel(w http.ResponseWriter, r *http.Request) {
	charge, err := h.cancel.Cancel(r.Context(), services.CancelCommand{
		ChargeExternalID: r.PathValue("chargeId"),
		ByUser:           r.URL.Query().Get("by") != "system",
	})
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, rest.ToChargeResponse(charge, nil))
}

// Capture approves a delayed-capture charge. The capture itself happens asynchronously.
func (h *Handlers) Capture(w http.ResponseWriter, r *http.Request) {
	charge, err := h.capture.Approve(r.Context(), r.PathValue("chargeId"))
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusAccepted, rest.ToChargeResponse(charge, nil))
}

func (h *Handlers) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconcile.Reconcile(r.Context(), r.PathValue("chargeId"))
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, report)
}
