// Package handlers exposes the charge services over plain net/http.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/DanielPopoola/chargecore/internal/application"
	"github.com/DanielPopoola/chargecore/internal/application/services"
	"github.com/DanielPopoola/chargecore/internal/interfaces/rest"
)

const maxBodyBytes = 1 << 20

type Handlers struct {
	charges       *services.ChargeService
	authorisation *services.AuthorisationOrchestrator
	capture       *services.CaptureService
	cancel        *services.CancelService
	refunds       *services.RefundService
	notifications *services.NotificationIngestor
	reconcile     *services.ReconciliationService
	logger        *slog.Logger
}

func NewHandlers(
	charges *services.ChargeService,
	authorisation *services.AuthorisationOrchestrator,
	capture *services.CaptureService,
	cancel *services.CancelService,
	refunds *services.RefundService,
	notifications *services.NotificationIngestor,
	reconcile *services.ReconciliationService,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		charges:       charges,
		authorisation: authorisation,
		capture:       capture,
		cancel:        cancel,
		refunds:       refunds,
		notifications: notifications,
		reconcile:     reconcile,
		logger:        logger,
	}
}

// Register mounts every charge and notification route on mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/api/accounts/{accountId}/charges", h.CreateCharge)
	mux.HandleFunc("GET /v1/api/charges/{chargeId}", h.GetCharge)
	mux.HandleFunc("POST /v1/frontend/charges/{chargeId}/authorise", h.Authorise)
	mux.HandleFunc("POST /v1/frontend/charges/{chargeId}/3ds", h.Authorise3DS)
	mux.HandleFunc("POST /v1/api/charges/{chargeId}/cancel", h.Cancel)
	mux.HandleFunc("POST /v1/api/charges/{chargeId}/capture", h.Capture)
	mux.HandleFunc("POST /v1/api/charges/{chargeId}/refunds", h.Refund)
	mux.HandleFunc("POST /v1/admin/charges/{chargeId}/reconcile", h.Reconcile)
	mux.HandleFunc("POST /v1/api/notifications/{provider}", h.Notification)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Healthcheck answers 200 while the database responds to a ping.
func Healthcheck(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			rest.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		rest.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return application.NewInvalidInputError(fmt.Errorf("decode request body: %w", err))
	}
	return nil
}

func pathInt(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		return 0, application.NewInvalidInputError(fmt.Errorf("%s must be an integer: %w", name, err))
	}
	return v, nil
}
