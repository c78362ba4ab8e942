package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/DanielPopoola/chargecore/internal/application"
	"github.com/DanielPopoola/chargecore/internal/domain"
	"github.com/DanielPopoola/chargecore/internal/interfaces/rest"
)

// Notification accepts a provider callback and answers with the body that provider
// expects, so it stops redelivering.
func (h *Handlers) Notification(w http.ResponseWriter, r *http.Request) {
	provider := domain.Provider(r.PathValue("provider"))

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		rest.WriteError(w, application.NewInvalidInputError(fmt.Errorf("read notification: %w", err)))
		return
	}

	ack, err := h.notifications.Ingest(r.Context(), provider, application.NotificationRequest{
		Body:       body,
		Header:     r.Header.Clone(),
		RemoteAddr: r.RemoteAddr,
	})
	if err != nil {
		h.logger.WarnContext(r.Context(), "notification refused",
			"provider", provider,
			"error", err,
		)
		rest.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", ack.ContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(ack.Body)
}
