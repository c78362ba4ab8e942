package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/DanielPopoola/chargecore/internal/interfaces/rest/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the full HTTP handler: API routes, /metrics and /healthcheck behind
// recovery, request logging and the request timeout.
func NewRouter(h *Handlers, db Pinger, timeout time.Duration, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	h.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthcheck", Healthcheck(db))

	handler := middleware.Recovery(logger)(mux)
	handler = middleware.Timeout(timeout)(handler)
	handler = middleware.Logging(logger)(handler)
	return handler
}
