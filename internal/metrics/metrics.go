// Package metrics pushes the VictoriaMetrics default set (queue and worker counters)
// to a remote endpoint. Gateway call histograms are served separately on /metrics.
package metrics

import (
	"log/slog"

	"github.com/DanielPopoola/chargecore/internal/config"
	"github.com/VictoriaMetrics/metrics"
)

// Setup starts the background push when a push URL is configured.
func Setup(cfg config.MetricsConfig, logger *slog.Logger) {
	if cfg.PushURL == "" {
		return
	}

	err := metrics.InitPush(cfg.PushURL, cfg.PushInterval, cfg.PushLabels, true)
	if err != nil {
		logger.Error("error initializing metrics push", "url", cfg.PushURL, "error", err)
		return
	}
	logger.Info("metrics push started", "url", cfg.PushURL, "interval", cfg.PushInterval)
}
