// Package worker runs the background loops: capture consumers, the capture poller,
// charge expiry and scheduled reconciliation.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DanielPopoola/chargecore/internal/application"
	"github.com/VictoriaMetrics/metrics"
)

// runEvery calls tick once immediately and then on every interval until ctx is done.
// A failing tick is logged; the loop keeps going.
func runEvery(ctx context.Context, name string, interval time.Duration, logger *slog.Logger, tick func(context.Context) error) {
	logger.Info(name+" started", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runs := metrics.GetOrCreateCounter(fmt.Sprintf(`worker_runs_total{worker=%q,result="ok"}`, name))

	for {
		if err := tick(ctx); err != nil && ctx.Err() == nil {
			category := application.CategorizeError(err)
			failedRuns(name, category).Inc()
			logger.Error(name+" run failed", "category", category, "error", err)
		} else {
			runs.Inc()
		}

		select {
		case <-ctx.Done():
			logger.Info(name + " stopping")
			return
		case <-ticker.C:
		}
	}
}

func failedRuns(name string, category application.ErrorCategory) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`worker_runs_total{worker=%q,result="error",category=%q}`, name, category))
}
