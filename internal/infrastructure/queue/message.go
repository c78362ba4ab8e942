// Package queue carries capture jobs between the services that approve captures and the
// capture workers. Delivery is at-least-once; a job may carry a not-before time.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DanielPopoola/chargecore/internal/domain"
	"github.com/VictoriaMetrics/metrics"
	"github.com/xeipuuv/gojsonschema"
)

var ErrClosed = errors.New("capture queue closed")

// message is the wire form of a capture job.
type message struct {
	ChargeExternalID string    `json:"chargeExternalId"`
	OperationKey     string    `json:"operationKey,omitempty"`
	EnqueuedAt       time.Time `json:"enqueuedAt"`
	NotBefore        time.Time `json:"notBefore"`
}

const messageSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["chargeExternalId"],
	"properties": {
		"chargeExternalId": {"type": "string", "minLength": 1},
		"operationKey": {"type": "string"},
		"enqueuedAt": {"type": "string", "format": "date-time"},
		"notBefore": {"type": "string", "format": "date-time"}
	}
}`

var schema = mustSchema(messageSchema)

func mustSchema(s string) *gojsonschema.Schema {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("compile capture job schema: %v", err))
	}
	return compiled
}

func encode(job domain.CaptureJob, notBefore time.Time) ([]byte, error) {
	enqueuedAt := job.EnqueuedAt
	if enqueuedAt.IsZero() {
		enqueuedAt = time.Now().UTC()
	}
	return json.Marshal(message{
		ChargeExternalID: job.ChargeExternalID,
		OperationKey:     job.OperationKey,
		EnqueuedAt:       enqueuedAt,
		NotBefore:        notBefore.UTC(),
	})
}

// decode validates body against the message contract before unmarshalling it. Only the
// charge id is required.
func decode(body []byte) (domain.CaptureJob, time.Time, error) {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return domain.CaptureJob{}, time.Time{}, fmt.Errorf("validate capture job: %w", err)
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return domain.CaptureJob{}, time.Time{}, fmt.Errorf("invalid capture job: %s", strings.Join(problems, "; "))
	}

	var m message
	if err := json.Unmarshal(body, &m); err != nil {
		return domain.CaptureJob{}, time.Time{}, fmt.Errorf("decode capture job: %w", err)
	}
	// A job without timestamps is due now.
	now := time.Now().UTC()
	if m.EnqueuedAt.IsZero() {
		m.EnqueuedAt = now
	}
	if m.NotBefore.IsZero() {
		m.NotBefore = now
	}
	return domain.CaptureJob{
		ChargeExternalID: m.ChargeExternalID,
		OperationKey:     m.OperationKey,
		EnqueuedAt:       m.EnqueuedAt,
	}, m.NotBefore, nil
}

type counters struct {
	published    *metrics.Counter
	publishError *metrics.Counter
	received     *metrics.Counter
	readError    *metrics.Counter
	invalid      *metrics.Counter
	acked        *metrics.Counter
}

func newCounters(backend string) counters {
	name := func(result string) string {
		return fmt.Sprintf(`capture_queue_total{result=%q,backend=%q}`, result, backend)
	}
	return counters{
		published:    metrics.GetOrCreateCounter(name("published")),
		publishError: metrics.GetOrCreateCounter(name("publish_error")),
		received:     metrics.GetOrCreateCounter(name("received")),
		readError:    metrics.GetOrCreateCounter(name("read_error")),
		invalid:      metrics.GetOrCreateCounter(name("invalid")),
		acked:        metrics.GetOrCreateCounter(name("acked")),
	}
}

// waitUntil blocks until t or until ctx is done.
func waitUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
