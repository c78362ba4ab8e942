package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/DanielPopoola/chargecore/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxResponseBytes = 1 << 20

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "gateway_request_duration_seconds",
	Help:    "Latency of calls to payment gateways.",
	Buckets: prometheus.DefBuckets,
}, []string{"provider", "operation", "outcome"})

// Response is a gateway reply that arrived in full with a non-5xx status.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client sends requests to one provider. Anything that leaves the outcome unknown
// (transport failure, timeout, 5xx) comes back as a connection error.
type Client struct {
	provider   domain.Provider
	baseURL    string
	httpClient *http.Client
}

func New(provider domain.Provider, baseURL string, timeout time.Duration) *Client {
	return &Client{
		provider: provider,
		baseURL:  baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Provider() domain.Provider {
	return c.provider
}

// NewRequest builds a request against the provider's base URL.
func (c *Client) NewRequest(ctx context.Context, method, path, contentType string, body []byte) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// Do sends req and reads the whole body.
func (c *Client) Do(ctx context.Context, operation string, req *http.Request) (*Response, *domain.GatewayError) {
	ctx, span := otel.Tracer("gateway").Start(ctx, string(c.provider)+"."+operation,
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("gateway.provider", string(c.provider)),
		attribute.String("gateway.operation", operation),
	)

	start := time.Now()
	resp, gwErr := c.do(req.WithContext(ctx))

	outcome := "ok"
	if gwErr != nil {
		outcome = "connection_error"
		span.RecordError(gwErr)
		span.SetStatus(codes.Error, gwErr.Message)
	} else {
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	}
	requestDuration.WithLabelValues(string(c.provider), operation, outcome).Observe(time.Since(start).Seconds())

	return resp, gwErr
}

func (c *Client) do(req *http.Request) (*Response, *domain.GatewayError) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewConnectionError(c.provider, "error making request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, domain.NewConnectionError(c.provider, "error reading response", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, domain.NewConnectionError(c.provider, "gateway returned status "+strconv.Itoa(resp.StatusCode), nil)
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}
