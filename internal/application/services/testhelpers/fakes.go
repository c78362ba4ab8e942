package testhelpers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/DanielPopoola/chargecore/internal/application"
	"github.com/DanielPopoola/chargecore/internal/domain"
)

// StaticResolver serves the same adapter and parser for every provider.
type StaticResolver struct {
	GatewayAdapter application.GatewayAdapter
	Parser         application.NotificationParser
}

func (r *StaticResolver) Adapter(provider domain.Provider) (application.GatewayAdapter, error) {
	if r.GatewayAdapter == nil {
		return nil, fmt.Errorf("no adapter for %s", provider)
	}
	return r.GatewayAdapter, nil
}

func (r *StaticResolver) NotificationParser(provider domain.Provider) (application.NotificationParser, error) {
	if r.Parser == nil {
		return nil, fmt.Errorf("no notification parser for %s", provider)
	}
	return r.Parser, nil
}

// QueuedJob is a job captured by RecordingQueue together with its requested delay.
type QueuedJob struct {
	Job   domain.CaptureJob
	Delay time.Duration
}

// RecordingQueue keeps enqueued jobs in memory so tests can drain them by hand.
type RecordingQueue struct {
	mu   sync.Mutex
	jobs []QueuedJob
}

func (q *RecordingQueue) Enqueue(_ context.Context, job domain.CaptureJob, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, QueuedJob{Job: job, Delay: delay})
	return nil
}

func (q *RecordingQueue) Receive(ctx context.Context) (application.Delivery, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (q *RecordingQueue) Close() error { return nil }

// Drain returns and forgets every job enqueued so far.
func (q *RecordingQueue) Drain() []QueuedJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	jobs := q.jobs
	q.jobs = nil
	return jobs
}

func (q *RecordingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// StubNotification is the JSON body StubParser understands.
type StubNotification struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
}

var ErrStubAuthentication = errors.New("bad notification secret")

// StubParser decodes a JSON array of StubNotification and authenticates by comparing
// the X-Secret header with the account's webhook secret.
type StubParser struct {
	Statuses map[string]domain.ChargeStatus
}

func (p *StubParser) Provider() domain.Provider { return domain.ProviderSandbox }

func (p *StubParser) Parse(req application.NotificationRequest) ([]domain.Notification, error) {
	var body []StubNotification
	if err := json.Unmarshal(req.Body, &body); err != nil {
		return nil, err
	}
	out := make([]domain.Notification, 0, len(body))
	for _, n := range body {
		out = append(out, domain.Notification{TransactionID: n.TransactionID, ProviderStatus: n.Status})
	}
	return out, nil
}

func (p *StubParser) Authenticate(req application.NotificationRequest, account *domain.GatewayAccount) error {
	if req.Header.Get("X-Secret") != account.Credential(domain.CredentialWebhookKey) {
		return ErrStubAuthentication
	}
	return nil
}

func (p *StubParser) MapStatus(providerStatus string) (domain.ChargeStatus, bool) {
	s, ok := p.Statuses[providerStatus]
	return s, ok
}

func (p *StubParser) Acknowledgement() (string, []byte) {
	return "text/plain", []byte("ok")
}
