package worker_test

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DanielPopoola/chargecore/internal/application"
	"github.com/DanielPopoola/chargecore/internal/application/mocks"
	"github.com/DanielPopoola/chargecore/internal/application/services"
	"github.com/DanielPopoola/chargecore/internal/application/services/testhelpers"
	"github.com/DanielPopoola/chargecore/internal/domain"
	"github.com/DanielPopoola/chargecore/internal/policy"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testAccountID int64 = 1

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore() *testhelpers.MemoryStore {
	store := testhelpers.NewMemoryStore()
	store.AddAccount(&domain.GatewayAccount{ID: testAccountID, Provider: domain.ProviderSandbox})
	return store
}

func seed(t *testing.T, store *testhelpers.MemoryStore, status domain.ChargeStatus, opts ...func(*domain.Charge)) *domain.Charge {
	t.Helper()
	money, err := domain.NewMoney(1500, "GBP")
	require.NoError(t, err)
	charge, err := domain.NewCharge("ch_"+uuid.NewString(), testAccountID, money, "test", "ref-1", false)
	require.NoError(t, err)
	charge.Status = status
	require.NoError(t, charge.AssignTransactionID("tx-"+uuid.NewString()))
	for _, opt := range opts {
		opt(charge)
	}
	store.Put(charge)
	return charge
}

func idleFor(d time.Duration) func(*domain.Charge) {
	return func(c *domain.Charge) { c.UpdatedAt = time.Now().UTC().Add(-d) }
}

func newProcessor(t *testing.T, store *testhelpers.MemoryStore, adapter *mocks.MockGatewayAdapter, queue application.CaptureQueue) *services.CaptureProcessor {
	t.Helper()
	retries, err := policy.NewCaptureRetryPolicy("", 3, time.Second, time.Minute)
	require.NoError(t, err)
	logger := discardLogger()
	resolver := &testhelpers.StaticResolver{GatewayAdapter: adapter}
	machine := services.NewChargeStateMachine(store, logger)
	return services.NewCaptureProcessor(store, store, resolver, queue, machine, retries, time.Minute, logger)
}

// countingProcessor records how many jobs went through the wrapped processor.
type countingProcessor struct {
	inner     *services.CaptureProcessor
	processed atomic.Int32
}

func (p *countingProcessor) Process(ctx context.Context, job domain.CaptureJob) (services.ProcessResult, error) {
	defer p.processed.Add(1)
	return p.inner.Process(ctx, job)
}

var mockAny = mock.Anything

func newMockAdapter(t *testing.T) *mocks.MockGatewayAdapter {
	return mocks.NewMockGatewayAdapter(t)
}

func staticResolver(adapter application.GatewayAdapter) *testhelpers.StaticResolver {
	return &testhelpers.StaticResolver{GatewayAdapter: adapter}
}
