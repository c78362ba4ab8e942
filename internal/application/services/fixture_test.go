package services_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DanielPopoola/chargecore/internal/application/mocks"
	"github.com/DanielPopoola/chargecore/internal/application/services"
	"github.com/DanielPopoola/chargecore/internal/application/services/testhelpers"
	"github.com/DanielPopoola/chargecore/internal/domain"
	"github.com/DanielPopoola/chargecore/internal/policy"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const (
	testAccountID     int64 = 1
	testWebhookSecret       = "s3cret"
	visaCard                = "4242424242424242"
	corporateCard           = "5555555555554444"
)

type fixture struct {
	store    *testhelpers.MemoryStore
	adapter  *mocks.MockGatewayAdapter
	queue    *testhelpers.RecordingQueue
	resolver *testhelpers.StaticResolver
	machine  *services.ChargeStateMachine
	logger   *slog.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := testhelpers.NewMemoryStore()
	store.AddAccount(&domain.GatewayAccount{
		ID:       testAccountID,
		Provider: domain.ProviderSandbox,
		Credentials: map[string]string{
			domain.CredentialWebhookKey: testWebhookSecret,
		},
		CorporateSurcharges: domain.CorporateSurcharges{CreditCard: 250},
	})
	store.AddBin("4242", domain.CardInformation{Brand: "visa", Type: domain.CardTypeDebit})
	store.AddBin("5555", domain.CardInformation{Brand: "master-card", Type: domain.CardTypeCredit, Corporate: true})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	adapter := mocks.NewMockGatewayAdapter(t)

	return &fixture{
		store:   store,
		adapter: adapter,
		queue:   &testhelpers.RecordingQueue{},
		resolver: &testhelpers.StaticResolver{
			GatewayAdapter: adapter,
			Parser: &testhelpers.StubParser{Statuses: map[string]domain.ChargeStatus{
				"AUTHORISED": domain.StatusAuthSuccess,
				"REFUSED":    domain.StatusAuthRejected,
				"CAPTURED":   domain.StatusCaptured,
			}},
		},
		machine: services.NewChargeStateMachine(store, logger),
		logger:  logger,
	}
}

func (f *fixture) charges() *services.ChargeService {
	return services.NewChargeService(f.store, f.store, f.logger)
}

func (f *fixture) orchestrator() *services.AuthorisationOrchestrator {
	return services.NewAuthorisationOrchestrator(f.store, f.store, f.resolver, f.store, f.store, f.queue, f.machine, f.logger)
}

func (f *fixture) processor(t *testing.T, maxRetries int) *services.CaptureProcessor {
	t.Helper()
	retries, err := policy.NewCaptureRetryPolicy("", maxRetries, time.Second, time.Minute)
	require.NoError(t, err)
	return services.NewCaptureProcessor(f.store, f.store, f.resolver, f.queue, f.machine, retries, time.Minute, f.logger)
}

func (f *fixture) ingestor() *services.NotificationIngestor {
	return services.NewNotificationIngestor(f.store, f.store, f.resolver, f.machine, f.logger)
}

func (f *fixture) reconciler() *services.ReconciliationService {
	return services.NewReconciliationService(f.store, f.store, f.resolver, f.machine, f.logger)
}

// seed stores a charge already sitting in status, with a transaction id once authorisation has started.
func (f *fixture) seed(t *testing.T, status domain.ChargeStatus, amount int64, opts ...func(*domain.Charge)) *domain.Charge {
	t.Helper()

	money, err := domain.NewMoney(amount, "GBP")
	require.NoError(t, err)
	charge, err := domain.NewCharge("ch_"+uuid.NewString(), testAccountID, money, "test charge", "ref-1", false)
	require.NoError(t, err)

	charge.Status = status
	if !status.Precedes(domain.StatusAuthSubmitted) {
		require.NoError(t, charge.AssignTransactionID("tx-"+uuid.NewString()))
	}
	for _, opt := range opts {
		opt(charge)
	}
	f.store.Put(charge)
	return charge
}

func (f *fixture) reload(t *testing.T, charge *domain.Charge) *domain.Charge {
	t.Helper()
	c, err := f.store.FindByExternalID(t.Context(), charge.ExternalID)
	require.NoError(t, err)
	return c
}

func delayed(c *domain.Charge) { c.DelayedCapture = true }

func updatedAgo(d time.Duration) func(*domain.Charge) {
	return func(c *domain.Charge) { c.UpdatedAt = time.Now().UTC().Add(-d) }
}

func authoriseCommand(chargeID, card, key string) services.AuthoriseCommand {
	return services.AuthoriseCommand{
		ChargeExternalID: chargeID,
		CardNumber:       card,
		CVC:              "123",
		ExpiryMonth:      12,
		ExpiryYear:       2030,
		CardholderName:   "Jo Bloggs",
		IdempotencyKey:   key,
	}
}

func connectionError() *domain.GatewayError {
	return domain.NewConnectionError(domain.ProviderSandbox, "timeout", nil)
}
