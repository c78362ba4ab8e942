package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/DanielPopoola/chargecore/internal/application/services"
	"github.com/DanielPopoola/chargecore/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func amount(v int64) *int64 { return &v }

func TestReconciliationService_CompareWithGateway(t *testing.T) {
	tests := []struct {
		name          string
		gatewayStatus domain.ChargeStatus
		gatewayAmount int64
		want          services.ReconcileResult
	}{
		{name: "same status and amount", gatewayStatus: domain.StatusCaptured, gatewayAmount: 1000, want: services.ReconcileMatch},
		{name: "amount differs", gatewayStatus: domain.StatusCaptured, gatewayAmount: 999, want: services.ReconcileMismatch},
		{name: "status differs", gatewayStatus: domain.StatusCaptureSubmitted, gatewayAmount: 1000, want: services.ReconcileMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			charge := f.seed(t, domain.StatusCaptured, 1000)

			f.adapter.EXPECT().
				Query(mock.Anything, mock.MatchedBy(func(req domain.QueryRequest) bool {
					return req.TransactionID == charge.TransactionID()
				})).
				Return(domain.QueryResult{Status: tt.gatewayStatus, Amount: amount(tt.gatewayAmount), ProviderStatus: "X"}).
				Once()

			report, err := f.reconciler().Reconcile(context.Background(), charge.ExternalID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, report.Result)
			assert.Equal(t, int64(1000), report.LocalAmount)
			assert.False(t, report.Resolved)
			assert.Equal(t, domain.StatusCaptured, f.reload(t, charge).Status, "mismatch is reported, not corrected")
		})
	}
}

func TestReconciliationService_GatewayUnknown(t *testing.T) {
	f := newFixture(t)
	charge := f.seed(t, domain.StatusCaptured, 1000)

	f.adapter.EXPECT().
		Query(mock.Anything, mock.Anything).
		Return(domain.QueryResult{Err: connectionError()}).
		Once()

	report, err := f.reconciler().Reconcile(context.Background(), charge.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, services.ReconcileGatewayUnknown, report.Result)
	assert.NotEmpty(t, report.Error)
}

func TestReconciliationService_UnmappedGatewayStatusIsUnknown(t *testing.T) {
	f := newFixture(t)
	charge := f.seed(t, domain.StatusCaptured, 1000)

	f.adapter.EXPECT().
		Query(mock.Anything, mock.Anything).
		Return(domain.QueryResult{ProviderStatus: "SETTLED_BY_MERCHANT"}).
		Once()

	report, err := f.reconciler().Reconcile(context.Background(), charge.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, services.ReconcileGatewayUnknown, report.Result)
	assert.Equal(t, "SETTLED_BY_MERCHANT", report.ProviderStatus)
}

func TestReconciliationService_ResolvesStalledAuthorisation(t *testing.T) {
	f := newFixture(t)
	charge := f.seed(t, domain.StatusAuthSubmitted, 1000)

	f.adapter.EXPECT().
		Query(mock.Anything, mock.Anything).
		Return(domain.QueryResult{Status: domain.StatusAuthSuccess, ProviderStatus: "AUTHORISED"}).
		Once()

	report, err := f.reconciler().Reconcile(context.Background(), charge.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, services.ReconcileMismatch, report.Result)
	assert.True(t, report.Resolved)
	assert.Equal(t, domain.StatusAuthSuccess, report.ResolvedStatus)
	assert.Equal(t, domain.StatusAuthSuccess, f.reload(t, charge).Status)
}

func TestReconciliationService_StalledAuthorisationStillAwaiting3DS(t *testing.T) {
	f := newFixture(t)
	charge := f.seed(t, domain.StatusAuthSubmitted, 1000)

	f.adapter.EXPECT().
		Query(mock.Anything, mock.Anything).
		Return(domain.QueryResult{Status: domain.StatusAuth3DSRequired, ProviderStatus: "46"}).
		Once()

	report, err := f.reconciler().Reconcile(context.Background(), charge.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, services.ReconcileMismatch, report.Result)
	assert.True(t, report.Resolved)
	assert.Equal(t, domain.StatusAuth3DSRequired, report.ResolvedStatus)

	stored := f.reload(t, charge)
	assert.Equal(t, domain.StatusAuth3DSRequired, stored.Status)
	assert.True(t, stored.Status.IsCancellable(), "a payer who never returns lets the charge expire")
}

func TestReconciliationService_FindsStalledAuthorisationWithoutTransactionID(t *testing.T) {
	f := newFixture(t)
	charge := f.seed(t, domain.StatusAuthSubmitted, 1000, func(c *domain.Charge) {
		c.GatewayTransactionID = nil
	})

	f.adapter.EXPECT().
		Query(mock.Anything, mock.MatchedBy(func(req domain.QueryRequest) bool {
			return req.TransactionID == "" && req.ChargeID == charge.ExternalID
		})).
		Return(domain.QueryResult{
			Status:         domain.StatusAuthSuccess,
			TransactionID:  "pi_123",
			ProviderStatus: "requires_capture",
			Amount:         amount(1000),
		}).
		Once()

	report, err := f.reconciler().Reconcile(context.Background(), charge.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, services.ReconcileMismatch, report.Result)
	assert.True(t, report.Resolved)

	stored := f.reload(t, charge)
	assert.Equal(t, domain.StatusAuthSuccess, stored.Status)
	assert.Equal(t, "pi_123", stored.TransactionID())
}

func TestReconciliationService_StalledAuthorisationUnknownToGateway(t *testing.T) {
	f := newFixture(t)
	charge := f.seed(t, domain.StatusAuthSubmitted, 1000, func(c *domain.Charge) {
		c.GatewayTransactionID = nil
	})

	f.adapter.EXPECT().
		Query(mock.Anything, mock.Anything).
		Return(domain.QueryResult{ProviderStatus: "not_found"}).
		Once()

	report, err := f.reconciler().Reconcile(context.Background(), charge.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, services.ReconcileGatewayUnknown, report.Result)
	assert.Empty(t, f.reload(t, charge).TransactionID())
}

func TestReconciliationService_DoesNotCorrectOtherMismatches(t *testing.T) {
	f := newFixture(t)
	charge := f.seed(t, domain.StatusCaptureSubmitted, 1000)

	f.adapter.EXPECT().
		Query(mock.Anything, mock.Anything).
		Return(domain.QueryResult{Status: domain.StatusCaptured, ProviderStatus: "CAPTURED"}).
		Once()

	report, err := f.reconciler().Reconcile(context.Background(), charge.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, services.ReconcileMismatch, report.Result)
	assert.False(t, report.Resolved)
	assert.Equal(t, domain.StatusCaptureSubmitted, f.reload(t, charge).Status)
}

func TestReconciliationService_ChargeWithoutTransactionID(t *testing.T) {
	f := newFixture(t)
	charge := f.seed(t, domain.StatusCreated, 1000)

	report, err := f.reconciler().Reconcile(context.Background(), charge.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, services.ReconcileGatewayUnknown, report.Result)
}

func TestReconciliationService_ReconcileStaleOnlyPicksOldCharges(t *testing.T) {
	f := newFixture(t)
	old := f.seed(t, domain.StatusAuthSubmitted, 1000, updatedAgo(time.Hour))
	f.seed(t, domain.StatusAuthSubmitted, 1000)

	f.adapter.EXPECT().
		Query(mock.Anything, mock.MatchedBy(func(req domain.QueryRequest) bool {
			return req.ChargeID == old.ExternalID
		})).
		Return(domain.QueryResult{Status: domain.StatusAuthRejected, ProviderStatus: "REFUSED"}).
		Once()

	reports, err := f.reconciler().ReconcileStale(context.Background(),
		[]domain.ChargeStatus{domain.StatusAuthSubmitted}, 10*time.Minute, 50)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, old.ExternalID, reports[0].ChargeID)
	assert.Equal(t, domain.StatusAuthRejected, f.reload(t, old).Status)
}
