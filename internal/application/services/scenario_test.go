package services_test

import (
	"context"
	"testing"

	"github.com/DanielPopoola/chargecore/internal/application/services"
	"github.com/DanielPopoola/chargecore/internal/application/services/testhelpers"
	"github.com/DanielPopoola/chargecore/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestChargeLifecycle_AuthoriseCaptureNotify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	charge, err := f.charges().Create(ctx, services.CreateChargeCommand{
		AccountID:   testAccountID,
		Amount:      6500,
		Currency:    "GBP",
		Description: "Lifecycle",
		Reference:   "order-6500",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCreated, charge.Status)

	f.adapter.EXPECT().
		Authorise(mock.Anything, mock.MatchedBy(func(req domain.AuthoriseRequest) bool { return req.Amount == 6500 })).
		Return(domain.AuthoriseOutcome{Kind: domain.AuthoriseAuthorised, TransactionID: "tx-6500"}).
		Once()
	f.adapter.EXPECT().
		Capture(mock.Anything, mock.MatchedBy(func(req domain.CaptureRequest) bool {
			return req.Amount == 6500 && req.TransactionID == "tx-6500"
		})).
		Return(domain.OperationOutcome{Kind: domain.OperationSubmitted}).
		Once()

	resp, err := f.orchestrator().Authorise(ctx, authoriseCommand(charge.ExternalID, visaCard, "idem-6500"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAuthSuccess, resp.Status)

	jobs := f.queue.Drain()
	require.Len(t, jobs, 1)
	result, err := f.processor(t, 3).Process(ctx, jobs[0].Job)
	require.NoError(t, err)
	assert.Equal(t, services.ResultSubmitted, result)
	assert.Equal(t, domain.StatusCaptureSubmitted, f.reload(t, charge).Status)

	_, err = f.ingestor().Ingest(ctx, domain.ProviderSandbox,
		notificationRequest(t, testWebhookSecret, testhelpers.StubNotification{TransactionID: "tx-6500", Status: "CAPTURED"}))
	require.NoError(t, err)

	final := f.reload(t, charge)
	assert.Equal(t, domain.StatusCaptured, final.Status)
	assert.True(t, final.Status.IsTerminal())

	for _, target := range domain.AllStatuses() {
		res, err := f.machine.Transition(ctx, final, target, nil)
		if target == domain.StatusCaptured {
			require.NoError(t, err)
			assert.Equal(t, services.OutcomeUnchanged, res.Outcome)
			continue
		}
		assert.ErrorIs(t, err, domain.ErrIllegalStateTransition)
	}

	assert.Equal(t, []domain.ChargeStatus{
		domain.StatusCreated,
		domain.StatusEnteringDetails,
		domain.StatusAuthReady,
		domain.StatusAuthSubmitted,
		domain.StatusAuthSuccess,
		domain.StatusCaptureApproved,
		domain.StatusCaptureSubmitted,
		domain.StatusCaptured,
	}, f.store.EventStatuses(charge.ExternalID))

	events, err := f.charges().Events(ctx, charge.ExternalID)
	require.NoError(t, err)
	assert.Len(t, events, 8)
}
