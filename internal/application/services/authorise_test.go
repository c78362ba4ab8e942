package services_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/DanielPopoola/chargecore/internal/application"
	"github.com/DanielPopoola/chargecore/internal/application/services"
	"github.com/DanielPopoola/chargecore/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type AuthorisationTestSuite struct {
	suite.Suite
	f            *fixture
	orchestrator *services.AuthorisationOrchestrator
}

func TestAuthorisationSuite(t *testing.T) {
	suite.Run(t, new(AuthorisationTestSuite))
}

func (s *AuthorisationTestSuite) SetupTest() {
	s.f = newFixture(s.T())
	s.orchestrator = s.f.orchestrator()
}

func (s *AuthorisationTestSuite) createCharge(amount int64, delayedCapture bool) *domain.Charge {
	charge, err := s.f.charges().Create(context.Background(), services.CreateChargeCommand{
		AccountID:      testAccountID,
		Amount:         amount,
		Currency:       "gbp",
		Description:    "Test payment",
		Reference:      "ref-123",
		DelayedCapture: delayedCapture,
	})
	s.Require().NoError(err)
	return charge
}

// ============================================================================
// HAPPY PATH TESTS
// ============================================================================

func (s *AuthorisationTestSuite) Test_Authorise_Success_QueuesCapture() {
	t := s.T()
	ctx := context.Background()
	charge := s.createCharge(1000, false)

	s.f.adapter.EXPECT().
		Authorise(mock.Anything, mock.MatchedBy(func(req domain.AuthoriseRequest) bool {
			return req.Amount == 1000 && req.Currency == "GBP" && req.Card.CardNumber == visaCard
		})).
		Return(domain.AuthoriseOutcome{Kind: domain.AuthoriseAuthorised, TransactionID: "tx-1"}).
		Once()

	resp, err := s.orchestrator.Authorise(ctx, authoriseCommand(charge.ExternalID, "4242 4242 4242 4242", ""))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAuthSuccess, resp.Status)
	assert.Equal(t, "tx-1", resp.TransactionID)
	assert.Equal(t, "visa", resp.CardBrand)

	stored := s.f.reload(t, charge)
	assert.Equal(t, domain.StatusAuthSuccess, stored.Status)
	assert.Equal(t, "tx-1", stored.TransactionID())
	assert.Equal(t, []domain.ChargeStatus{
		domain.StatusCreated,
		domain.StatusEnteringDetails,
		domain.StatusAuthReady,
		domain.StatusAuthSubmitted,
		domain.StatusAuthSuccess,
	}, s.f.store.EventStatuses(charge.ExternalID))

	jobs := s.f.queue.Drain()
	require.Len(t, jobs, 1)
	assert.Equal(t, charge.ExternalID, jobs[0].Job.ChargeExternalID)
}

func (s *AuthorisationTestSuite) Test_Authorise_DelayedCaptureIsNotQueued() {
	t := s.T()
	charge := s.createCharge(1000, true)

	s.f.adapter.EXPECT().
		Authorise(mock.Anything, mock.Anything).
		Return(domain.AuthoriseOutcome{Kind: domain.AuthoriseAuthorised, TransactionID: "tx-1"}).
		Once()

	resp, err := s.orchestrator.Authorise(context.Background(), authoriseCommand(charge.ExternalID, visaCard, ""))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAuthSuccess, resp.Status)
	assert.Zero(t, s.f.queue.Len())
}

func (s *AuthorisationTestSuite) Test_Authorise_CorporateSurchargeIsAddedToGatewayAmount() {
	t := s.T()
	charge := s.createCharge(1000, false)

	s.f.adapter.EXPECT().
		Authorise(mock.Anything, mock.MatchedBy(func(req domain.AuthoriseRequest) bool {
			return req.Amount == 1250
		})).
		Return(domain.AuthoriseOutcome{Kind: domain.AuthoriseAuthorised, TransactionID: "tx-1"}).
		Once()

	resp, err := s.orchestrator.Authorise(context.Background(), authoriseCommand(charge.ExternalID, corporateCard, ""))
	require.NoError(t, err)
	assert.Equal(t, int64(1000), resp.Amount)
	require.NotNil(t, resp.CorporateSurcharge)
	assert.Equal(t, int64(250), *resp.CorporateSurcharge)
	assert.Equal(t, int64(1250), resp.TotalAmount)

	stored := s.f.reload(t, charge)
	assert.Equal(t, int64(1000), stored.Amount, "original amount is kept")
	assert.Equal(t, domain.CardTypeCredit, stored.CardType)
}

// ============================================================================
// IDEMPOTENCY TESTS
// ============================================================================

func (s *AuthorisationTestSuite) Test_Authorise_SameKeyReplaysResponse() {
	t := s.T()
	ctx := context.Background()
	charge := s.createCharge(1000, false)

	s.f.adapter.EXPECT().
		Authorise(mock.Anything, mock.Anything).
		Return(domain.AuthoriseOutcome{Kind: domain.AuthoriseAuthorised, TransactionID: "tx-1"}).
		Once()

	cmd := authoriseCommand(charge.ExternalID, visaCard, "idem-1")
	first, err := s.orchestrator.Authorise(ctx, cmd)
	require.NoError(t, err)
	second, err := s.orchestrator.Authorise(ctx, cmd)
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, firstJSON, secondJSON)

	record, err := s.f.store.Find(ctx, testAccountID, "idem-1")
	require.NoError(t, err)
	assert.Equal(t, charge.ExternalID, record.ChargeExternalID)
	assert.Equal(t, string(firstJSON), string(record.Response), "stored response is replayed byte for byte")
}

func (s *AuthorisationTestSuite) Test_Authorise_ConcurrentSameKeyCallsGatewayOnce() {
	t := s.T()
	ctx := context.Background()
	charge := s.createCharge(1000, false)

	s.f.adapter.EXPECT().
		Authorise(mock.Anything, mock.Anything).
		Return(domain.AuthoriseOutcome{Kind: domain.AuthoriseAuthorised, TransactionID: "tx-1"}).
		Once()

	cmd := authoriseCommand(charge.ExternalID, visaCard, "idem-race")
	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.orchestrator.Authorise(ctx, cmd)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err == nil {
			continue
		}
		svcErr, ok := application.IsServiceError(err)
		require.True(t, ok)
		// a loser that reads the charge after the winner moved it but before the
		// response was stored sees it as already authorised
		assert.Contains(t, []string{application.ErrCodeRequestProcessing, application.ErrCodeInvalidState}, svcErr.Code)
	}
	assert.Equal(t, domain.StatusAuthSuccess, s.f.reload(t, charge).Status)
}

func (s *AuthorisationTestSuite) Test_Authorise_SameKeyDifferentRequestIsRejected() {
	t := s.T()
	ctx := context.Background()
	charge := s.createCharge(1000, false)

	s.f.adapter.EXPECT().
		Authorise(mock.Anything, mock.Anything).
		Return(domain.AuthoriseOutcome{Kind: domain.AuthoriseAuthorised, TransactionID: "tx-1"}).
		Once()

	_, err := s.orchestrator.Authorise(ctx, authoriseCommand(charge.ExternalID, visaCard, "idem-2"))
	require.NoError(t, err)

	_, err = s.orchestrator.Authorise(ctx, authoriseCommand(charge.ExternalID, corporateCard, "idem-2"))
	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeIdempotencyMismatch, svcErr.Code)
}

// ============================================================================
// VALIDATION TESTS
// ============================================================================

func (s *AuthorisationTestSuite) Test_Authorise_InvalidLuhnRejectsWithoutGatewayCall() {
	t := s.T()
	charge := s.createCharge(1000, false)

	resp, err := s.orchestrator.Authorise(context.Background(), authoriseCommand(charge.ExternalID, "4242424242424241", "idem-luhn"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAuthRejected, resp.Status)
	assert.Equal(t, services.ReasonInvalidCardNumber, resp.Reason)

	assert.Equal(t, domain.StatusAuthRejected, s.f.reload(t, charge).Status)
	s.f.adapter.AssertNotCalled(t, "Authorise", mock.Anything, mock.Anything)
}

func (s *AuthorisationTestSuite) Test_Authorise_UnknownBinIsNotSupported() {
	t := s.T()
	charge := s.createCharge(1000, false)

	resp, err := s.orchestrator.Authorise(context.Background(), authoriseCommand(charge.ExternalID, "6011111111111117", ""))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAuthRejected, resp.Status)
	assert.Equal(t, services.ReasonCardNotSupported, resp.Reason)
}

func (s *AuthorisationTestSuite) Test_Authorise_MissingFieldsAreInvalidInput() {
	t := s.T()
	charge := s.createCharge(1000, false)

	cmd := authoriseCommand(charge.ExternalID, visaCard, "")
	cmd.CVC = ""
	_, err := s.orchestrator.Authorise(context.Background(), cmd)

	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeInvalidInput, svcErr.Code)
	assert.Equal(t, domain.StatusCreated, s.f.reload(t, charge).Status)
}

// ============================================================================
// GATEWAY FAILURE TESTS
// ============================================================================

func (s *AuthorisationTestSuite) Test_Authorise_ConnectionErrorLeavesChargeSubmitted() {
	t := s.T()
	ctx := context.Background()
	charge := s.createCharge(1000, false)

	s.f.adapter.EXPECT().
		Authorise(mock.Anything, mock.Anything).
		Return(domain.AuthoriseFailed(connectionError())).
		Once()

	resp, err := s.orchestrator.Authorise(ctx, authoriseCommand(charge.ExternalID, visaCard, "idem-timeout"))
	assert.Nil(t, resp)
	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeGatewayUnavailable, svcErr.Code)
	assert.True(t, application.IsRetryable(err))

	assert.Equal(t, domain.StatusAuthSubmitted, s.f.reload(t, charge).Status)

	// a retry must not submit a second authorisation
	_, err = s.orchestrator.Authorise(ctx, authoriseCommand(charge.ExternalID, visaCard, "idem-timeout"))
	svcErr, ok = application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeRequestProcessing, svcErr.Code)
}

func (s *AuthorisationTestSuite) Test_Authorise_PendingOutcomeKeepsGatewayTransactionID() {
	t := s.T()
	ctx := context.Background()
	charge := s.createCharge(1000, false)

	s.f.adapter.EXPECT().
		Authorise(mock.Anything, mock.Anything).
		Return(domain.AuthoriseOutcome{
			Kind:          domain.AuthoriseError,
			TransactionID: "pi_123",
			Err:           connectionError(),
		}).
		Once()

	_, err := s.orchestrator.Authorise(ctx, authoriseCommand(charge.ExternalID, visaCard, ""))
	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeGatewayUnavailable, svcErr.Code)

	stored := s.f.reload(t, charge)
	assert.Equal(t, domain.StatusAuthSubmitted, stored.Status)
	assert.Equal(t, "pi_123", stored.TransactionID())

	s.f.adapter.EXPECT().
		Query(mock.Anything, mock.MatchedBy(func(req domain.QueryRequest) bool {
			return req.TransactionID == "pi_123"
		})).
		Return(domain.QueryResult{Status: domain.StatusAuthSuccess, TransactionID: "pi_123", ProviderStatus: "requires_capture"}).
		Once()

	report, err := s.f.reconciler().Reconcile(ctx, charge.ExternalID)
	require.NoError(t, err)
	assert.True(t, report.Resolved)
	assert.Equal(t, domain.StatusAuthSuccess, s.f.reload(t, charge).Status)
}

func (s *AuthorisationTestSuite) Test_Authorise_ProtocolErrorEndsInAuthError() {
	t := s.T()
	charge := s.createCharge(1000, false)

	s.f.adapter.EXPECT().
		Authorise(mock.Anything, mock.Anything).
		Return(domain.AuthoriseFailed(domain.NewProtocolError(domain.ProviderSandbox, "unparseable", nil))).
		Once()

	resp, err := s.orchestrator.Authorise(context.Background(), authoriseCommand(charge.ExternalID, visaCard, ""))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAuthError, resp.Status)
	assert.Equal(t, services.ReasonGatewayError, resp.Reason)
}

func (s *AuthorisationTestSuite) Test_Authorise_RejectionIsANormalOutcome() {
	t := s.T()
	charge := s.createCharge(1000, false)

	s.f.adapter.EXPECT().
		Authorise(mock.Anything, mock.Anything).
		Return(domain.AuthoriseOutcome{Kind: domain.AuthoriseRejected, TransactionID: "tx-9", Reason: "REFUSED"}).
		Once()

	resp, err := s.orchestrator.Authorise(context.Background(), authoriseCommand(charge.ExternalID, visaCard, ""))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAuthRejected, resp.Status)
	assert.Equal(t, "REFUSED", resp.Reason)
	assert.Zero(t, s.f.queue.Len())
}

// ============================================================================
// 3-D SECURE TESTS
// ============================================================================

func (s *AuthorisationTestSuite) Test_Authorise_ThreeDSRoundTrip() {
	t := s.T()
	ctx := context.Background()
	charge := s.createCharge(1000, false)
	threeDS := &domain.ThreeDSData{IssuerURL: "https://acs.example/challenge", PaRequest: "pareq"}

	s.f.adapter.EXPECT().
		Authorise(mock.Anything, mock.Anything).
		Return(domain.AuthoriseOutcome{Kind: domain.AuthoriseRequires3DS, TransactionID: "tx-3ds", ThreeDS: threeDS}).
		Once()

	resp, err := s.orchestrator.Authorise(ctx, authoriseCommand(charge.ExternalID, visaCard, ""))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAuth3DSRequired, resp.Status)
	require.NotNil(t, resp.ThreeDS)
	assert.Equal(t, "https://acs.example/challenge", resp.ThreeDS.IssuerURL)

	stored := s.f.reload(t, charge)
	require.NotNil(t, stored.ThreeDSData)
	assert.Equal(t, "pareq", stored.ThreeDSData.PaRequest)

	s.f.adapter.EXPECT().
		Authorise3DSContinuation(mock.Anything, mock.MatchedBy(func(req domain.ThreeDSContinuationRequest) bool {
			return req.TransactionID == "tx-3ds" && req.PaResponse == "pares" && req.ThreeDS.PaRequest == "pareq"
		})).
		Return(domain.AuthoriseOutcome{Kind: domain.AuthoriseAuthorised, TransactionID: "tx-3ds"}).
		Once()

	resp, err = s.orchestrator.Authorise3DS(ctx, services.ThreeDSCommand{ChargeExternalID: charge.ExternalID, PaResponse: "pares"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAuthSuccess, resp.Status)
	assert.Equal(t, 1, s.f.queue.Len())
}

func (s *AuthorisationTestSuite) Test_Authorise3DS_RequiresWaitingCharge() {
	t := s.T()
	charge := s.f.seed(t, domain.StatusAuthSuccess, 1000)

	_, err := s.orchestrator.Authorise3DS(context.Background(), services.ThreeDSCommand{ChargeExternalID: charge.ExternalID})
	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeInvalidState, svcErr.Code)
}
