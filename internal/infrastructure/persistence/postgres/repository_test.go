package postgres_test

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DanielPopoola/chargecore/internal/application/services/testhelpers"
	"github.com/DanielPopoola/chargecore/internal/domain"
	"github.com/DanielPopoola/chargecore/internal/infrastructure/persistence/postgres"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type RepositoryTestSuite struct {
	suite.Suite
	testDB      *testhelpers.TestDatabase
	charges     *postgres.ChargeRepository
	accounts    *postgres.AccountRepository
	refunds     *postgres.RefundRepository
	idempotency *postgres.IdempotencyRepository
	bins        *postgres.BinRepository
	account     *domain.GatewayAccount
}

func TestRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	suite.Run(t, new(RepositoryTestSuite))
}

func (suite *RepositoryTestSuite) SetupSuite() {
	suite.testDB = testhelpers.SetupTestDatabase(suite.T())
	suite.charges = postgres.NewChargeRepository(suite.testDB.DB)
	suite.accounts = postgres.NewAccountRepository(suite.testDB.DB)
	suite.refunds = postgres.NewRefundRepository(suite.testDB.DB)
	suite.idempotency = postgres.NewIdempotencyRepository(suite.testDB.DB)
	suite.bins = postgres.NewBinRepository(suite.testDB.DB)
}

func (suite *RepositoryTestSuite) TearDownSuite() {
	suite.testDB.Cleanup(suite.T())
}

func (suite *RepositoryTestSuite) SetupTest() {
	suite.account = &domain.GatewayAccount{
		Provider:            domain.ProviderWorldpay,
		Credentials:         map[string]string{domain.CredentialMerchantID: "MERCHANT1"},
		CorporateSurcharges: domain.CorporateSurcharges{CreditCard: 250},
		RequiresThreeDS:     true,
		Description:         "test account",
	}
	require.NoError(suite.T(), suite.accounts.Create(context.Background(), suite.account))
}

func (suite *RepositoryTestSuite) TearDownTest() {
	suite.testDB.CleanTables(suite.T())
}

func (suite *RepositoryTestSuite) newCharge(status domain.ChargeStatus, updatedAt time.Time) *domain.Charge {
	t := suite.T()
	money, err := domain.NewMoney(1000, "gbp")
	require.NoError(t, err)
	charge, err := domain.NewCharge(uuid.NewString(), suite.account.ID, money, "tea", "ref-1", false)
	require.NoError(t, err)
	charge.Status = status
	charge.UpdatedAt = updatedAt
	require.NoError(t, suite.charges.Create(context.Background(), charge))
	return charge
}

// ============================================================================
// ACCOUNTS AND CARD RANGES
// ============================================================================

func (suite *RepositoryTestSuite) Test_Account_RoundTrip() {
	t := suite.T()

	got, err := suite.accounts.FindByID(context.Background(), suite.account.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderWorldpay, got.Provider)
	assert.Equal(t, "MERCHANT1", got.Credential(domain.CredentialMerchantID))
	assert.Equal(t, int64(250), got.CorporateSurcharges.CreditCard)
	assert.True(t, got.RequiresThreeDS)

	_, err = suite.accounts.FindByID(context.Background(), 9999)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func (suite *RepositoryTestSuite) Test_BinLookup_LongestPrefixWins() {
	t := suite.T()
	ctx := context.Background()

	info, err := suite.bins.Lookup(ctx, "4000 0566 5566 5556")
	require.NoError(t, err)
	assert.Equal(t, "visa", info.Brand)
	assert.Equal(t, domain.CardTypeDebit, info.Type)

	info, err = suite.bins.Lookup(ctx, "4111111111111111")
	require.NoError(t, err)
	assert.Equal(t, domain.CardTypeCredit, info.Type)

	_, err = suite.bins.Lookup(ctx, "9999999999999999")
	assert.ErrorIs(t, err, domain.ErrCardInfoNotFound)
}

// ============================================================================
// CHARGES
// ============================================================================

func (suite *RepositoryTestSuite) Test_Create_RecordsCreatedEvent() {
	t := suite.T()
	ctx := context.Background()

	charge := suite.newCharge(domain.StatusCreated, time.Now().UTC())
	assert.NotZero(t, charge.ID)

	got, err := suite.charges.FindByExternalID(ctx, charge.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, charge.Amount, got.Amount)
	assert.Equal(t, "GBP", got.Currency)
	assert.Equal(t, int64(1), got.Version)
	assert.Nil(t, got.GatewayTransactionID)
	assert.Nil(t, got.ThreeDSData)

	events, err := suite.charges.ListEvents(ctx, charge.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.StatusCreated, events[0].Status)
}

func (suite *RepositoryTestSuite) Test_FindByExternalID_NotFound() {
	_, err := suite.charges.FindByExternalID(context.Background(), "missing")
	assert.ErrorIs(suite.T(), err, domain.ErrChargeNotFound)
}

func (suite *RepositoryTestSuite) Test_UpdateWithVersion_AppliesOnceAndAppendsEvent() {
	t := suite.T()
	ctx := context.Background()
	charge := suite.newCharge(domain.StatusAuthReady, time.Now().UTC())

	next := charge.Clone()
	require.NoError(t, next.AssignTransactionID("order-1"))
	next.Status = domain.StatusAuthSubmitted
	next.Version = 2
	next.ThreeDSData = &domain.ThreeDSData{IssuerURL: "https://acs.example/", PaRequest: "pa"}
	event := &domain.ChargeEvent{ChargeID: charge.ID, Status: domain.StatusAuthSubmitted, CreatedAt: time.Now().UTC()}

	ok, err := suite.charges.UpdateWithVersion(ctx, next, 1, event)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = suite.charges.UpdateWithVersion(ctx, next, 1, event)
	require.NoError(t, err)
	assert.False(t, ok, "stale version must not apply")

	got, err := suite.charges.FindByExternalID(ctx, charge.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAuthSubmitted, got.Status)
	assert.Equal(t, "order-1", got.TransactionID())
	require.NotNil(t, got.ThreeDSData)
	assert.Equal(t, "pa", got.ThreeDSData.PaRequest)

	events, err := suite.charges.ListEvents(ctx, charge.ID)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func (suite *RepositoryTestSuite) Test_UpdateWithVersion_KeepsTransactionID() {
	t := suite.T()
	ctx := context.Background()
	charge := suite.newCharge(domain.StatusAuthReady, time.Now().UTC())

	first := charge.Clone()
	require.NoError(t, first.AssignTransactionID("order-1"))
	first.Version = 2
	ok, err := suite.charges.UpdateWithVersion(ctx, first, 1, nil)
	require.NoError(t, err)
	require.True(t, ok)

	second := first.Clone()
	other := "order-2"
	second.GatewayTransactionID = &other
	second.Version = 3
	ok, err = suite.charges.UpdateWithVersion(ctx, second, 2, nil)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := suite.charges.FindByExternalID(ctx, charge.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, "order-1", got.TransactionID())
}

func (suite *RepositoryTestSuite) Test_UpdateWithVersion_MissingCharge() {
	charge := &domain.Charge{ExternalID: "ghost", Version: 2}
	_, err := suite.charges.UpdateWithVersion(context.Background(), charge, 1, nil)
	assert.ErrorIs(suite.T(), err, domain.ErrChargeNotFound)
}

func (suite *RepositoryTestSuite) Test_UpdateWithVersion_ConcurrentWritersOneWins() {
	t := suite.T()
	ctx := context.Background()
	charge := suite.newCharge(domain.StatusAuthSuccess, time.Now().UTC())

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next := charge.Clone()
			next.Status = domain.StatusCaptureApproved
			next.Version = 2
			ok, err := suite.charges.UpdateWithVersion(ctx, next, 1, &domain.ChargeEvent{
				ChargeID: charge.ID, Status: domain.StatusCaptureApproved, CreatedAt: time.Now().UTC(),
			})
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	events, err := suite.charges.ListEvents(ctx, charge.ID)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func (suite *RepositoryTestSuite) Test_FindByTransactionID_ScopedByProvider() {
	t := suite.T()
	ctx := context.Background()
	charge := suite.newCharge(domain.StatusAuthReady, time.Now().UTC())

	next := charge.Clone()
	require.NoError(t, next.AssignTransactionID("order-9"))
	next.Version = 2
	_, err := suite.charges.UpdateWithVersion(ctx, next, 1, nil)
	require.NoError(t, err)

	got, err := suite.charges.FindByTransactionID(ctx, domain.ProviderWorldpay, "order-9")
	require.NoError(t, err)
	assert.Equal(t, charge.ExternalID, got.ExternalID)

	_, err = suite.charges.FindByTransactionID(ctx, domain.ProviderStripe, "order-9")
	assert.ErrorIs(t, err, domain.ErrChargeNotFound)
}

func (suite *RepositoryTestSuite) Test_FindByStatus_OldestFirstBeforeCutoff() {
	t := suite.T()
	now := time.Now().UTC()

	older := suite.newCharge(domain.StatusAuthSubmitted, now.Add(-2*time.Hour))
	newer := suite.newCharge(domain.StatusAuthSubmitted, now.Add(-1*time.Hour))
	suite.newCharge(domain.StatusAuthSubmitted, now)
	suite.newCharge(domain.StatusCaptured, now.Add(-3*time.Hour))

	got, err := suite.charges.FindByStatus(context.Background(), []domain.ChargeStatus{domain.StatusAuthSubmitted}, now.Add(-time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, older.ExternalID, got[0].ExternalID)
	assert.Equal(t, newer.ExternalID, got[1].ExternalID)
}

func (suite *RepositoryTestSuite) Test_FindCaptureCandidates() {
	t := suite.T()
	past := time.Now().UTC().Add(-time.Hour)

	immediate := suite.newCharge(domain.StatusAuthSuccess, past)
	approved := suite.newCharge(domain.StatusCaptureApproved, past)
	retry := suite.newCharge(domain.StatusCaptureApprovedRetry, past)

	delayed := suite.newCharge(domain.StatusAuthReady, past)
	_, err := suite.testDB.DB.Pool.Exec(context.Background(),
		`UPDATE charges SET status = 'AUTH_SUCCESS', delayed_capture = TRUE WHERE id = $1`, delayed.ID)
	require.NoError(t, err)
	suite.newCharge(domain.StatusCaptured, past)

	got, err := suite.charges.FindCaptureCandidates(context.Background(), time.Now().UTC(), 10)
	require.NoError(t, err)

	var ids []string
	for _, c := range got {
		ids = append(ids, c.ExternalID)
	}
	assert.ElementsMatch(t, []string{immediate.ExternalID, approved.ExternalID, retry.ExternalID}, ids)
}

// ============================================================================
// IDEMPOTENCY
// ============================================================================

func (suite *RepositoryTestSuite) Test_Idempotency_FirstWriterWinsAndBytesPreserved() {
	t := suite.T()
	ctx := context.Background()
	body := `{"chargeId": "ch_1",   "status":"AUTH_SUCCESS"}`

	rec := &domain.IdempotencyRecord{
		Key:              "k1",
		AccountID:        suite.account.ID,
		ChargeExternalID: "ch_1",
		RequestHash:      "h1",
		Response:         json.RawMessage(body),
		CreatedAt:        time.Now().UTC(),
	}
	_, created, err := suite.idempotency.Save(ctx, rec)
	require.NoError(t, err)
	assert.True(t, created)

	dup := *rec
	dup.ChargeExternalID = "ch_2"
	stored, created, err := suite.idempotency.Save(ctx, &dup)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "ch_1", stored.ChargeExternalID)
	assert.Equal(t, body, string(stored.Response))

	_, err = suite.idempotency.Find(ctx, suite.account.ID, "other")
	assert.ErrorIs(t, err, domain.ErrIdempotencyNotFound)
}

// ============================================================================
// REFUNDS
// ============================================================================

func (suite *RepositoryTestSuite) Test_Refunds_ConcurrentRequestsNeverExceedLimit() {
	t := suite.T()
	ctx := context.Background()
	charge := suite.newCharge(domain.StatusCaptured, time.Now().UTC())

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			now := time.Now().UTC()
			err := suite.refunds.CreateWithinAvailable(ctx, &domain.Refund{
				ExternalID:       uuid.NewString(),
				ChargeExternalID: charge.ExternalID,
				Amount:           400,
				Status:           domain.RefundCreated,
				CreatedAt:        now,
				UpdatedAt:        now,
			}, charge.TotalAmount())
			if err == nil {
				accepted.Add(1)
				return
			}
			assert.ErrorIs(t, err, domain.ErrRefundNotAvailable)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(2), accepted.Load())
}

func (suite *RepositoryTestSuite) Test_Refunds_ErroredRefundReleasesAmount() {
	t := suite.T()
	ctx := context.Background()
	charge := suite.newCharge(domain.StatusCaptured, time.Now().UTC())
	now := time.Now().UTC()

	refund := &domain.Refund{
		ExternalID:       uuid.NewString(),
		ChargeExternalID: charge.ExternalID,
		Amount:           1000,
		Status:           domain.RefundCreated,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, suite.refunds.CreateWithinAvailable(ctx, refund, 1000))

	refund.Status = domain.RefundError
	require.NoError(t, suite.refunds.UpdateStatus(ctx, refund))

	again := *refund
	again.ExternalID = uuid.NewString()
	again.Status = domain.RefundCreated
	require.NoError(t, suite.refunds.CreateWithinAvailable(ctx, &again, 1000))

	list, err := suite.refunds.FindByChargeExternalID(ctx, charge.ExternalID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domain.RefundError, list[0].Status)

	missing := *refund
	missing.ExternalID = "missing"
	assert.ErrorIs(t, suite.refunds.UpdateStatus(ctx, &missing), domain.ErrRefundNotFound)
}
