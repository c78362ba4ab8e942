package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DanielPopoola/chargecore/internal/domain"
	"github.com/jackc/pgx/v5"
)

type ChargeRepository struct {
	db *DB
}

func NewChargeRepository(db *DB) *ChargeRepository {
	return &ChargeRepository{db: db}
}

func (r *ChargeRepository) Create(ctx context.Context, charge *domain.Charge) error {
	m := toChargeModel(charge)
	query := `
		INSERT INTO charges (
			external_id, account_id, amount, currency, description, reference, status,
			gateway_transaction_id, auth_mode, delayed_capture, corporate_surcharge,
			card_brand, card_type, three_ds_data, capture_retry_count, capture_attempted_at,
			version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id
	`

	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, query,
			m.ExternalID, m.AccountID, m.Amount, m.Currency, m.Description, m.Reference, m.Status,
			m.GatewayTransactionID, m.AuthMode, m.DelayedCapture, m.CorporateSurcharge,
			m.CardBrand, m.CardType, m.ThreeDSData, m.CaptureRetryCount, m.CaptureAttemptedAt,
			m.Version, m.CreatedAt, m.UpdatedAt,
		).Scan(&charge.ID)
		if err != nil {
			return fmt.Errorf("failed to create charge: %w", err)
		}

		return insertEvent(ctx, tx, &domain.ChargeEvent{
			ChargeID:  charge.ID,
			Status:    charge.Status,
			CreatedAt: charge.CreatedAt,
		})
	})
}

func (r *ChargeRepository) FindByExternalID(ctx context.Context, externalID string) (*domain.Charge, error) {
	query := `SELECT ` + chargeColumns + ` FROM charges WHERE external_id = $1`

	charge, err := scanCharge(r.db.Pool.QueryRow(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewChargeNotFoundError(externalID)
		}
		return nil, fmt.Errorf("failed to find charge: %w", err)
	}
	return charge, nil
}

func (r *ChargeRepository) FindByTransactionID(ctx context.Context, provider domain.Provider, transactionID string) (*domain.Charge, error) {
	query := `
		SELECT ` + prefixed("c", chargeColumns) + `
		FROM charges c
		JOIN gateway_accounts a ON a.id = c.account_id
		WHERE c.gateway_transaction_id = $1 AND a.provider = $2
		LIMIT 1
	`

	charge, err := scanCharge(r.db.Pool.QueryRow(ctx, query, transactionID, string(provider)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewChargeNotFoundError(transactionID)
		}
		return nil, fmt.Errorf("failed to find charge by transaction id: %w", err)
	}
	return charge, nil
}

// UpdateWithVersion never overwrites a stored gateway transaction id.
func (r *ChargeRepository) UpdateWithVersion(ctx context.Context, charge *domain.Charge, expectedVersion int64, event *domain.ChargeEvent) (bool, error) {
	m := toChargeModel(charge)
	query := `
		UPDATE charges SET
			status = $1,
			gateway_transaction_id = COALESCE(gateway_transaction_id, $2),
			auth_mode = $3,
			delayed_capture = $4,
			corporate_surcharge = $5,
			card_brand = $6,
			card_type = $7,
			three_ds_data = $8,
			capture_retry_count = $9,
			capture_attempted_at = $10,
			version = $11,
			updated_at = $12
		WHERE external_id = $13 AND version = $14
		RETURNING id
	`

	updated := false
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx, query,
			m.Status, m.GatewayTransactionID, m.AuthMode, m.DelayedCapture, m.CorporateSurcharge,
			m.CardBrand, m.CardType, m.ThreeDSData, m.CaptureRetryCount, m.CaptureAttemptedAt,
			m.Version, m.UpdatedAt, m.ExternalID, expectedVersion,
		).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return r.ensureExists(ctx, tx, charge.ExternalID)
		}
		if err != nil {
			return fmt.Errorf("failed to update charge: %w", err)
		}

		updated = true
		if event == nil {
			return nil
		}
		e := *event
		e.ChargeID = id
		return insertEvent(ctx, tx, &e)
	})
	if err != nil {
		return false, err
	}
	return updated, nil
}

func (r *ChargeRepository) ensureExists(ctx context.Context, ex Executor, externalID string) error {
	var exists bool
	err := ex.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM charges WHERE external_id = $1)`, externalID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check charge: %w", err)
	}
	if !exists {
		return domain.NewChargeNotFoundError(externalID)
	}
	return nil
}

func (r *ChargeRepository) ListEvents(ctx context.Context, chargeID int64) ([]domain.ChargeEvent, error) {
	query := `
		SELECT id, charge_id, status, created_at, gateway_event_time
		FROM charge_events
		WHERE charge_id = $1
		ORDER BY id
	`

	rows, err := r.db.Pool.Query(ctx, query, chargeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list charge events: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ChargeEvent, error) {
		var m ChargeEventModel
		err := row.Scan(&m.ID, &m.ChargeID, &m.Status, &m.CreatedAt, &m.GatewayEventTime)
		return domain.ChargeEvent{
			ID:               m.ID,
			ChargeID:         m.ChargeID,
			Status:           domain.ChargeStatus(m.Status),
			CreatedAt:        m.CreatedAt,
			GatewayEventTime: m.GatewayEventTime,
		}, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan charge events: %w", err)
	}
	return events, nil
}

func (r *ChargeRepository) FindByStatus(ctx context.Context, statuses []domain.ChargeStatus, cutoff time.Time, limit int) ([]*domain.Charge, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	query := `
		SELECT ` + chargeColumns + `
		FROM charges
		WHERE status = ANY($1) AND updated_at < $2
		ORDER BY updated_at ASC
		LIMIT $3
	`
	return r.collect(ctx, query, names, cutoff, limit)
}

func (r *ChargeRepository) FindCaptureCandidates(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Charge, error) {
	query := `
		SELECT ` + chargeColumns + `
		FROM charges
		WHERE updated_at < $1
		  AND (
			(status = $2 AND NOT delayed_capture)
			OR status IN ($3, $4)
		  )
		ORDER BY updated_at ASC
		LIMIT $5
	`
	return r.collect(ctx, query, cutoff,
		string(domain.StatusAuthSuccess),
		string(domain.StatusCaptureApproved),
		string(domain.StatusCaptureApprovedRetry),
		limit,
	)
}

func (r *ChargeRepository) collect(ctx context.Context, query string, args ...any) ([]*domain.Charge, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query charges: %w", err)
	}

	charges, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Charge, error) {
		return scanCharge(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan charges: %w", err)
	}
	return charges, nil
}

func insertEvent(ctx context.Context, ex Executor, event *domain.ChargeEvent) error {
	query := `
		INSERT INTO charge_events (charge_id, status, created_at, gateway_event_time)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := ex.QueryRow(ctx, query, event.ChargeID, string(event.Status), event.CreatedAt, event.GatewayEventTime).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to append charge event: %w", err)
	}
	return nil
}
