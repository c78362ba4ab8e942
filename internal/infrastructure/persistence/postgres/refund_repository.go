package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/DanielPopoola/chargecore/internal/domain"
	"github.com/jackc/pgx/v5"
)

type RefundRepository struct {
	db *DB
}

func NewRefundRepository(db *DB) *RefundRepository {
	return &RefundRepository{db: db}
}

// CreateWithinAvailable serialises refunds of one charge on a row lock of that charge.
func (r *RefundRepository) CreateWithinAvailable(ctx context.Context, refund *domain.Refund, limit int64) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		var locked int64
		err := tx.QueryRow(ctx, `SELECT id FROM charges WHERE external_id = $1 FOR UPDATE`, refund.ChargeExternalID).Scan(&locked)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.NewChargeNotFoundError(refund.ChargeExternalID)
			}
			return fmt.Errorf("failed to lock charge: %w", err)
		}

		var used int64
		query := `
			SELECT COALESCE(SUM(amount), 0)
			FROM refunds
			WHERE charge_external_id = $1 AND status <> $2
		`
		if err := tx.QueryRow(ctx, query, refund.ChargeExternalID, string(domain.RefundError)).Scan(&used); err != nil {
			return fmt.Errorf("failed to sum refunds: %w", err)
		}
		if used+refund.Amount > limit {
			return domain.NewRefundNotAvailableError(refund.Amount, limit-used)
		}

		insert := `
			INSERT INTO refunds (external_id, charge_external_id, amount, reference, status, gateway_reference, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`
		err = tx.QueryRow(ctx, insert,
			refund.ExternalID,
			refund.ChargeExternalID,
			refund.Amount,
			refund.Reference,
			string(refund.Status),
			refund.GatewayReference,
			refund.CreatedAt,
			refund.UpdatedAt,
		).Scan(&refund.ID)
		if err != nil {
			return fmt.Errorf("failed to create refund: %w", err)
		}
		return nil
	})
}

func (r *RefundRepository) UpdateStatus(ctx context.Context, refund *domain.Refund) error {
	query := `
		UPDATE refunds
		SET status = $1, gateway_reference = $2, updated_at = $3
		WHERE external_id = $4
	`

	tag, err := r.db.Pool.Exec(ctx, query, string(refund.Status), refund.GatewayReference, refund.UpdatedAt, refund.ExternalID)
	if err != nil {
		return fmt.Errorf("failed to update refund: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRefundNotFound
	}
	return nil
}

func (r *RefundRepository) FindByChargeExternalID(ctx context.Context, chargeExternalID string) ([]*domain.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE charge_external_id = $1 ORDER BY id`

	rows, err := r.db.Pool.Query(ctx, query, chargeExternalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query refunds: %w", err)
	}

	refunds, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Refund, error) {
		return scanRefund(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan refunds: %w", err)
	}
	return refunds, nil
}
