package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/DanielPopoola/chargecore/internal/domain"
	"github.com/jackc/pgx/v5"
)

type IdempotencyRepository struct {
	db *DB
}

func NewIdempotencyRepository(db *DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

func (r *IdempotencyRepository) Find(ctx context.Context, accountID int64, key string) (*domain.IdempotencyRecord, error) {
	query := `
		SELECT key, account_id, charge_external_id, request_hash, response, created_at
		FROM idempotency_keys
		WHERE account_id = $1 AND key = $2
	`

	var rec domain.IdempotencyRecord
	var response []byte
	err := r.db.Pool.QueryRow(ctx, query, accountID, key).Scan(
		&rec.Key,
		&rec.AccountID,
		&rec.ChargeExternalID,
		&rec.RequestHash,
		&response,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrIdempotencyNotFound
		}
		return nil, fmt.Errorf("failed to find idempotency key: %w", err)
	}
	rec.Response = response
	return &rec, nil
}

// Save keeps the first record written for a key; later writers get that record back.
func (r *IdempotencyRepository) Save(ctx context.Context, record *domain.IdempotencyRecord) (*domain.IdempotencyRecord, bool, error) {
	query := `
		INSERT INTO idempotency_keys (account_id, key, charge_external_id, request_hash, response, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account_id, key) DO NOTHING
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		record.AccountID,
		record.Key,
		record.ChargeExternalID,
		record.RequestHash,
		[]byte(record.Response),
		record.CreatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to store idempotency key: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return record, true, nil
	}

	existing, err := r.Find(ctx, record.AccountID, record.Key)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}
