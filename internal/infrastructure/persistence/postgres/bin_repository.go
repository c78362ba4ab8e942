package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/DanielPopoola/chargecore/internal/domain"
	"github.com/jackc/pgx/v5"
)

// BinRepository resolves card ranges from the card_bins table, longest prefix first.
type BinRepository struct {
	db *DB
}

func NewBinRepository(db *DB) *BinRepository {
	return &BinRepository{db: db}
}

func (r *BinRepository) Lookup(ctx context.Context, cardNumber string) (*domain.CardInformation, error) {
	query := `
		SELECT brand, card_type, corporate, prepaid
		FROM card_bins
		WHERE $1 LIKE prefix || '%'
		ORDER BY length(prefix) DESC
		LIMIT 1
	`

	var info domain.CardInformation
	var cardType string
	err := r.db.Pool.QueryRow(ctx, query, domain.NormaliseCardNumber(cardNumber)).Scan(
		&info.Brand,
		&cardType,
		&info.Corporate,
		&info.Prepaid,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCardInfoNotFound
		}
		return nil, fmt.Errorf("failed to look up card range: %w", err)
	}
	info.Type = domain.CardType(cardType)
	return &info, nil
}
