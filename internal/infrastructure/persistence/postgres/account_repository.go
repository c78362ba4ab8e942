package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/DanielPopoola/chargecore/internal/domain"
	"github.com/jackc/pgx/v5"
)

type AccountRepository struct {
	db *DB
}

func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) FindByID(ctx context.Context, id int64) (*domain.GatewayAccount, error) {
	query := `
		SELECT id, provider, credentials, corporate_surcharges, requires_3ds, live, description
		FROM gateway_accounts
		WHERE id = $1
	`

	var m AccountModel
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&m.ID,
		&m.Provider,
		&m.Credentials,
		&m.CorporateSurcharges,
		&m.RequiresThreeDS,
		&m.Live,
		&m.Description,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewAccountNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to find gateway account: %w", err)
	}
	return toDomainAccount(m), nil
}

// Create inserts account and assigns account.ID.
func (r *AccountRepository) Create(ctx context.Context, account *domain.GatewayAccount) error {
	query := `
		INSERT INTO gateway_accounts (provider, credentials, corporate_surcharges, requires_3ds, live, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	credentials := account.Credentials
	if credentials == nil {
		credentials = map[string]string{}
	}
	err := r.db.Pool.QueryRow(ctx, query,
		string(account.Provider),
		credentials,
		account.CorporateSurcharges,
		account.RequiresThreeDS,
		account.Live,
		account.Description,
	).Scan(&account.ID)
	if err != nil {
		return fmt.Errorf("failed to create gateway account: %w", err)
	}
	return nil
}
