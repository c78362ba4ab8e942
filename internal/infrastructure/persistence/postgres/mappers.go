package postgres

import (
	"strings"

	"github.com/DanielPopoola/chargecore/internal/domain"
	"github.com/jackc/pgx/v5"
)

const chargeColumns = `
	id, external_id, account_id, amount, currency, description, reference, status,
	gateway_transaction_id, auth_mode, delayed_capture, corporate_surcharge,
	card_brand, card_type, three_ds_data, capture_retry_count, capture_attempted_at,
	version, created_at, updated_at`

func scanCharge(row pgx.Row) (*domain.Charge, error) {
	var m ChargeModel
	err := row.Scan(
		&m.ID, &m.ExternalID, &m.AccountID, &m.Amount, &m.Currency, &m.Description, &m.Reference, &m.Status,
		&m.GatewayTransactionID, &m.AuthMode, &m.DelayedCapture, &m.CorporateSurcharge,
		&m.CardBrand, &m.CardType, &m.ThreeDSData, &m.CaptureRetryCount, &m.CaptureAttemptedAt,
		&m.Version, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return toDomainCharge(m), nil
}

// toDomainCharge maps a row to the domain entity.
func toDomainCharge(m ChargeModel) *domain.Charge {
	return &domain.Charge{
		ID:                   m.ID,
		ExternalID:           m.ExternalID,
		AccountID:            m.AccountID,
		Amount:               m.Amount,
		Currency:             m.Currency,
		Description:          m.Description,
		Reference:            m.Reference,
		Status:               domain.ChargeStatus(m.Status),
		GatewayTransactionID: m.GatewayTransactionID,
		AuthMode:             domain.AuthorisationMode(m.AuthMode),
		DelayedCapture:       m.DelayedCapture,
		CorporateSurcharge:   m.CorporateSurcharge,
		CardBrand:            m.CardBrand,
		CardType:             domain.CardType(m.CardType),
		ThreeDSData:          m.ThreeDSData,
		CaptureRetryCount:    m.CaptureRetryCount,
		CaptureAttemptedAt:   m.CaptureAttemptedAt,
		Version:              m.Version,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

// toChargeModel maps the domain entity to a row.
func toChargeModel(c *domain.Charge) ChargeModel {
	return ChargeModel{
		ID:                   c.ID,
		ExternalID:           c.ExternalID,
		AccountID:            c.AccountID,
		Amount:               c.Amount,
		Currency:             c.Currency,
		Description:          c.Description,
		Reference:            c.Reference,
		Status:               string(c.Status),
		GatewayTransactionID: c.GatewayTransactionID,
		AuthMode:             string(c.AuthMode),
		DelayedCapture:       c.DelayedCapture,
		CorporateSurcharge:   c.CorporateSurcharge,
		CardBrand:            c.CardBrand,
		CardType:             string(c.CardType),
		ThreeDSData:          c.ThreeDSData,
		CaptureRetryCount:    c.CaptureRetryCount,
		CaptureAttemptedAt:   c.CaptureAttemptedAt,
		Version:              c.Version,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}
}

const refundColumns = `
	id, external_id, charge_external_id, amount, reference, status,
	gateway_reference, created_at, updated_at`

func scanRefund(row pgx.Row) (*domain.Refund, error) {
	var m RefundModel
	err := row.Scan(
		&m.ID, &m.ExternalID, &m.ChargeExternalID, &m.Amount, &m.Reference, &m.Status,
		&m.GatewayReference, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &domain.Refund{
		ID:               m.ID,
		ExternalID:       m.ExternalID,
		ChargeExternalID: m.ChargeExternalID,
		Amount:           m.Amount,
		Reference:        m.Reference,
		Status:           domain.RefundStatus(m.Status),
		GatewayReference: m.GatewayReference,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}, nil
}

func toDomainAccount(m AccountModel) *domain.GatewayAccount {
	return &domain.GatewayAccount{
		ID:                  m.ID,
		Provider:            domain.Provider(m.Provider),
		Credentials:         m.Credentials,
		CorporateSurcharges: m.CorporateSurcharges,
		RequiresThreeDS:     m.RequiresThreeDS,
		Live:                m.Live,
		Description:         m.Description,
	}
}

// prefixed qualifies every column in a column list with alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
