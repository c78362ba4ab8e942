package rest

import (
	"time"

	"github.com/DanielPopoola/chargecore/internal/domain"
)

type ChargeResponse struct {
	ChargeID           string              `json:"chargeId"`
	AccountID          int64               `json:"accountId"`
	Amount             int64               `json:"amount"`
	CorporateSurcharge *int64              `json:"corporateSurcharge,omitempty"`
	TotalAmount        int64               `json:"totalAmount"`
	Currency           string              `json:"currency"`
	Description        string              `json:"description"`
	Reference          string              `json:"reference"`
	Status             domain.ChargeStatus `json:"status"`
	TransactionID      string              `json:"transactionId,omitempty"`
	DelayedCapture     bool                `json:"delayedCapture"`
	CardBrand          string              `json:"cardBrand,omitempty"`
	CaptureRetryCount  int                 `json:"captureRetryCount"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
	Events             []EventResponse     `json:"events,omitempty"`
}

type EventResponse struct {
	Status           domain.ChargeStatus `json:"status"`
	CreatedAt        time.Time           `json:"createdAt"`
	GatewayEventTime *time.Time          `json:"gatewayEventTime,omitempty"`
}

type RefundResponse struct {
	RefundID         string              `json:"refundId"`
	ChargeID         string              `json:"chargeId"`
	Amount           int64               `json:"amount"`
	Reference        string              `json:"reference,omitempty"`
	Status           domain.RefundStatus `json:"status"`
	GatewayReference *string             `json:"gatewayReference,omitempty"`
	CreatedAt        time.Time           `json:"createdAt"`
}

func ToChargeResponse(c *domain.Charge, events []domain.ChargeEvent) ChargeResponse {
	resp := ChargeResponse{
		ChargeID:           c.ExternalID,
		AccountID:          c.AccountID,
		Amount:             c.Amount,
		CorporateSurcharge: c.CorporateSurcharge,
		TotalAmount:        c.TotalAmount(),
		Currency:           c.Currency,
		Description:        c.Description,
		Reference:          c.Reference,
		Status:             c.Status,
		TransactionID:      c.TransactionID(),
		DelayedCapture:     c.DelayedCapture,
		CardBrand:          c.CardBrand,
		CaptureRetryCount:  c.CaptureRetryCount,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}

	for _, e := range events {
		resp.Events = append(resp.Events, EventResponse{
			Status:           e.Status,
			CreatedAt:        e.CreatedAt,
			GatewayEventTime: e.GatewayEventTime,
		})
	}
	return resp
}

func ToRefundResponse(r *domain.Refund) RefundResponse {
	return RefundResponse{
		RefundID:         r.ExternalID,
		ChargeID:         r.ChargeExternalID,
		Amount:           r.Amount,
		Reference:        r.Reference,
		Status:           r.Status,
		GatewayReference: r.GatewayReference,
		CreatedAt:        r.CreatedAt,
	}
}
