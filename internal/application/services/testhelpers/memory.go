package testhelpers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/DanielPopoola/chargecore/internal/domain"
)

// MemoryStore is an in-process stand-in for the Postgres repositories. It honours the
// optimistic version contract, so concurrency tests against it mean something.
type MemoryStore struct {
	mu          sync.Mutex
	nextID      int64
	charges     map[string]*domain.Charge
	events      map[int64][]domain.ChargeEvent
	accounts    map[int64]*domain.GatewayAccount
	idempotency map[string]*domain.IdempotencyRecord
	refunds     map[string][]*domain.Refund
	bins        map[string]domain.CardInformation

	// UpdateHook, when set, runs before every versioned update. Tests use it to inject races.
	UpdateHook func(charge *domain.Charge)
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		charges:     make(map[string]*domain.Charge),
		events:      make(map[int64][]domain.ChargeEvent),
		accounts:    make(map[int64]*domain.GatewayAccount),
		idempotency: make(map[string]*domain.IdempotencyRecord),
		refunds:     make(map[string][]*domain.Refund),
		bins:        make(map[string]domain.CardInformation),
	}
}

func (s *MemoryStore) AddAccount(account *domain.GatewayAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.ID] = account
}

// AddBin registers card information for every card number starting with prefix.
func (s *MemoryStore) AddBin(prefix string, info domain.CardInformation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bins[prefix] = info
}

// Put stores charge as-is, bypassing the state machine. For seeding tests.
func (s *MemoryStore) Put(charge *domain.Charge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if charge.ID == 0 {
		s.nextID++
		charge.ID = s.nextID
	}
	s.charges[charge.ExternalID] = charge.Clone()
}

func (s *MemoryStore) Create(_ context.Context, charge *domain.Charge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	charge.ID = s.nextID
	s.charges[charge.ExternalID] = charge.Clone()
	s.events[charge.ID] = append(s.events[charge.ID], domain.ChargeEvent{
		ID:        int64(len(s.events[charge.ID]) + 1),
		ChargeID:  charge.ID,
		Status:    charge.Status,
		CreatedAt: charge.CreatedAt,
	})
	return nil
}

func (s *MemoryStore) FindByExternalID(_ context.Context, externalID string) (*domain.Charge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.charges[externalID]
	if !ok {
		return nil, domain.NewChargeNotFoundError(externalID)
	}
	return c.Clone(), nil
}

func (s *MemoryStore) FindByTransactionID(_ context.Context, provider domain.Provider, transactionID string) (*domain.Charge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.charges {
		if c.TransactionID() != transactionID {
			continue
		}
		if acc, ok := s.accounts[c.AccountID]; ok && acc.Provider != provider {
			continue
		}
		return c.Clone(), nil
	}
	return nil, domain.NewChargeNotFoundError(transactionID)
}

func (s *MemoryStore) UpdateWithVersion(_ context.Context, charge *domain.Charge, expectedVersion int64, event *domain.ChargeEvent) (bool, error) {
	if s.UpdateHook != nil {
		s.UpdateHook(charge)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.charges[charge.ExternalID]
	if !ok {
		return false, domain.NewChargeNotFoundError(charge.ExternalID)
	}
	if stored.Version != expectedVersion {
		return false, nil
	}

	next := charge.Clone()
	if stored.GatewayTransactionID != nil {
		next.GatewayTransactionID = stored.GatewayTransactionID
	}
	s.charges[charge.ExternalID] = next
	if event != nil {
		e := *event
		e.ID = int64(len(s.events[stored.ID]) + 1)
		e.ChargeID = stored.ID
		s.events[stored.ID] = append(s.events[stored.ID], e)
	}
	return true, nil
}

func (s *MemoryStore) ListEvents(_ context.Context, chargeID int64) ([]domain.ChargeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ChargeEvent(nil), s.events[chargeID]...), nil
}

// EventStatuses lists the statuses recorded for a charge, oldest first.
func (s *MemoryStore) EventStatuses(externalID string) []domain.ChargeStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.charges[externalID]
	if !ok {
		return nil
	}
	var out []domain.ChargeStatus
	for _, e := range s.events[c.ID] {
		out = append(out, e.Status)
	}
	return out
}

func (s *MemoryStore) FindByStatus(_ context.Context, statuses []domain.ChargeStatus, cutoff time.Time, limit int) ([]*domain.Charge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Charge
	for _, c := range s.charges {
		if !hasStatus(statuses, c.Status) || !c.UpdatedAt.Before(cutoff) {
			continue
		}
		out = append(out, c.Clone())
	}
	return limited(out, limit), nil
}

func (s *MemoryStore) FindCaptureCandidates(_ context.Context, cutoff time.Time, limit int) ([]*domain.Charge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Charge
	for _, c := range s.charges {
		if !c.UpdatedAt.Before(cutoff) {
			continue
		}
		switch c.Status {
		case domain.StatusAuthSuccess:
			if c.DelayedCapture {
				continue
			}
		case domain.StatusCaptureApproved, domain.StatusCaptureApprovedRetry:
		default:
			continue
		}
		out = append(out, c.Clone())
	}
	return limited(out, limit), nil
}

func (s *MemoryStore) Find(_ context.Context, accountID int64, key string) (*domain.IdempotencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.idempotency[idempotencyKey(accountID, key)]
	if !ok {
		return nil, domain.ErrIdempotencyNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) Save(_ context.Context, record *domain.IdempotencyRecord) (*domain.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := idempotencyKey(record.AccountID, record.Key)
	if existing, ok := s.idempotency[k]; ok {
		cp := *existing
		return &cp, false, nil
	}
	cp := *record
	s.idempotency[k] = &cp
	return record, true, nil
}

func (s *MemoryStore) FindByID(_ context.Context, id int64) (*domain.GatewayAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, domain.NewAccountNotFoundError(id)
	}
	return acc, nil
}

func (s *MemoryStore) Lookup(_ context.Context, cardNumber string) (*domain.CardInformation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	best := ""
	for prefix := range s.bins {
		if strings.HasPrefix(cardNumber, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return nil, domain.ErrCardInfoNotFound
	}
	info := s.bins[best]
	return &info, nil
}

func (s *MemoryStore) CreateWithinAvailable(_ context.Context, refund *domain.Refund, limit int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var used int64
	for _, r := range s.refunds[refund.ChargeExternalID] {
		if r.Status.Counts() {
			used += r.Amount
		}
	}
	if used+refund.Amount > limit {
		return domain.NewRefundNotAvailableError(refund.Amount, limit-used)
	}
	s.nextID++
	refund.ID = s.nextID
	cp := *refund
	s.refunds[refund.ChargeExternalID] = append(s.refunds[refund.ChargeExternalID], &cp)
	return nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, refund *domain.Refund) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.refunds[refund.ChargeExternalID] {
		if r.ExternalID == refund.ExternalID {
			r.Status = refund.Status
			r.GatewayReference = refund.GatewayReference
			r.UpdatedAt = refund.UpdatedAt
			return nil
		}
	}
	return domain.ErrRefundNotFound
}

func (s *MemoryStore) FindByChargeExternalID(_ context.Context, chargeExternalID string) ([]*domain.Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Refund
	for _, r := range s.refunds[chargeExternalID] {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func idempotencyKey(accountID int64, key string) string {
	return fmt.Sprintf("%d|%s", accountID, key)
}

func hasStatus(statuses []domain.ChargeStatus, s domain.ChargeStatus) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

func limited(charges []*domain.Charge, limit int) []*domain.Charge {
	sort.Slice(charges, func(i, j int) bool { return charges[i].UpdatedAt.Before(charges[j].UpdatedAt) })
	if limit > 0 && len(charges) > limit {
		return charges[:limit]
	}
	return charges
}
