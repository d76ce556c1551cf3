package memory

import (
	"context"
	"sort"
	"sync"

	"givebridge/internal/donation/models"
	id "givebridge/pkg/domain"
	dErrors "givebridge/pkg/domain-errors"
)

// BalanceApplier is the charity-side half of the atomic record unit. The
// in-memory charity store satisfies it.
type BalanceApplier interface {
	AddToBalance(ctx context.Context, charityID id.CharityID, amount id.Amount) error
}

// Store is the in-memory donation ledger used in dev and tests. The single
// mutex spans dedupe check, insert, and balance application so a donation can
// never exist without its balance effect.
type Store struct {
	mu            sync.RWMutex
	donations     map[id.DonationID]*models.Donation
	byCorrelation map[string]id.DonationID
	balances      BalanceApplier
}

func New(balances BalanceApplier) *Store {
	return &Store{
		donations:     make(map[id.DonationID]*models.Donation),
		byCorrelation: make(map[string]id.DonationID),
		balances:      balances,
	}
}

// RecordCompleted inserts a completed donation and applies its amount to the
// charity balance as one atomic unit. When the correlation key already names
// a completed donation, that donation is returned with created=false and the
// balance is untouched.
func (s *Store) RecordCompleted(ctx context.Context, donation *models.Donation) (*models.Donation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if donation.CorrelationKey != nil {
		if existingID, ok := s.byCorrelation[*donation.CorrelationKey]; ok {
			clone := *s.donations[existingID]
			return &clone, false, nil
		}
	}

	clone := *donation
	clone.Status = models.StatusCompleted
	s.donations[clone.ID] = &clone

	if err := s.balances.AddToBalance(ctx, clone.CharityID, clone.Amount); err != nil {
		// Roll back the insert; the unit is all-or-nothing.
		delete(s.donations, clone.ID)
		return nil, false, err
	}
	if clone.CorrelationKey != nil {
		s.byCorrelation[*clone.CorrelationKey] = clone.ID
	}

	result := clone
	return &result, true, nil
}

func (s *Store) FindByCorrelationKey(_ context.Context, key string) (*models.Donation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	donationID, ok := s.byCorrelation[key]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "donation not found")
	}
	clone := *s.donations[donationID]
	return &clone, nil
}

// ListByCharity returns the charity's donations ordered newest-first.
func (s *Store) ListByCharity(_ context.Context, charityID id.CharityID) ([]*models.Donation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Donation
	for _, donation := range s.donations {
		if donation.CharityID == charityID {
			clone := *donation
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
