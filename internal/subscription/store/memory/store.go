package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"givebridge/internal/subscription/models"
	id "givebridge/pkg/domain"
	dErrors "givebridge/pkg/domain-errors"
)

// Store is the in-memory subscription store used in dev and tests.
type Store struct {
	mu            sync.RWMutex
	subscriptions map[id.SubscriptionID]*models.Subscription
}

func New() *Store {
	return &Store{subscriptions: make(map[id.SubscriptionID]*models.Subscription)}
}

func (s *Store) Create(_ context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscriptions[sub.ID]; exists {
		return dErrors.New(dErrors.CodeConflict, "subscription already exists")
	}
	clone := *sub
	s.subscriptions[sub.ID] = &clone
	return nil
}

// FindForDonor returns the subscription only when it belongs to the donor.
// A foreign subscription reads as not found so existence never leaks.
func (s *Store) FindForDonor(_ context.Context, donorID id.DonorID, subID id.SubscriptionID) (*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, exists := s.subscriptions[subID]
	if !exists || sub.DonorID != donorID {
		return nil, dErrors.New(dErrors.CodeNotFound, "subscription not found")
	}
	clone := *sub
	return &clone, nil
}

// ListActiveByDonor returns the donor's active subscriptions newest-first.
func (s *Store) ListActiveByDonor(_ context.Context, donorID id.DonorID) ([]*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Subscription
	for _, sub := range s.subscriptions {
		if sub.DonorID == donorID && sub.Status == models.StatusActive {
			clone := *sub
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// ListDue returns a consistent snapshot of active subscriptions with
// next-due at or before now. Each subscription appears at most once.
func (s *Store) ListDue(_ context.Context, now time.Time) ([]*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Subscription
	for _, sub := range s.subscriptions {
		if sub.Status == models.StatusActive && !sub.NextDue.After(now) {
			clone := *sub
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].NextDue.Before(out[j].NextDue)
	})
	return out, nil
}

// Update replaces the stored subscription.
func (s *Store) Update(_ context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscriptions[sub.ID]; !exists {
		return dErrors.New(dErrors.CodeNotFound, "subscription not found")
	}
	clone := *sub
	s.subscriptions[sub.ID] = &clone
	return nil
}
