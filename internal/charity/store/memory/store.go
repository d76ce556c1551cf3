package memory

import (
	"context"
	"sync"

	"givebridge/internal/charity/models"
	id "givebridge/pkg/domain"
	dErrors "givebridge/pkg/domain-errors"
)

// Store is the in-memory charity store used in dev and tests.
type Store struct {
	mu        sync.RWMutex
	charities map[id.CharityID]*models.Charity
}

func New() *Store {
	return &Store{charities: make(map[id.CharityID]*models.Charity)}
}

func (s *Store) Create(_ context.Context, charity *models.Charity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.charities[charity.ID]; exists {
		return dErrors.New(dErrors.CodeConflict, "charity already exists")
	}
	clone := *charity
	s.charities[charity.ID] = &clone
	return nil
}

func (s *Store) FindByID(_ context.Context, charityID id.CharityID) (*models.Charity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	charity, exists := s.charities[charityID]
	if !exists {
		return nil, dErrors.New(dErrors.CodeNotFound, "charity not found")
	}
	clone := *charity
	return &clone, nil
}

// AddToBalance applies a delta to the charity's running total. Only the
// donation store calls this, inside its atomic record unit.
func (s *Store) AddToBalance(_ context.Context, charityID id.CharityID, amount id.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	charity, exists := s.charities[charityID]
	if !exists {
		return dErrors.New(dErrors.CodeNotFound, "charity not found")
	}
	charity.TotalReceived += amount
	return nil
}
