// Package domain holds the typed identifiers and value types shared across
// the ledger engine. Distinct ID types keep a donor id from ever being passed
// where a charity id belongs; the compiler enforces the boundary.
package domain

import (
	"github.com/google/uuid"

	dErrors "givebridge/pkg/domain-errors"
)

// Typed identifiers for the ledger entities.
type (
	DonorID        uuid.UUID
	CharityID      uuid.UUID
	SubscriptionID uuid.UUID
	DonationID     uuid.UUID
)

// parseUUID enforces the shared invariant: IDs must be valid, non-empty,
// non-nil UUIDs. Violations surface as CodeInvalidInput at trust boundaries.
func parseUUID(raw, kind string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind+" id")
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id must not be nil")
	}
	return id, nil
}

// ParseDonorID parses and validates a donor id.
func ParseDonorID(raw string) (DonorID, error) {
	id, err := parseUUID(raw, "donor")
	return DonorID(id), err
}

// ParseCharityID parses and validates a charity id.
func ParseCharityID(raw string) (CharityID, error) {
	id, err := parseUUID(raw, "charity")
	return CharityID(id), err
}

// ParseSubscriptionID parses and validates a subscription id.
func ParseSubscriptionID(raw string) (SubscriptionID, error) {
	id, err := parseUUID(raw, "subscription")
	return SubscriptionID(id), err
}

// ParseDonationID parses and validates a donation id.
func ParseDonationID(raw string) (DonationID, error) {
	id, err := parseUUID(raw, "donation")
	return DonationID(id), err
}

// NewDonorID generates a fresh donor id.
func NewDonorID() DonorID { return DonorID(uuid.New()) }

// NewCharityID generates a fresh charity id.
func NewCharityID() CharityID { return CharityID(uuid.New()) }

// NewSubscriptionID generates a fresh subscription id.
func NewSubscriptionID() SubscriptionID { return SubscriptionID(uuid.New()) }

// NewDonationID generates a fresh donation id.
func NewDonationID() DonationID { return DonationID(uuid.New()) }

func (id DonorID) String() string        { return uuid.UUID(id).String() }
func (id CharityID) String() string      { return uuid.UUID(id).String() }
func (id SubscriptionID) String() string { return uuid.UUID(id).String() }
func (id DonationID) String() string     { return uuid.UUID(id).String() }

func (id DonorID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id CharityID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id SubscriptionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id DonationID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
