package models

import (
	"time"

	id "givebridge/pkg/domain"
	dErrors "givebridge/pkg/domain-errors"
)

// Status is the closed donation state enumeration.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Origin is the payment channel through which funds were confirmed.
type Origin string

const (
	// OriginOnChain is a direct on-chain transfer observed by the chain watcher.
	OriginOnChain Origin = "onchain"
	// OriginCard is a card charge converted to crypto by the processor.
	OriginCard Origin = "card"
	// OriginBridge is a third-party fiat-to-crypto bridge settlement.
	OriginBridge Origin = "bridge"
)

// ParseOrigin validates a payment origin tag.
func ParseOrigin(raw string) (Origin, error) {
	switch Origin(raw) {
	case OriginOnChain, OriginCard, OriginBridge:
		return Origin(raw), nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown payment origin")
	}
}

// Donation is one confirmed payment fact in the ledger. Completed donations
// are immutable: amount and charity never change after creation, and each one
// has contributed exactly once to its charity's running total.
type Donation struct {
	ID id.DonationID
	// CorrelationKey deduplicates resubmissions of the same payment event
	// (transaction hash, payment-intent id, or a scheduler cycle key). Unique
	// when present.
	CorrelationKey *string
	// DonorID is nil for guest and anonymous flows.
	DonorID   *id.DonorID
	CharityID id.CharityID
	Amount    id.Amount
	Origin    Origin
	Message   string
	Anonymous bool
	Status    Status
	// SubscriptionID back-references the originating subscription for
	// recurring cycles.
	SubscriptionID *id.SubscriptionID
	CreatedAt      time.Time
}
