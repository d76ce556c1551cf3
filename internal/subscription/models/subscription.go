package models

import (
	"fmt"
	"time"

	donationmodels "givebridge/internal/donation/models"
	id "givebridge/pkg/domain"
	dErrors "givebridge/pkg/domain-errors"
)

// Status is the closed subscription state enumeration.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
)

// ParseStatus validates a status value.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusActive, StatusPaused, StatusCancelled:
		return Status(raw), nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown subscription status")
	}
}

// transitions is the explicit state machine: cancelled is terminal, so it has
// no outgoing edges.
var transitions = map[Status][]Status{
	StatusActive: {StatusPaused, StatusCancelled},
	StatusPaused: {StatusActive, StatusCancelled},
}

// CanTransition reports whether the edge from → to exists in the table.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Frequency is the billing cadence.
type Frequency string

const (
	FrequencyWeekly    Frequency = "weekly"
	FrequencyBiweekly  Frequency = "biweekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
)

// ParseFrequency validates a billing cadence.
func ParseFrequency(raw string) (Frequency, error) {
	switch Frequency(raw) {
	case FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly, FrequencyQuarterly:
		return Frequency(raw), nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown billing frequency")
	}
}

// Offset advances from by one billing period. Calendar-month arithmetic
// clamps day-of-month overflow to the target month's length (Jan 31 + 1
// month is Feb 28, or Feb 29 in a leap year) instead of Go's AddDate
// normalization, which would roll into March.
//
// Unrecognized frequencies fall back to monthly; the caller is expected to
// have validated the value and to log the fallback as a data-quality signal.
func (f Frequency) Offset(from time.Time) time.Time {
	switch f {
	case FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case FrequencyBiweekly:
		return from.AddDate(0, 0, 14)
	case FrequencyQuarterly:
		return addMonthsClamped(from, 3)
	case FrequencyMonthly:
		return addMonthsClamped(from, 1)
	default:
		return addMonthsClamped(from, 1)
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	// time.Date normalizes month overflow, so this lands on the first of the
	// target month regardless of how many Decembers we cross.
	first := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(first.Year(), first.Month(), t.Location()); day > last {
		day = last
	}
	h, m, s := t.Clock()
	return time.Date(first.Year(), first.Month(), day, h, m, s, t.Nanosecond(), t.Location())
}

// daysIn returns the number of days in the given month.
func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// Subscription is a recurring donation pledge. Cancelled subscriptions are
// retained for audit, never deleted.
type Subscription struct {
	ID        id.SubscriptionID
	DonorID   id.DonorID
	CharityID id.CharityID
	Amount    id.Amount
	Frequency Frequency
	Origin    donationmodels.Origin
	Anonymous bool
	Message   string
	// WalletRef is the donor's wallet or address reference for on-chain
	// cadences; opaque to the engine.
	WalletRef string
	Status    Status
	// LastBilled is nil until the first scheduler cycle; the bootstrap charge
	// at creation does not set it.
	LastBilled *time.Time
	// NextDue is the anchor for the next billing cycle, always derivable from
	// the frequency and the previous anchor.
	NextDue time.Time
	// CycleSeq is the sequence number of the last recorded billing cycle; the
	// bootstrap charge is cycle 0.
	CycleSeq  int64
	CreatedAt time.Time
}

// CycleKey builds the deterministic correlation key for the given cycle
// sequence. Re-running a cycle after a crash reproduces the same key, so the
// donation recorder resolves the retry as a duplicate instead of a double
// charge.
func (s *Subscription) CycleKey(seq int64) string {
	return fmt.Sprintf("sub:%s:cycle:%d", s.ID, seq)
}
