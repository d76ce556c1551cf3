// Package audit defines the audit trail emitted by the ledger engine. Every
// money-moving mutation produces an event; emission failures are logged and
// never fail the ledger operation itself.
package audit

import (
	"context"
	"log/slog"
	"time"

	id "givebridge/pkg/domain"
)

// Event is emitted from domain logic to capture key ledger actions. Keep it
// transport-agnostic so publishers can fan out.
type Event struct {
	Action         Action
	Timestamp      time.Time
	DonorID        id.DonorID
	CharityID      id.CharityID
	SubscriptionID id.SubscriptionID
	DonationID     id.DonationID
	Amount         string
	CorrelationKey string
	Reason         string
	// RequestID carries the HTTP correlation id when the action originated
	// from a request rather than the scheduler.
	RequestID string
}

// Action names the audited ledger mutations.
type Action string

const (
	EventDonationRecorded          Action = "donation_recorded"
	EventDonationDuplicate         Action = "donation_duplicate_correlation"
	EventSubscriptionCreated       Action = "subscription_created"
	EventSubscriptionStatusChanged Action = "subscription_status_changed"
	EventBillingCycleFailed        Action = "billing_cycle_failed"
)

// Publisher delivers audit events to a sink (Kafka in production, memory in
// dev and tests).
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// Emit publishes through an optional publisher, logging instead of failing
// when emission is impossible. Ledger writes never roll back on audit loss.
func Emit(ctx context.Context, logger *slog.Logger, publisher Publisher, event Event) {
	if publisher == nil {
		return
	}
	if err := publisher.Emit(ctx, event); err != nil && logger != nil {
		logger.ErrorContext(ctx, "audit emit failed",
			"action", event.Action,
			"error", err,
		)
	}
}
