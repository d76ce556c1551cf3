// Package origin defines the payment-origin adapter boundary. The engine
// never settles funds itself: a Charger confirms that money actually moved,
// and the ledger records that fact.
package origin

import (
	"context"

	donationmodels "givebridge/internal/donation/models"
	id "givebridge/pkg/domain"
)

// ChargeRequest asks the payment origin to settle one billing cycle.
type ChargeRequest struct {
	SubscriptionID id.SubscriptionID
	DonorID        id.DonorID
	CharityID      id.CharityID
	Amount         id.Amount
	Origin         donationmodels.Origin
	// CycleKey is the deterministic correlation key for this cycle; origins
	// that support idempotency keys should pass it through.
	CycleKey string
}

// Charger settles a charge with the payment origin. A non-nil error (or a
// context timeout) means the cycle failed and the subscription stays due.
type Charger interface {
	Charge(ctx context.Context, req ChargeRequest) error
}

// ChargerFunc adapts a function to the Charger interface.
type ChargerFunc func(ctx context.Context, req ChargeRequest) error

func (f ChargerFunc) Charge(ctx context.Context, req ChargeRequest) error {
	return f(ctx, req)
}

// Instant settles immediately. Used for direct on-chain subscriptions whose
// funds already moved with the observed transaction.
type Instant struct{}

func (Instant) Charge(context.Context, ChargeRequest) error { return nil }
