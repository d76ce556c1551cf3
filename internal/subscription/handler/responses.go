package handler

import (
	"time"

	donationhandler "givebridge/internal/donation/handler"
	"givebridge/internal/subscription/models"
	"givebridge/internal/subscription/service"
)

// SubscriptionResponse is the wire shape of a subscription.
type SubscriptionResponse struct {
	ID         string  `json:"id"`
	CharityID  string  `json:"charity_id"`
	Amount     string  `json:"amount"`
	Frequency  string  `json:"frequency"`
	Origin     string  `json:"origin"`
	Anonymous  bool    `json:"anonymous"`
	Message    string  `json:"message,omitempty"`
	WalletRef  string  `json:"wallet_ref,omitempty"`
	Status     string  `json:"status"`
	LastBilled *string `json:"last_billed,omitempty"`
	NextDue    string  `json:"next_due"`
	CreatedAt  string  `json:"created_at"`
}

// CreateResponse pairs the subscription with its bootstrap donation.
type CreateResponse struct {
	Subscription SubscriptionResponse             `json:"subscription"`
	Bootstrap    donationhandler.DonationResponse `json:"bootstrap_donation"`
}

// FromSubscription maps a domain subscription onto the wire.
func FromSubscription(sub *models.Subscription) SubscriptionResponse {
	resp := SubscriptionResponse{
		ID:        sub.ID.String(),
		CharityID: sub.CharityID.String(),
		Amount:    sub.Amount.String(),
		Frequency: string(sub.Frequency),
		Origin:    string(sub.Origin),
		Anonymous: sub.Anonymous,
		Message:   sub.Message,
		WalletRef: sub.WalletRef,
		Status:    string(sub.Status),
		NextDue:   sub.NextDue.Format(time.RFC3339),
		CreatedAt: sub.CreatedAt.Format(time.RFC3339),
	}
	if sub.LastBilled != nil {
		billed := sub.LastBilled.Format(time.RFC3339)
		resp.LastBilled = &billed
	}
	return resp
}

// FromCreateResult maps a creation result onto the wire.
func FromCreateResult(result *service.CreateResult) CreateResponse {
	return CreateResponse{
		Subscription: FromSubscription(result.Subscription),
		Bootstrap:    donationhandler.FromDonation(result.Bootstrap),
	}
}

// FromSubscriptions maps a subscription list onto the wire.
func FromSubscriptions(subs []*models.Subscription) []SubscriptionResponse {
	out := make([]SubscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		out = append(out, FromSubscription(sub))
	}
	return out
}
