package handler

import (
	"time"

	"givebridge/internal/donation/models"
)

// DonationResponse is the wire shape of a recorded donation.
type DonationResponse struct {
	ID             string  `json:"id"`
	CorrelationKey *string `json:"correlation_key,omitempty"`
	DonorID        *string `json:"donor_id,omitempty"`
	CharityID      string  `json:"charity_id"`
	Amount         string  `json:"amount"`
	Origin         string  `json:"origin"`
	Message        string  `json:"message,omitempty"`
	Anonymous      bool    `json:"anonymous"`
	Status         string  `json:"status"`
	SubscriptionID *string `json:"subscription_id,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

// FromDonation maps a domain donation onto the wire. Anonymous donations
// never expose the donor id, regardless of who asks.
func FromDonation(d *models.Donation) DonationResponse {
	resp := DonationResponse{
		ID:             d.ID.String(),
		CorrelationKey: d.CorrelationKey,
		CharityID:      d.CharityID.String(),
		Amount:         d.Amount.String(),
		Origin:         string(d.Origin),
		Message:        d.Message,
		Anonymous:      d.Anonymous,
		Status:         string(d.Status),
		CreatedAt:      d.CreatedAt.Format(time.RFC3339),
	}
	if d.DonorID != nil && !d.Anonymous {
		donor := d.DonorID.String()
		resp.DonorID = &donor
	}
	if d.SubscriptionID != nil {
		sub := d.SubscriptionID.String()
		resp.SubscriptionID = &sub
	}
	return resp
}

// FromDonations maps a donation list onto the wire.
func FromDonations(donations []*models.Donation) []DonationResponse {
	out := make([]DonationResponse, 0, len(donations))
	for _, d := range donations {
		out = append(out, FromDonation(d))
	}
	return out
}
