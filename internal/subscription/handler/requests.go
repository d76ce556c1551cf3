package handler

import (
	donationmodels "givebridge/internal/donation/models"
	"givebridge/internal/subscription/models"
	id "givebridge/pkg/domain"
	dErrors "givebridge/pkg/domain-errors"
)

// CreateRequest is the wire shape for a new recurring pledge.
type CreateRequest struct {
	CharityID string `json:"charity_id"`
	Amount    string `json:"amount"`
	Frequency string `json:"frequency"`
	Origin    string `json:"origin"`
	Anonymous bool   `json:"anonymous,omitempty"`
	Message   string `json:"message,omitempty"`
	WalletRef string `json:"wallet_ref,omitempty"`

	parsedCharityID id.CharityID
	parsedAmount    id.Amount
	parsedFrequency models.Frequency
	parsedOrigin    donationmodels.Origin
}

// Validate parses and checks every field once, at the trust boundary.
func (r *CreateRequest) Validate() error {
	charityID, err := id.ParseCharityID(r.CharityID)
	if err != nil {
		return err
	}
	amount, err := id.ParseAmount(r.Amount)
	if err != nil {
		return err
	}
	if !amount.IsPositive() {
		return dErrors.New(dErrors.CodeInvalidInput, "amount must be positive")
	}
	frequency, err := models.ParseFrequency(r.Frequency)
	if err != nil {
		return err
	}
	origin, err := donationmodels.ParseOrigin(r.Origin)
	if err != nil {
		return err
	}

	r.parsedCharityID = charityID
	r.parsedAmount = amount
	r.parsedFrequency = frequency
	r.parsedOrigin = origin
	return nil
}

func (r *CreateRequest) ParsedCharityID() id.CharityID       { return r.parsedCharityID }
func (r *CreateRequest) ParsedAmount() id.Amount             { return r.parsedAmount }
func (r *CreateRequest) ParsedFrequency() models.Frequency   { return r.parsedFrequency }
func (r *CreateRequest) ParsedOrigin() donationmodels.Origin { return r.parsedOrigin }

// UpdateStatusRequest is the wire shape for a status transition.
type UpdateStatusRequest struct {
	Status string `json:"status"`

	parsedStatus models.Status
}

func (r *UpdateStatusRequest) Validate() error {
	status, err := models.ParseStatus(r.Status)
	if err != nil {
		return err
	}
	r.parsedStatus = status
	return nil
}

func (r *UpdateStatusRequest) ParsedStatus() models.Status { return r.parsedStatus }
