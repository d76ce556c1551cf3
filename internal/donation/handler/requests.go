package handler

import (
	"givebridge/internal/donation/models"
	id "givebridge/pkg/domain"
	dErrors "givebridge/pkg/domain-errors"
)

// RecordRequest is the wire shape for one-off donations. Amounts travel as
// decimal strings; the ledger stores minor units.
type RecordRequest struct {
	CharityID      string `json:"charity_id"`
	Amount         string `json:"amount"`
	Origin         string `json:"origin"`
	CorrelationKey string `json:"correlation_key,omitempty"`
	Message        string `json:"message,omitempty"`
	Anonymous      bool   `json:"anonymous,omitempty"`

	parsedCharityID id.CharityID
	parsedAmount    id.Amount
	parsedOrigin    models.Origin
}

// Validate parses and checks every field once, at the trust boundary.
func (r *RecordRequest) Validate() error {
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
	origin, err := models.ParseOrigin(r.Origin)
	if err != nil {
		return err
	}

	r.parsedCharityID = charityID
	r.parsedAmount = amount
	r.parsedOrigin = origin
	return nil
}

func (r *RecordRequest) ParsedCharityID() id.CharityID { return r.parsedCharityID }
func (r *RecordRequest) ParsedAmount() id.Amount       { return r.parsedAmount }
func (r *RecordRequest) ParsedOrigin() models.Origin   { return r.parsedOrigin }
