package models

import (
	"time"

	id "givebridge/pkg/domain"
)

// Charity is the recipient aggregate. TotalReceived is the running balance of
// completed donations and is mutated only by the donation store's atomic
// record primitive; nothing else writes it.
type Charity struct {
	ID            id.CharityID
	Name          string
	WalletAddress string
	TotalReceived id.Amount
	CreatedAt     time.Time
}
