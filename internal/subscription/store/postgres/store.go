package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	donationmodels "givebridge/internal/donation/models"
	"givebridge/internal/subscription/models"
	id "givebridge/pkg/domain"
	dErrors "givebridge/pkg/domain-errors"
)

// Store persists subscriptions in PostgreSQL.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const selectSubscription = `
	SELECT id, donor_id, charity_id, amount, frequency, origin, anonymous,
		message, wallet_ref, status, last_billed, next_due, cycle_seq, created_at
	FROM subscriptions`

func (s *Store) Create(ctx context.Context, sub *models.Subscription) error {
	query := `
		INSERT INTO subscriptions (id, donor_id, charity_id, amount, frequency, origin,
			anonymous, message, wallet_ref, status, last_billed, next_due, cycle_seq, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(sub.ID),
		uuid.UUID(sub.DonorID),
		uuid.UUID(sub.CharityID),
		int64(sub.Amount),
		string(sub.Frequency),
		string(sub.Origin),
		sub.Anonymous,
		sub.Message,
		sub.WalletRef,
		string(sub.Status),
		sub.LastBilled,
		sub.NextDue,
		sub.CycleSeq,
		sub.CreatedAt,
	)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "insert subscription")
	}
	return nil
}

// FindForDonor returns the subscription only when it belongs to the donor.
// A foreign subscription reads as not found so existence never leaks.
func (s *Store) FindForDonor(ctx context.Context, donorID id.DonorID, subID id.SubscriptionID) (*models.Subscription, error) {
	row := s.db.QueryRowContext(ctx,
		selectSubscription+` WHERE id = $1 AND donor_id = $2`,
		uuid.UUID(subID), uuid.UUID(donorID),
	)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dErrors.New(dErrors.CodeNotFound, "subscription not found")
	}
	return sub, err
}

// ListActiveByDonor returns the donor's active subscriptions newest-first.
func (s *Store) ListActiveByDonor(ctx context.Context, donorID id.DonorID) ([]*models.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		selectSubscription+` WHERE donor_id = $1 AND status = $2 ORDER BY created_at DESC`,
		uuid.UUID(donorID), string(models.StatusActive),
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "query subscriptions")
	}
	return collect(rows)
}

// ListDue snapshots active subscriptions with next-due at or before now. The
// query runs in a single statement, so it reads one consistent snapshot and
// returns each subscription at most once.
func (s *Store) ListDue(ctx context.Context, now time.Time) ([]*models.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		selectSubscription+` WHERE status = $1 AND next_due <= $2 ORDER BY next_due`,
		string(models.StatusActive), now,
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "query due subscriptions")
	}
	return collect(rows)
}

// Update persists status and billing-advance mutations.
func (s *Store) Update(ctx context.Context, sub *models.Subscription) error {
	query := `
		UPDATE subscriptions
		SET status = $1, last_billed = $2, next_due = $3, cycle_seq = $4
		WHERE id = $5
	`
	res, err := s.db.ExecContext(ctx, query,
		string(sub.Status),
		sub.LastBilled,
		sub.NextDue,
		sub.CycleSeq,
		uuid.UUID(sub.ID),
	)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "update subscription")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "rows affected")
	}
	if affected == 0 {
		return dErrors.New(dErrors.CodeNotFound, "subscription not found")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	var (
		sub        models.Subscription
		rawID      uuid.UUID
		donorID    uuid.UUID
		charityID  uuid.UUID
		amount     int64
		frequency  string
		origin     string
		status     string
		lastBilled sql.NullTime
	)
	err := row.Scan(&rawID, &donorID, &charityID, &amount, &frequency, &origin,
		&sub.Anonymous, &sub.Message, &sub.WalletRef, &status, &lastBilled,
		&sub.NextDue, &sub.CycleSeq, &sub.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "scan subscription")
	}

	sub.ID = id.SubscriptionID(rawID)
	sub.DonorID = id.DonorID(donorID)
	sub.CharityID = id.CharityID(charityID)
	sub.Amount = id.Amount(amount)
	sub.Frequency = models.Frequency(frequency)
	sub.Origin = donationmodels.Origin(origin)
	sub.Status = models.Status(status)
	if lastBilled.Valid {
		t := lastBilled.Time
		sub.LastBilled = &t
	}
	return &sub, nil
}

func collect(rows *sql.Rows) ([]*models.Subscription, error) {
	defer rows.Close()

	var out []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "iterate subscriptions")
	}
	return out, nil
}
