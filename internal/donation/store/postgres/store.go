package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"givebridge/internal/donation/models"
	id "givebridge/pkg/domain"
	dErrors "givebridge/pkg/domain-errors"
)

// Postgres error codes handled explicitly.
const (
	serializationFail   = "40001"
	deadlockDetected    = "40P01"
	foreignKeyViolation = "23503"
)

// Store persists donations in PostgreSQL. The balance increment is expressed
// server-side inside the same transaction as the insert, so concurrent
// donations to one charity serialize on the row instead of racing a
// read-modify-write in the client.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func classify(err error, msg string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case serializationFail, deadlockDetected:
			return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
		case foreignKeyViolation:
			return dErrors.Wrap(err, dErrors.CodeNotFound, "charity not found")
		}
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

// RecordCompleted inserts a completed donation and increments the charity
// balance in one transaction. A correlation-key collision short-circuits to
// the previously recorded donation without touching the balance.
func (s *Store) RecordCompleted(ctx context.Context, donation *models.Donation) (*models.Donation, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeUnavailable, "begin transaction")
	}
	defer tx.Rollback()

	insert := `
		INSERT INTO donations (id, correlation_key, donor_id, charity_id, amount, origin,
			message, anonymous, status, subscription_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (correlation_key) DO NOTHING
	`
	res, err := tx.ExecContext(ctx, insert,
		uuid.UUID(donation.ID),
		donation.CorrelationKey,
		donorIDValue(donation.DonorID),
		uuid.UUID(donation.CharityID),
		int64(donation.Amount),
		string(donation.Origin),
		donation.Message,
		donation.Anonymous,
		string(models.StatusCompleted),
		subscriptionIDValue(donation.SubscriptionID),
		donation.CreatedAt,
	)
	if err != nil {
		return nil, false, classify(err, "insert donation")
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "rows affected")
	}
	if inserted == 0 {
		// Duplicate correlation key; the prior donation already carried the
		// balance effect.
		existing, err := findByCorrelationKeyTx(ctx, tx, *donation.CorrelationKey)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	update := `
		UPDATE charities
		SET total_received = total_received + $1
		WHERE id = $2
	`
	res, err = tx.ExecContext(ctx, update, int64(donation.Amount), uuid.UUID(donation.CharityID))
	if err != nil {
		return nil, false, classify(err, "increment charity balance")
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "rows affected")
	}
	if updated == 0 {
		return nil, false, dErrors.New(dErrors.CodeNotFound, "charity not found")
	}

	if err := tx.Commit(); err != nil {
		return nil, false, classify(err, "commit donation")
	}

	stored := *donation
	stored.Status = models.StatusCompleted
	return &stored, true, nil
}

func (s *Store) FindByCorrelationKey(ctx context.Context, key string) (*models.Donation, error) {
	return scanOne(s.db.QueryRowContext(ctx, selectDonation+` WHERE correlation_key = $1`, key))
}

// ListByCharity returns the charity's donations ordered newest-first.
func (s *Store) ListByCharity(ctx context.Context, charityID id.CharityID) ([]*models.Donation, error) {
	rows, err := s.db.QueryContext(ctx,
		selectDonation+` WHERE charity_id = $1 ORDER BY created_at DESC`,
		uuid.UUID(charityID),
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "query donations")
	}
	defer rows.Close()

	var out []*models.Donation
	for rows.Next() {
		donation, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, donation)
	}
	if err := rows.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "iterate donations")
	}
	return out, nil
}

const selectDonation = `
	SELECT id, correlation_key, donor_id, charity_id, amount, origin,
		message, anonymous, status, subscription_id, created_at
	FROM donations`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOne(row *sql.Row) (*models.Donation, error) {
	donation, err := scanDonation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dErrors.New(dErrors.CodeNotFound, "donation not found")
	}
	return donation, err
}

func scanDonation(row rowScanner) (*models.Donation, error) {
	var (
		donation  models.Donation
		rawID     uuid.UUID
		corrKey   sql.NullString
		donorID   uuid.NullUUID
		charityID uuid.UUID
		amount    int64
		origin    string
		status    string
		subID     uuid.NullUUID
	)
	err := row.Scan(&rawID, &corrKey, &donorID, &charityID, &amount, &origin,
		&donation.Message, &donation.Anonymous, &status, &subID, &donation.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "scan donation")
	}

	donation.ID = id.DonationID(rawID)
	donation.CharityID = id.CharityID(charityID)
	donation.Amount = id.Amount(amount)
	donation.Origin = models.Origin(origin)
	donation.Status = models.Status(status)
	if corrKey.Valid {
		donation.CorrelationKey = &corrKey.String
	}
	if donorID.Valid {
		d := id.DonorID(donorID.UUID)
		donation.DonorID = &d
	}
	if subID.Valid {
		s := id.SubscriptionID(subID.UUID)
		donation.SubscriptionID = &s
	}
	return &donation, nil
}

func findByCorrelationKeyTx(ctx context.Context, tx *sql.Tx, key string) (*models.Donation, error) {
	return scanOne(tx.QueryRowContext(ctx, selectDonation+` WHERE correlation_key = $1`, key))
}

func donorIDValue(donorID *id.DonorID) any {
	if donorID == nil {
		return nil
	}
	return uuid.UUID(*donorID)
}

func subscriptionIDValue(subID *id.SubscriptionID) any {
	if subID == nil {
		return nil
	}
	return uuid.UUID(*subID)
}
