package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"givebridge/internal/charity/models"
	id "givebridge/pkg/domain"
	dErrors "givebridge/pkg/domain-errors"
)

// uniqueViolation is the postgres error code for unique constraint breaches.
const uniqueViolation = "23505"

// Store persists charities in PostgreSQL.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, charity *models.Charity) error {
	query := `
		INSERT INTO charities (id, name, wallet_address, total_received, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(charity.ID),
		charity.Name,
		charity.WalletAddress,
		int64(charity.TotalReceived),
		charity.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return dErrors.New(dErrors.CodeConflict, "charity already exists")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "insert charity")
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, charityID id.CharityID) (*models.Charity, error) {
	query := `
		SELECT id, name, wallet_address, total_received, created_at
		FROM charities
		WHERE id = $1
	`
	var (
		charity models.Charity
		rawID   uuid.UUID
		total   int64
	)
	err := s.db.QueryRowContext(ctx, query, uuid.UUID(charityID)).Scan(
		&rawID,
		&charity.Name,
		&charity.WalletAddress,
		&total,
		&charity.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dErrors.New(dErrors.CodeNotFound, "charity not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "query charity")
	}
	charity.ID = id.CharityID(rawID)
	charity.TotalReceived = id.Amount(total)
	return &charity, nil
}
