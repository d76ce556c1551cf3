// Package service implements the donation recorder: the single write path of
// the ledger. Everything that turns a confirmed payment fact into a completed
// donation and a balance increment goes through Record.
package service

import (
	"context"
	"fmt"
	"log/slog"

	charitymodels "givebridge/internal/charity/models"
	"givebridge/internal/donation/metrics"
	"givebridge/internal/donation/models"
	id "givebridge/pkg/domain"
	dErrors "givebridge/pkg/domain-errors"
	"givebridge/pkg/platform/audit"
	"givebridge/pkg/requestcontext"
)

// recordAttempts bounds retries on transient ledger write failures.
const recordAttempts = 3

// Store is the donation side of the ledger store.
type Store interface {
	RecordCompleted(ctx context.Context, donation *models.Donation) (*models.Donation, bool, error)
	FindByCorrelationKey(ctx context.Context, key string) (*models.Donation, error)
	ListByCharity(ctx context.Context, charityID id.CharityID) ([]*models.Donation, error)
}

// CharityStore resolves donation targets.
type CharityStore interface {
	FindByID(ctx context.Context, charityID id.CharityID) (*charitymodels.Charity, error)
}

// Recorder validates and persists donations, enforcing idempotency and the
// balance invariant.
type Recorder struct {
	store          Store
	charities      CharityStore
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher audit.Publisher
}

type Option func(*Recorder)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(r *Recorder) {
		r.auditPublisher = publisher
	}
}

func New(store Store, charities CharityStore, opts ...Option) (*Recorder, error) {
	if store == nil {
		return nil, fmt.Errorf("donation store is required")
	}
	if charities == nil {
		return nil, fmt.Errorf("charity store is required")
	}

	r := &Recorder{
		store:     store,
		charities: charities,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RecordRequest carries one confirmed payment fact.
type RecordRequest struct {
	CharityID id.CharityID
	Amount    id.Amount
	Origin    models.Origin
	// CorrelationKey deduplicates retries of the same payment event.
	CorrelationKey *string
	// DonorID is nil for guest donations.
	DonorID        *id.DonorID
	Message        string
	Anonymous      bool
	SubscriptionID *id.SubscriptionID
}

// Record persists the donation and applies its balance effect exactly once.
// A repeated correlation key resolves to the previously recorded donation;
// that is an idempotent success, not an error.
func (r *Recorder) Record(ctx context.Context, req RecordRequest) (*models.Donation, error) {
	if !req.Amount.IsPositive() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "amount must be positive")
	}
	if _, err := models.ParseOrigin(string(req.Origin)); err != nil {
		return nil, err
	}
	if _, err := r.charities.FindByID(ctx, req.CharityID); err != nil {
		return nil, err
	}

	donation := &models.Donation{
		ID:             id.NewDonationID(),
		CorrelationKey: req.CorrelationKey,
		DonorID:        req.DonorID,
		CharityID:      req.CharityID,
		Amount:         req.Amount,
		Origin:         req.Origin,
		Message:        req.Message,
		Anonymous:      req.Anonymous,
		Status:         models.StatusCompleted,
		SubscriptionID: req.SubscriptionID,
		CreatedAt:      requestcontext.Now(ctx),
	}

	stored, created, err := r.recordWithRetry(ctx, donation)
	if err != nil {
		if r.metrics != nil {
			r.metrics.Failed.Inc()
		}
		return nil, err
	}

	if !created {
		// Duplicate correlation: the prior donation already carried the
		// balance effect, so this submission is a no-op success.
		r.logger.InfoContext(ctx, "duplicate correlation key resolved idempotently",
			"donation_id", stored.ID,
			"charity_id", stored.CharityID,
			"correlation_key", keyOrEmpty(req.CorrelationKey),
		)
		if r.metrics != nil {
			r.metrics.Duplicates.Inc()
		}
		audit.Emit(ctx, r.logger, r.auditPublisher, audit.Event{
			Action:         audit.EventDonationDuplicate,
			Timestamp:      requestcontext.Now(ctx),
			CharityID:      stored.CharityID,
			DonationID:     stored.ID,
			Amount:         stored.Amount.String(),
			CorrelationKey: keyOrEmpty(req.CorrelationKey),
			RequestID:      requestcontext.RequestID(ctx),
		})
		return stored, nil
	}

	r.logger.InfoContext(ctx, "donation recorded",
		"donation_id", stored.ID,
		"charity_id", stored.CharityID,
		"amount", stored.Amount.String(),
		"origin", stored.Origin,
	)
	if r.metrics != nil {
		r.metrics.Recorded.WithLabelValues(string(stored.Origin)).Inc()
		r.metrics.RecordedCents.WithLabelValues(string(stored.Origin)).Add(float64(stored.Amount))
	}

	event := audit.Event{
		Action:         audit.EventDonationRecorded,
		Timestamp:      stored.CreatedAt,
		CharityID:      stored.CharityID,
		DonationID:     stored.ID,
		Amount:         stored.Amount.String(),
		CorrelationKey: keyOrEmpty(req.CorrelationKey),
		RequestID:      requestcontext.RequestID(ctx),
	}
	if stored.DonorID != nil {
		event.DonorID = *stored.DonorID
	}
	if stored.SubscriptionID != nil {
		event.SubscriptionID = *stored.SubscriptionID
	}
	audit.Emit(ctx, r.logger, r.auditPublisher, event)

	return stored, nil
}

// recordWithRetry retries transient ledger failures a bounded number of
// times. The store's atomic unit makes a retry safe: either nothing was
// applied, or the correlation key resolves the retry as a duplicate.
func (r *Recorder) recordWithRetry(ctx context.Context, donation *models.Donation) (*models.Donation, bool, error) {
	var lastErr error
	for attempt := 1; attempt <= recordAttempts; attempt++ {
		stored, created, err := r.store.RecordCompleted(ctx, donation)
		if err == nil {
			return stored, created, nil
		}
		if !dErrors.HasCode(err, dErrors.CodeUnavailable) {
			return nil, false, err
		}
		lastErr = err
		r.logger.WarnContext(ctx, "transient ledger write failure",
			"attempt", attempt,
			"donation_id", donation.ID,
			"error", err,
		)
	}
	return nil, false, lastErr
}

// FindByCorrelationKey returns the donation previously recorded under key.
// The billing scheduler uses it to recognize an already-settled cycle before
// asking the payment origin to charge again.
func (r *Recorder) FindByCorrelationKey(ctx context.Context, key string) (*models.Donation, error) {
	return r.store.FindByCorrelationKey(ctx, key)
}

// ListForCharity returns the charity's donations newest-first.
func (r *Recorder) ListForCharity(ctx context.Context, charityID id.CharityID) ([]*models.Donation, error) {
	if _, err := r.charities.FindByID(ctx, charityID); err != nil {
		return nil, err
	}
	return r.store.ListByCharity(ctx, charityID)
}

func keyOrEmpty(key *string) string {
	if key == nil {
		return ""
	}
	return *key
}
