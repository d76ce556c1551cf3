// Package service implements the subscription lifecycle manager: creation
// with its bootstrap charge, donor-scoped queries, and the status state
// machine. Billing advancement lives in the billing scheduler, not here.
package service

import (
	"context"
	"fmt"
	"log/slog"

	charitymodels "givebridge/internal/charity/models"
	donationmodels "givebridge/internal/donation/models"
	donationservice "givebridge/internal/donation/service"
	"givebridge/internal/subscription/models"
	id "givebridge/pkg/domain"
	dErrors "givebridge/pkg/domain-errors"
	"givebridge/pkg/platform/audit"
	"givebridge/pkg/requestcontext"
)

// Store is the subscription side of the ledger store.
type Store interface {
	Create(ctx context.Context, sub *models.Subscription) error
	FindForDonor(ctx context.Context, donorID id.DonorID, subID id.SubscriptionID) (*models.Subscription, error)
	ListActiveByDonor(ctx context.Context, donorID id.DonorID) ([]*models.Subscription, error)
	Update(ctx context.Context, sub *models.Subscription) error
}

// CharityStore resolves donation targets before a subscription is accepted.
type CharityStore interface {
	FindByID(ctx context.Context, charityID id.CharityID) (*charitymodels.Charity, error)
}

// Recorder is the donation recorder used for the bootstrap charge.
type Recorder interface {
	Record(ctx context.Context, req donationservice.RecordRequest) (*donationmodels.Donation, error)
}

// Service manages subscription lifecycles.
type Service struct {
	store          Store
	charities      CharityStore
	recorder       Recorder
	logger         *slog.Logger
	auditPublisher audit.Publisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func New(store Store, charities CharityStore, recorder Recorder, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("subscription store is required")
	}
	if charities == nil {
		return nil, fmt.Errorf("charity store is required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("donation recorder is required")
	}

	svc := &Service{
		store:     store,
		charities: charities,
		recorder:  recorder,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CreateRequest carries a donor's recurring pledge.
type CreateRequest struct {
	DonorID   id.DonorID
	CharityID id.CharityID
	Amount    id.Amount
	Frequency models.Frequency
	Origin    donationmodels.Origin
	Anonymous bool
	Message   string
	WalletRef string
}

// CreateResult pairs the created subscription with its bootstrap donation.
type CreateResult struct {
	Subscription *models.Subscription
	Bootstrap    *donationmodels.Donation
}

// Create validates the pledge, persists the active subscription, and
// synchronously records the bootstrap charge as cycle 0. When the bootstrap
// charge fails the subscription is cancelled rather than left silently
// active without a first donation.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if req.DonorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if !req.Amount.IsPositive() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "amount must be positive")
	}
	if _, err := models.ParseFrequency(string(req.Frequency)); err != nil {
		return nil, err
	}
	if _, err := donationmodels.ParseOrigin(string(req.Origin)); err != nil {
		return nil, err
	}
	if _, err := s.charities.FindByID(ctx, req.CharityID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	sub := &models.Subscription{
		ID:        id.NewSubscriptionID(),
		DonorID:   req.DonorID,
		CharityID: req.CharityID,
		Amount:    req.Amount,
		Frequency: req.Frequency,
		Origin:    req.Origin,
		Anonymous: req.Anonymous,
		Message:   req.Message,
		WalletRef: req.WalletRef,
		Status:    models.StatusActive,
		NextDue:   req.Frequency.Offset(now),
		CycleSeq:  0,
		CreatedAt: now,
	}
	if err := s.store.Create(ctx, sub); err != nil {
		return nil, err
	}

	bootstrapKey := sub.CycleKey(0)
	bootstrap, err := s.recorder.Record(ctx, donationservice.RecordRequest{
		CharityID:      sub.CharityID,
		Amount:         sub.Amount,
		Origin:         sub.Origin,
		CorrelationKey: &bootstrapKey,
		DonorID:        &sub.DonorID,
		Message:        sub.Message,
		Anonymous:      sub.Anonymous,
		SubscriptionID: &sub.ID,
	})
	if err != nil {
		// The pledge is not viable without its first charge. Cancel so the
		// scheduler never picks it up; the record stays for audit.
		sub.Status = models.StatusCancelled
		if updateErr := s.store.Update(ctx, sub); updateErr != nil {
			s.logger.ErrorContext(ctx, "failed to cancel subscription after bootstrap failure",
				"subscription_id", sub.ID,
				"error", updateErr,
			)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "bootstrap charge failed")
	}

	s.logger.InfoContext(ctx, "subscription created",
		"subscription_id", sub.ID,
		"charity_id", sub.CharityID,
		"frequency", sub.Frequency,
		"next_due", sub.NextDue,
	)
	audit.Emit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:         audit.EventSubscriptionCreated,
		Timestamp:      now,
		DonorID:        sub.DonorID,
		CharityID:      sub.CharityID,
		SubscriptionID: sub.ID,
		DonationID:     bootstrap.ID,
		Amount:         sub.Amount.String(),
		RequestID:      requestcontext.RequestID(ctx),
	})

	return &CreateResult{Subscription: sub, Bootstrap: bootstrap}, nil
}

// ListActive returns the donor's active subscriptions newest-first.
func (s *Service) ListActive(ctx context.Context, donorID id.DonorID) ([]*models.Subscription, error) {
	if donorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return s.store.ListActiveByDonor(ctx, donorID)
}

// UpdateStatus applies one edge of the status state machine. Unreachable
// targets (anything out of cancelled, or a no-op self transition) are
// conflicts; a subscription the donor does not own reads as not found. The
// next-due instant is never touched here: resuming a paused subscription
// picks the billing back up at the existing anchor, with no back-billing for
// the paused interval.
func (s *Service) UpdateStatus(ctx context.Context, donorID id.DonorID, subID id.SubscriptionID, target models.Status) (*models.Subscription, error) {
	if donorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if _, err := models.ParseStatus(string(target)); err != nil {
		return nil, err
	}

	sub, err := s.store.FindForDonor(ctx, donorID, subID)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(sub.Status, target) {
		return nil, dErrors.New(dErrors.CodeConflict,
			fmt.Sprintf("cannot transition subscription from %s to %s", sub.Status, target))
	}

	previous := sub.Status
	sub.Status = target
	if err := s.store.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "subscription status changed",
		"subscription_id", sub.ID,
		"from", previous,
		"to", target,
	)
	audit.Emit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:         audit.EventSubscriptionStatusChanged,
		Timestamp:      requestcontext.Now(ctx),
		DonorID:        sub.DonorID,
		CharityID:      sub.CharityID,
		SubscriptionID: sub.ID,
		Reason:         fmt.Sprintf("%s -> %s", previous, target),
		RequestID:      requestcontext.RequestID(ctx),
	})

	return sub, nil
}
