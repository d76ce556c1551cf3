// Package scheduler drives recurring billing. One tick snapshots every due
// subscription and attempts exactly one billing cycle per subscription,
// isolating failures so a single bad cycle never stalls the batch.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"givebridge/internal/billing/lease"
	"givebridge/internal/billing/metrics"
	"givebridge/internal/billing/origin"
	donationmodels "givebridge/internal/donation/models"
	donationservice "givebridge/internal/donation/service"
	"givebridge/internal/subscription/models"
	id "givebridge/pkg/domain"
	dErrors "givebridge/pkg/domain-errors"
	"givebridge/pkg/platform/audit"
	"givebridge/pkg/requestcontext"
)

const (
	defaultCycleTimeout = 30 * time.Second
	defaultConcurrency  = 8
	// leaseTTL bounds how long a crashed tick can block the next one.
	leaseTTL = 10 * time.Minute
)

// ErrTickInProgress is returned when another tick holds the lease.
var ErrTickInProgress = dErrors.New(dErrors.CodeConflict, "billing tick already in progress")

// SubscriptionStore is the subscription side of the ledger store.
type SubscriptionStore interface {
	ListDue(ctx context.Context, now time.Time) ([]*models.Subscription, error)
	Update(ctx context.Context, sub *models.Subscription) error
}

// DonationLedger is the recorder surface a cycle needs.
type DonationLedger interface {
	Record(ctx context.Context, req donationservice.RecordRequest) (*donationmodels.Donation, error)
	FindByCorrelationKey(ctx context.Context, key string) (*donationmodels.Donation, error)
}

// Scheduler advances due subscriptions once per tick.
type Scheduler struct {
	subscriptions  SubscriptionStore
	ledger         DonationLedger
	charger        origin.Charger
	tickLease      lease.Lease
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher audit.Publisher
	tracer         trace.Tracer
	cycleTimeout   time.Duration
	concurrency    int
}

type Option func(*Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Scheduler) {
		s.auditPublisher = publisher
	}
}

func WithCycleTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.cycleTimeout = d
		}
	}
}

func WithConcurrency(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func New(subscriptions SubscriptionStore, ledger DonationLedger, charger origin.Charger, tickLease lease.Lease, opts ...Option) (*Scheduler, error) {
	if subscriptions == nil {
		return nil, fmt.Errorf("subscription store is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("donation ledger is required")
	}
	if charger == nil {
		return nil, fmt.Errorf("payment origin charger is required")
	}
	if tickLease == nil {
		return nil, fmt.Errorf("tick lease is required")
	}

	s := &Scheduler{
		subscriptions: subscriptions,
		ledger:        ledger,
		charger:       charger,
		tickLease:     tickLease,
		logger:        slog.Default(),
		tracer:        otel.Tracer("givebridge/internal/billing"),
		cycleTimeout:  defaultCycleTimeout,
		concurrency:   defaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CycleOutcome reports one subscription's billing cycle within a tick.
type CycleOutcome struct {
	SubscriptionID id.SubscriptionID
	DonationID     id.DonationID
	// Duplicate marks a cycle whose donation had already been recorded by a
	// previous crashed or retried tick.
	Duplicate bool
	Err       error
}

// TickReport summarizes one tick.
type TickReport struct {
	StartedAt time.Time
	Due       int
	Succeeded int
	Failed    int
	Outcomes  []CycleOutcome
}

// RunTick processes every subscription due at the tick instant. The lease
// guarantees two ticks never overlap; within a tick, subscriptions are
// processed concurrently but each exactly once. The tick itself always
// completes; per-subscription failures land in the report, not in the
// returned error.
func (s *Scheduler) RunTick(ctx context.Context) (*TickReport, error) {
	acquired, err := s.tickLease.TryAcquire(ctx, leaseTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "acquire tick lease")
	}
	if !acquired {
		if s.metrics != nil {
			s.metrics.TicksSkipped.Inc()
		}
		return nil, ErrTickInProgress
	}
	defer func() {
		if err := s.tickLease.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.ErrorContext(ctx, "release tick lease failed", "error", err)
		}
	}()

	now := requestcontext.Now(ctx)
	ctx, span := s.tracer.Start(ctx, "billing.tick")
	defer span.End()

	start := time.Now()
	due, err := s.subscriptions.ListDue(ctx, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list due subscriptions")
	}

	report := &TickReport{
		StartedAt: now,
		Due:       len(due),
		Outcomes:  make([]CycleOutcome, len(due)),
	}
	span.SetAttributes(attribute.Int("billing.due_subscriptions", len(due)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, sub := range due {
		g.Go(func() error {
			report.Outcomes[i] = s.processCycle(gctx, sub, now)
			return nil
		})
	}
	// Cycle failures are captured in outcomes; the group itself never errors.
	_ = g.Wait()

	for _, outcome := range report.Outcomes {
		if outcome.Err != nil {
			report.Failed++
		} else {
			report.Succeeded++
		}
	}

	if s.metrics != nil {
		s.metrics.Ticks.Inc()
		s.metrics.TickDuration.Observe(time.Since(start).Seconds())
	}
	s.logger.InfoContext(ctx, "billing tick completed",
		"due", report.Due,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}

// processCycle attempts exactly one billing cycle for sub. On failure the
// subscription's next-due instant stays put, so the next tick retries.
func (s *Scheduler) processCycle(ctx context.Context, sub *models.Subscription, now time.Time) CycleOutcome {
	ctx, cancel := context.WithTimeout(ctx, s.cycleTimeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "billing.cycle",
		trace.WithAttributes(attribute.String("subscription.id", sub.ID.String())))
	defer span.End()

	outcome := CycleOutcome{SubscriptionID: sub.ID}
	seq := sub.CycleSeq + 1
	cycleKey := sub.CycleKey(seq)

	// A previous tick may have recorded this cycle and crashed before
	// advancing the subscription. The deterministic key makes that visible;
	// skip the origin charge and just advance.
	if existing, err := s.ledger.FindByCorrelationKey(ctx, cycleKey); err == nil {
		outcome.DonationID = existing.ID
		outcome.Duplicate = true
		if err := s.advance(ctx, sub, seq, now); err != nil {
			outcome.Err = err
			s.cycleFailed(ctx, sub, cycleKey, err)
		}
		return outcome
	}

	if err := s.charger.Charge(ctx, origin.ChargeRequest{
		SubscriptionID: sub.ID,
		DonorID:        sub.DonorID,
		CharityID:      sub.CharityID,
		Amount:         sub.Amount,
		Origin:         sub.Origin,
		CycleKey:       cycleKey,
	}); err != nil {
		outcome.Err = dErrors.Wrap(err, dErrors.CodeUnavailable, "payment origin charge failed")
		s.cycleFailed(ctx, sub, cycleKey, outcome.Err)
		return outcome
	}

	donation, err := s.ledger.Record(ctx, donationservice.RecordRequest{
		CharityID:      sub.CharityID,
		Amount:         sub.Amount,
		Origin:         sub.Origin,
		CorrelationKey: &cycleKey,
		DonorID:        &sub.DonorID,
		Message:        sub.Message,
		Anonymous:      sub.Anonymous,
		SubscriptionID: &sub.ID,
	})
	if err != nil {
		outcome.Err = err
		s.cycleFailed(ctx, sub, cycleKey, err)
		return outcome
	}
	outcome.DonationID = donation.ID

	if err := s.advance(ctx, sub, seq, now); err != nil {
		// The donation is recorded; the next tick will resolve the same
		// cycle key as a duplicate and advance without recharging.
		outcome.Err = err
		s.cycleFailed(ctx, sub, cycleKey, err)
	}
	return outcome
}

// advance moves the subscription past the billed cycle. The new anchor grows
// from the previous next-due instant, not from the wall clock, so a pledge
// made on the 31st keeps its calendar rhythm; it is then rolled forward
// until it lies in the future, which keeps the active-subscription invariant
// (next-due never in the past right after a successful cycle) even for
// long-overdue subscriptions.
func (s *Scheduler) advance(ctx context.Context, sub *models.Subscription, seq int64, now time.Time) error {
	next := sub.Frequency.Offset(sub.NextDue)
	for !next.After(now) {
		next = sub.Frequency.Offset(next)
	}

	billed := now
	sub.LastBilled = &billed
	sub.NextDue = next
	sub.CycleSeq = seq
	if err := s.subscriptions.Update(ctx, sub); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "advance subscription")
	}

	if s.metrics != nil {
		s.metrics.CyclesSucceeded.Inc()
	}
	s.logger.InfoContext(ctx, "billing cycle succeeded",
		"subscription_id", sub.ID,
		"cycle_seq", seq,
		"next_due", next,
	)
	return nil
}

func (s *Scheduler) cycleFailed(ctx context.Context, sub *models.Subscription, cycleKey string, err error) {
	if s.metrics != nil {
		s.metrics.CyclesFailed.Inc()
	}
	s.logger.ErrorContext(ctx, "billing cycle failed",
		"subscription_id", sub.ID,
		"charity_id", sub.CharityID,
		"next_due", sub.NextDue,
		"error", err,
	)
	audit.Emit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:         audit.EventBillingCycleFailed,
		Timestamp:      requestcontext.Now(ctx),
		DonorID:        sub.DonorID,
		CharityID:      sub.CharityID,
		SubscriptionID: sub.ID,
		Amount:         sub.Amount.String(),
		CorrelationKey: cycleKey,
		Reason:         err.Error(),
	})
}
