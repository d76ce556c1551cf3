package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"givebridge/internal/billing/lease"
	"givebridge/internal/billing/origin"
	charitymodels "givebridge/internal/charity/models"
	charitymemory "givebridge/internal/charity/store/memory"
	donationmodels "givebridge/internal/donation/models"
	donationservice "givebridge/internal/donation/service"
	donationmemory "givebridge/internal/donation/store/memory"
	submodels "givebridge/internal/subscription/models"
	subscriptionmemory "givebridge/internal/subscription/store/memory"
	id "givebridge/pkg/domain"
	dErrors "givebridge/pkg/domain-errors"
	"givebridge/pkg/platform/audit"
	auditmemory "givebridge/pkg/platform/audit/publishers/memory"
	"givebridge/pkg/requestcontext"
)

// =============================================================================
// Billing Scheduler Test Suite
// =============================================================================
// These tests run the scheduler against the real in-memory ledger so that
// cycle correlation, balance effects, and anchor advancement are exercised
// end to end rather than against mocks.

type SchedulerSuite struct {
	suite.Suite
	charities *charitymemory.Store
	donations *donationmemory.Store
	subs      *subscriptionmemory.Store
	audits    *auditmemory.Publisher
	recorder  *donationservice.Recorder

	charityID id.CharityID
}

func TestSchedulerSuite(t *testing.T) {
	suite.Run(t, new(SchedulerSuite))
}

func (s *SchedulerSuite) SetupTest() {
	s.charities = charitymemory.New()
	s.donations = donationmemory.New(s.charities)
	s.subs = subscriptionmemory.New()
	s.audits = auditmemory.New()

	var err error
	s.recorder, err = donationservice.New(s.donations, s.charities)
	s.Require().NoError(err)

	s.charityID = id.NewCharityID()
	s.Require().NoError(s.charities.Create(context.Background(), &charitymodels.Charity{
		ID:            s.charityID,
		Name:          "Shelter Alliance",
		WalletAddress: "0x789abc",
		CreatedAt:     time.Now().UTC(),
	}))
}

func (s *SchedulerSuite) newScheduler(charger origin.Charger) *Scheduler {
	sched, err := New(s.subs, s.recorder, charger, lease.NewInProcess(),
		WithAuditPublisher(s.audits))
	s.Require().NoError(err)
	return sched
}

// seedSubscription stores an active subscription billed through cycleSeq with
// the given next-due anchor.
func (s *SchedulerSuite) seedSubscription(freq submodels.Frequency, nextDue time.Time, cycleSeq int64) *submodels.Subscription {
	sub := &submodels.Subscription{
		ID:        id.NewSubscriptionID(),
		DonorID:   id.NewDonorID(),
		CharityID: s.charityID,
		Amount:    1000,
		Frequency: freq,
		Origin:    donationmodels.OriginCard,
		Status:    submodels.StatusActive,
		NextDue:   nextDue,
		CycleSeq:  cycleSeq,
		CreatedAt: nextDue.AddDate(0, -1, 0),
	}
	s.Require().NoError(s.subs.Create(context.Background(), sub))
	return sub
}

func (s *SchedulerSuite) balance() id.Amount {
	charity, err := s.charities.FindByID(context.Background(), s.charityID)
	s.Require().NoError(err)
	return charity.TotalReceived
}

func (s *SchedulerSuite) findSub(sub *submodels.Subscription) *submodels.Subscription {
	stored, err := s.subs.FindForDonor(context.Background(), sub.DonorID, sub.ID)
	s.Require().NoError(err)
	return stored
}

func tickAt(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// Constructor Tests
// =============================================================================

func (s *SchedulerSuite) TestNew() {
	s.Run("nil subscription store returns error", func() {
		_, err := New(nil, s.recorder, origin.Instant{}, lease.NewInProcess())
		s.Error(err)
	})

	s.Run("nil ledger returns error", func() {
		_, err := New(s.subs, nil, origin.Instant{}, lease.NewInProcess())
		s.Error(err)
	})

	s.Run("nil charger returns error", func() {
		_, err := New(s.subs, s.recorder, nil, lease.NewInProcess())
		s.Error(err)
	})

	s.Run("nil lease returns error", func() {
		_, err := New(s.subs, s.recorder, origin.Instant{}, nil)
		s.Error(err)
	})
}

// =============================================================================
// RunTick Tests
// =============================================================================

func (s *SchedulerSuite) TestRunTick_BillsDueSubscriptions() {
	now := date(2024, time.March, 1)
	sched := s.newScheduler(origin.Instant{})

	due := s.seedSubscription(submodels.FrequencyMonthly, date(2024, time.February, 29), 0)
	notDue := s.seedSubscription(submodels.FrequencyMonthly, date(2024, time.March, 15), 0)

	report, err := sched.RunTick(tickAt(now))
	s.Require().NoError(err)
	s.Equal(1, report.Due)
	s.Equal(1, report.Succeeded)
	s.Equal(0, report.Failed)

	s.Run("billed subscription advances", func() {
		stored := s.findSub(due)
		s.Equal(int64(1), stored.CycleSeq)
		s.Require().NotNil(stored.LastBilled)
		s.Equal(now, *stored.LastBilled)
		// The anchor grows from the previous next-due, not the wall clock
		s.Equal(date(2024, time.March, 29), stored.NextDue)
	})

	s.Run("not-due subscription untouched", func() {
		stored := s.findSub(notDue)
		s.Equal(int64(0), stored.CycleSeq)
		s.Nil(stored.LastBilled)
	})

	s.Run("donation recorded with cycle key", func() {
		s.Equal(id.Amount(1000), s.balance())
		donation, err := s.recorder.FindByCorrelationKey(context.Background(), due.CycleKey(1))
		s.Require().NoError(err)
		s.Require().NotNil(donation.SubscriptionID)
		s.Equal(due.ID, *donation.SubscriptionID)
	})
}

func (s *SchedulerSuite) TestRunTick_SkipsInactive() {
	now := date(2024, time.March, 1)
	sched := s.newScheduler(origin.Instant{})

	paused := s.seedSubscription(submodels.FrequencyMonthly, date(2024, time.February, 1), 0)
	paused.Status = submodels.StatusPaused
	s.Require().NoError(s.subs.Update(context.Background(), paused))

	cancelled := s.seedSubscription(submodels.FrequencyMonthly, date(2024, time.February, 1), 0)
	cancelled.Status = submodels.StatusCancelled
	s.Require().NoError(s.subs.Update(context.Background(), cancelled))

	report, err := sched.RunTick(tickAt(now))
	s.Require().NoError(err)
	s.Equal(0, report.Due)
	s.Equal(id.Amount(0), s.balance())
}

func (s *SchedulerSuite) TestRunTick_DueAtExactInstant() {
	now := date(2024, time.March, 1)
	sched := s.newScheduler(origin.Instant{})

	s.seedSubscription(submodels.FrequencyWeekly, now, 3)

	report, err := sched.RunTick(tickAt(now))
	s.Require().NoError(err)
	s.Equal(1, report.Due, "next-due equal to now is due")
	s.Equal(1, report.Succeeded)
}

// TestRunTick_FailureIsolation verifies one failing cycle neither aborts the
// tick nor blocks the other subscriptions in the batch.
func (s *SchedulerSuite) TestRunTick_FailureIsolation() {
	now := date(2024, time.March, 1)

	healthy := s.seedSubscription(submodels.FrequencyWeekly, date(2024, time.February, 25), 2)
	broken := s.seedSubscription(submodels.FrequencyWeekly, date(2024, time.February, 25), 5)

	charger := origin.ChargerFunc(func(_ context.Context, req origin.ChargeRequest) error {
		if req.SubscriptionID == broken.ID {
			return dErrors.New(dErrors.CodeUnavailable, "card declined")
		}
		return nil
	})
	sched := s.newScheduler(charger)

	report, err := sched.RunTick(tickAt(now))
	s.Require().NoError(err, "cycle failures do not fail the tick")
	s.Equal(2, report.Due)
	s.Equal(1, report.Succeeded)
	s.Equal(1, report.Failed)

	s.Run("healthy subscription advanced", func() {
		stored := s.findSub(healthy)
		s.Equal(int64(3), stored.CycleSeq)
		s.Equal(date(2024, time.March, 3), stored.NextDue)
	})

	s.Run("failed subscription stays due for the next tick", func() {
		stored := s.findSub(broken)
		s.Equal(int64(5), stored.CycleSeq)
		s.Nil(stored.LastBilled)
		s.Equal(date(2024, time.February, 25), stored.NextDue)
	})

	s.Run("only the settled cycle hit the ledger", func() {
		s.Equal(id.Amount(1000), s.balance())
	})

	s.Run("failure emitted to the audit trail", func() {
		events := s.audits.ByAction(audit.EventBillingCycleFailed)
		s.Require().Len(events, 1)
		s.Equal(broken.ID, events[0].SubscriptionID)
	})
}

// TestRunTick_CrashRetryDoesNotDoubleCharge replays the crash window between
// recording a cycle's donation and advancing the subscription.
func (s *SchedulerSuite) TestRunTick_CrashRetryDoesNotDoubleCharge() {
	now := date(2024, time.March, 1)
	sub := s.seedSubscription(submodels.FrequencyMonthly, date(2024, time.February, 29), 0)

	// Simulate the first tick's recorded-but-not-advanced state.
	cycleKey := sub.CycleKey(1)
	_, err := s.recorder.Record(context.Background(), donationservice.RecordRequest{
		CharityID:      sub.CharityID,
		Amount:         sub.Amount,
		Origin:         sub.Origin,
		CorrelationKey: &cycleKey,
		DonorID:        &sub.DonorID,
		SubscriptionID: &sub.ID,
	})
	s.Require().NoError(err)
	s.Equal(id.Amount(1000), s.balance())

	var charges int
	var mu sync.Mutex
	sched := s.newScheduler(origin.ChargerFunc(func(context.Context, origin.ChargeRequest) error {
		mu.Lock()
		charges++
		mu.Unlock()
		return nil
	}))

	report, err := sched.RunTick(tickAt(now))
	s.Require().NoError(err)
	s.Require().Len(report.Outcomes, 1)
	s.True(report.Outcomes[0].Duplicate)
	s.NoError(report.Outcomes[0].Err)

	s.Equal(0, charges, "origin never re-charged for an already-recorded cycle")
	s.Equal(id.Amount(1000), s.balance(), "balance applied exactly once")

	stored := s.findSub(sub)
	s.Equal(int64(1), stored.CycleSeq)
	s.Equal(date(2024, time.March, 29), stored.NextDue)
}

// TestRunTick_OverdueRollsForward bills a long-overdue subscription once and
// rolls the anchor past the tick instant instead of back-billing each missed
// period.
func (s *SchedulerSuite) TestRunTick_OverdueRollsForward() {
	now := date(2024, time.June, 10)
	sub := s.seedSubscription(submodels.FrequencyMonthly, date(2024, time.February, 29), 0)

	sched := s.newScheduler(origin.Instant{})
	report, err := sched.RunTick(tickAt(now))
	s.Require().NoError(err)
	s.Equal(1, report.Succeeded)

	s.Equal(id.Amount(1000), s.balance(), "one charge, not one per missed period")

	stored := s.findSub(sub)
	s.Equal(date(2024, time.June, 29), stored.NextDue)
	s.True(stored.NextDue.After(now))
}

// =============================================================================
// Lease Tests
// =============================================================================

func (s *SchedulerSuite) TestRunTick_LeaseExcludesOverlap() {
	now := date(2024, time.March, 1)
	s.seedSubscription(submodels.FrequencyMonthly, date(2024, time.February, 29), 0)

	shared := lease.NewInProcess()
	started := make(chan struct{})
	release := make(chan struct{})

	blocking := origin.ChargerFunc(func(context.Context, origin.ChargeRequest) error {
		close(started)
		<-release
		return nil
	})
	first, err := New(s.subs, s.recorder, blocking, shared)
	s.Require().NoError(err)
	second, err := New(s.subs, s.recorder, origin.Instant{}, shared)
	s.Require().NoError(err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := first.RunTick(tickAt(now))
		s.NoError(err)
	}()

	<-started
	_, err = second.RunTick(tickAt(now))
	s.Require().ErrorIs(err, ErrTickInProgress)

	close(release)
	<-done

	// The lease is free again once the first tick finishes.
	report, err := second.RunTick(tickAt(now.AddDate(0, 2, 0)))
	s.Require().NoError(err)
	s.NotNil(report)
}

// =============================================================================
// End-to-End Calendar Scenario
// =============================================================================

// TestCalendarRhythm walks a monthly pledge created on Jan 31 through two
// billing cycles, checking the clamped calendar anchors at each step.
func (s *SchedulerSuite) TestCalendarRhythm() {
	// Created 2024-01-31: the first anchor clamps to leap-year Feb 29.
	sub := s.seedSubscription(submodels.FrequencyMonthly, date(2024, time.February, 29), 0)
	sched := s.newScheduler(origin.Instant{})

	// Tick on Feb 15: nothing due.
	report, err := sched.RunTick(tickAt(date(2024, time.February, 15)))
	s.Require().NoError(err)
	s.Equal(0, report.Due)

	// Tick on Mar 1: the Feb 29 cycle bills, anchor moves to Mar 29.
	report, err = sched.RunTick(tickAt(date(2024, time.March, 1)))
	s.Require().NoError(err)
	s.Equal(1, report.Succeeded)
	s.Equal(date(2024, time.March, 29), s.findSub(sub).NextDue)

	// Tick on Mar 29: bills again, anchor moves to Apr 29.
	report, err = sched.RunTick(tickAt(date(2024, time.March, 29)))
	s.Require().NoError(err)
	s.Equal(1, report.Succeeded)

	stored := s.findSub(sub)
	s.Equal(date(2024, time.April, 29), stored.NextDue)
	s.Equal(int64(2), stored.CycleSeq)
	s.Equal(id.Amount(2000), s.balance())
}
