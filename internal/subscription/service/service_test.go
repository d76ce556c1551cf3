package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	charitymodels "givebridge/internal/charity/models"
	charitymemory "givebridge/internal/charity/store/memory"
	donationmodels "givebridge/internal/donation/models"
	donationservice "givebridge/internal/donation/service"
	donationmemory "givebridge/internal/donation/store/memory"
	"givebridge/internal/subscription/models"
	subscriptionmemory "givebridge/internal/subscription/store/memory"
	id "givebridge/pkg/domain"
	dErrors "givebridge/pkg/domain-errors"
	"givebridge/pkg/platform/audit"
	auditmemory "givebridge/pkg/platform/audit/publishers/memory"
	"givebridge/pkg/requestcontext"
)

// =============================================================================
// Subscription Lifecycle Test Suite
// =============================================================================

type LifecycleSuite struct {
	suite.Suite
	charities *charitymemory.Store
	donations *donationmemory.Store
	subs      *subscriptionmemory.Store
	audits    *auditmemory.Publisher
	recorder  *donationservice.Recorder
	service   *Service

	donorID   id.DonorID
	charityID id.CharityID
}

func TestLifecycleSuite(t *testing.T) {
	suite.Run(t, new(LifecycleSuite))
}

func (s *LifecycleSuite) SetupTest() {
	s.charities = charitymemory.New()
	s.donations = donationmemory.New(s.charities)
	s.subs = subscriptionmemory.New()
	s.audits = auditmemory.New()

	var err error
	s.recorder, err = donationservice.New(s.donations, s.charities)
	s.Require().NoError(err)

	s.service, err = New(s.subs, s.charities, s.recorder, WithAuditPublisher(s.audits))
	s.Require().NoError(err)

	s.donorID = id.NewDonorID()
	s.charityID = id.NewCharityID()
	s.Require().NoError(s.charities.Create(context.Background(), &charitymodels.Charity{
		ID:            s.charityID,
		Name:          "Food Relief",
		WalletAddress: "0xdef456",
		CreatedAt:     time.Now().UTC(),
	}))
}

func (s *LifecycleSuite) validRequest() CreateRequest {
	return CreateRequest{
		DonorID:   s.donorID,
		CharityID: s.charityID,
		Amount:    1000,
		Frequency: models.FrequencyMonthly,
		Origin:    donationmodels.OriginCard,
	}
}

func (s *LifecycleSuite) balance() id.Amount {
	charity, err := s.charities.FindByID(context.Background(), s.charityID)
	s.Require().NoError(err)
	return charity.TotalReceived
}

// =============================================================================
// Constructor Tests
// =============================================================================

func (s *LifecycleSuite) TestNew() {
	s.Run("nil subscription store returns error", func() {
		_, err := New(nil, s.charities, s.recorder)
		s.Error(err)
		s.Contains(err.Error(), "subscription store is required")
	})

	s.Run("nil charity store returns error", func() {
		_, err := New(s.subs, nil, s.recorder)
		s.Error(err)
		s.Contains(err.Error(), "charity store is required")
	})

	s.Run("nil recorder returns error", func() {
		_, err := New(s.subs, s.charities, nil)
		s.Error(err)
		s.Contains(err.Error(), "donation recorder is required")
	})
}

// =============================================================================
// Create Tests
// =============================================================================

func (s *LifecycleSuite) TestCreate() {
	now := time.Date(2024, time.January, 31, 10, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	s.Run("creates active subscription with bootstrap charge", func() {
		result, err := s.service.Create(ctx, s.validRequest())
		s.Require().NoError(err)

		sub := result.Subscription
		s.Equal(models.StatusActive, sub.Status)
		s.Equal(int64(0), sub.CycleSeq)
		s.Nil(sub.LastBilled, "bootstrap charge does not set last billed")
		// Jan 31 + 1 month clamps to leap-year Feb 29
		s.Equal(time.Date(2024, time.February, 29, 10, 0, 0, 0, time.UTC), sub.NextDue)

		bootstrap := result.Bootstrap
		s.Require().NotNil(bootstrap)
		s.Equal(donationmodels.StatusCompleted, bootstrap.Status)
		s.Require().NotNil(bootstrap.SubscriptionID)
		s.Equal(sub.ID, *bootstrap.SubscriptionID)
		s.Require().NotNil(bootstrap.CorrelationKey)
		s.Equal(sub.CycleKey(0), *bootstrap.CorrelationKey)

		s.Equal(id.Amount(1000), s.balance(), "bootstrap charge hits the ledger")
		s.Len(s.audits.ByAction(audit.EventSubscriptionCreated), 1)
	})

	s.Run("missing donor is unauthorized", func() {
		req := s.validRequest()
		req.DonorID = id.DonorID{}
		_, err := s.service.Create(ctx, req)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("zero amount rejected", func() {
		req := s.validRequest()
		req.Amount = 0
		_, err := s.service.Create(ctx, req)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unknown frequency rejected", func() {
		req := s.validRequest()
		req.Frequency = models.Frequency("yearly")
		_, err := s.service.Create(ctx, req)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unknown origin rejected", func() {
		req := s.validRequest()
		req.Origin = donationmodels.Origin("check")
		_, err := s.service.Create(ctx, req)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unknown charity rejected", func() {
		req := s.validRequest()
		req.CharityID = id.NewCharityID()
		_, err := s.service.Create(ctx, req)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// bootstrapFailRecorder always refuses to record.
type bootstrapFailRecorder struct{}

func (bootstrapFailRecorder) Record(context.Context, donationservice.RecordRequest) (*donationmodels.Donation, error) {
	return nil, dErrors.New(dErrors.CodeUnavailable, "payment origin unreachable")
}

func (s *LifecycleSuite) TestCreate_BootstrapFailureCancels() {
	ctx := context.Background()

	svc, err := New(s.subs, s.charities, bootstrapFailRecorder{})
	s.Require().NoError(err)

	_, err = svc.Create(ctx, s.validRequest())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	// The subscription record survives for audit but is cancelled, so the
	// scheduler never picks it up.
	active, err := s.service.ListActive(ctx, s.donorID)
	s.Require().NoError(err)
	s.Empty(active)

	due, err := s.subs.ListDue(ctx, time.Now().Add(365*24*time.Hour))
	s.Require().NoError(err)
	s.Empty(due)

	s.Equal(id.Amount(0), s.balance())
}

// =============================================================================
// ListActive Tests
// =============================================================================

func (s *LifecycleSuite) TestListActive() {
	ctx := context.Background()

	s.Run("nil donor is unauthorized", func() {
		_, err := s.service.ListActive(ctx, id.DonorID{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("excludes paused and cancelled and other donors", func() {
		first, err := s.service.Create(ctx, s.validRequest())
		s.Require().NoError(err)
		second, err := s.service.Create(ctx, s.validRequest())
		s.Require().NoError(err)

		otherDonor := id.NewDonorID()
		req := s.validRequest()
		req.DonorID = otherDonor
		_, err = s.service.Create(ctx, req)
		s.Require().NoError(err)

		_, err = s.service.UpdateStatus(ctx, s.donorID, second.Subscription.ID, models.StatusPaused)
		s.Require().NoError(err)

		active, err := s.service.ListActive(ctx, s.donorID)
		s.Require().NoError(err)
		s.Require().Len(active, 1)
		s.Equal(first.Subscription.ID, active[0].ID)
	})
}

// =============================================================================
// UpdateStatus Tests
// =============================================================================

func (s *LifecycleSuite) TestUpdateStatus() {
	ctx := context.Background()

	create := func() *models.Subscription {
		result, err := s.service.Create(ctx, s.validRequest())
		s.Require().NoError(err)
		return result.Subscription
	}

	s.Run("pause then resume preserves next due", func() {
		sub := create()
		originalNextDue := sub.NextDue

		paused, err := s.service.UpdateStatus(ctx, s.donorID, sub.ID, models.StatusPaused)
		s.Require().NoError(err)
		s.Equal(models.StatusPaused, paused.Status)
		s.Equal(originalNextDue, paused.NextDue)

		resumed, err := s.service.UpdateStatus(ctx, s.donorID, sub.ID, models.StatusActive)
		s.Require().NoError(err)
		s.Equal(models.StatusActive, resumed.Status)
		s.Equal(originalNextDue, resumed.NextDue, "resume does not back-bill or reset the anchor")

		s.Len(s.audits.ByAction(audit.EventSubscriptionStatusChanged), 2)
	})

	s.Run("cancelled is terminal", func() {
		sub := create()

		_, err := s.service.UpdateStatus(ctx, s.donorID, sub.ID, models.StatusCancelled)
		s.Require().NoError(err)

		_, err = s.service.UpdateStatus(ctx, s.donorID, sub.ID, models.StatusActive)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		_, err = s.service.UpdateStatus(ctx, s.donorID, sub.ID, models.StatusPaused)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("self transition is a conflict", func() {
		sub := create()
		_, err := s.service.UpdateStatus(ctx, s.donorID, sub.ID, models.StatusActive)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("unknown target status rejected", func() {
		sub := create()
		_, err := s.service.UpdateStatus(ctx, s.donorID, sub.ID, models.Status("archived"))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("foreign subscription reads as not found", func() {
		sub := create()
		stranger := id.NewDonorID()
		_, err := s.service.UpdateStatus(ctx, stranger, sub.ID, models.StatusPaused)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "ownership failures must not leak existence")
	})

	s.Run("unknown subscription is not found", func() {
		_, err := s.service.UpdateStatus(ctx, s.donorID, id.NewSubscriptionID(), models.StatusPaused)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
