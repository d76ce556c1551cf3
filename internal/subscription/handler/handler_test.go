package handler

import (
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	charitymodels "givebridge/internal/charity/models"
	charitymemory "givebridge/internal/charity/store/memory"
	donationservice "givebridge/internal/donation/service"
	donationmemory "givebridge/internal/donation/store/memory"
	subscriptionservice "givebridge/internal/subscription/service"
	subscriptionmemory "givebridge/internal/subscription/store/memory"
	id "givebridge/pkg/domain"
	dErrors "givebridge/pkg/domain-errors"
	"givebridge/pkg/testutil"
)

// =============================================================================
// Subscription Handler Test Suite
// =============================================================================

type SubscriptionHandlerSuite struct {
	suite.Suite
	charities *charitymemory.Store
	router    chi.Router
	donorID   id.DonorID
	charityID id.CharityID
}

func TestSubscriptionHandlerSuite(t *testing.T) {
	suite.Run(t, new(SubscriptionHandlerSuite))
}

func (s *SubscriptionHandlerSuite) SetupTest() {
	s.charities = charitymemory.New()
	donations := donationmemory.New(s.charities)
	subs := subscriptionmemory.New()

	recorder, err := donationservice.New(donations, s.charities)
	s.Require().NoError(err)
	svc, err := subscriptionservice.New(subs, s.charities, recorder)
	s.Require().NoError(err)

	s.router = chi.NewRouter()
	New(svc, slog.Default()).Register(s.router)

	s.donorID = id.NewDonorID()
	s.charityID = id.NewCharityID()
	s.Require().NoError(s.charities.Create(context.Background(), &charitymodels.Charity{
		ID:        s.charityID,
		Name:      "River Cleanup",
		CreatedAt: time.Now().UTC(),
	}))
}

func (s *SubscriptionHandlerSuite) validBody() map[string]any {
	return map[string]any{
		"charity_id": s.charityID.String(),
		"amount":     "10.00",
		"frequency":  "monthly",
		"origin":     "card",
	}
}

func (s *SubscriptionHandlerSuite) create() CreateResponse {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/subscriptions", s.validBody())
	req = testutil.WithDonor(req, s.donorID.String())
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	return *testutil.UnmarshalResponse[CreateResponse](s.T(), rr)
}

// =============================================================================
// POST /subscriptions
// =============================================================================

func (s *SubscriptionHandlerSuite) TestHandleCreate() {
	s.Run("creates subscription with bootstrap donation", func() {
		fixed := time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC)
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/subscriptions", s.validBody())
		req = testutil.WithDonor(req, s.donorID.String())
		req = testutil.WithFixedTime(req, fixed)
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		resp := testutil.UnmarshalResponse[CreateResponse](s.T(), rr)
		s.Equal("active", resp.Subscription.Status)
		s.Equal("10.00", resp.Subscription.Amount)
		s.Equal("2024-02-29T00:00:00Z", resp.Subscription.NextDue)
		s.Nil(resp.Subscription.LastBilled)
		s.Equal("completed", resp.Bootstrap.Status)
		s.Require().NotNil(resp.Bootstrap.SubscriptionID)
		s.Equal(resp.Subscription.ID, *resp.Bootstrap.SubscriptionID)
	})

	s.Run("unauthenticated returns 401", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/subscriptions", s.validBody()))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, string(dErrors.CodeUnauthorized))
	})

	s.Run("unknown frequency returns 400", func() {
		body := s.validBody()
		body["frequency"] = "daily"
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/subscriptions", body)
		req = testutil.WithDonor(req, s.donorID.String())
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.Run("unknown charity returns 404", func() {
		body := s.validBody()
		body["charity_id"] = id.NewCharityID().String()
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/subscriptions", body)
		req = testutil.WithDonor(req, s.donorID.String())
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})
}

// =============================================================================
// GET /subscriptions
// =============================================================================

func (s *SubscriptionHandlerSuite) TestHandleListActive() {
	s.Run("unauthenticated returns 401", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/subscriptions"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, string(dErrors.CodeUnauthorized))
	})

	s.Run("returns only the donor's active subscriptions", func() {
		created := s.create()

		req := testutil.NewRequest(s.T(), http.MethodGet, "/subscriptions")
		req = testutil.WithDonor(req, s.donorID.String())
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[[]SubscriptionResponse](s.T(), rr)
		s.Require().Len(*resp, 1)
		s.Equal(created.Subscription.ID, (*resp)[0].ID)

		// Another donor sees nothing
		other := testutil.NewRequest(s.T(), http.MethodGet, "/subscriptions")
		other = testutil.WithDonor(other, id.NewDonorID().String())
		rr = testutil.DoRequest(s.router, other)
		testutil.AssertStatusOK(s.T(), rr)
		s.Empty(*testutil.UnmarshalResponse[[]SubscriptionResponse](s.T(), rr))
	})
}

// =============================================================================
// PATCH /subscriptions/{subscriptionID}/status
// =============================================================================

func (s *SubscriptionHandlerSuite) TestHandleUpdateStatus() {
	patch := func(donor, subID, status string) *http.Request {
		req := testutil.NewJSONRequest(s.T(), http.MethodPatch,
			"/subscriptions/"+subID+"/status", map[string]any{"status": status})
		if donor != "" {
			req = testutil.WithDonor(req, donor)
		}
		return req
	}

	s.Run("pauses an active subscription", func() {
		created := s.create()
		rr := testutil.DoRequest(s.router, patch(s.donorID.String(), created.Subscription.ID, "paused"))
		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[SubscriptionResponse](s.T(), rr)
		s.Equal("paused", resp.Status)
		s.Equal(created.Subscription.NextDue, resp.NextDue, "pause never moves the anchor")
	})

	s.Run("unauthenticated returns 401", func() {
		created := s.create()
		rr := testutil.DoRequest(s.router, patch("", created.Subscription.ID, "paused"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, string(dErrors.CodeUnauthorized))
	})

	s.Run("invalid transition returns conflict", func() {
		created := s.create()
		rr := testutil.DoRequest(s.router, patch(s.donorID.String(), created.Subscription.ID, "cancelled"))
		testutil.AssertStatusOK(s.T(), rr)

		rr = testutil.DoRequest(s.router, patch(s.donorID.String(), created.Subscription.ID, "active"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeConflict))
	})

	s.Run("unknown status returns 400", func() {
		created := s.create()
		rr := testutil.DoRequest(s.router, patch(s.donorID.String(), created.Subscription.ID, "archived"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.Run("foreign subscription returns 404", func() {
		created := s.create()
		rr := testutil.DoRequest(s.router, patch(id.NewDonorID().String(), created.Subscription.ID, "paused"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})

	s.Run("malformed subscription id returns 400", func() {
		rr := testutil.DoRequest(s.router, patch(s.donorID.String(), "not-a-uuid", "paused"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})
}
