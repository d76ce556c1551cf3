package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"givebridge/internal/subscription/models"
	"givebridge/internal/subscription/service"
	id "givebridge/pkg/domain"
	dErrors "givebridge/pkg/domain-errors"
	"givebridge/pkg/platform/httputil"
	"givebridge/pkg/requestcontext"
)

// Service defines the lifecycle operations the handler needs.
type Service interface {
	Create(ctx context.Context, req service.CreateRequest) (*service.CreateResult, error)
	ListActive(ctx context.Context, donorID id.DonorID) ([]*models.Subscription, error)
	UpdateStatus(ctx context.Context, donorID id.DonorID, subID id.SubscriptionID, target models.Status) (*models.Subscription, error)
}

// Handler wires subscription endpoints to the lifecycle manager. All routes
// are donor-scoped and sit behind RequireDonor middleware.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a subscription handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts subscription endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/subscriptions", h.HandleCreate)
	r.Get("/subscriptions", h.HandleListActive)
	r.Patch("/subscriptions/{subscriptionID}/status", h.HandleUpdateStatus)
}

// HandleCreate handles POST /subscriptions requests.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	donorID := requestcontext.DonorID(ctx)
	if donorID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Create(ctx, service.CreateRequest{
		DonorID:   donorID,
		CharityID: req.ParsedCharityID(),
		Amount:    req.ParsedAmount(),
		Frequency: req.ParsedFrequency(),
		Origin:    req.ParsedOrigin(),
		Anonymous: req.Anonymous,
		Message:   req.Message,
		WalletRef: req.WalletRef,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "subscription create failed",
			"request_id", requestID,
			"donor_id", donorID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "subscription created",
		"request_id", requestID,
		"subscription_id", result.Subscription.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromCreateResult(result))
}

// HandleListActive handles GET /subscriptions requests.
func (h *Handler) HandleListActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	donorID := requestcontext.DonorID(ctx)
	if donorID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	subs, err := h.service.ListActive(ctx, donorID)
	if err != nil {
		h.logger.ErrorContext(ctx, "subscription list failed",
			"request_id", requestcontext.RequestID(ctx),
			"donor_id", donorID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSubscriptions(subs))
}

// HandleUpdateStatus handles PATCH /subscriptions/{subscriptionID}/status.
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	donorID := requestcontext.DonorID(ctx)
	if donorID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	subID, err := id.ParseSubscriptionID(chi.URLParam(r, "subscriptionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[UpdateStatusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	sub, err := h.service.UpdateStatus(ctx, donorID, subID, req.ParsedStatus())
	if err != nil {
		h.logger.ErrorContext(ctx, "subscription status update failed",
			"request_id", requestID,
			"subscription_id", subID,
			"target", req.Status,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSubscription(sub))
}
