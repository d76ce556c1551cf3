package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	donationmodels "givebridge/internal/donation/models"
	"givebridge/internal/donation/service"
	id "givebridge/pkg/domain"
	"givebridge/pkg/platform/httputil"
	"givebridge/pkg/requestcontext"
)

// Service defines the recorder operations the handler needs.
type Service interface {
	Record(ctx context.Context, req service.RecordRequest) (*donationmodels.Donation, error)
	ListForCharity(ctx context.Context, charityID id.CharityID) ([]*donationmodels.Donation, error)
}

// Handler wires donation endpoints to the recorder.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a donation handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts donation endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/donations", h.HandleRecord)
	r.Get("/charities/{charityID}/donations", h.HandleListForCharity)
}

// HandleRecord handles POST /donations requests: the one-off donation path,
// open to both authenticated donors and guests.
func (h *Handler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[RecordRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	domainReq := service.RecordRequest{
		CharityID: req.ParsedCharityID(),
		Amount:    req.ParsedAmount(),
		Origin:    req.ParsedOrigin(),
		Message:   req.Message,
		Anonymous: req.Anonymous,
	}
	if req.CorrelationKey != "" {
		key := req.CorrelationKey
		domainReq.CorrelationKey = &key
	}
	if donorID := requestcontext.DonorID(ctx); !donorID.IsNil() {
		domainReq.DonorID = &donorID
	}

	donation, err := h.service.Record(ctx, domainReq)
	if err != nil {
		h.logger.ErrorContext(ctx, "donation record failed",
			"request_id", requestID,
			"charity_id", req.CharityID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "donation accepted",
		"request_id", requestID,
		"donation_id", donation.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromDonation(donation))
}

// HandleListForCharity handles GET /charities/{charityID}/donations.
func (h *Handler) HandleListForCharity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	charityID, err := id.ParseCharityID(chi.URLParam(r, "charityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	donations, err := h.service.ListForCharity(ctx, charityID)
	if err != nil {
		h.logger.ErrorContext(ctx, "donation list failed",
			"request_id", requestcontext.RequestID(ctx),
			"charity_id", charityID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDonations(donations))
}
