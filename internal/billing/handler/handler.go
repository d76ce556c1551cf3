package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"givebridge/internal/billing/scheduler"
	dErrors "givebridge/pkg/domain-errors"
	"givebridge/pkg/platform/httputil"
)

// Ticker runs one billing tick.
type Ticker interface {
	RunTick(ctx context.Context) (*scheduler.TickReport, error)
}

// Handler exposes the billing tick to the external periodic trigger. This is
// an operator surface, not a donor-facing one: it is guarded by a shared
// secret instead of donor auth.
type Handler struct {
	ticker Ticker
	secret string
	logger *slog.Logger
}

// New constructs the billing handler.
func New(ticker Ticker, secret string, logger *slog.Logger) *Handler {
	return &Handler{ticker: ticker, secret: secret, logger: logger}
}

// Register mounts the tick endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/internal/billing/tick", h.HandleTick)
}

// outcomeResponse reports one subscription's cycle on the wire.
type outcomeResponse struct {
	SubscriptionID string `json:"subscription_id"`
	DonationID     string `json:"donation_id,omitempty"`
	Duplicate      bool   `json:"duplicate,omitempty"`
	Error          string `json:"error,omitempty"`
}

// tickResponse is the wire shape of a tick report.
type tickResponse struct {
	StartedAt string            `json:"started_at"`
	Due       int               `json:"due"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Outcomes  []outcomeResponse `json:"outcomes"`
}

// HandleTick handles POST /internal/billing/tick requests.
func (h *Handler) HandleTick(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.secret == "" || subtle.ConstantTimeCompare(
		[]byte(r.Header.Get("X-Tick-Secret")), []byte(h.secret)) != 1 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "tick secret required"))
		return
	}

	report, err := h.ticker.RunTick(ctx)
	if err != nil {
		if errors.Is(err, scheduler.ErrTickInProgress) {
			httputil.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "billing tick failed", "error", err)
		httputil.WriteError(w, err)
		return
	}

	resp := tickResponse{
		StartedAt: report.StartedAt.Format(time.RFC3339),
		Due:       report.Due,
		Succeeded: report.Succeeded,
		Failed:    report.Failed,
		Outcomes:  make([]outcomeResponse, 0, len(report.Outcomes)),
	}
	for _, outcome := range report.Outcomes {
		o := outcomeResponse{
			SubscriptionID: outcome.SubscriptionID.String(),
			Duplicate:      outcome.Duplicate,
		}
		if !outcome.DonationID.IsNil() {
			o.DonationID = outcome.DonationID.String()
		}
		if outcome.Err != nil {
			o.Error = outcome.Err.Error()
		}
		resp.Outcomes = append(resp.Outcomes, o)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
