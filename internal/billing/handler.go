// AngelaMos | 2026
// handler.go

package billing

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/templates/saas-backend/internal/core"
	"github.com/carterperez-dev/templates/saas-backend/internal/org"
)

// Webhook payloads are small; the cap only guards against garbage.
const maxWebhookBody = 1 << 20

type Handler struct {
	service    *Service
	reconciler *Reconciler
	validator  *validator.Validate
}

func NewHandler(service *Service, reconciler *Reconciler) *Handler {
	return &Handler{
		service:    service,
		reconciler: reconciler,
		validator:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/billing", func(r chi.Router) {
		r.Use(authenticator)
		r.Post("/checkout-session", h.CreateCheckoutSession)
		r.Post("/portal-session", h.CreatePortalSession)
	})
}

// RegisterWebhookRoutes mounts the webhook outside the authenticated API
// group: the provider signs its deliveries instead of carrying a bearer
// token.
func (h *Handler) RegisterWebhookRoutes(r chi.Router) {
	r.Post("/webhooks/billing", h.Webhook)
}

func (h *Handler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req CreateCheckoutSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	session, err := h.service.CreateCheckoutSession(
		r.Context(),
		req.SuccessURL,
		req.CancelURL,
	)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}

	core.OK(w, SessionResponse{URL: session.URL})
}

func (h *Handler) CreatePortalSession(w http.ResponseWriter, r *http.Request) {
	var req CreatePortalSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	session, err := h.service.CreatePortalSession(r.Context(), req.ReturnURL)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}

	core.OK(w, SessionResponse{URL: session.URL})
}

func (h *Handler) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoBillingCustomer):
		core.BadRequest(w, "organization has no billing customer")
	case errors.Is(err, core.ErrNotFound):
		// Stale tenant claim: reads across tenants come back not-found,
		// never forbidden.
		core.NotFound(w, "organization")
	case errors.Is(err, org.ErrNoMembership):
		// Integrity fault: an authenticated user always has a membership.
		// Logged server-side, surfaced generically.
		core.InternalServerError(w, err)
	case errors.Is(err, ErrProviderUnavailable):
		core.JSONError(w, core.NewAppError(
			err,
			"billing provider is unavailable",
			http.StatusBadGateway,
			"BILLING_UNAVAILABLE",
		))
	default:
		core.InternalServerError(w, err)
	}
}

// Webhook acknowledges with 200 whenever the delivery was authenticated
// and handled, even if it was stale or referenced an unknown customer:
// a non-2xx answer only makes the provider redeliver something that can
// never apply.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		core.BadRequest(w, "unable to read request body")
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")

	err = h.reconciler.Process(r.Context(), payload, sigHeader)
	if err != nil {
		if errors.Is(err, ErrInvalidSignature) ||
			errors.Is(err, ErrInvalidPayload) {
			core.BadRequest(w, "invalid webhook delivery")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, map[string]string{"received": "true"})
}
