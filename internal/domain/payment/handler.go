package payment

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/fixmate/fixmate-api/internal/pkg/gateway"
	"github.com/fixmate/fixmate-api/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// signatureHeader returns the header each provider signs with
func signatureHeader(provider string) string {
	switch provider {
	case gateway.ProviderPaystack:
		return "x-paystack-signature"
	case gateway.ProviderFlutterwave:
		return "verif-hash"
	default:
		return "x-sandbox-signature"
	}
}

// Webhook receives provider callbacks. Always 200 for business-level
// outcomes; 403 only for a bad signature, 5xx only for internal faults
// so the provider retries.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	rawBody, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		response.BadRequest(w, "unreadable body")
		return
	}
	defer r.Body.Close()

	signature := r.Header.Get(signatureHeader(provider))
	if err := h.svc.HandleWebhook(r.Context(), provider, signature, rawBody); err != nil {
		if errors.Is(err, ErrInvalidSignature) {
			response.Forbidden(w, "invalid signature")
			return
		}
		log.Error().Err(err).Str("provider", provider).Msg("webhook processing failed")
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]string{"status": "received"})
}

// Verify lets the frontend confirm a payment after the gateway
// redirect. Idempotent like the webhook path.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	reference := r.URL.Query().Get("reference")
	if reference == "" {
		response.BadRequest(w, "reference is required")
		return
	}

	p, err := h.svc.Verify(r.Context(), reference)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(w, "payment not found")
		case errors.Is(err, ErrPaymentFailed):
			response.BadRequest(w, "payment failed")
		case errors.Is(err, ErrPaymentPending):
			response.BadRequest(w, "payment is still pending")
		case errors.Is(err, ErrAmountMismatch):
			response.BadRequest(w, "payment amount mismatch, contact support")
		case errors.Is(err, ErrInvalidStatus):
			response.BadRequest(w, "payment is not verifiable in its current state")
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, p)
}

// WebhookRoutes mounts the unauthenticated provider callback endpoint
func (h *Handler) WebhookRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/{provider}", h.Webhook)
	return r
}

// Routes mounts authenticated payment endpoints
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/verify", h.Verify)
	return r
}
