package dispute

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fixmate/fixmate-api/internal/domain/booking"
	"github.com/fixmate/fixmate-api/internal/domain/payment"
	"github.com/fixmate/fixmate-api/internal/domain/wallet"
	"github.com/fixmate/fixmate-api/internal/middleware"
	"github.com/fixmate/fixmate-api/internal/pkg/response"
	"github.com/fixmate/fixmate-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type raiseRequest struct {
	BookingID uuid.UUID `json:"booking_id" validate:"required"`
	Reason    string    `json:"reason" validate:"required,min=5,max=2000"`
}

type resolveRequest struct {
	Resolution       string `json:"resolution" validate:"required,min=3,max=2000"`
	RefundAmount     int64  `json:"refund_amount" validate:"gte=0"`
	RefundToCustomer bool   `json:"refund_to_customer"`
	DebitMechanic    bool   `json:"debit_mechanic"`
}

func (h *Handler) Raise(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req raiseRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	d, err := h.svc.Raise(r.Context(), userID, req.BookingID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrNotFound):
			response.NotFound(w, "booking not found")
		case errors.Is(err, ErrAlreadyPending):
			response.Forbidden(w, "a pending dispute already exists for this booking")
		default:
			response.InternalError(w)
		}
		return
	}

	response.Created(w, d)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	disputes, err := h.svc.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, disputes)
}

func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid dispute id")
		return
	}

	var req resolveRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	adminID := middleware.GetUserID(r.Context())
	d, err := h.svc.Resolve(r.Context(), id, ResolveRequest{
		Resolution:       req.Resolution,
		RefundAmount:     req.RefundAmount,
		RefundToCustomer: req.RefundToCustomer,
		DebitMechanic:    req.DebitMechanic,
	}, adminID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(w, "dispute not found")
		case errors.Is(err, ErrAlreadyResolved):
			response.Forbidden(w, "dispute already resolved")
		case errors.Is(err, ErrInvalidAmount), errors.Is(err, payment.ErrInvalidAmount):
			response.BadRequest(w, "invalid refund amount")
		case errors.Is(err, payment.ErrInvalidStatus):
			response.BadRequest(w, "payment cannot be refunded in its current state")
		case errors.Is(err, payment.ErrNotFound):
			response.NotFound(w, "payment not found for booking")
		case errors.Is(err, wallet.ErrInsufficientFunds):
			response.BadRequest(w, "mechanic wallet balance is insufficient for the debit")
		case errors.Is(err, booking.ErrMechanicUnassigned):
			response.BadRequest(w, "booking has no assigned mechanic to debit")
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, d)
}

func (h *Handler) Routes(authMiddleware, adminOnly func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/", h.Raise)
	r.Group(func(r chi.Router) {
		r.Use(adminOnly)
		r.Get("/", h.List)
		r.Patch("/{id}/resolve", h.Resolve)
	})
	return r
}
