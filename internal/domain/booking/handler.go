package booking

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fixmate/fixmate-api/internal/domain/payment"
	"github.com/fixmate/fixmate-api/internal/domain/user"
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

type createRequest struct {
	MechanicID  uuid.UUID `json:"mechanic_id" validate:"required"`
	ServiceID   uuid.UUID `json:"service_id" validate:"required"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,booking_status"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	customerID := middleware.GetUserID(r.Context())

	var req createRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	result, err := h.svc.Create(r.Context(), customerID, req.MechanicID, req.ServiceID, req.ScheduledAt)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrNotFound), errors.Is(err, user.ErrServiceNotFound):
			response.NotFound(w, "mechanic or service not found")
		case errors.Is(err, user.ErrNotMechanic):
			response.BadRequest(w, "selected user is not a mechanic")
		case errors.Is(err, ErrSlotTaken):
			response.Conflict(w, "mechanic already booked at that time")
		default:
			response.InternalError(w)
		}
		return
	}

	response.Created(w, result)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	role := middleware.GetRole(r.Context())

	bookings, err := h.svc.ListForUser(r.Context(), userID, role)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, bookings)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid booking id")
		return
	}

	b, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "booking not found")
			return
		}
		response.InternalError(w)
		return
	}

	userID := middleware.GetUserID(r.Context())
	role := middleware.GetRole(r.Context())
	if role != middleware.RoleAdmin && b.CustomerID != userID && (b.MechanicID == nil || *b.MechanicID != userID) {
		response.Forbidden(w, "not your booking")
		return
	}

	response.OK(w, b)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid booking id")
		return
	}

	var req updateStatusRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	actorID := middleware.GetUserID(r.Context())
	b, err := h.svc.UpdateStatus(r.Context(), id, Status(req.Status), actorID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(w, "booking not found")
		case errors.Is(err, ErrNotAssignedActor):
			response.Forbidden(w, "only the assigned mechanic may update this booking")
		case errors.Is(err, ErrTerminalState):
			response.Forbidden(w, "booking is already completed or cancelled")
		case errors.Is(err, ErrInvalidTransition):
			response.BadRequest(w, "invalid status transition")
		case errors.Is(err, ErrPaymentNotReady):
			response.BadRequest(w, "payment is not ready for completion")
		case errors.Is(err, payment.ErrCaptureFailed):
			response.InternalError(w)
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, b)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid booking id")
		return
	}

	customerID := middleware.GetUserID(r.Context())
	b, err := h.svc.Cancel(r.Context(), id, customerID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(w, "booking not found")
		case errors.Is(err, ErrNotOwner):
			response.Forbidden(w, "only the booking customer may cancel")
		case errors.Is(err, ErrTerminalState):
			response.Forbidden(w, "booking is already completed or cancelled")
		case errors.Is(err, payment.ErrRefundFailed):
			response.InternalError(w)
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, b)
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Post("/{id}/cancel", h.Cancel)
	return r
}
