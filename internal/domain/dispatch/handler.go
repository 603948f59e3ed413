package dispatch

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fixmate/fixmate-api/internal/domain/booking"
	"github.com/fixmate/fixmate-api/internal/domain/user"
	"github.com/fixmate/fixmate-api/internal/middleware"
	"github.com/fixmate/fixmate-api/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type createRequest struct {
	BookingID  uuid.UUID  `json:"booking_id"`
	MechanicID *uuid.UUID `json:"mechanic_id,omitempty"`
}

type rejectRequest struct {
	Reason *string `json:"reason,omitempty"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if req.BookingID == uuid.Nil {
		response.BadRequest(w, "booking_id is required")
		return
	}

	d, err := h.svc.Create(r.Context(), req.BookingID, req.MechanicID)
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrNotFound):
			response.NotFound(w, "booking not found")
		case errors.Is(err, user.ErrNotFound), errors.Is(err, user.ErrNotMechanic):
			response.NotFound(w, "mechanic not found")
		case errors.Is(err, ErrBookingNotOpen):
			response.BadRequest(w, "booking does not accept dispatch")
		case errors.Is(err, ErrNoMechanics):
			response.BadRequest(w, "no available mechanic")
		default:
			response.InternalError(w)
		}
		return
	}

	response.Created(w, d)
}

func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, true)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, false)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, accept bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid dispatch id")
		return
	}
	mechanicID := middleware.GetUserID(r.Context())

	var d *Dispatch
	if accept {
		d, err = h.svc.Accept(r.Context(), id, mechanicID)
	} else {
		var req rejectRequest
		// body is optional for reject
		_ = response.DecodeJSON(r.Body, &req)
		d, err = h.svc.Reject(r.Context(), id, mechanicID, req.Reason)
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(w, "dispatch not found")
		case errors.Is(err, ErrNotAssignee):
			response.Forbidden(w, "dispatch belongs to another mechanic")
		case errors.Is(err, ErrExpired):
			response.BadRequest(w, "dispatch offer expired")
		case errors.Is(err, ErrAlreadyDecided):
			response.BadRequest(w, "dispatch already accepted or rejected")
		case errors.Is(err, ErrBookingNotOpen):
			response.BadRequest(w, "booking does not accept dispatch")
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, d)
}

func (h *Handler) Routes(authMiddleware, mechanicOnly func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/", h.Create)
	r.Group(func(r chi.Router) {
		r.Use(mechanicOnly)
		r.Patch("/{id}/accept", h.Accept)
		r.Patch("/{id}/reject", h.Reject)
	})
	return r
}
