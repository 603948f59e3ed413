package payout

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

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

type requestPayout struct {
	Amount        int64  `json:"amount" validate:"required,gt=0"`
	AccountName   string `json:"account_name" validate:"required"`
	AccountNumber string `json:"account_number" validate:"required"`
	BankCode      string `json:"bank_code" validate:"required"`
}

type resultRequest struct {
	Status        string  `json:"status" validate:"required,payout_status"`
	ProviderRef   *string `json:"provider_ref,omitempty"`
	FailureReason *string `json:"failure_reason,omitempty"`
}

func (h *Handler) Request(w http.ResponseWriter, r *http.Request) {
	mechanicID := middleware.GetUserID(r.Context())

	var req requestPayout
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	p, err := h.svc.Request(r.Context(), mechanicID, req.Amount, BankDetails{
		AccountName:   req.AccountName,
		AccountNumber: req.AccountNumber,
		BankCode:      req.BankCode,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount):
			response.BadRequest(w, "amount must be greater than zero")
		case errors.Is(err, ErrInsufficientFunds):
			response.BadRequest(w, "wallet balance is insufficient")
		case errors.Is(err, ErrMissingBank):
			response.BadRequest(w, "bank details are incomplete")
		default:
			response.InternalError(w)
		}
		return
	}

	response.Created(w, p)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	mechanicID := middleware.GetUserID(r.Context())
	payouts, err := h.svc.List(r.Context(), mechanicID)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, payouts)
}

// Result applies a provider result callback for a payout transfer
func (h *Handler) Result(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid payout id")
		return
	}

	var req resultRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	p, err := h.svc.MarkResult(r.Context(), id, Status(req.Status), req.ProviderRef, req.FailureReason)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(w, "payout not found")
		case errors.Is(err, ErrInvalidStatus):
			response.BadRequest(w, "invalid payout result status")
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, p)
}

func (h *Handler) Routes(authMiddleware, mechanicOnly, adminOnly func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Group(func(r chi.Router) {
		r.Use(mechanicOnly)
		r.Post("/", h.Request)
		r.Get("/", h.List)
	})
	r.Group(func(r chi.Router) {
		r.Use(adminOnly)
		r.Post("/{id}/result", h.Result)
	})
	return r
}
