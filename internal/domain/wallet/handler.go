package wallet

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fixmate/fixmate-api/internal/middleware"
	"github.com/fixmate/fixmate-api/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type mutationRequest struct {
	UserID    uuid.UUID  `json:"user_id"`
	Amount    int64      `json:"amount"`
	Type      string     `json:"type"`
	Reference string     `json:"reference"`
	BookingID *uuid.UUID `json:"booking_id,omitempty"`
}

func (h *Handler) Ensure(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	wallet, err := h.svc.Ensure(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, wallet)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	wallet, txs, err := h.svc.Get(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{
		"wallet":       wallet,
		"transactions": txs,
	})
}

// Credit is an internal/admin endpoint for manual ledger adjustments
func (h *Handler) Credit(w http.ResponseWriter, r *http.Request) {
	h.handleMutation(w, r, false)
}

// Debit is an internal/admin endpoint for manual ledger adjustments
func (h *Handler) Debit(w http.ResponseWriter, r *http.Request) {
	h.handleMutation(w, r, true)
}

func (h *Handler) handleMutation(w http.ResponseWriter, r *http.Request, debit bool) {
	var req mutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if req.UserID == uuid.Nil {
		response.BadRequest(w, "user_id is required")
		return
	}

	txType := TransactionType(req.Type)
	if txType == "" {
		if debit {
			txType = TransactionTypeDebit
		} else {
			txType = TransactionTypeCredit
		}
	}
	opts := ApplyOptions{Reference: req.Reference, BookingID: req.BookingID}

	var err error
	if debit {
		err = h.svc.Debit(r.Context(), req.UserID, req.Amount, txType, opts)
	} else {
		err = h.svc.Credit(r.Context(), req.UserID, req.Amount, txType, opts)
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount):
			response.BadRequest(w, "amount must be greater than zero")
		case errors.Is(err, ErrInsufficientFunds):
			response.BadRequest(w, "insufficient wallet balance")
		case errors.Is(err, ErrReferenceConflict):
			response.Conflict(w, "reference already used with a different amount")
		default:
			response.InternalError(w)
		}
		return
	}

	wallet, err := h.svc.Ensure(r.Context(), req.UserID)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, wallet)
}

func (h *Handler) Routes(authMiddleware, adminOnly func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/ensure", h.Ensure)
	r.Get("/", h.Get)
	r.Group(func(r chi.Router) {
		r.Use(adminOnly)
		r.Post("/credit", h.Credit)
		r.Post("/debit", h.Debit)
	})
	return r
}
