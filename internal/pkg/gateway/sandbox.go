package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// Sandbox is an in-memory gateway for development and tests. Charges
// succeed when verified unless the reference carries a steering suffix:
// "-fail" verifies as failed, "-pending" stays pending. Webhooks are
// signed with HMAC-SHA256 over the raw body.
type Sandbox struct {
	secret string

	mu        sync.Mutex
	charges   map[string]int64
	refunds   map[string]int64
	transfers map[string]TransferRequest
	seq       int64
}

// NewSandbox creates a sandbox gateway with the given webhook secret
func NewSandbox(secret string) *Sandbox {
	return &Sandbox{
		secret:    secret,
		charges:   make(map[string]int64),
		refunds:   make(map[string]int64),
		transfers: make(map[string]TransferRequest),
	}
}

func (s *Sandbox) Name() string { return ProviderSandbox }

func (s *Sandbox) InitializePayment(_ context.Context, req InitializeRequest) (*InitializeResponse, error) {
	if req.Reference == "" {
		return nil, &Error{Provider: ProviderSandbox, StatusCode: http.StatusBadRequest, Message: "reference is required"}
	}
	if req.Amount <= 0 {
		return nil, &Error{Provider: ProviderSandbox, StatusCode: http.StatusBadRequest, Message: "amount must be positive"}
	}

	s.mu.Lock()
	s.charges[req.Reference] = req.Amount
	s.mu.Unlock()

	raw, _ := json.Marshal(map[string]string{"reference": req.Reference})
	return &InitializeResponse{
		PaymentURL: "https://sandbox.fixmate.test/pay/" + req.Reference,
		Reference:  req.Reference,
		Raw:        raw,
	}, nil
}

func (s *Sandbox) VerifyPayment(_ context.Context, reference string) (*VerifyResult, error) {
	s.mu.Lock()
	amount, ok := s.charges[reference]
	s.mu.Unlock()

	if !ok {
		return nil, &Error{Provider: ProviderSandbox, StatusCode: http.StatusNotFound, Message: "transaction not found"}
	}

	return &VerifyResult{
		Status: steeredStatus(reference),
		Amount: amount,
	}, nil
}

func (s *Sandbox) CapturePayment(ctx context.Context, reference string) error {
	result, err := s.VerifyPayment(ctx, reference)
	if err != nil {
		return err
	}
	if result.Status != StatusSuccess {
		return &Error{Provider: ProviderSandbox, StatusCode: http.StatusBadRequest, Message: "charge not settled: " + string(result.Status)}
	}
	return nil
}

func (s *Sandbox) RefundPayment(_ context.Context, reference string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	charged, ok := s.charges[reference]
	if !ok {
		return &Error{Provider: ProviderSandbox, StatusCode: http.StatusNotFound, Message: "transaction not found"}
	}
	if amount <= 0 || s.refunds[reference]+amount > charged {
		return &Error{Provider: ProviderSandbox, StatusCode: http.StatusBadRequest, Message: "refund exceeds charge"}
	}

	s.refunds[reference] += amount
	return nil
}

func (s *Sandbox) CreateTransferRecipient(_ context.Context, details BankDetails) (string, error) {
	if details.AccountNumber == "" || details.BankCode == "" {
		return "", &Error{Provider: ProviderSandbox, StatusCode: http.StatusBadRequest, Message: "incomplete bank details"}
	}
	return "RCP_" + details.BankCode + "_" + details.AccountNumber, nil
}

func (s *Sandbox) InitiateTransfer(_ context.Context, req TransferRequest) (*TransferResult, error) {
	if req.Amount <= 0 {
		return nil, &Error{Provider: ProviderSandbox, StatusCode: http.StatusBadRequest, Message: "amount must be positive"}
	}

	s.mu.Lock()
	s.seq++
	providerRef := fmt.Sprintf("SBX_TRF_%d", s.seq)
	s.transfers[req.Reference] = req
	s.mu.Unlock()

	return &TransferResult{
		ProviderRef: providerRef,
		Status:      steeredStatus(req.Reference),
	}, nil
}

func (s *Sandbox) VerifyWebhookSignature(rawBody []byte, signature string) bool {
	if s.secret == "" || signature == "" {
		return false
	}

	expected := s.SignWebhook(rawBody)
	return hmac.Equal([]byte(strings.TrimSpace(signature)), []byte(expected))
}

// SignWebhook produces the signature the sandbox expects for a body.
// Tests and the local webhook simulator use this.
func (s *Sandbox) SignWebhook(rawBody []byte) string {
	h := hmac.New(sha256.New, []byte(s.secret))
	h.Write(rawBody)
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Sandbox) ParseWebhookEvent(rawBody []byte) (*WebhookEvent, error) {
	var payload struct {
		Event     string `json:"event"`
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Status    string `json:"status"`
	}
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, fmt.Errorf("invalid sandbox webhook body: %w", err)
	}

	event := &WebhookEvent{
		Type:      payload.Event,
		Reference: payload.Reference,
		Amount:    payload.Amount,
		Status:    Status(payload.Status),
		Raw:       rawBody,
	}
	switch payload.Status {
	case "success", "successful":
		event.Status = StatusSuccess
	case "failed":
		event.Status = StatusFailed
	case "pending", "":
		event.Status = StatusPending
	}
	return event, nil
}

func steeredStatus(reference string) Status {
	switch {
	case strings.HasSuffix(reference, "-fail"):
		return StatusFailed
	case strings.HasSuffix(reference, "-pending"):
		return StatusPending
	default:
		return StatusSuccess
	}
}
