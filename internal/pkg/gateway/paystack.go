package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const paystackBaseURL = "https://api.paystack.co"

// PaystackConfig holds Paystack API credentials
type PaystackConfig struct {
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
}

// Paystack implements Gateway against the Paystack REST API.
// Paystack already speaks integer minor units (kobo), so amounts pass
// through unchanged.
type Paystack struct {
	httpClient *http.Client
	config     PaystackConfig
}

// NewPaystack creates a Paystack gateway client
func NewPaystack(cfg PaystackConfig) *Paystack {
	if cfg.BaseURL == "" {
		cfg.BaseURL = paystackBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Paystack{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
	}
}

func (p *Paystack) Name() string { return ProviderPaystack }

// paystackEnvelope is the common response wrapper
type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (p *Paystack) call(ctx context.Context, method, path string, payload interface{}) (*paystackEnvelope, json.RawMessage, error) {
	if strings.TrimSpace(p.config.SecretKey) == "" {
		return nil, nil, fmt.Errorf("paystack config error: secret_key is empty")
	}

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode paystack request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	url := strings.TrimRight(p.config.BaseURL, "/") + path
	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, nil, &Error{Provider: ProviderPaystack, Message: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.config.SecretKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, nil, &Error{Provider: ProviderPaystack, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &Error{Provider: ProviderPaystack, Message: err.Error()}
	}

	var env paystackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 300 {
		return nil, nil, &Error{Provider: ProviderPaystack, StatusCode: resp.StatusCode, Message: "unparseable response: " + truncate(string(raw))}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Status {
		msg := env.Message
		if msg == "" {
			msg = truncate(string(raw))
		}
		code := resp.StatusCode
		if code < 400 {
			code = http.StatusBadGateway
		}
		return nil, raw, &Error{Provider: ProviderPaystack, StatusCode: code, Message: msg}
	}

	return &env, raw, nil
}

func (p *Paystack) InitializePayment(ctx context.Context, req InitializeRequest) (*InitializeResponse, error) {
	payload := map[string]interface{}{
		"email":     req.Email,
		"amount":    req.Amount,
		"reference": req.Reference,
	}
	if req.CallbackURL != "" {
		payload["callback_url"] = req.CallbackURL
	}
	if len(req.Metadata) > 0 {
		payload["metadata"] = req.Metadata
	}

	env, raw, err := p.call(ctx, http.MethodPost, "/transaction/initialize", payload)
	if err != nil {
		return nil, err
	}

	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		Reference        string `json:"reference"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, &Error{Provider: ProviderPaystack, StatusCode: http.StatusBadGateway, Message: "bad initialize payload"}
	}

	return &InitializeResponse{
		PaymentURL: data.AuthorizationURL,
		Reference:  data.Reference,
		Raw:        raw,
	}, nil
}

func (p *Paystack) VerifyPayment(ctx context.Context, reference string) (*VerifyResult, error) {
	env, raw, err := p.call(ctx, http.MethodGet, "/transaction/verify/"+reference, nil)
	if err != nil {
		return nil, err
	}

	var data struct {
		Status string `json:"status"`
		Amount int64  `json:"amount"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, &Error{Provider: ProviderPaystack, StatusCode: http.StatusBadGateway, Message: "bad verify payload"}
	}

	return &VerifyResult{
		Status: mapPaystackStatus(data.Status),
		Amount: data.Amount,
		Raw:    raw,
	}, nil
}

// CapturePayment confirms that a charge settled. Paystack captures
// standard charges automatically, so this verifies the transaction and
// treats anything but success as a capture failure.
func (p *Paystack) CapturePayment(ctx context.Context, reference string) error {
	result, err := p.VerifyPayment(ctx, reference)
	if err != nil {
		return err
	}
	if result.Status != StatusSuccess {
		return &Error{Provider: ProviderPaystack, StatusCode: http.StatusBadRequest, Message: "charge not settled: " + string(result.Status)}
	}
	return nil
}

func (p *Paystack) RefundPayment(ctx context.Context, reference string, amount int64) error {
	payload := map[string]interface{}{
		"transaction": reference,
		"amount":      amount,
	}
	_, _, err := p.call(ctx, http.MethodPost, "/refund", payload)
	return err
}

func (p *Paystack) CreateTransferRecipient(ctx context.Context, details BankDetails) (string, error) {
	payload := map[string]interface{}{
		"type":           "nuban",
		"name":           details.AccountName,
		"account_number": details.AccountNumber,
		"bank_code":      details.BankCode,
		"currency":       "NGN",
	}
	env, _, err := p.call(ctx, http.MethodPost, "/transferrecipient", payload)
	if err != nil {
		return "", err
	}

	var data struct {
		RecipientCode string `json:"recipient_code"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", &Error{Provider: ProviderPaystack, StatusCode: http.StatusBadGateway, Message: "bad recipient payload"}
	}
	return data.RecipientCode, nil
}

func (p *Paystack) InitiateTransfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	recipientCode, err := p.CreateTransferRecipient(ctx, req.Recipient)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"source":    "balance",
		"amount":    req.Amount,
		"recipient": recipientCode,
		"reference": req.Reference,
		"reason":    req.Narration,
	}
	env, raw, err := p.call(ctx, http.MethodPost, "/transfer", payload)
	if err != nil {
		return nil, err
	}

	var data struct {
		TransferCode string `json:"transfer_code"`
		Status       string `json:"status"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, &Error{Provider: ProviderPaystack, StatusCode: http.StatusBadGateway, Message: "bad transfer payload"}
	}

	return &TransferResult{
		ProviderRef: data.TransferCode,
		Status:      mapPaystackStatus(data.Status),
		Raw:         raw,
	}, nil
}

// VerifyWebhookSignature checks the x-paystack-signature header:
// HMAC-SHA512 of the raw body keyed with the secret key, hex encoded.
func (p *Paystack) VerifyWebhookSignature(rawBody []byte, signature string) bool {
	if p.config.SecretKey == "" || signature == "" {
		return false
	}

	h := hmac.New(sha512.New, []byte(p.config.SecretKey))
	h.Write(rawBody)
	expected := h.Sum(nil)

	given, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}

	return hmac.Equal(given, expected)
}

func (p *Paystack) ParseWebhookEvent(rawBody []byte) (*WebhookEvent, error) {
	var payload struct {
		Event string `json:"event"`
		Data  struct {
			Reference string `json:"reference"`
			Amount    int64  `json:"amount"`
			Status    string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, fmt.Errorf("invalid paystack webhook body: %w", err)
	}

	event := &WebhookEvent{
		Type:      payload.Event,
		Reference: payload.Data.Reference,
		Amount:    payload.Data.Amount,
		Status:    mapPaystackStatus(payload.Data.Status),
		Raw:       rawBody,
	}
	switch payload.Event {
	case "charge.success":
		event.Type = EventChargeSuccess
	case "charge.failed":
		event.Type = EventChargeFailed
	case "transfer.success", "transfer.failed", "transfer.reversed":
		event.Type = EventTransferResult
	}
	return event, nil
}

func mapPaystackStatus(status string) Status {
	switch strings.ToLower(status) {
	case "success", "successful":
		return StatusSuccess
	case "failed", "abandoned", "reversed":
		return StatusFailed
	default:
		return StatusPending
	}
}

func truncate(s string) string {
	if len(s) > 300 {
		return s[:300] + "..."
	}
	return s
}
