package gateway

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const flutterwaveBaseURL = "https://api.flutterwave.com/v3"

// FlutterwaveConfig holds Flutterwave API credentials. WebhookKey is
// the secret hash configured on the dashboard, sent back in the
// verif-hash header.
type FlutterwaveConfig struct {
	SecretKey  string
	WebhookKey string
	BaseURL    string
	Timeout    time.Duration
}

// Flutterwave implements Gateway against the Flutterwave v3 API.
// Flutterwave amounts are major units, so the adapter converts at the
// wire boundary and everything above it stays in minor units.
type Flutterwave struct {
	httpClient *http.Client
	config     FlutterwaveConfig
}

// NewFlutterwave creates a Flutterwave gateway client
func NewFlutterwave(cfg FlutterwaveConfig) *Flutterwave {
	if cfg.BaseURL == "" {
		cfg.BaseURL = flutterwaveBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Flutterwave{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
	}
}

func (f *Flutterwave) Name() string { return ProviderFlutterwave }

type flutterwaveEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (f *Flutterwave) call(ctx context.Context, method, path string, payload interface{}) (*flutterwaveEnvelope, json.RawMessage, error) {
	if strings.TrimSpace(f.config.SecretKey) == "" {
		return nil, nil, fmt.Errorf("flutterwave config error: secret_key is empty")
	}

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode flutterwave request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	reqURL := strings.TrimRight(f.config.BaseURL, "/") + path
	httpReq, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, nil, &Error{Provider: ProviderFlutterwave, Message: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+f.config.SecretKey)

	resp, err := f.httpClient.Do(httpReq)
	if err != nil {
		return nil, nil, &Error{Provider: ProviderFlutterwave, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &Error{Provider: ProviderFlutterwave, Message: err.Error()}
	}

	var env flutterwaveEnvelope
	if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 300 {
		return nil, nil, &Error{Provider: ProviderFlutterwave, StatusCode: resp.StatusCode, Message: "unparseable response: " + truncate(string(raw))}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || env.Status == "error" {
		msg := env.Message
		if msg == "" {
			msg = truncate(string(raw))
		}
		code := resp.StatusCode
		if code < 400 {
			code = http.StatusBadGateway
		}
		return nil, raw, &Error{Provider: ProviderFlutterwave, StatusCode: code, Message: msg}
	}

	return &env, raw, nil
}

func (f *Flutterwave) InitializePayment(ctx context.Context, req InitializeRequest) (*InitializeResponse, error) {
	payload := map[string]interface{}{
		"tx_ref":       req.Reference,
		"amount":       toMajorUnits(req.Amount),
		"currency":     "NGN",
		"redirect_url": req.CallbackURL,
		"customer": map[string]string{
			"email": req.Email,
		},
	}
	if len(req.Metadata) > 0 {
		payload["meta"] = req.Metadata
	}

	env, raw, err := f.call(ctx, http.MethodPost, "/payments", payload)
	if err != nil {
		return nil, err
	}

	var data struct {
		Link string `json:"link"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, &Error{Provider: ProviderFlutterwave, StatusCode: http.StatusBadGateway, Message: "bad payments payload"}
	}

	return &InitializeResponse{
		PaymentURL: data.Link,
		Reference:  req.Reference,
		Raw:        raw,
	}, nil
}

func (f *Flutterwave) VerifyPayment(ctx context.Context, reference string) (*VerifyResult, error) {
	_, result, raw, err := f.lookupByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	result.Raw = raw
	return result, nil
}

// lookupByReference resolves a tx_ref to the numeric transaction id the
// refund endpoint needs, along with the normalized charge state.
func (f *Flutterwave) lookupByReference(ctx context.Context, reference string) (int64, *VerifyResult, json.RawMessage, error) {
	path := "/transactions/verify_by_reference?tx_ref=" + url.QueryEscape(reference)
	env, raw, err := f.call(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, nil, nil, err
	}

	var data struct {
		ID     int64   `json:"id"`
		Status string  `json:"status"`
		Amount float64 `json:"amount"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return 0, nil, nil, &Error{Provider: ProviderFlutterwave, StatusCode: http.StatusBadGateway, Message: "bad verify payload"}
	}

	result := &VerifyResult{
		Status: mapFlutterwaveStatus(data.Status),
		Amount: toMinorUnits(data.Amount),
	}
	return data.ID, result, raw, nil
}

// CapturePayment confirms a settled charge. Flutterwave card charges
// settle on authorization, so this verifies and rejects anything not
// successful.
func (f *Flutterwave) CapturePayment(ctx context.Context, reference string) error {
	result, err := f.VerifyPayment(ctx, reference)
	if err != nil {
		return err
	}
	if result.Status != StatusSuccess {
		return &Error{Provider: ProviderFlutterwave, StatusCode: http.StatusBadRequest, Message: "charge not settled: " + string(result.Status)}
	}
	return nil
}

func (f *Flutterwave) RefundPayment(ctx context.Context, reference string, amount int64) error {
	id, _, _, err := f.lookupByReference(ctx, reference)
	if err != nil {
		return err
	}

	payload := map[string]interface{}{
		"amount": toMajorUnits(amount),
	}
	_, _, err = f.call(ctx, http.MethodPost, fmt.Sprintf("/transactions/%d/refund", id), payload)
	return err
}

// CreateTransferRecipient is a no-op for Flutterwave: transfers take
// the bank details inline, so there is no recipient object to create.
func (f *Flutterwave) CreateTransferRecipient(_ context.Context, details BankDetails) (string, error) {
	return details.AccountNumber, nil
}

func (f *Flutterwave) InitiateTransfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	payload := map[string]interface{}{
		"account_bank":   req.Recipient.BankCode,
		"account_number": req.Recipient.AccountNumber,
		"amount":         toMajorUnits(req.Amount),
		"currency":       "NGN",
		"reference":      req.Reference,
		"narration":      req.Narration,
	}
	env, raw, err := f.call(ctx, http.MethodPost, "/transfers", payload)
	if err != nil {
		return nil, err
	}

	var data struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, &Error{Provider: ProviderFlutterwave, StatusCode: http.StatusBadGateway, Message: "bad transfer payload"}
	}

	return &TransferResult{
		ProviderRef: fmt.Sprintf("%d", data.ID),
		Status:      mapFlutterwaveStatus(data.Status),
		Raw:         raw,
	}, nil
}

// VerifyWebhookSignature compares the verif-hash header against the
// configured webhook key. Flutterwave sends the shared secret itself,
// not an HMAC over the body.
func (f *Flutterwave) VerifyWebhookSignature(_ []byte, signature string) bool {
	if f.config.WebhookKey == "" || signature == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(signature), []byte(f.config.WebhookKey)) == 1
}

func (f *Flutterwave) ParseWebhookEvent(rawBody []byte) (*WebhookEvent, error) {
	var payload struct {
		Event string `json:"event"`
		Data  struct {
			TxRef     string  `json:"tx_ref"`
			Reference string  `json:"reference"`
			Amount    float64 `json:"amount"`
			Status    string  `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, fmt.Errorf("invalid flutterwave webhook body: %w", err)
	}

	reference := payload.Data.TxRef
	if reference == "" {
		reference = payload.Data.Reference
	}

	event := &WebhookEvent{
		Type:      payload.Event,
		Reference: reference,
		Amount:    toMinorUnits(payload.Data.Amount),
		Status:    mapFlutterwaveStatus(payload.Data.Status),
		Raw:       rawBody,
	}
	switch payload.Event {
	case "charge.completed":
		if event.Status == StatusSuccess {
			event.Type = EventChargeSuccess
		} else {
			event.Type = EventChargeFailed
		}
	case "transfer.completed":
		event.Type = EventTransferResult
	}
	return event, nil
}

func mapFlutterwaveStatus(status string) Status {
	switch strings.ToLower(status) {
	case "successful", "success":
		return StatusSuccess
	case "failed", "error", "cancelled":
		return StatusFailed
	default:
		return StatusPending
	}
}

func toMajorUnits(minor int64) float64 {
	return float64(minor) / 100
}

func toMinorUnits(major float64) int64 {
	return int64(major*100 + 0.5)
}
