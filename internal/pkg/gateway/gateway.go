package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Provider identifiers used in config and webhook routing.
const (
	ProviderSandbox     = "sandbox"
	ProviderPaystack    = "paystack"
	ProviderFlutterwave = "flutterwave"
)

// Status is the gateway-reported state of a charge or transfer,
// normalized across providers.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusPending Status = "pending"
)

// InitializeRequest starts a hosted-payment flow. Amount is in integer
// minor units; each adapter converts to its provider's wire format.
type InitializeRequest struct {
	Reference   string
	Amount      int64
	Email       string
	CallbackURL string
	Metadata    map[string]string
}

// InitializeResponse carries the redirect URL for the payer.
type InitializeResponse struct {
	PaymentURL string
	Reference  string
	Raw        json.RawMessage
}

// VerifyResult is the provider's view of a charge.
type VerifyResult struct {
	Status Status
	Amount int64
	Raw    json.RawMessage
}

// BankDetails identifies the destination account for a payout transfer.
type BankDetails struct {
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
}

// TransferRequest moves funds from the platform balance to a recipient.
type TransferRequest struct {
	Reference string
	Amount    int64
	Recipient BankDetails
	Narration string
}

// TransferResult reports the provider's acceptance of a transfer.
type TransferResult struct {
	ProviderRef string
	Status      Status
	Raw         json.RawMessage
}

// WebhookEvent is a provider notification normalized to this service's
// vocabulary. Amount is minor units; Raw keeps the original body.
type WebhookEvent struct {
	Type      string
	Reference string
	Amount    int64
	Status    Status
	Raw       json.RawMessage
}

// Event types emitted by ParseWebhookEvent.
const (
	EventChargeSuccess  = "charge.success"
	EventChargeFailed   = "charge.failed"
	EventTransferResult = "transfer.result"
)

// Gateway is the capability surface the settlement engine depends on.
// Implementations never touch local state; all persistence happens in
// the caller.
type Gateway interface {
	Name() string
	InitializePayment(ctx context.Context, req InitializeRequest) (*InitializeResponse, error)
	VerifyPayment(ctx context.Context, reference string) (*VerifyResult, error)
	CapturePayment(ctx context.Context, reference string) error
	RefundPayment(ctx context.Context, reference string, amount int64) error
	CreateTransferRecipient(ctx context.Context, details BankDetails) (string, error)
	InitiateTransfer(ctx context.Context, req TransferRequest) (*TransferResult, error)

	// VerifyWebhookSignature checks the provider signature over the raw,
	// unparsed body using a constant-time compare.
	VerifyWebhookSignature(rawBody []byte, signature string) bool
	ParseWebhookEvent(rawBody []byte) (*WebhookEvent, error)
}

// Error is a failed gateway call. StatusCode 0 means a transport-level
// failure (timeout, connection refused).
type Error struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s gateway error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// IsClientError reports whether the provider rejected the request as
// invalid (4xx). Callers map these to BadRequest and everything else to
// an internal fault.
func (e *Error) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// IsClientError unwraps err looking for a 4xx gateway rejection.
func IsClientError(err error) bool {
	var gerr *Error
	return errors.As(err, &gerr) && gerr.IsClientError()
}
