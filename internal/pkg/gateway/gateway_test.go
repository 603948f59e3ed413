package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"testing"
)

func TestSandboxInitializeAndVerify(t *testing.T) {
	gw := NewSandbox("test-secret")
	ctx := context.Background()

	resp, err := gw.InitializePayment(ctx, InitializeRequest{
		Reference: "FXM-abc12345-1700000000",
		Amount:    150000,
		Email:     "customer@example.com",
	})
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	if resp.PaymentURL == "" {
		t.Error("expected a payment URL")
	}

	result, err := gw.VerifyPayment(ctx, "FXM-abc12345-1700000000")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if result.Status != StatusSuccess {
		t.Errorf("expected success, got %s", result.Status)
	}
	if result.Amount != 150000 {
		t.Errorf("expected amount 150000, got %d", result.Amount)
	}
}

func TestSandboxVerifyUnknownReference(t *testing.T) {
	gw := NewSandbox("test-secret")

	_, err := gw.VerifyPayment(context.Background(), "FXM-missing-1")
	if err == nil {
		t.Fatal("expected error for unknown reference")
	}
	if !IsClientError(err) {
		t.Errorf("expected a client error, got %v", err)
	}
}

func TestSandboxSteeredStatuses(t *testing.T) {
	gw := NewSandbox("test-secret")
	ctx := context.Background()

	cases := []struct {
		reference string
		want      Status
	}{
		{"FXM-a-1-fail", StatusFailed},
		{"FXM-a-2-pending", StatusPending},
		{"FXM-a-3", StatusSuccess},
	}

	for _, tc := range cases {
		if _, err := gw.InitializePayment(ctx, InitializeRequest{Reference: tc.reference, Amount: 1000}); err != nil {
			t.Fatalf("initialize %s: %v", tc.reference, err)
		}
		result, err := gw.VerifyPayment(ctx, tc.reference)
		if err != nil {
			t.Fatalf("verify %s: %v", tc.reference, err)
		}
		if result.Status != tc.want {
			t.Errorf("%s: expected %s, got %s", tc.reference, tc.want, result.Status)
		}
	}
}

func TestSandboxRefundBounds(t *testing.T) {
	gw := NewSandbox("test-secret")
	ctx := context.Background()

	if _, err := gw.InitializePayment(ctx, InitializeRequest{Reference: "FXM-r-1", Amount: 10000}); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if err := gw.RefundPayment(ctx, "FXM-r-1", 4000); err != nil {
		t.Fatalf("partial refund failed: %v", err)
	}
	if err := gw.RefundPayment(ctx, "FXM-r-1", 6000); err != nil {
		t.Fatalf("second refund up to charge failed: %v", err)
	}
	if err := gw.RefundPayment(ctx, "FXM-r-1", 1); err == nil {
		t.Error("expected refund over charge to fail")
	}
}

func TestSandboxWebhookSignature(t *testing.T) {
	gw := NewSandbox("test-secret")
	body := []byte(`{"event":"charge.success","reference":"FXM-w-1","amount":5000,"status":"success"}`)

	sig := gw.SignWebhook(body)
	if !gw.VerifyWebhookSignature(body, sig) {
		t.Error("valid signature rejected")
	}
	if gw.VerifyWebhookSignature(body, "deadbeef") {
		t.Error("invalid signature accepted")
	}
	if gw.VerifyWebhookSignature(body, "") {
		t.Error("empty signature accepted")
	}

	tampered := []byte(`{"event":"charge.success","reference":"FXM-w-1","amount":9999,"status":"success"}`)
	if gw.VerifyWebhookSignature(tampered, sig) {
		t.Error("signature accepted for tampered body")
	}
}

func TestSandboxParseWebhookEvent(t *testing.T) {
	gw := NewSandbox("test-secret")
	body := []byte(`{"event":"charge.success","reference":"FXM-w-2","amount":7500,"status":"success"}`)

	event, err := gw.ParseWebhookEvent(body)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if event.Type != EventChargeSuccess {
		t.Errorf("expected %s, got %s", EventChargeSuccess, event.Type)
	}
	if event.Reference != "FXM-w-2" {
		t.Errorf("unexpected reference %s", event.Reference)
	}
	if event.Amount != 7500 {
		t.Errorf("unexpected amount %d", event.Amount)
	}
	if event.Status != StatusSuccess {
		t.Errorf("unexpected status %s", event.Status)
	}

	if _, err := gw.ParseWebhookEvent([]byte("not json")); err == nil {
		t.Error("expected error for malformed body")
	}
}

func TestPaystackWebhookSignature(t *testing.T) {
	gw := NewPaystack(PaystackConfig{SecretKey: "sk_test_secret"})
	body := []byte(`{"event":"charge.success","data":{"reference":"FXM-p-1","amount":5000,"status":"success"}}`)

	h := hmac.New(sha512.New, []byte("sk_test_secret"))
	h.Write(body)
	sig := hex.EncodeToString(h.Sum(nil))

	if !gw.VerifyWebhookSignature(body, sig) {
		t.Error("valid signature rejected")
	}
	if gw.VerifyWebhookSignature(body, "not-hex!") {
		t.Error("malformed signature accepted")
	}
	if gw.VerifyWebhookSignature([]byte("other"), sig) {
		t.Error("signature accepted for wrong body")
	}
}

func TestPaystackParseWebhookEvent(t *testing.T) {
	gw := NewPaystack(PaystackConfig{SecretKey: "sk_test_secret"})
	body := []byte(`{"event":"charge.success","data":{"reference":"FXM-p-2","amount":120000,"status":"success"}}`)

	event, err := gw.ParseWebhookEvent(body)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if event.Type != EventChargeSuccess {
		t.Errorf("expected %s, got %s", EventChargeSuccess, event.Type)
	}
	if event.Amount != 120000 {
		t.Errorf("unexpected amount %d", event.Amount)
	}
}

func TestFlutterwaveWebhookSignature(t *testing.T) {
	gw := NewFlutterwave(FlutterwaveConfig{SecretKey: "fw_sk", WebhookKey: "hash-123"})

	if !gw.VerifyWebhookSignature(nil, "hash-123") {
		t.Error("matching verif-hash rejected")
	}
	if gw.VerifyWebhookSignature(nil, "hash-124") {
		t.Error("wrong verif-hash accepted")
	}
	if gw.VerifyWebhookSignature(nil, "") {
		t.Error("empty verif-hash accepted")
	}
}

func TestFlutterwaveParseWebhookEvent(t *testing.T) {
	gw := NewFlutterwave(FlutterwaveConfig{SecretKey: "fw_sk", WebhookKey: "hash-123"})
	body := []byte(`{"event":"charge.completed","data":{"tx_ref":"FXM-f-1","amount":750.50,"status":"successful"}}`)

	event, err := gw.ParseWebhookEvent(body)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if event.Type != EventChargeSuccess {
		t.Errorf("expected %s, got %s", EventChargeSuccess, event.Type)
	}
	if event.Amount != 75050 {
		t.Errorf("expected 75050 minor units, got %d", event.Amount)
	}

	failed := []byte(`{"event":"charge.completed","data":{"tx_ref":"FXM-f-2","amount":10,"status":"failed"}}`)
	event, err = gw.ParseWebhookEvent(failed)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if event.Type != EventChargeFailed {
		t.Errorf("expected %s, got %s", EventChargeFailed, event.Type)
	}
}

func TestMinorUnitConversion(t *testing.T) {
	cases := []struct {
		major float64
		minor int64
	}{
		{0, 0},
		{1, 100},
		{750.50, 75050},
		{0.01, 1},
		{1234.56, 123456},
	}
	for _, tc := range cases {
		if got := toMinorUnits(tc.major); got != tc.minor {
			t.Errorf("toMinorUnits(%v) = %d, want %d", tc.major, got, tc.minor)
		}
	}
	if got := toMajorUnits(75050); got != 750.50 {
		t.Errorf("toMajorUnits(75050) = %v, want 750.50", got)
	}
}

func TestGatewayErrorClassification(t *testing.T) {
	clientErr := &Error{Provider: ProviderPaystack, StatusCode: 400, Message: "bad reference"}
	if !IsClientError(clientErr) {
		t.Error("400 should be a client error")
	}

	serverErr := &Error{Provider: ProviderPaystack, StatusCode: 502, Message: "upstream down"}
	if IsClientError(serverErr) {
		t.Error("502 should not be a client error")
	}

	transportErr := &Error{Provider: ProviderPaystack, Message: "connection refused"}
	if IsClientError(transportErr) {
		t.Error("transport failure should not be a client error")
	}
}
