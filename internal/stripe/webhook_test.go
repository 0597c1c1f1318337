package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	stripego "github.com/stripe/stripe-go/v82"
)

const testSecret = "whsec_test_secret"

// signPayload builds a Stripe-Signature header for payload at ts.
func signPayload(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.", ts.Unix())))
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

const checkoutEvent = `{
  "id": "evt_123",
  "object": "event",
  "type": "checkout.session.completed",
  "data": {
    "object": {
      "id": "cs_test_1",
      "object": "checkout.session",
      "customer_details": {"email": "alice@example.com"},
      "metadata": {"github_username": "alice123"}
    }
  }
}`

func TestConstructEvent_ValidSignature(t *testing.T) {
	verifier := NewVerifier(testSecret, 0)
	payload := []byte(checkoutEvent)

	event, err := verifier.ConstructEvent(payload, signPayload(payload, testSecret, time.Now()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.ID != "evt_123" {
		t.Errorf("event.ID = %q, want evt_123", event.ID)
	}
	if !IsCheckoutCompleted(event) {
		t.Errorf("event.Type = %q, want checkout.session.completed", event.Type)
	}
	if event.Data == nil || event.Data.Object["id"] != "cs_test_1" {
		t.Fatalf("data.object not parsed: %+v", event.Data)
	}

	var input struct {
		Data struct {
			Object map[string]any `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &input); err != nil {
		t.Fatalf("test payload is not JSON: %v", err)
	}
	var parsed map[string]any
	if err := json.Unmarshal(event.Data.Raw, &parsed); err != nil {
		t.Fatalf("event.Data.Raw is not JSON: %v", err)
	}
	if !reflect.DeepEqual(parsed, input.Data.Object) {
		t.Errorf("event.Data.Raw = %s, want the signed data.object %v", event.Data.Raw, input.Data.Object)
	}
}

func TestConstructEvent_InvalidSignature(t *testing.T) {
	payload := []byte(checkoutEvent)
	now := time.Now()

	tests := []struct {
		name    string
		payload []byte
		header  string
	}{
		{"missing header", payload, ""},
		{"malformed header", payload, "not-a-signature"},
		{"wrong secret", payload, signPayload(payload, "whsec_other", now)},
		{"tampered body", []byte(checkoutEvent + " "), signPayload(payload, testSecret, now)},
		{"expired timestamp", payload, signPayload(payload, testSecret, now.Add(-time.Hour))},
		{"garbage body with wrong secret", []byte("{not json"), signPayload([]byte("{not json"), "whsec_other", now)},
	}

	verifier := NewVerifier(testSecret, 5*time.Minute)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.ConstructEvent(tt.payload, tt.header)
			if !errors.Is(err, ErrInvalidSignature) {
				t.Errorf("expected ErrInvalidSignature, got %v", err)
			}
		})
	}
}

func TestConstructEvent_InvalidPayload(t *testing.T) {
	verifier := NewVerifier(testSecret, 0)

	for _, body := range []string{`{invalid json}`, `{"id":"evt_1","object":"event"}`} {
		payload := []byte(body)
		_, err := verifier.ConstructEvent(payload, signPayload(payload, testSecret, time.Now()))
		if !errors.Is(err, ErrInvalidPayload) {
			t.Errorf("body %q: expected ErrInvalidPayload, got %v", body, err)
		}
	}
}

func TestCheckoutSession(t *testing.T) {
	verifier := NewVerifier(testSecret, 0)
	payload := []byte(checkoutEvent)
	event, err := verifier.ConstructEvent(payload, signPayload(payload, testSecret, time.Now()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	session, err := CheckoutSession(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.ID != "cs_test_1" {
		t.Errorf("session.ID = %q, want cs_test_1", session.ID)
	}
	if got := CustomerEmail(session); got != "alice@example.com" {
		t.Errorf("CustomerEmail() = %q, want alice@example.com", got)
	}

	if _, err := CheckoutSession(stripego.Event{ID: "evt_empty"}); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("expected ErrInvalidPayload for event without data, got %v", err)
	}
	if got := CustomerEmail(&stripego.CheckoutSession{}); got != "" {
		t.Errorf("CustomerEmail() = %q, want empty", got)
	}
}
