// Package stripe verifies Stripe webhook deliveries and reads the checkout
// data this service acts on.
package stripe

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	stripego "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// SignatureHeader is the header Stripe signs every delivery with.
const SignatureHeader = "Stripe-Signature"

var (
	// ErrInvalidSignature is returned when the signature header is missing,
	// malformed, outside the tolerance window or does not match the payload.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrInvalidPayload is returned when a correctly signed body is not a Stripe event.
	ErrInvalidPayload = errors.New("invalid payload")
)

// Verifier checks webhook signatures against the endpoint signing secret.
type Verifier struct {
	secret    string
	tolerance time.Duration
}

// NewVerifier returns a Verifier. A zero tolerance uses the library default.
func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &Verifier{secret: secret, tolerance: tolerance}
}

// ConstructEvent verifies the raw payload against the signature header and
// parses it. Errors wrap ErrInvalidSignature or ErrInvalidPayload.
func (v *Verifier) ConstructEvent(payload []byte, signatureHeader string) (stripego.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return stripego.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return stripego.Event{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if event.Type == "" {
		return stripego.Event{}, fmt.Errorf("%w: event has no type", ErrInvalidPayload)
	}
	return event, nil
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

// IsCheckoutCompleted reports whether the event is a completed checkout.
func IsCheckoutCompleted(event stripego.Event) bool {
	return event.Type == stripego.EventTypeCheckoutSessionCompleted
}

// CheckoutSession decodes data.object of a checkout event.
func CheckoutSession(event stripego.Event) (*stripego.CheckoutSession, error) {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, fmt.Errorf("%w: event %s has no data object", ErrInvalidPayload, event.ID)
	}
	var session stripego.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("%w: decoding checkout session: %v", ErrInvalidPayload, err)
	}
	return &session, nil
}

// CustomerEmail returns customer_details.email, or "" when absent.
func CustomerEmail(session *stripego.CheckoutSession) string {
	if session == nil || session.CustomerDetails == nil {
		return ""
	}
	return session.CustomerDetails.Email
}
