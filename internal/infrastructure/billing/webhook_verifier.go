package billing

import (
	"fmt"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/talentsift/backend/internal/domain/shared"
)

// StripeWebhookVerifier authenticates webhook deliveries against the
// endpoint's signing secret. Verification runs on the raw request body; any
// re-serialization would break the signature.
type StripeWebhookVerifier struct {
	secret string
}

// NewStripeWebhookVerifier creates a verifier for the given signing secret
func NewStripeWebhookVerifier(secret string) *StripeWebhookVerifier {
	return &StripeWebhookVerifier{secret: secret}
}

// VerifySignature checks the Stripe-Signature header against the payload and
// returns the parsed event. Failures map to ErrInvalidSignature so callers
// can reject the delivery without touching any store.
func (v *StripeWebhookVerifier) VerifySignature(payload []byte, sigHeader string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, v.secret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", shared.ErrInvalidSignature, err)
	}
	return event, nil
}
