// AngelaMos | 2026
// reconciler.go

package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/carterperez-dev/templates/saas-backend/internal/config"
	"github.com/carterperez-dev/templates/saas-backend/internal/core"
	"github.com/carterperez-dev/templates/saas-backend/internal/org"
)

var (
	ErrInvalidSignature = errors.New("webhook signature verification failed")
	ErrInvalidPayload   = errors.New("webhook payload is malformed")
)

// Reconciler turns provider webhook deliveries into subscription state.
// Every apply is idempotent: replays and out-of-order redeliveries carry
// an event timestamp, and the store refuses to regress past it.
type Reconciler struct {
	orgs          org.Repository
	webhookSecret string
	tolerance     time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

func NewReconciler(
	orgs org.Repository,
	cfg config.BillingConfig,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		orgs:          orgs,
		webhookSecret: cfg.WebhookSecret,
		tolerance:     cfg.WebhookTolerance,
		now:           time.Now,
		logger:        logger,
	}
}

// VerifySignature checks the raw body against the Stripe-Signature scheme:
// `t=<unix>,v1=<hex hmac>` where the MAC covers `<t>.<body>`. The timestamp
// must fall within the configured tolerance; without that bound a captured
// delivery could be replayed forever.
func (r *Reconciler) VerifySignature(payload []byte, sigHeader string) error {
	sigHeader = strings.TrimSpace(sigHeader)
	if sigHeader == "" {
		return ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return ErrInvalidSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}

	age := r.now().Sub(time.Unix(ts, 0))
	if age > r.tolerance || age < -r.tolerance {
		return ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(r.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return ErrInvalidSignature
}

func parseSignatureHeader(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("missing timestamp or signature")
	}
	return timestamp, signatures, nil
}

type webhookEvent struct {
	ID      string           `json:"id"`
	Type    string           `json:"type"`
	Created int64            `json:"created"`
	Data    webhookEventData `json:"data"`
}

type webhookEventData struct {
	Object json.RawMessage `json:"object"`
}

type subscriptionObject struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
	Status   string `json:"status"`
}

// Process verifies and applies a single webhook delivery. Verification
// happens before any parsing: an attacker-controlled body is never
// unmarshalled.
func (r *Reconciler) Process(
	ctx context.Context,
	payload []byte,
	sigHeader string,
) error {
	if err := r.VerifySignature(payload, sigHeader); err != nil {
		return err
	}

	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if strings.TrimSpace(event.ID) == "" {
		return ErrInvalidPayload
	}

	switch strings.TrimSpace(event.Type) {
	case "checkout.session.completed":
		// The subscription lifecycle events that follow carry the status;
		// nothing to apply yet.
		r.logger.Info("checkout session completed", "event_id", event.ID)
		return nil
	case "customer.subscription.created", "customer.subscription.updated":
		return r.applySubscription(ctx, event, "")
	case "customer.subscription.deleted":
		return r.applySubscription(ctx, event, "canceled")
	default:
		r.logger.Warn("unhandled webhook event type",
			"event_id", event.ID,
			"type", event.Type,
		)
		return nil
	}
}

func (r *Reconciler) applySubscription(
	ctx context.Context,
	event webhookEvent,
	statusOverride string,
) error {
	var subscription subscriptionObject
	if err := json.Unmarshal(event.Data.Object, &subscription); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if strings.TrimSpace(subscription.Customer) == "" {
		return ErrInvalidPayload
	}

	providerStatus := subscription.Status
	if statusOverride != "" {
		providerStatus = statusOverride
	}

	status := MapSubscriptionStatus(providerStatus)
	eventAt := time.Unix(event.Created, 0).UTC()

	applied, err := r.orgs.ApplySubscriptionStatus(
		ctx,
		subscription.Customer,
		status,
		eventAt,
	)
	if err != nil {
		return fmt.Errorf("apply subscription status: %w", err)
	}

	if !applied {
		// Either no organization owns this customer id, or a newer event
		// already landed. Both are fine to acknowledge: retrying cannot
		// change the outcome.
		if _, lookupErr := r.orgs.GetByBillingCustomerID(
			ctx,
			subscription.Customer,
		); errors.Is(lookupErr, core.ErrNotFound) {
			r.logger.Warn("webhook for unknown billing customer",
				"event_id", event.ID,
				"customer_id", subscription.Customer,
			)
		} else {
			r.logger.Info("stale subscription event ignored",
				"event_id", event.ID,
				"customer_id", subscription.Customer,
				"event_at", eventAt,
			)
		}
		return nil
	}

	r.logger.Info("subscription status applied",
		"event_id", event.ID,
		"customer_id", subscription.Customer,
		"status", status,
	)

	return nil
}

// MapSubscriptionStatus collapses the provider's subscription states onto
// the two plans the app knows. Only active and trialing grant premium;
// past_due, unpaid, canceled and the rest all fall back to free.
func MapSubscriptionStatus(providerStatus string) string {
	switch providerStatus {
	case "active", "trialing":
		return org.StatusPremium
	default:
		return org.StatusFree
	}
}
