// AngelaMos | 2026
// provider.go

package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/carterperez-dev/templates/saas-backend/internal/config"
)

var ErrProviderUnavailable = errors.New("billing provider request failed")

type Customer struct {
	ID string `json:"id"`
}

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type PortalSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Provider is the outbound half of the billing integration: everything the
// app asks the payment provider to do. The inbound half (webhooks) never
// goes through here.
type Provider interface {
	CreateCustomer(
		ctx context.Context,
		organizationID, name, email string,
	) (*Customer, error)
	CreateCheckoutSession(
		ctx context.Context,
		customerID, successURL, cancelURL string,
	) (*CheckoutSession, error)
	CreatePortalSession(
		ctx context.Context,
		customerID, returnURL string,
	) (*PortalSession, error)
}

type stripeProvider struct {
	secretKey string
	priceID   string
	baseURL   string
	client    *http.Client
}

func NewStripeProvider(cfg config.BillingConfig) Provider {
	return &stripeProvider{
		secretKey: strings.TrimSpace(cfg.SecretKey),
		priceID:   strings.TrimSpace(cfg.PriceID),
		baseURL:   "https://api.stripe.com",
		client:    &http.Client{Timeout: 12 * time.Second},
	}
}

func (p *stripeProvider) CreateCustomer(
	ctx context.Context,
	organizationID, name, email string,
) (*Customer, error) {
	values := url.Values{}
	values.Set("name", name)
	if email != "" {
		values.Set("email", email)
	}

	// Keyed on the organization so a retried or raced creation resolves to
	// one provider-side customer.
	idempotencyKey := "customer-create-" + organizationID

	var customer Customer
	err := p.doRequest(ctx, "/v1/customers", values, idempotencyKey, &customer)
	if err != nil {
		return nil, err
	}
	if customer.ID == "" {
		return nil, fmt.Errorf("create customer: %w", ErrProviderUnavailable)
	}

	return &customer, nil
}

func (p *stripeProvider) CreateCheckoutSession(
	ctx context.Context,
	customerID, successURL, cancelURL string,
) (*CheckoutSession, error) {
	values := url.Values{}
	values.Set("mode", "subscription")
	values.Set("customer", customerID)
	values.Set("line_items[0][price]", p.priceID)
	values.Set("line_items[0][quantity]", "1")
	values.Set("success_url", successURL)
	values.Set("cancel_url", cancelURL)

	var session CheckoutSession
	err := p.doRequest(ctx, "/v1/checkout/sessions", values, "", &session)
	if err != nil {
		return nil, err
	}
	if session.URL == "" {
		return nil, fmt.Errorf(
			"create checkout session: %w",
			ErrProviderUnavailable,
		)
	}

	return &session, nil
}

func (p *stripeProvider) CreatePortalSession(
	ctx context.Context,
	customerID, returnURL string,
) (*PortalSession, error) {
	values := url.Values{}
	values.Set("customer", customerID)
	values.Set("return_url", returnURL)

	var session PortalSession
	err := p.doRequest(ctx, "/v1/billing_portal/sessions", values, "", &session)
	if err != nil {
		return nil, err
	}
	if session.URL == "" {
		return nil, fmt.Errorf(
			"create portal session: %w",
			ErrProviderUnavailable,
		)
	}

	return &session, nil
}

type stripeErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *stripeProvider) doRequest(
	ctx context.Context,
	path string,
	values url.Values,
	idempotencyKey string,
	out any,
) error {
	if p.secretKey == "" {
		return fmt.Errorf("billing secret key not configured: %w",
			ErrProviderUnavailable)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		p.baseURL+path,
		strings.NewReader(values.Encode()),
	)
	if err != nil {
		return fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("provider request: %w: %w", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode >= http.StatusBadRequest {
		var stripeErr stripeErrorResponse
		message := "provider returned " + resp.Status
		if decodeErr := json.NewDecoder(resp.Body).Decode(&stripeErr); decodeErr == nil {
			if m := strings.TrimSpace(stripeErr.Error.Message); m != "" {
				message = m
			}
		}
		return fmt.Errorf("%s: %w", message, ErrProviderUnavailable)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}

	return nil
}
