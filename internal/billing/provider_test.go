// AngelaMos | 2026
// provider_test.go

package billing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestStripeProvider(baseURL string) *stripeProvider {
	return &stripeProvider{
		secretKey: "sk_test_123",
		priceID:   "price_123",
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 2 * time.Second},
	}
}

func TestCreateCustomerSendsIdempotencyKey(t *testing.T) {
	var gotPath, gotAuth, gotKey, gotName, gotEmail string

	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			gotKey = r.Header.Get("Idempotency-Key")
			if err := r.ParseForm(); err != nil {
				t.Errorf("ParseForm: %v", err)
			}
			gotName = r.PostForm.Get("name")
			gotEmail = r.PostForm.Get("email")
			w.Write([]byte(`{"id":"cus_123"}`)) //nolint:errcheck
		}))
	defer srv.Close()

	p := newTestStripeProvider(srv.URL)
	customer, err := p.CreateCustomer(
		context.Background(),
		"org-1",
		"Acme",
		"owner@example.com",
	)
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	if customer.ID != "cus_123" {
		t.Errorf("expected cus_123, got %q", customer.ID)
	}
	if gotPath != "/v1/customers" {
		t.Errorf("expected /v1/customers, got %q", gotPath)
	}
	if gotAuth != "Bearer sk_test_123" {
		t.Errorf("unexpected authorization header %q", gotAuth)
	}
	if gotKey != "customer-create-org-1" {
		t.Errorf("expected idempotency key customer-create-org-1, got %q",
			gotKey)
	}
	if gotName != "Acme" || gotEmail != "owner@example.com" {
		t.Errorf("unexpected form fields name=%q email=%q", gotName, gotEmail)
	}
}

func TestCreateCheckoutSessionFormEncoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				t.Errorf("ParseForm: %v", err)
			}
			if got := r.PostForm.Get("mode"); got != "subscription" {
				t.Errorf("expected mode=subscription, got %q", got)
			}
			if got := r.PostForm.Get("customer"); got != "cus_123" {
				t.Errorf("expected customer=cus_123, got %q", got)
			}
			if got := r.PostForm.Get("line_items[0][price]"); got != "price_123" {
				t.Errorf("expected configured price id, got %q", got)
			}
			w.Write([]byte( //nolint:errcheck
				`{"id":"cs_1","url":"https://checkout.example/cs_1"}`))
		}))
	defer srv.Close()

	p := newTestStripeProvider(srv.URL)
	session, err := p.CreateCheckoutSession(
		context.Background(),
		"cus_123",
		"https://app.example/success",
		"https://app.example/cancel",
	)
	if err != nil {
		t.Fatalf("CreateCheckoutSession: %v", err)
	}
	if session.URL != "https://checkout.example/cs_1" {
		t.Errorf("unexpected session url %q", session.URL)
	}
}

func TestProviderErrorWrapsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
			w.Write([]byte( //nolint:errcheck
				`{"error":{"message":"Your card was declined."}}`))
		}))
	defer srv.Close()

	p := newTestStripeProvider(srv.URL)
	_, err := p.CreateCustomer(context.Background(), "org-1", "Acme", "")
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}
