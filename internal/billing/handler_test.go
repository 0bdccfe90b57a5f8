// AngelaMos | 2026
// handler_test.go

package billing

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/carterperez-dev/templates/saas-backend/internal/tenant"
)

type errorEnvelope struct {
	Success bool `json:"success"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeErrorEnvelope(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()

	var env errorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return env
}

func TestCheckoutSessionStaleTenantReadsAsNotFound(t *testing.T) {
	svc, _, _ := newCheckoutFixture()
	handler := NewHandler(svc, nil)

	body := strings.NewReader(`{
		"success_url": "https://app.example/success",
		"cancel_url": "https://app.example/cancel"
	}`)
	req := httptest.NewRequest("POST", "/v1/billing/checkout-session", body)
	req = req.WithContext(tenant.WithTenant(req.Context(), "tenant-gone"))
	rec := httptest.NewRecorder()

	handler.CreateCheckoutSession(rec, req)

	if rec.Code != 404 {
		t.Fatalf("expected 404 for unresolvable tenant, got %d", rec.Code)
	}
	env := decodeErrorEnvelope(t, rec)
	if env.Error.Code != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND, got %q", env.Error.Code)
	}
}

func TestPortalSessionWithoutCustomerIsBadRequest(t *testing.T) {
	svc, _, _ := newCheckoutFixture()
	handler := NewHandler(svc, nil)

	body := strings.NewReader(`{"return_url": "https://app.example/billing"}`)
	req := httptest.NewRequest("POST", "/v1/billing/portal-session", body)
	req = req.WithContext(tenant.WithTenant(req.Context(), "tenant-1"))
	rec := httptest.NewRecorder()

	handler.CreatePortalSession(rec, req)

	if rec.Code != 400 {
		t.Fatalf("expected 400 without a billing customer, got %d", rec.Code)
	}
}

func TestCheckoutSessionProviderOutageIsBadGateway(t *testing.T) {
	svc, provider, _ := newCheckoutFixture()
	provider.fail = true
	handler := NewHandler(svc, nil)

	body := strings.NewReader(`{
		"success_url": "https://app.example/success",
		"cancel_url": "https://app.example/cancel"
	}`)
	req := httptest.NewRequest("POST", "/v1/billing/checkout-session", body)
	req = req.WithContext(tenant.WithTenant(req.Context(), "tenant-1"))
	rec := httptest.NewRecorder()

	handler.CreateCheckoutSession(rec, req)

	if rec.Code != 502 {
		t.Fatalf("expected 502 when the provider is down, got %d", rec.Code)
	}
	env := decodeErrorEnvelope(t, rec)
	if env.Error.Code != "BILLING_UNAVAILABLE" {
		t.Errorf("expected BILLING_UNAVAILABLE, got %q", env.Error.Code)
	}
}
