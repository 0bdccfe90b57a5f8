// AngelaMos | 2026
// scope_test.go

package tenant

import (
	"context"
	"errors"
	"testing"
)

func TestScopedRequiresTenant(t *testing.T) {
	if _, err := Scoped(context.Background()); !errors.Is(err, ErrNoTenant) {
		t.Errorf("expected ErrNoTenant, got %v", err)
	}

	// Empty binding is still not enough to build a scope.
	ctx := WithTenant(context.Background(), "")
	if _, err := Scoped(ctx); !errors.Is(err, ErrNoTenant) {
		t.Errorf("expected ErrNoTenant for empty binding, got %v", err)
	}
}

func TestScopedCarriesTenant(t *testing.T) {
	ctx := WithTenant(context.Background(), "tenant-a")

	scope, err := Scoped(ctx)
	if err != nil {
		t.Fatalf("Scoped: %v", err)
	}
	if scope.IsExempt() {
		t.Error("derived scope must not be exempt")
	}
	if scope.TenantID() != "tenant-a" {
		t.Errorf("expected tenant-a, got %q", scope.TenantID())
	}

	stamped, err := scope.Stamp()
	if err != nil {
		t.Fatalf("Stamp: %v", err)
	}
	if stamped != "tenant-a" {
		t.Errorf("expected stamp tenant-a, got %q", stamped)
	}
}

func TestExemptScopeCannotWrite(t *testing.T) {
	scope := Exempt()

	if !scope.IsExempt() {
		t.Error("Exempt() must report exempt")
	}
	if scope.TenantID() != "" {
		t.Errorf("exempt scope has no tenant, got %q", scope.TenantID())
	}

	if _, err := scope.Stamp(); !errors.Is(err, ErrNoTenant) {
		t.Errorf("exempt scope must refuse to stamp, got %v", err)
	}
}

func TestZeroScopeCannotWrite(t *testing.T) {
	var scope Scope
	if _, err := scope.Stamp(); !errors.Is(err, ErrNoTenant) {
		t.Errorf("zero scope must refuse to stamp, got %v", err)
	}
}
