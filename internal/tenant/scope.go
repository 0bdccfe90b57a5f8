// AngelaMos | 2026
// scope.go

package tenant

import (
	"context"
	"fmt"
)

// Scope is the mandatory parameter on every repository method touching a
// tenant-owned table. There is no way to build a query without deciding,
// in the function signature, whether it is tenant-bound or explicitly
// exempt — the "forgot to enable the filter" failure class does not exist.
type Scope struct {
	tenantID string
	exempt   bool
}

// Scoped derives a Scope from the request context, failing with
// ErrNoTenant when no tenant is bound. Callers on authenticated paths
// should treat that error as a programmer fault, not user input.
func Scoped(ctx context.Context) (Scope, error) {
	id, ok := FromContext(ctx)
	if !ok || id == "" {
		return Scope{}, ErrNoTenant
	}
	return Scope{tenantID: id}, nil
}

// Exempt returns the explicit no-tenant marker for the narrow allowlist of
// global paths (webhook reconciliation, registration bootstrap). It is
// never a default.
func Exempt() Scope {
	return Scope{exempt: true}
}

func (s Scope) IsExempt() bool {
	return s.exempt
}

// TenantID returns the bound tenant for read predicates. Exempt scopes
// return the empty string; repositories must branch on IsExempt first.
func (s Scope) TenantID() string {
	return s.tenantID
}

// Stamp returns the tenant identifier to write onto a new row. Creating a
// tenant-owned entity without a bound tenant is always an error; exemption
// applies to reads only.
func (s Scope) Stamp() (string, error) {
	if s.exempt || s.tenantID == "" {
		return "", fmt.Errorf("stamp tenant: %w", ErrNoTenant)
	}
	return s.tenantID, nil
}
