// AngelaMos | 2026
// directory.go

package org

import (
	"context"
	"errors"
	"fmt"

	"github.com/carterperez-dev/templates/saas-backend/internal/core"
	"github.com/carterperez-dev/templates/saas-backend/internal/tenant"
)

var (
	// ErrNoMembership means an authenticated user has no organization at
	// all — a data-integrity fault, never ordinary user input.
	ErrNoMembership = errors.New("user has no organization membership")

	// ErrDanglingMembership means a membership references a missing
	// organization. Surfaced, never swallowed.
	ErrDanglingMembership = errors.New("membership references missing organization")
)

// Directory resolves which organization a user operates in. Today the
// oldest membership wins; multi-organization selection is an open
// requirement, not something to guess at here.
type Directory struct {
	repo Repository
}

func NewDirectory(repo Repository) *Directory {
	return &Directory{repo: repo}
}

func (d *Directory) MembershipsOf(
	ctx context.Context,
	userID string,
) ([]Membership, error) {
	memberships, err := d.repo.MembershipsOf(ctx, userID)
	if err != nil {
		return nil, err
	}

	if len(memberships) == 0 {
		return nil, fmt.Errorf("memberships of %s: %w", userID, ErrNoMembership)
	}

	return memberships, nil
}

func (d *Directory) OrganizationFor(
	ctx context.Context,
	membership Membership,
) (*Organization, error) {
	organization, err := d.repo.GetByID(ctx, membership.OrganizationID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf(
				"organization %s for membership %s: %w",
				membership.OrganizationID,
				membership.ID,
				ErrDanglingMembership,
			)
		}
		return nil, err
	}

	return organization, nil
}

// PrimaryOrganization resolves the organization tokens get bound to at
// login: the user's oldest membership.
func (d *Directory) PrimaryOrganization(
	ctx context.Context,
	userID string,
) (*Organization, error) {
	memberships, err := d.MembershipsOf(ctx, userID)
	if err != nil {
		return nil, err
	}

	return d.OrganizationFor(ctx, memberships[0])
}

// CurrentOrganization returns the organization bound to the request's
// tenant context, failing closed with not-found when the token's tenant no
// longer matches any organization.
func (d *Directory) CurrentOrganization(
	ctx context.Context,
) (*Organization, error) {
	tenantID, ok := tenant.FromContext(ctx)
	if !ok || tenantID == "" {
		return nil, tenant.ErrNoTenant
	}

	return d.repo.GetByTenantID(ctx, tenantID)
}
