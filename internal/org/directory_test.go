// AngelaMos | 2026
// directory_test.go

package org

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/carterperez-dev/templates/saas-backend/internal/core"
	"github.com/carterperez-dev/templates/saas-backend/internal/tenant"
)

type fakeRepository struct {
	Repository

	orgsByID       map[string]*Organization
	orgsByTenantID map[string]*Organization
	memberships    map[string][]Membership
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		orgsByID:       make(map[string]*Organization),
		orgsByTenantID: make(map[string]*Organization),
		memberships:    make(map[string][]Membership),
	}
}

func (f *fakeRepository) addOrg(o *Organization) {
	f.orgsByID[o.ID] = o
	f.orgsByTenantID[o.TenantID] = o
}

func (f *fakeRepository) GetByID(
	_ context.Context,
	id string,
) (*Organization, error) {
	o, ok := f.orgsByID[id]
	if !ok {
		return nil, fmt.Errorf("get organization: %w", core.ErrNotFound)
	}
	return o, nil
}

func (f *fakeRepository) GetByTenantID(
	_ context.Context,
	tenantID string,
) (*Organization, error) {
	o, ok := f.orgsByTenantID[tenantID]
	if !ok {
		return nil, fmt.Errorf("get organization by tenant: %w", core.ErrNotFound)
	}
	return o, nil
}

func (f *fakeRepository) MembershipsOf(
	_ context.Context,
	userID string,
) ([]Membership, error) {
	return f.memberships[userID], nil
}

func TestMembershipsOfEmptyIsIntegrityError(t *testing.T) {
	directory := NewDirectory(newFakeRepository())

	_, err := directory.MembershipsOf(context.Background(), "user-1")
	if !errors.Is(err, ErrNoMembership) {
		t.Errorf("expected ErrNoMembership, got %v", err)
	}
}

func TestPrimaryOrganizationOldestMembershipWins(t *testing.T) {
	repo := newFakeRepository()

	older := &Organization{ID: "org-1", TenantID: "tenant-1", Name: "First"}
	newer := &Organization{ID: "org-2", TenantID: "tenant-2", Name: "Second"}
	repo.addOrg(older)
	repo.addOrg(newer)

	repo.memberships["user-1"] = []Membership{
		{
			ID:             "m-1",
			UserID:         "user-1",
			OrganizationID: "org-1",
			Role:           RoleOwner,
			CreatedAt:      time.Now().Add(-time.Hour),
		},
		{
			ID:             "m-2",
			UserID:         "user-1",
			OrganizationID: "org-2",
			Role:           RoleMember,
			CreatedAt:      time.Now(),
		},
	}

	directory := NewDirectory(repo)

	got, err := directory.PrimaryOrganization(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("PrimaryOrganization: %v", err)
	}
	if got.ID != "org-1" {
		t.Errorf("expected oldest membership's organization, got %s", got.ID)
	}
}

func TestOrganizationForDanglingMembership(t *testing.T) {
	directory := NewDirectory(newFakeRepository())

	_, err := directory.OrganizationFor(context.Background(), Membership{
		ID:             "m-1",
		OrganizationID: "org-gone",
	})
	if !errors.Is(err, ErrDanglingMembership) {
		t.Errorf("expected ErrDanglingMembership, got %v", err)
	}
}

func TestCurrentOrganizationRequiresTenant(t *testing.T) {
	directory := NewDirectory(newFakeRepository())

	_, err := directory.CurrentOrganization(context.Background())
	if !errors.Is(err, tenant.ErrNoTenant) {
		t.Errorf("expected ErrNoTenant, got %v", err)
	}
}

func TestCurrentOrganizationStaleTenantFailsClosed(t *testing.T) {
	repo := newFakeRepository()
	repo.addOrg(&Organization{ID: "org-1", TenantID: "tenant-1"})

	directory := NewDirectory(repo)

	// Token still names a tenant whose organization is gone.
	ctx := tenant.WithTenant(context.Background(), "tenant-deleted")
	_, err := directory.CurrentOrganization(ctx)
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCurrentOrganizationResolves(t *testing.T) {
	repo := newFakeRepository()
	repo.addOrg(&Organization{ID: "org-1", TenantID: "tenant-1", Name: "Acme"})

	directory := NewDirectory(repo)

	ctx := tenant.WithTenant(context.Background(), "tenant-1")
	got, err := directory.CurrentOrganization(ctx)
	if err != nil {
		t.Fatalf("CurrentOrganization: %v", err)
	}
	if got.Name != "Acme" {
		t.Errorf("unexpected organization: %+v", got)
	}
}
