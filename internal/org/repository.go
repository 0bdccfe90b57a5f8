// AngelaMos | 2026
// repository.go

package org

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/carterperez-dev/templates/saas-backend/internal/core"
)

type Repository interface {
	Create(ctx context.Context, organization *Organization) error
	GetByID(ctx context.Context, id string) (*Organization, error)
	GetByTenantID(ctx context.Context, tenantID string) (*Organization, error)
	GetByBillingCustomerID(
		ctx context.Context,
		customerID string,
	) (*Organization, error)
	List(ctx context.Context, limit, offset int) ([]Organization, error)

	CreateMembership(ctx context.Context, membership *Membership) error
	MembershipsOf(ctx context.Context, userID string) ([]Membership, error)
	OwnerMembership(
		ctx context.Context,
		organizationID string,
	) (*Membership, error)

	SetBillingCustomerIDIfAbsent(
		ctx context.Context,
		organizationID, customerID string,
	) (bool, error)
	ApplySubscriptionStatus(
		ctx context.Context,
		customerID, status string,
		eventAt time.Time,
	) (bool, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const orgColumns = `
	id, tenant_id, name, owner_user_id, billing_customer_id,
	subscription_status, subscription_event_at, created_at, updated_at`

func (r *repository) Create(
	ctx context.Context,
	organization *Organization,
) error {
	query := `
		INSERT INTO organizations (
			id, tenant_id, name, owner_user_id, subscription_status
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	err := r.db.GetContext(ctx, organization, query,
		organization.ID,
		organization.TenantID,
		organization.Name,
		organization.OwnerUserID,
		organization.SubscriptionStatus,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create organization: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create organization: %w", err)
	}

	return nil
}

func (r *repository) GetByID(
	ctx context.Context,
	id string,
) (*Organization, error) {
	query := `SELECT` + orgColumns + ` FROM organizations WHERE id = $1`

	var organization Organization
	err := r.db.GetContext(ctx, &organization, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get organization: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}

	return &organization, nil
}

func (r *repository) GetByTenantID(
	ctx context.Context,
	tenantID string,
) (*Organization, error) {
	query := `SELECT` + orgColumns + ` FROM organizations WHERE tenant_id = $1`

	var organization Organization
	err := r.db.GetContext(ctx, &organization, query, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get organization by tenant: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get organization by tenant: %w", err)
	}

	return &organization, nil
}

func (r *repository) GetByBillingCustomerID(
	ctx context.Context,
	customerID string,
) (*Organization, error) {
	query := `SELECT` + orgColumns + `
		FROM organizations
		WHERE billing_customer_id = $1`

	var organization Organization
	err := r.db.GetContext(ctx, &organization, query, customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf(
			"get organization by billing customer: %w",
			core.ErrNotFound,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("get organization by billing customer: %w", err)
	}

	return &organization, nil
}

func (r *repository) List(
	ctx context.Context,
	limit, offset int,
) ([]Organization, error) {
	query := `SELECT` + orgColumns + `
		FROM organizations
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	var organizations []Organization
	err := r.db.SelectContext(ctx, &organizations, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}

	return organizations, nil
}

func (r *repository) CreateMembership(
	ctx context.Context,
	membership *Membership,
) error {
	query := `
		INSERT INTO memberships (id, user_id, organization_id, role)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &membership.CreatedAt, query,
		membership.ID,
		membership.UserID,
		membership.OrganizationID,
		membership.Role,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create membership: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create membership: %w", err)
	}

	return nil
}

func (r *repository) MembershipsOf(
	ctx context.Context,
	userID string,
) ([]Membership, error) {
	query := `
		SELECT id, user_id, organization_id, role, created_at
		FROM memberships
		WHERE user_id = $1
		ORDER BY created_at ASC`

	var memberships []Membership
	if err := r.db.SelectContext(ctx, &memberships, query, userID); err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}

	return memberships, nil
}

func (r *repository) OwnerMembership(
	ctx context.Context,
	organizationID string,
) (*Membership, error) {
	query := `
		SELECT id, user_id, organization_id, role, created_at
		FROM memberships
		WHERE organization_id = $1 AND role = $2`

	var membership Membership
	err := r.db.GetContext(ctx, &membership, query, organizationID, RoleOwner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get owner membership: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get owner membership: %w", err)
	}

	return &membership, nil
}

// SetBillingCustomerIDIfAbsent is an atomic insert-if-null: it only writes
// when no billing customer is recorded yet. Returns false when another
// request won the race; the caller must re-read and use the winner's id so
// exactly one provider-side customer exists per organization.
func (r *repository) SetBillingCustomerIDIfAbsent(
	ctx context.Context,
	organizationID, customerID string,
) (bool, error) {
	query := `
		UPDATE organizations
		SET billing_customer_id = $2, updated_at = NOW()
		WHERE id = $1 AND billing_customer_id IS NULL`

	result, err := r.db.ExecContext(ctx, query, organizationID, customerID)
	if err != nil {
		return false, fmt.Errorf("set billing customer id: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set billing customer id: %w", err)
	}

	return rows > 0, nil
}

// ApplySubscriptionStatus applies a provider-reported status keyed on the
// billing customer id, guarded by the provider's event timestamp so an
// out-of-order redelivery can never regress a newer state to an older one.
// Returns false when the event was stale and ignored.
func (r *repository) ApplySubscriptionStatus(
	ctx context.Context,
	customerID, status string,
	eventAt time.Time,
) (bool, error) {
	query := `
		UPDATE organizations
		SET subscription_status = $2,
		    subscription_event_at = $3,
		    updated_at = NOW()
		WHERE billing_customer_id = $1
		  AND (subscription_event_at IS NULL OR subscription_event_at <= $3)`

	result, err := r.db.ExecContext(ctx, query, customerID, status, eventAt)
	if err != nil {
		return false, fmt.Errorf("apply subscription status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("apply subscription status: %w", err)
	}

	return rows > 0, nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
