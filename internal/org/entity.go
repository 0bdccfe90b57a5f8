// AngelaMos | 2026
// entity.go

package org

import (
	"time"
)

// Organization is the tenant boundary. TenantID is generated once at
// creation and never reused or rewritten; SubscriptionStatus is mutated
// only by the billing reconciler.
type Organization struct {
	ID                  string     `db:"id"`
	TenantID            string     `db:"tenant_id"`
	Name                string     `db:"name"`
	OwnerUserID         string     `db:"owner_user_id"`
	BillingCustomerID   *string    `db:"billing_customer_id"`
	SubscriptionStatus  string     `db:"subscription_status"`
	SubscriptionEventAt *time.Time `db:"subscription_event_at"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
}

func (o *Organization) IsPremium() bool {
	return o.SubscriptionStatus == StatusPremium
}

type Membership struct {
	ID             string    `db:"id"`
	UserID         string    `db:"user_id"`
	OrganizationID string    `db:"organization_id"`
	Role           string    `db:"role"`
	CreatedAt      time.Time `db:"created_at"`
}

const (
	StatusFree    = "FREE"
	StatusPremium = "PREMIUM"
)

const (
	RoleOwner  = "OWNER"
	RoleMember = "MEMBER"
)
