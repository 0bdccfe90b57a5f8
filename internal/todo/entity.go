// AngelaMos | 2026
// entity.go

package todo

import (
	"time"
)

// Todo is a tenant-owned entity: every row carries the tenant_id stamped
// at creation, and every query runs through a tenant.Scope.
type Todo struct {
	ID        string    `db:"id"`
	TenantID  string    `db:"tenant_id"`
	Title     string    `db:"title"`
	Completed bool      `db:"completed"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
