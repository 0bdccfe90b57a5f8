// AngelaMos | 2026
// repository_test.go

package todo

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/templates/saas-backend/internal/core"
	"github.com/carterperez-dev/templates/saas-backend/internal/tenant"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return sqlx.NewDb(db, "sqlmock"), mock
}

func scopeFor(t *testing.T, tenantID string) tenant.Scope {
	t.Helper()

	ctx := tenant.WithTenant(context.Background(), tenantID)
	scope, err := tenant.Scoped(ctx)
	if err != nil {
		t.Fatalf("Scoped: %v", err)
	}
	return scope
}

func TestCreateStampsTenant(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO todos")).
		WithArgs("todo-1", "tenant-a", "write tests", false).
		WillReturnRows(
			sqlmock.NewRows([]string{"created_at", "updated_at"}).
				AddRow(time.Now(), time.Now()),
		)

	item := &Todo{ID: "todo-1", Title: "write tests"}
	err := repo.Create(context.Background(), scopeFor(t, "tenant-a"), item)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if item.TenantID != "tenant-a" {
		t.Errorf("expected stamped tenant-a, got %q", item.TenantID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreateWithoutTenantFails(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewRepository(db)

	var zero tenant.Scope
	err := repo.Create(context.Background(), zero, &Todo{ID: "todo-1"})
	if !errors.Is(err, tenant.ErrNoTenant) {
		t.Errorf("expected ErrNoTenant, got %v", err)
	}

	err = repo.Create(context.Background(), tenant.Exempt(), &Todo{ID: "todo-1"})
	if !errors.Is(err, tenant.ErrNoTenant) {
		t.Errorf("exempt scope must not write, got %v", err)
	}
}

func TestGetByIDAppendsTenantPredicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)

	columns := []string{
		"id", "tenant_id", "title", "completed", "created_at", "updated_at",
	}

	mock.ExpectQuery(regexp.QuoteMeta("AND tenant_id = $2")).
		WithArgs("todo-1", "tenant-a").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			"todo-1", "tenant-a", "write tests", false,
			time.Now(), time.Now(),
		))

	item, err := repo.GetByID(
		context.Background(),
		scopeFor(t, "tenant-a"),
		"todo-1",
	)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if item.TenantID != "tenant-a" {
		t.Errorf("unexpected tenant: %q", item.TenantID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGetByIDWrongTenantReadsAsNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)

	// The row exists under tenant-a; scoped to tenant-b the predicate
	// matches nothing.
	mock.ExpectQuery(regexp.QuoteMeta("AND tenant_id = $2")).
		WithArgs("todo-1", "tenant-b").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(
		context.Background(),
		scopeFor(t, "tenant-b"),
		"todo-1",
	)
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound for cross-tenant read, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestExemptListOmitsPredicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)

	columns := []string{
		"id", "tenant_id", "title", "completed", "created_at", "updated_at",
	}

	mock.ExpectQuery(`(?s)SELECT .+ FROM todos\s+ORDER BY created_at DESC`).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("todo-1", "tenant-a", "one", false, time.Now(), time.Now()).
			AddRow("todo-2", "tenant-b", "two", true, time.Now(), time.Now()),
		)

	items, err := repo.List(context.Background(), tenant.Exempt())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("expected rows from both tenants, got %d", len(items))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDeleteScopedToTenant(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM todos WHERE id = $1 AND tenant_id = $2")).
		WithArgs("todo-1", "tenant-a").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), scopeFor(t, "tenant-a"), "todo-1")
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound when no row matched, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
