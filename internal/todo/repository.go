// AngelaMos | 2026
// repository.go

package todo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carterperez-dev/templates/saas-backend/internal/core"
	"github.com/carterperez-dev/templates/saas-backend/internal/tenant"
)

// Repository is the reference consumer of the tenant isolation layer:
// every method takes a tenant.Scope, reads add a tenant predicate, writes
// stamp the tenant onto the row. A lookup scoped to the wrong tenant reads
// as not-found — existence of another tenant's rows is never confirmed.
type Repository interface {
	Create(ctx context.Context, scope tenant.Scope, todo *Todo) error
	GetByID(ctx context.Context, scope tenant.Scope, id string) (*Todo, error)
	List(ctx context.Context, scope tenant.Scope) ([]Todo, error)
	Update(ctx context.Context, scope tenant.Scope, todo *Todo) error
	Delete(ctx context.Context, scope tenant.Scope, id string) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(
	ctx context.Context,
	scope tenant.Scope,
	todo *Todo,
) error {
	tenantID, err := scope.Stamp()
	if err != nil {
		return fmt.Errorf("create todo: %w", err)
	}
	todo.TenantID = tenantID

	query := `
		INSERT INTO todos (id, tenant_id, title, completed)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	err = r.db.GetContext(ctx, todo, query,
		todo.ID,
		todo.TenantID,
		todo.Title,
		todo.Completed,
	)
	if err != nil {
		return fmt.Errorf("create todo: %w", err)
	}

	return nil
}

func (r *repository) GetByID(
	ctx context.Context,
	scope tenant.Scope,
	id string,
) (*Todo, error) {
	query := `
		SELECT id, tenant_id, title, completed, created_at, updated_at
		FROM todos
		WHERE id = $1`
	args := []any{id}

	if !scope.IsExempt() {
		query += ` AND tenant_id = $2`
		args = append(args, scope.TenantID())
	}

	var todo Todo
	err := r.db.GetContext(ctx, &todo, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get todo: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get todo: %w", err)
	}

	return &todo, nil
}

func (r *repository) List(
	ctx context.Context,
	scope tenant.Scope,
) ([]Todo, error) {
	query := `
		SELECT id, tenant_id, title, completed, created_at, updated_at
		FROM todos`
	var args []any

	if !scope.IsExempt() {
		query += `
		WHERE tenant_id = $1`
		args = append(args, scope.TenantID())
	}

	query += `
		ORDER BY created_at DESC`

	var todos []Todo
	if err := r.db.SelectContext(ctx, &todos, query, args...); err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}

	return todos, nil
}

func (r *repository) Update(
	ctx context.Context,
	scope tenant.Scope,
	todo *Todo,
) error {
	tenantID, err := scope.Stamp()
	if err != nil {
		return fmt.Errorf("update todo: %w", err)
	}

	query := `
		UPDATE todos
		SET title = $3, completed = $4, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
		RETURNING updated_at`

	err = r.db.GetContext(ctx, &todo.UpdatedAt, query,
		todo.ID,
		tenantID,
		todo.Title,
		todo.Completed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update todo: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update todo: %w", err)
	}

	return nil
}

func (r *repository) Delete(
	ctx context.Context,
	scope tenant.Scope,
	id string,
) error {
	tenantID, err := scope.Stamp()
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}

	query := `DELETE FROM todos WHERE id = $1 AND tenant_id = $2`

	result, err := r.db.ExecContext(ctx, query, id, tenantID)
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("delete todo: %w", core.ErrNotFound)
	}

	return nil
}
