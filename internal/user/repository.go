// AngelaMos | 2026
// repository.go

package user

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
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	GetByRefreshTokenHash(ctx context.Context, hash string) (*User, error)
	RotateRefreshToken(
		ctx context.Context,
		id string,
		oldHash *string,
		newHash string,
		expiresAt time.Time,
	) error
	ClearRefreshToken(ctx context.Context, id string) error

	SetResetToken(
		ctx context.Context,
		id, hash string,
		expiresAt time.Time,
	) error
	GetByResetTokenHash(ctx context.Context, hash string) (*User, error)
	ConsumeResetToken(ctx context.Context, id, passwordHash string) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const userColumns = `
	id, email, password_hash, first_name, last_name, role,
	refresh_token_hash, refresh_token_expires_at,
	reset_token_hash, reset_token_expires_at,
	created_at, updated_at`

func (r *repository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, email, password_hash, first_name, last_name, role)
		VALUES ($1, LOWER($2), $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	err := r.db.GetContext(ctx, user, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Role,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE id = $1`

	var user User
	err := r.db.GetContext(ctx, &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &user, nil
}

func (r *repository) GetByEmail(
	ctx context.Context,
	email string,
) (*User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE email = LOWER($1)`

	var user User
	err := r.db.GetContext(ctx, &user, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user by email: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return &user, nil
}

func (r *repository) UpdatePassword(
	ctx context.Context,
	id, passwordHash string,
) error {
	query := `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("update password: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) GetByRefreshTokenHash(
	ctx context.Context,
	hash string,
) (*User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE refresh_token_hash = $1`

	var user User
	err := r.db.GetContext(ctx, &user, query, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user by refresh token: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by refresh token: %w", err)
	}

	return &user, nil
}

// RotateRefreshToken is a compare-and-set on the stored fingerprint: it
// only succeeds while the row still holds oldHash (nil for a fresh issue
// at login/registration, which overwrites unconditionally). Of two
// concurrent rotations presenting the same token exactly one wins; the
// loser sees core.ErrNotFound.
func (r *repository) RotateRefreshToken(
	ctx context.Context,
	id string,
	oldHash *string,
	newHash string,
	expiresAt time.Time,
) error {
	var (
		result sql.Result
		err    error
	)

	if oldHash == nil {
		query := `
			UPDATE users
			SET refresh_token_hash = $2,
			    refresh_token_expires_at = $3,
			    updated_at = NOW()
			WHERE id = $1`
		result, err = r.db.ExecContext(ctx, query, id, newHash, expiresAt)
	} else {
		query := `
			UPDATE users
			SET refresh_token_hash = $2,
			    refresh_token_expires_at = $3,
			    updated_at = NOW()
			WHERE id = $1 AND refresh_token_hash = $4`
		result, err = r.db.ExecContext(ctx, query, id, newHash, expiresAt, *oldHash)
	}

	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("rotate refresh token: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) ClearRefreshToken(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET refresh_token_hash = NULL,
		    refresh_token_expires_at = NULL,
		    updated_at = NOW()
		WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}

	return nil
}

func (r *repository) SetResetToken(
	ctx context.Context,
	id, hash string,
	expiresAt time.Time,
) error {
	query := `
		UPDATE users
		SET reset_token_hash = $2,
		    reset_token_expires_at = $3,
		    updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, hash, expiresAt)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("set reset token: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) GetByResetTokenHash(
	ctx context.Context,
	hash string,
) (*User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE reset_token_hash = $1`

	var user User
	err := r.db.GetContext(ctx, &user, query, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user by reset token: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by reset token: %w", err)
	}

	return &user, nil
}

// ConsumeResetToken sets the new password, burns the reset fingerprint and
// revokes any outstanding refresh token in one statement, forcing re-login
// everywhere.
func (r *repository) ConsumeResetToken(
	ctx context.Context,
	id, passwordHash string,
) error {
	query := `
		UPDATE users
		SET password_hash = $2,
		    reset_token_hash = NULL,
		    reset_token_expires_at = NULL,
		    refresh_token_hash = NULL,
		    refresh_token_expires_at = NULL,
		    updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("consume reset token: %w", core.ErrNotFound)
	}

	return nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
