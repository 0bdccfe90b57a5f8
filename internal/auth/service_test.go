// AngelaMos | 2026
// service_test.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/templates/saas-backend/internal/core"
	"github.com/carterperez-dev/templates/saas-backend/internal/org"
	"github.com/carterperez-dev/templates/saas-backend/internal/tenant"
	"github.com/carterperez-dev/templates/saas-backend/internal/user"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeUserRepo struct {
	user.Repository

	byEmail map[string]*user.User
	byID    map[string]*user.User

	refreshHash      *string
	refreshExpiresAt *time.Time
	resetHash        *string
	resetExpiresAt   *time.Time

	rotations    int
	lastOldHash  *string
	clearedCount int
	consumed     bool

	// When set, the next compare-and-swap rotation loses: a concurrent
	// rotation displaces the fingerprint between the lookup and the swap.
	raceOnRotate bool
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byEmail: make(map[string]*user.User),
		byID:    make(map[string]*user.User),
	}
}

func (f *fakeUserRepo) add(u *user.User) {
	f.byEmail[u.Email] = u
	f.byID[u.ID] = u
}

func (f *fakeUserRepo) GetByEmail(
	_ context.Context,
	email string,
) (*user.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("get user by email: %w", core.ErrNotFound)
	}
	return u, nil
}

func (f *fakeUserRepo) GetByID(
	_ context.Context,
	id string,
) (*user.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	return u, nil
}

func (f *fakeUserRepo) GetByRefreshTokenHash(
	_ context.Context,
	hash string,
) (*user.User, error) {
	if f.refreshHash == nil || *f.refreshHash != hash {
		return nil, fmt.Errorf("get user by refresh token: %w", core.ErrNotFound)
	}
	for _, u := range f.byID {
		u.RefreshTokenHash = f.refreshHash
		u.RefreshTokenExpiresAt = f.refreshExpiresAt
		return u, nil
	}
	return nil, fmt.Errorf("get user by refresh token: %w", core.ErrNotFound)
}

func (f *fakeUserRepo) RotateRefreshToken(
	_ context.Context,
	_ string,
	oldHash *string,
	newHash string,
	expiresAt time.Time,
) error {
	f.rotations++
	f.lastOldHash = oldHash

	if oldHash != nil && f.raceOnRotate {
		f.raceOnRotate = false
		winner := "winner-" + newHash
		f.refreshHash = &winner
		return fmt.Errorf("rotate refresh token: %w", core.ErrNotFound)
	}

	if oldHash != nil && (f.refreshHash == nil || *f.refreshHash != *oldHash) {
		return fmt.Errorf("rotate refresh token: %w", core.ErrNotFound)
	}

	f.refreshHash = &newHash
	f.refreshExpiresAt = &expiresAt
	return nil
}

func (f *fakeUserRepo) ClearRefreshToken(_ context.Context, _ string) error {
	f.clearedCount++
	f.refreshHash = nil
	f.refreshExpiresAt = nil
	return nil
}

func (f *fakeUserRepo) SetResetToken(
	_ context.Context,
	_ string,
	hash string,
	expiresAt time.Time,
) error {
	f.resetHash = &hash
	f.resetExpiresAt = &expiresAt
	return nil
}

func (f *fakeUserRepo) GetByResetTokenHash(
	_ context.Context,
	hash string,
) (*user.User, error) {
	if f.resetHash == nil || *f.resetHash != hash {
		return nil, fmt.Errorf("get user by reset token: %w", core.ErrNotFound)
	}
	for _, u := range f.byID {
		u.ResetTokenHash = f.resetHash
		u.ResetTokenExpiresAt = f.resetExpiresAt
		return u, nil
	}
	return nil, fmt.Errorf("get user by reset token: %w", core.ErrNotFound)
}

func (f *fakeUserRepo) ConsumeResetToken(
	_ context.Context,
	_ string,
	_ string,
) error {
	f.consumed = true
	f.resetHash = nil
	f.refreshHash = nil
	return nil
}

type fakeOrgRepo struct {
	org.Repository

	orgsByID       map[string]*org.Organization
	orgsByTenantID map[string]*org.Organization
	memberships    map[string][]org.Membership
}

func newFakeOrgRepo() *fakeOrgRepo {
	return &fakeOrgRepo{
		orgsByID:       make(map[string]*org.Organization),
		orgsByTenantID: make(map[string]*org.Organization),
		memberships:    make(map[string][]org.Membership),
	}
}

func (f *fakeOrgRepo) addOrg(o *org.Organization) {
	f.orgsByID[o.ID] = o
	f.orgsByTenantID[o.TenantID] = o
}

func (f *fakeOrgRepo) GetByID(
	_ context.Context,
	id string,
) (*org.Organization, error) {
	o, ok := f.orgsByID[id]
	if !ok {
		return nil, fmt.Errorf("get organization: %w", core.ErrNotFound)
	}
	return o, nil
}

func (f *fakeOrgRepo) GetByTenantID(
	_ context.Context,
	tenantID string,
) (*org.Organization, error) {
	o, ok := f.orgsByTenantID[tenantID]
	if !ok {
		return nil, fmt.Errorf("get organization by tenant: %w", core.ErrNotFound)
	}
	return o, nil
}

func (f *fakeOrgRepo) MembershipsOf(
	_ context.Context,
	userID string,
) ([]org.Membership, error) {
	return f.memberships[userID], nil
}

type captureMailer struct {
	email string
	token string
}

func (m *captureMailer) SendPasswordReset(
	_ context.Context,
	email, token string,
) error {
	m.email = email
	m.token = token
	return nil
}

func newTestService(
	t *testing.T,
	users *fakeUserRepo,
	orgs *fakeOrgRepo,
	mailer Mailer,
) *Service {
	t.Helper()

	if mailer == nil {
		mailer = &captureMailer{}
	}

	return NewService(
		nil,
		users,
		org.NewDirectory(orgs),
		newTestJWTManager(t, 15*time.Minute),
		mailer,
		discardLogger(),
	)
}

func seedUser(t *testing.T, users *fakeUserRepo) *user.User {
	t.Helper()

	hash, err := core.HashPassword("correct-password-123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	u := &user.User{
		ID:           "user-1",
		Email:        "alice@example.com",
		PasswordHash: hash,
		FirstName:    "Alice",
		LastName:     "Smith",
		Role:         user.RoleUser,
	}
	users.add(u)
	return u
}

func seedOrg(orgs *fakeOrgRepo, userID string) *org.Organization {
	o := &org.Organization{
		ID:                 "org-1",
		TenantID:           "tenant-1",
		Name:               "Alice's Workspace",
		OwnerUserID:        userID,
		SubscriptionStatus: org.StatusFree,
	}
	orgs.addOrg(o)
	orgs.memberships[userID] = []org.Membership{
		{
			ID:             "m-1",
			UserID:         userID,
			OrganizationID: o.ID,
			Role:           org.RoleOwner,
			CreatedAt:      time.Now().Add(-time.Hour),
		},
	}
	return o
}

func TestLoginUnknownEmailAndWrongPasswordLookAlike(t *testing.T) {
	users := newFakeUserRepo()
	orgs := newFakeOrgRepo()
	u := seedUser(t, users)
	seedOrg(orgs, u.ID)

	svc := newTestService(t, users, orgs, nil)

	_, unknownErr := svc.Login(context.Background(), LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever-password",
	})
	_, wrongErr := svc.Login(context.Background(), LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong-password",
	})

	if !errors.Is(unknownErr, ErrInvalidCredentials) {
		t.Errorf("unknown email: expected ErrInvalidCredentials, got %v", unknownErr)
	}
	if !errors.Is(wrongErr, ErrInvalidCredentials) {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", wrongErr)
	}
}

func TestLoginBindsPrimaryTenantAndRotates(t *testing.T) {
	users := newFakeUserRepo()
	orgs := newFakeOrgRepo()
	u := seedUser(t, users)
	seedOrg(orgs, u.ID)

	svc := newTestService(t, users, orgs, nil)

	pair, err := svc.Login(context.Background(), LoginRequest{
		Email:    "alice@example.com",
		Password: "correct-password-123",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	claims, err := svc.jwt.VerifyAccessToken(
		context.Background(),
		pair.AccessToken,
	)
	if err != nil {
		t.Fatalf("VerifyAccessToken: %v", err)
	}
	if claims.TenantID != "tenant-1" {
		t.Errorf("expected tenant-1 bound, got %q", claims.TenantID)
	}

	if users.rotations != 1 {
		t.Errorf("expected one fingerprint rotation, got %d", users.rotations)
	}
	if users.lastOldHash != nil {
		t.Error("login must overwrite unconditionally (nil old hash)")
	}
	if users.refreshHash == nil ||
		*users.refreshHash != core.HashToken(pair.RefreshToken) {
		t.Error("stored fingerprint must match the issued refresh token")
	}
}

func TestRefreshRequiresTenantContext(t *testing.T) {
	users := newFakeUserRepo()
	orgs := newFakeOrgRepo()
	svc := newTestService(t, users, orgs, nil)

	_, err := svc.Refresh(context.Background(), "some-token")
	if !errors.Is(err, tenant.ErrNoTenant) {
		t.Errorf("expected ErrNoTenant, got %v", err)
	}
}

func TestRefreshUnknownToken(t *testing.T) {
	users := newFakeUserRepo()
	orgs := newFakeOrgRepo()
	svc := newTestService(t, users, orgs, nil)

	ctx := tenant.WithTenant(context.Background(), "tenant-1")
	_, err := svc.Refresh(ctx, "never-issued")
	if !errors.Is(err, core.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestRefreshRotatesAndInvalidatesOldToken(t *testing.T) {
	users := newFakeUserRepo()
	orgs := newFakeOrgRepo()
	u := seedUser(t, users)
	seedOrg(orgs, u.ID)

	svc := newTestService(t, users, orgs, nil)

	pair, err := svc.Login(context.Background(), LoginRequest{
		Email:    "alice@example.com",
		Password: "correct-password-123",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	ctx := tenant.WithTenant(context.Background(), "tenant-1")

	rotated, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Error("rotation must issue a different refresh token")
	}

	// Presenting the displaced token again reads as unknown.
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	if !errors.Is(err, core.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid for rotated-away token, got %v", err)
	}
}

func TestRefreshConcurrentLoserReadsAsUnknownToken(t *testing.T) {
	users := newFakeUserRepo()
	orgs := newFakeOrgRepo()
	u := seedUser(t, users)
	seedOrg(orgs, u.ID)

	svc := newTestService(t, users, orgs, nil)

	pair, err := svc.Login(context.Background(), LoginRequest{
		Email:    "alice@example.com",
		Password: "correct-password-123",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	ctx := tenant.WithTenant(context.Background(), "tenant-1")
	users.raceOnRotate = true

	// Losing the swap looks exactly like presenting an unknown token;
	// the loser learns nothing about whether the token was ever valid.
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	if !errors.Is(err, core.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid for the raced rotation, got %v", err)
	}
}

func TestRefreshExpiredClearsFingerprint(t *testing.T) {
	users := newFakeUserRepo()
	orgs := newFakeOrgRepo()
	u := seedUser(t, users)
	seedOrg(orgs, u.ID)

	svc := newTestService(t, users, orgs, nil)

	token := "expired-refresh-token"
	hash := core.HashToken(token)
	past := time.Now().Add(-time.Minute)
	users.refreshHash = &hash
	users.refreshExpiresAt = &past

	ctx := tenant.WithTenant(context.Background(), "tenant-1")

	_, err := svc.Refresh(ctx, token)
	if !errors.Is(err, core.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if users.clearedCount != 1 {
		t.Errorf("expected fingerprint cleared once, got %d", users.clearedCount)
	}

	// The second attempt fails as unknown, not expired: the fingerprint is
	// gone.
	_, err = svc.Refresh(ctx, token)
	if !errors.Is(err, core.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid on retry, got %v", err)
	}
}

func TestForgotPasswordUnknownEmailSucceedsSilently(t *testing.T) {
	users := newFakeUserRepo()
	orgs := newFakeOrgRepo()
	mailer := &captureMailer{}
	svc := newTestService(t, users, orgs, mailer)

	if err := svc.ForgotPassword(
		context.Background(),
		"nobody@example.com",
	); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}

	if users.resetHash != nil {
		t.Error("no reset token may be stored for unknown accounts")
	}
	if mailer.token != "" {
		t.Error("no mail may be sent for unknown accounts")
	}
}

func TestForgotAndResetPasswordFlow(t *testing.T) {
	users := newFakeUserRepo()
	orgs := newFakeOrgRepo()
	u := seedUser(t, users)
	seedOrg(orgs, u.ID)
	mailer := &captureMailer{}
	svc := newTestService(t, users, orgs, mailer)

	if err := svc.ForgotPassword(
		context.Background(),
		"alice@example.com",
	); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}

	if mailer.token == "" {
		t.Fatal("expected raw reset token handed to the mailer")
	}
	if users.resetHash == nil ||
		*users.resetHash != core.HashToken(mailer.token) {
		t.Fatal("stored fingerprint must match the mailed token")
	}

	// A live refresh token must not survive the reset.
	liveHash := "live-refresh-hash"
	users.refreshHash = &liveHash

	err := svc.ResetPassword(
		context.Background(),
		mailer.token,
		"brand-new-password-456",
	)
	if err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}

	if !users.consumed {
		t.Error("reset token must be consumed")
	}
	if users.refreshHash != nil {
		t.Error("refresh fingerprint must be revoked by a password reset")
	}

	err = svc.ResetPassword(
		context.Background(),
		mailer.token,
		"another-password-789",
	)
	if !errors.Is(err, ErrResetTokenInvalid) {
		t.Errorf("expected ErrResetTokenInvalid on reuse, got %v", err)
	}
}

func TestResetPasswordExpiredToken(t *testing.T) {
	users := newFakeUserRepo()
	orgs := newFakeOrgRepo()
	u := seedUser(t, users)
	seedOrg(orgs, u.ID)
	svc := newTestService(t, users, orgs, nil)

	token := "stale-reset-token"
	hash := core.HashToken(token)
	past := time.Now().Add(-time.Minute)
	users.resetHash = &hash
	users.resetExpiresAt = &past

	err := svc.ResetPassword(
		context.Background(),
		token,
		"brand-new-password-456",
	)
	if !errors.Is(err, ErrResetTokenInvalid) {
		t.Errorf("expected ErrResetTokenInvalid, got %v", err)
	}
	if users.consumed {
		t.Error("expired token must not be consumed")
	}
}

func newRegisterService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = mockDB.Close() })

	db := &core.Database{DB: sqlx.NewDb(mockDB, "sqlmock")}

	orgs := newFakeOrgRepo()
	return NewService(
		db,
		newFakeUserRepo(),
		org.NewDirectory(orgs),
		newTestJWTManager(t, 15*time.Minute),
		&captureMailer{},
		discardLogger(),
	), mock
}

func TestRegisterCreatesUserOrgAndMembershipAtomically(t *testing.T) {
	svc, mock := newRegisterService(t)

	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnRows(
			sqlmock.NewRows([]string{"created_at", "updated_at"}).
				AddRow(now, now),
		)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO organizations")).
		WillReturnRows(
			sqlmock.NewRows([]string{"created_at", "updated_at"}).
				AddRow(now, now),
		)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO memberships")).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	resp, err := svc.Register(context.Background(), RegisterRequest{
		Email:     "bob@example.com",
		Password:  "a-long-enough-password",
		FirstName: "Bob",
		LastName:  "Jones",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if resp.Organization.Name != "Bob's Workspace" {
		t.Errorf("unexpected workspace name: %q", resp.Organization.Name)
	}
	if resp.Organization.SubscriptionStatus != org.StatusFree {
		t.Errorf("new organizations start FREE, got %q",
			resp.Organization.SubscriptionStatus)
	}
	if resp.Organization.TenantID == "" {
		t.Error("expected a fresh tenant id")
	}

	claims, err := svc.jwt.VerifyAccessToken(
		context.Background(),
		resp.Tokens.AccessToken,
	)
	if err != nil {
		t.Fatalf("VerifyAccessToken: %v", err)
	}
	if claims.TenantID != resp.Organization.TenantID {
		t.Error("access token must be bound to the new tenant")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRegisterDuplicateEmailRollsBack(t *testing.T) {
	svc, mock := newRegisterService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:     "taken@example.com",
		Password:  "a-long-enough-password",
		FirstName: "Bob",
		LastName:  "Jones",
	})
	if !errors.Is(err, ErrEmailExists) {
		t.Errorf("expected ErrEmailExists, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
