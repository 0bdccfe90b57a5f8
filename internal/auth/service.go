// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/templates/saas-backend/internal/core"
	"github.com/carterperez-dev/templates/saas-backend/internal/org"
	"github.com/carterperez-dev/templates/saas-backend/internal/tenant"
	"github.com/carterperez-dev/templates/saas-backend/internal/user"
)

var (
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrResetTokenInvalid  = errors.New("reset token is invalid or expired")
)

const resetTokenTTL = time.Hour

// Mailer delivers password-reset links. The default implementation only
// logs; wiring a real provider is a deployment concern.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

type logMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) Mailer {
	return &logMailer{logger: logger}
}

func (m *logMailer) SendPasswordReset(
	_ context.Context,
	email, token string,
) error {
	m.logger.Info("password reset requested",
		"email", email,
		"token", token,
	)
	return nil
}

type Service struct {
	db        *core.Database
	users     user.Repository
	directory *org.Directory
	jwt       *JWTManager
	mailer    Mailer
	logger    *slog.Logger
}

func NewService(
	db *core.Database,
	users user.Repository,
	directory *org.Directory,
	jwtManager *JWTManager,
	mailer Mailer,
	logger *slog.Logger,
) *Service {
	return &Service{
		db:        db,
		users:     users,
		directory: directory,
		jwt:       jwtManager,
		mailer:    mailer,
		logger:    logger,
	}
}

// Register creates the user, their workspace organization, and the owner
// membership in one transaction, then signs in the new user. A failure at
// any step leaves no partial account behind.
func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
) (*RegisterResponse, error) {
	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	newUser := &user.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: passwordHash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         user.RoleUser,
	}

	newOrg := &org.Organization{
		ID:                 uuid.New().String(),
		TenantID:           uuid.New().String(),
		Name:               workspaceName(req.FirstName),
		OwnerUserID:        newUser.ID,
		SubscriptionStatus: org.StatusFree,
	}

	refresh, err := s.jwt.CreateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("create refresh token: %w", err)
	}

	err = core.InTx(ctx, s.db.DB, func(tx *sqlx.Tx) error {
		txUsers := user.NewRepository(tx)
		txOrgs := org.NewRepository(tx)

		if err := txUsers.Create(ctx, newUser); err != nil {
			if errors.Is(err, core.ErrDuplicateKey) {
				return ErrEmailExists
			}
			return err
		}

		if err := txOrgs.Create(ctx, newOrg); err != nil {
			return err
		}

		membership := &org.Membership{
			ID:             uuid.New().String(),
			UserID:         newUser.ID,
			OrganizationID: newOrg.ID,
			Role:           org.RoleOwner,
		}
		if err := txOrgs.CreateMembership(ctx, membership); err != nil {
			return err
		}

		return txUsers.RotateRefreshToken(
			ctx,
			newUser.ID,
			nil,
			refresh.Hash,
			refresh.ExpiresAt,
		)
	})
	if err != nil {
		return nil, err
	}

	accessToken, err := s.jwt.CreateAccessToken(
		newUser.ID,
		newOrg.TenantID,
		newUser.Role,
	)
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	s.logger.Info("user registered",
		"user_id", newUser.ID,
		"tenant_id", newOrg.TenantID,
	)

	return &RegisterResponse{
		User:         toUserResponse(newUser),
		Organization: toOrgResponse(newOrg),
		Tokens:       s.tokenPair(accessToken, refresh.Token),
	}, nil
}

func workspaceName(firstName string) string {
	if firstName == "" {
		return "My Workspace"
	}
	return fmt.Sprintf("%s's Workspace", firstName)
}

// Login verifies credentials and binds the session to the user's primary
// organization. Unknown email and wrong password take the same code path
// and return the same error, so response timing and shape leak nothing.
func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
) (*TokenPairResponse, error) {
	existing, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	var encodedHash *string
	if existing != nil {
		encodedHash = &existing.PasswordHash
	}

	valid, err := core.VerifyPasswordTimingSafe(req.Password, encodedHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !valid || existing == nil {
		return nil, ErrInvalidCredentials
	}

	organization, err := s.directory.PrimaryOrganization(ctx, existing.ID)
	if err != nil {
		return nil, err
	}

	refresh, err := s.jwt.CreateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("create refresh token: %w", err)
	}

	// Unconditional overwrite: a new login displaces any previous session's
	// refresh token.
	err = s.users.RotateRefreshToken(
		ctx,
		existing.ID,
		nil,
		refresh.Hash,
		refresh.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.jwt.CreateAccessToken(
		existing.ID,
		organization.TenantID,
		existing.Role,
	)
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	s.logger.Info("user logged in",
		"user_id", existing.ID,
		"tenant_id", organization.TenantID,
	)

	pair := s.tokenPair(accessToken, refresh.Token)
	return &pair, nil
}

// Refresh rotates the caller's refresh token and issues a fresh access
// token for the tenant already bound to the request context. Rotation is
// compare-and-swap on the stored fingerprint: two concurrent calls with
// the same token yield one winner, and the loser is treated as a replay.
func (s *Service) Refresh(
	ctx context.Context,
	refreshToken string,
) (*TokenPairResponse, error) {
	tenantID, ok := tenant.FromContext(ctx)
	if !ok || tenantID == "" {
		return nil, tenant.ErrNoTenant
	}

	oldHash := core.HashToken(refreshToken)

	existing, err := s.users.GetByRefreshTokenHash(ctx, oldHash)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
		}
		return nil, err
	}

	if existing.RefreshTokenExpired() {
		if clearErr := s.users.ClearRefreshToken(ctx, existing.ID); clearErr != nil {
			s.logger.Error("clear expired refresh token",
				"error", clearErr,
				"user_id", existing.ID,
			)
		}
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenExpired)
	}

	refresh, err := s.jwt.CreateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("create refresh token: %w", err)
	}

	err = s.users.RotateRefreshToken(
		ctx,
		existing.ID,
		&oldHash,
		refresh.Hash,
		refresh.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// Lost the swap: the presented token was already rotated away.
			// Indistinguishable from an unknown token, on purpose.
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
		}
		return nil, err
	}

	accessToken, err := s.jwt.CreateAccessToken(
		existing.ID,
		tenantID,
		existing.Role,
	)
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	pair := s.tokenPair(accessToken, refresh.Token)
	return &pair, nil
}

// ForgotPassword issues a reset token when the account exists and reports
// success either way, so the endpoint cannot be used to enumerate emails.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return err
	}

	token, err := core.GenerateResetToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	err = s.users.SetResetToken(
		ctx,
		existing.ID,
		core.HashToken(token),
		time.Now().Add(resetTokenTTL),
	)
	if err != nil {
		return err
	}

	if err := s.mailer.SendPasswordReset(ctx, existing.Email, token); err != nil {
		return fmt.Errorf("send password reset: %w", err)
	}

	return nil
}

// ResetPassword consumes a valid reset token, sets the new password, and
// revokes the live refresh token so stolen sessions die with the old
// password.
func (s *Service) ResetPassword(
	ctx context.Context,
	token, newPassword string,
) error {
	existing, err := s.users.GetByResetTokenHash(ctx, core.HashToken(token))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return ErrResetTokenInvalid
		}
		return err
	}

	if existing.ResetTokenExpired() {
		return ErrResetTokenInvalid
	}

	passwordHash, err := core.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.ConsumeResetToken(ctx, existing.ID, passwordHash); err != nil {
		return err
	}

	s.logger.Info("password reset completed", "user_id", existing.ID)

	return nil
}

func (s *Service) Me(ctx context.Context, userID string) (*MeResponse, error) {
	existing, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	organization, err := s.directory.CurrentOrganization(ctx)
	if err != nil {
		return nil, err
	}

	memberRole := ""
	memberships, err := s.directory.MembershipsOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, m := range memberships {
		if m.OrganizationID == organization.ID {
			memberRole = m.Role
			break
		}
	}

	return &MeResponse{
		User:         toUserResponse(existing),
		Organization: toOrgResponse(organization),
		MemberRole:   memberRole,
	}, nil
}

func (s *Service) tokenPair(accessToken, refreshToken string) TokenPairResponse {
	return TokenPairResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.jwt.AccessTokenTTL().Seconds()),
	}
}

func toUserResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
	}
}

func toOrgResponse(o *org.Organization) OrgResponse {
	return OrgResponse{
		ID:                 o.ID,
		TenantID:           o.TenantID,
		Name:               o.Name,
		SubscriptionStatus: o.SubscriptionStatus,
	}
}
