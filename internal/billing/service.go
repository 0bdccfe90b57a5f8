// AngelaMos | 2026
// service.go

package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/carterperez-dev/templates/saas-backend/internal/org"
	"github.com/carterperez-dev/templates/saas-backend/internal/user"
)

var ErrNoBillingCustomer = errors.New("organization has no billing customer")

type Service struct {
	provider  Provider
	orgs      org.Repository
	users     user.Repository
	directory *org.Directory
	logger    *slog.Logger
}

func NewService(
	provider Provider,
	orgs org.Repository,
	users user.Repository,
	directory *org.Directory,
	logger *slog.Logger,
) *Service {
	return &Service{
		provider:  provider,
		orgs:      orgs,
		users:     users,
		directory: directory,
		logger:    logger,
	}
}

// EnsureCustomer returns the organization's billing customer id, creating
// one at the provider if none is recorded. The write is a conditional
// update on the null column, so two concurrent callers both end up reading
// the same winner id; the loser's provider-side customer is orphaned but
// never referenced.
func (s *Service) EnsureCustomer(
	ctx context.Context,
	organization *org.Organization,
) (string, error) {
	if organization.BillingCustomerID != nil {
		return *organization.BillingCustomerID, nil
	}

	ownerEmail := s.ownerEmail(ctx, organization.ID)

	customer, err := s.provider.CreateCustomer(
		ctx,
		organization.ID,
		organization.Name,
		ownerEmail,
	)
	if err != nil {
		return "", fmt.Errorf("create billing customer: %w", err)
	}

	won, err := s.orgs.SetBillingCustomerIDIfAbsent(
		ctx,
		organization.ID,
		customer.ID,
	)
	if err != nil {
		return "", err
	}
	if won {
		return customer.ID, nil
	}

	// Another request attached a customer first; use theirs.
	current, err := s.orgs.GetByID(ctx, organization.ID)
	if err != nil {
		return "", err
	}
	if current.BillingCustomerID == nil {
		return "", fmt.Errorf(
			"ensure billing customer for %s: %w",
			organization.ID,
			ErrNoBillingCustomer,
		)
	}

	s.logger.Info("billing customer race lost, using existing",
		"organization_id", organization.ID,
		"customer_id", *current.BillingCustomerID,
	)

	return *current.BillingCustomerID, nil
}

func (s *Service) CreateCheckoutSession(
	ctx context.Context,
	successURL, cancelURL string,
) (*CheckoutSession, error) {
	organization, err := s.directory.CurrentOrganization(ctx)
	if err != nil {
		return nil, err
	}

	customerID, err := s.EnsureCustomer(ctx, organization)
	if err != nil {
		return nil, err
	}

	return s.provider.CreateCheckoutSession(ctx, customerID, successURL, cancelURL)
}

// CreatePortalSession requires an existing billing customer: the portal
// manages a subscription, and without a customer there is nothing to
// manage.
func (s *Service) CreatePortalSession(
	ctx context.Context,
	returnURL string,
) (*PortalSession, error) {
	organization, err := s.directory.CurrentOrganization(ctx)
	if err != nil {
		return nil, err
	}

	if organization.BillingCustomerID == nil {
		return nil, ErrNoBillingCustomer
	}

	return s.provider.CreatePortalSession(
		ctx,
		*organization.BillingCustomerID,
		returnURL,
	)
}

func (s *Service) ownerEmail(ctx context.Context, organizationID string) string {
	membership, err := s.orgs.OwnerMembership(ctx, organizationID)
	if err != nil {
		s.logger.Error("owner membership lookup failed",
			"error", err,
			"organization_id", organizationID,
		)
		return ""
	}

	owner, err := s.users.GetByID(ctx, membership.UserID)
	if err != nil {
		s.logger.Error("owner lookup failed",
			"error", err,
			"organization_id", organizationID,
			"user_id", membership.UserID,
		)
		return ""
	}

	return owner.Email
}
