// AngelaMos | 2026
// handler.go

package org

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/templates/saas-backend/internal/core"
	"github.com/carterperez-dev/templates/saas-backend/internal/tenant"
)

type Handler struct {
	directory *Directory
}

func NewHandler(directory *Directory) *Handler {
	return &Handler{directory: directory}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/org", func(r chi.Router) {
		r.Use(authenticator)
		r.Get("/", h.GetCurrent)
	})
}

type OrganizationResponse struct {
	ID                 string    `json:"id"`
	TenantID           string    `json:"tenant_id"`
	Name               string    `json:"name"`
	SubscriptionStatus string    `json:"subscription_status"`
	CreatedAt          time.Time `json:"created_at"`
}

// GetCurrent returns the organization bound to the request's tenant. A
// token whose tenant no longer resolves reads as not-found, the same as
// any other cross-tenant access.
func (h *Handler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	organization, err := h.directory.CurrentOrganization(r.Context())
	if err != nil {
		if errors.Is(err, tenant.ErrNoTenant) {
			core.Unauthorized(w, "")
			return
		}
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "organization")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, OrganizationResponse{
		ID:                 organization.ID,
		TenantID:           organization.TenantID,
		Name:               organization.Name,
		SubscriptionStatus: organization.SubscriptionStatus,
		CreatedAt:          organization.CreatedAt,
	})
}
