// AngelaMos | 2026
// handler.go

package admin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/templates/saas-backend/internal/core"
	"github.com/carterperez-dev/templates/saas-backend/internal/org"
	"github.com/carterperez-dev/templates/saas-backend/internal/tenant"
	"github.com/carterperez-dev/templates/saas-backend/internal/todo"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Handler exposes operational listings across all tenants. This is the
// one surface that reads with an exempt scope, and it only mounts behind
// the admin role check.
type Handler struct {
	orgs  org.Repository
	todos todo.Repository
}

func NewHandler(orgs org.Repository, todos todo.Repository) *Handler {
	return &Handler{orgs: orgs, todos: todos}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/organizations", h.ListOrganizations)
		r.Get("/todos", h.ListTodos)
	})
}

type OrganizationSummary struct {
	ID                 string    `json:"id"`
	TenantID           string    `json:"tenant_id"`
	Name               string    `json:"name"`
	SubscriptionStatus string    `json:"subscription_status"`
	CreatedAt          time.Time `json:"created_at"`
}

type OrganizationListResponse struct {
	Organizations []OrganizationSummary `json:"organizations"`
	Count         int                   `json:"count"`
}

func (h *Handler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	organizations, err := h.orgs.List(r.Context(), limit, offset)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	summaries := make([]OrganizationSummary, 0, len(organizations))
	for _, o := range organizations {
		summaries = append(summaries, OrganizationSummary{
			ID:                 o.ID,
			TenantID:           o.TenantID,
			Name:               o.Name,
			SubscriptionStatus: o.SubscriptionStatus,
			CreatedAt:          o.CreatedAt,
		})
	}

	core.OK(w, OrganizationListResponse{
		Organizations: summaries,
		Count:         len(summaries),
	})
}

type TodoSummary struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
}

type TodoListResponse struct {
	Todos []TodoSummary `json:"todos"`
	Count int           `json:"count"`
}

func (h *Handler) ListTodos(w http.ResponseWriter, r *http.Request) {
	todos, err := h.todos.List(r.Context(), tenant.Exempt())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	summaries := make([]TodoSummary, 0, len(todos))
	for _, item := range todos {
		summaries = append(summaries, TodoSummary{
			ID:        item.ID,
			TenantID:  item.TenantID,
			Title:     item.Title,
			Completed: item.Completed,
			CreatedAt: item.CreatedAt,
		})
	}

	core.OK(w, TodoListResponse{Todos: summaries, Count: len(summaries)})
}

func pagination(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = min(parsed, maxPageSize)
		}
	}

	if raw := r.URL.Query().Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			offset = parsed
		}
	}

	return limit, offset
}
