package organization

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/google/uuid"

	errors "github.com/frahmantamala/identity-access/internal"
	"github.com/frahmantamala/identity-access/internal/identity"
	"github.com/frahmantamala/identity-access/internal/transport"
)

type ServiceAPI interface {
	Onboard(ctx context.Context, cmd OnboardCommand) (*Organization, error)
	Get(ctx context.Context, id uuid.UUID) (*Organization, error)
	GetByCode(ctx context.Context, code string) (*Organization, error)
	List(ctx context.Context, status *Status, page, size int) ([]*Organization, error)
	Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Organization, error)
	ChangeStatus(ctx context.Context, id uuid.UUID, cmd ChangeStatusCommand) (*Organization, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(base *transport.BaseHandler, svc ServiceAPI) *Handler {
	return &Handler{BaseHandler: base, Service: svc}
}

// Onboard handles POST /organizations
func (h *Handler) Onboard(w http.ResponseWriter, r *http.Request) {
	var cmd OnboardCommand
	if err := h.DecodeJSON(r, &cmd); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	o, err := h.Service.Onboard(r.Context(), cmd)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, o)
}

// List handles GET /organizations?status=&code=&page=&size=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if code := r.URL.Query().Get("code"); code != "" {
		o, err := h.Service.GetByCode(r.Context(), code)
		if err != nil {
			h.HandleServiceError(w, r, err)
			return
		}
		orgs := []*Organization{}
		if o != nil {
			orgs = append(orgs, o)
		}
		h.WriteJSON(w, http.StatusOK, map[string]interface{}{"organizations": orgs})
		return
	}

	var status *Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := Status(raw)
		status = &st
	}
	page, size := h.PageParams(r)
	orgs, err := h.Service.List(r.Context(), status, page, size)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"organizations": orgs})
}

// Current handles GET /organizations/current, the principal's own tenant.
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.UserFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, r, errors.ErrInvalidToken)
		return
	}
	h.respondWith(w, r, principal.TenantID)
}

// Get handles GET /organizations/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	h.respondWith(w, r, id)
}

func (h *Handler) respondWith(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	o, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	if o == nil {
		h.HandleServiceError(w, r, errors.ErrOrganizationNotFound)
		return
	}
	h.WriteJSON(w, http.StatusOK, o)
}

// Update handles PATCH /organizations/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var cmd UpdateCommand
	if err := h.DecodeJSON(r, &cmd); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	o, err := h.Service.Update(r.Context(), id, cmd)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, o)
}

// ChangeStatus handles PUT /organizations/{id}/status
func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var cmd ChangeStatusCommand
	if err := h.DecodeJSON(r, &cmd); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	o, err := h.Service.ChangeStatus(r.Context(), id, cmd)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, r, errors.NewValidationFieldError("id", "id must be a UUID", errors.ErrCodeValidationFailed))
		return uuid.Nil, false
	}
	return id, true
}
