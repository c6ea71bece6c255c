// Package memory holds in-process implementations of the identity
// repositories, used by the service and handler tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	errors "github.com/frahmantamala/identity-access/internal"
	"github.com/frahmantamala/identity-access/internal/identity"
)

// Store implements identity.Repository and identity.RoleRepository. Users and
// roles keep only identifier references; Roles and Permissions are resolved
// on every read.
type Store struct {
	mu sync.RWMutex

	users       map[uuid.UUID]identity.User
	roles       map[uuid.UUID]identity.Role
	permissions map[uuid.UUID]identity.Permission
}

func NewStore() *Store {
	return &Store{
		users:       make(map[uuid.UUID]identity.User),
		roles:       make(map[uuid.UUID]identity.Role),
		permissions: make(map[uuid.UUID]identity.Permission),
	}
}

func (s *Store) Save(_ context.Context, u *identity.User) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.users {
		if id == u.ID {
			continue
		}
		if existing.Username == u.Username {
			return nil, errors.ErrDuplicateUsername
		}
		if existing.Email == u.Email {
			return nil, errors.ErrDuplicateEmail
		}
	}

	record := *u
	record.RoleIDs = append([]uuid.UUID{}, u.RoleIDs...)
	record.Roles = nil
	s.users[u.ID] = record
	return s.resolveUser(record), nil
}

func (s *Store) FindByID(_ context.Context, id uuid.UUID) (*identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return s.resolveUser(u), nil
}

func (s *Store) FindByUsername(_ context.Context, username string) (*identity.User, error) {
	return s.findFirst(func(u identity.User) bool { return u.Username == username }), nil
}

func (s *Store) FindByEmail(_ context.Context, email string) (*identity.User, error) {
	return s.findFirst(func(u identity.User) bool { return u.Email == email }), nil
}

func (s *Store) FindByTenantID(_ context.Context, tenantID uuid.UUID, page, size int) ([]*identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]identity.User, 0)
	for _, u := range s.users {
		if u.TenantID == tenantID {
			matched = append(matched, u)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	start := page * size
	if start >= len(matched) {
		return []*identity.User{}, nil
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]*identity.User, 0, end-start)
	for _, u := range matched[start:end] {
		out = append(out, s.resolveUser(u))
	}
	return out, nil
}

func (s *Store) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	u, _ := s.FindByUsername(ctx, username)
	return u != nil, nil
}

func (s *Store) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	u, _ := s.FindByEmail(ctx, email)
	return u != nil, nil
}

func (s *Store) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

func (s *Store) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

func (s *Store) CountByTenantID(_ context.Context, tenantID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, u := range s.users {
		if u.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

func (s *Store) SaveRole(_ context.Context, r *identity.Role) (*identity.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.roles {
		if id != r.ID && strings.EqualFold(existing.Name, r.Name) {
			return nil, errors.ErrDuplicateRole
		}
	}

	record := *r
	record.PermissionIDs = append([]uuid.UUID{}, r.PermissionIDs...)
	record.Permissions = nil
	s.roles[r.ID] = record
	resolved := s.resolveRole(record)
	return &resolved, nil
}

func (s *Store) FindRoleByID(_ context.Context, id uuid.UUID) (*identity.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.roles[id]
	if !ok {
		return nil, nil
	}
	resolved := s.resolveRole(r)
	return &resolved, nil
}

func (s *Store) FindRoleByName(_ context.Context, name string) (*identity.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.roles {
		if strings.EqualFold(r.Name, name) {
			resolved := s.resolveRole(r)
			return &resolved, nil
		}
	}
	return nil, nil
}

func (s *Store) FindRolesByIDs(_ context.Context, ids []uuid.UUID) ([]identity.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rolesFor(ids), nil
}

func (s *Store) ListRoles(_ context.Context, tenantID *uuid.UUID) ([]identity.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]identity.Role, 0, len(s.roles))
	for _, r := range s.roles {
		if r.TenantID == nil || (tenantID != nil && *r.TenantID == *tenantID) {
			out = append(out, s.resolveRole(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) SetRolePermissions(_ context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.roles[roleID]
	if !ok {
		return errors.ErrRoleNotFound
	}
	r.PermissionIDs = append([]uuid.UUID{}, permissionIDs...)
	s.roles[roleID] = r
	return nil
}

func (s *Store) SavePermission(_ context.Context, p *identity.Permission) (*identity.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.permissions {
		if id != p.ID && strings.EqualFold(existing.Name, p.Name) {
			return nil, errors.ErrDuplicatePerm
		}
	}
	s.permissions[p.ID] = *p
	saved := *p
	return &saved, nil
}

func (s *Store) FindPermissionByName(_ context.Context, name string) (*identity.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.permissions {
		if strings.EqualFold(p.Name, name) {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}

func (s *Store) FindPermissionsByIDs(_ context.Context, ids []uuid.UUID) ([]identity.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.permissionsFor(ids), nil
}

func (s *Store) ListPermissions(_ context.Context) ([]identity.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]identity.Permission, 0, len(s.permissions))
	for _, p := range s.permissions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) findFirst(match func(identity.User) bool) *identity.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if match(u) {
			return s.resolveUser(u)
		}
	}
	return nil
}

// resolveUser returns a detached copy with roles and permissions attached.
// Callers must hold s.mu.
func (s *Store) resolveUser(u identity.User) *identity.User {
	out := u
	out.RoleIDs = append([]uuid.UUID{}, u.RoleIDs...)
	out.Roles = s.rolesFor(u.RoleIDs)
	return &out
}

func (s *Store) resolveRole(r identity.Role) identity.Role {
	out := r
	out.PermissionIDs = append([]uuid.UUID{}, r.PermissionIDs...)
	out.Permissions = s.permissionsFor(r.PermissionIDs)
	return out
}

func (s *Store) rolesFor(ids []uuid.UUID) []identity.Role {
	out := make([]identity.Role, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.roles[id]; ok {
			out = append(out, s.resolveRole(r))
		}
	}
	return out
}

func (s *Store) permissionsFor(ids []uuid.UUID) []identity.Permission {
	out := make([]identity.Permission, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.permissions[id]; ok {
			out = append(out, p)
		}
	}
	return out
}
