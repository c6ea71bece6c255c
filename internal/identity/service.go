package identity

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	errors "github.com/frahmantamala/identity-access/internal"
)

type Service struct {
	repo      Repository
	roles     RoleRepository
	encoder   CredentialEncoder
	publisher EventPublisher
	tenants   TenantDirectory
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Service)

// WithTenantDirectory enables tenant admission checks on CreateUser.
func WithTenantDirectory(t TenantDirectory) Option {
	return func(s *Service) { s.tenants = t }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, roles RoleRepository, encoder CredentialEncoder, publisher EventPublisher, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		roles:     roles,
		encoder:   encoder,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateUser(ctx context.Context, cmd CreateUserCommand) (*User, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	taken, err := s.repo.ExistsByUsername(ctx, cmd.Username)
	if err != nil {
		s.logger.Error("failed to check username", "error", err)
		return nil, errors.AsRepositoryError("failed to check username", err)
	}
	if taken {
		return nil, errors.ErrDuplicateUsername
	}

	taken, err = s.repo.ExistsByEmail(ctx, cmd.Email)
	if err != nil {
		s.logger.Error("failed to check email", "error", err)
		return nil, errors.AsRepositoryError("failed to check email", err)
	}
	if taken {
		return nil, errors.ErrDuplicateEmail
	}

	roleIDs, err := s.resolveRoleIDs(ctx, cmd.TenantID, cmd.RoleIDs)
	if err != nil {
		return nil, err
	}

	if s.tenants != nil {
		current, err := s.repo.CountByTenantID(ctx, cmd.TenantID)
		if err != nil {
			s.logger.Error("failed to count tenant users", "tenant_id", cmd.TenantID, "error", err)
			return nil, errors.AsRepositoryError("failed to count tenant users", err)
		}
		if err := s.tenants.CheckAdmission(ctx, cmd.TenantID, current); err != nil {
			s.logger.Info("tenant refused new user", "tenant_id", cmd.TenantID, "error", err)
			return nil, err
		}
	}

	hash, err := s.encoder.Encode(cmd.Password)
	if err != nil {
		s.logger.Error("failed to encode password", "error", err)
		return nil, errors.NewInternalError("failed to encode password", err)
	}

	now := s.now()
	u := &User{
		ID:           uuid.New(),
		Username:     cmd.Username,
		Email:        cmd.Email,
		PasswordHash: hash,
		FirstName:    cmd.FirstName,
		LastName:     cmd.LastName,
		Status:       StatusActive,
		TenantID:     cmd.TenantID,
		RoleIDs:      roleIDs,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	saved, err := s.repo.Save(ctx, u)
	if err != nil {
		s.logger.Error("failed to save user", "username", cmd.Username, "error", err)
		return nil, errors.AsRepositoryError("failed to save user", err)
	}

	s.logger.Info("user created", "user_id", saved.ID, "tenant_id", saved.TenantID)
	if err := s.publisher.PublishUserCreated(ctx, saved.ID.String(), saved.TenantID.String(), saved.Username); err != nil {
		s.logger.Warn("user created notification dropped", "user_id", saved.ID, "error", err)
	}

	return saved, nil
}

func (s *Service) UpdateUser(ctx context.Context, userID uuid.UUID, cmd UpdateUserCommand) (*User, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	u, err := s.mustFind(ctx, userID)
	if err != nil {
		return nil, err
	}

	changes := make(map[string]interface{})

	if email, ok := cmd.Email.Get(); ok && email != u.Email {
		owner, err := s.repo.FindByEmail(ctx, email)
		if err != nil {
			s.logger.Error("failed to check email", "user_id", userID, "error", err)
			return nil, errors.AsRepositoryError("failed to check email", err)
		}
		if owner != nil && owner.ID != u.ID {
			return nil, errors.ErrDuplicateEmail
		}
	}
	if cmd.Email.Apply(&u.Email) {
		changes["email"] = u.Email
	}
	if cmd.FirstName.Apply(&u.FirstName) {
		changes["first_name"] = u.FirstName
	}
	if cmd.LastName.Apply(&u.LastName) {
		changes["last_name"] = u.LastName
	}
	if requested, ok := cmd.RoleIDs.Get(); ok {
		roleIDs, err := s.resolveRoleIDs(ctx, u.TenantID, requested)
		if err != nil {
			return nil, err
		}
		u.RoleIDs = roleIDs
		changes["role_ids"] = uuidStrings(roleIDs)
	}

	u.UpdatedAt = s.now()
	saved, err := s.repo.Save(ctx, u)
	if err != nil {
		s.logger.Error("failed to update user", "user_id", userID, "error", err)
		return nil, errors.AsRepositoryError("failed to update user", err)
	}

	s.logger.Info("user updated", "user_id", saved.ID, "fields", len(changes))
	if err := s.publisher.PublishUserUpdated(ctx, saved.ID.String(), saved.TenantID.String(), changes); err != nil {
		s.logger.Warn("user updated notification dropped", "user_id", saved.ID, "error", err)
	}

	return saved, nil
}

func (s *Service) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.mustFind(ctx, userID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, userID); err != nil {
		s.logger.Error("failed to delete user", "user_id", userID, "error", err)
		return errors.AsRepositoryError("failed to delete user", err)
	}
	s.logger.Info("user deleted", "user_id", userID)
	return nil
}

func (s *Service) ActivateUser(ctx context.Context, userID uuid.UUID) (*User, error) {
	return s.transition(ctx, userID, StatusActive)
}

func (s *Service) DeactivateUser(ctx context.Context, userID uuid.UUID) (*User, error) {
	return s.transition(ctx, userID, StatusInactive)
}

func (s *Service) transition(ctx context.Context, userID uuid.UUID, status Status) (*User, error) {
	u, err := s.mustFind(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.Status = status
	u.UpdatedAt = s.now()

	saved, err := s.repo.Save(ctx, u)
	if err != nil {
		s.logger.Error("failed to change user status", "user_id", userID, "status", status, "error", err)
		return nil, errors.AsRepositoryError("failed to change user status", err)
	}
	s.logger.Info("user status changed", "user_id", userID, "status", status)
	return saved, nil
}

func (s *Service) GetUserByID(ctx context.Context, userID uuid.UUID) (*User, error) {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, errors.AsRepositoryError("failed to get user", err)
	}
	return u, nil
}

func (s *Service) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	u, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, errors.AsRepositoryError("failed to get user", err)
	}
	return u, nil
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	u, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, errors.AsRepositoryError("failed to get user", err)
	}
	return u, nil
}

// GetAllUsers pages through a tenant's users ordered by creation time.
func (s *Service) GetAllUsers(ctx context.Context, tenantID uuid.UUID, page, size int) ([]*User, error) {
	page, size = NormalizePage(page, size)
	users, err := s.repo.FindByTenantID(ctx, tenantID, page, size)
	if err != nil {
		return nil, errors.AsRepositoryError("failed to list users", err)
	}
	if users == nil {
		users = []*User{}
	}
	return users, nil
}

func (s *Service) CountUsers(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	n, err := s.repo.CountByTenantID(ctx, tenantID)
	if err != nil {
		return 0, errors.AsRepositoryError("failed to count users", err)
	}
	return n, nil
}

func (s *Service) mustFind(ctx context.Context, userID uuid.UUID) (*User, error) {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load user", "user_id", userID, "error", err)
		return nil, errors.AsRepositoryError("failed to load user", err)
	}
	if u == nil {
		return nil, errors.ErrUserNotFound
	}
	return u, nil
}

// resolveRoleIDs deduplicates ids and checks that each role exists and is
// either global or owned by tenantID.
func (s *Service) resolveRoleIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	unique := dedupe(ids)
	if len(unique) == 0 {
		return []uuid.UUID{}, nil
	}

	found, err := s.roles.FindRolesByIDs(ctx, unique)
	if err != nil {
		return nil, errors.AsRepositoryError("failed to load roles", err)
	}
	byID := make(map[uuid.UUID]Role, len(found))
	for _, r := range found {
		byID[r.ID] = r
	}
	for _, id := range unique {
		r, ok := byID[id]
		if !ok {
			return nil, errors.NewValidationFieldError("role_ids", "role "+id.String()+" does not exist", errors.ErrCodeInvalidReference)
		}
		if !r.UsableBy(tenantID) {
			return nil, errors.NewValidationFieldError("role_ids", "role "+r.Name+" belongs to another tenant", errors.ErrCodeInvalidReference)
		}
	}
	return unique, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
