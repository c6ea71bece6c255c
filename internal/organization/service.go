package organization

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	errors "github.com/frahmantamala/identity-access/internal"
	"github.com/frahmantamala/identity-access/internal/identity"
)

// maxHierarchyDepth bounds the parent walk used for cycle detection.
const maxHierarchyDepth = 64

type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Onboard(ctx context.Context, cmd OnboardCommand) (*Organization, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByCode(ctx, cmd.Code)
	if err != nil {
		return nil, errors.AsRepositoryError("failed to check organization code", err)
	}
	if existing != nil {
		return nil, errors.ErrDuplicateOrganization
	}

	if cmd.ParentID != nil {
		parent, err := s.repo.FindByID(ctx, *cmd.ParentID)
		if err != nil {
			return nil, errors.AsRepositoryError("failed to load parent organization", err)
		}
		if parent == nil {
			return nil, errors.NewValidationFieldError("parent_id", "parent organization does not exist", errors.ErrCodeInvalidReference)
		}
	}

	now := s.now()
	o := &Organization{
		ID:                    uuid.New(),
		Code:                  cmd.Code,
		Name:                  cmd.Name,
		DisplayName:           cmd.DisplayName,
		Description:           cmd.Description,
		Status:                cmd.Status,
		Type:                  cmd.Type,
		Email:                 cmd.Email,
		Phone:                 cmd.Phone,
		Website:               cmd.Website,
		ParentID:              cmd.ParentID,
		MaxUsers:              cmd.MaxUsers,
		SubscriptionPlan:      cmd.SubscriptionPlan,
		SubscriptionExpiresAt: cmd.SubscriptionExpiresAt,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if o.Status == "" {
		o.Status = StatusActive
	}
	if o.Type == "" {
		o.Type = TypeEnterprise
	}
	if o.MaxUsers == 0 {
		o.MaxUsers = DefaultMaxUsers
	}
	if o.SubscriptionPlan == "" {
		o.SubscriptionPlan = DefaultPlan
	}

	saved, err := s.repo.Save(ctx, o)
	if err != nil {
		s.logger.Error("failed to save organization", "code", cmd.Code, "error", err)
		return nil, errors.AsRepositoryError("failed to save organization", err)
	}
	s.logger.Info("organization onboarded", "tenant_id", saved.ID, "code", saved.Code)
	return saved, nil
}

// Get returns nil when the organization does not exist.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Organization, error) {
	o, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, errors.AsRepositoryError("failed to get organization", err)
	}
	return o, nil
}

func (s *Service) GetByCode(ctx context.Context, code string) (*Organization, error) {
	o, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, errors.AsRepositoryError("failed to get organization", err)
	}
	return o, nil
}

func (s *Service) List(ctx context.Context, status *Status, page, size int) ([]*Organization, error) {
	page, size = identity.NormalizePage(page, size)
	orgs, err := s.repo.List(ctx, status, page, size)
	if err != nil {
		return nil, errors.AsRepositoryError("failed to list organizations", err)
	}
	if orgs == nil {
		orgs = []*Organization{}
	}
	return orgs, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Organization, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	o, err := s.mustFind(ctx, id)
	if err != nil {
		return nil, err
	}

	if parentID, ok := cmd.ParentID.Get(); ok && parentID != nil {
		if err := s.checkParent(ctx, o.ID, *parentID); err != nil {
			return nil, err
		}
	}

	cmd.Name.Apply(&o.Name)
	cmd.DisplayName.Apply(&o.DisplayName)
	cmd.Description.Apply(&o.Description)
	cmd.Email.Apply(&o.Email)
	cmd.Phone.Apply(&o.Phone)
	cmd.Website.Apply(&o.Website)
	cmd.MaxUsers.Apply(&o.MaxUsers)
	cmd.SubscriptionPlan.Apply(&o.SubscriptionPlan)
	cmd.SubscriptionExpiresAt.Apply(&o.SubscriptionExpiresAt)
	cmd.ParentID.Apply(&o.ParentID)
	o.UpdatedAt = s.now()

	saved, err := s.repo.Save(ctx, o)
	if err != nil {
		s.logger.Error("failed to update organization", "tenant_id", id, "error", err)
		return nil, errors.AsRepositoryError("failed to update organization", err)
	}
	s.logger.Info("organization updated", "tenant_id", id)
	return saved, nil
}

func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, cmd ChangeStatusCommand) (*Organization, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	o, err := s.mustFind(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := o.Status
	o.Status = cmd.Status
	o.UpdatedAt = s.now()
	saved, err := s.repo.Save(ctx, o)
	if err != nil {
		s.logger.Error("failed to change organization status", "tenant_id", id, "error", err)
		return nil, errors.AsRepositoryError("failed to change organization status", err)
	}
	s.logger.Info("organization status changed", "tenant_id", id, "from", previous, "to", saved.Status)
	return saved, nil
}

// CheckAdmission implements identity.TenantDirectory. MaxUsers caps accounts
// of any status, so currentUsers includes inactive and suspended users.
func (s *Service) CheckAdmission(ctx context.Context, tenantID uuid.UUID, currentUsers int64) error {
	o, err := s.mustFind(ctx, tenantID)
	if err != nil {
		return err
	}
	if !o.AcceptsUsers(s.now()) {
		return errors.ErrTenantUnavailable
	}
	if currentUsers >= int64(o.MaxUsers) {
		return errors.ErrTenantCapacity
	}
	return nil
}

// checkParent rejects a parent that is missing or that has id among its ancestors.
func (s *Service) checkParent(ctx context.Context, id, parentID uuid.UUID) error {
	cursor := parentID
	for depth := 0; depth < maxHierarchyDepth; depth++ {
		if cursor == id {
			return errors.ErrOrganizationCycle
		}
		node, err := s.repo.FindByID(ctx, cursor)
		if err != nil {
			return errors.AsRepositoryError("failed to load parent organization", err)
		}
		if node == nil {
			if depth == 0 {
				return errors.NewValidationFieldError("parent_id", "parent organization does not exist", errors.ErrCodeInvalidReference)
			}
			return nil
		}
		if node.ParentID == nil {
			return nil
		}
		cursor = *node.ParentID
	}
	return errors.ErrOrganizationCycle
}

func (s *Service) mustFind(ctx context.Context, id uuid.UUID) (*Organization, error) {
	o, err := s.repo.FindByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to load organization", "tenant_id", id, "error", err)
		return nil, errors.AsRepositoryError("failed to load organization", err)
	}
	if o == nil {
		return nil, errors.ErrOrganizationNotFound
	}
	return o, nil
}
