package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/identity-access/internal/auth"
	"github.com/frahmantamala/identity-access/internal/authz"
	"github.com/frahmantamala/identity-access/internal/core/events"
	"github.com/frahmantamala/identity-access/internal/identity"
	identityPostgres "github.com/frahmantamala/identity-access/internal/identity/postgres"
	"github.com/frahmantamala/identity-access/internal/organization"
	orgPostgres "github.com/frahmantamala/identity-access/internal/organization/postgres"
	"github.com/frahmantamala/identity-access/pkg/logger"
)

const adminRoleName = "admin"

type seedOptions struct {
	OrgCode  string
	OrgName  string
	Username string
	Email    string
	Password string
}

var seedOpts seedOptions

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the permission catalogue, an admin role, a root organization and its admin user",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig(".")
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
		log := logger.LoggerWrapper()

		gdb, sqlDB, err := openDatabase(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		userRepo := identityPostgres.NewUserRepository(gdb)
		roleRepo := identityPostgres.NewRoleRepository(gdb)
		publisher := events.NewIdentityPublisher(events.NewEventBus(log), log)
		orgs := organization.NewService(orgPostgres.NewOrganizationRepository(gdb), log)

		s := &seeder{
			users:    userRepo,
			roleRepo: roleRepo,
			roles:    identity.NewRoleService(roleRepo, log),
			orgs:     orgs,
			identity: identity.NewService(userRepo, roleRepo, auth.NewBcryptEncoder(cfg.Security.BCryptCost), publisher, log,
				identity.WithTenantDirectory(orgs)),
			log: log,
		}
		admin, err := s.run(ctx, seedOpts)
		if err != nil {
			return err
		}
		log.Info("seed complete", "admin_user_id", admin.ID, "tenant_id", admin.TenantID)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedOpts.OrgCode, "org-code", "root", "code of the root organization")
	seedCmd.Flags().StringVar(&seedOpts.OrgName, "org-name", "Root Organization", "name of the root organization")
	seedCmd.Flags().StringVar(&seedOpts.Username, "admin-username", "admin", "username of the admin user")
	seedCmd.Flags().StringVar(&seedOpts.Email, "admin-email", "admin@example.com", "email of the admin user")
	seedCmd.Flags().StringVar(&seedOpts.Password, "admin-password", "", "password of the admin user (required)")
	_ = seedCmd.MarkFlagRequired("admin-password")
}

// seeder is idempotent: anything already present is reused.
type seeder struct {
	users    identity.Repository
	roleRepo identity.RoleRepository
	roles    *identity.RoleService
	orgs     *organization.Service
	identity *identity.Service
	log      *slog.Logger
}

func (s *seeder) run(ctx context.Context, opts seedOptions) (*identity.User, error) {
	permIDs := make([]uuid.UUID, 0, len(authz.Catalogue))
	for _, p := range authz.Catalogue {
		perm, err := s.roleRepo.FindPermissionByName(ctx, p.Name)
		if err != nil {
			return nil, fmt.Errorf("lookup permission %s: %w", p.Name, err)
		}
		if perm == nil {
			perm, err = s.roles.CreatePermission(ctx, identity.CreatePermissionCommand{
				Name:        p.Name,
				Description: p.Description,
				Resource:    p.Resource,
				Action:      p.Action,
			})
			if err != nil {
				return nil, fmt.Errorf("create permission %s: %w", p.Name, err)
			}
			s.log.Info("seeded permission", "name", perm.Name)
		}
		permIDs = append(permIDs, perm.ID)
	}

	role, err := s.roleRepo.FindRoleByName(ctx, adminRoleName)
	if err != nil {
		return nil, fmt.Errorf("lookup admin role: %w", err)
	}
	if role == nil {
		role, err = s.roles.CreateRole(ctx, identity.CreateRoleCommand{
			Name:          adminRoleName,
			Description:   "Full administrator",
			PermissionIDs: permIDs,
		})
	} else {
		role, err = s.roles.SetRolePermissions(ctx, role.ID, permIDs)
	}
	if err != nil {
		return nil, fmt.Errorf("ensure admin role: %w", err)
	}

	org, err := s.orgs.GetByCode(ctx, opts.OrgCode)
	if err != nil {
		return nil, fmt.Errorf("lookup organization: %w", err)
	}
	if org == nil {
		org, err = s.orgs.Onboard(ctx, organization.OnboardCommand{Code: opts.OrgCode, Name: opts.OrgName})
		if err != nil {
			return nil, fmt.Errorf("onboard organization: %w", err)
		}
		s.log.Info("seeded organization", "code", org.Code, "id", org.ID)
	}

	admin, err := s.users.FindByUsername(ctx, opts.Username)
	if err != nil {
		return nil, fmt.Errorf("lookup admin user: %w", err)
	}
	if admin != nil {
		return admin, nil
	}
	admin, err = s.identity.CreateUser(ctx, identity.CreateUserCommand{
		Username:  opts.Username,
		Email:     opts.Email,
		Password:  opts.Password,
		FirstName: "System",
		LastName:  "Administrator",
		TenantID:  org.ID,
		RoleIDs:   []uuid.UUID{role.ID},
	})
	if err != nil {
		return nil, fmt.Errorf("create admin user: %w", err)
	}
	s.log.Info("seeded admin user", "username", admin.Username)
	return admin, nil
}
