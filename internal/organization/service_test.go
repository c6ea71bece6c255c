package organization_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	apperrors "github.com/frahmantamala/identity-access/internal"
	identityDatamodel "github.com/frahmantamala/identity-access/internal/core/datamodel/identity"
	"github.com/frahmantamala/identity-access/internal/core/patch"
	"github.com/frahmantamala/identity-access/internal/organization"
	orgPostgres "github.com/frahmantamala/identity-access/internal/organization/postgres"
	applog "github.com/frahmantamala/identity-access/pkg/logger"
)

func TestOrganization(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Organization Suite")
}

func newTestRepository() *orgPostgres.OrganizationRepository {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	Expect(err).NotTo(HaveOccurred())
	sqlDB, err := db.DB()
	Expect(err).NotTo(HaveOccurred())
	sqlDB.SetMaxOpenConns(1)
	Expect(db.AutoMigrate(&identityDatamodel.Organization{})).To(Succeed())
	return orgPostgres.NewOrganizationRepository(db)
}

var _ = Describe("Organization Service", func() {
	var (
		ctx     context.Context
		service *organization.Service
		now     time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		service = organization.NewService(newTestRepository(), applog.Discard()).
			WithClock(func() time.Time { return now })
	})

	Describe("Onboard", func() {
		It("applies the tenant defaults", func() {
			o, err := service.Onboard(ctx, organization.OnboardCommand{Code: "acme", Name: "Acme"})
			Expect(err).NotTo(HaveOccurred())

			Expect(o.Status).To(Equal(organization.StatusActive))
			Expect(o.Type).To(Equal(organization.TypeEnterprise))
			Expect(o.MaxUsers).To(Equal(organization.DefaultMaxUsers))
			Expect(o.SubscriptionPlan).To(Equal("basic"))
			Expect(o.SubscriptionExpiresAt).To(BeNil())
		})

		It("rejects a taken code", func() {
			_, err := service.Onboard(ctx, organization.OnboardCommand{Code: "acme", Name: "Acme"})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Onboard(ctx, organization.OnboardCommand{Code: "acme", Name: "Acme 2"})
			Expect(err).To(MatchError(apperrors.ErrDuplicateOrganization))
		})

		It("requires an existing parent", func() {
			missing := uuid.New()
			_, err := service.Onboard(ctx, organization.OnboardCommand{Code: "child", Name: "Child", ParentID: &missing})
			Expect(apperrors.IsType(err, apperrors.ErrorTypeValidation)).To(BeTrue())
		})

		It("validates code, status and type", func() {
			_, err := service.Onboard(ctx, organization.OnboardCommand{Code: "Bad Code", Name: "x", Status: "GONE", Type: "GUILD"})
			appErr, ok := apperrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Details.(apperrors.ValidationErrors).Errors).To(HaveLen(3))
		})
	})

	Describe("Update", func() {
		It("changes only present fields and can detach the parent", func() {
			root, err := service.Onboard(ctx, organization.OnboardCommand{Code: "root", Name: "Root"})
			Expect(err).NotTo(HaveOccurred())
			child, err := service.Onboard(ctx, organization.OnboardCommand{Code: "child", Name: "Child", Description: "keep", ParentID: &root.ID})
			Expect(err).NotTo(HaveOccurred())

			updated, err := service.Update(ctx, child.ID, organization.UpdateCommand{
				MaxUsers: patch.Set(5),
				ParentID: patch.Set[*uuid.UUID](nil),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.MaxUsers).To(Equal(5))
			Expect(updated.Description).To(Equal("keep"))
			Expect(updated.ParentID).To(BeNil())
		})

		It("refuses a parent that would close a cycle", func() {
			a, _ := service.Onboard(ctx, organization.OnboardCommand{Code: "a", Name: "A"})
			b, _ := service.Onboard(ctx, organization.OnboardCommand{Code: "b", Name: "B", ParentID: &a.ID})
			c, _ := service.Onboard(ctx, organization.OnboardCommand{Code: "c", Name: "C", ParentID: &b.ID})

			_, err := service.Update(ctx, a.ID, organization.UpdateCommand{ParentID: patch.Set(&c.ID)})
			Expect(err).To(MatchError(apperrors.ErrOrganizationCycle))

			_, err = service.Update(ctx, a.ID, organization.UpdateCommand{ParentID: patch.Set(&a.ID)})
			Expect(err).To(MatchError(apperrors.ErrOrganizationCycle))
		})

		It("fails for unknown organizations", func() {
			_, err := service.Update(ctx, uuid.New(), organization.UpdateCommand{Name: patch.Set("x")})
			Expect(err).To(MatchError(apperrors.ErrOrganizationNotFound))
		})
	})

	Describe("ChangeStatus and listing", func() {
		It("models removal as INACTIVE and filters by status", func() {
			a, _ := service.Onboard(ctx, organization.OnboardCommand{Code: "a", Name: "A"})
			_, _ = service.Onboard(ctx, organization.OnboardCommand{Code: "b", Name: "B"})

			o, err := service.ChangeStatus(ctx, a.ID, organization.ChangeStatusCommand{Status: organization.StatusInactive})
			Expect(err).NotTo(HaveOccurred())
			Expect(o.Status).To(Equal(organization.StatusInactive))

			inactive := organization.StatusInactive
			listed, err := service.List(ctx, &inactive, 0, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(listed).To(HaveLen(1))
			Expect(listed[0].Code).To(Equal("a"))

			all, err := service.List(ctx, nil, 0, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))

			Expect(service.GetByCode(ctx, "b")).NotTo(BeNil())
			Expect(service.Get(ctx, uuid.New())).To(BeNil())
		})

		It("rejects unknown statuses", func() {
			a, _ := service.Onboard(ctx, organization.OnboardCommand{Code: "a", Name: "A"})
			_, err := service.ChangeStatus(ctx, a.ID, organization.ChangeStatusCommand{Status: "DELETED"})
			Expect(apperrors.IsType(err, apperrors.ErrorTypeValidation)).To(BeTrue())
		})
	})

	Describe("CheckAdmission", func() {
		It("admits active and trial tenants under capacity", func() {
			active, _ := service.Onboard(ctx, organization.OnboardCommand{Code: "a", Name: "A", MaxUsers: 2})
			trial, _ := service.Onboard(ctx, organization.OnboardCommand{Code: "t", Name: "T", Status: organization.StatusTrial})

			Expect(service.CheckAdmission(ctx, active.ID, 1)).To(Succeed())
			Expect(service.CheckAdmission(ctx, trial.ID, 0)).To(Succeed())
			Expect(service.CheckAdmission(ctx, active.ID, 2)).To(MatchError(apperrors.ErrTenantCapacity))
		})

		It("refuses suspended tenants and expired subscriptions", func() {
			expired := now.Add(-time.Hour)
			suspended, _ := service.Onboard(ctx, organization.OnboardCommand{Code: "s", Name: "S", Status: organization.StatusSuspended})
			lapsed, _ := service.Onboard(ctx, organization.OnboardCommand{Code: "l", Name: "L", SubscriptionExpiresAt: &expired})

			Expect(service.CheckAdmission(ctx, suspended.ID, 0)).To(MatchError(apperrors.ErrTenantUnavailable))
			Expect(service.CheckAdmission(ctx, lapsed.ID, 0)).To(MatchError(apperrors.ErrTenantUnavailable))
			Expect(service.CheckAdmission(ctx, uuid.New(), 0)).To(MatchError(apperrors.ErrOrganizationNotFound))
		})
	})
})

var _ = Describe("Organization", func() {
	It("treats a missing expiry as a valid subscription", func() {
		now := time.Now()
		o := &organization.Organization{Status: organization.StatusActive}
		Expect(o.IsActive()).To(BeTrue())
		Expect(o.IsSubscriptionValid(now)).To(BeTrue())

		past := now.Add(-time.Minute)
		o.SubscriptionExpiresAt = &past
		Expect(o.IsSubscriptionValid(now)).To(BeFalse())
		Expect(o.AcceptsUsers(now)).To(BeFalse())
	})
})
