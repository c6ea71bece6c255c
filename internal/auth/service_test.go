package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	apperrors "github.com/frahmantamala/identity-access/internal"
	"github.com/frahmantamala/identity-access/internal/auth"
	authMemory "github.com/frahmantamala/identity-access/internal/auth/memory"
	"github.com/frahmantamala/identity-access/internal/identity"
	identityMemory "github.com/frahmantamala/identity-access/internal/identity/memory"
	"github.com/frahmantamala/identity-access/internal/obs"
	"github.com/frahmantamala/identity-access/pkg/logger"
)

func TestAuth(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Auth Module Suite")
}

const (
	accessSecret  = "test-access-secret-0123456789abcdef"
	refreshSecret = "test-refresh-secret-0123456789abcdef"
	issuer        = "identity-access-test"
)

type plainEncoder struct{}

func (plainEncoder) Encode(raw string) (string, error) { return "hashed:" + raw, nil }
func (plainEncoder) Matches(raw, hash string) bool     { return hash == "hashed:"+raw }

// recordingPublisher satisfies both the identity and the auth publisher ports.
type recordingPublisher struct {
	mu              sync.Mutex
	authenticated   []string
	passwordChanged []string
}

func (p *recordingPublisher) PublishUserCreated(context.Context, string, string, string) error {
	return nil
}

func (p *recordingPublisher) PublishUserUpdated(context.Context, string, string, map[string]interface{}) error {
	return nil
}

func (p *recordingPublisher) PublishUserAuthenticated(_ context.Context, userID, _ string, _ time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authenticated = append(p.authenticated, userID)
	return nil
}

func (p *recordingPublisher) PublishPasswordChanged(_ context.Context, userID, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.passwordChanged = append(p.passwordChanged, userID)
	return nil
}

// fixture wires the identity and auth services over in-memory stores.
type fixture struct {
	users     *identityMemory.Store
	identity  *identity.Service
	service   *auth.Service
	issuer    *auth.JWTTokenIssuer
	publisher *recordingPublisher
	now       time.Time
}

func newFixture() *fixture {
	f := &fixture{
		users:     identityMemory.NewStore(),
		issuer:    auth.NewJWTTokenIssuer(accessSecret, refreshSecret, 15*time.Minute, 24*time.Hour, issuer),
		publisher: &recordingPublisher{},
		now:       time.Now(),
	}
	clock := func() time.Time { return f.now }
	sessions := authMemory.NewStore()
	f.identity = identity.NewService(f.users, f.users, plainEncoder{}, f.publisher, logger.Discard())
	f.service = auth.NewService(f.users, plainEncoder{}, f.issuer, sessions, sessions, f.publisher, logger.Discard(),
		auth.WithClock(clock), auth.WithResetTTL(30*time.Minute))
	return f
}

func (f *fixture) createUser(username, email, password string, tenant uuid.UUID, roleIDs ...uuid.UUID) *identity.User {
	u, err := f.identity.CreateUser(context.Background(), identity.CreateUserCommand{
		Username: username,
		Email:    email,
		Password: password,
		TenantID: tenant,
		RoleIDs:  roleIDs,
	})
	gomega.Expect(err).ToNot(gomega.HaveOccurred())
	return u
}

var _ = ginkgo.Describe("AuthService", func() {
	var (
		ctx   context.Context
		f     *fixture
		t1    uuid.UUID
		alice *identity.User
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		f = newFixture()
		t1 = uuid.New()
		alice = f.createUser("alice", "alice@x.com", "p1", t1)
	})

	ginkgo.Describe("Authenticate", func() {
		ginkgo.It("issues tokens carrying the user id and no roles", func() {
			// When
			res, err := f.service.Authenticate(ctx, auth.LoginCommand{Username: "alice", Password: "p1"})

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(res.ExpiresIn).To(gomega.Equal(int64(900)))
			gomega.Expect(res.User.ID).To(gomega.Equal(alice.ID))

			claims, err := f.issuer.ParseAccessToken(res.AccessToken)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(claims.UserID).To(gomega.Equal(alice.ID.String()))
			gomega.Expect(claims.Username).To(gomega.Equal("alice"))
			gomega.Expect(claims.TenantID).To(gomega.Equal(t1.String()))
			gomega.Expect(claims.Roles).To(gomega.BeEmpty())
			gomega.Expect(claims.SessionID).ToNot(gomega.BeEmpty())
			gomega.Expect(f.publisher.authenticated).To(gomega.Equal([]string{alice.ID.String()}))
		})

		ginkgo.It("fails uniformly for a wrong password and an unknown username", func() {
			// When
			_, wrongPassword := f.service.Authenticate(ctx, auth.LoginCommand{Username: "alice", Password: "wrong"})
			_, unknownUser := f.service.Authenticate(ctx, auth.LoginCommand{Username: "nobody", Password: "p1"})

			// Then
			gomega.Expect(wrongPassword).To(gomega.MatchError(apperrors.ErrInvalidCredentials))
			gomega.Expect(unknownUser).To(gomega.MatchError(apperrors.ErrInvalidCredentials))
			gomega.Expect(wrongPassword.Error()).To(gomega.Equal(unknownUser.Error()))
			gomega.Expect(f.publisher.authenticated).To(gomega.BeEmpty())
		})

		ginkgo.It("rejects inactive users and foreign tenants", func() {
			other := uuid.New()
			_, err := f.service.Authenticate(ctx, auth.LoginCommand{Username: "alice", Password: "p1", TenantID: &other})
			gomega.Expect(err).To(gomega.MatchError(apperrors.ErrInvalidCredentials))

			_, err = f.service.Authenticate(ctx, auth.LoginCommand{Username: "alice", Password: "p1", TenantID: &t1})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			_, err = f.identity.DeactivateUser(ctx, alice.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			_, err = f.service.Authenticate(ctx, auth.LoginCommand{Username: "alice", Password: "p1"})
			gomega.Expect(err).To(gomega.MatchError(apperrors.ErrInvalidCredentials))
		})

		ginkgo.It("embeds the current role names", func() {
			role, err := f.users.SaveRole(ctx, &identity.Role{ID: uuid.New(), Name: "auditor"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			f.createUser("bob", "bob@x.com", "secret", t1, role.ID)

			res, err := f.service.Authenticate(ctx, auth.LoginCommand{Username: "bob", Password: "secret"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			roles, err := f.issuer.ExtractRoles(res.AccessToken)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(roles).To(gomega.Equal([]string{"auditor"}))
		})

		ginkgo.It("requires username and password", func() {
			_, err := f.service.Authenticate(ctx, auth.LoginCommand{})
			gomega.Expect(apperrors.IsType(err, apperrors.ErrorTypeValidation)).To(gomega.BeTrue())
		})

		ginkgo.It("counts outcomes", func() {
			failures := obs.AuthAttempts.WithLabelValues("invalid_credentials")
			successes := obs.AuthAttempts.WithLabelValues("success")
			failedBefore := testutil.ToFloat64(failures)
			succeededBefore := testutil.ToFloat64(successes)

			_, _ = f.service.Authenticate(ctx, auth.LoginCommand{Username: "alice", Password: "wrong"})
			_, _ = f.service.Authenticate(ctx, auth.LoginCommand{Username: "alice", Password: "p1"})

			gomega.Expect(testutil.ToFloat64(failures) - failedBefore).To(gomega.Equal(1.0))
			gomega.Expect(testutil.ToFloat64(successes) - succeededBefore).To(gomega.Equal(1.0))
		})
	})

	ginkgo.Describe("RefreshToken", func() {
		var first *auth.AuthenticationResult

		ginkgo.BeforeEach(func() {
			var err error
			first, err = f.service.Authenticate(ctx, auth.LoginCommand{Username: "alice", Password: "p1"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
		})

		ginkgo.It("returns a new token pair", func() {
			// When
			next, err := f.service.RefreshToken(ctx, first.RefreshToken)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(next.AccessToken).ToNot(gomega.Equal(first.AccessToken))
			gomega.Expect(next.RefreshToken).ToNot(gomega.Equal(first.RefreshToken))
			gomega.Expect(f.issuer.ExtractUserID(next.AccessToken)).To(gomega.Equal(alice.ID))
		})

		ginkgo.It("treats a replayed refresh token as theft and ends the session", func() {
			next, err := f.service.RefreshToken(ctx, first.RefreshToken)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			_, err = f.service.RefreshToken(ctx, first.RefreshToken)
			gomega.Expect(err).To(gomega.MatchError(apperrors.ErrInvalidToken))

			_, err = f.service.RefreshToken(ctx, next.RefreshToken)
			gomega.Expect(err).To(gomega.MatchError(apperrors.ErrInvalidToken))
			_, err = f.service.ValidateAccessToken(ctx, next.AccessToken)
			gomega.Expect(err).To(gomega.MatchError(apperrors.ErrInvalidToken))
		})

		ginkgo.It("rejects access tokens and garbage", func() {
			_, err := f.service.RefreshToken(ctx, first.AccessToken)
			gomega.Expect(err).To(gomega.MatchError(apperrors.ErrInvalidToken))

			_, err = f.service.RefreshToken(ctx, "not-a-token")
			gomega.Expect(err).To(gomega.MatchError(apperrors.ErrInvalidToken))
		})

		ginkgo.It("refuses once the session has expired", func() {
			f.now = f.now.Add(25 * time.Hour)
			_, err := f.service.RefreshToken(ctx, first.RefreshToken)
			gomega.Expect(err).To(gomega.MatchError(apperrors.ErrInvalidToken))
		})
	})

	ginkgo.Describe("Logout", func() {
		ginkgo.It("revokes every session of the user", func() {
			a, err := f.service.Authenticate(ctx, auth.LoginCommand{Username: "alice", Password: "p1"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			b, err := f.service.Authenticate(ctx, auth.LoginCommand{Username: "alice", Password: "p1"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			_, err = f.service.ValidateAccessToken(ctx, a.AccessToken)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			gomega.Expect(f.service.Logout(ctx, alice.ID)).To(gomega.Succeed())

			for _, res := range []*auth.AuthenticationResult{a, b} {
				_, err = f.service.ValidateAccessToken(ctx, res.AccessToken)
				gomega.Expect(err).To(gomega.MatchError(apperrors.ErrInvalidToken))
				_, err = f.service.RefreshToken(ctx, res.RefreshToken)
				gomega.Expect(err).To(gomega.MatchError(apperrors.ErrInvalidToken))
			}
		})

		ginkgo.It("succeeds when there is nothing to revoke", func() {
			gomega.Expect(f.service.Logout(ctx, uuid.New())).To(gomega.Succeed())
		})
	})

	ginkgo.Describe("ChangePassword", func() {
		ginkgo.It("requires the current password", func() {
			err := f.service.ChangePassword(ctx, auth.ChangePasswordCommand{UserID: alice.ID, CurrentPassword: "wrong", NewPassword: "p2"})
			gomega.Expect(err).To(gomega.MatchError(apperrors.ErrInvalidCredentials))
			gomega.Expect(f.publisher.passwordChanged).To(gomega.BeEmpty())
		})

		ginkgo.It("replaces the credential and notifies", func() {
			err := f.service.ChangePassword(ctx, auth.ChangePasswordCommand{UserID: alice.ID, CurrentPassword: "p1", NewPassword: "p2"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			_, err = f.service.Authenticate(ctx, auth.LoginCommand{Username: "alice", Password: "p1"})
			gomega.Expect(err).To(gomega.MatchError(apperrors.ErrInvalidCredentials))
			_, err = f.service.Authenticate(ctx, auth.LoginCommand{Username: "alice", Password: "p2"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(f.publisher.passwordChanged).To(gomega.Equal([]string{alice.ID.String()}))
		})

		ginkgo.It("reports unknown users", func() {
			err := f.service.ChangePassword(ctx, auth.ChangePasswordCommand{UserID: uuid.New(), CurrentPassword: "p1", NewPassword: "p2"})
			gomega.Expect(err).To(gomega.MatchError(apperrors.ErrUserNotFound))
		})
	})

	ginkgo.Describe("password reset", func() {
		ginkgo.It("hands out a token even for unknown emails, which never redeems", func() {
			token, err := f.service.ResetPassword(ctx, "ghost@x.com")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(token).To(gomega.HaveLen(64))

			err = f.service.ConfirmPasswordReset(ctx, auth.ConfirmPasswordResetCommand{Token: token, NewPassword: "p2"})
			gomega.Expect(err).To(gomega.MatchError(apperrors.ErrInvalidToken))
		})

		ginkgo.It("redeems once, sets the password and ends open sessions", func() {
			session, err := f.service.Authenticate(ctx, auth.LoginCommand{Username: "alice", Password: "p1"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			token, err := f.service.ResetPassword(ctx, "alice@x.com")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			cmd := auth.ConfirmPasswordResetCommand{Token: token, NewPassword: "p2"}
			gomega.Expect(f.service.ConfirmPasswordReset(ctx, cmd)).To(gomega.Succeed())
			gomega.Expect(f.service.ConfirmPasswordReset(ctx, cmd)).To(gomega.MatchError(apperrors.ErrInvalidToken))

			_, err = f.service.ValidateAccessToken(ctx, session.AccessToken)
			gomega.Expect(err).To(gomega.MatchError(apperrors.ErrInvalidToken))
			_, err = f.service.Authenticate(ctx, auth.LoginCommand{Username: "alice", Password: "p2"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(f.publisher.passwordChanged).To(gomega.Equal([]string{alice.ID.String()}))
		})

		ginkgo.It("expires tokens", func() {
			token, err := f.service.ResetPassword(ctx, "alice@x.com")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			f.now = f.now.Add(31 * time.Minute)
			err = f.service.ConfirmPasswordReset(ctx, auth.ConfirmPasswordResetCommand{Token: token, NewPassword: "p2"})
			gomega.Expect(err).To(gomega.MatchError(apperrors.ErrInvalidToken))
		})

		ginkgo.It("requires an email", func() {
			_, err := f.service.ResetPassword(ctx, " ")
			gomega.Expect(apperrors.IsType(err, apperrors.ErrorTypeValidation)).To(gomega.BeTrue())
		})
	})
})
