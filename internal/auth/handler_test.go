package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/google/uuid"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/frahmantamala/identity-access/internal"
	"github.com/frahmantamala/identity-access/internal/auth"
	"github.com/frahmantamala/identity-access/internal/authz"
	"github.com/frahmantamala/identity-access/internal/identity"
	"github.com/frahmantamala/identity-access/internal/transport"
	"github.com/frahmantamala/identity-access/pkg/logger"
)

type errorBody struct {
	Error struct {
		Type string `json:"type"`
		Code string `json:"code"`
	} `json:"error"`
}

var _ = ginkgo.Describe("Auth Handler", func() {
	var (
		f       *fixture
		handler *auth.Handler
		rbac    *auth.RBACAuthorization
		tenant  uuid.UUID
	)

	post := func(h http.HandlerFunc, body string, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		h(w, req)
		return w
	}

	login := func(username, password string) auth.AuthResponse {
		w := post(handler.Login, `{"username":"`+username+`","password":"`+password+`"}`, "")
		gomega.Expect(w.Code).To(gomega.Equal(http.StatusOK))
		var res auth.AuthResponse
		gomega.Expect(json.NewDecoder(w.Body).Decode(&res)).To(gomega.Succeed())
		return res
	}

	ginkgo.BeforeEach(func() {
		f = newFixture()
		tenant = uuid.New()
		handler = auth.NewHandler(transport.NewBaseHandler(logger.Discard()), f.service, f.identity)
		rbac = auth.NewRBACAuthorization(logger.Discard())

		ctx := context.Background()
		read, err := f.users.SavePermission(ctx, &identity.Permission{ID: uuid.New(), Name: authz.PermUserRead, Resource: "user", Action: "read"})
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		reader, err := f.users.SaveRole(ctx, &identity.Role{ID: uuid.New(), Name: "reader", PermissionIDs: []uuid.UUID{read.ID}})
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		f.createUser("alice", "alice@x.com", "p1", tenant, reader.ID)
		f.createUser("bob", "bob@x.com", "p1", tenant)
	})

	ginkgo.It("logs in and returns a bearer token pair", func() {
		res := login("alice", "p1")
		gomega.Expect(res.TokenType).To(gomega.Equal("Bearer"))
		gomega.Expect(res.AccessToken).ToNot(gomega.BeEmpty())
		gomega.Expect(res.RefreshToken).ToNot(gomega.BeEmpty())
		gomega.Expect(res.ExpiresIn).To(gomega.Equal(int64(900)))
		gomega.Expect(res.User.Username).To(gomega.Equal("alice"))
	})

	ginkgo.It("answers 401 for bad credentials and 400 for malformed bodies", func() {
		w := post(handler.Login, `{"username":"alice","password":"nope"}`, "")
		gomega.Expect(w.Code).To(gomega.Equal(http.StatusUnauthorized))
		var body errorBody
		gomega.Expect(json.NewDecoder(w.Body).Decode(&body)).To(gomega.Succeed())
		gomega.Expect(body.Error.Code).To(gomega.Equal(string(internal.ErrCodeInvalidCredentials)))

		w = post(handler.Login, `{"username":"alice","password":"p1","extra":true}`, "")
		gomega.Expect(w.Code).To(gomega.Equal(http.StatusBadRequest))
	})

	ginkgo.It("refreshes tokens", func() {
		res := login("alice", "p1")
		w := post(handler.RefreshToken, `{"refresh_token":"`+res.RefreshToken+`"}`, "")
		gomega.Expect(w.Code).To(gomega.Equal(http.StatusOK))

		w = post(handler.RefreshToken, `{}`, "")
		gomega.Expect(w.Code).To(gomega.Equal(http.StatusBadRequest))
	})

	ginkgo.Describe("AuthMiddleware and RBAC", func() {
		var reached *identity.User

		protected := func(permission string) http.Handler {
			reached = nil
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reached, _ = identity.UserFromContext(r.Context())
				gomega.Expect(internal.UserIDFromContext(r.Context())).To(gomega.Equal(reached.ID.String()))
				w.WriteHeader(http.StatusOK)
			})
			return handler.AuthMiddleware(rbac.Middleware(permission)(next))
		}

		call := func(h http.Handler, token string) int {
			req := httptest.NewRequest(http.MethodGet, "/users", nil)
			if token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			return w.Code
		}

		ginkgo.It("lets a principal holding the permission through", func() {
			token := login("alice", "p1").AccessToken
			gomega.Expect(call(protected(authz.PermUserRead), token)).To(gomega.Equal(http.StatusOK))
			gomega.Expect(reached.Username).To(gomega.Equal("alice"))
		})

		ginkgo.It("forbids principals without the permission", func() {
			gomega.Expect(call(protected(authz.PermUserRead), login("bob", "p1").AccessToken)).To(gomega.Equal(http.StatusForbidden))
			gomega.Expect(call(protected(authz.PermUserWrite), login("alice", "p1").AccessToken)).To(gomega.Equal(http.StatusForbidden))
			gomega.Expect(reached).To(gomega.BeNil())
		})

		ginkgo.It("requires a valid bearer token", func() {
			gomega.Expect(call(protected(authz.PermUserRead), "")).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(call(protected(authz.PermUserRead), "garbage")).To(gomega.Equal(http.StatusUnauthorized))
		})

		ginkgo.It("stops accepting the token after logout", func() {
			token := login("alice", "p1").AccessToken
			logout := handler.AuthMiddleware(http.HandlerFunc(handler.Logout))

			req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()
			logout.ServeHTTP(w, req)
			gomega.Expect(w.Code).To(gomega.Equal(http.StatusNoContent))

			gomega.Expect(call(protected(authz.PermUserRead), token)).To(gomega.Equal(http.StatusUnauthorized))
		})
	})

	ginkgo.It("answers password reset requests identically for unknown emails", func() {
		known := post(handler.ResetPassword, `{"email":"alice@x.com"}`, "")
		unknown := post(handler.ResetPassword, `{"email":"ghost@x.com"}`, "")
		gomega.Expect(known.Code).To(gomega.Equal(http.StatusAccepted))
		gomega.Expect(unknown.Code).To(gomega.Equal(http.StatusAccepted))

		var res auth.ResetPasswordResponse
		gomega.Expect(json.NewDecoder(known.Body).Decode(&res)).To(gomega.Succeed())
		w := post(handler.ConfirmPasswordReset, `{"token":"`+res.ResetToken+`","new_password":"p9"}`, "")
		gomega.Expect(w.Code).To(gomega.Equal(http.StatusNoContent))
		login("alice", "p9")
	})
})
