package internal_test

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/identity-access/internal"
)

var _ = Describe("AppError", func() {
	It("matches sentinels through copies and wrapping", func() {
		err := fmt.Errorf("login: %w", internal.ErrInvalidToken.WithCause(stderrors.New("expired")))
		Expect(stderrors.Is(err, internal.ErrInvalidToken)).To(BeTrue())
		Expect(stderrors.Is(err, internal.ErrInvalidCredentials)).To(BeFalse())
		Expect(internal.ErrInvalidToken.Cause).To(BeNil())
	})

	It("treats duplicate username and email as a duplicate identity", func() {
		Expect(stderrors.Is(internal.ErrDuplicateUsername, internal.ErrDuplicateIdentity)).To(BeTrue())
		Expect(stderrors.Is(internal.ErrDuplicateEmail, internal.ErrDuplicateIdentity)).To(BeTrue())
		Expect(stderrors.Is(internal.ErrDuplicateRole, internal.ErrDuplicateIdentity)).To(BeFalse())
	})

	It("wraps foreign errors as repository failures", func() {
		cause := stderrors.New("connection reset")
		err := internal.AsRepositoryError("failed to load user", cause)
		Expect(internal.IsType(err, internal.ErrorTypeRepository)).To(BeTrue())
		Expect(stderrors.Is(err, cause)).To(BeTrue())

		Expect(internal.AsRepositoryError("ignored", internal.ErrUserNotFound)).To(BeIdenticalTo(internal.ErrUserNotFound))
		Expect(internal.AsRepositoryError("ignored", nil)).To(BeNil())
	})

	It("renders the HTTP error envelope without the cause", func() {
		status, body := internal.ErrTooManyRequests.WithCause(stderrors.New("secret detail")).ToHTTPResponse()
		Expect(status).To(Equal(http.StatusTooManyRequests))

		raw, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).To(ContainSubstring(`"code":"TOO_MANY_REQUESTS"`))
		Expect(string(raw)).NotTo(ContainSubstring("secret detail"))
	})
})
