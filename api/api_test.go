package api_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/identity-access/api"
)

func TestAPI(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "API Document Suite")
}

var _ = Describe("OpenAPI document", func() {
	It("is a valid document", func() {
		doc, err := api.Load(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(doc.Info.Title).To(Equal("Identity & Access API"))
	})

	It("documents the authentication and management routes", func() {
		doc, err := api.Load(context.Background())
		Expect(err).NotTo(HaveOccurred())
		for _, path := range []string{
			"/auth/login", "/auth/refresh", "/auth/logout", "/auth/password",
			"/auth/password/reset", "/auth/password/reset/confirm",
			"/users", "/users/{id}", "/roles", "/permissions",
			"/organizations", "/organizations/current",
		} {
			Expect(doc.Paths.Value(path)).NotTo(BeNil(), path)
		}
	})
})
