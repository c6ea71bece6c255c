package cmd

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/identity-access/internal/core/events"
)

var _ = Describe("event publish", func() {
	It("publishes every identity event type", func() {
		for _, t := range events.AllIdentityEventTypes {
			Expect(publishSampleEvent(context.Background(), t)).To(Succeed(), t)
		}
	})

	It("rejects unknown event types", func() {
		err := publishSampleEvent(context.Background(), "user.archived")
		Expect(err).To(MatchError(ContainSubstring("unknown event type")))
	})
})
