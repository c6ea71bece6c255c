package webhook_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/frahmantamala/identity-access/internal/core/events"
	"github.com/frahmantamala/identity-access/internal/obs"
	"github.com/frahmantamala/identity-access/internal/webhook"
	"github.com/frahmantamala/identity-access/pkg/logger"
)

func TestWebhook(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Webhook Suite")
}

type received struct {
	delivery  webhook.Delivery
	signature string
	eventType string
	body      []byte
}

var _ = Describe("Forwarder", func() {
	var (
		mu        sync.Mutex
		got       []received
		calls     atomic.Int32
		status    func(call int32) int
		server    *httptest.Server
		forwarder *webhook.Forwarder
		bus       *events.EventBus
		publisher *events.IdentityPublisher
	)

	BeforeEach(func() {
		got = nil
		calls.Store(0)
		status = func(int32) int { return http.StatusOK }

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := calls.Add(1)
			body, _ := io.ReadAll(r.Body)
			code := status(n)
			if code == http.StatusOK {
				var d webhook.Delivery
				_ = json.Unmarshal(body, &d)
				mu.Lock()
				got = append(got, received{
					delivery:  d,
					signature: r.Header.Get(webhook.HeaderSignature),
					eventType: r.Header.Get(webhook.HeaderEventType),
					body:      body,
				})
				mu.Unlock()
			}
			w.WriteHeader(code)
		}))
		DeferCleanup(server.Close)

		log := logger.Discard()
		forwarder = webhook.NewForwarder(webhook.Config{
			URL:         server.URL,
			Secret:      "hook-secret",
			MaxAttempts: 3,
			BaseBackoff: 5 * time.Millisecond,
			MaxWorkers:  2,
		}, log)
		DeferCleanup(forwarder.Shutdown)

		bus = events.NewEventBus(log)
		forwarder.Register(bus)
		publisher = events.NewIdentityPublisher(bus, log)
	})

	flush := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		Expect(bus.Wait(ctx)).To(Succeed())
		Expect(forwarder.Drain(ctx)).To(Succeed())
	}

	It("posts signed identity events", func() {
		Expect(publisher.PublishUserCreated(context.Background(), "u-1", "t-1", "alice")).To(Succeed())
		flush()

		mu.Lock()
		defer mu.Unlock()
		Expect(got).To(HaveLen(1))
		Expect(got[0].delivery.Type).To(Equal(events.EventTypeUserCreated))
		Expect(got[0].eventType).To(Equal(events.EventTypeUserCreated))
		Expect(got[0].delivery.ID).NotTo(BeEmpty())
		Expect(got[0].signature).To(Equal(webhook.Sign("hook-secret", got[0].body)))
	})

	It("retries server errors", func() {
		status = func(n int32) int {
			if n < 3 {
				return http.StatusBadGateway
			}
			return http.StatusOK
		}
		before := testutil.ToFloat64(obs.WebhookDeliveries.WithLabelValues("delivered"))

		Expect(publisher.PublishPasswordChanged(context.Background(), "u-1", "t-1")).To(Succeed())
		flush()

		Expect(calls.Load()).To(Equal(int32(3)))
		Expect(testutil.ToFloat64(obs.WebhookDeliveries.WithLabelValues("delivered")) - before).To(Equal(1.0))
	})

	It("gives up on client errors without retrying", func() {
		status = func(int32) int { return http.StatusBadRequest }
		before := testutil.ToFloat64(obs.WebhookDeliveries.WithLabelValues("failed"))

		Expect(publisher.PublishUserAuthenticated(context.Background(), "u-1", "t-1", time.Now())).To(Succeed())
		flush()

		Expect(calls.Load()).To(Equal(int32(1)))
		Expect(testutil.ToFloat64(obs.WebhookDeliveries.WithLabelValues("failed")) - before).To(Equal(1.0))
	})

	Describe("draining", func() {
		It("refuses events once draining has begun", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			Expect(forwarder.Drain(ctx)).To(Succeed())

			err := forwarder.Handle(context.Background(), events.NewUserCreatedEvent("u-1", "t-1", "alice"))
			Expect(err).To(MatchError(webhook.ErrDraining))
			Consistently(calls.Load, 50*time.Millisecond).Should(BeZero())
		})

		It("delivers every accepted event when handling races with a drain", func() {
			var (
				accepted atomic.Int32
				wg       sync.WaitGroup
			)
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if forwarder.Handle(context.Background(), events.NewPasswordChangedEvent("u-1", "t-1")) == nil {
						accepted.Add(1)
					}
				}()
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			Expect(forwarder.Drain(ctx)).To(Succeed())
			wg.Wait()

			Expect(calls.Load()).To(Equal(accepted.Load()))
		})
	})
})
