package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	errors "github.com/frahmantamala/identity-access/internal"
)

func TestMiddleware(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Middleware Suite")
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

var _ = Describe("RateLimiter", func() {
	var (
		rl  *RateLimiter
		now time.Time
	)

	BeforeEach(func() {
		now = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		rl = NewRateLimiter(1, 2)
		rl.now = func() time.Time { return now }
	})

	It("allows a burst per client and refills over time", func() {
		Expect(rl.Allow("a")).To(BeTrue())
		Expect(rl.Allow("a")).To(BeTrue())
		Expect(rl.Allow("a")).To(BeFalse())
		Expect(rl.Allow("b")).To(BeTrue())

		now = now.Add(time.Second)
		Expect(rl.Allow("a")).To(BeTrue())
	})

	It("forgets idle clients", func() {
		rl.Allow("a")
		now = now.Add(limiterIdleTTL + time.Minute)
		rl.Allow("b")
		Expect(rl.clients).To(HaveLen(1))
		Expect(rl.clients).To(HaveKey("b"))
	})

	It("answers 429 with the error body", func() {
		h := rl.Middleware(okHandler)
		codes := []int{}
		for i := 0; i < 3; i++ {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
			req.RemoteAddr = "10.0.0.1:5000"
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			codes = append(codes, w.Code)
			if w.Code == http.StatusTooManyRequests {
				Expect(w.Header().Get("Retry-After")).To(Equal("2"))
				var body struct {
					Error map[string]interface{} `json:"error"`
				}
				Expect(json.NewDecoder(w.Body).Decode(&body)).To(Succeed())
				Expect(body.Error["code"]).To(Equal(string(errors.ErrCodeTooManyRequests)))
			}
		}
		Expect(codes).To(Equal([]int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}))
	})
})

var _ = Describe("Recovery", func() {
	It("hides the panic behind a 500", func() {
		h := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("database password is hunter2")
		}))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(w.Body.String()).To(ContainSubstring(string(errors.ErrCodeInternal)))
		Expect(w.Body.String()).NotTo(ContainSubstring("hunter2"))
	})
})

var _ = Describe("RequestID", func() {
	It("keeps a valid incoming trace id and replaces junk", func() {
		incoming := uuid.NewString()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(TraceHeader, incoming)
		w := httptest.NewRecorder()
		RequestID(okHandler).ServeHTTP(w, req)
		Expect(w.Header().Get(TraceHeader)).To(Equal(incoming))

		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(TraceHeader, "<script>")
		w = httptest.NewRecorder()
		RequestID(okHandler).ServeHTTP(w, req)
		_, err := uuid.Parse(w.Header().Get(TraceHeader))
		Expect(err).NotTo(HaveOccurred())
	})
})

var _ = Describe("CORS", func() {
	It("answers preflight for allowed origins only", func() {
		h := CORS("https://app.example.com")(okHandler)

		req := httptest.NewRequest(http.MethodOptions, "/api/v1/users", nil)
		req.Header.Set("Origin", "https://app.example.com")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		Expect(w.Code).To(Equal(http.StatusNoContent))
		Expect(w.Header().Get("Access-Control-Allow-Origin")).To(Equal("https://app.example.com"))

		req = httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		w = httptest.NewRecorder()
		h.ServeHTTP(w, req)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
	})

	It("never allows credentials for wildcard origins", func() {
		h := CORS("*, https://app.example.com")(okHandler)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		Expect(w.Header().Get("Access-Control-Allow-Origin")).To(Equal("*"))
		Expect(w.Header().Get("Access-Control-Allow-Credentials")).To(BeEmpty())

		req = httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
		req.Header.Set("Origin", "https://app.example.com")
		w = httptest.NewRecorder()
		h.ServeHTTP(w, req)
		Expect(w.Header().Get("Access-Control-Allow-Origin")).To(Equal("https://app.example.com"))
		Expect(w.Header().Get("Access-Control-Allow-Credentials")).To(Equal("true"))
	})
})

var _ = Describe("log filtering", func() {
	It("masks credentials in JSON bodies and headers", func() {
		body := filterSensitiveBody([]byte(`{"username":"alice","password":"p1","nested":{"refresh_token":"x"}}`))
		Expect(body).To(ContainSubstring(`"username":"alice"`))
		Expect(body).NotTo(ContainSubstring("p1"))
		Expect(strings.Count(body, "[FILTERED]")).To(Equal(2))

		headers := filterSensitiveHeaders(http.Header{"Authorization": {"Bearer abc"}, "Accept": {"json"}})
		Expect(headers["Authorization"]).To(Equal("[FILTERED]"))
		Expect(headers["Accept"]).To(Equal("json"))
	})
})
