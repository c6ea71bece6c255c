// Package webhook forwards identity events to an external HTTP endpoint
// through a bounded worker pool.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/frahmantamala/identity-access/internal/core/events"
	"github.com/frahmantamala/identity-access/internal/obs"
)

const (
	HeaderEventType = "X-Identity-Event"
	HeaderEventID   = "X-Identity-Event-ID"
	HeaderSignature = "X-Identity-Signature"
)

var (
	ErrQueueFull = errors.New("webhook queue full")
	ErrDraining  = errors.New("webhook forwarder is draining")
)

// Delivery is the JSON body posted for every event.
type Delivery struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

type Worker struct {
	ID         int
	WorkerPool chan chan Delivery
	JobChannel chan Delivery
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan Delivery, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan Delivery),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, process func(Delivery)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				return
			}

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("worker delivering event", "worker_id", w.ID, "event_id", job.ID)
				process(job)
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

type Config struct {
	URL         string
	Secret      string
	Timeout     time.Duration
	MaxAttempts int
	BaseBackoff time.Duration
	MaxWorkers  int
	QueueSize   int
}

type Forwarder struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger

	jobQueue   chan Delivery
	workerPool chan chan Delivery
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once

	mu       sync.Mutex
	pending  int
	draining bool
	idle     chan struct{}
}

func NewForwarder(cfg Config, logger *slog.Logger) *Forwarder {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 200 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	f := &Forwarder{
		cfg:        cfg,
		client:     &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		jobQueue:   make(chan Delivery, cfg.QueueSize),
		workerPool: make(chan chan Delivery, cfg.MaxWorkers),
		ctx:        ctx,
		cancel:     cancel,
	}
	f.start()
	return f
}

func (f *Forwarder) start() {
	f.once.Do(func() {
		for i := 0; i < f.cfg.MaxWorkers; i++ {
			NewWorker(i, f.workerPool, f.logger).Start(f.ctx, &f.wg, f.deliver)
		}
		f.wg.Add(1)
		go f.dispatch()

		f.logger.Info("webhook worker pool started",
			"max_workers", f.cfg.MaxWorkers,
			"queue_size", cap(f.jobQueue))
	})
}

func (f *Forwarder) dispatch() {
	defer f.wg.Done()
	for {
		select {
		case job := <-f.jobQueue:
			select {
			case jobChannel := <-f.workerPool:
				select {
				case jobChannel <- job:
				case <-f.ctx.Done():
					f.release()
					return
				}
			case <-f.ctx.Done():
				f.release()
				return
			}
		case <-f.ctx.Done():
			return
		}
	}
}

// Register subscribes the forwarder to every identity event type.
func (f *Forwarder) Register(bus *events.EventBus) {
	for _, eventType := range events.AllIdentityEventTypes {
		bus.Subscribe(eventType, f.Handle)
	}
}

// Handle enqueues the event. A full queue drops it rather than blocking the bus.
func (f *Forwarder) Handle(_ context.Context, event events.Event) error {
	job := Delivery{
		ID:         event.EventID(),
		Type:       event.EventType(),
		OccurredAt: event.OccurredAt(),
		Payload:    event.Payload(),
	}

	if !f.acquire() {
		obs.WebhookDeliveries.WithLabelValues("dropped").Inc()
		f.logger.Warn("webhook forwarder draining, dropping event",
			"event_id", job.ID,
			"event_type", job.Type)
		return ErrDraining
	}
	select {
	case f.jobQueue <- job:
		return nil
	default:
		f.release()
		obs.WebhookDeliveries.WithLabelValues("dropped").Inc()
		f.logger.Warn("webhook queue full, dropping event",
			"event_id", job.ID,
			"event_type", job.Type,
			"queue_capacity", cap(f.jobQueue))
		return ErrQueueFull
	}
}

// acquire counts one more in-flight delivery unless draining has begun.
func (f *Forwarder) acquire() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.draining {
		return false
	}
	f.pending++
	return true
}

func (f *Forwarder) release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending--
	if f.pending == 0 && f.idle != nil {
		close(f.idle)
		f.idle = nil
	}
}

// Drain stops accepting events and waits until every accepted delivery
// finished or ctx is done.
func (f *Forwarder) Drain(ctx context.Context) error {
	f.mu.Lock()
	f.draining = true
	if f.pending == 0 {
		f.mu.Unlock()
		return nil
	}
	if f.idle == nil {
		f.idle = make(chan struct{})
	}
	idle := f.idle
	f.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Forwarder) Shutdown() {
	f.logger.Info("shutting down webhook forwarder")
	f.cancel()
	f.wg.Wait()
	f.logger.Info("webhook forwarder shutdown complete")
}

func (f *Forwarder) deliver(job Delivery) {
	defer f.release()

	body, err := json.Marshal(job)
	if err != nil {
		obs.WebhookDeliveries.WithLabelValues("failed").Inc()
		f.logger.Error("failed to marshal webhook delivery", "event_id", job.ID, "error", err)
		return
	}

	backoff := retry.WithMaxRetries(uint64(f.cfg.MaxAttempts-1), retry.NewExponential(f.cfg.BaseBackoff))
	attempt := 0
	err = retry.Do(f.ctx, backoff, func(ctx context.Context) error {
		attempt++
		return f.post(ctx, job, body)
	})
	if err != nil {
		obs.WebhookDeliveries.WithLabelValues("failed").Inc()
		f.logger.Error("webhook delivery failed",
			"event_id", job.ID,
			"event_type", job.Type,
			"attempts", attempt,
			"error", err)
		return
	}

	obs.WebhookDeliveries.WithLabelValues("delivered").Inc()
	f.logger.Debug("webhook delivered", "event_id", job.ID, "attempts", attempt)
}

// post sends one attempt. 5xx and transport errors are retried; 4xx are final.
func (f *Forwarder) post(ctx context.Context, job Delivery, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEventType, job.Type)
	req.Header.Set(HeaderEventID, job.ID)
	if f.cfg.Secret != "" {
		req.Header.Set(HeaderSignature, Sign(f.cfg.Secret, body))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return retry.RetryableError(fmt.Errorf("webhook request failed: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return retry.RetryableError(fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode))
	default:
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}
}

// Sign returns the hex HMAC-SHA256 of body, prefixed with "sha256=".
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
