package anilist

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ateliersoft/anisync/core"
)

// OperationFunc performs exactly one remote call. The pipeline invokes it
// after spacing and rate-limit waits have been observed; retries happen
// inside the operation so the whole retry sequence keeps its queue slot.
type OperationFunc func(ctx context.Context) (*Envelope, error)

type dispatchResult struct {
	env *Envelope
	err error
}

type pipelineItem struct {
	ctx        context.Context
	id         string
	name       string
	fn         OperationFunc
	done       chan dispatchResult
	enqueuedAt time.Time
}

// Pipeline serializes every remote call process-wide: strictly one
// operation in flight, FIFO order, with a fixed minimum spacing between
// dequeues and a shared rate-limit reset gate. All batches in a process
// share one pipeline, so they stay serialized at the wire.
type Pipeline struct {
	mu          sync.Mutex
	queue       []*pipelineItem
	dispatching bool
	closed      bool

	lastDequeue time.Time
	resetAt     time.Time

	interval   time.Duration
	budget     time.Duration
	reschedule time.Duration

	logger    core.Logger
	telemetry core.Telemetry
}

// NewPipeline creates a pipeline with the given rate-limit configuration.
func NewPipeline(cfg core.RateLimitConfig) *Pipeline {
	budget := cfg.DispatchBudget
	if budget <= 0 {
		budget = 250 * time.Millisecond
	}
	reschedule := cfg.RescheduleDelay
	if reschedule <= 0 {
		reschedule = 10 * time.Millisecond
	}
	return &Pipeline{
		interval:   cfg.Interval(),
		budget:     budget,
		reschedule: reschedule,
		logger:     &core.NoOpLogger{},
		telemetry:  &core.NoOpTelemetry{},
	}
}

var (
	defaultPipeline     *Pipeline
	defaultPipelineOnce sync.Once
)

// DefaultPipeline returns the process-wide pipeline, built lazily with
// default rate limits. Clients that are constructed without an explicit
// pipeline share this one, which is what keeps independent batches in
// the same process serialized against the remote service.
func DefaultPipeline() *Pipeline {
	defaultPipelineOnce.Do(func() {
		defaultPipeline = NewPipeline(core.DefaultConfig().RateLimit)
	})
	return defaultPipeline
}

// SetLogger configures the logger for this pipeline.
func (p *Pipeline) SetLogger(logger core.Logger) {
	if logger == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger = logger
}

// SetTelemetry configures telemetry for this pipeline.
func (p *Pipeline) SetTelemetry(t core.Telemetry) {
	if t == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.telemetry = t
}

// Enqueue posts one operation and blocks until it completes, the context
// is cancelled, or the pipeline is shut down. Operations run in FIFO
// order with exactly one in flight at a time.
func (p *Pipeline) Enqueue(ctx context.Context, name string, fn OperationFunc) (*Envelope, error) {
	if fn == nil {
		return nil, &core.SyncError{
			Op:      "pipeline.Enqueue",
			Kind:    "pipeline",
			Message: "nil operation",
			Err:     core.ErrInvalidConfiguration,
		}
	}

	item := &pipelineItem{
		ctx:        ctx,
		id:         uuid.NewString(),
		name:       name,
		fn:         fn,
		done:       make(chan dispatchResult, 1),
		enqueuedAt: time.Now(),
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, core.ErrPipelineClosed
	}
	p.queue = append(p.queue, item)
	depth := len(p.queue)
	startDispatcher := !p.dispatching
	if startDispatcher {
		p.dispatching = true
	}
	logger, telemetry := p.logger, p.telemetry
	p.mu.Unlock()

	logger.Debug("Pipeline operation enqueued", map[string]interface{}{
		"operation":   "pipeline_enqueue",
		"request_id":  item.id,
		"name":        name,
		"queue_depth": depth,
	})
	telemetry.RecordMetric("anilist.pipeline.queue_depth", float64(depth), map[string]string{
		"operation": name,
	})

	if startDispatcher {
		go p.dispatch()
	}

	select {
	case res := <-item.done:
		return res.env, res.err
	case <-ctx.Done():
		// The dispatcher notices the dead context when the item surfaces
		// and completes it without dispatching; the buffered channel keeps
		// that send from blocking.
		return nil, ctx.Err()
	}
}

// ObserveRetryAfter moves the rate-limit gate forward. The gate is
// monotonic: observations never shorten an existing wait.
func (p *Pipeline) ObserveRetryAfter(d time.Duration) {
	if d <= 0 {
		return
	}
	candidate := time.Now().Add(d)

	p.mu.Lock()
	defer p.mu.Unlock()
	if candidate.After(p.resetAt) {
		p.resetAt = candidate
		p.logger.Warn("Rate limit observed, gating pipeline", map[string]interface{}{
			"operation":   "pipeline_rate_limit",
			"retry_after": d.String(),
			"reset_at":    candidate.Format(time.RFC3339),
		})
	}
}

// QueueLen reports the number of operations waiting to be dispatched.
func (p *Pipeline) QueueLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Shutdown stops accepting new operations and waits for the queue to
// drain. It returns the context's error if draining does not finish
// in time; queued operations keep executing either way.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		p.mu.Lock()
		drained := len(p.queue) == 0 && !p.dispatching
		p.mu.Unlock()
		if drained {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// dispatch drains the queue. It runs as the single dispatcher: the
// dispatching flag stays set across reschedules, so at most one pass is
// active or pending at any moment. Spacing and rate-limit waits are
// realized by rescheduling rather than blocking, and a soft budget per
// pass keeps one long burst from starving newly posted operations.
func (p *Pipeline) dispatch() {
	start := time.Now()
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.dispatching = false
			p.mu.Unlock()
			return
		}

		if time.Since(start) > p.budget {
			reschedule := p.reschedule
			p.mu.Unlock()
			time.AfterFunc(reschedule, p.dispatch)
			return
		}

		now := time.Now()
		var wait time.Duration
		if d := p.resetAt.Sub(now); d > wait {
			wait = d
		}
		if !p.lastDequeue.IsZero() {
			if d := p.lastDequeue.Add(p.interval).Sub(now); d > wait {
				wait = d
			}
		}
		if wait > 0 {
			p.mu.Unlock()
			time.AfterFunc(wait, p.dispatch)
			return
		}

		item := p.queue[0]
		p.queue = p.queue[1:]
		p.lastDequeue = now
		depth := len(p.queue)
		p.mu.Unlock()

		p.execute(item, depth)
	}
}

// execute runs one dequeued operation and delivers its result.
func (p *Pipeline) execute(item *pipelineItem, depth int) {
	p.mu.Lock()
	logger, telemetry := p.logger, p.telemetry
	p.mu.Unlock()

	if err := item.ctx.Err(); err != nil {
		logger.Debug("Pipeline operation cancelled before dispatch", map[string]interface{}{
			"operation":  "pipeline_dispatch",
			"request_id": item.id,
			"name":       item.name,
			"error":      err.Error(),
		})
		item.done <- dispatchResult{err: err}
		return
	}

	ctx, span := telemetry.StartSpan(item.ctx, "anilist.pipeline.dispatch")
	span.SetAttribute("pipeline.operation", item.name)
	span.SetAttribute("pipeline.request_id", item.id)

	started := time.Now()
	env, err := item.fn(ctx)
	elapsed := time.Since(started)

	if err != nil {
		span.RecordError(err)
	}
	span.End()

	telemetry.RecordMetric("anilist.pipeline.dispatch_duration_ms", float64(elapsed.Milliseconds()), map[string]string{
		"operation": item.name,
	})
	logger.Debug("Pipeline operation completed", map[string]interface{}{
		"operation":   "pipeline_dispatch",
		"request_id":  item.id,
		"name":        item.name,
		"queue_depth": depth,
		"queued_ms":   started.Sub(item.enqueuedAt).Milliseconds(),
		"duration_ms": elapsed.Milliseconds(),
		"success":     err == nil,
	})

	item.done <- dispatchResult{env: env, err: err}
}
