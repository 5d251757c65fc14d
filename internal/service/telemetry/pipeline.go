// Package telemetry delivers structured events to an analytics store from a
// single background worker. Delivery is best effort: a full queue drops the
// event, a failed write drops the event, and shutdown waits only a bounded
// time for the queue to drain.
package telemetry

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thotranphuc276/person-detection/internal/logger"
)

// Store is the destination of delivered events.
type Store interface {
	// Index writes one document to index without waiting for it to be searchable.
	Index(ctx context.Context, index string, document []byte) error
	// PutTemplate creates or replaces an index template.
	PutTemplate(ctx context.Context, name string, body []byte) error
}

// Sink accepts events from request handlers.
type Sink interface {
	Submit(event Event)
}

type Options struct {
	QueueCapacity  int
	EnqueueTimeout time.Duration
	ShutdownGrace  time.Duration
	WriteTimeout   time.Duration
	IndexPrefix    string
}

func DefaultOptions() Options {
	return Options{
		QueueCapacity:  1000,
		EnqueueTimeout: 100 * time.Millisecond,
		ShutdownGrace:  5 * time.Second,
		WriteTimeout:   10 * time.Second,
		IndexPrefix:    DefaultIndexPrefix,
	}
}

// Stats is a snapshot of the pipeline counters.
type Stats struct {
	Enabled   bool   `json:"enabled"`
	Submitted uint64 `json:"submitted"`
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
	Failed    uint64 `json:"failed"`
	Queued    int    `json:"queued"`
	Capacity  int    `json:"capacity"`
}

// Pipeline owns the bounded queue, the worker goroutine and the store.
type Pipeline struct {
	store  Store
	opts   Options
	logger *logger.Logger
	now    func() time.Time

	queue   chan message
	running atomic.Bool
	abandon chan struct{}
	done    chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once

	submitted atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

// New builds a pipeline writing to store. A nil store yields a disabled
// pipeline on which every call is a no-op.
func New(store Store, opts Options, log *logger.Logger) *Pipeline {
	defaults := DefaultOptions()
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = defaults.QueueCapacity
	}
	if opts.EnqueueTimeout <= 0 {
		opts.EnqueueTimeout = defaults.EnqueueTimeout
	}
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = defaults.ShutdownGrace
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaults.WriteTimeout
	}
	if opts.IndexPrefix == "" {
		opts.IndexPrefix = defaults.IndexPrefix
	}

	return &Pipeline{
		store:   store,
		opts:    opts,
		logger:  log,
		now:     time.Now,
		queue:   make(chan message, opts.QueueCapacity),
		abandon: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Enabled reports whether a store is attached.
func (p *Pipeline) Enabled() bool {
	return p.store != nil
}

// Start launches the worker. It is a no-op for a disabled pipeline and after
// the first call.
func (p *Pipeline) Start() {
	if !p.Enabled() {
		p.logger.Warning("Telemetry disabled: events will not be delivered")
		return
	}
	p.startOnce.Do(func() {
		p.running.Store(true)
		go p.run()
		p.logger.Info("Telemetry worker started (capacity %d)", p.opts.QueueCapacity)
	})
}

// Submit queues event for delivery, waiting at most the enqueue timeout for
// room. When the queue stays full the event is dropped. Submit never fails
// and is a no-op on a disabled or stopped pipeline.
func (p *Pipeline) Submit(event Event) {
	if !p.Enabled() || !p.running.Load() {
		return
	}

	msg := message{event: event.clone(), arrived: p.now()}
	p.submitted.Add(1)

	select {
	case p.queue <- msg:
		return
	default:
	}

	timer := time.NewTimer(p.opts.EnqueueTimeout)
	defer timer.Stop()

	select {
	case p.queue <- msg:
	case <-timer.C:
		p.dropped.Add(1)
	}
}

// Shutdown stops accepting events, queues the stop sentinel behind the
// pending events and waits up to the grace period for the worker to drain
// them. If the grace period runs out the worker is told to abandon the rest.
// Only the first call has any effect.
func (p *Pipeline) Shutdown() {
	p.stopOnce.Do(func() {
		if !p.running.Swap(false) {
			return
		}

		deadline := time.NewTimer(p.opts.ShutdownGrace)
		defer deadline.Stop()

		select {
		case p.queue <- message{stop: true}:
		case <-deadline.C:
			close(p.abandon)
			p.logger.Warning("Telemetry shutdown grace period elapsed before the queue drained; %d event(s) abandoned", len(p.queue))
			return
		}

		select {
		case <-p.done:
			s := p.Stats()
			p.logger.Info("Telemetry worker stopped (delivered %d, dropped %d, failed %d)", s.Delivered, s.Dropped, s.Failed)
		case <-deadline.C:
			close(p.abandon)
			p.logger.Warning("Telemetry shutdown grace period elapsed; %d event(s) abandoned", len(p.queue))
		}
	})
}

// Provision installs the index template for the daily indices. Failures are
// logged and otherwise ignored.
func (p *Pipeline) Provision(ctx context.Context) {
	if !p.Enabled() {
		return
	}

	name := TemplateName(p.opts.IndexPrefix)
	if err := ProvisionTemplate(ctx, p.store, p.opts.IndexPrefix); err != nil {
		p.logger.Error("Failed to create index template %s: %v", name, err)
		return
	}
	p.logger.Info("Index template %s provisioned", name)
}

// Stats returns the current counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Enabled:   p.Enabled(),
		Submitted: p.submitted.Load(),
		Delivered: p.delivered.Load(),
		Dropped:   p.dropped.Load(),
		Failed:    p.failed.Load(),
		Queued:    len(p.queue),
		Capacity:  p.opts.QueueCapacity,
	}
}

func (p *Pipeline) run() {
	defer close(p.done)

	for {
		select {
		case <-p.abandon:
			return
		case msg := <-p.queue:
			if msg.stop {
				return
			}
			select {
			case <-p.abandon:
				return
			default:
			}
			p.deliver(msg)
		}
	}
}

func (p *Pipeline) deliver(msg message) {
	doc := make(map[string]any, len(msg.event)+1)
	doc["@timestamp"] = msg.arrived.Format(time.RFC3339Nano)
	for k, v := range msg.event {
		doc[k] = v
	}

	body, err := json.Marshal(doc)
	if err != nil {
		p.failed.Add(1)
		p.logger.Error("Failed to encode telemetry event: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.opts.WriteTimeout)
	defer cancel()

	index := IndexName(p.opts.IndexPrefix, msg.arrived)
	if err := p.store.Index(ctx, index, body); err != nil {
		p.failed.Add(1)
		p.logger.Error("Failed to send event to %s: %v", index, err)
		return
	}
	p.delivered.Add(1)
}
