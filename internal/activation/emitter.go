package activation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/straja-ai/intakerisk/internal/redact"
)

// Sink consumes assessment events (log, webhook, file).
type Sink interface {
	Name() string
	Deliver(context.Context, *Event) error
	Close(context.Context) error
}

// Stats is a point-in-time copy of the emitter counters.
type Stats struct {
	Enqueued  uint64
	Dropped   uint64
	Delivered map[string]uint64
	Failed    map[string]uint64
}

// EmitterConfig controls worker and queue sizing.
type EmitterConfig struct {
	QueueSize int
	Workers   int
	// DeliveryTimeout bounds one sink delivery; zero means 5s.
	DeliveryTimeout time.Duration
	// ShutdownTimeout bounds how long Close waits for the queue to drain.
	ShutdownTimeout time.Duration
	Logger          *zap.Logger
}

// Emitter hands assessment events to sinks on background workers so the
// request path never waits on delivery.
type Emitter struct {
	queue           chan *Event
	sinks           []Sink
	deliveryTimeout time.Duration
	shutdownTimeout time.Duration
	logger          *zap.Logger

	// base is cancelled when Close gives up draining, aborting in-flight
	// deliveries.
	base   context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	statsMu sync.Mutex
	stats   Stats
}

// NewEmitter starts background workers to deliver events to the provided sinks.
func NewEmitter(cfg EmitterConfig, sinks []Sink) *Emitter {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 5 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	base, cancel := context.WithCancel(context.Background())
	em := &Emitter{
		queue:           make(chan *Event, cfg.QueueSize),
		sinks:           sinks,
		deliveryTimeout: cfg.DeliveryTimeout,
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          cfg.Logger,
		base:            base,
		cancel:          cancel,
		stats: Stats{
			Delivered: make(map[string]uint64, len(sinks)),
			Failed:    make(map[string]uint64, len(sinks)),
		},
	}

	for i := 0; i < cfg.Workers; i++ {
		em.wg.Add(1)
		go em.worker()
	}
	return em
}

// Emit enqueues ev without blocking. Events are dropped when the queue is
// full or the emitter is closed.
func (e *Emitter) Emit(_ context.Context, ev *Event) {
	if e == nil || ev == nil {
		return
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.closed {
		select {
		case e.queue <- ev:
			e.count(func(s *Stats) { s.Enqueued++ })
			return
		default:
		}
	}
	e.count(func(s *Stats) { s.Dropped++ })
	e.logger.Debug("assessment event dropped",
		zap.String("request_id", ev.RequestID),
		zap.String("type", ev.Type),
		zap.Bool("closed", e.closed),
	)
}

// Close stops accepting events, waits up to the shutdown timeout for queued
// events to be delivered, then closes every sink.
func (e *Emitter) Close(ctx context.Context) {
	if e == nil {
		return
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	waitCtx, cancel := context.WithTimeout(ctx, e.shutdownTimeout)
	defer cancel()

	select {
	case <-done:
	case <-waitCtx.Done():
		e.cancel()
		select {
		case <-done:
		case <-time.After(e.shutdownTimeout):
			e.logger.Warn("activation workers still busy after shutdown timeout")
		}
	}
	e.cancel()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), e.shutdownTimeout)
	defer closeCancel()
	for _, s := range e.sinks {
		if err := s.Close(closeCtx); err != nil {
			e.logger.Warn("activation sink close failed", zap.String("sink", s.Name()), zap.String("error", redact.Error(err)))
		}
	}
}

// Stats returns a copy of the counters.
func (e *Emitter) Stats() Stats {
	if e == nil {
		return Stats{}
	}
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	out := Stats{
		Enqueued:  e.stats.Enqueued,
		Dropped:   e.stats.Dropped,
		Delivered: make(map[string]uint64, len(e.stats.Delivered)),
		Failed:    make(map[string]uint64, len(e.stats.Failed)),
	}
	for k, v := range e.stats.Delivered {
		out.Delivered[k] = v
	}
	for k, v := range e.stats.Failed {
		out.Failed[k] = v
	}
	return out
}

func (e *Emitter) count(fn func(*Stats)) {
	e.statsMu.Lock()
	fn(&e.stats)
	e.statsMu.Unlock()
}

func (e *Emitter) worker() {
	defer e.wg.Done()
	for ev := range e.queue {
		for _, s := range e.sinks {
			e.deliver(s, ev)
		}
	}
}

func (e *Emitter) deliver(s Sink, ev *Event) {
	ctx, cancel := context.WithTimeout(e.base, e.deliveryTimeout)
	defer cancel()

	name := s.Name()
	if err := s.Deliver(ctx, ev); err != nil {
		e.logger.Warn("activation sink delivery failed",
			zap.String("sink", name),
			zap.String("request_id", ev.RequestID),
			zap.String("error", redact.Error(err)),
		)
		e.count(func(st *Stats) { st.Failed[name]++ })
		return
	}
	e.count(func(st *Stats) { st.Delivered[name]++ })
}
