// Package audit delivers Ledger audit entries to durable sinks without
// blocking the mutation that produced them.
package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/warp/pharmacy-ledger/pharmacy"
)

// ErrDrainTimeout is returned by Close when queued entries were still
// undelivered after CloseTimeout. They may still reach the sink later.
var ErrDrainTimeout = errors.New("audit drain timed out")

// Sink stores audit entries. Implemented by store/sqlite.Store,
// pharmacy/store.Memory and LogSink.
type Sink interface {
	Append(ctx context.Context, entry pharmacy.AuditEntry) error
}

// Config holds recorder configuration
type Config struct {
	// QueueSize bounds the number of undelivered entries
	QueueSize int
	// WriteTimeout bounds a single sink write
	WriteTimeout time.Duration
	// CloseTimeout bounds the final drain on Close
	CloseTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		QueueSize:    1024,
		WriteTimeout: 5 * time.Second,
		CloseTimeout: 10 * time.Second,
	}
}

// Observer is told about each delivery outcome. metrics.Metrics implements it.
type Observer interface {
	AuditWritten()
	AuditDropped()
	AuditFailed()
}

// Recorder implements pharmacy.Auditor. Record enqueues and returns at once;
// a single goroutine drains the queue into the sink in order. When the queue
// is full the entry is dropped and a warning is logged.
type Recorder struct {
	config   Config
	sink     Sink
	logger   *zap.Logger
	observer Observer

	mu     sync.RWMutex
	queue  chan pharmacy.AuditEntry
	done   chan struct{}
	closed bool

	written int64
	dropped int64
	failed  int64
}

type Option func(*Recorder)

func WithObserver(o Observer) Option {
	return func(r *Recorder) { r.observer = o }
}

// NewRecorder starts the drain goroutine. Call Close to stop it.
func NewRecorder(cfg Config, sink Sink, logger *zap.Logger, opts ...Option) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = def.CloseTimeout
	}

	r := &Recorder{
		config: cfg,
		sink:   sink,
		logger: logger,
		queue:  make(chan pharmacy.AuditEntry, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.run()
	return r
}

// Record enqueues entry without blocking.
func (r *Recorder) Record(_ context.Context, entry pharmacy.AuditEntry) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.drop(entry, "recorder closed")
		return
	}
	select {
	case r.queue <- entry:
	default:
		r.drop(entry, "audit queue full")
	}
}

func (r *Recorder) drop(entry pharmacy.AuditEntry, reason string) {
	atomic.AddInt64(&r.dropped, 1)
	if r.observer != nil {
		r.observer.AuditDropped()
	}
	r.logger.Warn(reason+", dropping audit entry",
		zap.String("audit_id", entry.ID),
		zap.String("action", string(entry.Action)),
		zap.Int("queue_size", r.config.QueueSize))
}

// Close stops accepting entries and drains what is queued, waiting at most
// CloseTimeout. Returns ErrDrainTimeout when the wait runs out.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		r.logger.Info("audit recorder stopped",
			zap.Int64("written", atomic.LoadInt64(&r.written)),
			zap.Int64("dropped", atomic.LoadInt64(&r.dropped)),
			zap.Int64("failed", atomic.LoadInt64(&r.failed)))
	case <-time.After(r.config.CloseTimeout):
		return fmt.Errorf("%w: %d entries pending", ErrDrainTimeout, len(r.queue))
	}
	return nil
}

func (r *Recorder) run() {
	defer close(r.done)
	for entry := range r.queue {
		r.write(entry)
	}
}

func (r *Recorder) write(entry pharmacy.AuditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	if err := r.sink.Append(ctx, entry); err != nil {
		atomic.AddInt64(&r.failed, 1)
		if r.observer != nil {
			r.observer.AuditFailed()
		}
		r.logger.Error("audit write failed",
			zap.String("audit_id", entry.ID),
			zap.String("action", string(entry.Action)),
			zap.Error(err))
		return
	}
	atomic.AddInt64(&r.written, 1)
	if r.observer != nil {
		r.observer.AuditWritten()
	}
}

// Stats is a point-in-time view of delivery counters.
type Stats struct {
	Written int64
	Dropped int64
	Failed  int64
	Pending int
}

func (r *Recorder) Stats() Stats {
	return Stats{
		Written: atomic.LoadInt64(&r.written),
		Dropped: atomic.LoadInt64(&r.dropped),
		Failed:  atomic.LoadInt64(&r.failed),
		Pending: len(r.queue),
	}
}
