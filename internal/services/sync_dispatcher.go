package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"tracker/internal/core"
	"tracker/internal/gateway"
	applog "tracker/internal/log"
)

// SyncDispatcherConfig holds configuration for the sync dispatcher
type SyncDispatcherConfig struct {
	// Workers is the number of lanes; ops for one record always share a lane (default: 4)
	Workers int

	// QueueSize is the buffer of each lane. A full lane drops the op (default: 256)
	QueueSize int

	// MaxRetries is the number of attempts per op before it is marked failed (default: 3)
	MaxRetries int

	// RetryBase is the first backoff delay; it doubles per attempt (default: 500ms)
	RetryBase time.Duration

	// RetryMax caps the backoff delay (default: 30s)
	RetryMax time.Duration

	// OpTimeout bounds a single store call (default: 30s)
	OpTimeout time.Duration

	// FailedLimit bounds the failed list; the oldest entries are dropped first (default: 100)
	FailedLimit int
}

func DefaultSyncDispatcherConfig() SyncDispatcherConfig {
	return SyncDispatcherConfig{
		Workers:     4,
		QueueSize:   256,
		MaxRetries:  3,
		RetryBase:   500 * time.Millisecond,
		RetryMax:    30 * time.Second,
		OpTimeout:   30 * time.Second,
		FailedLimit: 100,
	}
}

func (c SyncDispatcherConfig) withDefaults() SyncDispatcherConfig {
	d := DefaultSyncDispatcherConfig()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.RetryBase <= 0 {
		c.RetryBase = d.RetryBase
	}
	if c.RetryMax <= 0 {
		c.RetryMax = d.RetryMax
	}
	if c.OpTimeout <= 0 {
		c.OpTimeout = d.OpTimeout
	}
	if c.FailedLimit <= 0 {
		c.FailedLimit = d.FailedLimit
	}
	return c
}

// SyncStats is a point-in-time view of the dispatcher counters.
type SyncStats struct {
	Enqueued  int64 `json:"enqueued"`
	Succeeded int64 `json:"succeeded"`
	Retried   int64 `json:"retried"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
	Pending   int64 `json:"pending"`
	FailedNow int   `json:"failed_queued"`
	Running   bool  `json:"running"`
}

type failedOp struct {
	op  gateway.Op
	err *core.SyncError
}

var (
	ErrDispatcherStopped = errors.New("sync dispatcher stopped")
	ErrQueueFull         = errors.New("sync queue full")
)

// SyncDispatcher applies ledger durability requests to a record store in
// the background. The ledger never waits for it.
type SyncDispatcher struct {
	store  gateway.RecordStore
	config SyncDispatcherConfig
	lanes  []chan gateway.Op

	enqueued, succeeded, retried, failedN, dropped, pending atomic.Int64

	failedMu sync.Mutex
	failed   []failedOp

	// Lifecycle management
	mu      sync.RWMutex
	running bool
	closed  bool
	group   *errgroup.Group
	done    chan struct{}
}

var _ gateway.Sink = (*SyncDispatcher)(nil)

func NewSyncDispatcher(store gateway.RecordStore, config SyncDispatcherConfig) *SyncDispatcher {
	config = config.withDefaults()
	lanes := make([]chan gateway.Op, config.Workers)
	for i := range lanes {
		lanes[i] = make(chan gateway.Op, config.QueueSize)
	}
	return &SyncDispatcher{store: store, config: config, lanes: lanes}
}

// Start launches one goroutine per lane. Ops enqueued before Start are kept.
func (d *SyncDispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return fmt.Errorf("sync dispatcher is already running")
	}
	if d.closed {
		return ErrDispatcherStopped
	}
	d.running = true
	d.done = make(chan struct{})
	d.group = &errgroup.Group{}

	for i, lane := range d.lanes {
		d.group.Go(func() error {
			for op := range lane {
				d.process(ctx, i, op)
			}
			return nil
		})
	}
	go func() {
		_ = d.group.Wait()
		close(d.done)
	}()

	slog.InfoContext(ctx, "Sync dispatcher started",
		applog.FieldComponent, applog.ComponentSync,
		"workers", d.config.Workers,
		"queue_size", d.config.QueueSize,
		"max_retries", d.config.MaxRetries)
	return nil
}

// Stop closes the lanes and waits for queued ops to drain or ctx to end.
func (d *SyncDispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for _, lane := range d.lanes {
		close(lane)
	}
	running, done := d.running, d.done
	d.mu.Unlock()

	if !running {
		d.discardQueued()
		return nil
	}
	select {
	case <-done:
		slog.InfoContext(ctx, "Sync dispatcher stopped gracefully", applog.FieldComponent, applog.ComponentSync)
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync dispatcher stop timed out",
			applog.FieldComponent, applog.ComponentSync,
			"pending", d.pending.Load())
		return ctx.Err()
	}

	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
	return nil
}

// discardQueued records ops that no lane goroutine will ever process.
// The lanes must already be closed.
func (d *SyncDispatcher) discardQueued() {
	for _, lane := range d.lanes {
		for op := range lane {
			d.pending.Add(-1)
			d.drop(op, ErrDispatcherStopped)
		}
	}
}

func (d *SyncDispatcher) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// Enqueue schedules op without blocking. If the lane is full or the
// dispatcher is stopped the op is recorded as failed and dropped.
func (d *SyncDispatcher) Enqueue(op gateway.Op) {
	d.offer(op)
}

func (d *SyncDispatcher) offer(op gateway.Op) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(op, ErrDispatcherStopped)
		return false
	}
	select {
	case d.lanes[d.laneFor(op.Record)] <- op:
		d.enqueued.Add(1)
		d.pending.Add(1)
		return true
	default:
		d.drop(op, ErrQueueFull)
		return false
	}
}

func (d *SyncDispatcher) drop(op gateway.Op, cause error) {
	d.dropped.Add(1)
	serr := &core.SyncError{Op: string(op.Type), Kind: string(op.Record.Kind), ID: op.Record.ID, Err: cause}
	d.remember(failedOp{op: op, err: serr})
	slog.Error("Dropped durability request",
		applog.FieldComponent, applog.ComponentSync,
		applog.FieldError, serr)
}

func (d *SyncDispatcher) laneFor(r gateway.Record) int {
	h := fnv.New32a()
	h.Write([]byte(r.Kind))
	h.Write([]byte{'/'})
	h.Write([]byte(r.ID))
	return int(h.Sum32() % uint32(len(d.lanes)))
}

// process applies op with bounded retries.
func (d *SyncDispatcher) process(ctx context.Context, lane int, op gateway.Op) {
	defer d.pending.Add(-1)

	var err error
	attempt := 0
	for attempt < d.config.MaxRetries {
		attempt++
		opCtx, cancel := context.WithTimeout(ctx, d.config.OpTimeout)
		err = gateway.Apply(opCtx, d.store, op)
		cancel()
		if err == nil {
			d.succeeded.Add(1)
			slog.DebugContext(ctx, "Record synced",
				applog.FieldComponent, applog.ComponentSync,
				applog.FieldOperation, op.Type,
				applog.FieldRecordKind, op.Record.Kind,
				applog.FieldRecordID, op.Record.ID,
				applog.FieldLane, lane,
				applog.FieldAttempt, attempt)
			return
		}
		if attempt >= d.config.MaxRetries || ctx.Err() != nil {
			break
		}

		wait := d.backoff(attempt)
		d.retried.Add(1)
		slog.WarnContext(ctx, "Sync attempt failed, retrying",
			applog.FieldComponent, applog.ComponentSync,
			applog.FieldRecordKind, op.Record.Kind,
			applog.FieldRecordID, op.Record.ID,
			applog.FieldAttempt, attempt,
			applog.FieldBackoff, wait,
			applog.FieldError, err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
	d.handleFailure(ctx, op, attempt, err)
}

// handleFailure records an op that exhausted its attempts.
func (d *SyncDispatcher) handleFailure(ctx context.Context, op gateway.Op, attempts int, err error) {
	d.failedN.Add(1)
	serr := &core.SyncError{
		Op:       string(op.Type),
		Kind:     string(op.Record.Kind),
		ID:       op.Record.ID,
		Attempts: attempts,
		Err:      err,
	}
	d.remember(failedOp{op: op, err: serr})
	slog.ErrorContext(ctx, "Sync failed permanently after max retries",
		applog.FieldComponent, applog.ComponentSync,
		applog.FieldError, serr)
}

func (d *SyncDispatcher) remember(f failedOp) {
	d.failedMu.Lock()
	defer d.failedMu.Unlock()
	d.failed = append(d.failed, f)
	if over := len(d.failed) - d.config.FailedLimit; over > 0 {
		d.failed = append([]failedOp(nil), d.failed[over:]...)
	}
}

func (d *SyncDispatcher) backoff(attempt int) time.Duration {
	wait := d.config.RetryBase
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait >= d.config.RetryMax {
			return d.config.RetryMax
		}
	}
	if wait > d.config.RetryMax {
		return d.config.RetryMax
	}
	return wait
}

// Failed returns the retained failures, oldest first.
func (d *SyncDispatcher) Failed() []*core.SyncError {
	d.failedMu.Lock()
	defer d.failedMu.Unlock()
	out := make([]*core.SyncError, len(d.failed))
	for i, f := range d.failed {
		out[i] = f.err
	}
	return out
}

// RetryFailed re-enqueues every retained failure and returns how many were queued.
func (d *SyncDispatcher) RetryFailed() int {
	d.failedMu.Lock()
	failed := d.failed
	d.failed = nil
	d.failedMu.Unlock()

	n := 0
	for _, f := range failed {
		if d.offer(f.op) {
			n++
		}
	}
	return n
}

func (d *SyncDispatcher) Stats() SyncStats {
	d.failedMu.Lock()
	failedNow := len(d.failed)
	d.failedMu.Unlock()
	return SyncStats{
		Enqueued:  d.enqueued.Load(),
		Succeeded: d.succeeded.Load(),
		Retried:   d.retried.Load(),
		Failed:    d.failedN.Load(),
		Dropped:   d.dropped.Load(),
		Pending:   d.pending.Load(),
		FailedNow: failedNow,
		Running:   d.IsRunning(),
	}
}

// Flush blocks until every queued op has been processed or ctx is done.
func (d *SyncDispatcher) Flush(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for d.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
