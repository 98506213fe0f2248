package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker/internal/gateway"
	"tracker/internal/gateway/memory"
)

// flakyStore fails the first failN calls per record, then delegates.
type flakyStore struct {
	*memory.Store
	mu     sync.Mutex
	failN  int
	calls  map[string]int
	order  []string
	always bool
}

func newFlakyStore(failN int) *flakyStore {
	return &flakyStore{Store: memory.New(), failN: failN, calls: map[string]int{}}
}

func (s *flakyStore) hit(op, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[id]++
	if s.always || s.calls[id] <= s.failN {
		return errors.New("remote unavailable")
	}
	s.order = append(s.order, op+":"+id)
	return nil
}

func (s *flakyStore) Save(ctx context.Context, r gateway.Record) error {
	if err := s.hit("save", r.ID); err != nil {
		return err
	}
	return s.Store.Save(ctx, r)
}

func (s *flakyStore) Delete(ctx context.Context, k gateway.Kind, id string) error {
	if err := s.hit("delete", id); err != nil {
		return err
	}
	return s.Store.Delete(ctx, k, id)
}

func fastConfig() SyncDispatcherConfig {
	return SyncDispatcherConfig{
		Workers:    3,
		QueueSize:  16,
		MaxRetries: 3,
		RetryBase:  time.Millisecond,
		RetryMax:   4 * time.Millisecond,
		OpTimeout:  time.Second,
	}
}

func rec(id string) gateway.Record {
	return gateway.Record{Kind: gateway.KindTransactions, ID: id, Fields: map[string]string{"name": id}}
}

func TestDispatcherAppliesOps(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStore(0)
	d := NewSyncDispatcher(store, fastConfig())
	require.NoError(t, d.Start(ctx))

	d.Enqueue(gateway.SaveOp(rec("a")))
	d.Enqueue(gateway.SaveOp(rec("b")))
	d.Enqueue(gateway.DeleteOp(gateway.KindTransactions, "a"))

	require.NoError(t, d.Flush(ctx))
	require.NoError(t, d.Stop(ctx))

	assert.Equal(t, 1, store.Len(gateway.KindTransactions))
	stats := d.Stats()
	assert.EqualValues(t, 3, stats.Enqueued)
	assert.EqualValues(t, 3, stats.Succeeded)
	assert.Zero(t, stats.Pending)
	assert.False(t, stats.Running)
}

func TestDispatcherPreservesPerRecordOrder(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStore(0)
	d := NewSyncDispatcher(store, fastConfig())

	// Queued before Start; must still run in order.
	for i := 0; i < 5; i++ {
		d.Enqueue(gateway.SaveOp(rec("x")))
	}
	d.Enqueue(gateway.DeleteOp(gateway.KindTransactions, "x"))

	require.NoError(t, d.Start(ctx))
	require.NoError(t, d.Flush(ctx))
	require.NoError(t, d.Stop(ctx))

	require.Len(t, store.order, 6)
	assert.Equal(t, "delete:x", store.order[5])
	assert.Zero(t, store.Len(gateway.KindTransactions))
}

func TestDispatcherRetriesThenSucceeds(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStore(2)
	d := NewSyncDispatcher(store, fastConfig())
	require.NoError(t, d.Start(ctx))
	defer d.Stop(ctx)

	d.Enqueue(gateway.SaveOp(rec("r")))
	require.NoError(t, d.Flush(ctx))

	stats := d.Stats()
	assert.EqualValues(t, 1, stats.Succeeded)
	assert.EqualValues(t, 2, stats.Retried)
	assert.Empty(t, d.Failed())
}

func TestDispatcherRecordsFailureAndRetries(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStore(0)
	store.always = true
	d := NewSyncDispatcher(store, fastConfig())
	require.NoError(t, d.Start(ctx))
	defer d.Stop(ctx)

	d.Enqueue(gateway.SaveOp(rec("f")))
	require.NoError(t, d.Flush(ctx))

	failed := d.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "f", failed[0].ID)
	assert.Equal(t, 3, failed[0].Attempts)
	assert.EqualValues(t, 1, d.Stats().Failed)

	store.mu.Lock()
	store.always = false
	store.mu.Unlock()

	assert.Equal(t, 1, d.RetryFailed())
	require.NoError(t, d.Flush(ctx))
	assert.Empty(t, d.Failed())
	assert.Equal(t, 1, store.Len(gateway.KindTransactions))
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	cfg := fastConfig()
	cfg.Workers = 1
	cfg.QueueSize = 2
	d := NewSyncDispatcher(newFlakyStore(0), cfg)

	// Not started: the lane fills up.
	d.Enqueue(gateway.SaveOp(rec("1")))
	d.Enqueue(gateway.SaveOp(rec("2")))
	d.Enqueue(gateway.SaveOp(rec("3")))

	stats := d.Stats()
	assert.EqualValues(t, 2, stats.Enqueued)
	assert.EqualValues(t, 1, stats.Dropped)
	require.Len(t, d.Failed(), 1)
	assert.ErrorIs(t, d.Failed()[0], ErrQueueFull)
}

func TestDispatcherAfterStop(t *testing.T) {
	ctx := context.Background()
	d := NewSyncDispatcher(newFlakyStore(0), fastConfig())
	require.NoError(t, d.Start(ctx))
	require.Error(t, d.Start(ctx), "second start should fail")
	require.NoError(t, d.Stop(ctx))
	require.NoError(t, d.Stop(ctx), "stop is idempotent")

	d.Enqueue(gateway.SaveOp(rec("late")))
	assert.EqualValues(t, 1, d.Stats().Dropped)
	assert.ErrorIs(t, d.Failed()[0], ErrDispatcherStopped)
	assert.ErrorIs(t, d.Start(ctx), ErrDispatcherStopped)
}

func TestDispatcherStopBeforeStartDiscardsQueued(t *testing.T) {
	ctx := context.Background()
	d := NewSyncDispatcher(newFlakyStore(0), fastConfig())
	d.Enqueue(gateway.SaveOp(rec("x")))
	d.Enqueue(gateway.DeleteOp(gateway.KindTransactions, "y"))
	require.EqualValues(t, 2, d.Stats().Pending)

	require.NoError(t, d.Stop(ctx))

	stats := d.Stats()
	assert.EqualValues(t, 0, stats.Pending)
	assert.EqualValues(t, 2, stats.Dropped)
	require.Len(t, d.Failed(), 2)
	assert.ErrorIs(t, d.Failed()[0], ErrDispatcherStopped)

	flushCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	assert.NoError(t, d.Flush(flushCtx))
}

func TestDispatcherFailedListIsBounded(t *testing.T) {
	cfg := fastConfig()
	cfg.Workers = 1
	cfg.QueueSize = 1
	cfg.FailedLimit = 2
	d := NewSyncDispatcher(newFlakyStore(0), cfg)

	d.Enqueue(gateway.SaveOp(rec("kept")))
	for _, id := range []string{"d1", "d2", "d3"} {
		d.Enqueue(gateway.SaveOp(rec(id)))
	}
	failed := d.Failed()
	require.Len(t, failed, 2)
	assert.Equal(t, "d2", failed[0].ID)
	assert.Equal(t, "d3", failed[1].ID)
}

func TestBackoff(t *testing.T) {
	d := NewSyncDispatcher(nil, SyncDispatcherConfig{RetryBase: 100 * time.Millisecond, RetryMax: time.Second})
	assert.Equal(t, 100*time.Millisecond, d.backoff(1))
	assert.Equal(t, 200*time.Millisecond, d.backoff(2))
	assert.Equal(t, 800*time.Millisecond, d.backoff(4))
	assert.Equal(t, time.Second, d.backoff(5))
	assert.Equal(t, time.Second, d.backoff(50))
}
