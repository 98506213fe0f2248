package worker

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"tracker/internal/amqp"
	"tracker/internal/gateway"
	applog "tracker/internal/log"
)

// SyncWorker keeps a mirror record store in step with the primary one. It
// applies change messages as they arrive and can reconcile the whole mirror
// against the primary when messages were lost.
type SyncWorker struct {
	mirror gateway.RecordStore
	// source is optional; without it Reconcile is unavailable.
	source gateway.RecordFetcher

	applied atomic.Int64
	failed  atomic.Int64
}

// Stats counts handled messages since start.
type Stats struct {
	Applied int64 `json:"applied"`
	Failed  int64 `json:"failed"`
}

// ReconcileReport describes what Reconcile changed in the mirror.
type ReconcileReport struct {
	Saved   int `json:"saved"`
	Deleted int `json:"deleted"`
	Equal   int `json:"equal"`
}

func NewSyncWorker(mirror gateway.RecordStore, source gateway.RecordFetcher) *SyncWorker {
	return &SyncWorker{mirror: mirror, source: source}
}

// HandleRecordChange applies a single change message to the mirror. An
// error makes the consumer requeue the message.
func (w *SyncWorker) HandleRecordChange(ctx context.Context, msg *amqp.RecordChangeMessage) error {
	slog.InfoContext(ctx, "Processing record change",
		applog.FieldOperation, msg.Op,
		applog.FieldRecordKind, msg.Kind,
		applog.FieldRecordID, msg.ID)

	if err := gateway.Apply(ctx, w.mirror, msg.ToOp()); err != nil {
		w.failed.Add(1)
		return fmt.Errorf("apply %s %s/%s to mirror: %w", msg.Op, msg.Kind, msg.ID, err)
	}
	w.applied.Add(1)

	slog.InfoContext(ctx, "Successfully mirrored record change",
		applog.FieldRecordKind, msg.Kind,
		applog.FieldRecordID, msg.ID,
		"timestamp", msg.Timestamp)
	return nil
}

func (w *SyncWorker) Stats() Stats {
	return Stats{Applied: w.applied.Load(), Failed: w.failed.Load()}
}

// Reconcile copies every record that differs from the primary into the
// mirror and deletes mirror records the primary no longer has. It is meant
// for worker startup, to recover from missed messages or downtime.
func (w *SyncWorker) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	if w.source == nil {
		return report, fmt.Errorf("reconcile: no source store configured")
	}

	for _, kind := range gateway.Kinds() {
		var want, have []gateway.Record
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			want, err = w.source.FetchAll(gctx, kind)
			return err
		})
		g.Go(func() (err error) {
			have, err = w.mirror.FetchAll(gctx, kind)
			return err
		})
		if err := g.Wait(); err != nil {
			return report, fmt.Errorf("reconcile %s: %w", kind, err)
		}

		current := make(map[string]gateway.Record, len(have))
		for _, r := range have {
			current[r.ID] = r
		}
		for _, r := range want {
			if old, ok := current[r.ID]; ok && maps.Equal(old.Fields, r.Fields) {
				report.Equal++
				delete(current, r.ID)
				continue
			}
			delete(current, r.ID)
			if err := w.mirror.Save(ctx, r); err != nil {
				return report, fmt.Errorf("reconcile save %s/%s: %w", kind, r.ID, err)
			}
			report.Saved++
		}
		for id := range current {
			if err := w.mirror.Delete(ctx, kind, id); err != nil {
				return report, fmt.Errorf("reconcile delete %s/%s: %w", kind, id, err)
			}
			report.Deleted++
		}
	}

	slog.InfoContext(ctx, "Startup reconcile completed",
		"saved", report.Saved,
		"deleted", report.Deleted,
		"unchanged", report.Equal)
	return report, nil
}
