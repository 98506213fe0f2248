package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker/internal/amqp"
	"tracker/internal/gateway"
	"tracker/internal/gateway/memory"
)

func category(id, name string) gateway.Record {
	return gateway.Record{Kind: gateway.KindCategories, ID: id, Fields: map[string]string{
		gateway.FieldName: name, gateway.FieldAmount: "0.00",
		gateway.FieldIncomes: "0.00", gateway.FieldExpenses: "0.00",
	}}
}

func TestHandleRecordChangeAppliesSaveAndDelete(t *testing.T) {
	ctx := context.Background()
	mirror := memory.New()
	w := NewSyncWorker(mirror, nil)

	save := amqp.NewRecordChangeMessage(gateway.SaveOp(category("c1", "Food")))
	require.NoError(t, w.HandleRecordChange(ctx, save))

	recs, err := mirror.FetchAll(ctx, gateway.KindCategories)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Food", recs[0].Fields[gateway.FieldName])

	del := amqp.NewRecordChangeMessage(gateway.DeleteOp(gateway.KindCategories, "c1"))
	require.NoError(t, w.HandleRecordChange(ctx, del))
	assert.Zero(t, mirror.Len(gateway.KindCategories))
	assert.Equal(t, Stats{Applied: 2}, w.Stats())
}

type brokenStore struct{ *memory.Store }

func (brokenStore) Save(context.Context, gateway.Record) error { return errors.New("quota exceeded") }

func TestHandleRecordChangeReturnsErrorForRequeue(t *testing.T) {
	w := NewSyncWorker(brokenStore{memory.New()}, nil)
	err := w.HandleRecordChange(context.Background(), amqp.NewRecordChangeMessage(gateway.SaveOp(category("c1", "Food"))))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Equal(t, Stats{Failed: 1}, w.Stats())
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	source := memory.New()
	mirror := memory.New()

	require.NoError(t, source.Save(ctx, category("same", "Rent")))
	require.NoError(t, source.Save(ctx, category("changed", "Food & Drinks")))
	require.NoError(t, source.Save(ctx, category("missing", "Travel")))
	require.NoError(t, source.Save(ctx, gateway.Record{Kind: gateway.KindTransactions, ID: "t1", Fields: map[string]string{gateway.FieldName: "Lunch"}}))

	require.NoError(t, mirror.Save(ctx, category("same", "Rent")))
	require.NoError(t, mirror.Save(ctx, category("changed", "Food")))
	require.NoError(t, mirror.Save(ctx, category("stale", "Old")))

	report, err := NewSyncWorker(mirror, source).Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Saved: 3, Deleted: 1, Equal: 1}, report)

	want, _ := source.FetchAll(ctx, gateway.KindCategories)
	got, _ := mirror.FetchAll(ctx, gateway.KindCategories)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, mirror.Len(gateway.KindTransactions))
}

func TestReconcileWithoutSource(t *testing.T) {
	_, err := NewSyncWorker(memory.New(), nil).Reconcile(context.Background())
	assert.Error(t, err)
}
