package amqp

import (
	"context"
	"fmt"

	"tracker/internal/gateway"
)

// Publisher sends record change messages.
type Publisher interface {
	Publish(ctx context.Context, msg *RecordChangeMessage) error
}

var _ Publisher = (*Client)(nil)

// PublishingStore wraps a record store and announces every successful
// write. A failed publish is returned so the dispatcher retries the whole
// op; saves are upserts, so the repeated write is harmless.
type PublishingStore struct {
	inner gateway.RecordStore
	pub   Publisher
}

var _ gateway.RecordStore = (*PublishingStore)(nil)

func NewPublishingStore(inner gateway.RecordStore, pub Publisher) *PublishingStore {
	return &PublishingStore{inner: inner, pub: pub}
}

func (s *PublishingStore) FetchAll(ctx context.Context, kind gateway.Kind) ([]gateway.Record, error) {
	return s.inner.FetchAll(ctx, kind)
}

func (s *PublishingStore) Save(ctx context.Context, r gateway.Record) error {
	if err := s.inner.Save(ctx, r); err != nil {
		return err
	}
	return s.announce(ctx, gateway.SaveOp(r))
}

func (s *PublishingStore) Delete(ctx context.Context, kind gateway.Kind, id string) error {
	if err := s.inner.Delete(ctx, kind, id); err != nil {
		return err
	}
	return s.announce(ctx, gateway.DeleteOp(kind, id))
}

func (s *PublishingStore) announce(ctx context.Context, op gateway.Op) error {
	if err := s.pub.Publish(ctx, NewRecordChangeMessage(op)); err != nil {
		return fmt.Errorf("announce %s %s/%s: %w", op.Type, op.Record.Kind, op.Record.ID, err)
	}
	return nil
}
