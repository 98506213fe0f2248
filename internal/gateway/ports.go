package gateway

import (
	"context"
)

// Ports for record store adapters.
type (
	RecordFetcher interface {
		// FetchAll returns every stored record of kind. No ordering is implied.
		FetchAll(ctx context.Context, kind Kind) ([]Record, error)
	}

	RecordSaver interface {
		// Save upserts r by (Kind, ID).
		Save(ctx context.Context, r Record) error
	}

	RecordDeleter interface {
		// Delete removes the record. Deleting an absent record is not an error.
		Delete(ctx context.Context, kind Kind, id string) error
	}

	RecordStore interface {
		RecordFetcher
		RecordSaver
		RecordDeleter
	}

	// Sink accepts durability requests without blocking the caller.
	Sink interface {
		Enqueue(op Op)
	}
)

// OpType is the durability action to perform.
type OpType string

const (
	OpSave   OpType = "save"
	OpDelete OpType = "delete"
)

// Op is one durability request scheduled by the ledger.
type Op struct {
	Type   OpType
	Record Record
}

// SaveOp builds a save request.
func SaveOp(r Record) Op { return Op{Type: OpSave, Record: r} }

// DeleteOp builds a delete request. Only Kind and ID are meaningful.
func DeleteOp(kind Kind, id string) Op {
	return Op{Type: OpDelete, Record: Record{Kind: kind, ID: id}}
}

// Apply runs op against store.
func Apply(ctx context.Context, store RecordStore, op Op) error {
	switch op.Type {
	case OpSave:
		return store.Save(ctx, op.Record)
	case OpDelete:
		return store.Delete(ctx, op.Record.Kind, op.Record.ID)
	default:
		return ErrUnknownOp
	}
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Op)

func (f SinkFunc) Enqueue(op Op) { f(op) }

// Discard drops every request. Useful for tests and read-only tooling.
var Discard Sink = SinkFunc(func(Op) {})
