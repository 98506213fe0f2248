package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"tracker/internal/gateway"
)

// RecordChangeMessage announces that a record was saved to or deleted from
// the primary store. Save messages carry the full field map so consumers
// need no read-back.
type RecordChangeMessage struct {
	Op        gateway.OpType    `json:"op"`
	Kind      gateway.Kind      `json:"kind"`
	ID        string            `json:"id"`
	Fields    map[string]string `json:"fields,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func NewRecordChangeMessage(op gateway.Op) *RecordChangeMessage {
	msg := &RecordChangeMessage{
		Op:        op.Type,
		Kind:      op.Record.Kind,
		ID:        op.Record.ID,
		Timestamp: time.Now().UTC(),
	}
	if op.Type == gateway.OpSave {
		msg.Fields = op.Record.Clone().Fields
	}
	return msg
}

func (m *RecordChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Validate rejects messages that cannot be applied to a record store.
func (m *RecordChangeMessage) Validate() error {
	if m.Op != gateway.OpSave && m.Op != gateway.OpDelete {
		return gateway.ErrUnknownOp
	}
	if err := m.Kind.Validate(); err != nil {
		return err
	}
	if m.ID == "" {
		return errors.New("missing record id")
	}
	return nil
}

// ToOp converts the message back into a durability request.
func (m *RecordChangeMessage) ToOp() gateway.Op {
	return gateway.Op{
		Type:   m.Op,
		Record: gateway.Record{Kind: m.Kind, ID: m.ID, Fields: m.Fields},
	}
}

func RecordChangeMessageFromJSON(data []byte) (*RecordChangeMessage, error) {
	var msg RecordChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
