package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Ledger event operations.
const (
	OpCreated  = "created"
	OpDeleted  = "deleted"
	OpRestored = "restored"
)

// LedgerEvent announces a committed change to the ledger. It carries ids only;
// consumers read the ledger itself for details.
type LedgerEvent struct {
	MessageID string    `json:"message_id"`
	Op        string    `json:"op"`
	IDs       []int64   `json:"ids,omitempty"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerEvent creates an event for op. count is the ledger size afterwards.
func NewLedgerEvent(op string, count int, ids ...int64) *LedgerEvent {
	return &LedgerEvent{
		MessageID: uuid.NewString(),
		Op:        op,
		IDs:       ids,
		Count:     count,
		Timestamp: time.Now().UTC(),
	}
}

// Validate checks the fields every consumer relies on.
func (m *LedgerEvent) Validate() error {
	if _, err := uuid.Parse(m.MessageID); err != nil {
		return errors.New("invalid message id")
	}
	switch m.Op {
	case OpCreated, OpDeleted, OpRestored:
	default:
		return errors.New("unknown op " + m.Op)
	}
	if m.Count < 0 {
		return errors.New("negative count")
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON decodes and validates a message.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
