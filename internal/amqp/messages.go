package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"expenseflow/internal/core"

	"github.com/google/uuid"
)

// ExpenseEventMessage announces one lifecycle action on an expense. EventID
// lets consumers drop redeliveries.
type ExpenseEventMessage struct {
	EventID    string      `json:"eventId"`
	ExpenseID  int64       `json:"expenseId"`
	Action     core.Action `json:"action"`
	ActorID    string      `json:"actorId"`
	OwnerID    string      `json:"ownerId"`
	FromStatus core.Status `json:"fromStatus,omitempty"`
	ToStatus   core.Status `json:"toStatus,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// NewExpenseEventMessage wraps ev, assigning an event id and timestamp when
// they are missing.
func NewExpenseEventMessage(ev core.AuditEvent) *ExpenseEventMessage {
	msg := &ExpenseEventMessage{
		EventID:    ev.EventID,
		ExpenseID:  ev.ExpenseID,
		Action:     ev.Action,
		ActorID:    ev.ActorID,
		OwnerID:    ev.OwnerID,
		FromStatus: ev.FromStatus,
		ToStatus:   ev.ToStatus,
		Timestamp:  ev.OccurredAt,
	}
	if msg.EventID == "" {
		msg.EventID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	return msg
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// AuditEvent converts the message back into the record the audit log stores.
func (m *ExpenseEventMessage) AuditEvent() core.AuditEvent {
	return core.AuditEvent{
		EventID:    m.EventID,
		ExpenseID:  m.ExpenseID,
		Action:     m.Action,
		ActorID:    m.ActorID,
		OwnerID:    m.OwnerID,
		FromStatus: m.FromStatus,
		ToStatus:   m.ToStatus,
		OccurredAt: m.Timestamp,
	}
}

// ExpenseEventMessageFromJSON decodes and sanity-checks a message body.
func ExpenseEventMessageFromJSON(data []byte) (*ExpenseEventMessage, error) {
	var msg ExpenseEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.EventID == "" || msg.ExpenseID <= 0 || msg.Action == "" {
		return nil, fmt.Errorf("incomplete expense event: %s", data)
	}
	return &msg, nil
}
