package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ProcessRecurringMessage is the work item the due scanner emits for each due
// template transaction. It carries only identifiers; the worker loads the
// full record from the store, so a stale message can never apply stale data.
type ProcessRecurringMessage struct {
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewProcessRecurringMessage(transactionID, userID string) *ProcessRecurringMessage {
	return &ProcessRecurringMessage{
		TransactionID: transactionID,
		UserID:        userID,
		Timestamp:     time.Now().UTC(),
	}
}

// Validate rejects payloads missing either identifier. Malformed messages are
// dropped, not requeued.
func (m *ProcessRecurringMessage) Validate() error {
	if m.TransactionID == "" {
		return errors.New("process recurring message: missing transaction id")
	}
	if m.UserID == "" {
		return errors.New("process recurring message: missing user id")
	}
	return nil
}

func (m *ProcessRecurringMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ProcessRecurringMessageFromJSON(data []byte) (*ProcessRecurringMessage, error) {
	var msg ProcessRecurringMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal process recurring message: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
