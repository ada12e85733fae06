package amqp

import (
	"encoding/json"
	"time"

	"bilancio/internal/audit"
)

// AuditMessage carries one redacted audit entry from the API process to the
// worker. The entry is embedded whole; the worker persists it without a
// second database round trip.
type AuditMessage struct {
	Entry     audit.Entry `json:"entry"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewAuditMessage(entry audit.Entry) *AuditMessage {
	return &AuditMessage{
		Entry:     entry,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *AuditMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// AuditMessageFromJSON creates a message from JSON bytes
func AuditMessageFromJSON(data []byte) (*AuditMessage, error) {
	var msg AuditMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
