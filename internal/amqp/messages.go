package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"cashflow/internal/core"
)

// SpendLogSyncMessage carries a full daily spend log to the mirror worker.
// The state document has no row ids, so the payload is the log itself.
type SpendLogSyncMessage struct {
	Log       core.DailySpendLog `json:"log"`
	Timestamp time.Time          `json:"timestamp"`
}

func NewSpendLogSyncMessage(log core.DailySpendLog) *SpendLogSyncMessage {
	return &SpendLogSyncMessage{
		Log:       log,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SpendLogSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SpendLogSyncMessageFromJSON decodes a message and rejects one without a date.
func SpendLogSyncMessageFromJSON(data []byte) (*SpendLogSyncMessage, error) {
	var msg SpendLogSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Log.Date.Validate(); err != nil {
		return nil, fmt.Errorf("spend log message: %w", err)
	}
	return &msg, nil
}
