package inbox

import (
	"encoding/json"
	"time"

	"github.com/pushdeck/agent/internal/model"
)

// schemaVersion is the current persisted envelope version.
const schemaVersion = 1

// envelope is the typed persistence format for the message list. Earlier
// builds stored a bare JSON array with different field names; decodeMessages
// migrates that format on read.
type envelope struct {
	Schema   int             `json:"schema"`
	Messages []model.Message `json:"messages"`
}

// legacyMessage matches the original bare-array format.
type legacyMessage struct {
	ID    json.RawMessage `json:"id"`
	Title string          `json:"title"`
	Body  string          `json:"message"`
	Read  bool            `json:"readed"`
	Date  time.Time       `json:"date"`
}

// encodeMessages serializes the list in the current envelope format.
func encodeMessages(messages []model.Message) (string, error) {
	raw, err := json.Marshal(envelope{Schema: schemaVersion, Messages: messages})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// decodeMessages parses stored data into the current format. It accepts the
// current envelope and the legacy bare-array format; anything else yields an
// empty list. Decode never returns an error: unreadable stored state is
// treated as absence, not corruption.
func decodeMessages(raw string) []model.Message {
	if raw == "" {
		return nil
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err == nil && env.Schema == schemaVersion {
		return env.Messages
	}

	var legacy []legacyMessage
	if err := json.Unmarshal([]byte(raw), &legacy); err == nil {
		return migrateLegacy(legacy)
	}

	return nil
}

// migrateLegacy converts the original array format to the current model.
// Legacy ids were either provider message-id strings or numeric epoch
// millisecond values; both become their string form.
func migrateLegacy(legacy []legacyMessage) []model.Message {
	messages := make([]model.Message, 0, len(legacy))
	for _, m := range legacy {
		var id string
		if err := json.Unmarshal(m.ID, &id); err != nil {
			// numeric id: keep the raw digits
			id = string(m.ID)
		}
		if id == "" {
			continue
		}
		messages = append(messages, model.Message{
			ID:         id,
			Title:      m.Title,
			Body:       m.Body,
			Read:       m.Read,
			ReceivedAt: m.Date,
		})
	}
	return messages
}
