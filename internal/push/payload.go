package push

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pushdeck/agent/internal/model"
)

// payload is the wire format of one push notification on the message
// subject.
type payload struct {
	MessageID string `json:"message_id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
}

// decodePayload parses an inbound push message. A payload with neither
// title nor body is rejected; a missing message id is fine, the inbox
// assigns one.
func decodePayload(data []byte) (model.Notification, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return model.Notification{}, fmt.Errorf("decode push payload: %w", err)
	}

	title := strings.TrimSpace(p.Title)
	body := strings.TrimSpace(p.Body)
	if title == "" && body == "" {
		return model.Notification{}, fmt.Errorf("push payload has no content")
	}

	return model.Notification{
		ProviderID: p.MessageID,
		Title:      title,
		Body:       body,
	}, nil
}
