package inbox

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/pushdeck/agent/internal/bus"
	"github.com/pushdeck/agent/internal/kv"
	"github.com/pushdeck/agent/internal/model"
)

// MaxMessages bounds the inbox. On overflow the oldest message (insertion
// order, not read status) is evicted before the new one is appended.
const MaxMessages = 200

// Cache is the bounded local message inbox, persisted through a kv.Store
// under kv.KeyMessages.
//
// Append, MarkRead and Clear are read-modify-write cycles over the same
// stored key with no lock between them. Two overlapping mutations can lose
// an update. The agent runs them from a single event loop in practice, so
// this is a documented limitation rather than something the cache guards
// against.
type Cache struct {
	store kv.Store
	bus   *bus.Bus
	now   func() time.Time
}

// New creates a Cache over store, emitting on b after each append.
func New(store kv.Store, b *bus.Bus) *Cache {
	return &Cache{store: store, bus: b, now: time.Now}
}

// load reads the persisted list. Missing or unreadable state yields an empty
// list; only transport failures from the store are reported, and callers
// that can tolerate them degrade to empty as well.
func (c *Cache) load(ctx context.Context) []model.Message {
	raw, err := c.store.Get(ctx, kv.KeyMessages)
	if err != nil {
		return nil
	}
	return decodeMessages(raw)
}

func (c *Cache) persist(ctx context.Context, messages []model.Message) error {
	raw, err := encodeMessages(messages)
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}
	if err := c.store.Set(ctx, kv.KeyMessages, raw); err != nil {
		return fmt.Errorf("persist messages: %w", err)
	}
	return nil
}

// Append stores a new unread message built from the notification and emits
// bus.EventNewMessage. When the inbox is full the single oldest message is
// evicted first. A persistence failure is returned to the caller; nothing is
// emitted in that case.
func (c *Cache) Append(ctx context.Context, n model.Notification) (model.Message, error) {
	messages := c.load(ctx)

	if len(messages) >= MaxMessages {
		messages = messages[1:]
	}

	received := c.now()
	id := n.ProviderID
	if id == "" {
		id = strconv.FormatInt(received.UnixMilli(), 10)
	}

	msg := model.Message{
		ID:         id,
		Title:      n.Title,
		Body:       n.Body,
		Read:       false,
		ReceivedAt: received,
	}
	messages = append(messages, msg)

	if err := c.persist(ctx, messages); err != nil {
		return model.Message{}, err
	}

	c.bus.Emit(bus.EventNewMessage, nil)
	return msg, nil
}

// MarkRead sets read=true on the message with the given id and persists the
// list. An unknown id is a no-op, not an error.
func (c *Cache) MarkRead(ctx context.Context, id string) error {
	messages := c.load(ctx)

	found := false
	for i := range messages {
		if messages[i].ID == id {
			messages[i].Read = true
			found = true
			break
		}
	}
	if !found {
		return nil
	}

	return c.persist(ctx, messages)
}

// Query returns the messages received within maxAgeDays of now, newest
// first. The boundary is inclusive: a message exactly maxAgeDays old is
// included. Query never mutates storage.
func (c *Cache) Query(ctx context.Context, maxAgeDays int) ([]model.Message, error) {
	messages := c.load(ctx)
	cutoff := c.now().AddDate(0, 0, -maxAgeDays)

	result := make([]model.Message, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		if !messages[i].ReceivedAt.Before(cutoff) {
			result = append(result, messages[i])
		}
	}
	return result, nil
}

// Unread returns the number of unread messages in the inbox.
func (c *Cache) Unread(ctx context.Context) (int, error) {
	count := 0
	for _, m := range c.load(ctx) {
		if !m.Read {
			count++
		}
	}
	return count, nil
}

// Clear removes all stored messages.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.store.Delete(ctx, kv.KeyMessages); err != nil && !errors.Is(err, kv.ErrNotFound) {
		return fmt.Errorf("clear messages: %w", err)
	}
	return nil
}
