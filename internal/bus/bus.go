package bus

import (
	"sync"

	"github.com/google/uuid"
)

// EventNewMessage is emitted by the inbox after a message has been appended
// and persisted. It carries no payload; subscribers re-read the inbox.
const EventNewMessage = "newMessage"

// Handler receives the event payload, which may be nil.
type Handler func(payload any)

// Token identifies one subscription for Unsubscribe.
type Token string

type subscription struct {
	token   Token
	handler Handler
}

// Bus is an injectable publish/subscribe registry. Delivery is synchronous:
// Emit calls every current subscriber in subscription order before it
// returns. There is no buffering; late subscribers miss earlier events.
type Bus struct {
	mu   sync.Mutex
	subs map[string][]subscription
}

// New creates an empty Bus. Create one per process and pass it to the
// components that need it.
func New() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// Subscribe registers handler for the named event and returns a token for
// Unsubscribe.
func (b *Bus) Subscribe(name string, handler Handler) Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	token := Token(uuid.NewString())
	b.subs[name] = append(b.subs[name], subscription{token: token, handler: handler})
	return token
}

// Unsubscribe removes the subscription identified by token. Unknown tokens
// are ignored.
func (b *Bus) Unsubscribe(name string, token Token) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[name]
	for i, sub := range subs {
		if sub.token == token {
			b.subs[name] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Emit delivers payload to all current subscribers of the named event, in
// subscription order. The subscriber list is snapshotted before delivery so
// handlers may subscribe or unsubscribe without deadlocking.
func (b *Bus) Emit(name string, payload any) {
	b.mu.Lock()
	subs := make([]subscription, len(b.subs[name]))
	copy(subs, b.subs[name])
	b.mu.Unlock()

	for _, sub := range subs {
		sub.handler(payload)
	}
}
