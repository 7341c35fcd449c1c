// Package push connects the agent to the push broker over NATS. The broker
// assigns each installation a durable subscription id; that id is the
// device identity the login flow binds to the backend.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/pushdeck/agent/internal/inbox"
	"github.com/pushdeck/agent/internal/model"
)

const (
	registerSubject      = "push.v1.register"
	messageSubjectPrefix = "push.v1.messages."

	registerTimeout = 5 * time.Second
)

type registerRequest struct {
	App      string `json:"app"`
	Platform string `json:"platform"`
}

type registerReply struct {
	SubscriptionID string `json:"subscription_id"`
}

// Listener registers with the push broker, subscribes to this device's
// message subject and feeds inbound notifications into the inbox. It also
// implements device.IdentityProvider: the subscription id arrives
// asynchronously after Start, so callers either see it immediately via
// CurrentID or get notified through OnIDAvailable.
type Listener struct {
	conn  *nats.Conn
	cache *inbox.Cache
	app   string

	mu        sync.Mutex
	id        string
	listeners map[int]func(id string)
	nextToken int
	sub       *nats.Subscription
}

// NewListener creates a Listener over an established NATS connection.
// app names the white-label build registering with the broker.
func NewListener(conn *nats.Conn, cache *inbox.Cache, app string) *Listener {
	return &Listener{
		conn:      conn,
		cache:     cache,
		app:       app,
		listeners: make(map[int]func(string)),
	}
}

// Start registers with the broker in the background. The subscription id
// and the message subscription become available once the broker replies;
// Start itself does not block.
func (l *Listener) Start(ctx context.Context) {
	go func() {
		if err := l.register(ctx); err != nil {
			log.Printf("push: broker registration failed: %v", err)
		}
	}()
}

func (l *Listener) register(ctx context.Context) error {
	reqBody, err := json.Marshal(registerRequest{App: l.app, Platform: runtime.GOOS})
	if err != nil {
		return fmt.Errorf("encode register request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, registerTimeout)
	defer cancel()

	msg, err := l.conn.RequestWithContext(ctx, registerSubject, reqBody)
	if err != nil {
		return fmt.Errorf("request subscription id: %w", err)
	}

	var reply registerReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return fmt.Errorf("decode register reply: %w", err)
	}
	if reply.SubscriptionID == "" {
		return fmt.Errorf("broker returned empty subscription id")
	}

	sub, err := l.conn.Subscribe(messageSubjectPrefix+reply.SubscriptionID, l.handleMessage)
	if err != nil {
		return fmt.Errorf("subscribe to message subject: %w", err)
	}

	l.mu.Lock()
	l.id = reply.SubscriptionID
	l.sub = sub
	fns := make([]func(string), 0, len(l.listeners))
	for _, fn := range l.listeners {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	log.Printf("push: registered, subscription id %s", reply.SubscriptionID)
	for _, fn := range fns {
		fn(reply.SubscriptionID)
	}
	return nil
}

// handleMessage appends one inbound notification to the inbox. Undecodable
// payloads are logged and dropped; a failed append is logged, the broker is
// not nacked (plain NATS, at-most-once).
func (l *Listener) handleMessage(msg *nats.Msg) {
	n, err := decodePayload(msg.Data)
	if err != nil {
		log.Printf("push: dropping message: %v", err)
		return
	}
	if _, err := l.cache.Append(context.Background(), n); err != nil {
		log.Printf("push: failed to store message: %v", err)
	}
}

// Handle feeds one already-decoded notification into the inbox. The webhook
// inbound path uses it so both transports share the same append semantics.
func (l *Listener) Handle(ctx context.Context, n model.Notification) (model.Message, error) {
	return l.cache.Append(ctx, n)
}

// CurrentID returns the subscription id when registration has completed.
func (l *Listener) CurrentID() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.id, l.id != ""
}

// OnIDAvailable registers fn to run once the subscription id is known. The
// returned cancel func releases the listener; it is safe to call after the
// callback fired.
func (l *Listener) OnIDAvailable(fn func(id string)) (cancel func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	token := l.nextToken
	l.nextToken++
	l.listeners[token] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.listeners, token)
	}
}

// Close drops the message subscription. The NATS connection belongs to the
// caller and is not closed here.
func (l *Listener) Close() {
	l.mu.Lock()
	sub := l.sub
	l.sub = nil
	l.mu.Unlock()
	if sub != nil {
		_ = sub.Unsubscribe()
	}
}
