package device

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider is a scriptable IdentityProvider.
type fakeProvider struct {
	mu        sync.Mutex
	id        string
	listeners map[int]func(string)
	nextToken int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{listeners: map[int]func(string){}}
}

func (p *fakeProvider) CurrentID() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.id, p.id != ""
}

func (p *fakeProvider) OnIDAvailable(fn func(string)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	token := p.nextToken
	p.nextToken++
	p.listeners[token] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, token)
	}
}

func (p *fakeProvider) publish(id string) {
	p.mu.Lock()
	p.id = id
	fns := make([]func(string), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(id)
	}
}

func (p *fakeProvider) listenerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

func TestAwait_immediateIDSkipsSubscription(t *testing.T) {
	p := newFakeProvider()
	p.id = "dev-abc"

	id, err := Await(context.Background(), p, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "dev-abc", id)
	assert.Equal(t, 0, p.listenerCount())
}

func TestAwait_resolvesWhenIDArrivesLater(t *testing.T) {
	p := newFakeProvider()

	go func() {
		time.Sleep(20 * time.Millisecond)
		p.publish("dev-late")
	}()

	id, err := Await(context.Background(), p, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "dev-late", id)
	assert.Equal(t, 0, p.listenerCount(), "listener must be released on success")
}

func TestAwait_timeoutReturnsErrUnavailable(t *testing.T) {
	p := newFakeProvider()

	start := time.Now()
	_, err := Await(context.Background(), p, 30*time.Millisecond)
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Less(t, time.Since(start), time.Second, "must not wait past the window")
	assert.Equal(t, 0, p.listenerCount(), "listener must be released on timeout")
}

func TestAwait_contextCancellation(t *testing.T) {
	p := newFakeProvider()
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := Await(ctx, p, time.Minute)
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 0, p.listenerCount())
}
