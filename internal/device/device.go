// Package device defines the contract with the push subsystem's identity,
// a stable subscription id representing this installation.
package device

import (
	"context"
	"errors"
	"time"
)

// DefaultAwaitTimeout bounds how long Await blocks for an identity.
const DefaultAwaitTimeout = 10 * time.Second

// ErrUnavailable is returned when no identity arrives within the wait
// window. It is distinct from provider errors so callers can suggest
// checking connectivity.
var ErrUnavailable = errors.New("device identity unavailable")

// IdentityProvider exposes the push subscription id. CurrentID is a
// non-blocking check; OnIDAvailable registers a callback fired when an id
// becomes known and returns a cancel func that must be called to release
// the listener.
type IdentityProvider interface {
	CurrentID() (string, bool)
	OnIDAvailable(fn func(id string)) (cancel func())
}

// Await resolves the device identity with a bounded wait. It checks
// CurrentID first; when empty it subscribes for the id and waits up to
// timeout (DefaultAwaitTimeout when timeout is zero). The listener is
// released on success, timeout and context cancellation alike.
func Await(ctx context.Context, p IdentityProvider, timeout time.Duration) (string, error) {
	if id, ok := p.CurrentID(); ok && id != "" {
		return id, nil
	}

	if timeout == 0 {
		timeout = DefaultAwaitTimeout
	}
	ctx, cancelCtx := context.WithTimeout(ctx, timeout)
	defer cancelCtx()

	ids := make(chan string, 1)
	cancel := p.OnIDAvailable(func(id string) {
		select {
		case ids <- id:
		default:
		}
	})
	defer cancel()

	// The id may have arrived between the check and the subscription.
	if id, ok := p.CurrentID(); ok && id != "" {
		return id, nil
	}

	select {
	case id := <-ids:
		if id == "" {
			return "", ErrUnavailable
		}
		return id, nil
	case <-ctx.Done():
		return "", ErrUnavailable
	}
}
