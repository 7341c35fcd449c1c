package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmit_deliveryInSubscriptionOrder(t *testing.T) {
	b := New()
	var order []int
	b.Subscribe("evt", func(any) { order = append(order, 1) })
	b.Subscribe("evt", func(any) { order = append(order, 2) })
	b.Subscribe("evt", func(any) { order = append(order, 3) })

	b.Emit("evt", nil)

	assert.Equal(t, []int{1, 2, 3}, order, "handlers must run in subscription order")
}

func TestEmit_payloadPassedThrough(t *testing.T) {
	b := New()
	var got any
	b.Subscribe("evt", func(p any) { got = p })

	b.Emit("evt", "hello")

	assert.Equal(t, "hello", got)
}

func TestUnsubscribe_removesOnlyThatHandler(t *testing.T) {
	b := New()
	var first, second int
	tok := b.Subscribe("evt", func(any) { first++ })
	b.Subscribe("evt", func(any) { second++ })

	b.Emit("evt", nil)
	b.Unsubscribe("evt", tok)
	b.Emit("evt", nil)

	assert.Equal(t, 1, first, "unsubscribed handler must not run again")
	assert.Equal(t, 2, second)
}

func TestUnsubscribe_unknownTokenIgnored(t *testing.T) {
	b := New()
	b.Subscribe("evt", func(any) {})
	assert.NotPanics(t, func() { b.Unsubscribe("evt", Token("nope")) })
	assert.NotPanics(t, func() { b.Unsubscribe("other", Token("nope")) })
}

func TestEmit_noLateSubscriberReplay(t *testing.T) {
	b := New()
	b.Emit("evt", nil) // nobody listening, nothing buffered

	calls := 0
	b.Subscribe("evt", func(any) { calls++ })
	assert.Equal(t, 0, calls, "late subscriber must not see earlier events")
}

func TestEmit_handlerMaySubscribeDuringDelivery(t *testing.T) {
	b := New()
	calls := 0
	b.Subscribe("evt", func(any) {
		b.Subscribe("evt", func(any) { calls++ })
	})

	assert.NotPanics(t, func() { b.Emit("evt", nil) })
	assert.Equal(t, 0, calls, "subscription made during delivery applies to later emits only")

	b.Emit("evt", nil)
	assert.Equal(t, 1, calls)
}
