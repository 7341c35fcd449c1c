package inbox

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushdeck/agent/internal/bus"
	"github.com/pushdeck/agent/internal/kv"
	"github.com/pushdeck/agent/internal/model"
)

func newTestCache(t *testing.T) (*Cache, *kv.MemoryStore, *bus.Bus) {
	t.Helper()
	store := kv.NewMemoryStore()
	b := bus.New()
	return New(store, b), store, b
}

func TestAppend_assignsFieldsAndEmits(t *testing.T) {
	c, _, b := newTestCache(t)
	ctx := context.Background()

	emitted := 0
	b.Subscribe(bus.EventNewMessage, func(any) { emitted++ })

	msg, err := c.Append(ctx, model.Notification{ProviderID: "m-1", Title: "hi", Body: "body"})
	require.NoError(t, err)

	assert.Equal(t, "m-1", msg.ID)
	assert.False(t, msg.Read)
	assert.False(t, msg.ReceivedAt.IsZero())
	assert.Equal(t, 1, emitted, "append must emit newMessage")
}

func TestAppend_generatesIDWhenProviderIDMissing(t *testing.T) {
	c, _, _ := newTestCache(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	msg, err := c.Append(context.Background(), model.Notification{Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatInt(fixed.UnixMilli(), 10), msg.ID)
}

func TestAppend_fifoEvictionAtCapacity(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	c.now = func() time.Time { return clock }

	for i := 0; i < MaxMessages+1; i++ {
		clock = base.Add(time.Duration(i) * time.Second)
		_, err := c.Append(ctx, model.Notification{ProviderID: fmt.Sprintf("m-%d", i)})
		require.NoError(t, err)
	}

	got, err := c.Query(ctx, 365)
	require.NoError(t, err)
	require.Len(t, got, MaxMessages, "inbox must never exceed its capacity")

	// newest first: m-200 down to m-1; m-0 evicted
	assert.Equal(t, "m-200", got[0].ID)
	assert.Equal(t, "m-1", got[len(got)-1].ID, "oldest survivor must be the second message ever appended")
	for _, m := range got {
		assert.NotEqual(t, "m-0", m.ID, "first message must have been evicted")
	}
}

func TestAppend_readStatusDoesNotProtectFromEviction(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	_, err := c.Append(ctx, model.Notification{ProviderID: "old-read"})
	require.NoError(t, err)
	require.NoError(t, c.MarkRead(ctx, "old-read"))

	for i := 0; i < MaxMessages; i++ {
		_, err := c.Append(ctx, model.Notification{ProviderID: fmt.Sprintf("m-%d", i)})
		require.NoError(t, err)
	}

	got, err := c.Query(ctx, 365)
	require.NoError(t, err)
	for _, m := range got {
		assert.NotEqual(t, "old-read", m.ID, "eviction is strict FIFO, read state is irrelevant")
	}
}

func TestMarkRead_setsFlagAndPersists(t *testing.T) {
	c, store, _ := newTestCache(t)
	ctx := context.Background()

	_, err := c.Append(ctx, model.Notification{ProviderID: "m-1"})
	require.NoError(t, err)
	require.NoError(t, c.MarkRead(ctx, "m-1"))

	// reload through a fresh cache over the same store
	reloaded := New(store, bus.New())
	got, err := reloaded.Query(ctx, 365)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Read)
}

func TestMarkRead_unknownIDIsNoop(t *testing.T) {
	c, store, _ := newTestCache(t)
	ctx := context.Background()

	_, err := c.Append(ctx, model.Notification{ProviderID: "m-1"})
	require.NoError(t, err)
	before, _ := store.Get(ctx, kv.KeyMessages)

	require.NoError(t, c.MarkRead(ctx, "does-not-exist"))

	after, _ := store.Get(ctx, kv.KeyMessages)
	assert.Equal(t, before, after, "unknown id must leave stored state untouched")
}

func TestQuery_ageFilterInclusiveBoundaryAndOrder(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	clock := now.AddDate(0, 0, -10)
	c.now = func() time.Time { return clock }

	// ten days old, exactly seven days old, fresh
	_, err := c.Append(ctx, model.Notification{ProviderID: "too-old"})
	require.NoError(t, err)
	clock = now.AddDate(0, 0, -7)
	_, err = c.Append(ctx, model.Notification{ProviderID: "boundary"})
	require.NoError(t, err)
	clock = now
	_, err = c.Append(ctx, model.Notification{ProviderID: "fresh"})
	require.NoError(t, err)

	got, err := c.Query(ctx, 7)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "fresh", got[0].ID, "newest first")
	assert.Equal(t, "boundary", got[1].ID, "message exactly maxAgeDays old is included")
}

func TestQuery_idempotentAndNonMutating(t *testing.T) {
	c, store, _ := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := c.Append(ctx, model.Notification{ProviderID: fmt.Sprintf("m-%d", i)})
		require.NoError(t, err)
	}
	before, _ := store.Get(ctx, kv.KeyMessages)

	first, err := c.Query(ctx, 7)
	require.NoError(t, err)
	second, err := c.Query(ctx, 7)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	after, _ := store.Get(ctx, kv.KeyMessages)
	assert.Equal(t, before, after, "query must not write")
}

func TestRoundTrip_reloadReproducesAppendedMessages(t *testing.T) {
	c, store, _ := newTestCache(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 20; i++ {
		msg, err := c.Append(ctx, model.Notification{ProviderID: fmt.Sprintf("m-%d", i)})
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}

	reloaded := New(store, bus.New())
	got, err := reloaded.Query(ctx, 365)
	require.NoError(t, err)
	require.Len(t, got, len(ids))

	// Query returns newest first; reverse back to insertion order.
	for i, id := range ids {
		m := got[len(got)-1-i]
		assert.Equal(t, id, m.ID)
		assert.False(t, m.Read)
	}
}

func TestLoad_unparsableStateYieldsEmpty(t *testing.T) {
	c, store, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, kv.KeyMessages, "{not json"))

	got, err := c.Query(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, got)

	// appending over garbage starts a fresh list instead of failing
	_, err = c.Append(ctx, model.Notification{ProviderID: "m-1"})
	require.NoError(t, err)
	got, err = c.Query(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestLoad_migratesLegacyArrayFormat(t *testing.T) {
	c, store, _ := newTestCache(t)
	ctx := context.Background()

	legacy := `[{"id":"prov-1","title":"a","message":"body-a","readed":true,"date":"2026-03-01T10:00:00Z"},` +
		`{"id":1767261600000,"title":"b","message":"body-b","readed":false,"date":"2026-03-01T11:00:00Z"}]`
	require.NoError(t, store.Set(ctx, kv.KeyMessages, legacy))

	got, err := c.Query(ctx, 36500)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "prov-1", got[1].ID)
	assert.True(t, got[1].Read)
	assert.Equal(t, "body-a", got[1].Body)
	assert.Equal(t, "1767261600000", got[0].ID, "numeric legacy ids become strings")
}

func TestUnread_countsOnlyUnread(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.Append(ctx, model.Notification{ProviderID: fmt.Sprintf("m-%d", i)})
		require.NoError(t, err)
	}
	require.NoError(t, c.MarkRead(ctx, "m-1"))

	n, err := c.Unread(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestClear_emptiesInbox(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	_, err := c.Append(ctx, model.Notification{ProviderID: "m-1"})
	require.NoError(t, err)
	require.NoError(t, c.Clear(ctx))

	got, err := c.Query(ctx, 365)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// failingStore wraps a store and fails writes.
type failingStore struct {
	kv.Store
}

func (f *failingStore) Set(context.Context, string, string) error {
	return errors.New("disk full")
}

func TestAppend_writeFailurePropagatesAndDoesNotEmit(t *testing.T) {
	b := bus.New()
	c := New(&failingStore{Store: kv.NewMemoryStore()}, b)

	emitted := 0
	b.Subscribe(bus.EventNewMessage, func(any) { emitted++ })

	_, err := c.Append(context.Background(), model.Notification{ProviderID: "m-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist messages")
	assert.Equal(t, 0, emitted, "failed append must not announce a new message")
}
