package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T, opts ...StoreOption) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewRedisStoreFromClient(client, opts...)
	require.NoError(t, err)
	return store, mr
}

func TestRedisStoreRedisKey(t *testing.T) {
	t.Parallel()

	store := &RedisStore{keyPrefix: defaultStoreKeyPrefix}
	got, err := store.redisKey("abc")
	require.NoError(t, err)
	assert.Equal(t, "library:conversation:abc", got)

	_, err = store.redisKey("   ")
	assert.ErrorIs(t, err, ErrInvalidConversation)
}

func TestRedisStoreSaveAndLoad(t *testing.T) {
	t.Parallel()

	store, mr := newTestRedisStore(t, WithTTL(time.Hour))
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	conv := NewConversation("thread-1", "Ana@Example.com", now)
	conv.Append(RoleRequester, "Quiero reservar 1984", now)
	conv.Append(RoleAgent, "Reserva confirmada", now.Add(time.Second))
	require.NoError(t, store.Save(ctx, conv))

	assert.True(t, mr.Exists("library:conversation:thread-1"))
	assert.Equal(t, time.Hour, mr.TTL("library:conversation:thread-1"))

	loaded, err := store.Load(ctx, "thread-1")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", loaded.Sender)
	require.Len(t, loaded.Turns, 2)
	assert.Equal(t, RoleAgent, loaded.Turns[1].Role)
}

func TestRedisStoreLoadMissing(t *testing.T) {
	t.Parallel()

	store, _ := newTestRedisStore(t)
	_, err := store.Load(context.Background(), "nope")
	if !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("Load() error = %v, want ErrConversationNotFound", err)
	}
}

func TestRedisStoreLoadRejectsCorruptPayload(t *testing.T) {
	t.Parallel()

	store, mr := newTestRedisStore(t)
	require.NoError(t, mr.Set("library:conversation:bad", `{"id":"bad","sender":""}`))

	_, err := store.Load(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrInvalidSender)
}

func TestRedisStoreDelete(t *testing.T) {
	t.Parallel()

	store, mr := newTestRedisStore(t, WithKeyPrefix("test:"))
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, NewConversation("c1", "a@b.c", time.Now())))
	require.True(t, mr.Exists("test:c1"))

	require.NoError(t, store.Delete(ctx, "c1"))
	assert.False(t, mr.Exists("test:c1"))
}

func TestRedisStoreUnreachable(t *testing.T) {
	t.Parallel()

	store, mr := newTestRedisStore(t)
	mr.Close()

	err := store.Ping(context.Background())
	assert.Error(t, err)
}

func TestConversationAppendKeepsNewestTurns(t *testing.T) {
	t.Parallel()

	now := time.Now()
	conv := NewConversation("c", "a@b.c", now)
	for i := 0; i < MaxTurns+3; i++ {
		conv.Append(RoleRequester, string(rune('a'+i)), now)
	}
	require.Len(t, conv.Turns, MaxTurns)
	assert.Equal(t, "d", conv.Turns[0].Text)
	assert.Equal(t, []Turn{conv.Turns[MaxTurns-1]}, conv.Recent(1))

	conv.Append(RoleAgent, "   ", now)
	assert.Len(t, conv.Turns, MaxTurns)
}

func TestMemoryStoreIsolatesCopies(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()
	conv := NewConversation("c", "a@b.c", time.Now())
	conv.Append(RoleRequester, "hola", time.Now())
	require.NoError(t, store.Save(ctx, conv))

	conv.Turns[0].Text = "mutated"
	loaded, err := store.Load(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "hola", loaded.Turns[0].Text)
}
