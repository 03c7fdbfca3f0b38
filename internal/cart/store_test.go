package cart

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedisStore creates a miniredis server and a Store on top of it.
func setupRedisStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewStore(NewRedisSlot(client, 0)), mr
}

func TestStore_AddPersistsWholeCart(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	_, err := store.Add(ctx, "s1", margherita())
	require.NoError(t, err)
	c, err := store.Add(ctx, "s1", Item{PizzaID: "p2", Name: "Farmhouse", Qty: 1, Price: 320})
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	raw, err := mr.Get("cart:s1")
	require.NoError(t, err)
	decoded, ok := Decode(raw)
	require.True(t, ok)
	assert.Equal(t, c.Items(), decoded.Items())
	assert.Equal(t, 0, int(mr.TTL("cart:s1")), "carts persist until cleared")
}

func TestStore_SessionsAreIsolated(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	_, err := store.Add(ctx, "s1", margherita())
	require.NoError(t, err)

	other, err := store.Load(ctx, "s2")
	require.NoError(t, err)
	assert.True(t, other.IsEmpty())
}

func TestStore_MalformedPayloadLoadsEmpty(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("cart:s1", "<<garbage>>"))

	c, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())

	// the next mutation overwrites the bad payload with a valid envelope
	c, err = store.Add(ctx, "s1", margherita())
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
}

func TestStore_RemoveOutOfRangeWritesNothing(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	_, err := store.Add(ctx, "s1", margherita())
	require.NoError(t, err)
	before, _ := mr.Get("cart:s1")

	_, err = store.Remove(ctx, "s1", 3)
	assert.ErrorIs(t, err, ErrOutOfRange)

	after, _ := mr.Get("cart:s1")
	assert.Equal(t, before, after)
}

func TestStore_RemoveAndClear(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	_, _ = store.Add(ctx, "s1", margherita())
	_, _ = store.Add(ctx, "s1", Item{PizzaID: "p2", Name: "Farmhouse", Qty: 1, Price: 320})

	c, err := store.Remove(ctx, "s1", 0)
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())
	assert.Equal(t, "p2", c.Items()[0].PizzaID)

	require.NoError(t, store.Clear(ctx, "s1"))
	assert.False(t, mr.Exists("cart:s1"))
}

func TestStore_RedisDownIsAnError(t *testing.T) {
	store, mr := setupRedisStore(t)
	mr.Close()

	_, err := store.Load(context.Background(), "s1")
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestMemorySlot(t *testing.T) {
	store := NewStore(NewMemorySlot())
	ctx := context.Background()

	c, err := store.Add(ctx, "s1", margherita())
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, c.Items(), loaded.Items())

	require.NoError(t, store.Clear(ctx, "s1"))
	loaded, err = store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, loaded.IsEmpty())
}

func addConcurrently(t *testing.T, store *Store, n int) {
	t.Helper()
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Add(context.Background(), "s1", Item{PizzaID: fmt.Sprintf("p%d", i), Name: "Margherita", Qty: 1, Price: 250})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestStore_ConcurrentAddsKeepEveryLine(t *testing.T) {
	t.Run("redis", func(t *testing.T) {
		store, _ := setupRedisStore(t)
		addConcurrently(t, store, 8)

		c, err := store.Load(context.Background(), "s1")
		require.NoError(t, err)
		assert.Equal(t, 8, c.Len())
	})

	t.Run("memory", func(t *testing.T) {
		store := NewStore(NewMemorySlot())
		addConcurrently(t, store, 32)

		c, err := store.Load(context.Background(), "s1")
		require.NoError(t, err)
		assert.Equal(t, 32, c.Len())
	})
}

func TestRedisSlot_UpdateRetriesAfterConflict(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	slot := NewRedisSlot(client, 0)
	ctx := context.Background()

	attempts := 0
	err := slot.Update(ctx, "k", func(current string, ok bool) (string, error) {
		attempts++
		if attempts == 1 {
			// another writer lands between WATCH and EXEC
			require.NoError(t, client.Set(ctx, "k", "other", 0).Err())
		}
		return current + "+mine", nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	got, _ := mr.Get("k")
	assert.Equal(t, "other+mine", got)
}
