package memstore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenStore_SetGetClear(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "sess")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "sess", "tok"))
	token, ok, err := store.Get(ctx, "sess")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", token)

	require.NoError(t, store.Clear(ctx, "sess"))
	_, ok, _ = store.Get(ctx, "sess")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestTokenStore_RejectsEmpty(t *testing.T) {
	store := NewTokenStore()
	require.Error(t, store.Set(context.Background(), "", "tok"))
	require.Error(t, store.Set(context.Background(), "sess", ""))
}

func TestTokenStore_ConcurrentAccess(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("sess-%d", i)
			assert.NoError(t, store.Set(ctx, id, "tok"))
			_, _, _ = store.Get(ctx, id)
			if i%2 == 0 {
				assert.NoError(t, store.Clear(ctx, id))
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 25, store.Len())
}
