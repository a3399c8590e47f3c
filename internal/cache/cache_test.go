package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/casadx/pedidos/internal/config"
)

type mapStore struct {
	data map[string][]byte
	gens map[string]int64
}

func newMapStore() *mapStore {
	return &mapStore{data: map[string][]byte{}, gens: map[string]int64{}}
}

func (m *mapStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return v, nil
}

func (m *mapStore) Generation(_ context.Context, key string) (int64, error) {
	return m.gens[key], nil
}

func (m *mapStore) Invalidate(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.gens[k]++
		delete(m.data, k)
	}
	return nil
}

func (m *mapStore) Fill(_ context.Context, key string, value []byte, _ time.Duration, gen int64) (bool, error) {
	if m.gens[key] != gen {
		return false, nil
	}
	m.data[key] = value
	return true, nil
}

func TestJSONHelpersRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()

	type entry struct {
		Estado string `json:"estado"`
	}
	stored, err := FillJSON(ctx, store, "pedidos:1", entry{Estado: "PENDIENTE"}, time.Minute, 0)
	require.NoError(t, err)
	require.True(t, stored)

	var got entry
	require.NoError(t, GetJSON(ctx, store, "pedidos:1", &got))
	assert.Equal(t, "PENDIENTE", got.Estado)

	require.NoError(t, store.Invalidate(ctx, "pedidos:1"))
	assert.ErrorIs(t, GetJSON(ctx, store, "pedidos:1", &got), ErrCacheMiss)
}

func TestGetJSONReportsCorruptEntries(t *testing.T) {
	store := newMapStore()
	store.data["k"] = []byte("{not json")
	var dst map[string]any
	err := GetJSON(context.Background(), store, "k", &dst)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestNoopStoreAlwaysMisses(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	store, err := NewStore(lc, config.Config{Cache: config.Cache{Driver: "noop"}}, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.NoError(t, store.Invalidate(ctx, "k", "other"))
	gen, err := store.Generation(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, gen)
	stored, err := FillJSON(ctx, store, "k", "v", time.Minute, gen)
	require.NoError(t, err)
	assert.False(t, stored)

	assert.ErrorIs(t, GetJSON(ctx, nil, "k", &struct{}{}), ErrCacheMiss)
}

func TestNewStoreRejectsUnknownDriver(t *testing.T) {
	_, err := NewStore(fxtest.NewLifecycle(t), config.Config{Cache: config.Cache{Driver: "memcached"}}, zap.NewNop())
	assert.Error(t, err)
}

func TestFillJSONSkipsAfterInvalidate(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()

	gen, err := store.Generation(ctx, KeyPedido(1))
	require.NoError(t, err)
	require.NoError(t, store.Invalidate(ctx, KeyPedido(1)))

	stored, err := FillJSON(ctx, store, KeyPedido(1), map[string]string{"estado": "PENDIENTE"}, time.Minute, gen)
	require.NoError(t, err)
	assert.False(t, stored)
	_, err = store.Get(ctx, KeyPedido(1))
	assert.ErrorIs(t, err, ErrCacheMiss)

	gen, err = store.Generation(ctx, KeyPedido(1))
	require.NoError(t, err)
	stored, err = FillJSON(ctx, store, KeyPedido(1), map[string]string{"estado": "ENTREGADO"}, time.Minute, gen)
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = FillJSON(ctx, nil, KeyPedido(1), "x", time.Minute, 0)
	require.NoError(t, err)
	assert.False(t, stored)
}
