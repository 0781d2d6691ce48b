package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"availability-service/internal/storage"
	"availability-service/internal/storage/memory"
	"availability-service/pkg/response"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestJSONRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := memory.New()

	require.NoError(t, storage.SetJSON(ctx, kv, "k", payload{Name: "bike", Count: 3}))

	var got payload
	found, err := storage.GetJSON(ctx, kv, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, payload{Name: "bike", Count: 3}, got)
}

func TestGetJSON_Missing(t *testing.T) {
	t.Parallel()

	var got payload
	found, err := storage.GetJSON(context.Background(), memory.New(), "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetJSON_Corrupt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := memory.New()
	require.NoError(t, kv.Set(ctx, "k", []byte("{not json")))

	var got payload
	_, err := storage.GetJSON(ctx, kv, "k", &got)
	require.Error(t, err)
}

func TestMemory_GetReturnsNotFound(t *testing.T) {
	t.Parallel()

	_, err := memory.New().Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, response.ErrNotFound))
}

func TestMemory_ValuesAreCopied(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := memory.New()

	in := []byte("abc")
	require.NoError(t, kv.Set(ctx, "k", in))
	in[0] = 'z'

	out, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(out))

	out[1] = 'z'
	again, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}
