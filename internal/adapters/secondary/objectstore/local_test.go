package objectstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apartment-valuation-service/internal/core/domain"
)

func TestLocalStore_PutGet(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "models/2025-01-01-00-00-00/model.json", []byte(`{"a":1}`)))
	body, err := store.Get(ctx, "models/2025-01-01-00-00-00/model.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(body))

	require.NoError(t, store.Put(ctx, "models/2025-01-01-00-00-00/model.json", []byte(`{"a":2}`)))
	body, err = store.Get(ctx, "models/2025-01-01-00-00-00/model.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(body))
}

func TestLocalStore_Missing(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "baseline/neighborhood_prices.json")
	assert.ErrorIs(t, err, domain.ErrObjectNotFound)

	ok, err := store.Exists(context.Background(), "baseline/neighborhood_prices.json")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalStore_ListSortedAndSkipsTemp(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root)
	require.NoError(t, err)
	ctx := context.Background()

	for _, k := range []string{
		"raw/2025-02-01-00-00-00/housing_data.csv",
		"raw/2025-01-01-00-00-00/housing_data.csv",
		"processed/2025-01-01-00-00-00/train.csv",
	} {
		require.NoError(t, store.Put(ctx, k, []byte("x")))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "raw", ".tmp-123"), []byte("partial"), 0o644))

	keys, err := store.List(ctx, "raw/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"raw/2025-01-01-00-00-00/housing_data.csv",
		"raw/2025-02-01-00-00-00/housing_data.csv",
	}, keys)
}

func TestLocalStore_RejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../outside.json", "/etc/passwd"} {
		assert.Error(t, store.Put(context.Background(), key, []byte("x")), key)
	}
}
