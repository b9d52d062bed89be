package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalObjectStorage(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalObjectStorage(t.TempDir())
	require.NoError(t, err)

	key := "attachments/card1/att1/brief.pdf"

	t.Run("upload then exists", func(t *testing.T) {
		require.NoError(t, store.Upload(ctx, key, strings.NewReader("payload"), 7, "application/pdf"))
		exists, err := store.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, key))
		require.NoError(t, store.Delete(ctx, key))
		exists, err := store.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("rejects escaping keys", func(t *testing.T) {
		err := store.Upload(ctx, "../outside", strings.NewReader("x"), 1, "")
		assert.Error(t, err)
	})

	t.Run("rejects empty key", func(t *testing.T) {
		_, err := store.Exists(ctx, "")
		assert.Error(t, err)
	})
}
