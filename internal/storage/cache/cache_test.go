package cache_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"prompt_gallery/internal/lib/logger/handlers/slogdiscard"
	"prompt_gallery/internal/storage"
	"prompt_gallery/internal/storage/cache"
	filestorage "prompt_gallery/internal/storage/filestorage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageCache(t *testing.T) {
	ctx := context.Background()
	log := slogdiscard.NewDiscardLogger()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fox_1.png"), []byte("v1"), 0644))

	c := cache.NewImageCache(log, filestorage.NewLocalFileStorage(log, dir), time.Minute, time.Minute)

	t.Run("read populates cache", func(t *testing.T) {
		data, ct, err := c.Read(ctx, "fox_1.png")
		require.NoError(t, err)
		assert.Equal(t, "v1", string(data))
		assert.Equal(t, "image/png", ct)
		assert.Equal(t, 1, c.Len())
	})

	t.Run("cached bytes are served", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "fox_1.png"), []byte("v2"), 0644))

		data, _, err := c.Read(ctx, "fox_1.png")
		require.NoError(t, err)
		assert.Equal(t, "v1", string(data))
	})

	t.Run("errors are not cached", func(t *testing.T) {
		_, _, err := c.Read(ctx, "../x.png")
		assert.ErrorIs(t, err, storage.ErrInvalidPath)
		assert.Equal(t, 1, c.Len())
	})

	t.Run("clear flushes", func(t *testing.T) {
		deleted, err := c.Clear(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)
		assert.Zero(t, c.Len())

		_, _, err = c.Read(ctx, "fox_1.png")
		assert.ErrorIs(t, err, storage.ErrFileNotFound)
	})
}
