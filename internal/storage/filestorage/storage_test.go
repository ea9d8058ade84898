package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"prompt_gallery/internal/lib/logger/handlers/slogdiscard"
	"prompt_gallery/internal/storage"
	filestorage "prompt_gallery/internal/storage/filestorage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupFileStorage(t *testing.T) (*filestorage.LocalFileStorage, string) {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "generated_images")

	return filestorage.NewLocalFileStorage(slogdiscard.NewDiscardLogger(), dir), dir
}

func writeImage(t *testing.T, dir, name string, mtime time.Time) {
	t.Helper()

	require.NoError(t, os.MkdirAll(dir, 0755))

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("img:"+name), 0644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestLocalFileStorage_List(t *testing.T) {
	ctx := context.Background()
	base := time.Unix(1700000000, 0)

	t.Run("creates missing directory", func(t *testing.T) {
		fs, dir := setupFileStorage(t)

		list, err := fs.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("filters by extension and sorts newest first", func(t *testing.T) {
		fs, dir := setupFileStorage(t)

		writeImage(t, dir, "old_fox_1.png", base)
		writeImage(t, dir, "new_fox_3.JPG", base.Add(2*time.Second))
		writeImage(t, dir, "mid_fox_2.webp", base.Add(time.Second))
		writeImage(t, dir, "notes_4.txt", base.Add(3*time.Second))
		writeImage(t, dir, "anim_5.gif", base.Add(4*time.Second))
		require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.png"), 0755))

		list, err := fs.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)

		assert.Equal(t, "new_fox_3.JPG", list[0].Name)
		assert.Equal(t, "mid_fox_2.webp", list[1].Name)
		assert.Equal(t, "old_fox_1.png", list[2].Name)

		assert.Equal(t, "new fox", list[0].Prompt)
		assert.Equal(t, filepath.ToSlash(filepath.Join(dir, "new_fox_3.JPG")), list[0].Path)
		assert.True(t, list[0].CreatedAt.Equal(base.Add(2*time.Second)))
		assert.False(t, list[0].Selected)
	})

	t.Run("unreadable directory", func(t *testing.T) {
		if runtime.GOOS == "windows" || os.Getuid() == 0 {
			t.Skip("permissions are not enforced")
		}

		fs, dir := setupFileStorage(t)
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, os.Chmod(dir, 0000))
		t.Cleanup(func() { _ = os.Chmod(dir, 0755) })

		_, err := fs.List(ctx)
		assert.ErrorIs(t, err, storage.ErrStoreUnavailable)
	})

	t.Run("canceled context", func(t *testing.T) {
		fs, _ := setupFileStorage(t)

		ctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := fs.List(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestPromptFromFilename(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"sunset over hills_1700000000000.png", "sunset over hills"},
		{"a_red_fox_1700000000000.jpeg", "a red fox"},
		{"nounderscore.png", ""},
		{"_123.png", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, filestorage.PromptFromFilename(tt.name))
		})
	}
}

func TestLocalFileStorage_Read(t *testing.T) {
	ctx := context.Background()
	fs, dir := setupFileStorage(t)

	writeImage(t, dir, "fox_1.png", time.Now())
	writeImage(t, dir, "fox_2.webp", time.Now())
	writeImage(t, dir, "fox_3.jpg", time.Now())

	t.Run("path from list", func(t *testing.T) {
		data, ct, err := fs.Read(ctx, filepath.ToSlash(filepath.Join(dir, "fox_1.png")))
		require.NoError(t, err)
		assert.Equal(t, "img:fox_1.png", string(data))
		assert.Equal(t, "image/png", ct)
	})

	t.Run("backend event path", func(t *testing.T) {
		data, ct, err := fs.Read(ctx, "/generated_images/fox_2.webp")
		require.NoError(t, err)
		assert.Equal(t, "img:fox_2.webp", string(data))
		assert.Equal(t, "image/webp", ct)
	})

	t.Run("default content type", func(t *testing.T) {
		_, ct, err := fs.Read(ctx, "fox_3.jpg")
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", ct)
	})

	t.Run("traversal rejected before read", func(t *testing.T) {
		_, _, err := fs.Read(ctx, "../../etc/passwd")
		assert.ErrorIs(t, err, storage.ErrInvalidPath)

		_, _, err = fs.Read(ctx, "generated_images/../../secret.png")
		assert.ErrorIs(t, err, storage.ErrInvalidPath)
	})

	t.Run("empty path", func(t *testing.T) {
		_, _, err := fs.Read(ctx, "  ")
		assert.ErrorIs(t, err, storage.ErrInvalidPath)
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := fs.Read(ctx, "ghost_1.png")
		assert.ErrorIs(t, err, storage.ErrFileNotFound)
	})
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/png", filestorage.ContentType("a.PNG"))
	assert.Equal(t, "image/webp", filestorage.ContentType("a.webp"))
	assert.Equal(t, "image/gif", filestorage.ContentType("a.gif"))
	assert.Equal(t, "image/jpeg", filestorage.ContentType("a.jpeg"))
	assert.Equal(t, "image/jpeg", filestorage.ContentType("a"))
}

func TestHasTraversal(t *testing.T) {
	assert.True(t, filestorage.HasTraversal("../../etc/passwd"))
	assert.True(t, filestorage.HasTraversal("a/../../b"))
	assert.False(t, filestorage.HasTraversal("a/../b"))
	assert.False(t, filestorage.HasTraversal("fox..final_1.png"))
	assert.False(t, filestorage.HasTraversal("generated_images/fox_1.png"))
}

func TestLocalFileStorage_Clear(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes every file", func(t *testing.T) {
		fs, dir := setupFileStorage(t)

		writeImage(t, dir, "a_1.png", time.Now())
		writeImage(t, dir, "b_2.png", time.Now())
		writeImage(t, dir, "c_3.jpg", time.Now())

		deleted, err := fs.Clear(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, deleted)

		list, err := fs.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("missing directory is not an error", func(t *testing.T) {
		fs, _ := setupFileStorage(t)

		assert.False(t, fs.Exists(ctx))

		deleted, err := fs.Clear(ctx)
		require.NoError(t, err)
		assert.Zero(t, deleted)
	})

	t.Run("skips subdirectories", func(t *testing.T) {
		fs, dir := setupFileStorage(t)

		writeImage(t, dir, "a_1.png", time.Now())
		require.NoError(t, os.Mkdir(filepath.Join(dir, "keep"), 0755))

		deleted, err := fs.Clear(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)
		assert.True(t, fs.Exists(ctx))
	})
}

func TestLocalFileStorage_DeleteThroughInterface(t *testing.T) {
	ctx := context.Background()
	local, dir := setupFileStorage(t)
	writeImage(t, dir, "a_red_fox_1.png", time.Unix(1700000000, 0))

	var fs filestorage.FileStorage = local

	require.NoError(t, fs.Delete(ctx, "a_red_fox_1.png"))

	_, err := os.Stat(filepath.Join(dir, "a_red_fox_1.png"))
	assert.True(t, os.IsNotExist(err))

	list, err := fs.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestLocalFileStorage_GetFullPath(t *testing.T) {
	fs, _ := setupFileStorage(t)

	t.Run("returns correct path", func(t *testing.T) {
		expected := filepath.Join(fs.GetBaseDir(), "fox_1.png")
		assert.Equal(t, expected, fs.GetFullPath("fox_1.png"))
	})
}
