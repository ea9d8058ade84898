package cache

import (
	"context"
	"log/slog"
	"time"

	"prompt_gallery/internal/domain/models"
	filestorage "prompt_gallery/internal/storage/filestorage"

	gocache "github.com/patrickmn/go-cache"
)

type cachedImage struct {
	data        []byte
	contentType string
}

// ImageCache кэширует Read поверх файлового хранилища.
// Файлы изображений не меняются после записи, поэтому инвалидация нужна только при Clear.
type ImageCache struct {
	filestorage.FileStorage

	log   *slog.Logger
	cache *gocache.Cache
}

func NewImageCache(log *slog.Logger, fs filestorage.FileStorage, ttl, cleanupInterval time.Duration) *ImageCache {
	return &ImageCache{
		FileStorage: fs,
		log:         log,
		cache:       gocache.New(ttl, cleanupInterval),
	}
}

func (c *ImageCache) Read(ctx context.Context, path string) ([]byte, string, error) {
	key := models.ArtifactKey(path)

	if v, ok := c.cache.Get(key); ok {
		img := v.(cachedImage)
		return img.data, img.contentType, nil
	}

	data, contentType, err := c.FileStorage.Read(ctx, path)
	if err != nil {
		return nil, "", err
	}

	c.cache.SetDefault(key, cachedImage{data: data, contentType: contentType})

	return data, contentType, nil
}

func (c *ImageCache) Clear(ctx context.Context) (int, error) {
	deleted, err := c.FileStorage.Clear(ctx)

	// сбрасываем даже при частичной ошибке: часть файлов уже удалена
	c.cache.Flush()
	c.log.Debug("image cache flushed", slog.Int("deleted", deleted))

	return deleted, err
}

func (c *ImageCache) Len() int {
	return c.cache.ItemCount()
}
