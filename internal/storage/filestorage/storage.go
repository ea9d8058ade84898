package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"prompt_gallery/internal/domain/models"
	"prompt_gallery/internal/lib/logger/sl"
	"prompt_gallery/internal/storage"
)

// FileStorage интерфейс для работы с каталогом сгенерированных изображений
type FileStorage interface {
	List(ctx context.Context) ([]models.Artifact, error)
	Read(ctx context.Context, path string) ([]byte, string, error)
	Clear(ctx context.Context) (int, error)
	Exists(ctx context.Context) bool
	Delete(ctx context.Context, filePath string) error
}

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

// LocalFileStorage плоский каталог с файлами вида <slug>_<timestamp>.<ext>
type LocalFileStorage struct {
	log     *slog.Logger
	baseDir string // Базовый каталог (например: "generated_images")
}

// NewLocalFileStorage каталог не создается заранее: List создаст его сам,
// а Clear должен видеть, что каталога нет.
func NewLocalFileStorage(log *slog.Logger, baseDir string) *LocalFileStorage {
	return &LocalFileStorage{
		log:     log,
		baseDir: filepath.Clean(baseDir),
	}
}

// List возвращает изображения каталога, новые первыми
func (s *LocalFileStorage) List(ctx context.Context) ([]models.Artifact, error) {
	const op = "filestorage.List"

	log := s.log.With(
		slog.String("op", op),
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		log.Error("failed to create base dir", sl.Err(err))

		return nil, fmt.Errorf("%s: %w: %v", op, storage.ErrStoreUnavailable, err)
	}

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		log.Error("failed to read base dir", sl.Err(err))

		return nil, fmt.Errorf("%s: %w: %v", op, storage.ErrStoreUnavailable, err)
	}

	artifacts := make([]models.Artifact, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !IsImage(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// файл мог быть удален между ReadDir и Info
			log.Debug("skip entry", slog.String("name", entry.Name()), sl.Err(err))
			continue
		}

		artifacts = append(artifacts, models.Artifact{
			Name:      entry.Name(),
			Prompt:    PromptFromFilename(entry.Name()),
			Path:      filepath.ToSlash(filepath.Join(s.baseDir, entry.Name())),
			CreatedAt: info.ModTime(),
		})
	}

	sort.SliceStable(artifacts, func(i, j int) bool {
		if artifacts[i].CreatedAt.Equal(artifacts[j].CreatedAt) {
			return artifacts[i].Name < artifacts[j].Name
		}

		return artifacts[i].CreatedAt.After(artifacts[j].CreatedAt)
	})

	return artifacts, nil
}

// Read читает файл изображения и определяет Content-Type по расширению
func (s *LocalFileStorage) Read(ctx context.Context, path string) ([]byte, string, error) {
	const op = "filestorage.Read"

	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	fullPath, err := s.resolve(path)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("%s: %w", op, storage.ErrFileNotFound)
		}

		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	return data, ContentType(fullPath), nil
}

// Clear удаляет все файлы каталога. Ошибки отдельных файлов не прерывают удаление.
func (s *LocalFileStorage) Clear(ctx context.Context) (int, error) {
	const op = "filestorage.Clear"

	log := s.log.With(
		slog.String("op", op),
	)

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}

		log.Error("failed to read base dir", sl.Err(err))

		return 0, fmt.Errorf("%s: %w: %v", op, storage.ErrStoreUnavailable, err)
	}

	deleted := 0

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}

		if entry.IsDir() {
			continue
		}

		if err := s.Delete(ctx, entry.Name()); err != nil {
			log.Warn("failed to delete file", slog.String("name", entry.Name()), sl.Err(err))
			continue
		}

		deleted++
	}

	log.Info("store cleared", slog.Int("deleted", deleted))

	return deleted, nil
}

// Exists сообщает, существует ли базовый каталог
func (s *LocalFileStorage) Exists(_ context.Context) bool {
	info, err := os.Stat(s.baseDir)

	return err == nil && info.IsDir()
}

// Delete удаляет файл из хранилища
func (s *LocalFileStorage) Delete(ctx context.Context, filePath string) error {
	return os.Remove(s.GetFullPath(filePath))
}

// GetFullPath возвращает полный путь к файлу на диске
func (s *LocalFileStorage) GetFullPath(relativePath string) string {
	return filepath.Join(s.baseDir, relativePath)
}

// GetBaseDir не входит в FileStorage, нужен тестам и отладке
func (s *LocalFileStorage) GetBaseDir() string {
	return s.baseDir
}

// resolve отображает путь из списка, из события бэкенда (/generated_images/x.png)
// или голое имя файла на файл внутри baseDir.
func (s *LocalFileStorage) resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", storage.ErrInvalidPath
	}

	if HasTraversal(path) {
		return "", storage.ErrInvalidPath
	}

	name := filepath.Base(filepath.Clean(filepath.FromSlash(path)))
	if name == "." || name == string(filepath.Separator) {
		return "", storage.ErrInvalidPath
	}

	return s.GetFullPath(name), nil
}

// HasTraversal true, если нормализованный путь выходит в родительский каталог
func HasTraversal(path string) bool {
	cleaned := filepath.ToSlash(filepath.Clean(filepath.FromSlash(path)))

	for _, segment := range strings.Split(cleaned, "/") {
		if segment == ".." {
			return true
		}
	}

	return false
}

func IsImage(name string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(name))]

	return ok
}

// PromptFromFilename "sunset_over_hills_1700000000000.png" -> "sunset over hills"
func PromptFromFilename(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))

	parts := strings.Split(base, "_")
	if len(parts) < 2 {
		// нет сегмента времени
		return ""
	}

	return strings.Join(parts[:len(parts)-1], " ")
}

func ContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}
