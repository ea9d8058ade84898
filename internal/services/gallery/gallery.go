package gallery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"

	"prompt_gallery/internal/domain/models"
	"prompt_gallery/internal/lib/logger/sl"
)

var (
	ErrUnknownArtifact = errors.New("unknown artifact")
	ErrStaleSnapshot   = errors.New("snapshot taken before clear")
)

// Lister авторитетный источник списка изображений
type Lister interface {
	List(ctx context.Context) ([]models.Artifact, error)
}

// Gallery единственный владелец множества известных изображений и флагов выбора.
// Остальные компоненты меняют состояние только через ее методы.
type Gallery struct {
	log    *slog.Logger
	lister Lister

	mu       sync.RWMutex
	items    map[string]models.Artifact
	epoch    uint64 // растет при каждом Clear
	onChange func()
}

func New(log *slog.Logger, lister Lister) *Gallery {
	return &Gallery{
		log:    log,
		lister: lister,
		items:  make(map[string]models.Artifact),
	}
}

// SetOnChange задает колбэк, вызываемый после каждого изменения состояния (вне блокировки)
func (g *Gallery) SetOnChange(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.onChange = fn
}

// Epoch снимается до чтения хранилища и передается в MergeSnapshot
func (g *Gallery) Epoch() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.epoch
}

// MergeSnapshot вливает полный список из хранилища. Список, прочитанный до Clear,
// мог содержать уже удаленные файлы, поэтому при смене эпохи он отбрасывается.
func (g *Gallery) MergeSnapshot(epoch uint64, list []models.Artifact) (int, error) {
	const op = "gallery.MergeSnapshot"

	g.mu.Lock()
	if g.epoch != epoch {
		g.mu.Unlock()
		return 0, fmt.Errorf("%s: %w", op, ErrStaleSnapshot)
	}

	next, added := Merge(g.items, list)
	g.items = next
	notify := g.onChange
	g.mu.Unlock()

	if added > 0 && notify != nil {
		notify()
	}

	return added, nil
}

// MergeStreamed событие потока считается подсказкой: состояние берется из хранилища заново
func (g *Gallery) MergeStreamed(ctx context.Context, imagePath string) (int, error) {
	const op = "gallery.MergeStreamed"

	log := g.log.With(
		slog.String("op", op),
		slog.String("image_path", imagePath),
	)

	epoch := g.Epoch()

	list, err := g.lister.List(ctx)
	if err != nil {
		log.Error("failed to list store", sl.Err(err))

		return 0, fmt.Errorf("%s: %w", op, err)
	}

	added, err := g.MergeSnapshot(epoch, list)
	if err != nil {
		log.Debug("gallery cleared while listing, snapshot dropped")

		return 0, nil
	}

	if !containsName(list, path.Base(imagePath)) {
		// файл еще не виден, его подхватит следующий опрос
		log.Debug("streamed image not in store yet")
	}

	return added, nil
}

// ToggleSelection переключает флаг и возвращает новый набор выбора
func (g *Gallery) ToggleSelection(key string) ([]models.SelectionEntry, error) {
	const op = "gallery.ToggleSelection"

	g.mu.Lock()
	k, ok := g.lookup(key)
	if !ok {
		g.mu.Unlock()
		return nil, fmt.Errorf("%s: %w: %s", op, ErrUnknownArtifact, key)
	}

	a := g.items[k]
	a.Selected = !a.Selected
	g.items[k] = a

	selection := Selection(g.items)
	notify := g.onChange
	g.mu.Unlock()

	if notify != nil {
		notify()
	}

	return selection, nil
}

// Clear вызывается только после успешной очистки хранилища
func (g *Gallery) Clear() {
	g.mu.Lock()
	changed := len(g.items) > 0
	g.items = make(map[string]models.Artifact)
	g.epoch++
	notify := g.onChange
	g.mu.Unlock()

	if changed && notify != nil {
		notify()
	}
}

func (g *Gallery) Artifacts() []models.Artifact {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return Sorted(g.items)
}

func (g *Gallery) Selection() []models.SelectionEntry {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return Selection(g.items)
}

func (g *Gallery) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.items)
}

// lookup ищет по ключу, затем по имени файла (события бэкенда приходят как /generated_images/x.png)
func (g *Gallery) lookup(key string) (string, bool) {
	k := models.ArtifactKey(key)
	if _, ok := g.items[k]; ok {
		return k, true
	}

	name := path.Base(k)
	found := ""
	for candidate, a := range g.items {
		if a.Name != name {
			continue
		}
		if found != "" {
			return "", false
		}
		found = candidate
	}

	return found, found != ""
}

func containsName(list []models.Artifact, name string) bool {
	for _, a := range list {
		if a.Name == name {
			return true
		}
	}

	return false
}
