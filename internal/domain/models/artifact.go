package models

import (
	"encoding/json"
	"path/filepath"
	"time"
)

// Artifact одно сгенерированное изображение в галерее
type Artifact struct {
	Name      string    `json:"name"`      // Имя файла в хранилище
	Prompt    string    `json:"prompt"`    // Промпт, восстановленный из имени файла
	Path      string    `json:"path"`      // Путь в хранилище, он же ключ
	CreatedAt time.Time `json:"createdAt"` // Время создания файла
	Selected  bool      `json:"selected"`  // Отмечено пользователем в текущей сессии
}

// Key стабильный идентификатор артефакта, не зависящий от порядка генерации
func (a Artifact) Key() string {
	return ArtifactKey(a.Path)
}

// ArtifactKey нормализует путь хранилища в ключ галереи
func ArtifactKey(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}

// SelectionEntry возвращает пару filename/caption для отправки в бэкенд
func (a Artifact) SelectionEntry() SelectionEntry {
	return SelectionEntry{
		Filename: a.Name,
		Caption:  a.Prompt,
	}
}

type artifactJSON struct {
	Name      string `json:"name"`
	Prompt    string `json:"prompt"`
	Path      string `json:"path"`
	CreatedAt int64  `json:"createdAt"`
	Selected  bool   `json:"selected,omitempty"`
}

// MarshalJSON createdAt передается в миллисекундах unix, как ожидает браузер
func (a Artifact) MarshalJSON() ([]byte, error) {
	return json.Marshal(artifactJSON{
		Name:      a.Name,
		Prompt:    a.Prompt,
		Path:      a.Path,
		CreatedAt: a.CreatedAt.UnixMilli(),
		Selected:  a.Selected,
	})
}

func (a *Artifact) UnmarshalJSON(data []byte) error {
	var raw artifactJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*a = Artifact{
		Name:      raw.Name,
		Prompt:    raw.Prompt,
		Path:      raw.Path,
		CreatedAt: time.UnixMilli(raw.CreatedAt),
		Selected:  raw.Selected,
	}

	return nil
}

// SelectionEntry элемент набора предпочтений пользователя
type SelectionEntry struct {
	Filename string `json:"filename"`
	Caption  string `json:"caption"`
}

// SelectionRecord опубликованный набор выбора с моментом отправки
type SelectionRecord struct {
	Entries     []SelectionEntry `json:"entries"`
	PublishedAt time.Time        `json:"published_at"`
}
