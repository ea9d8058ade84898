package gallery

import (
	"sort"

	"prompt_gallery/internal/domain/models"
)

// Merge добавляет в состояние только неизвестные ключи и возвращает новое состояние.
// Существующие записи (и их Selected) не трогаются, поэтому Merge идемпотентна
// и коммутативна относительно порядка снимков и событий потока.
func Merge(current map[string]models.Artifact, incoming []models.Artifact) (map[string]models.Artifact, int) {
	next := make(map[string]models.Artifact, len(current)+len(incoming))
	for k, v := range current {
		next[k] = v
	}

	added := 0
	for _, a := range incoming {
		key := a.Key()
		if _, ok := next[key]; ok {
			continue
		}

		a.Path = key
		// выбор задает только пользователь
		a.Selected = false
		next[key] = a
		added++
	}

	return next, added
}

// Sorted новые первыми, при равном времени по ключу
func Sorted(state map[string]models.Artifact) []models.Artifact {
	out := make([]models.Artifact, 0, len(state))
	for _, a := range state {
		out = append(out, a)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Path < out[j].Path
		}

		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out
}

// Selection набор выбранных артефактов; порядок не важен, но стабилен
func Selection(state map[string]models.Artifact) []models.SelectionEntry {
	keys := make([]string, 0)
	for k, a := range state {
		if a.Selected {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	entries := make([]models.SelectionEntry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, state[k].SelectionEntry())
	}

	return entries
}
