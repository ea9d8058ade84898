package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"prompt_gallery/internal/domain/models"
	"prompt_gallery/internal/storage"
	redisapp "prompt_gallery/internal/storage/redis"

	"github.com/redis/go-redis/v9"
)

const (
	currentSelectionKey = "selection:current"
	selectionHistoryKey = "selection:history"

	// MaxHistory сколько последних наборов хранится в списке истории
	MaxHistory = 100
)

type RedisSelectionRepo struct {
	Client *redisapp.Client
}

func NewRedisSelectionRepo(client *redisapp.Client) *RedisSelectionRepo {
	return &RedisSelectionRepo{Client: client}
}

func (r *RedisSelectionRepo) SaveSelection(ctx context.Context, record models.SelectionRecord) error {
	const op = "repository.RedisSelectionRepo.SaveSelection"

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	pipe := r.Client.TxPipeline()
	pipe.Set(ctx, currentSelectionKey, payload, 0)
	pipe.LPush(ctx, selectionHistoryKey, payload)
	pipe.LTrim(ctx, selectionHistoryKey, 0, MaxHistory-1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *RedisSelectionRepo) CurrentSelection(ctx context.Context) (models.SelectionRecord, error) {
	const op = "repository.RedisSelectionRepo.CurrentSelection"

	val, err := r.Client.Get(ctx, currentSelectionKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.SelectionRecord{}, fmt.Errorf("%s: %w", op, storage.ErrSelectionNotFound)
		}

		return models.SelectionRecord{}, fmt.Errorf("%s: %w", op, err)
	}

	var record models.SelectionRecord
	if err := json.Unmarshal(val, &record); err != nil {
		return models.SelectionRecord{}, fmt.Errorf("%s: %w", op, err)
	}

	return record, nil
}

// SelectionHistory последние наборы, новые первыми
func (r *RedisSelectionRepo) SelectionHistory(ctx context.Context, limit int64) ([]models.SelectionRecord, error) {
	const op = "repository.RedisSelectionRepo.SelectionHistory"

	if limit <= 0 || limit > MaxHistory {
		limit = MaxHistory
	}

	vals, err := r.Client.LRange(ctx, selectionHistoryKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	records := make([]models.SelectionRecord, 0, len(vals))
	for _, v := range vals {
		var record models.SelectionRecord
		if err := json.Unmarshal([]byte(v), &record); err != nil {
			// битая запись не ломает всю историю
			continue
		}
		records = append(records, record)
	}

	return records, nil
}

// NoopSelectionRepo используется, когда Redis не настроен
type NoopSelectionRepo struct{}

func (NoopSelectionRepo) SaveSelection(context.Context, models.SelectionRecord) error {
	return nil
}

func (NoopSelectionRepo) CurrentSelection(context.Context) (models.SelectionRecord, error) {
	return models.SelectionRecord{}, storage.ErrSelectionNotFound
}

func (NoopSelectionRepo) SelectionHistory(context.Context, int64) ([]models.SelectionRecord, error) {
	return []models.SelectionRecord{}, nil
}
