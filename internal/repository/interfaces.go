package repository

import (
	"context"

	"prompt_gallery/internal/domain/models"
)

type SelectionRepository interface {
	SaveSelection(ctx context.Context, record models.SelectionRecord) error
	CurrentSelection(ctx context.Context) (models.SelectionRecord, error)
	SelectionHistory(ctx context.Context, limit int64) ([]models.SelectionRecord, error)
}
