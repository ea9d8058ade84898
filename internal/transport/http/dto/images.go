package dto

import "prompt_gallery/internal/domain/models"

// MessageResponse формат ответов эндпоинтов /api/images/*, ожидаемый браузером
type MessageResponse struct {
	Message string `json:"message"`
	Deleted *int   `json:"deleted,omitempty"`
}

type ClearResponse struct {
	Deleted int `json:"deleted"`
}

type SelectionResponse struct {
	Selection []models.SelectionEntry `json:"selection"`
}

type HistoryResponse struct {
	Records []models.SelectionRecord `json:"records"`
}
