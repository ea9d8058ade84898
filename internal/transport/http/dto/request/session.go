package request

type GenerateRequest struct {
	Prompt string `json:"prompt" validate:"required"`
}

// SelectionRequest key это path артефакта из списка изображений
type SelectionRequest struct {
	Key string `json:"key" validate:"required"`
}

type HistoryQuery struct {
	Limit int64 `query:"limit" validate:"omitempty,min=1,max=100"`
}
