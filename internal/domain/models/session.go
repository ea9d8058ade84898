package models

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionIdle      SessionStatus = "idle"
	SessionStreaming SessionStatus = "streaming"
	SessionStopping  SessionStatus = "stopping"
)

// GenerationEvent одно событие потока генерации: либо новый файл, либо конец
type GenerationEvent struct {
	ImagePath string `json:"image_path,omitempty"`
	End       bool   `json:"end,omitempty"`
}

// GenerationSession живет от отправки промпта до закрытия потока
type GenerationSession struct {
	ID        uuid.UUID     `json:"id"`
	Prompt    string        `json:"prompt"`
	Status    SessionStatus `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	Received  int           `json:"received"`
	Expected  int           `json:"expected"`
}

func NewGenerationSession(prompt string, expected int) GenerationSession {
	return GenerationSession{
		ID:        uuid.New(),
		Prompt:    prompt,
		Status:    SessionStreaming,
		StartedAt: time.Now().UTC(),
		Expected:  expected,
	}
}

func (s GenerationSession) Elapsed(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}

	return now.Sub(s.StartedAt)
}

// Progress приблизительная доля готовности по числу полученных событий, не авторитетна
func (s GenerationSession) Progress() float64 {
	if s.Expected <= 0 {
		return 0
	}

	p := float64(s.Received) / float64(s.Expected)
	if p > 1 {
		// бэкенд может прислать больше картинок, чем ожидалось
		return 1
	}

	return p
}

// SessionState снимок состояния для браузера
type SessionState struct {
	Status    SessionStatus      `json:"status"`
	Session   *GenerationSession `json:"session,omitempty"`
	Progress  float64            `json:"progress"`
	Artifacts []Artifact         `json:"artifacts"`
	Selection []SelectionEntry   `json:"selection"`
	LastError string             `json:"last_error,omitempty"`
}
