package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"prompt_gallery/internal/domain/models"
)

const (
	generatePath  = "/generate-images"
	stopPath      = "/stop-generation"
	selectionPath = "/save-selected-captions"

	maxErrorBody = 4 << 10
)

var (
	ErrTransport = errors.New("backend transport error")
)

// BackendError ответ бэкенда с не-2xx статусом
type BackendError struct {
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

// StopResult тело ответа /stop-generation
type StopResult struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type selectionRequest struct {
	SelectedCaptions []models.SelectionEntry `json:"selectedCaptions"`
}

// Client клиент внешнего сервиса генерации изображений.
// Короткие запросы ограничены timeout, поток генерации живет до конца или до отмены контекста.
type Client struct {
	log     *slog.Logger
	baseURL string
	http    *http.Client
	stream  *http.Client
}

func New(log *slog.Logger, baseURL string, timeout time.Duration) (*Client, error) {
	const op = "backend.New"

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s: base url must be absolute: %q", op, baseURL)
	}

	return &Client{
		log:     log,
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    &http.Client{Timeout: timeout},
		stream:  &http.Client{},
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Start открывает поток генерации для промпта
func (c *Client) Start(ctx context.Context, prompt string) (*Stream, error) {
	const op = "backend.Client.Start"

	streamCtx, cancel := context.WithCancel(ctx)

	resp, err := c.OpenRaw(streamCtx, prompt)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer cancel()
		defer resp.Body.Close()

		return nil, fmt.Errorf("%s: %w", op, readBackendError(resp))
	}

	return newStream(c.log, resp.Body, cancel), nil
}

// OpenRaw отдает ответ бэкенда как есть, тело закрывает вызывающий
func (c *Client) OpenRaw(ctx context.Context, prompt string) (*http.Response, error) {
	q := url.Values{}
	q.Set("prompt", prompt)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+generatePath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	return resp, nil
}

// Stop просит бэкенд остановить текущую генерацию. Идемпотентно на стороне бэкенда.
func (c *Client) Stop(ctx context.Context) (StopResult, error) {
	const op = "backend.Client.Stop"

	status, body, err := c.StopRaw(ctx)
	if err != nil {
		return StopResult{}, fmt.Errorf("%s: %w", op, err)
	}

	var result StopResult
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &result); err != nil {
			// тело можно игнорировать
			c.log.Debug("stop response is not json", slog.String("op", op))
		}
	}

	if status < 200 || status > 299 {
		return result, fmt.Errorf("%s: %w", op, &BackendError{StatusCode: status, Message: errorMessage(body)})
	}

	return result, nil
}

func (c *Client) StopRaw(ctx context.Context) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+stopPath, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	return resp.StatusCode, body, nil
}

// SaveSelectedCaptions отправляет полный текущий набор выбора
func (c *Client) SaveSelectedCaptions(ctx context.Context, entries []models.SelectionEntry) error {
	const op = "backend.Client.SaveSelectedCaptions"

	if entries == nil {
		entries = []models.SelectionEntry{}
	}

	payload, err := json.Marshal(selectionRequest{SelectedCaptions: entries})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+selectionPath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s: %w", op, readBackendError(resp))
	}

	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

func readBackendError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	return &BackendError{
		StatusCode: resp.StatusCode,
		Message:    errorMessage(body),
	}
}

// errorMessage достает поле error из JSON, иначе возвращает текст как есть
func errorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}

	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}

	return strings.TrimSpace(string(body))
}
