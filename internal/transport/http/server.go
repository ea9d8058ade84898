package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"prompt_gallery/internal/domain/models"
	"prompt_gallery/internal/lib/logger/sl"
	"prompt_gallery/internal/services/gallery"
	"prompt_gallery/internal/services/session"
	"prompt_gallery/internal/storage"
	"prompt_gallery/internal/transport/http/dto"
	"prompt_gallery/internal/transport/http/dto/request"
	"prompt_gallery/internal/transport/http/dto/response"
	"prompt_gallery/internal/transport/http/sse"

	"github.com/labstack/echo/v4"

	_ "prompt_gallery/docs"
)

const (
	defaultHistoryLimit = 20
	keepAliveInterval   = 15 * time.Second
	maxErrorBody        = 1 << 20
)

type Backend interface {
	OpenRaw(ctx context.Context, prompt string) (*http.Response, error)
	StopRaw(ctx context.Context) (int, []byte, error)
}

type ImageStore interface {
	List(ctx context.Context) ([]models.Artifact, error)
	Read(ctx context.Context, path string) ([]byte, string, error)
	Exists(ctx context.Context) bool
}

type SessionService interface {
	Submit(ctx context.Context, prompt string) (models.GenerationSession, error)
	Stop(ctx context.Context) error
	Toggle(key string) ([]models.SelectionEntry, error)
	ClearAll(ctx context.Context) (int, error)
	State() models.SessionState
}

type SelectionHistory interface {
	CurrentSelection(ctx context.Context) (models.SelectionRecord, error)
	SelectionHistory(ctx context.Context, limit int64) ([]models.SelectionRecord, error)
}

type EventHub interface {
	Subscribe(ch chan []byte) bool
	Unsubscribe(ch chan []byte)
	Done() <-chan struct{}
}

type Routers struct {
	log            *slog.Logger
	Backend        Backend
	ImageStore     ImageStore
	SessionService SessionService
	History        SelectionHistory
	Hub            EventHub
}

func NewRouter(log *slog.Logger, backend Backend, imageStore ImageStore, sessionService SessionService, history SelectionHistory, hub EventHub) *Routers {
	return &Routers{
		log:            log,
		Backend:        backend,
		ImageStore:     imageStore,
		SessionService: sessionService,
		History:        history,
		Hub:            hub,
	}
}

// GenerateStream godoc
// @Summary Поток генерации
// @Description Проксирует SSE-поток бэкенда без изменений: кадры data: {"image_path": "..."} и event: end.
// @Tags generate
// @Produce text/event-stream
// @Param prompt query string true "Текст запроса"
// @Success 200 {string} string "event stream"
// @Failure 400 {object} response.ErrorResponse "Бэкенд отклонил запрос"
// @Failure 502 {object} response.ErrorResponse "Бэкенд недоступен"
// @Router /api/generate [get]
func (r *Routers) GenerateStream(c echo.Context) error {
	const op = "http.routers.GenerateStream"

	log := r.log.With(
		slog.String("op", op),
	)

	ctx := c.Request().Context()

	resp, err := r.Backend.OpenRaw(ctx, c.QueryParam("prompt"))
	if err != nil {
		log.Error("failed to open backend stream", sl.Err(err))
		return c.JSON(http.StatusBadGateway, response.ErrBackendUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		contentType := resp.Header.Get(echo.HeaderContentType)
		if contentType == "" {
			contentType = echo.MIMEApplicationJSON
		}

		log.Warn("backend rejected generation", slog.Int("status", resp.StatusCode))

		return c.Blob(resp.StatusCode, contentType, body)
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	buf := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				// браузер ушел
				return nil
			}
			w.Flush()
		}

		if readErr != nil {
			if !errors.Is(readErr, io.EOF) && ctx.Err() == nil {
				log.Warn("backend stream interrupted", sl.Err(readErr))
			}

			return nil
		}
	}
}

// StopGeneration godoc
// @Summary Остановить генерацию
// @Description Пересылает запрос остановки в бэкенд и возвращает его ответ со статусом бэкенда.
// @Tags generate
// @Produce json
// @Success 200 {object} map[string]string "Ответ бэкенда"
// @Failure 502 {object} response.ErrorResponse "Бэкенд недоступен"
// @Router /api/generate [post]
func (r *Routers) StopGeneration(c echo.Context) error {
	const op = "http.routers.StopGeneration"

	log := r.log.With(
		slog.String("op", op),
	)

	status, body, err := r.Backend.StopRaw(c.Request().Context())
	if err != nil {
		log.Error("failed to stop generation", sl.Err(err))
		return c.JSON(http.StatusBadGateway, response.ErrBackendUnavailable)
	}

	if len(strings.TrimSpace(string(body))) == 0 {
		body = []byte("{}")
	}

	return c.JSONBlob(status, body)
}

// ListImages godoc
// @Summary Список изображений
// @Description Возвращает все изображения каталога, новые первыми. Каталог создается при необходимости.
// @Tags images
// @Produce json
// @Success 200 {array} models.Artifact "Список изображений"
// @Failure 500 {object} response.ErrorResponse "Хранилище недоступно"
// @Router /api/images/list [get]
func (r *Routers) ListImages(c echo.Context) error {
	const op = "http.routers.ListImages"

	log := r.log.With(
		slog.String("op", op),
	)

	list, err := r.ImageStore.List(c.Request().Context())
	if err != nil {
		log.Error("failed to list images", sl.Err(err))
		return c.JSON(http.StatusInternalServerError, response.ErrStoreUnavailable)
	}

	if list == nil {
		list = []models.Artifact{}
	}

	return c.JSON(http.StatusOK, list)
}

// GetImage godoc
// @Summary Получить изображение
// @Description Отдает байты изображения с Content-Type по расширению. Пути с .. отклоняются.
// @Tags images
// @Produce image/png
// @Produce image/jpeg
// @Produce image/webp
// @Param path query string true "Путь из списка изображений"
// @Success 200 {file} binary "Изображение"
// @Failure 400 {object} response.ErrorResponse "Пустой или недопустимый путь"
// @Failure 404 {object} response.ErrorResponse "Файл не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка чтения"
// @Router /api/images [get]
func (r *Routers) GetImage(c echo.Context) error {
	const op = "http.routers.GetImage"

	path := c.QueryParam("path")

	log := r.log.With(
		slog.String("op", op),
		slog.String("path", path),
	)

	if path == "" {
		return c.JSON(http.StatusBadRequest, response.ErrImagePathRequired)
	}

	data, contentType, err := r.ImageStore.Read(c.Request().Context(), path)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrInvalidPath):
			log.Warn("rejected image path")
			return c.JSON(http.StatusBadRequest, response.ErrInvalidPath)
		case errors.Is(err, storage.ErrFileNotFound):
			return c.JSON(http.StatusNotFound, response.ErrImageNotFound)
		default:
			log.Error("failed to serve image", sl.Err(err))
			return c.JSON(http.StatusInternalServerError, response.ErrInternal)
		}
	}

	c.Response().Header().Set("Cache-Control", "public, max-age=31536000")
	c.Response().Header().Set(echo.HeaderContentDisposition, "inline")

	return c.Blob(http.StatusOK, contentType, data)
}

// ClearImages godoc
// @Summary Удалить все изображения
// @Description Удаляет все файлы каталога и очищает галерею. 404, если каталога нет.
// @Tags images
// @Produce json
// @Success 200 {object} dto.MessageResponse "Изображения удалены"
// @Failure 404 {object} dto.MessageResponse "Удалять нечего"
// @Failure 500 {object} dto.MessageResponse "Ошибка удаления"
// @Router /api/images/clear [delete]
func (r *Routers) ClearImages(c echo.Context) error {
	const op = "http.routers.ClearImages"

	log := r.log.With(
		slog.String("op", op),
	)

	ctx := c.Request().Context()

	if !r.ImageStore.Exists(ctx) {
		return c.JSON(http.StatusNotFound, dto.MessageResponse{Message: "No images to delete"})
	}

	deleted, err := r.SessionService.ClearAll(ctx)
	if err != nil {
		log.Error("failed to clear images", sl.Err(err))
		return c.JSON(http.StatusInternalServerError, dto.MessageResponse{Message: "Error deleting images"})
	}

	return c.JSON(http.StatusOK, dto.MessageResponse{
		Message: "All images deleted successfully",
		Deleted: &deleted,
	})
}

// GetSession godoc
// @Summary Состояние сессии
// @Tags session
// @Produce json
// @Success 200 {object} response.Response{data=models.SessionState}
// @Router /api/session [get]
func (r *Routers) GetSession(c echo.Context) error {
	return c.JSON(http.StatusOK, response.SuccessResponse(r.SessionService.State()))
}

// SubmitPrompt godoc
// @Summary Запустить генерацию
// @Description Открывает поток генерации. Активная генерация вытесняется.
// @Tags session
// @Accept json
// @Produce json
// @Param request body request.GenerateRequest true "Текст запроса"
// @Success 202 {object} response.Response{data=models.GenerationSession}
// @Failure 400 {object} response.ErrorResponse "Неверный формат запроса"
// @Failure 502 {object} response.ErrorResponse "Бэкенд недоступен или отклонил запрос"
// @Router /api/session/generate [post]
func (r *Routers) SubmitPrompt(c echo.Context) error {
	const op = "http.routers.SubmitPrompt"

	log := r.log.With(
		slog.String("op", op),
	)

	var req request.GenerateRequest

	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrInvalidRequestFormat)
	}

	if err := c.Validate(req); err != nil {
		log.Warn("invalid format request", sl.Err(err))
		return c.JSON(http.StatusBadRequest, response.ErrorResponseWithDetails("invalid_request", err.Error()))
	}

	sess, err := r.SessionService.Submit(c.Request().Context(), req.Prompt)
	if err != nil {
		if errors.Is(err, session.ErrEmptyPrompt) {
			return c.JSON(http.StatusBadRequest, response.ErrorResponseWithDetails("invalid_request", session.ErrEmptyPrompt.Error()))
		}

		log.Error("failed to start generation", sl.Err(err))

		return c.JSON(http.StatusBadGateway, response.ErrorResponseWithDetails("backend_unavailable", err.Error()))
	}

	return c.JSON(http.StatusAccepted, response.SuccessResponse(sess))
}

// StopSession godoc
// @Summary Остановить генерацию
// @Description Переходит в idle сразу, бэкенд уведомляется в фоне.
// @Tags session
// @Produce json
// @Success 200 {object} response.Response{data=models.SessionState}
// @Router /api/session/stop [post]
func (r *Routers) StopSession(c echo.Context) error {
	const op = "http.routers.StopSession"

	if err := r.SessionService.Stop(c.Request().Context()); err != nil {
		r.log.Error("failed to stop session", slog.String("op", op), sl.Err(err))
		return c.JSON(http.StatusInternalServerError, response.ErrInternal)
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(r.SessionService.State()))
}

// ToggleSelection godoc
// @Summary Переключить выбор изображения
// @Description Переключает флаг выбора и отправляет полный набор в бэкенд.
// @Tags session
// @Accept json
// @Produce json
// @Param request body request.SelectionRequest true "Ключ изображения"
// @Success 200 {object} response.Response{data=dto.SelectionResponse}
// @Failure 400 {object} response.ErrorResponse "Неверный формат запроса"
// @Failure 404 {object} response.ErrorResponse "Изображение неизвестно"
// @Router /api/session/selection [post]
func (r *Routers) ToggleSelection(c echo.Context) error {
	const op = "http.routers.ToggleSelection"

	log := r.log.With(
		slog.String("op", op),
	)

	var req request.SelectionRequest

	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrInvalidRequestFormat)
	}

	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrorResponseWithDetails("invalid_request", err.Error()))
	}

	selection, err := r.SessionService.Toggle(req.Key)
	if err != nil {
		if errors.Is(err, gallery.ErrUnknownArtifact) {
			resp := response.ErrUnknownArtifact
			resp.Details = req.Key
			return c.JSON(http.StatusNotFound, resp)
		}

		log.Error("failed to toggle selection", sl.Err(err))

		return c.JSON(http.StatusInternalServerError, response.ErrInternal)
	}

	if selection == nil {
		selection = []models.SelectionEntry{}
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(dto.SelectionResponse{Selection: selection}))
}

// ClearSession godoc
// @Summary Очистить галерею
// @Description Удаляет все файлы и очищает галерею. Отсутствие каталога не ошибка.
// @Tags session
// @Produce json
// @Success 200 {object} response.Response{data=dto.ClearResponse}
// @Failure 500 {object} response.ErrorResponse "Ошибка удаления"
// @Router /api/session/images [delete]
func (r *Routers) ClearSession(c echo.Context) error {
	const op = "http.routers.ClearSession"

	deleted, err := r.SessionService.ClearAll(c.Request().Context())
	if err != nil {
		r.log.Error("failed to clear gallery", slog.String("op", op), sl.Err(err))
		return c.JSON(http.StatusInternalServerError, response.ErrInternal)
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(dto.ClearResponse{Deleted: deleted}))
}

// SelectionHistory godoc
// @Summary История выбора
// @Description Последние опубликованные наборы выбора, новые первыми. Пусто, если Redis не настроен.
// @Tags session
// @Produce json
// @Param limit query int false "Количество записей (1..100)"
// @Success 200 {object} response.Response{data=dto.HistoryResponse}
// @Failure 400 {object} response.ErrorResponse "Неверный формат запроса"
// @Failure 500 {object} response.ErrorResponse "Хранилище недоступно"
// @Router /api/selection/history [get]
func (r *Routers) SelectionHistory(c echo.Context) error {
	const op = "http.routers.SelectionHistory"

	var req request.HistoryQuery

	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrInvalidRequestFormat)
	}

	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrorResponseWithDetails("invalid_request", err.Error()))
	}

	if req.Limit == 0 {
		req.Limit = defaultHistoryLimit
	}

	records, err := r.History.SelectionHistory(c.Request().Context(), req.Limit)
	if err != nil {
		r.log.Error("failed to load selection history", slog.String("op", op), sl.Err(err))
		return c.JSON(http.StatusInternalServerError, response.ErrInternal)
	}

	if records == nil {
		records = []models.SelectionRecord{}
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(dto.HistoryResponse{Records: records}))
}

// CurrentSelection godoc
// @Summary Последний опубликованный выбор
// @Description Набор, последним успешно отправленный в бэкенд. 404, если публикаций не было или Redis не настроен.
// @Tags session
// @Produce json
// @Success 200 {object} response.Response{data=models.SelectionRecord}
// @Failure 404 {object} response.ErrorResponse "Выбор еще не публиковался"
// @Failure 500 {object} response.ErrorResponse "Хранилище недоступно"
// @Router /api/selection/current [get]
func (r *Routers) CurrentSelection(c echo.Context) error {
	const op = "http.routers.CurrentSelection"

	record, err := r.History.CurrentSelection(c.Request().Context())
	if err != nil {
		if errors.Is(err, storage.ErrSelectionNotFound) {
			return c.JSON(http.StatusNotFound, response.ErrSelectionNotFound)
		}

		r.log.Error("failed to load current selection", slog.String("op", op), sl.Err(err))
		return c.JSON(http.StatusInternalServerError, response.ErrInternal)
	}

	if record.Entries == nil {
		record.Entries = []models.SelectionEntry{}
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(record))
}

// SessionEvents godoc
// @Summary Поток состояния сессии
// @Description SSE: текущее состояние при подключении, затем снимок после каждого изменения галереи или статуса.
// @Tags session
// @Produce text/event-stream
// @Success 200 {string} string "event stream"
// @Failure 503 {object} response.ErrorResponse "Сервер останавливается"
// @Router /api/session/events [get]
func (r *Routers) SessionEvents(c echo.Context) error {
	const op = "http.routers.SessionEvents"

	log := r.log.With(
		slog.String("op", op),
	)

	msgCh := make(chan []byte, sse.ClientBuffer)
	if !r.Hub.Subscribe(msgCh) {
		return c.JSON(http.StatusServiceUnavailable, response.ErrEventsUnavailable)
	}
	defer r.Hub.Unsubscribe(msgCh)

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprint(w, ": connected\n\n")

	initial, err := json.Marshal(r.SessionService.State())
	if err != nil {
		log.Error("failed to encode state", sl.Err(err))
		return nil
	}
	fmt.Fprintf(w, "data: %s\n\n", initial)
	w.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	done := c.Request().Context().Done()

	for {
		select {
		case <-done:
			return nil
		case <-r.Hub.Done():
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		case msg := <-msgCh:
			if _, err := fmt.Fprintf(w, "data: %s\n\n", msg); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}

// Health godoc
// @Summary Проверка работоспособности
// @Tags ops
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (r *Routers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
