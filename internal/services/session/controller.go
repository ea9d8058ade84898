package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"prompt_gallery/internal/domain/models"
	"prompt_gallery/internal/lib/logger/sl"
	"prompt_gallery/internal/metrics"
)

const stopTimeout = 5 * time.Second

var (
	ErrEmptyPrompt = errors.New("prompt is required")
	ErrClosed      = errors.New("session controller is closed")
)

// Stream поток событий одной генерации
type Stream interface {
	Next() (models.GenerationEvent, error)
	Close() error
}

type Transport interface {
	Open(ctx context.Context, prompt string) (Stream, error)
	Cancel(ctx context.Context) error
}

type Store interface {
	List(ctx context.Context) ([]models.Artifact, error)
	Clear(ctx context.Context) (int, error)
}

type Gallery interface {
	Epoch() uint64
	MergeSnapshot(epoch uint64, list []models.Artifact) (int, error)
	MergeStreamed(ctx context.Context, imagePath string) (int, error)
	ToggleSelection(key string) ([]models.SelectionEntry, error)
	Clear()
	Artifacts() []models.Artifact
	Selection() []models.SelectionEntry
	Len() int
}

type Publisher interface {
	Publish(entries []models.SelectionEntry)
}

type Options struct {
	PollInterval   time.Duration
	ExpectedImages int
}

// Controller конечный автомат сессии генерации: idle -> streaming -> idle.
// В каждый момент владеет не более чем одним потоком; каждый выход из streaming закрывает поток.
type Controller struct {
	log       *slog.Logger
	transport Transport
	store     Store
	gallery   Gallery
	publisher Publisher
	opts      Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	status      models.SessionStatus
	session     *models.GenerationSession
	stream      Stream
	generation  uint64
	pendingStop chan struct{}
	lastErr     string
	closed      bool
	onChange    func()

	closeOnce sync.Once
}

func NewController(log *slog.Logger, transport Transport, store Store, gallery Gallery, publisher Publisher, opts Options) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Controller{
		log:       log,
		transport: transport,
		store:     store,
		gallery:   gallery,
		publisher: publisher,
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		status:    models.SessionIdle,
	}
}

func (c *Controller) SetOnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onChange = fn
}

// Submit открывает новую генерацию. Активная генерация при этом вытесняется.
func (c *Controller) Submit(ctx context.Context, prompt string) (models.GenerationSession, error) {
	const op = "session.Controller.Submit"

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return models.GenerationSession{}, fmt.Errorf("%s: %w", op, ErrEmptyPrompt)
	}

	if err := ctx.Err(); err != nil {
		return models.GenerationSession{}, fmt.Errorf("%s: %w", op, err)
	}

	log := c.log.With(
		slog.String("op", op),
		slog.String("prompt", prompt),
	)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return models.GenerationSession{}, fmt.Errorf("%s: %w", op, ErrClosed)
	}

	superseded := c.status != models.SessionIdle
	old := c.detachLocked()

	c.generation++
	gen := c.generation

	sess := models.NewGenerationSession(prompt, c.opts.ExpectedImages)
	c.status = models.SessionStreaming
	c.session = &sess
	c.lastErr = ""
	pending := c.pendingStop
	c.mu.Unlock()

	if superseded {
		log.Info("superseding active generation")
		metrics.GenerationSessionsTotal.WithLabelValues("superseded").Inc()

		if old != nil {
			_ = old.Close()
		}
		c.cancelBackend(log)
	} else if pending != nil {
		// предыдущая остановка еще в полете: ее ответ не должен убить новую генерацию
		select {
		case <-pending:
		case <-time.After(stopTimeout):
		}
	}

	c.notify()

	stream, err := c.transport.Open(c.ctx, prompt)

	c.mu.Lock()
	if err != nil {
		if c.generation == gen {
			c.status = models.SessionIdle
			c.session = nil
			c.lastErr = err.Error()
		}
		c.mu.Unlock()

		log.Error("failed to open generation stream", sl.Err(err))
		metrics.GenerationSessionsTotal.WithLabelValues("failed").Inc()
		c.notify()

		return models.GenerationSession{}, fmt.Errorf("%s: %w", op, err)
	}

	if c.generation != gen || c.closed {
		// остановлено или вытеснено, пока открывался поток
		c.mu.Unlock()
		_ = stream.Close()

		sess.Status = models.SessionIdle
		return sess, nil
	}

	c.stream = stream
	c.wg.Add(1)
	c.mu.Unlock()

	go c.consume(gen, stream)

	log.Info("generation started", slog.String("session_id", sess.ID.String()))

	return sess, nil
}

// Stop оптимистичный: поток закрывается сразу, бэкенд уведомляется в фоне
func (c *Controller) Stop(ctx context.Context) error {
	const op = "session.Controller.Stop"

	log := c.log.With(
		slog.String("op", op),
	)

	c.mu.Lock()
	if c.status == models.SessionIdle || c.closed {
		c.mu.Unlock()
		return nil
	}

	c.status = models.SessionStopping
	stream := c.detachLocked()
	c.generation++
	stopGen := c.generation
	c.mu.Unlock()

	if stream != nil {
		_ = stream.Close()
	}

	c.mu.Lock()
	// новый Submit мог успеть занять сессию, пока закрывался поток
	if c.generation == stopGen {
		c.status = models.SessionIdle
		c.session = nil
	}

	var done chan struct{}
	if !c.closed {
		done = make(chan struct{})
		c.pendingStop = done
		c.wg.Add(1)
	}
	c.mu.Unlock()

	metrics.GenerationSessionsTotal.WithLabelValues("stopped").Inc()
	log.Info("generation stopped")
	c.notify()

	if done == nil {
		return nil
	}

	go func() {
		defer c.wg.Done()
		defer close(done)

		c.cancelBackend(log)
	}()

	return nil
}

// Toggle переключает выбор и публикует полный набор
func (c *Controller) Toggle(key string) ([]models.SelectionEntry, error) {
	const op = "session.Controller.Toggle"

	selection, err := c.gallery.ToggleSelection(key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.publisher.Publish(selection)

	return selection, nil
}

// ClearAll чистит хранилище, и только при успехе галерею
func (c *Controller) ClearAll(ctx context.Context) (int, error) {
	const op = "session.Controller.ClearAll"

	log := c.log.With(
		slog.String("op", op),
	)

	hadSelection := len(c.gallery.Selection()) > 0

	deleted, err := c.store.Clear(ctx)
	if err != nil {
		log.Error("failed to clear store", sl.Err(err))

		return deleted, fmt.Errorf("%s: %w", op, err)
	}

	c.gallery.Clear()
	metrics.GalleryArtifacts.Set(0)

	if hadSelection {
		c.publisher.Publish([]models.SelectionEntry{})
	}

	log.Info("gallery cleared", slog.Int("deleted", deleted))

	return deleted, nil
}

// Refresh один такт опроса хранилища
func (c *Controller) Refresh(ctx context.Context) error {
	const op = "session.Controller.Refresh"

	// эпоха до чтения: снимок, пересекшийся с ClearAll, не должен вернуть удаленные файлы
	epoch := c.gallery.Epoch()

	list, err := c.store.List(ctx)
	if err != nil {
		metrics.PollErrorsTotal.Inc()
		c.log.Warn("poll failed", slog.String("op", op), sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	added, err := c.gallery.MergeSnapshot(epoch, list)
	if err != nil {
		c.log.Debug("gallery cleared during poll, snapshot dropped", slog.String("op", op))
		return nil
	}

	if added > 0 {
		c.log.Debug("poll merged new artifacts", slog.String("op", op), slog.Int("added", added))
	}
	metrics.GalleryArtifacts.Set(float64(c.gallery.Len()))

	return nil
}

// Run опрашивает хранилище с фиксированным интервалом в любом состоянии сессии.
// При отмене ctx останавливает активный поток и дожидается фоновых горутин.
func (c *Controller) Run(ctx context.Context) error {
	const op = "session.Controller.Run"

	c.log.Info("poller started", slog.String("op", op), slog.Duration("interval", c.opts.PollInterval))

	_ = c.Refresh(ctx)

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.Close()
			c.log.Info("poller stopped", slog.String("op", op))

			return nil
		case <-ticker.C:
			_ = c.Refresh(ctx)
		}
	}
}

// Close закрывает активный поток и ждет фоновые горутины. Повторные вызовы ничего не делают.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		stream := c.detachLocked()
		c.generation++
		c.status = models.SessionIdle
		c.session = nil
		c.mu.Unlock()

		if stream != nil {
			_ = stream.Close()
		}

		c.cancel()
		c.wg.Wait()
	})
}

func (c *Controller) Status() models.SessionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.status
}

func (c *Controller) State() models.SessionState {
	c.mu.Lock()
	state := models.SessionState{
		Status:    c.status,
		LastError: c.lastErr,
	}
	if c.session != nil {
		sess := *c.session
		sess.Status = c.status
		state.Session = &sess
		state.Progress = sess.Progress()
	}
	c.mu.Unlock()

	state.Artifacts = c.gallery.Artifacts()
	state.Selection = c.gallery.Selection()

	return state
}

func (c *Controller) consume(gen uint64, stream Stream) {
	const op = "session.Controller.consume"

	defer c.wg.Done()
	defer stream.Close()

	log := c.log.With(
		slog.String("op", op),
		slog.Uint64("generation", gen),
	)

	outcome := "completed"
	errMsg := ""

	for {
		ev, err := stream.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Error("stream failed", sl.Err(err))
				outcome = "failed"
				errMsg = err.Error()
			}
			break
		}

		if ev.End {
			metrics.StreamEventsTotal.WithLabelValues("end").Inc()
			break
		}

		metrics.StreamEventsTotal.WithLabelValues("image").Inc()
		c.markReceived(gen)

		if _, err := c.gallery.MergeStreamed(c.ctx, ev.ImagePath); err != nil {
			// следующий опрос догонит
			log.Warn("failed to merge streamed image", slog.String("image_path", ev.ImagePath), sl.Err(err))
		}
	}

	c.finish(gen, outcome, errMsg)
}

func (c *Controller) markReceived(gen uint64) {
	c.mu.Lock()
	if c.generation == gen && c.session != nil {
		c.session.Received++
	}
	c.mu.Unlock()

	c.notify()
}

// finish устаревший потребитель (после stop или вытеснения) состояние не трогает
func (c *Controller) finish(gen uint64, outcome, errMsg string) {
	c.mu.Lock()
	if c.generation != gen || c.status == models.SessionIdle {
		c.mu.Unlock()
		return
	}

	c.status = models.SessionIdle
	c.session = nil
	c.stream = nil
	c.lastErr = errMsg
	c.mu.Unlock()

	metrics.GenerationSessionsTotal.WithLabelValues(outcome).Inc()
	c.log.Info("generation finished", slog.String("outcome", outcome))
	c.notify()
}

// detachLocked отвязывает текущий поток; закрывать его нужно вне блокировки
func (c *Controller) detachLocked() Stream {
	stream := c.stream
	c.stream = nil

	return stream
}

func (c *Controller) cancelBackend(log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if err := c.transport.Cancel(ctx); err != nil {
		log.Warn("backend stop failed", sl.Err(err))
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
}
