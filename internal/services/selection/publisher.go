package selection

import (
	"context"
	"log/slog"
	"time"

	"prompt_gallery/internal/domain/models"
	"prompt_gallery/internal/lib/logger/sl"
	"prompt_gallery/internal/metrics"
	"prompt_gallery/internal/repository"
)

const sendTimeout = 10 * time.Second

type Sender interface {
	SaveSelectedCaptions(ctx context.Context, entries []models.SelectionEntry) error
}

// Publisher отправляет в бэкенд полный набор выбора при каждом изменении.
// Ошибки только логируются: следующее изменение все равно отправит актуальный набор.
type Publisher struct {
	log      *slog.Logger
	sender   Sender
	repo     repository.SelectionRepository
	debounce time.Duration

	mailbox chan []models.SelectionEntry
	now     func() time.Time
}

func NewPublisher(log *slog.Logger, sender Sender, repo repository.SelectionRepository, debounce time.Duration) *Publisher {
	if repo == nil {
		repo = repository.NoopSelectionRepo{}
	}

	return &Publisher{
		log:      log,
		sender:   sender,
		repo:     repo,
		debounce: debounce,
		mailbox:  make(chan []models.SelectionEntry, 1),
		now:      time.Now,
	}
}

// Publish не блокирует: в почтовом ящике остается только последний набор
func (p *Publisher) Publish(entries []models.SelectionEntry) {
	set := make([]models.SelectionEntry, len(entries))
	copy(set, entries)

	for {
		select {
		case p.mailbox <- set:
			return
		default:
		}

		// выбрасываем устаревший набор
		select {
		case <-p.mailbox:
		default:
		}
	}
}

// Run цикл отправки, завершается при отмене ctx
func (p *Publisher) Run(ctx context.Context) {
	const op = "selection.Publisher.Run"

	p.log.Info("publisher started", slog.String("op", op))
	defer p.log.Info("publisher stopped", slog.String("op", op))

	for {
		select {
		case <-ctx.Done():
			return
		case set := <-p.mailbox:
			set, ok := p.settle(ctx, set)
			if !ok {
				return
			}
			p.send(ctx, set)
		}
	}
}

// settle ждет паузу debounce, подменяя набор более свежими
func (p *Publisher) settle(ctx context.Context, set []models.SelectionEntry) ([]models.SelectionEntry, bool) {
	if p.debounce <= 0 {
		return set, true
	}

	timer := time.NewTimer(p.debounce)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, false
		case newer := <-p.mailbox:
			set = newer
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(p.debounce)
		case <-timer.C:
			return set, true
		}
	}
}

func (p *Publisher) send(ctx context.Context, set []models.SelectionEntry) {
	const op = "selection.Publisher.send"

	log := p.log.With(
		slog.String("op", op),
		slog.Int("selected", len(set)),
	)

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := p.sender.SaveSelectedCaptions(sendCtx, set); err != nil {
		metrics.SelectionPublishTotal.WithLabelValues("error").Inc()
		log.Warn("failed to publish selection", sl.Err(err))

		return
	}

	metrics.SelectionPublishTotal.WithLabelValues("ok").Inc()
	log.Debug("selection published")

	record := models.SelectionRecord{
		Entries:     set,
		PublishedAt: p.now().UTC(),
	}

	if err := p.repo.SaveSelection(sendCtx, record); err != nil {
		log.Warn("failed to record selection history", sl.Err(err))
	}
}
