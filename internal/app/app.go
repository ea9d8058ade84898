package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	httpapp "prompt_gallery/internal/app/http"
	"prompt_gallery/internal/config"
	"prompt_gallery/internal/lib/logger/sl"
	"prompt_gallery/internal/repository"
	"prompt_gallery/internal/services/gallery"
	"prompt_gallery/internal/services/selection"
	"prompt_gallery/internal/services/session"
	"prompt_gallery/internal/storage/cache"
	storage "prompt_gallery/internal/storage/filestorage"
	redisapp "prompt_gallery/internal/storage/redis"
	"prompt_gallery/internal/transport/backend"
	httprouters "prompt_gallery/internal/transport/http"
	"prompt_gallery/internal/transport/http/sse"

	"golang.org/x/sync/errgroup"
)

const redisPingTimeout = 3 * time.Second

type App struct {
	log *slog.Logger

	HTTPServer *httpapp.Server
	Controller *session.Controller
	Publisher  *selection.Publisher
	Hub        *sse.Hub

	redis *redisapp.Client
}

// generationTransport адаптирует клиент бэкенда к интерфейсу контроллера сессии
type generationTransport struct {
	client *backend.Client
}

func (t generationTransport) Open(ctx context.Context, prompt string) (session.Stream, error) {
	stream, err := t.client.Start(ctx, prompt)
	if err != nil {
		// без явного nil интерфейс получил бы типизированный nil
		return nil, err
	}

	return stream, nil
}

func (t generationTransport) Cancel(ctx context.Context) error {
	_, err := t.client.Stop(ctx)

	return err
}

func New(log *slog.Logger, cfg *config.Config) (*App, error) {
	const op = "app.New"

	client, err := backend.New(log, cfg.Backend.BaseURL, cfg.Backend.Timeout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	fileStorage := storage.NewLocalFileStorage(log, cfg.FileStorage.BaseDir)
	images := cache.NewImageCache(log, fileStorage, cfg.Cache.ImageTTL, cfg.Cache.CleanupInterval)

	var (
		repo        repository.SelectionRepository = repository.NoopSelectionRepo{}
		redisClient *redisapp.Client
	)

	if cfg.Redis.RedisAddr != "" {
		redisClient = redisapp.NewClient(cfg.Redis.RedisAddr, cfg.Redis.RedisPassword, cfg.Redis.RedisDB)

		ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		err := redisClient.HealthCheck(ctx)
		cancel()

		if err != nil {
			// история выбора необязательна, работаем без нее
			log.Warn("redis is unavailable, selection history disabled", slog.String("op", op), sl.Err(err))
			_ = redisClient.Close()
			redisClient = nil
		} else {
			repo = repository.NewRedisSelectionRepo(redisClient)
			log.Info("selection history enabled", slog.String("op", op), slog.String("addr", cfg.Redis.RedisAddr))
		}
	}

	publisher := selection.NewPublisher(log, client, repo, cfg.Gallery.PublishDebounce)
	gal := gallery.New(log, images)

	ctrl := session.NewController(log, generationTransport{client: client}, images, gal, publisher, session.Options{
		PollInterval:   cfg.Gallery.PollInterval,
		ExpectedImages: cfg.Gallery.ExpectedImages,
	})

	hub := sse.NewHub(log)

	broadcast := func() {
		if err := hub.PublishJSON(ctrl.State()); err != nil {
			log.Error("failed to broadcast state", sl.Err(err))
		}
	}
	gal.SetOnChange(broadcast)
	ctrl.SetOnChange(broadcast)

	routers := httprouters.NewRouter(log, client, images, ctrl, repo, hub)

	server := httpapp.New(log, cfg.HTTP.Host, cfg.HTTP.Port, cfg.HTTP.Timeout, cfg.HTTP.IdleTimeout, routers)
	server.BuildRouters()

	return &App{
		log:        log,
		HTTPServer: server,
		Controller: ctrl,
		Publisher:  publisher,
		Hub:        hub,
		redis:      redisClient,
	}, nil
}

// Run блокируется до отмены ctx или падения одного из компонентов
func (a *App) Run(ctx context.Context) error {
	const op = "app.Run"

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		a.Publisher.Run(gctx)
		return nil
	})

	g.Go(func() error {
		return a.Controller.Run(gctx)
	})

	g.Go(func() error {
		return a.HTTPServer.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		return a.HTTPServer.Stop()
	})

	err := g.Wait()

	if a.redis != nil {
		if cerr := a.redis.Close(); cerr != nil {
			a.log.Warn("failed to close redis", slog.String("op", op), sl.Err(cerr))
		}
	}

	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
