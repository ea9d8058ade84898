package httpapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	appmiddleware "prompt_gallery/internal/middleware"
	httprouters "prompt_gallery/internal/transport/http"

	"github.com/arl/statsviz"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"
)

const shutdownTimeout = 10 * time.Second

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

type Server struct {
	m       *http.ServeMux
	log     *slog.Logger
	e       *echo.Echo
	routers *httprouters.Routers
	host    string
	port    string
}

func New(log *slog.Logger, host, port string, timeout, idleTimeout time.Duration, routers *httprouters.Routers) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// потоковые ответы живут дольше timeout, поэтому WriteTimeout не задается
	e.Server.ReadHeaderTimeout = timeout
	e.Server.IdleTimeout = idleTimeout

	validate := validator.New()
	e.Validator = &CustomValidator{validator: validate}

	e.Use(middleware.CORS())
	e.Use(middleware.Recover())
	e.Use(appmiddleware.PrometheusMetrics)

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request",
				slog.String("method", v.Method),
				slog.String("URI", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote ip", v.RemoteIP),
			)

			return nil
		},
	}))

	mux := http.NewServeMux()
	err := statsviz.Register(mux)
	if err != nil {
		log.Info("Statsviz start with error", slog.Any("error:", err.Error()))
	}

	return &Server{
		m:       mux,
		log:     log,
		e:       e,
		routers: routers,
		host:    host,
		port:    port,
	}
}

// Handler нужен тестам, чтобы гонять маршруты через httptest
func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) Start() error {
	const op = "http.Server.Start"

	addr := net.JoinHostPort(s.host, s.port)

	s.log.Info("http server listening", slog.String("op", op), slog.String("addr", addr))

	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server stopped: %w", op, err)
	}

	return nil
}

func (s *Server) Stop() error {
	const op = "http.Server.Stop"

	optCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.log.Info("stopping", slog.String("op", op))

	if err := s.e.Shutdown(optCtx); err != nil {
		return fmt.Errorf("%s could not shutdown server gracefuly: %w", op, err)
	}

	return nil
}

func (s *Server) BuildRouters() {
	s.e.GET("/health", s.routers.Health)
	s.e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	debug := s.e.Group("/debug")
	{
		debug.GET("/statsviz/", echo.WrapHandler(s.m))
		debug.GET("/statsviz/*", echo.WrapHandler(s.m))
	}

	swagger := s.e.Group("/swag")
	{
		swagger.GET("/swagger/*", echoSwagger.WrapHandler)
	}

	api := s.e.Group("/api")
	{
		api.GET("/generate", s.routers.GenerateStream)
		api.POST("/generate", s.routers.StopGeneration)

		imagesGroup := api.Group("/images")
		{
			imagesGroup.GET("", s.routers.GetImage)
			imagesGroup.GET("/list", s.routers.ListImages)
			imagesGroup.DELETE("/clear", s.routers.ClearImages)
		}

		sessionGroup := api.Group("/session")
		{
			sessionGroup.GET("", s.routers.GetSession)
			sessionGroup.GET("/events", s.routers.SessionEvents)
			sessionGroup.POST("/generate", s.routers.SubmitPrompt)
			sessionGroup.POST("/stop", s.routers.StopSession)
			sessionGroup.POST("/selection", s.routers.ToggleSelection)
			sessionGroup.DELETE("/images", s.routers.ClearSession)
		}

		api.GET("/selection/current", s.routers.CurrentSelection)
		api.GET("/selection/history", s.routers.SelectionHistory)
	}
}
