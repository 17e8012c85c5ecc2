package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/swaggo/swag"
	"golang.org/x/sync/errgroup"

	domainauth "github.com/thependalorian/cea-gateway/internal/domain/auth"
	"github.com/thependalorian/cea-gateway/internal/domain/document"
	"github.com/thependalorian/cea-gateway/internal/domain/eventbus"
	"github.com/thependalorian/cea-gateway/internal/domain/ingest"
	"github.com/thependalorian/cea-gateway/internal/domain/ratelimit"
	platformconfig "github.com/thependalorian/cea-gateway/internal/platform/config"
	platformerrors "github.com/thependalorian/cea-gateway/internal/platform/errors"
	platformlogging "github.com/thependalorian/cea-gateway/internal/platform/logging"
	platformobservability "github.com/thependalorian/cea-gateway/internal/platform/observability"
	platformstorage "github.com/thependalorian/cea-gateway/internal/platform/storage"
	httptransport "github.com/thependalorian/cea-gateway/internal/transport/http"
	httpresume "github.com/thependalorian/cea-gateway/internal/transport/http/resume"
	httpwebapi "github.com/thependalorian/cea-gateway/internal/transport/http/webapi"
)

const scalarHTML = `<!DOCTYPE html>
<html lang="en">
	<head>
		<meta charset="utf-8" />
		<title>CEA Gateway API Reference</title>
		<meta name="viewport" content="width=device-width, initial-scale=1" />
	</head>
	<body>
		<script
			id="api-reference"
			data-url="/openapi.json"
			data-layout="modern"
			src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"
		></script>
	</body>
</html>`

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	config                *platformconfig.Config
	configPath            string
	logger                *platformlogging.Logger
	slogger               *slog.Logger
	observabilityShutdown platformobservability.ShutdownFunc
	limiter               ratelimit.Limiter
	uploads               platformstorage.UploadRepository
}

// Run drives the whole service lifecycle: configuration, dependency
// initialisation, serving and graceful shutdown.
func Run(ctx context.Context) error {
	state := &appState{}

	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		return err
	}

	config := state.config
	logger := state.logger
	if config == nil || logger == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"config/logger not initialised",
		)
	}

	logBootstrapGraph(steps, logger)

	if shutdown := state.observabilityShutdown; shutdown != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.WarnTag("bootstrap", "observability shutdown failed: %v", err)
			}
		}()
	}
	defer eventbus.Shutdown()

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	if _, err := startHTTPServer(state, group, groupCtx); err != nil {
		cancel()
		return err
	}

	if err := waitForShutdown(signalCtx, cancel, logger, group); err != nil {
		return err
	}

	logger.InfoTag("bootstrap", "service stopped cleanly")
	logger.Close()
	return nil
}

func logBootstrapGraph(steps []initStep, logger *platformlogging.Logger) {
	if logger == nil {
		return
	}
	logger.InfoTag("bootstrap", "initialisation steps completed:")
	for _, step := range steps {
		logger.InfoTag("bootstrap", "  %s", step.Title)
	}
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

// InitGraph declares the ordered initialisation steps with their
// dependencies.
func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "observability:setup-hooks",
			Title:     "Setup observability hooks",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   setupObservabilityStep,
		},
		{
			ID:        "storage:init-database",
			Title:     "Initialise audit database",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   initDatabaseStep,
		},
		{
			ID:        "eventbus:init-handlers",
			Title:     "Register event handlers",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initEventBusStep,
		},
		{
			ID:        "ratelimit:init-limiter",
			Title:     "Initialise rate limiter",
			DependsOn: []string{"config:load", "logging:init-provider"},
			Kind:      platformerrors.KindRateLimit,
			Execute:   initRateLimitStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	result, err := platformconfig.NewLoader().Load()
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindConfig, "config:load", "failed to load configuration", err)
	}
	state.config = result.Config
	state.configPath = result.Path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"logging:init-provider",
			"config not loaded",
		)
	}

	logger, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialize logging provider", err)
	}

	state.logger = logger
	state.slogger = logger.Slog()
	platformlogging.DefaultLogger = logger

	logger.InfoTag(
		"bootstrap",
		"logging ready [%s] config=%s",
		state.config.Log.Level,
		state.configPath,
	)
	return nil
}

func setupObservabilityStep(ctx context.Context, state *appState) error {
	if state == nil || state.logger == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"observability:setup-hooks",
			"config/logger not initialised",
		)
	}

	cfg := platformobservability.Config{
		Enabled: strings.EqualFold(state.config.Log.Level, "debug"),
	}

	shutdown, err := platformobservability.Setup(ctx, cfg, state.slogger)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "observability:setup-hooks", "failed to setup observability hooks", err)
	}
	state.observabilityShutdown = shutdown
	return nil
}

func initDatabaseStep(_ context.Context, state *appState) error {
	if err := platformstorage.InitDatabase(state.config.Storage.DSN); err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "storage:init-database", "failed to initialize database", err)
	}
	state.uploads = platformstorage.NewUploadRepository(platformstorage.GetDB())
	return nil
}

func initEventBusStep(_ context.Context, state *appState) error {
	handler := eventbus.NewAuditLogHandler(state.logger)
	if err := handler.Register(); err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "eventbus:init-handlers", "failed to register event handlers", err)
	}
	return nil
}

func initRateLimitStep(_ context.Context, state *appState) error {
	cfg := state.config.RateLimit
	if !cfg.Enabled {
		state.logger.InfoTag("ratelimit", "rate limiting disabled")
		return nil
	}

	switch strings.ToLower(cfg.Store) {
	case "", "memory":
		limiter, err := ratelimit.NewMemoryLimiter(cfg.PerMinute, cfg.Burst)
		if err != nil {
			return platformerrors.Wrap(platformerrors.KindRateLimit, "ratelimit:init-limiter", "failed to create memory limiter", err)
		}
		state.limiter = limiter
	case "redis":
		if cfg.Redis.Addr == "" {
			return platformerrors.New(platformerrors.KindRateLimit, "ratelimit:init-limiter", "redis store addr is required")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		limiter, err := ratelimit.NewRedisLimiter(client, cfg.Redis.Prefix, cfg.PerMinute, cfg.Burst)
		if err != nil {
			return platformerrors.Wrap(platformerrors.KindRateLimit, "ratelimit:init-limiter", "failed to create redis limiter", err)
		}
		state.limiter = limiter
	default:
		return platformerrors.New(
			platformerrors.KindRateLimit,
			"ratelimit:init-limiter",
			fmt.Sprintf("unsupported rate limit store %q", cfg.Store),
		)
	}

	state.logger.InfoTag("ratelimit", "rate limiting active: %d/min (+%d burst), store=%s",
		cfg.PerMinute, cfg.Burst, cfg.Store)
	return nil
}

func startHTTPServer(state *appState, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	config := state.config
	logger := state.logger

	var rateLimitMiddleware gin.HandlerFunc
	if state.limiter != nil {
		var tokens *domainauth.AuthToken
		if config.Server.Auth.Enabled && config.Server.Token != "" {
			tokens = domainauth.NewAuthToken(config.Server.Token)
		}
		rateLimitMiddleware = httptransport.RateLimitMiddleware(state.limiter, tokens, logger)
	}

	httpRouter, err := httptransport.Build(httptransport.Options{
		Config:    config,
		Logger:    logger,
		RateLimit: rateLimitMiddleware,
	})
	if err != nil {
		return nil, err
	}
	router := httpRouter.Engine
	apiGroup := httpRouter.API

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, httptransport.APIResponse{
			Success: false,
			Data:    gin.H{},
			Message: "not found",
			Code:    http.StatusNotFound,
		})
	})

	allowedFormats := make([]string, 0, len(config.Upload.AllowedTypes))
	for _, contentType := range config.Upload.AllowedTypes {
		if format := document.FormatFromContentType(contentType); format != "" {
			allowedFormats = append(allowedFormats, format)
		}
	}
	validator := document.NewSecurityValidator(config.Upload.MaxFileSize, allowedFormats, logger)
	documentPipeline := document.NewPipeline(validator, config.Upload.MaxFileSize, logger)

	httpClient := &http.Client{Timeout: config.Upstream.RequestTimeout}
	directClient := ingest.NewDirectClient(config.Upstream.RAGAPIURL, httpClient, logger)
	agentClient := ingest.NewAgentClient(config.Upstream.AgentAPIURL, httpClient, logger)
	ingestPipeline := ingest.NewPipeline(
		directClient,
		agentClient,
		ingest.UUIDGenerator{},
		config.Upstream.RequestTimeout,
		logger,
	)

	resumeService, err := httpresume.NewService(config, logger, ingestPipeline, documentPipeline, state.uploads)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "resume:new-service", "failed to create resume service", err)
	}

	webapiService, err := httpwebapi.NewService(config, logger)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "webapi:new-service", "failed to create webapi service", err)
	}

	if err := resumeService.Register(groupCtx, router, apiGroup); err != nil {
		return nil, err
	}
	if err := webapiService.Register(groupCtx, apiGroup); err != nil {
		return nil, err
	}

	httpServer := &http.Server{
		Addr:    ":" + strconv.Itoa(config.Server.Port),
		Handler: router,
	}

	router.GET("/openapi.json", func(c *gin.Context) {
		doc, err := swag.ReadDoc()
		if err != nil {
			logger.ErrorTag("HTTP", "failed to generate OpenAPI document: %v", err)
			c.JSON(http.StatusInternalServerError, httptransport.APIResponse{
				Success: false,
				Data:    gin.H{"error": err.Error()},
				Message: "failed to generate openapi spec",
				Code:    http.StatusInternalServerError,
			})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(doc))
	})

	router.GET("/docs", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(scalarHTML))
	})

	g.Go(func() error {
		logger.InfoTag("HTTP", "gateway listening on http://localhost:%d", config.Server.Port)
		logger.InfoTag("HTTP", "resume upload endpoint: http://localhost:%d/resume/upload", config.Server.Port)
		logger.InfoTag("HTTP", "API reference: http://localhost:%d/docs", config.Server.Port)

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "HTTP server shutdown failed: %v", err)
			} else {
				logger.InfoTag("HTTP", "HTTP server shut down cleanly")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "HTTP server failed: %v", err)
			return err
		}
		return nil
	})

	return httpServer, nil
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *platformlogging.Logger,
	g *errgroup.Group,
) error {
	<-ctx.Done()
	logger.InfoTag("bootstrap", "received shutdown signal %v, cleaning up", context.Cause(ctx))

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("bootstrap", "error during shutdown: %v", err)
			return err
		}
		logger.InfoTag("bootstrap", "all services stopped")
	case <-time.After(15 * time.Second):
		timeoutErr := errors.New("shutdown timed out")
		logger.ErrorTag("bootstrap", "shutdown timed out, exiting")
		return timeoutErr
	}
	return nil
}
