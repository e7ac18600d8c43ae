package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/uiowa-coph/roomres/internal/config"
	"github.com/uiowa-coph/roomres/internal/docsync"
	"github.com/uiowa-coph/roomres/internal/http/handler"
	"github.com/uiowa-coph/roomres/internal/http/router"
	"github.com/uiowa-coph/roomres/internal/identity"
	"github.com/uiowa-coph/roomres/internal/observability"
	"github.com/uiowa-coph/roomres/internal/pipeline"
	"github.com/uiowa-coph/roomres/internal/repository"
	"github.com/uiowa-coph/roomres/internal/security"
	"github.com/uiowa-coph/roomres/internal/session"
	"github.com/uiowa-coph/roomres/internal/workflow"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Observability *observability.Runtime
}

// New wires the whole service: stores, external clients, pipeline, HTTP
// surface.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, runtime *observability.Runtime) (*App, error) {
	db, err := repository.Open(cfg)
	if err != nil {
		return nil, err
	}

	var sessions session.Store
	if cfg.RedisAddr == "" {
		sessions = session.NewMemoryStore()
		logger.Warn("no redis configured, sessions are in-memory")
	} else {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, err
		}
		sessions = session.NewRedisStore(client, "session", cfg.SessionTTL)
	}

	idClient := identity.NewClient(cfg)
	routerClient := workflow.NewClient(cfg, idClient)
	docsClient := docsync.NewClient(cfg)

	p := pipeline.New(
		routerClient,
		repository.NewEventRepository(db),
		repository.NewLayoutRepository(db),
		docsClient,
		cfg.BaseURL,
		logger,
	)

	stateMgr := security.NewStateManager(cfg.StateSecret, 10*time.Minute)

	h := router.NewRouter(router.Dependencies{
		AuthHandler:     handler.NewAuthHandler(idClient, sessions, stateMgr, cfg.SessionTTL, !cfg.IsDev()),
		EventHandler:    handler.NewEventHandler(p),
		LayoutHandler:   handler.NewLayoutHandler(p),
		CallbackHandler: handler.NewCallbackHandler(p, cfg.CallbackSecret),
		SessionStore:    sessions,
		Refresher:       idClient,
		DevOrigins:      devOrigins(cfg),
		EnableOTelHTTP:  cfg.OTELTracingEnabled,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{Config: cfg, Logger: logger, Server: server, Observability: runtime}, nil
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("http server listening", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return a.Observability.Shutdown(shutdownCtx)
}

func devOrigins(cfg *config.Config) []string {
	if !cfg.IsDev() {
		return nil
	}
	return cfg.DevOrigins
}
