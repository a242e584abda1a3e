// Package app wires the service together: storage, token lifecycle,
// calendar access, chat, and the HTTP surface.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"calendar-chat/internal/auth"
	"calendar-chat/internal/chat"
	"calendar-chat/internal/common/errors"
	"calendar-chat/internal/common/logging"
	"calendar-chat/internal/config"
	"calendar-chat/internal/crypto"
	"calendar-chat/internal/gcal"
	"calendar-chat/internal/handlers"
	"calendar-chat/internal/llm"
	"calendar-chat/internal/locks"
	"calendar-chat/internal/ratelimit"
	"calendar-chat/internal/server"
	"calendar-chat/internal/storage"
	"calendar-chat/internal/storage/postgres"
	"calendar-chat/internal/storage/sqlite"
	"calendar-chat/internal/tokens"
	"calendar-chat/internal/tools"
)

// App holds the wired components of the running service
type App struct {
	Config  *config.Config
	Storage storage.Storage
	Logger  logging.Logger

	supervisor *tokens.Supervisor
	sweeper    *tokens.Sweeper
	locker     *locks.RedisLocker
	srv        *server.Server
}

// New builds the full dependency graph from configuration. Nothing is
// listening yet; call Run.
func New(cfg *config.Config) (*App, error) {
	logger := logging.GetGlobalLogger()

	store, err := openStorage(cfg)
	if err != nil {
		return nil, err
	}

	encryptor, err := crypto.NewTokenEncryptor(cfg.TokenEncryptionKey)
	if err != nil {
		return nil, err
	}
	encrypted := storage.WithEncryption(store, encryptor)

	refresher, err := tokens.NewRefresher(tokens.RefresherConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		TokenURL:     cfg.GoogleTokenURL,
	}, nil)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:  cfg,
		Storage: encrypted,
		Logger:  logger,
	}

	supervisorOpts := []tokens.SupervisorOption{}
	if cfg.RedisAddress != "" {
		locker, err := locks.NewRedisLocker(&locks.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		app.locker = locker
		supervisorOpts = append(supervisorOpts, tokens.WithLocker(locker))
		logger.Info("Single-flight token refresh enabled",
			logging.Field{Key: "redis", Value: cfg.RedisAddress},
		)
	}
	app.supervisor = tokens.NewSupervisor(encrypted, refresher, supervisorOpts...)
	app.sweeper = tokens.NewSweeper(encrypted, app.supervisor, "", 0)

	caller := gcal.NewCaller(app.supervisor, cfg.CalendarBaseURL, nil)
	calendarClient := gcal.NewClient(caller)

	llmClient, err := llm.NewClient(llm.Config{
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
		BaseURL: cfg.LLMBaseURL,
	}, nil)
	if err != nil {
		return nil, err
	}

	executor := tools.NewExecutor(calendarClient)
	chatSvc := chat.NewService(encrypted, llmClient, executor)

	sessions := auth.NewSessions(cfg.JWTSecret)
	connector := auth.NewGoogleConnector(
		cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL,
		encrypted, sessions,
	)

	h := handlers.New(encrypted, chatSvc, calendarClient, sessions, connector)
	router := mux.NewRouter()
	SetupRoutes(router, h, sessions.RequireAuth, ratelimit.New(ratelimit.DefaultConfig))

	app.srv = server.New(router, cfg.Port, "", "")
	return app, nil
}

func openStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.DatabaseType {
	case "sqlite":
		return sqlite.NewAdapter(cfg.DatabasePath)
	case "postgres":
		return postgres.NewAdapter(cfg.PostgresDSN())
	default:
		return nil, errors.ConfigError("unsupported database type: " + cfg.DatabaseType)
	}
}

// Run starts the proactive token sweep and the HTTP server, then blocks
// until ctx is canceled or the server fails.
func (a *App) Run(ctx context.Context) error {
	if err := a.sweeper.Start(); err != nil {
		return err
	}

	a.Logger.Info("Server starting",
		logging.Field{Key: "port", Value: a.Config.Port},
		logging.Field{Key: "database", Value: a.Config.DatabaseType},
	)
	errCh := a.srv.Start()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return a.shutdown()
	}
}

func (a *App) shutdown() error {
	a.Logger.Info("Shutting down")
	a.sweeper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err := a.srv.Shutdown(ctx)
	if err != nil && err != http.ErrServerClosed {
		a.Logger.Error("Server shutdown failed", err)
	}

	if a.locker != nil {
		if cerr := a.locker.Close(); cerr != nil {
			a.Logger.Warn("Failed to close Redis connection",
				logging.Field{Key: "error", Value: cerr},
			)
		}
	}
	if cerr := a.Storage.Close(); cerr != nil {
		a.Logger.Warn("Failed to close storage",
			logging.Field{Key: "error", Value: cerr},
		)
	}
	return err
}
