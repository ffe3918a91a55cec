package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/leonj1/scribe-crush/internal/server/config"
	"github.com/leonj1/scribe-crush/internal/server/httpapi"
	"github.com/leonj1/scribe-crush/internal/server/oauth"
	"github.com/leonj1/scribe-crush/internal/server/repository/sqlite"
	"github.com/leonj1/scribe-crush/internal/server/service"
	"github.com/leonj1/scribe-crush/internal/server/storage"
	"github.com/leonj1/scribe-crush/internal/server/transcribe"
)

type App struct {
	version   string
	buildDate string
	logger    *log.Logger
	server    *http.Server
	repoClose io.Closer
}

func New(version, buildDate string, logger *log.Logger) (*App, error) {
	return NewWithConfig(config.Load(), version, buildDate, logger)
}

// NewWithConfig wires storage, the identity provider, the transcription
// backend and the HTTP router from an already loaded configuration.
func NewWithConfig(cfg config.Config, version, buildDate string, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		logger.Printf("warning: Google OAuth client is not configured, sign-in will fail")
	}

	transcriber, err := newTranscriber(cfg)
	if err != nil {
		return nil, err
	}
	blobs, err := storage.NewFS(cfg.AudioStoragePath, cfg.AudioExt, cfg.MaxChunkBytes)
	if err != nil {
		return nil, fmt.Errorf("audio storage: %w", err)
	}
	repo, err := sqlite.New(cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	services := service.NewServices(service.Deps{
		Repo:        repo,
		Blobs:       blobs,
		Transcriber: transcriber,
		Identity:    oauth.NewGoogle(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.OAuthRedirectURL),
		Logger:      logger,
	}, cfg)
	router := httpapi.NewRouter(services, logger, cfg)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return &App{version: version, buildDate: buildDate, logger: logger, server: server, repoClose: repo}, nil
}

func newTranscriber(cfg config.Config) (transcribe.Backend, error) {
	switch cfg.Transcriber {
	case config.TranscriberHTTP:
		return transcribe.NewHTTPBackend(cfg.TranscriberURL, cfg.TranscriberAPIKey, cfg.TranscribeTimeout), nil
	case config.TranscriberOpenAI:
		return transcribe.NewOpenAIBackend(cfg.TranscriberAPIKey, cfg.TranscriberURL, cfg.TranscriberModel, cfg.TranscribeTimeout), nil
	}
	return nil, fmt.Errorf("unknown transcriber %q", cfg.Transcriber)
}

// Handler exposes the router, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

func (a *App) Close() error {
	return a.repoClose.Close()
}

func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer func() { _ = a.repoClose.Close() }()

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	a.logger.Printf("scribe-crush server %s (%s) listening on %s", a.version, a.buildDate, a.server.Addr)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.server.Shutdown(shutdownCtx)
}
