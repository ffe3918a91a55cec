package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/leonj1/scribe-crush/internal/server/config"
	"github.com/leonj1/scribe-crush/internal/server/service"
	cryptohelper "github.com/leonj1/scribe-crush/internal/shared/crypto"
)

const serviceName = "scribe-crush"

type Router struct {
	services *service.Services
	logger   *log.Logger
	cfg      config.Config
	stateKey []byte
}

func NewRouter(services *service.Services, logger *log.Logger, cfg config.Config) http.Handler {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	r := &Router{
		services: services,
		logger:   logger,
		cfg:      cfg,
		stateKey: cryptohelper.DeriveKey(cfg.JWTSecret, "oauth-state"),
	}
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: logger, NoColor: true}))
	mux.Use(middleware.Recoverer)
	if cfg.FrontendURL != "" {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{cfg.FrontendURL},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	mux.Get("/", r.handleRoot)
	mux.Get("/health", r.handleHealth)
	mux.Get("/openapi.yaml", r.handleOpenAPI)
	mux.Get("/auth/google/login", r.handleGoogleLogin)
	mux.Get("/auth/google/callback", r.handleGoogleCallback)

	mux.Group(func(pr chi.Router) {
		pr.Use(r.authMiddleware)
		pr.Get("/users/me", r.handleMe)
		pr.Post("/recordings", r.handleCreateRecording)
		pr.Get("/recordings", r.handleListRecordings)
		pr.Get("/recordings/{id}", r.handleGetRecording)
		pr.Post("/recordings/{id}/chunks", r.handleUploadChunk)
		pr.Patch("/recordings/{id}/pause", r.handlePauseRecording)
		pr.Patch("/recordings/{id}/resume", r.handleResumeRecording)
		pr.Post("/recordings/{id}/finish", r.handleFinishRecording)
		pr.Patch("/recordings/{id}/notes", r.handleUpdateNotes)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps service errors onto status codes.
func (r *Router) writeError(w http.ResponseWriter, req *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeErrorMessage(w, http.StatusNotFound, "Recording not found")
	case errors.Is(err, service.ErrForbidden):
		writeErrorMessage(w, http.StatusForbidden, "Access denied")
	case errors.Is(err, service.ErrUnauthorized):
		writeErrorMessage(w, http.StatusUnauthorized, "Invalid authentication credentials")
	case errors.Is(err, service.ErrValidation):
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrConflict):
		writeErrorMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrTooLarge):
		writeErrorMessage(w, http.StatusRequestEntityTooLarge, "request entity too large")
	case errors.Is(err, service.ErrUpstream):
		r.logger.Printf("%s %s: %v", req.Method, req.URL.Path, err)
		writeErrorMessage(w, http.StatusBadGateway, err.Error())
	default:
		r.logger.Printf("%s %s: %v", req.Method, req.URL.Path, err)
		writeErrorMessage(w, http.StatusInternalServerError, "internal error")
	}
}
