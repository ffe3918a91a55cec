package service

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/leonj1/scribe-crush/internal/server/config"
	"github.com/leonj1/scribe-crush/internal/server/oauth"
	"github.com/leonj1/scribe-crush/internal/server/transcribe"
	"github.com/leonj1/scribe-crush/internal/shared/models"
)

type Repository interface {
	UpsertUser(ctx context.Context, u models.User) (models.User, error)
	GetUserByID(ctx context.Context, id string) (models.User, error)

	CreateRecording(ctx context.Context, ownerID string) (models.Recording, error)
	GetRecording(ctx context.Context, id string) (models.Recording, error)
	ListRecordings(ctx context.Context, ownerID string) ([]models.Recording, error)
	TransitionStatus(ctx context.Context, id string, from []models.RecordingStatus, to models.RecordingStatus) error
	MarkEnded(ctx context.Context, id, audioFilePath, transcription string) (models.Recording, error)
	UpdateNotes(ctx context.Context, id, notes string) error

	AddChunk(ctx context.Context, c models.RecordingChunk) (models.RecordingChunk, error)
	ListChunks(ctx context.Context, recordingID string) ([]models.RecordingChunk, error)
}

// BlobStore holds chunk bytes and assembled recordings.
type BlobStore interface {
	SaveChunk(ctx context.Context, recordingID string, index int, r io.Reader) (string, error)
	Assemble(ctx context.Context, recordingID string, orderedPaths []string) (string, error)
	RemoveChunks(ctx context.Context, paths []string) error
}

// Deps are the collaborators the services are built from.
type Deps struct {
	Repo        Repository
	Blobs       BlobStore
	Transcriber transcribe.Backend
	Identity    oauth.Provider
	Logger      *log.Logger
}

type Services struct {
	Auth       *AuthService
	Recordings *RecordingsService
}

func NewServices(deps Deps, cfg config.Config) *Services {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	ttl := cfg.TokenTTL()
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Services{
		Auth: &AuthService{
			repo:      deps.Repo,
			identity:  deps.Identity,
			jwtSecret: []byte(cfg.JWTSecret),
			algorithm: cfg.JWTAlgorithm,
			tokenTTL:  ttl,
			now:       time.Now,
		},
		Recordings: &RecordingsService{
			repo:              deps.Repo,
			blobs:             deps.Blobs,
			transcriber:       deps.Transcriber,
			transcribeTimeout: cfg.TranscribeTimeout,
			logger:            logger,
		},
	}
}
