package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/leonj1/scribe-crush/internal/server/repository"
	"github.com/leonj1/scribe-crush/internal/server/storage"
	"github.com/leonj1/scribe-crush/internal/server/transcribe"
	"github.com/leonj1/scribe-crush/internal/shared/models"
)

var openStatuses = []models.RecordingStatus{models.RecordingStatusActive, models.RecordingStatusPaused}

// RecordingsService drives the recording lifecycle:
// active <-> paused, then finishing -> ended once the audio is transcribed.
// Every operation on an existing recording is restricted to its owner.
type RecordingsService struct {
	repo              Repository
	blobs             BlobStore
	transcriber       transcribe.Backend
	transcribeTimeout time.Duration
	logger            *log.Logger
}

func (s *RecordingsService) Create(ctx context.Context, ownerID string) (models.Recording, error) {
	if ownerID == "" {
		return models.Recording{}, fmt.Errorf("%w: owner required", ErrValidation)
	}
	return s.repo.CreateRecording(ctx, ownerID)
}

func (s *RecordingsService) List(ctx context.Context, ownerID string) ([]models.Recording, error) {
	return s.repo.ListRecordings(ctx, ownerID)
}

func (s *RecordingsService) Get(ctx context.Context, callerID, id string) (models.Recording, error) {
	return s.authorize(ctx, callerID, id)
}

func (s *RecordingsService) authorize(ctx context.Context, callerID, id string) (models.Recording, error) {
	rec, err := s.repo.GetRecording(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.Recording{}, ErrNotFound
		}
		return models.Recording{}, err
	}
	if rec.OwnerID != callerID {
		return models.Recording{}, ErrForbidden
	}
	return rec, nil
}

// UploadChunk stores one chunk of an open recording. Chunks keep flowing while
// the recording is paused; once finishing or ended it accepts no more.
func (s *RecordingsService) UploadChunk(ctx context.Context, callerID, id string, index int, r io.Reader) (models.RecordingChunk, error) {
	rec, err := s.authorize(ctx, callerID, id)
	if err != nil {
		return models.RecordingChunk{}, err
	}
	if index < 0 {
		return models.RecordingChunk{}, fmt.Errorf("%w: chunk_index must not be negative", ErrValidation)
	}
	if !isOpen(rec.Status) {
		return models.RecordingChunk{}, fmt.Errorf("%w: recording is %s", ErrConflict, rec.Status)
	}
	path, err := s.blobs.SaveChunk(ctx, rec.ID, index, r)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return models.RecordingChunk{}, ErrTooLarge
		}
		return models.RecordingChunk{}, fmt.Errorf("save chunk: %w", err)
	}
	return s.repo.AddChunk(ctx, models.RecordingChunk{RecordingID: rec.ID, ChunkIndex: index, BlobPath: path})
}

// Pause is idempotent on an already paused recording.
func (s *RecordingsService) Pause(ctx context.Context, callerID, id string) error {
	return s.moveOpen(ctx, callerID, id, models.RecordingStatusPaused)
}

// Resume is idempotent on an already active recording.
func (s *RecordingsService) Resume(ctx context.Context, callerID, id string) error {
	return s.moveOpen(ctx, callerID, id, models.RecordingStatusActive)
}

func (s *RecordingsService) moveOpen(ctx context.Context, callerID, id string, to models.RecordingStatus) error {
	if _, err := s.authorize(ctx, callerID, id); err != nil {
		return err
	}
	if err := s.repo.TransitionStatus(ctx, id, openStatuses, to); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return fmt.Errorf("%w: recording can no longer be %s", ErrConflict, to)
		}
		return err
	}
	return nil
}

// Finish assembles the chunks in ascending index order, transcribes the
// result and marks the recording ended. The status compare-and-set to
// finishing lets exactly one concurrent caller through. On any failure before
// the recording is ended the previous status is restored.
func (s *RecordingsService) Finish(ctx context.Context, callerID, id string) (models.Recording, error) {
	rec, err := s.authorize(ctx, callerID, id)
	if err != nil {
		return models.Recording{}, err
	}
	if !isOpen(rec.Status) {
		return models.Recording{}, fmt.Errorf("%w: recording is %s", ErrConflict, rec.Status)
	}
	if err := s.repo.TransitionStatus(ctx, id, openStatuses, models.RecordingStatusFinishing); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return models.Recording{}, fmt.Errorf("%w: finish already in progress", ErrConflict)
		}
		return models.Recording{}, err
	}

	// The client going away must not strand the recording half-finished.
	work := context.WithoutCancel(ctx)
	ended, chunkPaths, err := s.finish(work, rec)
	if err != nil {
		if rerr := s.repo.TransitionStatus(work, id, []models.RecordingStatus{models.RecordingStatusFinishing}, rec.Status); rerr != nil {
			s.logger.Printf("recording %s: restore status %s after failed finish: %v", id, rec.Status, rerr)
		}
		return models.Recording{}, err
	}

	if err := s.blobs.RemoveChunks(work, chunkPaths); err != nil {
		s.logger.Printf("recording %s: chunk cleanup: %v", id, err)
	}
	return ended, nil
}

func (s *RecordingsService) finish(ctx context.Context, rec models.Recording) (models.Recording, []string, error) {
	chunks, err := s.repo.ListChunks(ctx, rec.ID)
	if err != nil {
		return models.Recording{}, nil, fmt.Errorf("list chunks: %w", err)
	}
	if len(chunks) == 0 {
		return models.Recording{}, nil, fmt.Errorf("%w: recording has no chunks", ErrValidation)
	}
	paths := make([]string, len(chunks))
	for i, c := range chunks {
		paths[i] = c.BlobPath
	}
	audioPath, err := s.blobs.Assemble(ctx, rec.ID, paths)
	if err != nil {
		return models.Recording{}, nil, fmt.Errorf("assemble chunks: %w", err)
	}

	tctx := ctx
	if s.transcribeTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, s.transcribeTimeout)
		defer cancel()
	}
	started := time.Now()
	text, err := s.transcriber.Transcribe(tctx, audioPath)
	if err != nil {
		return models.Recording{}, nil, fmt.Errorf("%w: transcription failed: %v", ErrUpstream, err)
	}
	s.logger.Printf("recording %s: transcribed %d chunks in %s", rec.ID, len(chunks), time.Since(started).Round(time.Millisecond))

	ended, err := s.repo.MarkEnded(ctx, rec.ID, audioPath, text)
	if err != nil {
		return models.Recording{}, nil, fmt.Errorf("mark ended: %w", err)
	}
	return ended, paths, nil
}

// UpdateNotes replaces the free-form notes in any status.
func (s *RecordingsService) UpdateNotes(ctx context.Context, callerID, id, notes string) error {
	if _, err := s.authorize(ctx, callerID, id); err != nil {
		return err
	}
	if err := s.repo.UpdateNotes(ctx, id, notes); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func isOpen(st models.RecordingStatus) bool {
	return st == models.RecordingStatusActive || st == models.RecordingStatusPaused
}
