package models

import "time"

type User struct {
	ID          string    `json:"id"`
	ExternalID  string    `json:"external_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type RecordingStatus string

const (
	RecordingStatusActive    RecordingStatus = "active"
	RecordingStatusPaused    RecordingStatus = "paused"
	RecordingStatusFinishing RecordingStatus = "finishing"
	RecordingStatusEnded     RecordingStatus = "ended"
)

type Recording struct {
	ID                string          `json:"id"`
	OwnerID           string          `json:"owner_id"`
	Status            RecordingStatus `json:"status"`
	AudioFilePath     string          `json:"audio_file_path,omitempty"`
	TranscriptionText string          `json:"transcription_text,omitempty"`
	Notes             string          `json:"notes,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type RecordingChunk struct {
	ID              string    `json:"id"`
	RecordingID     string    `json:"recording_id"`
	ChunkIndex      int       `json:"chunk_index"`
	BlobPath        string    `json:"blob_path"`
	DurationSeconds *float64  `json:"duration_seconds,omitempty"`
	UploadedAt      time.Time `json:"uploaded_at"`
}

// RecordingResponse is the wire shape of a recording returned by the API.
// Nullable text fields are pointers so clients see explicit nulls.
type RecordingResponse struct {
	ID                string  `json:"id"`
	Status            string  `json:"status"`
	CreatedAt         string  `json:"created_at"`
	TranscriptionText *string `json:"transcription_text"`
	Notes             *string `json:"notes"`
}

type ChunkUploadResponse struct {
	Status     string `json:"status"`
	ChunkIndex int    `json:"chunk_index"`
}

type FinishResponse struct {
	Status        string `json:"status"`
	Transcription string `json:"transcription"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type NotesUpdate struct {
	Notes string `json:"notes"`
}

func NewRecordingResponse(rec Recording) RecordingResponse {
	resp := RecordingResponse{
		ID:        rec.ID,
		Status:    string(rec.Status),
		CreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if rec.TranscriptionText != "" {
		t := rec.TranscriptionText
		resp.TranscriptionText = &t
	}
	if rec.Notes != "" {
		n := rec.Notes
		resp.Notes = &n
	}
	return resp
}
