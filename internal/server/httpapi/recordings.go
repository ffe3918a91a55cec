package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/leonj1/scribe-crush/internal/server/models"
)

// multipartMemory is how much of a chunk upload is buffered in memory before
// spilling to a temp file.
const multipartMemory = 8 << 20

type notesRequest struct {
	Notes *string `json:"notes"`
}

func (r *Router) handleCreateRecording(w http.ResponseWriter, req *http.Request) {
	rec, err := r.services.Recordings.Create(req.Context(), getUserID(req.Context()))
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.NewRecordingResponse(rec))
}

func (r *Router) handleListRecordings(w http.ResponseWriter, req *http.Request) {
	recs, err := r.services.Recordings.List(req.Context(), getUserID(req.Context()))
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	out := make([]models.RecordingResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, models.NewRecordingResponse(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (r *Router) handleGetRecording(w http.ResponseWriter, req *http.Request) {
	rec, err := r.services.Recordings.Get(req.Context(), getUserID(req.Context()), chi.URLParam(req, "id"))
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewRecordingResponse(rec))
}

// handleUploadChunk accepts multipart/form-data with a chunk_index field and
// an audio_chunk file part.
func (r *Router) handleUploadChunk(w http.ResponseWriter, req *http.Request) {
	if r.cfg.MaxChunkBytes > 0 {
		// leave room for the multipart framing around the file part
		req.Body = http.MaxBytesReader(w, req.Body, r.cfg.MaxChunkBytes+64<<10)
	}
	if err := req.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorMessage(w, http.StatusRequestEntityTooLarge, "request entity too large")
			return
		}
		writeErrorMessage(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = req.MultipartForm.RemoveAll() }()

	raw := req.FormValue("chunk_index")
	if raw == "" {
		writeErrorMessage(w, http.StatusBadRequest, "chunk_index is required")
		return
	}
	index, err := strconv.Atoi(raw)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "chunk_index must be an integer")
		return
	}
	file, _, err := req.FormFile("audio_chunk")
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "audio_chunk file is required")
		return
	}
	defer file.Close()

	chunk, err := r.services.Recordings.UploadChunk(req.Context(), getUserID(req.Context()), chi.URLParam(req, "id"), index, file)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ChunkUploadResponse{Status: "success", ChunkIndex: chunk.ChunkIndex})
}

func (r *Router) handlePauseRecording(w http.ResponseWriter, req *http.Request) {
	if err := r.services.Recordings.Pause(req.Context(), getUserID(req.Context()), chi.URLParam(req, "id")); err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, models.StatusResponse{Status: string(models.RecordingStatusPaused)})
}

func (r *Router) handleResumeRecording(w http.ResponseWriter, req *http.Request) {
	if err := r.services.Recordings.Resume(req.Context(), getUserID(req.Context()), chi.URLParam(req, "id")); err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, models.StatusResponse{Status: string(models.RecordingStatusActive)})
}

func (r *Router) handleFinishRecording(w http.ResponseWriter, req *http.Request) {
	rec, err := r.services.Recordings.Finish(req.Context(), getUserID(req.Context()), chi.URLParam(req, "id"))
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, models.FinishResponse{Status: "completed", Transcription: rec.TranscriptionText})
}

func (r *Router) handleUpdateNotes(w http.ResponseWriter, req *http.Request) {
	req.Body = http.MaxBytesReader(w, req.Body, 1<<20)
	var body notesRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorMessage(w, http.StatusRequestEntityTooLarge, "request entity too large")
			return
		}
		writeErrorMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.Notes == nil {
		writeErrorMessage(w, http.StatusBadRequest, "notes is required")
		return
	}
	if err := r.services.Recordings.UpdateNotes(req.Context(), getUserID(req.Context()), chi.URLParam(req, "id"), *body.Notes); err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, models.StatusResponse{Status: "success"})
}
