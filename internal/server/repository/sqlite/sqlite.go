package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/leonj1/scribe-crush/internal/server/repository"
	"github.com/leonj1/scribe-crush/internal/shared/models"
)

type Repository struct {
	db *sql.DB
}

func New(dsn string) (*Repository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			external_id TEXT UNIQUE NOT NULL,
			email TEXT NOT NULL,
			display_name TEXT NOT NULL,
			avatar_url TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);
		CREATE TABLE IF NOT EXISTS recordings (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			status TEXT NOT NULL,
			audio_file_path TEXT,
			transcription_text TEXT,
			notes TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			FOREIGN KEY(owner_id) REFERENCES users(id)
		);
		CREATE INDEX IF NOT EXISTS idx_recordings_owner ON recordings(owner_id, created_at);
		CREATE TABLE IF NOT EXISTS recording_chunks (
			id TEXT PRIMARY KEY,
			recording_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			blob_path TEXT NOT NULL,
			duration_seconds REAL,
			uploaded_at TIMESTAMP NOT NULL,
			UNIQUE(recording_id, chunk_index),
			FOREIGN KEY(recording_id) REFERENCES recordings(id) ON DELETE CASCADE
		);
	`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping verifies the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Users

// UpsertUser creates the user for externalID on first sight and refreshes the
// profile fields on later logins. The local id never changes.
func (r *Repository) UpsertUser(ctx context.Context, u models.User) (models.User, error) {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users(id, external_id, email, display_name, avatar_url, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(external_id) DO UPDATE SET
			email=excluded.email,
			display_name=excluded.display_name,
			avatar_url=excluded.avatar_url,
			updated_at=excluded.updated_at
	`, uuid.NewString(), u.ExternalID, u.Email, u.DisplayName, nullString(u.AvatarURL), now, now)
	if err != nil {
		return models.User{}, fmt.Errorf("upsert user: %w", err)
	}
	return r.GetUserByExternalID(ctx, u.ExternalID)
}

func (r *Repository) GetUserByID(ctx context.Context, id string) (models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, external_id, email, display_name, avatar_url, created_at, updated_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *Repository) GetUserByExternalID(ctx context.Context, externalID string) (models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, external_id, email, display_name, avatar_url, created_at, updated_at FROM users WHERE external_id = ?`, externalID)
	return scanUser(row)
}

func scanUser(row *sql.Row) (models.User, error) {
	var u models.User
	var avatar sql.NullString
	if err := row.Scan(&u.ID, &u.ExternalID, &u.Email, &u.DisplayName, &avatar, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, repository.ErrNotFound
		}
		return models.User{}, err
	}
	u.AvatarURL = avatar.String
	return u, nil
}

// Recordings

const recordingColumns = `id, owner_id, status, audio_file_path, transcription_text, notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecording(s rowScanner) (models.Recording, error) {
	var rec models.Recording
	var status string
	var audioPath, text, notes sql.NullString
	if err := s.Scan(&rec.ID, &rec.OwnerID, &status, &audioPath, &text, &notes, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return models.Recording{}, err
	}
	rec.Status = models.RecordingStatus(status)
	rec.AudioFilePath = audioPath.String
	rec.TranscriptionText = text.String
	rec.Notes = notes.String
	return rec, nil
}

func (r *Repository) CreateRecording(ctx context.Context, ownerID string) (models.Recording, error) {
	now := time.Now().UTC()
	rec := models.Recording{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Status:    models.RecordingStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO recordings(id, owner_id, status, created_at, updated_at) VALUES(?,?,?,?,?)`,
		rec.ID, rec.OwnerID, string(rec.Status), rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return models.Recording{}, fmt.Errorf("insert recording: %w", err)
	}
	return rec, nil
}

func (r *Repository) GetRecording(ctx context.Context, id string) (models.Recording, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordingColumns+` FROM recordings WHERE id = ?`, id)
	rec, err := scanRecording(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Recording{}, repository.ErrNotFound
		}
		return models.Recording{}, err
	}
	return rec, nil
}

// ListRecordings returns the owner's recordings, newest first.
func (r *Repository) ListRecordings(ctx context.Context, ownerID string) ([]models.Recording, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+recordingColumns+` FROM recordings WHERE owner_id = ? ORDER BY created_at DESC, rowid DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Recording{}
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// TransitionStatus moves a recording to status `to` only when its current
// status is one of `from`. It returns ErrStatusConflict when no row matched.
func (r *Repository) TransitionStatus(ctx context.Context, id string, from []models.RecordingStatus, to models.RecordingStatus) error {
	if len(from) == 0 {
		return errors.New("no source statuses")
	}
	args := []any{string(to), time.Now().UTC(), id}
	placeholders := make([]string, len(from))
	for i, s := range from {
		placeholders[i] = "?"
		args = append(args, string(s))
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE recordings SET status=?, updated_at=? WHERE id=? AND status IN (`+strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return repository.ErrStatusConflict
	}
	return nil
}

// MarkEnded commits the terminal state in a single statement, guarded on the
// recording still being in the finishing state.
func (r *Repository) MarkEnded(ctx context.Context, id, audioFilePath, transcription string) (models.Recording, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recordings SET status=?, audio_file_path=?, transcription_text=?, updated_at=? WHERE id=? AND status=?`,
		string(models.RecordingStatusEnded), audioFilePath, transcription, time.Now().UTC(), id, string(models.RecordingStatusFinishing))
	if err != nil {
		return models.Recording{}, err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return models.Recording{}, repository.ErrStatusConflict
	}
	return r.GetRecording(ctx, id)
}

func (r *Repository) UpdateNotes(ctx context.Context, id, notes string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE recordings SET notes=?, updated_at=? WHERE id=?`, notes, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Chunks

// AddChunk records a chunk. Uploading an index twice replaces the earlier row.
func (r *Repository) AddChunk(ctx context.Context, c models.RecordingChunk) (models.RecordingChunk, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.UploadedAt = time.Now().UTC()
	var duration sql.NullFloat64
	if c.DurationSeconds != nil {
		duration = sql.NullFloat64{Float64: *c.DurationSeconds, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recording_chunks(id, recording_id, chunk_index, blob_path, duration_seconds, uploaded_at)
		VALUES(?,?,?,?,?,?)
		ON CONFLICT(recording_id, chunk_index) DO UPDATE SET
			blob_path=excluded.blob_path,
			duration_seconds=excluded.duration_seconds,
			uploaded_at=excluded.uploaded_at
	`, c.ID, c.RecordingID, c.ChunkIndex, c.BlobPath, duration, c.UploadedAt)
	if err != nil {
		return models.RecordingChunk{}, fmt.Errorf("insert chunk: %w", err)
	}
	return c, nil
}

// ListChunks returns the recording's chunks ordered by ascending chunk index.
func (r *Repository) ListChunks(ctx context.Context, recordingID string) ([]models.RecordingChunk, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, recording_id, chunk_index, blob_path, duration_seconds, uploaded_at FROM recording_chunks WHERE recording_id = ? ORDER BY chunk_index ASC`, recordingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.RecordingChunk
	for rows.Next() {
		var c models.RecordingChunk
		var duration sql.NullFloat64
		if err := rows.Scan(&c.ID, &c.RecordingID, &c.ChunkIndex, &c.BlobPath, &duration, &c.UploadedAt); err != nil {
			return nil, err
		}
		if duration.Valid {
			d := duration.Float64
			c.DurationSeconds = &d
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
