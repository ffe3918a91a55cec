// Package storage keeps uploaded audio chunks and the assembled recording on
// the local filesystem, laid out as {root}/{recording_id}/chunk_NNNN.<ext> and
// {root}/{recording_id}/full_audio.<ext>.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrTooLarge is returned when a chunk exceeds the configured size limit.
var ErrTooLarge = errors.New("chunk too large")

// FS is a filesystem blob store for recording audio.
type FS struct {
	root     string
	ext      string
	maxBytes int64
}

// NewFS creates the root directory if needed. maxChunkBytes of 0 disables the
// per-chunk size limit.
func NewFS(root, ext string, maxChunkBytes int64) (*FS, error) {
	if root == "" {
		return nil, errors.New("storage root is empty")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "webm"
	}
	return &FS{root: root, ext: ext, maxBytes: maxChunkBytes}, nil
}

func (s *FS) recordingDir(recordingID string) (string, error) {
	if recordingID == "" || recordingID != filepath.Base(recordingID) || recordingID == "." || recordingID == ".." {
		return "", fmt.Errorf("invalid recording id %q", recordingID)
	}
	return filepath.Join(s.root, recordingID), nil
}

// SaveChunk writes the chunk bytes for (recordingID, index) and returns the
// blob path. Writing the same index again replaces the previous bytes.
func (s *FS) SaveChunk(ctx context.Context, recordingID string, index int, r io.Reader) (string, error) {
	if index < 0 {
		return "", fmt.Errorf("invalid chunk index %d", index)
	}
	dir, err := s.recordingDir(recordingID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}
	final := filepath.Join(dir, fmt.Sprintf("chunk_%04d.%s", index, s.ext))
	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	_, err = writeAtomic(ctx, final, func(w io.Writer) (int64, error) {
		return io.Copy(w, src)
	}, s.maxBytes)
	if err != nil {
		return "", err
	}
	return final, nil
}

// Assemble concatenates the blobs byte for byte in the order given and
// returns the path of the combined file. The order is the caller's; it is
// never re-derived from the blob paths.
func (s *FS) Assemble(ctx context.Context, recordingID string, orderedPaths []string) (string, error) {
	dir, err := s.recordingDir(recordingID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}
	final := filepath.Join(dir, "full_audio."+s.ext)
	_, err = writeAtomic(ctx, final, func(w io.Writer) (int64, error) {
		var total int64
		for _, p := range orderedPaths {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			n, err := copyFile(w, p)
			total += n
			if err != nil {
				return total, fmt.Errorf("append %s: %w", filepath.Base(p), err)
			}
		}
		return total, nil
	}, 0)
	if err != nil {
		return "", err
	}
	return final, nil
}

// RemoveChunks deletes the given blobs. Every path is attempted; the returned
// error joins the individual failures.
func (s *FS) RemoveChunks(_ context.Context, paths []string) error {
	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func copyFile(w io.Writer, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(w, f)
}

// writeAtomic streams into a temp file next to dst and renames it into place
// once fill succeeds.
func writeAtomic(ctx context.Context, dst string, fill func(io.Writer) (int64, error), limit int64) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	n, err := fill(tmp)
	if err == nil && limit > 0 && n > limit {
		err = ErrTooLarge
	}
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		cleanup()
		return n, err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		cleanup()
		return n, err
	}
	return n, nil
}
