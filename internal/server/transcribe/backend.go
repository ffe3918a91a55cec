// Package transcribe turns an assembled audio file into text through an
// external speech-to-text provider.
package transcribe

import (
	"context"
	"fmt"
	"time"
)

// DefaultTimeout bounds a single transcription call. Audio files can be large.
const DefaultTimeout = 5 * time.Minute

// Backend is a pluggable transcription provider.
type Backend interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Func adapts a plain function to Backend.
type Func func(ctx context.Context, audioPath string) (string, error)

func (f Func) Transcribe(ctx context.Context, audioPath string) (string, error) {
	return f(ctx, audioPath)
}

// StatusError is returned when the provider answers with a non-2xx status.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s http %d: %s", e.Provider, e.StatusCode, e.Body)
}
