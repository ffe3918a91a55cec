package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/leonj1/scribe-crush/internal/server/transcribe"
	"github.com/leonj1/scribe-crush/internal/shared/models"
)

func TestFinish_TranscriptionFailureKeepsRecordingOpen(t *testing.T) {
	failing := transcribe.Func(func(context.Context, string) (string, error) {
		return "", &transcribe.StatusError{Provider: "stub", StatusCode: 500, Body: "boom"}
	})
	env := newTestEnv(t, "svc_finish_fail", failing)
	ctx := context.Background()
	uid := login(t, env, "code-u")
	rec, _ := env.svcs.Recordings.Create(ctx, uid)
	upload(t, env, uid, rec.ID, 0, "AAA")
	if err := env.svcs.Recordings.Pause(ctx, uid, rec.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := env.svcs.Recordings.Finish(ctx, uid, rec.ID); !errors.Is(err, ErrUpstream) {
		t.Fatalf("want ErrUpstream, got %v", err)
	}
	got, err := env.svcs.Recordings.Get(ctx, uid, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.RecordingStatusPaused || got.TranscriptionText != "" || got.AudioFilePath != "" {
		t.Fatalf("failed finish leaked state: %+v", got)
	}
	chunks, _ := env.repo.ListChunks(ctx, rec.ID)
	if len(chunks) != 1 {
		t.Fatalf("chunks should survive a failed finish, got %d", len(chunks))
	}

	// a later retry with a working backend succeeds
	env.svcs.Recordings.transcriber = transcribe.Func(func(context.Context, string) (string, error) { return "retry ok", nil })
	ended, err := env.svcs.Recordings.Finish(ctx, uid, rec.ID)
	if err != nil || ended.TranscriptionText != "retry ok" {
		t.Fatalf("retry: %v %+v", err, ended)
	}
}

func TestFinish_NoChunks(t *testing.T) {
	env := newTestEnv(t, "svc_finish_empty", nil)
	ctx := context.Background()
	uid := login(t, env, "code-u")
	rec, _ := env.svcs.Recordings.Create(ctx, uid)
	if _, err := env.svcs.Recordings.Finish(ctx, uid, rec.ID); !errors.Is(err, ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
	got, _ := env.svcs.Recordings.Get(ctx, uid, rec.ID)
	if got.Status != models.RecordingStatusActive {
		t.Fatalf("status after empty finish: %s", got.Status)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	env := newTestEnv(t, "svc_lifecycle", nil)
	ctx := context.Background()
	uid := login(t, env, "code-u")
	r := env.svcs.Recordings
	rec, _ := r.Create(ctx, uid)

	for i := 0; i < 2; i++ {
		if err := r.Pause(ctx, uid, rec.ID); err != nil {
			t.Fatalf("pause #%d: %v", i+1, err)
		}
	}
	got, _ := r.Get(ctx, uid, rec.ID)
	if got.Status != models.RecordingStatusPaused {
		t.Fatalf("status after pause: %s", got.Status)
	}
	// uploads keep flowing while paused
	upload(t, env, uid, rec.ID, 0, "A")
	if err := r.Resume(ctx, uid, rec.ID); err != nil {
		t.Fatal(err)
	}
	got, _ = r.Get(ctx, uid, rec.ID)
	if got.Status != models.RecordingStatusActive {
		t.Fatalf("status after resume: %s", got.Status)
	}
	if _, err := r.UploadChunk(ctx, uid, rec.ID, -1, strings.NewReader("x")); !errors.Is(err, ErrValidation) {
		t.Fatalf("negative index: %v", err)
	}

	if err := r.UpdateNotes(ctx, uid, rec.ID, "before"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Finish(ctx, uid, rec.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := r.Finish(ctx, uid, rec.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("second finish: %v", err)
	}
	if err := r.Pause(ctx, uid, rec.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("pause ended: %v", err)
	}
	if err := r.Resume(ctx, uid, rec.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("resume ended: %v", err)
	}
	if _, err := r.UploadChunk(ctx, uid, rec.ID, 1, strings.NewReader("late")); !errors.Is(err, ErrConflict) {
		t.Fatalf("upload after end: %v", err)
	}
	// notes stay editable after the recording ended
	if err := r.UpdateNotes(ctx, uid, rec.ID, "after"); err != nil {
		t.Fatal(err)
	}
	got, _ = r.Get(ctx, uid, rec.ID)
	if got.Notes != "after" || got.Status != models.RecordingStatusEnded {
		t.Fatalf("final: %+v", got)
	}
}

func TestFinish_SingleFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 8)
	var calls atomic.Int32
	blocking := transcribe.Func(func(ctx context.Context, _ string) (string, error) {
		calls.Add(1)
		entered <- struct{}{}
		<-release
		return "once", nil
	})
	env := newTestEnv(t, "svc_single_flight", blocking)
	ctx := context.Background()
	uid := login(t, env, "code-u")
	rec, _ := env.svcs.Recordings.Create(ctx, uid)
	upload(t, env, uid, rec.ID, 0, "A")

	first := make(chan error, 1)
	go func() {
		_, err := env.svcs.Recordings.Finish(ctx, uid, rec.ID)
		first <- err
	}()
	<-entered

	got, _ := env.svcs.Recordings.Get(ctx, uid, rec.ID)
	if got.Status != models.RecordingStatusFinishing {
		t.Fatalf("status while transcribing: %s", got.Status)
	}

	var wg sync.WaitGroup
	var conflicts atomic.Int32
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.svcs.Recordings.Finish(ctx, uid, rec.ID); errors.Is(err, ErrConflict) {
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()
	close(release)
	if err := <-first; err != nil {
		t.Fatal(err)
	}
	if conflicts.Load() != 4 || calls.Load() != 1 {
		t.Fatalf("conflicts=%d transcriptions=%d", conflicts.Load(), calls.Load())
	}
}

func TestFinish_IgnoresClientCancellation(t *testing.T) {
	var seen error
	tr := transcribe.Func(func(ctx context.Context, _ string) (string, error) {
		seen = ctx.Err()
		return "done", nil
	})
	env := newTestEnv(t, "svc_finish_cancel", tr)
	uid := login(t, env, "code-u")
	rec, _ := env.svcs.Recordings.Create(context.Background(), uid)
	upload(t, env, uid, rec.ID, 0, "A")

	ctx, cancel := context.WithCancel(context.Background())
	// authorization runs on the caller's context, so cancel only once finishing starts
	env.svcs.Recordings.transcriber = transcribe.Func(func(c context.Context, p string) (string, error) {
		cancel()
		return tr.Transcribe(c, p)
	})
	if _, err := env.svcs.Recordings.Finish(ctx, uid, rec.ID); err != nil {
		t.Fatal(err)
	}
	if seen != nil {
		t.Fatalf("transcription saw cancellation: %v", seen)
	}
}
