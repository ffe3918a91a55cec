package httpapi

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/leonj1/scribe-crush/internal/server/transcribe"
)

func chunkRequest(t *testing.T, recID, index string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if index != "" {
		_ = mw.WriteField("chunk_index", index)
	}
	if data != nil {
		fw, err := mw.CreateFormFile("audio_chunk", "chunk.webm")
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write(data)
	}
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/recordings/"+recID+"/chunks", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func createRecording(t *testing.T, ts *testServer, token string) string {
	t.Helper()
	rr := ts.do(t, httptest.NewRequest(http.MethodPost, "/recordings", nil), token)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rr.Code, rr.Body.String())
	}
	var rec map[string]any
	decode(t, rr, &rec)
	if rec["status"] != "active" || rec["id"] == "" {
		t.Fatalf("create body: %v", rec)
	}
	if v, ok := rec["transcription_text"]; !ok || v != nil {
		t.Fatalf("transcription_text should be null: %v", rec)
	}
	return rec["id"].(string)
}

func TestRecordingScenario(t *testing.T) {
	var assembled []byte
	tr := transcribe.Func(func(_ context.Context, path string) (string, error) {
		b, err := os.ReadFile(path)
		assembled = b
		return "hello world", err
	})
	ts := newTestServer(t, "http_scenario", testConfig(), tr)
	token := ts.tokenFor(t, "code-u")
	id := createRecording(t, ts, token)

	// upload out of order
	for _, c := range []struct {
		idx  int
		data string
	}{{1, "BBB"}, {0, "AAA"}} {
		rr := ts.do(t, chunkRequest(t, id, strconv.Itoa(c.idx), []byte(c.data)), token)
		if rr.Code != http.StatusOK {
			t.Fatalf("chunk %d: %d %s", c.idx, rr.Code, rr.Body.String())
		}
		var body map[string]any
		decode(t, rr, &body)
		if body["status"] != "success" || body["chunk_index"] != float64(c.idx) {
			t.Fatalf("chunk body: %v", body)
		}
	}

	rr := ts.do(t, httptest.NewRequest(http.MethodPatch, "/recordings/"+id+"/pause", nil), token)
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != `{"status":"paused"}` {
		t.Fatalf("pause: %d %s", rr.Code, rr.Body.String())
	}
	rr = ts.do(t, httptest.NewRequest(http.MethodPatch, "/recordings/"+id+"/resume", nil), token)
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != `{"status":"active"}` {
		t.Fatalf("resume: %d %s", rr.Code, rr.Body.String())
	}

	rr = ts.do(t, httptest.NewRequest(http.MethodPost, "/recordings/"+id+"/finish", nil), token)
	if rr.Code != http.StatusOK {
		t.Fatalf("finish: %d %s", rr.Code, rr.Body.String())
	}
	if strings.TrimSpace(rr.Body.String()) != `{"status":"completed","transcription":"hello world"}` {
		t.Fatalf("finish body: %s", rr.Body.String())
	}
	if string(assembled) != "AAABBB" {
		t.Fatalf("assembled %q", assembled)
	}

	req := httptest.NewRequest(http.MethodPatch, "/recordings/"+id+"/notes", strings.NewReader(`{"notes":"standup"}`))
	req.Header.Set("Content-Type", "application/json")
	rr = ts.do(t, req, token)
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != `{"status":"success"}` {
		t.Fatalf("notes: %d %s", rr.Code, rr.Body.String())
	}

	rr = ts.do(t, httptest.NewRequest(http.MethodGet, "/recordings/"+id, nil), token)
	var got map[string]any
	decode(t, rr, &got)
	if got["status"] != "ended" || got["transcription_text"] != "hello world" || got["notes"] != "standup" {
		t.Fatalf("get: %v", got)
	}

	rr = ts.do(t, httptest.NewRequest(http.MethodGet, "/recordings", nil), token)
	var list []map[string]any
	decode(t, rr, &list)
	if len(list) != 1 || list[0]["id"] != id {
		t.Fatalf("list: %v", list)
	}
}

func TestRecordingErrors(t *testing.T) {
	ts := newTestServer(t, "http_errors", testConfig(), nil)
	owner := ts.tokenFor(t, "code-u")
	other := ts.tokenFor(t, "code-v")
	id := createRecording(t, ts, owner)

	type call func(id string) *http.Request
	calls := map[string]call{
		"get":    func(id string) *http.Request { return httptest.NewRequest(http.MethodGet, "/recordings/"+id, nil) },
		"chunk":  func(id string) *http.Request { return chunkRequest(t, id, "0", []byte("x")) },
		"pause":  func(id string) *http.Request { return httptest.NewRequest(http.MethodPatch, "/recordings/"+id+"/pause", nil) },
		"resume": func(id string) *http.Request { return httptest.NewRequest(http.MethodPatch, "/recordings/"+id+"/resume", nil) },
		"finish": func(id string) *http.Request { return httptest.NewRequest(http.MethodPost, "/recordings/"+id+"/finish", nil) },
		"notes": func(id string) *http.Request {
			return httptest.NewRequest(http.MethodPatch, "/recordings/"+id+"/notes", strings.NewReader(`{"notes":"n"}`))
		},
	}
	for name, mk := range calls {
		if rr := ts.do(t, mk(id), other); rr.Code != http.StatusForbidden {
			t.Errorf("%s by non-owner: %d %s", name, rr.Code, rr.Body.String())
		}
		if rr := ts.do(t, mk("missing"), owner); rr.Code != http.StatusNotFound {
			t.Errorf("%s on unknown id: %d %s", name, rr.Code, rr.Body.String())
		}
		if rr := ts.do(t, mk(id), ""); rr.Code != http.StatusUnauthorized {
			t.Errorf("%s without token: %d", name, rr.Code)
		}
	}

	// malformed uploads
	for name, req := range map[string]*http.Request{
		"no index":   chunkRequest(t, id, "", []byte("x")),
		"bad index":  chunkRequest(t, id, "two", []byte("x")),
		"neg index":  chunkRequest(t, id, "-1", []byte("x")),
		"no file":    chunkRequest(t, id, "0", nil),
		"not a form": httptest.NewRequest(http.MethodPost, "/recordings/"+id+"/chunks", strings.NewReader("raw")),
	} {
		if rr := ts.do(t, req, owner); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: %d %s", name, rr.Code, rr.Body.String())
		}
	}

	// malformed notes
	for name, body := range map[string]string{"invalid json": "{", "missing field": `{"text":"x"}`} {
		req := httptest.NewRequest(http.MethodPatch, "/recordings/"+id+"/notes", strings.NewReader(body))
		if rr := ts.do(t, req, owner); rr.Code != http.StatusBadRequest {
			t.Errorf("notes %s: %d", name, rr.Code)
		}
	}

	// finishing with nothing uploaded
	if rr := ts.do(t, calls["finish"](id), owner); rr.Code != http.StatusBadRequest {
		t.Fatalf("empty finish: %d %s", rr.Code, rr.Body.String())
	}
	if rr := ts.do(t, chunkRequest(t, id, "0", []byte("x")), owner); rr.Code != http.StatusOK {
		t.Fatalf("upload: %d", rr.Code)
	}
	if rr := ts.do(t, calls["finish"](id), owner); rr.Code != http.StatusOK {
		t.Fatalf("finish: %d %s", rr.Code, rr.Body.String())
	}
	for _, name := range []string{"finish", "pause", "resume", "chunk"} {
		if rr := ts.do(t, calls[name](id), owner); rr.Code != http.StatusConflict {
			t.Errorf("%s after end: %d %s", name, rr.Code, rr.Body.String())
		}
	}
}

func TestFinish_UpstreamFailure(t *testing.T) {
	tr := transcribe.Func(func(context.Context, string) (string, error) {
		return "", errors.New("provider down")
	})
	ts := newTestServer(t, "http_upstream", testConfig(), tr)
	token := ts.tokenFor(t, "code-u")
	id := createRecording(t, ts, token)
	if rr := ts.do(t, chunkRequest(t, id, "0", []byte("x")), token); rr.Code != http.StatusOK {
		t.Fatalf("upload: %d", rr.Code)
	}
	rr := ts.do(t, httptest.NewRequest(http.MethodPost, "/recordings/"+id+"/finish", nil), token)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("finish: %d %s", rr.Code, rr.Body.String())
	}
	rr = ts.do(t, httptest.NewRequest(http.MethodGet, "/recordings/"+id, nil), token)
	if !strings.Contains(rr.Body.String(), `"status":"active"`) {
		t.Fatalf("status after failed finish: %s", rr.Body.String())
	}
}

func TestUploadChunk_TooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxChunkBytes = 4
	ts := newTestServer(t, "http_too_large", cfg, nil)
	token := ts.tokenFor(t, "code-u")
	id := createRecording(t, ts, token)
	if rr := ts.do(t, chunkRequest(t, id, "0", []byte("four")), token); rr.Code != http.StatusOK {
		t.Fatalf("at limit: %d %s", rr.Code, rr.Body.String())
	}
	if rr := ts.do(t, chunkRequest(t, id, "1", []byte("fives")), token); rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("over limit: %d %s", rr.Code, rr.Body.String())
	}
}
