package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultHTTPBaseURL is the RequestYai-compatible transcription endpoint.
const DefaultHTTPBaseURL = "https://api.requestyai.com/v1"

type httpBackend struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPBackend returns a backend that POSTs the file as multipart field
// "file" to {baseURL}/transcribe and reads {"transcription": "..."}.
func NewHTTPBackend(baseURL, apiKey string, timeout time.Duration) Backend {
	if baseURL == "" {
		baseURL = DefaultHTTPBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &httpBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type httpResp struct {
	Transcription string `json:"transcription"`
}

func (h *httpBackend) Transcribe(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	// Stream the multipart body instead of buffering the whole recording.
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
		if err == nil {
			_, err = io.Copy(fw, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/transcribe", pr)
	if err != nil {
		pr.Close()
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+h.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &StatusError{Provider: "transcriber", StatusCode: resp.StatusCode, Body: string(b)}
	}
	var out httpResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}
	return out.Transcription, nil
}
