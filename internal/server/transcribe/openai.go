package transcribe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

type openAIBackend struct {
	client *openai.Client
	model  string
}

// NewOpenAIBackend transcribes through the OpenAI audio API. An empty baseURL
// uses the public endpoint; an empty model uses whisper-1.
func NewOpenAIBackend(apiKey, baseURL, model string, timeout time.Duration) Backend {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	if model == "" {
		model = openai.Whisper1
	}
	return &openAIBackend{client: openai.NewClientWithConfig(cfg), model: model}
}

func (o *openAIBackend) Transcribe(ctx context.Context, audioPath string) (string, error) {
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", &StatusError{Provider: "openai", StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) {
			return "", &StatusError{Provider: "openai", StatusCode: reqErr.HTTPStatusCode, Body: fmt.Sprint(reqErr.Err)}
		}
		return "", fmt.Errorf("openai transcription: %w", err)
	}
	return resp.Text, nil
}
