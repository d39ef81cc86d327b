package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

const defaultOpenAIBaseURL = "https://openrouter.ai/api/v1"

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint (OpenRouter, Ollama).
// The response body is handed back undecoded as a raw mapping.
type OpenAIEmbedder struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

type OpenAIOption func(*OpenAIEmbedder)

// WithOpenAIBaseURL points the embedder to another server, e.g. http://localhost:11434/v1 for Ollama
func WithOpenAIBaseURL(baseURL string) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		e.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithOpenAIHTTPClient(client *http.Client) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		e.client = client
	}
}

// NewOpenAIEmbedder creates an embedder. apiKey may be empty for servers that need no auth.
func NewOpenAIEmbedder(apiKey, model string, opts ...OpenAIOption) *OpenAIEmbedder {
	e := &OpenAIEmbedder{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultOpenAIBaseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type openAIEmbeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// Embed sends a single request. task and title are not part of the OpenAI API and are ignored.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string, task EmbedTask, title string) (*EmbedResponse, error) {
	body, err := json.Marshal(openAIEmbeddingRequest{Model: e.model, Input: text})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal embedding request")
	}

	url := e.baseURL + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embedding request", goerr.V("url", url))
	}
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to send embedding request", goerr.V("url", url))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read embedding response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, goerr.New("embedding API returned error status",
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(data)))
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, goerr.Wrap(err, "failed to decode embedding response")
	}

	return &EmbedResponse{Raw: raw}, nil
}
