package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m-mizutani/deepfocus/pkg/adapter"
	"github.com/m-mizutani/deepfocus/pkg/repository"
	"github.com/m-mizutani/deepfocus/pkg/server"
	"github.com/m-mizutani/deepfocus/pkg/usecase/triage"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

type mockGemini struct {
	generateFunc func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if m.generateFunc != nil {
		return m.generateFunc(ctx, contents, config)
	}
	return nil, errors.New("not implemented")
}

type mockEmbedder struct {
	err error
}

func (m *mockEmbedder) Embed(ctx context.Context, text string, task adapter.EmbedTask, title string) (*adapter.EmbedResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	vector := []any{0.1, 0.0, 0.0}
	if strings.Contains(strings.ToLower(text), "dinner") {
		vector = []any{1.0, 0.1, 0.0}
	}
	return &adapter.EmbedResponse{Raw: map[string]any{"embedding": vector}}, nil
}

type mockSpeech struct {
	err error
}

func (m *mockSpeech) LoadVoice(ctx context.Context, voiceID string) (*adapter.Voice, error) {
	return &adapter.Voice{ID: voiceID}, nil
}

func (m *mockSpeech) Synthesize(ctx context.Context, voice *adapter.Voice, text string) (*adapter.Audio, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &adapter.Audio{Samples: []int16{1, 2, 3, 4}, SampleRate: 16000}, nil
}

type fixture struct {
	server   *server.Server
	audioDir string
	gemini   *mockGemini
	embedder *mockEmbedder
	speech   *mockSpeech
	repo     repository.Repository
}

func setup(t *testing.T, opts ...server.Option) *fixture {
	ctx := context.Background()

	repo, err := repository.NewSQLite(filepath.Join(t.TempDir(), "deepfocus.db"))
	gt.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	f := &fixture{
		audioDir: t.TempDir(),
		gemini:   &mockGemini{},
		embedder: &mockEmbedder{},
		speech:   &mockSpeech{},
		repo:     repo,
	}

	synth, err := triage.NewSynthesizer(ctx, f.speech, "alba", f.audioDir)
	gt.NoError(t, err)

	uc := triage.New(repo, f.embedder, f.gemini)
	f.server = server.New(uc, synth, opts...)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, req)
	return w
}

func (f *fixture) assertNoArtifacts(t *testing.T) {
	entries, err := os.ReadDir(f.audioDir)
	gt.NoError(t, err)
	gt.A(t, entries).Length(0)
}

func decodeDetail(t *testing.T, w *httptest.ResponseRecorder) string {
	var resp struct {
		Detail string `json:"detail"`
	}
	gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Detail
}

const dinnerNotification = `{
	"notificationId": "n1",
	"packageName": "com.example.chat",
	"appName": "Chat",
	"title": "Ana",
	"text": "Dinner at 7?",
	"time": 1700000000000,
	"isOngoing": false
}`

func TestHealth(t *testing.T) {
	f := setup(t)
	w := f.do(t, http.MethodGet, "/healthz", "")
	gt.Equal(t, w.Code, http.StatusOK)
	gt.S(t, w.Body.String()).Contains(`"status":"ok"`)
}

func TestIngest(t *testing.T) {
	f := setup(t)

	w := f.do(t, http.MethodPost, "/api/v1/notifications/ingest", dinnerNotification)
	gt.Equal(t, w.Code, http.StatusCreated)

	var resp map[string]any
	gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	gt.Equal(t, resp["status"], any("ingested"))
	gt.Equal(t, resp["notificationId"], any("n1"))
	gt.Equal(t, resp["storedDocument"], any("Chat message from Ana: Dinner at 7? at 2023-11-14 22:13:20 UTC."))
}

func TestIngestMissedCall(t *testing.T) {
	f := setup(t)

	body := `{"notificationId":"c1","packageName":"com.android.dialer","appName":"Phone","title":"Missed voice call","text":"","time":1700000000000}`
	w := f.do(t, http.MethodPost, "/api/v1/notifications/ingest", body)
	gt.Equal(t, w.Code, http.StatusOK)
	gt.Equal(t, w.Header().Get("Content-Type"), "audio/wav")
	gt.Equal(t, w.Header().Get("X-Missed-Call"), "true")
	gt.Equal(t, w.Header().Get("X-Response-Text"), "You received a missed call from an unknown caller")
	gt.S(t, w.Header().Get("Content-Disposition")).Contains("missed_call.wav")
	gt.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("RIFF")))
	gt.Equal(t, w.Body.Len(), 44+4*2)

	f.assertNoArtifacts(t)

	_, err := f.repo.GetDocument(context.Background(), "c1")
	gt.Error(t, err)
}

func TestIngestMissedCallSynthesisFailure(t *testing.T) {
	f := setup(t)
	f.speech.err = errors.New("engine down")

	body := `{"notificationId":"c1","packageName":"p","appName":"Phone","title":"Missed call","text":"Mom","time":1}`
	w := f.do(t, http.MethodPost, "/api/v1/notifications/ingest", body)
	gt.Equal(t, w.Code, http.StatusInternalServerError)
	gt.Equal(t, decodeDetail(t, w), "Failed to generate missed-call audio")
	f.assertNoArtifacts(t)
}

func TestIngestValidation(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `{`},
		{name: "missing id", body: `{"packageName":"p","appName":"a","time":1}`},
		{name: "zero time", body: `{"notificationId":"n","packageName":"p","appName":"a","time":0}`},
		{name: "fractional time", body: `{"notificationId":"n","packageName":"p","appName":"a","time":1.5}`},
		{name: "empty app", body: `{"notificationId":"n","packageName":"p","appName":"","time":1}`},
		{name: "unknown field", body: `{"notificationId":"n","packageName":"p","appName":"a","time":1,"extra":true}`},
		{name: "too long title", body: `{"notificationId":"n","packageName":"p","appName":"a","time":1,"title":"` + strings.Repeat("x", 513) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/api/v1/notifications/ingest", tt.body)
			gt.Equal(t, w.Code, http.StatusUnprocessableEntity)
			gt.True(t, decodeDetail(t, w) != "")
		})
	}
}

func TestIngestEmbeddingFailure(t *testing.T) {
	f := setup(t)
	f.embedder.err = errors.New("quota exceeded")

	w := f.do(t, http.MethodPost, "/api/v1/notifications/ingest", dinnerNotification)
	gt.Equal(t, w.Code, http.StatusBadGateway)
	gt.S(t, decodeDetail(t, w)).Contains("Embedding generation failed")
}

func TestQuery(t *testing.T) {
	f := setup(t)
	f.gemini.generateFunc = func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{
				{Text: "Ana asked about dinner at 7.\nShe is waiting."},
			}}}},
		}, nil
	}

	w := f.do(t, http.MethodPost, "/api/v1/notifications/ingest", dinnerNotification)
	gt.Equal(t, w.Code, http.StatusCreated)

	w = f.do(t, http.MethodPost, "/api/v1/agent/query", `{"query":"what about dinner?","topK":3}`)
	gt.Equal(t, w.Code, http.StatusOK)
	gt.Equal(t, w.Header().Get("Content-Type"), "audio/wav")
	gt.Equal(t, w.Header().Get("X-Response-Text"), "Ana asked about dinner at 7. She is waiting.")
	gt.Equal(t, w.Header().Get("X-Matched-Notifications"), "1")
	gt.S(t, w.Header().Get("Content-Disposition")).Contains("agent_response.wav")
	gt.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("RIFF")))

	f.assertNoArtifacts(t)
}

func TestQueryEmptyStore(t *testing.T) {
	f := setup(t)

	w := f.do(t, http.MethodPost, "/api/v1/agent/query", `{"query":"anything?"}`)
	gt.Equal(t, w.Code, http.StatusOK)
	gt.Equal(t, w.Header().Get("X-Response-Text"), "Nothing urgent right now. Keep focusing.")
	gt.Equal(t, w.Header().Get("X-Matched-Notifications"), "0")
	f.assertNoArtifacts(t)
}

func TestQueryValidation(t *testing.T) {
	f := setup(t)

	for _, body := range []string{
		`{"query":"hi","topK":0}`,
		`{"query":"hi","topK":21}`,
		`{"query":""}`,
		`{"query":"   "}`,
		`{"topK":3}`,
		`{"query":"hi","voice":"x"}`,
	} {
		w := f.do(t, http.MethodPost, "/api/v1/agent/query", body)
		gt.Equal(t, w.Code, http.StatusUnprocessableEntity)
	}
}

func TestQueryGenerationFailure(t *testing.T) {
	f := setup(t)
	f.gemini.generateFunc = func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return nil, errors.New("503")
	}

	w := f.do(t, http.MethodPost, "/api/v1/notifications/ingest", dinnerNotification)
	gt.Equal(t, w.Code, http.StatusCreated)

	w = f.do(t, http.MethodPost, "/api/v1/agent/query", `{"query":"dinner?"}`)
	gt.Equal(t, w.Code, http.StatusBadGateway)
	gt.S(t, decodeDetail(t, w)).Contains("LLM generation failed")
}

func TestQuerySynthesisFailure(t *testing.T) {
	f := setup(t)
	f.speech.err = errors.New("engine down")

	w := f.do(t, http.MethodPost, "/api/v1/agent/query", `{"query":"anything?"}`)
	gt.Equal(t, w.Code, http.StatusInternalServerError)
	gt.Equal(t, decodeDetail(t, w), "Failed to generate audio file")
	f.assertNoArtifacts(t)
}

func TestStoreFailureIsInternal(t *testing.T) {
	f := setup(t)
	gt.NoError(t, f.repo.Close())

	w := f.do(t, http.MethodPost, "/api/v1/notifications/ingest", dinnerNotification)
	gt.Equal(t, w.Code, http.StatusInternalServerError)
	gt.S(t, decodeDetail(t, w)).Contains("Failed to persist notification")
}

func TestMethodNotAllowed(t *testing.T) {
	f := setup(t)
	w := f.do(t, http.MethodGet, "/api/v1/agent/query", "")
	gt.Equal(t, w.Code, http.StatusMethodNotAllowed)
}

func TestCORS(t *testing.T) {
	t.Run("restricted origins", func(t *testing.T) {
		f := setup(t, server.WithCORSOrigins([]string{"https://app.example.com"}))

		req := httptest.NewRequest(http.MethodOptions, "/api/v1/agent/query", nil)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", "POST")
		w := httptest.NewRecorder()
		f.server.ServeHTTP(w, req)
		gt.Equal(t, w.Code, http.StatusNoContent)
		gt.Equal(t, w.Header().Get("Access-Control-Allow-Origin"), "https://app.example.com")

		req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		w = httptest.NewRecorder()
		f.server.ServeHTTP(w, req)
		gt.Equal(t, w.Code, http.StatusOK)
		gt.Equal(t, w.Header().Get("Access-Control-Allow-Origin"), "")
	})

	t.Run("any origin exposes response headers", func(t *testing.T) {
		f := setup(t)

		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("Origin", "https://app.example.com")
		w := httptest.NewRecorder()
		f.server.ServeHTTP(w, req)
		gt.Equal(t, w.Header().Get("Access-Control-Allow-Origin"), "*")
		gt.S(t, w.Header().Get("Access-Control-Expose-Headers")).Contains("X-Response-Text")
	})
}

func TestParseOrigins(t *testing.T) {
	gt.Equal(t, server.ParseOrigins("*"), []string{"*"})
	gt.Equal(t, server.ParseOrigins(""), []string{"*"})
	gt.Equal(t, server.ParseOrigins(" https://a.example.com, https://b.example.com ,"), []string{"https://a.example.com", "https://b.example.com"})
}

func TestRun(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- f.server.Run(ctx, "127.0.0.1:0")
	}()
	cancel()
	gt.NoError(t, <-done)
}
