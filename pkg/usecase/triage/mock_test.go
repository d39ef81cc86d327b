package triage_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/m-mizutani/deepfocus/pkg/adapter"
	"github.com/m-mizutani/deepfocus/pkg/repository"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

// mockGemini is a mock implementation of adapter.Gemini for testing
type mockGemini struct {
	mu           sync.Mutex
	calls        int
	generateFunc func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.generateFunc != nil {
		return m.generateFunc(ctx, contents, config)
	}
	return nil, errors.New("not implemented")
}

func (m *mockGemini) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func textResponse(texts ...string) *genai.GenerateContentResponse {
	parts := make([]*genai.Part, 0, len(texts))
	for _, text := range texts {
		parts = append(parts, &genai.Part{Text: text})
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: genai.RoleModel, Parts: parts}},
		},
	}
}

// mockEmbedder maps text onto a tiny keyword vocabulary
type mockEmbedder struct {
	embedFunc func(ctx context.Context, text string, task adapter.EmbedTask, title string) (*adapter.EmbedResponse, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string, task adapter.EmbedTask, title string) (*adapter.EmbedResponse, error) {
	if m.embedFunc != nil {
		return m.embedFunc(ctx, text, task, title)
	}
	return &adapter.EmbedResponse{
		Content: &genai.EmbedContentResponse{
			Embeddings: []*genai.ContentEmbedding{{Values: bagOfWords(text)}},
		},
	}, nil
}

var vocabulary = []string{"dinner", "ana", "sale", "shoes", "deals", "weather", "call", "mom", "song"}

func bagOfWords(text string) []float32 {
	vector := make([]float32, len(vocabulary)+1)
	vector[len(vocabulary)] = 0.1
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,:?!")
		for i, v := range vocabulary {
			if word == v {
				vector[i]++
			}
		}
	}
	return vector
}

// mockSpeech returns a short tone at a fixed sample rate
type mockSpeech struct {
	synthesizeFunc func(ctx context.Context, voice *adapter.Voice, text string) (*adapter.Audio, error)
}

func (m *mockSpeech) LoadVoice(ctx context.Context, voiceID string) (*adapter.Voice, error) {
	if voiceID == "" {
		return nil, errors.New("voice id is required")
	}
	return &adapter.Voice{ID: voiceID, Name: voiceID}, nil
}

func (m *mockSpeech) Synthesize(ctx context.Context, voice *adapter.Voice, text string) (*adapter.Audio, error) {
	if m.synthesizeFunc != nil {
		return m.synthesizeFunc(ctx, voice, text)
	}
	return &adapter.Audio{Samples: []int16{0, 1000, -1000, 0}, SampleRate: 24000}, nil
}

func newTestRepository(t *testing.T) repository.Repository {
	repo, err := repository.NewSQLite(filepath.Join(t.TempDir(), "deepfocus.db"))
	gt.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}
