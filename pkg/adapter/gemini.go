package adapter

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// Gemini is the generation side of the Gemini API
type Gemini interface {
	GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type GeminiClient struct {
	client              *genai.Client
	generativeModel     string
	embeddingModel      string
	embeddingDimensions int32
}

type GeminiOption func(*GeminiClient)

func WithGenerativeModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.generativeModel = NormalizeModelName(model)
	}
}

func WithEmbeddingModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.embeddingModel = NormalizeModelName(model)
	}
}

// WithEmbeddingDimensions truncates embeddings to the given size. Zero keeps the model default.
func WithEmbeddingDimensions(dims int32) GeminiOption {
	return func(g *GeminiClient) {
		g.embeddingDimensions = dims
	}
}

// GeminiCredential selects the backend: an API key uses the Gemini Developer API,
// otherwise Vertex AI is used with project and location.
type GeminiCredential struct {
	APIKey   string
	Project  string
	Location string
}

func NewGemini(ctx context.Context, cred GeminiCredential, opts ...GeminiOption) (*GeminiClient, error) {
	cfg := &genai.ClientConfig{
		APIKey:  cred.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cred.APIKey == "" {
		cfg = &genai.ClientConfig{
			Project:  cred.Project,
			Location: cred.Location,
			Backend:  genai.BackendVertexAI,
		}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	g := &GeminiClient{
		client:          client,
		generativeModel: "gemini-2.5-flash",
		embeddingModel:  "gemini-embedding-001",
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// Client exposes the underlying genai client so that other adapters (speech) can share it
func (g *GeminiClient) Client() *genai.Client {
	return g.client
}

func (g *GeminiClient) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.generativeModel, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate content", goerr.V("model", g.generativeModel))
	}
	return resp, nil
}

// Embed implements Embedder with the Gemini embedding model
func (g *GeminiClient) Embed(ctx context.Context, text string, task EmbedTask, title string) (*EmbedResponse, error) {
	config := &genai.EmbedContentConfig{
		TaskType: string(task),
	}
	if task == EmbedTaskDocument && title != "" {
		config.Title = title
	}
	if g.embeddingDimensions > 0 {
		config.OutputDimensionality = genai.Ptr(g.embeddingDimensions)
	}

	resp, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, genai.Text(text), config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed content", goerr.V("model", g.embeddingModel))
	}

	return &EmbedResponse{Content: resp}, nil
}

// NormalizeModelName accepts both "models/xyz" and "xyz"
func NormalizeModelName(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "models/")
}
