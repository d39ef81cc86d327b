package adapter

import (
	"context"

	"google.golang.org/genai"
)

// EmbedTask tells the embedding service whether the text is stored or searched
type EmbedTask string

const (
	EmbedTaskDocument EmbedTask = "RETRIEVAL_DOCUMENT"
	EmbedTaskQuery    EmbedTask = "RETRIEVAL_QUERY"
)

// EmbedResponse carries whichever shape the embedding backend answered with.
// Exactly one of Content or Raw is set.
type EmbedResponse struct {
	Content *genai.EmbedContentResponse
	Raw     map[string]any
}

// Embedder maps text to an embedding response. title is an optional context
// hint that backends may ignore.
type Embedder interface {
	Embed(ctx context.Context, text string, task EmbedTask, title string) (*EmbedResponse, error)
}
