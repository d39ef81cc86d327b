package triage

import (
	"context"

	"github.com/m-mizutani/deepfocus/pkg/adapter"
	"github.com/m-mizutani/deepfocus/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

var ErrNoEmbedding = goerr.New("no embedding vector found in response")

func (u *UseCase) embed(ctx context.Context, text string, task adapter.EmbedTask, title string) ([]float32, error) {
	resp, err := u.embedder.Embed(ctx, text, task, title)
	if err != nil {
		return nil, goerr.Wrap(err, "Embedding generation failed",
			goerr.T(model.TagUpstream),
			goerr.V("task", task))
	}

	vector, err := ExtractVector(resp)
	if err != nil {
		return nil, goerr.Wrap(err, "Embedding generation failed",
			goerr.T(model.TagUpstream),
			goerr.V("task", task))
	}

	return vector, nil
}

// ExtractVector locates the vector in either response shape. An empty vector is an error.
func ExtractVector(resp *adapter.EmbedResponse) ([]float32, error) {
	if resp == nil {
		return nil, ErrNoEmbedding
	}

	switch {
	case resp.Content != nil:
		if len(resp.Content.Embeddings) > 0 && resp.Content.Embeddings[0] != nil && len(resp.Content.Embeddings[0].Values) > 0 {
			return resp.Content.Embeddings[0].Values, nil
		}
	case resp.Raw != nil:
		if vector, ok := vectorFromRaw(resp.Raw); ok {
			return vector, nil
		}
	}

	return nil, ErrNoEmbedding
}

// vectorFromRaw accepts embeddings[0].values, embedding (list or {values}), and data[0].embedding
func vectorFromRaw(raw map[string]any) ([]float32, bool) {
	if first, ok := firstObject(raw["embeddings"]); ok {
		if v, ok := toFloat32s(first["values"]); ok {
			return v, true
		}
	}

	switch e := raw["embedding"].(type) {
	case []any:
		if v, ok := toFloat32s(e); ok {
			return v, true
		}
	case map[string]any:
		if v, ok := toFloat32s(e["values"]); ok {
			return v, true
		}
	}

	if first, ok := firstObject(raw["data"]); ok {
		if v, ok := toFloat32s(first["embedding"]); ok {
			return v, true
		}
	}

	return nil, false
}

func firstObject(v any) (map[string]any, bool) {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil, false
	}
	obj, ok := list[0].(map[string]any)
	return obj, ok
}

func toFloat32s(v any) ([]float32, bool) {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil, false
	}

	out := make([]float32, len(list))
	for i, item := range list {
		f, ok := item.(float64)
		if !ok {
			return nil, false
		}
		out[i] = float32(f)
	}
	return out, true
}
