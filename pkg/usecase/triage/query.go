package triage

import (
	"context"

	"github.com/m-mizutani/deepfocus/pkg/adapter"
	"github.com/m-mizutani/deepfocus/pkg/model"
	"github.com/m-mizutani/deepfocus/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Search embeds the query and returns up to topK hits, most similar first
func (u *UseCase) Search(ctx context.Context, q *model.Query) ([]*model.RetrievalHit, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	topK := q.EffectiveTopK(u.topK)

	vector, err := u.embed(ctx, q.Text, adapter.EmbedTaskQuery, "")
	if err != nil {
		return nil, err
	}

	hits, err := u.repo.SearchDocuments(ctx, vector, topK)
	if err != nil {
		return nil, goerr.Wrap(err, "Vector search failed",
			goerr.T(model.TagStore),
			goerr.V("topK", topK))
	}

	logging.From(ctx).Debug("vector search done", "topK", topK, "hits", len(hits))
	return hits, nil
}

// Query answers a wake query from retrieved notifications
func (u *UseCase) Query(ctx context.Context, q *model.Query) (*model.Answer, error) {
	hits, err := u.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	lines := AssembleContext(hits)

	text, err := u.generateAnswer(ctx, q.Text, lines)
	if err != nil {
		return nil, err
	}

	logging.From(ctx).Info("query answered", "matched", len(lines))
	return &model.Answer{
		Text:         text,
		MatchedCount: len(lines),
		Hits:         hits,
	}, nil
}
