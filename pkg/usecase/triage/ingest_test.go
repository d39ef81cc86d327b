package triage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/deepfocus/pkg/adapter"
	"github.com/m-mizutani/deepfocus/pkg/model"
	"github.com/m-mizutani/deepfocus/pkg/usecase/triage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

type mockPolicy struct {
	muteFunc func(ctx context.Context, n *model.Notification) (bool, error)
}

func (m *mockPolicy) Mute(ctx context.Context, n *model.Notification) (bool, error) {
	return m.muteFunc(ctx, n)
}

func newNotification(id, app, title, body string) *model.Notification {
	return &model.Notification{
		ID:               model.NotificationID(id),
		PackageName:      "com.example." + app,
		SourceApp:        app,
		Title:            title,
		Body:             body,
		OccurredAtMillis: 1700000000000,
	}
}

func TestIngestStoresDocument(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	var gotTask adapter.EmbedTask
	var gotTitle string
	embedder := &mockEmbedder{}
	embedder.embedFunc = func(ctx context.Context, text string, task adapter.EmbedTask, title string) (*adapter.EmbedResponse, error) {
		gotTask, gotTitle = task, title
		return (&mockEmbedder{}).Embed(ctx, text, task, title)
	}

	uc := triage.New(repo, embedder, &mockGemini{})

	result, err := uc.Ingest(ctx, newNotification("n1", "Chat", "Ana", "Dinner at 7?"))
	gt.NoError(t, err)
	gt.V(t, result.Intercepted).Nil()
	gt.False(t, result.Skipped)
	gt.V(t, result.Document).NotNil()
	gt.Equal(t, result.Document.Text, "Chat message from Ana: Dinner at 7? at 2023-11-14 22:13:20 UTC.")
	gt.Equal(t, gotTask, adapter.EmbedTaskDocument)
	gt.Equal(t, gotTitle, "Chat")

	stored, err := repo.GetDocument(ctx, "n1")
	gt.NoError(t, err)
	gt.Equal(t, stored.Text, "Chat message from Ana: Dinner at 7? at 2023-11-14 22:13:20 UTC.")
	gt.Equal(t, stored.Metadata.FormattedTimestamp, "2023-11-14 22:13:20 UTC")
	gt.Equal(t, stored.Metadata.OriginalID, model.NotificationID("n1"))
}

func TestIngestIsIdempotentUpsert(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	uc := triage.New(repo, &mockEmbedder{}, &mockGemini{})

	_, err := uc.Ingest(ctx, newNotification("n1", "Chat", "Ana", "Dinner at 7?"))
	gt.NoError(t, err)
	_, err = uc.Ingest(ctx, newNotification("n1", "Chat", "Ana", "Dinner moved to 8"))
	gt.NoError(t, err)

	hits, err := repo.SearchDocuments(ctx, bagOfWords("dinner"), 20)
	gt.NoError(t, err)
	gt.A(t, hits).Length(1)
	gt.S(t, hits[0].Text).Contains("Dinner moved to 8")
}

func TestIngestInterceptsMissedCall(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	embedder := &mockEmbedder{
		embedFunc: func(ctx context.Context, text string, task adapter.EmbedTask, title string) (*adapter.EmbedResponse, error) {
			t.Error("embedding must not be called for intercepted notifications")
			return nil, errors.New("unexpected")
		},
	}
	uc := triage.New(repo, embedder, &mockGemini{})

	result, err := uc.Ingest(ctx, newNotification("call-1", "Phone", "Missed voice call", ""))
	gt.NoError(t, err)
	gt.V(t, result.Intercepted).NotNil()
	gt.Equal(t, result.ResponseText, "You received a missed call from an unknown caller")
	gt.V(t, result.Document).Nil()

	_, err = repo.GetDocument(ctx, "call-1")
	gt.True(t, errors.Is(err, model.ErrDocumentNotFound))
}

func TestIngestMissedCallNeverRetrievable(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	uc := triage.New(repo, &mockEmbedder{}, &mockGemini{})

	_, err := uc.Ingest(ctx, newNotification("call-1", "Phone", "Missed call", "Mom"))
	gt.NoError(t, err)
	_, err = uc.Ingest(ctx, newNotification("n1", "Chat", "Ana", "Dinner at 7?"))
	gt.NoError(t, err)

	for _, query := range []string{"missed call", "Mom", "Phone"} {
		hits, err := uc.Search(ctx, &model.Query{Text: query, TopK: intPtr(20)})
		gt.NoError(t, err)
		for _, hit := range hits {
			gt.NotEqual(t, hit.Metadata.OriginalID, model.NotificationID("call-1"))
		}
	}
}

func TestIngestValidation(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	embedder := &mockEmbedder{
		embedFunc: func(ctx context.Context, text string, task adapter.EmbedTask, title string) (*adapter.EmbedResponse, error) {
			t.Error("embedding must not be called for invalid notifications")
			return nil, errors.New("unexpected")
		},
	}
	uc := triage.New(repo, embedder, &mockGemini{})

	n := newNotification("n1", "Chat", "Ana", "hi")
	n.OccurredAtMillis = 0

	_, err := uc.Ingest(ctx, n)
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, model.TagValidation))
}

func TestIngestEmbeddingFailure(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	embedder := &mockEmbedder{
		embedFunc: func(ctx context.Context, text string, task adapter.EmbedTask, title string) (*adapter.EmbedResponse, error) {
			return nil, errors.New("quota exceeded")
		},
	}
	uc := triage.New(repo, embedder, &mockGemini{})

	_, err := uc.Ingest(ctx, newNotification("n1", "Chat", "Ana", "hi"))
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, model.TagUpstream))
	gt.S(t, err.Error()).Contains("Embedding generation failed")

	_, err = repo.GetDocument(ctx, "n1")
	gt.True(t, errors.Is(err, model.ErrDocumentNotFound))
}

func TestIngestEmptyVectorIsRejected(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	embedder := &mockEmbedder{
		embedFunc: func(ctx context.Context, text string, task adapter.EmbedTask, title string) (*adapter.EmbedResponse, error) {
			return &adapter.EmbedResponse{Raw: map[string]any{"embedding": []any{}}}, nil
		},
	}
	uc := triage.New(repo, embedder, &mockGemini{})

	_, err := uc.Ingest(ctx, newNotification("n1", "Chat", "Ana", "hi"))
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, model.TagUpstream))
	gt.True(t, errors.Is(err, triage.ErrNoEmbedding))
}

func TestIngestStoreFailure(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	gt.NoError(t, repo.Close())

	uc := triage.New(repo, &mockEmbedder{}, &mockGemini{})

	_, err := uc.Ingest(ctx, newNotification("n1", "Chat", "Ana", "hi"))
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, model.TagStore))
	gt.S(t, err.Error()).Contains("Failed to persist notification")
}

func TestIngestMutePolicy(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	policy := &mockPolicy{
		muteFunc: func(ctx context.Context, n *model.Notification) (bool, error) {
			return n.IsOngoing, nil
		},
	}
	uc := triage.New(repo, &mockEmbedder{}, &mockGemini{}, triage.WithMutePolicy(policy))

	ongoing := newNotification("music", "Player", "Now playing", "Song")
	ongoing.IsOngoing = true

	result, err := uc.Ingest(ctx, ongoing)
	gt.NoError(t, err)
	gt.True(t, result.Skipped)
	gt.V(t, result.Document).Nil()

	_, err = repo.GetDocument(ctx, "music")
	gt.True(t, errors.Is(err, model.ErrDocumentNotFound))

	result, err = uc.Ingest(ctx, newNotification("n1", "Chat", "Ana", "hi"))
	gt.NoError(t, err)
	gt.False(t, result.Skipped)
	gt.V(t, result.Document).NotNil()
}

func TestIngestMutePolicyError(t *testing.T) {
	ctx := context.Background()
	policy := &mockPolicy{
		muteFunc: func(ctx context.Context, n *model.Notification) (bool, error) {
			return false, errors.New("policy broken")
		},
	}
	uc := triage.New(newTestRepository(t), &mockEmbedder{}, &mockGemini{}, triage.WithMutePolicy(policy))

	_, err := uc.Ingest(ctx, newNotification("n1", "Chat", "Ana", "hi"))
	gt.Error(t, err)
	gt.False(t, goerr.HasTag(err, model.TagValidation))
}
