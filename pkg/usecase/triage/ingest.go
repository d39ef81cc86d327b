package triage

import (
	"context"
	"time"

	"github.com/m-mizutani/deepfocus/pkg/adapter"
	"github.com/m-mizutani/deepfocus/pkg/model"
	"github.com/m-mizutani/deepfocus/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// IngestResult is the outcome of one ingest. At most one of Intercepted,
// Skipped or Document describes what happened.
type IngestResult struct {
	// Intercepted is set for a missed call; ResponseText must be spoken back
	Intercepted  *Interception
	ResponseText string

	// Skipped is set when the mute policy dropped the notification
	Skipped bool

	Document *model.StoredDocument
}

// Ingest validates a notification and either intercepts it or embeds and upserts it
func (u *UseCase) Ingest(ctx context.Context, n *model.Notification) (*IngestResult, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}

	logger := logging.From(ctx).With("notification_id", n.ID, "app", n.SourceApp)

	if interception, ok := Intercept(n.Title, n.Body); ok {
		logger.Info("missed call intercepted", "field", interception.Field)
		return &IngestResult{
			Intercepted:  interception,
			ResponseText: interception.Text,
		}, nil
	}

	if u.policy != nil {
		muted, err := u.policy.Mute(ctx, n)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to evaluate mute policy", goerr.V("id", n.ID))
		}
		if muted {
			logger.Info("notification muted by policy")
			return &IngestResult{Skipped: true}, nil
		}
	}

	text := FormatDocument(n)
	vector, err := u.embed(ctx, text, adapter.EmbedTaskDocument, n.SourceApp)
	if err != nil {
		return nil, err
	}

	doc := &model.StoredDocument{
		ID:        n.ID,
		Text:      text,
		Embedding: vector,
		Metadata:  BuildMetadata(n),
		UpdatedAt: time.Now().UTC(),
	}
	if err := u.repo.PutDocument(ctx, doc); err != nil {
		return nil, goerr.Wrap(err, "Failed to persist notification",
			goerr.T(model.TagStore),
			goerr.V("id", n.ID))
	}

	logger.Info("notification stored", "dimensions", len(vector))
	return &IngestResult{Document: doc}, nil
}
