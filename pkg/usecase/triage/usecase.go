package triage

import (
	"context"

	"github.com/m-mizutani/deepfocus/pkg/adapter"
	"github.com/m-mizutani/deepfocus/pkg/model"
	"github.com/m-mizutani/deepfocus/pkg/repository"
)

// MutePolicy decides whether a notification is dropped before it is embedded
type MutePolicy interface {
	Mute(ctx context.Context, n *model.Notification) (bool, error)
}

// UseCase runs the ingest and query pipelines
type UseCase struct {
	repo     repository.Repository
	embedder adapter.Embedder
	gemini   adapter.Gemini
	policy   MutePolicy
	topK     int
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithTopK sets the default number of hits retrieved per query
func WithTopK(topK int) Option {
	return func(uc *UseCase) {
		uc.topK = topK
	}
}

// WithMutePolicy enables dropping notifications by policy at ingest
func WithMutePolicy(policy MutePolicy) Option {
	return func(uc *UseCase) {
		uc.policy = policy
	}
}

// New creates a new triage UseCase instance
func New(
	repo repository.Repository,
	embedder adapter.Embedder,
	gemini adapter.Gemini,
	opts ...Option,
) *UseCase {
	uc := &UseCase{
		repo:     repo,
		embedder: embedder,
		gemini:   gemini,
		topK:     model.DefaultTopK,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// TopK returns the configured default topK
func (u *UseCase) TopK() int {
	return u.topK
}
