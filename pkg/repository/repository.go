package repository

import (
	"context"
	"math"

	"github.com/m-mizutani/deepfocus/pkg/model"
)

// Repository is the single logical notification collection, indexed by cosine distance
type Repository interface {
	// PutDocument inserts or wholesale replaces the document with the same ID
	PutDocument(ctx context.Context, doc *model.StoredDocument) error

	// GetDocument retrieves a document by notification ID.
	// Returns an error wrapping model.ErrDocumentNotFound if absent.
	GetDocument(ctx context.Context, id model.NotificationID) (*model.StoredDocument, error)

	// SearchDocuments returns up to topK hits ordered by ascending cosine distance
	SearchDocuments(ctx context.Context, embedding []float32, topK int) ([]*model.RetrievalHit, error)

	// Close releases the backend connection
	Close() error
}

// cosineDistance returns 1 - cosine similarity. Mismatched or zero vectors are
// treated as orthogonal.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return 1
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 1
	}

	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
