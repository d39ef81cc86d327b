package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/deepfocus/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultCollection   = "notifications"
	embeddingField      = "Embedding"
	distanceResultField = "vector_distance"
)

// Firestore stores documents in one collection and ranks them with FindNearest.
// The collection needs a vector index on the Embedding field with the embedding dimension.
type Firestore struct {
	client     *firestore.Client
	collection string
}

type FirestoreOption func(*Firestore)

func WithCollection(name string) FirestoreOption {
	return func(f *Firestore) {
		f.collection = name
	}
}

// firestoreDocument is the persisted shape of model.StoredDocument
type firestoreDocument struct {
	ID        string             `firestore:"ID"`
	Text      string             `firestore:"Text"`
	Embedding firestore.Vector32 `firestore:"Embedding"`
	Metadata  model.Metadata     `firestore:"Metadata"`
	UpdatedAt time.Time          `firestore:"UpdatedAt"`
}

// NewFirestore creates a Firestore repository
func NewFirestore(ctx context.Context, projectID, databaseID string, opts ...FirestoreOption) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID),
			goerr.V("database", databaseID))
	}

	f := &Firestore{
		client:     client,
		collection: defaultCollection,
	}
	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

// docKey maps a notification ID to a Firestore document ID; raw IDs may contain "/"
func docKey(id model.NotificationID) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}

func (r *Firestore) PutDocument(ctx context.Context, doc *model.StoredDocument) error {
	updatedAt := doc.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := r.client.Collection(r.collection).Doc(docKey(doc.ID)).Set(ctx, &firestoreDocument{
		ID:        string(doc.ID),
		Text:      doc.Text,
		Embedding: firestore.Vector32(doc.Embedding),
		Metadata:  doc.Metadata,
		UpdatedAt: updatedAt,
	})
	if err != nil {
		return goerr.Wrap(err, "failed to put document", goerr.V("id", doc.ID))
	}

	return nil
}

func (r *Firestore) GetDocument(ctx context.Context, id model.NotificationID) (*model.StoredDocument, error) {
	snap, err := r.client.Collection(r.collection).Doc(docKey(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrDocumentNotFound, "no document for notification", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get document", goerr.V("id", id))
	}

	var doc firestoreDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode document", goerr.V("id", id))
	}

	return doc.toModel(), nil
}

func (r *Firestore) SearchDocuments(ctx context.Context, embedding []float32, topK int) ([]*model.RetrievalHit, error) {
	if topK < 1 {
		return nil, goerr.New("topK must be positive", goerr.V("topK", topK))
	}

	query := r.client.Collection(r.collection).FindNearest(
		embeddingField,
		firestore.Vector32(embedding),
		topK,
		firestore.DistanceMeasureCosine,
		&firestore.FindNearestOptions{
			DistanceResultField: distanceResultField,
		},
	)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var hits []*model.RetrievalHit
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate vector search results")
		}

		var doc firestoreDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode document", goerr.V("ref", snap.Ref.ID))
		}

		distance, _ := snap.Data()[distanceResultField].(float64)
		hits = append(hits, &model.RetrievalHit{
			Text:     doc.Text,
			Metadata: doc.Metadata,
			Distance: distance,
		})
	}

	return hits, nil
}

func (r *Firestore) Close() error {
	return r.client.Close()
}

func (d *firestoreDocument) toModel() *model.StoredDocument {
	return &model.StoredDocument{
		ID:        model.NotificationID(d.ID),
		Text:      d.Text,
		Embedding: []float32(d.Embedding),
		Metadata:  d.Metadata,
		UpdatedAt: d.UpdatedAt,
	}
}
