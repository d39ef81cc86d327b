package repository

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/m-mizutani/deepfocus/pkg/model"
	"github.com/m-mizutani/goerr/v2"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS notifications (
    id         TEXT PRIMARY KEY,
    text       TEXT NOT NULL,
    embedding  BLOB NOT NULL,
    metadata   TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`

// SQLite is a local persistent collection. Vectors are scanned and ranked in process.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (and creates if needed) the database file at path
func NewSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, goerr.Wrap(err, "failed to create data directory", goerr.V("dir", dir))
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite", goerr.V("path", path))
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, goerr.Wrap(err, "failed to apply schema", goerr.V("path", path))
	}

	return &SQLite{db: db}, nil
}

func (r *SQLite) PutDocument(ctx context.Context, doc *model.StoredDocument) error {
	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal metadata", goerr.V("id", doc.ID))
	}

	updatedAt := doc.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, text, embedding, metadata, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			embedding = excluded.embedding,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`, string(doc.ID), doc.Text, encodeVector(doc.Embedding), string(meta), updatedAt.UnixMilli())
	if err != nil {
		return goerr.Wrap(err, "failed to upsert document", goerr.V("id", doc.ID))
	}

	return nil
}

func (r *SQLite) GetDocument(ctx context.Context, id model.NotificationID) (*model.StoredDocument, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, text, embedding, metadata, updated_at FROM notifications WHERE id = ?`, string(id))

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(model.ErrDocumentNotFound, "no document for notification", goerr.V("id", id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get document", goerr.V("id", id))
	}
	return doc, nil
}

func (r *SQLite) SearchDocuments(ctx context.Context, embedding []float32, topK int) ([]*model.RetrievalHit, error) {
	if topK < 1 {
		return nil, goerr.New("topK must be positive", goerr.V("topK", topK))
	}

	rows, err := r.db.QueryContext(ctx, `SELECT id, text, embedding, metadata, updated_at FROM notifications`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query documents")
	}
	defer rows.Close()

	var hits []*model.RetrievalHit
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan document")
		}
		hits = append(hits, &model.RetrievalHit{
			Text:     doc.Text,
			Metadata: doc.Metadata,
			Distance: cosineDistance(embedding, doc.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate documents")
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}

	return hits, nil
}

func (r *SQLite) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*model.StoredDocument, error) {
	var (
		id        string
		text      string
		vector    []byte
		meta      string
		updatedAt int64
	)
	if err := row.Scan(&id, &text, &vector, &meta, &updatedAt); err != nil {
		return nil, err
	}

	doc := &model.StoredDocument{
		ID:        model.NotificationID(id),
		Text:      text,
		Embedding: decodeVector(vector),
		UpdatedAt: time.UnixMilli(updatedAt).UTC(),
	}
	if err := json.Unmarshal([]byte(meta), &doc.Metadata); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal metadata", goerr.V("id", id))
	}

	return doc, nil
}

func encodeVector(vector []float32) []byte {
	buf := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(data []byte) []float32 {
	vector := make([]float32, len(data)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vector
}
