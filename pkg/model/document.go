package model

import (
	"time"
)

// Metadata is stored alongside every document and echoed back in retrieval hits
type Metadata struct {
	SourceApp          string         `json:"appName" firestore:"appName"`
	PackageName        string         `json:"packageName" firestore:"packageName"`
	Title              string         `json:"title" firestore:"title"`
	OccurredAtMillis   int64          `json:"time" firestore:"time"`
	FormattedTimestamp string         `json:"timeUtc" firestore:"timeUtc"`
	IsOngoing          bool           `json:"isOngoing" firestore:"isOngoing"`
	OriginalID         NotificationID `json:"notificationId" firestore:"notificationId"`
}

// StoredDocument is the canonical text and vector form of a non-intercepted notification
type StoredDocument struct {
	ID        NotificationID
	Text      string
	Embedding []float32
	Metadata  Metadata
	UpdatedAt time.Time
}

// RetrievalHit is one ranked result of a vector search. Distance is the cosine
// distance to the query vector; lower means more similar.
type RetrievalHit struct {
	Text     string
	Metadata Metadata
	Distance float64
}
