package model

import (
	"strings"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
)

const (
	// MinTopK is the lower bound for both the configured and the per-request topK
	MinTopK = 1
	// MaxDefaultTopK bounds the configured default topK
	MaxDefaultTopK = 50
	// MaxRequestTopK bounds a per-request topK override
	MaxRequestTopK = 20
	// DefaultTopK is used when nothing is configured
	DefaultTopK = 8

	maxQueryLen = 2000
)

// FallbackResponse is returned verbatim when nothing relevant or urgent is found
const FallbackResponse = "Nothing urgent right now. Keep focusing."

// UnknownCaller stands in for the caller of a missed call with no identity
const UnknownCaller = "an unknown caller"

// Query is a spoken wake query, already transcribed to text
type Query struct {
	Text string `json:"query"`
	TopK *int   `json:"topK,omitempty"`
}

// Validate checks query text and the optional topK override
func (q *Query) Validate() error {
	n := utf8.RuneCountInString(q.Text)
	if n < 1 || n > maxQueryLen || strings.TrimSpace(q.Text) == "" {
		return goerr.New("query must be between 1 and 2000 characters",
			goerr.T(TagValidation),
			goerr.V("length", n))
	}
	if q.TopK != nil && (*q.TopK < MinTopK || *q.TopK > MaxRequestTopK) {
		return goerr.New("topK must be between 1 and 20",
			goerr.T(TagValidation),
			goerr.V("topK", *q.TopK))
	}
	return nil
}

// EffectiveTopK returns the request override if present, else the configured default
func (q *Query) EffectiveTopK(defaultTopK int) int {
	if q.TopK != nil {
		return *q.TopK
	}
	return defaultTopK
}

// ValidateDefaultTopK checks a configured default topK
func ValidateDefaultTopK(topK int) error {
	if topK < MinTopK || topK > MaxDefaultTopK {
		return goerr.New("TOP_K must be between 1 and 50", goerr.V("topK", topK))
	}
	return nil
}

// Answer is the text outcome of a query before synthesis
type Answer struct {
	Text         string
	MatchedCount int
	Hits         []*RetrievalHit
}

// VoiceResponse is the final spoken response handed to the transport
type VoiceResponse struct {
	Text              string
	AudioArtifactPath string
	MatchedCount      int
}
