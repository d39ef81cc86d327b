package triage

import (
	"strings"

	"github.com/m-mizutani/deepfocus/pkg/model"
)

const (
	unknownApp  = "Unknown App"
	unknownTime = "Unknown time"
)

// AssembleContext renders hits in store order, one line each. Hits without text are skipped.
func AssembleContext(hits []*model.RetrievalHit) []string {
	lines := make([]string, 0, len(hits))
	for _, hit := range hits {
		if hit == nil || strings.TrimSpace(hit.Text) == "" {
			continue
		}

		app := hit.Metadata.SourceApp
		if app == "" {
			app = unknownApp
		}
		ts := hit.Metadata.FormattedTimestamp
		if ts == "" {
			ts = unknownTime
		}

		var b strings.Builder
		b.WriteString(app)
		if title := strings.TrimSpace(hit.Metadata.Title); title != "" {
			b.WriteString(" from ")
			b.WriteString(title)
		}
		b.WriteString(" at ")
		b.WriteString(ts)
		b.WriteString(": ")
		b.WriteString(hit.Text)

		lines = append(lines, b.String())
	}
	return lines
}
