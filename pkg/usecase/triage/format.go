package triage

import (
	"strings"
	"time"

	"github.com/m-mizutani/deepfocus/pkg/model"
)

const (
	timestampLayout = "2006-01-02 15:04:05 UTC"
	unknownSender   = "Unknown sender"
	noMessageBody   = "No message body"
)

// FormatTimestamp renders epoch milliseconds as UTC civil time
func FormatTimestamp(millis int64) string {
	return time.UnixMilli(millis).UTC().Format(timestampLayout)
}

// FormatDocument produces the sentence that is embedded, stored and later echoed as context.
// Changing this text changes retrieval results of everything ingested afterwards.
func FormatDocument(n *model.Notification) string {
	sender := strings.TrimSpace(n.Title)
	if sender == "" {
		sender = unknownSender
	}
	message := strings.TrimSpace(n.Body)
	if message == "" {
		message = noMessageBody
	}

	return n.SourceApp + " message from " + sender + ": " + message + " at " + FormatTimestamp(n.OccurredAtMillis) + "."
}

// BuildMetadata is the structured metadata stored next to the document
func BuildMetadata(n *model.Notification) model.Metadata {
	return model.Metadata{
		SourceApp:          n.SourceApp,
		PackageName:        n.PackageName,
		Title:              n.Title,
		OccurredAtMillis:   n.OccurredAtMillis,
		FormattedTimestamp: FormatTimestamp(n.OccurredAtMillis),
		IsOngoing:          n.IsOngoing,
		OriginalID:         n.ID,
	}
}
