package triage

import (
	"regexp"
	"strings"

	"github.com/m-mizutani/deepfocus/pkg/model"
)

var missedCallPattern = regexp.MustCompile(`(?i)missed\s+(voice\s+|video\s+)?call`)

// InterceptedField tells which notification field matched the missed-call pattern
type InterceptedField string

const (
	InterceptedTitle InterceptedField = "title"
	InterceptedBody  InterceptedField = "body"
)

// Interception is a transient notification answered immediately instead of stored
type Interception struct {
	Field  InterceptedField
	Caller string
	Text   string
}

// Intercept checks title first, then body. The field that did not match
// identifies the caller.
func Intercept(title, body string) (*Interception, bool) {
	var field InterceptedField
	var other string

	switch {
	case missedCallPattern.MatchString(title):
		field, other = InterceptedTitle, body
	case missedCallPattern.MatchString(body):
		field, other = InterceptedBody, title
	default:
		return nil, false
	}

	caller := strings.TrimSpace(other)
	if caller == "" {
		caller = model.UnknownCaller
	}

	return &Interception{
		Field:  field,
		Caller: caller,
		Text:   MissedCallText(caller),
	}, true
}

// MissedCallText is the spoken response for a missed call
func MissedCallText(caller string) string {
	return "You received a missed call from " + caller
}
