package model

import (
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
)

// NotificationID is the caller-supplied identifier of a captured notification.
// It is the sole upsert key of the vector store.
type NotificationID string

const (
	maxNotificationIDLen = 256
	maxPackageNameLen    = 256
	maxSourceAppLen      = 128
	maxTitleLen          = 512
	maxBodyLen           = 4000
)

// Notification represents one captured device event
type Notification struct {
	ID               NotificationID `json:"notificationId" yaml:"notificationId"`
	PackageName      string         `json:"packageName" yaml:"packageName"`
	SourceApp        string         `json:"appName" yaml:"appName"`
	Title            string         `json:"title" yaml:"title"`
	Body             string         `json:"text" yaml:"text"`
	OccurredAtMillis int64          `json:"time" yaml:"time"`
	IsOngoing        bool           `json:"isOngoing" yaml:"isOngoing"`
}

// Validate checks the notification before any pipeline work happens
func (n *Notification) Validate() error {
	if err := checkLength("notificationId", string(n.ID), 1, maxNotificationIDLen); err != nil {
		return err
	}
	if err := checkLength("packageName", n.PackageName, 1, maxPackageNameLen); err != nil {
		return err
	}
	if err := checkLength("appName", n.SourceApp, 1, maxSourceAppLen); err != nil {
		return err
	}
	if err := checkLength("title", n.Title, 0, maxTitleLen); err != nil {
		return err
	}
	if err := checkLength("text", n.Body, 0, maxBodyLen); err != nil {
		return err
	}
	if n.OccurredAtMillis <= 0 {
		return goerr.New("time must be a positive Unix epoch in milliseconds",
			goerr.T(TagValidation),
			goerr.V("time", n.OccurredAtMillis))
	}
	return nil
}

func checkLength(field, value string, minLen, maxLen int) error {
	n := utf8.RuneCountInString(value)
	if n < minLen || n > maxLen {
		return goerr.New(field+" length out of range",
			goerr.T(TagValidation),
			goerr.V("field", field),
			goerr.V("length", n),
			goerr.V("min", minLen),
			goerr.V("max", maxLen))
	}
	return nil
}
