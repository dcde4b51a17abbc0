// Package events describes what the backend announces to other services
// about sessions and transcripts.
package events

import (
	"context"
	"time"
)

type TranscriptEvent struct {
	SessionCode      string             `json:"sessionCode"`
	EntryID          int64              `json:"entryId"`
	SpeakerName      string             `json:"speakerName"`
	OriginalText     string             `json:"originalText"`
	OriginalLanguage string             `json:"originalLanguage"`
	Translations     map[string]*string `json:"translations"`
	Timestamp        time.Time          `json:"timestamp"`
}

type SessionEvent struct {
	SessionCode string    `json:"sessionCode"`
	Status      string    `json:"status"`
	At          time.Time `json:"at"`
}

type Publisher interface {
	PublishTranscript(ctx context.Context, event TranscriptEvent) error
	PublishSessionStatus(ctx context.Context, event SessionEvent) error
}

// Noop drops every event. It is used when no message broker is configured.
type Noop struct{}

func (Noop) PublishTranscript(context.Context, TranscriptEvent) error { return nil }
func (Noop) PublishSessionStatus(context.Context, SessionEvent) error { return nil }
