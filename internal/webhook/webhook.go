package webhook

import "context"

const TranscriptWebhookSchemaVersion = "ko2bn.transcript.v1"

type TranscriptWebhookEntry struct {
	Index            int                `json:"index"`
	ID               int64              `json:"id"`
	SpokenAt         string             `json:"spokenAt"`
	SpeakerName      string             `json:"speakerName"`
	OriginalLanguage string             `json:"originalLanguage"`
	OriginalText     string             `json:"originalText"`
	Translations     map[string]*string `json:"translations"`
}

type TranscriptWebhookPayload struct {
	SchemaVersion   string                   `json:"schemaVersion"`
	SessionCode     string                   `json:"sessionCode"`
	ModuleType      string                   `json:"moduleType"`
	StartAt         string                   `json:"startAt"`
	EndAt           string                   `json:"endAt"`
	Timezone        string                   `json:"timezone"`
	DurationSeconds int64                    `json:"durationSeconds"`
	Speakers        []string                 `json:"speakers"`
	EntryCount      int                      `json:"entryCount"`
	Entries         []TranscriptWebhookEntry `json:"entries"`
	Transcript      string                   `json:"transcript"`
}

type Sender interface {
	SendTranscript(ctx context.Context, payload TranscriptWebhookPayload) error
}
