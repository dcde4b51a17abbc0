package session

import (
	"strings"
	"testing"
	"time"

	"github.com/foxseedlab/ko2bn/internal/language"
	"github.com/foxseedlab/ko2bn/internal/repository"
	"github.com/foxseedlab/ko2bn/internal/webhook"
)

func strPtr(s string) *string { return &s }

func sampleArchive(t *testing.T) (repository.Session, time.Time, *time.Location, []repository.TranscriptEntry) {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		t.Fatalf("failed to load location: %v", err)
	}
	startedAt := time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC)
	sess := repository.Session{
		ID:         1,
		Code:       "482913",
		CreatedBy:  10,
		ModuleType: repository.ModuleTypePhysicalMeeting,
		Status:     repository.SessionStatusCompleted,
		CreatedAt:  startedAt,
	}
	entries := []repository.TranscriptEntry{
		{
			ID:               1,
			SpeakerName:      "minji",
			OriginalText:     "안녕하세요",
			OriginalLanguage: language.Korean,
			Translations:     repository.Translations{Ko: strPtr("안녕하세요"), Bn: strPtr("নমস্কার"), En: strPtr("Hello")},
			Timestamp:        startedAt.Add(15 * time.Second),
		},
		{
			ID:               2,
			SpeakerName:      "Rahim",
			OriginalText:     "Good morning",
			OriginalLanguage: language.English,
			Translations:     repository.Translations{Ko: strPtr("좋은 아침"), En: strPtr("Good morning")},
			Timestamp:        startedAt.Add(75 * time.Second),
		},
		{
			ID:               3,
			SpeakerName:      "minji",
			OriginalText:     "네",
			OriginalLanguage: language.Korean,
			Translations:     repository.Translations{Ko: strPtr("네")},
			Timestamp:        startedAt.Add(80 * time.Second),
		},
	}
	return sess, startedAt.Add(2 * time.Minute), loc, entries
}

func TestBuildTranscriptText(t *testing.T) {
	sess, endedAt, loc, entries := sampleArchive(t)

	body := string(buildTranscriptText(sess, endedAt, "Asia/Seoul", loc, entries))

	if !strings.Contains(body, "Session code: 482913") {
		t.Fatalf("session code not found in body: %s", body)
	}
	if !strings.Contains(body, "Meeting period: 2026-03-02 10:00:00 ~ 2026-03-02 10:02:00 (Asia/Seoul)") {
		t.Fatalf("period line not found in body: %s", body)
	}
	if !strings.Contains(body, "Speakers: minji, Rahim") {
		t.Fatalf("speakers line not found in body: %s", body)
	}
	if !strings.Contains(body, "00:00:15 [minji] (ko) 안녕하세요") {
		t.Fatalf("first entry line not found in body: %s", body)
	}
	if !strings.Contains(body, "    en: Hello") {
		t.Fatalf("english translation not found in body: %s", body)
	}
	if !strings.Contains(body, "00:01:15 [Rahim] (en) Good morning\n    ko: 좋은 아침\n    bn: -") {
		t.Fatalf("failed translation should render as a dash: %s", body)
	}
}

func TestBuildTranscriptWebhookPayload(t *testing.T) {
	sess, endedAt, loc, entries := sampleArchive(t)

	payload := buildTranscriptWebhookPayload(sess, endedAt, "Asia/Seoul", loc, entries)

	assertTranscriptPayloadCore(t, payload)
	if payload.Entries[1].Translations["bn"] != nil {
		t.Fatalf("expected failed bengali translation to be null, got %v", *payload.Entries[1].Translations["bn"])
	}
	if got := *payload.Entries[0].Translations["en"]; got != "Hello" {
		t.Fatalf("unexpected english translation: %s", got)
	}
	if payload.Entries[0].SpokenAt != "2026-03-02T10:00:15+09:00" {
		t.Fatalf("unexpected spokenAt: %s", payload.Entries[0].SpokenAt)
	}
}

func assertTranscriptPayloadCore(t *testing.T, payload webhook.TranscriptWebhookPayload) {
	t.Helper()
	if payload.SchemaVersion != webhook.TranscriptWebhookSchemaVersion {
		t.Fatalf("unexpected schema version: %s", payload.SchemaVersion)
	}
	if payload.SessionCode != "482913" || payload.ModuleType != "physical_meeting" {
		t.Fatalf("unexpected session fields: %+v", payload)
	}
	if payload.EntryCount != 3 || len(payload.Entries) != 3 {
		t.Fatalf("unexpected entry count: %d", payload.EntryCount)
	}
	if payload.DurationSeconds != 120 {
		t.Fatalf("unexpected duration: %d", payload.DurationSeconds)
	}
	if len(payload.Speakers) != 2 || payload.Speakers[0] != "minji" || payload.Speakers[1] != "Rahim" {
		t.Fatalf("speakers are not deduplicated and sorted: %+v", payload.Speakers)
	}
	if payload.Timezone != "Asia/Seoul" {
		t.Fatalf("unexpected timezone: %s", payload.Timezone)
	}
}

func TestFormatElapsedHMS(t *testing.T) {
	if got := formatElapsedHMS(3*time.Hour + 4*time.Minute + 5*time.Second); got != "03:04:05" {
		t.Fatalf("unexpected elapsed format: %s", got)
	}
}
