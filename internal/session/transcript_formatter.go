package session

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/foxseedlab/ko2bn/internal/language"
	"github.com/foxseedlab/ko2bn/internal/repository"
	"github.com/foxseedlab/ko2bn/internal/webhook"
)

// Kept as a literal rather than time.DateTime so the archive layout can change on its own.
const transcriptTimeLayout = "2006-01-02 15:04:05"

func buildTranscriptText(sess repository.Session, endedAt time.Time, timezone string, loc *time.Location, entries []repository.TranscriptEntry) []byte {
	startedAt := sess.CreatedAt
	startText := startedAt.In(safeLocation(loc)).Format(transcriptTimeLayout)
	endText := endedAt.In(safeLocation(loc)).Format(transcriptTimeLayout)

	lines := []string{
		fmt.Sprintf("Session code: %s", sess.Code),
		fmt.Sprintf("Meeting type: %s", moduleTypeLabel(sess.ModuleType)),
		fmt.Sprintf("Meeting period: %s ~ %s (%s)", startText, endText, timezone),
		fmt.Sprintf("Speakers: %s", strings.Join(canonicalSpeakers(entries), ", ")),
		"",
	}
	for _, e := range entries {
		elapsed := e.Timestamp.Sub(startedAt)
		if elapsed < 0 {
			elapsed = 0
		}
		lines = append(lines, fmt.Sprintf("%s [%s] (%s) %s", formatElapsedHMS(elapsed), e.SpeakerName, e.OriginalLanguage, e.OriginalText))
		for _, target := range language.Targets {
			if target == e.OriginalLanguage {
				continue
			}
			text, ok := e.Translations.Get(target)
			if !ok {
				text = "-"
			}
			lines = append(lines, fmt.Sprintf("    %s: %s", target, text))
		}
	}
	return []byte(strings.Join(lines, "\n"))
}

func buildTranscriptWebhookPayload(sess repository.Session, endedAt time.Time, timezone string, loc *time.Location, entries []repository.TranscriptEntry) webhook.TranscriptWebhookPayload {
	startedAt := sess.CreatedAt
	transcriptLines := make([]string, 0, len(entries))
	for _, e := range entries {
		transcriptLines = append(transcriptLines, fmt.Sprintf("%s: %s", e.SpeakerName, e.OriginalText))
	}

	durationSeconds := int64(endedAt.Sub(startedAt).Seconds())
	if durationSeconds < 0 {
		durationSeconds = 0
	}

	return webhook.TranscriptWebhookPayload{
		SchemaVersion:   webhook.TranscriptWebhookSchemaVersion,
		SessionCode:     sess.Code,
		ModuleType:      string(sess.ModuleType),
		StartAt:         startedAt.In(safeLocation(loc)).Format(time.RFC3339),
		EndAt:           endedAt.In(safeLocation(loc)).Format(time.RFC3339),
		Timezone:        timezone,
		DurationSeconds: durationSeconds,
		Speakers:        canonicalSpeakers(entries),
		EntryCount:      len(entries),
		Entries:         buildTranscriptWebhookEntries(entries, safeLocation(loc)),
		Transcript:      strings.Join(transcriptLines, "\n"),
	}
}

func buildTranscriptWebhookEntries(entries []repository.TranscriptEntry, loc *time.Location) []webhook.TranscriptWebhookEntry {
	out := make([]webhook.TranscriptWebhookEntry, 0, len(entries))
	for i, e := range entries {
		out = append(out, webhook.TranscriptWebhookEntry{
			Index:            i,
			ID:               e.ID,
			SpokenAt:         e.Timestamp.In(loc).Format(time.RFC3339),
			SpeakerName:      e.SpeakerName,
			OriginalLanguage: string(e.OriginalLanguage),
			OriginalText:     e.OriginalText,
			Translations:     e.Translations.ByLanguage(),
		})
	}
	return out
}

// canonicalSpeakers returns distinct speaker names sorted case-insensitively.
func canonicalSpeakers(entries []repository.TranscriptEntry) []string {
	seen := make(map[string]struct{}, len(entries))
	list := make([]string, 0, len(entries))
	for _, e := range entries {
		name := strings.TrimSpace(e.SpeakerName)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		list = append(list, name)
	}
	sort.Slice(list, func(i, j int) bool {
		in := strings.ToLower(list[i])
		jn := strings.ToLower(list[j])
		if in != jn {
			return in < jn
		}
		return list[i] < list[j]
	})
	return list
}

func transcriptFilename(sess repository.Session, loc *time.Location) string {
	return fmt.Sprintf("ko2bn_%s_%s.txt", sess.Code, sess.CreatedAt.In(safeLocation(loc)).Format("20060102-1504"))
}

func formatElapsedHMS(d time.Duration) string {
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func safeLocation(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
