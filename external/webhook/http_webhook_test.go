package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/foxseedlab/ko2bn/internal/webhook"
)

func samplePayload() webhook.TranscriptWebhookPayload {
	ko := "안녕하세요"
	return webhook.TranscriptWebhookPayload{
		SchemaVersion: webhook.TranscriptWebhookSchemaVersion,
		SessionCode:   "482913",
		ModuleType:    "physical_meeting",
		Timezone:      "Asia/Seoul",
		Speakers:      []string{"Minji"},
		EntryCount:    1,
		Entries: []webhook.TranscriptWebhookEntry{
			{Index: 1, ID: 7, SpeakerName: "Minji", OriginalLanguage: "ko", OriginalText: ko,
				Translations: map[string]*string{"ko": &ko, "bn": nil, "en": nil}},
		},
		Transcript: "00:00:00 [Minji] (ko) 안녕하세요",
	}
}

func TestSendTranscript_EmptyWebhookURL(t *testing.T) {
	sender := NewHTTPSender("")
	if err := sender.SendTranscript(context.Background(), samplePayload()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestSendTranscript_Success(t *testing.T) {
	var got map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type: %s", ct)
		}
		if v := r.Header.Get("X-Transcript-Schema"); v != webhook.TranscriptWebhookSchemaVersion {
			t.Errorf("unexpected schema header: %s", v)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL)
	if err := sender.SendTranscript(context.Background(), samplePayload()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got["sessionCode"] != "482913" {
		t.Fatalf("unexpected session code: %v", got["sessionCode"])
	}
	entries, ok := got["entries"].([]any)
	if !ok || len(entries) != 1 {
		t.Fatalf("unexpected entries: %v", got["entries"])
	}
	translations := entries[0].(map[string]any)["translations"].(map[string]any)
	if v, present := translations["bn"]; !present || v != nil {
		t.Fatalf("expected failed translation as explicit null, got %v", translations)
	}
}

func TestSendTranscript_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL)
	if err := sender.SendTranscript(context.Background(), samplePayload()); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
