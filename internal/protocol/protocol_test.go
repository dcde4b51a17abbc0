package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/foxseedlab/ko2bn/internal/language"
	"github.com/foxseedlab/ko2bn/internal/transcriber"
)

func TestDecodeClientMessage_Text(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"kind":"text","text":" 안녕하세요 ","language":"ko","speakerName":"Minji","participantId":7}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text, ok := msg.(TextMessage)
	if !ok {
		t.Fatalf("expected TextMessage, got %T", msg)
	}
	if text.Text != "안녕하세요" || text.Language != language.Korean || text.SpeakerName != "Minji" {
		t.Fatalf("unexpected message: %+v", text)
	}
	if text.ParticipantID == nil || *text.ParticipantID != 7 {
		t.Fatalf("unexpected participant id: %v", text.ParticipantID)
	}
}

func TestDecodeClientMessage_TextDefaultsToAuto(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"kind":"text","text":"hola"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := msg.(TextMessage)
	if text.Language != language.Auto {
		t.Fatalf("expected auto, got %s", text.Language)
	}
	if text.SpeakerName != DefaultSpeakerName {
		t.Fatalf("expected default speaker, got %q", text.SpeakerName)
	}
	if text.ParticipantID != nil {
		t.Fatal("expected anonymous participant")
	}
}

func TestDecodeClientMessage_TextRejectsForeignLanguage(t *testing.T) {
	_, err := DecodeClientMessage([]byte(`{"kind":"text","text":"bonjour","language":"fr"}`))
	if !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestDecodeClientMessage_Audio(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"kind":"audio","audio":"AAEC","speakerName":"Rahim"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	audio := msg.(AudioMessage)
	if len(audio.Audio) != 3 || audio.Encoding != transcriber.EncodingWebmOpus {
		t.Fatalf("unexpected audio message: %+v", audio)
	}
}

func TestDecodeClientMessage_Invalid(t *testing.T) {
	cases := []string{
		`not json`,
		`{}`,
		`{"kind":"dance"}`,
		`{"kind":"audio"}`,
		`{"kind":"audio","audio":"%%%"}`,
		`{"kind":"audio","audio":"AAEC","encoding":"flac"}`,
		`{"kind":"text","text":"   "}`,
	}
	for _, c := range cases {
		if _, err := DecodeClientMessage([]byte(c)); !errors.Is(err, ErrInvalidMessage) {
			t.Fatalf("expected ErrInvalidMessage for %s, got %v", c, err)
		}
	}
}

func TestDecodeClientMessage_Ping(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"kind":"ping"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := msg.(PingMessage); !ok {
		t.Fatalf("expected PingMessage, got %T", msg)
	}
}

func TestEncodeServerMessage_Transcript(t *testing.T) {
	ko := "안녕하세요"
	en := "Hello"
	b, err := EncodeServerMessage(Transcript{
		ID:               12,
		SpeakerName:      "Minji",
		OriginalText:     ko,
		OriginalLanguage: language.Korean,
		Translations:     TranslationFields{Ko: &ko, En: &en},
		AudioFiles:       map[language.Code]string{language.English: "UklGRg=="},
		Timestamp:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["kind"] != KindTranscript || got["originalLanguage"] != "ko" {
		t.Fatalf("unexpected payload: %s", b)
	}
	translations := got["translations"].(map[string]any)
	if translations["bn"] != nil {
		t.Fatalf("expected null bn translation, got %v", translations["bn"])
	}
	if translations["ko"] != ko {
		t.Fatalf("unexpected ko translation: %v", translations["ko"])
	}
	if !strings.Contains(string(b), `"timestamp":"2026-01-02T03:04:05Z"`) {
		t.Fatalf("unexpected timestamp encoding: %s", b)
	}
}

func TestEncodeServerMessage_Kinds(t *testing.T) {
	cases := map[string]ServerMessage{
		`{"kind":"pong"}`:                                   Pong{},
		`{"kind":"connected","sessionCode":"123456"}`:       Connected{SessionCode: "123456"},
		`{"kind":"error","message":"nope"}`:                 Error{Message: "nope"},
		`{"kind":"user_disconnected","message":"bye"}`:      UserDisconnected{Message: "bye"},
	}
	for want, msg := range cases {
		b, err := EncodeServerMessage(msg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(b) != want {
			t.Fatalf("got %s, want %s", b, want)
		}
	}
}
