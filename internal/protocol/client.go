// Package protocol defines the session websocket messages. Inbound frames
// are decoded into a closed set of ClientMessage variants before they reach
// the pipeline, and every outbound message is a ServerMessage variant.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/foxseedlab/ko2bn/internal/language"
	"github.com/foxseedlab/ko2bn/internal/transcriber"
)

const (
	KindAudio = "audio"
	KindText  = "text"
	KindPing  = "ping"

	// EncodingOpusFrames is base64 of 2-byte big-endian length-prefixed raw
	// Opus packets, decoded server-side before recognition.
	EncodingOpusFrames transcriber.Encoding = "opus_frames"

	DefaultSpeakerName = "Unknown"
)

var ErrInvalidMessage = errors.New("invalid message")

// ClientMessage is one of AudioMessage, TextMessage or PingMessage.
type ClientMessage interface {
	clientMessage()
}

type AudioMessage struct {
	Audio         []byte
	Encoding      transcriber.Encoding
	SpeakerName   string
	ParticipantID *int64
}

type TextMessage struct {
	Text          string
	Language      language.Code
	SpeakerName   string
	ParticipantID *int64
}

type PingMessage struct{}

func (AudioMessage) clientMessage() {}
func (TextMessage) clientMessage()  {}
func (PingMessage) clientMessage()  {}

type rawClientMessage struct {
	Kind          string `json:"kind"`
	Audio         string `json:"audio"`
	Encoding      string `json:"encoding"`
	Text          string `json:"text"`
	Language      string `json:"language"`
	SpeakerName   string `json:"speakerName"`
	ParticipantID *int64 `json:"participantId"`
}

var audioEncodings = map[transcriber.Encoding]struct{}{
	transcriber.EncodingWebmOpus: {},
	transcriber.EncodingOggOpus:  {},
	transcriber.EncodingWAV:      {},
	transcriber.EncodingMP3:      {},
	EncodingOpusFrames:           {},
}

// DecodeClientMessage validates one inbound frame.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var raw rawClientMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: malformed json: %v", ErrInvalidMessage, err)
	}

	switch strings.TrimSpace(raw.Kind) {
	case KindAudio:
		return decodeAudio(raw)
	case KindText:
		return decodeText(raw)
	case KindPing:
		return PingMessage{}, nil
	case "":
		return nil, fmt.Errorf("%w: kind is required", ErrInvalidMessage)
	default:
		return nil, fmt.Errorf("%w: unsupported kind %q", ErrInvalidMessage, raw.Kind)
	}
}

func decodeAudio(raw rawClientMessage) (ClientMessage, error) {
	if raw.Audio == "" {
		return nil, fmt.Errorf("%w: audio is required", ErrInvalidMessage)
	}
	audio, err := base64.StdEncoding.DecodeString(raw.Audio)
	if err != nil {
		return nil, fmt.Errorf("%w: audio is not valid base64", ErrInvalidMessage)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: audio is empty", ErrInvalidMessage)
	}
	enc := transcriber.Encoding(strings.ToLower(strings.TrimSpace(raw.Encoding)))
	if enc == "" {
		enc = transcriber.EncodingWebmOpus
	}
	if _, ok := audioEncodings[enc]; !ok {
		return nil, fmt.Errorf("%w: unsupported audio encoding %q", ErrInvalidMessage, raw.Encoding)
	}
	return AudioMessage{
		Audio:         audio,
		Encoding:      enc,
		SpeakerName:   speakerName(raw.SpeakerName),
		ParticipantID: raw.ParticipantID,
	}, nil
}

func decodeText(raw rawClientMessage) (ClientMessage, error) {
	text := strings.TrimSpace(raw.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: text is required", ErrInvalidMessage)
	}
	lang := language.Auto
	if strings.TrimSpace(raw.Language) != "" {
		lang = language.Parse(raw.Language)
		if !lang.IsTarget() && lang != language.Auto {
			return nil, fmt.Errorf("%w: unsupported language %q", ErrInvalidMessage, raw.Language)
		}
	}
	return TextMessage{
		Text:          text,
		Language:      lang,
		SpeakerName:   speakerName(raw.SpeakerName),
		ParticipantID: raw.ParticipantID,
	}, nil
}

func speakerName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultSpeakerName
	}
	return s
}
