package protocol

import (
	"encoding/json"
	"time"

	"github.com/foxseedlab/ko2bn/internal/language"
)

const (
	KindConnected        = "connected"
	KindTranscript       = "transcript"
	KindError            = "error"
	KindPong             = "pong"
	KindUserDisconnected = "user_disconnected"
)

// ServerMessage is one of Connected, Transcript, Error, Pong or UserDisconnected.
type ServerMessage interface {
	Kind() string
}

type Connected struct {
	SessionCode string `json:"sessionCode"`
}

type TranslationFields struct {
	Ko *string `json:"ko"`
	Bn *string `json:"bn"`
	En *string `json:"en"`
}

type Transcript struct {
	ID               int64                    `json:"id"`
	SpeakerName      string                   `json:"speakerName"`
	OriginalText     string                   `json:"originalText"`
	OriginalLanguage language.Code            `json:"originalLanguage"`
	Translations     TranslationFields        `json:"translations"`
	AudioFiles       map[language.Code]string `json:"audioFiles"`
	Timestamp        time.Time                `json:"timestamp"`
}

type Error struct {
	Message string `json:"message"`
}

type Pong struct{}

type UserDisconnected struct {
	Message string `json:"message"`
}

func (Connected) Kind() string        { return KindConnected }
func (Transcript) Kind() string       { return KindTranscript }
func (Error) Kind() string            { return KindError }
func (Pong) Kind() string             { return KindPong }
func (UserDisconnected) Kind() string { return KindUserDisconnected }

func (m Connected) MarshalJSON() ([]byte, error) {
	type wire Connected
	return json.Marshal(struct {
		Kind string `json:"kind"`
		wire
	}{KindConnected, wire(m)})
}

func (m Transcript) MarshalJSON() ([]byte, error) {
	type wire Transcript
	if m.AudioFiles == nil {
		m.AudioFiles = map[language.Code]string{}
	}
	return json.Marshal(struct {
		Kind string `json:"kind"`
		wire
	}{KindTranscript, wire(m)})
}

func (m Error) MarshalJSON() ([]byte, error) {
	type wire Error
	return json.Marshal(struct {
		Kind string `json:"kind"`
		wire
	}{KindError, wire(m)})
}

func (m Pong) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind string `json:"kind"`
	}{KindPong})
}

func (m UserDisconnected) MarshalJSON() ([]byte, error) {
	type wire UserDisconnected
	return json.Marshal(struct {
		Kind string `json:"kind"`
		wire
	}{KindUserDisconnected, wire(m)})
}

func EncodeServerMessage(m ServerMessage) ([]byte, error) {
	return json.Marshal(m)
}
