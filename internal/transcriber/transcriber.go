package transcriber

import (
	"context"

	"github.com/foxseedlab/ko2bn/internal/language"
)

// Encoding names the container or codec of an uploaded utterance.
type Encoding string

const (
	EncodingWebmOpus Encoding = "webm_opus"
	EncodingOggOpus  Encoding = "ogg_opus"
	EncodingWAV      Encoding = "wav"
	EncodingMP3      Encoding = "mp3"
	// EncodingLinear16 is raw signed 16-bit little-endian PCM.
	EncodingLinear16 Encoding = "linear16"
)

type Input struct {
	Audio        []byte
	Encoding     Encoding
	SampleRateHz int
	Channels     int
}

type Result struct {
	Text     string
	Language language.Code
}

// Transcriber converts one complete utterance into text. An empty Text with
// language.Unknown means nothing could be recognised.
type Transcriber interface {
	Transcribe(ctx context.Context, input Input) (Result, error)
}
