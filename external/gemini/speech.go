package gemini

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"mime"
	"strconv"
	"strings"

	"github.com/foxseedlab/ko2bn/internal/language"
	"github.com/foxseedlab/ko2bn/internal/synthesizer"
	"google.golang.org/genai"
)

const (
	// Gemini TTS answers with raw 16-bit mono PCM unless the MIME type says otherwise.
	defaultTTSSampleRate = 24000
	wavMIMEType          = "audio/wav"
)

type Synthesizer struct {
	models contentGenerator
	model  string
	voice  string
}

func NewSynthesizer(models contentGenerator, model, voice string) *Synthesizer {
	return &Synthesizer{models: models, model: model, voice: voice}
}

func (s *Synthesizer) Synthesize(ctx context.Context, text string, lang language.Code) (synthesizer.Audio, error) {
	prompt := fmt.Sprintf("Read this %s text aloud clearly: %s", lang.Name(), text)
	resp, err := s.models.GenerateContent(ctx, s.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: s.voice},
			},
		},
	})
	if err != nil {
		return synthesizer.Audio{}, fmt.Errorf("synthesize %s: %w", lang, err)
	}
	part, err := firstPart(resp)
	if err != nil {
		return synthesizer.Audio{}, fmt.Errorf("synthesize %s: %w", lang, err)
	}
	if part.InlineData == nil || len(part.InlineData.Data) == 0 {
		return synthesizer.Audio{}, fmt.Errorf("synthesize %s: %w", lang, ErrEmptyResponse)
	}
	return toWAV(part.InlineData.Data, part.InlineData.MIMEType), nil
}

func toWAV(data []byte, mimeType string) synthesizer.Audio {
	mediaType, params, err := mime.ParseMediaType(mimeType)
	if err == nil && (mediaType == wavMIMEType || mediaType == "audio/x-wav") {
		return synthesizer.Audio{Data: data, MIMEType: wavMIMEType}
	}
	rate := defaultTTSSampleRate
	if r, convErr := strconv.Atoi(strings.TrimSpace(params["rate"])); convErr == nil && r > 0 {
		rate = r
	}
	return synthesizer.Audio{Data: wrapPCM16(data, rate, 1), MIMEType: wavMIMEType}
}

// wrapPCM16 prepends a canonical 44-byte RIFF header to little-endian PCM.
func wrapPCM16(pcm []byte, sampleRate, channels int) []byte {
	const bitsPerSample = 16
	blockAlign := channels * bitsPerSample / 8
	var b bytes.Buffer
	b.Grow(44 + len(pcm))
	b.WriteString("RIFF")
	_ = binary.Write(&b, binary.LittleEndian, uint32(36+len(pcm)))
	b.WriteString("WAVEfmt ")
	_ = binary.Write(&b, binary.LittleEndian, uint32(16))
	_ = binary.Write(&b, binary.LittleEndian, uint16(1))
	_ = binary.Write(&b, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&b, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&b, binary.LittleEndian, uint32(sampleRate*blockAlign))
	_ = binary.Write(&b, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&b, binary.LittleEndian, uint16(bitsPerSample))
	b.WriteString("data")
	_ = binary.Write(&b, binary.LittleEndian, uint32(len(pcm)))
	b.Write(pcm)
	return b.Bytes()
}
