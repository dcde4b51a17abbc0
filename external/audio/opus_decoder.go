//go:build opus

package audio

import (
	"fmt"

	"github.com/foxseedlab/ko2bn/internal/audio"
	"github.com/hraban/opus"
)

// 120 ms is the longest duration a single Opus packet can carry.
const maxFrameSamples = audio.OpusSampleRate * 120 / 1000 * audio.OpusChannels

type OpusDecoder struct{}

func NewOpusDecoder() audio.OpusDecoder {
	return &OpusDecoder{}
}

// DecodePackets uses a fresh decoder per utterance since Opus decoding is
// stateful across packets of one stream.
func (d *OpusDecoder) DecodePackets(packets [][]byte) ([]byte, error) {
	dec, err := opus.NewDecoder(audio.OpusSampleRate, audio.OpusChannels)
	if err != nil {
		return nil, fmt.Errorf("create opus decoder: %w", err)
	}
	out := make([]byte, 0, len(packets)*960*2)
	pcm := make([]int16, maxFrameSamples)
	for i, packet := range packets {
		n, err := dec.Decode(packet, pcm)
		if err != nil {
			return nil, fmt.Errorf("decode opus packet %d: %w", i, err)
		}
		out = appendPCM16(out, pcm[:n*audio.OpusChannels])
	}
	return out, nil
}
