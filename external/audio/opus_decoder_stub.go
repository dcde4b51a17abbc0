//go:build !opus

package audio

import "github.com/foxseedlab/ko2bn/internal/audio"

type unsupportedDecoder struct{}

func NewOpusDecoder() audio.OpusDecoder {
	return &unsupportedDecoder{}
}

func (d *unsupportedDecoder) DecodePackets(_ [][]byte) ([]byte, error) {
	return nil, audio.ErrOpusUnsupported
}
