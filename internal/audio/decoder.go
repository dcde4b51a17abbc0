package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	OpusSampleRate = 48000
	OpusChannels   = 1
)

var ErrOpusUnsupported = errors.New("opus decoding is not available in this build")

// OpusDecoder turns a sequence of raw Opus packets into signed 16-bit
// little-endian PCM at OpusSampleRate with OpusChannels.
type OpusDecoder interface {
	DecodePackets(packets [][]byte) ([]byte, error)
}

// SplitPackets parses 2-byte big-endian length-prefixed Opus packets.
func SplitPackets(framed []byte) ([][]byte, error) {
	var packets [][]byte
	for off := 0; off < len(framed); {
		if off+2 > len(framed) {
			return nil, fmt.Errorf("truncated packet header at offset %d", off)
		}
		n := int(binary.BigEndian.Uint16(framed[off:]))
		off += 2
		if n == 0 {
			continue
		}
		if off+n > len(framed) {
			return nil, fmt.Errorf("packet at offset %d declares %d bytes, %d left", off-2, n, len(framed)-off)
		}
		packets = append(packets, framed[off:off+n])
		off += n
	}
	if len(packets) == 0 {
		return nil, errors.New("no opus packets")
	}
	return packets, nil
}
