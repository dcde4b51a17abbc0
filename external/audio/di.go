package audio

import (
	"github.com/foxseedlab/ko2bn/internal/audio"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (audio.OpusDecoder, error) {
		return NewOpusDecoder(), nil
	})
}
