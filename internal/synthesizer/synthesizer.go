package synthesizer

import (
	"context"

	"github.com/foxseedlab/ko2bn/internal/language"
)

type Audio struct {
	Data     []byte
	MIMEType string
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string, lang language.Code) (Audio, error)
}
