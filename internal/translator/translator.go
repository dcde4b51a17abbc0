package translator

import (
	"context"

	"github.com/foxseedlab/ko2bn/internal/language"
)

type Request struct {
	Text   string
	Source language.Code
	Target language.Code
}

type Result struct {
	Text       string
	Confidence float64
}

type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}

// Func adapts a function to Translator.
type Func func(ctx context.Context, req Request) (Result, error)

func (f Func) Translate(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}
