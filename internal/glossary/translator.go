package glossary

import (
	"context"
	"log/slog"

	"github.com/foxseedlab/ko2bn/internal/translator"
)

// Translator runs Protect, the wrapped translation and Restore as one call.
type Translator struct {
	next translator.Translator
}

func NewTranslator(next translator.Translator) *Translator {
	return &Translator{next: next}
}

func (t *Translator) Translate(ctx context.Context, req translator.Request, terms []Term) (translator.Result, error) {
	protected, mapping := Protect(req.Text, terms)
	req.Text = protected

	res, err := t.next.Translate(ctx, req)
	if err != nil {
		return translator.Result{}, err
	}
	if len(mapping) == 0 {
		return res, nil
	}

	restored, missing := Restore(res.Text, mapping)
	if len(missing) > 0 {
		slog.Warn("glossary placeholders lost in translation; terms left unreplaced",
			"source_lang", req.Source,
			"target_lang", req.Target,
			"missing", missing,
			"protected_terms", len(mapping))
	}
	res.Text = restored
	return res, nil
}
