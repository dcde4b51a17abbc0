package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/foxseedlab/ko2bn/internal/language"
	"github.com/foxseedlab/ko2bn/internal/translator"
	"google.golang.org/genai"
)

const translationSystemPrompt = `You are the interpreter of a live meeting between Korean, Bengali and English speakers.
Translate the user's utterance faithfully and naturally. Reply with the translation only: no quotes, notes or transliteration.
Keep every token of the form ___GLOSSARY_xxxx_n___ exactly as written.`

type Translator struct {
	models contentGenerator
	model  string
}

func NewTranslator(models contentGenerator, model string) *Translator {
	return &Translator{models: models, model: model}
}

func (t *Translator) Translate(ctx context.Context, req translator.Request) (translator.Result, error) {
	resp, err := t.models.GenerateContent(ctx, t.model, genai.Text(translationPrompt(req)), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(translationSystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.2),
	})
	if err != nil {
		return translator.Result{}, fmt.Errorf("translate to %s: %w", req.Target, err)
	}
	text, err := responseText(resp)
	if err != nil {
		return translator.Result{}, fmt.Errorf("translate to %s: %w", req.Target, err)
	}
	return translator.Result{Text: text, Confidence: 1}, nil
}

func translationPrompt(req translator.Request) string {
	var b strings.Builder
	if req.Source == language.Auto || req.Source == language.Unknown || req.Source == "" {
		b.WriteString("Detect the language of the following text and translate it into ")
	} else {
		fmt.Fprintf(&b, "Translate the following %s text into ", req.Source.Name())
	}
	b.WriteString(req.Target.Name())
	b.WriteString(".\n\n")
	b.WriteString(req.Text)
	return b.String()
}
