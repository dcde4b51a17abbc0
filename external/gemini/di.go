package gemini

import (
	"context"

	"github.com/foxseedlab/ko2bn/internal/config"
	"github.com/foxseedlab/ko2bn/internal/synthesizer"
	"github.com/foxseedlab/ko2bn/internal/translator"
	"github.com/samber/do/v2"
	"google.golang.org/genai"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*genai.Client, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewClient(context.Background(), c.GeminiAPIKey)
	})
	do.Provide(injector, func(i do.Injector) (translator.Translator, error) {
		c := do.MustInvoke[*config.Config](i)
		client := do.MustInvoke[*genai.Client](i)
		return NewTranslator(client.Models, c.GeminiTranslationModel), nil
	})
	do.Provide(injector, func(i do.Injector) (synthesizer.Synthesizer, error) {
		c := do.MustInvoke[*config.Config](i)
		client := do.MustInvoke[*genai.Client](i)
		return NewSynthesizer(client.Models, c.GeminiTTSModel, c.GeminiTTSVoice), nil
	})
}
