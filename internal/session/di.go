package session

import (
	"github.com/foxseedlab/ko2bn/internal/audio"
	"github.com/foxseedlab/ko2bn/internal/config"
	"github.com/foxseedlab/ko2bn/internal/discord"
	"github.com/foxseedlab/ko2bn/internal/events"
	"github.com/foxseedlab/ko2bn/internal/hub"
	"github.com/foxseedlab/ko2bn/internal/metrics"
	"github.com/foxseedlab/ko2bn/internal/repository"
	"github.com/foxseedlab/ko2bn/internal/synthesizer"
	"github.com/foxseedlab/ko2bn/internal/transcriber"
	"github.com/foxseedlab/ko2bn/internal/translator"
	"github.com/foxseedlab/ko2bn/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*hub.Hub, error) {
		return hub.New(), nil
	})
	do.Provide(injector, func(i do.Injector) (*Registry, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repository.Repository](i)
		wh := do.MustInvoke[webhook.Sender](i)
		dc := do.MustInvoke[discord.Client](i)
		pub := do.MustInvoke[events.Publisher](i)
		m := do.MustInvoke[*metrics.Metrics](i)
		return NewRegistry(cfg, repo, wh, dc, pub, m), nil
	})
	do.Provide(injector, func(i do.Injector) (*Pipeline, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewPipeline(PipelineDeps{
			Registry:    do.MustInvoke[*Registry](i),
			Glossary:    do.MustInvoke[repository.Repository](i),
			Hub:         do.MustInvoke[*hub.Hub](i),
			Transcriber: do.MustInvoke[transcriber.Transcriber](i),
			Translator:  do.MustInvoke[translator.Translator](i),
			Synthesizer: do.MustInvoke[synthesizer.Synthesizer](i),
			Opus:        do.MustInvoke[audio.OpusDecoder](i),
			Events:      do.MustInvoke[events.Publisher](i),
			Metrics:     do.MustInvoke[*metrics.Metrics](i),
			CallTimeout: cfg.LanguageCallTimeout(),
		}), nil
	})
}
