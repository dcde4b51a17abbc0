package server

import (
	"github.com/foxseedlab/ko2bn/internal/config"
	"github.com/foxseedlab/ko2bn/internal/hub"
	"github.com/foxseedlab/ko2bn/internal/metrics"
	"github.com/foxseedlab/ko2bn/internal/session"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		registry := do.MustInvoke[*session.Registry](i)
		pipeline := do.MustInvoke[*session.Pipeline](i)
		h := do.MustInvoke[*hub.Hub](i)
		m := do.MustInvoke[*metrics.Metrics](i)
		return NewServer(cfg, registry, pipeline, h, m), nil
	})
}
