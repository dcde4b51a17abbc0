package events

import (
	"github.com/foxseedlab/ko2bn/internal/config"
	"github.com/foxseedlab/ko2bn/internal/events"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (events.Publisher, error) {
		c := do.MustInvoke[*config.Config](i)
		if c.NatsURL == "" {
			return events.Noop{}, nil
		}
		return NewNATSPublisher(c.NatsURL)
	})
}
