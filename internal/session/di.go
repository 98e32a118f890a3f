package session

import (
	"github.com/foxseedlab/transrelay/internal/config"
	"github.com/foxseedlab/transrelay/internal/discord"
	"github.com/foxseedlab/transrelay/internal/message"
	"github.com/foxseedlab/transrelay/internal/repository"
	"github.com/foxseedlab/transrelay/internal/target"
	"github.com/foxseedlab/transrelay/internal/transcriber"
	"github.com/foxseedlab/transrelay/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*message.Queue, error) {
		return message.NewQueue(), nil
	})
	do.Provide(injector, func(i do.Injector) (*Controller, error) {
		cfg := do.MustInvoke[*config.Config](i)
		queue := do.MustInvoke[*message.Queue](i)
		engine := do.MustInvoke[transcriber.Engine](i)
		repo := do.MustInvoke[repository.Repository](i)
		wh := do.MustInvoke[webhook.Sender](i)
		dc := do.MustInvoke[discord.Client](i)
		return NewController(cfg, queue, engine, repo, wh, dc), nil
	})
	do.Provide(injector, func(i do.Injector) (*target.Set, error) {
		cfg := do.MustInvoke[*config.Config](i)
		controller := do.MustInvoke[*Controller](i)
		return target.NewSet(controller, cfg.TargetLanguages...), nil
	})
}
