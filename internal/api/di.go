package api

import (
	"github.com/foxseedlab/transrelay/internal/config"
	"github.com/foxseedlab/transrelay/internal/message"
	"github.com/foxseedlab/transrelay/internal/target"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		targets := do.MustInvoke[*target.Set](i)
		queue := do.MustInvoke[*message.Queue](i)
		return NewServer(cfg.ListenAddr, NewRouter(NewHandler(targets, queue, cfg.MessageMaxLifetime))), nil
	})
}
