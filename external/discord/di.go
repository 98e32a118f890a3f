package discord

import (
	"github.com/foxseedlab/transrelay/internal/config"
	discordpkg "github.com/foxseedlab/transrelay/internal/discord"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (discordpkg.Client, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewClient(cfg.DiscordToken), nil
	})
}
