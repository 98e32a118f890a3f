package translator

import (
	"github.com/foxseedlab/transrelay/internal/config"
	"github.com/foxseedlab/transrelay/internal/translator"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (translator.Translator, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewOpenAITranslator(OpenAIConfig{
			APIKey:  c.OpenAIAPIKey,
			Model:   c.OpenAIModel,
			BaseURL: c.OpenAIBaseURL,
		}), nil
	})
}
