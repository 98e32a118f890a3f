package transcriber

import (
	"fmt"

	"github.com/foxseedlab/transrelay/external/input"
	"github.com/foxseedlab/transrelay/internal/audio"
	"github.com/foxseedlab/transrelay/internal/config"
	"github.com/foxseedlab/transrelay/internal/transcriber"
	"github.com/foxseedlab/transrelay/internal/translator"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (transcriber.Engine, error) {
		c := do.MustInvoke[*config.Config](i)
		switch c.Engine {
		case config.EngineDictation:
			r, err := input.Open(c.DictationInputPath)
			if err != nil {
				return nil, err
			}
			return NewDictationEngine(r), nil
		case config.EngineCloud:
			return NewCloudSpeechEngine(CloudSpeechConfig{
				ProjectID:       c.GoogleCloudProjectID,
				CredentialsJSON: c.GoogleCloudCredentialsJSON,
				Location:        c.GoogleCloudSpeechLocation,
				Model:           c.GoogleCloudSpeechModel,
				SampleRateHertz: c.AudioSampleRate,
				Channels:        c.AudioChannels,
			}, do.MustInvoke[*audio.Capture](i), do.MustInvoke[translator.Translator](i)), nil
		default:
			return nil, fmt.Errorf("unsupported engine %q", c.Engine)
		}
	})
}
