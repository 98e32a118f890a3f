package audio

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/transrelay/external/input"
	"github.com/foxseedlab/transrelay/internal/audio"
	"github.com/foxseedlab/transrelay/internal/config"
	"github.com/samber/do/v2"
)

const frameDuration = 100 * time.Millisecond

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*audio.Capture, error) {
		c := do.MustInvoke[*config.Config](i)
		source, err := NewSource(c)
		if err != nil {
			return nil, err
		}
		slog.Info("audio input opened", "path", c.AudioInputPath, "format", c.AudioFormat, "sample_rate", c.AudioSampleRate, "channels", c.AudioChannels)
		return audio.NewCapture(source, audio.FrameBytes(c.AudioSampleRate, c.AudioChannels, frameDuration)), nil
	})
}

func NewSource(c *config.Config) (audio.Source, error) {
	r, err := input.Open(c.AudioInputPath)
	if err != nil {
		return nil, err
	}
	switch c.AudioFormat {
	case config.AudioFormatPCM:
		return NewPCMSource(r), nil
	case config.AudioFormatOggOpus:
		src, err := NewOggOpusSource(r, c.AudioChannels)
		if err != nil {
			_ = r.Close()
			return nil, err
		}
		return src, nil
	default:
		_ = r.Close()
		return nil, fmt.Errorf("unsupported audio format %q", c.AudioFormat)
	}
}
