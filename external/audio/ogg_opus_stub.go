//go:build !opus

package audio

import (
	"errors"
	"io"

	"github.com/foxseedlab/transrelay/internal/audio"
)

func NewOggOpusSource(_ io.ReadCloser, _ int) (audio.Source, error) {
	return nil, errors.New("ogg-opus input requires a build with -tags opus")
}
