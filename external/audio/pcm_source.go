package audio

import (
	"io"

	"github.com/foxseedlab/transrelay/internal/audio"
)

// PCMSource reads raw s16le PCM as is.
type PCMSource struct {
	r io.ReadCloser
}

func NewPCMSource(r io.ReadCloser) audio.Source {
	return &PCMSource{r: r}
}

func (s *PCMSource) ReadPCM(buf []byte) (int, error) {
	return io.ReadFull(s.r, buf)
}

func (s *PCMSource) Close() error {
	return s.r.Close()
}
