//go:build opus

package audio

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/foxseedlab/transrelay/internal/audio"
	"github.com/hraban/opus"
)

// OggOpusSource decodes an Ogg/Opus stream into 48 kHz PCM.
type OggOpusSource struct {
	stream   *opus.Stream
	closer   io.Closer
	channels int
	pcm      []int16
}

func NewOggOpusSource(r io.ReadCloser, channels int) (audio.Source, error) {
	stream, err := opus.NewStream(r)
	if err != nil {
		return nil, fmt.Errorf("open ogg/opus stream: %w", err)
	}
	return &OggOpusSource{stream: stream, closer: r, channels: channels}, nil
}

func (s *OggOpusSource) ReadPCM(buf []byte) (int, error) {
	samples := len(buf) / 2
	samples -= samples % s.channels
	if cap(s.pcm) < samples {
		s.pcm = make([]int16, samples)
	}
	pcm := s.pcm[:samples]

	n, err := s.stream.Read(pcm)
	if err != nil {
		return 0, err
	}
	total := n * s.channels
	for i := 0; i < total; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(pcm[i]))
	}
	return total * 2, nil
}

func (s *OggOpusSource) Close() error {
	streamErr := s.stream.Close()
	if err := s.closer.Close(); err != nil {
		return err
	}
	return streamErr
}
