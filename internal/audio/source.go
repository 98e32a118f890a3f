package audio

import "errors"

// ErrCaptureClosed is returned when a session asks for audio after the input ended.
var ErrCaptureClosed = errors.New("audio capture closed")

// Source yields interleaved signed 16-bit little-endian PCM.
type Source interface {
	ReadPCM(buf []byte) (int, error)
	Close() error
}
