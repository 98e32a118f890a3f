package transcriber

import (
	"testing"
	"time"

	"github.com/foxseedlab/transrelay/internal/transcriber"
)

type recordingListener struct {
	results  chan transcriber.Result
	canceled chan transcriber.Cancellation
}

func newRecordingListener() *recordingListener {
	return &recordingListener{
		results:  make(chan transcriber.Result, 16),
		canceled: make(chan transcriber.Cancellation, 4),
	}
}

func (l *recordingListener) OnFinalResult(result transcriber.Result) {
	l.results <- result
}

func (l *recordingListener) OnCanceled(c transcriber.Cancellation) {
	l.canceled <- c
}

func (l *recordingListener) nextResult(t *testing.T) transcriber.Result {
	t.Helper()
	select {
	case r := <-l.results:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for result")
		return transcriber.Result{}
	}
}

func (l *recordingListener) nextCancellation(t *testing.T) transcriber.Cancellation {
	t.Helper()
	select {
	case c := <-l.canceled:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cancellation")
		return transcriber.Cancellation{}
	}
}
