package transcriber

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/foxseedlab/transrelay/internal/transcriber"
)

var ErrDictationInputClosed = errors.New("dictation input closed")

const maxDictationLineBytes = 64 * 1024

// DictationEngine turns line-delimited dictation output into recognition
// results. A single reader serves every session for the process lifetime.
type DictationEngine struct {
	input io.ReadCloser

	mu      sync.Mutex
	current *dictationSession
	ended   bool
}

func NewDictationEngine(input io.ReadCloser) *DictationEngine {
	return &DictationEngine{input: input}
}

func (e *DictationEngine) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = e.input.Close()
	}()

	scanner := bufio.NewScanner(e.input)
	scanner.Buffer(make([]byte, 0, 4096), maxDictationLineBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			e.deliver(func(l transcriber.Listener) {
				l.OnFinalResult(transcriber.Result{Reason: transcriber.ResultNoMatch})
			})
			continue
		}
		e.deliver(func(l transcriber.Listener) {
			l.OnFinalResult(transcriber.Result{Reason: transcriber.ResultTranscribed, Text: line})
		})
	}
	err := scanner.Err()

	e.mu.Lock()
	e.ended = true
	if e.current != nil {
		e.current.listener.OnCanceled(transcriber.Cancellation{Reason: transcriber.CancelEndOfStream})
		e.current = nil
	}
	e.mu.Unlock()

	if ctx.Err() != nil {
		slog.Info("dictation reader stopped", "reason", ctx.Err().Error())
		return nil
	}
	if err != nil {
		return fmt.Errorf("read dictation input: %w", err)
	}
	slog.Info("dictation input ended")
	return nil
}

func (e *DictationEngine) Start(_ context.Context, cfg transcriber.SessionConfig, listener transcriber.Listener) (transcriber.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ended {
		return nil, ErrDictationInputClosed
	}
	s := &dictationSession{id: cfg.SessionID, engine: e, listener: listener}
	if e.current != nil {
		slog.Warn("replacing active dictation session", "previous_session_id", e.current.id, "session_id", cfg.SessionID)
	}
	e.current = s
	slog.Info("dictation session started", "session_id", cfg.SessionID, "language", cfg.InputLanguage, "targets", cfg.TargetLanguages)
	return s, nil
}

// deliver invokes fn for the current session. Holding the lock keeps Stop from
// returning while a callback is in flight.
func (e *DictationEngine) deliver(fn func(transcriber.Listener)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return
	}
	fn(e.current.listener)
}

type dictationSession struct {
	id       string
	engine   *DictationEngine
	listener transcriber.Listener
}

func (s *dictationSession) Stop(_ context.Context) error {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	if s.engine.current == s {
		s.engine.current = nil
		slog.Info("dictation session stopped", "session_id", s.id)
	}
	return nil
}
