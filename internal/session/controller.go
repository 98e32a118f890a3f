package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foxseedlab/transrelay/internal/config"
	"github.com/foxseedlab/transrelay/internal/discord"
	"github.com/foxseedlab/transrelay/internal/message"
	"github.com/foxseedlab/transrelay/internal/repository"
	"github.com/foxseedlab/transrelay/internal/transcriber"
	"github.com/foxseedlab/transrelay/internal/webhook"
	"github.com/google/uuid"
)

const (
	stopTimeout     = 10 * time.Second
	archiveTimeout  = 5 * time.Second
	finalizeTimeout = 30 * time.Second
)

type State int

const (
	StateStopped State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "Running"
	}
	return "Stopped"
}

// Controller owns the single engine session. Reconfiguration requests are
// applied by Run as stop followed by start, one at a time.
type Controller struct {
	cfg     *config.Config
	queue   *message.Queue
	engine  transcriber.Engine
	repo    repository.Repository
	webhook webhook.Sender
	discord discord.Client
	loc     *time.Location
	now     func() time.Time

	mu      sync.Mutex
	current *activeSession
	pending [][]string
	wake    chan struct{}

	opMu       sync.Mutex
	finalizers sync.WaitGroup
}

type activeSession struct {
	record   *repository.Session
	engine   transcriber.Session
	listener *sessionListener
}

func NewController(cfg *config.Config, queue *message.Queue, engine transcriber.Engine, repo repository.Repository, wh webhook.Sender, dc discord.Client) *Controller {
	loc, err := time.LoadLocation(cfg.TranscriptTimezone)
	if err != nil {
		slog.Warn("invalid transcript timezone; using UTC", "timezone", cfg.TranscriptTimezone, "error", err)
		loc = time.UTC
	}
	return &Controller{
		cfg:     cfg,
		queue:   queue,
		engine:  engine,
		repo:    repo,
		webhook: wh,
		discord: dc,
		loc:     loc,
		now:     time.Now,
		wake:    make(chan struct{}, 1),
	}
}

// RequestRestart queues targets for Run and returns without waiting. Every
// request is applied as its own restart, in the order it was made.
func (c *Controller) RequestRestart(targets []string) {
	c.mu.Lock()
	c.pending = append(c.pending, append([]string{}, targets...))
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Controller) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
			c.stopWithReason(shutdownCtx, stopReasonShutdown)
			cancel()
			c.waitFinalizers(stopTimeout)
			slog.Info("session controller stopped")
			return nil
		case <-c.wake:
			for ctx.Err() == nil {
				targets, ok := c.takePending()
				if !ok {
					break
				}
				c.Restart(ctx, targets)
			}
		}
	}
}

func (c *Controller) waitFinalizers(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		c.finalizers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		slog.Warn("gave up waiting for session finalization", "timeout", timeout)
	}
}

func (c *Controller) takePending() ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return nil, false
	}
	targets := c.pending[0]
	c.pending = c.pending[1:]
	return targets, true
}

// Restart stops the active session, if any, and starts a new one.
func (c *Controller) Restart(ctx context.Context, targets []string) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.stop(ctx, stopReasonRestart)
	if ctx.Err() != nil {
		return
	}
	c.start(ctx, targets)
}

// Start opens a session unless one is already running.
func (c *Controller) Start(ctx context.Context, targets []string) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if c.State() == StateRunning {
		slog.Warn("start requested while running; ignoring", "targets", targets)
		return
	}
	c.stop(ctx, stopReasonRestart)
	c.start(ctx, targets)
}

// Stop ends the active session. It is a no-op when nothing is running.
func (c *Controller) Stop(ctx context.Context) {
	c.stopWithReason(ctx, stopReasonManual)
}

func (c *Controller) stopWithReason(ctx context.Context, reason string) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.stop(ctx, reason)
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.current.listener.canceled.Load() {
		return StateStopped
	}
	return StateRunning
}

func (c *Controller) start(ctx context.Context, targets []string) {
	targets = append([]string{}, targets...)
	slog.Info("starting continuous translation", "input_language", c.cfg.InputLanguage, "targets", targets)

	startedAt := c.now()
	archived := true
	record, err := c.repo.CreateSession(ctx, repository.CreateSessionInput{
		InputLanguage:   c.cfg.InputLanguage,
		TargetLanguages: targets,
		StartedAt:       startedAt,
	})
	if err != nil || record == nil {
		slog.Error("failed to create session in repository; continuing without archive", "error", err)
		archived = false
		record = &repository.Session{
			ID:              uuid.NewString(),
			InputLanguage:   c.cfg.InputLanguage,
			TargetLanguages: targets,
			StartedAt:       startedAt,
			Status:          repository.SessionStatusRunning,
		}
	}

	listener := &sessionListener{
		controller: c,
		sessionID:  record.ID,
		language:   c.cfg.InputLanguage,
		archived:   archived,
	}
	sess, err := c.engine.Start(ctx, transcriber.SessionConfig{
		SessionID:       record.ID,
		InputLanguage:   c.cfg.InputLanguage,
		TargetLanguages: targets,
	}, listener)
	if err != nil {
		slog.Error("failed to start engine session", "error", err, "session_id", record.ID)
		listener.OnCanceled(transcriber.Cancellation{
			Reason:       transcriber.CancelError,
			ErrorCode:    errorCodeStartFailed,
			ErrorDetails: err.Error(),
		})
		c.finalizeAsync(record, listener, stopReasonStartFailed)
		return
	}

	c.mu.Lock()
	c.current = &activeSession{record: record, engine: sess, listener: listener}
	c.mu.Unlock()
	slog.Info("session activated", "session_id", record.ID, "targets", targets)
}

func (c *Controller) stop(ctx context.Context, reason string) {
	c.mu.Lock()
	active := c.current
	c.current = nil
	c.mu.Unlock()
	if active == nil {
		return
	}

	if active.listener.canceled.Load() {
		reason = stopReasonCanceled
	}
	slog.Info("stopping continuous translation", "session_id", active.record.ID, "reason", reason)
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()
	if err := active.engine.Stop(stopCtx); err != nil {
		slog.Warn("engine session did not stop cleanly", "error", err, "session_id", active.record.ID)
	}
	c.finalizeAsync(active.record, active.listener, reason)
}

func (c *Controller) finalizeAsync(record *repository.Session, listener *sessionListener, reason string) {
	c.finalizers.Add(1)
	go func() {
		defer c.finalizers.Done()
		c.finalizeSession(record, listener, reason)
	}()
}

func (c *Controller) finalizeSession(record *repository.Session, listener *sessionListener, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()
	endedAt := c.now()

	local := listener.snapshot()
	messages := local
	if listener.archived {
		if err := c.repo.UpdateSessionCompleted(ctx, repository.CompleteSessionInput{
			SessionID:  record.ID,
			EndedAt:    endedAt,
			StopReason: reason,
		}); err != nil {
			slog.Error("failed to complete session", "error", err, "session_id", record.ID)
		}
		stored, err := c.repo.ListMessagesBySessionID(ctx, record.ID)
		switch {
		case err != nil:
			slog.Error("failed to list archived messages", "error", err, "session_id", record.ID)
		case len(stored) >= len(local):
			messages = stored
		}
	}

	payload := buildTranscriptWebhookPayload(record, messages, endedAt, reason, c.cfg.TranscriptTimezone, c.loc)
	if err := c.webhook.SendTranscript(ctx, payload); err != nil {
		slog.Error("failed to send webhook transcript", "error", err, "session_id", record.ID)
		return
	}
	slog.Info("session finalized", "session_id", record.ID, "reason", reason, "messages", len(messages))
}

func (c *Controller) mirror(sessionID string, msg message.Message) {
	if c.cfg.DiscordMirrorChannelID == "" || !c.discord.Enabled() {
		return
	}
	if err := c.discord.SendChannelMessage(c.cfg.DiscordMirrorChannelID, msg.String()); err != nil {
		slog.Error("failed to mirror message to discord", "error", err, "session_id", sessionID)
	}
}

type sessionListener struct {
	controller *Controller
	sessionID  string
	language   string
	archived   bool
	canceled   atomic.Bool

	mu         sync.Mutex
	nextIndex  int
	transcript []repository.ArchivedMessage
}

func (l *sessionListener) OnFinalResult(result transcriber.Result) {
	switch result.Reason {
	case transcriber.ResultTranslated:
		slog.Info("speech translated", "session_id", l.sessionID, "language", l.language, "text", result.Text, "translations", len(result.Translations))
		l.emit(message.KindRecognized, result.Text)
		for _, tr := range result.Translations {
			l.emit(message.KindTranslated, tr.Text)
		}
	case transcriber.ResultRecognized:
		slog.Info("speech recognized", "session_id", l.sessionID, "language", l.language, "text", result.Text)
		l.emit(message.KindRecognized, result.Text)
		l.emit(message.KindSystem, messageTranslationUnavailable)
	case transcriber.ResultTranscribed:
		l.emit(message.KindRecognized, result.Text)
	case transcriber.ResultNoMatch:
		l.emit(message.KindSystem, messageNoMatch)
	default:
		slog.Warn("unknown result reason", "session_id", l.sessionID, "reason", result.Reason.String())
	}
}

func (l *sessionListener) OnCanceled(c transcriber.Cancellation) {
	slog.Warn("engine session canceled", "session_id", l.sessionID, "reason", c.Reason.String(), "error_code", c.ErrorCode, "error_details", c.ErrorDetails)
	for _, line := range cancellationMessages(c) {
		l.emit(message.KindSystem, line)
	}
	l.canceled.Store(true)
}

func (l *sessionListener) emit(kind message.Kind, text string) {
	c := l.controller
	msg, ok := c.queue.Enqueue(kind, text)
	if !ok {
		return
	}

	l.mu.Lock()
	idx := l.nextIndex
	l.nextIndex++
	l.transcript = append(l.transcript, repository.ArchivedMessage{
		SessionID:    l.sessionID,
		Kind:         kind.String(),
		Content:      msg.Text,
		MessageIndex: idx,
		CreatedAt:    msg.CreatedAt,
	})
	l.mu.Unlock()

	if l.archived {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		err := c.repo.InsertMessage(ctx, repository.InsertMessageInput{
			SessionID:    l.sessionID,
			Kind:         kind.String(),
			Content:      msg.Text,
			MessageIndex: idx,
			CreatedAt:    msg.CreatedAt,
		})
		cancel()
		if err != nil {
			slog.Error("failed to archive message", "error", err, "session_id", l.sessionID, "index", idx)
		}
	}
	if kind != message.KindSystem {
		c.mirror(l.sessionID, msg)
	}
}

func (l *sessionListener) snapshot() []repository.ArchivedMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]repository.ArchivedMessage(nil), l.transcript...)
}
