package session

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/transrelay/internal/config"
	"github.com/foxseedlab/transrelay/internal/message"
	"github.com/foxseedlab/transrelay/internal/repository"
	"github.com/foxseedlab/transrelay/internal/target"
	"github.com/foxseedlab/transrelay/internal/transcriber"
	"github.com/foxseedlab/transrelay/internal/webhook"
)

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type mockEngine struct {
	log       *eventLog
	startErr  error
	startGate chan struct{}
	started   chan transcriber.SessionConfig

	mu        sync.Mutex
	listeners []transcriber.Listener
	sessions  []*mockEngineSession
}

func newMockEngine(log *eventLog) *mockEngine {
	return &mockEngine{log: log, started: make(chan transcriber.SessionConfig, 16)}
}

func (e *mockEngine) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (e *mockEngine) Start(_ context.Context, cfg transcriber.SessionConfig, listener transcriber.Listener) (transcriber.Session, error) {
	e.started <- cfg
	if e.startGate != nil {
		<-e.startGate
	}
	if e.startErr != nil {
		e.log.add("start-failed %v", cfg.TargetLanguages)
		return nil, e.startErr
	}
	e.log.add("start %s %v", cfg.SessionID, cfg.TargetLanguages)
	s := &mockEngineSession{id: cfg.SessionID, log: e.log}
	e.mu.Lock()
	e.listeners = append(e.listeners, listener)
	e.sessions = append(e.sessions, s)
	e.mu.Unlock()
	return s, nil
}

func (e *mockEngine) lastListener(t *testing.T) transcriber.Listener {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.listeners) == 0 {
		t.Fatal("expected an engine session to be started")
	}
	return e.listeners[len(e.listeners)-1]
}

type mockEngineSession struct {
	id    string
	log   *eventLog
	mu    sync.Mutex
	stops int
}

func (s *mockEngineSession) Stop(context.Context) error {
	s.mu.Lock()
	s.stops++
	s.mu.Unlock()
	s.log.add("stop %s", s.id)
	return nil
}

type mockRepository struct {
	mu        sync.Mutex
	created   int
	createErr error
	inserted  []repository.InsertMessageInput
	completed []repository.CompleteSessionInput
}

func (r *mockRepository) CreateSession(_ context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.created++
	return &repository.Session{
		ID:              fmt.Sprintf("session-%d", r.created),
		InputLanguage:   input.InputLanguage,
		TargetLanguages: input.TargetLanguages,
		StartedAt:       input.StartedAt,
		Status:          repository.SessionStatusRunning,
	}, nil
}

func (r *mockRepository) UpdateSessionCompleted(_ context.Context, input repository.CompleteSessionInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, input)
	return nil
}

func (r *mockRepository) InsertMessage(_ context.Context, input repository.InsertMessageInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserted = append(r.inserted, input)
	return nil
}

func (r *mockRepository) ListMessagesBySessionID(_ context.Context, sessionID string) ([]repository.ArchivedMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repository.ArchivedMessage
	for _, m := range r.inserted {
		if m.SessionID != sessionID {
			continue
		}
		out = append(out, repository.ArchivedMessage{
			SessionID:    m.SessionID,
			Kind:         m.Kind,
			Content:      m.Content,
			MessageIndex: m.MessageIndex,
			CreatedAt:    m.CreatedAt,
		})
	}
	return out, nil
}

type mockWebhookSender struct {
	mu       sync.Mutex
	payloads []webhook.TranscriptWebhookPayload
}

func (m *mockWebhookSender) SendTranscript(_ context.Context, payload webhook.TranscriptWebhookPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads = append(m.payloads, payload)
	return nil
}

type mockDiscordClient struct {
	enabled bool
	mu      sync.Mutex
	sent    []string
}

func (m *mockDiscordClient) Connect(context.Context) error { return nil }
func (m *mockDiscordClient) Close() error                  { return nil }
func (m *mockDiscordClient) Enabled() bool                 { return m.enabled }
func (m *mockDiscordClient) SendChannelMessage(channelID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, channelID+"|"+content)
	return nil
}

type controllerFixture struct {
	controller *Controller
	queue      *message.Queue
	engine     *mockEngine
	repo       *mockRepository
	webhook    *mockWebhookSender
	discord    *mockDiscordClient
	log        *eventLog
}

func newFixture() *controllerFixture {
	log := &eventLog{}
	f := &controllerFixture{
		queue:   message.NewQueue(),
		engine:  newMockEngine(log),
		repo:    &mockRepository{},
		webhook: &mockWebhookSender{},
		discord: &mockDiscordClient{},
		log:     log,
	}
	cfg := &config.Config{
		InputLanguage:      "en-US",
		MessageMaxLifetime: 5 * time.Minute,
		TranscriptTimezone: "UTC",
	}
	f.controller = NewController(cfg, f.queue, f.engine, f.repo, f.webhook, f.discord)
	return f
}

func (f *controllerFixture) drain() string {
	return message.Render(f.queue.DrainFresh(time.Hour))
}

func TestRestart_StopsBeforeStart(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.controller.Restart(ctx, []string{"fr"})
	f.controller.Restart(ctx, []string{"fr", "de"})

	want := []string{"start session-1 [fr]", "stop session-1", "start session-2 [fr de]"}
	if got := f.log.snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if f.controller.State() != StateRunning {
		t.Fatalf("expected Running, got %s", f.controller.State())
	}
}

func TestStop_Idempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.controller.Stop(ctx)
	f.controller.Restart(ctx, nil)
	f.controller.Stop(ctx)
	f.controller.Stop(ctx)

	if f.engine.sessions[0].stops != 1 {
		t.Fatalf("expected exactly one engine stop, got %d", f.engine.sessions[0].stops)
	}
	if f.controller.State() != StateStopped {
		t.Fatalf("expected Stopped, got %s", f.controller.State())
	}
}

func TestStart_IgnoredWhileRunning(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.controller.Start(ctx, []string{"fr"})
	f.controller.Start(ctx, []string{"de"})

	if got := f.log.snapshot(); len(got) != 1 {
		t.Fatalf("expected a single start, got %v", got)
	}
}

func TestOnFinalResult_Translated(t *testing.T) {
	f := newFixture()
	f.controller.Restart(context.Background(), []string{"fr", "de"})

	f.engine.lastListener(t).OnFinalResult(transcriber.Result{
		Reason: transcriber.ResultTranslated,
		Text:   "hello",
		Translations: []transcriber.Translation{
			{Language: "fr", Text: "bonjour"},
			{Language: "de", Text: "hallo"},
		},
	})

	want := "Recognized: hello\nTranslated: bonjour\nTranslated: hallo\n"
	if got := f.drain(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestOnFinalResult_RecognizedWithoutTranslation(t *testing.T) {
	tests := []struct {
		name    string
		reason  transcriber.ResultReason
		targets []string
		want    string
	}{
		{name: "recognized with targets", reason: transcriber.ResultRecognized, targets: []string{"fr"}, want: "Recognized: hello\nSystem: Speech could not be translated.\n"},
		{name: "recognized without targets", reason: transcriber.ResultRecognized, targets: nil, want: "Recognized: hello\nSystem: Speech could not be translated.\n"},
		{name: "transcribed with targets", reason: transcriber.ResultTranscribed, targets: []string{"fr"}, want: "Recognized: hello\n"},
		{name: "transcribed without targets", reason: transcriber.ResultTranscribed, targets: nil, want: "Recognized: hello\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.controller.Restart(context.Background(), tt.targets)
			f.engine.lastListener(t).OnFinalResult(transcriber.Result{Reason: tt.reason, Text: "hello"})
			if got := f.drain(); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestOnFinalResult_NoMatchAndBlankText(t *testing.T) {
	f := newFixture()
	f.controller.Restart(context.Background(), []string{"fr"})
	listener := f.engine.lastListener(t)

	listener.OnFinalResult(transcriber.Result{Reason: transcriber.ResultNoMatch})
	listener.OnFinalResult(transcriber.Result{
		Reason:       transcriber.ResultTranslated,
		Text:         "  ",
		Translations: []transcriber.Translation{{Language: "fr", Text: "bonjour"}},
	})

	want := "System: Speech could not be recognized.\nTranslated: bonjour\n"
	if got := f.drain(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestOnCanceled_ErrorEmitsDetailsAndStops(t *testing.T) {
	f := newFixture()
	f.controller.Restart(context.Background(), []string{"fr"})

	f.engine.lastListener(t).OnCanceled(transcriber.Cancellation{
		Reason:       transcriber.CancelError,
		ErrorCode:    "PermissionDenied",
		ErrorDetails: "invalid credentials",
	})

	want := strings.Join([]string{
		"System: CANCELED: Reason=Error",
		"System: CANCELED: ErrorCode=PermissionDenied",
		"System: CANCELED: ErrorDetails=invalid credentials",
		"System: CANCELED: Did you update the credentials?",
	}, "\n") + "\n"
	if got := f.drain(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if f.controller.State() != StateStopped {
		t.Fatalf("expected Stopped after cancellation, got %s", f.controller.State())
	}

	f.controller.Restart(context.Background(), []string{"fr"})
	if f.engine.sessions[0].stops != 1 {
		t.Fatal("expected the canceled session to be reaped by the next restart")
	}
	f.controller.finalizers.Wait()
	if got := f.webhook.payloads[0].StopReason; got != stopReasonCanceled {
		t.Fatalf("expected stop reason %q, got %q", stopReasonCanceled, got)
	}
}

func TestOnCanceled_EndOfStream(t *testing.T) {
	f := newFixture()
	f.controller.Restart(context.Background(), nil)
	f.engine.lastListener(t).OnCanceled(transcriber.Cancellation{Reason: transcriber.CancelEndOfStream})

	if got := f.drain(); got != "System: CANCELED: Reason=EndOfStream\n" {
		t.Fatalf("unexpected messages: %q", got)
	}
}

func TestStart_EngineFailureBecomesSystemMessages(t *testing.T) {
	f := newFixture()
	f.engine.startErr = errors.New("detect credentials: missing key")

	f.controller.Restart(context.Background(), []string{"fr"})

	got := f.drain()
	if !strings.HasPrefix(got, "System: CANCELED: Reason=Error\nSystem: CANCELED: ErrorCode=StartFailed\n") {
		t.Fatalf("unexpected messages: %q", got)
	}
	if !strings.Contains(got, "System: CANCELED: ErrorDetails=detect credentials: missing key\n") {
		t.Fatalf("expected error details, got %q", got)
	}
	if f.controller.State() != StateStopped {
		t.Fatalf("expected Stopped, got %s", f.controller.State())
	}
	f.controller.finalizers.Wait()
	if len(f.webhook.payloads) != 1 || f.webhook.payloads[0].StopReason != stopReasonStartFailed {
		t.Fatalf("unexpected webhook payloads: %+v", f.webhook.payloads)
	}
}

func TestStart_ArchiveFailureStillRelays(t *testing.T) {
	f := newFixture()
	f.repo.createErr = errors.New("database unavailable")

	f.controller.Restart(context.Background(), nil)
	f.engine.lastListener(t).OnFinalResult(transcriber.Result{Reason: transcriber.ResultTranscribed, Text: "hello"})

	if got := f.drain(); got != "Recognized: hello\n" {
		t.Fatalf("unexpected messages: %q", got)
	}
	if len(f.repo.inserted) != 0 {
		t.Fatalf("expected no archive inserts, got %d", len(f.repo.inserted))
	}
	f.controller.Stop(context.Background())
	f.controller.finalizers.Wait()
	if len(f.webhook.payloads) != 1 || f.webhook.payloads[0].MessageCount != 1 {
		t.Fatalf("expected transcript from local copy, got %+v", f.webhook.payloads)
	}
}

func TestArchiveAndWebhookTranscript(t *testing.T) {
	f := newFixture()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now := base
	f.controller.now = func() time.Time { return now }

	f.controller.Restart(context.Background(), []string{"fr"})
	f.engine.lastListener(t).OnFinalResult(transcriber.Result{
		Reason:       transcriber.ResultTranslated,
		Text:         "hello",
		Translations: []transcriber.Translation{{Language: "fr", Text: "bonjour"}},
	})
	f.engine.lastListener(t).OnFinalResult(transcriber.Result{Reason: transcriber.ResultNoMatch})
	now = base.Add(90 * time.Second)
	f.controller.Stop(context.Background())
	f.controller.finalizers.Wait()

	if len(f.repo.inserted) != 3 {
		t.Fatalf("expected three archived messages, got %d", len(f.repo.inserted))
	}
	for i, m := range f.repo.inserted {
		if m.MessageIndex != i || m.SessionID != "session-1" {
			t.Fatalf("unexpected archived message %d: %+v", i, m)
		}
	}
	if len(f.repo.completed) != 1 || f.repo.completed[0].StopReason != stopReasonManual {
		t.Fatalf("unexpected completion: %+v", f.repo.completed)
	}

	p := f.webhook.payloads[0]
	if p.SessionID != "session-1" || p.DurationSeconds != 90 || p.MessageCount != 3 {
		t.Fatalf("unexpected payload: %+v", p)
	}
	if p.Messages[1].Kind != "Translated" || p.Messages[1].Text != "bonjour" {
		t.Fatalf("unexpected second message: %+v", p.Messages[1])
	}
	if !reflect.DeepEqual(p.TargetLanguages, []string{"fr"}) {
		t.Fatalf("unexpected targets: %v", p.TargetLanguages)
	}
}

func TestMirror_OnlyRecognizedAndTranslated(t *testing.T) {
	f := newFixture()
	f.discord.enabled = true
	f.controller.cfg.DiscordMirrorChannelID = "chan-1"

	f.controller.Restart(context.Background(), []string{"fr"})
	listener := f.engine.lastListener(t)
	listener.OnFinalResult(transcriber.Result{
		Reason:       transcriber.ResultTranslated,
		Text:         "hello",
		Translations: []transcriber.Translation{{Language: "fr", Text: "bonjour"}},
	})
	listener.OnFinalResult(transcriber.Result{Reason: transcriber.ResultNoMatch})

	want := []string{"chan-1|Recognized: hello", "chan-1|Translated: bonjour"}
	if !reflect.DeepEqual(f.discord.sent, want) {
		t.Fatalf("expected %v, got %v", want, f.discord.sent)
	}
}

func TestRun_AppliesEveryRequestInOrder(t *testing.T) {
	f := newFixture()
	f.engine.startGate = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.controller.Run(ctx) }()

	f.controller.RequestRestart([]string{"a"})
	waitStarted(t, f.engine.started)

	f.controller.RequestRestart([]string{"b"})
	f.controller.RequestRestart([]string{"c"})
	close(f.engine.startGate)

	for _, want := range []string{"b", "c"} {
		cfg := waitStarted(t, f.engine.started)
		if !reflect.DeepEqual(cfg.TargetLanguages, []string{want}) {
			t.Fatalf("expected targets [%s], got %v", want, cfg.TargetLanguages)
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	want := []string{
		"start session-1 [a]", "stop session-1",
		"start session-2 [b]", "stop session-2",
		"start session-3 [c]", "stop session-3",
	}
	if got := f.log.snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if f.controller.State() != StateStopped {
		t.Fatalf("expected Stopped after shutdown, got %s", f.controller.State())
	}
}

func TestRun_OneRestartPerMembershipChange(t *testing.T) {
	f := newFixture()
	f.engine.startGate = make(chan struct{})
	targets := target.NewSet(f.controller)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.controller.Run(ctx) }()

	targets.SetSingle("fr")
	waitStarted(t, f.engine.started)
	targets.Add("de")
	targets.Remove("de")
	targets.Remove("de")
	close(f.engine.startGate)

	waitStarted(t, f.engine.started)
	waitStarted(t, f.engine.started)
	select {
	case cfg := <-f.engine.started:
		t.Fatalf("unexpected extra start: %+v", cfg)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	want := []string{
		"start session-1 [fr]", "stop session-1",
		"start session-2 [de fr]", "stop session-2",
		"start session-3 [fr]", "stop session-3",
	}
	if got := f.log.snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func waitStarted(t *testing.T, started <-chan transcriber.SessionConfig) transcriber.SessionConfig {
	t.Helper()
	select {
	case cfg := <-started:
		return cfg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for engine start")
		return transcriber.SessionConfig{}
	}
}
