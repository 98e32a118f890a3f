package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv2"
	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/foxseedlab/transrelay/internal/audio"
	"github.com/foxseedlab/transrelay/internal/transcriber"
	"github.com/foxseedlab/transrelay/internal/translator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	speechAPIEndpointPort = 443
	eventBufferSize       = 64
)

type CloudSpeechConfig struct {
	ProjectID       string
	CredentialsJSON string
	Location        string
	Model           string
	SampleRateHertz int
	Channels        int
}

type recognizeStream interface {
	Send(*speechpb.StreamingRecognizeRequest) error
	Recv() (*speechpb.StreamingRecognizeResponse, error)
	CloseSend() error
}

type streamOpener interface {
	Open(ctx context.Context) (recognizeStream, error)
	Close() error
}

type CloudSpeechEngine struct {
	projectID       string
	credentialsJSON string
	location        string
	model           string
	sampleRateHertz int
	channels        int
	capture         *audio.Capture
	translator      translator.Translator
	dial            func(ctx context.Context) (streamOpener, error)
}

func NewCloudSpeechEngine(cfg CloudSpeechConfig, capture *audio.Capture, tr translator.Translator) *CloudSpeechEngine {
	e := &CloudSpeechEngine{
		projectID:       cfg.ProjectID,
		credentialsJSON: cfg.CredentialsJSON,
		location:        strings.TrimSpace(cfg.Location),
		model:           strings.TrimSpace(cfg.Model),
		sampleRateHertz: cfg.SampleRateHertz,
		channels:        cfg.Channels,
		capture:         capture,
		translator:      tr,
	}
	e.dial = e.dialSpeech
	return e
}

func (e *CloudSpeechEngine) Run(ctx context.Context) error {
	return e.capture.Run(ctx)
}

func (e *CloudSpeechEngine) Start(ctx context.Context, cfg transcriber.SessionConfig, listener transcriber.Listener) (transcriber.Session, error) {
	select {
	case <-e.capture.Done():
		return nil, audio.ErrCaptureClosed
	default:
	}
	slog.Info("starting cloud speech streaming", "session_id", cfg.SessionID, "location", e.location, "language", cfg.InputLanguage, "targets", cfg.TargetLanguages, "model", e.model)

	opener, err := e.dial(ctx)
	if err != nil {
		return nil, err
	}
	sessCtx, cancel := context.WithCancel(context.Background())
	s := &cloudSession{
		id:         cfg.SessionID,
		language:   cfg.InputLanguage,
		targets:    append([]string(nil), cfg.TargetLanguages...),
		listener:   listener,
		translator: e.translator,
		capture:    e.capture,
		opener:     opener,
		ctx:        sessCtx,
		cancel:     cancel,
		events:     make(chan streamEvent, eventBufferSize),
		stopping:   make(chan struct{}),
		terminated: make(chan struct{}),
		senderDone: make(chan struct{}),
		workerDone: make(chan struct{}),
	}
	s.openStream = func(ctx context.Context) (recognizeStream, error) {
		return e.openConfiguredStream(ctx, opener, cfg.InputLanguage)
	}

	stream, err := s.openStream(sessCtx)
	if err != nil {
		cancel()
		_ = opener.Close()
		return nil, fmt.Errorf("open recognize stream: %w", err)
	}
	s.stream = stream
	frames, unsubscribe := e.capture.Subscribe()

	s.startReceiver(stream)
	go s.runWorker()
	go s.runSender(frames, unsubscribe)
	slog.Info("cloud speech stream initialized", "session_id", cfg.SessionID)
	return s, nil
}

func (e *CloudSpeechEngine) dialSpeech(ctx context.Context) (streamOpener, error) {
	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(e.credentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %w", err)
	}

	opts := []option.ClientOption{
		option.WithAuthCredentials(creds),
	}
	if e.location != "global" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-speech.googleapis.com:%d", e.location, speechAPIEndpointPort)))
	}
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	return &clientOpener{client: client}, nil
}

func (e *CloudSpeechEngine) openConfiguredStream(ctx context.Context, opener streamOpener, language string) (recognizeStream, error) {
	stream, err := opener.Open(ctx)
	if err != nil {
		return nil, err
	}
	recognizer := fmt.Sprintf("projects/%s/locations/%s/recognizers/_", e.projectID, e.location)
	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		Recognizer: recognizer,
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Model:         e.model,
					LanguageCodes: []string{language},
					DecodingConfig: &speechpb.RecognitionConfig_ExplicitDecodingConfig{
						ExplicitDecodingConfig: &speechpb.ExplicitDecodingConfig{
							Encoding:          speechpb.ExplicitDecodingConfig_LINEAR16,
							SampleRateHertz:   int32(e.sampleRateHertz),
							AudioChannelCount: int32(e.channels),
						},
					},
					Features: &speechpb.RecognitionFeatures{EnableAutomaticPunctuation: true},
				},
			},
		},
	})
	if err != nil {
		_ = stream.CloseSend()
		return nil, fmt.Errorf("send streaming config: %w", err)
	}
	return stream, nil
}

type clientOpener struct {
	client *speech.Client
}

func (o *clientOpener) Open(ctx context.Context) (recognizeStream, error) {
	return o.client.StreamingRecognize(ctx)
}

func (o *clientOpener) Close() error {
	return o.client.Close()
}

// streamEvent is either a final transcript or a terminal cancellation.
type streamEvent struct {
	final  string
	cancel *transcriber.Cancellation
}

type cloudSession struct {
	id         string
	language   string
	targets    []string
	listener   transcriber.Listener
	translator translator.Translator
	capture    *audio.Capture
	opener     streamOpener
	openStream func(ctx context.Context) (recognizeStream, error)

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	stream     recognizeStream
	receivers  sync.WaitGroup
	inputEnded atomic.Bool

	events         chan streamEvent
	stopping       chan struct{}
	terminated     chan struct{}
	terminateOnce  sync.Once
	senderDone     chan struct{}
	workerDone     chan struct{}
	stopOnce       sync.Once
	closeEventOnce sync.Once
}

func (s *cloudSession) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		close(s.stopping)
		<-s.senderDone

		s.mu.Lock()
		if !s.inputEnded.Load() {
			_ = s.stream.CloseSend()
		}
		s.mu.Unlock()

		received := make(chan struct{})
		go func() {
			s.receivers.Wait()
			close(received)
		}()
		select {
		case <-received:
		case <-ctx.Done():
			slog.Warn("cloud speech stream did not drain before stop deadline", "session_id", s.id)
			s.cancel()
			<-received
		}

		close(s.events)
		<-s.workerDone
		s.cancel()
		if err := s.opener.Close(); err != nil {
			slog.Warn("failed to close speech client", "session_id", s.id, "error", err)
		}
		slog.Info("cloud speech session stopped", "session_id", s.id)
	})
	return nil
}

func (s *cloudSession) runSender(frames <-chan []byte, unsubscribe func()) {
	defer close(s.senderDone)
	defer unsubscribe()
	for {
		select {
		case <-s.stopping:
			return
		case <-s.terminated:
			return
		case <-s.capture.Done():
			s.flush(frames)
			s.mu.Lock()
			s.inputEnded.Store(true)
			_ = s.stream.CloseSend()
			s.mu.Unlock()
			slog.Info("audio input ended; closing recognize stream", "session_id", s.id)
			return
		case frame := <-frames:
			if err := s.send(frame); err != nil {
				s.terminate(cancellationFromError(err))
				return
			}
		}
	}
}

func (s *cloudSession) flush(frames <-chan []byte) {
	for {
		select {
		case frame := <-frames:
			if err := s.send(frame); err != nil {
				slog.Warn("failed to flush audio frame", "session_id", s.id, "error", err)
				return
			}
		default:
			return
		}
	}
}

func (s *cloudSession) send(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req := &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_Audio{
			Audio: pcm,
		},
	}
	if err := s.stream.Send(req); err != nil {
		if !isReconnectableStreamError(err) {
			return err
		}
		slog.Warn("transcriber send failed with reconnectable error; reconnecting", "session_id", s.id, "error", err)
		if err := s.reconnectLocked(); err != nil {
			return fmt.Errorf("reconnect stream: %w", err)
		}
		return s.stream.Send(req)
	}
	return nil
}

func (s *cloudSession) reconnectLocked() error {
	_ = s.stream.CloseSend()
	next, err := s.openStream(s.ctx)
	if err != nil {
		slog.Error("failed to reconnect transcriber stream", "session_id", s.id, "error", err)
		return err
	}
	s.stream = next
	s.startReceiver(next)
	slog.Info("transcriber stream reconnected", "session_id", s.id)
	return nil
}

func (s *cloudSession) startReceiver(stream recognizeStream) {
	s.receivers.Add(1)
	go func() {
		defer s.receivers.Done()
		for {
			resp, err := stream.Recv()
			if err != nil {
				s.handleReceiveError(stream, err)
				return
			}
			for _, result := range resp.GetResults() {
				if !result.GetIsFinal() {
					continue
				}
				text := ""
				if alts := result.GetAlternatives(); len(alts) > 0 {
					text = strings.TrimSpace(alts[0].GetTranscript())
				}
				s.events <- streamEvent{final: text}
			}
		}
	}()
}

func (s *cloudSession) handleReceiveError(stream recognizeStream, err error) {
	switch {
	case errors.Is(err, io.EOF):
		s.mu.Lock()
		current := s.stream == stream
		s.mu.Unlock()
		if current && s.inputEnded.Load() {
			s.terminate(transcriber.Cancellation{Reason: transcriber.CancelEndOfStream})
			return
		}
		slog.Info("transcriber receive loop stopped", "session_id", s.id, "reason", err.Error())
	case s.isStopping() || status.Code(err) == codes.Canceled:
		slog.Info("transcriber receive loop stopped", "session_id", s.id, "reason", err.Error())
	case isReconnectableStreamError(err):
		slog.Warn("transcriber receive loop ended with reconnectable abort", "session_id", s.id, "error", err)
	default:
		slog.Error("transcriber receive loop failed", "session_id", s.id, "error", err)
		s.terminate(cancellationFromError(err))
	}
}

// terminate queues the first terminal cancellation and halts the sender.
func (s *cloudSession) terminate(c transcriber.Cancellation) {
	s.terminateOnce.Do(func() {
		close(s.terminated)
		s.events <- streamEvent{cancel: &c}
	})
}

func (s *cloudSession) isStopping() bool {
	select {
	case <-s.stopping:
		return true
	default:
		return false
	}
}

func (s *cloudSession) runWorker() {
	defer close(s.workerDone)
	for ev := range s.events {
		if ev.cancel != nil {
			s.listener.OnCanceled(*ev.cancel)
			continue
		}
		s.listener.OnFinalResult(s.buildResult(ev.final))
	}
}

func (s *cloudSession) buildResult(text string) transcriber.Result {
	if text == "" {
		return transcriber.Result{Reason: transcriber.ResultNoMatch}
	}
	slog.Info("speech recognized", "session_id", s.id, "language", s.language, "text", text)
	translations := make([]transcriber.Translation, 0, len(s.targets))
	for _, lang := range s.targets {
		translated, err := s.translator.Translate(s.ctx, text, s.language, lang)
		if err == nil && strings.TrimSpace(translated) == "" {
			err = errors.New("empty translation")
		}
		if err != nil {
			slog.Warn("translation failed", "session_id", s.id, "target", lang, "error", err)
			return transcriber.Result{Reason: transcriber.ResultRecognized, Text: text}
		}
		translations = append(translations, transcriber.Translation{Language: lang, Text: translated})
	}
	return transcriber.Result{Reason: transcriber.ResultTranslated, Text: text, Translations: translations}
}

func cancellationFromError(err error) transcriber.Cancellation {
	st, ok := status.FromError(err)
	if !ok {
		return transcriber.Cancellation{Reason: transcriber.CancelError, ErrorCode: codes.Unknown.String(), ErrorDetails: err.Error()}
	}
	return transcriber.Cancellation{Reason: transcriber.CancelError, ErrorCode: st.Code().String(), ErrorDetails: st.Message()}
}

func isReconnectableStreamError(err error) bool {
	if errors.Is(err, io.EOF) || strings.Contains(strings.ToLower(err.Error()), "eof") {
		return true
	}
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Aborted {
		return false
	}
	msg := strings.ToLower(st.Message())
	return strings.Contains(msg, "max duration of 5 minutes") ||
		strings.Contains(msg, "stream timed out after receiving no more client requests")
}
