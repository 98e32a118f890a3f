package transcriber

import "context"

type ResultReason int

const (
	ResultNoMatch ResultReason = iota
	ResultRecognized
	ResultTranslated
	// ResultTranscribed is plain text from an engine that never translates.
	ResultTranscribed
)

func (r ResultReason) String() string {
	switch r {
	case ResultNoMatch:
		return "NoMatch"
	case ResultRecognized:
		return "RecognizedSpeech"
	case ResultTranslated:
		return "TranslatedSpeech"
	case ResultTranscribed:
		return "TranscribedSpeech"
	default:
		return "Unknown"
	}
}

type CancellationReason int

const (
	CancelEndOfStream CancellationReason = iota
	CancelError
)

func (r CancellationReason) String() string {
	switch r {
	case CancelEndOfStream:
		return "EndOfStream"
	case CancelError:
		return "Error"
	default:
		return "Unknown"
	}
}

type Translation struct {
	Language string
	Text     string
}

type Result struct {
	Reason       ResultReason
	Text         string
	Translations []Translation
}

type Cancellation struct {
	Reason       CancellationReason
	ErrorCode    string
	ErrorDetails string
}

// Listener receives engine events. Implementations must tolerate being called
// from engine goroutines concurrently with any other component.
type Listener interface {
	OnFinalResult(result Result)
	OnCanceled(cancellation Cancellation)
}

type SessionConfig struct {
	SessionID       string
	InputLanguage   string
	TargetLanguages []string
}

type Session interface {
	// Stop returns once the engine acknowledged the end of the session or ctx
	// is done. Calling Stop more than once is allowed.
	Stop(ctx context.Context) error
}

type Engine interface {
	// Run pumps the engine input (audio or dictation text) for the lifetime of
	// the process. Sessions started with Start consume from it.
	Run(ctx context.Context) error
	Start(ctx context.Context, cfg SessionConfig, listener Listener) (Session, error)
}
