package session

import "github.com/foxseedlab/transrelay/internal/transcriber"

const (
	messageTranslationUnavailable = "Speech could not be translated."
	messageNoMatch                = "Speech could not be recognized."

	messageCanceledReasonPrefix  = "CANCELED: Reason="
	messageCanceledCodePrefix    = "CANCELED: ErrorCode="
	messageCanceledDetailsPrefix = "CANCELED: ErrorDetails="
	messageCanceledHint          = "CANCELED: Did you update the credentials?"

	errorCodeStartFailed = "StartFailed"
)

const (
	stopReasonRestart     = "restart"
	stopReasonManual      = "stop"
	stopReasonShutdown    = "shutdown"
	stopReasonCanceled    = "canceled"
	stopReasonStartFailed = "start-failed"
)

func cancellationMessages(c transcriber.Cancellation) []string {
	lines := []string{messageCanceledReasonPrefix + c.Reason.String()}
	if c.Reason != transcriber.CancelError {
		return lines
	}
	return append(lines,
		messageCanceledCodePrefix+c.ErrorCode,
		messageCanceledDetailsPrefix+c.ErrorDetails,
		messageCanceledHint,
	)
}
