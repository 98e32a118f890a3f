package webhook

import "context"

const TranscriptWebhookSchemaVersion = 1

type TranscriptWebhookMessage struct {
	Index int    `json:"index"`
	Kind  string `json:"kind"`
	At    string `json:"at"`
	Text  string `json:"text"`
}

type TranscriptWebhookPayload struct {
	SchemaVersion   int                        `json:"schema_version"`
	SessionID       string                     `json:"session_id"`
	InputLanguage   string                     `json:"input_language"`
	TargetLanguages []string                   `json:"target_languages"`
	StartAt         string                     `json:"start_at"`
	EndAt           string                     `json:"end_at"`
	Timezone        string                     `json:"timezone"`
	DurationSeconds int64                      `json:"duration_seconds"`
	StopReason      string                     `json:"stop_reason"`
	MessageCount    int                        `json:"message_count"`
	Messages        []TranscriptWebhookMessage `json:"messages"`
	Transcript      string                     `json:"transcript"`
}

type Sender interface {
	SendTranscript(ctx context.Context, payload TranscriptWebhookPayload) error
}
