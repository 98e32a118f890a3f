package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/foxseedlab/transrelay/internal/repository"
	"github.com/foxseedlab/transrelay/internal/webhook"
)

func buildTranscriptWebhookPayload(s *repository.Session, messages []repository.ArchivedMessage, endedAt time.Time, stopReason, timezone string, loc *time.Location) webhook.TranscriptWebhookPayload {
	loc = safeLocation(loc)
	durationSeconds := int64(endedAt.Sub(s.StartedAt).Seconds())
	if durationSeconds < 0 {
		durationSeconds = 0
	}

	items := make([]webhook.TranscriptWebhookMessage, 0, len(messages))
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		items = append(items, webhook.TranscriptWebhookMessage{
			Index: m.MessageIndex,
			Kind:  m.Kind,
			At:    m.CreatedAt.In(loc).Format(time.RFC3339),
			Text:  m.Content,
		})
		elapsed := m.CreatedAt.Sub(s.StartedAt)
		if elapsed < 0 {
			elapsed = 0
		}
		lines = append(lines, fmt.Sprintf("%s %s: %s", formatElapsedHMS(elapsed), m.Kind, m.Content))
	}

	targets := s.TargetLanguages
	if targets == nil {
		targets = []string{}
	}
	return webhook.TranscriptWebhookPayload{
		SchemaVersion:   webhook.TranscriptWebhookSchemaVersion,
		SessionID:       s.ID,
		InputLanguage:   s.InputLanguage,
		TargetLanguages: targets,
		StartAt:         s.StartedAt.In(loc).Format(time.RFC3339),
		EndAt:           endedAt.In(loc).Format(time.RFC3339),
		Timezone:        timezone,
		DurationSeconds: durationSeconds,
		StopReason:      stopReason,
		MessageCount:    len(messages),
		Messages:        items,
		Transcript:      strings.Join(lines, "\n"),
	}
}

func formatElapsedHMS(d time.Duration) string {
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func safeLocation(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
