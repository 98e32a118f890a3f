package message

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

type Kind int

const (
	KindSystem Kind = iota
	KindRecognized
	KindTranslated
)

// String returns the label used on the wire. The labels are part of the
// GetMessages response format and must stay stable.
func (k Kind) String() string {
	switch k {
	case KindSystem:
		return "System"
	case KindRecognized:
		return "Recognized"
	case KindTranslated:
		return "Translated"
	default:
		return "Unknown"
	}
}

type Message struct {
	Kind      Kind
	Text      string
	CreatedAt time.Time
}

func (m Message) String() string {
	return m.Kind.String() + ": " + m.Text
}

// Queue is a FIFO of messages waiting for the next poll. Enqueue is safe from
// any goroutine; DrainFresh takes everything queued at the time of the call.
type Queue struct {
	mu    sync.Mutex
	items []Message
	now   func() time.Time
}

type Option func(*Queue)

func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

func NewQueue(opts ...Option) *Queue {
	q := &Queue{now: time.Now}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Queue) Enqueue(kind Kind, text string) (Message, bool) {
	if strings.TrimSpace(text) == "" {
		return Message{}, false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	msg := Message{Kind: kind, Text: text, CreatedAt: q.now()}
	q.items = append(q.items, msg)
	return msg, true
}

// DrainFresh removes every queued message and returns the ones whose age is
// at most maxAge, in enqueue order. Older messages are dropped.
func (q *Queue) DrainFresh(maxAge time.Duration) []Message {
	q.mu.Lock()
	items := q.items
	q.items = nil
	now := q.now()
	q.mu.Unlock()

	fresh := make([]Message, 0, len(items))
	for _, msg := range items {
		if now.Sub(msg.CreatedAt) <= maxAge {
			fresh = append(fresh, msg)
		}
	}
	if expired := len(items) - len(fresh); expired > 0 {
		slog.Debug("discarded expired messages", "expired", expired, "delivered", len(fresh), "max_age", maxAge)
	}
	return fresh
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Render joins messages one per line, each terminated by a newline. An empty
// slice renders as the empty string.
func Render(messages []Message) string {
	var b strings.Builder
	for _, msg := range messages {
		b.WriteString(msg.String())
		b.WriteByte('\n')
	}
	return b.String()
}
