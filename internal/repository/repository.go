package repository

import (
	"context"
	"time"
)

type CreateSessionInput struct {
	InputLanguage   string
	TargetLanguages []string
	StartedAt       time.Time
}

type CompleteSessionInput struct {
	SessionID  string
	EndedAt    time.Time
	StopReason string
}

type InsertMessageInput struct {
	SessionID    string
	Kind         string
	Content      string
	MessageIndex int
	CreatedAt    time.Time
}

type SessionRepository interface {
	CreateSession(ctx context.Context, input CreateSessionInput) (*Session, error)
	UpdateSessionCompleted(ctx context.Context, input CompleteSessionInput) error
}

type MessageRepository interface {
	InsertMessage(ctx context.Context, input InsertMessageInput) error
	ListMessagesBySessionID(ctx context.Context, sessionID string) ([]ArchivedMessage, error)
}

type Repository interface {
	SessionRepository
	MessageRepository
}
