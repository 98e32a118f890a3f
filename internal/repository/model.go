package repository

import "time"

type SessionStatus string

const (
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusCompleted SessionStatus = "completed"
)

type Session struct {
	ID              string
	InputLanguage   string
	TargetLanguages []string
	StartedAt       time.Time
	EndedAt         *time.Time
	Status          SessionStatus
	StopReason      string
}

type ArchivedMessage struct {
	ID           string
	SessionID    string
	Kind         string
	Content      string
	MessageIndex int
	CreatedAt    time.Time
}
