package repository

import (
	"context"

	"github.com/foxseedlab/transrelay/internal/repository"
	"github.com/google/uuid"
)

// DiscardRepository is used when no database is configured. It mints session
// IDs and keeps nothing.
type DiscardRepository struct{}

func NewDiscardRepository() *DiscardRepository {
	return &DiscardRepository{}
}

func (r *DiscardRepository) CreateSession(_ context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	return &repository.Session{
		ID:              uuid.NewString(),
		InputLanguage:   input.InputLanguage,
		TargetLanguages: input.TargetLanguages,
		StartedAt:       input.StartedAt,
		Status:          repository.SessionStatusRunning,
	}, nil
}

func (r *DiscardRepository) UpdateSessionCompleted(_ context.Context, _ repository.CompleteSessionInput) error {
	return nil
}

func (r *DiscardRepository) InsertMessage(_ context.Context, _ repository.InsertMessageInput) error {
	return nil
}

func (r *DiscardRepository) ListMessagesBySessionID(_ context.Context, _ string) ([]repository.ArchivedMessage, error) {
	return nil, nil
}
