package repository

import (
	"context"
	"errors"
	"time"

	"github.com/foxseedlab/transrelay/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const orphanStopReason = "process exited while running"

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) CreateSession(ctx context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	targets := input.TargetLanguages
	if targets == nil {
		targets = []string{}
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO relay_sessions (input_language, target_languages, started_at, status)
		 VALUES ($1, $2, $3, 'running')
		 RETURNING id, input_language, target_languages, started_at, ended_at, status, stop_reason`,
		input.InputLanguage, targets, input.StartedAt)
	return scanSession(row)
}

func (r *PostgresRepository) UpdateSessionCompleted(ctx context.Context, input repository.CompleteSessionInput) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE relay_sessions SET status = 'completed', ended_at = $2, stop_reason = $3 WHERE id = $1`,
		input.SessionID, input.EndedAt, input.StopReason)
	return err
}

// CompleteOrphanedSessions closes sessions left running by a previous process.
func (r *PostgresRepository) CompleteOrphanedSessions(ctx context.Context, endedAt time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE relay_sessions SET status = 'completed', ended_at = $1, stop_reason = $2 WHERE status = 'running'`,
		endedAt, orphanStopReason)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) InsertMessage(ctx context.Context, input repository.InsertMessageInput) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO relay_messages (session_id, kind, content, message_index, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		input.SessionID, input.Kind, input.Content, input.MessageIndex, input.CreatedAt)
	return err
}

func (r *PostgresRepository) ListMessagesBySessionID(ctx context.Context, sessionID string) ([]repository.ArchivedMessage, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, kind, content, message_index, created_at
		 FROM relay_messages WHERE session_id = $1 ORDER BY message_index ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.ArchivedMessage
	for rows.Next() {
		var m repository.ArchivedMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Kind, &m.Content, &m.MessageIndex, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// Shutdown lets the injector release the pool on exit.
func (r *PostgresRepository) Shutdown() {
	r.Close()
}

func scanSession(row pgx.Row) (*repository.Session, error) {
	var s repository.Session
	var endedAt *time.Time
	err := row.Scan(&s.ID, &s.InputLanguage, &s.TargetLanguages, &s.StartedAt, &endedAt, &s.Status, &s.StopReason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.EndedAt = endedAt
	return &s, nil
}
