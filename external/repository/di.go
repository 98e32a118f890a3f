package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/transrelay/internal/config"
	"github.com/foxseedlab/transrelay/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/do/v2"
)

const databaseInitTimeout = 15 * time.Second

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (repository.Repository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if !cfg.UsesArchive() {
			slog.Info("DATABASE_URL is not set; transcript archive disabled")
			return NewDiscardRepository(), nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), databaseInitTimeout)
		defer cancel()

		p, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect database: %w", err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		if err := RunMigration(ctx, p); err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to run migration: %w", err)
		}
		repo := NewPostgresRepository(p)
		closed, err := repo.CompleteOrphanedSessions(ctx, time.Now())
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to complete orphaned sessions: %w", err)
		}
		if closed > 0 {
			slog.Warn("marked orphaned running sessions as completed", "count", closed)
		}
		return repo, nil
	})
}
