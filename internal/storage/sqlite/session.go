package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/GintGld/livempd/internal/storage"
)

// SessionStart returns availability start
// of the journaled session.
func (s *Storage) SessionStart(ctx context.Context) (time.Time, error) {
	const op = "storage.sqlite.SessionStart"

	stmt, err := s.db.PrepareContext(ctx, "SELECT start_mus FROM session WHERE id = 1")
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	var mus int64
	if err := stmt.QueryRowContext(ctx).Scan(&mus); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, fmt.Errorf("%s: %w", op, storage.ErrSessionNotFound)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return time.Time{}, storage.ErrContextCancelled
		}

		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return time.UnixMicro(mus), nil
}

// SaveSessionStart replaces journaled session
// with a new one. Previous segments and
// evictions are deleted.
func (s *Storage) SaveSessionStart(ctx context.Context, start time.Time) error {
	const op = "storage.sqlite.SaveSessionStart"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	for _, query := range []string{
		"DELETE FROM segment",
		"DELETE FROM eviction",
	} {
		if err := s.saveSessionStartSubExec(tx, ctx, query); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := s.saveSessionStartSubExec(
		tx, ctx,
		"INSERT OR REPLACE INTO session(id, start_mus) VALUES(1, ?)",
		start.UnixMicro(),
	); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) saveSessionStartSubExec(tx statementBuilder, ctx context.Context, query string, args ...any) error {
	const op = "saveSessionStartSubExec"

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	if _, err := stmt.ExecContext(ctx, args...); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return storage.ErrContextCancelled
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
