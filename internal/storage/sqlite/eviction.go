package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/GintGld/livempd/internal/models"
	"github.com/GintGld/livempd/internal/storage"
)

// SaveEviction records eviction and removes
// evicted segments from the journal.
func (s *Storage) SaveEviction(ctx context.Context, ev models.Eviction) error {
	const op = "storage.sqlite.SaveEviction"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	if err := s.saveEvictionSubInsert(tx, ctx, ev); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.saveEvictionSubDeleteSegments(tx, ctx, ev.ThroughIndex); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) saveEvictionSubInsert(tx statementBuilder, ctx context.Context, ev models.Eviction) error {
	const op = "saveEvictionSubInsert"

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO eviction(from_index, through_index, segments, time_mus)
		VALUES(?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	if _, err := stmt.ExecContext(ctx, ev.FromIndex, ev.ThroughIndex, ev.Segments, ev.Time.UnixMicro()); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return storage.ErrContextCancelled
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) saveEvictionSubDeleteSegments(tx statementBuilder, ctx context.Context, through int64) error {
	const op = "saveEvictionSubDeleteSegments"

	stmt, err := tx.PrepareContext(ctx, "DELETE FROM segment WHERE seg_index <= ?")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	if _, err := stmt.ExecContext(ctx, through); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return storage.ErrContextCancelled
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// LastEviction returns the latest eviction.
func (s *Storage) LastEviction(ctx context.Context) (models.Eviction, error) {
	const op = "storage.sqlite.LastEviction"

	stmt, err := s.db.PrepareContext(ctx, `
		SELECT from_index, through_index, segments, time_mus
		FROM eviction
		ORDER BY id DESC
		LIMIT 1
	`)
	if err != nil {
		return models.Eviction{}, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	var (
		ev  models.Eviction
		mus int64
	)

	err = stmt.QueryRowContext(ctx).Scan(&ev.FromIndex, &ev.ThroughIndex, &ev.Segments, &mus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Eviction{}, fmt.Errorf("%s: %w", op, storage.ErrEvictionNotFound)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return models.Eviction{}, storage.ErrContextCancelled
		}

		return models.Eviction{}, fmt.Errorf("%s: %w", op, err)
	}

	ev.Time = time.UnixMicro(mus)

	return ev, nil
}
