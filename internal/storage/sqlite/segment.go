package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/GintGld/livempd/internal/models"
	"github.com/GintGld/livempd/internal/storage"
)

// SaveSegment saves accepted segment.
func (s *Storage) SaveSegment(ctx context.Context, segment models.Segment) error {
	const op = "storage.sqlite.SaveSegment"

	stmt, err := s.db.PrepareContext(ctx, "INSERT INTO segment(seg_index, start, duration) VALUES(?, ?, ?)")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	if _, err := stmt.ExecContext(ctx, segment.Index, segment.Start, segment.Duration); err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && (sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique) {
			return fmt.Errorf("%s: %w", op, storage.ErrSegmentExists)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return storage.ErrContextCancelled
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Segments returns all retained segments
// ordered by index.
func (s *Storage) Segments(ctx context.Context) ([]models.Segment, error) {
	const op = "storage.sqlite.Segments"

	stmt, err := s.db.PrepareContext(ctx, "SELECT seg_index, start, duration FROM segment ORDER BY seg_index")
	if err != nil {
		return []models.Segment{}, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return []models.Segment{}, storage.ErrContextCancelled
		}

		return []models.Segment{}, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	res := make([]models.Segment, 0)
	var segment models.Segment

	for rows.Next() {
		if err := rows.Scan(&segment.Index, &segment.Start, &segment.Duration); err != nil {
			return res, fmt.Errorf("%s: %w", op, err)
		}
		res = append(res, segment)
	}

	if err := rows.Err(); err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}
