package cleaner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/GintGld/livempd/internal/lib/logger/sl"
	"github.com/GintGld/livempd/internal/lib/template"
	"github.com/GintGld/livempd/internal/models"
)

var ErrNotMedia = errors.New("not a media file")

// Cleaner deletes files of evicted segments
// after a delay, so players which got the
// previous manifest can still download them.
type Cleaner struct {
	log       *slog.Logger
	dir       string
	media     string
	repID     string
	bandwidth int64
	delay     time.Duration
	metrics   Metrics
}

type Metrics interface {
	IncFilesCleaned()
}

type batch struct {
	deadline time.Time
	segments []models.Segment
}

func New(
	log *slog.Logger,
	dir string,
	media string,
	repID string,
	bandwidth int64,
	delay time.Duration,
	metrics Metrics,
) *Cleaner {
	return &Cleaner{
		log:       log,
		dir:       dir,
		media:     media,
		repID:     repID,
		bandwidth: bandwidth,
		delay:     delay,
		metrics:   metrics,
	}
}

// Run consumes eviction notices until
// the channel is closed or ctx is done.
//
// Files still waiting for deletion are
// left on disk when Run returns.
func (c *Cleaner) Run(ctx context.Context, notices <-chan models.EvictionNotice) {
	const op = "Cleaner.Run"

	log := c.log.With(
		slog.String("op", op),
	)

	log.Info("start cleaner")

	pending := make([]batch, 0)

	for {
		var timer <-chan time.Time
		if len(pending) > 0 {
			timer = time.After(time.Until(pending[0].deadline))
		}

		select {
		case n, ok := <-notices:
			if !ok {
				log.Info("notices closed, stop cleaner", slog.Int("pending", len(pending)))
				return
			}
			log.Debug(
				"got eviction",
				slog.Int64("from", n.Eviction.FromIndex),
				slog.Int64("through", n.Eviction.ThroughIndex),
			)
			pending = append(pending, batch{
				deadline: time.Now().Add(c.delay),
				segments: n.Evicted,
			})
		case <-timer:
			c.Remove(pending[0].segments)
			pending = pending[1:]
		case <-ctx.Done():
			log.Info("stop cleaner", slog.Int("pending", len(pending)))
			return
		}
	}
}

// Remove deletes files of given segments.
// Returns number of deleted files.
func (c *Cleaner) Remove(segments []models.Segment) int {
	const op = "Cleaner.Remove"

	log := c.log.With(
		slog.String("op", op),
	)

	var removed int

	for _, s := range segments {
		name, err := template.Expand(c.media, template.Vars{
			RepresentationID: c.repID,
			Number:           s.Index,
			Time:             s.Start,
			Bandwidth:        c.bandwidth,
		})
		if err != nil {
			log.Error("failed to expand template", slog.Int64("index", s.Index), sl.Err(err))
			continue
		}

		path := filepath.Join(c.dir, name)

		if err := c.removeFile(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				log.Debug("file not exists", slog.String("file", path))
			} else {
				log.Error("failed to delete file", slog.String("file", path), sl.Err(err))
			}
			continue
		}

		removed++
		if c.metrics != nil {
			c.metrics.IncFilesCleaned()
		}
	}

	log.Debug("removed segments", slog.Int("files", removed), slog.Int("segments", len(segments)))

	return removed
}

// removeFile deletes file if it contains media.
func (c *Cleaner) removeFile(path string) error {
	const op = "Cleaner.removeFile"

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if !isMedia(mtype) {
		return fmt.Errorf("%s: %s: %w", op, mtype.String(), ErrNotMedia)
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func isMedia(mtype *mimetype.MIME) bool {
	s := mtype.String()
	return strings.HasPrefix(s, "video/") ||
		strings.HasPrefix(s, "audio/") ||
		mtype.Is("application/octet-stream")
}
