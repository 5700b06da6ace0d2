package timeline

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/GintGld/livempd/internal/lib/ticks"
	"github.com/GintGld/livempd/internal/models"
	"github.com/GintGld/livempd/internal/service"
)

// Timeline accumulates segments of one representation
// as a list of compacted runs.
//
// Single writer (Append, Evict), many readers.
type Timeline struct {
	log       *slog.Logger
	tolerance int64

	mutex     sync.RWMutex
	runs      []models.Run
	segments  int64
	lastIndex int64
	started   bool
}

// New returns empty timeline.
//
// Segments extend the last run if their timing
// differs from the run prediction by less than tolerance.
// Zero tolerance merges only exactly equal segments.
func New(log *slog.Logger, tolerance int64) *Timeline {
	if tolerance < 0 {
		tolerance = 0
	}

	return &Timeline{
		log:       log,
		tolerance: tolerance,
	}
}

// Append adds segment to the tail of the timeline.
//
// Returns service.ErrInvalidSegment for non-positive duration
// or negative start, service.ErrOutOfOrderSegment if index does
// not increase. In both cases timeline is not changed.
func (t *Timeline) Append(seg models.Segment) error {
	const op = "Timeline.Append"

	if seg.Duration <= 0 || seg.Start < 0 {
		return fmt.Errorf(
			"%s: %w: index %d, start %d, duration %d",
			op, service.ErrInvalidSegment, seg.Index, seg.Start, seg.Duration,
		)
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.started && seg.Index <= t.lastIndex {
		return fmt.Errorf(
			"%s: %w: index %d after %d",
			op, service.ErrOutOfOrderSegment, seg.Index, t.lastIndex,
		)
	}

	if n := len(t.runs); n > 0 && t.extends(t.runs[n-1], seg) {
		t.runs[n-1].Repeat++
	} else {
		t.runs = append(t.runs, models.Run{
			Start:      seg.Start,
			Duration:   seg.Duration,
			Repeat:     1,
			FirstIndex: seg.Index,
		})

		t.log.Debug(
			"new run",
			slog.String("op", op),
			slog.Int64("index", seg.Index),
			slog.Int64("start", seg.Start),
			slog.Int64("duration", seg.Duration),
			slog.Int("runs", len(t.runs)),
		)
	}

	t.started = true
	t.lastIndex = seg.Index
	t.segments++

	return nil
}

// extends reports whether seg may be
// described as one more repeat of run.
func (t *Timeline) extends(run models.Run, seg models.Segment) bool {
	// run indices must stay contiguous
	if seg.Index != run.LastIndex()+1 {
		return false
	}

	// predicted start and end of the next repeat
	// must stay within tolerance, otherwise the
	// error would accumulate along the run
	return ticks.Near(seg.Start, run.End(), t.tolerance) &&
		ticks.Near(seg.Duration, run.Duration, t.tolerance) &&
		ticks.Near(seg.End(), run.End()+run.Duration, t.tolerance)
}

// Runs returns a copy of current runs.
func (t *Timeline) Runs() []models.Run {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return append(make([]models.Run, 0, len(t.runs)), t.runs...)
}

// Evict removes every segment with index
// less or equal than through.
//
// Works in time proportional to the number
// of runs removed. ok is false if nothing was removed.
func (t *Timeline) Evict(through int64) (ev models.Eviction, ok bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	n := 0
	for ; n < len(t.runs); n++ {
		run := &t.runs[n]
		if run.FirstIndex > through {
			break
		}

		if !ok {
			ev.FromIndex = run.FirstIndex
			ok = true
		}

		if run.LastIndex() <= through {
			ev.ThroughIndex = run.LastIndex()
			ev.Segments += run.Repeat
			continue
		}

		// partially evicted run
		k := through - run.FirstIndex + 1
		run.Start += k * run.Duration
		run.FirstIndex += k
		run.Repeat -= k

		ev.ThroughIndex = through
		ev.Segments += k
		break
	}

	if !ok {
		return models.Eviction{}, false
	}

	t.runs = t.runs[n:]
	t.segments -= ev.Segments

	return ev, true
}

// Len returns number of retained segments.
func (t *Timeline) Len() int64 {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.segments
}

// End returns end of the last retained segment.
// ok is false for empty timeline.
func (t *Timeline) End() (end int64, ok bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	if len(t.runs) == 0 {
		return 0, false
	}
	return t.runs[len(t.runs)-1].End(), true
}

// LastIndex returns index of the last appended segment,
// evicted or not. ok is false if nothing was appended.
func (t *Timeline) LastIndex() (idx int64, ok bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.lastIndex, t.started
}
