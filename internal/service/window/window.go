package window

import (
	"log/slog"
	"sync"

	"github.com/GintGld/livempd/internal/models"
	"github.com/GintGld/livempd/internal/service/params"
)

// Manager decides which leading segments
// left the live window.
//
// It never mutates timeline, only returns the decision.
type Manager struct {
	log *slog.Logger

	mutex sync.Mutex
	last  int64
	has   bool
}

func New(log *slog.Logger) *Manager {
	return &Manager{
		log: log,
	}
}

// EvictionPoint returns index of the last segment
// that may be removed from the timeline at time now (ticks).
// ok is false if nothing should be removed.
//
// Segments ending before now - TimeShiftBufferDepth are out
// of the window; the latest PreservedSegmentsOutsideLiveWindow
// of them are kept anyway.
//
// The returned index never decreases between calls.
func (m *Manager) EvictionPoint(now int64, runs []models.Run, p params.Params) (int64, bool) {
	const op = "Manager.EvictionPoint"

	if p.Unbounded() {
		return 0, false
	}

	windowStart := now - p.TimeShiftBufferDepthTicks()

	outside := outsideWindow(runs, windowStart)
	evict := outside - int64(p.PreservedSegmentsOutsideLiveWindow())
	if evict <= 0 {
		return 0, false
	}

	idx := nthIndex(runs, evict)

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.has && idx < m.last {
		m.log.Warn(
			"eviction point moved back, keep previous",
			slog.String("op", op),
			slog.Int64("point", idx),
			slog.Int64("previous", m.last),
		)
		return m.last, true
	}

	m.last, m.has = idx, true

	return idx, true
}

// Last returns the latest eviction point.
func (m *Manager) Last() (int64, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.last, m.has
}

// outsideWindow counts leading segments
// ending strictly before windowStart.
func outsideWindow(runs []models.Run, windowStart int64) int64 {
	var res int64

	for _, r := range runs {
		if r.End() < windowStart {
			res += r.Repeat
			continue
		}

		// segment k ends at Start + (k+1)*Duration,
		// count k with (k+1)*Duration < windowStart - Start
		if x := windowStart - r.Start; x > 0 {
			res += min((x-1)/r.Duration, r.Repeat)
		}
		break
	}

	return res
}

// nthIndex returns index of n-th (1-based) segment.
func nthIndex(runs []models.Run, n int64) int64 {
	for _, r := range runs {
		if n <= r.Repeat {
			return r.FirstIndex + n - 1
		}
		n -= r.Repeat
	}

	last := runs[len(runs)-1]
	return last.LastIndex()
}
