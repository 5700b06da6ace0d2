package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GintGld/livempd/internal/lib/logger/sl"
	"github.com/GintGld/livempd/internal/lib/ticks"
	chans "github.com/GintGld/livempd/internal/lib/utils/channels"
	"github.com/GintGld/livempd/internal/models"
	"github.com/GintGld/livempd/internal/service"
	"github.com/GintGld/livempd/internal/service/params"
	"github.com/GintGld/livempd/internal/storage"
)

const (
	journalTimeout = 5 * time.Second

	reasonInvalid    = "invalid"
	reasonOutOfOrder = "out_of_order"
)

// Dash owns the live timeline. It is the only
// writer: segments are appended, evicted and
// the manifest is rebuilt in the Run loop.
type Dash struct {
	log       *slog.Logger
	params    params.Params
	startTime time.Time
	refresh   time.Duration
	timeline  Timeline
	window    Window
	manifest  Manifest
	journal   Journal
	metrics   Metrics

	// ingest requests
	ingest chan ingestRequest
	// evicted segments for consumers
	notices chan<- models.EvictionNotice

	stopMutex sync.Mutex
	stop      context.CancelFunc

	lastEviction *models.Eviction
	restored     bool
	running      atomic.Bool
	closed       atomic.Bool
	runMutex     sync.Mutex
}

type ingestRequest struct {
	segment models.Segment
	reply   chan error
}

type Timeline interface {
	Append(seg models.Segment) error
	Evict(through int64) (models.Eviction, bool)
	Runs() []models.Run
	Len() int64
	LastIndex() (int64, bool)
}

type Window interface {
	EvictionPoint(now int64, runs []models.Run, p params.Params) (int64, bool)
}

type Manifest interface {
	Update(runs []models.Run, ev *models.Eviction, publish time.Time) models.Attributes
	Current() models.Attributes
	Encode() (string, error)
	Dump() error
	CleanUp()
}

type Journal interface {
	SaveSegment(ctx context.Context, segment models.Segment) error
	Segments(ctx context.Context) ([]models.Segment, error)
	SaveEviction(ctx context.Context, ev models.Eviction) error
	LastEviction(ctx context.Context) (models.Eviction, error)
}

type Metrics interface {
	IncSegmentsAppended()
	IncSegmentsRejected(reason string)
	AddSegmentsEvicted(n int64)
	IncManifestUpdates()
	SetTimeline(runs int, segments int64)
	IncNoticesDropped()
}

// New returns new dash manager.
//
// notices may be nil if nobody
// is interested in evicted segments.
func New(
	log *slog.Logger,
	p params.Params,
	startTime time.Time,
	refresh time.Duration,
	timeline Timeline,
	window Window,
	manifest Manifest,
	journal Journal,
	metrics Metrics,
	notices chan<- models.EvictionNotice,
) *Dash {
	return &Dash{
		log:       log,
		params:    p,
		startTime: startTime,
		refresh:   refresh,
		timeline:  timeline,
		window:    window,
		manifest:  manifest,
		journal:   journal,
		metrics:   metrics,
		ingest:    make(chan ingestRequest),
		notices:   notices,
	}
}

// Run starts the refresh loop.
//
// Returns error wrapping service.ErrOutOfOrderSegment
// if the session was closed by a segment regression.
func (d *Dash) Run(ctx context.Context) error {
	const op = "Dash.Run"

	log := d.log.With(
		slog.String("op", op),
	)

	if d.closed.Load() {
		return fmt.Errorf("%s: %w", op, service.ErrSessionClosed)
	}

	// mutex to prevent multiple
	// run call.
	if !d.runMutex.TryLock() {
		return nil
	}
	defer d.runMutex.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.stopMutex.Lock()
	d.stop = cancel
	d.stopMutex.Unlock()

	log.Info("start dash", slog.Time("availability_start", d.startTime))

	if !d.restored {
		d.restore(ctx)
		d.restored = true
	}

	if err := d.update(ctx, time.Now()); err != nil {
		log.Error("failed to update manifest", sl.Err(err))
	}

	d.running.Store(true)
	defer d.running.Store(false)

	ticker := time.NewTicker(d.refresh)
	defer ticker.Stop()

	for {
		select {
		case req := <-d.ingest:
			err := d.append(ctx, req.segment)
			req.reply <- err

			if errors.Is(err, service.ErrOutOfOrderSegment) {
				d.closed.Store(true)
				log.Error("out of order segment, session closed", sl.Err(err))
				return fmt.Errorf("%s: %w", op, err)
			}
			if err != nil {
				continue
			}

			if err := d.update(ctx, time.Now()); err != nil {
				log.Error("failed to update manifest", sl.Err(err))
			}
		case now := <-ticker.C:
			if err := d.update(ctx, now); err != nil {
				log.Error("failed to update manifest", sl.Err(err))
			}
		case <-ctx.Done():
			log.Info("stopped dash")
			return nil
		}
	}
}

// Stop stops dash.
func (d *Dash) Stop() {
	d.stopMutex.Lock()
	defer d.stopMutex.Unlock()

	if d.stop != nil {
		d.stop()
	}
}

func (d *Dash) IsRunning() bool {
	return d.running.Load()
}

// Closed reports whether the session was
// closed by an out of order segment.
func (d *Dash) Closed() bool {
	return d.closed.Load()
}

// Ingest passes segment to the refresh loop
// and waits until it is accepted or rejected.
func (d *Dash) Ingest(ctx context.Context, segment models.Segment) error {
	const op = "Dash.Ingest"

	if d.closed.Load() || !d.IsRunning() {
		return fmt.Errorf("%s: %w", op, service.ErrSessionClosed)
	}

	req := ingestRequest{
		segment: segment,
		reply:   make(chan error, 1),
	}

	select {
	case d.ingest <- req:
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, service.ErrTimeout)
	}

	select {
	case err := <-req.reply:
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, service.ErrTimeout)
	}
}

// Attributes returns attributes
// of the current manifest.
func (d *Dash) Attributes() models.Attributes {
	return d.manifest.Current()
}

// Manifest returns serialized current manifest.
func (d *Dash) Manifest() (string, error) {
	const op = "Dash.Manifest"

	res, err := d.manifest.Encode()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}

// CleanUp deletes manifest file.
func (d *Dash) CleanUp() {
	d.manifest.CleanUp()
}

// append adds segment to the timeline
// and journals it.
func (d *Dash) append(ctx context.Context, segment models.Segment) error {
	const op = "Dash.append"

	log := d.log.With(
		slog.String("op", op),
		slog.Int64("index", segment.Index),
	)

	if err := d.timeline.Append(segment); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidSegment):
			d.metrics.IncSegmentsRejected(reasonInvalid)
			log.Warn("invalid segment", sl.Err(err))
		case errors.Is(err, service.ErrOutOfOrderSegment):
			d.metrics.IncSegmentsRejected(reasonOutOfOrder)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	d.metrics.IncSegmentsAppended()
	log.Debug("segment appended")

	jctx, cancel := context.WithTimeout(ctx, journalTimeout)
	defer cancel()

	if err := d.journal.SaveSegment(jctx, segment); err != nil {
		if errors.Is(err, storage.ErrSegmentExists) {
			log.Warn("segment already journaled")
		} else {
			log.Error("failed to journal segment", sl.Err(err))
		}
	}

	return nil
}

// update evicts segments left the live
// window and rebuilds the manifest.
func (d *Dash) update(ctx context.Context, now time.Time) error {
	const op = "Dash.update"

	log := d.log.With(
		slog.String("op", op),
	)

	nowTicks := ticks.FromDuration(now.Sub(d.startTime), d.params.Timescale())

	runs := d.timeline.Runs()

	if point, ok := d.window.EvictionPoint(nowTicks, runs, d.params); ok {
		evicted := segmentsThrough(runs, point)

		if ev, ok := d.timeline.Evict(point); ok {
			ev.Time = now
			d.lastEviction = &ev

			log.Debug(
				"evicted segments",
				slog.Int64("from", ev.FromIndex),
				slog.Int64("through", ev.ThroughIndex),
				slog.Int64("segments", ev.Segments),
			)

			d.metrics.AddSegmentsEvicted(ev.Segments)

			jctx, cancel := context.WithTimeout(ctx, journalTimeout)
			if err := d.journal.SaveEviction(jctx, ev); err != nil {
				log.Error("failed to journal eviction", sl.Err(err))
			}
			cancel()

			// the loop never waits for the cleaner
			if !chans.TrySend(d.notices, models.EvictionNotice{Eviction: ev, Evicted: evicted}) {
				d.metrics.IncNoticesDropped()
				log.Warn("eviction notice dropped", slog.Int64("through", ev.ThroughIndex))
			}

			runs = d.timeline.Runs()
		}
	}

	d.manifest.Update(runs, d.lastEviction, now)
	d.metrics.IncManifestUpdates()
	d.metrics.SetTimeline(len(runs), d.timeline.Len())

	if err := d.manifest.Dump(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// restore replays journaled segments.
func (d *Dash) restore(ctx context.Context) {
	const op = "Dash.restore"

	log := d.log.With(
		slog.String("op", op),
	)

	if _, ok := d.timeline.LastIndex(); ok {
		return
	}

	jctx, cancel := context.WithTimeout(ctx, journalTimeout)
	defer cancel()

	segments, err := d.journal.Segments(jctx)
	if err != nil {
		log.Error("failed to load journal", sl.Err(err))
		return
	}

	for _, s := range segments {
		if err := d.timeline.Append(s); err != nil {
			log.Warn("skip journaled segment", slog.Int64("index", s.Index), sl.Err(err))
		}
	}

	ev, err := d.journal.LastEviction(jctx)
	switch {
	case err == nil:
		d.lastEviction = &ev
	case errors.Is(err, storage.ErrEvictionNotFound):
	default:
		log.Error("failed to load last eviction", sl.Err(err))
	}

	log.Info("restored timeline", slog.Int("segments", len(segments)))
}

// segmentsThrough returns segments
// with index less or equal than through.
func segmentsThrough(runs []models.Run, through int64) []models.Segment {
	res := make([]models.Segment, 0)

	for _, r := range runs {
		if r.FirstIndex > through {
			break
		}
		for k := int64(0); k < r.Repeat && r.FirstIndex+k <= through; k++ {
			res = append(res, r.Segment(k))
		}
	}

	return res
}
