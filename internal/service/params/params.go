// Package params holds manifest-level knobs
// of a live manifest session.
package params

import (
	"fmt"
	"time"

	"golang.org/x/text/language"

	"github.com/GintGld/livempd/internal/lib/ticks"
	"github.com/GintGld/livempd/internal/models"
	"github.com/GintGld/livempd/internal/service"
)

// Raw is an unchecked set of parameters,
// the only input of New.
type Raw struct {
	// MpdOutput is the file the manifest is dumped to.
	MpdOutput string
	// BaseURLs are emitted in order, the first is primary.
	BaseURLs []string
	// MinBufferTime is MPD@minBufferTime.
	MinBufferTime time.Duration
	// MinimumUpdatePeriod is MPD@minimumUpdatePeriod.
	// Zero means no periodic refresh is signaled.
	MinimumUpdatePeriod time.Duration
	// SuggestedPresentationDelay is MPD@suggestedPresentationDelay.
	// Zero means unset, the player chooses.
	SuggestedPresentationDelay time.Duration
	// TimeShiftBufferDepth is MPD@timeShiftBufferDepth.
	// Zero means segments are never removed.
	TimeShiftBufferDepth time.Duration
	// PreservedSegmentsOutsideLiveWindow is the number of segments
	// kept behind the live window for in-flight requests.
	PreservedSegmentsOutsideLiveWindow int
	// UTCTimings in client preference order.
	UTCTimings []models.UTCTiming
	// DefaultLanguage gets Role "main". Empty means no default.
	DefaultLanguage string
	// GenerateStaticLiveMPD is reported to the serializer only.
	GenerateStaticLiveMPD bool
	// GenerateDashIfIopCompliantMPD adds DASH-IF IOP profile.
	GenerateDashIfIopCompliantMPD bool
	// AllowApproximateSegmentTimeline treats durations closer
	// than Tolerance as equal.
	AllowApproximateSegmentTimeline bool
	// Timescale is number of ticks per second.
	Timescale int64
	// Tolerance is one sample duration in ticks.
	Tolerance int64
}

// Params is a validated, read-only parameter set.
// Zero value is not usable, use New.
type Params struct {
	mpdOutput                  string
	baseURLs                   []string
	minBufferTime              time.Duration
	minimumUpdatePeriod        time.Duration
	suggestedPresentationDelay time.Duration
	timeShiftBufferDepth       time.Duration
	preservedSegments          int
	utcTimings                 []models.UTCTiming
	defaultLanguage            string
	defaultTag                 language.Tag
	staticLive                 bool
	dashIfIop                  bool
	allowApproximate           bool
	timescale                  int64
	tolerance                  int64
}

// New validates raw parameters.
//
// Returns service.ErrConfigurationInvalid describing
// the first offending field.
func New(raw Raw) (Params, error) {
	const op = "params.New"

	invalid := func(format string, args ...any) (Params, error) {
		return Params{}, fmt.Errorf("%s: %w: %s", op, service.ErrConfigurationInvalid, fmt.Sprintf(format, args...))
	}

	switch {
	case raw.MinBufferTime <= 0:
		return invalid("min_buffer_time must be positive, got %s", raw.MinBufferTime)
	case raw.MinimumUpdatePeriod < 0:
		return invalid("minimum_update_period is negative: %s", raw.MinimumUpdatePeriod)
	case raw.SuggestedPresentationDelay < 0:
		return invalid("suggested_presentation_delay is negative: %s", raw.SuggestedPresentationDelay)
	case raw.TimeShiftBufferDepth < 0:
		return invalid("time_shift_buffer_depth is negative: %s", raw.TimeShiftBufferDepth)
	case raw.PreservedSegmentsOutsideLiveWindow < 0:
		return invalid("preserved_segments_outside_live_window is negative: %d", raw.PreservedSegmentsOutsideLiveWindow)
	case raw.PreservedSegmentsOutsideLiveWindow > 0 && raw.TimeShiftBufferDepth == 0:
		return invalid("preserved_segments_outside_live_window requires time_shift_buffer_depth")
	case raw.Timescale <= 0:
		return invalid("timescale must be positive, got %d", raw.Timescale)
	case raw.Tolerance < 0:
		return invalid("tolerance is negative: %d", raw.Tolerance)
	case raw.TimeShiftBufferDepth > 0 && ticks.FromDuration(raw.TimeShiftBufferDepth, raw.Timescale) == 0:
		return invalid("time_shift_buffer_depth %s is shorter than one tick of timescale %d", raw.TimeShiftBufferDepth, raw.Timescale)
	}

	for i, t := range raw.UTCTimings {
		if t.SchemeIDURI == "" {
			return invalid("utc_timings[%d]: empty scheme_id_uri", i)
		}
	}

	var tag language.Tag
	if raw.DefaultLanguage != "" {
		var err error
		if tag, err = language.Parse(raw.DefaultLanguage); err != nil {
			return invalid("default_language %q: %s", raw.DefaultLanguage, err)
		}
	}

	return Params{
		mpdOutput:                  raw.MpdOutput,
		baseURLs:                   clone(raw.BaseURLs),
		minBufferTime:              raw.MinBufferTime,
		minimumUpdatePeriod:        raw.MinimumUpdatePeriod,
		suggestedPresentationDelay: raw.SuggestedPresentationDelay,
		timeShiftBufferDepth:       raw.TimeShiftBufferDepth,
		preservedSegments:          raw.PreservedSegmentsOutsideLiveWindow,
		utcTimings:                 clone(raw.UTCTimings),
		defaultLanguage:            raw.DefaultLanguage,
		defaultTag:                 tag,
		staticLive:                 raw.GenerateStaticLiveMPD,
		dashIfIop:                  raw.GenerateDashIfIopCompliantMPD,
		allowApproximate:           raw.AllowApproximateSegmentTimeline,
		timescale:                  raw.Timescale,
		tolerance:                  raw.Tolerance,
	}, nil
}

func clone[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}

func (p Params) MpdOutput() string { return p.mpdOutput }
func (p Params) BaseURLs() []string { return clone(p.baseURLs) }
func (p Params) MinBufferTime() time.Duration { return p.minBufferTime }
func (p Params) MinimumUpdatePeriod() time.Duration { return p.minimumUpdatePeriod }
func (p Params) SuggestedPresentationDelay() time.Duration { return p.suggestedPresentationDelay }
func (p Params) TimeShiftBufferDepth() time.Duration { return p.timeShiftBufferDepth }
func (p Params) PreservedSegmentsOutsideLiveWindow() int { return p.preservedSegments }
func (p Params) UTCTimings() []models.UTCTiming { return clone(p.utcTimings) }
func (p Params) DefaultLanguage() string { return p.defaultLanguage }
func (p Params) GenerateStaticLiveMPD() bool { return p.staticLive }
func (p Params) GenerateDashIfIopCompliantMPD() bool { return p.dashIfIop }
func (p Params) AllowApproximateSegmentTimeline() bool { return p.allowApproximate }
func (p Params) Timescale() int64 { return p.timescale }
func (p Params) Tolerance() int64 { return p.tolerance }

// DefaultLanguageTag returns parsed default language.
// ok is false if no default language is set.
func (p Params) DefaultLanguageTag() (tag language.Tag, ok bool) {
	return p.defaultTag, p.defaultLanguage != ""
}

// Unbounded reports whether segments are retained forever.
func (p Params) Unbounded() bool {
	return p.timeShiftBufferDepth == 0
}

// TimeShiftBufferDepthTicks returns buffer depth in timescale ticks.
func (p Params) TimeShiftBufferDepthTicks() int64 {
	return ticks.FromDuration(p.timeShiftBufferDepth, p.timescale)
}
