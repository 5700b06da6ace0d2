package models

import (
	"time"
)

// Segment is one encoded media segment
// as reported by the muxing pipeline.
//
// Start and Duration are in timescale ticks.
type Segment struct {
	Index    int64 `json:"index"`
	Start    int64 `json:"start"`
	Duration int64 `json:"duration"`
}

// End returns segment end (ticks).
func (s Segment) End() int64 {
	return s.Start + s.Duration
}

// Run is a compacted timeline entry: Repeat consecutive
// segments of Duration starting at Start. Segments of a run
// have contiguous indices starting with FirstIndex.
type Run struct {
	Start      int64 `json:"t"`
	Duration   int64 `json:"d"`
	Repeat     int64 `json:"repeat"`
	FirstIndex int64 `json:"firstIndex"`
}

// End returns end of the last segment of the run (ticks).
func (r Run) End() int64 {
	return r.Start + r.Duration*r.Repeat
}

// LastIndex returns index of the last segment of the run.
func (r Run) LastIndex() int64 {
	return r.FirstIndex + r.Repeat - 1
}

// Segment returns k-th segment of the run.
func (r Run) Segment(k int64) Segment {
	return Segment{
		Index:    r.FirstIndex + k,
		Start:    r.Start + k*r.Duration,
		Duration: r.Duration,
	}
}

// Expand returns every segment described by runs.
func Expand(runs []Run) []Segment {
	var n int64
	for _, r := range runs {
		n += r.Repeat
	}

	res := make([]Segment, 0, n)
	for _, r := range runs {
		for k := int64(0); k < r.Repeat; k++ {
			res = append(res, r.Segment(k))
		}
	}

	return res
}

type UTCTiming struct {
	SchemeIDURI string `yaml:"scheme_id_uri" json:"schemeIdUri"`
	Value       string `yaml:"value" json:"value"`
}

// Eviction describes segments removed
// from the live window at once.
type Eviction struct {
	FromIndex    int64     `json:"fromIndex"`
	ThroughIndex int64     `json:"throughIndex"`
	Segments     int64     `json:"segments"`
	Time         time.Time `json:"time"`
}

// EvictionNotice is sent to consumers
// interested in evicted segments.
type EvictionNotice struct {
	Eviction Eviction
	Evicted  []Segment
}

// ElidedTimeline replaces the run list when every segment
// but the last one has the same duration.
//
// StartNumber is anchored to the period origin: segment N
// starts at (N - StartNumber) * Duration.
type ElidedTimeline struct {
	Duration     int64 `json:"duration"`
	LastDuration int64 `json:"lastDuration"`
	Segments     int64 `json:"segments"`
	StartNumber  int64 `json:"startNumber"`
	FirstIndex   int64 `json:"firstIndex"`
	Start        int64 `json:"start"`
}

// Uniform reports whether the last segment
// has the common duration too.
func (e ElidedTimeline) Uniform() bool {
	return e.LastDuration == e.Duration
}

// Runs returns the shortest run list
// describing the same segments.
func (e ElidedTimeline) Runs() []Run {
	if e.Uniform() {
		return []Run{{Start: e.Start, Duration: e.Duration, Repeat: e.Segments, FirstIndex: e.FirstIndex}}
	}

	res := make([]Run, 0, 2)
	if e.Segments > 1 {
		res = append(res, Run{Start: e.Start, Duration: e.Duration, Repeat: e.Segments - 1, FirstIndex: e.FirstIndex})
	}
	res = append(res, Run{
		Start:      e.Start + (e.Segments-1)*e.Duration,
		Duration:   e.LastDuration,
		Repeat:     1,
		FirstIndex: e.FirstIndex + e.Segments - 1,
	})

	return res
}

// Attributes is a serializer-independent
// view of the manifest. Times are in seconds.
type Attributes struct {
	Profiles                   []string    `json:"profiles"`
	Static                     bool        `json:"static"`
	AvailabilityStartTime      time.Time   `json:"availabilityStartTime"`
	PublishTime                time.Time   `json:"publishTime"`
	MinBufferTime              float64     `json:"minBufferTime"`
	MinimumUpdatePeriod        float64     `json:"minimumUpdatePeriod,omitempty"`
	SuggestedPresentationDelay float64     `json:"suggestedPresentationDelay,omitempty"`
	TimeShiftBufferDepth       float64     `json:"timeShiftBufferDepth,omitempty"`
	BaseURLs                   []string    `json:"baseURLs"`
	UTCTimings                 []UTCTiming `json:"utcTimings"`
	DefaultLanguage            string      `json:"defaultLanguage,omitempty"`
	MainRole                   bool        `json:"mainRole"`

	Timescale    int64           `json:"timescale"`
	Timeline     []Run           `json:"timeline,omitempty"`
	Elided       *ElidedTimeline `json:"elided,omitempty"`
	LastEviction *Eviction       `json:"lastEviction,omitempty"`
}

// Expand returns every segment described by elided timeline.
func (e ElidedTimeline) Expand() []Segment {
	res := make([]Segment, 0, e.Segments)
	for k := int64(0); k < e.Segments; k++ {
		s := Segment{
			Index:    e.FirstIndex + k,
			Start:    e.Start + k*e.Duration,
			Duration: e.Duration,
		}
		if k == e.Segments-1 {
			s.Duration = e.LastDuration
		}
		res = append(res, s)
	}
	return res
}
