package service

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/zencoder/go-dash/v3/mpd"
	"golang.org/x/text/language"

	"github.com/GintGld/livempd/internal/lib/logger/sl"
	ptr "github.com/GintGld/livempd/internal/lib/utils/pointers"
	"github.com/GintGld/livempd/internal/models"
	"github.com/GintGld/livempd/internal/service/params"
)

const (
	profileLive    = string(mpd.DASH_PROFILE_LIVE)
	profileDashIf  = "http://dashif.org/guidelines/dash264"
	roleScheme     = "urn:mpeg:dash:role:2011"
	roleMain       = "main"
	mimeTypeMPD    = "application/dash+xml"
	timeFormatMPD  = time.RFC3339
	dumpFilePrefix = ".mpd-"
)

// Capabilities of the segment naming collaborator
// that constrain the manifest.
type Capabilities struct {
	// ExactTiming is set if media template contains $Time$.
	// Segment timeline must be exact then.
	ExactTiming bool
}

// Representation describes the single media representation.
type Representation struct {
	ID                string
	ContentType       string
	MimeType          string
	Codecs            string
	Lang              string
	Bandwidth         int64
	AudioSamplingRate int64
	Initialization    string
	Media             string
}

type Manifest struct {
	log       *slog.Logger
	params    params.Params
	caps      Capabilities
	rep       Representation
	startTime time.Time
	mainRole  bool

	mutex sync.RWMutex
	attrs models.Attributes
	man   *mpd.MPD
}

// New returns new Manifest with empty timeline.
func New(
	log *slog.Logger,
	p params.Params,
	caps Capabilities,
	rep Representation,
	startTime time.Time,
) *Manifest {
	m := &Manifest{
		log:       log,
		params:    p,
		caps:      caps,
		rep:       rep,
		startTime: startTime,
	}

	m.mainRole = m.matchDefaultLanguage()
	m.Update(nil, nil, startTime)

	return m
}

// CompactionTolerance returns tolerance the timeline
// must be built with.
//
// Approximation is disabled if the template needs
// exact segment timing.
func CompactionTolerance(p params.Params, caps Capabilities) int64 {
	if !approximate(p, caps) {
		return 0
	}
	return p.Tolerance()
}

func approximate(p params.Params, caps Capabilities) bool {
	return p.AllowApproximateSegmentTimeline() && !caps.ExactTiming
}

// MimeType returns MPD content type.
func MimeType() string {
	return mimeTypeMPD
}

// Attributes builds manifest attributes
// for given timeline state.
func (m *Manifest) Attributes(runs []models.Run, ev *models.Eviction, publish time.Time) models.Attributes {
	p := m.params

	profiles := []string{profileLive}
	if p.GenerateDashIfIopCompliantMPD() {
		profiles = append(profiles, profileDashIf)
	}

	attrs := models.Attributes{
		Profiles:                   profiles,
		Static:                     p.GenerateStaticLiveMPD(),
		AvailabilityStartTime:      m.startTime.UTC(),
		PublishTime:                publish.UTC(),
		MinBufferTime:              p.MinBufferTime().Seconds(),
		MinimumUpdatePeriod:        p.MinimumUpdatePeriod().Seconds(),
		SuggestedPresentationDelay: p.SuggestedPresentationDelay().Seconds(),
		TimeShiftBufferDepth:       p.TimeShiftBufferDepth().Seconds(),
		BaseURLs:                   p.BaseURLs(),
		UTCTimings:                 p.UTCTimings(),
		DefaultLanguage:            p.DefaultLanguage(),
		MainRole:                   m.mainRole,
		Timescale:                  p.Timescale(),
	}

	if ev != nil {
		attrs.LastEviction = ptr.Ptr(*ev)
	}

	if el, ok := Elide(runs); ok && approximate(p, m.caps) {
		attrs.Elided = &el
	} else {
		attrs.Timeline = append(make([]models.Run, 0, len(runs)), runs...)
	}

	return attrs
}

// Elide returns uniform representation of runs
// if every segment but the last one has the same
// duration and segments are contiguous.
//
// The first segment must lie on the d-grid of the
// period, so that $Number$ addressing from the
// period origin gives the same boundaries.
func Elide(runs []models.Run) (models.ElidedTimeline, bool) {
	if len(runs) == 0 {
		return models.ElidedTimeline{}, false
	}

	d := runs[0].Duration
	if runs[0].Start%d != 0 {
		return models.ElidedTimeline{}, false
	}

	startNumber := runs[0].FirstIndex - runs[0].Start/d
	if startNumber < 0 {
		return models.ElidedTimeline{}, false
	}

	var segments int64

	for i, r := range runs {
		if i > 0 {
			prev := runs[i-1]
			if r.Start != prev.End() || r.FirstIndex != prev.LastIndex()+1 {
				return models.ElidedTimeline{}, false
			}
		}

		isLast := i == len(runs)-1
		if r.Duration != d && !(isLast && r.Repeat == 1) {
			return models.ElidedTimeline{}, false
		}

		segments += r.Repeat
	}

	return models.ElidedTimeline{
		Duration:     d,
		LastDuration: runs[len(runs)-1].Duration,
		Segments:     segments,
		StartNumber:  startNumber,
		FirstIndex:   runs[0].FirstIndex,
		Start:        runs[0].Start,
	}, true
}

// Update rebuilds manifest.
func (m *Manifest) Update(runs []models.Run, ev *models.Eviction, publish time.Time) models.Attributes {
	attrs := m.Attributes(runs, ev, publish)
	man := m.build(attrs)

	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.attrs = attrs
	m.man = man

	return attrs
}

// Current returns attributes of the last update.
func (m *Manifest) Current() models.Attributes {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.attrs
}

// Encode returns serialized manifest.
func (m *Manifest) Encode() (string, error) {
	const op = "Manifest.Encode"

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	res, err := m.man.WriteToString()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}

// build converts attributes into go-dash manifest.
func (m *Manifest) build(attrs models.Attributes) *mpd.MPD {
	p := m.params

	opts := []mpd.AttrMPD{
		mpd.AttrPublishTime(attrs.PublishTime.Format(timeFormatMPD)),
	}
	if p.MinimumUpdatePeriod() > 0 {
		opts = append(opts, mpd.AttrMinimumUpdatePeriod(durationString(p.MinimumUpdatePeriod())))
	}

	man := mpd.NewDynamicMPD(
		mpd.DASH_PROFILE_LIVE,
		attrs.AvailabilityStartTime.Format(timeFormatMPD),
		durationString(p.MinBufferTime()),
		opts...,
	)
	man.Profiles = ptr.Ptr(strings.Join(attrs.Profiles, ","))

	if p.TimeShiftBufferDepth() > 0 {
		man.TimeShiftBufferDepth = ptr.Ptr(durationString(p.TimeShiftBufferDepth()))
	}
	if p.SuggestedPresentationDelay() > 0 {
		man.SuggestedPresentationDelay = ptr.Ptr(mpd.Duration(p.SuggestedPresentationDelay()))
	}

	man.BaseURL = attrs.BaseURLs

	// go-dash keeps a single UTCTiming,
	// the first one is the preferred.
	man.UTCTiming = nil
	if len(attrs.UTCTimings) > 0 {
		man.UTCTiming = &mpd.DescriptorType{
			SchemeIDURI: ptr.Ptr(attrs.UTCTimings[0].SchemeIDURI),
			Value:       ptr.Ptr(attrs.UTCTimings[0].Value),
		}
	}

	as := &mpd.AdaptationSet{
		ID:               ptr.Ptr("0"),
		ContentType:      ptr.Ptr(m.rep.ContentType),
		SegmentAlignment: ptr.Ptr(true),
		Representations:  []*mpd.Representation{m.representation(attrs)},
		CommonAttributesAndElements: mpd.CommonAttributesAndElements{
			StartWithSAP: ptr.Ptr[int64](1),
		},
	}
	if m.rep.Lang != "" {
		as.Lang = ptr.Ptr(m.rep.Lang)
	}
	if attrs.MainRole {
		as.Roles = []*mpd.Role{{
			SchemeIDURI: ptr.Ptr(roleScheme),
			Value:       ptr.Ptr(roleMain),
		}}
	}

	man.Periods = []*mpd.Period{{
		ID:             "0",
		Start:          ptr.Ptr(mpd.Duration(0)),
		AdaptationSets: []*mpd.AdaptationSet{as},
	}}

	return man
}

func (m *Manifest) representation(attrs models.Attributes) *mpd.Representation {
	st := &mpd.SegmentTemplate{
		Initialization: ptr.Ptr(m.rep.Initialization),
		Media:          ptr.Ptr(m.rep.Media),
		Timescale:      ptr.Ptr(attrs.Timescale),
	}

	runs := attrs.Timeline

	if el := attrs.Elided; el != nil {
		if el.Uniform() {
			st.Duration = ptr.Ptr(el.Duration)
			st.StartNumber = ptr.Ptr(el.StartNumber)
			return m.newRepresentation(st)
		}
		// @duration can't express shorter last segment
		runs = el.Runs()
	}

	if len(runs) > 0 {
		st.StartNumber = ptr.Ptr(runs[0].FirstIndex)
	}
	st.SegmentTimeline = &mpd.SegmentTimeline{
		Segments: timelineSegments(runs),
	}

	return m.newRepresentation(st)
}

func (m *Manifest) newRepresentation(st *mpd.SegmentTemplate) *mpd.Representation {
	rep := &mpd.Representation{
		ID:              ptr.Ptr(m.rep.ID),
		Bandwidth:       ptr.Ptr(m.rep.Bandwidth),
		Codecs:          ptr.Ptr(m.rep.Codecs),
		SegmentTemplate: st,
		CommonAttributesAndElements: mpd.CommonAttributesAndElements{
			MimeType: ptr.Ptr(m.rep.MimeType),
		},
	}
	if m.rep.AudioSamplingRate > 0 {
		rep.AudioSamplingRate = ptr.Ptr(m.rep.AudioSamplingRate)
	}

	return rep
}

// timelineSegments converts runs to S elements.
// S@t is written for the first run and after time gaps.
func timelineSegments(runs []models.Run) []*mpd.SegmentTimelineSegment {
	res := make([]*mpd.SegmentTimelineSegment, 0, len(runs))

	for i, r := range runs {
		s := &mpd.SegmentTimelineSegment{
			Duration: uint64(r.Duration),
		}
		if i == 0 || r.Start != runs[i-1].End() {
			s.StartTime = ptr.Ptr(uint64(r.Start))
		}
		if r.Repeat > 1 {
			s.RepeatCount = ptr.Ptr(int(r.Repeat - 1))
		}
		res = append(res, s)
	}

	return res
}

// durationString casts special duration type.
func durationString(d time.Duration) string {
	md := mpd.Duration(d)
	return md.String()
}

// matchDefaultLanguage reports whether representation
// language matches default language.
func (m *Manifest) matchDefaultLanguage() bool {
	const op = "Manifest.matchDefaultLanguage"

	def, ok := m.params.DefaultLanguageTag()
	if !ok || m.rep.Lang == "" {
		return false
	}

	tag, err := language.Parse(m.rep.Lang)
	if err != nil {
		m.log.Warn(
			"bad representation language",
			slog.String("op", op),
			slog.String("lang", m.rep.Lang),
			sl.Err(err),
		)
		return false
	}

	_, _, conf := language.NewMatcher([]language.Tag{def}).Match(tag)

	return conf >= language.High
}

// Dump writes manifest to the output path.
//
// The file is replaced atomically, so readers
// never see a partially written manifest.
func (m *Manifest) Dump() error {
	const op = "Manifest.Dump"

	log := m.log.With(
		slog.String("op", op),
	)

	path := m.params.MpdOutput()
	if path == "" {
		return nil
	}

	data, err := m.Encode()
	if err != nil {
		log.Error("failed to encode manifest", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), dumpFilePrefix)
	if err != nil {
		log.Error("failed to create temp file", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(data); err != nil {
		tmp.Close()
		log.Error("failed to write manifest", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tmp.Close(); err != nil {
		log.Error("failed to close manifest", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		log.Error("failed to replace manifest", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// CleanUp deletes manifest
func (m *Manifest) CleanUp() {
	const op = "Manifest.CleanUp"

	log := m.log.With(
		slog.String("op", op),
	)

	path := m.params.MpdOutput()
	if path == "" {
		return
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn("mpd not exists")
		} else {
			log.Error("failed to delete mpd", sl.Err(err))
		}
	}
}
