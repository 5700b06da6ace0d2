package params_test

import (
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GintGld/livempd/internal/models"
	"github.com/GintGld/livempd/internal/service"
	"github.com/GintGld/livempd/internal/service/params"
)

func validRaw() params.Raw {
	return params.Raw{
		MpdOutput:                          "live.mpd",
		BaseURLs:                           []string{"https://cdn1.example.com/", "https://cdn2.example.com/"},
		MinBufferTime:                      2 * time.Second,
		MinimumUpdatePeriod:                5 * time.Second,
		TimeShiftBufferDepth:               30 * time.Second,
		PreservedSegmentsOutsideLiveWindow: 2,
		UTCTimings: []models.UTCTiming{
			{SchemeIDURI: "urn:mpeg:dash:utc:http-iso:2014", Value: "https://time.akamai.com/?isoms"},
		},
		DefaultLanguage:               "en",
		GenerateDashIfIopCompliantMPD: true,
		Timescale:                     1000,
		Tolerance:                     1,
	}
}

func TestNewValid(t *testing.T) {
	raw := validRaw()

	p, err := params.New(raw)
	require.NoError(t, err)

	assert.Equal(t, raw.BaseURLs, p.BaseURLs())
	assert.Equal(t, raw.UTCTimings, p.UTCTimings())
	assert.Equal(t, 2*time.Second, p.MinBufferTime())
	assert.Equal(t, int64(30000), p.TimeShiftBufferDepthTicks())
	assert.Equal(t, 2, p.PreservedSegmentsOutsideLiveWindow())
	assert.False(t, p.Unbounded())

	tag, ok := p.DefaultLanguageTag()
	assert.True(t, ok)
	assert.Equal(t, "en", tag.String())
}

func TestNewInvalid(t *testing.T) {
	testCases := []struct {
		desc   string
		modify func(r *params.Raw)
	}{
		{
			desc:   "zero min buffer time",
			modify: func(r *params.Raw) { r.MinBufferTime = 0 },
		},
		{
			desc:   "negative update period",
			modify: func(r *params.Raw) { r.MinimumUpdatePeriod = -time.Second },
		},
		{
			desc:   "negative presentation delay",
			modify: func(r *params.Raw) { r.SuggestedPresentationDelay = -time.Second },
		},
		{
			desc:   "negative buffer depth",
			modify: func(r *params.Raw) { r.TimeShiftBufferDepth = -time.Second },
		},
		{
			desc:   "negative preserved segments",
			modify: func(r *params.Raw) { r.PreservedSegmentsOutsideLiveWindow = -1 },
		},
		{
			desc: "preserved segments without buffer depth",
			modify: func(r *params.Raw) {
				r.TimeShiftBufferDepth = 0
				r.PreservedSegmentsOutsideLiveWindow = 1
			},
		},
		{
			desc:   "zero timescale",
			modify: func(r *params.Raw) { r.Timescale = 0 },
		},
		{
			desc:   "negative tolerance",
			modify: func(r *params.Raw) { r.Tolerance = -1 },
		},
		{
			desc: "buffer depth shorter than a tick",
			modify: func(r *params.Raw) {
				r.Timescale = 1000
				r.TimeShiftBufferDepth = 500 * time.Microsecond
				r.PreservedSegmentsOutsideLiveWindow = 0
			},
		},
		{
			desc:   "empty utc scheme",
			modify: func(r *params.Raw) { r.UTCTimings = append(r.UTCTimings, models.UTCTiming{Value: "x"}) },
		},
		{
			desc:   "malformed language",
			modify: func(r *params.Raw) { r.DefaultLanguage = "not a language tag" },
		},
	}

	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			raw := validRaw()
			tC.modify(&raw)

			_, err := params.New(raw)
			require.ErrorIs(t, err, service.ErrConfigurationInvalid)
		})
	}
}

func TestBufferDepthOneTick(t *testing.T) {
	raw := validRaw()
	raw.TimeShiftBufferDepth = time.Millisecond

	p, err := params.New(raw)
	require.NoError(t, err)

	assert.False(t, p.Unbounded())
	assert.Equal(t, int64(1), p.TimeShiftBufferDepthTicks())
}

func TestUnboundedWithoutPreserved(t *testing.T) {
	raw := validRaw()
	raw.TimeShiftBufferDepth = 0
	raw.PreservedSegmentsOutsideLiveWindow = 0

	p, err := params.New(raw)
	require.NoError(t, err)
	assert.True(t, p.Unbounded())
	assert.Equal(t, int64(0), p.TimeShiftBufferDepthTicks())
}

func TestImmutable(t *testing.T) {
	raw := validRaw()
	raw.BaseURLs = nil
	for i := 0; i < 3; i++ {
		raw.BaseURLs = append(raw.BaseURLs, gofakeit.URL())
	}
	expect := append([]string{}, raw.BaseURLs...)

	p, err := params.New(raw)
	require.NoError(t, err)

	// neither the source slice nor the returned copy
	// can change the record
	raw.BaseURLs[0] = "changed"
	urls := p.BaseURLs()
	urls[1] = "changed"

	timings := p.UTCTimings()
	timings[0].Value = "changed"

	assert.Equal(t, expect, p.BaseURLs())
	assert.Equal(t, "https://time.akamai.com/?isoms", p.UTCTimings()[0].Value)
}

func TestDuplicateBaseURLsKept(t *testing.T) {
	raw := validRaw()
	raw.BaseURLs = []string{"a/", "a/", "b/"}

	p, err := params.New(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"a/", "a/", "b/"}, p.BaseURLs())
}
