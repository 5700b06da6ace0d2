package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GintGld/livempd/internal/models"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	return path
}

func TestMustLoadPath(t *testing.T) {
	path := writeConfig(t, `
env: "local"
storage_path: "./storage/journal.db"
token_ttl: 2h
http_server:
  address: "localhost:8082"
  timeout: 5s
mpd:
  output: "./stream/live.mpd"
  base_urls:
    - "https://cdn-a.example.com/live/"
    - "https://cdn-b.example.com/live/"
  time_shift_buffer_depth: 10s
  preserved_segments_outside_live_window: 1
  utc_timings:
    - scheme_id_uri: "urn:mpeg:dash:utc:http-iso:2014"
      value: "https://time.akamai.com/?iso"
  default_language: "ru"
  timescale: 1000
  tolerance: 10
  representation:
    lang: "ru"
    media: "$Time$.m4s"
dash:
  segment_dir: "./stream"
  cleanup_delay: 1m
`)

	cfg := MustLoadPath(path)

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "localhost:8082", cfg.HTTPServer.Address)
	assert.Equal(t, 5*time.Second, cfg.HTTPServer.Timeout)

	assert.Equal(t, "./stream/live.mpd", cfg.Mpd.Output)
	assert.Equal(t, []string{"https://cdn-a.example.com/live/", "https://cdn-b.example.com/live/"}, cfg.Mpd.BaseURLs)
	assert.Equal(t, 10*time.Second, cfg.Mpd.TimeShiftBufferDepth)
	assert.Equal(t, 1, cfg.Mpd.PreservedSegmentsOutsideLiveWindow)
	assert.Equal(t, []models.UTCTiming{{
		SchemeIDURI: "urn:mpeg:dash:utc:http-iso:2014",
		Value:       "https://time.akamai.com/?iso",
	}}, cfg.Mpd.UTCTimings)
	assert.Equal(t, "ru", cfg.Mpd.DefaultLanguage)
	assert.Equal(t, int64(1000), cfg.Mpd.Timescale)
	assert.Equal(t, int64(10), cfg.Mpd.Tolerance)
	assert.Equal(t, "$Time$.m4s", cfg.Mpd.Representation.Media)

	// defaults
	assert.Equal(t, 2*time.Second, cfg.Mpd.MinBufferTime)
	assert.True(t, cfg.Mpd.AllowApproximateSegmentTimeline)
	assert.Equal(t, "audio", cfg.Mpd.Representation.ContentType)
	assert.Equal(t, int64(96000), cfg.Mpd.Representation.Bandwidth)
	assert.True(t, cfg.Dash.OnStart)
	assert.Equal(t, 2*time.Second, cfg.Dash.RefreshPeriod)
	assert.Equal(t, time.Minute, cfg.Dash.CleanupDelay)
}

func TestMustLoadPathFail(t *testing.T) {
	testCases := []struct {
		desc string
		path func(t *testing.T) string
	}{
		{
			desc: "no file",
			path: func(t *testing.T) string { return filepath.Join(t.TempDir(), "none.yaml") },
		},
		{
			desc: "required field missing",
			path: func(t *testing.T) string { return writeConfig(t, "env: local\n") },
		},
	}

	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			path := tC.path(t)
			assert.Panics(t, func() { MustLoadPath(path) })
		})
	}
}
