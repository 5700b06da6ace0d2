package cleaner

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GintGld/livempd/internal/lib/logger/handlers/slogdiscard"
	"github.com/GintGld/livempd/internal/models"
)

var binaryChunk = []byte{0x01, 0x02, 0x03, 0x00, 0xfe, 0xff, 0x00, 0x10}

type metricsMock struct {
	cleaned atomic.Int64
}

func (m *metricsMock) IncFilesCleaned() {
	m.cleaned.Add(1)
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	m := &metricsMock{}
	c := New(slogdiscard.NewDiscardLogger(), dir, "chunk-$RepresentationID$-$Number%03d$.m4s", "a0", 96000, 0, m)

	writeFile(t, filepath.Join(dir, "chunk-a0-001.m4s"), binaryChunk)
	writeFile(t, filepath.Join(dir, "chunk-a0-002.m4s"), binaryChunk)
	// not a media file, must be kept
	writeFile(t, filepath.Join(dir, "chunk-a0-003.m4s"), []byte(`<?xml version="1.0"?><MPD></MPD>`))

	removed := c.Remove([]models.Segment{
		{Index: 1, Start: 0, Duration: 2000},
		{Index: 2, Start: 2000, Duration: 2000},
		{Index: 3, Start: 4000, Duration: 2000},
		// does not exist
		{Index: 4, Start: 6000, Duration: 2000},
	})

	assert.Equal(t, 2, removed)
	assert.Equal(t, int64(2), m.cleaned.Load())

	assert.NoFileExists(t, filepath.Join(dir, "chunk-a0-001.m4s"))
	assert.NoFileExists(t, filepath.Join(dir, "chunk-a0-002.m4s"))
	assert.FileExists(t, filepath.Join(dir, "chunk-a0-003.m4s"))
}

func TestRemoveByTime(t *testing.T) {
	dir := t.TempDir()
	c := New(slogdiscard.NewDiscardLogger(), dir, "$Time$.m4s", "0", 0, 0, nil)

	writeFile(t, filepath.Join(dir, "18000.m4s"), binaryChunk)

	removed := c.Remove([]models.Segment{{Index: 10, Start: 18000, Duration: 2000}})
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, filepath.Join(dir, "18000.m4s"))
}

func TestRunDelay(t *testing.T) {
	const delay = 100 * time.Millisecond

	dir := t.TempDir()
	m := &metricsMock{}
	c := New(slogdiscard.NewDiscardLogger(), dir, "$Number$.m4s", "0", 0, delay, m)

	writeFile(t, filepath.Join(dir, "1.m4s"), binaryChunk)
	writeFile(t, filepath.Join(dir, "2.m4s"), binaryChunk)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notices := make(chan models.EvictionNotice)
	done := make(chan struct{})
	go func() {
		c.Run(ctx, notices)
		close(done)
	}()

	notices <- models.EvictionNotice{
		Eviction: models.Eviction{FromIndex: 1, ThroughIndex: 2, Segments: 2},
		Evicted: []models.Segment{
			{Index: 1, Start: 0, Duration: 2000},
			{Index: 2, Start: 2000, Duration: 2000},
		},
	}

	// files are kept until delay passes
	assert.FileExists(t, filepath.Join(dir, "1.m4s"))

	assert.Eventually(t, func() bool {
		return m.cleaned.Load() == 2
	}, 2*time.Second, 10*time.Millisecond)

	assert.NoFileExists(t, filepath.Join(dir, "1.m4s"))
	assert.NoFileExists(t, filepath.Join(dir, "2.m4s"))

	close(notices)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleaner did not stop")
	}
}
