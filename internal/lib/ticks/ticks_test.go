package ticks_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/GintGld/livempd/internal/lib/ticks"
)

func TestFromDuration(t *testing.T) {
	testCases := []struct {
		desc      string
		d         time.Duration
		timescale int64
		expect    int64
	}{
		{
			desc:      "whole seconds",
			d:         10 * time.Second,
			timescale: 1000,
			expect:    10000,
		},
		{
			desc:      "fraction",
			d:         2010 * time.Millisecond,
			timescale: 1000,
			expect:    2010,
		},
		{
			desc:      "audio timescale",
			d:         1500 * time.Millisecond,
			timescale: 44100,
			expect:    66150,
		},
		{
			desc:      "video timescale, long duration",
			d:         48 * time.Hour,
			timescale: 90000,
			expect:    48 * 3600 * 90000,
		},
		{
			desc:      "zero",
			d:         0,
			timescale: 90000,
			expect:    0,
		},
	}

	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			assert.Equal(t, tC.expect, ticks.FromDuration(tC.d, tC.timescale))
		})
	}
}

func TestToDuration(t *testing.T) {
	assert.Equal(t, 2010*time.Millisecond, ticks.ToDuration(2010, 1000))
	assert.Equal(t, 1500*time.Millisecond, ticks.ToDuration(66150, 44100))
	assert.Equal(t, 48*time.Hour, ticks.ToDuration(48*3600*90000, 90000))
}

func TestNear(t *testing.T) {
	assert.True(t, ticks.Near(2000, 2000, 0))
	assert.False(t, ticks.Near(2000, 2001, 0))
	assert.True(t, ticks.Near(2000, 2049, 50))
	assert.False(t, ticks.Near(2000, 2050, 50))
	assert.True(t, ticks.Near(2049, 2000, 50))
}

func TestSeconds(t *testing.T) {
	assert.InDelta(t, 2.01, ticks.Seconds(2010, 1000), 1e-9)
}
