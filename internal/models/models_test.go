package models_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GintGld/livempd/internal/models"
)

func TestRunExpand(t *testing.T) {
	runs := []models.Run{
		{Start: 0, Duration: 2000, Repeat: 3, FirstIndex: 1},
		{Start: 6000, Duration: 5000, Repeat: 1, FirstIndex: 4},
	}

	expect := []models.Segment{
		{Index: 1, Start: 0, Duration: 2000},
		{Index: 2, Start: 2000, Duration: 2000},
		{Index: 3, Start: 4000, Duration: 2000},
		{Index: 4, Start: 6000, Duration: 5000},
	}

	assert.Equal(t, expect, models.Expand(runs))
	assert.Equal(t, int64(6000), runs[0].End())
	assert.Equal(t, int64(3), runs[0].LastIndex())
	assert.Equal(t, int64(11000), runs[1].End())
}

func TestRunMarshal(t *testing.T) {
	res, err := json.Marshal(models.Run{Start: 10, Duration: 2, Repeat: 4, FirstIndex: 7})
	require.NoError(t, err)

	require.JSONEq(t, `{"t":10,"d":2,"repeat":4,"firstIndex":7}`, string(res))
}

func TestElidedRuns(t *testing.T) {
	testCases := []struct {
		desc string
		el   models.ElidedTimeline
		runs []models.Run
	}{
		{
			desc: "uniform",
			el:   models.ElidedTimeline{Duration: 2000, LastDuration: 2000, Segments: 4, StartNumber: 1, FirstIndex: 6, Start: 10000},
			runs: []models.Run{{Start: 10000, Duration: 2000, Repeat: 4, FirstIndex: 6}},
		},
		{
			desc: "shorter last segment",
			el:   models.ElidedTimeline{Duration: 2000, LastDuration: 500, Segments: 4, StartNumber: 1, FirstIndex: 6, Start: 10000},
			runs: []models.Run{
				{Start: 10000, Duration: 2000, Repeat: 3, FirstIndex: 6},
				{Start: 16000, Duration: 500, Repeat: 1, FirstIndex: 9},
			},
		},
		{
			desc: "single short segment",
			el:   models.ElidedTimeline{Duration: 2000, LastDuration: 500, Segments: 1, FirstIndex: 6, Start: 10000},
			runs: []models.Run{{Start: 10000, Duration: 500, Repeat: 1, FirstIndex: 6}},
		},
	}

	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			assert.Equal(t, tC.runs, tC.el.Runs())
			assert.Equal(t, models.Expand(tC.runs), tC.el.Expand())
		})
	}
}
