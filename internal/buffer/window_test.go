package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"hlsengine/internal/models"
)

func segments(duration float64, starts ...float64) []models.Segment {
	out := make([]models.Segment, len(starts))
	for i, s := range starts {
		out[i] = models.Segment{StartTime: s, Duration: duration}
	}
	return out
}

func startTimes(segs []models.Segment) []float64 {
	out := make([]float64, len(segs))
	for i, s := range segs {
		out[i] = s.StartTime
	}
	return out
}

func TestSegmentsToLoad_FillsGapAndExtends(t *testing.T) {
	all := segments(6, 0, 6, 12, 18, 24, 30, 36)
	buffered := segments(6, 0, 6, 18, 24)

	got := SegmentsToLoad(all, buffered, 7, 24)
	assert.Equal(t, []float64{12, 30}, startTimes(got))
}

func TestSegmentsToLoad_Window(t *testing.T) {
	all := segments(6, 0, 6, 12, 18, 24, 30, 36, 42)

	assert.Equal(t, []float64{0, 6, 12, 18, 24}, startTimes(SegmentsToLoad(all, nil, 0, 30)))
	assert.Equal(t, []float64{36, 42}, startTimes(SegmentsToLoad(all, nil, 40, 0)), "default window")
	assert.Empty(t, SegmentsToLoad(all, all, 0, 30))
	assert.Empty(t, SegmentsToLoad(all, nil, 48, 30), "past the end")
}

func TestSegmentsToLoad_BufferedAtSameTimestampCounts(t *testing.T) {
	all := []models.Segment{{ID: "hi/0", StartTime: 0, Duration: 6}}
	buffered := []models.Segment{{ID: "lo/0", StartTime: 0, Duration: 6}}
	assert.Empty(t, SegmentsToLoad(all, buffered, 0, 30))
}

func TestBackBufferFlushPoint(t *testing.T) {
	segs := segments(6, 0, 6, 12, 18)

	assert.Equal(t, 6.0, BackBufferFlushPoint(segs, 18, 2))
	assert.Equal(t, 0.0, BackBufferFlushPoint(segs, 6, 2), "fewer than keep segments before")
	assert.Equal(t, 12.0, BackBufferFlushPoint(segs, 19, 2))
	assert.Equal(t, 18.0, BackBufferFlushPoint(segs, 19, 1))
	assert.Equal(t, 6.0, BackBufferFlushPoint(segs, 18, 0), "default keep")
}

func TestCovered(t *testing.T) {
	segs := segments(6, 0, 6, 12, 18)

	assert.True(t, Covered(segs, 0, 24, 1))
	assert.True(t, Covered(segs, 0, 24.8, 1))
	assert.False(t, Covered(segs, 0, 26, 1))
	assert.False(t, Covered(segments(6, 0, 12, 18), 0, 24, 1), "gap")
	assert.True(t, Covered(segments(6, 12, 18), 12, 24, 1), "from a flushed position")
	assert.False(t, Covered(nil, 0, 24, 1))
}
