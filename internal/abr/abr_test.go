package abr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hlsengine/internal/models"
)

func ladder() []*models.Track {
	return []*models.Track{
		{ID: "1080p", Bandwidth: 4000000, Width: 1920, Height: 1080},
		{ID: "360p", Bandwidth: 500000, Width: 640, Height: 360},
		{ID: "720p", Bandwidth: 2000000, Width: 1280, Height: 720},
	}
}

func TestSelectQuality(t *testing.T) {
	tests := []struct {
		bandwidth float64
		want      string
	}{
		{1000000, "360p"},
		{3000000, "720p"},
		{5000000, "1080p"},
		{100000, "360p"},
		{4000000, "720p"}, // 4M/0.85 exceeds 4M
	}
	for _, tt := range tests {
		got := SelectQuality(ladder(), tt.bandwidth, 0.85)
		require.NotNil(t, got)
		assert.Equal(t, tt.want, got.ID, "bandwidth %v", tt.bandwidth)
	}
}

func TestSelectQuality_TieBreakByPixels(t *testing.T) {
	tracks := []*models.Track{
		{ID: "small", Bandwidth: 1000000, Width: 640, Height: 360},
		{ID: "large", Bandwidth: 1000000, Width: 1280, Height: 720},
		{ID: "nodims", Bandwidth: 1000000},
	}
	assert.Equal(t, "large", SelectQuality(tracks, 10000000, 0.85).ID)
}

func TestSelectQuality_Edges(t *testing.T) {
	assert.Nil(t, SelectQuality(nil, 1e6, 0.85))
	assert.Equal(t, "360p", SelectQuality(ladder(), 1e6, 0).ID, "zero margin falls back to default")

	in := ladder()
	SelectQuality(in, 1e6, 0.85)
	assert.Equal(t, "1080p", in[0].ID, "input order is not modified")
}

func TestEstimator(t *testing.T) {
	e := NewEstimator(1e6)
	assert.Equal(t, 1e6, e.Estimate())

	// Too small to count.
	e.Sample(1000, time.Millisecond)
	assert.Equal(t, 1e6, e.Estimate())

	// 500 KB per second = 4 Mbps.
	for i := 0; i < 4; i++ {
		e.Sample(500*1000, time.Second)
	}
	assert.InDelta(t, 4e6, e.Estimate(), 1e3)

	// A drop is picked up by the fast average and wins.
	e.Sample(125*1000, time.Second)
	assert.Less(t, e.Estimate(), 4e6)
}
