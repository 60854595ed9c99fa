package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"hlsengine/internal/models"
	"hlsengine/internal/playback"
)

func ledger(end float64) *playback.TrackBuffer {
	return &playback.TrackBuffer{Segments: []models.Segment{{StartTime: 0, Duration: end}}}
}

func TestAdvance(t *testing.T) {
	pf := playback.Platform{Video: ledger(12), Audio: ledger(8)}

	next, ok := advance(2, 0.25, pf)
	assert.True(t, ok)
	assert.Equal(t, 2.25, next)

	next, ok = advance(7.9, 0.25, pf)
	assert.True(t, ok)
	assert.Equal(t, 8.0, next, "capped at the shortest buffer")

	_, ok = advance(8, 0.25, pf)
	assert.False(t, ok, "stalled at the buffered end")

	_, ok = advance(0, 0.25, playback.Platform{})
	assert.False(t, ok, "nothing buffered")
}
