package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePresentation() *Presentation {
	p := NewPresentation("https://example.com/master.m3u8")
	p.SelectionSets = []SelectionSet{
		{
			ID:   "video",
			Kind: KindVideo,
			SwitchingSets: []SwitchingSet{{
				ID: "v",
				Tracks: []*Track{
					{ID: "v1", Kind: KindVideo, Bandwidth: 500000},
					{ID: "v2", Kind: KindVideo, Bandwidth: 2000000},
				},
			}},
		},
		{
			ID:   "audio",
			Kind: KindAudio,
			SwitchingSets: []SwitchingSet{{
				ID:     "a",
				Tracks: []*Track{{ID: "a1", Kind: KindAudio}},
			}},
		},
	}
	return p
}

func TestPresentation_WithTrack_structuralCopy(t *testing.T) {
	p := samplePresentation()
	resolved := p.Track("v2").Clone()
	resolved.Segments = []Segment{{ID: "s0", Duration: 6}}

	next := p.WithTrack(resolved)

	require.NotSame(t, p, next)
	assert.False(t, p.Track("v2").IsResolved(), "old snapshot must stay unresolved")
	assert.True(t, next.Track("v2").IsResolved())
	assert.Same(t, p.Track("v1"), next.Track("v1"), "untouched tracks are shared")
	assert.Same(t, p.Track("a1"), next.Track("a1"))
}

func TestPresentation_WithTrack_unknownID(t *testing.T) {
	p := samplePresentation()
	assert.Same(t, p, p.WithTrack(&Track{ID: "missing"}))
}

func TestPresentation_WithDuration(t *testing.T) {
	p := samplePresentation()
	assert.False(t, p.HasDuration())

	next := p.WithDuration(24)
	assert.False(t, p.HasDuration())
	require.True(t, next.HasDuration())
	assert.Equal(t, 24.0, *next.Duration)
	assert.Equal(t, 24.0, *next.EndTime)
}

func TestPresentation_Tracks(t *testing.T) {
	p := samplePresentation()
	assert.Len(t, p.Tracks(KindVideo), 2)
	assert.Len(t, p.Tracks(KindAudio), 1)
	assert.Empty(t, p.Tracks(KindText))
	assert.True(t, p.IsResolved())
	assert.False(t, NewPresentation("x").IsResolved())
}

func TestFrameRate(t *testing.T) {
	assert.InDelta(t, 29.97, FrameRate{Numerator: 30000, Denominator: 1001}.Value(), 0.001)
	assert.Equal(t, 25.0, FrameRate{Numerator: 25}.Value())
	assert.Equal(t, "30000/1001", FrameRate{Numerator: 30000, Denominator: 1001}.String())
}

func TestIsAudioCodec(t *testing.T) {
	assert.True(t, IsAudioCodec("mp4a.40.2"))
	assert.True(t, IsAudioCodec("ec-3"))
	assert.False(t, IsAudioCodec("avc1.64001f"))
	assert.True(t, HasAudioCodec([]string{"avc1.64001f", "mp4a.40.2"}))
}
