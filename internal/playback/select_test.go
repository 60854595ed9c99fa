package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hlsengine/internal/hls"
	"hlsengine/internal/models"
)

func parsedDemuxed(t *testing.T) *models.Presentation {
	t.Helper()
	p, err := hls.ParseMultivariant(demuxedMaster, base+"master.m3u8")
	require.NoError(t, err)
	return p
}

func TestSelectTracks(t *testing.T) {
	p := parsedDemuxed(t)

	tests := []struct {
		name      string
		policy    SelectionPolicy
		videoBW   int
		audioLang string
		textName  string
	}{
		{
			name:      "conservative default",
			policy:    SelectionPolicy{BandwidthBps: 1e6, SafetyMargin: 0.85},
			videoBW:   800000,
			audioLang: "en",
		},
		{
			name:      "measured bandwidth",
			policy:    SelectionPolicy{BandwidthBps: 5e6, SafetyMargin: 0.85, AudioLanguage: "de"},
			videoBW:   3000000,
			audioLang: "de",
		},
		{
			name:      "unknown audio language falls back to default",
			policy:    SelectionPolicy{BandwidthBps: 1e6, SafetyMargin: 0.85, AudioLanguage: "fr"},
			videoBW:   800000,
			audioLang: "en",
		},
		{
			name:      "subtitles opt in, forced excluded",
			policy:    SelectionPolicy{BandwidthBps: 1e6, SafetyMargin: 0.85, SubtitleLanguage: "en"},
			videoBW:   800000,
			audioLang: "en",
			textName:  "English",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := SelectTracks(p, tt.policy)
			assert.Equal(t, tt.videoBW, p.Track(sel.Video).Bandwidth)
			assert.Equal(t, tt.audioLang, p.Track(sel.Audio).Language)
			if tt.textName == "" {
				assert.Empty(t, sel.Text)
			} else {
				assert.Equal(t, tt.textName, p.Track(sel.Text).Name)
			}
		})
	}
}

func TestSelectText_ForcedOnlyWhenIncluded(t *testing.T) {
	tracks := []*models.Track{
		{ID: "f", Kind: models.KindText, Language: "en", Forced: true},
	}
	assert.Nil(t, selectText(tracks, "en", false))
	assert.Equal(t, "f", selectText(tracks, "en", true).ID)
}

func TestSelectAudio_PrefersVariantGroup(t *testing.T) {
	tracks := []*models.Track{
		{ID: "a1", Language: "en", AudioGroup: "stereo", Default: true},
		{ID: "a2", Language: "en", AudioGroup: "surround"},
		{ID: "a3", Language: "de", AudioGroup: "surround", Default: true},
	}
	variant := &models.Track{AudioGroup: "surround"}
	assert.Equal(t, "a2", selectAudio(tracks, variant, "en").ID)
	assert.Equal(t, "a3", selectAudio(tracks, variant, "").ID)
	assert.Equal(t, "a1", selectAudio(tracks, nil, "").ID)
	assert.Equal(t, "a1", selectAudio(tracks, &models.Track{AudioGroup: "missing"}, "").ID)
	assert.Nil(t, selectAudio(nil, variant, "en"))
}

func TestLanguageMatches(t *testing.T) {
	assert.True(t, languageMatches("en", "EN"))
	assert.True(t, languageMatches("en", "en-US"))
	assert.True(t, languageMatches("en-GB", "en"))
	assert.False(t, languageMatches("en-GB", "en-US"))
	assert.False(t, languageMatches("", "en"))
	assert.False(t, languageMatches("de", "en"))
}

func TestMimeType(t *testing.T) {
	fmp4 := &models.Track{
		Codecs:   []string{"avc1.64001f"},
		Init:     &models.InitSegment{URL: "init.mp4"},
		Segments: []models.Segment{{URL: "s0.m4s"}},
	}
	ts := &models.Track{
		Codecs:   []string{"avc1.4d401e", "mp4a.40.2"},
		Segments: []models.Segment{{URL: "https://cdn.test/s0.TS?token=1"}},
	}
	aac := &models.Track{
		Codecs:   []string{"mp4a.40.2"},
		Segments: []models.Segment{{URL: "a0.aac"}},
	}

	assert.Equal(t, `video/mp4; codecs="avc1.64001f"`, MimeType(models.KindVideo, fmp4))
	assert.Equal(t, `video/mp2t; codecs="avc1.4d401e,mp4a.40.2"`, MimeType(models.KindVideo, ts))
	assert.Equal(t, `audio/aac; codecs="mp4a.40.2"`, MimeType(models.KindAudio, aac))
	assert.Equal(t, "audio/mp4", MimeType(models.KindAudio, &models.Track{Init: &models.InitSegment{}}))
}
