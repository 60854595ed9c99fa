package captions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hlsengine/internal/media"
)

const sample = "\ufeffWEBVTT - English subtitles\n" +
	"X-TIMESTAMP-MAP=MPEGTS:900000,LOCAL:00:00:00.000\n" +
	"\n" +
	"NOTE this block is ignored\n" +
	"\n" +
	"STYLE\n" +
	"::cue { color: yellow }\n" +
	"\n" +
	"intro\n" +
	"00:00:01.000 --> 00:00:03.500 line:90% position:50% align:center\n" +
	"Hello there.\n" +
	"\n" +
	"00:04.250 --> 00:06.000\n" +
	"Two\n" +
	"lines.\n" +
	"\n" +
	"00:00:09.000 --> broken\n" +
	"skipped\n" +
	"\n" +
	"01:00:00.000 --> 01:00:02.000\r\n" +
	"Late.\r\n"

func TestParseWebVTT(t *testing.T) {
	cues, err := ParseWebVTT(sample)
	require.NoError(t, err)
	require.Len(t, cues, 3)

	assert.Equal(t, media.Cue{
		Start: 1, End: 3.5, Text: "Hello there.",
		Line: "90%", Position: "50%", Align: "center",
	}, cues[0])
	assert.Equal(t, 4.25, cues[1].Start)
	assert.Equal(t, "Two\nlines.", cues[1].Text)
	assert.Equal(t, 3600.0, cues[2].Start)
	assert.Equal(t, "Late.", cues[2].Text)
}

func TestParseWebVTT_Signature(t *testing.T) {
	_, err := ParseWebVTT("1\n00:00:01.000 --> 00:00:02.000\nhi\n")
	assert.ErrorIs(t, err, ErrNotWebVTT)

	cues, err := ParseWebVTT("WEBVTT\n")
	require.NoError(t, err)
	assert.Empty(t, cues)
}

func TestParseTimestamp(t *testing.T) {
	v, ok := ParseTimestamp("00:01:02.500")
	require.True(t, ok)
	assert.Equal(t, 62.5, v)

	v, ok = ParseTimestamp("10:00.000")
	require.True(t, ok)
	assert.Equal(t, 600.0, v)

	for _, bad := range []string{"", "12", "aa:00.000", "00:61.000", "1:2:3:4"} {
		_, ok := ParseTimestamp(bad)
		assert.False(t, ok, bad)
	}
}
