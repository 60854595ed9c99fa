package hls

import (
	"fmt"
	"strconv"
	"strings"

	"hlsengine/internal/models"
)

// ParseMedia parses the media manifest of track and returns a resolved copy.
// Segment and init URIs are resolved against the track's own URL. The input
// track is not modified.
func ParseMedia(text string, track *models.Track) (*models.Track, error) {
	lines, err := scanLines(text)
	if err != nil {
		return nil, err
	}

	resolved := track.Clone()
	resolved.BaseURL = track.URL
	resolved.Segments = make([]models.Segment, 0)
	resolved.Init = nil
	resolved.Duration = 0

	var (
		start    float64
		duration float64
		haveInf  bool
		rng      *models.ByteRange
		prevEnd  int64 = -1
	)

	for _, l := range lines {
		switch l.tag {
		case "EXTINF":
			d, ok := parseExtinf(l.value)
			if !ok {
				continue
			}
			duration, haveInf = d, true
		case "EXT-X-BYTERANGE":
			if r, ok := ParseByteRange(l.value, prevEnd); ok {
				rng = &r
			}
		case "EXT-X-MAP":
			attrs := ParseAttributes(l.value)
			uri := attrs["URI"]
			if uri == "" {
				continue
			}
			init := &models.InitSegment{URL: ResolveURL(track.URL, uri)}
			if br, ok := attrs["BYTERANGE"]; ok {
				if r, ok := ParseByteRange(br, -1); ok {
					init.ByteRange = &r
				}
			}
			resolved.Init = init
		case "":
			if !haveInf {
				continue
			}
			seg := models.Segment{
				ID:        fmt.Sprintf("%s/%d", track.ID, len(resolved.Segments)),
				URL:       ResolveURL(track.URL, l.value),
				StartTime: start,
				Duration:  duration,
				ByteRange: rng,
			}
			resolved.Segments = append(resolved.Segments, seg)
			start += duration
			if rng != nil {
				prevEnd = rng.End
			} else {
				prevEnd = -1
			}
			haveInf, rng = false, nil
		}
	}

	resolved.Duration = start
	return resolved, nil
}

// parseExtinf parses "<duration>,[<title>]".
func parseExtinf(v string) (float64, bool) {
	d, _, _ := strings.Cut(v, ",")
	f, err := strconv.ParseFloat(strings.TrimSpace(d), 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f, true
}
