// Package hls parses HLS multivariant and media manifests into the
// presentation model. Parsing is tolerant: unknown tags and attributes that
// fail to parse are skipped.
package hls

import (
	"bufio"
	"errors"
	"strconv"
	"strings"

	"hlsengine/internal/models"
)

// ErrMissingHeader is returned when a body does not start with #EXTM3U.
var ErrMissingHeader = errors.New("hls: missing #EXTM3U header")

// line is one non-empty manifest line split into tag name and value.
// For URI lines tag is empty and value holds the URI.
type line struct {
	tag   string
	value string
}

// scanLines splits text into trimmed, non-empty lines and verifies the header.
func scanLines(text string) ([]line, error) {
	var lines []line
	text = strings.TrimPrefix(text, "\ufeff")
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	header := false
	for sc.Scan() {
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		if !header {
			if raw != "#EXTM3U" {
				return nil, ErrMissingHeader
			}
			header = true
			continue
		}
		if !strings.HasPrefix(raw, "#") {
			lines = append(lines, line{value: raw})
			continue
		}
		if !strings.HasPrefix(raw, "#EXT") {
			continue // comment
		}
		name, value, _ := strings.Cut(raw[1:], ":")
		lines = append(lines, line{tag: name, value: value})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if !header {
		return nil, ErrMissingHeader
	}
	return lines, nil
}

// ParseMultivariant parses a multivariant (master) manifest fetched from
// baseURL into an unresolved Presentation. The result never contains segments.
func ParseMultivariant(text, baseURL string) (*models.Presentation, error) {
	lines, err := scanLines(text)
	if err != nil {
		return nil, err
	}

	var (
		video, audio, subtitles []*models.Track
		pending                 map[string]string
	)
	variantCodecs := make(map[*models.Track][]string)

	for _, l := range lines {
		switch l.tag {
		case "EXT-X-STREAM-INF":
			pending = ParseAttributes(l.value)
		case "EXT-X-MEDIA":
			if t := parseRendition(ParseAttributes(l.value), baseURL); t != nil {
				if t.Kind == models.KindAudio {
					audio = append(audio, t)
				} else {
					subtitles = append(subtitles, t)
				}
			}
		case "":
			if pending == nil {
				continue
			}
			t, codecs := parseVariant(pending, l.value, baseURL)
			variantCodecs[t] = codecs
			video = append(video, t)
			pending = nil
		}
	}

	backfillAudioCodecs(audio, video, variantCodecs)
	stripDemuxedAudioCodecs(audio, video)

	p := &models.Presentation{
		ID:            models.NewID(),
		URL:           baseURL,
		BaseURL:       baseURL,
		SelectionSets: []models.SelectionSet{},
	}
	for _, group := range []struct {
		kind   models.Kind
		tracks []*models.Track
	}{
		{models.KindVideo, video},
		{models.KindAudio, audio},
		{models.KindText, subtitles},
	} {
		if len(group.tracks) == 0 {
			continue
		}
		p.SelectionSets = append(p.SelectionSets, models.SelectionSet{
			ID:   models.NewID(),
			Kind: group.kind,
			SwitchingSets: []models.SwitchingSet{{
				ID:      models.NewID(),
				BaseURL: baseURL,
				Tracks:  group.tracks,
			}},
		})
	}
	return p, nil
}

// parseVariant builds a video track from EXT-X-STREAM-INF attributes and the
// URI line that follows. It also returns the variant's full codec list.
// Audio codecs stay on the track until stripDemuxedAudioCodecs knows which
// groups have renditions of their own.
func parseVariant(attrs map[string]string, uri, baseURL string) (*models.Track, []string) {
	t := &models.Track{
		ID:            models.NewID(),
		Kind:          models.KindVideo,
		URL:           ResolveURL(baseURL, uri),
		AudioGroup:    attrs["AUDIO"],
		SubtitleGroup: attrs["SUBTITLES"],
		Name:          attrs["NAME"],
	}
	if bw, err := strconv.Atoi(attrs["BANDWIDTH"]); err == nil {
		t.Bandwidth = bw
	}
	if w, h, ok := ParseResolution(attrs["RESOLUTION"]); ok {
		t.Width, t.Height = w, h
	}
	if fr, ok := ParseFrameRate(attrs["FRAME-RATE"]); ok {
		t.FrameRate = fr
	}

	codecs := ParseCodecs(attrs["CODECS"])
	t.Codecs = codecs
	return t, codecs
}

// parseRendition builds an audio or text track from EXT-X-MEDIA attributes.
// Renditions without a URI and unsupported types return nil.
func parseRendition(attrs map[string]string, baseURL string) *models.Track {
	var kind models.Kind
	switch attrs["TYPE"] {
	case "AUDIO":
		kind = models.KindAudio
	case "SUBTITLES":
		kind = models.KindText
	default:
		return nil
	}
	uri, ok := attrs["URI"]
	if !ok || uri == "" {
		return nil
	}

	autoselect := attrs["AUTOSELECT"] == "YES"
	t := &models.Track{
		ID:         models.NewID(),
		Kind:       kind,
		URL:        ResolveURL(baseURL, uri),
		Name:       attrs["NAME"],
		Language:   attrs["LANGUAGE"],
		Autoselect: autoselect,
		Forced:     attrs["FORCED"] == "YES",
		Default:    attrs["DEFAULT"] == "YES" && autoselect,
	}
	if kind == models.KindAudio {
		t.AudioGroup = attrs["GROUP-ID"]
	} else {
		t.SubtitleGroup = attrs["GROUP-ID"]
	}
	if codecs := ParseCodecs(attrs["CODECS"]); len(codecs) > 0 {
		t.Codecs = codecs
	}
	return t
}

// backfillAudioCodecs copies the audio codecs declared on variants onto the
// audio renditions of the group those variants reference.
func backfillAudioCodecs(audio, video []*models.Track, variantCodecs map[*models.Track][]string) {
	for _, a := range audio {
		if len(a.Codecs) > 0 || a.AudioGroup == "" {
			continue
		}
		for _, v := range video {
			if v.AudioGroup != a.AudioGroup {
				continue
			}
			for _, c := range variantCodecs[v] {
				if models.IsAudioCodec(c) {
					a.Codecs = append(a.Codecs, c)
				}
			}
			if len(a.Codecs) > 0 {
				break
			}
		}
	}
}

// stripDemuxedAudioCodecs removes audio codecs from variants whose audio group
// has at least one audio rendition. Those variants carry video only; a group
// whose renditions all lack a URI is muxed into the variant and keeps its codecs.
func stripDemuxedAudioCodecs(audio, video []*models.Track) {
	demuxed := make(map[string]bool)
	for _, a := range audio {
		if a.AudioGroup != "" {
			demuxed[a.AudioGroup] = true
		}
	}
	for _, v := range video {
		if v.AudioGroup == "" || !demuxed[v.AudioGroup] {
			continue
		}
		var videoOnly []string
		for _, c := range v.Codecs {
			if !models.IsAudioCodec(c) {
				videoOnly = append(videoOnly, c)
			}
		}
		if len(videoOnly) > 0 {
			v.Codecs = videoOnly
		}
	}
}
