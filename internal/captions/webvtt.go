// Package captions parses WebVTT caption segments into cues.
package captions

import (
	"bufio"
	"errors"
	"strconv"
	"strings"

	"hlsengine/internal/media"
)

// ErrNotWebVTT is returned when the body does not start with the WEBVTT signature.
var ErrNotWebVTT = errors.New("captions: missing WEBVTT signature")

// ParseWebVTT parses a WebVTT document. Blocks that are not cues (NOTE,
// STYLE, REGION) and cues with an unparsable timing line are skipped.
func ParseWebVTT(text string) ([]media.Cue, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !sc.Scan() || !isSignature(sc.Text()) {
		return nil, ErrNotWebVTT
	}

	var (
		cues  []media.Cue
		block []string
	)
	flush := func() {
		if c, ok := parseBlock(block); ok {
			cues = append(cues, c)
		}
		block = block[:0]
	}
	for sc.Scan() {
		l := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(l) == "" {
			flush()
			continue
		}
		block = append(block, l)
	}
	flush()
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return cues, nil
}

func isSignature(l string) bool {
	l = strings.TrimRight(l, "\r")
	return l == "WEBVTT" || strings.HasPrefix(l, "WEBVTT ") || strings.HasPrefix(l, "WEBVTT\t")
}

// parseBlock turns one blank-line separated block into a cue.
func parseBlock(lines []string) (media.Cue, bool) {
	if len(lines) == 0 {
		return media.Cue{}, false
	}
	switch first := lines[0]; {
	case strings.HasPrefix(first, "NOTE"), first == "STYLE", first == "REGION":
		return media.Cue{}, false
	}

	timing := 0
	if !strings.Contains(lines[0], "-->") {
		// Optional cue identifier.
		timing = 1
	}
	if timing >= len(lines) {
		return media.Cue{}, false
	}

	startStr, rest, ok := strings.Cut(lines[timing], "-->")
	if !ok {
		return media.Cue{}, false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return media.Cue{}, false
	}
	start, ok := ParseTimestamp(strings.TrimSpace(startStr))
	if !ok {
		return media.Cue{}, false
	}
	end, ok := ParseTimestamp(fields[0])
	if !ok || end < start {
		return media.Cue{}, false
	}

	c := media.Cue{
		Start: start,
		End:   end,
		Text:  strings.Join(lines[timing+1:], "\n"),
	}
	for _, setting := range fields[1:] {
		name, value, ok := strings.Cut(setting, ":")
		if !ok {
			continue
		}
		switch name {
		case "line":
			c.Line = value
		case "position":
			c.Position = value
		case "align":
			c.Align = value
		}
	}
	return c, true
}

// ParseTimestamp parses a WebVTT timestamp, "mm:ss.ttt" or "hh:mm:ss.ttt",
// into seconds.
func ParseTimestamp(s string) (float64, bool) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	secs, err := strconv.ParseFloat(parts[len(parts)-1], 64)
	if err != nil || secs < 0 || secs >= 60 {
		return 0, false
	}
	total := secs
	mult := 60.0
	for i := len(parts) - 2; i >= 0; i-- {
		n, err := strconv.Atoi(parts[i])
		if err != nil || n < 0 {
			return 0, false
		}
		total += float64(n) * mult
		mult *= 60
	}
	return total, true
}
