package hls

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"hlsengine/internal/models"
)

// ParseAttributes parses an HLS attribute list (KEY=value,KEY="quoted, value").
// Malformed pairs are skipped.
func ParseAttributes(s string) map[string]string {
	attrs := make(map[string]string)
	i := 0
	for i < len(s) {
		eq := strings.IndexByte(s[i:], '=')
		if eq < 0 {
			break
		}
		key := strings.TrimSpace(s[i : i+eq])
		i += eq + 1

		var value string
		if i < len(s) && s[i] == '"' {
			end := strings.IndexByte(s[i+1:], '"')
			if end < 0 {
				// Unterminated quote: take the rest of the line.
				value = s[i+1:]
				i = len(s)
			} else {
				value = s[i+1 : i+1+end]
				i += end + 2
			}
			if comma := strings.IndexByte(s[i:], ','); comma >= 0 {
				i += comma + 1
			} else {
				i = len(s)
			}
		} else {
			comma := strings.IndexByte(s[i:], ',')
			if comma < 0 {
				value = s[i:]
				i = len(s)
			} else {
				value = s[i : i+comma]
				i += comma + 1
			}
			value = strings.TrimSpace(value)
		}

		// A stray token before the key, as in `junk,KEY=v`, is dropped.
		if comma := strings.LastIndexByte(key, ','); comma >= 0 {
			key = strings.TrimSpace(key[comma+1:])
		}
		if key == "" || strings.ContainsRune(key, ' ') {
			continue
		}
		attrs[key] = value
	}
	return attrs
}

// ParseResolution parses a WIDTHxHEIGHT decimal resolution.
func ParseResolution(s string) (width, height int, ok bool) {
	w, h, found := strings.Cut(strings.TrimSpace(s), "x")
	if !found {
		return 0, 0, false
	}
	width, err := strconv.Atoi(w)
	if err != nil || width < 0 {
		return 0, 0, false
	}
	height, err = strconv.Atoi(h)
	if err != nil || height < 0 {
		return 0, 0, false
	}
	return width, height, true
}

// ParseCodecs splits a CODECS attribute value into individual codec strings.
func ParseCodecs(s string) []string {
	var codecs []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			codecs = append(codecs, c)
		}
	}
	return codecs
}

// ParseFrameRate parses a decimal FRAME-RATE. NTSC-style rates such as 29.97
// are returned as 30000/1001.
func ParseFrameRate(s string) (*models.FrameRate, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v <= 0 || math.IsInf(v, 0) {
		return nil, false
	}
	if r := math.Round(v); math.Abs(v-r) < 0.001 {
		return &models.FrameRate{Numerator: int(r)}, true
	}
	if k := math.Round(v * 1.001); math.Abs(k/1.001-v) < 0.005 {
		return &models.FrameRate{Numerator: int(k) * 1000, Denominator: 1001}, true
	}
	return &models.FrameRate{Numerator: int(math.Round(v * 1000)), Denominator: 1000}, true
}

// ParseByteRange parses "length[@offset]". When the offset is omitted the
// range starts right after prevEnd, or at 0 when prevEnd is negative.
func ParseByteRange(s string, prevEnd int64) (models.ByteRange, bool) {
	lengthStr, offsetStr, hasOffset := strings.Cut(strings.TrimSpace(s), "@")
	length, err := strconv.ParseInt(lengthStr, 10, 64)
	if err != nil || length <= 0 {
		return models.ByteRange{}, false
	}

	start := prevEnd + 1
	if prevEnd < 0 {
		start = 0
	}
	if hasOffset {
		start, err = strconv.ParseInt(offsetStr, 10, 64)
		if err != nil || start < 0 {
			return models.ByteRange{}, false
		}
	}
	return models.ByteRange{Start: start, End: start + length - 1}, true
}

// ResolveURL resolves ref against base. If either fails to parse ref is
// returned unchanged.
func ResolveURL(base, ref string) string {
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
