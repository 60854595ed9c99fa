// Package media defines the platform boundary the engine drives: a playable
// element, a media source with per-track append buffers, and caption tracks.
package media

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ReadyState mirrors the element readiness levels.
type ReadyState int

const (
	HaveNothing ReadyState = iota
	HaveMetadata
	HaveCurrentData
	HaveFutureData
	HaveEnoughData
)

func (r ReadyState) String() string {
	switch r {
	case HaveNothing:
		return "nothing"
	case HaveMetadata:
		return "metadata"
	case HaveCurrentData:
		return "current-data"
	case HaveFutureData:
		return "future-data"
	case HaveEnoughData:
		return "enough-data"
	}
	return fmt.Sprintf("ReadyState(%d)", int(r))
}

// SourceState is the lifecycle state of a MediaSource.
type SourceState string

const (
	SourceClosed SourceState = "closed"
	SourceOpen   SourceState = "open"
	SourceEnded  SourceState = "ended"
)

// ErrNotOpen is returned by MediaSource operations that require an open source.
var ErrNotOpen = errors.New("media: source is not open")

// Element is the playable element media sources attach to.
type Element interface {
	ReadyState() ReadyState
	// OnReadyStateChange calls fn with the new state each time the ready
	// state changes, until the returned function is called.
	OnReadyStateChange(fn func(ReadyState)) (unsubscribe func())
	// AddTextTrack creates a caption track on the element.
	AddTextTrack(label, language string) TextTrack
}

// Backend creates media sources.
type Backend interface {
	NewMediaSource() MediaSource
}

// MediaSource is the buffering context attached to an Element.
type MediaSource interface {
	// Attach binds the source to el and blocks until the source is open.
	Attach(ctx context.Context, el Element) error
	State() SourceState
	// AddSourceBuffer creates an append buffer for a MIME type with codecs,
	// e.g. `video/mp4; codecs="avc1.64001f"`.
	AddSourceBuffer(mimeType string) (SourceBuffer, error)
	// Duration is NaN until set.
	Duration() float64
	SetDuration(d float64) error
	EndOfStream() error
}

// Chunk is one append: the bytes plus the time range they cover. Init
// chunks carry no time range.
type Chunk struct {
	Data     []byte
	Start    float64
	Duration float64
	Init     bool
}

// SourceBuffer accepts media bytes for one track.
type SourceBuffer interface {
	// Append blocks until the chunk has been consumed.
	Append(ctx context.Context, c Chunk) error
	Buffered() []TimeRange
	Remove(ctx context.Context, start, end float64) error
}

// TimeRange is a buffered interval in seconds.
type TimeRange struct {
	Start float64
	End   float64
}

// BufferedEnd returns the end of the last range, or 0.
func BufferedEnd(ranges []TimeRange) float64 {
	var end float64
	for _, r := range ranges {
		if r.End > end {
			end = r.End
		}
	}
	return end
}

// AddRange inserts r into ranges, merging touching or overlapping intervals.
// Gaps smaller than epsilon are closed.
func AddRange(ranges []TimeRange, r TimeRange, epsilon float64) []TimeRange {
	out := append(append([]TimeRange(nil), ranges...), r)
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })

	merged := out[:1]
	for _, cur := range out[1:] {
		last := &merged[len(merged)-1]
		if cur.Start <= last.End+epsilon {
			if cur.End > last.End {
				last.End = cur.End
			}
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}

// RemoveRange cuts [start, end) out of ranges.
func RemoveRange(ranges []TimeRange, start, end float64) []TimeRange {
	var out []TimeRange
	for _, r := range ranges {
		if r.End <= start || r.Start >= end {
			out = append(out, r)
			continue
		}
		if r.Start < start {
			out = append(out, TimeRange{Start: r.Start, End: start})
		}
		if r.End > end {
			out = append(out, TimeRange{Start: end, End: r.End})
		}
	}
	return out
}
