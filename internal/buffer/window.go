// Package buffer decides which segments to fetch ahead of the playhead and
// how much already-fetched media may be dropped behind it.
package buffer

import (
	"sort"

	"hlsengine/internal/models"
)

const (
	DefaultForwardDuration = 30.0
	DefaultKeepSegments    = 2
)

// SegmentsToLoad returns the segments of all that overlap
// [currentTime, currentTime+bufferDuration) and whose start time is not
// already present in buffered. Any buffered segment at a timestamp counts,
// whatever track it came from. A non-positive bufferDuration means
// DefaultForwardDuration.
func SegmentsToLoad(all, buffered []models.Segment, currentTime, bufferDuration float64) []models.Segment {
	if bufferDuration <= 0 {
		bufferDuration = DefaultForwardDuration
	}
	windowEnd := currentTime + bufferDuration

	have := make(map[float64]struct{}, len(buffered))
	for _, s := range buffered {
		have[s.StartTime] = struct{}{}
	}

	var out []models.Segment
	for _, s := range all {
		if s.StartTime >= windowEnd || s.EndTime() <= currentTime {
			continue
		}
		if _, ok := have[s.StartTime]; ok {
			continue
		}
		out = append(out, s)
	}
	return out
}

// BackBufferFlushPoint returns the time before which buffered media may be
// discarded: the start of the first of the last keepSegments segments that
// start strictly before currentTime. Returns 0 when fewer than keepSegments
// segments precede currentTime. A non-positive keepSegments means
// DefaultKeepSegments.
func BackBufferFlushPoint(segments []models.Segment, currentTime float64, keepSegments int) float64 {
	if keepSegments <= 0 {
		keepSegments = DefaultKeepSegments
	}
	var before []float64
	for _, s := range segments {
		if s.StartTime < currentTime {
			before = append(before, s.StartTime)
		}
	}
	if len(before) < keepSegments {
		return 0
	}
	sort.Float64s(before)
	return before[len(before)-keepSegments]
}

// Covered reports whether segments contiguously cover [from, duration]
// allowing gaps and a shortfall of at most tolerance seconds.
func Covered(segments []models.Segment, from, duration, tolerance float64) bool {
	if len(segments) == 0 {
		return duration-from <= tolerance
	}
	sorted := append([]models.Segment(nil), segments...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartTime < sorted[j].StartTime })

	end := from
	for _, s := range sorted {
		if s.EndTime() <= end {
			continue
		}
		if s.StartTime > end+tolerance {
			return false
		}
		end = s.EndTime()
	}
	return end >= duration-tolerance
}
