package models

// ByteRange is an inclusive byte range within a resource.
type ByteRange struct {
	Start int64
	End   int64
}

// Length returns the number of bytes covered by the range.
func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

// Segment represents a media segment with its essential properties.
// This struct is used across different packages to represent a downloadable chunk of media.
type Segment struct {
	// ID is a unique identifier for the segment, derived from its track and position.
	ID string
	// URL is the fully-qualified URL to fetch the segment from.
	URL string
	// StartTime is the presentation time in seconds at which the segment begins.
	StartTime float64
	// Duration is the segment duration in seconds.
	Duration float64
	// ByteRange restricts the fetch to part of URL. Nil means the whole resource.
	ByteRange *ByteRange
}

// EndTime returns the presentation time at which the segment ends.
func (s Segment) EndTime() float64 {
	return s.StartTime + s.Duration
}

// InitSegment is the initialization segment (EXT-X-MAP) of a track.
type InitSegment struct {
	URL       string
	ByteRange *ByteRange
}
