package models

import "fmt"

// Kind is the content type carried by a track.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
	KindText  Kind = "text"
)

// FrameRate is a frame rate expressed as a fraction. A zero Denominator means
// the rate is the integer Numerator.
type FrameRate struct {
	Numerator   int
	Denominator int
}

// Value returns the frame rate in frames per second.
func (f FrameRate) Value() float64 {
	if f.Denominator == 0 {
		return float64(f.Numerator)
	}
	return float64(f.Numerator) / float64(f.Denominator)
}

func (f FrameRate) String() string {
	if f.Denominator == 0 {
		return fmt.Sprintf("%d", f.Numerator)
	}
	return fmt.Sprintf("%d/%d", f.Numerator, f.Denominator)
}

// Track is one rendition of video, audio or text content.
//
// A track is unresolved until its media manifest has been fetched and parsed.
// Resolution is irreversible and produces a new Track value; Track values are
// never mutated once published.
type Track struct {
	ID   string
	Kind Kind
	// URL is the location of the track's media manifest.
	URL  string
	Name string

	Bandwidth int
	Width     int
	Height    int
	Codecs    []string
	FrameRate *FrameRate

	Language   string
	Default    bool
	Forced     bool
	Autoselect bool
	// AudioGroup is the EXT-X-MEDIA group a variant references (video) or
	// belongs to (audio).
	AudioGroup    string
	SubtitleGroup string

	// Fields below are only set on resolved tracks.
	BaseURL  string
	Duration float64
	Segments []Segment
	Init     *InitSegment
}

// IsResolved reports whether the track carries a segment list.
func (t *Track) IsResolved() bool {
	return t != nil && t.Segments != nil
}

// Pixels returns width*height, treating missing dimensions as 0.
func (t *Track) Pixels() int {
	return t.Width * t.Height
}

// Clone returns a shallow copy of the track.
func (t *Track) Clone() *Track {
	c := *t
	return &c
}

// HasAudioCodec reports whether any of the codec strings names an audio codec.
func HasAudioCodec(codecs []string) bool {
	for _, c := range codecs {
		if IsAudioCodec(c) {
			return true
		}
	}
	return false
}

// IsAudioCodec reports whether the RFC 6381 codec string describes audio.
func IsAudioCodec(codec string) bool {
	for _, prefix := range []string{"mp4a", "ac-3", "ec-3", "opus", "flac", "mp3", "alac", "ac-4"} {
		if len(codec) >= len(prefix) && codec[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
