package playback

import (
	"sort"

	"hlsengine/internal/media"
	"hlsengine/internal/models"
)

// State is the presentation and selection state of a session. It is held in
// a reactive cell; every field is compared by identity, so a change always
// replaces the value (or pointer) rather than mutating it.
type State struct {
	URL           string
	Preload       string
	PlayRequested bool

	Presentation *models.Presentation

	VideoTrackID string
	AudioTrackID string
	TextTrackID  string
	// SelectionFor is the ID of the presentation the automatic track
	// selection last ran for.
	SelectionFor string
}

// SelectedID returns the selected track ID of a kind.
func (s State) SelectedID(kind models.Kind) string {
	switch kind {
	case models.KindVideo:
		return s.VideoTrackID
	case models.KindAudio:
		return s.AudioTrackID
	case models.KindText:
		return s.TextTrackID
	}
	return ""
}

// SelectedTrack returns the selected track of a kind from the current
// presentation, or nil.
func (s State) SelectedTrack(kind models.Kind) *models.Track {
	return s.Presentation.Track(s.SelectedID(kind))
}

// Platform is the registry of platform objects owned by a session. Media
// element, media source and buffer implementations must be pointer types.
type Platform struct {
	Element     media.Element
	MediaSource media.MediaSource
	// Duration is the duration last set on MediaSource.
	Duration float64
	// ReadyState is the last ready state Element reported.
	ReadyState media.ReadyState

	Video *TrackBuffer
	Audio *TrackBuffer

	Captions *CaptionSet
	Ended    bool
}

// Buffer returns the track buffer of a kind, or nil.
func (p Platform) Buffer(kind models.Kind) *TrackBuffer {
	switch kind {
	case models.KindVideo:
		return p.Video
	case models.KindAudio:
		return p.Audio
	}
	return nil
}

// setBuffer returns p with the buffer of kind replaced.
func (p Platform) setBuffer(kind models.Kind, tb *TrackBuffer) Platform {
	switch kind {
	case models.KindVideo:
		p.Video = tb
	case models.KindAudio:
		p.Audio = tb
	}
	return p
}

// TrackBuffer is an append buffer plus the ledger of what has been appended
// to it. Values are replaced, never modified, once published.
type TrackBuffer struct {
	Kind     models.Kind
	TrackID  string
	MimeType string
	Buffer   media.SourceBuffer

	InitAppended bool
	// Segments are the appended segments ordered by start time.
	Segments []models.Segment
	// FlushedTo is the time before which media has been removed.
	FlushedTo float64
}

func (tb *TrackBuffer) withInit() *TrackBuffer {
	next := *tb
	next.InitAppended = true
	return &next
}

// withSegment records seg in the ledger. A segment whose start time is
// already recorded leaves the ledger unchanged.
func (tb *TrackBuffer) withSegment(seg models.Segment) *TrackBuffer {
	for _, s := range tb.Segments {
		if s.StartTime == seg.StartTime {
			return tb
		}
	}
	next := *tb
	next.Segments = make([]models.Segment, 0, len(tb.Segments)+1)
	next.Segments = append(next.Segments, tb.Segments...)
	next.Segments = append(next.Segments, seg)
	sort.SliceStable(next.Segments, func(i, j int) bool {
		return next.Segments[i].StartTime < next.Segments[j].StartTime
	})
	return &next
}

// withFlush drops segments that end at or before point.
func (tb *TrackBuffer) withFlush(point float64) *TrackBuffer {
	next := *tb
	next.Segments = nil
	for _, s := range tb.Segments {
		if s.EndTime() > point {
			next.Segments = append(next.Segments, s)
		}
	}
	next.FlushedTo = point
	return &next
}

// BufferedEnd returns the end time of the last appended segment.
func (tb *TrackBuffer) BufferedEnd() float64 {
	if tb == nil || len(tb.Segments) == 0 {
		return 0
	}
	return tb.Segments[len(tb.Segments)-1].EndTime()
}

// CaptionSet maps the text tracks of one presentation to the caption tracks
// created for them on the element.
type CaptionSet struct {
	PresentationID string
	Tracks         map[string]media.TextTrack
	// Active is the track ID currently showing, empty for none.
	Active string
	// Loaded holds the track IDs whose cues have been added.
	Loaded map[string]bool
}

func (c *CaptionSet) withActive(id string) *CaptionSet {
	next := *c
	next.Active = id
	return &next
}

func (c *CaptionSet) withLoaded(id string) *CaptionSet {
	next := *c
	next.Loaded = make(map[string]bool, len(c.Loaded)+1)
	for k, v := range c.Loaded {
		next.Loaded[k] = v
	}
	next.Loaded[id] = true
	return &next
}

// TimeUpdate is a playhead position report.
type TimeUpdate struct {
	CurrentTime float64
	// Seeking is set for reports caused by an explicit seek.
	Seeking bool
}

// Snapshot is the value orchestration units are evaluated against.
type Snapshot struct {
	State    State
	Platform Platform
	Time     TimeUpdate
}
