package media

// TrackMode is the display mode of a caption track.
type TrackMode string

const (
	ModeDisabled TrackMode = "disabled"
	ModeHidden   TrackMode = "hidden"
	ModeShowing  TrackMode = "showing"
)

// Cue is one timed caption.
type Cue struct {
	Start float64
	End   float64
	Text  string

	// Optional WebVTT settings, empty when not given.
	Line     string
	Position string
	Align    string
}

// TextTrack renders cues on an element.
type TextTrack interface {
	Label() string
	Language() string
	AddCue(c Cue)
	Mode() TrackMode
	SetMode(m TrackMode)
}
