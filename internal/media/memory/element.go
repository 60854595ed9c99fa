package memory

import (
	"sync"

	"hlsengine/internal/media"
)

// Element implements media.Element.
type Element struct {
	mu         sync.Mutex
	readyState media.ReadyState
	textTracks []*TextTrack
	nextID     int
	watchers   map[int]func(media.ReadyState)
}

// NewElement returns an element with nothing loaded.
func NewElement() *Element {
	return &Element{}
}

// ReadyState implements media.Element.
func (e *Element) ReadyState() media.ReadyState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.readyState
}

// SetReadyState overrides the ready state.
func (e *Element) SetReadyState(r media.ReadyState) {
	e.setReadyState(r, false)
}

func (e *Element) raiseReadyState(r media.ReadyState) {
	e.setReadyState(r, true)
}

func (e *Element) setReadyState(r media.ReadyState, raiseOnly bool) {
	e.mu.Lock()
	if r == e.readyState || (raiseOnly && r < e.readyState) {
		e.mu.Unlock()
		return
	}
	e.readyState = r
	fns := make([]func(media.ReadyState), 0, len(e.watchers))
	for _, fn := range e.watchers {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(r)
	}
}

// OnReadyStateChange implements media.Element.
func (e *Element) OnReadyStateChange(fn func(media.ReadyState)) func() {
	e.mu.Lock()
	if e.watchers == nil {
		e.watchers = make(map[int]func(media.ReadyState))
	}
	id := e.nextID
	e.nextID++
	e.watchers[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.watchers, id)
		e.mu.Unlock()
	}
}

// AddTextTrack implements media.Element.
func (e *Element) AddTextTrack(label, language string) media.TextTrack {
	t := &TextTrack{label: label, language: language, mode: media.ModeDisabled}
	e.mu.Lock()
	e.textTracks = append(e.textTracks, t)
	e.mu.Unlock()
	return t
}

// TextTracks returns the caption tracks in creation order.
func (e *Element) TextTracks() []*TextTrack {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*TextTrack(nil), e.textTracks...)
}

// TextTrack implements media.TextTrack.
type TextTrack struct {
	label    string
	language string

	mu   sync.Mutex
	mode media.TrackMode
	cues []media.Cue
}

// Label implements media.TextTrack.
func (t *TextTrack) Label() string { return t.label }

// Language implements media.TextTrack.
func (t *TextTrack) Language() string { return t.language }

// AddCue implements media.TextTrack.
func (t *TextTrack) AddCue(c media.Cue) {
	t.mu.Lock()
	t.cues = append(t.cues, c)
	t.mu.Unlock()
}

// Cues returns the cues added so far.
func (t *TextTrack) Cues() []media.Cue {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]media.Cue(nil), t.cues...)
}

// Mode implements media.TextTrack.
func (t *TextTrack) Mode() media.TrackMode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode
}

// SetMode implements media.TextTrack.
func (t *TextTrack) SetMode(m media.TrackMode) {
	t.mu.Lock()
	t.mode = m
	t.mu.Unlock()
}
