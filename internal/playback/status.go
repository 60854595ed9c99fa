package playback

import (
	"hlsengine/internal/media"
	"hlsengine/internal/models"
	"hlsengine/internal/reactive"
)

// TrackStatus describes one track of the presentation.
type TrackStatus struct {
	ID        string   `json:"id"`
	Kind      string   `json:"kind"`
	Name      string   `json:"name,omitempty"`
	Language  string   `json:"language,omitempty"`
	Bandwidth int      `json:"bandwidth,omitempty"`
	Width     int      `json:"width,omitempty"`
	Height    int      `json:"height,omitempty"`
	Codecs    []string `json:"codecs,omitempty"`
	Resolved  bool     `json:"resolved"`
	Segments  int      `json:"segments"`
	Selected  bool     `json:"selected"`
}

// BufferStatus describes one track buffer.
type BufferStatus struct {
	TrackID      string            `json:"trackId"`
	MimeType     string            `json:"mimeType"`
	InitAppended bool              `json:"initAppended"`
	Segments     int               `json:"segments"`
	FlushedTo    float64           `json:"flushedTo"`
	Buffered     []media.TimeRange `json:"buffered"`
}

// Status is a serializable view of a session.
type Status struct {
	URL               string                  `json:"url"`
	Stage             string                  `json:"stage"`
	Preload           string                  `json:"preload"`
	PlayRequested     bool                    `json:"playRequested"`
	Duration          *float64                `json:"duration,omitempty"`
	CurrentTime       float64                 `json:"currentTime"`
	BandwidthEstimate float64                 `json:"bandwidthEstimate"`
	Tracks            []TrackStatus           `json:"tracks"`
	Buffers           map[string]BufferStatus `json:"buffers"`
	ActiveCaptions    string                  `json:"activeCaptions,omitempty"`
	Ended             bool                    `json:"ended"`
}

// Status returns the current status of the session.
func (s *Session) Status() Status {
	return s.status(s.state.Get(), s.platform.Get())
}

// Subscribe calls fn with the current status, then again from the session's
// scheduler each time the state or platform changes. fn must not block.
func (s *Session) Subscribe(fn func(Status)) func() {
	src := reactive.Combine2[State, Platform](s.state, s.platform)
	return src.Subscribe(func(p reactive.Pair[State, Platform]) {
		fn(s.status(p.First, p.Second))
	})
}

func (s *Session) status(st State, pf Platform) Status {
	out := Status{
		URL:               st.URL,
		Stage:             CurrentStage(st, pf).String(),
		Preload:           st.Preload,
		PlayRequested:     st.PlayRequested,
		CurrentTime:       s.CurrentTime(),
		BandwidthEstimate: s.estimator.Estimate(),
		Tracks:            []TrackStatus{},
		Buffers:           map[string]BufferStatus{},
		Ended:             pf.Ended,
	}
	if st.Presentation.HasDuration() {
		d := *st.Presentation.Duration
		out.Duration = &d
	}
	for _, kind := range []models.Kind{models.KindVideo, models.KindAudio, models.KindText} {
		for _, t := range st.Presentation.Tracks(kind) {
			out.Tracks = append(out.Tracks, TrackStatus{
				ID:        t.ID,
				Kind:      string(t.Kind),
				Name:      t.Name,
				Language:  t.Language,
				Bandwidth: t.Bandwidth,
				Width:     t.Width,
				Height:    t.Height,
				Codecs:    t.Codecs,
				Resolved:  t.IsResolved(),
				Segments:  len(t.Segments),
				Selected:  st.SelectedID(kind) == t.ID,
			})
		}
	}
	for _, kind := range []models.Kind{models.KindVideo, models.KindAudio} {
		tb := pf.Buffer(kind)
		if tb == nil {
			continue
		}
		out.Buffers[string(kind)] = BufferStatus{
			TrackID:      tb.TrackID,
			MimeType:     tb.MimeType,
			InitAppended: tb.InitAppended,
			Segments:     len(tb.Segments),
			FlushedTo:    tb.FlushedTo,
			Buffered:     tb.Buffer.Buffered(),
		}
	}
	if pf.Captions != nil {
		out.ActiveCaptions = pf.Captions.Active
	}
	return out
}

// UpdateGauges refreshes the bandwidth and buffered-ahead gauges.
func (s *Session) UpdateGauges() {
	pf := s.platform.Get()
	now := s.CurrentTime()
	s.metrics.SetBandwidthEstimate(s.estimator.Estimate())
	for _, kind := range []models.Kind{models.KindVideo, models.KindAudio} {
		ahead := 0.0
		if tb := pf.Buffer(kind); tb != nil {
			for _, r := range tb.Buffer.Buffered() {
				if r.Start <= now && now < r.End {
					ahead = r.End - now
				}
			}
		}
		s.metrics.SetBufferedAhead(string(kind), ahead)
	}
}
