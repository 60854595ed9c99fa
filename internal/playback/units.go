package playback

import (
	"context"
	"errors"
	"fmt"
	"math"

	"hlsengine/internal/config"
	"hlsengine/internal/hls"
	"hlsengine/internal/media"
	"hlsengine/internal/models"
	"hlsengine/internal/orchestration"
)

// endOfStreamTolerance is the shortfall in seconds allowed between the
// buffered ledger and the presentation duration.
const endOfStreamTolerance = 1.0

func (s *Session) newUnit(name string) *orchestration.Unit[Snapshot] {
	return &orchestration.Unit[Snapshot]{
		Name:    name,
		Sched:   s.loop,
		Log:     s.log,
		Metrics: s.metrics,
	}
}

// observe counts one fetch, ignoring fetches abandoned by cancellation.
func (s *Session) observe(kind string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	s.metrics.ObserveFetch(kind, err)
}

func (s *Session) eagerLoad(st State) bool {
	return st.Preload != config.PreloadNone || st.PlayRequested
}

func (s *Session) resolvePresentationUnit() *orchestration.Unit[Snapshot] {
	u := s.newUnit("resolve-presentation")
	u.CanRun = func(snap Snapshot) bool {
		return snap.State.URL != "" && snap.State.Presentation != nil
	}
	u.ShouldRun = func(snap Snapshot) bool {
		return !snap.State.Presentation.IsResolved() && s.eagerLoad(snap.State)
	}
	u.Supersede = func(running, next Snapshot) bool {
		return running.State.Presentation.ID != next.State.Presentation.ID
	}
	u.Task = func(ctx context.Context, snap Snapshot) error {
		p := snap.State.Presentation
		text, err := s.fetcher.FetchText(ctx, p.URL)
		s.observe("manifest", err)
		if err != nil {
			return fmt.Errorf("fetch multivariant manifest %s: %w", p.URL, err)
		}
		parsed, err := hls.ParseMultivariant(text, p.URL)
		if err != nil {
			return fmt.Errorf("parse multivariant manifest %s: %w", p.URL, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		parsed.ID = p.ID
		s.state.Patch(func(st *State) {
			if st.Presentation != nil && st.Presentation.ID == p.ID && !st.Presentation.IsResolved() {
				st.Presentation = parsed
			}
		})
		s.log.Infof("Resolved presentation %s: %d video, %d audio, %d text tracks", p.URL,
			len(parsed.Tracks(models.KindVideo)), len(parsed.Tracks(models.KindAudio)), len(parsed.Tracks(models.KindText)))
		return nil
	}
	return u
}

func (s *Session) selectTracksUnit() *orchestration.Unit[Snapshot] {
	u := s.newUnit("select-tracks")
	u.CanRun = func(snap Snapshot) bool {
		return snap.State.Presentation.IsResolved()
	}
	u.ShouldRun = func(snap Snapshot) bool {
		return snap.State.SelectionFor != snap.State.Presentation.ID
	}
	u.Task = func(ctx context.Context, snap Snapshot) error {
		p := snap.State.Presentation
		sel := SelectTracks(p, SelectionPolicy{
			BandwidthBps:           s.estimator.Estimate(),
			SafetyMargin:           s.cfg.SafetyMargin,
			AudioLanguage:          s.cfg.PreferredAudioLanguage,
			SubtitleLanguage:       s.cfg.PreferredSubtitleLanguage,
			IncludeForcedSubtitles: s.cfg.IncludeForcedSubtitles,
		})
		s.state.Patch(func(st *State) {
			if st.Presentation == nil || st.Presentation.ID != p.ID {
				return
			}
			if st.VideoTrackID == "" {
				st.VideoTrackID = sel.Video
			}
			if st.AudioTrackID == "" {
				st.AudioTrackID = sel.Audio
			}
			if st.TextTrackID == "" {
				st.TextTrackID = sel.Text
			}
			st.SelectionFor = p.ID
		})
		s.log.Infof("Selected tracks: video=%q audio=%q text=%q", sel.Video, sel.Audio, sel.Text)
		return nil
	}
	return u
}

func (s *Session) resolveTrackUnit(kind models.Kind) *orchestration.Unit[Snapshot] {
	u := s.newUnit("resolve-track-" + string(kind))
	u.CanRun = func(snap Snapshot) bool {
		return snap.State.Presentation.IsResolved() && snap.State.SelectedID(kind) != ""
	}
	u.ShouldRun = func(snap Snapshot) bool {
		t := snap.State.SelectedTrack(kind)
		return t != nil && !t.IsResolved()
	}
	u.Supersede = func(running, next Snapshot) bool {
		return running.State.Presentation.ID != next.State.Presentation.ID ||
			running.State.SelectedID(kind) != next.State.SelectedID(kind)
	}
	u.Task = func(ctx context.Context, snap Snapshot) error {
		p := snap.State.Presentation
		track := snap.State.SelectedTrack(kind)
		text, err := s.fetcher.FetchText(ctx, track.URL)
		s.observe("manifest", err)
		if err != nil {
			return fmt.Errorf("fetch %s media manifest %s: %w", kind, track.URL, err)
		}
		resolved, err := hls.ParseMedia(text, track)
		if err != nil {
			return fmt.Errorf("parse %s media manifest %s: %w", kind, track.URL, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		s.state.Patch(func(st *State) {
			if st.Presentation == nil || st.Presentation.ID != p.ID {
				return
			}
			if cur := st.Presentation.Track(track.ID); cur != nil && !cur.IsResolved() {
				st.Presentation = st.Presentation.WithTrack(resolved)
			}
		})
		s.log.Debugf("Resolved %s track %s: %d segments, %.3fs", kind, track.ID, len(resolved.Segments), resolved.Duration)
		return nil
	}
	return u
}

// durationTrack is the resolved track the presentation duration is taken
// from: the selected video track, or the audio track for audio-only media.
func durationTrack(st State) *models.Track {
	if st.VideoTrackID != "" {
		return st.SelectedTrack(models.KindVideo)
	}
	return st.SelectedTrack(models.KindAudio)
}

func (s *Session) calculateDurationUnit() *orchestration.Unit[Snapshot] {
	u := s.newUnit("calculate-duration")
	u.CanRun = func(snap Snapshot) bool {
		return snap.State.Presentation.IsResolved()
	}
	u.ShouldRun = func(snap Snapshot) bool {
		return !snap.State.Presentation.HasDuration() && durationTrack(snap.State).IsResolved()
	}
	u.Task = func(ctx context.Context, snap Snapshot) error {
		p := snap.State.Presentation
		d := durationTrack(snap.State).Duration
		s.state.Patch(func(st *State) {
			if st.Presentation != nil && st.Presentation.ID == p.ID && !st.Presentation.HasDuration() {
				st.Presentation = st.Presentation.WithDuration(d)
			}
		})
		return nil
	}
	return u
}

func (s *Session) openMediaSourceUnit() *orchestration.Unit[Snapshot] {
	u := s.newUnit("open-media-source")
	u.CanRun = func(snap Snapshot) bool {
		return snap.Platform.Element != nil && snap.State.URL != "" && snap.State.Presentation != nil
	}
	u.ShouldRun = func(snap Snapshot) bool {
		return snap.Platform.MediaSource == nil && s.eagerLoad(snap.State)
	}
	u.Supersede = func(running, next Snapshot) bool {
		return running.Platform.Element != next.Platform.Element
	}
	u.Task = func(ctx context.Context, snap Snapshot) error {
		el := snap.Platform.Element
		ms := s.backend.NewMediaSource()
		if err := ms.Attach(ctx, el); err != nil {
			return fmt.Errorf("attach media source: %w", err)
		}
		s.platform.Patch(func(pf *Platform) {
			if pf.Element == el && pf.MediaSource == nil {
				pf.MediaSource = ms
			}
		})
		s.log.Debugf("Media source open")
		return nil
	}
	return u
}

func (s *Session) createTrackBufferUnit(kind models.Kind) *orchestration.Unit[Snapshot] {
	u := s.newUnit("create-track-buffer-" + string(kind))
	u.CanRun = func(snap Snapshot) bool {
		return snap.Platform.MediaSource != nil && snap.State.SelectedID(kind) != ""
	}
	u.ShouldRun = func(snap Snapshot) bool {
		t := snap.State.SelectedTrack(kind)
		return snap.Platform.Buffer(kind) == nil && t.IsResolved() && len(t.Codecs) > 0
	}
	u.Task = func(ctx context.Context, snap Snapshot) error {
		ms := snap.Platform.MediaSource
		track := snap.State.SelectedTrack(kind)
		mime := MimeType(kind, track)
		sb, err := ms.AddSourceBuffer(mime)
		if err != nil {
			return fmt.Errorf("create %s buffer %q: %w", kind, mime, err)
		}
		s.platform.Patch(func(pf *Platform) {
			if pf.MediaSource == ms && pf.Buffer(kind) == nil {
				*pf = pf.setBuffer(kind, &TrackBuffer{Kind: kind, TrackID: track.ID, MimeType: mime, Buffer: sb})
			}
		})
		s.log.Infof("Created %s buffer for track %s (%s)", kind, track.ID, mime)
		return nil
	}
	return u
}

// durationTarget is the presentation duration, raised to the end of any
// appended media that extends past it.
func durationTarget(snap Snapshot) float64 {
	d := *snap.State.Presentation.Duration
	for _, tb := range []*TrackBuffer{snap.Platform.Video, snap.Platform.Audio} {
		d = math.Max(d, tb.BufferedEnd())
	}
	return d
}

func (s *Session) updateDurationUnit() *orchestration.Unit[Snapshot] {
	u := s.newUnit("update-duration")
	u.CanRun = func(snap Snapshot) bool {
		return snap.Platform.MediaSource != nil && snap.State.Presentation.HasDuration()
	}
	u.ShouldRun = func(snap Snapshot) bool {
		return !snap.Platform.Ended && durationTarget(snap) != snap.Platform.Duration
	}
	u.Task = func(ctx context.Context, snap Snapshot) error {
		ms := snap.Platform.MediaSource
		target := durationTarget(snap)
		if err := ms.SetDuration(target); err != nil {
			return fmt.Errorf("set duration %.3f: %w", target, err)
		}
		s.platform.Patch(func(pf *Platform) {
			if pf.MediaSource == ms {
				pf.Duration = target
			}
		})
		return nil
	}
	return u
}

// endOfStreamUnit signals end of stream once the element has metadata and
// every selected buffer covers the presentation from its flush point (not
// from 0) to the end; see fullyBuffered.
func (s *Session) endOfStreamUnit() *orchestration.Unit[Snapshot] {
	u := s.newUnit("end-of-stream")
	u.CanRun = func(snap Snapshot) bool {
		return snap.Platform.MediaSource != nil && snap.Platform.Element != nil &&
			snap.State.Presentation.HasDuration() && snap.Platform.Duration > 0
	}
	u.ShouldRun = func(snap Snapshot) bool {
		return !snap.Platform.Ended &&
			snap.Platform.ReadyState >= media.HaveMetadata &&
			fullyBuffered(snap.State, snap.Platform, endOfStreamTolerance)
	}
	u.Task = func(ctx context.Context, snap Snapshot) error {
		ms := snap.Platform.MediaSource
		if err := ms.EndOfStream(); err != nil {
			return fmt.Errorf("end of stream: %w", err)
		}
		s.platform.Patch(func(pf *Platform) {
			if pf.MediaSource == ms {
				pf.Ended = true
			}
		})
		s.log.Infof("End of stream signalled")
		return nil
	}
	return u
}
