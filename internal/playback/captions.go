package playback

import (
	"context"

	"hlsengine/internal/captions"
	"hlsengine/internal/media"
	"hlsengine/internal/models"
	"hlsengine/internal/orchestration"
)

func (s *Session) setupCaptionsUnit() *orchestration.Unit[Snapshot] {
	u := s.newUnit("setup-captions")
	u.CanRun = func(snap Snapshot) bool {
		return snap.Platform.Element != nil && snap.State.Presentation.IsResolved()
	}
	u.ShouldRun = func(snap Snapshot) bool {
		c := snap.Platform.Captions
		return c == nil || c.PresentationID != snap.State.Presentation.ID
	}
	u.Task = func(ctx context.Context, snap Snapshot) error {
		el := snap.Platform.Element
		p := snap.State.Presentation
		prev := snap.Platform.Captions
		if prev != nil {
			for _, tt := range prev.Tracks {
				tt.SetMode(media.ModeDisabled)
			}
		}

		set := &CaptionSet{
			PresentationID: p.ID,
			Tracks:         make(map[string]media.TextTrack),
			Loaded:         make(map[string]bool),
		}
		for _, t := range p.Tracks(models.KindText) {
			label := t.Name
			if label == "" {
				label = t.Language
			}
			tt := el.AddTextTrack(label, t.Language)
			tt.SetMode(media.ModeDisabled)
			set.Tracks[t.ID] = tt
		}
		s.platform.Patch(func(pf *Platform) {
			if pf.Element == el && pf.Captions == prev {
				pf.Captions = set
			}
		})
		return nil
	}
	return u
}

func (s *Session) activateCaptionsUnit() *orchestration.Unit[Snapshot] {
	u := s.newUnit("activate-captions")
	u.CanRun = func(snap Snapshot) bool {
		c := snap.Platform.Captions
		return c != nil && snap.State.Presentation != nil && c.PresentationID == snap.State.Presentation.ID
	}
	u.ShouldRun = func(snap Snapshot) bool {
		return snap.Platform.Captions.Active != snap.State.TextTrackID
	}
	u.Task = func(ctx context.Context, snap Snapshot) error {
		set := snap.Platform.Captions
		want := snap.State.TextTrackID
		for id, tt := range set.Tracks {
			if id == want {
				tt.SetMode(media.ModeShowing)
			} else {
				tt.SetMode(media.ModeDisabled)
			}
		}
		s.platform.Patch(func(pf *Platform) {
			if pf.Captions == set {
				pf.Captions = set.withActive(want)
			}
		})
		return nil
	}
	return u
}

func (s *Session) loadCuesUnit() *orchestration.Unit[Snapshot] {
	u := s.newUnit("load-cues")
	u.CanRun = func(snap Snapshot) bool {
		c := snap.Platform.Captions
		id := snap.State.TextTrackID
		return c != nil && id != "" && c.Active == id && c.Tracks[id] != nil
	}
	u.ShouldRun = func(snap Snapshot) bool {
		id := snap.State.TextTrackID
		return !snap.Platform.Captions.Loaded[id] && snap.State.SelectedTrack(models.KindText).IsResolved()
	}
	u.Supersede = func(running, next Snapshot) bool {
		return running.State.TextTrackID != next.State.TextTrackID
	}
	u.Task = func(ctx context.Context, snap Snapshot) error {
		set := snap.Platform.Captions
		track := snap.State.SelectedTrack(models.KindText)
		tt := set.Tracks[track.ID]

		added := 0
		for _, seg := range track.Segments {
			if err := ctx.Err(); err != nil {
				return err
			}
			text, err := s.fetcher.FetchText(ctx, seg.URL)
			s.observe("captions", err)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.log.Warnf("Skipping caption segment %s: %v", seg.URL, err)
				continue
			}
			cues, err := captions.ParseWebVTT(text)
			if err != nil {
				s.log.Warnf("Skipping caption segment %s: %v", seg.URL, err)
				continue
			}
			for _, c := range cues {
				tt.AddCue(c)
			}
			added += len(cues)
		}

		loaded := false
		s.platform.Patch(func(pf *Platform) {
			if pf.Captions != nil && pf.Captions.PresentationID == set.PresentationID {
				pf.Captions = pf.Captions.withLoaded(track.ID)
				loaded = true
			}
		})
		if !loaded {
			return context.Canceled
		}
		s.log.Debugf("Loaded %d cues for text track %s", added, track.ID)
		return nil
	}
	return u
}
