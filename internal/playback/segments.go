package playback

import (
	"context"
	"fmt"
	"math"

	"hlsengine/internal/buffer"
	"hlsengine/internal/config"
	"hlsengine/internal/fetch"
	"hlsengine/internal/media"
	"hlsengine/internal/models"
	"hlsengine/internal/orchestration"
)

func (s *Session) loadSegmentsUnit(kind models.Kind) *orchestration.Unit[Snapshot] {
	u := s.newUnit("load-segments-" + string(kind))
	u.CanRun = func(snap Snapshot) bool {
		tb := snap.Platform.Buffer(kind)
		t := snap.State.SelectedTrack(kind)
		return tb != nil && t.IsResolved() && tb.TrackID == t.ID
	}
	u.ShouldRun = func(snap Snapshot) bool {
		tb := snap.Platform.Buffer(kind)
		t := snap.State.SelectedTrack(kind)
		if t.Init != nil && !tb.InitAppended {
			return true
		}
		if !loadMedia(snap.State) {
			return false
		}
		return len(buffer.SegmentsToLoad(t.Segments, tb.Segments, snap.Time.CurrentTime, s.cfg.ForwardBufferDuration)) > 0
	}
	u.Supersede = func(running, next Snapshot) bool {
		return s.isSeek(running.Time, next.Time)
	}
	u.Task = func(ctx context.Context, snap Snapshot) error {
		return s.loadSegments(ctx, kind, snap)
	}
	return u
}

// loadMedia reports whether media segments may be fetched. Preload
// metadata stops after the init segment until play is requested.
func loadMedia(st State) bool {
	return st.Preload == config.PreloadAuto || st.PlayRequested
}

// isSeek reports whether next moves the playhead away from the window the
// running load was computed for.
func (s *Session) isSeek(running, next TimeUpdate) bool {
	if running == next {
		return false
	}
	return next.Seeking || math.Abs(next.CurrentTime-running.CurrentTime) > s.cfg.SeekThreshold
}

// loadSegments appends the init segment if needed, then every segment of
// the forward window in order, then drops media behind the back-buffer
// flush point. Failed fetches are skipped; a failed append stops the load.
func (s *Session) loadSegments(ctx context.Context, kind models.Kind, snap Snapshot) error {
	track := snap.State.SelectedTrack(kind)
	sb := snap.Platform.Buffer(kind).Buffer
	currentTime := snap.Time.CurrentTime

	// The snapshot predates any task this one superseded; read the ledger
	// that task left behind.
	tb := s.latestBuffer(kind, sb)
	if tb == nil {
		return context.Canceled
	}

	update := func(fn func(*TrackBuffer) *TrackBuffer) bool {
		applied := false
		s.platform.Patch(func(pf *Platform) {
			cur := pf.Buffer(kind)
			if cur == nil || cur.Buffer != sb {
				return
			}
			*pf = pf.setBuffer(kind, fn(cur))
			applied = true
		})
		return applied
	}

	if track.Init != nil && !tb.InitAppended {
		data, err := s.fetchMedia(ctx, "init", kind, track.Init.URL, track.Init.ByteRange)
		if err != nil {
			return fmt.Errorf("fetch %s init segment %s: %w", kind, track.Init.URL, err)
		}
		if err := sb.Append(ctx, media.Chunk{Data: data, Init: true}); err != nil {
			return fmt.Errorf("append %s init segment: %w", kind, err)
		}
		if !update((*TrackBuffer).withInit) {
			return context.Canceled
		}
	}

	if !loadMedia(snap.State) {
		return nil
	}

	for _, seg := range buffer.SegmentsToLoad(track.Segments, tb.Segments, currentTime, s.cfg.ForwardBufferDuration) {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := s.fetchMedia(ctx, "segment", kind, seg.URL, seg.ByteRange)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warnf("Skipping %s segment %s: %v", kind, seg.ID, err)
			continue
		}
		if err := sb.Append(ctx, media.Chunk{Data: data, Start: seg.StartTime, Duration: seg.Duration}); err != nil {
			return fmt.Errorf("append %s segment %s: %w", kind, seg.ID, err)
		}
		s.metrics.IncSegmentsAppended(string(kind))
		if !update(func(cur *TrackBuffer) *TrackBuffer { return cur.withSegment(seg) }) {
			return context.Canceled
		}
	}
	s.metrics.SetBandwidthEstimate(s.estimator.Estimate())

	tb = s.latestBuffer(kind, sb)
	if tb == nil {
		return context.Canceled
	}
	point := buffer.BackBufferFlushPoint(tb.Segments, currentTime, s.cfg.BackBufferSegments)
	if point <= tb.FlushedTo {
		return nil
	}
	if err := sb.Remove(ctx, 0, point); err != nil {
		return fmt.Errorf("flush %s back buffer to %.3f: %w", kind, point, err)
	}
	update(func(cur *TrackBuffer) *TrackBuffer { return cur.withFlush(point) })
	s.log.Debugf("Flushed %s back buffer to %.3fs", kind, point)
	if s.cache != nil {
		s.cache.RunEviction()
	}
	return nil
}

// latestBuffer returns the most recent ledger of kind, including patches not
// yet flushed, or nil once sb is no longer the buffer of that kind.
func (s *Session) latestBuffer(kind models.Kind, sb media.SourceBuffer) *TrackBuffer {
	tb := s.platform.Latest().Buffer(kind)
	if tb == nil || tb.Buffer != sb {
		return nil
	}
	return tb
}

// fetchMedia fetches segment or init bytes, recording fetch metrics.
func (s *Session) fetchMedia(ctx context.Context, resource string, kind models.Kind, url string, r *models.ByteRange) ([]byte, error) {
	data, err := s.fetcher.FetchBytes(ctx, url, r)
	s.observe(resource, err)
	if err != nil {
		return nil, err
	}
	s.metrics.AddBytes(string(kind), len(data))
	return data, nil
}

// activeSegmentKeys reports the cache keys of every init and media segment
// currently held in a track buffer.
func (s *Session) activeSegmentKeys() map[string]struct{} {
	st, pf := s.state.Get(), s.platform.Get()
	keys := make(map[string]struct{})
	for _, kind := range []models.Kind{models.KindVideo, models.KindAudio} {
		tb := pf.Buffer(kind)
		if tb == nil {
			continue
		}
		if t := st.Presentation.Track(tb.TrackID); t != nil && t.Init != nil {
			keys[fetch.Key(t.Init.URL, t.Init.ByteRange)] = struct{}{}
		}
		for _, seg := range tb.Segments {
			keys[fetch.Key(seg.URL, seg.ByteRange)] = struct{}{}
		}
	}
	return keys
}
