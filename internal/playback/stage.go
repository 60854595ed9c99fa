package playback

import (
	"fmt"

	"hlsengine/internal/buffer"
	"hlsengine/internal/models"
)

// Stage is the furthest pipeline gate a session has passed.
type Stage int

const (
	StageIdle Stage = iota
	StageURLSet
	StagePresentationResolved
	StageTracksSelected
	StageTracksResolved
	StageMediaSourceOpen
	StageBuffersCreated
	StageLoading
	StageEnded
)

var stageNames = [...]string{
	StageIdle:                 "idle",
	StageURLSet:               "url-set",
	StagePresentationResolved: "presentation-resolved",
	StageTracksSelected:       "tracks-selected",
	StageTracksResolved:       "tracks-resolved",
	StageMediaSourceOpen:      "media-source-open",
	StageBuffersCreated:       "track-buffers-created",
	StageLoading:              "segments-loading",
	StageEnded:                "end-of-stream",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// transitions lists the stages reachable from each stage. Every stage may
// fall back to StageURLSet or StageIdle when a new URL is loaded or the
// session is reset; a media source may be opened before tracks resolve.
var transitions = map[Stage][]Stage{
	StageIdle:                 {StageURLSet},
	StageURLSet:               {StagePresentationResolved, StageIdle},
	StagePresentationResolved: {StageTracksSelected, StageURLSet, StageIdle},
	StageTracksSelected:       {StageTracksResolved, StageMediaSourceOpen, StageURLSet, StageIdle},
	StageTracksResolved:       {StageMediaSourceOpen, StageURLSet, StageIdle},
	StageMediaSourceOpen:      {StageBuffersCreated, StageURLSet, StageIdle},
	StageBuffersCreated:       {StageLoading, StageURLSet, StageIdle},
	StageLoading:              {StageEnded, StageURLSet, StageIdle},
	StageEnded:                {StageURLSet, StageIdle},
}

// CanTransition reports whether the pipeline may move from one stage to
// another. Staying in a stage is always allowed.
func CanTransition(from, to Stage) bool {
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CurrentStage derives the stage from a state and platform snapshot.
func CurrentStage(st State, pf Platform) Stage {
	switch {
	case st.URL == "" || st.Presentation == nil:
		return StageIdle
	case !st.Presentation.IsResolved():
		return StageURLSet
	case st.SelectionFor != st.Presentation.ID:
		return StagePresentationResolved
	}
	kinds := selectedMediaKinds(st)
	resolved := true
	for _, k := range kinds {
		if !st.SelectedTrack(k).IsResolved() {
			resolved = false
		}
	}
	switch {
	case pf.Ended:
		return StageEnded
	case pf.MediaSource == nil && !resolved:
		return StageTracksSelected
	case pf.MediaSource == nil:
		return StageTracksResolved
	}
	created := len(kinds) > 0
	loading := false
	for _, k := range kinds {
		tb := pf.Buffer(k)
		if tb == nil {
			created = false
			continue
		}
		if tb.InitAppended || len(tb.Segments) > 0 {
			loading = true
		}
	}
	switch {
	case !created:
		return StageMediaSourceOpen
	case !loading:
		return StageBuffersCreated
	}
	return StageLoading
}

// selectedMediaKinds lists the kinds with an append buffer that have a
// selected track.
func selectedMediaKinds(st State) []models.Kind {
	var kinds []models.Kind
	for _, k := range []models.Kind{models.KindVideo, models.KindAudio} {
		if st.SelectedID(k) != "" {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// fullyBuffered reports whether every selected media track has a buffer
// whose ledger contiguously covers the presentation from the flush point
// to its end. Coverage starts at FlushedTo rather than 0: media behind the
// back-buffer flush point was buffered and then deliberately removed.
func fullyBuffered(st State, pf Platform, tolerance float64) bool {
	if !st.Presentation.HasDuration() {
		return false
	}
	kinds := selectedMediaKinds(st)
	if len(kinds) == 0 {
		return false
	}
	end := *st.Presentation.Duration
	for _, k := range kinds {
		tb := pf.Buffer(k)
		if tb == nil || tb.TrackID != st.SelectedID(k) {
			return false
		}
		if !buffer.Covered(tb.Segments, tb.FlushedTo, end, tolerance) {
			return false
		}
	}
	return true
}
