// Package abr chooses a video quality from the available bandwidth.
package abr

import (
	"sort"

	"hlsengine/internal/models"
)

// DefaultSafetyMargin is the share of the measured bandwidth a track may use.
const DefaultSafetyMargin = 0.85

// SelectQuality returns the highest-bandwidth track that fits in
// bandwidthBps*safetyMargin. Ties on bandwidth go to the track with more
// pixels. If nothing fits the lowest-bandwidth track is returned. A
// non-positive safetyMargin means DefaultSafetyMargin. Returns nil for an
// empty list.
func SelectQuality(tracks []*models.Track, bandwidthBps float64, safetyMargin float64) *models.Track {
	if len(tracks) == 0 {
		return nil
	}
	if safetyMargin <= 0 {
		safetyMargin = DefaultSafetyMargin
	}

	sorted := append([]*models.Track(nil), tracks...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Bandwidth < sorted[j].Bandwidth
	})

	var best *models.Track
	for _, t := range sorted {
		if bandwidthBps < float64(t.Bandwidth)/safetyMargin {
			continue
		}
		if best == nil || t.Bandwidth > best.Bandwidth ||
			(t.Bandwidth == best.Bandwidth && t.Pixels() > best.Pixels()) {
			best = t
		}
	}
	if best == nil {
		return sorted[0]
	}
	return best
}
