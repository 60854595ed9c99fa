package models

import "github.com/google/uuid"

// SwitchingSet groups tracks that are mutually substitutable.
type SwitchingSet struct {
	ID      string
	BaseURL string
	Tracks  []*Track
}

// SelectionSet groups switching sets of one kind that are mutually exclusive.
type SelectionSet struct {
	ID            string
	Kind          Kind
	SwitchingSets []SwitchingSet
}

// Presentation is the whole playable asset described by a multivariant manifest.
//
// A Presentation is a persistent snapshot. Methods that change it return a new
// value which shares every untouched subtree with the receiver, so a reader
// holding an older snapshot keeps a consistent view.
type Presentation struct {
	ID      string
	URL     string
	BaseURL string

	StartTime float64
	// Duration and EndTime are both nil until a track has been resolved.
	Duration *float64
	EndTime  *float64

	// SelectionSets is nil until the multivariant manifest has been parsed.
	SelectionSets []SelectionSet
}

// NewPresentation returns an unresolved presentation for url.
func NewPresentation(url string) *Presentation {
	return &Presentation{
		ID:  uuid.NewString(),
		URL: url,
	}
}

// NewID returns a fresh identity for presentation tree nodes.
func NewID() string {
	return uuid.NewString()
}

// IsResolved reports whether the multivariant manifest has been parsed.
func (p *Presentation) IsResolved() bool {
	return p != nil && p.SelectionSets != nil
}

// HasDuration reports whether the duration has been computed.
func (p *Presentation) HasDuration() bool {
	return p != nil && p.Duration != nil && p.EndTime != nil
}

// Tracks returns every track of the given kind in manifest order.
func (p *Presentation) Tracks(kind Kind) []*Track {
	if p == nil {
		return nil
	}
	var out []*Track
	for _, ss := range p.SelectionSets {
		if ss.Kind != kind {
			continue
		}
		for _, sw := range ss.SwitchingSets {
			out = append(out, sw.Tracks...)
		}
	}
	return out
}

// Track looks a track up by ID.
func (p *Presentation) Track(id string) *Track {
	if p == nil || id == "" {
		return nil
	}
	for _, ss := range p.SelectionSets {
		for _, sw := range ss.SwitchingSets {
			for _, t := range sw.Tracks {
				if t.ID == id {
					return t
				}
			}
		}
	}
	return nil
}

// WithTrack returns a copy of p in which the track with the same ID as t is
// replaced by t. If no such track exists p is returned unchanged.
func (p *Presentation) WithTrack(t *Track) *Presentation {
	for i, ss := range p.SelectionSets {
		for j, sw := range ss.SwitchingSets {
			for k, old := range sw.Tracks {
				if old.ID != t.ID {
					continue
				}
				tracks := append([]*Track(nil), sw.Tracks...)
				tracks[k] = t

				switching := append([]SwitchingSet(nil), ss.SwitchingSets...)
				switching[j].Tracks = tracks

				sets := append([]SelectionSet(nil), p.SelectionSets...)
				sets[i].SwitchingSets = switching

				next := *p
				next.SelectionSets = sets
				return &next
			}
		}
	}
	return p
}

// WithDuration returns a copy of p with duration and end time set.
func (p *Presentation) WithDuration(d float64) *Presentation {
	end := p.StartTime + d
	next := *p
	next.Duration = &d
	next.EndTime = &end
	return &next
}
