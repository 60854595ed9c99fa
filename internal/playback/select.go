package playback

import (
	"fmt"
	"path"
	"strings"

	"hlsengine/internal/abr"
	"hlsengine/internal/models"
)

// SelectionPolicy holds the preferences automatic track selection applies.
type SelectionPolicy struct {
	BandwidthBps           float64
	SafetyMargin           float64
	AudioLanguage          string
	SubtitleLanguage       string
	IncludeForcedSubtitles bool
}

// Selection is the outcome of automatic track selection. Empty IDs mean no
// track of that kind is selected.
type Selection struct {
	Video string
	Audio string
	Text  string
}

// SelectTracks picks one track per kind from a resolved presentation.
func SelectTracks(p *models.Presentation, policy SelectionPolicy) Selection {
	var sel Selection
	video := abr.SelectQuality(p.Tracks(models.KindVideo), policy.BandwidthBps, policy.SafetyMargin)
	if video != nil {
		sel.Video = video.ID
	}
	if audio := selectAudio(p.Tracks(models.KindAudio), video, policy.AudioLanguage); audio != nil {
		sel.Audio = audio.ID
	}
	if text := selectText(p.Tracks(models.KindText), policy.SubtitleLanguage, policy.IncludeForcedSubtitles); text != nil {
		sel.Text = text.ID
	}
	return sel
}

// selectAudio narrows candidates to the variant's audio group when it has
// one, then prefers the requested language, then the default rendition,
// then the first.
func selectAudio(tracks []*models.Track, variant *models.Track, language string) *models.Track {
	if len(tracks) == 0 {
		return nil
	}
	if variant != nil && variant.AudioGroup != "" {
		var grouped []*models.Track
		for _, t := range tracks {
			if t.AudioGroup == variant.AudioGroup {
				grouped = append(grouped, t)
			}
		}
		if len(grouped) > 0 {
			tracks = grouped
		}
	}
	if language != "" {
		for _, t := range tracks {
			if languageMatches(t.Language, language) {
				return t
			}
		}
	}
	for _, t := range tracks {
		if t.Default {
			return t
		}
	}
	return tracks[0]
}

// selectText only selects when a language is requested. Forced renditions
// are skipped unless includeForced is set.
func selectText(tracks []*models.Track, language string, includeForced bool) *models.Track {
	if language == "" {
		return nil
	}
	for _, t := range tracks {
		if t.Forced && !includeForced {
			continue
		}
		if languageMatches(t.Language, language) {
			return t
		}
	}
	return nil
}

// languageMatches compares BCP 47 tags on their primary subtag when either
// side has no region, so "en" matches "en-US".
func languageMatches(have, want string) bool {
	have, want = strings.ToLower(have), strings.ToLower(want)
	if have == "" || want == "" {
		return false
	}
	if have == want {
		return true
	}
	hp, _, hr := strings.Cut(have, "-")
	wp, _, wr := strings.Cut(want, "-")
	return hp == wp && (!hr || !wr)
}

// MimeType returns the append-buffer MIME type with codecs for a resolved
// track. fMP4 tracks carry an initialization segment; otherwise the
// container is inferred from the first segment's extension.
func MimeType(kind models.Kind, t *models.Track) string {
	major := "video"
	if kind == models.KindAudio {
		major = "audio"
	}
	subtype := "mp4"
	if t.Init == nil && len(t.Segments) > 0 {
		switch strings.ToLower(path.Ext(urlPath(t.Segments[0].URL))) {
		case ".ts":
			major, subtype = "video", "mp2t"
		case ".aac":
			major, subtype = "audio", "aac"
		}
	}
	if len(t.Codecs) == 0 {
		return major + "/" + subtype
	}
	return fmt.Sprintf(`%s/%s; codecs="%s"`, major, subtype, strings.Join(t.Codecs, ","))
}

func urlPath(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}
