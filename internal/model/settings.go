package model

// Settings holds the user's auto-skip preferences
type Settings struct {
	GlobalAutoSkip bool              `json:"globalAutoSkip"`
	Categories     map[Category]bool `json:"categories"`
}

// DefaultSettings returns the out-of-the-box preferences
func DefaultSettings() Settings {
	return Settings{
		GlobalAutoSkip: true,
		Categories: map[Category]bool{
			CategorySponsor:     true,
			CategorySelfPromo:   true,
			CategoryInteraction: true,
			CategoryOutro:       true,
			CategoryPreview:     false,
			CategoryGreeting:    false,
		},
	}
}

// WithDefaults fills categories missing from s with their default value
func (s Settings) WithDefaults() Settings {
	defaults := DefaultSettings()
	out := Settings{
		GlobalAutoSkip: s.GlobalAutoSkip,
		Categories:     make(map[Category]bool, len(defaults.Categories)),
	}
	for cat, enabled := range defaults.Categories {
		out.Categories[cat] = enabled
	}
	for cat, enabled := range s.Categories {
		if cat.Kind() == KindRanged {
			out.Categories[cat] = enabled
		}
	}
	return out
}

// SkipEnabled reports whether segments of the category are skipped automatically
func (s Settings) SkipEnabled(c Category) bool {
	return s.GlobalAutoSkip && c.Kind() == KindRanged && s.Categories[c]
}

// skipMargin keeps a seek to the exact end of a segment from re-triggering it
const skipMargin = 1.0

// SkipDecision is the answer to "should playback at this position jump?"
type SkipDecision struct {
	Skip    bool     `json:"skip"`
	Segment *Segment `json:"segment,omitempty"`
	// SeekTo is the position to continue playback from
	SeekTo float64 `json:"seekTo,omitempty"`
}

// DecideSkip wraps SkipTarget into a SkipDecision
func DecideSkip(a Artifact, s Settings, t float64) SkipDecision {
	seg, ok := SkipTarget(a, s, t)
	if !ok {
		return SkipDecision{}
	}
	_, end, _ := seg.Range()
	return SkipDecision{Skip: true, Segment: &seg, SeekTo: end}
}

// SkipTarget returns the segment playback at position t should jump over.
// Only enabled ranged categories are considered; the first match in artifact
// order wins.
func SkipTarget(a Artifact, s Settings, t float64) (Segment, bool) {
	for _, seg := range a {
		if !s.SkipEnabled(seg.Category) {
			continue
		}
		start, end, ok := seg.Range()
		if !ok {
			continue
		}
		if t >= start && t < end-skipMargin {
			return seg, true
		}
	}
	return Segment{}, false
}
