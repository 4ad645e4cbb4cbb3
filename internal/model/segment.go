package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Taichi-iskw/yt-skip/internal/errors"
)

// VideoID uniquely identifies a YouTube video across sessions
type VideoID string

// Validate checks that the id is usable as a cache key
func (id VideoID) Validate() error {
	if strings.TrimSpace(string(id)) == "" {
		return errors.New(errors.CodeInvalidArg, "video ID is required")
	}
	return nil
}

// Category is the label the engine assigns to a segment
type Category string

// CategoryKind determines the shape of a segment
type CategoryKind int

const (
	KindUnknown CategoryKind = iota
	KindRanged               // has start and end
	KindInstant              // has start only
)

// Ranged categories
const (
	CategorySponsor     Category = "sponsor"
	CategorySelfPromo   Category = "selfpromo"
	CategoryInteraction Category = "interaction"
	CategoryOutro       Category = "outro"
	CategoryPreview     Category = "preview"
	CategoryGreeting    Category = "greeting"
)

// Instant categories
const (
	CategoryChapter   Category = "chapter"
	CategoryHighlight Category = "highlight"
)

var categoryKinds = map[Category]CategoryKind{
	CategorySponsor:     KindRanged,
	CategorySelfPromo:   KindRanged,
	CategoryInteraction: KindRanged,
	CategoryOutro:       KindRanged,
	CategoryPreview:     KindRanged,
	CategoryGreeting:    KindRanged,
	CategoryChapter:     KindInstant,
	CategoryHighlight:   KindInstant,
}

// RangedCategories lists the categories that can be auto-skipped, in display order
var RangedCategories = []Category{
	CategorySponsor,
	CategorySelfPromo,
	CategoryInteraction,
	CategoryOutro,
	CategoryPreview,
	CategoryGreeting,
}

// InstantCategories lists the point categories, in display order
var InstantCategories = []Category{
	CategoryChapter,
	CategoryHighlight,
}

// Kind returns the kind of the category
func (c Category) Kind() CategoryKind {
	return categoryKinds[c]
}

// Segment is one finding from analysis.
// End is only set for ranged categories.
type Segment struct {
	Category    Category `json:"type" jsonschema:"enum=sponsor,enum=selfpromo,enum=interaction,enum=outro,enum=preview,enum=greeting,enum=chapter,enum=highlight"`
	Start       float64  `json:"start"`
	End         *float64 `json:"end,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Range returns start and end of a ranged segment; ok is false for instant segments
func (s Segment) Range() (start, end float64, ok bool) {
	if s.Category.Kind() != KindRanged || s.End == nil {
		return s.Start, 0, false
	}
	return s.Start, *s.End, true
}

// Validate checks the segment against its category kind
func (s Segment) Validate() error {
	kind := s.Category.Kind()
	if kind == KindUnknown {
		return errors.New(errors.CodeInvalidArg, fmt.Sprintf("unknown category %q", s.Category))
	}

	if s.Start < 0 {
		return errors.New(errors.CodeInvalidArg, fmt.Sprintf("%s: start must be non-negative", s.Category))
	}

	switch kind {
	case KindRanged:
		if s.End == nil {
			return errors.New(errors.CodeInvalidArg, fmt.Sprintf("%s: end is required", s.Category))
		}
		if *s.End <= s.Start {
			return errors.New(errors.CodeInvalidArg, fmt.Sprintf("%s: end must be greater than start", s.Category))
		}
	case KindInstant:
		if s.End != nil {
			return errors.New(errors.CodeInvalidArg, fmt.Sprintf("%s: instant segment must not have an end", s.Category))
		}
	}

	return nil
}

// Ranged creates a ranged segment
func Ranged(category Category, start, end float64, description string) Segment {
	return Segment{Category: category, Start: start, End: &end, Description: description}
}

// Instant creates an instant segment
func Instant(category Category, start float64, description string) Segment {
	return Segment{Category: category, Start: start, Description: description}
}

// Artifact is the ordered list of segments produced for one video
type Artifact []Segment

// Validate checks every segment of the artifact
func (a Artifact) Validate() error {
	for i, seg := range a {
		if err := seg.Validate(); err != nil {
			return errors.Wrap(err, errors.CodeInvalidArg, fmt.Sprintf("segment %d is invalid", i))
		}
	}
	return nil
}

// Sorted returns a copy ordered by start time
func (a Artifact) Sorted() Artifact {
	out := make(Artifact, len(a))
	copy(out, a)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start < out[j].Start
	})
	return out
}
