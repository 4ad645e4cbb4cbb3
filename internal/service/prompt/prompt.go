// Package prompt holds the analysis instructions sent to every engine and the
// parser for the free-text answers engines send back.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Taichi-iskw/yt-skip/internal/errors"
	"github.com/Taichi-iskw/yt-skip/internal/model"
)

// PromptVersion changes whenever the template below changes meaning
const PromptVersion = "v2"

const template = `Analyze the video at this link: %s
Find exact timings (in seconds) for the following categories, if present:

Segments (have a start and an end):
1. sponsor: Paid promotion, referral links, direct advertising (not the creator's own passion projects).
2. selfpromo: Unpaid or self promotion (merch, donations, collaborations).
3. interaction: Reminders to like, subscribe or share (even short ones).
4. outro: Credits or end cards without story or educational content.
5. preview: A montage of what comes later in the video, a recap.
6. greeting: Trailers, spoken greetings and goodbyes, empty chatter at the start with no information.

Points (have only an exact start time):
7. chapter: Titles of the main chapters of the video.
8. highlight: The most important part of the video, the answer to the clickbait ("the video starts here").

Every element is an object {"type", "start", "end", "description"}.
Omit "end" for chapter and highlight. "description" is a short phrase.
Output ONLY a strictly valid JSON array and not a single other word (no markdown).
Example:
[
  {"type": "sponsor", "start": 15, "end": 45, "description": "VPN ad"},
  {"type": "highlight", "start": 120, "description": "The answer"}
]`

// Build returns the analysis prompt for the video at videoURL
func Build(videoURL string) string {
	return fmt.Sprintf(template, videoURL)
}

// ExtractArtifact pulls the JSON array out of an engine answer and validates it.
// Anything before the first '[' or after the last ']' is ignored.
func ExtractArtifact(text string) (model.Artifact, error) {
	start := strings.IndexByte(text, '[')
	end := strings.LastIndexByte(text, ']')
	if start == -1 || end == -1 || end <= start {
		return nil, errors.New(errors.CodeMalformed, "no JSON array found in engine response")
	}

	var artifact model.Artifact
	if err := json.Unmarshal([]byte(text[start:end+1]), &artifact); err != nil {
		return nil, errors.Wrap(err, errors.CodeMalformed, "engine response is not a valid JSON array")
	}
	if artifact == nil {
		artifact = model.Artifact{}
	}

	if err := artifact.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CodeMalformed, "engine response contains invalid segments")
	}
	return artifact, nil
}
