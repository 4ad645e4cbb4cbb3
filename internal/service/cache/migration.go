package cache

import (
	"encoding/json"

	apperrors "github.com/Taichi-iskw/yt-skip/internal/errors"
	"github.com/Taichi-iskw/yt-skip/internal/model"
)

// legacyLookup finds id in the legacy aggregate blob {videoId: artifact}.
// Entries other than id are not decoded, so one corrupt entry does not hide the rest.
func legacyLookup(blob []byte, id model.VideoID) (model.Artifact, bool, error) {
	if len(blob) == 0 {
		return nil, false, nil
	}

	var entries map[model.VideoID]json.RawMessage
	if err := json.Unmarshal(blob, &entries); err != nil {
		return nil, false, apperrors.Wrap(err, apperrors.CodeStorage, "legacy cache blob is corrupt")
	}

	raw, ok := entries[id]
	if !ok || string(raw) == "null" {
		return nil, false, nil
	}

	artifact, err := decodeArtifact(raw)
	if err != nil {
		return nil, false, err
	}
	return artifact, true, nil
}

// decodeArtifact parses a stored artifact
func decodeArtifact(raw []byte) (model.Artifact, error) {
	var artifact model.Artifact
	if err := json.Unmarshal(raw, &artifact); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStorage, "cached artifact is corrupt")
	}
	if artifact == nil {
		artifact = model.Artifact{}
	}
	return artifact, nil
}
