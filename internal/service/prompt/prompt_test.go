package prompt

import (
	"testing"

	"github.com/Taichi-iskw/yt-skip/internal/errors"
	"github.com/Taichi-iskw/yt-skip/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	p := Build("https://www.youtube.com/watch?v=abc")

	assert.Contains(t, p, "https://www.youtube.com/watch?v=abc")
	for _, cat := range append(model.RangedCategories, model.InstantCategories...) {
		assert.Contains(t, p, string(cat)+":")
	}
	assert.Contains(t, p, "strictly valid JSON array")
}

func TestExtractArtifact(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    model.Artifact
		wantErr bool
	}{
		{
			name: "bare array",
			text: `[{"type":"sponsor","start":15,"end":45},{"type":"highlight","start":120}]`,
			want: model.Artifact{
				model.Ranged(model.CategorySponsor, 15, 45, ""),
				model.Instant(model.CategoryHighlight, 120, ""),
			},
		},
		{
			name: "array wrapped in markdown",
			text: "Here you go:\n```json\n[{\"type\":\"chapter\",\"start\":0,\"description\":\"Intro\"}]\n```",
			want: model.Artifact{model.Instant(model.CategoryChapter, 0, "Intro")},
		},
		{
			name: "empty array",
			text: "[]",
			want: model.Artifact{},
		},
		{
			name:    "no array",
			text:    "I cannot watch videos.",
			wantErr: true,
		},
		{
			name:    "closing bracket before opening",
			text:    "] nothing [",
			wantErr: true,
		},
		{
			name:    "truncated json",
			text:    `[{"type":"sponsor","start":1,"end":]`,
			wantErr: true,
		},
		{
			name:    "unknown category",
			text:    `[{"type":"music","start":1,"end":2}]`,
			wantErr: true,
		},
		{
			name:    "ranged without end",
			text:    `[{"type":"outro","start":500}]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractArtifact(tt.text)

			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.CodeMalformed, errors.CodeOf(err))
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
