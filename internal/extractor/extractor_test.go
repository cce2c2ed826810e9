package extractor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"batch-video-downloader/pkg/models"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []models.LinkEntry
		wantErr error
	}{
		{
			name:  "filters blanks comments and adds scheme",
			input: "\n# a comment\nexample.com/x\n",
			want: []models.LinkEntry{
				{Index: 1, RawURL: "https://example.com/x"},
			},
		},
		{
			name:  "keeps explicit scheme",
			input: "http://example.com/a\nhttps://example.com/b",
			want: []models.LinkEntry{
				{Index: 1, RawURL: "http://example.com/a"},
				{Index: 2, RawURL: "https://example.com/b"},
			},
		},
		{
			name:  "trims surrounding whitespace",
			input: "  https://example.com/a  \r",
			want: []models.LinkEntry{
				{Index: 1, RawURL: "https://example.com/a"},
			},
		},
		{
			name:  "indices follow filtered position",
			input: "# header\nexample.com/a\n\nexample.com/b",
			want: []models.LinkEntry{
				{Index: 1, RawURL: "https://example.com/a"},
				{Index: 2, RawURL: "https://example.com/b"},
			},
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: ErrEmptyBatch,
		},
		{
			name:    "only comments and blanks",
			input:   "# one\n\n# two\n",
			wantErr: ErrEmptyBatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.input)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
