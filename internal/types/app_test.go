package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordJSONWireFormat(t *testing.T) {
	record := Record{
		FilePath:   "/home/alice/.local/share/zap/appimages/App.AppImage",
		Executable: "myapp",
		Source:     RawURL{URL: "https://example.com/App.AppImage"},
	}

	b, err := json.Marshal(record)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))

	assert.Equal(t, "myapp", raw["executable"])
	assert.Equal(t, record.FilePath, raw["file_path"])
	source := raw["source"].(map[string]any)
	assert.Equal(t, "raw_url", source["identifier"])
	assert.Equal(t, "https://example.com/App.AppImage", source["meta"].(map[string]any)["url"])
}

func TestRecordJSONPreservesSourceVariant(t *testing.T) {
	tests := []struct {
		name   string
		source Source
	}{
		{name: "raw url", source: RawURL{URL: "https://example.com/App.AppImage"}},
		{name: "github release", source: GitHubRelease{Slug: "owner/repo"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := Record{FilePath: "/tmp/App.AppImage", Executable: "app", Source: tt.source}

			b, err := json.Marshal(in)
			require.NoError(t, err)

			var out Record
			require.NoError(t, json.Unmarshal(b, &out))
			assert.Equal(t, in, out)
		})
	}
}

func TestRecordUnmarshalRejectsUnknownIdentifier(t *testing.T) {
	data := []byte(`{"file_path":"/x","executable":"x","source":{"identifier":"git.gitlab","meta":{"url":"a/b"}}}`)

	var out Record
	err := json.Unmarshal(data, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "git.gitlab")
}

func TestRecordMarshalRequiresSource(t *testing.T) {
	_, err := json.Marshal(Record{Executable: "x"})
	require.Error(t, err)
}
