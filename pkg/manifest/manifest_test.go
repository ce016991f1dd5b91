package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `{
		"name": "face-extractor",
		"etl": "extract",
		"targets": ["faces"]
	}`)

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "face-extractor", m.Group)
	assert.Equal(t, "0.0.0", m.Version)
	assert.Equal(t, InterfaceCLI, m.Interface)
	assert.Equal(t, dir, m.PluginDir)
	assert.Equal(t, "face-extractor.extract", m.ID())
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `{"name": "broken"}`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadAcceptsSystemAndNativeModuleDependencies(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `{
		"name": "video-core",
		"etl": "transform",
		"targets": ["mp4"],
		"dependencies": [
			{"runtime": "system", "name": "ffmpeg"},
			{"runtime": "native-module", "name": "libavcodec"},
			{"runtime": "system", "name": "gs", "check": "gs --version | grep -q 10"}
		]
	}`)

	m, err := Load(path)
	require.NoError(t, err)
	require.Len(t, m.Dependencies, 3)
	assert.Equal(t, "native-module", m.Dependencies[1].Runtime)
	assert.Equal(t, "gs --version | grep -q 10", m.Dependencies[2].Check)
}

func TestSupportsInputEmptyMeansAny(t *testing.T) {
	m := &Manifest{InputFormats: nil}
	assert.True(t, m.SupportsInput("heic"))

	m.InputFormats = []string{"HEIC", "png"}
	assert.True(t, m.SupportsInput("heic"))
	assert.False(t, m.SupportsInput("gif"))
}

func TestSupportsTargetCaseInsensitive(t *testing.T) {
	m := &Manifest{Targets: []string{"JPG"}}
	assert.True(t, m.SupportsTarget("jpg"))
	assert.False(t, m.SupportsTarget("png"))
}
