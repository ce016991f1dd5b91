package depenv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniconv/uniconv/pkg/manifest"
)

func TestGetOrCreateThenSaveRoundTrips(t *testing.T) {
	base := t.TempDir()
	m := NewManager(base)

	env, err := m.GetOrCreate("ai-vision")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "ai-vision"), env.Dir)
	assert.Empty(t, env.Dependencies)

	env.Dependencies = []InstalledDependency{{Name: "Pillow", Runtime: "python", Version: "10.0.0", InstalledAt: currentTimestamp()}}
	env.Fingerprint = "abc123"
	require.NoError(t, env.Save())

	reloaded, err := m.Get("ai-vision")
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	assert.Equal(t, "abc123", reloaded.Fingerprint)
	require.Len(t, reloaded.Dependencies, 1)
	assert.Equal(t, "Pillow", reloaded.Dependencies[0].Name)
}

func TestGetReturnsNilWhenMissing(t *testing.T) {
	m := NewManager(t.TempDir())
	env, err := m.Get("never-installed")
	require.NoError(t, err)
	assert.Nil(t, env)
}

func TestCleanOrphanedRemovesUnlistedEnvironments(t *testing.T) {
	base := t.TempDir()
	m := NewManager(base)
	_, err := m.GetOrCreate("keep-me")
	require.NoError(t, err)
	_, err = m.GetOrCreate("orphaned")
	require.NoError(t, err)

	removed, err := m.CleanOrphaned([]string{"keep-me"})
	require.NoError(t, err)
	assert.Equal(t, []string{"orphaned"}, removed)

	_, err = m.Get("orphaned")
	require.NoError(t, err)
}

func TestFingerprintStableAcrossOrder(t *testing.T) {
	a := []manifest.Dependency{
		{Runtime: "python", Name: "Pillow", Constraint: ">=9.0"},
		{Runtime: "node", Name: "sharp", Constraint: ""},
	}
	b := []manifest.Dependency{a[1], a[0]}

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprintChangesWithConstraint(t *testing.T) {
	a := []manifest.Dependency{{Runtime: "python", Name: "Pillow", Constraint: ">=9.0"}}
	b := []manifest.Dependency{{Runtime: "python", Name: "Pillow", Constraint: ">=10.0"}}
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
}
