package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniconv/uniconv/pkg/etl"
)

func TestRegistryAddGetList(t *testing.T) {
	r := New()
	r.Add(etl.Info{ID: "ai-vision.extract", Group: "ai-vision", ETL: etl.Extract})
	r.Add(etl.Info{ID: "image-core.transform", Group: "image-core", ETL: etl.Transform})

	info, ok := r.Get("ai-vision.extract")
	require.True(t, ok)
	assert.Equal(t, "ai-vision", info.Group)

	_, ok = r.Get("missing.transform")
	assert.False(t, ok)

	assert.Len(t, r.List(), 2)
}

func TestRegistryByGroupAcrossETLKinds(t *testing.T) {
	r := New()
	r.Add(etl.Info{ID: "image-core.transform", Group: "image-core", ETL: etl.Transform})
	r.Add(etl.Info{ID: "image-core.extract", Group: "image-core", ETL: etl.Extract})
	r.Add(etl.Info{ID: "other.transform", Group: "other", ETL: etl.Transform})

	assert.Len(t, r.ByGroup("image-core"), 2)
}

func TestDefaultMappingPersistsAcrossOpen(t *testing.T) {
	dir := t.TempDir()

	m, err := OpenDefaultMapping(dir)
	require.NoError(t, err)
	require.NoError(t, m.Set("JPG", "image-core"))

	group, ok := m.Get("jpg")
	require.True(t, ok)
	assert.Equal(t, "image-core", group)

	reopened, err := OpenDefaultMapping(dir)
	require.NoError(t, err)
	group, ok = reopened.Get("jpg")
	require.True(t, ok)
	assert.Equal(t, "image-core", group)
}

func TestDefaultMappingRemove(t *testing.T) {
	dir := t.TempDir()
	m, err := OpenDefaultMapping(dir)
	require.NoError(t, err)
	require.NoError(t, m.Set("gif", "image-core"))
	require.NoError(t, m.Remove("gif"))

	_, ok := m.Get("gif")
	assert.False(t, ok)
}
