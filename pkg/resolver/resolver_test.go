package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniconv/uniconv/pkg/etl"
)

type fakePlugin struct {
	info    etl.Info
	targets map[string]bool
	inputs  map[string]bool
}

func newFake(group string, t etl.Type, targets, inputs []string) *fakePlugin {
	f := &fakePlugin{
		info:    etl.Info{ID: group + "." + t.String(), Group: group, ETL: t, Targets: targets, InputFormats: inputs},
		targets: map[string]bool{},
		inputs:  map[string]bool{},
	}
	for _, t := range targets {
		f.targets[t] = true
	}
	for _, i := range inputs {
		f.inputs[i] = true
	}
	return f
}

func (f *fakePlugin) Info() etl.Info { return f.info }
func (f *fakePlugin) SupportsTarget(target string) bool {
	return f.targets[target]
}
func (f *fakePlugin) SupportsInput(format string) bool {
	if len(f.inputs) == 0 {
		return true
	}
	return f.inputs[format]
}

func TestResolveExplicitHintWins(t *testing.T) {
	r := New()
	imageCore := newFake("image-core", etl.Transform, []string{"jpg"}, nil)
	other := newFake("other", etl.Transform, []string{"jpg"}, nil)

	result := r.Resolve(Context{Target: "jpg", ExplicitHint: "image-core"}, []Plugin{other, imageCore})
	require.NotNil(t, result.Plugin)
	assert.Equal(t, "explicit", result.Rule)
	assert.Equal(t, "image-core", result.Plugin.Info().Group)
}

func TestResolveExplicitHintNotFoundFailsImmediately(t *testing.T) {
	r := New()
	r.SetDefault("jpg", "image-core") // would otherwise match at priority 2
	imageCore := newFake("image-core", etl.Transform, []string{"jpg"}, nil)

	result := r.Resolve(Context{Target: "jpg", ExplicitHint: "nonexistent"}, []Plugin{imageCore})
	assert.Nil(t, result.Plugin)
	assert.Equal(t, "explicit_not_found", result.Rule)
}

func TestResolveDefaultMapping(t *testing.T) {
	r := New()
	r.SetDefault("JPG", "Image-Core")
	imageCore := newFake("image-core", etl.Transform, []string{"jpg"}, nil)
	other := newFake("other", etl.Transform, []string{"jpg"}, nil)

	result := r.Resolve(Context{Target: "jpg"}, []Plugin{other, imageCore})
	require.NotNil(t, result.Plugin)
	assert.Equal(t, "default", result.Rule)
}

func TestResolveTypeAndFormat(t *testing.T) {
	r := New()
	heicOnly := newFake("heic-tools", etl.Transform, []string{"jpg"}, []string{"heic"})
	pngOnly := newFake("png-tools", etl.Transform, []string{"jpg"}, []string{"png"})

	result := r.Resolve(Context{Target: "jpg", InputFormat: "heic"}, []Plugin{pngOnly, heicOnly})
	require.NotNil(t, result.Plugin)
	assert.Equal(t, "type+format", result.Rule)
	assert.Equal(t, "heic-tools", result.Plugin.Info().Group)
}

func TestResolveTargetOnlyFallback(t *testing.T) {
	r := New()
	anyPlugin := newFake("image-core", etl.Transform, []string{"jpg"}, nil)

	result := r.Resolve(Context{Target: "jpg"}, []Plugin{anyPlugin})
	assert.Equal(t, "target", result.Rule)
	assert.Equal(t, anyPlugin, result.Plugin)
}

func TestResolveNoneWhenNoPluginSupportsTarget(t *testing.T) {
	r := New()
	plugin := newFake("image-core", etl.Transform, []string{"jpg"}, nil)

	result := r.Resolve(Context{Target: "pdf"}, []Plugin{plugin})
	assert.Nil(t, result.Plugin)
	assert.Equal(t, "none", result.Rule)
}

func TestResolveCaseInsensitive(t *testing.T) {
	r := New()
	plugin := newFake("image-core", etl.Transform, []string{"jpg"}, nil)

	result := r.Resolve(Context{Target: "JPG"}, []Plugin{plugin})
	assert.Equal(t, "target", result.Rule)
}

func TestResolvePrefersExtractOverTransformOverLoadOnTie(t *testing.T) {
	r := New()
	loader := newFake("archiver", etl.Load, []string{"summary"}, nil)
	transformer := newFake("reporter", etl.Transform, []string{"summary"}, nil)
	extractor := newFake("analyzer", etl.Extract, []string{"summary"}, nil)

	result := r.Resolve(Context{Target: "summary"}, []Plugin{loader, transformer, extractor})
	require.NotNil(t, result.Plugin)
	assert.Equal(t, "analyzer", result.Plugin.Info().Group)
}
