package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniconv/uniconv/pkg/etl"
	"github.com/uniconv/uniconv/pkg/loader"
	"github.com/uniconv/uniconv/pkg/pipeline"
	"github.com/uniconv/uniconv/pkg/resolver"
)

type fakePlugin struct {
	info   etl.Info
	target string
	writes string // content written to the output path on success
}

func (f *fakePlugin) Info() etl.Info                   { return f.info }
func (f *fakePlugin) SupportsTarget(target string) bool { return target == f.target }
func (f *fakePlugin) SupportsInput(format string) bool  { return true }
func (f *fakePlugin) Execute(ctx context.Context, req etl.Request) (etl.Result, error) {
	if err := os.WriteFile(req.Core.Output, []byte(f.writes), 0o644); err != nil {
		return etl.Failure(req.ETL, req.Target, req.Source, err.Error()), nil
	}
	return etl.Success(req.ETL, req.Target, f.info.Group, req.Source, req.Core.Output, 0, int64(len(f.writes))), nil
}

// scatterPlugin writes writes[0], writes[1], ... as sibling files next to
// req.Core.Output and reports all of them, simulating a plugin that splits
// one input into several outputs (e.g. a document paginator).
type scatterPlugin struct {
	info    etl.Info
	target  string
	writes  []string
	fakeOut string
}

func (f *scatterPlugin) Info() etl.Info                   { return f.info }
func (f *scatterPlugin) SupportsTarget(target string) bool { return target == f.target }
func (f *scatterPlugin) SupportsInput(format string) bool  { return true }
func (f *scatterPlugin) Execute(ctx context.Context, req etl.Request) (etl.Result, error) {
	dir := filepath.Dir(req.Core.Output)
	var outputs []string
	for i, content := range f.writes {
		path := filepath.Join(dir, fmt.Sprintf("scatter_%d_%s", i, filepath.Base(req.Core.Output)))
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return etl.Failure(req.ETL, req.Target, req.Source, err.Error()), nil
		}
		outputs = append(outputs, path)
	}
	result := etl.Success(req.ETL, req.Target, f.info.Group, req.Source, outputs[0], 0, int64(len(f.writes[0])))
	result.Outputs = outputs
	return result, nil
}

type fakeResolver struct{}

func (fakeResolver) Resolve(ctx resolver.Context, plugins []resolver.Plugin) resolver.Result {
	for _, p := range plugins {
		if p.SupportsTarget(ctx.Target) {
			return resolver.Result{Plugin: p, Rule: "target"}
		}
	}
	return resolver.Result{Rule: "none"}
}

func pluginsOf(plugins ...*fakePlugin) []loader.Plugin {
	out := make([]loader.Plugin, len(plugins))
	for i, p := range plugins {
		out[i] = p
	}
	return out
}

func TestExecuteSingleStageConversion(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "photo.heic")
	require.NoError(t, os.WriteFile(source, []byte("heic-bytes"), 0o644))

	plugin := &fakePlugin{info: etl.Info{ID: "image-core.transform", Group: "image-core", ETL: etl.Transform}, target: "jpg", writes: "jpg-bytes"}

	p, err := pipeline.Parse("jpg", source, etl.CoreOptions{})
	require.NoError(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	ex := New(pluginsOf(plugin), fakeResolver{}, dir)
	result := ex.Execute(context.Background(), p)

	require.True(t, result.Success, result.Error)
	require.Len(t, result.FinalOutputs, 1)
	content, err := os.ReadFile(result.FinalOutputs[0])
	require.NoError(t, err)
	assert.Equal(t, "jpg-bytes", string(content))
}

func TestExecuteNoMatchingPluginFails(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "photo.heic")
	require.NoError(t, os.WriteFile(source, []byte("heic-bytes"), 0o644))

	p, err := pipeline.Parse("pdf", source, etl.CoreOptions{})
	require.NoError(t, err)

	ex := New(pluginsOf(), fakeResolver{}, dir)
	result := ex.Execute(context.Background(), p)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "no plugin found")
}

func TestExecuteTeeFanOutThenCollect(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "photo.heic")
	require.NoError(t, os.WriteFile(source, []byte("heic-bytes"), 0o644))

	jpg := &fakePlugin{info: etl.Info{ID: "image-core.transform", Group: "image-core", ETL: etl.Transform}, target: "jpg", writes: "jpg-bytes"}

	p, err := pipeline.Parse("tee | jpg, jpg | collect", source, etl.CoreOptions{})
	require.NoError(t, err)

	ex := New(pluginsOf(jpg), fakeResolver{}, dir)
	result := ex.Execute(context.Background(), p)

	require.True(t, result.Success, result.Error)
	require.Len(t, result.FinalOutputs, 1)

	entries, err := os.ReadDir(result.FinalOutputs[0])
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestExpandCollectDirectoryFiltersByGlobAndSorts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.jpg"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.jpg"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	files, err := expandCollectDirectory(dir, map[string]string{"glob": "*.jpg"})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(dir, "a.jpg"), files[0])
	assert.Equal(t, filepath.Join(dir, "b.jpg"), files[1])
}

func TestExpandCollectDirectoryNonRecursiveSkipsSubdirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.jpg"), []byte("a"), 0o644))
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "b.jpg"), []byte("b"), 0o644))

	files, err := expandCollectDirectory(dir, nil)
	require.NoError(t, err)
	require.Len(t, files, 1)

	recursive, err := expandCollectDirectory(dir, map[string]string{"recursive": "true"})
	require.NoError(t, err)
	require.Len(t, recursive, 2)
}

func TestExecuteScatterThenCollectReconvergesIntoOneDirectory(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "book.pdf")
	require.NoError(t, os.WriteFile(source, []byte("pdf-bytes"), 0o644))

	paginate := &scatterPlugin{
		info:   etl.Info{ID: "doc-core.transform", Group: "doc-core", ETL: etl.Transform},
		target: "png",
		writes: []string{"page-one", "page-two", "page-three"},
	}

	p, err := pipeline.Parse("png | collect", source, etl.CoreOptions{})
	require.NoError(t, err)

	ex := New(pluginsOf(paginate), fakeResolver{}, dir)
	result := ex.Execute(context.Background(), p)

	require.True(t, result.Success, result.Error)
	require.Len(t, result.FinalOutputs, 1)

	entries, err := os.ReadDir(result.FinalOutputs[0])
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestExecuteScatterWithoutCollectFinalizesEachLeafSeparately(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "book.pdf")
	require.NoError(t, os.WriteFile(source, []byte("pdf-bytes"), 0o644))

	paginate := &scatterPlugin{
		info:   etl.Info{ID: "doc-core.transform", Group: "doc-core", ETL: etl.Transform},
		target: "png",
		writes: []string{"page-one", "page-two"},
	}

	p, err := pipeline.Parse("png", source, etl.CoreOptions{})
	require.NoError(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	ex := New(pluginsOf(paginate), fakeResolver{}, dir)
	result := ex.Execute(context.Background(), p)

	require.True(t, result.Success, result.Error)
	require.Len(t, result.FinalOutputs, 2)
	for _, out := range result.FinalOutputs {
		_, err := os.Stat(out)
		assert.NoError(t, err)
	}
}

func TestExecuteScatterRejectsExplicitOutputWithMultipleLeaves(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "book.pdf")
	require.NoError(t, os.WriteFile(source, []byte("pdf-bytes"), 0o644))

	paginate := &scatterPlugin{
		info:   etl.Info{ID: "doc-core.transform", Group: "doc-core", ETL: etl.Transform},
		target: "png",
		writes: []string{"page-one", "page-two"},
	}

	p, err := pipeline.Parse("png", source, etl.CoreOptions{Output: filepath.Join(dir, "out")})
	require.NoError(t, err)

	ex := New(pluginsOf(paginate), fakeResolver{}, dir)
	result := ex.Execute(context.Background(), p)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "--output")
}

func TestExpandCollectDirectoryErrorsWhenNoMatches(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))

	_, err := expandCollectDirectory(dir, map[string]string{"glob": "*.jpg"})
	require.Error(t, err)
}
