package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/uniconv/uniconv/pkg/etl"
	"github.com/uniconv/uniconv/pkg/manifest"
)

func TestBuildArgumentsUniversalFlags(t *testing.T) {
	p := NewCLIPlugin(&manifest.Manifest{Group: "image-core"}, nil)
	req := etl.Request{
		Source: "/in.heic",
		Target: "jpg",
		Core:   etl.CoreOptions{Output: "/out.jpg", Force: true, DryRun: true},
	}

	args := p.buildArguments(req)
	assert.Equal(t, []string{
		"--input", "/in.heic",
		"--target", "jpg",
		"--output", "/out.jpg",
		"--force",
		"--dry-run",
	}, args)
}

func TestBuildArgumentsPluginOptionsAfterDoubleDash(t *testing.T) {
	p := NewCLIPlugin(&manifest.Manifest{Group: "image-core"}, nil)
	req := etl.Request{
		Source:        "/in.heic",
		Target:        "jpg",
		PluginOptions: []string{"--quality", "90"},
	}

	args := p.buildArguments(req)
	assert.Equal(t, []string{
		"--input", "/in.heic",
		"--target", "jpg",
		"--",
		"--quality", "90",
	}, args)
}

func TestParseResultSuccessJSON(t *testing.T) {
	p := NewCLIPlugin(&manifest.Manifest{Group: "image-core"}, nil)
	req := etl.Request{Target: "jpg", Source: "/in.heic"}

	body := []byte(`{"success":true,"output":"/out.jpg","output_size":1024}`)
	result := p.parseResult(req, body, "", 0)

	assert.Equal(t, etl.StatusSuccess, result.Status)
	assert.Equal(t, "/out.jpg", result.Output)
	assert.EqualValues(t, 1024, result.OutputSize)
}

func TestParseResultNonZeroExitNoStdout(t *testing.T) {
	p := NewCLIPlugin(&manifest.Manifest{Group: "image-core"}, nil)
	req := etl.Request{Target: "jpg", Source: "/in.heic"}

	result := p.parseResult(req, nil, "boom", 1)
	assert.Equal(t, etl.StatusError, result.Status)
	assert.Contains(t, result.Error, "boom")
	assert.Contains(t, result.Error, "1")
}

func TestParseResultScatterOutputsPopulatesOutputsSlice(t *testing.T) {
	p := NewCLIPlugin(&manifest.Manifest{Group: "doc-core"}, nil)
	req := etl.Request{Target: "png", Source: "/in.pdf"}

	body := []byte(`{"success":true,"outputs":["/page1.png","/page2.png"]}`)
	result := p.parseResult(req, body, "", 0)

	assert.Equal(t, etl.StatusSuccess, result.Status)
	assert.Equal(t, []string{"/page1.png", "/page2.png"}, result.Outputs)
	assert.Equal(t, "/page1.png", result.Output)
}

func TestParseResultNonZeroExitWithSuccessJSONIsStillFailure(t *testing.T) {
	p := NewCLIPlugin(&manifest.Manifest{Group: "image-core"}, nil)
	req := etl.Request{Target: "jpg", Source: "/in.heic"}

	body := []byte(`{"success":true,"output":"/out.jpg"}`)
	result := p.parseResult(req, body, "", 1)

	assert.Equal(t, etl.StatusError, result.Status)
	assert.Contains(t, result.Error, "1")
}

func TestParseResultInvalidJSON(t *testing.T) {
	p := NewCLIPlugin(&manifest.Manifest{Group: "image-core"}, nil)
	req := etl.Request{Target: "jpg", Source: "/in.heic"}

	result := p.parseResult(req, []byte("not json"), "stderr text", 0)
	assert.Equal(t, etl.StatusError, result.Status)
	assert.Contains(t, result.Error, "stderr text")
}

func TestResolveExecutableAbsolutePathUsedAsIs(t *testing.T) {
	p := NewCLIPlugin(&manifest.Manifest{Executable: "/usr/bin/convert-thing"}, nil)
	assert.Equal(t, "/usr/bin/convert-thing", p.resolveExecutable())
}
