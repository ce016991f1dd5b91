package command

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/uniconv/uniconv/pkg/etl"
	"github.com/uniconv/uniconv/pkg/executor"
)

func TestRenderSummaryIncludesStagesAndOutputs(t *testing.T) {
	result := executor.Result{
		Success: true,
		StageResults: []executor.StageResult{
			{StageIndex: 0, Target: "png", PluginUsed: "image-core", Status: etl.StatusSuccess},
		},
		FinalOutputs:  []string{"/tmp/out.png"},
		TotalDuration: 42 * time.Millisecond,
	}

	out := renderSummary(result)
	assert.Contains(t, out, "stage 0: png")
	assert.Contains(t, out, "image-core")
	assert.Contains(t, out, "/tmp/out.png")
	assert.Contains(t, out, "1 output(s)")
}

func TestRenderSummaryShowsErrorAndWarnings(t *testing.T) {
	result := executor.Result{
		Success: false,
		StageResults: []executor.StageResult{
			{StageIndex: 0, Target: "png", Status: etl.StatusError, Error: "no plugin matched"},
		},
		Warnings: []string{"terminal node produced no output"},
		Error:    "pipeline failed",
	}

	out := renderSummary(result)
	assert.Contains(t, out, "no plugin matched")
	assert.Contains(t, out, "terminal node produced no output")
	assert.Contains(t, out, "pipeline failed")
}
