package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniconv/uniconv/pkg/etl"
	"github.com/uniconv/uniconv/pkg/graph"
	"github.com/uniconv/uniconv/pkg/pipeline"
)

func TestFinalPathForAppendsExtensionWhenOutputIsBare(t *testing.T) {
	p := pipeline.Pipeline{Source: "photo.heic", Core: etl.CoreOptions{Output: "out/result"}}
	node := &graph.Node{Target: "jpg"}

	dest, err := finalPathFor(p, node, "/tmp/stage.jpg", 1)
	require.NoError(t, err)
	assert.Equal(t, "out/result.jpg", dest)
}

func TestFinalPathForKeepsExplicitExtension(t *testing.T) {
	p := pipeline.Pipeline{Source: "photo.heic", Core: etl.CoreOptions{Output: "out/result.jpg"}}
	node := &graph.Node{Target: "jpg"}

	dest, err := finalPathFor(p, node, "/tmp/stage.jpg", 1)
	require.NoError(t, err)
	assert.Equal(t, "out/result.jpg", dest)
}

func TestFinalPathForFallsBackToSourceStemInCWD(t *testing.T) {
	p := pipeline.Pipeline{Source: "photo.heic"}
	node := &graph.Node{Target: "jpg"}

	dest, err := finalPathFor(p, node, "/tmp/stage.jpg", 1)
	require.NoError(t, err)
	assert.Contains(t, dest, "photo.jpg")
}

func TestFinalPathForRejectsOutputWhenTerminalCountNotOne(t *testing.T) {
	p := pipeline.Pipeline{Source: "photo.heic", Core: etl.CoreOptions{Output: "out/result"}}
	node := &graph.Node{Target: "jpg"}

	_, err := finalPathFor(p, node, "/tmp/stage.jpg", 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--output")
}
