// Package loader turns a plugin manifest into a runnable Plugin, either by
// shelling out to an executable (CLI interface) or by dynamically loading a
// shared library (Native interface).
package loader

import (
	"context"
	"time"

	"github.com/uniconv/uniconv/pkg/etl"
	"github.com/uniconv/uniconv/pkg/manifest"
)

// Plugin is the operational contract both loader backends satisfy.
type Plugin interface {
	Info() etl.Info
	SupportsTarget(target string) bool
	SupportsInput(format string) bool
	Execute(ctx context.Context, req etl.Request) (etl.Result, error)
}

// DefaultTimeout is the CLI backend's subprocess timeout when none is set on
// the loader.
const DefaultTimeout = 5 * time.Minute

// Load picks the backend named by the manifest's Interface field and builds a
// Plugin from it. env, when non-nil, is consulted for a PATH prefix built
// from the plugin's dependency environment (see pkg/depenv).
func Load(m *manifest.Manifest, env PathPrefixer) (Plugin, error) {
	switch m.Interface {
	case manifest.InterfaceNative:
		return NewNativePlugin(m)
	default:
		return NewCLIPlugin(m, env), nil
	}
}

// PathPrefixer supplies the PATH directories a CLI plugin's dependency
// environment contributes, so an installed python/node toolchain is found
// before falling back to the system PATH. Implemented by *depenv.Environment.
type PathPrefixer interface {
	PathDirs() []string
}
