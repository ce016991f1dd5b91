// Package discovery enumerates plugin directories and loads the manifests
// found there.
package discovery

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/adrg/xdg"
	"github.com/aunum/log"
	"github.com/pkg/errors"

	"github.com/uniconv/uniconv/pkg/manifest"
)

// Roots returns the plugin root directories to scan, in priority order:
// user-level, portable (next to the running executable), then system-level.
// Earlier roots win when the same plugin identity appears in more than one.
func Roots() []string {
	roots := []string{UserRoot()}

	if exe, err := os.Executable(); err == nil {
		roots = append(roots, filepath.Join(filepath.Dir(exe), "plugins"))
	}

	roots = append(roots, systemRoot())
	return roots
}

// UserRoot is the per-user plugin directory, following XDG base directory
// conventions.
func UserRoot() string {
	return filepath.Join(xdg.DataHome, "uniconv", "plugins")
}

func systemRoot() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("ProgramData"), "uniconv", "plugins")
	}
	return "/usr/local/share/uniconv/plugins"
}

// Discover walks roots (or the defaults from Roots if none are given) one
// level deep, looking for a plugin.json in each immediate subdirectory, and
// returns the loaded manifests deduplicated by identity (group.etl),
// first-root-wins.
func Discover(roots ...string) ([]*manifest.Manifest, error) {
	if len(roots) == 0 {
		roots = Roots()
	}

	seen := make(map[string]bool)
	var out []*manifest.Manifest

	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrapf(err, "reading plugin root %s", root)
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			path := filepath.Join(root, entry.Name(), manifest.FileName)
			if _, err := os.Stat(path); err != nil {
				continue
			}

			m, err := manifest.Load(path)
			if err != nil {
				log.Warningf("skipping invalid manifest %s: %v", path, err)
				continue
			}

			if seen[m.ID()] {
				continue
			}
			seen[m.ID()] = true
			out = append(out, m)
		}
	}

	return out, nil
}
