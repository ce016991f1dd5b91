// Package depenv manages each plugin's isolated dependency environment: a
// per-plugin directory holding one sub-directory per language runtime
// (python, node), so two plugins can depend on conflicting versions of the
// same package without clobbering each other.
package depenv

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/pkg/errors"

	"github.com/uniconv/uniconv/pkg/manifest"
)

// InstalledDependency records one dependency this driver has already
// installed into an Environment.
type InstalledDependency struct {
	Name        string `json:"name"`
	Runtime     string `json:"type"`
	Version     string `json:"version"`
	InstalledAt string `json:"installed_at"`
}

// depsFile is the on-disk shape of deps.json.
type depsFile struct {
	PluginName   string                 `json:"plugin_name"`
	Fingerprint  string                 `json:"fingerprint,omitempty"`
	Dependencies []InstalledDependency `json:"dependencies"`
}

// Environment is one plugin's isolated dependency environment.
type Environment struct {
	PluginName   string
	Dir          string
	Dependencies []InstalledDependency
	Fingerprint  string
}

const depsFileName = "deps.json"

// PythonDir is the plugin's isolated Python virtualenv directory.
func (e *Environment) PythonDir() string { return filepath.Join(e.Dir, "python") }

// NodeDir is the plugin's isolated node_modules tree.
func (e *Environment) NodeDir() string { return filepath.Join(e.Dir, "node") }

func (e *Environment) depsFilePath() string { return filepath.Join(e.Dir, depsFileName) }

// PythonBin is the platform-specific path to the venv's python interpreter.
func (e *Environment) PythonBin() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(e.PythonDir(), "Scripts", "python.exe")
	}
	return filepath.Join(e.PythonDir(), "bin", "python")
}

// PipBin is the platform-specific path to the venv's pip.
func (e *Environment) PipBin() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(e.PythonDir(), "Scripts", "pip.exe")
	}
	return filepath.Join(e.PythonDir(), "bin", "pip")
}

// NodeBinDir is node_modules/.bin inside the isolated node environment.
func (e *Environment) NodeBinDir() string {
	return filepath.Join(e.NodeDir(), "node_modules", ".bin")
}

// HasPythonEnv reports whether the venv has actually been created.
func (e *Environment) HasPythonEnv() bool {
	_, err := os.Stat(e.PythonBin())
	return err == nil
}

// HasNodeEnv reports whether node_modules has been populated.
func (e *Environment) HasNodeEnv() bool {
	_, err := os.Stat(filepath.Join(e.NodeDir(), "node_modules"))
	return err == nil
}

// PathDirs implements loader.PathPrefixer: a CLI plugin backed by this
// environment should see its isolated binaries before the system PATH.
func (e *Environment) PathDirs() []string {
	var dirs []string
	if e.HasPythonEnv() {
		dirs = append(dirs, filepath.Dir(e.PythonBin()))
	}
	if e.HasNodeEnv() {
		dirs = append(dirs, e.NodeBinDir())
	}
	return dirs
}

// Load reads deps.json into e, leaving e unchanged (no dependencies) if the
// file does not exist yet.
func (e *Environment) Load() error {
	raw, err := os.ReadFile(e.depsFilePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "reading %s", e.depsFilePath())
	}
	var f depsFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return errors.Wrapf(err, "parsing %s", e.depsFilePath())
	}
	e.Dependencies = f.Dependencies
	e.Fingerprint = f.Fingerprint
	return nil
}

// Save writes deps.json.
func (e *Environment) Save() error {
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating dependency environment dir %s", e.Dir)
	}
	f := depsFile{PluginName: e.PluginName, Fingerprint: e.Fingerprint, Dependencies: e.Dependencies}
	raw, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling deps.json")
	}
	if err := os.WriteFile(e.depsFilePath(), raw, 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", e.depsFilePath())
	}
	return nil
}

// Manager creates and tracks dependency environments under a single base
// directory, one sub-directory per plugin.
type Manager struct {
	BaseDir string
}

// NewManager returns a Manager rooted at baseDir (internal/command uses the
// "deps" subdirectory of common.DefaultConfigDir).
func NewManager(baseDir string) *Manager {
	return &Manager{BaseDir: baseDir}
}

// GetOrCreate returns the named plugin's environment, creating its directory
// and loading any existing deps.json.
func (m *Manager) GetOrCreate(pluginName string) (*Environment, error) {
	env := &Environment{PluginName: pluginName, Dir: filepath.Join(m.BaseDir, pluginName)}
	if err := os.MkdirAll(env.Dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating dependency environment for %s", pluginName)
	}
	if err := env.Load(); err != nil {
		return nil, err
	}
	return env, nil
}

// Get returns the named plugin's environment if its directory already
// exists, or nil if not.
func (m *Manager) Get(pluginName string) (*Environment, error) {
	dir := filepath.Join(m.BaseDir, pluginName)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "checking dependency environment for %s", pluginName)
	}
	env := &Environment{PluginName: pluginName, Dir: dir}
	if err := env.Load(); err != nil {
		return nil, err
	}
	return env, nil
}

// Remove deletes a plugin's entire dependency environment.
func (m *Manager) Remove(pluginName string) error {
	return os.RemoveAll(filepath.Join(m.BaseDir, pluginName))
}

// CleanOrphaned removes environments for plugins no longer present in
// installedPluginNames, returning the names removed.
func (m *Manager) CleanOrphaned(installedPluginNames []string) ([]string, error) {
	keep := make(map[string]bool, len(installedPluginNames))
	for _, n := range installedPluginNames {
		keep[n] = true
	}

	entries, err := os.ReadDir(m.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading dependency base dir %s", m.BaseDir)
	}

	var removed []string
	for _, entry := range entries {
		if !entry.IsDir() || keep[entry.Name()] {
			continue
		}
		if err := m.Remove(entry.Name()); err != nil {
			return removed, err
		}
		removed = append(removed, entry.Name())
	}
	return removed, nil
}

// Fingerprint computes a stable hash of a manifest's dependency list, used to
// detect when an environment needs to be reinstalled without re-running every
// package manager on every invocation.
func Fingerprint(deps []manifest.Dependency) string {
	return fingerprint(deps)
}

func currentTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
