// Package config loads the driver's own settings file: plugin directory
// overrides, the run workspace base directory, and the CLI-backend timeout.
// Pipeline and plugin configuration (presets, registries) are out of scope —
// this covers only what the host process itself needs to start up.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/uniconv/uniconv/pkg/loader"
)

// FileName is the settings file name, looked up under the user's config
// directory.
const FileName = "config.toml"

// Settings is the parsed contents of config.toml. Every field is optional;
// zero values fall back to the built-in defaults applied by Load.
type Settings struct {
	PluginDirs      []string `toml:"plugin_dirs"`
	WorkspaceBaseDir string  `toml:"workspace_base_dir"`
	CLITimeoutSec   int      `toml:"cli_timeout_seconds"`
}

// Load reads path, returning default Settings (not an error) if the file
// does not exist.
func Load(path string) (Settings, error) {
	var s Settings

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return defaults(), nil
	}

	if _, err := toml.DecodeFile(path, &s); err != nil {
		return Settings{}, errors.Wrapf(err, "parsing config %s", path)
	}

	applyDefaults(&s)
	return s, nil
}

func defaults() Settings {
	s := Settings{}
	applyDefaults(&s)
	return s
}

func applyDefaults(s *Settings) {
	if s.CLITimeoutSec <= 0 {
		s.CLITimeoutSec = int(loader.DefaultTimeout / time.Second)
	}
}

// CLITimeout returns the configured CLI-backend subprocess timeout as a
// time.Duration.
func (s Settings) CLITimeout() time.Duration {
	return time.Duration(s.CLITimeoutSec) * time.Second
}

// Save writes s to path in TOML form, creating parent directories as needed.
func Save(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "creating config dir for %s", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating config %s", path)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	if err := enc.Encode(s); err != nil {
		return errors.Wrapf(err, "encoding config %s", path)
	}
	return nil
}
