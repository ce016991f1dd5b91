// Package common holds the handful of driver-wide defaults shared by more
// than one package, to avoid import cycles between them.
package common

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

var (
	// DefaultConfigDir is where config.toml and the default plugin mapping
	// live, following XDG base directory conventions.
	DefaultConfigDir = filepath.Join(xdg.ConfigHome, "uniconv")
)
