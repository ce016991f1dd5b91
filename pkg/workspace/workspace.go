// Package workspace manages the run-scoped temp directory a pipeline
// execution writes intermediate and collected files into.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const hostName = "uniconv"

// Workspace is the run-scoped temp directory for one pipeline execution.
type Workspace struct {
	fs    afero.Fs
	RunID string
	Dir   string
}

// New creates a fresh run-scoped workspace directory under base (typically
// os.TempDir()), named "<hostName>/<run-id>".
func New(fs afero.Fs, base string) (*Workspace, error) {
	runID := uuid.NewString()
	dir := filepath.Join(base, hostName, runID)

	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating workspace %s", dir)
	}
	if err := fs.MkdirAll(filepath.Join(dir, "collected"), 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating collected dir under %s", dir)
	}

	return &Workspace{fs: fs, RunID: runID, Dir: dir}, nil
}

// DefaultBase returns the system temp directory, the conventional base for
// run workspaces.
func DefaultBase() string {
	return os.TempDir()
}

// TempPath returns the path for an ordinary node's temp output:
// "<dir>/s{stage}_e{element}.{ext}".
func (w *Workspace) TempPath(stage, element int, ext string) string {
	return filepath.Join(w.Dir, fmt.Sprintf("s%d_e%d.%s", stage, element, ext))
}

// ScatterTempPath returns the path for one scattered output of a node:
// "<dir>/s{stage}_e{element}_i{scatter}.{ext}".
func (w *Workspace) ScatterTempPath(stage, element, scatter int, ext string) string {
	return filepath.Join(w.Dir, fmt.Sprintf("s%d_e%d_i%d.%s", stage, element, scatter, ext))
}

// CollectedPath returns the path a collect node should copy the idx-th
// (0-based) predecessor's file to, preserving its original base name with an
// ordering prefix: "<dir>/collected/NNNN_<name>".
func (w *Workspace) CollectedPath(idx int, originalName string) string {
	return filepath.Join(w.Dir, "collected", fmt.Sprintf("%04d_%s", idx, originalName))
}

// CollectedDir returns the directory a collect node's output directory
// lives in.
func (w *Workspace) CollectedDir() string {
	return filepath.Join(w.Dir, "collected")
}

// Cleanup removes the entire run workspace directory, best-effort.
func (w *Workspace) Cleanup() {
	_ = w.fs.RemoveAll(w.Dir)
}

// FS returns the underlying filesystem, for callers (the executor) that need
// to read/write/copy files within the workspace.
func (w *Workspace) FS() afero.Fs {
	return w.fs
}
