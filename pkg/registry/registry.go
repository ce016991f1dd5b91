// Package registry keeps the in-memory index of discovered plugins and a
// user-editable default mapping from target to plugin, persisted to disk.
package registry

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/lockedfile" //nolint:depguard
	"gopkg.in/yaml.v3"

	"github.com/uniconv/uniconv/pkg/etl"
)

const mappingFileName = "default-mapping.yaml"

// Registry is the in-memory index of every discovered plugin, keyed by
// identity (group.etl).
type Registry struct {
	byID map[string]etl.Info
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{byID: map[string]etl.Info{}}
}

// Add indexes a plugin. A later Add with the same ID replaces the earlier
// one (last wins); the registry does not apply priority itself, and relies
// on discovery.Discover having already deduplicated by ID, first root wins.
func (r *Registry) Add(info etl.Info) {
	r.byID[info.ID] = info
}

// Get returns the plugin with the given identity.
func (r *Registry) Get(id string) (etl.Info, bool) {
	info, ok := r.byID[id]
	return info, ok
}

// List returns every indexed plugin, order unspecified.
func (r *Registry) List() []etl.Info {
	out := make([]etl.Info, 0, len(r.byID))
	for _, info := range r.byID {
		out = append(out, info)
	}
	return out
}

// ByGroup returns every plugin sharing the given group name, across all ETL
// kinds.
func (r *Registry) ByGroup(group string) []etl.Info {
	var out []etl.Info
	for _, info := range r.byID {
		if info.Group == group {
			out = append(out, info)
		}
	}
	return out
}

// DefaultMapping is the user-editable target -> plugin-group mapping,
// persisted to disk under a file lock so concurrent uniconv invocations
// can't corrupt it.
type DefaultMapping struct {
	dir  string
	data map[string]string
}

// OpenDefaultMapping loads (or initializes empty) the default mapping file
// under dir.
func OpenDefaultMapping(dir string) (*DefaultMapping, error) {
	path := filepath.Join(dir, mappingFileName)

	b, err := lockedfile.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &DefaultMapping{dir: dir, data: map[string]string{}}, nil
		}
		return nil, errors.Wrapf(err, "reading default mapping %s", path)
	}

	data := map[string]string{}
	if err := yaml.Unmarshal(b, &data); err != nil {
		return nil, errors.Wrapf(err, "parsing default mapping %s", path)
	}
	return &DefaultMapping{dir: dir, data: data}, nil
}

// Get returns the plugin group mapped to target, case-insensitively, and
// whether a mapping exists.
func (m *DefaultMapping) Get(target string) (string, bool) {
	group, ok := m.data[strings.ToLower(target)]
	return group, ok
}

// Set records target -> pluginGroup and persists the mapping immediately,
// taking an exclusive lock for the duration of the write.
func (m *DefaultMapping) Set(target, pluginGroup string) error {
	if m.data == nil {
		m.data = map[string]string{}
	}
	m.data[strings.ToLower(target)] = pluginGroup
	return m.save()
}

// Remove deletes target's mapping, if any, and persists the change.
func (m *DefaultMapping) Remove(target string) error {
	delete(m.data, strings.ToLower(target))
	return m.save()
}

// Map returns a copy of the full target -> plugin-group mapping.
func (m *DefaultMapping) Map() map[string]string {
	out := make(map[string]string, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out
}

func (m *DefaultMapping) save() error {
	path := filepath.Join(m.dir, mappingFileName)

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating registry dir %s", m.dir)
	}

	lf, err := lockedfile.Edit(path)
	if err != nil {
		return errors.Wrapf(err, "locking default mapping %s", path)
	}
	defer lf.Close()

	out, err := yaml.Marshal(m.data)
	if err != nil {
		return errors.Wrap(err, "encoding default mapping")
	}

	if err := lf.Truncate(0); err != nil {
		return errors.Wrap(err, "truncating default mapping file")
	}
	if _, err := lf.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "seeking default mapping file")
	}
	if _, err := lf.Write(out); err != nil {
		return errors.Wrap(err, "writing default mapping file")
	}
	return nil
}
