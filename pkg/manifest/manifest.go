// Package manifest loads and validates plugin.json, the file every plugin
// directory carries to describe itself to the driver.
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/uniconv/uniconv/pkg/etl"
)

// FileName is the manifest filename every plugin directory must contain.
const FileName = "plugin.json"

// Interface is how the driver talks to a plugin.
type Interface string

const (
	InterfaceCLI    Interface = "cli"
	InterfaceNative Interface = "native"
)

// OptionDef documents one plugin-specific option declared in plugin.json.
// `uniconv plugin info` does not print these.
type OptionDef struct {
	Name        string `json:"name" validate:"required"`
	Type        string `json:"type,omitempty"`
	Default     string `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
}

// Dependency is one entry in a manifest's "dependencies" block, consumed by
// pkg/depenv. Runtime is the dependency's type: "system" (a PATH-resolvable
// binary), "python" or "node" (a language-runtime package), or
// "native-module" (a compiled module the runtime loads). When Check is set,
// it takes priority over Runtime-based dispatch: the checker runs it through
// a shell and treats exit code 0 as satisfied.
type Dependency struct {
	Runtime    string `json:"runtime" validate:"required"`
	Name       string `json:"name" validate:"required"`
	Constraint string `json:"constraint,omitempty"`
	Check      string `json:"check,omitempty"`
}

// Manifest is the parsed contents of plugin.json.
type Manifest struct {
	Name        string       `json:"name" validate:"required"`
	Group       string       `json:"group"`
	Version     string       `json:"version"`
	Description string       `json:"description"`
	ETL         string       `json:"etl" validate:"required,oneof=transform extract load t e l"`
	Targets     []string     `json:"targets"`
	InputFormats []string    `json:"input_formats"`
	InputTypes  []string     `json:"input_types,omitempty"`
	OutputTypes []string     `json:"output_types,omitempty"`
	Interface   Interface    `json:"interface" validate:"omitempty,oneof=cli native"`
	Executable  string       `json:"executable"`
	Library     string       `json:"library"`
	Options     []OptionDef  `json:"options,omitempty"`
	Dependencies []Dependency `json:"dependencies,omitempty"`

	// Populated after load, not part of the JSON wire format.
	ManifestPath string `json:"-"`
	PluginDir    string `json:"-"`
}

var validate = validator.New()

// Load reads and validates a plugin.json at path, filling ManifestPath and
// PluginDir from the file's own location.
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading manifest %s", path)
	}

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errors.Wrapf(err, "parsing manifest %s", path)
	}

	if m.Group == "" {
		m.Group = m.Name
	}
	if m.Version == "" {
		m.Version = "0.0.0"
	}
	if m.Interface == "" {
		m.Interface = InterfaceCLI
	}

	if err := validate.Struct(&m); err != nil {
		return nil, errors.Wrapf(err, "invalid manifest %s", path)
	}

	m.ManifestPath = path
	m.PluginDir = filepath.Dir(path)
	return &m, nil
}

// ETLType parses the manifest's etl field, accepting the short forms.
func (m *Manifest) ETLType() (etl.Type, error) {
	return etl.ParseType(m.ETL)
}

// ID is the manifest's identity, "<group>.<etl>", matching how plugins are
// keyed throughout discovery, registry and resolution.
func (m *Manifest) ID() string {
	t, err := m.ETLType()
	if err != nil {
		return m.Group + ".unknown"
	}
	return m.Group + "." + t.String()
}

// Info converts the manifest to the resolver/registry-facing etl.Info.
func (m *Manifest) Info() etl.Info {
	t, _ := m.ETLType()
	return etl.Info{
		ID:           m.ID(),
		Group:        m.Group,
		ETL:          t,
		Targets:      m.Targets,
		InputFormats: m.InputFormats,
		InputTypes:   parseCategories(m.InputTypes),
		OutputTypes:  parseCategories(m.OutputTypes),
		Version:      m.Version,
		Description:  m.Description,
		Builtin:      false,
	}
}

func parseCategories(names []string) []etl.Category {
	out := make([]etl.Category, 0, len(names))
	for _, n := range names {
		switch strings.ToLower(n) {
		case "image":
			out = append(out, etl.CategoryImage)
		case "video":
			out = append(out, etl.CategoryVideo)
		case "audio":
			out = append(out, etl.CategoryAudio)
		case "document":
			out = append(out, etl.CategoryDocument)
		default:
			out = append(out, etl.CategoryUnknown)
		}
	}
	return out
}

// SupportsTarget reports whether the manifest lists target, case-insensitively.
func (m *Manifest) SupportsTarget(target string) bool {
	return containsFold(m.Targets, target)
}

// SupportsInput reports whether the manifest accepts format. An empty
// InputFormats list means the plugin accepts any input, matching the original
// implementation's "empty means accept all" rule.
func (m *Manifest) SupportsInput(format string) bool {
	if len(m.InputFormats) == 0 {
		return true
	}
	return containsFold(m.InputFormats, format)
}

func containsFold(list []string, want string) bool {
	for _, v := range list {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}
