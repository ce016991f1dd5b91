// Package etl holds the core value types shared by every layer of the driver:
// the ETL action kind, file categorization, and the request/result pair passed
// to a plugin.
package etl

import "fmt"

// Type is the action a plugin performs: transform one format into another,
// extract structured data out of a file, or load a file into an external
// destination.
type Type int

const (
	Transform Type = iota
	Extract
	Load
)

// String renders the canonical lowercase form used in manifests and requests.
func (t Type) String() string {
	switch t {
	case Transform:
		return "transform"
	case Extract:
		return "extract"
	case Load:
		return "load"
	default:
		return "unknown"
	}
}

// ParseType accepts both the full name and the single-letter shorthand
// ("t", "e", "l") used by the original pipeline syntax.
func ParseType(s string) (Type, error) {
	switch s {
	case "transform", "t":
		return Transform, nil
	case "extract", "e":
		return Extract, nil
	case "load", "l":
		return Load, nil
	default:
		return 0, fmt.Errorf("unknown etl type %q", s)
	}
}

// Category classifies a file for resolution and for the clipboard built-in's
// text-vs-binary handling.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryImage
	CategoryVideo
	CategoryAudio
	CategoryDocument
)

func (c Category) String() string {
	switch c {
	case CategoryImage:
		return "image"
	case CategoryVideo:
		return "video"
	case CategoryAudio:
		return "audio"
	case CategoryDocument:
		return "document"
	default:
		return "unknown"
	}
}

// FileInfo describes a file flowing through the pipeline: its sniffed format,
// MIME type, and category, plus optional media metadata a plugin may report.
type FileInfo struct {
	Path       string
	Format     string
	MimeType   string
	Category   Category
	Size       int64
	Dimensions *Dimensions
	Duration   *float64
}

// Dimensions is the width/height of an image or video frame, in pixels.
type Dimensions struct {
	Width  int
	Height int
}

// CoreOptions are the options every plugin invocation carries regardless of
// which plugin handles it.
type CoreOptions struct {
	Output    string
	Force     bool
	JSONOut   bool
	Verbose   bool
	Quiet     bool
	DryRun    bool
	Recursive bool
}

// Request is what the executor hands to a loader.Plugin.
type Request struct {
	ETL           Type
	Source        string
	Target        string
	Plugin        string // explicit plugin hint, empty if none
	Core          CoreOptions
	PluginOptions []string // raw tokens after "--"
}

// Status is the outcome of a single plugin invocation.
type Status int

const (
	StatusError Status = iota
	StatusSuccess
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusSkipped:
		return "skipped"
	default:
		return "error"
	}
}

// Result is what a loader.Plugin.Execute call returns.
type Result struct {
	Status     Status
	ETL        Type
	Target     string
	PluginUsed string
	Input      string
	Output     string
	// Outputs holds every path the plugin reported when it produced more
	// than one output file. When len(Outputs) > 1 the executor treats this
	// as a scatter: the pipeline widens and the next cardinality-1 stage
	// runs once per path. Output still carries the first path for plugins
	// and call sites that only look at a single result.
	Outputs    []string
	InputSize  int64
	OutputSize int64
	HasOutput  bool
	Error      string
	Extra      map[string]any
}

// Success builds a successful Result.
func Success(t Type, target, plugin, input, output string, inSize, outSize int64) Result {
	return Result{
		Status:     StatusSuccess,
		ETL:        t,
		Target:     target,
		PluginUsed: plugin,
		Input:      input,
		Output:     output,
		HasOutput:  true,
		InputSize:  inSize,
		OutputSize: outSize,
	}
}

// Failure builds a failed Result, mirroring ETLResult::failure.
func Failure(t Type, target, input, errMsg string) Result {
	return Result{
		Status: StatusError,
		ETL:    t,
		Target: target,
		Input:  input,
		Error:  errMsg,
	}
}

// SizeRatio returns OutputSize/InputSize, matching the original's computed
// "size_ratio" JSON field. ok is false when either size is unavailable.
func (r Result) SizeRatio() (ratio float64, ok bool) {
	if !r.HasOutput || r.InputSize <= 0 {
		return 0, false
	}
	return float64(r.OutputSize) / float64(r.InputSize), true
}

// Info is the resolver/registry-facing summary of a plugin, derived from its
// manifest.
type Info struct {
	ID           string
	Group        string
	ETL          Type
	Targets      []string
	InputFormats []string
	// InputTypes and OutputTypes are the coarse data-type tags (reusing
	// Category, with CategoryUnknown acting as the "File" wildcard that is
	// always compatible) used by the resolver's type-aware priority rules
	// and by the executor's stage-to-stage connectivity check.
	InputTypes  []Category
	OutputTypes []Category
	Version     string
	Description string
	Builtin     bool
}

// TypesCompatible reports whether any of want is compatible with any of
// have, treating CategoryUnknown as a wildcard on either side and an empty
// slice on either side as "accepts anything" (matching the original
// resolver's types_compatible/can_connect rule: no declared types means no
// constraint).
func TypesCompatible(want, have []Category) bool {
	if len(want) == 0 || len(have) == 0 {
		return true
	}
	for _, w := range want {
		for _, h := range have {
			if w == h || w == CategoryUnknown || h == CategoryUnknown {
				return true
			}
		}
	}
	return false
}
