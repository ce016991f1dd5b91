// Package resolver picks which discovered plugin handles a given pipeline
// element, using the five-priority rule order the driver exposes to users
// via its "which plugin matched" debug output.
package resolver

import (
	"sort"
	"strings"

	"github.com/uniconv/uniconv/pkg/etl"
)

// Context is everything the resolver needs to pick a plugin for one
// pipeline element.
type Context struct {
	Target       string
	ExplicitHint string       // user-supplied "@group" or "@group/name" hint, empty if none
	InputFormat  string       // sniffed input format, empty if unknown
	InputTypes   []etl.Category // sniffed/declared data-type tags, empty if unknown
}

// Plugin is the minimal shape the resolver operates on; loader.Plugin
// satisfies it directly.
type Plugin interface {
	Info() etl.Info
	SupportsTarget(target string) bool
	SupportsInput(format string) bool
}

// Result is what Resolve returns: the matched plugin (nil if none) and which
// rule matched it ("explicit", "explicit_not_found", "default", "type+format",
// "type", "target", or "none"), for debug/verbose output.
type Result struct {
	Plugin Plugin
	Rule   string
}

// Resolver holds the user-configurable default target -> plugin-group
// mapping consulted at priority 2.
type Resolver struct {
	defaults map[string]string // lowercase target -> lowercase plugin group
}

// New returns a Resolver with an empty default mapping.
func New() *Resolver {
	return &Resolver{defaults: map[string]string{}}
}

// SetDefault records that target should resolve to pluginGroup absent an
// explicit hint.
func (r *Resolver) SetDefault(target, pluginGroup string) {
	r.defaults[strings.ToLower(target)] = strings.ToLower(pluginGroup)
}

// Default returns the plugin group mapped to target, if any.
func (r *Resolver) Default(target string) (string, bool) {
	g, ok := r.defaults[strings.ToLower(target)]
	return g, ok
}

// Resolve picks a plugin for ctx out of plugins, trying five rules in order:
// explicit hint, default mapping, type+format match, type-only match, and
// finally target-only fallback.
func (r *Resolver) Resolve(ctx Context, plugins []Plugin) Result {
	plugins = byETLPriority(plugins)

	if ctx.ExplicitHint != "" {
		if p := findByExplicit(ctx.ExplicitHint, ctx.Target, plugins); p != nil {
			return Result{Plugin: p, Rule: "explicit"}
		}
		return Result{Rule: "explicit_not_found"}
	}

	if group, ok := r.Default(ctx.Target); ok {
		if p := findByDefault(group, ctx.Target, plugins); p != nil {
			return Result{Plugin: p, Rule: "default"}
		}
	}

	if ctx.InputFormat != "" {
		if p := findByTypeAndFormat(ctx, plugins); p != nil {
			return Result{Plugin: p, Rule: "type+format"}
		}
	}

	if len(ctx.InputTypes) > 0 {
		if p := findByTypeOnly(ctx, plugins); p != nil {
			return Result{Plugin: p, Rule: "type"}
		}
	}

	if p := findByTargetOnly(ctx.Target, plugins); p != nil {
		return Result{Plugin: p, Rule: "target"}
	}

	return Result{Rule: "none"}
}

// findByExplicit supports both a bare group name ("image-core") and a
// "group/name" specifier; this driver has no separate plugin-name axis
// beyond group, so both forms resolve against Group.
func findByExplicit(hint, target string, plugins []Plugin) Plugin {
	lowerHint := strings.ToLower(hint)
	lowerTarget := strings.ToLower(target)

	matchGroup := lowerHint
	if idx := strings.IndexByte(lowerHint, '/'); idx >= 0 {
		matchGroup = lowerHint[idx+1:]
	}

	for _, p := range plugins {
		if strings.ToLower(p.Info().Group) == matchGroup && p.SupportsTarget(lowerTarget) {
			return p
		}
	}
	return nil
}

func findByDefault(group, target string, plugins []Plugin) Plugin {
	lowerTarget := strings.ToLower(target)
	for _, p := range plugins {
		if strings.ToLower(p.Info().Group) == group && p.SupportsTarget(lowerTarget) {
			return p
		}
	}
	return nil
}

func findByTypeAndFormat(ctx Context, plugins []Plugin) Plugin {
	lowerTarget := strings.ToLower(ctx.Target)
	lowerInput := strings.ToLower(ctx.InputFormat)

	for _, p := range plugins {
		if !p.SupportsTarget(lowerTarget) {
			continue
		}
		info := p.Info()
		if len(ctx.InputTypes) > 0 && len(info.InputTypes) > 0 && !etl.TypesCompatible(ctx.InputTypes, info.InputTypes) {
			continue
		}
		if !p.SupportsInput(lowerInput) {
			continue
		}
		return p
	}
	return nil
}

func findByTypeOnly(ctx Context, plugins []Plugin) Plugin {
	lowerTarget := strings.ToLower(ctx.Target)
	for _, p := range plugins {
		if !p.SupportsTarget(lowerTarget) {
			continue
		}
		if !etl.TypesCompatible(ctx.InputTypes, p.Info().InputTypes) {
			continue
		}
		return p
	}
	return nil
}

func findByTargetOnly(target string, plugins []Plugin) Plugin {
	lowerTarget := strings.ToLower(target)
	for _, p := range plugins {
		if p.SupportsTarget(lowerTarget) {
			return p
		}
	}
	return nil
}

// byETLPriority returns a stable-sorted copy of plugins with Extract ahead of
// Transform ahead of Load, so that whenever a rule's candidate plugins are
// otherwise tied (same group/target/format match), the original's
// determine_etl_type preference of Extract over Transform over Load decides
// which one the first-match find* helpers settle on.
func byETLPriority(plugins []Plugin) []Plugin {
	sorted := make([]Plugin, len(plugins))
	copy(sorted, plugins)
	sort.SliceStable(sorted, func(i, j int) bool {
		return etlPriority(sorted[i].Info().ETL) < etlPriority(sorted[j].Info().ETL)
	})
	return sorted
}

func etlPriority(t etl.Type) int {
	switch t {
	case etl.Extract:
		return 0
	case etl.Transform:
		return 1
	case etl.Load:
		return 2
	default:
		return 3
	}
}
