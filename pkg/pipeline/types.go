// Package pipeline tokenizes and validates the pipeline expression grammar:
// a `|`-separated sequence of stages, each stage a `,`-separated sequence of
// elements, each element a target with an optional explicit plugin hint and
// trailing options.
package pipeline

import (
	"fmt"

	"github.com/uniconv/uniconv/pkg/etl"
)

// Element is a single pipeline element, e.g. "jpg@vips --quality 90".
type Element struct {
	Target     string
	Plugin     string // explicit plugin hint from "target@plugin", empty if none
	Options    map[string]string
	RawOptions []string // raw option tokens forwarded verbatim to the plugin
}

// IsTee reports whether this element is the "tee" built-in.
func (e Element) IsTee() bool { return e.Target == "tee" }

// IsClipboard reports whether this element is the "clipboard" built-in.
func (e Element) IsClipboard() bool { return e.Target == "clipboard" }

// IsCollect reports whether this element is the "collect" fan-in built-in.
func (e Element) IsCollect() bool { return e.Target == "collect" }

// IsPassthrough reports whether this element is one of the passthrough
// aliases that copy input to output unchanged.
func (e Element) IsPassthrough() bool {
	switch e.Target {
	case "_", "echo", "bypass", "pass", "noop":
		return true
	default:
		return false
	}
}

// Stage is one or more parallel elements separated by commas.
type Stage struct {
	Elements []Element
}

// IsSingle reports whether the stage has exactly one element.
func (s Stage) IsSingle() bool { return len(s.Elements) == 1 }

// HasTee reports whether any element in the stage is "tee".
func (s Stage) HasTee() bool {
	for _, e := range s.Elements {
		if e.IsTee() {
			return true
		}
	}
	return false
}

// HasClipboard reports whether any element in the stage is "clipboard".
func (s Stage) HasClipboard() bool {
	for _, e := range s.Elements {
		if e.IsClipboard() {
			return true
		}
	}
	return false
}

// HasCollect reports whether any element in the stage is "collect".
func (s Stage) HasCollect() bool {
	for _, e := range s.Elements {
		if e.IsCollect() {
			return true
		}
	}
	return false
}

// IsCollect reports whether this stage is a sole "collect" fan-in element.
func (s Stage) IsCollect() bool {
	return len(s.Elements) == 1 && s.Elements[0].IsCollect()
}

// Pipeline is a fully parsed, not-yet-validated expression.
type Pipeline struct {
	Source      string
	Stages      []Stage
	Core        etl.CoreOptions
	InputFormat string // optional hint for stdin/generator sources
}

// Validate checks the element-count transition rules between consecutive
// stages. tee may only appear in a single-element stage, and never as the
// last stage; a stage of N>1 elements may only be followed by a stage of
// the same cardinality (an implicit 1:1, positional pairing) or reduced to
// one via a collect element.
func (p Pipeline) Validate() error {
	if len(p.Stages) == 0 {
		return fmt.Errorf("pipeline has no stages")
	}

	for i, s := range p.Stages {
		if s.HasTee() && len(s.Elements) > 1 {
			return fmt.Errorf("stage %d: 'tee' must be the only element of its stage", i)
		}
	}

	if p.Stages[len(p.Stages)-1].HasTee() {
		return fmt.Errorf("'tee' cannot be the last stage (needs consumers)")
	}

	if last := p.Stages[len(p.Stages)-1]; p.Core.Output != "" && len(last.Elements) > 1 {
		return fmt.Errorf(
			"--output cannot be used when the final stage has %d elements (their output paths would collide); omit --output or reduce to one element with 'collect'",
			len(last.Elements))
	}

	for i := 0; i < len(p.Stages)-1; i++ {
		current := p.Stages[i]
		next := p.Stages[i+1]

		currentCount := len(current.Elements)
		nextCount := len(next.Elements)

		switch {
		case currentCount == 1 && nextCount == 1:
			continue
		case currentCount == 1 && current.HasTee():
			continue
		case currentCount == nextCount && currentCount > 1:
			continue
		case next.IsCollect():
			continue
		case currentCount != nextCount:
			return fmt.Errorf(
				"stage %d has %d elements but stage %d has %d elements (use 'tee' to branch)",
				i, currentCount, i+1, nextCount)
		}
	}

	return nil
}
