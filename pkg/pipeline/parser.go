package pipeline

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/uniconv/uniconv/pkg/etl"
)

// IsPipelineSyntax reports whether args contain the "|" stage delimiter,
// either as its own argument or embedded in one (e.g. a quoted pipeline
// string passed as a single shell argument).
func IsPipelineSyntax(args []string) bool {
	for _, a := range args {
		if a == "|" || strings.ContainsRune(a, '|') {
			return true
		}
	}
	return false
}

// ParseArgs splits a raw argv into the source file, core options, and
// pipeline expression, then parses the expression. Core options
// (-o/--output, -f/--force, --json, --quiet, --verbose, --dry-run) must
// appear before the source argument; the source is the first non-option
// argument encountered before the "|" delimiter.
func ParseArgs(args []string) (Pipeline, error) {
	var source string
	var core etl.CoreOptions
	var pipelineParts []string

	foundSource := false
	afterPipe := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if arg == "|" {
			afterPipe = true
			continue
		}
		if afterPipe {
			pipelineParts = append(pipelineParts, arg)
			continue
		}

		if strings.HasPrefix(arg, "-") {
			switch arg {
			case "-o", "--output":
				if i+1 < len(args) {
					i++
					core.Output = args[i]
				}
			case "-f", "--force":
				core.Force = true
			case "--json":
				core.JSONOut = true
			case "--quiet":
				core.Quiet = true
			case "--verbose":
				core.Verbose = true
			case "--dry-run":
				core.DryRun = true
			}
			continue
		}

		if !foundSource {
			source = arg
			foundSource = true
		}
	}

	if !foundSource {
		return Pipeline{}, errors.New("no source file specified")
	}
	if len(pipelineParts) == 0 {
		return Pipeline{}, errors.New("pipeline syntax detected but no pipeline specified after '|'")
	}

	return Parse(strings.Join(pipelineParts, " "), source, core)
}

// Parse parses pipelineStr (the portion after the leading "|") into a
// validated Pipeline.
func Parse(pipelineStr, source string, core etl.CoreOptions) (Pipeline, error) {
	p := Pipeline{Source: source, Core: core}

	stageStrings := splitRespectingQuotes(pipelineStr, '|')
	if len(stageStrings) == 0 {
		return Pipeline{}, errors.New("empty pipeline")
	}

	for _, stageStr := range stageStrings {
		if strings.TrimSpace(stageStr) == "" {
			return Pipeline{}, errors.New("empty stage in pipeline")
		}

		elementStrings := splitRespectingQuotes(stageStr, ',')

		var stage Stage
		for _, elemStr := range elementStrings {
			if strings.TrimSpace(elemStr) == "" {
				continue
			}
			stage.Elements = append(stage.Elements, parseElement(elemStr))
		}

		if len(stage.Elements) == 0 {
			return Pipeline{}, errors.New("stage has no elements")
		}

		p.Stages = append(p.Stages, stage)
	}

	if err := p.Validate(); err != nil {
		return Pipeline{}, err
	}

	return p, nil
}

// splitRespectingQuotes splits input on delimiter, treating both single and
// double quoted spans (and backslash-escaped characters) as atomic so a
// delimiter inside quotes or escaped does not end the current token.
func splitRespectingQuotes(input string, delimiter byte) []string {
	var result []string
	var current strings.Builder
	inQuotes := false
	escaped := false

	for i := 0; i < len(input); i++ {
		c := input[i]

		if escaped {
			current.WriteByte(c)
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if c == '"' || c == '\'' {
			inQuotes = !inQuotes
			current.WriteByte(c)
			continue
		}
		if c == delimiter && !inQuotes {
			result = append(result, current.String())
			current.Reset()
			continue
		}
		current.WriteByte(c)
	}

	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

// parseElement parses one "target[@plugin] [options...]" element.
func parseElement(elementStr string) Element {
	tokens := tokenize(strings.TrimSpace(elementStr))
	if len(tokens) == 0 {
		return Element{}
	}

	target, plugin := parseTarget(tokens[0])
	element := Element{Target: target, Plugin: plugin}

	if len(tokens) > 1 {
		element.Options, element.RawOptions = parseOptions(tokens[1:])
	}
	return element
}

// parseTarget splits "target@plugin" on the first "@".
func parseTarget(targetStr string) (target, plugin string) {
	idx := strings.IndexByte(targetStr, '@')
	if idx < 0 {
		return targetStr, ""
	}
	return targetStr[:idx], targetStr[idx+1:]
}

// parseOptions parses option tokens into a key/value map plus the raw
// tokens, preserving both so the raw form can be forwarded to the plugin
// unchanged while the parsed form drives built-in behavior (e.g. the
// clipboard "save" option).
func parseOptions(tokens []string) (map[string]string, []string) {
	parsed := map[string]string{}
	var raw []string

	for i := 0; i < len(tokens); i++ {
		token := tokens[i]

		if !strings.HasPrefix(token, "-") {
			raw = append(raw, token)
			continue
		}

		if eqIdx := strings.IndexByte(token, '='); eqIdx >= 0 {
			key := strings.TrimLeft(token[:eqIdx], "-")
			value := unquote(token[eqIdx+1:])
			parsed[key] = value
			raw = append(raw, token)
			continue
		}

		key := strings.TrimLeft(token, "-")

		if i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "-") {
			value := unquote(tokens[i+1])
			parsed[key] = value
			raw = append(raw, token, tokens[i+1])
			i++
			continue
		}

		parsed[key] = "true"
		raw = append(raw, token)
	}

	return parsed, raw
}

func unquote(value string) string {
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return value[1 : len(value)-1]
		}
	}
	return value
}

// tokenize splits a string on whitespace, keeping quoted spans (including
// their quote characters) together and honoring backslash escaping.
func tokenize(input string) []string {
	var tokens []string
	var current strings.Builder
	inQuotes := false
	var quoteChar byte
	escaped := false

	for i := 0; i < len(input); i++ {
		c := input[i]

		if escaped {
			current.WriteByte(c)
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if (c == '"' || c == '\'') && !inQuotes {
			inQuotes = true
			quoteChar = c
			current.WriteByte(c)
			continue
		}
		if inQuotes && c == quoteChar {
			inQuotes = false
			quoteChar = 0
			current.WriteByte(c)
			continue
		}
		if isSpace(c) && !inQuotes {
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
			continue
		}
		current.WriteByte(c)
	}

	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}
