// Package executor walks a built execution graph in topological order,
// dispatching each node to either a resolved plugin or one of the built-in
// operators (tee, collect, clipboard, passthrough), then finalizes outputs.
package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/aunum/log"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/uniconv/uniconv/pkg/etl"
	"github.com/uniconv/uniconv/pkg/graph"
	"github.com/uniconv/uniconv/pkg/loader"
	"github.com/uniconv/uniconv/pkg/mimesniff"
	"github.com/uniconv/uniconv/pkg/pipeline"
	"github.com/uniconv/uniconv/pkg/resolver"
	"github.com/uniconv/uniconv/pkg/workspace"
)

// Resolver is the subset of *resolver.Resolver the executor needs, so tests
// can supply a fake.
type Resolver interface {
	Resolve(ctx resolver.Context, plugins []resolver.Plugin) resolver.Result
}

// StageResult records one node's outcome, surfaced in the final summary.
type StageResult struct {
	StageIndex int
	Target     string
	PluginUsed string
	Input      string
	Output     string
	// ScatterOutputs holds every path a conversion reported when it
	// produced more than one output file. A length greater than 1 signals
	// a scatter: the pipeline widens from here.
	ScatterOutputs []string
	Status         etl.Status
	Error          string
	DurationMS     int64
}

// Result is the outcome of a full pipeline execution.
type Result struct {
	Success       bool
	StageResults  []StageResult
	FinalOutputs  []string
	Warnings      []string
	TotalDuration time.Duration
	Error         string
}

// Executor runs a validated pipeline against a pool of loaded plugins.
type Executor struct {
	Plugins  []loader.Plugin
	Resolver Resolver
	Workdir  string // base directory run workspaces are created under
}

// New builds an Executor.
func New(plugins []loader.Plugin, r Resolver, workdir string) *Executor {
	if workdir == "" {
		workdir = workspace.DefaultBase()
	}
	return &Executor{Plugins: plugins, Resolver: r, Workdir: workdir}
}

// Execute runs p to completion, producing one file per terminal node (unless
// dry-run), and returns a Result describing every stage's outcome.
func (e *Executor) Execute(ctx context.Context, p pipeline.Pipeline) Result {
	start := time.Now()
	result := Result{Success: false}

	fs := afero.NewOsFs()
	ws, err := workspace.New(fs, e.Workdir)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer ws.Cleanup()

	g := graph.Build(p)
	order, err := g.ExecutionOrder()
	if err != nil {
		result.Error = err.Error()
		return result
	}
	log.Debugf("run %s: executing %d nodes from %s", ws.RunID, len(order), p.Source)

	resolved := make(map[int]string) // node id -> resolved output path
	// handled marks nodes already executed out-of-band by scatter widening,
	// so the flat topological loop below skips them instead of re-running
	// them against a (nonexistent) single resolved input.
	handled := make(map[int]bool)

	for _, id := range order {
		if handled[id] {
			continue
		}

		node := g.Node(id)
		input := e.nodeInput(g, node, p.Source, resolved)

		var outcome StageResult
		var err error

		switch {
		case node.IsTee:
			outcome, err = e.runTee(node, input)
		case node.IsCollect:
			outcome, err = e.runCollect(g, node, ws, resolved)
		case node.IsClipboard:
			outcome, err = e.runClipboard(node, input)
		case node.IsPassthrough:
			outcome, err = e.runPassthrough(node, input)
		default:
			outcome, err = e.runConversion(ctx, node, input, p, ws)
		}

		if err != nil {
			result.Error = err.Error()
			result.StageResults = append(result.StageResults, outcome)
			result.TotalDuration = time.Since(start)
			return result
		}

		resolved[id] = outcome.Output
		node.Executed = true
		node.Status = statusFromETL(outcome.Status)
		result.StageResults = append(result.StageResults, outcome)

		if outcome.Status == etl.StatusError {
			result.Error = outcome.Error
			result.TotalDuration = time.Since(start)
			return result
		}

		if len(outcome.ScatterOutputs) > 1 {
			node.ScatterOutputs = outcome.ScatterOutputs
			if err := e.widenScatter(ctx, g, node, outcome.ScatterOutputs, p, ws, handled, resolved, &result); err != nil {
				result.Error = err.Error()
				result.TotalDuration = time.Since(start)
				return result
			}
			// widenScatter consumed or finalized every scattered path itself.
			delete(resolved, id)
		}
	}

	finalOutputs, warnings, err := finalize(g, p, resolved, fs)
	if err != nil {
		result.Error = err.Error()
		result.TotalDuration = time.Since(start)
		return result
	}

	result.Success = true
	result.FinalOutputs = append(result.FinalOutputs, finalOutputs...)
	result.Warnings = append(result.Warnings, warnings...)
	result.TotalDuration = time.Since(start)
	return result
}

func statusFromETL(s etl.Status) graph.Status {
	switch s {
	case etl.StatusSuccess:
		return graph.StatusSuccess
	case etl.StatusSkipped:
		return graph.StatusSkipped
	default:
		return graph.StatusError
	}
}

// nodeInput resolves the file path a node reads from: the original source
// for a root node, or the already-resolved output of its single predecessor.
func (e *Executor) nodeInput(g *graph.Graph, node *graph.Node, source string, resolved map[int]string) string {
	if len(node.InputNodes) == 0 {
		return source
	}
	return resolved[node.InputNodes[0]]
}

func (e *Executor) runTee(node *graph.Node, input string) (StageResult, error) {
	if input == "" {
		return StageResult{StageIndex: node.StageIdx, Target: "tee", Status: etl.StatusError, Error: "tee has no input"},
			fmt.Errorf("tee node %d has no input", node.ID)
	}
	return StageResult{
		StageIndex: node.StageIdx,
		Target:     "tee",
		Input:      input,
		Output:     input,
		Status:     etl.StatusSuccess,
	}, nil
}

func (e *Executor) runPassthrough(node *graph.Node, input string) (StageResult, error) {
	return StageResult{
		StageIndex: node.StageIdx,
		Target:     node.Target,
		Input:      input,
		Output:     input,
		Status:     etl.StatusSuccess,
	}, nil
}

func (e *Executor) runClipboard(node *graph.Node, input string) (StageResult, error) {
	outcome := StageResult{StageIndex: node.StageIdx, Target: "clipboard", Input: input, Output: input}

	if _, err := os.Stat(input); err != nil {
		outcome.Status = etl.StatusError
		outcome.Error = "input file does not exist: " + input
		return outcome, fmt.Errorf("%s", outcome.Error)
	}

	var copyErr error
	if isTextFormat(filepath.Ext(input)) {
		data, err := os.ReadFile(input)
		if err != nil {
			copyErr = err
		} else {
			copyErr = clipboard.WriteAll(string(data))
		}
	} else {
		// Image/binary clipboard content has no portable pure-Go writer
		// without cgo; fall back to copying the absolute path as text, which
		// is still useful for pasting into a file manager or terminal.
		abs, err := filepath.Abs(input)
		if err != nil {
			abs = input
		}
		copyErr = clipboard.WriteAll(abs)
	}

	if copyErr != nil {
		outcome.Status = etl.StatusError
		outcome.Error = "failed to copy to clipboard: " + copyErr.Error()
		return outcome, copyErr
	}

	node.ContentCopiedToClipboard = true
	outcome.Status = etl.StatusSuccess
	return outcome, nil
}

var textFormats = map[string]bool{
	".txt": true, ".md": true, ".json": true, ".xml": true, ".csv": true,
	".html": true, ".htm": true, ".yaml": true, ".yml": true, ".log": true,
}

func isTextFormat(ext string) bool {
	return textFormats[strings.ToLower(ext)]
}

func (e *Executor) runCollect(g *graph.Graph, node *graph.Node, ws *workspace.Workspace, resolved map[int]string) (StageResult, error) {
	var inputs []string
	if len(node.InputNodes) == 0 {
		inputs = []string{node.Input}
	} else {
		for _, id := range node.InputNodes {
			inputs = append(inputs, resolved[id])
		}
	}

	if len(inputs) == 1 {
		if info, err := os.Stat(inputs[0]); err == nil && info.IsDir() {
			expanded, err := expandCollectDirectory(inputs[0], node.Options)
			if err != nil {
				return StageResult{StageIndex: node.StageIdx, Target: "collect", Status: etl.StatusError, Error: err.Error()}, err
			}
			inputs = expanded
		}
	}

	return e.collectFiles(node, ws, inputs)
}

// collectFiles copies every path in inputs into the workspace's collected
// directory and returns the directory as the node's output. Split out of
// runCollect so scatter reconvergence (widenScatter) can hand it a branch's
// outputs directly, bypassing the resolved-map-based input gathering that
// only makes sense for an ordinary single-valued predecessor.
func (e *Executor) collectFiles(node *graph.Node, ws *workspace.Workspace, inputs []string) (StageResult, error) {
	outcome := StageResult{StageIndex: node.StageIdx, Target: "collect"}

	if len(inputs) == 0 {
		outcome.Status = etl.StatusError
		outcome.Error = "collect requires at least one input file"
		return outcome, errors.New(outcome.Error)
	}

	for i, in := range inputs {
		if _, err := os.Stat(in); err != nil {
			outcome.Status = etl.StatusError
			outcome.Error = "input file does not exist: " + in
			return outcome, errors.New(outcome.Error)
		}
		dest := ws.CollectedPath(i, filepath.Base(in))
		if err := copyFile(in, dest); err != nil {
			outcome.Status = etl.StatusError
			outcome.Error = "failed to collect file: " + err.Error()
			return outcome, err
		}
		node.CollectInputs = append(node.CollectInputs, dest)
	}

	outcome.Output = ws.CollectedDir()
	outcome.Status = etl.StatusSuccess
	return outcome, nil
}

// expandCollectDirectory enumerates a directory source for "collect",
// honoring optional "glob" (filename pattern) and "recursive" options,
// and returns matches sorted alphabetically for deterministic ordering.
func expandCollectDirectory(dir string, opts map[string]string) ([]string, error) {
	pattern := opts["glob"]
	recursive := opts["recursive"] == "true"

	var files []string
	walk := func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if pattern != "" {
			matched, matchErr := filepath.Match(pattern, filepath.Base(path))
			if matchErr != nil {
				return matchErr
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	}

	if err := filepath.WalkDir(dir, walk); err != nil {
		return nil, fmt.Errorf("enumerating collect directory %s: %w", dir, err)
	}

	if len(files) == 0 {
		if pattern != "" {
			return nil, fmt.Errorf("no files matching %q in %s", pattern, dir)
		}
		return nil, fmt.Errorf("directory is empty: %s", dir)
	}

	sort.Strings(files)
	return files, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

func (e *Executor) runConversion(ctx context.Context, node *graph.Node, input string, p pipeline.Pipeline, ws *workspace.Workspace) (StageResult, error) {
	tempOut := ws.TempPath(node.StageIdx, node.ElementIdx, node.Target)
	return e.runConversionAt(ctx, node, input, p, tempOut)
}

// runConversionAt is runConversion with an explicit temp output path, so
// scatter branch-walking (runScatterBranch) can supply a per-branch unique
// path (via workspace.ScatterTempPath) instead of the one ordinary path
// TempPath would generate for the node.
func (e *Executor) runConversionAt(ctx context.Context, node *graph.Node, input string, p pipeline.Pipeline, tempOut string) (StageResult, error) {
	outcome := StageResult{StageIndex: node.StageIdx, Target: node.Target, Input: input}

	info, err := mimesniff.Sniff(input)
	var inputTypes []etl.Category
	if err == nil {
		inputTypes = []etl.Category{info.Category}
	}

	resolveCtx := resolver.Context{
		Target:       node.Target,
		ExplicitHint: node.Plugin,
		InputFormat:  info.Format,
		InputTypes:   inputTypes,
	}

	plugins := make([]resolver.Plugin, len(e.Plugins))
	for i, pl := range e.Plugins {
		plugins[i] = pl
	}

	picked := e.Resolver.Resolve(resolveCtx, plugins)
	if picked.Plugin == nil {
		outcome.Status = etl.StatusError
		outcome.Error = fmt.Sprintf("no plugin found for target %q", node.Target)
		return outcome, errors.New(outcome.Error)
	}

	plugin, ok := picked.Plugin.(loader.Plugin)
	if !ok {
		outcome.Status = etl.StatusError
		outcome.Error = "resolved plugin does not implement the execution contract"
		return outcome, errors.New(outcome.Error)
	}

	core := p.Core
	core.Output = tempOut

	req := etl.Request{
		ETL:           inferETLType(plugin),
		Source:        input,
		Target:        node.Target,
		Plugin:        node.Plugin,
		Core:          core,
		PluginOptions: node.RawOptions,
	}

	started := time.Now()
	pluginResult, err := plugin.Execute(ctx, req)
	outcome.DurationMS = time.Since(started).Milliseconds()
	if err != nil {
		outcome.Status = etl.StatusError
		outcome.Error = err.Error()
		return outcome, err
	}

	outcome.Status = pluginResult.Status
	outcome.PluginUsed = pluginResult.PluginUsed
	outcome.Output = pluginResult.Output
	outcome.Error = pluginResult.Error
	node.PluginUsed = pluginResult.PluginUsed

	if len(pluginResult.Outputs) > 1 {
		outcome.ScatterOutputs = pluginResult.Outputs
	}

	if pluginResult.Status == etl.StatusError {
		return outcome, errors.New(pluginResult.Error)
	}
	return outcome, nil
}

// inferETLType picks the ETL action to record on the request: the resolved
// plugin's own declared ETL type. The Extract > Transform > Load preference
// between plugins of different kinds is applied earlier, by the resolver's
// candidate ordering.
func inferETLType(p loader.Plugin) etl.Type {
	return p.Info().ETL
}

// scatterLeaf is one terminal output reached while walking a scattered
// branch to completion; it carries the producing node so finalization knows
// the output's target extension.
type scatterLeaf struct {
	path string
	node *graph.Node
}

// widenScatter runs everything downstream of a node that just scattered
// (produced more than one output) once per scattered path, until each
// branch either reconverges at an immediate "collect" consumer or runs to
// its own terminal leaf. Nodes it executes are marked in handled so the
// flat topological loop in Execute skips them; a reconverging collect's
// result is written into resolved so the flat loop resumes normally past
// it. Leaves that never reconverge are finalized here directly, since the
// generic finalize pass assumes exactly one output path per node id.
func (e *Executor) widenScatter(ctx context.Context, g *graph.Graph, node *graph.Node, outputs []string, p pipeline.Pipeline, ws *workspace.Workspace, handled map[int]bool, resolved map[int]string, result *Result) error {
	handled[node.ID] = true

	if len(node.OutputNodes) == 0 {
		var leaves []scatterLeaf
		for _, o := range outputs {
			leaves = append(leaves, scatterLeaf{path: o, node: node})
		}
		return e.finalizeScatterLeaves(leaves, p, result)
	}
	if len(node.OutputNodes) > 1 {
		return fmt.Errorf("scattered output of node %d feeds more than one consumer, which is not supported", node.ID)
	}

	nextID := node.OutputNodes[0]
	next := g.Node(nextID)

	if next.IsCollect {
		outcome, err := e.collectFiles(next, ws, outputs)
		if err != nil {
			return err
		}
		handled[nextID] = true
		resolved[nextID] = outcome.Output
		next.Executed = true
		next.Status = statusFromETL(outcome.Status)
		result.StageResults = append(result.StageResults, outcome)
		if outcome.Status == etl.StatusError {
			return errors.New(outcome.Error)
		}
		return nil
	}

	if next.IsTee {
		return fmt.Errorf("a scattered output cannot feed into 'tee' (node %d); insert an explicit 'collect' first", nextID)
	}

	var branchSeq int
	var leaves []scatterLeaf
	for _, out := range outputs {
		branchLeaves, err := e.runScatterBranch(ctx, g, nextID, out, p, ws, handled, result, &branchSeq)
		if err != nil {
			return err
		}
		leaves = append(leaves, branchLeaves...)
	}

	return e.finalizeScatterLeaves(leaves, p, result)
}

// runScatterBranch walks a single scattered value forward through node
// nodeID and every single-successor node beyond it, stopping at a leaf
// (zero successors) or recursing again if that node itself scatters; a node
// with more than one successor ends the walk with an error. branchSeq is shared across every branch from the same widening
// call so nested or sibling scatter temp paths never collide regardless of
// nesting depth. Every node visited is recorded in handled.
func (e *Executor) runScatterBranch(ctx context.Context, g *graph.Graph, nodeID int, input string, p pipeline.Pipeline, ws *workspace.Workspace, handled map[int]bool, result *Result, branchSeq *int) ([]scatterLeaf, error) {
	node := g.Node(nodeID)
	handled[nodeID] = true

	if node.IsTee {
		return nil, fmt.Errorf("a scattered output cannot feed into 'tee' (node %d); insert an explicit 'collect' first", nodeID)
	}
	if node.IsCollect {
		return nil, fmt.Errorf("'collect' must be the immediate consumer of a scattering node; reconverging deeper than that (node %d) is not supported", nodeID)
	}

	var outcome StageResult
	var err error
	switch {
	case node.IsClipboard:
		outcome, err = e.runClipboard(node, input)
	case node.IsPassthrough:
		outcome, err = e.runPassthrough(node, input)
	default:
		*branchSeq++
		tempOut := ws.ScatterTempPath(node.StageIdx, node.ElementIdx, *branchSeq, node.Target)
		outcome, err = e.runConversionAt(ctx, node, input, p, tempOut)
	}
	if err != nil {
		return nil, err
	}

	node.Executed = true
	node.Status = statusFromETL(outcome.Status)
	result.StageResults = append(result.StageResults, outcome)
	if outcome.Status == etl.StatusError {
		return nil, errors.New(outcome.Error)
	}

	if len(outcome.ScatterOutputs) > 1 {
		node.ScatterOutputs = outcome.ScatterOutputs
		if len(node.OutputNodes) == 0 {
			var leaves []scatterLeaf
			for _, o := range outcome.ScatterOutputs {
				leaves = append(leaves, scatterLeaf{path: o, node: node})
			}
			return leaves, nil
		}
		if len(node.OutputNodes) > 1 {
			return nil, fmt.Errorf("scattered output of node %d feeds more than one consumer, which is not supported", node.ID)
		}
		var leaves []scatterLeaf
		for _, o := range outcome.ScatterOutputs {
			sub, err := e.runScatterBranch(ctx, g, node.OutputNodes[0], o, p, ws, handled, result, branchSeq)
			if err != nil {
				return nil, err
			}
			leaves = append(leaves, sub...)
		}
		return leaves, nil
	}

	if len(node.OutputNodes) == 0 {
		return []scatterLeaf{{path: outcome.Output, node: node}}, nil
	}
	if len(node.OutputNodes) > 1 {
		return nil, fmt.Errorf("node %d feeds more than one consumer, which is not supported downstream of a scatter", node.ID)
	}

	return e.runScatterBranch(ctx, g, node.OutputNodes[0], outcome.Output, p, ws, handled, result, branchSeq)
}

// finalizeScatterLeaves moves every leaf a scattered branch walk reached to
// a final destination. A single --output cannot name more than one file, so
// it is only honored when scatter produced exactly one leaf; anything else
// with --output set is rejected the same way finalPathFor rejects a
// multi-terminal pipeline.
func (e *Executor) finalizeScatterLeaves(leaves []scatterLeaf, p pipeline.Pipeline, result *Result) error {
	if p.Core.Output != "" && len(leaves) != 1 {
		return fmt.Errorf(
			"--output cannot be used when scatter produces %d outputs (their paths would collide); omit --output or reconverge with 'collect'",
			len(leaves))
	}

	for i, leaf := range leaves {
		dest, err := finalScatterPath(p, leaf.node, i, len(leaves))
		if err != nil {
			return err
		}

		if !p.Core.Force {
			if _, err := os.Stat(dest); err == nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("output %s already exists, skipping (use --force to overwrite)", dest))
				continue
			}
		}

		if err := moveFile(leaf.path, dest); err != nil {
			return fmt.Errorf("finalizing scattered output for stage %d: %w", leaf.node.StageIdx, err)
		}
		result.FinalOutputs = append(result.FinalOutputs, dest)
	}

	return nil
}
