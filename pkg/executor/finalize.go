package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/uniconv/uniconv/pkg/graph"
	"github.com/uniconv/uniconv/pkg/pipeline"
)

// finalize walks every terminal node (looking through passthrough chains,
// and skipping nodes whose output is consumed only by the clipboard unless
// that clipboard element was given --save) and
// moves its temp file to a final destination in the current directory,
// honoring an explicit --output override for a single-terminal pipeline.
func finalize(g *graph.Graph, p pipeline.Pipeline, resolved map[int]string, fs afero.Fs) ([]string, []string, error) {
	var finalOutputs []string
	var warnings []string

	terminals := effectiveTerminals(g)

	for _, id := range terminals {
		node := g.Node(id)

		if node.IsClipboard {
			continue
		}
		if g.IsEffectivelyOnlyConsumedByClipboard(id) && !g.ClipboardConsumerHasSave(id) {
			continue
		}

		src := resolved[id]
		if src == "" {
			continue
		}

		if node.IsCollect {
			finalOutputs = append(finalOutputs, src)
			continue
		}

		dest, err := finalPathFor(p, node, src, len(terminals))
		if err != nil {
			return nil, nil, err
		}

		if !p.Core.Force {
			if _, err := os.Stat(dest); err == nil {
				warnings = append(warnings, fmt.Sprintf("output %s already exists, skipping (use --force to overwrite)", dest))
				continue
			}
		}

		if err := moveFile(src, dest); err != nil {
			return nil, nil, fmt.Errorf("finalizing output for stage %d: %w", node.StageIdx, err)
		}
		finalOutputs = append(finalOutputs, dest)
	}

	return finalOutputs, warnings, nil
}

// effectiveTerminals returns the ids of file-producing nodes that are
// effectively terminal (looking through passthrough chains), or consumed only
// by a clipboard element given --save, and are not themselves builtins
// without file output, except collect (which is terminal in the sense that it
// produces the pipeline's final directory result).
func effectiveTerminals(g *graph.Graph) []int {
	var out []int
	for _, n := range g.Nodes {
		if n.IsTee || n.IsPassthrough || n.IsClipboard {
			continue
		}
		savedForClipboard := g.IsEffectivelyOnlyConsumedByClipboard(n.ID) && g.ClipboardConsumerHasSave(n.ID)
		if !g.IsEffectivelyTerminal(n.ID) && !savedForClipboard {
			continue
		}
		out = append(out, n.ID)
	}
	return out
}

// finalPathFor resolves the destination path for a terminal node's temp
// file: the user's --output override when there is exactly one terminal
// output, otherwise the source's base name with the target as extension, in
// the current directory.
func finalPathFor(p pipeline.Pipeline, node *graph.Node, tempPath string, terminalCount int) (string, error) {
	if p.Core.Output != "" {
		if terminalCount != 1 {
			return "", fmt.Errorf(
				"--output cannot be used when the pipeline produces %d outputs (their paths would collide); omit --output or reduce to one output with 'collect'",
				terminalCount)
		}
		// A bare --output with no extension takes the target as its
		// extension; one that already has an extension is used verbatim.
		if filepath.Ext(p.Core.Output) != "" {
			return p.Core.Output, nil
		}
		return p.Core.Output + "." + node.Target, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	base := strings.TrimSuffix(filepath.Base(p.Source), filepath.Ext(p.Source))
	name := base + "." + node.Target
	return filepath.Join(cwd, name), nil
}

// finalScatterPath resolves one scattered leaf's destination. When it is the
// only leaf it gets the ordinary single-output naming (honoring --output,
// same as finalPathFor); every other index gets "_<index>" appended before
// the extension so sibling leaves never collide.
func finalScatterPath(p pipeline.Pipeline, node *graph.Node, index, total int) (string, error) {
	if total == 1 {
		return finalPathFor(p, node, "", 1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	base := strings.TrimSuffix(filepath.Base(p.Source), filepath.Ext(p.Source))
	name := fmt.Sprintf("%s_%d.%s", base, index, node.Target)
	return filepath.Join(cwd, name), nil
}

func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	// os.Rename fails across filesystems/devices; fall back to copy+remove.
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}
