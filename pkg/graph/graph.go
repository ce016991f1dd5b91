// Package graph builds an execution DAG from a parsed pipeline: one node per
// ordinary conversion element, one node per tee fan-out and collect fan-in
// stage, wired by predecessor/successor edges, plus a topological execution
// order.
package graph

import (
	"fmt"

	"github.com/uniconv/uniconv/pkg/pipeline"
)

// Status is the terminal outcome of a node's execution, mirrored here so the
// executor can annotate nodes in place as it runs.
type Status int

const (
	StatusPending Status = iota
	StatusSuccess
	StatusSkipped
	StatusError
)

// Node is a single execution node: an ordinary plugin conversion, or one of
// the tee/collect/clipboard/passthrough built-ins.
type Node struct {
	ID        int
	StageIdx  int
	ElementIdx int

	Target     string
	Plugin     string
	Options    map[string]string
	RawOptions []string

	Input       string
	TempOutput  string
	FinalOutput string

	PluginUsed string
	Status     Status
	Error      string
	DurationMS int64

	InputNodes  []int
	OutputNodes []int

	IsTee        bool
	IsCollect    bool
	IsClipboard  bool
	IsPassthrough bool

	ScatterOutputs []string
	CollectInputs  []string

	Executed                  bool
	ContentCopiedToClipboard  bool
}

// IsBuiltin reports whether the node is one of the built-in operators rather
// than a plugin conversion.
func (n *Node) IsBuiltin() bool {
	return n.IsTee || n.IsCollect || n.IsClipboard || n.IsPassthrough
}

// IsTerminal reports whether nothing downstream consumes this node's output.
func (n *Node) IsTerminal() bool { return len(n.OutputNodes) == 0 }

// HasFileOutput reports whether this node produces a new file (built-ins do
// not).
func (n *Node) HasFileOutput() bool { return !n.IsBuiltin() }

// Graph is the full set of nodes derived from a pipeline, plus the original
// source path.
type Graph struct {
	Nodes  []*Node
	Source string
}

// Build constructs a Graph from a validated pipeline.
func Build(p pipeline.Pipeline) *Graph {
	g := &Graph{Source: p.Source}

	var prevStageOutputs []int

	for stageIdx, stage := range p.Stages {
		var currentStageOutputs []int

		if stage.HasTee() {
			teeID := g.addNode()
			tee := g.Nodes[teeID]
			tee.StageIdx = stageIdx
			tee.Target = "tee"
			tee.IsTee = true

			if len(prevStageOutputs) == 0 {
				tee.Input = g.Source
			} else {
				tee.InputNodes = prevStageOutputs
				for _, prevID := range prevStageOutputs {
					g.Nodes[prevID].OutputNodes = append(g.Nodes[prevID].OutputNodes, teeID)
				}
			}

			teeCount := 1
			if stageIdx+1 < len(p.Stages) {
				teeCount = len(p.Stages[stageIdx+1].Elements)
			}
			for i := 0; i < teeCount; i++ {
				currentStageOutputs = append(currentStageOutputs, teeID)
			}

			prevStageOutputs = currentStageOutputs
			continue
		}

		if stage.IsCollect() {
			collectID := g.addNode()
			collect := g.Nodes[collectID]
			collect.StageIdx = stageIdx
			collect.Target = "collect"
			collect.IsCollect = true
			collect.Options = stage.Elements[0].Options
			collect.RawOptions = stage.Elements[0].RawOptions

			if len(prevStageOutputs) == 0 {
				collect.Input = g.Source
			} else {
				collect.InputNodes = prevStageOutputs
				for _, prevID := range prevStageOutputs {
					g.Nodes[prevID].OutputNodes = append(g.Nodes[prevID].OutputNodes, collectID)
				}
			}

			currentStageOutputs = append(currentStageOutputs, collectID)
			prevStageOutputs = currentStageOutputs
			continue
		}

		for elemIdx, elem := range stage.Elements {
			nodeID := g.addNode()
			node := g.Nodes[nodeID]
			node.StageIdx = stageIdx
			node.ElementIdx = elemIdx
			node.Target = elem.Target
			node.Plugin = elem.Plugin
			node.Options = elem.Options
			node.RawOptions = elem.RawOptions

			switch {
			case elem.IsClipboard():
				node.IsClipboard = true
			case elem.IsPassthrough():
				node.IsPassthrough = true
			}

			if len(prevStageOutputs) == 0 {
				node.Input = g.Source
			} else if elemIdx < len(prevStageOutputs) {
				prevID := prevStageOutputs[elemIdx]
				node.InputNodes = append(node.InputNodes, prevID)
				g.Nodes[prevID].OutputNodes = append(g.Nodes[prevID].OutputNodes, nodeID)
			}

			currentStageOutputs = append(currentStageOutputs, nodeID)
		}

		prevStageOutputs = currentStageOutputs
	}

	return g
}

func (g *Graph) addNode() int {
	id := len(g.Nodes)
	g.Nodes = append(g.Nodes, &Node{ID: id})
	return id
}

// Node returns the node with the given id, panicking if out of range (ids
// are always graph-internal and valid by construction).
func (g *Graph) Node(id int) *Node {
	return g.Nodes[id]
}

// TerminalNodes returns the ids of nodes with no consumers.
func (g *Graph) TerminalNodes() []int {
	var out []int
	for _, n := range g.Nodes {
		if n.IsTerminal() {
			out = append(out, n.ID)
		}
	}
	return out
}

// FileProducingNodes returns the ids of nodes that are not built-ins.
func (g *Graph) FileProducingNodes() []int {
	var out []int
	for _, n := range g.Nodes {
		if n.HasFileOutput() {
			out = append(out, n.ID)
		}
	}
	return out
}

// IsOnlyConsumedByClipboard reports whether every direct consumer of nodeID
// is a clipboard node.
func (g *Graph) IsOnlyConsumedByClipboard(nodeID int) bool {
	n := g.Nodes[nodeID]
	if len(n.OutputNodes) == 0 {
		return false
	}
	for _, consumerID := range n.OutputNodes {
		if !g.Nodes[consumerID].IsClipboard {
			return false
		}
	}
	return true
}

// WasContentCopiedToClipboard reports whether a clipboard consumer of nodeID
// recorded that it copied the content.
func (g *Graph) WasContentCopiedToClipboard(nodeID int) bool {
	n := g.Nodes[nodeID]
	for _, consumerID := range n.OutputNodes {
		c := g.Nodes[consumerID]
		if c.IsClipboard && c.ContentCopiedToClipboard {
			return true
		}
	}
	return false
}

// ClipboardConsumerHasSave reports whether a clipboard consumer of nodeID was
// given the --save option.
func (g *Graph) ClipboardConsumerHasSave(nodeID int) bool {
	n := g.Nodes[nodeID]
	for _, consumerID := range n.OutputNodes {
		c := g.Nodes[consumerID]
		if !c.IsClipboard {
			continue
		}
		if v, ok := c.Options["save"]; ok {
			return v == "" || v == "true" || v == "1"
		}
	}
	return false
}

// IsEffectivelyTerminal reports whether nodeID is terminal once passthrough
// chains are looked through: a passthrough consumer defers terminality to
// its own consumers.
func (g *Graph) IsEffectivelyTerminal(nodeID int) bool {
	n := g.Nodes[nodeID]
	if len(n.OutputNodes) == 0 {
		return true
	}
	for _, consumerID := range n.OutputNodes {
		c := g.Nodes[consumerID]
		if c.IsPassthrough {
			if !g.IsEffectivelyTerminal(consumerID) {
				return false
			}
			continue
		}
		return false
	}
	return true
}

// IsEffectivelyOnlyConsumedByClipboard is IsOnlyConsumedByClipboard looking
// through passthrough chains.
func (g *Graph) IsEffectivelyOnlyConsumedByClipboard(nodeID int) bool {
	n := g.Nodes[nodeID]
	if len(n.OutputNodes) == 0 {
		return false
	}
	for _, consumerID := range n.OutputNodes {
		c := g.Nodes[consumerID]
		switch {
		case c.IsClipboard:
			continue
		case c.IsPassthrough:
			if !g.IsEffectivelyOnlyConsumedByClipboard(consumerID) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// ExecutionOrder returns node ids in topological order via Kahn's algorithm.
// The pipeline validator guarantees the graph is acyclic; a returned order
// shorter than len(Nodes) indicates a cycle, which should never happen for a
// graph built from a validated pipeline.
func (g *Graph) ExecutionOrder() ([]int, error) {
	inDegree := make([]int, len(g.Nodes))
	for _, n := range g.Nodes {
		inDegree[n.ID] = len(n.InputNodes)
	}

	var ready []int
	for _, n := range g.Nodes {
		if len(n.InputNodes) == 0 {
			ready = append(ready, n.ID)
		}
	}

	var order []int
	for len(ready) > 0 {
		current := ready[0]
		ready = ready[1:]
		order = append(order, current)

		for _, consumerID := range g.Nodes[current].OutputNodes {
			inDegree[consumerID]--
			if inDegree[consumerID] == 0 {
				ready = append(ready, consumerID)
			}
		}
	}

	if len(order) != len(g.Nodes) {
		return nil, fmt.Errorf("execution graph has a cycle: only %d of %d nodes ordered", len(order), len(g.Nodes))
	}
	return order, nil
}
