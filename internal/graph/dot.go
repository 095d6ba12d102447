package graph

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Dot writes the graph in graphviz format. Nodes are labeled with their ID,
// type and shape and filled with their color; edges go from child to parent.
func (g *Graph) Dot(w io.Writer) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "digraph %q {\n", g.name)
	sb.WriteString("\tgraph [rankdir=LR];\n")
	sb.WriteString("\tnode [shape=box, style=filled];\n")
	for _, n := range g.nodes {
		label := fmt.Sprintf("%d: %s\n%s", n.ID(), n.Type(), n.Shape())
		if p, ok := n.(*ParamNode); ok {
			label = fmt.Sprintf("%d: %s\n%s", p.ID(), p.Name(), p.Shape())
		}
		fmt.Fprintf(&sb, "\tn%d [label=%q, fillcolor=%q];\n", n.ID(), label, n.Color())
	}
	for _, n := range g.nodes {
		for _, child := range n.Children() {
			fmt.Fprintf(&sb, "\tn%d -> n%d;\n", child.ID(), n.ID())
		}
	}
	sb.WriteString("}\n")
	if _, err := io.WriteString(w, sb.String()); err != nil {
		return errors.Wrapf(err, "writing graph %s", g.name)
	}
	return nil
}
