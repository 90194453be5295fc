package render

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/matzehuels/fm3/pkg/graph"
)

// DOT converts g to an undirected Graphviz document in which every node is
// pinned at its layout position.
func DOT(g graph.Graph, opts Options) string {
	s := opts.scale()

	var buf bytes.Buffer
	buf.WriteString("graph G {\n")
	buf.WriteString("  layout=neato;\n")
	buf.WriteString("  inputscale=72;\n")
	buf.WriteString("  notranslate=true;\n")
	buf.WriteString("  splines=line;\n")
	buf.WriteString("  overlap=true;\n")
	buf.WriteString("  outputorder=edgesfirst;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, fixedsize=true, style=\"rounded,filled\", fillcolor=white, fontsize=10];\n")
	buf.WriteString("  edge [color=\"#555555\"];\n")
	buf.WriteString("\n")

	for _, n := range g.Nodes {
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(nodeAttrs(n, s, opts.Labels), ", "))
	}

	buf.WriteString("\n")
	for _, e := range g.Edges {
		fmt.Fprintf(&buf, "  %q -- %q;\n", e.From, e.To)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeAttrs(n graph.Node, scale float64, labels bool) []string {
	w, h := n.Width, n.Height
	if w == 0 && h == 0 {
		w, h = DefaultNodeSize, DefaultNodeSize
	}
	label := ""
	if labels {
		label = n.DisplayLabel()
	}
	return []string{
		fmt.Sprintf("pos=\"%s,%s!\"", num(n.X*scale), num(n.Y*scale)),
		"width=" + num(w*scale/72),
		"height=" + num(h*scale/72),
		fmt.Sprintf("label=%q", label),
	}
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
