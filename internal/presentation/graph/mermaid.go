package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
)

// Overlay contains the state of one execution to visualize on the graph.
type Overlay struct {
	Visited []int
	Current *int
	Failed  *int
}

// OverlayFromEvents builds an overlay from the events of a single execution.
// The current function is the last one started that has not ended.
func OverlayFromEvents(events []domain.Event) *Overlay {
	o := &Overlay{}
	seen := make(map[int]bool)
	for _, e := range events {
		i, ok := e.Index()
		if !ok {
			continue
		}
		switch e.Type {
		case domain.EventFunctionStart:
			if !seen[i] {
				seen[i] = true
				o.Visited = append(o.Visited, i)
			}
			o.Current = domain.IndexOf(i)
		case domain.EventFunctionError:
			o.Failed = domain.IndexOf(i)
			o.Current = nil
		case domain.EventFunctionEnd, domain.EventPathStart:
			o.Current = nil
		}
	}
	return o
}

// edge is a connection waiting for its target.
type edge struct {
	from  string
	label string
}

type generator struct {
	sb strings.Builder
}

// GenerateMermaid produces a Mermaid flowchart of a compiled tree.
// It applies semantic styling:
// - Start/Done: ((Circle))
// - Decision (step followed by branches): {Rhombus}
// - Nested run: [[Subroutine]]
// - Default: [Rectangle]
// Branch edges carry the branch name. Overlay styles are applied if provided.
func GenerateMermaid(tree *domain.Tree, overlay *Overlay) string {
	g := &generator{}
	g.sb.WriteString("graph TD\n")
	g.sb.WriteString("    start((\"start\"))\n")

	pending := g.block(tree.Root(), []edge{{from: "start"}})

	g.sb.WriteString("    done((\"done\"))\n")
	g.connect(pending, "done")

	if overlay != nil {
		g.sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		g.sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		g.sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		g.sb.WriteString("    classDef failed fill:#ffcdd2,stroke:#b71c1c,stroke-width:4px,color:#000;\n")

		for _, i := range overlay.Visited {
			fmt.Fprintf(&g.sb, "    class %s visited;\n", nodeID(i))
		}
		if overlay.Current != nil {
			fmt.Fprintf(&g.sb, "    class %s current;\n", nodeID(*overlay.Current))
		}
		if overlay.Failed != nil {
			fmt.Fprintf(&g.sb, "    class %s failed;\n", nodeID(*overlay.Failed))
		}
	}
	return g.sb.String()
}

// block writes the nodes of b and returns the edges leaving it.
func (g *generator) block(b *domain.Block, pending []edge) []edge {
	for i, el := range b.Elements {
		if el.Step != nil {
			decision := i+1 < len(b.Elements) && b.Elements[i+1].Step == nil
			id := g.node(el.Step.Details, decision)
			g.connect(pending, id)
			pending = []edge{{from: id}}
			continue
		}

		// A branch map is entered from the step before it; every branch rejoins
		// the element after the map.
		names := make([]string, 0, len(el.Paths))
		for name := range el.Paths {
			names = append(names, name)
		}
		sort.Strings(names)

		var out []edge
		for _, name := range names {
			entry := make([]edge, 0, len(pending))
			for _, p := range pending {
				entry = append(entry, edge{from: p.from, label: name})
			}
			out = append(out, g.block(el.Paths[name], entry)...)
		}
		pending = out
	}
	return pending
}

func (g *generator) node(fn domain.FunctionDetails, decision bool) string {
	id := nodeID(fn.Index)
	opener, closer := "[", "]"
	switch {
	case decision:
		opener, closer = "{", "}" // Rhombus
	case strings.HasPrefix(fn.Name, "run:"):
		opener, closer = "[[", "]]" // Subroutine
	}
	fmt.Fprintf(&g.sb, "    %s%s\"%s\"%s\n", id, opener, escapeLabel(fn.Name), closer)
	return id
}

func (g *generator) connect(pending []edge, to string) {
	for _, p := range pending {
		arrow := "-->"
		if p.label != "" {
			arrow = fmt.Sprintf("-- \"%s\" -->", escapeLabel(p.label))
		}
		fmt.Fprintf(&g.sb, "    %s %s %s\n", p.from, arrow, to)
	}
}

func nodeID(index int) string {
	return fmt.Sprintf("f%d", index)
}

// escapeLabel replaces characters that would end a quoted Mermaid label.
func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
