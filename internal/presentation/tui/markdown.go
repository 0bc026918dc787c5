package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/aretw0/arbor/pkg/domain"
)

// TreeMarkdown describes a compiled tree: its functions, their branches and a
// Mermaid flowchart.
func TreeMarkdown(tree *domain.Tree, description string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", tree.Name())
	if description != "" {
		sb.WriteString(strings.TrimSpace(description))
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Functions\n\n")
	sb.WriteString("| Index | Name | Paths |\n")
	sb.WriteString("|------:|------|-------|\n")
	for _, fn := range tree.Functions() {
		paths := "-"
		if len(fn.Paths) > 0 {
			paths = strings.Join(fn.Paths, ", ")
		}
		fmt.Fprintf(&sb, "| %d | `%s` | %s |\n", fn.Index, strings.ReplaceAll(fn.Name, "|", `\|`), paths)
	}

	sb.WriteString("\n## Graph\n\n```mermaid\n")
	sb.WriteString(graph.GenerateMermaid(tree, nil))
	sb.WriteString("```\n")
	return sb.String()
}
