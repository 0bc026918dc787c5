package cli

import (
	"fmt"
	"io"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/aretw0/arbor/pkg/trace"
)

// GraphOptions configures the graph command.
type GraphOptions struct {
	Options
	Tree string
	// TracePath and ExecutionID select a recorded run to overlay. Without an
	// ID the last execution of the trace file is used.
	TracePath   string
	ExecutionID string
}

// Graph writes the Mermaid flowchart of a tree.
func Graph(opts GraphOptions, w io.Writer) error {
	engine, _, err := createEngine(opts.Options, logging.NewNop())
	if err != nil {
		return err
	}
	tree, err := engine.Tree(opts.Tree)
	if err != nil {
		return err
	}

	var overlay *graph.Overlay
	if opts.TracePath != "" {
		events, err := trace.ReadFile(opts.TracePath)
		if err != nil {
			return err
		}
		ids, byID := trace.GroupByExecution(events)
		id := opts.ExecutionID
		if id == "" && len(ids) > 0 {
			id = ids[len(ids)-1]
		}
		recorded, ok := byID[id]
		if !ok {
			return fmt.Errorf("execution %q not found in %s", id, opts.TracePath)
		}
		overlay = graph.OverlayFromEvents(recorded)
	}

	_, err = io.WriteString(w, graph.GenerateMermaid(tree, overlay))
	return err
}

// InspectOptions configures the inspect command.
type InspectOptions struct {
	Options
	Tree string
	// Style is the glamour style; empty selects one from the terminal background.
	Style string
	// Raw prints the markdown source even on a terminal.
	Raw bool
}

// Inspect describes a tree as markdown, rendered with glamour when w is a terminal.
func Inspect(opts InspectOptions, w io.Writer) error {
	engine, loader, err := createEngine(opts.Options, logging.NewNop())
	if err != nil {
		return err
	}
	tree, err := engine.Tree(opts.Tree)
	if err != nil {
		return err
	}

	doc, _ := loader.Document(opts.Tree)
	md := tui.TreeMarkdown(tree, doc.Description)
	if opts.Raw || !isTerminal(w) {
		_, err = io.WriteString(w, md)
		return err
	}

	render, err := tui.NewRenderer(opts.Style, terminalWidth(w))
	if err != nil {
		return fmt.Errorf("markdown renderer: %w", err)
	}
	out, err := render(md)
	if err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}

// Validate loads every tree of opts.Dir and lists them.
func Validate(opts Options, w io.Writer) error {
	engine, loader, err := createEngine(opts, logging.NewNop())
	if err != nil {
		return err
	}
	names, err := engine.Trees()
	if err != nil {
		return err
	}
	for _, name := range names {
		tree, err := engine.Tree(name)
		if err != nil {
			return err
		}
		file, _ := loader.File(name)
		fmt.Fprintf(w, "%s\t%d functions\t%s\n", name, len(tree.Functions()), file)
	}
	printSystemMessage(w, "%d trees valid.", len(names))
	return nil
}
