package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/trace"
)

// RunOptions contains all the configuration for the Run command.
type RunOptions struct {
	Options
	Tree string
	// Payload is the initial payload as a raw JSON object.
	Payload string
	// TracePath appends every event to a JSONL file.
	TracePath string
	// JSON prints only the final payload, without the timeline.
	JSON bool
}

// Run executes one tree and prints its timeline and final payload to w.
func Run(ctx context.Context, opts RunOptions, w io.Writer) error {
	logger := createLogger(opts.Options)

	payload, err := parsePayload(opts.Payload)
	if err != nil {
		return err
	}

	engine, _, err := createEngine(opts.Options, logger)
	if err != nil {
		return err
	}
	tree, err := engine.Tree(opts.Tree)
	if err != nil {
		return err
	}

	if opts.TracePath != "" {
		tw, err := trace.OpenFile(opts.TracePath)
		if err != nil {
			return err
		}
		defer tw.Close()
		engine.Events().OnAll(tw.Observe)
	}

	if !opts.JSON {
		tl := tui.NewTimeline(w)
		engine.Events().OnAll(tl.Observe)
	}

	detach, err := attachDebugger(ctx, engine, opts.Config, logger)
	if err != nil {
		return err
	}
	defer detach()

	out, runErr := engine.RunSync(ctx, tree, payload)
	if runErr != nil {
		if isInterrupted(runErr) {
			printSystemMessage(w, "Interrupted.")
		}
		return handleExecutionError(runErr)
	}

	if !opts.JSON {
		printSystemMessage(w, "Finished '%s'.", tree.Name())
	}
	return writePayload(w, out)
}

func writePayload(w io.Writer, p domain.Payload) error {
	if p == nil {
		p = domain.Payload{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	return nil
}

// createLogger configures the application logger.
// In debug mode it logs everything to Stderr (to separate from the Stdout timeline).
func createLogger(opts Options) *slog.Logger {
	if opts.Debug {
		return logging.New(slog.LevelDebug)
	}
	return opts.Config.Logger()
}
