package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/pkg/adapters/yaml"
	"github.com/aretw0/arbor/pkg/devtools"
	"github.com/aretw0/arbor/pkg/providers"
)

// Options are the settings shared by every command that loads trees.
type Options struct {
	// Dir holds the YAML tree documents.
	Dir string
	// Debug turns on debug hooks and logging.
	Debug  bool
	Config config.Config
}

// createEngine initializes an arbor engine with standard CLI conventions:
// YAML trees from opts.Dir resolved against the builtins, and a per-run logger
// available to steps.
func createEngine(opts Options, logger *slog.Logger) (*arbor.Engine, *yaml.Loader, error) {
	loader, err := yaml.Open(opts.Dir, NewRegistry())
	if err != nil {
		return nil, nil, fmt.Errorf("error loading trees from %s: %w", opts.Dir, err)
	}

	engineOpts := []arbor.Option{
		arbor.WithLoader(loader),
		arbor.WithLogger(logger),
		arbor.WithProviders(providers.Logger(logger)),
	}
	if opts.Debug {
		engineOpts = append(engineOpts, arbor.WithLifecycleHooks(createDebugHooks(logger)))
	}

	engine, err := arbor.New(engineOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return engine, loader, nil
}

// attachDebugger connects the engine to a remote debugger when one is configured.
// The returned function flushes and closes the connection.
func attachDebugger(ctx context.Context, engine *arbor.Engine, cfg config.Config, logger *slog.Logger) (func(), error) {
	if strings.TrimSpace(cfg.RemoteDebugger) == "" {
		return func() {}, nil
	}
	dt, err := devtools.New(cfg.RemoteDebugger,
		devtools.WithBacklog(cfg.DebuggerBacklog, devtools.DropOldest),
		devtools.WithReconnectInterval(cfg.DebuggerReconnect),
		devtools.WithLogger(logger),
		devtools.WithVersion(strings.TrimSpace(arbor.Version)),
	)
	if err != nil {
		return nil, err
	}
	dt.Attach(engine)
	dt.Start(ctx)
	logger.Info("remote debugger attached", "address", cfg.RemoteDebugger)
	return func() { _ = dt.Close() }, nil
}
