package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/pkg/adapters/file"
	httpAdapter "github.com/aretw0/arbor/pkg/adapters/http"
	"github.com/aretw0/arbor/pkg/adapters/mcp"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/adapters/redis"
	"github.com/aretw0/arbor/pkg/observability"
	"github.com/aretw0/arbor/pkg/persistence/middleware"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/trace"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
)

// shutdownTimeout bounds the graceful shutdown of the servers.
const shutdownTimeout = 5 * time.Second

// ServeOptions configures the serve command.
type ServeOptions struct {
	Options
	// Addr overrides the configured listen address.
	Addr string
}

// openStore selects the trace store (Redis, a JSONL directory, or memory) and
// wraps it with the configured redaction and encryption.
func openStore(cfg config.Config) (ports.TraceStore, func() error, error) {
	var store ports.TraceStore
	closeStore := func() error { return nil }
	switch {
	case cfg.RedisAddr != "":
		rs := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			redis.WithPrefix(cfg.RedisPrefix),
			redis.WithTTL(cfg.TraceTTL),
		)
		store, closeStore = rs, rs.Close
	case cfg.TraceDir != "":
		store = file.New(cfg.TraceDir)
	default:
		store = memory.NewStore()
	}

	var mws []middleware.Middleware
	if len(cfg.TraceRedact) > 0 {
		pii, err := middleware.NewPIIMiddleware(cfg.TraceRedact)
		if err != nil {
			return nil, nil, err
		}
		mws = append(mws, pii)
	}
	key, err := cfg.TraceKeyBytes()
	if err != nil {
		return nil, nil, err
	}
	if key != nil {
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			return nil, nil, err
		}
		mws = append(mws, enc)
	}
	return middleware.Chain(store, mws...), closeStore, nil
}

// Serve runs the HTTP API until ctx is done.
func Serve(ctx context.Context, opts ServeOptions) error {
	cfg := opts.Config
	logger := createLogger(opts.Options)

	engine, _, err := createEngine(opts.Options, logger)
	if err != nil {
		return err
	}
	bus := engine.Events()
	observability.NewLogObserver(logger).Attach(bus)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := observability.NewMetrics(reg)
	if err != nil {
		return err
	}
	metrics.Attach(bus)

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.ServiceName, cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			logger.Warn("otel shutdown failed", "err", err)
		}
	}()
	if cfg.OTelEndpoint != "" {
		observability.NewTracer(otel.GetTracerProvider()).Attach(bus)
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	rec := trace.NewRecorder(store, trace.WithLogger(logger))
	rec.Attach(bus)
	defer rec.Close()

	detach, err := attachDebugger(ctx, engine, cfg, logger)
	if err != nil {
		return err
	}
	defer detach()

	addr := cfg.HTTPAddr
	if opts.Addr != "" {
		addr = opts.Addr
	}
	srv := &http.Server{
		Addr: addr,
		Handler: httpAdapter.NewHandler(engine,
			httpAdapter.WithStore(store),
			httpAdapter.WithMetrics(reg),
			httpAdapter.WithLogger(logger),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return listenAndServe(ctx, srv, logger)
}

func listenAndServe(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("arbor server listening", "address", srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		logger.Info("shutting down server")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			logger.Warn("graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
			return srv.Close()
		}
		logger.Info("arbor server stopped gracefully")
		return nil
	}
}

// MCPOptions configures the mcp command.
type MCPOptions struct {
	Options
	// Transport is "stdio" or "sse".
	Transport string
	Port      int
}

// ServeMCP exposes the trees as MCP tools until ctx is done or stdin closes.
func ServeMCP(ctx context.Context, opts MCPOptions) error {
	logger := createLogger(opts.Options)
	engine, _, err := createEngine(opts.Options, logger)
	if err != nil {
		return err
	}
	srv := mcp.NewServer(engine)

	switch opts.Transport {
	case "", "stdio":
		logger.Info("starting arbor MCP server (stdio)")
		return srv.ServeStdio()
	case "sse":
		logger.Info("starting arbor MCP server (SSE)", "port", opts.Port)
		if err := srv.ServeSSE(ctx, opts.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	default:
		return fmt.Errorf("unknown transport %q, supported: stdio, sse", opts.Transport)
	}
}
