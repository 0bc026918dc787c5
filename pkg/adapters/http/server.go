package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/events"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBody bounds the JSON payload accepted by the run endpoint.
const maxBody = 1 << 20

// Engine is the part of the arbor engine the HTTP API drives.
type Engine interface {
	RunNamed(ctx context.Context, name string, payload domain.Payload) (*domain.Handle, error)
	Tree(name string) (*domain.Tree, error)
	Trees() ([]string, error)
	Events() *events.Bus
}

// Server serves the HTTP API.
type Server struct {
	Engine  Engine
	Streams *StreamManager

	store    ports.TraceStore
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures the server.
type Option func(*Server)

// WithStore enables the execution endpoints, served from store.
func WithStore(store ports.TraceStore) Option {
	return func(s *Server) { s.store = store }
}

// WithMetrics exposes g on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewHandler creates a new HTTP handler for the engine. Live events of the
// engine are published to SSE subscribers of /events.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	server := &Server{
		Engine:  engine,
		Streams: NewStreamManager(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(server)
	}
	server.Streams.logger = server.logger
	engine.Events().OnAll(server.publish)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", server.GetHealth)
	r.Get("/info", server.GetInfo)
	r.Get("/trees", server.ListTrees)
	r.Get("/trees/{name}", server.GetTree)
	r.Get("/trees/{name}/graph", server.GetGraph)
	r.Post("/trees/{name}/run", server.RunTree)
	r.Get("/executions", server.ListExecutions)
	r.Get("/executions/{id}/events", server.GetExecutionEvents)
	r.Get("/events", server.SubscribeEvents)
	if server.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(server.gatherer, promhttp.HandlerOpts{}))
	}

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "arbor-http",
		"version": strings.TrimSpace(arbor.Version),
	})
}

// ListTrees handles the GET /trees request.
func (s *Server) ListTrees(w http.ResponseWriter, r *http.Request) {
	names, err := s.Engine.Trees()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"trees": names})
}

// GetTree handles the GET /trees/{name} request.
func (s *Server) GetTree(w http.ResponseWriter, r *http.Request) {
	tree, err := s.Engine.Tree(chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"name":       tree.Name(),
		"staticTree": tree.Static(),
		"functions":  tree.Functions(),
	})
}

// GetGraph handles the GET /trees/{name}/graph request. With ?execution=ID the
// recorded run is overlaid on the graph.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	tree, err := s.Engine.Tree(chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	var overlay *graph.Overlay
	if id := r.URL.Query().Get("execution"); id != "" {
		if s.store == nil {
			s.writeError(w, errNoStore)
			return
		}
		evs, err := s.store.Load(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		overlay = graph.OverlayFromEvents(evs)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, graph.GenerateMermaid(tree, overlay))
}

// RunTree handles the POST /trees/{name}/run request. The body is the initial
// payload. With ?async=true the run continues after the 202 response.
func (s *Server) RunTree(w http.ResponseWriter, r *http.Request) {
	var payload domain.Payload
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			http.Error(w, "Invalid request body: expected a JSON object", http.StatusBadRequest)
			s.logger.Warn("run: invalid request body", "err", err)
			return
		}
	}

	name := chi.URLParam(r, "name")
	async := r.URL.Query().Get("async") == "true"
	ctx := r.Context()
	if async {
		ctx = context.WithoutCancel(ctx)
	}

	h, err := s.Engine.RunNamed(ctx, name, payload)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id := h.Execution().ID

	if async {
		s.writeJSON(w, http.StatusAccepted, map[string]any{"executionId": id})
		return
	}

	out, err := h.Wait()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"executionId": id, "payload": out})
}

// ListExecutions handles the GET /executions request.
func (s *Server) ListExecutions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, errNoStore)
		return
	}
	ids, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"executions": ids})
}

// GetExecutionEvents handles the GET /executions/{id}/events request.
func (s *Server) GetExecutionEvents(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, errNoStore)
		return
	}
	evs, err := s.store.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"events": evs})
}

var errNoStore = errors.New("no trace store configured")

// errorBody is the JSON form of a failure.
type errorBody struct {
	Kind          string `json:"kind"`
	Message       string `json:"message"`
	FunctionIndex *int   `json:"functionIndex,omitempty"`
	FunctionName  string `json:"functionName,omitempty"`
	ExecutionID   string `json:"executionId,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := errorBody{Kind: "InternalError", Message: err.Error()}

	var execErr *domain.ExecutionError
	switch {
	case errors.Is(err, domain.ErrTreeNotFound), errors.Is(err, domain.ErrExecutionNotFound):
		status = http.StatusNotFound
		body.Kind = "NotFound"
	case errors.Is(err, errNoStore):
		status = http.StatusNotImplemented
		body.Kind = "NotImplemented"
	case errors.As(err, &execErr):
		status = http.StatusUnprocessableEntity
		body.Kind = string(execErr.Kind)
		body.Message = execErr.Message
		body.FunctionName = execErr.FunctionName
		body.ExecutionID = execErr.ExecutionID
		if execErr.FunctionIndex >= 0 {
			body.FunctionIndex = domain.IndexOf(execErr.FunctionIndex)
		}
	default:
		s.logger.Error("request failed", "err", err)
	}

	resp := map[string]any{"error": body}
	if body.ExecutionID != "" {
		resp["executionId"] = body.ExecutionID
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

// publish forwards an engine event to the SSE subscribers.
func (s *Server) publish(_ context.Context, ev domain.Event) {
	if s.Streams.Len() == 0 {
		return
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		s.logger.Warn("SSE: event not encodable", "type", ev.Type, "err", err)
		return
	}
	s.Streams.Broadcast(ev.ExecutionID, Message{Type: string(ev.Type), Data: string(raw)})
}

// SubscribeEvents handles the GET /events request (SSE). ?execution=ID limits
// the stream to one execution; ?types=a,b limits it to some event types.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var types map[string]bool
	if raw := r.URL.Query().Get("types"); raw != "" {
		types = make(map[string]bool)
		for _, t := range strings.Split(raw, ",") {
			types[strings.TrimSpace(t)] = true
		}
	}

	executionID := r.URL.Query().Get("execution")
	ch, cancel := s.Streams.Subscribe(executionID)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if types != nil && !types[msg.Type] {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Type, msg.Data)
			flusher.Flush()
		}
	}
}
