package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// TreesURI is the resource listing the available trees.
const TreesURI = "arbor://trees"

// Engine is the part of the arbor engine exposed over MCP.
type Engine interface {
	RunNamed(ctx context.Context, name string, payload domain.Payload) (*domain.Handle, error)
	Tree(name string) (*domain.Tree, error)
	Trees() ([]string, error)
}

// RunResponse is the result of the run_tree tool.
type RunResponse struct {
	ExecutionID string         `json:"executionId"`
	Payload     domain.Payload `json:"payload"`
}

// TreeResponse describes one tree.
type TreeResponse struct {
	Name       string                   `json:"name"`
	StaticTree *domain.StaticNode       `json:"staticTree"`
	Functions  []domain.FunctionDetails `json:"functions"`
}

// Server wraps the arbor engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine) *Server {
	s := &Server{
		engine:    engine,
		mcpServer: server.NewMCPServer("arbor-mcp", strings.TrimSpace(arbor.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops when ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_trees",
		mcp.WithDescription("List the names of the function trees that can be run."),
	), s.handleListTrees)

	s.mcpServer.AddTool(mcp.NewTool("get_tree",
		mcp.WithDescription("Describe a function tree: its static structure, its functions in index order and a Mermaid graph."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Tree name")),
	), s.handleGetTree)

	s.mcpServer.AddTool(mcp.NewTool("run_tree",
		mcp.WithDescription("Run a function tree to completion and return the final payload."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Tree name")),
		mcp.WithString("payload", mcp.Description("JSON object used as the initial payload (optional)")),
		mcp.WithOutputSchema[RunResponse](),
	), s.handleRunTree)
}

func (s *Server) handleListTrees(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names, err := s.engine.Trees()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	if names == nil {
		names = []string{}
	}
	jsonBytes, _ := json.Marshal(map[string]any{"trees": names})
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleGetTree(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, _ := request.GetArguments()["name"].(string)
	if name == "" {
		return mcp.NewToolResultError("name argument is required"), nil
	}
	tree, err := s.engine.Tree(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	jsonBytes, err := json.Marshal(TreeResponse{
		Name:       tree.Name(),
		StaticTree: tree.Static(),
		Functions:  tree.Functions(),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes) + "\n\n```mermaid\n" + graph.GenerateMermaid(tree, nil) + "```"), nil
}

func (s *Server) handleRunTree(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	name, _ := args["name"].(string)
	if name == "" {
		return mcp.NewToolResultError("name argument is required"), nil
	}

	payload, err := decodePayload(args["payload"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	h, err := s.engine.RunNamed(ctx, name, payload)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := h.Wait()
	if err != nil {
		var execErr *domain.ExecutionError
		if errors.As(err, &execErr) {
			slog.Warn("MCP run_tree: execution failed", "tree", name, "kind", execErr.Kind, "err", execErr.Message)
			return mcp.NewToolResultError(fmt.Sprintf("%s: %s", execErr.Kind, execErr.Error())), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp := RunResponse{ExecutionID: h.Execution().ID, Payload: out}
	jsonBytes, err := json.Marshal(resp)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
	}
	return mcp.NewToolResultStructured(resp, string(jsonBytes)), nil
}

// decodePayload accepts the payload either as a JSON string or as an object.
func decodePayload(raw any) (domain.Payload, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return domain.Payload(v), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		var p domain.Payload
		if err := json.Unmarshal([]byte(v), &p); err != nil {
			return nil, fmt.Errorf("payload must be a JSON object: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("payload must be a JSON object, got %T", raw)
	}
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(TreesURI, "Available function trees",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		names, err := s.engine.Trees()
		if err != nil {
			return nil, fmt.Errorf("failed to list trees: %w", err)
		}
		jsonBytes, _ := json.Marshal(names)
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      TreesURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
