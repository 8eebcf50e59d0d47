// Package mcp exposes the wizard engine as a Model Context Protocol server.
package mcp

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/glaucoscan"
	"github.com/aretw0/glaucoscan/internal/logging"
	"github.com/aretw0/glaucoscan/internal/presentation/graph"
	"github.com/aretw0/glaucoscan/pkg/domain"
	"github.com/aretw0/glaucoscan/pkg/ports"
	"github.com/aretw0/glaucoscan/pkg/upload"
)

// WizardURI is the resource holding the Mermaid wizard diagram.
const WizardURI = "glaucoscan://wizard"

// ViewResponse aligns with the OpenAPI View schema.
type ViewResponse struct {
	View domain.View `json:"view" jsonschema_description:"The rendered wizard step for the session"`
}

// SessionArgs addresses an existing session.
type SessionArgs struct {
	SessionID string `json:"session_id"`
}

// UploadArgs carries an image as base64 since MCP tool calls are JSON only.
type UploadArgs struct {
	SessionID string `json:"session_id"`
	Data      string `json:"data"`
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
}

// Engine defines the interface required by the MCP server.
type Engine interface {
	ports.WizardEngine
	Render(state *domain.State) domain.View
	Delay() time.Duration
	MaxUploadBytes() int64
}

// Server wraps the wizard Engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		engine:    engine,
		logger:    logger,
		mcpServer: server.NewMCPServer("glaucoscan-mcp", glaucoscan.Version),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on port until ctx is cancelled.
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
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("shutting down MCP server")
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
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("start_session",
		mcp.WithDescription("Start a new screening session at the upload step."),
		mcp.WithOutputSchema[ViewResponse](),
	), mcp.NewStructuredToolHandler(s.handleStart))

	s.mcpServer.AddTool(mcp.NewTool("upload_image",
		mcp.WithDescription("Upload a retinal fundus image to a session awaiting an upload."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("data", mcp.Required(), mcp.Description("Base64-encoded image bytes")),
		mcp.WithString("name", mcp.Description("Original file name")),
		mcp.WithString("media_type", mcp.Description("Declared media type, e.g. image/png")),
		mcp.WithOutputSchema[ViewResponse](),
	), mcp.NewStructuredToolHandler(s.handleUpload))

	s.mcpServer.AddTool(mcp.NewTool("analyze",
		mcp.WithDescription("Start the analysis of the uploaded image. Results are ready after the analysis delay."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[ViewResponse](),
	), mcp.NewStructuredToolHandler(s.handleAnalyze))

	s.mcpServer.AddTool(mcp.NewTool("reset",
		mcp.WithDescription("Discard the session's image and result and return to the upload step."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[ViewResponse](),
	), mcp.NewStructuredToolHandler(s.handleReset))

	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Render the current step of a session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[ViewResponse](),
	), mcp.NewStructuredToolHandler(s.handleGet))

	s.mcpServer.AddTool(mcp.NewTool("get_wizard",
		mcp.WithDescription("Get the wizard flow as a Mermaid diagram."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(s.wizardDiagram()), nil
	})
}

func (s *Server) handleStart(ctx context.Context, _ mcp.CallToolRequest, _ SessionArgs) (ViewResponse, error) {
	return s.respond(s.engine.Start(ctx))
}

func (s *Server) handleUpload(ctx context.Context, _ mcp.CallToolRequest, args UploadArgs) (ViewResponse, error) {
	if args.SessionID == "" {
		return ViewResponse{}, errors.New("session_id is required")
	}
	// Oversized payloads are refused before anything is decoded.
	if limit := s.engine.MaxUploadBytes(); limit > 0 {
		if size := int64(base64.RawStdEncoding.DecodedLen(len(strings.TrimRight(args.Data, "=")))); size > limit {
			s.logger.Warn("MCP upload: payload too large", "session", args.SessionID, "size", size, "limit", limit)
			return s.respond(nil, fmt.Errorf("%w: size=%d limit=%d", domain.ErrImageTooLarge, size, limit))
		}
	}
	raw, err := base64.StdEncoding.DecodeString(args.Data)
	if err != nil {
		s.logger.Warn("MCP upload: bad payload", "session", args.SessionID, "err", err)
		return ViewResponse{}, fmt.Errorf("data is not valid base64: %w", err)
	}
	name := args.Name
	if name == "" {
		name = "upload"
	}
	return s.respond(s.engine.Upload(ctx, args.SessionID, upload.Input{
		Name:      name,
		MediaType: args.MediaType,
		Size:      int64(len(raw)),
		Reader:    bytes.NewReader(raw),
	}))
}

func (s *Server) handleAnalyze(ctx context.Context, _ mcp.CallToolRequest, args SessionArgs) (ViewResponse, error) {
	if args.SessionID == "" {
		return ViewResponse{}, errors.New("session_id is required")
	}
	return s.respond(s.engine.Analyze(ctx, args.SessionID))
}

func (s *Server) handleReset(ctx context.Context, _ mcp.CallToolRequest, args SessionArgs) (ViewResponse, error) {
	if args.SessionID == "" {
		return ViewResponse{}, errors.New("session_id is required")
	}
	return s.respond(s.engine.Reset(ctx, args.SessionID))
}

func (s *Server) handleGet(ctx context.Context, _ mcp.CallToolRequest, args SessionArgs) (ViewResponse, error) {
	if args.SessionID == "" {
		return ViewResponse{}, errors.New("session_id is required")
	}
	return s.respond(s.engine.Get(ctx, args.SessionID))
}

func (s *Server) respond(state *domain.State, err error) (ViewResponse, error) {
	if err != nil {
		if reason := domain.RejectionReason(err); reason != "other" {
			return ViewResponse{}, fmt.Errorf("%s: %w", reason, err)
		}
		return ViewResponse{}, err
	}
	return ViewResponse{View: s.engine.Render(state)}, nil
}

func (s *Server) wizardDiagram() string {
	return graph.GenerateMermaid(graph.Options{Delay: s.engine.Delay()}, nil)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(WizardURI, "Screening Wizard Flow",
		mcp.WithMIMEType("text/vnd.mermaid"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      WizardURI,
				MIMEType: "text/vnd.mermaid",
				Text:     s.wizardDiagram(),
			},
		}, nil
	})
}
