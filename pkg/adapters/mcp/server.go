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

	"github.com/aretw0/topical"
	"github.com/aretw0/topical/internal/logging"
	"github.com/aretw0/topical/pkg/domain"
	"github.com/aretw0/topical/pkg/ports"
	"github.com/aretw0/topical/pkg/runner"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// TopicsURI is the resource listing the registered topics.
const TopicsURI = "topical://topics"

// SendResponse is the structured result of the send_event tool.
type SendResponse struct {
	ConversationID string   `json:"conversation_id" jsonschema_description:"The conversation the event was delivered to"`
	Replies        []string `json:"replies" jsonschema_description:"Messages produced by the topics during the turn"`
	RootCompleted  bool     `json:"root_completed" jsonschema_description:"True when the root topic finished in this turn"`
	RootPayload    any      `json:"root_payload,omitempty" jsonschema_description:"Completion payload of the root topic"`
	Steps          int      `json:"steps" jsonschema_description:"Behavior invocations executed"`
}

// Server wraps a conversation engine and exposes it as an MCP Server.
type Server struct {
	engine    ports.ConversationEngine
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine ports.ConversationEngine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		mcpServer: server.NewMCPServer("topical-mcp", strings.TrimSpace(topical.Version)),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer exposes the underlying server, e.g. for custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
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
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, shutting down MCP server")
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

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	sendTool := mcp.NewTool("send_event",
		mcp.WithDescription("Deliver one event to a conversation and return the replies. The first event of a conversation starts its root topic."),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation identifier")),
		mcp.WithString("text", mcp.Required(), mcp.Description("User message text")),
		mcp.WithString("type", mcp.Description("Event type (default: message)")),
		mcp.WithString("payload", mcp.Description("JSON object attached to the event (optional)")),
		mcp.WithOutputSchema[SendResponse](),
	)
	s.mcpServer.AddTool(sendTool, mcp.NewStructuredToolHandler(s.handleSend))

	s.mcpServer.AddTool(mcp.NewTool("inspect_conversation",
		mcp.WithDescription("Return the stored conversation, including its topic instances."),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation identifier")),
	), s.handleInspect)

	s.mcpServer.AddTool(mcp.NewTool("reset_conversation",
		mcp.WithDescription("Delete a conversation; its next event starts a fresh root topic."),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation identifier")),
	), s.handleReset)

	s.mcpServer.AddTool(mcp.NewTool("list_conversations",
		mcp.WithDescription("List the stored conversation IDs."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ids, err := s.engine.List(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(ids)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

func (s *Server) handleSend(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SendResponse, error) {
	id, _ := args["conversation_id"].(string)
	text, _ := args["text"].(string)
	if id == "" {
		return SendResponse{}, fmt.Errorf("conversation_id is required")
	}

	in := runner.EventInput{Text: text}
	in.Type, _ = args["type"].(string)
	if raw, ok := args["payload"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.Payload); err != nil {
			return SendResponse{}, fmt.Errorf("payload must be a JSON object: %w", err)
		}
	}
	event, err := in.Event()
	if err != nil {
		s.logger.Warn("MCP Send: Input rejected", "err", err, "size", len(text))
		return SendResponse{}, fmt.Errorf("input rejected: %w", err)
	}

	res, err := s.engine.Send(ctx, id, event)
	if err != nil {
		return SendResponse{}, fmt.Errorf("send failed: %w", err)
	}

	return SendResponse{
		ConversationID: id,
		Replies:        res.Texts(),
		RootCompleted:  res.RootCompleted,
		RootPayload:    res.RootPayload,
		Steps:          res.Steps,
	}, nil
}

func (s *Server) handleInspect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	conv, err := s.engine.Inspect(ctx, id)
	if errors.Is(err, domain.ErrConversationNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("conversation %s not found", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("inspect failed: %v", err)), nil
	}
	jsonBytes, err := json.Marshal(conv)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.engine.Reset(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reset failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("conversation %s reset", id)), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(TopicsURI, "Registered Topics",
		mcp.WithMIMEType("application/json"),
	), s.readTopics)
}

func (s *Server) readTopics(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	jsonBytes, err := json.Marshal(s.engine.Topics())
	if err != nil {
		return nil, fmt.Errorf("failed to encode topics: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      TopicsURI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}
