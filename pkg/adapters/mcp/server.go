// Package mcp exposes the diagnostic wizard to Model Context Protocol clients,
// so an assistant can walk a user through the tree as a series of tool calls.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/armtemiy/armlab"
	"github.com/armtemiy/armlab/internal/logging"
	"github.com/armtemiy/armlab/pkg/domain"
	"github.com/armtemiy/armlab/pkg/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// TreeURI is the resource that serves the active tree.
const TreeURI = "armlab://tree"

// sessionPrefix keeps MCP sessions apart from Telegram and anonymous web ones.
const sessionPrefix = "mcp:"

// Sessions is the part of the session manager the server drives.
type Sessions interface {
	Start(ctx context.Context, sessionID string, caller domain.Caller) (*domain.View, error)
	View(ctx context.Context, sessionID string, caller domain.Caller) (*domain.View, error)
	Advance(ctx context.Context, sessionID string, caller domain.Caller, label, next string) (*domain.View, error)
	Back(ctx context.Context, sessionID string, caller domain.Caller) (*domain.View, error)
	Restart(ctx context.Context, sessionID string, caller domain.Caller) (*domain.View, error)
}

// Trees exposes the active tree.
type Trees interface {
	Current() domain.TreeRef
}

// WizardResponse is the structured result of every wizard tool.
type WizardResponse struct {
	View *domain.View `json:"view,omitempty" jsonschema_description:"What to present for the current node"`
	Exit bool         `json:"exit,omitempty" jsonschema_description:"True when back was used on the first question and the wizard closed"`
}

type sessionArgs struct {
	SessionID string `json:"session_id"`
}

type answerArgs struct {
	SessionID string `json:"session_id"`
	Label     string `json:"label"`
	Next      string `json:"next"`
}

// Server wraps the session manager and exposes it as an MCP Server.
type Server struct {
	sessions  Sessions
	trees     Trees
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(sessions Sessions, trees Trees, opts ...Option) *Server {
	s := &Server{
		sessions: sessions,
		trees:    trees,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mcpServer = server.NewMCPServer("armlab-mcp", strings.TrimSpace(armlab.Version))
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	host := addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL("http://"+host))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

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

func (s *Server) registerTools() {
	sessionParam := mcp.WithString("session_id", mcp.Required(),
		mcp.Description("Stable id of the conversation; the same id resumes the same wizard"))

	s.mcpServer.AddTool(mcp.NewTool("start_wizard",
		mcp.WithDescription("Open the diagnostic wizard, resuming the session when it already exists."),
		sessionParam,
		mcp.WithOutputSchema[WizardResponse](),
	), mcp.NewStructuredToolHandler(s.handleStart))

	s.mcpServer.AddTool(mcp.NewTool("view_wizard",
		mcp.WithDescription("Render the current node of an existing session."),
		sessionParam,
		mcp.WithOutputSchema[WizardResponse](),
	), mcp.NewStructuredToolHandler(s.handleView))

	s.mcpServer.AddTool(mcp.NewTool("answer",
		mcp.WithDescription("Answer the current question with one of its option labels."),
		sessionParam,
		mcp.WithString("label", mcp.Required(), mcp.Description("Option label exactly as presented")),
		mcp.WithString("next", mcp.Description("Option target node; resolved from the label when omitted")),
		mcp.WithOutputSchema[WizardResponse](),
	), mcp.NewStructuredToolHandler(s.handleAnswer))

	s.mcpServer.AddTool(mcp.NewTool("back",
		mcp.WithDescription("Return to the previous question. On the first question this closes the wizard."),
		sessionParam,
		mcp.WithOutputSchema[WizardResponse](),
	), mcp.NewStructuredToolHandler(s.handleBack))

	s.mcpServer.AddTool(mcp.NewTool("restart",
		mcp.WithDescription("Discard all answers and start over on the active tree."),
		sessionParam,
		mcp.WithOutputSchema[WizardResponse](),
	), mcp.NewStructuredToolHandler(s.handleRestart))

	s.mcpServer.AddTool(mcp.NewTool("get_tree",
		mcp.WithDescription("Get the active diagnostic tree definition."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, err := s.treeJSON()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	})
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(TreeURI, "Active diagnostic tree",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := s.treeJSON()
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      TreeURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

func (s *Server) treeJSON() ([]byte, error) {
	data, err := schema.Encode(s.trees.Current().Tree)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tree: %w", err)
	}
	return data, nil
}

func sessionID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("session_id is required")
	}
	return sessionPrefix + raw, nil
}

func (s *Server) handleStart(ctx context.Context, _ mcp.CallToolRequest, args sessionArgs) (WizardResponse, error) {
	id, err := sessionID(args.SessionID)
	if err != nil {
		return WizardResponse{}, err
	}
	return s.respond(s.sessions.Start(ctx, id, domain.Caller{}))
}

func (s *Server) handleView(ctx context.Context, _ mcp.CallToolRequest, args sessionArgs) (WizardResponse, error) {
	id, err := sessionID(args.SessionID)
	if err != nil {
		return WizardResponse{}, err
	}
	return s.respond(s.sessions.View(ctx, id, domain.Caller{}))
}

func (s *Server) handleAnswer(ctx context.Context, _ mcp.CallToolRequest, args answerArgs) (WizardResponse, error) {
	id, err := sessionID(args.SessionID)
	if err != nil {
		return WizardResponse{}, err
	}

	next := args.Next
	if next == "" {
		view, err := s.sessions.View(ctx, id, domain.Caller{})
		if err != nil {
			return s.respond(nil, err)
		}
		if next, err = optionTarget(view, args.Label); err != nil {
			return WizardResponse{}, err
		}
	}
	return s.respond(s.sessions.Advance(ctx, id, domain.Caller{}, args.Label, next))
}

func (s *Server) handleBack(ctx context.Context, _ mcp.CallToolRequest, args sessionArgs) (WizardResponse, error) {
	id, err := sessionID(args.SessionID)
	if err != nil {
		return WizardResponse{}, err
	}
	view, err := s.sessions.Back(ctx, id, domain.Caller{})
	if errors.Is(err, domain.ErrExit) {
		return WizardResponse{View: view, Exit: true}, nil
	}
	return s.respond(view, err)
}

func (s *Server) handleRestart(ctx context.Context, _ mcp.CallToolRequest, args sessionArgs) (WizardResponse, error) {
	id, err := sessionID(args.SessionID)
	if err != nil {
		return WizardResponse{}, err
	}
	return s.respond(s.sessions.Restart(ctx, id, domain.Caller{}))
}

func (s *Server) respond(view *domain.View, err error) (WizardResponse, error) {
	switch {
	case err == nil:
		return WizardResponse{View: view}, nil
	case errors.Is(err, domain.ErrNodeNotFound):
		return WizardResponse{}, fmt.Errorf("broken tree, call restart: %w", err)
	case errors.Is(err, domain.ErrInvalidOption), errors.Is(err, domain.ErrSessionNotFound):
		return WizardResponse{}, err
	}
	s.logger.Error("MCP wizard call failed", "error", err)
	return WizardResponse{}, errors.New("internal error")
}

func optionTarget(view *domain.View, label string) (string, error) {
	if view.Question == nil {
		return "", fmt.Errorf("%w: current node is a result", domain.ErrInvalidOption)
	}
	for _, o := range view.Question.Options {
		if o.Label == label {
			return o.Next, nil
		}
	}
	return "", fmt.Errorf("%w: no option labelled %q", domain.ErrInvalidOption, label)
}
