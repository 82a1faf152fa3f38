// Package toolserver exposes the orchestration engine's four operations
// as MCP tools over github.com/mark3labs/mcp-go, using mcp.Tool/AddTool
// registration and BindArguments-based request decoding.
package toolserver

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/sun-rs/three/config"
	"github.com/sun-rs/three/orchestrate"
)

// Server wraps an orchestrate.Engine as an MCP tool server.
type Server struct {
	engine   *orchestrate.Engine
	mcp      *server.MCPServer
	log      *zap.SugaredLogger
	handlers map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// New builds a Server with info/call/batch/roundtable registered as tools.
func New(engine *orchestrate.Engine, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		engine:   engine,
		mcp:      server.NewMCPServer("three", version, server.WithToolCapabilities(false)),
		log:      logger.Sugar(),
		handlers: map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){},
	}
	s.registerTools()
	return s
}

// Tools exposes the registered name→handler map directly, so tests can
// exercise tool dispatch without standing up a real stdio transport.
func (s *Server) Tools() map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.handlers
}

// ServeStdio runs the server over stdio until the transport closes (the
// host disconnects) or the process receives a termination signal, matching
// a tool-spawned child's usual lifetime as a long-running daemon.
func (s *Server) ServeStdio(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- server.ServeStdio(s.mcp) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// addTool registers a tool with mcp-go and records its handler for
// introspection (see Tools).
func (s *Server) addTool(tool mcp.Tool, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)) {
	s.handlers[tool.Name] = handler
	s.mcp.AddTool(tool, handler)
}

func (s *Server) registerTools() {
	s.addTool(mcp.Tool{
		Name:        "info",
		Description: "Report the resolved shape of every configured role, read-only; never spawns a backend.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"cd":              map[string]interface{}{"type": "string", "description": "working directory / repo root"},
				"client":          map[string]interface{}{"type": "string"},
				"conversation_id": map[string]interface{}{"type": "string"},
			},
			Required: []string{"cd"},
		},
	}, s.handleInfo)

	s.addTool(mcp.Tool{
		Name:        "call",
		Description: "Invoke a single configured role against one backend, resuming or starting a session as needed.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"prompt":            map[string]interface{}{"type": "string"},
				"cd":                map[string]interface{}{"type": "string"},
				"role":              map[string]interface{}{"type": "string"},
				"client":            map[string]interface{}{"type": "string"},
				"conversation_id":   map[string]interface{}{"type": "string"},
				"session_key":       map[string]interface{}{"type": "string"},
				"session_id":        map[string]interface{}{"type": "string"},
				"force_new_session": map[string]interface{}{"type": "boolean"},
				"timeout_secs":      map[string]interface{}{"type": "integer"},
				"contract":          map[string]interface{}{"type": "string"},
				"validate_patch":    map[string]interface{}{"type": "boolean"},
				"model_override":    map[string]interface{}{"type": "string"},
			},
			Required: []string{"prompt", "cd", "role"},
		},
	}, s.handleCall)

	s.addTool(mcp.Tool{
		Name:        "batch",
		Description: "Run multiple role invocations concurrently; a failing task never aborts its siblings.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"cd":              map[string]interface{}{"type": "string"},
				"client":          map[string]interface{}{"type": "string"},
				"conversation_id": map[string]interface{}{"type": "string"},
				"tasks": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"name":              map[string]interface{}{"type": "string"},
							"role":              map[string]interface{}{"type": "string"},
							"prompt":            map[string]interface{}{"type": "string"},
							"force_new_session": map[string]interface{}{"type": "boolean"},
							"session_id":        map[string]interface{}{"type": "string"},
							"timeout_secs":      map[string]interface{}{"type": "integer"},
							"contract":          map[string]interface{}{"type": "string"},
							"validate_patch":    map[string]interface{}{"type": "boolean"},
						},
						"required": []string{"name", "role", "prompt"},
					},
				},
			},
			Required: []string{"cd", "tasks"},
		},
	}, s.handleBatch)

	s.addTool(mcp.Tool{
		Name:        "roundtable",
		Description: "Run a multi-round, multi-participant discussion with convergence detection and carryover.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"cd":              map[string]interface{}{"type": "string"},
				"client":          map[string]interface{}{"type": "string"},
				"conversation_id": map[string]interface{}{"type": "string"},
				"topic":           map[string]interface{}{"type": "string"},
				"rounds":          map[string]interface{}{"type": "integer"},
				"participants": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"name":  map[string]interface{}{"type": "string"},
							"role":  map[string]interface{}{"type": "string"},
							"model": map[string]interface{}{"type": "string"},
						},
						"required": []string{"name", "role"},
					},
				},
				"round1_force_new":           map[string]interface{}{"type": "boolean"},
				"round_context_level":        map[string]interface{}{"type": "string"},
				"round_stage_timeout_secs":   map[string]interface{}{"type": "integer"},
				"round_stage_min_successes":  map[string]interface{}{"type": "integer"},
				"round2_only_stage1_success": map[string]interface{}{"type": "boolean"},
				"round_anonymous_viewpoints": map[string]interface{}{"type": "boolean"},
				"persist_round_artifacts":    map[string]interface{}{"type": "boolean"},
			},
			Required: []string{"cd", "topic", "participants", "rounds"},
		},
	}, s.handleRoundtable)
}

func (s *Server) clientOrEnv(client string) string {
	if client != "" {
		return client
	}
	return config.ClientFromEnv()
}

func (s *Server) conversationIDOrEnv(id string) string {
	if id != "" {
		return id
	}
	return config.ConversationIDFromEnv()
}

func (s *Server) handleInfo(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		CD             string `json:"cd"`
		Client         string `json:"client"`
		ConversationID string `json:"conversation_id"`
	}
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("parsing arguments: %v", err)), nil
	}

	resp := s.engine.Info(orchestrate.InfoRequest{
		WorkDir:        args.CD,
		Client:         s.clientOrEnv(args.Client),
		ConversationID: s.conversationIDOrEnv(args.ConversationID),
	})
	return mcp.NewToolResultStructuredOnly(resp), nil
}

func (s *Server) handleCall(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Prompt          string `json:"prompt"`
		CD              string `json:"cd"`
		Role            string `json:"role"`
		Client          string `json:"client"`
		ConversationID  string `json:"conversation_id"`
		SessionKey      string `json:"session_key"`
		SessionID       string `json:"session_id"`
		ForceNewSession bool   `json:"force_new_session"`
		TimeoutSecs     int    `json:"timeout_secs"`
		Contract        string `json:"contract"`
		ValidatePatch   bool   `json:"validate_patch"`
		ModelOverride   string `json:"model_override"`
	}
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("parsing arguments: %v", err)), nil
	}

	result := s.engine.Call(ctx, orchestrate.CallRequest{
		Prompt:              args.Prompt,
		WorkDir:             args.CD,
		Role:                args.Role,
		Client:              s.clientOrEnv(args.Client),
		ConversationID:      s.conversationIDOrEnv(args.ConversationID),
		SessionKey:          args.SessionKey,
		SessionID:           args.SessionID,
		ForceNewSession:     args.ForceNewSession,
		TimeoutSecsOverride: args.TimeoutSecs,
		Contract:            args.Contract,
		ValidatePatch:       args.ValidatePatch,
		ModelOverride:       args.ModelOverride,
	})
	return mcp.NewToolResultStructuredOnly(result), nil
}

func (s *Server) handleBatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		CD             string `json:"cd"`
		Client         string `json:"client"`
		ConversationID string `json:"conversation_id"`
		Tasks          []struct {
			Name            string `json:"name"`
			Role            string `json:"role"`
			Prompt          string `json:"prompt"`
			ForceNewSession bool   `json:"force_new_session"`
			SessionID       string `json:"session_id"`
			TimeoutSecs     int    `json:"timeout_secs"`
			Contract        string `json:"contract"`
			ValidatePatch   bool   `json:"validate_patch"`
		} `json:"tasks"`
	}
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("parsing arguments: %v", err)), nil
	}

	tasks := make([]orchestrate.BatchTask, 0, len(args.Tasks))
	for _, t := range args.Tasks {
		tasks = append(tasks, orchestrate.BatchTask{
			Name:                t.Name,
			Role:                t.Role,
			Prompt:              t.Prompt,
			ForceNewSession:     t.ForceNewSession,
			SessionID:           t.SessionID,
			TimeoutSecsOverride: t.TimeoutSecs,
			Contract:            t.Contract,
			ValidatePatch:       t.ValidatePatch,
		})
	}

	resp := s.engine.Batch(ctx, orchestrate.BatchRequest{
		WorkDir:        args.CD,
		Client:         s.clientOrEnv(args.Client),
		ConversationID: s.conversationIDOrEnv(args.ConversationID),
		Tasks:          tasks,
		OnEvent: func(event string) {
			s.log.Infow("batch progress", "event", event)
		},
	})
	return mcp.NewToolResultStructuredOnly(resp), nil
}

func (s *Server) handleRoundtable(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		CD             string `json:"cd"`
		Client         string `json:"client"`
		ConversationID string `json:"conversation_id"`
		Topic          string `json:"topic"`
		Rounds         int    `json:"rounds"`
		Participants   []struct {
			Name  string `json:"name"`
			Role  string `json:"role"`
			Model string `json:"model"`
		} `json:"participants"`
		Round1ForceNew           bool   `json:"round1_force_new"`
		RoundContextLevel        string `json:"round_context_level"`
		RoundStageTimeoutSecs    int    `json:"round_stage_timeout_secs"`
		RoundStageMinSuccesses   int    `json:"round_stage_min_successes"`
		Round2OnlyStage1Success  bool   `json:"round2_only_stage1_success"`
		RoundAnonymousViewpoints bool   `json:"round_anonymous_viewpoints"`
		PersistRoundArtifacts    bool   `json:"persist_round_artifacts"`
	}
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("parsing arguments: %v", err)), nil
	}

	participants := make([]orchestrate.Participant, 0, len(args.Participants))
	for _, p := range args.Participants {
		participants = append(participants, orchestrate.Participant{Name: p.Name, Role: p.Role, Model: p.Model})
	}

	resp := s.engine.Roundtable(ctx, orchestrate.RoundtableRequest{
		WorkDir:                 args.CD,
		Client:                  s.clientOrEnv(args.Client),
		ConversationID:          s.conversationIDOrEnv(args.ConversationID),
		Topic:                   args.Topic,
		Participants:            participants,
		Rounds:                  args.Rounds,
		Round1ForceNew:          args.Round1ForceNew,
		ContextLevel:            args.RoundContextLevel,
		StageTimeoutSecs:        args.RoundStageTimeoutSecs,
		StageMinSuccesses:       args.RoundStageMinSuccesses,
		Round2OnlyStage1Success: args.Round2OnlyStage1Success,
		Anonymous:               args.RoundAnonymousViewpoints,
		PersistArtifacts:        args.PersistRoundArtifacts,
		ArtifactsDir:            filepath.Join(args.CD, ".three", "roundtables"),
	})
	return mcp.NewToolResultStructuredOnly(resp), nil
}
