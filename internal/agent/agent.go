package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/qmuntal/stateless"
	"github.com/sashabaranov/go-openai"

	"github.com/comigor/mem0-azure-go/internal/config"
	"github.com/comigor/mem0-azure-go/internal/history"
	"github.com/comigor/mem0-azure-go/internal/llm"
	"github.com/comigor/mem0-azure-go/internal/logger"
)

// FSM states
type fsmState string

const (
	StateReadyToCallLLM fsmState = "ReadyToCallLLM"
	StateExecutingTools fsmState = "ExecutingTools"
	StateDone           fsmState = "Done"  // terminal
	StateError          fsmState = "Error" // terminal
)

// FSM triggers
type fsmTrigger string

const (
	TriggerProcessInput            fsmTrigger = "ProcessInput"
	TriggerLLMRespondedWithContent fsmTrigger = "LLMRespondedWithContent"
	TriggerLLMRequestedTools       fsmTrigger = "LLMRequestedTools"
	TriggerToolsExecutionCompleted fsmTrigger = "ToolsExecutionCompleted"
	TriggerErrorOccurred           fsmTrigger = "ErrorOccurred"
)

const (
	defaultSystemPrompt = "You are a helpful AI assistant. Please respond to the user's request accurately and concisely."
	defaultMaxTurns     = 5
)

// ErrMaxTurns is returned when the model keeps requesting tools past the turn limit.
var ErrMaxTurns = errors.New("exceeded maximum interaction turns")

var emptySchema = json.RawMessage(`{"type": "object", "properties": {}}`)

// Generator is the completion capability the agent drives. *llm.AzureOpenAI
// satisfies it.
type Generator interface {
	GenerateWithTools(ctx context.Context, messages []openai.ChatCompletionMessage, req llm.ToolRequest) (*llm.ToolResponse, error)
}

// HistoryStore persists conversation turns per session.
type HistoryStore interface {
	Save(ctx context.Context, msg history.Message) error
	List(ctx context.Context, sessionID string) ([]history.Message, error)
}

// MCPClientInterface defines the methods our agent expects from an MCP client.
type MCPClientInterface interface {
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	ListPrompts(ctx context.Context, req mcp.ListPromptsRequest) (*mcp.ListPromptsResult, error)
	GetPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Agent answers user requests, letting the model call tools exposed by MCP
// servers between completions.
type Agent struct {
	gen          Generator
	store        HistoryStore
	systemPrompt string
	maxTurns     int
	log          *slog.Logger

	mcpClients []MCPClientInterface
	tools      []openai.Tool
	prompts    []string // first argument-less prompt of each server
	toolOwner  map[string]MCPClientInterface
}

// New creates an agent and connects to the configured MCP servers. Servers
// that fail to connect are logged and skipped.
func New(ctx context.Context, gen Generator, store HistoryStore, cfg config.Config) *Agent {
	a := &Agent{
		gen:          gen,
		store:        store,
		systemPrompt: defaultSystemPrompt,
		maxTurns:     defaultMaxTurns,
		log:          logger.Component("agent"),
		toolOwner:    make(map[string]MCPClientInterface),
	}
	if cfg.LLM.SystemPrompt != "" {
		a.systemPrompt = cfg.LLM.SystemPrompt
	}

	for _, serverCfg := range cfg.MCPServers {
		c, err := connect(ctx, serverCfg)
		if err != nil {
			a.log.Error("failed to connect MCP server", "name", serverCfg.Name, "type", serverCfg.Type, "error", err)
			continue
		}
		a.AddMCPClient(ctx, serverCfg.Name, c, true)
	}

	if len(a.mcpClients) == 0 && len(cfg.MCPServers) > 0 {
		a.log.Warn("no MCP clients were initialized despite servers configured", "length", len(cfg.MCPServers))
	}
	return a
}

// connect creates, starts and initializes one MCP client.
func connect(ctx context.Context, serverCfg config.MCPServerConfig) (*client.Client, error) {
	var (
		c   *client.Client
		err error
	)
	switch serverCfg.Type {
	case config.ClientTypeSSE:
		var opts []transport.ClientOption
		if len(serverCfg.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(serverCfg.Headers))
		}
		c, err = client.NewSSEMCPClient(serverCfg.URL, opts...)
	case config.ClientTypeStreamableHTTP:
		var opts []transport.StreamableHTTPCOption
		if len(serverCfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(serverCfg.Headers))
		}
		c, err = client.NewStreamableHttpClient(serverCfg.URL, opts...)
	case config.ClientTypeStdio:
		env := make([]string, 0, len(serverCfg.Env))
		for k, v := range serverCfg.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		c, err = client.NewStdioMCPClient(serverCfg.Command, env, serverCfg.Args...)
	case "":
		return nil, errors.New("MCP server type not specified; use sse, streamable_http or stdio")
	default:
		return nil, fmt.Errorf("unsupported MCP server type %q", serverCfg.Type)
	}
	if err != nil {
		return nil, err
	}

	// stdio clients start their transport on creation
	if serverCfg.Type != config.ClientTypeStdio {
		if err := c.Start(ctx); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("start transport: %w", err)
		}
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "mem0-azure", Version: "1.0.0"}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("initialize: %w", err)
	}
	return c, nil
}

// AddMCPClient registers an initialized MCP client and its tools. When
// discoverPrompt is set, the first argument-less prompt's assistant text is
// appended to the system prompt.
func (a *Agent) AddMCPClient(ctx context.Context, name string, c MCPClientInterface, discoverPrompt bool) {
	a.mcpClients = append(a.mcpClients, c)

	if discoverPrompt {
		if p := a.discoverPrompt(ctx, name, c); p != "" {
			a.prompts = append(a.prompts, p)
			a.log.Info("discovered system prompt from MCP server", "name", name)
		}
	}

	serverTools, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil || serverTools == nil {
		a.log.Warn("failed to list tools for MCP client", "name", name, "error", err)
		return
	}
	for _, t := range serverTools.Tools {
		if _, exists := a.toolOwner[t.Name]; exists {
			a.log.Warn("tool already registered from another server; skipping", "tool", t.Name, "name", name)
			continue
		}
		a.toolOwner[t.Name] = c
		a.tools = append(a.tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toolSchema(t),
			},
		})
		a.log.Info("registered tool from MCP server", "tool", t.Name, "name", name)
	}
}

func (a *Agent) discoverPrompt(ctx context.Context, name string, c MCPClientInterface) string {
	prompts, err := c.ListPrompts(ctx, mcp.ListPromptsRequest{})
	if err != nil || prompts == nil {
		a.log.Debug("MCP server exposes no prompts", "name", name, "error", err)
		return ""
	}
	i := slices.IndexFunc(prompts.Prompts, func(p mcp.Prompt) bool { return len(p.Arguments) == 0 })
	if i == -1 {
		return ""
	}

	req := mcp.GetPromptRequest{}
	req.Params.Name = prompts.Prompts[i].Name
	prompt, err := c.GetPrompt(ctx, req)
	if err != nil || prompt == nil {
		a.log.Warn("failed to get prompt", "name", name, "error", err)
		return ""
	}
	for _, m := range prompt.Messages {
		if m.Role != mcp.RoleAssistant {
			continue
		}
		if text, ok := m.Content.(mcp.TextContent); ok {
			return text.Text
		}
	}
	return ""
}

func toolSchema(t mcp.Tool) json.RawMessage {
	if len(t.RawInputSchema) > 0 && string(t.RawInputSchema) != "null" {
		return t.RawInputSchema
	}
	b, err := json.Marshal(t.InputSchema)
	if err != nil || string(b) == "{}" || string(b) == "null" {
		return emptySchema
	}
	return b
}

// Tools returns the tool definitions offered to the model.
func (a *Agent) Tools() []openai.Tool {
	return a.tools
}

// SystemPrompt returns the base prompt followed by prompts discovered from MCP servers.
func (a *Agent) SystemPrompt() string {
	var b strings.Builder
	b.WriteString(a.systemPrompt)
	for _, p := range a.prompts {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(p)
	}
	return b.String()
}

// Close shuts down every MCP client.
func (a *Agent) Close() error {
	var errs []error
	for _, c := range a.mcpClients {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Process answers request within sessionID, replaying the session history
// first. The exchange is saved to history once a final answer is produced.
func (a *Agent) Process(ctx context.Context, sessionID, request string) (string, error) {
	messages, err := a.initialMessages(ctx, sessionID, request)
	if err != nil {
		return "", err
	}

	run := &turnState{messages: messages}
	fsm := a.buildFSM(run)

	if err := fsm.FireCtx(ctx, TriggerProcessInput); err != nil && run.lastError == nil {
		run.lastError = fmt.Errorf("FSM error: %w", err)
	}

	state, err := fsm.State(ctx)
	if err != nil {
		return "", fmt.Errorf("FSM internal error: %w", err)
	}
	switch {
	case state == StateDone && run.lastError == nil:
	case run.lastError != nil:
		return "", run.lastError
	default:
		return "", fmt.Errorf("FSM ended in an unexpected state: %v", state)
	}

	a.remember(ctx, sessionID, openai.ChatMessageRoleUser, request)
	a.remember(ctx, sessionID, openai.ChatMessageRoleAssistant, run.finalContent)
	return run.finalContent, nil
}

func (a *Agent) initialMessages(ctx context.Context, sessionID, request string) ([]openai.ChatCompletionMessage, error) {
	var messages []openai.ChatCompletionMessage
	if prompt := a.SystemPrompt(); prompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: prompt})
	}
	if a.store != nil && sessionID != "" {
		past, err := a.store.List(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}
		for _, m := range past {
			messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
		}
	}
	return append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: request}), nil
}

func (a *Agent) remember(ctx context.Context, sessionID, role, content string) {
	if a.store == nil || sessionID == "" {
		return
	}
	if err := a.store.Save(ctx, history.Message{SessionID: sessionID, Role: role, Content: content}); err != nil {
		a.log.Warn("failed to save message", "session", sessionID, "role", role, "error", err)
	}
}

type turnState struct {
	messages     []openai.ChatCompletionMessage
	resp         *llm.ToolResponse
	finalContent string
	lastError    error
	turn         int
}

// buildFSM wires the conversation loop:
//
//	ReadyToCallLLM -> ExecutingTools -> ReadyToCallLLM ... -> Done | Error
func (a *Agent) buildFSM(run *turnState) *stateless.StateMachine {
	fsm := stateless.NewStateMachine(StateReadyToCallLLM)

	fail := func(ctx context.Context, err error) error {
		run.lastError = err
		return fsm.FireCtx(ctx, TriggerErrorOccurred)
	}

	fsm.Configure(StateReadyToCallLLM).
		PermitReentry(TriggerProcessInput).
		OnEntry(func(ctx context.Context, _ ...any) error {
			if run.turn >= a.maxTurns {
				a.log.Warn("max interaction turns reached", "maxTurns", a.maxTurns)
				return fail(ctx, ErrMaxTurns)
			}
			run.turn++
			a.log.Debug("FSM: entering ReadyToCallLLM", "turn", run.turn)

			resp, err := a.gen.GenerateWithTools(ctx, run.messages, llm.ToolRequest{Tools: a.tools})
			if err != nil {
				a.log.Error("LLM call failed", "error", err)
				return fail(ctx, err)
			}
			run.resp = resp
			if len(resp.ToolCalls) > 0 {
				return fsm.FireCtx(ctx, TriggerLLMRequestedTools)
			}
			return fsm.FireCtx(ctx, TriggerLLMRespondedWithContent)
		}).
		Permit(TriggerLLMRequestedTools, StateExecutingTools).
		Permit(TriggerLLMRespondedWithContent, StateDone).
		Permit(TriggerErrorOccurred, StateError)

	fsm.Configure(StateExecutingTools).
		OnEntry(func(ctx context.Context, _ ...any) error {
			a.log.Debug("FSM: entering ExecutingTools", "calls", len(run.resp.ToolCalls))
			run.messages = append(run.messages, run.resp.Message)
			for _, call := range run.resp.ToolCalls {
				run.messages = append(run.messages, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    a.executeTool(ctx, call),
					ToolCallID: call.ID,
					Name:       call.Name,
				})
			}
			return fsm.FireCtx(ctx, TriggerToolsExecutionCompleted)
		}).
		Permit(TriggerToolsExecutionCompleted, StateReadyToCallLLM).
		Permit(TriggerErrorOccurred, StateError)

	fsm.Configure(StateDone).
		OnEntry(func(context.Context, ...any) error {
			run.finalContent = run.resp.Content
			return nil
		})

	fsm.Configure(StateError).
		OnEntry(func(context.Context, ...any) error {
			if run.lastError == nil {
				run.lastError = errors.New("FSM: reached error state without a specific error")
			}
			return nil
		})

	return fsm
}

// executeTool runs one tool call and renders its result as text for the model.
func (a *Agent) executeTool(ctx context.Context, call llm.ToolCall) string {
	if call.Err != nil {
		a.log.Error("failed to parse tool arguments", "function", call.Name, "error", call.Err)
		return "Error: Could not parse arguments for tool " + call.Name
	}
	c, ok := a.toolOwner[call.Name]
	if !ok {
		a.log.Warn("LLM requested unknown tool", "tool", call.Name)
		return "Error: No MCP client available to execute tool " + call.Name
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = call.Name
	req.Params.Arguments = call.Arguments

	a.log.Debug("calling MCP tool", "tool", call.Name, "arguments", call.Arguments)
	res, err := c.CallTool(ctx, req)
	if err != nil {
		a.log.Warn("MCP CallTool failed", "tool", call.Name, "error", err)
		return "Error: tool " + call.Name + " failed: " + err.Error()
	}
	if res == nil {
		return "Error: tool " + call.Name + " returned no result"
	}

	for _, item := range res.Content {
		if text, ok := item.(mcp.TextContent); ok {
			return text.Text
		}
	}
	if res.IsError {
		return "Tool execution resulted in an error without specific text."
	}
	b, err := json.Marshal(res)
	if err != nil {
		return "Tool executed successfully, but result could not be formatted."
	}
	return string(b)
}
