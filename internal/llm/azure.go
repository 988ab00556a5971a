package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"os"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/mem0-azure-go/internal/config"
	"github.com/comigor/mem0-azure-go/internal/logger"
)

// ErrNoChoices is returned when the completion response carries no choices.
var ErrNoChoices = errors.New("completion response has no choices")

// Environment fallbacks for values missing from the Azure config.
const (
	EnvAPIKey     = "LLM_AZURE_OPENAI_API_KEY"
	EnvDeployment = "LLM_AZURE_DEPLOYMENT"
	EnvEndpoint   = "LLM_AZURE_ENDPOINT"
	EnvAPIVersion = "LLM_AZURE_API_VERSION"
)

// AzureOpenAI forwards chat messages to an Azure OpenAI deployment. The
// remote client is built once in NewAzureOpenAI and shared by every call.
type AzureOpenAI struct {
	cfg    config.LLMConfig
	client Client
	log    *slog.Logger
}

type options struct {
	newTransport TransportFactory
	newClient    ClientFactory
	log          *slog.Logger
}

// Option customises NewAzureOpenAI.
type Option func(*options)

// WithTransportFactory replaces the proxy-aware HTTP client constructor.
func WithTransportFactory(f TransportFactory) Option {
	return func(o *options) { o.newTransport = f }
}

// WithClientFactory replaces the remote completion client constructor.
func WithClientFactory(f ClientFactory) Option {
	return func(o *options) { o.newClient = f }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// NewAzureOpenAI builds the adapter and its remote client.
func NewAzureOpenAI(cfg config.LLMConfig, opts ...Option) (*AzureOpenAI, error) {
	o := options{
		newTransport: defaultTransport,
		newClient:    NewAzureClient,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Component("llm")
	}

	if cfg.Model == "" {
		cfg.Model = config.DefaultModel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Azure != nil {
		azure := *cfg.Azure
		azure.DefaultHeaders = maps.Clone(cfg.Azure.DefaultHeaders)
		cfg.Azure = &azure
	}

	params := clientParams(cfg)
	if cfg.HTTPClientProxies != "" {
		transport, err := o.newTransport(cfg.HTTPClientProxies)
		if err != nil {
			return nil, err
		}
		params.HTTPClient = transport
	}

	client, err := o.newClient(params)
	if err != nil {
		return nil, err
	}

	return &AzureOpenAI{cfg: cfg, client: client, log: o.log}, nil
}

// clientParams resolves the Azure overrides, falling back to the environment.
func clientParams(cfg config.LLMConfig) AzureClientParams {
	var azure config.AzureConfig
	if cfg.Azure != nil {
		azure = *cfg.Azure
	}

	apiKey := firstNonEmpty(azure.APIKey, os.Getenv(EnvAPIKey), cfg.APIKey)

	return AzureClientParams{
		APIKey:          apiKey,
		AzureDeployment: optional(azure.AzureDeployment, EnvDeployment),
		AzureEndpoint:   optional(azure.AzureEndpoint, EnvEndpoint),
		APIVersion:      optional(azure.APIVersion, EnvAPIVersion),
		DefaultHeaders:  azure.DefaultHeaders,
	}
}

func optional(v, env string) *string {
	if v == "" {
		v = os.Getenv(env)
	}
	if v == "" {
		return nil
	}
	return &v
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Config returns a copy of the adapter configuration.
func (a *AzureOpenAI) Config() config.LLMConfig {
	return a.cfg
}

func (a *AzureOpenAI) request(messages []openai.ChatCompletionMessage) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       a.cfg.Model,
		Messages:    messages,
		Temperature: nonZero(a.cfg.Temperature),
		MaxTokens:   a.cfg.MaxTokens,
		TopP:        nonZero(a.cfg.TopP),
	}
}

// nonZero keeps a configured 0 on the wire. go-openai drops zero sampling
// fields (omitempty), and Azure would then apply its own default of 1.
func nonZero(v float32) float32 {
	if v == 0 {
		return math.SmallestNonzeroFloat32
	}
	return v
}

// GenerateResponse sends messages in a single completion call and returns the
// text of the first choice. Errors from the remote client are returned as is.
func (a *AzureOpenAI) GenerateResponse(ctx context.Context, messages []Message) (string, error) {
	a.log.Debug("chat completion", "model", a.cfg.Model, "messages", len(messages))

	resp, err := a.client.CreateChatCompletion(ctx, a.request(toChatMessages(messages)))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

// ToolRequest carries the optional tool and format settings of a completion.
type ToolRequest struct {
	Tools          []openai.Tool
	ToolChoice     any
	ResponseFormat *openai.ChatCompletionResponseFormat
}

// ToolCall is a function call requested by the model. Err is set when the
// arguments are not valid JSON.
type ToolCall struct {
	ID           string
	Name         string
	Arguments    map[string]any
	RawArguments string
	Err          error
}

// ToolResponse is the first choice of a tool-enabled completion.
type ToolResponse struct {
	Content   string
	ToolCalls []ToolCall
	// Message is the raw assistant message, suitable for appending to the
	// conversation before sending tool results back.
	Message openai.ChatCompletionMessage
}

// GenerateWithTools performs one completion with tools enabled and returns
// the first choice with its tool calls decoded.
func (a *AzureOpenAI) GenerateWithTools(ctx context.Context, messages []openai.ChatCompletionMessage, tr ToolRequest) (*ToolResponse, error) {
	req := a.request(messages)
	if len(tr.Tools) > 0 {
		req.Tools = tr.Tools
		req.ToolChoice = tr.ToolChoice
	}
	req.ResponseFormat = tr.ResponseFormat

	a.log.Debug("chat completion with tools", "model", a.cfg.Model, "messages", len(messages), "tools", len(tr.Tools))

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	msg := resp.Choices[0].Message
	out := &ToolResponse{Content: msg.Content, Message: msg}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, decodeToolCall(tc))
	}
	return out, nil
}

func decodeToolCall(tc openai.ToolCall) ToolCall {
	call := ToolCall{ID: tc.ID, Name: tc.Function.Name, RawArguments: tc.Function.Arguments}
	if tc.Function.Arguments == "" {
		call.Arguments = map[string]any{}
		return call
	}
	if err := json.Unmarshal([]byte(tc.Function.Arguments), &call.Arguments); err != nil {
		call.Err = fmt.Errorf("decode arguments for %s: %w", tc.Function.Name, err)
	}
	return call
}
