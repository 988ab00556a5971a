package llm

import (
	"context"

	"github.com/sashabaranov/go-openai"
)

// Client is minimal subset of openai.Client used by the adapter; it is easy to mock in tests.
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// TransportFactory builds the HTTP client that carries completion requests
// through the given proxy.
type TransportFactory func(proxies string) (openai.HTTPDoer, error)

// ClientFactory builds the remote completion client.
type ClientFactory func(params AzureClientParams) (Client, error)
