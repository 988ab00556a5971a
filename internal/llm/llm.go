package llm

import (
	"errors"

	"github.com/sashabaranov/go-openai"
)

var (
	// ErrMissingEndpoint is returned when no Azure endpoint is configured.
	ErrMissingEndpoint = errors.New("azure endpoint is required")
	// ErrMissingAPIKey is returned when no API key is configured.
	ErrMissingAPIKey = errors.New("azure api key is required")
)

// AzureClientParams are the arguments the adapter hands to the remote client
// constructor. Nil pointers and a nil map mean the value was not provided.
type AzureClientParams struct {
	APIKey          string
	HTTPClient      openai.HTTPDoer
	AzureDeployment *string
	AzureEndpoint   *string
	APIVersion      *string
	DefaultHeaders  map[string]string
}

// NewAzureClient creates a go-openai client speaking the Azure dialect.
func NewAzureClient(p AzureClientParams) (Client, error) {
	if p.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if p.AzureEndpoint == nil || *p.AzureEndpoint == "" {
		return nil, ErrMissingEndpoint
	}

	cfg := openai.DefaultAzureConfig(p.APIKey, *p.AzureEndpoint)
	if p.APIVersion != nil {
		cfg.APIVersion = *p.APIVersion
	}
	if p.AzureDeployment != nil {
		deployment := *p.AzureDeployment
		cfg.AzureModelMapperFunc = func(string) string { return deployment }
	}
	if p.HTTPClient != nil {
		cfg.HTTPClient = p.HTTPClient
	}
	if len(p.DefaultHeaders) > 0 {
		cfg.HTTPClient = headerDoer{next: cfg.HTTPClient, headers: p.DefaultHeaders}
	}

	return openai.NewClientWithConfig(cfg), nil
}
