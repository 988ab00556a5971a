package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/comigor/mem0-azure-go/internal/llm"
	"github.com/comigor/mem0-azure-go/internal/version"
)

type recordingClient struct {
	req openai.ChatCompletionRequest
}

func (c *recordingClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.req = req
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "pong"}}}}, nil
}

func execute(t *testing.T, opts *Options, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(opts)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, &Options{}, "", "version", "--config", "/does/not/exist.yaml")
	require.NoError(t, err)
	require.Equal(t, version.Version+"\n", out)
}

func TestGenerate(t *testing.T) {
	client := &recordingClient{}
	var params llm.AzureClientParams
	opts := &Options{llmOptions: []llm.Option{
		llm.WithClientFactory(func(p llm.AzureClientParams) (llm.Client, error) {
			params = p
			return client, nil
		}),
	}}
	cfgPath := writeFile(t, "config.yaml", "llm:\n  model: gpt-4o\n  temperature: 0.7\n  max_tokens: 100\n  top_p: 1.0\n")
	envPath := writeFile(t, ".env", "LLM_AZURE_OPENAI_API_KEY=from-dotenv\n")
	t.Setenv("LLM_AZURE_OPENAI_API_KEY", "")
	os.Unsetenv("LLM_AZURE_OPENAI_API_KEY")

	out, err := execute(t, opts, "", "generate", "--config", cfgPath, "--env-file", envPath, "-s", "be terse", "ping", "now")
	require.NoError(t, err)
	require.Equal(t, "pong\n", out)

	require.Equal(t, "from-dotenv", params.APIKey)
	require.Equal(t, "gpt-4o", client.req.Model)
	require.Equal(t, float32(0.7), client.req.Temperature)
	require.Equal(t, 100, client.req.MaxTokens)
	require.Equal(t, []openai.ChatCompletionMessage{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "ping now"},
	}, client.req.Messages)
}

func TestGenerate_InvalidConfig(t *testing.T) {
	cfgPath := writeFile(t, "config.yaml", "llm:\n  max_tokens: -5\n")
	_, err := execute(t, &Options{}, "", "generate", "--config", cfgPath, "--env-file", "", "hi")
	require.Error(t, err)
}

func TestReadInput(t *testing.T) {
	input, err := readInput([]string{"hello", "world"}, "", strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, "hello world", input)

	path := writeFile(t, "input.txt", "file input\n")
	input, err = readInput(nil, path, strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, "file input", input)

	input, err = readInput(nil, "-", strings.NewReader("stdin input\n"))
	require.NoError(t, err)
	require.Equal(t, "stdin input", input)

	_, err = readInput(nil, "", strings.NewReader(""))
	require.Error(t, err)

	_, err = readInput([]string{"hello"}, "input.txt", strings.NewReader(""))
	require.Error(t, err)
}
