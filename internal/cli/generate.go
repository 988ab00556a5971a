package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/comigor/mem0-azure-go/internal/llm"
)

type generateOptions struct {
	InputFile string
	System    string
}

func newGenerateCmd(root *Options) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate [text...]",
		Short: "Send one user message and print the completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, root, opts, args)
		},
	}
	cmd.Flags().StringVarP(&opts.InputFile, "file", "F", "", "message file, use -F- for stdin")
	cmd.Flags().StringVarP(&opts.System, "system", "s", "", "system message sent before the user message")
	return cmd
}

func runGenerate(cmd *cobra.Command, root *Options, opts *generateOptions, args []string) error {
	input, err := readInput(args, opts.InputFile, cmd.InOrStdin())
	if err != nil {
		return err
	}

	adapter, err := root.newAdapter()
	if err != nil {
		return err
	}

	var messages []llm.Message
	if opts.System != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: opts.System})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: input})

	out, err := adapter.GenerateResponse(cmd.Context(), messages)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func readInput(args []string, file string, stdin io.Reader) (string, error) {
	if len(args) > 0 && file != "" {
		return "", fmt.Errorf("use either arguments or --file, not both")
	}

	var input string
	switch {
	case len(args) > 0:
		input = strings.Join(args, " ")
	case file == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		input = string(b)
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read file: %w", err)
		}
		input = string(b)
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("input is required")
	}
	return input, nil
}
