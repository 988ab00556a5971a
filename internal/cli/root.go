package cli

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/comigor/mem0-azure-go/internal/config"
	"github.com/comigor/mem0-azure-go/internal/llm"
	"github.com/comigor/mem0-azure-go/internal/logger"
)

type Options struct {
	Config   string
	EnvFile  string
	LogLevel string

	cfg        *config.Config
	llmOptions []llm.Option
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(&Options{})
}

func newRootCmd(opts *Options) *cobra.Command {
	root := &cobra.Command{
		Use:           "mem0-azure",
		Short:         "mem0-azure - chat completions through Azure OpenAI",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	root.PersistentFlags().StringVar(&opts.Config, "config", "", "config file (default: $CONFIG_PATH or ./config.yaml)")
	root.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file loaded before the config")
	root.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newGenerateCmd(opts))
	root.AddCommand(newServeCmd(opts))
	return root
}

// load reads the dotenv file, then the configuration, and applies the log level.
func (o *Options) load() error {
	if o.EnvFile != "" {
		if err := godotenv.Load(o.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	var (
		cfg *config.Config
		err error
	)
	if o.Config != "" {
		cfg, err = config.LoadFile(o.Config)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	logger.SetLevel(cfg.LogLevel)
	o.cfg = cfg
	return nil
}

func (o *Options) newAdapter() (*llm.AzureOpenAI, error) {
	return llm.NewAzureOpenAI(o.cfg.LLM, o.llmOptions...)
}
