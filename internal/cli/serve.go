package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/comigor/mem0-azure-go/internal/agent"
	"github.com/comigor/mem0-azure-go/internal/history"
	"github.com/comigor/mem0-azure-go/internal/logger"
	"github.com/comigor/mem0-azure-go/internal/server"
)

func newServeCmd(root *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the generate and chat HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, root)
		},
	}
}

func runServe(ctx context.Context, root *Options) error {
	cfg := root.cfg
	log := logger.Component("server")

	adapter, err := root.newAdapter()
	if err != nil {
		return err
	}

	store := history.Open(cfg.History.Path)
	defer store.Close()

	a := agent.New(ctx, adapter, store, *cfg)
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("MCP client close error", "error", err)
		}
	}()

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := server.NewHandler(adapter, server.WithAgent(a), server.WithLogger(log))
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	return server.Run(ctx, addr, server.NewRouter(handler), log)
}
