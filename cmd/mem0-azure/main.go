package main

import (
	"os"

	"github.com/comigor/mem0-azure-go/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
