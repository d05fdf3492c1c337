// Command mechaway runs the workflow automation server: it loads
// configuration, wires every subsystem, and serves the HTTP API until it
// receives a shutdown signal.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/insanalamin/mechaway/internal/app"
	"github.com/insanalamin/mechaway/pkg/config"
	"github.com/insanalamin/mechaway/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	log := logger.NewLogger(logger.DefaultConfig())

	a, err := app.New(cfg, log)
	if err != nil {
		log.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	if err := a.Run(context.Background()); err != nil {
		log.Error("application exited with error", "error", err)
		os.Exit(1)
	}
}
