package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/exposurekeys/internal/app"
	"github.com/dmitrijs2005/exposurekeys/internal/buildinfo"
	"github.com/dmitrijs2005/exposurekeys/internal/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stderr)

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := app.NewLogger(cfg)

	a, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	err = a.RunFederation(ctx)
	a.Close()

	if err != nil {
		logger.Error(ctx, "federation failed", "error", err)
		os.Exit(1)
	}
}
