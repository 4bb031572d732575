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

	err = a.RunDistribution(ctx)
	a.Close()

	if err != nil {
		logger.Error(ctx, "distribution failed", "error", err)
		os.Exit(1)
	}
}
