package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"lana/internal/logger"
	"lana/internal/sweeper"
)

// Exit codes: 0 all rules handled, 1 the sweep could not run, 2 the sweep
// ran but some rules failed.
func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()
	log := logger.Get()

	cfg, err := sweeper.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	client := sweeper.NewClient(cfg.APIURL, cfg.PipelineAPIKey, &http.Client{Timeout: cfg.RequestTimeout})

	result, err := client.SweepRecurring(context.Background())
	if err != nil {
		log.Errorw("recurring sweep failed", "error", err)
		logger.Sync()
		os.Exit(1)
	}

	log.Infow("recurring sweep completed",
		"processed", result.Processed,
		"skipped", result.Skipped,
		"errors", result.Errors,
	)

	if result.Errors > 0 {
		logger.Sync()
		os.Exit(2)
	}
}
