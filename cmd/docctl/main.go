// Command docctl inspects and seeds the JSON documents of the configured store.
package main

import (
	"context"
	"errors"
	"os"

	"github.com/yuvalaufer/students-calander/internal/config"
	"github.com/yuvalaufer/students-calander/internal/storage"
	"github.com/yuvalaufer/students-calander/pkg/logger"
)

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	ctx := context.Background()
	opened, err := storage.OpenDocumentStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("failed to open document store: %v", err)
	}
	defer func() { _ = opened.Close(ctx) }()

	cli := &commandLine{store: opened.Store, stdin: os.Stdin, stdout: os.Stdout}
	if opened.Archive != nil {
		cli.archive = opened.Archive
	}
	if err := cli.run(ctx, os.Args); err != nil {
		if errors.Is(err, errHelp) {
			os.Exit(2)
		}
		logger.Errorf("%v", err)
		logger.Sync()
		os.Exit(1)
	}
}
