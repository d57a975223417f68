// Command locforged runs the locforge sync server: the cloud API,
// conflict and history endpoints, and the GitHub webhook receiver.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/locforge/locforge/internal/config"
	"github.com/locforge/locforge/internal/github"
	"github.com/locforge/locforge/internal/logging"
	"github.com/locforge/locforge/internal/server"
	"github.com/locforge/locforge/internal/store"
	"github.com/locforge/locforge/internal/util"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.SetDefault(logging.New(logging.Options{
		Level: logging.LevelInfo,
		JSON:  true,
	}))

	dbPath := cfg.Server.DatabasePath
	if dbPath == "" {
		dbPath = filepath.Join(util.LocforgeDataPath(), "locforge.db")
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	var contents server.ContentsFetcher
	if cfg.GitHub.Token != "" {
		contents = github.NewContentsClient(cfg.GitHub.Token)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(st, cfg, contents).ListenAndServe(ctx)
}
