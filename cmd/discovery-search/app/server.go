// Package app provides the discovery search server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/kart-io/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kart-io/discovery-search/cmd/discovery-search/app/options"
	discoverysvc "github.com/kart-io/discovery-search/internal/discovery"
	"github.com/kart-io/discovery-search/pkg/infra/app"
	infralogger "github.com/kart-io/discovery-search/pkg/infra/logger"
	"github.com/kart-io/discovery-search/pkg/utils/json"
)

// commandDesc is the description of the command.
const commandDesc = `Discovery Search Service

Projects startups, investors, people and events from the relational store
into a full-text search index and serves grouped, highlighted search results.

This server provides:
  - Blue/green reindexing behind an atomically swapped alias
  - Grouped search with highlighting and facet filters
  - Entity detail lookup with typed connections`

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	reloader := infralogger.NewReloadableLogger(opts.LogOptions, "log")

	application := app.NewApp(
		app.WithName(discoverysvc.Name),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
		app.WithCommands(newReindexCommand(opts)),
		app.WithConfigWatch(func(e fsnotify.Event) {
			if err := reloader.Reload(viper.GetViper()); err != nil {
				logger.Warnw("Failed to reload logger configuration", "file", e.Name, "error", err.Error())
			}
		}),
	)

	return application
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := setupSignalContext()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		return server.Run(ctx)
	}
}

// newReindexCommand runs a single reindex against the configured backends
// and prints the result.
func newReindexCommand(opts *options.ServerOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search index once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.Config()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			result, err := cfg.RunReindex(setupSignalContext())
			if err != nil {
				return fmt.Errorf("reindex failed: %w", err)
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

// setupSignalContext returns a context that is cancelled on SIGINT or SIGTERM.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
