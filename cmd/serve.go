package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jcdickinson/doxnav/internal/config"
	"github.com/jcdickinson/doxnav/internal/daemon"
	"github.com/jcdickinson/doxnav/internal/mcp"
	"github.com/spf13/cobra"
)

var (
	debug    bool
	embedded *daemon.Embedded
)

var rootCmd = &cobra.Command{
	Use:   "doxnav",
	Short: "Doxygen documentation navigator and MCP server",
	Long: `Ingests Doxygen HTML output (navtree, navtreeindex and search index
scripts) and answers tree, anchor and symbol queries. Without a subcommand
it serves the Model Context Protocol over stdio.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug {
			// stdout carries MCP frames when serving, so logs go to stderr.
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
		}
	},
	RunE: runServe,
}

func Execute() {
	err := rootCmd.Execute()
	if embedded != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if cerr := embedded.Close(ctx); cerr != nil {
			slog.Warn("stopping in-process daemon", "error", cerr)
		}
		cancel()
	}
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "serve the daemon from this process and log to stderr")

	rootCmd.AddCommand(
		daemonCmd,
		addCmd,
		searchCmd,
		treeCmd,
		locateCmd,
		validateCmd,
		exportCmd,
		statusCmd,
		stopCmd,
		logsCmd,
		clearCacheCmd,
	)
}

// connectDaemon returns a client for the background daemon, spawning it when
// nothing is listening. With --debug the daemon runs inside this process
// instead and is stopped when the command returns.
func connectDaemon() (*daemon.Client, error) {
	if !debug {
		return daemon.ConnectOrSpawn(config.SocketPath())
	}
	if embedded != nil {
		return embedded.Client, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	e, err := daemon.StartEmbedded(cfg, config.DBPath(), config.SocketPath())
	if err != nil {
		return nil, err
	}
	embedded = e
	return e.Client, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	client, err := connectDaemon()
	if err != nil {
		return fmt.Errorf("connecting to daemon: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Debug("serving MCP over stdio")
	if err := mcp.New(client).Run(ctx); err != nil {
		return fmt.Errorf("serving MCP: %w", err)
	}
	if ctx.Err() != nil {
		slog.Info("interrupted, shutting down")
	}
	return nil
}
