package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jcdickinson/doxnav/internal/config"
	"github.com/jcdickinson/doxnav/internal/daemon"
	"github.com/jcdickinson/doxnav/internal/rpc"
	"github.com/spf13/cobra"
)

var clearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Drop docsets loaded in the daemon's memory",
	Long: `Drop parsed docsets held in the daemon's memory; they are reloaded from
disk on next use. With --purge the named docsets are deleted entirely;
--purge --all deletes every stored docset.`,
	Example: `  doxnav clear-cache
  doxnav clear-cache --docset mylib --purge
  doxnav clear-cache --purge --all`,
	Run: runClearCache,
}

var (
	clearDocSets []string
	clearPurge   bool
	clearAll     bool
)

func init() {
	clearCacheCmd.Flags().StringSliceVar(&clearDocSets, "docset", nil, "only drop these docsets (repeatable)")
	clearCacheCmd.Flags().BoolVar(&clearPurge, "purge", false, "also delete stored data for the named docsets")
	clearCacheCmd.Flags().BoolVar(&clearAll, "all", false, "with --purge and no --docset, delete every docset")
}

func runClearCache(cmd *cobra.Command, args []string) {
	if clearPurge && len(clearDocSets) == 0 && !clearAll {
		slog.Error("--purge needs at least one --docset, or --all")
		os.Exit(1)
	}

	client := daemon.NewClient(config.SocketPath())
	if !client.IsAvailable() {
		fmt.Println("daemon is not running")
		return
	}

	req := rpc.ClearCacheRequest{DocSets: clearDocSets, Purge: clearPurge}
	if err := client.ClearCache(context.Background(), req); err != nil {
		slog.Error("failed to clear cache", "error", err)
		os.Exit(1)
	}
	if clearPurge {
		fmt.Println("docsets purged")
		return
	}
	fmt.Println("docset cache cleared")
}
