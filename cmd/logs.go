package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jcdickinson/doxnav/internal/config"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View the daemon log file",
	Long: `Prints the tail of the daemon log. Lines are slog text records, so
--level keeps only records at or above the given level. Lines written
before logging was configured (panics, early startup errors) carry no
level and are always shown.`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

var (
	logsFollow bool
	logsLines  int
	logsPath   bool
	logsLevel  string
)

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "keep printing records as they are appended")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 50, "number of trailing records to show")
	logsCmd.Flags().BoolVar(&logsPath, "path", false, "print the log file path and exit")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "minimum level to show (debug, info, warn, error)")
}

func runLogs(cmd *cobra.Command, args []string) error {
	logPath := config.LogPath()
	if logsPath {
		fmt.Println(logPath)
		return nil
	}

	var min slog.Level
	if logsLevel != "" {
		if err := min.UnmarshalText([]byte(logsLevel)); err != nil {
			return fmt.Errorf("--level: %w", err)
		}
	}
	keep := func(line string) bool {
		if logsLevel == "" {
			return true
		}
		lvl, ok := recordLevel(line)
		return !ok || lvl >= min
	}

	f, err := os.Open(logPath)
	if errors.Is(err, os.ErrNotExist) {
		fmt.Println("no log file found (daemon may not have run yet)")
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	for _, line := range tailLines(f, logsLines, keep) {
		fmt.Println(line)
	}
	if !logsFollow {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return followLog(ctx, f, os.Stdout, keep)
}

// tailLines returns the last n lines of r accepted by keep.
func tailLines(r io.Reader, n int, keep func(string) bool) []string {
	if n <= 0 {
		return nil
	}
	ring := make([]string, 0, n)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if !keep(line) {
			continue
		}
		if len(ring) == n {
			copy(ring, ring[1:])
			ring = ring[:n-1]
		}
		ring = append(ring, line)
	}
	return ring
}

// followLog copies lines appended to f after the current offset until ctx
// is cancelled. A partial trailing line is held until its newline arrives.
func followLog(ctx context.Context, f *os.File, w io.Writer, keep func(string) bool) error {
	rd := bufio.NewReader(f)
	var partial strings.Builder
	tick := time.NewTicker(250 * time.Millisecond)
	defer tick.Stop()
	for {
		chunk, err := rd.ReadString('\n')
		partial.WriteString(chunk)
		if err == nil {
			line := strings.TrimSuffix(partial.String(), "\n")
			partial.Reset()
			if keep(line) {
				fmt.Fprintln(w, line)
			}
			continue
		}
		if err != io.EOF {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}
	}
}

// recordLevel extracts the level attribute from a slog text record.
func recordLevel(line string) (slog.Level, bool) {
	for _, field := range strings.Fields(line) {
		v, ok := strings.CutPrefix(field, "level=")
		if !ok {
			continue
		}
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(v)); err != nil {
			return 0, false
		}
		return lvl, true
	}
	return 0, false
}
