package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/jcdickinson/doxnav/internal/config"
	"github.com/jcdickinson/doxnav/internal/daemon"
	"github.com/jcdickinson/doxnav/internal/doxygen"
	"github.com/jcdickinson/doxnav/internal/rpc"
	"github.com/jcdickinson/doxnav/internal/search"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add <name>[=<location>] ...",
	Short: "Ingest Doxygen HTML output as a named docset",
	Long: `Fetch and parse the navigation tree, navigation index and search index of
a Doxygen HTML output directory or site. A bare name re-uses a stored docset.`,
	Example: `  doxnav add dynamorio=https://dynamorio.org/
  doxnav add mylib=./build/docs/html
  doxnav add --refresh mylib=./build/docs/html`,
	Args: cobra.MinimumNArgs(1),
	Run:  runAdd,
}

var addRefresh bool

func init() {
	addCmd.Flags().BoolVar(&addRefresh, "refresh", false, "re-ingest docsets that are already stored")
}

func runAdd(cmd *cobra.Command, args []string) {
	var specs []rpc.DocSetSpec
	for _, arg := range args {
		name, location, _ := strings.Cut(arg, "=")
		specs = append(specs, rpc.DocSetSpec{Name: name, Location: location})
	}

	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	results, err := client.AddDocSets(context.Background(), rpc.AddDocSetsRequest{DocSets: specs, Refresh: addRefresh}, func(msg string) {
		fmt.Printf("  %s\n", msg)
	})
	if err != nil {
		log.Fatalf("failed to add docsets: %v", err)
	}

	for _, r := range results {
		if r.Error != "" {
			fmt.Printf("  %s: error: %s\n", r.Name, r.Error)
			continue
		}
		fmt.Printf("  %s: %d nodes, %d search entries, %d outlines\n", r.Name, r.Nodes, r.Entries, r.Outlines)
		for _, w := range r.Warnings {
			fmt.Printf("    warning: %s\n", w)
		}
	}
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search symbols in ingested docsets",
	Long: `Search symbols in ingested docsets. Exact names rank first, then
prefixes, then other substrings; --match keeps only the named kind and
better. With --local the Doxygen output at the given directory or URL is
parsed in-process instead of asking the daemon.`,
	Example: `  doxnav search drmgr_init
  doxnav search --docset dynamorio --section functions register
  doxnav search --limit 5 --match prefix opnd_
  doxnav search --local ./html --match exact drmgr_init`,
	Args: cobra.ExactArgs(1),
	Run:  runSearch,
}

var (
	searchDocSets  []string
	searchSections []string
	searchLimit    int
	searchMatch    string
	searchLocal    string
)

func init() {
	searchCmd.Flags().StringSliceVar(&searchDocSets, "docset", nil, "filter to specific docsets (repeatable)")
	searchCmd.Flags().StringSliceVar(&searchSections, "section", nil, "filter to search sections such as functions (repeatable)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "max results (default from config)")
	searchCmd.Flags().StringVar(&searchMatch, "match", "substring", "match mode: exact, prefix or substring")
	searchCmd.Flags().StringVar(&searchLocal, "local", "", "search the Doxygen output at this directory or URL without the daemon")
}

func runSearch(cmd *cobra.Command, args []string) {
	req := rpc.SearchRequest{
		Query:    args[0],
		DocSets:  searchDocSets,
		Sections: searchSections,
		Limit:    searchLimit,
		Match:    searchMatch,
	}

	var results []rpc.SymbolResult
	if searchLocal != "" {
		name := "local"
		if len(searchDocSets) > 0 {
			name = searchDocSets[0]
		}
		d, cfg, err := loadLocal(searchLocal, name)
		if err != nil {
			log.Fatalf("load failed: %v", err)
		}
		if req.Limit <= 0 {
			req.Limit = cfg.Search.DefaultLimit
		}
		results, err = searchLocalDocSet(d, req)
		if err != nil {
			log.Fatal(err)
		}
	} else {
		client, err := connectDaemon()
		if err != nil {
			log.Fatalf("failed to connect to daemon: %v", err)
		}
		resp, err := client.Search(context.Background(), req)
		if err != nil {
			log.Fatalf("search failed: %v", err)
		}
		results = resp.Results
	}

	if len(results) == 0 {
		fmt.Println("no results")
		return
	}
	for i, r := range results {
		fmt.Printf("%d. [%s] %s (%s) %s\n", i+1, r.Match, r.Name, r.Section, r.URI)
		if r.Snippet != "" {
			fmt.Printf("   %s\n", r.Snippet)
		}
	}
}

// searchLocalDocSet runs a search request against a docset parsed in
// process. The docset filter is ignored; there is only one.
func searchLocalDocSet(d *doxygen.DocSet, req rpc.SearchRequest) ([]rpc.SymbolResult, error) {
	min, err := doxygen.ParseMatchKind(req.Match)
	if err != nil {
		return nil, err
	}
	return search.SearchDocSet(d, req.Query, min, req.Sections, req.Limit), nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ingested docsets and daemon state",
	Run:   runStatus,
}

var statusJSON bool

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
}

func runStatus(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.Status(context.Background())
	if err != nil {
		log.Fatalf("status failed: %v", err)
	}

	if statusJSON {
		out, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(out))
		return
	}

	if len(resp.DocSets) == 0 {
		fmt.Println("no docsets ingested")
		return
	}

	for _, d := range resp.DocSets {
		state := "processing"
		if d.Processed {
			state = "ready"
		}
		if d.Cached {
			state += ", loaded"
		}
		if !d.Snapshot {
			state += ", no snapshot"
		}
		fmt.Printf("  %s [%s] %d nodes, %d symbols, %d outlines, %d warnings\n    %s\n",
			d.Name, state, d.Nodes, d.Occurrences, d.Outlines, d.Warnings, d.BaseURL)
	}
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background daemon",
	Run:   runStop,
}

func runStop(cmd *cobra.Command, args []string) {
	client := daemon.NewClient(config.SocketPath())
	if !client.IsAvailable() {
		fmt.Println("daemon is not running")
		return
	}

	// A connection reset is expected, the daemon exits after responding.
	client.Shutdown(context.Background())
	fmt.Println("daemon stopped")
}
