package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/jcdickinson/doxnav/internal/rpc"
	"github.com/spf13/cobra"
)

var treeCmd = &cobra.Command{
	Use:   "tree <docset> [label ...]",
	Short: "Print the navigation tree, or the subtree under a breadcrumb",
	Example: `  doxnav tree dynamorio
  doxnav tree --depth 0 dynamorio "DynamoRIO" "DynamoRIO Extensions"
  doxnav tree --path 0.1 dynamorio
  doxnav tree --children --depth 1 dynamorio "DynamoRIO"`,
	Args: cobra.MinimumNArgs(1),
	Run:  runTree,
}

var (
	treeDepth    int
	treePath     string
	treeChildren bool
)

func init() {
	treeCmd.Flags().IntVar(&treeDepth, "depth", 2, "levels to show (0 for all)")
	treeCmd.Flags().StringVar(&treePath, "path", "", "navtreeindex path of the subtree, e.g. 0.1.2")
	treeCmd.Flags().BoolVar(&treeChildren, "children", false, "list the subtree's children without the node itself")
}

func parseTreePath(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	var path []int
	for _, p := range strings.Split(s, ".") {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid tree path %q", s)
		}
		path = append(path, n)
	}
	return path, nil
}

func runTree(cmd *cobra.Command, args []string) {
	path, err := parseTreePath(treePath)
	if err != nil {
		log.Fatal(err)
	}

	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.Tree(context.Background(), rpc.TreeRequest{
		DocSet:   args[0],
		Labels:   args[1:],
		Path:     path,
		Depth:    treeDepth,
		Children: treeChildren,
	})
	if err != nil {
		log.Fatalf("tree failed: %v", err)
	}
	fmt.Print(resp.Markdown)
}

var locateCmd = &cobra.Command{
	Use:   "locate <docset> <anchor>",
	Short: "Show where a page or anchor sits in the navigation tree",
	Example: `  doxnav locate dynamorio page_drmgr.html#sec_drmgr_events
  doxnav locate dynamorio doxnav://dynamorio/group__drmgr`,
	Args: cobra.ExactArgs(2),
	Run:  runLocate,
}

var locateJSON bool

func init() {
	locateCmd.Flags().BoolVar(&locateJSON, "json", false, "output as JSON")
}

func runLocate(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.Locate(context.Background(), rpc.LocateRequest{DocSet: args[0], Anchor: args[1]})
	if err != nil {
		log.Fatalf("locate failed: %v", err)
	}

	if locateJSON {
		out, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(out))
		return
	}
	if !resp.Found {
		fmt.Printf("%s is not in the navigation tree (partition %d)\n", args[1], resp.Partition)
		return
	}
	fmt.Println(strings.Join(resp.Breadcrumb, " > "))
	fmt.Printf("  %s\n  path %v, partition %d\n", resp.URI, resp.Path, resp.Partition)
}
