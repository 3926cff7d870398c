package cmd

import (
	"context"
	"fmt"
	"log"

	md "github.com/jcdickinson/doxnav/internal/markdown"
	"github.com/jcdickinson/doxnav/internal/rpc"
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <doxnav://docset/page>",
	Short: "Read a page outline by URI",
	Example: `  doxnav get doxnav://dynamorio/page_drmgr
  doxnav get --html doxnav://dynamorio/page_ext#sec_drx`,
	Args: cobra.ExactArgs(1),
	Run:  runGet,
}

var getHTML bool

func init() {
	getCmd.Flags().BoolVar(&getHTML, "html", false, "render as sanitized HTML instead of markdown")
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) {
	docset, _, _, err := md.ParseURI(args[0])
	if err != nil {
		log.Fatalf("invalid URI: %v", err)
	}

	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.GetPage(context.Background(), rpc.GetPageRequest{DocSet: docset, Page: args[0]})
	if err != nil {
		log.Fatalf("get page failed: %v", err)
	}

	if !getHTML {
		fmt.Print(resp.Markdown)
		return
	}
	out, err := md.ToHTML(resp.Markdown)
	if err != nil {
		log.Fatalf("rendering HTML: %v", err)
	}
	fmt.Print(out)
}
