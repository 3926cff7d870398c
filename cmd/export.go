package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/jcdickinson/doxnav/internal/doxygen"
	md "github.com/jcdickinson/doxnav/internal/markdown"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <location> <out-dir>",
	Short: "Write the tree and every page outline as markdown or HTML files",
	Example: `  doxnav export ./build/docs/html ./outlines
  doxnav export --name dynamorio --format html https://dynamorio.org/ ./site`,
	Args: cobra.ExactArgs(2),
	Run:  runExport,
}

var (
	exportName   string
	exportFormat string
)

func init() {
	exportCmd.Flags().StringVar(&exportName, "name", "docs", "docset name used in doxnav:// links")
	exportCmd.Flags().StringVar(&exportFormat, "format", "md", "output format: md or html")
}

func runExport(cmd *cobra.Command, args []string) {
	if exportFormat != "md" && exportFormat != "html" {
		log.Fatalf("unknown format %q", exportFormat)
	}
	if err := doxygen.ValidName(exportName); err != nil {
		log.Fatal(err)
	}

	d, _, err := loadLocal(args[0], exportName)
	if err != nil {
		log.Fatalf("load failed: %v", err)
	}
	n, err := exportDocSet(d, args[1], exportFormat)
	if err != nil {
		log.Fatalf("export failed: %v", err)
	}
	fmt.Printf("wrote %d files to %s\n", n, args[1])
}

// exportDocSet writes index.<ext> with the whole tree plus one file per
// page outline, and returns the number of files written.
func exportDocSet(d *doxygen.DocSet, dir, format string) (int, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, err
	}

	write := func(name, text string) error {
		if format == "html" {
			html, err := md.ToHTML(text)
			if err != nil {
				return err
			}
			text = html
		}
		return os.WriteFile(filepath.Join(dir, name+"."+format), []byte(text), 0644)
	}

	if err := write("index", md.RenderTree(d.Name, doxygen.TopLevel(d.Root), 0)); err != nil {
		return 0, err
	}
	written := 1

	ids := make([]string, 0, len(d.Outlines))
	for id := range d.Outlines {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		var crumbs []string
		if loc, ok := d.Locate(id + ".html"); ok {
			crumbs = loc.Breadcrumb
		}
		text, err := md.RenderOutline(d.Name, d.Outlines[id], crumbs)
		if err != nil {
			return written, fmt.Errorf("rendering %s: %w", id, err)
		}
		if err := write(id, text); err != nil {
			return written, fmt.Errorf("writing %s: %w", id, err)
		}
		written++
	}
	return written, nil
}
