package markdown

import (
	"fmt"
	"strings"

	"github.com/jcdickinson/doxnav/internal/doxygen"
)

var labelEscaper = strings.NewReplacer(`\`, `\\`, `[`, `\[`, `]`, `\]`, `*`, `\*`, "`", "\\`")

// RenderTree renders nodes as a nested markdown list with links rewritten to
// doxnav:// URIs. depth limits how many levels are shown; 0 shows all.
// Nodes cut off by the limit note how many children they hide.
func RenderTree(docset string, nodes []*doxygen.NavNode, depth int) string {
	var b strings.Builder
	writeNodes(&b, nodes, 0, depth)
	return RewriteDocLinks(b.String(), docset)
}

func writeNodes(b *strings.Builder, nodes []*doxygen.NavNode, level, depth int) {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		b.WriteString(strings.Repeat("  ", level))
		b.WriteString("- ")
		label := labelEscaper.Replace(n.Label)
		if n.URL == "" {
			b.WriteString(label)
		} else {
			fmt.Fprintf(b, "[%s](%s)", label, n.URL)
		}

		expand := depth <= 0 || level+1 < depth
		if !expand && len(n.Children) > 0 {
			fmt.Fprintf(b, " (%d more)", len(n.Children))
		}
		b.WriteByte('\n')
		if expand {
			writeNodes(b, n.Children, level+1, depth)
		}
	}
}

// FrontMatter describes a rendered page.
type FrontMatter struct {
	DocSet     string            `yaml:"docset"`
	Page       string            `yaml:"page"`
	Title      string            `yaml:"title,omitempty"`
	Breadcrumb []string          `yaml:"breadcrumb,omitempty"`
	Sections   map[string]string `yaml:"sections,omitempty"`
}

// RenderOutline renders a page outline as markdown headings, one per
// section, each linking to its anchor. The front matter maps section
// fragments to their URIs.
func RenderOutline(docset string, o *doxygen.PageOutline, breadcrumb []string) (string, error) {
	var b strings.Builder
	title := o.Title
	if title == "" {
		title = o.PageID
	}
	fmt.Fprintf(&b, "# %s\n", labelEscaper.Replace(title))

	fm := FrontMatter{
		DocSet:     docset,
		Page:       o.PageID,
		Title:      o.Title,
		Breadcrumb: breadcrumb,
		Sections:   make(map[string]string),
	}
	writeSections(&b, docset, o.Sections, 2, fm.Sections)
	if len(fm.Sections) == 0 {
		fm.Sections = nil
	}

	return AddFrontMatter(RewriteDocLinks(b.String(), docset), fm)
}

func writeSections(b *strings.Builder, docset string, sections []doxygen.Section, level int, index map[string]string) {
	for _, s := range sections {
		heading := labelEscaper.Replace(s.Heading)
		b.WriteString("\n" + strings.Repeat("#", min(level, 6)) + " ")
		if s.Anchor == "" {
			b.WriteString(heading + "\n")
		} else {
			fmt.Fprintf(b, "[%s](%s)\n", heading, s.Anchor)
			if !s.External {
				page, frag := doxygen.SplitAnchor(doxygen.NormalizeAnchor(s.Anchor))
				key := frag
				if key == "" {
					key = doxygen.PageID(page)
				}
				if _, ok := index[key]; !ok {
					index[key] = URI(docset, s.Anchor)
				}
			}
		}
		writeSections(b, docset, s.Children, level+1, index)
	}
}
