package doxygen

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// OutlineFromHTML builds a page outline by scanning the headings of a
// rendered Doxygen page. It is used when a page has no outline script.
// Doxygen marks section targets with <a class="anchor" id="..."> either
// inside the heading or immediately before it.
func OutlineFromHTML(pageID string, src []byte) (*PageOutline, error) {
	doc, err := html.Parse(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parsing %s html: %w", pageID, err)
	}

	page := pageID + ".html"
	outline := &PageOutline{PageID: pageID}
	var docTitle string

	type open struct {
		level    int
		sections *[]Section
	}
	stack := []open{{level: 0, sections: &outline.Sections}}
	var pending string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.DataAtom == atom.Title:
				docTitle = textOf(n)
				return
			case n.DataAtom == atom.Div && hasClass(n, "title") && outline.Title == "":
				outline.Title = textOf(n)
				return
			case n.DataAtom == atom.A && hasClass(n, "anchor"):
				pending = attr(n, "id")
			}

			if level := headingLevel(n); level > 0 {
				id := headingAnchor(n)
				if id == "" {
					id = pending
				}
				pending = ""

				heading := textOf(n)
				if heading == "" {
					return
				}
				s := Section{Heading: heading}
				if id != "" {
					s.Anchor = page + "#" + id
				}

				for len(stack) > 1 && stack[len(stack)-1].level >= level {
					stack = stack[:len(stack)-1]
				}
				parent := stack[len(stack)-1].sections
				*parent = append(*parent, s)
				stack = append(stack, open{level: level, sections: &(*parent)[len(*parent)-1].Children})
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if outline.Title == "" {
		outline.Title = trimProjectPrefix(docTitle)
	}
	return outline, nil
}

func headingLevel(n *html.Node) int {
	switch n.DataAtom {
	case atom.H1:
		return 1
	case atom.H2:
		return 2
	case atom.H3:
		return 3
	case atom.H4:
		return 4
	}
	return 0
}

// headingAnchor returns the id of an anchor nested in the heading, or the
// heading's own id.
func headingAnchor(n *html.Node) string {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.A {
			if id := attr(c, "id"); id != "" {
				return id
			}
		}
	}
	return attr(n, "id")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// textOf returns the visible text of n with whitespace collapsed.
func textOf(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(strings.ReplaceAll(b.String(), nonBreakingSpace, " ")), " ")
}

// trimProjectPrefix turns "DynamoRIO: Extensions" into "Extensions".
func trimProjectPrefix(title string) string {
	if _, rest, ok := strings.Cut(title, ": "); ok && rest != "" {
		return rest
	}
	return title
}
