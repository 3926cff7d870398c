package doxygen

import (
	"fmt"
	"strings"

	"github.com/jcdickinson/doxnav/internal/jsdata"
	"golang.org/x/net/html"
)

const (
	navTreeVar  = "NAVTREE"
	navIndexVar = "NAVTREEINDEX"
)

// ParseNavTree decodes navtreedata.js into the tree root and the navigation
// index. Lazily referenced children are left unresolved: their nodes carry
// ChildRef and no Children.
func ParseNavTree(src []byte) (*NavNode, NavIndex, error) {
	f, err := jsdata.Parse(src)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing navtree data: %w", err)
	}

	raw, ok := f.Var(navTreeVar)
	if !ok {
		return nil, nil, fmt.Errorf("navtree data has no %s variable", navTreeVar)
	}
	nodes, err := decodeNodes(raw, navTreeVar)
	if err != nil {
		return nil, nil, err
	}

	var root *NavNode
	switch len(nodes) {
	case 0:
		return nil, nil, fmt.Errorf("%s is empty", navTreeVar)
	case 1:
		root = nodes[0]
	default:
		root = &NavNode{Children: nodes}
	}

	var index NavIndex
	if rawIdx, ok := f.Var(navIndexVar); ok {
		index, err = decodeStrings(rawIdx, navIndexVar)
		if err != nil {
			return nil, nil, err
		}
	}

	return root, index, nil
}

// ParseOutlineNodes decodes a lazily loaded child list such as page_ext.js or
// group__drx.js. The script declares a single variable named after the file.
func ParseOutlineNodes(name string, src []byte) ([]*NavNode, error) {
	f, err := jsdata.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parsing outline %s: %w", name, err)
	}
	raw, ok := f.Var(name)
	if !ok {
		if len(f.Names) != 1 {
			return nil, fmt.Errorf("outline script declares no %s variable", name)
		}
		raw = f.Vars[f.Names[0]]
	}
	return decodeNodes(raw, name)
}

// NewOutline builds the outline of pageID from its child nodes.
func NewOutline(pageID, title string, nodes []*NavNode) *PageOutline {
	return &PageOutline{
		PageID:   pageID,
		Title:    title,
		Sections: toSections(nodes),
	}
}

func toSections(nodes []*NavNode) []Section {
	if len(nodes) == 0 {
		return nil
	}
	sections := make([]Section, len(nodes))
	for i, n := range nodes {
		sections[i] = Section{
			Heading:  n.Label,
			Anchor:   n.URL,
			External: n.External,
			Ref:      n.ChildRef,
			Children: toSections(n.Children),
		}
	}
	return sections
}

func decodeNodes(v any, where string) ([]*NavNode, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected array, got %T", where, v)
	}

	nodes := make([]*NavNode, 0, len(list))
	for i, item := range list {
		node, err := decodeNode(item, fmt.Sprintf("%s[%d]", where, i))
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// decodeNode converts one [label, url, children] triple.
func decodeNode(v any, where string) (*NavNode, error) {
	triple, ok := v.([]any)
	if !ok || len(triple) < 2 {
		return nil, fmt.Errorf("%s: expected [label, url, children]", where)
	}

	label, ok := triple[0].(string)
	if !ok {
		return nil, fmt.Errorf("%s: label is %T, not string", where, triple[0])
	}
	node := &NavNode{Label: html.UnescapeString(label)}

	switch u := triple[1].(type) {
	case nil:
	case string:
		node.URL, node.External = normalizeNavURL(u)
	default:
		return nil, fmt.Errorf("%s: url is %T, not string or null", where, u)
	}

	if len(triple) < 3 {
		return node, nil
	}
	switch c := triple[2].(type) {
	case nil:
	case string:
		node.ChildRef = c
	case []any:
		children, err := decodeNodes(c, where)
		if err != nil {
			return nil, err
		}
		node.Children = children
	default:
		return nil, fmt.Errorf("%s: children is %T", where, c)
	}
	return node, nil
}

func decodeStrings(v any, where string) ([]string, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected array, got %T", where, v)
	}
	out := make([]string, len(list))
	for i, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%s[%d]: expected string, got %T", where, i, item)
		}
		out[i] = s
	}
	return out, nil
}

// normalizeNavURL strips the caret Doxygen puts in front of external links.
func normalizeNavURL(u string) (string, bool) {
	if strings.HasPrefix(u, "^") {
		return u[1:], true
	}
	return u, false
}

// NormalizeAnchor makes a search-result URL relative to the docset root.
// Search fragments live one directory down and prefix their targets with ../
func NormalizeAnchor(u string) string {
	for strings.HasPrefix(u, "../") {
		u = u[3:]
	}
	return strings.TrimPrefix(u, "./")
}

// SplitAnchor splits "page.html#frag" into its page and fragment.
func SplitAnchor(u string) (page, fragment string) {
	page, fragment, _ = strings.Cut(u, "#")
	return page, fragment
}

// PageID returns the Doxygen page identifier for a URL ("page_ext.html#x"
// becomes "page_ext").
func PageID(u string) string {
	page, _ := SplitAnchor(NormalizeAnchor(u))
	return strings.TrimSuffix(page, ".html")
}
