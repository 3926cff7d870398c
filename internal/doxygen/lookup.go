package doxygen

import (
	"fmt"
	"strings"
)

// MatchKind orders how closely a search hit matched its query.
type MatchKind int

const (
	MatchSubstring MatchKind = iota + 1
	MatchPrefix
	MatchExact
)

func (m MatchKind) String() string {
	switch m {
	case MatchExact:
		return "exact"
	case MatchPrefix:
		return "prefix"
	case MatchSubstring:
		return "substring"
	}
	return "none"
}

// ParseMatchKind reads a match mode name. The empty string means substring.
func ParseMatchKind(s string) (MatchKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "substring":
		return MatchSubstring, nil
	case "prefix":
		return MatchPrefix, nil
	case "exact":
		return MatchExact, nil
	}
	return 0, fmt.Errorf("unknown match mode %q (want exact, prefix or substring)", s)
}

// Hit is one occurrence matched by a search.
type Hit struct {
	Occurrence
	Key     string    `json:"key"`
	Section string    `json:"section,omitempty"`
	Match   MatchKind `json:"match"`
}

// NodeMatch is a tree node together with where it sits.
type NodeMatch struct {
	Node       *NavNode
	Path       []int
	Breadcrumb []string
}

// Location is where an anchor sits in the navigation tree.
type Location struct {
	Anchor     string   `json:"anchor"`
	Partition  int      `json:"partition"`
	Path       []int    `json:"path"`
	Breadcrumb []string `json:"breadcrumb"`
	Label      string   `json:"label"`
	URL        string   `json:"url"`
}

// Walk visits every node depth-first in file order. Paths follow the
// navtreeindex convention: the first element indexes the top level of
// NAVTREE. fn returning false prunes the node's subtree. Nodes reachable
// twice are visited once.
func Walk(root *NavNode, fn func(n *NavNode, path []int, crumbs []string) bool) {
	if root == nil {
		return
	}
	seen := make(map[*NavNode]bool)
	var visit func(n *NavNode, path []int, crumbs []string)
	visit = func(n *NavNode, path []int, crumbs []string) {
		if seen[n] {
			return
		}
		seen[n] = true
		if !fn(n, path, crumbs) {
			return
		}
		for i, c := range n.Children {
			if c == nil {
				continue
			}
			childPath := append(append([]int(nil), path...), i)
			childCrumbs := append(append([]string(nil), crumbs...), c.Label)
			visit(c, childPath, childCrumbs)
		}
	}
	for i, n := range TopLevel(root) {
		if n != nil {
			visit(n, []int{i}, []string{n.Label})
		}
	}
}

// TopLevel returns the entries of the NAVTREE array. ParseNavTree wraps
// several top-level entries in an unlabelled root.
func TopLevel(root *NavNode) []*NavNode {
	if root == nil {
		return nil
	}
	if root.Label == "" && root.URL == "" && root.ChildRef == "" {
		return root.Children
	}
	return []*NavNode{root}
}

// FindNodes returns every node whose URL equals url, in file order.
func (d *DocSet) FindNodes(url string) []NodeMatch {
	url = NormalizeAnchor(url)
	var matches []NodeMatch
	Walk(d.Root, func(n *NavNode, path []int, crumbs []string) bool {
		if n.URL != "" && n.URL == url {
			matches = append(matches, NodeMatch{Node: n, Path: path, Breadcrumb: crumbs})
		}
		return true
	})
	return matches
}

// NodeAt follows an index path as stored in navtreeindex files.
func (d *DocSet) NodeAt(path []int) (*NavNode, []string, bool) {
	if len(path) == 0 {
		return nil, nil, false
	}
	level := TopLevel(d.Root)
	var n *NavNode
	crumbs := make([]string, 0, len(path))
	for _, i := range path {
		if i < 0 || i >= len(level) || level[i] == nil {
			return nil, nil, false
		}
		n = level[i]
		crumbs = append(crumbs, n.Label)
		level = n.Children
	}
	return n, crumbs, true
}

// Children returns the children of the node at path. An unknown path or an
// unexpanded child reference yields nil.
func (d *DocSet) Children(path []int) []*NavNode {
	n, _, ok := d.NodeAt(path)
	if !ok {
		return nil
	}
	return n.Children
}

// NodeByLabels follows a label path starting at the top level. Labels
// compare case-insensitively; the first matching entry wins.
func (d *DocSet) NodeByLabels(labels []string) (*NavNode, []int, bool) {
	if len(labels) == 0 {
		return nil, nil, false
	}
	level := TopLevel(d.Root)
	var n *NavNode
	path := make([]int, 0, len(labels))
	for _, label := range labels {
		found := -1
		for i, c := range level {
			if c != nil && strings.EqualFold(c.Label, label) {
				found = i
				break
			}
		}
		if found < 0 {
			return nil, nil, false
		}
		n = level[found]
		path = append(path, found)
		level = n.Children
	}
	return n, path, true
}

// Outline returns the outline of a page by page ID or URL.
func (d *DocSet) Outline(page string) (*PageOutline, bool) {
	o, ok := d.Outlines[PageID(page)]
	if !ok {
		o, ok = d.Outlines[page]
	}
	return o, ok
}

// Lookup returns the search entries filed under key. Key may be a raw
// Doxygen key or a display name.
func (d *DocSet) Lookup(key string) []SearchEntry {
	var out []SearchEntry
	for _, e := range d.Search {
		if e.Key == key || KeyMatches(e.Key, key) {
			out = append(out, e)
		}
	}
	return out
}

// Search returns every occurrence whose normalized display name matches
// query at least as closely as min, in file order.
func (d *DocSet) Search(query string, min MatchKind) []Hit {
	q := NormalizeKey(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var hits []Hit
	for _, e := range d.Search {
		for _, occ := range e.Occurrences {
			m := match(NormalizeKey(occ.DisplayName), q)
			if m == 0 || m < min {
				continue
			}
			hits = append(hits, Hit{Occurrence: occ, Key: e.Key, Section: e.Section, Match: m})
		}
	}
	return hits
}

// SearchPrefix returns occurrences whose name starts with query.
func (d *DocSet) SearchPrefix(query string) []Hit {
	return d.Search(query, MatchPrefix)
}

// SearchSubstring returns occurrences whose name contains query.
func (d *DocSet) SearchSubstring(query string) []Hit {
	return d.Search(query, MatchSubstring)
}

func match(key, q string) MatchKind {
	switch {
	case key == q:
		return MatchExact
	case strings.HasPrefix(key, q):
		return MatchPrefix
	case strings.Contains(key, q):
		return MatchSubstring
	}
	return 0
}

// Locate finds where anchor sits in the tree. The navigation index picks
// the partition; when the anchor itself is not listed its page is tried,
// then a full tree scan.
func (d *DocSet) Locate(anchor string) (*Location, bool) {
	anchor = NormalizeAnchor(anchor)
	page, _ := SplitAnchor(anchor)

	for _, key := range []string{anchor, page} {
		p := d.Index.Partition(key)
		path, ok := d.Partitions[p][key]
		if !ok {
			continue
		}
		if n, crumbs, ok := d.NodeAt(path); ok {
			return &Location{
				Anchor:     anchor,
				Partition:  p,
				Path:       path,
				Breadcrumb: crumbs,
				Label:      n.Label,
				URL:        n.URL,
			}, true
		}
	}

	for _, key := range []string{anchor, page} {
		if m := d.FindNodes(key); len(m) > 0 {
			return &Location{
				Anchor:     anchor,
				Partition:  d.Index.Partition(key),
				Path:       m[0].Path,
				Breadcrumb: m[0].Breadcrumb,
				Label:      m[0].Node.Label,
				URL:        m[0].Node.URL,
			}, true
		}
	}
	return nil, false
}
