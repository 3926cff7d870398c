package doxygen

import "fmt"

// NavNode is one entry of the sidebar tree. URL is empty for category-only
// nodes. ChildRef names the outline script the children were loaded from,
// when Doxygen referenced them lazily instead of inlining them.
type NavNode struct {
	Label    string     `json:"label"`
	URL      string     `json:"url,omitempty"`
	External bool       `json:"external,omitempty"`
	ChildRef string     `json:"child_ref,omitempty"`
	Children []*NavNode `json:"children,omitempty"`
}

// IsCategory reports whether the node only groups other nodes.
func (n *NavNode) IsCategory() bool {
	return n.URL == ""
}

// Page returns the URL without its fragment.
func (n *NavNode) Page() string {
	page, _ := SplitAnchor(n.URL)
	return page
}

// NavIndex lists, in order, the first anchor held by each navtreeindex
// partition file. It partitions the anchor space for incremental loading.
type NavIndex []string

// NavIndexPartition maps anchors to their index path in the tree.
type NavIndexPartition map[string][]int

// Occurrence is one place a symbol is documented.
type Occurrence struct {
	DisplayName string `json:"display_name"`
	Anchor      string `json:"anchor"`
	SourceLabel string `json:"source_label,omitempty"`
}

// SearchEntry groups the occurrences filed under one normalized key.
type SearchEntry struct {
	Key         string       `json:"key"`
	Section     string       `json:"section,omitempty"`
	Occurrences []Occurrence `json:"occurrences"`
}

// SearchSection describes one tab of the search box (all, classes, ...).
type SearchSection struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Label   string `json:"label,omitempty"`
	Letters string `json:"letters"`
}

// Section is a heading inside a page outline.
type Section struct {
	Heading  string    `json:"heading"`
	Anchor   string    `json:"anchor,omitempty"`
	External bool      `json:"external,omitempty"`
	Ref      string    `json:"ref,omitempty"`
	Children []Section `json:"children,omitempty"`
}

// PageOutline is the ordered section list of one documentation page, or of
// a group/file member list.
type PageOutline struct {
	PageID   string    `json:"page_id"`
	Title    string    `json:"title,omitempty"`
	Sections []Section `json:"sections"`
}

// DocSet is everything loaded from one Doxygen HTML output directory.
type DocSet struct {
	Name       string                    `json:"name"`
	BaseURL    string                    `json:"base_url"`
	Root       *NavNode                  `json:"root"`
	Index      NavIndex                  `json:"index,omitempty"`
	Partitions map[int]NavIndexPartition `json:"partitions,omitempty"`
	Outlines   map[string]*PageOutline   `json:"outlines,omitempty"`
	Sections   []SearchSection           `json:"sections,omitempty"`
	Search     []SearchEntry             `json:"search,omitempty"`
	Warnings   []string                  `json:"warnings,omitempty"`
	Artifacts  map[string]string         `json:"artifacts,omitempty"` // file name → CAS hash
}

// ValidName reports whether name can address a docset: it appears in
// doxnav:// URIs and in cache file names.
func ValidName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("invalid docset name %q", name)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return fmt.Errorf("invalid docset name %q: only letters, digits, '-', '_' and '.' are allowed", name)
		}
	}
	return nil
}
