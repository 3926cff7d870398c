package doxygen

import (
	"os"
	"path/filepath"
	"testing"
)

func readTestdata(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestParseNavTreeDynamoRIO(t *testing.T) {
	root, index, err := ParseNavTree(readTestdata(t, "dynamorio_navtreedata.js"))
	if err != nil {
		t.Fatalf("ParseNavTree: %v", err)
	}

	if root.Label != "DynamoRIO API" || root.URL != "index.html" {
		t.Errorf("root = %q %q", root.Label, root.URL)
	}
	if len(root.Children) != 8 {
		t.Fatalf("got %d top-level children, want 8", len(root.Children))
	}

	ext := root.Children[1]
	if ext.Label != "DynamoRIO Extensions" || ext.ChildRef != "page_ext" || len(ext.Children) != 0 {
		t.Errorf("extensions node = %+v", ext)
	}

	deprecated := root.Children[3]
	if deprecated.ChildRef != "" || deprecated.Children != nil {
		t.Errorf("deprecated should be a leaf, got %+v", deprecated)
	}

	files := root.Children[6]
	if !files.IsCategory() {
		t.Errorf("Files should be a category node")
	}
	if got := files.Children[1].Children[6].ChildRef; got != "globals_defs" {
		t.Errorf("nested child ref = %q", got)
	}

	home := root.Children[7]
	if !home.External || home.URL != "http://www.dynamorio.org" {
		t.Errorf("home page = %+v, want external http://www.dynamorio.org", home)
	}

	if len(index) != 31 {
		t.Errorf("got %d index entries, want 31", len(index))
	}
	if index[0] != "API_BT.html" {
		t.Errorf("index[0] = %q", index[0])
	}
	if !index.Sorted() {
		t.Error("index should be sorted")
	}
}

func TestParseNavTreeMultipleRoots(t *testing.T) {
	src := []byte(`var NAVTREE = [ [ "A", "a.html", null ], [ "B", null, [ [ "C", "c.html", null ] ] ] ];`)
	root, index, err := ParseNavTree(src)
	if err != nil {
		t.Fatal(err)
	}
	if root.Label != "" || len(root.Children) != 2 {
		t.Fatalf("expected synthetic root with 2 children, got %+v", root)
	}
	if index != nil {
		t.Errorf("index = %v, want nil", index)
	}
}

func TestParseNavTreeUnescapesLabels(t *testing.T) {
	src := []byte(`var NAVTREE = [ [ "std::vector&lt; T &gt;", "classvec.html", null ] ];`)
	root, _, err := ParseNavTree(src)
	if err != nil {
		t.Fatal(err)
	}
	if root.Label != "std::vector< T >" {
		t.Errorf("label = %q", root.Label)
	}
}

func TestParseNavTreeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"no tree", `var OTHER = [];`},
		{"empty tree", `var NAVTREE = [];`},
		{"not array", `var NAVTREE = {};`},
		{"short triple", `var NAVTREE = [ [ "A" ] ];`},
		{"numeric label", `var NAVTREE = [ [ 1, "a.html", null ] ];`},
		{"numeric url", `var NAVTREE = [ [ "A", 2, null ] ];`},
		{"bad children", `var NAVTREE = [ [ "A", "a.html", 3 ] ];`},
		{"bad index", `var NAVTREE = [ [ "A", "a.html", null ] ]; var NAVTREEINDEX = [ 1 ];`},
		{"syntax", `var NAVTREE = [ [ "A", "a.html", null ]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := ParseNavTree([]byte(tt.src)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseOutlineNodes(t *testing.T) {
	nodes, err := ParseOutlineNodes("page_ext", readTestdata(t, "docset/page_ext.js"))
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 3 {
		t.Fatalf("got %d nodes, want 3", len(nodes))
	}
	if nodes[0].ChildRef != "page_drmgr" {
		t.Errorf("first node child ref = %q", nodes[0].ChildRef)
	}
	if nodes[2].URL != "page_ext.html#sec_drx" {
		t.Errorf("third node url = %q", nodes[2].URL)
	}

	// A file whose variable name differs still decodes when it declares one.
	nodes, err = ParseOutlineNodes("renamed", []byte(`var page_x = [ [ "S", "x.html#s", null ] ];`))
	if err != nil || len(nodes) != 1 {
		t.Errorf("fallback var: nodes=%v err=%v", nodes, err)
	}

	if _, err := ParseOutlineNodes("x", []byte(`var a = []; var b = [];`)); err == nil {
		t.Error("expected error for ambiguous outline script")
	}
}

func TestNewOutline(t *testing.T) {
	nodes := []*NavNode{
		{Label: "Setup", URL: "p.html#setup", Children: []*NavNode{{Label: "Init", URL: "p.html#init"}}},
		{Label: "More", URL: "q.html", ChildRef: "q"},
	}
	o := NewOutline("p", "Page", nodes)
	if o.PageID != "p" || o.Title != "Page" || len(o.Sections) != 2 {
		t.Fatalf("outline = %+v", o)
	}
	if o.Sections[0].Children[0].Anchor != "p.html#init" {
		t.Errorf("nested anchor = %q", o.Sections[0].Children[0].Anchor)
	}
	if o.Sections[1].Ref != "q" {
		t.Errorf("ref = %q", o.Sections[1].Ref)
	}
}

func TestAnchorHelpers(t *testing.T) {
	tests := []struct {
		in       string
		anchor   string
		page     string
		fragment string
		pageID   string
	}{
		{"../group__drx.html#ga1", "group__drx.html#ga1", "group__drx.html", "ga1", "group__drx"},
		{"./page_ext.html", "page_ext.html", "page_ext.html", "", "page_ext"},
		{"../../a.html#b", "a.html#b", "a.html", "b", "a"},
		{"index.html", "index.html", "index.html", "", "index"},
	}
	for _, tt := range tests {
		anchor := NormalizeAnchor(tt.in)
		if anchor != tt.anchor {
			t.Errorf("NormalizeAnchor(%q) = %q, want %q", tt.in, anchor, tt.anchor)
		}
		page, frag := SplitAnchor(anchor)
		if page != tt.page || frag != tt.fragment {
			t.Errorf("SplitAnchor(%q) = %q, %q", anchor, page, frag)
		}
		if got := PageID(tt.in); got != tt.pageID {
			t.Errorf("PageID(%q) = %q, want %q", tt.in, got, tt.pageID)
		}
	}
}
