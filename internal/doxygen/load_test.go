package doxygen

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/jcdickinson/doxnav/internal/config"
)

const testDocsetDir = "testdata/docset"

func TestLoadDir(t *testing.T) {
	var mu sync.Mutex
	var fetched []string
	var progress []string

	d, err := Load(context.Background(), DirSource(testDocsetDir), "dr", LoadOptions{
		Concurrency: 2,
		Progress:    func(msg string) { progress = append(progress, msg) },
		OnFile: func(name string, _ []byte) {
			mu.Lock()
			fetched = append(fetched, name)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if d.Name != "dr" || d.Root.Label != "DynamoRIO" {
		t.Errorf("docset = %s root %q", d.Name, d.Root.Label)
	}

	ext := d.Root.Children[1]
	if len(ext.Children) != 3 {
		t.Fatalf("page_ext not expanded: %+v", ext)
	}
	drmgr := ext.Children[0]
	if len(drmgr.Children) != 2 {
		t.Errorf("second-level ref page_drmgr not expanded: %+v", drmgr)
	}

	for _, id := range []string{"page_ext", "page_drmgr"} {
		if _, ok := d.Outline(id); !ok {
			t.Errorf("missing outline %s", id)
		}
	}
	if o, _ := d.Outline("page_ext"); o.Title != "DynamoRIO Extensions" {
		t.Errorf("page_ext title = %q", o.Title)
	}

	if len(d.Search) != 6 {
		t.Errorf("got %d search entries, want 6", len(d.Search))
	}
	if len(d.Sections) != 2 {
		t.Errorf("got %d sections, want 2", len(d.Sections))
	}
	if len(d.Partitions) != 2 {
		t.Errorf("got %d partitions, want 2", len(d.Partitions))
	}

	wantWarnings := []string{"missing files.js", "missing page_tool.js"}
	warnings := slices.Clone(d.Warnings)
	slices.Sort(warnings)
	if !reflect.DeepEqual(warnings, wantWarnings) {
		t.Errorf("warnings = %v, want %v", warnings, wantWarnings)
	}

	if len(fetched) != 9 {
		t.Errorf("OnFile saw %d files, want 9: %v", len(fetched), fetched)
	}
	if len(progress) == 0 || !strings.HasPrefix(progress[len(progress)-1], "loaded dr") {
		t.Errorf("progress = %v", progress)
	}

	loc, ok := d.Locate("page_drmgr.html#sec_drmgr_events")
	if !ok {
		t.Fatal("Locate failed on loaded docset")
	}
	want := []string{"DynamoRIO", "DynamoRIO Extensions", "Multi-Instrumentation Manager", "Instrumentation Events"}
	if !reflect.DeepEqual(loc.Breadcrumb, want) {
		t.Errorf("breadcrumb = %v", loc.Breadcrumb)
	}

	if err := Validate(d); err != nil {
		t.Errorf("loaded docset fails validation: %v", err)
	}
}

func TestLoadHTMLFallback(t *testing.T) {
	d, err := Load(context.Background(), DirSource(testDocsetDir), "dr", LoadOptions{HTMLFallback: true})
	if err != nil {
		t.Fatal(err)
	}
	o, ok := d.Outline("page_tool")
	if !ok {
		t.Fatal("no outline built from page_tool.html")
	}
	if o.Title != "DynamoRIO-Based Tools" || len(o.Sections) != 2 {
		t.Errorf("outline = %+v", o)
	}
	if !slices.Contains(d.Warnings, "missing files.html") {
		t.Errorf("warnings = %v", d.Warnings)
	}
}

func TestLoadGlobsSearchFragments(t *testing.T) {
	dir := t.TempDir()
	if err := os.CopyFS(dir, os.DirFS(testDocsetDir)); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(dir, "search", "searchdata.js")); err != nil {
		t.Fatal(err)
	}

	d, err := Load(context.Background(), DirSource(dir), "dr", LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Search) != 6 {
		t.Errorf("got %d search entries, want 6", len(d.Search))
	}
	names := []string{}
	for _, s := range d.Sections {
		names = append(names, s.Label)
	}
	if !reflect.DeepEqual(names, []string{"All", "Functions"}) {
		t.Errorf("section labels = %v", names)
	}
	if d.Search[len(d.Search)-1].Section != "functions" {
		t.Errorf("last entry section = %q", d.Search[len(d.Search)-1].Section)
	}
}

func TestLoadHTTPLegacySearchScript(t *testing.T) {
	dir := t.TempDir()
	if err := os.CopyFS(dir, os.DirFS(testDocsetDir)); err != nil {
		t.Fatal(err)
	}
	tables, err := os.ReadFile(filepath.Join(dir, "search", "searchdata.js"))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(dir, "search", "searchdata.js")); err != nil {
		t.Fatal(err)
	}
	script := "// Search script generated by doxygen\n\n" + string(tables) + `
function convertToId(search)
{
  var result = '';
  return result;
}

var searchBox = new SearchBox("searchBox", "search", false, 'Search');
`
	if err := os.WriteFile(filepath.Join(dir, "search", "search.js"), []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.FileServer(http.Dir(dir)))
	defer srv.Close()

	d, err := Load(context.Background(), NewHTTPSource(srv.URL, config.FetchConfig{}), "old", LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(d.Search) != 6 {
		t.Errorf("got %d search entries, want 6", len(d.Search))
	}
	labels := []string{}
	for _, s := range d.Sections {
		labels = append(labels, s.Label)
	}
	if !reflect.DeepEqual(labels, []string{"All", "Functions"}) {
		t.Errorf("section labels = %v", labels)
	}
	for _, w := range d.Warnings {
		if strings.Contains(w, "search.js") {
			t.Errorf("unexpected warning %q", w)
		}
	}
}

func TestLoadSharedOutlineReferences(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"navtreedata.js": `var NAVTREE =
[
  [ "Alpha", "alpha.html", "page_alpha" ],
  [ "Shared", "shared.html", "page_shared" ],
  [ "Loop", "loop.html", "page_loop" ]
];`,
		"page_alpha.js":  `var page_alpha = [ [ "Shared again", "shared.html", "page_shared" ] ];`,
		"page_shared.js": `var page_shared = [ [ "Part", "shared.html#part", null ] ];`,
		"page_loop.js":   `var page_loop = [ [ "Loop inside", "loop.html#in", "page_loop" ] ];`,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	var mu sync.Mutex
	fetches := map[string]int{}
	d, err := Load(context.Background(), DirSource(dir), "shared", LoadOptions{
		OnFile: func(name string, _ []byte) {
			mu.Lock()
			fetches[name]++
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	top := TopLevel(d.Root)
	again := top[0].Children[0]
	if len(again.Children) != 1 || again.Children[0].Label != "Part" {
		t.Errorf("late reference to page_shared not expanded: %+v", again.Children)
	}
	if len(top[1].Children) != 1 {
		t.Errorf("page_shared owner children = %+v", top[1].Children)
	}
	if fetches["page_shared.js"] != 1 {
		t.Errorf("page_shared.js fetched %d times", fetches["page_shared.js"])
	}

	inner := top[2].Children[0]
	if inner.Label != "Loop inside" || len(inner.Children) != 0 {
		t.Errorf("self reference attached: %+v", inner)
	}
	if err := Validate(d); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadRequiresNavTree(t *testing.T) {
	_, err := Load(context.Background(), DirSource(t.TempDir()), "empty", LoadOptions{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestLoadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Load(ctx, DirSource(testDocsetDir), "dr", LoadOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestLoadHTTP(t *testing.T) {
	var mu sync.Mutex
	agents := map[string]bool{}
	fs := http.FileServer(http.Dir(testDocsetDir))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		agents[r.Header.Get("User-Agent")] = true
		mu.Unlock()
		fs.ServeHTTP(w, r)
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL+"/", config.FetchConfig{UserAgent: "doxnav-test", TimeoutSeconds: 5})
	d, err := Load(context.Background(), src, "remote", LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.BaseURL != srv.URL+"/" {
		t.Errorf("base url = %q", d.BaseURL)
	}
	if len(d.Search) != 6 || len(d.Partitions) != 2 {
		t.Errorf("search=%d partitions=%d", len(d.Search), len(d.Partitions))
	}
	mu.Lock()
	defer mu.Unlock()
	if !reflect.DeepEqual(agents, map[string]bool{"doxnav-test": true}) {
		t.Errorf("user agents = %v", agents)
	}
}
