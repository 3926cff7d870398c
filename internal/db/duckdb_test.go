package db

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/jcdickinson/doxnav/internal/doxygen"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := New(filepath.Join(dir, "test.duckdb"))
	if err != nil {
		t.Fatalf("creating test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func fixture(name string) *doxygen.DocSet {
	return &doxygen.DocSet{
		Name:    name,
		BaseURL: "/srv/" + name,
		Root: &doxygen.NavNode{Label: "DynamoRIO", URL: "index.html", Children: []*doxygen.NavNode{
			{Label: "Extensions", URL: "page_ext.html", ChildRef: "page_ext", Children: []*doxygen.NavNode{
				{Label: "drmgr", URL: "page_drmgr.html"},
				{Label: "drx", URL: "page_ext.html#sec_drx"},
			}},
			{Label: "Files", Children: []*doxygen.NavNode{
				{Label: "File List", URL: "files.html", ChildRef: "files"},
			}},
			{Label: "Home Page", URL: "http://www.dynamorio.org", External: true},
		}},
		Index: doxygen.NavIndex{"index.html", "page_ext.html"},
		Partitions: map[int]doxygen.NavIndexPartition{
			0: {"index.html": {0}, "page_drmgr.html": {0, 0, 0}},
			1: {"page_ext.html": {0, 0}, "page_ext.html#sec_drx": {0, 0, 1}},
		},
		Outlines: map[string]*doxygen.PageOutline{
			"page_ext": {PageID: "page_ext", Title: "Extensions", Sections: []doxygen.Section{
				{Heading: "drmgr", Anchor: "page_drmgr.html", Children: []doxygen.Section{
					{Heading: "Setup", Anchor: "page_drmgr.html#setup"},
					{Heading: "Events", Anchor: "page_drmgr.html#events"},
				}},
				{Heading: "drx", Anchor: "page_ext.html#sec_drx", Ref: "drx"},
			}},
		},
		Search: []doxygen.SearchEntry{
			{Key: "drmgr_5finit", Section: "all", Occurrences: []doxygen.Occurrence{
				{DisplayName: "drmgr_init", Anchor: "group__drmgr.html#ga1", SourceLabel: "drmgr.h"},
			}},
			{Key: "drx_5finit", Section: "all", Occurrences: []doxygen.Occurrence{
				{DisplayName: "drx_init", Anchor: "group__drx.html#ga3", SourceLabel: "drx.h"},
			}},
			{Key: "init", Section: "all", Occurrences: []doxygen.Occurrence{
				{DisplayName: "init", Anchor: "a.html#x"},
			}},
			{Key: "drmgr_5finit", Section: "functions", Occurrences: []doxygen.Occurrence{
				{DisplayName: "drmgr_init", Anchor: "group__drmgr.html#ga1", SourceLabel: "drmgr.h"},
			}},
			{Key: "drmgr_5finit_5fex", Section: "functions", Occurrences: []doxygen.Occurrence{
				{DisplayName: "drmgr_init_ex", Anchor: "group__drmgr.html#ga2", SourceLabel: "drmgr.h"},
			}},
		},
		Warnings:  []string{"missing files.js"},
		Artifacts: map[string]string{"navtreedata.js": "aa11", "page_ext.js": "bb22"},
	}
}

func TestReplaceDocSet(t *testing.T) {
	db := testDB(t)
	src := fixture("dr")

	row, err := db.ReplaceDocSet(src)
	if err != nil {
		t.Fatal(err)
	}
	if row.Name != "dr" || row.BaseURL != "/srv/dr" || row.Warnings != 1 || row.ProcessedAt == nil {
		t.Errorf("docset row = %+v", row)
	}

	root, err := db.LoadNavTree(row.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(root, src.Root) {
		t.Errorf("nav tree did not round trip:\ngot  %+v\nwant %+v", root, src.Root)
	}

	index, err := db.LoadNavIndex(row.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(index, src.Index) {
		t.Errorf("nav index = %v", index)
	}

	part, path, found, err := db.LookupNavPath(row.ID, "page_ext.html#sec_drx")
	if err != nil || !found || part != 1 || !reflect.DeepEqual(path, []int{0, 0, 1}) {
		t.Errorf("LookupNavPath = %d %v %v %v", part, path, found, err)
	}
	if _, _, found, err := db.LookupNavPath(row.ID, "nope.html"); found || err != nil {
		t.Errorf("LookupNavPath miss = %v %v", found, err)
	}

	nodes, err := db.FindNavNodes(row.ID, "files.html")
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 1 || !reflect.DeepEqual(nodes[0].Path, []int{0, 1, 0}) {
		t.Errorf("FindNavNodes = %+v", nodes)
	}

	outline, err := db.GetOutline(row.ID, "page_ext")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(outline, src.Outlines["page_ext"]) {
		t.Errorf("outline did not round trip:\ngot  %+v\nwant %+v", outline, src.Outlines["page_ext"])
	}
	if o, err := db.GetOutline(row.ID, "missing"); o != nil || err != nil {
		t.Errorf("GetOutline miss = %v %v", o, err)
	}

	artifacts, err := db.Artifacts(row.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(artifacts, src.Artifacts) {
		t.Errorf("artifacts = %v", artifacts)
	}
}

func TestReplaceDocSetReingest(t *testing.T) {
	db := testDB(t)

	first, err := db.ReplaceDocSet(fixture("dr"))
	if err != nil {
		t.Fatal(err)
	}

	smaller := fixture("dr")
	smaller.Search = smaller.Search[:1]
	smaller.Outlines = nil
	second, err := db.ReplaceDocSet(smaller)
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID {
		t.Errorf("re-ingest changed docset id: %d -> %d", first.ID, second.ID)
	}

	stats, err := db.ListDocSets()
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 1 {
		t.Fatalf("got %d docsets, want 1", len(stats))
	}
	s := stats[0]
	if s.Nodes != 7 || s.Entries != 1 || s.Occurrences != 1 || s.Outlines != 0 || s.Artifacts != 2 {
		t.Errorf("stats after re-ingest = %+v", s)
	}
}

func TestSearchOccurrences(t *testing.T) {
	db := testDB(t)
	if _, err := db.ReplaceDocSet(fixture("dr")); err != nil {
		t.Fatal(err)
	}
	other := fixture("drmem")
	other.Search = []doxygen.SearchEntry{{Key: "drmgr_5finit", Section: "all", Occurrences: []doxygen.Occurrence{
		{DisplayName: "drmgr_init", Anchor: "x.html#1"},
	}}}
	if _, err := db.ReplaceDocSet(other); err != nil {
		t.Fatal(err)
	}

	got, err := db.SearchOccurrences("init", doxygen.MatchSubstring, nil, nil, 10)
	if err != nil {
		t.Fatal(err)
	}
	type hit struct {
		docset, name, section string
		score                 float64
	}
	var hits []hit
	for _, o := range got {
		hits = append(hits, hit{o.DocSet, o.DisplayName, o.Section, o.Score})
	}
	want := []hit{
		{"dr", "init", "all", 1.0},
		{"dr", "drx_init", "all", 0.5},
		{"dr", "drmgr_init", "functions", 0.5},
		{"drmem", "drmgr_init", "all", 0.5},
		{"dr", "drmgr_init_ex", "functions", 0.5},
	}
	if !reflect.DeepEqual(hits, want) {
		t.Errorf("hits =\n%v\nwant\n%v", hits, want)
	}

	got, err = db.SearchOccurrences(doxygen.NormalizeKey("drmgr_"), doxygen.MatchSubstring, []string{"dr"}, []string{"functions"}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].DisplayName != "drmgr_init" || got[0].Score != 0.75 {
		t.Errorf("filtered search = %+v", got)
	}

	got, err = db.SearchOccurrences(doxygen.NormalizeKey("drmgr_init"), doxygen.MatchExact, nil, nil, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Score != 1.0 || got[1].Score != 1.0 {
		t.Errorf("exact search = %+v", got)
	}

	got, err = db.SearchOccurrences("drx", doxygen.MatchPrefix, nil, nil, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].DisplayName != "drx_init" || got[0].Score != 0.75 {
		t.Errorf("prefix search = %+v", got)
	}
	if got, _ := db.SearchOccurrences("init", doxygen.MatchPrefix, []string{"dr"}, nil, 10); len(got) != 1 || got[0].DisplayName != "init" {
		t.Errorf("prefix search for init = %+v", got)
	}

	if got, err := db.SearchOccurrences("", doxygen.MatchSubstring, nil, nil, 10); got != nil || err != nil {
		t.Errorf("empty query = %v %v", got, err)
	}
}

func TestDeleteDocSet(t *testing.T) {
	db := testDB(t)
	row, err := db.ReplaceDocSet(fixture("dr"))
	if err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteDocSet("dr"); err != nil {
		t.Fatal(err)
	}
	if d, err := db.GetDocSet("dr"); d != nil || err != nil {
		t.Errorf("GetDocSet after delete = %v %v", d, err)
	}
	if root, err := db.LoadNavTree(row.ID); root != nil || err != nil {
		t.Errorf("nav tree after delete = %v %v", root, err)
	}
	if err := db.DeleteDocSet("dr"); err != nil {
		t.Errorf("deleting unknown docset: %v", err)
	}
}

func TestPathEncoding(t *testing.T) {
	for _, p := range [][]int{{0}, {0, 12, 3}} {
		got, err := ParsePath(FormatPath(p))
		if err != nil || !reflect.DeepEqual(got, p) {
			t.Errorf("path %v round trip = %v, %v", p, got, err)
		}
	}
	if _, err := ParsePath("0.x"); err == nil {
		t.Error("expected error for malformed path")
	}
}
