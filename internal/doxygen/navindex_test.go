package doxygen

import (
	"reflect"
	"testing"
)

func TestNavIndexPartition(t *testing.T) {
	idx := NavIndex{"API_BT.html", "dr__events_8h.html#ac8", "group__drx.html#ga1", "struct__x.html"}
	tests := []struct {
		anchor string
		want   int
	}{
		{"API_BT.html", 0},
		{"AAA.html", 0},
		{"annotated.html", 0},
		{"dr__events_8h.html#ac8", 1},
		{"dr__events_8h.html#zz", 1},
		{"group__drx.html", 1},
		{"group__drx.html#ga1", 2},
		{"page_ext.html", 2},
		{"struct__x.html", 3},
		{"zzz.html", 3},
	}
	for _, tt := range tests {
		if got := idx.Partition(tt.anchor); got != tt.want {
			t.Errorf("Partition(%q) = %d, want %d", tt.anchor, got, tt.want)
		}
	}

	if got := NavIndex(nil).Partition("a.html"); got != -1 {
		t.Errorf("empty index Partition = %d, want -1", got)
	}
}

func TestPartitionFile(t *testing.T) {
	if got := PartitionFile(12); got != "navtreeindex12.js" {
		t.Errorf("PartitionFile(12) = %q", got)
	}
}

func TestParseNavIndexPartition(t *testing.T) {
	part, err := ParseNavIndexPartition(1, readTestdata(t, "docset/navtreeindex1.js"))
	if err != nil {
		t.Fatal(err)
	}
	want := NavIndexPartition{
		"page_ext.html#sec_drx": {0, 1, 2},
		"page_tool.html":        {0, 2},
	}
	if !reflect.DeepEqual(part, want) {
		t.Errorf("partition = %v", part)
	}
}

func TestParseNavIndexPartitionErrors(t *testing.T) {
	tests := []string{
		`var NAVTREEINDEX0 = { "a.html": [0] };`,
		`var NAVTREEINDEX3 = [];`,
		`var NAVTREEINDEX3 = { "a.html": 0 };`,
		`var NAVTREEINDEX3 = { "a.html": [0, -1] };`,
		`var NAVTREEINDEX3 = { "a.html": [0, 1.5] };`,
		`var NAVTREEINDEX3 = { "a.html": ["0"] };`,
	}
	for _, src := range tests {
		if _, err := ParseNavIndexPartition(3, []byte(src)); err == nil {
			t.Errorf("ParseNavIndexPartition(%s): expected error", src)
		}
	}
}

func TestNavIndexSorted(t *testing.T) {
	if !(NavIndex{"a", "b", "b", "c"}).Sorted() {
		t.Error("non-decreasing index reported unsorted")
	}
	if (NavIndex{"b", "a"}).Sorted() {
		t.Error("decreasing index reported sorted")
	}
}
