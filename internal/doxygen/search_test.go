package doxygen

import (
	"reflect"
	"testing"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"OP_adr", "op_5fadr"},
		{"drx_buf_t", "drx_5fbuf_5ft"},
		{"operator==", "operator_3d_3d"},
		{"std::vector", "std_3a_3avector"},
		{"ABC123", "abc123"},
		{"a b", "a_20b"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeKey(tt.in); got != tt.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestKeyMatches(t *testing.T) {
	tests := []struct {
		key, display string
		want         bool
	}{
		{"op_5fadr", "OP_adr", true},
		{"op_5fadr_3", "OP_adr", true},
		{"op_5fadr_", "OP_adr", false},
		{"op_5fadr_x", "OP_adr", false},
		{"op_5fad", "OP_adr", false},
	}
	for _, tt := range tests {
		if got := KeyMatches(tt.key, tt.display); got != tt.want {
			t.Errorf("KeyMatches(%q, %q) = %v, want %v", tt.key, tt.display, got, tt.want)
		}
	}
}

func TestParseSearchData(t *testing.T) {
	entries, err := ParseSearchData("all", readTestdata(t, "docset/search/all_1.js"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	first := entries[0]
	if first.Key != "op_5fadr" || first.Section != "all" {
		t.Errorf("first entry = %+v", first)
	}
	want := Occurrence{
		DisplayName: "OP_adr",
		Anchor:      "dr__ir__opcodes__arm_8h.html#ac20110c7558676762c260b2ec020ef70",
		SourceLabel: "dr_ir_opcodes_arm.h",
	}
	if !reflect.DeepEqual(first.Occurrences, []Occurrence{want}) {
		t.Errorf("occurrences = %+v", first.Occurrences)
	}

	second := entries[1]
	if len(second.Occurrences) != 2 {
		t.Fatalf("got %d occurrences, want 2", len(second.Occurrences))
	}
	if second.Occurrences[1].Anchor != "dr__defines_8h.html#a6d5e4f" {
		t.Errorf("second occurrence anchor = %q", second.Occurrences[1].Anchor)
	}
}

func TestParseSearchDataGroups(t *testing.T) {
	// Overloads are grouped under one key with a separate name per group.
	src := []byte(`var searchData=
[
  ['init',['init',['../a.html#x',1,'ns&#160;a']],['Init',['../b.html#y',1,'b']]]
];`)
	entries, err := ParseSearchData("functions", src)
	if err != nil {
		t.Fatal(err)
	}
	occ := entries[0].Occurrences
	if len(occ) != 2 {
		t.Fatalf("got %d occurrences", len(occ))
	}
	if occ[0].SourceLabel != "ns a" {
		t.Errorf("scope = %q, want non-breaking space replaced", occ[0].SourceLabel)
	}
	if occ[1].DisplayName != "Init" {
		t.Errorf("second group name = %q", occ[1].DisplayName)
	}
}

func TestParseSearchDataErrors(t *testing.T) {
	tests := []string{
		`var other = [];`,
		`var searchData = {};`,
		`var searchData = [ ['k'] ];`,
		`var searchData = [ [1, ['N', ['u', 1, 's']]] ];`,
		`var searchData = [ ['k', 'N'] ];`,
		`var searchData = [ ['k', [1]] ];`,
		`var searchData = [ ['k', ['N', [2, 1, 's']]] ];`,
	}
	for _, src := range tests {
		if _, err := ParseSearchData("all", []byte(src)); err == nil {
			t.Errorf("ParseSearchData(%s): expected error", src)
		}
	}
}

func TestParseSearchSections(t *testing.T) {
	sections, err := ParseSearchSections(readTestdata(t, "docset/search/searchdata.js"))
	if err != nil {
		t.Fatal(err)
	}
	want := []SearchSection{
		{ID: 0, Name: "all", Label: "All", Letters: "do"},
		{ID: 1, Name: "functions", Label: "Functions", Letters: "d"},
	}
	if !reflect.DeepEqual(sections, want) {
		t.Errorf("sections = %+v", sections)
	}
	if got := sections[0].Files(); !reflect.DeepEqual(got, []string{"search/all_0.js", "search/all_1.js"}) {
		t.Errorf("Files() = %v", got)
	}
}

func TestParseSearchSectionsWithoutLabels(t *testing.T) {
	src := []byte(`var indexSectionsWithContent = { 0: "ab" };
var indexSectionNames = { 0: "enumvalues" };`)
	sections, err := ParseSearchSections(src)
	if err != nil {
		t.Fatal(err)
	}
	if sections[0].Label != "Enumvalues" {
		t.Errorf("label = %q", sections[0].Label)
	}
}

func TestSectionFiles(t *testing.T) {
	s := SearchSection{Name: "all", Letters: "abcdefghijklmnopq"}
	files := s.Files()
	if len(files) != 17 {
		t.Fatalf("got %d files", len(files))
	}
	if files[16] != "search/all_10.js" {
		t.Errorf("files[16] = %q, want hex numbering", files[16])
	}
}

func TestSectionFromFile(t *testing.T) {
	tests := []struct{ in, want string }{
		{"search/functions_1a.js", "functions"},
		{"search/enumvalues_0.js", "enumvalues"},
		{"all_0.js", "all"},
		{"search/searchdata.js", "all"},
		{"search/related_zz.js", "all"},
	}
	for _, tt := range tests {
		if got := SectionFromFile(tt.in); got != tt.want {
			t.Errorf("SectionFromFile(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
