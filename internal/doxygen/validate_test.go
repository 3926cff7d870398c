package doxygen

import (
	"strings"
	"testing"
)

func TestValidateClean(t *testing.T) {
	if err := Validate(testDocSet()); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidateFindings(t *testing.T) {
	d := testDocSet()
	d.Index = NavIndex{"page_ext.html", "", "index.html"}
	d.Search = append(d.Search,
		SearchEntry{Key: "empty_5focc"},
		SearchEntry{Key: "bad_5furl", Occurrences: []Occurrence{{DisplayName: "bad_url"}}},
		SearchEntry{Key: "mismatch", Occurrences: []Occurrence{{DisplayName: "other", Anchor: "x.html"}}},
	)
	d.Root.Children = append(d.Root.Children, &NavNode{Label: "Dangling"})

	problems := Problems(Validate(d))
	want := []string{
		`node "DynamoRIO > Dangling" has neither anchor nor children`,
		"navindex[1]: empty anchor",
		"navindex is not sorted",
		`search key "empty_5focc" has no occurrences`,
		`search key "bad_5furl" occurrence 0: empty target URL`,
		`search key "mismatch" does not match display name "other"`,
	}
	if len(problems) != len(want) {
		t.Fatalf("got %d problems, want %d:\n%s", len(problems), len(want), strings.Join(problems, "\n"))
	}
	for i, w := range want {
		if !strings.Contains(problems[i], w) {
			t.Errorf("problem %d = %q, want it to contain %q", i, problems[i], w)
		}
	}
}

func TestValidateCycle(t *testing.T) {
	d := testDocSet()
	ext := d.Root.Children[1]
	ext.Children = append(ext.Children, d.Root)

	problems := Problems(Validate(d))
	found := false
	for _, p := range problems {
		if strings.Contains(p, "tree cycle") {
			found = true
		}
	}
	if !found {
		t.Errorf("cycle not reported: %v", problems)
	}
}

func TestValidateNoTree(t *testing.T) {
	if err := Validate(&DocSet{Name: "x"}); err == nil {
		t.Error("expected error for docset without tree")
	}
}

func TestValidateOutlineSections(t *testing.T) {
	d := testDocSet()
	d.Outlines["p"] = &PageOutline{PageID: "p", Sections: []Section{{Heading: "Lost"}}}
	problems := Problems(Validate(d))
	if len(problems) != 1 || !strings.Contains(problems[0], `section "Lost" has no anchor`) {
		t.Errorf("problems = %v", problems)
	}
}
