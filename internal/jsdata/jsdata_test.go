package jsdata

import (
	"errors"
	"reflect"
	"testing"
)

const navtreeSample = `var NAVTREE =
[
  [ "DynamoRIO API", "index.html", [
    [ "DynamoRIO Extensions", "page_ext.html", "page_ext" ],
    [ "Files", null, [
      [ "File List", "files.html", "files" ]
    ] ],
    [ "DynamoRIO Home Page", "^http://www.dynamorio.org", null ]
  ] ]
];

var NAVTREEINDEX =
[
"API_BT.html",
"dr__events_8h.html#ac8f13d88a973780babf7fd223ffe8cb6"
];

var SYNCONMSG = 'click to disable panel synchronisation';
`

func TestParse_NavTree(t *testing.T) {
	t.Parallel()
	f, err := Parse([]byte(navtreeSample))
	if err != nil {
		t.Fatal(err)
	}

	wantNames := []string{"NAVTREE", "NAVTREEINDEX", "SYNCONMSG"}
	if !reflect.DeepEqual(f.Names, wantNames) {
		t.Errorf("names = %v, want %v", f.Names, wantNames)
	}

	tree, ok := f.Var("NAVTREE")
	if !ok {
		t.Fatal("NAVTREE missing")
	}
	root := tree.([]any)[0].([]any)
	if root[0] != "DynamoRIO API" || root[1] != "index.html" {
		t.Errorf("unexpected root: %v", root[:2])
	}
	children := root[2].([]any)
	if len(children) != 3 {
		t.Fatalf("got %d children, want 3", len(children))
	}
	files := children[1].([]any)
	if files[1] != nil {
		t.Errorf("category url = %v, want nil", files[1])
	}
	if children[0].([]any)[2] != "page_ext" {
		t.Errorf("child ref = %v, want page_ext", children[0].([]any)[2])
	}

	idx, _ := f.Var("NAVTREEINDEX")
	if got := len(idx.([]any)); got != 2 {
		t.Errorf("index len = %d, want 2", got)
	}

	msg, _ := f.Var("SYNCONMSG")
	if msg != "click to disable panel synchronisation" {
		t.Errorf("SYNCONMSG = %v", msg)
	}
}

func TestParse_SearchData(t *testing.T) {
	t.Parallel()
	src := `var searchData=
[
  ['op_5fadr',['OP_adr',['../dr__ir__opcodes__arm_8h.html#ac20110c7558676762c260b2ec020ef70',1,'dr_ir_opcodes_arm.h']]],
  ['abort_1',['abort',['../a.html#x',1,'abort(void)&#160;(Defined in drx.h)'],['../b.html#y',1,'']]],
];`
	f, err := Parse([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	data, _ := f.Var("searchData")
	entries := data.([]any)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	second := entries[1].([]any)
	occ := second[1].([]any)
	if len(occ) != 3 {
		t.Fatalf("got %d items in occurrence list, want 3", len(occ))
	}
	first := occ[1].([]any)
	if first[1] != float64(1) {
		t.Errorf("flag = %v (%T), want 1", first[1], first[1])
	}
}

func TestParse_ObjectKeys(t *testing.T) {
	t.Parallel()
	src := `var indexSectionNames =
{
  0: "all",
  1: "classes",
  'x': -2,
  y: true
};`
	f, err := Parse([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	obj, _ := f.Var("indexSectionNames")
	want := map[string]any{"0": "all", "1": "classes", "x": float64(-2), "y": true}
	if !reflect.DeepEqual(obj, want) {
		t.Errorf("got %v, want %v", obj, want)
	}
}

func TestParse_Comments(t *testing.T) {
	t.Parallel()
	src := "// generated\nvar a = [ /* inline */ 1, 2 ];\n"
	f, err := Parse([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	a, _ := f.Var("a")
	if !reflect.DeepEqual(a, []any{float64(1), float64(2)}) {
		t.Errorf("got %v", a)
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		src  string
	}{
		{"missing equals", `var a [1];`},
		{"unterminated array", `var a = [1, 2`},
		{"function call", `var a = foo(1);`},
		{"bad separator", `var a = [1 2];`},
		{"no name", `var = 1;`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			if err == nil {
				t.Fatal("expected error")
			}
			var se *SyntaxError
			if !errors.As(err, &se) {
				t.Errorf("expected *SyntaxError, got %T: %v", err, err)
			}
		})
	}
}

func TestUnquote(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{`"plain"`, "plain"},
		{`'single'`, "single"},
		{`'it\'s'`, "it's"},
		{`"a\"b"`, `a"b`},
		{`"tab\there"`, "tab\there"},
		{`"\x41"`, "A"},
		{`"\u00e9"`, "é"},
		{`"\u{1F600}"`, "😀"},
		{`"\uD83D\uDE00"`, "😀"},
		{`"back\\slash"`, `back\slash`},
	}
	for _, tt := range tests {
		got, err := Unquote(tt.in)
		if err != nil {
			t.Errorf("Unquote(%s): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Unquote(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{`"`, `"abc'`, `abc`, `"\x4"`, `"\u12"`} {
		if _, err := Unquote(bad); err == nil {
			t.Errorf("Unquote(%s): expected error", bad)
		}
	}
}

const legacySearchScript = `// Search script generated by doxygen
// Copyright (C) 2009 by Dimitri van Heesch.

var indexSectionsWithContent =
{
  0: "do",
  1: "d"
};

var indexSectionNames =
{
  0: "all",
  1: "functions"
};

function convertToId(search)
{
  var result = '';
  for (i=0;i<search.length;i++)
  {
    var c = search.charAt(i);
    var cn = c.charCodeAt(0);
    if (c.match(/[a-z0-9]/)) result+=c;
  }
  return result;
}

var searchBox = new SearchBox("searchBox", "search", false, 'Search');
`

func TestParseLeading(t *testing.T) {
	t.Parallel()
	f, err := ParseLeading([]byte(legacySearchScript))
	if err != nil {
		t.Fatal(err)
	}
	wantNames := []string{"indexSectionsWithContent", "indexSectionNames"}
	if !reflect.DeepEqual(f.Names, wantNames) {
		t.Errorf("names = %v, want %v", f.Names, wantNames)
	}
	names, _ := f.Var("indexSectionNames")
	want := map[string]any{"0": "all", "1": "functions"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("indexSectionNames = %#v", names)
	}

	if _, err := Parse([]byte(legacySearchScript)); err == nil {
		t.Error("Parse accepted a script with a function declaration")
	}

	f, err = ParseLeading([]byte("var a = [1];\nvar b = new Thing();\nvar c = 2;"))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(f.Names, []string{"a"}) {
		t.Errorf("names = %v, want [a]", f.Names)
	}
}
