package doxygen

import "testing"

func TestOutlineFromHTML(t *testing.T) {
	o, err := OutlineFromHTML("page_tool", readTestdata(t, "docset/page_tool.html"))
	if err != nil {
		t.Fatal(err)
	}
	if o.PageID != "page_tool" {
		t.Errorf("page id = %q", o.PageID)
	}
	if o.Title != "DynamoRIO-Based Tools" {
		t.Errorf("title = %q", o.Title)
	}
	if len(o.Sections) != 2 {
		t.Fatalf("got %d top sections, want 2: %+v", len(o.Sections), o.Sections)
	}

	first := o.Sections[0]
	if first.Heading != "Dr. Memory Memory Debugger" || first.Anchor != "page_tool.html#sec_drmemory" {
		t.Errorf("first section = %+v", first)
	}
	if len(first.Children) != 1 || first.Children[0].Anchor != "page_tool.html#sec_drmemory_usage" {
		t.Errorf("nested sections = %+v", first.Children)
	}

	// The anchor precedes the heading instead of being nested in it.
	second := o.Sections[1]
	if second.Heading != "Code Coverage Tool" || second.Anchor != "page_tool.html#sec_drcov" {
		t.Errorf("second section = %+v", second)
	}
}

func TestOutlineFromHTMLTitleFallback(t *testing.T) {
	src := []byte(`<html><head><title>Proj: Some Page</title></head><body><h2 id="x">Only</h2></body></html>`)
	o, err := OutlineFromHTML("some", src)
	if err != nil {
		t.Fatal(err)
	}
	if o.Title != "Some Page" {
		t.Errorf("title = %q", o.Title)
	}
	if len(o.Sections) != 1 || o.Sections[0].Anchor != "some.html#x" {
		t.Errorf("sections = %+v", o.Sections)
	}
}
