package markdown

import (
	"fmt"
	"strings"

	"github.com/jcdickinson/doxnav/internal/doxygen"
)

const uriPrefix = "doxnav://"

// URI builds the doxnav:// address of a Doxygen target such as
// "page_ext.html#sec_drx" within docset.
func URI(docset, target string) string {
	page, frag := doxygen.SplitAnchor(doxygen.NormalizeAnchor(target))
	u := uriPrefix + docset + "/" + strings.TrimSuffix(page, ".html")
	if frag != "" {
		u += "#" + frag
	}
	return u
}

// ParseURI splits a doxnav:// URI into docset, page id and fragment.
func ParseURI(uri string) (docset, page, fragment string, err error) {
	rest, ok := strings.CutPrefix(uri, uriPrefix)
	if !ok {
		return "", "", "", fmt.Errorf("not a doxnav URI: %q", uri)
	}
	rest, fragment, _ = strings.Cut(rest, "#")
	docset, page, _ = strings.Cut(rest, "/")
	if docset == "" || page == "" {
		return "", "", "", fmt.Errorf("doxnav URI %q needs a docset and a page", uri)
	}
	return docset, page, fragment, nil
}

// Target converts a page id and fragment back into the Doxygen URL form.
func Target(page, fragment string) string {
	t := page
	if !strings.HasSuffix(t, ".html") {
		t += ".html"
	}
	if fragment != "" {
		t += "#" + fragment
	}
	return t
}

// isDocLink reports whether dest points at a page of the docset itself.
func isDocLink(dest string) bool {
	if dest == "" || strings.HasPrefix(dest, "#") || strings.Contains(dest, ":") {
		return false
	}
	page, _ := doxygen.SplitAnchor(dest)
	return strings.HasSuffix(page, ".html")
}
