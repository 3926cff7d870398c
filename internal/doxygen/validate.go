package doxygen

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// Validate checks the structural invariants of a loaded docset and returns
// every violation found, combined with multierr. A nil result means the
// docset is sound.
func Validate(d *DocSet) error {
	var err error
	if d.Root == nil {
		return fmt.Errorf("docset %s has no navigation tree", d.Name)
	}
	err = multierr.Append(err, validateTree(d.Root))

	for i, a := range d.Index {
		if a == "" {
			err = multierr.Append(err, fmt.Errorf("navindex[%d]: empty anchor", i))
		}
	}
	if !d.Index.Sorted() {
		err = multierr.Append(err, fmt.Errorf("navindex is not sorted; partition lookup is unreliable"))
	}

	for id, o := range d.Outlines {
		err = multierr.Append(err, validateSections(id, o.Sections))
	}

	for _, e := range d.Search {
		err = multierr.Append(err, validateEntry(e))
	}
	return err
}

// validateTree checks anchors and that the tree is finite and acyclic: no
// node may appear twice on the path from the root.
func validateTree(root *NavNode) error {
	var err error
	onPath := make(map[*NavNode]bool)
	var visit func(n *NavNode, crumbs []string)
	visit = func(n *NavNode, crumbs []string) {
		where := strings.Join(crumbs, " > ")
		if onPath[n] {
			err = multierr.Append(err, fmt.Errorf("tree cycle at %q", where))
			return
		}
		onPath[n] = true
		defer delete(onPath, n)

		if n.URL == "" && n.ChildRef == "" && len(n.Children) == 0 {
			err = multierr.Append(err, fmt.Errorf("node %q has neither anchor nor children", where))
		}
		if n.External && n.URL == "" {
			err = multierr.Append(err, fmt.Errorf("node %q: empty external link", where))
		}
		for i, c := range n.Children {
			if c == nil {
				err = multierr.Append(err, fmt.Errorf("node %q: nil child %d", where, i))
				continue
			}
			visit(c, append(append([]string(nil), crumbs...), c.Label))
		}
	}
	for _, top := range TopLevel(root) {
		if top != nil {
			visit(top, []string{top.Label})
		}
	}
	return err
}

func validateSections(pageID string, sections []Section) error {
	var err error
	for _, s := range sections {
		if s.Anchor == "" && len(s.Children) == 0 && s.Ref == "" {
			err = multierr.Append(err, fmt.Errorf("outline %s: section %q has no anchor", pageID, s.Heading))
		}
		err = multierr.Append(err, validateSections(pageID, s.Children))
	}
	return err
}

func validateEntry(e SearchEntry) error {
	if e.Key == "" {
		return fmt.Errorf("search entry with empty key")
	}
	if len(e.Occurrences) == 0 {
		return fmt.Errorf("search key %q has no occurrences", e.Key)
	}
	var err error
	for i, occ := range e.Occurrences {
		if occ.Anchor == "" {
			err = multierr.Append(err, fmt.Errorf("search key %q occurrence %d: empty target URL", e.Key, i))
		}
	}
	if !KeyMatches(e.Key, e.Occurrences[0].DisplayName) {
		err = multierr.Append(err, fmt.Errorf("search key %q does not match display name %q", e.Key, e.Occurrences[0].DisplayName))
	}
	return err
}

// Problems flattens a Validate result into one message per violation.
func Problems(err error) []string {
	errs := multierr.Errors(err)
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Error()
	}
	return out
}
