package doxygen

import (
	"fmt"
	"sort"

	"github.com/jcdickinson/doxnav/internal/jsdata"
)

// Partition returns the navtreeindex file that holds anchor: the last
// partition whose first anchor sorts at or before it. Anchors sorting before
// every partition fall back to partition 0, matching Doxygen's viewer.
func (idx NavIndex) Partition(anchor string) int {
	if len(idx) == 0 {
		return -1
	}
	i := sort.Search(len(idx), func(j int) bool { return idx[j] > anchor }) - 1
	if i < 0 {
		return 0
	}
	return i
}

// PartitionFile names the script holding partition i.
func PartitionFile(i int) string {
	return fmt.Sprintf("navtreeindex%d.js", i)
}

// ParseNavIndexPartition decodes navtreeindex<i>.js, an object mapping
// anchors to index paths into the tree.
func ParseNavIndexPartition(i int, src []byte) (NavIndexPartition, error) {
	f, err := jsdata.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parsing navtree index %d: %w", i, err)
	}
	name := fmt.Sprintf("%s%d", navIndexVar, i)
	raw, ok := f.Var(name)
	if !ok {
		return nil, fmt.Errorf("navtree index %d has no %s variable", i, name)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected object, got %T", name, raw)
	}

	part := make(NavIndexPartition, len(obj))
	for anchor, v := range obj {
		list, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%s[%q]: expected array, got %T", name, anchor, v)
		}
		path := make([]int, len(list))
		for j, n := range list {
			num, ok := n.(float64)
			if !ok || num < 0 || num != float64(int(num)) {
				return nil, fmt.Errorf("%s[%q]: invalid path element %v", name, anchor, n)
			}
			path[j] = int(num)
		}
		part[anchor] = path
	}
	return part, nil
}

// Sorted reports whether the index is in non-decreasing order, which
// Partition relies on.
func (idx NavIndex) Sorted() bool {
	return sort.StringsAreSorted(idx)
}
