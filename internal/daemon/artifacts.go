package daemon

import (
	"context"
	"fmt"
	"path"
	"sort"

	"github.com/jcdickinson/doxnav/internal/cas"
	"github.com/jcdickinson/doxnav/internal/doxygen"
)

// artifactSource serves the raw files recorded for a docset at ingest time
// out of the CAS, so a docset can be re-parsed without the original location.
type artifactSource struct {
	name  string
	files map[string]string
}

func (a artifactSource) String() string { return "cas:" + a.name }

func (a artifactSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hash, ok := a.files[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, doxygen.ErrNotFound)
	}
	return cas.Read(hash)
}

func (a artifactSource) Glob(pattern string) ([]string, error) {
	var out []string
	for name := range a.files {
		ok, err := path.Match(pattern, name)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// complete reports whether every recorded artifact is still in the CAS.
func (a artifactSource) complete() bool {
	if _, ok := a.files["navtreedata.js"]; !ok {
		return false
	}
	for _, hash := range a.files {
		if !cas.Has(hash) {
			return false
		}
	}
	return true
}
