package search

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/jcdickinson/doxnav/internal/db"
	"github.com/jcdickinson/doxnav/internal/doxygen"
	md "github.com/jcdickinson/doxnav/internal/markdown"
	"github.com/jcdickinson/doxnav/internal/rpc"
)

// Scores for each kind of lexical match.
const (
	ScoreExact     = 1.0
	ScorePrefix    = 0.75
	ScoreSubstring = 0.5
)

func score(m doxygen.MatchKind) float64 {
	switch m {
	case doxygen.MatchExact:
		return ScoreExact
	case doxygen.MatchPrefix:
		return ScorePrefix
	}
	return ScoreSubstring
}

func matchOf(score float64) doxygen.MatchKind {
	switch {
	case score >= ScoreExact:
		return doxygen.MatchExact
	case score >= ScorePrefix:
		return doxygen.MatchPrefix
	}
	return doxygen.MatchSubstring
}

type Searcher struct {
	db           *db.DB
	defaultLimit int
}

func NewSearcher(database *db.DB, defaultLimit int) *Searcher {
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	return &Searcher{db: database, defaultLimit: defaultLimit}
}

// Search ranks stored occurrences across docsets. Exact matches come before
// prefix matches, which come before other substring matches; ties go to the
// shorter name, then to index order. req.Match narrows the accepted kinds.
func (s *Searcher) Search(req rpc.SearchRequest) ([]rpc.SymbolResult, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	min, err := doxygen.ParseMatchKind(req.Match)
	if err != nil {
		return nil, err
	}
	q := doxygen.NormalizeKey(strings.TrimSpace(req.Query))
	slog.Info("search", "query", req.Query, "normalized", q, "match", min, "limit", limit, "docsets", req.DocSets, "sections", req.Sections)
	if q == "" {
		return nil, nil
	}

	found, err := s.db.SearchOccurrences(q, min, req.DocSets, req.Sections, limit)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	slog.Debug("search done", "results", len(found))

	results := make([]rpc.SymbolResult, 0, len(found))
	for _, o := range found {
		results = append(results, rpc.SymbolResult{
			URI:     md.URI(o.DocSet, o.Anchor),
			DocSet:  o.DocSet,
			Name:    o.DisplayName,
			Section: o.Section,
			Anchor:  o.Anchor,
			Match:   matchOf(o.Score).String(),
			Score:   o.Score,
			Snippet: o.SourceLabel,
		})
	}
	return results, nil
}

// SearchDocSet ranks the hits of an in-memory docset the same way Search
// ranks stored ones. An empty sections list searches all sections. Exact
// mode also accepts a raw Doxygen key such as "drmgr_5finit".
func SearchDocSet(d *doxygen.DocSet, query string, min doxygen.MatchKind, sections []string, limit int) []rpc.SymbolResult {
	var found []doxygen.Hit
	switch min {
	case doxygen.MatchExact:
		found = lookupHits(d, query)
	case doxygen.MatchPrefix:
		found = d.SearchPrefix(query)
	default:
		found = d.SearchSubstring(query)
	}

	var hits []doxygen.Hit
	for _, h := range found {
		if len(sections) == 0 || slices.Contains(sections, h.Section) {
			hits = append(hits, h)
		}
	}
	return Rank(d.Name, hits, limit)
}

func lookupHits(d *doxygen.DocSet, query string) []doxygen.Hit {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil
	}
	var hits []doxygen.Hit
	for _, e := range d.Lookup(q) {
		for _, occ := range e.Occurrences {
			hits = append(hits, doxygen.Hit{Occurrence: occ, Key: e.Key, Section: e.Section, Match: doxygen.MatchExact})
		}
	}
	return hits
}

// Rank orders hits by match kind and name length, keeping input order
// among equals, and reports each anchor once. When the same anchor appears
// under several sections the specific section wins over "all".
func Rank(docset string, hits []doxygen.Hit, limit int) []rpc.SymbolResult {
	best := make(map[string]int, len(hits))
	var order []int
	for i, h := range hits {
		j, ok := best[h.Anchor]
		if !ok {
			best[h.Anchor] = len(order)
			order = append(order, i)
			continue
		}
		if hits[order[j]].Section == "all" && h.Section != "all" {
			order[j] = i
		}
	}

	slices.SortStableFunc(order, func(a, b int) int {
		ha, hb := hits[a], hits[b]
		if ha.Match != hb.Match {
			return int(hb.Match) - int(ha.Match)
		}
		if la, lb := len(ha.DisplayName), len(hb.DisplayName); la != lb {
			return la - lb
		}
		return a - b
	})
	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}

	results := make([]rpc.SymbolResult, 0, len(order))
	for _, i := range order {
		h := hits[i]
		results = append(results, rpc.SymbolResult{
			URI:     md.URI(docset, h.Anchor),
			DocSet:  docset,
			Name:    h.DisplayName,
			Section: h.Section,
			Anchor:  h.Anchor,
			Match:   h.Match.String(),
			Score:   score(h.Match),
			Snippet: h.SourceLabel,
		})
	}
	return results
}
