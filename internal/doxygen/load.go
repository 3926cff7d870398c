package doxygen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

const (
	navTreeFile     = "navtreedata.js"
	searchDataFile  = "search/searchdata.js"
	searchJSFile    = "search/search.js"
	searchGlob      = "search/*.js"
	defaultParallel = 8
)

// LoadOptions tune Load.
type LoadOptions struct {
	// Concurrency bounds parallel fetches. Zero means 8.
	Concurrency int
	// Progress receives human readable status lines.
	Progress func(string)
	// OnFile is called with every file fetched. It may be called from
	// several goroutines at once.
	OnFile func(name string, data []byte)
	// HTMLFallback fetches a page's HTML to build its outline when the
	// outline script is missing.
	HTMLFallback bool
}

// Load reads a docset from src. The navigation tree is required; outline
// scripts, search data and index partitions are optional and their absence
// is recorded in DocSet.Warnings.
func Load(ctx context.Context, src Source, name string, opts LoadOptions) (*DocSet, error) {
	l := &loader{
		src:  src,
		opts: opts,
		ds: &DocSet{
			Name:       name,
			BaseURL:    src.String(),
			Partitions: make(map[int]NavIndexPartition),
			Outlines:   make(map[string]*PageOutline),
		},
	}
	if l.opts.Concurrency <= 0 {
		l.opts.Concurrency = defaultParallel
	}

	l.progress(fmt.Sprintf("fetching %s from %s", navTreeFile, src))
	data, err := l.fetch(ctx, navTreeFile)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", name, err)
	}
	root, index, err := ParseNavTree(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", name, err)
	}
	l.ds.Root = root
	l.ds.Index = index

	if err := l.expandOutlines(ctx); err != nil {
		return nil, err
	}
	if err := l.loadSearch(ctx); err != nil {
		return nil, err
	}
	if err := l.loadPartitions(ctx); err != nil {
		return nil, err
	}

	l.progress(fmt.Sprintf("loaded %s: %d outlines, %d search keys, %d index partitions, %d warnings",
		name, len(l.ds.Outlines), len(l.ds.Search), len(l.ds.Partitions), len(l.ds.Warnings)))
	return l.ds, nil
}

type loader struct {
	src  Source
	opts LoadOptions
	ds   *DocSet

	mu sync.Mutex
}

func (l *loader) progress(msg string) {
	if l.opts.Progress != nil {
		l.opts.Progress(msg)
	}
}

func (l *loader) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	slog.Warn("docset load", "docset", l.ds.Name, "warning", msg)
	l.mu.Lock()
	l.ds.Warnings = append(l.ds.Warnings, msg)
	l.mu.Unlock()
}

func (l *loader) fetch(ctx context.Context, name string) ([]byte, error) {
	data, err := l.src.Fetch(ctx, name)
	if err != nil {
		return nil, err
	}
	if l.opts.OnFile != nil {
		l.opts.OnFile(name, data)
	}
	return data, nil
}

// fetchOptional fetches name, recording a warning and returning nil when
// the file is missing or unreadable. Only cancellation is an error.
func (l *loader) fetchOptional(ctx context.Context, name string) ([]byte, error) {
	data, err := l.fetch(ctx, name)
	if err == nil {
		return data, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(err, ErrNotFound) {
		l.warn("missing %s", name)
	} else {
		l.warn("%v", err)
	}
	return nil, nil
}

// expandOutlines resolves lazily referenced child lists breadth first.
// Each script is fetched once; nodes that reference an already expanded
// script share its nodes.
func (l *loader) expandOutlines(ctx context.Context) error {
	expanded := make(map[string][]*NavNode)
	frontier := pendingRefs(l.ds.Root)

	for depth := 0; len(frontier) > 0; depth++ {
		refs := make([]string, 0, len(frontier))
		for ref, owners := range frontier {
			if nodes, ok := expanded[ref]; ok {
				for _, owner := range owners {
					if attachOutline(owner, nodes) {
						l.addOutline(owner, ref, nodes)
					}
				}
				continue
			}
			refs = append(refs, ref)
		}
		sort.Strings(refs)
		if len(refs) == 0 {
			break
		}
		l.progress(fmt.Sprintf("expanding %d outline scripts at depth %d", len(refs), depth))

		children := make(map[string][]*NavNode, len(refs))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(l.opts.Concurrency)
		for _, ref := range refs {
			g.Go(func() error {
				nodes, err := l.loadOutline(gctx, ref, frontier[ref])
				if err != nil {
					return err
				}
				l.mu.Lock()
				children[ref] = nodes
				l.mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("expanding outlines: %w", err)
		}

		next := make(map[string][]*NavNode)
		for _, ref := range refs {
			nodes := children[ref]
			expanded[ref] = nodes
			if nodes == nil {
				continue
			}
			for _, owner := range frontier[ref] {
				if attachOutline(owner, nodes) {
					l.addOutline(owner, ref, nodes)
				}
			}
			for _, n := range nodes {
				for r, owners := range pendingRefs(n) {
					next[r] = append(next[r], owners...)
				}
			}
		}
		frontier = next
	}
	return nil
}

// attachOutline gives owner the nodes of its referenced script unless that
// would make owner its own descendant.
func attachOutline(owner *NavNode, nodes []*NavNode) bool {
	if len(nodes) == 0 {
		return false
	}
	cyclic := false
	for _, n := range nodes {
		Walk(n, func(node *NavNode, _ []int, _ []string) bool {
			if node == owner {
				cyclic = true
			}
			return !cyclic
		})
	}
	if cyclic {
		return false
	}
	owner.Children = nodes
	return true
}

// loadOutline fetches one outline script. A missing or malformed script
// yields no nodes; with HTMLFallback the owning page's headings stand in.
func (l *loader) loadOutline(ctx context.Context, ref string, owners []*NavNode) ([]*NavNode, error) {
	data, err := l.fetchOptional(ctx, ref+".js")
	if err != nil {
		return nil, err
	}
	if data != nil {
		nodes, err := ParseOutlineNodes(ref, data)
		if err == nil {
			return nodes, nil
		}
		l.warn("%v", err)
	}

	if !l.opts.HTMLFallback || len(owners) == 0 || owners[0].URL == "" || owners[0].External {
		return nil, nil
	}
	page, _ := SplitAnchor(owners[0].URL)
	html, err := l.fetchOptional(ctx, page)
	if err != nil || html == nil {
		return nil, err
	}
	outline, err := OutlineFromHTML(PageID(page), html)
	if err != nil {
		l.warn("%v", err)
		return nil, nil
	}
	l.mu.Lock()
	if _, ok := l.ds.Outlines[outline.PageID]; !ok {
		if outline.Title == "" {
			outline.Title = owners[0].Label
		}
		l.ds.Outlines[outline.PageID] = outline
	}
	l.mu.Unlock()
	return nil, nil
}

func (l *loader) addOutline(owner *NavNode, ref string, nodes []*NavNode) {
	id := ref
	if owner.URL != "" && !owner.External {
		id = PageID(owner.URL)
	}
	if _, ok := l.ds.Outlines[id]; ok {
		return
	}
	l.ds.Outlines[id] = NewOutline(id, owner.Label, nodes)
}

// pendingRefs collects the nodes below n whose child list is still an
// unexpanded script reference, grouped by script.
func pendingRefs(n *NavNode) map[string][]*NavNode {
	refs := make(map[string][]*NavNode)
	Walk(n, func(node *NavNode, _ []int, _ []string) bool {
		if node.ChildRef != "" && len(node.Children) == 0 {
			refs[node.ChildRef] = append(refs[node.ChildRef], node)
		}
		return true
	})
	return refs
}

// loadSearch reads the search sections and every fragment they list. When
// searchdata.js is absent the tables are read from search/search.js, and
// failing that a listable source is globbed for fragments.
func (l *loader) loadSearch(ctx context.Context) error {
	data, err := l.fetchOptional(ctx, searchDataFile)
	if err != nil {
		return err
	}
	parseSections := ParseSearchSections
	if data == nil {
		data, err = l.fetchLegacySearch(ctx)
		if err != nil {
			return err
		}
		parseSections = ParseLegacySearchSections
	}

	var files []string
	if data != nil {
		sections, err := parseSections(data)
		if err != nil {
			l.warn("%v", err)
		}
		l.ds.Sections = sections
		for _, s := range sections {
			files = append(files, s.Files()...)
		}
	}
	if lister, ok := l.src.(Lister); ok && len(files) == 0 {
		files, err = lister.Glob(searchGlob)
		if err != nil {
			l.warn("listing search fragments: %v", err)
		}
		files = filterFragments(files)
		l.ds.Sections = sectionsFromFiles(files)
	}
	if len(files) == 0 {
		return nil
	}

	l.progress(fmt.Sprintf("fetching %d search fragments", len(files)))
	results := make([][]SearchEntry, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Concurrency)
	for i, file := range files {
		g.Go(func() error {
			data, err := l.fetchOptional(gctx, file)
			if err != nil || data == nil {
				return err
			}
			entries, err := ParseSearchData(SectionFromFile(file), data)
			if err != nil {
				l.warn("%s: %v", file, err)
				return nil
			}
			results[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("loading search data: %w", err)
	}
	for _, entries := range results {
		l.ds.Search = append(l.ds.Search, entries...)
	}
	return nil
}

// fetchLegacySearch fetches search/search.js when it carries the section
// tables. Its absence is not worth a second warning.
func (l *loader) fetchLegacySearch(ctx context.Context) ([]byte, error) {
	data, err := l.fetch(ctx, searchJSFile)
	switch {
	case err == nil:
		if !bytes.Contains(data, []byte(sectionsNamesVar)) {
			return nil, nil
		}
		return data, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, ErrNotFound):
		return nil, nil
	}
	l.warn("%v", err)
	return nil, nil
}

func filterFragments(files []string) []string {
	out := files[:0]
	for _, f := range files {
		if f == searchDataFile || strings.HasSuffix(f, "/search.js") {
			continue
		}
		out = append(out, f)
	}
	return out
}

func sectionsFromFiles(files []string) []SearchSection {
	var sections []SearchSection
	seen := make(map[string]bool)
	for _, f := range files {
		name := SectionFromFile(f)
		if seen[name] {
			continue
		}
		seen[name] = true
		sections = append(sections, SearchSection{ID: len(sections), Name: name, Label: SectionLabel(name)})
	}
	return sections
}

// loadPartitions reads every navtreeindex partition named by the index.
func (l *loader) loadPartitions(ctx context.Context) error {
	if len(l.ds.Index) == 0 {
		return nil
	}
	l.progress(fmt.Sprintf("fetching %d navtree index partitions", len(l.ds.Index)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Concurrency)
	for i := range l.ds.Index {
		g.Go(func() error {
			file := PartitionFile(i)
			data, err := l.fetchOptional(gctx, file)
			if err != nil || data == nil {
				return err
			}
			part, err := ParseNavIndexPartition(i, data)
			if err != nil {
				l.warn("%v", err)
				return nil
			}
			l.mu.Lock()
			l.ds.Partitions[i] = part
			l.mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("loading navtree index: %w", err)
	}
	return nil
}
