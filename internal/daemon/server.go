package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jcdickinson/doxnav/internal/cas"
	"github.com/jcdickinson/doxnav/internal/config"
	"github.com/jcdickinson/doxnav/internal/db"
	"github.com/jcdickinson/doxnav/internal/doxygen"
	md "github.com/jcdickinson/doxnav/internal/markdown"
	"github.com/jcdickinson/doxnav/internal/rpc"
	"github.com/jcdickinson/doxnav/internal/search"
	"github.com/jcdickinson/doxnav/internal/snapshot"
	"golang.org/x/sync/singleflight"
)

var errUnknownDocSet = errors.New("unknown docset")

type Server struct {
	db         *db.DB
	searcher   *search.Searcher
	cfg        *config.Config
	socketPath string
	httpServer *http.Server
	listener   net.Listener
	router     chi.Router

	mu         sync.Mutex
	expTimer   *time.Timer
	expiration time.Duration
	exit       func()

	addGroup singleflight.Group

	docsets   map[string]*doxygen.DocSet
	docsetsMu sync.RWMutex
}

func NewServer(cfg *config.Config, database *db.DB, socketPath string) *Server {
	expSec := cfg.Daemon.ExpirationSeconds
	if expSec <= 0 {
		expSec = 600
	}

	s := &Server{
		db:         database,
		searcher:   search.NewSearcher(database, cfg.Search.DefaultLimit),
		cfg:        cfg,
		socketPath: socketPath,
		expiration: time.Duration(expSec) * time.Second,
		exit:       func() { os.Exit(0) },
		docsets:    make(map[string]*doxygen.DocSet),
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(requestLogger)

	r.Group(func(r chi.Router) {
		r.Use(s.expReset)

		r.Post("/add-docsets", s.handleAddDocSets)
		r.Post("/search", s.handleSearch)
		r.Post("/get-page", s.handleGetPage)
		r.Post("/tree", s.handleTree)
		r.Post("/locate", s.handleLocate)
		r.Get("/status", s.handleStatus)
		r.Post("/clear-cache", s.handleClearCache)
	})
	r.Post("/shutdown", s.handleShutdown)

	s.router = r
}

// requestLogger keeps the wrapped writer flushable so NDJSON progress
// streams through it.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) Start(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0755); err != nil {
		return fmt.Errorf("creating socket directory: %w", err)
	}
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("setting socket permissions: %w", err)
	}
	s.listener = listener

	s.httpServer = &http.Server{Handler: s}

	s.mu.Lock()
	s.expTimer = time.AfterFunc(s.expiration, s.expire)
	s.mu.Unlock()

	slog.Info("daemon listening", "socket", s.socketPath, "expiration", s.expiration)

	if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			slog.Error("shutdown error", "error", err)
			errs = append(errs, err)
		}
	}
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			slog.Error("listener close error", "error", err)
			errs = append(errs, err)
		}
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		slog.Error("socket remove error", "error", err)
		errs = append(errs, err)
	}
	if err := s.db.Close(); err != nil {
		slog.Error("db close error", "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Server) expire() {
	slog.Info("expiring due to inactivity")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(ctx)
	s.exit()
}

func (s *Server) resetExpiration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expTimer != nil {
		s.expTimer.Stop()
		s.expTimer.Reset(s.expiration)
	}
}

func (s *Server) expReset(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.resetExpiration()
		next.ServeHTTP(w, r)
	})
}

// --- Docset cache ---

// getDocSet returns a parsed docset, checking memory, then the on-disk
// snapshot, then the rows stored in the database.
func (s *Server) getDocSet(name string) (*doxygen.DocSet, *db.DocSet, error) {
	row, err := s.db.GetDocSet(name)
	if err != nil {
		return nil, nil, err
	}
	if row == nil {
		return nil, nil, fmt.Errorf("%w %q", errUnknownDocSet, name)
	}
	if err := s.db.TouchDocSet(row.ID); err != nil {
		slog.Warn("touching docset", "docset", name, "error", err)
	}

	s.docsetsMu.RLock()
	d, ok := s.docsets[name]
	s.docsetsMu.RUnlock()
	if ok {
		return d, row, nil
	}

	d, err = snapshot.Load(name)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("unreadable snapshot, rebuilding", "docset", name, "error", err)
		}
		d, err = s.rebuildDocSet(row)
		if err != nil {
			return nil, nil, err
		}
	}

	s.docsetsMu.Lock()
	s.docsets[name] = d
	s.docsetsMu.Unlock()
	return d, row, nil
}

// rebuildDocSet re-parses a docset from its stored artifacts, falling back
// to the tree and index rows when the CAS no longer holds them.
func (s *Server) rebuildDocSet(row *db.DocSet) (*doxygen.DocSet, error) {
	files, err := s.db.Artifacts(row.ID)
	if err != nil {
		return nil, err
	}
	src := artifactSource{name: row.Name, files: files}
	if src.complete() {
		slog.Warn("no usable snapshot, re-parsing stored artifacts", "docset", row.Name)
		d, err := doxygen.Load(context.Background(), src, row.Name, doxygen.LoadOptions{
			Concurrency:  s.cfg.Fetch.Concurrency,
			HTMLFallback: s.cfg.Fetch.HTMLFallback,
		})
		if err == nil {
			d.BaseURL = row.BaseURL
			d.Artifacts = files
			if err := snapshot.Save(d); err != nil {
				slog.Warn("failed to save snapshot", "docset", row.Name, "error", err)
			}
			return d, nil
		}
		slog.Warn("re-parsing artifacts failed", "docset", row.Name, "error", err)
	}

	slog.Warn("no usable snapshot, rebuilding from database", "docset", row.Name)
	return s.docSetFromDB(row)
}

// docSetFromDB rebuilds the tree and index of a docset. Outlines and nav
// paths stay in the database and are read on demand.
func (s *Server) docSetFromDB(row *db.DocSet) (*doxygen.DocSet, error) {
	root, err := s.db.LoadNavTree(row.ID)
	if err != nil {
		return nil, err
	}
	index, err := s.db.LoadNavIndex(row.ID)
	if err != nil {
		return nil, err
	}
	return &doxygen.DocSet{Name: row.Name, BaseURL: row.BaseURL, Root: root, Index: index}, nil
}

func (s *Server) cacheDocSet(d *doxygen.DocSet) {
	s.docsetsMu.Lock()
	defer s.docsetsMu.Unlock()
	s.docsets[d.Name] = d
}

func (s *Server) isCached(name string) bool {
	s.docsetsMu.RLock()
	defer s.docsetsMu.RUnlock()
	_, ok := s.docsets[name]
	return ok
}

func (s *Server) dropCached(names []string) int {
	s.docsetsMu.Lock()
	defer s.docsetsMu.Unlock()
	if len(names) == 0 {
		n := len(s.docsets)
		s.docsets = make(map[string]*doxygen.DocSet)
		return n
	}
	n := 0
	for _, name := range names {
		if _, ok := s.docsets[name]; ok {
			delete(s.docsets, name)
			n++
		}
	}
	return n
}

// --- Ingest ---

func (s *Server) handleAddDocSets(w http.ResponseWriter, r *http.Request) {
	var req rpc.AddDocSetsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	send := func(line rpc.ProgressLine) bool {
		if line.Message != "" {
			slog.Info("ingest", "message", line.Message)
		}
		if err := enc.Encode(line); err != nil {
			slog.Warn("client disconnected", "error", err)
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}

	for _, spec := range req.DocSets {
		progress := func(msg string) {
			send(rpc.ProgressLine{Type: "progress", Message: msg})
		}
		result := s.addDocSet(r.Context(), spec, req.Refresh, progress)
		if !send(rpc.ProgressLine{Type: "result", Result: &result}) {
			return
		}
	}
}

func (s *Server) addDocSet(ctx context.Context, spec rpc.DocSetSpec, refresh bool, progress func(string)) rpc.DocSetResult {
	result := rpc.DocSetResult{Name: spec.Name}
	if err := doxygen.ValidName(spec.Name); err != nil {
		result.Error = err.Error()
		return result
	}

	if !refresh {
		existing, err := s.db.GetDocSet(spec.Name)
		if err != nil {
			result.Error = err.Error()
			return result
		}
		if existing != nil && existing.ProcessedAt != nil {
			if d, _, err := s.getDocSet(spec.Name); err == nil {
				return summarize(d)
			}
		}
	}
	if spec.Location == "" {
		result.Error = fmt.Sprintf("docset %s is not stored and no location was given", spec.Name)
		return result
	}

	// Singleflight: concurrent requests for one docset share a single ingest.
	// The ingest outlives a disconnecting client, like the work it replaces.
	v, _, _ := s.addGroup.Do(spec.Name, func() (interface{}, error) {
		return s.ingest(context.WithoutCancel(ctx), spec, progress), nil
	})
	return v.(rpc.DocSetResult)
}

func (s *Server) ingest(ctx context.Context, spec rpc.DocSetSpec, progress func(string)) rpc.DocSetResult {
	result := rpc.DocSetResult{Name: spec.Name}

	src, err := doxygen.OpenSource(spec.Location, s.cfg.Fetch)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	var artifactsMu sync.Mutex
	artifacts := make(map[string]string)
	progress(fmt.Sprintf("loading %s from %s", spec.Name, src))
	d, err := doxygen.Load(ctx, src, spec.Name, doxygen.LoadOptions{
		Concurrency:  s.cfg.Fetch.Concurrency,
		Progress:     progress,
		HTMLFallback: s.cfg.Fetch.HTMLFallback,
		OnFile: func(name string, data []byte) {
			hash, err := cas.Write(data)
			if err != nil {
				slog.Warn("failed to write CAS", "file", name, "error", err)
				return
			}
			artifactsMu.Lock()
			artifacts[name] = hash
			artifactsMu.Unlock()
		},
	})
	if err != nil {
		result.Error = err.Error()
		return result
	}
	d.Artifacts = artifacts

	if problems := doxygen.Problems(doxygen.Validate(d)); len(problems) > 0 {
		progress(fmt.Sprintf("%s: %d validation findings", spec.Name, len(problems)))
		for _, p := range problems {
			slog.Warn("validation", "docset", spec.Name, "problem", p)
			d.Warnings = append(d.Warnings, "invalid: "+p)
		}
	}

	if err := snapshot.Save(d); err != nil {
		slog.Error("failed to save snapshot", "docset", spec.Name, "error", err)
	}
	progress(fmt.Sprintf("storing %s", spec.Name))
	if _, err := s.db.ReplaceDocSet(d); err != nil {
		result.Error = fmt.Sprintf("storing docset: %v", err)
		return result
	}
	s.cacheDocSet(d)

	result = summarize(d)
	progress(fmt.Sprintf("finished indexing %s (%d nodes, %d search entries)", spec.Name, result.Nodes, result.Entries))
	return result
}

func summarize(d *doxygen.DocSet) rpc.DocSetResult {
	nodes := 0
	doxygen.Walk(d.Root, func(*doxygen.NavNode, []int, []string) bool {
		nodes++
		return true
	})
	return rpc.DocSetResult{
		Name:     d.Name,
		Nodes:    nodes,
		Entries:  len(d.Search),
		Outlines: len(d.Outlines),
		Warnings: d.Warnings,
	}
}

// --- Queries ---

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req rpc.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "missing query")
		return
	}
	if _, err := doxygen.ParseMatchKind(req.Match); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := s.searcher.Search(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if results == nil {
		results = []rpc.SymbolResult{}
	}
	writeJSON(w, http.StatusOK, rpc.SearchResponse{Results: results})
}

// pageTarget accepts a page id, a Doxygen URL or a doxnav:// URI and returns
// the page id plus the Doxygen URL of the target.
func pageTarget(docset, page string) (string, string, error) {
	if strings.HasPrefix(page, "doxnav://") {
		set, id, frag, err := md.ParseURI(page)
		if err != nil {
			return "", "", err
		}
		if set != docset {
			return "", "", fmt.Errorf("URI %s belongs to docset %s, not %s", page, set, docset)
		}
		return id, md.Target(id, frag), nil
	}
	id := doxygen.PageID(page)
	_, frag := doxygen.SplitAnchor(page)
	return id, md.Target(id, frag), nil
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	var req rpc.GetPageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	d, row, ok := s.docSetOrError(w, req.DocSet)
	if !ok {
		return
	}
	pageID, target, err := pageTarget(req.DocSet, req.Page)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var crumbs []string
	if loc, ok := d.Locate(target); ok {
		crumbs = loc.Breadcrumb
	}

	outline, ok := d.Outline(pageID)
	if !ok {
		outline, err = s.db.GetOutline(row.ID, pageID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if outline == nil {
		// Pages without a script of their own still list their tree children.
		if m := d.FindNodes(md.Target(pageID, "")); len(m) > 0 {
			outline = doxygen.NewOutline(pageID, m[0].Node.Label, m[0].Node.Children)
			crumbs = m[0].Breadcrumb
		}
	}
	if outline == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("page %s not found in %s", pageID, req.DocSet))
		return
	}

	text, err := md.RenderOutline(req.DocSet, outline, crumbs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rpc.GetPageResponse{Markdown: text})
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	var req rpc.TreeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	d, _, ok := s.docSetOrError(w, req.DocSet)
	if !ok {
		return
	}

	var nodes []*doxygen.NavNode
	switch {
	case len(req.Labels) > 0:
		n, _, found := d.NodeByLabels(req.Labels)
		if !found {
			writeError(w, http.StatusNotFound, fmt.Sprintf("no node %q in %s", strings.Join(req.Labels, " > "), req.DocSet))
			return
		}
		nodes = []*doxygen.NavNode{n}
		if req.Children {
			nodes = n.Children
		}
	case len(req.Path) > 0:
		n, _, found := d.NodeAt(req.Path)
		if !found {
			writeError(w, http.StatusNotFound, fmt.Sprintf("no node at %v in %s", req.Path, req.DocSet))
			return
		}
		nodes = []*doxygen.NavNode{n}
		if req.Children {
			nodes = d.Children(req.Path)
		}
	default:
		nodes = doxygen.TopLevel(d.Root)
	}

	writeJSON(w, http.StatusOK, rpc.TreeResponse{Markdown: md.RenderTree(req.DocSet, nodes, req.Depth)})
}

func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request) {
	var req rpc.LocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	d, row, ok := s.docSetOrError(w, req.DocSet)
	if !ok {
		return
	}
	_, target, err := pageTarget(req.DocSet, req.Anchor)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	loc, found := d.Locate(target)
	if !found {
		loc, found, err = s.locateStored(d, row, target)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if !found {
		writeJSON(w, http.StatusOK, rpc.LocateResponse{Found: false, Partition: d.Index.Partition(target)})
		return
	}

	uri := loc.URL
	if !strings.Contains(uri, "://") {
		uri = md.URI(req.DocSet, uri)
	}
	writeJSON(w, http.StatusOK, rpc.LocateResponse{
		Found:      true,
		URI:        uri,
		Partition:  loc.Partition,
		Path:       loc.Path,
		Breadcrumb: loc.Breadcrumb,
		Label:      loc.Label,
	})
}

// locateStored consults the nav paths kept in the database, for docsets
// rebuilt without their navtreeindex partitions.
func (s *Server) locateStored(d *doxygen.DocSet, row *db.DocSet, target string) (*doxygen.Location, bool, error) {
	page, _ := doxygen.SplitAnchor(target)
	for _, key := range []string{target, page} {
		part, path, found, err := s.db.LookupNavPath(row.ID, key)
		if err != nil {
			return nil, false, err
		}
		if !found {
			continue
		}
		if n, crumbs, ok := d.NodeAt(path); ok {
			return &doxygen.Location{Anchor: target, Partition: part, Path: path, Breadcrumb: crumbs, Label: n.Label, URL: n.URL}, true, nil
		}
	}

	nodes, err := s.db.FindNavNodes(row.ID, page)
	if err != nil || len(nodes) == 0 {
		return nil, false, err
	}
	_, crumbs, _ := d.NodeAt(nodes[0].Path)
	return &doxygen.Location{
		Anchor:     target,
		Partition:  d.Index.Partition(page),
		Path:       nodes[0].Path,
		Breadcrumb: crumbs,
		Label:      nodes[0].Label,
		URL:        nodes[0].URL,
	}, true, nil
}

func (s *Server) docSetOrError(w http.ResponseWriter, name string) (*doxygen.DocSet, *db.DocSet, bool) {
	if name == "" {
		writeError(w, http.StatusBadRequest, "missing docset")
		return nil, nil, false
	}
	d, row, err := s.getDocSet(name)
	if errors.Is(err, errUnknownDocSet) {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, nil, false
	}
	return d, row, true
}

// --- Admin ---

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.ListDocSets()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := make([]rpc.DocSetStatus, 0, len(stats))
	for _, st := range stats {
		status = append(status, rpc.DocSetStatus{
			Name:        st.Name,
			BaseURL:     st.BaseURL,
			Nodes:       st.Nodes,
			Entries:     st.Entries,
			Occurrences: st.Occurrences,
			Outlines:    st.Outlines,
			Warnings:    st.Warnings,
			Processed:   st.ProcessedAt != nil,
			Cached:      s.isCached(st.Name),
			Snapshot:    snapshot.Has(st.Name),
		})
	}
	writeJSON(w, http.StatusOK, rpc.StatusResponse{DocSets: status})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	var req rpc.ClearCacheRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	dropped := s.dropCached(req.DocSets)
	slog.Info("docset cache cleared", "dropped", dropped, "docsets", req.DocSets)

	if req.Purge {
		names, err := s.purgeTargets(req.DocSets)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		var errs []error
		for _, name := range names {
			if err := snapshot.Remove(name); err != nil {
				errs = append(errs, err)
			}
			if err := s.db.DeleteDocSet(name); err != nil {
				errs = append(errs, err)
			}
		}
		if err := errors.Join(errs...); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "dropped": dropped})
}

// purgeTargets expands an empty list to every stored docset and snapshot.
func (s *Server) purgeTargets(names []string) ([]string, error) {
	if len(names) > 0 {
		return names, nil
	}
	stats, err := s.db.ListDocSets()
	if err != nil {
		return nil, err
	}
	snaps, err := snapshot.List()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, st := range stats {
		seen[st.Name] = true
		names = append(names, st.Name)
	}
	for _, name := range snaps {
		if !seen[name] {
			names = append(names, name)
		}
	}
	return names, nil
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "shutting down"})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Stop(ctx)
		s.exit()
	}()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
