package rpc

// AddDocSetsRequest is the request body for POST /add-docsets.
type AddDocSetsRequest struct {
	DocSets []DocSetSpec `json:"docsets"`
	// Refresh forces a re-ingest even when the docset is already stored.
	Refresh bool `json:"refresh,omitempty"`
}

// DocSetSpec names a docset and where its Doxygen HTML output lives: a local
// directory or an http(s) base URL.
type DocSetSpec struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

type DocSetResult struct {
	Name     string   `json:"name"`
	Nodes    int      `json:"nodes"`
	Entries  int      `json:"entries"`
	Outlines int      `json:"outlines"`
	Warnings []string `json:"warnings,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// ProgressLine is a single line of NDJSON streamed from the add-docsets endpoint.
type ProgressLine struct {
	Type    string        `json:"type"` // "progress" or "result"
	Message string        `json:"message,omitempty"`
	Result  *DocSetResult `json:"result,omitempty"`
}

// SearchRequest is the request body for POST /search.
type SearchRequest struct {
	Query    string   `json:"query"`
	DocSets  []string `json:"docsets,omitempty"`
	Sections []string `json:"sections,omitempty"`
	Limit    int      `json:"limit,omitempty"`
	// Match is "exact", "prefix" or "substring" (the default).
	Match string `json:"match,omitempty"`
}

// SearchResponse is the response body for POST /search.
type SearchResponse struct {
	Results []SymbolResult `json:"results"`
}

type SymbolResult struct {
	URI     string  `json:"uri"`
	DocSet  string  `json:"docset"`
	Name    string  `json:"name"`
	Section string  `json:"section"`
	Anchor  string  `json:"anchor"`
	Match   string  `json:"match"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet,omitempty"`
}

// GetPageRequest is the request body for POST /get-page.
type GetPageRequest struct {
	DocSet string `json:"docset"`
	Page   string `json:"page"`
}

// GetPageResponse is the response body for POST /get-page.
type GetPageResponse struct {
	Markdown string `json:"markdown"`
}

// TreeRequest is the request body for POST /tree. Path addresses a subtree
// the way navtreeindex files do; Labels addresses it by breadcrumb instead.
type TreeRequest struct {
	DocSet string   `json:"docset"`
	Path   []int    `json:"path,omitempty"`
	Labels []string `json:"labels,omitempty"`
	Depth  int      `json:"depth,omitempty"`
	// Children renders the addressed node's children without the node.
	Children bool `json:"children,omitempty"`
}

// TreeResponse is the response body for POST /tree.
type TreeResponse struct {
	Markdown string `json:"markdown"`
}

// LocateRequest is the request body for POST /locate.
type LocateRequest struct {
	DocSet string `json:"docset"`
	Anchor string `json:"anchor"`
}

// LocateResponse is the response body for POST /locate.
type LocateResponse struct {
	Found      bool     `json:"found"`
	URI        string   `json:"uri,omitempty"`
	Partition  int      `json:"partition"`
	Path       []int    `json:"path,omitempty"`
	Breadcrumb []string `json:"breadcrumb,omitempty"`
	Label      string   `json:"label,omitempty"`
}

// StatusResponse is the response body for GET /status.
type StatusResponse struct {
	DocSets []DocSetStatus `json:"docsets"`
}

type DocSetStatus struct {
	Name        string `json:"name"`
	BaseURL     string `json:"base_url"`
	Nodes       int    `json:"nodes"`
	Entries     int    `json:"entries"`
	Occurrences int    `json:"occurrences"`
	Outlines    int    `json:"outlines"`
	Warnings    int    `json:"warnings"`
	Processed   bool   `json:"processed"`
	Cached      bool   `json:"cached"`
	Snapshot    bool   `json:"snapshot"`
}

// ClearCacheRequest is the request body for POST /clear-cache. An empty
// DocSets list drops every in-memory docset. Purge also deletes the listed
// docsets' snapshots and stored rows, or every docset when none are listed.
type ClearCacheRequest struct {
	DocSets []string `json:"docsets,omitempty"`
	Purge   bool     `json:"purge,omitempty"`
}
