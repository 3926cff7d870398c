package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jcdickinson/doxnav/internal/doxygen"
	_ "github.com/marcboeker/go-duckdb"
)

type DB struct {
	conn *sql.DB
}

func New(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	conn, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// Child tables carry docset_id so a re-ingest can clear them directly.
// Foreign keys are left out: DuckDB rejects updates to referenced rows.
func (db *DB) initSchema() error {
	queries := []string{
		`CREATE SEQUENCE IF NOT EXISTS seq_docset_id START 1;`,
		`CREATE SEQUENCE IF NOT EXISTS seq_nav_node_id START 1;`,
		`CREATE SEQUENCE IF NOT EXISTS seq_entry_id START 1;`,
		`CREATE SEQUENCE IF NOT EXISTS seq_outline_id START 1;`,
		`CREATE SEQUENCE IF NOT EXISTS seq_section_id START 1;`,

		`CREATE TABLE IF NOT EXISTS docsets (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			base_url TEXT NOT NULL,
			warnings INTEGER NOT NULL DEFAULT 0,
			fetched_at TIMESTAMP,
			processed_at TIMESTAMP,
			last_used_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS nav_nodes (
			id INTEGER PRIMARY KEY,
			docset_id INTEGER NOT NULL,
			parent_id INTEGER,
			position INTEGER NOT NULL,
			depth INTEGER NOT NULL,
			path TEXT NOT NULL,
			label TEXT NOT NULL,
			url TEXT,
			external BOOLEAN NOT NULL DEFAULT false,
			child_ref TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_nav_nodes_docset ON nav_nodes (docset_id)`,
		`CREATE INDEX IF NOT EXISTS idx_nav_nodes_url ON nav_nodes (url)`,

		`CREATE TABLE IF NOT EXISTS nav_index (
			docset_id INTEGER NOT NULL,
			part INTEGER NOT NULL,
			first_anchor TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS nav_paths (
			docset_id INTEGER NOT NULL,
			part INTEGER NOT NULL,
			anchor TEXT NOT NULL,
			path TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_nav_paths_anchor ON nav_paths (docset_id, anchor)`,

		`CREATE TABLE IF NOT EXISTS search_entries (
			id INTEGER PRIMARY KEY,
			docset_id INTEGER NOT NULL,
			key TEXT NOT NULL,
			section TEXT NOT NULL,
			position INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_search_entries_docset ON search_entries (docset_id)`,

		`CREATE TABLE IF NOT EXISTS occurrences (
			entry_id INTEGER NOT NULL,
			docset_id INTEGER NOT NULL,
			position INTEGER NOT NULL,
			display_name TEXT NOT NULL,
			normalized TEXT NOT NULL,
			anchor TEXT NOT NULL,
			source_label TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_occurrences_docset ON occurrences (docset_id)`,

		`CREATE TABLE IF NOT EXISTS outlines (
			id INTEGER PRIMARY KEY,
			docset_id INTEGER NOT NULL,
			page_id TEXT NOT NULL,
			title TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outlines_page ON outlines (docset_id, page_id)`,

		`CREATE TABLE IF NOT EXISTS sections (
			id INTEGER PRIMARY KEY,
			docset_id INTEGER NOT NULL,
			outline_id INTEGER NOT NULL,
			parent_id INTEGER,
			position INTEGER NOT NULL,
			depth INTEGER NOT NULL,
			heading TEXT NOT NULL,
			anchor TEXT,
			external BOOLEAN NOT NULL DEFAULT false,
			ref TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sections_outline ON sections (outline_id)`,

		`CREATE TABLE IF NOT EXISTS artifacts (
			docset_id INTEGER NOT NULL,
			file TEXT NOT NULL,
			hash TEXT NOT NULL
		)`,
	}

	for _, q := range queries {
		if _, err := db.conn.Exec(q); err != nil {
			return fmt.Errorf("executing %q: %w", q, err)
		}
	}
	return nil
}

// childTables are cleared when a docset is re-ingested or removed.
var childTables = []string{
	"nav_nodes", "nav_index", "nav_paths", "search_entries",
	"occurrences", "outlines", "sections", "artifacts",
}

// --- Docset operations ---

type DocSet struct {
	ID          int
	Name        string
	BaseURL     string
	Warnings    int
	FetchedAt   *time.Time
	ProcessedAt *time.Time
	LastUsedAt  time.Time
}

const docsetColumns = `id, name, base_url, warnings, fetched_at, processed_at, last_used_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanDocSet(row scanner) (*DocSet, error) {
	var d DocSet
	if err := row.Scan(&d.ID, &d.Name, &d.BaseURL, &d.Warnings, &d.FetchedAt, &d.ProcessedAt, &d.LastUsedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func (db *DB) GetDocSet(name string) (*DocSet, error) {
	d, err := scanDocSet(db.conn.QueryRow(`SELECT `+docsetColumns+` FROM docsets WHERE name = ?`, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting docset %s: %w", name, err)
	}
	return d, nil
}

func (db *DB) TouchDocSet(id int) error {
	_, err := db.conn.Exec(`UPDATE docsets SET last_used_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	return err
}

// DocSetStats summarises one stored docset.
type DocSetStats struct {
	DocSet
	Nodes       int
	Entries     int
	Occurrences int
	Outlines    int
	Artifacts   int
}

func (db *DB) ListDocSets() ([]DocSetStats, error) {
	rows, err := db.conn.Query(`
		SELECT d.id, d.name, d.base_url, d.warnings, d.fetched_at, d.processed_at, d.last_used_at,
		       (SELECT COUNT(*) FROM nav_nodes n WHERE n.docset_id = d.id),
		       (SELECT COUNT(*) FROM search_entries e WHERE e.docset_id = d.id),
		       (SELECT COUNT(*) FROM occurrences o WHERE o.docset_id = d.id),
		       (SELECT COUNT(*) FROM outlines p WHERE p.docset_id = d.id),
		       (SELECT COUNT(*) FROM artifacts a WHERE a.docset_id = d.id)
		FROM docsets d ORDER BY d.name`)
	if err != nil {
		return nil, fmt.Errorf("listing docsets: %w", err)
	}
	defer rows.Close()

	var out []DocSetStats
	for rows.Next() {
		var s DocSetStats
		if err := rows.Scan(&s.ID, &s.Name, &s.BaseURL, &s.Warnings, &s.FetchedAt, &s.ProcessedAt, &s.LastUsedAt,
			&s.Nodes, &s.Entries, &s.Occurrences, &s.Outlines, &s.Artifacts); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteDocSet removes a docset and everything stored for it. Deleting an
// unknown docset is a no-op.
func (db *DB) DeleteDocSet(name string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var id int
	err = tx.QueryRow(`SELECT id FROM docsets WHERE name = ?`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("finding docset %s: %w", name, err)
	}
	if err := clearDocSet(tx, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM docsets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting docset %s: %w", name, err)
	}
	return tx.Commit()
}

func clearDocSet(tx *sql.Tx, id int) error {
	for _, table := range childTables {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE docset_id = ?`, id); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return nil
}

// ReplaceDocSet stores a parsed docset, replacing any rows from an earlier
// ingest of the same name, in one transaction.
func (db *DB) ReplaceDocSet(d *doxygen.DocSet) (*DocSet, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var id int
	err = tx.QueryRow(`SELECT id FROM docsets WHERE name = ?`, d.Name).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		err = tx.QueryRow(
			`INSERT INTO docsets (id, name, base_url) VALUES (nextval('seq_docset_id'), ?, ?) RETURNING id`,
			d.Name, d.BaseURL,
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("inserting docset: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("checking docset: %w", err)
	default:
		if err := clearDocSet(tx, id); err != nil {
			return nil, err
		}
	}

	if err := insertNavTree(tx, id, d.Root); err != nil {
		return nil, err
	}
	if err := insertNavIndex(tx, id, d.Index, d.Partitions); err != nil {
		return nil, err
	}
	if err := insertSearch(tx, id, d.Search); err != nil {
		return nil, err
	}
	if err := insertOutlines(tx, id, d.Outlines); err != nil {
		return nil, err
	}
	if err := insertArtifacts(tx, id, d.Artifacts); err != nil {
		return nil, err
	}

	_, err = tx.Exec(
		`UPDATE docsets SET base_url = ?, warnings = ?, fetched_at = CURRENT_TIMESTAMP,
		 processed_at = CURRENT_TIMESTAMP, last_used_at = CURRENT_TIMESTAMP WHERE id = ?`,
		d.BaseURL, len(d.Warnings), id,
	)
	if err != nil {
		return nil, fmt.Errorf("marking docset processed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing docset: %w", err)
	}
	return db.GetDocSet(d.Name)
}

// --- Navigation tree ---

func insertNavTree(tx *sql.Tx, docsetID int, root *doxygen.NavNode) error {
	stmt, err := tx.Prepare(
		`INSERT INTO nav_nodes (id, docset_id, parent_id, position, depth, path, label, url, external, child_ref)
		 VALUES (nextval('seq_nav_node_id'), ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	if err != nil {
		return fmt.Errorf("preparing nav node insert: %w", err)
	}
	defer stmt.Close()

	var insert func(n *doxygen.NavNode, parent *int, path []int) error
	insert = func(n *doxygen.NavNode, parent *int, path []int) error {
		var id int
		err := stmt.QueryRow(docsetID, nullInt(parent), path[len(path)-1], len(path)-1, FormatPath(path),
			n.Label, nullString(n.URL), n.External, nullString(n.ChildRef)).Scan(&id)
		if err != nil {
			return fmt.Errorf("inserting nav node %q: %w", n.Label, err)
		}
		for i, c := range n.Children {
			if c == nil {
				continue
			}
			if err := insert(c, &id, append(append([]int(nil), path...), i)); err != nil {
				return err
			}
		}
		return nil
	}

	for i, n := range doxygen.TopLevel(root) {
		if n == nil {
			continue
		}
		if err := insert(n, nil, []int{i}); err != nil {
			return err
		}
	}
	return nil
}

// LoadNavTree rebuilds the navigation tree of a docset from its rows.
func (db *DB) LoadNavTree(docsetID int) (*doxygen.NavNode, error) {
	rows, err := db.conn.Query(
		`SELECT id, parent_id, label, url, external, child_ref FROM nav_nodes
		 WHERE docset_id = ? ORDER BY depth, parent_id, position`, docsetID)
	if err != nil {
		return nil, fmt.Errorf("loading nav tree: %w", err)
	}
	defer rows.Close()

	nodes := make(map[int]*doxygen.NavNode)
	var top []*doxygen.NavNode
	for rows.Next() {
		var id int
		var parent sql.NullInt64
		var url, childRef sql.NullString
		n := &doxygen.NavNode{}
		if err := rows.Scan(&id, &parent, &n.Label, &url, &n.External, &childRef); err != nil {
			return nil, err
		}
		n.URL, n.ChildRef = url.String, childRef.String
		nodes[id] = n
		if !parent.Valid {
			top = append(top, n)
			continue
		}
		p, ok := nodes[int(parent.Int64)]
		if !ok {
			return nil, fmt.Errorf("nav node %d has unknown parent %d", id, parent.Int64)
		}
		p.Children = append(p.Children, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(top) {
	case 0:
		return nil, nil
	case 1:
		return top[0], nil
	}
	return &doxygen.NavNode{Children: top}, nil
}

// NavNode is a stored tree node matched by URL.
type NavNode struct {
	Path  []int
	Label string
	URL   string
}

// FindNavNodes returns the nodes of a docset whose URL equals url.
func (db *DB) FindNavNodes(docsetID int, url string) ([]NavNode, error) {
	rows, err := db.conn.Query(
		`SELECT path, label, url FROM nav_nodes WHERE docset_id = ? AND url = ? ORDER BY id`,
		docsetID, url)
	if err != nil {
		return nil, fmt.Errorf("finding nav nodes: %w", err)
	}
	defer rows.Close()

	var out []NavNode
	for rows.Next() {
		var n NavNode
		var path string
		if err := rows.Scan(&path, &n.Label, &n.URL); err != nil {
			return nil, err
		}
		if n.Path, err = ParsePath(path); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// --- Navigation index ---

func insertNavIndex(tx *sql.Tx, docsetID int, index doxygen.NavIndex, parts map[int]doxygen.NavIndexPartition) error {
	for i, anchor := range index {
		if _, err := tx.Exec(`INSERT INTO nav_index (docset_id, part, first_anchor) VALUES (?, ?, ?)`,
			docsetID, i, anchor); err != nil {
			return fmt.Errorf("inserting nav index: %w", err)
		}
	}

	stmt, err := tx.Prepare(`INSERT INTO nav_paths (docset_id, part, anchor, path) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing nav path insert: %w", err)
	}
	defer stmt.Close()
	for p, part := range parts {
		for anchor, path := range part {
			if _, err := stmt.Exec(docsetID, p, anchor, FormatPath(path)); err != nil {
				return fmt.Errorf("inserting nav path %s: %w", anchor, err)
			}
		}
	}
	return nil
}

// LoadNavIndex returns the first anchor of each partition, in order.
func (db *DB) LoadNavIndex(docsetID int) (doxygen.NavIndex, error) {
	rows, err := db.conn.Query(`SELECT first_anchor FROM nav_index WHERE docset_id = ? ORDER BY part`, docsetID)
	if err != nil {
		return nil, fmt.Errorf("loading nav index: %w", err)
	}
	defer rows.Close()

	var index doxygen.NavIndex
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		index = append(index, a)
	}
	return index, rows.Err()
}

// LookupNavPath returns the partition and tree path recorded for anchor.
func (db *DB) LookupNavPath(docsetID int, anchor string) (partition int, path []int, found bool, err error) {
	var p string
	err = db.conn.QueryRow(`SELECT part, path FROM nav_paths WHERE docset_id = ? AND anchor = ?`,
		docsetID, anchor).Scan(&partition, &p)
	if err == sql.ErrNoRows {
		return 0, nil, false, nil
	}
	if err != nil {
		return 0, nil, false, fmt.Errorf("looking up nav path: %w", err)
	}
	path, err = ParsePath(p)
	if err != nil {
		return 0, nil, false, err
	}
	return partition, path, true, nil
}

// FormatPath encodes a tree path as "0.1.2".
func FormatPath(path []int) string {
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ".")
}

// ParsePath decodes a path written by FormatPath.
func ParsePath(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ".")
	path := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid tree path %q", s)
		}
		path[i] = n
	}
	return path, nil
}

// --- Search entries ---

func insertSearch(tx *sql.Tx, docsetID int, entries []doxygen.SearchEntry) error {
	entryStmt, err := tx.Prepare(
		`INSERT INTO search_entries (id, docset_id, key, section, position)
		 VALUES (nextval('seq_entry_id'), ?, ?, ?, ?) RETURNING id`)
	if err != nil {
		return fmt.Errorf("preparing entry insert: %w", err)
	}
	defer entryStmt.Close()

	occStmt, err := tx.Prepare(
		`INSERT INTO occurrences (entry_id, docset_id, position, display_name, normalized, anchor, source_label)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing occurrence insert: %w", err)
	}
	defer occStmt.Close()

	pos := 0
	for i, e := range entries {
		var id int
		if err := entryStmt.QueryRow(docsetID, e.Key, e.Section, i).Scan(&id); err != nil {
			return fmt.Errorf("inserting search entry %s: %w", e.Key, err)
		}
		for _, o := range e.Occurrences {
			_, err := occStmt.Exec(id, docsetID, pos, o.DisplayName, doxygen.NormalizeKey(o.DisplayName),
				o.Anchor, nullString(o.SourceLabel))
			if err != nil {
				return fmt.Errorf("inserting occurrence of %s: %w", e.Key, err)
			}
			pos++
		}
	}
	return nil
}

// Occurrence is a search candidate with its lexical match score.
type Occurrence struct {
	DocSet      string
	Key         string
	Section     string
	DisplayName string
	Anchor      string
	SourceLabel string
	Position    int
	Score       float64
}

// SearchOccurrences finds occurrences whose normalized name matches the
// normalized query at least as closely as min. Exact matches score 1.0,
// prefix matches 0.75 and other substring matches 0.5. Each anchor is
// reported once per docset, preferring a specific section over "all".
func (db *DB) SearchOccurrences(normalized string, min doxygen.MatchKind, docsets, sections []string, limit int) ([]Occurrence, error) {
	if normalized == "" {
		return nil, nil
	}

	cond := "contains(o.normalized, ?)"
	switch min {
	case doxygen.MatchExact:
		cond = "o.normalized = ?"
	case doxygen.MatchPrefix:
		cond = "starts_with(o.normalized, ?)"
	}

	var filters strings.Builder
	params := []any{normalized, normalized, normalized}
	if len(docsets) > 0 {
		filters.WriteString(" AND d.name IN (" + placeholders(len(docsets)) + ")")
		for _, n := range docsets {
			params = append(params, n)
		}
	}
	if len(sections) > 0 {
		filters.WriteString(" AND e.section IN (" + placeholders(len(sections)) + ")")
		for _, s := range sections {
			params = append(params, s)
		}
	}
	params = append(params, limit)

	query := fmt.Sprintf(`
		SELECT d.name, e.key, e.section, o.display_name, o.anchor, COALESCE(o.source_label, ''), o.position,
		       CASE WHEN o.normalized = ? THEN 1.0::DOUBLE
		            WHEN starts_with(o.normalized, ?) THEN 0.75::DOUBLE
		            ELSE 0.5::DOUBLE END AS score
		FROM occurrences o
		JOIN search_entries e ON e.id = o.entry_id
		JOIN docsets d ON d.id = o.docset_id
		WHERE %s%s
		QUALIFY ROW_NUMBER() OVER (
			PARTITION BY d.name, o.anchor
			ORDER BY (e.section = 'all'), o.position
		) = 1
		ORDER BY score DESC, length(o.display_name), d.name, o.position
		LIMIT ?`, cond, filters.String())

	rows, err := db.conn.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("searching occurrences: %w", err)
	}
	defer rows.Close()

	var out []Occurrence
	for rows.Next() {
		var o Occurrence
		if err := rows.Scan(&o.DocSet, &o.Key, &o.Section, &o.DisplayName, &o.Anchor, &o.SourceLabel, &o.Position, &o.Score); err != nil {
			return nil, fmt.Errorf("scanning occurrence: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// --- Outlines ---

func insertOutlines(tx *sql.Tx, docsetID int, outlines map[string]*doxygen.PageOutline) error {
	outlineStmt, err := tx.Prepare(
		`INSERT INTO outlines (id, docset_id, page_id, title) VALUES (nextval('seq_outline_id'), ?, ?, ?) RETURNING id`)
	if err != nil {
		return fmt.Errorf("preparing outline insert: %w", err)
	}
	defer outlineStmt.Close()

	sectionStmt, err := tx.Prepare(
		`INSERT INTO sections (id, docset_id, outline_id, parent_id, position, depth, heading, anchor, external, ref)
		 VALUES (nextval('seq_section_id'), ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	if err != nil {
		return fmt.Errorf("preparing section insert: %w", err)
	}
	defer sectionStmt.Close()

	var insert func(outlineID int, parent *int, depth int, sections []doxygen.Section) error
	insert = func(outlineID int, parent *int, depth int, sections []doxygen.Section) error {
		for i, s := range sections {
			var id int
			err := sectionStmt.QueryRow(docsetID, outlineID, nullInt(parent), i, depth, s.Heading,
				nullString(s.Anchor), s.External, nullString(s.Ref)).Scan(&id)
			if err != nil {
				return fmt.Errorf("inserting section %q: %w", s.Heading, err)
			}
			if err := insert(outlineID, &id, depth+1, s.Children); err != nil {
				return err
			}
		}
		return nil
	}

	for pageID, o := range outlines {
		var id int
		if err := outlineStmt.QueryRow(docsetID, pageID, nullString(o.Title)).Scan(&id); err != nil {
			return fmt.Errorf("inserting outline %s: %w", pageID, err)
		}
		if err := insert(id, nil, 0, o.Sections); err != nil {
			return err
		}
	}
	return nil
}

// GetOutline rebuilds the outline of a page, or returns nil if the page has
// none.
func (db *DB) GetOutline(docsetID int, pageID string) (*doxygen.PageOutline, error) {
	var outlineID int
	var title sql.NullString
	err := db.conn.QueryRow(`SELECT id, title FROM outlines WHERE docset_id = ? AND page_id = ?`,
		docsetID, pageID).Scan(&outlineID, &title)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting outline %s: %w", pageID, err)
	}

	rows, err := db.conn.Query(
		`SELECT id, parent_id, heading, anchor, external, ref FROM sections
		 WHERE outline_id = ? ORDER BY depth, parent_id, position`, outlineID)
	if err != nil {
		return nil, fmt.Errorf("loading sections: %w", err)
	}
	defer rows.Close()

	type row struct {
		id, parent int
		hasParent  bool
		section    doxygen.Section
	}
	var all []row
	for rows.Next() {
		var r row
		var parent sql.NullInt64
		var anchor, ref sql.NullString
		if err := rows.Scan(&r.id, &parent, &r.section.Heading, &anchor, &r.section.External, &ref); err != nil {
			return nil, err
		}
		r.parent, r.hasParent = int(parent.Int64), parent.Valid
		r.section.Anchor, r.section.Ref = anchor.String, ref.String
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rows arrive parents first; attach children bottom up so each
	// Section value is copied into its parent only once it is complete.
	children := make(map[int][]doxygen.Section)
	for i := len(all) - 1; i >= 0; i-- {
		r := all[i]
		r.section.Children = reverse(children[r.id])
		if r.hasParent {
			children[r.parent] = append(children[r.parent], r.section)
		} else {
			children[0] = append(children[0], r.section)
		}
	}

	return &doxygen.PageOutline{
		PageID:   pageID,
		Title:    title.String,
		Sections: reverse(children[0]),
	}, nil
}

func reverse(s []doxygen.Section) []doxygen.Section {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
	return s
}

// --- Artifacts ---

func insertArtifacts(tx *sql.Tx, docsetID int, artifacts map[string]string) error {
	for file, hash := range artifacts {
		if _, err := tx.Exec(`INSERT INTO artifacts (docset_id, file, hash) VALUES (?, ?, ?)`,
			docsetID, file, hash); err != nil {
			return fmt.Errorf("inserting artifact %s: %w", file, err)
		}
	}
	return nil
}

// Artifacts maps each stored file of a docset to its CAS hash.
func (db *DB) Artifacts(docsetID int) (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT file, hash FROM artifacts WHERE docset_id = ?`, docsetID)
	if err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var file, hash string
		if err := rows.Scan(&file, &hash); err != nil {
			return nil, err
		}
		out[file] = hash
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
