package doxygen

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jcdickinson/doxnav/internal/jsdata"
	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	searchDataVar      = "searchData"
	sectionsContentVar = "indexSectionsWithContent"
	sectionsNamesVar   = "indexSectionNames"
	sectionsLabelsVar  = "indexSectionLabels"
	nonBreakingSpace   = "\u00a0"
	defaultSectionName = "all"
)

// NormalizeKey converts a symbol name into Doxygen's search key form: ASCII
// letters and digits are lowercased, every other byte becomes _xx in
// lowercase hex.
func NormalizeKey(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c >= 'A' && c <= 'Z':
			b.WriteByte(c + ('a' - 'A'))
		default:
			fmt.Fprintf(&b, "_%02x", c)
		}
	}
	return b.String()
}

// KeyMatches reports whether key is the normalized form of displayName,
// allowing the _<n> ordinal suffix newer Doxygen releases append.
func KeyMatches(key, displayName string) bool {
	want := NormalizeKey(displayName)
	if key == want {
		return true
	}
	rest, ok := strings.CutPrefix(key, want+"_")
	if !ok || rest == "" {
		return false
	}
	_, err := strconv.Atoi(rest)
	return err == nil
}

// ParseSearchData decodes one search fragment (search/<section>_<n>.js).
// Anchors are made relative to the docset root.
func ParseSearchData(section string, src []byte) ([]SearchEntry, error) {
	f, err := jsdata.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parsing search data: %w", err)
	}
	raw, ok := f.Var(searchDataVar)
	if !ok {
		return nil, fmt.Errorf("search fragment has no %s variable", searchDataVar)
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected array, got %T", searchDataVar, raw)
	}

	entries := make([]SearchEntry, 0, len(list))
	for i, item := range list {
		entry, err := decodeSearchEntry(item)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", searchDataVar, i, err)
		}
		entry.Section = section
		entries = append(entries, entry)
	}
	return entries, nil
}

// decodeSearchEntry converts ['key', ['Name', [url, flag, scope], ...], ...].
func decodeSearchEntry(v any) (SearchEntry, error) {
	row, ok := v.([]any)
	if !ok || len(row) < 2 {
		return SearchEntry{}, fmt.Errorf("expected [key, [name, occurrences...]]")
	}
	key, ok := row[0].(string)
	if !ok {
		return SearchEntry{}, fmt.Errorf("key is %T, not string", row[0])
	}

	entry := SearchEntry{Key: key}
	for _, group := range row[1:] {
		g, ok := group.([]any)
		if !ok || len(g) < 1 {
			return SearchEntry{}, fmt.Errorf("key %q: malformed occurrence group", key)
		}
		name, ok := g[0].(string)
		if !ok {
			return SearchEntry{}, fmt.Errorf("key %q: display name is %T", key, g[0])
		}
		name = cleanText(name)

		for _, o := range g[1:] {
			occ, err := decodeOccurrence(o)
			if err != nil {
				return SearchEntry{}, fmt.Errorf("key %q: %w", key, err)
			}
			occ.DisplayName = name
			entry.Occurrences = append(entry.Occurrences, occ)
		}
	}
	return entry, nil
}

func decodeOccurrence(v any) (Occurrence, error) {
	o, ok := v.([]any)
	if !ok || len(o) < 1 {
		return Occurrence{}, fmt.Errorf("expected [url, flag, scope]")
	}
	url, ok := o[0].(string)
	if !ok {
		return Occurrence{}, fmt.Errorf("url is %T, not string", o[0])
	}
	occ := Occurrence{Anchor: NormalizeAnchor(url)}
	if len(o) >= 3 {
		if scope, ok := o[2].(string); ok {
			occ.SourceLabel = cleanText(scope)
		}
	}
	return occ, nil
}

func cleanText(s string) string {
	s = html.UnescapeString(s)
	return strings.TrimSpace(strings.ReplaceAll(s, nonBreakingSpace, " "))
}

// ParseSearchSections decodes search/searchdata.js.
func ParseSearchSections(src []byte) ([]SearchSection, error) {
	f, err := jsdata.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parsing search sections: %w", err)
	}
	return searchSections(f)
}

// ParseLegacySearchSections reads the section tables from the top of
// search/search.js, where Doxygen kept them before searchdata.js existed.
func ParseLegacySearchSections(src []byte) ([]SearchSection, error) {
	f, err := jsdata.ParseLeading(src)
	if err != nil {
		return nil, fmt.Errorf("parsing search sections: %w", err)
	}
	return searchSections(f)
}

func searchSections(f *jsdata.File) ([]SearchSection, error) {
	content, err := stringMap(f, sectionsContentVar)
	if err != nil {
		return nil, err
	}
	names, err := stringMap(f, sectionsNamesVar)
	if err != nil {
		return nil, err
	}
	labels, _ := stringMap(f, sectionsLabelsVar)

	sections := make([]SearchSection, 0, len(names))
	for key, name := range names {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("%s: non-numeric section id %q", sectionsNamesVar, key)
		}
		label := labels[key]
		if label == "" {
			label = SectionLabel(name)
		}
		sections = append(sections, SearchSection{
			ID:      id,
			Name:    name,
			Label:   label,
			Letters: content[key],
		})
	}
	sort.Slice(sections, func(i, j int) bool { return sections[i].ID < sections[j].ID })
	return sections, nil
}

// SectionLabel derives a display label from a section name for Doxygen
// releases that do not write indexSectionLabels ("enumvalues" becomes
// "Enumvalues").
func SectionLabel(name string) string {
	return cases.Title(language.English).String(name)
}

func stringMap(f *jsdata.File, name string) (map[string]string, error) {
	raw, ok := f.Var(name)
	if !ok {
		return nil, fmt.Errorf("search sections have no %s variable", name)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected object, got %T", name, raw)
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%s[%s]: expected string, got %T", name, k, v)
		}
		out[k] = s
	}
	return out, nil
}

// Files lists the fragment scripts of the section, relative to the docset
// root. Doxygen numbers them by letter position in hex.
func (s SearchSection) Files() []string {
	n := utf8.RuneCountInString(s.Letters)
	files := make([]string, n)
	for i := 0; i < n; i++ {
		files[i] = fmt.Sprintf("search/%s_%x.js", s.Name, i)
	}
	return files
}

// SectionFromFile recovers the section name from a fragment file name such
// as "search/functions_1a.js".
func SectionFromFile(name string) string {
	base := name
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	base = strings.TrimSuffix(base, ".js")
	i := strings.LastIndexByte(base, '_')
	if i <= 0 {
		return defaultSectionName
	}
	if _, err := strconv.ParseUint(base[i+1:], 16, 32); err != nil {
		return defaultSectionName
	}
	return base[:i]
}
