package markdown

import (
	"strings"

	gm "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	gmparser "github.com/gomarkdown/markdown/parser"
	"gopkg.in/yaml.v3"
)

func parse(src string) ast.Node {
	return gm.Parse([]byte(src), gmparser.NewWithExtensions(
		gmparser.CommonExtensions|gmparser.Autolink,
	))
}

// linkDestinations returns every link destination in src, in document order,
// once each.
func linkDestinations(src string) []string {
	seen := make(map[string]bool)
	var dests []string
	ast.WalkFunc(parse(src), func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		if link, ok := node.(*ast.Link); ok {
			dest := string(link.Destination)
			if !seen[dest] {
				seen[dest] = true
				dests = append(dests, dest)
			}
		}
		return ast.GoToNext
	})
	return dests
}

// RewriteLinks rewrites markdown link destinations using the provided link map.
// It parses the markdown to AST to find all link destinations, then performs
// targeted string replacements to preserve original formatting.
func RewriteLinks(src string, linkMap map[string]string) string {
	if len(linkMap) == 0 {
		return src
	}

	type replacement struct {
		oldDest string
		newDest string
	}
	var replacements []replacement
	for _, dest := range linkDestinations(src) {
		if newDest, ok := linkMap[dest]; ok {
			replacements = append(replacements, replacement{dest, newDest})
		}
	}
	if len(replacements) == 0 {
		return src
	}

	result := src

	// Inline links: [text](destination), one pass per replacement
	for _, r := range replacements {
		result = strings.ReplaceAll(result, "]("+r.oldDest+")", "]("+r.newDest+")")
	}

	// Reference-style definitions: [ref]: destination
	refMap := make(map[string]string, len(replacements))
	for _, r := range replacements {
		refMap["]: "+r.oldDest] = "]: " + r.newDest
	}
	lines := strings.Split(result, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		for oldSuffix, newSuffix := range refMap {
			if strings.HasSuffix(trimmed, oldSuffix) {
				lines[i] = strings.Replace(line, oldSuffix, newSuffix, 1)
				break
			}
		}
	}
	return strings.Join(lines, "\n")
}

// RewriteDocLinks points every relative Doxygen link in src at its doxnav://
// URI within docset. External and in-page links are left alone.
func RewriteDocLinks(src, docset string) string {
	linkMap := make(map[string]string)
	for _, dest := range linkDestinations(src) {
		if isDocLink(dest) {
			linkMap[dest] = URI(docset, dest)
		}
	}
	return RewriteLinks(src, linkMap)
}

// AddFrontMatter prepends meta, encoded as YAML, to src. A nil or empty
// value leaves src unchanged.
func AddFrontMatter(src string, meta any) (string, error) {
	if meta == nil {
		return src, nil
	}
	out, err := yaml.Marshal(meta)
	if err != nil {
		return "", err
	}
	if s := strings.TrimSpace(string(out)); s == "{}" || s == "null" {
		return src, nil
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(out)
	b.WriteString("---\n\n")
	b.WriteString(src)
	return b.String(), nil
}

// StripFrontMatter removes a leading front-matter block from src.
func StripFrontMatter(src string) string {
	rest, ok := strings.CutPrefix(src, "---\n")
	if !ok {
		return src
	}
	_, body, ok := strings.Cut(rest, "\n---\n")
	if !ok {
		return src
	}
	return strings.TrimLeft(body, "\n")
}
