package codedom

import (
	"bufio"
	"bytes"
	"path/filepath"
	"regexp"
	"strings"

	"graphkb/internal/graphmodel"
)

// elementPattern names the node kind a regex match should become.
type elementPattern struct {
	kind    string
	pattern *regexp.Regexp
}

// languagePatterns mirrors the teacher's extractCodeElements per-extension
// pattern tables, retargeted from a flat CodeElement list to typed graph
// nodes (FUNCTION/CLASS/INTERFACE) with CONTAINS edges from the file's
// MODULE node.
var languagePatterns = map[string][]elementPattern{
	"go": {
		{graphmodel.KindFunction, regexp.MustCompile(`^func\s+(\w+)\s*\(`)},
		{graphmodel.KindFunction, regexp.MustCompile(`^func\s+\([^)]+\)\s+(\w+)\s*\(`)},
		{graphmodel.KindClass, regexp.MustCompile(`^type\s+(\w+)\s+struct\b`)},
		{graphmodel.KindInterface, regexp.MustCompile(`^type\s+(\w+)\s+interface\b`)},
	},
	"py": {
		{graphmodel.KindFunction, regexp.MustCompile(`^\s*def\s+(\w+)\s*\(`)},
		{graphmodel.KindClass, regexp.MustCompile(`^\s*class\s+(\w+)`)},
	},
	"js":  jsFamilyPatterns,
	"ts":  jsFamilyPatterns,
	"jsx": jsFamilyPatterns,
	"tsx": jsFamilyPatterns,
	"java": {
		{graphmodel.KindClass, regexp.MustCompile(`^\s*(?:public\s+)?(?:abstract\s+)?(?:final\s+)?class\s+(\w+)`)},
		{graphmodel.KindInterface, regexp.MustCompile(`^\s*(?:public\s+)?interface\s+(\w+)`)},
	},
	"rs": {
		{graphmodel.KindFunction, regexp.MustCompile(`^\s*(?:pub\s+)?fn\s+(\w+)`)},
		{graphmodel.KindClass, regexp.MustCompile(`^\s*(?:pub\s+)?struct\s+(\w+)`)},
		{graphmodel.KindInterface, regexp.MustCompile(`^\s*(?:pub\s+)?trait\s+(\w+)`)},
	},
	"c":   cFamilyPatterns,
	"h":   cFamilyPatterns,
	"cc":  cFamilyPatterns,
	"cpp": cFamilyPatterns,
	"cxx": cFamilyPatterns,
	"hpp": cFamilyPatterns,
}

var jsFamilyPatterns = []elementPattern{
	{graphmodel.KindFunction, regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s+(\w+)\s*\(`)},
	{graphmodel.KindClass, regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?class\s+(\w+)`)},
}

var cFamilyPatterns = []elementPattern{
	{graphmodel.KindClass, regexp.MustCompile(`^\s*class\s+(\w+)`)},
	{graphmodel.KindClass, regexp.MustCompile(`^\s*struct\s+(\w+)`)},
	{graphmodel.KindFunction, regexp.MustCompile(`^(?:\w+[\s*]+)+(\w+)\s*\([^;]*\)\s*\{?\s*$`)},
}

// importPatterns extracts each language's import/include source string, for
// the coverage validation plugin's externally-imported-package accounting
// (spec.md §4.4.5). Each pattern's first capture group is the import
// source text, taken as-is (scoped-package splitting happens downstream).
var importPatterns = map[string][]*regexp.Regexp{
	"go": {
		regexp.MustCompile(`^\s*import\s+"([^"]+)"\s*$`),
		regexp.MustCompile(`^\s*(?:\w+\s+)?"([^"]+)"\s*$`),
	},
	"py": {
		regexp.MustCompile(`^\s*import\s+([\w.]+)`),
		regexp.MustCompile(`^\s*from\s+([\w.]+)\s+import\b`),
	},
	"js":  jsFamilyImports,
	"ts":  jsFamilyImports,
	"jsx": jsFamilyImports,
	"tsx": jsFamilyImports,
	"java": {
		regexp.MustCompile(`^\s*import\s+(?:static\s+)?([\w.]+)\s*;`),
	},
	"rs": {
		regexp.MustCompile(`^\s*use\s+([\w:]+)`),
	},
	"c":   cFamilyImports,
	"h":   cFamilyImports,
	"cc":  cFamilyImports,
	"cpp": cFamilyImports,
	"cxx": cFamilyImports,
	"hpp": cFamilyImports,
}

var jsFamilyImports = []*regexp.Regexp{
	regexp.MustCompile(`^\s*import\b.*\bfrom\s+['"]([^'"]+)['"]`),
	regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`),
}

var cFamilyImports = []*regexp.Regexp{
	regexp.MustCompile(`^\s*#include\s*[<"]([^">]+)[">]`),
}

// LineVisitor is a regex line-scanner covering the Go/Python/JS/TS/Java/
// Rust/C declaration forms listed above. CompositeVisitor, which the
// ANALYSIS plugin uses, falls back to it for every recognised extension
// other than .go, and for .go files when tree-sitter yields no nodes.
type LineVisitor struct{}

// Visit implements SourceVisitor.
func (LineVisitor) Visit(path string, content []byte) (Visited, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	patterns, ok := languagePatterns[ext]
	if !ok {
		return Visited{}, nil
	}

	moduleID := graphmodel.NodeID(path, graphmodel.KindModule, path, 0)
	result := Visited{
		Nodes: []graphmodel.Node{{
			ID:       moduleID,
			Kind:     graphmodel.KindModule,
			Location: &graphmodel.Location{File: path},
		}},
	}

	imports := importPatterns[ext]

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		for _, p := range patterns {
			m := p.pattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			name := m[1]
			id := graphmodel.NodeID(path, p.kind, name, lineNum)
			result.Nodes = append(result.Nodes, graphmodel.Node{
				ID:       id,
				Kind:     p.kind,
				Location: &graphmodel.Location{File: path, Line: lineNum},
				Attributes: map[string]any{
					"name":      name,
					"signature": strings.TrimSpace(line),
				},
			})
			result.Edges = append(result.Edges, graphmodel.Edge{
				Src: moduleID, Dst: id, Kind: graphmodel.EdgeContains,
			})
			break
		}
		for _, ip := range imports {
			m := ip.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			source := m[1]
			id := graphmodel.NodeID(path, graphmodel.KindImport, source, lineNum)
			result.Nodes = append(result.Nodes, graphmodel.Node{
				ID:       id,
				Kind:     graphmodel.KindImport,
				Location: &graphmodel.Location{File: path, Line: lineNum},
				Attributes: map[string]any{"source": source},
			})
			result.Edges = append(result.Edges, graphmodel.Edge{
				Src: moduleID, Dst: id, Kind: graphmodel.EdgeImportsFrom,
			})
			break
		}
	}
	return result, scanner.Err()
}
