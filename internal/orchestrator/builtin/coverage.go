package builtin

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"graphkb/internal/config"
	"graphkb/internal/graphmodel"
	"graphkb/internal/orchestrator"
)

// platformBuiltins lists packages every language ships as part of its
// standard library — never worth flagging as "uncovered", per spec.md
// §4.4.5's "filters out platform built-ins (a fixed list)".
var platformBuiltins = map[string]bool{
	"fmt": true, "os": true, "strings": true, "strconv": true, "errors": true,
	"context": true, "sync": true, "time": true, "io": true, "bufio": true,
	"bytes": true, "sort": true, "path": true, "net": true, "encoding/json": true,
	"math": true, "regexp": true, "reflect": true,
	"sys": true, "re": true, "json": true, "collections": true, "itertools": true,
	"typing": true, "pathlib": true,
}

// CoveragePlugin is the VALIDATION-phase plugin computing spec.md §4.4.5's
// externally-imported-vs-covered package diff.
type CoveragePlugin struct {
	Config config.CoverageConfig
}

// NewCoveragePlugin builds a CoveragePlugin applying cfg's suppression
// rules.
func NewCoveragePlugin(cfg config.CoverageConfig) *CoveragePlugin {
	return &CoveragePlugin{Config: cfg}
}

func (CoveragePlugin) Metadata() orchestrator.Metadata {
	return orchestrator.Metadata{
		Name:  "builtin.coverage",
		Phase: orchestrator.PhaseValidation,
	}
}

func (c CoveragePlugin) Execute(ctx context.Context, pc *orchestrator.Context) (orchestrator.Result, error) {
	result := orchestrator.Result{}

	imports, err := pc.Client.FindByType(ctx, graphmodel.KindImport)
	if err != nil {
		return result, fmt.Errorf("builtin.coverage: list imports: %w", err)
	}

	external := make(map[string]bool)
	for _, n := range imports {
		source, _ := n.Attributes["source"].(string)
		if source == "" || strings.HasPrefix(source, ".") || strings.HasPrefix(source, "/") {
			continue // relative/absolute paths are internal to the analysed roots
		}
		external[scopedPackageRoot(source)] = true
	}

	covered := make(map[string]bool)
	for _, v := range pc.Resources.GetStrings(orchestrator.ResourceCovers) {
		covered[v] = true
	}

	knownUtilities := make(map[string]bool)
	if c.Config.SuppressKnownUtilities {
		for _, u := range c.Config.KnownUtilities {
			knownUtilities[u] = true
		}
	}

	pkgs := make([]string, 0, len(external))
	for pkg := range external {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs) // deterministic ISSUE node IDs across runs over unchanged source

	for _, pkg := range pkgs {
		if covered[pkg] || platformBuiltins[pkg] || knownUtilities[pkg] {
			continue
		}
		if err := pc.ReportIssue(ctx, orchestrator.IssueSpec{
			Category:   "coverage",
			Severity:   string(orchestrator.SeverityWarning),
			Message:    fmt.Sprintf("package %q is imported but has no analysis plugin covering it", pkg),
			Suggestion: fmt.Sprintf("configure a plugin that declares %q in its Covers list, or add it to known_utilities to suppress this", pkg),
		}); err != nil {
			return result, err
		}
		result.NodesCreated++
	}

	result.Summary = fmt.Sprintf("flagged %d uncovered package(s) out of %d imported", result.NodesCreated, len(external))
	pc.Progress("builtin.coverage", result.Summary)
	return result, nil
}

// scopedPackageRoot extracts "@scope/pkg" from "@scope/pkg/subpath" per
// spec.md §4.4.5's scoped-package handling; anything else is returned as
// the import source verbatim (Go/Java-style import paths already name a
// single package, with no npm-style subpath convention to strip).
func scopedPackageRoot(source string) string {
	if !strings.HasPrefix(source, "@") {
		return source
	}
	parts := strings.SplitN(source, "/", 3)
	if len(parts) >= 2 {
		return parts[0] + "/" + parts[1]
	}
	return source
}
