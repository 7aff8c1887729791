// Package builtin supplies the orchestrator's always-registered plugins:
// file discovery, source analysis via internal/codedom, unresolved-
// reference enrichment, and coverage validation. Everything here is
// ordinary Plugin implementations — nothing about the orchestrator favours
// built-ins over caller-supplied plugins; these simply cover the minimal
// pipeline spec.md §4.4 requires out of the box.
package builtin

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"

	"graphkb/internal/orchestrator"
)

// ResourceFiles is the Resources key Discovery publishes its file list
// under.
const ResourceFiles = "discovery.files"

// sourceExts are the extensions codedom's visitors recognise; Discovery
// only enumerates these, so Analysis never has to no-op on build output,
// binaries, or vendored assets.
var sourceExts = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".jsx": true, ".tsx": true,
	".java": true, ".rs": true, ".c": true, ".h": true, ".cc": true, ".cpp": true,
	".cxx": true, ".hpp": true,
}

// DiscoveryPlugin walks the configured root paths and publishes the
// matching source files for Analysis to read, the DISCOVERY-phase half of
// turning "a set of input files" (spec.md §2) into plugin input.
type DiscoveryPlugin struct{}

func (DiscoveryPlugin) Metadata() orchestrator.Metadata {
	return orchestrator.Metadata{
		Name:  "builtin.discovery",
		Phase: orchestrator.PhaseDiscovery,
	}
}

func (DiscoveryPlugin) Execute(ctx context.Context, pc *orchestrator.Context) (orchestrator.Result, error) {
	roots := pc.Resources.GetStrings(orchestrator.ResourceRoots)
	var files []string
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if d.Name() == ".git" || d.Name() == "node_modules" || d.Name() == "vendor" {
					return filepath.SkipDir
				}
				return nil
			}
			if sourceExts[filepath.Ext(path)] {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return orchestrator.Result{}, err
		}
	}
	pc.Resources.Set(ResourceFiles, files)
	pc.Progress("builtin.discovery", fmt.Sprintf("discovered %d source file(s)", len(files)))
	return orchestrator.Result{Summary: fmt.Sprintf("discovered %d source file(s)", len(files))}, nil
}
