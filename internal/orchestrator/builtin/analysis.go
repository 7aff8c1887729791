package builtin

import (
	"context"
	"fmt"
	"os"

	"graphkb/internal/codedom"
	"graphkb/internal/orchestrator"
)

// AnalysisPlugin drives a codedom.SourceVisitor over every file Discovery
// found, handing the extracted nodes/edges to the plugin's Batcher
// (spec.md §4.4.7's per-plugin buffering).
type AnalysisPlugin struct {
	Visitor codedom.SourceVisitor
}

// NewAnalysisPlugin builds an AnalysisPlugin backed by a CompositeVisitor
// (tree-sitter for Go, regex scanning for everything else).
func NewAnalysisPlugin() *AnalysisPlugin {
	return &AnalysisPlugin{Visitor: codedom.NewCompositeVisitor()}
}

func (AnalysisPlugin) Metadata() orchestrator.Metadata {
	return orchestrator.Metadata{
		Name:         "builtin.analysis",
		Phase:        orchestrator.PhaseAnalysis,
		Creates:      []string{"MODULE", "FUNCTION", "CLASS", "INTERFACE", "IMPORT", "CALL"},
		Dependencies: []string{"builtin.discovery"},
	}
}

func (a *AnalysisPlugin) Execute(ctx context.Context, pc *orchestrator.Context) (orchestrator.Result, error) {
	files := pc.Resources.GetStrings(ResourceFiles)
	result := orchestrator.Result{}

	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			result.Errors = append(result.Errors, orchestrator.Diagnostic{
				Code:     "ANALYSIS_READ_FAILED",
				Severity: orchestrator.SeverityWarning,
				Plugin:   "builtin.analysis",
				File:     path,
				Message:  fmt.Sprintf("could not read file: %v", err),
			})
			continue
		}

		visited, err := a.Visitor.Visit(path, content)
		if err != nil {
			result.Errors = append(result.Errors, orchestrator.Diagnostic{
				Code:     "ANALYSIS_VISIT_FAILED",
				Severity: orchestrator.SeverityWarning,
				Plugin:   "builtin.analysis",
				File:     path,
				Message:  fmt.Sprintf("could not parse file: %v", err),
			})
			continue
		}

		for _, n := range visited.Nodes {
			node := orchestrator.NodeArgFrom(n)
			if err := pc.Batch.AddNode(ctx, node); err != nil {
				return result, err
			}
			result.NodesCreated++
		}
		for _, e := range visited.Edges {
			edge := orchestrator.EdgeArgFrom(e)
			if err := pc.Batch.AddEdge(ctx, edge); err != nil {
				return result, err
			}
			result.EdgesCreated++
		}
	}

	result.Summary = fmt.Sprintf("analysed %d file(s): %d node(s), %d edge(s)", len(files), result.NodesCreated, result.EdgesCreated)
	pc.Progress("builtin.analysis", result.Summary)
	return result, nil
}
