package builtin

import (
	"context"
	"fmt"
	"strings"

	"graphkb/internal/graphmodel"
	"graphkb/internal/orchestrator"
	"graphkb/pkg/client"
)

// ResolvePlugin is the ENRICHMENT-phase plugin that cross-references
// EXTERNAL_MODULE call targets against the whole graph's FUNCTION set,
// resolving same-project calls Analysis could only see one file at a time
// (spec.md §4.4.4). A target that stays unresolved while strict mode is on
// becomes a fatal diagnostic, unless the callee name is denylisted as a
// known external object.
type ResolvePlugin struct{}

func (ResolvePlugin) Metadata() orchestrator.Metadata {
	return orchestrator.Metadata{
		Name:         "builtin.resolve",
		Phase:        orchestrator.PhaseEnrichment,
		Creates:      []string{graphmodel.EdgeCalls},
		Dependencies: nil,
	}
}

func (ResolvePlugin) Execute(ctx context.Context, pc *orchestrator.Context) (orchestrator.Result, error) {
	result := orchestrator.Result{}

	functions, err := pc.Client.FindByType(ctx, graphmodel.KindFunction)
	if err != nil {
		return result, fmt.Errorf("builtin.resolve: list functions: %w", err)
	}
	byName := make(map[string][]string) // function name -> node IDs (may span files)
	for _, f := range functions {
		name, _ := f.Attributes["name"].(string)
		if name == "" {
			continue
		}
		byName[name] = append(byName[name], f.ID)
	}

	// callForms records, per callee name, whether any call site used
	// selector ("method") form — used only to pick a diagnostic code.
	calls, err := pc.Client.FindByType(ctx, graphmodel.KindCall)
	if err != nil {
		return result, fmt.Errorf("builtin.resolve: list call sites: %w", err)
	}
	callForms := make(map[string]string)
	for _, c := range calls {
		callee, _ := c.Attributes["callee"].(string)
		form, _ := c.Attributes["form"].(string)
		if callee != "" && callForms[callee] != "method" {
			callForms[callee] = form
		}
	}

	placeholders, err := pc.Client.FindByType(ctx, graphmodel.KindExternalModule)
	if err != nil {
		return result, fmt.Errorf("builtin.resolve: list external placeholders: %w", err)
	}

	for _, ph := range placeholders {
		name := strings.TrimPrefix(ph.ID, graphmodel.KindExternalModule+":")
		targets, ok := byName[name]
		if !ok {
			continue
		}

		callers, err := pc.Client.IncomingEdges(ctx, ph.ID, graphmodel.EdgeCalls)
		if err != nil {
			return result, fmt.Errorf("builtin.resolve: incoming edges for %s: %w", ph.ID, err)
		}
		for _, in := range callers {
			for _, target := range targets {
				if err := pc.Batch.AddEdge(ctx, client.EdgeArg{Src: in.Src, Dst: target, Kind: graphmodel.EdgeCalls}); err != nil {
					return result, err
				}
				result.EdgesCreated++
			}
		}
	}

	if pc.StrictMode {
		result.Errors = append(result.Errors, unresolvedDiagnostics(ctx, pc, placeholders, byName, callForms)...)
	}

	result.Summary = fmt.Sprintf("resolved %d cross-file call edge(s)", result.EdgesCreated)
	pc.Progress("builtin.resolve", result.Summary)
	return result, nil
}

// unresolvedDiagnostics builds a STRICT_UNRESOLVED_CALL/STRICT_UNRESOLVED_METHOD
// diagnostic for every EXTERNAL_MODULE placeholder that never resolved to a
// known function and is not denylisted, per spec.md §4.4.4.
func unresolvedDiagnostics(
	ctx context.Context,
	pc *orchestrator.Context,
	placeholders []client.NodeArg,
	byName map[string][]string,
	callForms map[string]string,
) []orchestrator.Diagnostic {
	var diags []orchestrator.Diagnostic
	for _, ph := range placeholders {
		name := strings.TrimPrefix(ph.ID, graphmodel.KindExternalModule+":")
		if _, ok := byName[name]; ok {
			continue
		}
		if isDenylistedCallee(name) {
			continue
		}

		callers, err := pc.Client.IncomingEdges(ctx, ph.ID, graphmodel.EdgeCalls)
		if err != nil || len(callers) == 0 {
			continue
		}

		code, form := "STRICT_UNRESOLVED_CALL", "call"
		if callForms[name] == "method" {
			code, form = "STRICT_UNRESOLVED_METHOD", "method"
		}

		file, line := callSiteLocation(ctx, pc, callers[0].Src, name)

		diags = append(diags, orchestrator.Diagnostic{
			Code:       code,
			Severity:   orchestrator.SeverityFatal,
			Plugin:     "builtin.resolve",
			File:       file,
			Line:       line,
			Message:    fmt.Sprintf("unresolved %s %q has no matching function in the analysed source", form, name),
			Suggestion: fmt.Sprintf("define %q in the analysed roots, or add it to the external-callee denylist if it is a known library call", name),
		})
	}
	return diags
}

// callSiteLocation finds the CALL node reached by a CONTAINS edge from the
// enclosing function funcID whose callee attribute matches name, and
// returns its own File/Line — the actual call-site line (treesitter_visitor.go's
// addCallNode gives each CALL node its own Location), not the enclosing
// function's declaration line.
func callSiteLocation(ctx context.Context, pc *orchestrator.Context, funcID, name string) (string, int) {
	contained, err := pc.Client.OutgoingEdges(ctx, funcID, graphmodel.EdgeContains)
	if err != nil {
		return "", 0
	}
	for _, e := range contained {
		call, found, err := pc.Client.GetNode(ctx, e.Dst)
		if err != nil || !found || call.Kind != graphmodel.KindCall {
			continue
		}
		if callee, _ := call.Attributes["callee"].(string); callee == name {
			return call.File, call.Line
		}
	}
	return "", 0
}
