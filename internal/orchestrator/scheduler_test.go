package orchestrator

import (
	"context"
	"errors"
	"testing"
)

type fakePlugin struct {
	meta Metadata
}

func (f fakePlugin) Metadata() Metadata { return f.meta }
func (f fakePlugin) Execute(context.Context, *Context) (Result, error) {
	return Result{}, nil
}

func TestTopoSortOrdersByDependency(t *testing.T) {
	a := fakePlugin{Metadata{Name: "a", Phase: PhaseAnalysis}}
	b := fakePlugin{Metadata{Name: "b", Phase: PhaseAnalysis, Dependencies: []string{"a"}}}
	c := fakePlugin{Metadata{Name: "c", Phase: PhaseAnalysis, Dependencies: []string{"b"}}}

	waves, err := topoSort(PhaseAnalysis, []Plugin{c, b, a})
	if err != nil {
		t.Fatalf("topoSort: %v", err)
	}
	if len(waves) != 3 {
		t.Fatalf("waves = %d, want 3", len(waves))
	}
	for i, want := range []string{"a", "b", "c"} {
		if got := waves[i][0].Metadata().Name; got != want {
			t.Errorf("wave %d = %q, want %q", i, got, want)
		}
	}
}

func TestTopoSortIndependentPluginsShareAWave(t *testing.T) {
	a := fakePlugin{Metadata{Name: "a", Phase: PhaseAnalysis}}
	b := fakePlugin{Metadata{Name: "b", Phase: PhaseAnalysis}}

	waves, err := topoSort(PhaseAnalysis, []Plugin{a, b})
	if err != nil {
		t.Fatalf("topoSort: %v", err)
	}
	if len(waves) != 1 || len(waves[0]) != 2 {
		t.Fatalf("waves = %v, want one wave of two plugins", waves)
	}
}

func TestTopoSortDetectsCycle(t *testing.T) {
	a := fakePlugin{Metadata{Name: "a", Phase: PhaseAnalysis, Dependencies: []string{"b"}}}
	b := fakePlugin{Metadata{Name: "b", Phase: PhaseAnalysis, Dependencies: []string{"a"}}}

	_, err := topoSort(PhaseAnalysis, []Plugin{a, b})
	if err == nil {
		t.Fatal("expected a cycle error")
	}
	var cycleErr *PluginCycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *PluginCycleError, got %T: %v", err, err)
	}
	if cycleErr.Phase != PhaseAnalysis {
		t.Errorf("cycle phase = %s, want ANALYSIS", cycleErr.Phase)
	}
}
