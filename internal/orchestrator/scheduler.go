package orchestrator

import "sort"

// topoSort orders plugins within a single phase so that every plugin runs
// after the plugins it names in Dependencies, spec.md §4.4.2. Returns one
// or more "waves" — plugins within the same wave have no dependency on
// each other and may run concurrently; later waves depend on earlier ones.
// Detects cycles, returning a *PluginCycleError naming the phase and the
// offending chain.
func topoSort(phase Phase, plugins []Plugin) ([][]Plugin, error) {
	byName := make(map[string]Plugin, len(plugins))
	for _, p := range plugins {
		byName[p.Metadata().Name] = p
	}

	indegree := make(map[string]int, len(plugins))
	dependents := make(map[string][]string, len(plugins))
	for _, p := range plugins {
		name := p.Metadata().Name
		if _, ok := indegree[name]; !ok {
			indegree[name] = 0
		}
		for _, dep := range p.Metadata().Dependencies {
			if _, ok := byName[dep]; !ok {
				// A dependency outside this phase's plugin set is ignored
				// here; Orchestrator.Register only rejects duplicate names
				// and does not check that a dependency names a registered
				// plugin. Here we only order what we were given.
				continue
			}
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var waves [][]Plugin
	remaining := len(plugins)
	for remaining > 0 {
		var ready []string
		for name, deg := range indegree {
			if deg == 0 {
				ready = append(ready, name)
			}
		}
		if len(ready) == 0 {
			return nil, &PluginCycleError{Phase: phase, Cycle: remainingNames(indegree)}
		}
		sort.Strings(ready) // deterministic wave ordering
		wave := make([]Plugin, 0, len(ready))
		for _, name := range ready {
			wave = append(wave, byName[name])
			delete(indegree, name)
			remaining--
		}
		for _, name := range ready {
			for _, dep := range dependents[name] {
				if _, ok := indegree[dep]; ok {
					indegree[dep]--
				}
			}
		}
		waves = append(waves, wave)
	}
	return waves, nil
}

func remainingNames(indegree map[string]int) []string {
	names := make([]string, 0, len(indegree))
	for name := range indegree {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
