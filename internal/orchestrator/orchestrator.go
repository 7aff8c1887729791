package orchestrator

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"graphkb/internal/config"
	"graphkb/internal/logging"
	"graphkb/pkg/client"
)

// Orchestrator runs a phase-ordered plugin pipeline against a Graph Server,
// spec.md §2/§4.4.
type Orchestrator struct {
	client *client.Client
	cfg    config.OrchestratorConfig
	log    *zap.SugaredLogger

	plugins map[string]Plugin
	byPhase map[Phase][]Plugin
}

// New constructs an Orchestrator writing through c, with no plugins
// registered. Callers append built-ins (internal/orchestrator/builtin) and
// any of their own via Register.
func New(c *client.Client, cfg config.OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		client:  c,
		cfg:     cfg,
		log:     logging.Get(logging.CategoryOrchestrator).Sugar(),
		plugins: make(map[string]Plugin),
		byPhase: make(map[Phase][]Plugin),
	}
}

// Register adds a plugin to the pipeline. Returns ErrDuplicatePlugin if
// another plugin already registered under the same name.
func (o *Orchestrator) Register(p Plugin) error {
	name := p.Metadata().Name
	if _, exists := o.plugins[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicatePlugin, name)
	}
	o.plugins[name] = p
	phase := p.Metadata().Phase
	o.byPhase[phase] = append(o.byPhase[phase], p)
	return nil
}

// workerLimit resolves the configured worker count, defaulting to
// runtime.NumCPU() per spec.md §5's scheduling model.
func (o *Orchestrator) workerLimit() int {
	if o.cfg.Workers > 0 {
		return o.cfg.Workers
	}
	return runtime.NumCPU()
}

// Run drives every registered plugin through its phase in order, spec.md
// §4.4.2: DISCOVERY, INDEXING, ANALYSIS, ENRICHMENT (with a dependency-
// propagation re-queue pass and a strict-mode barrier), VALIDATION.
func (o *Orchestrator) Run(ctx context.Context, roots []string) (Report, error) {
	resources := NewResources()
	resources.Set(ResourceRoots, roots)

	report := Report{}

	for _, phase := range phaseOrder {
		plugins := o.byPhase[phase]
		if len(plugins) == 0 {
			continue
		}

		var diags []Diagnostic
		var runErr error
		if phase == PhaseEnrichment {
			diags, runErr = o.runEnrichment(ctx, plugins, resources, &report)
		} else {
			diags, _, runErr = o.runPhase(ctx, phase, plugins, resources, &report)
		}
		if runErr != nil {
			return report, runErr
		}
		report.Diagnostics = append(report.Diagnostics, diags...)

		if err := o.client.Flush(ctx); err != nil {
			return report, fmt.Errorf("orchestrator: flush after phase %s: %w", phase, err)
		}

		if phase == PhaseEnrichment {
			fatal := fatalDiagnostics(diags)
			if len(fatal) > 0 {
				for _, d := range fatal {
					o.log.Errorf("%s: %s (%s:%d) — %s", d.Code, d.Message, d.File, d.Line, d.Suggestion)
				}
				report.FatalCount = len(fatal)
				return report, fmt.Errorf("%w: %d fatal diagnostic(s)", ErrStrictModeViolation, len(fatal))
			}
		}
	}

	return report, nil
}

// runPhase topologically sorts plugins within phase and runs each wave
// concurrently, bounded by workerLimit. Exclusive plugins run alone. The
// returned int is the total nodes+edges created, used by ENRICHMENT's
// convergence check.
func (o *Orchestrator) runPhase(ctx context.Context, phase Phase, plugins []Plugin, resources *Resources, report *Report) ([]Diagnostic, int, error) {
	waves, err := topoSort(phase, plugins)
	if err != nil {
		return nil, 0, err
	}

	var diags []Diagnostic
	created := 0
	for _, wave := range waves {
		d, n, err := o.runWave(ctx, phase, wave, resources, report)
		if err != nil {
			return diags, created, err
		}
		diags = append(diags, d...)
		created += n
	}
	return diags, created, nil
}

func (o *Orchestrator) runWave(ctx context.Context, phase Phase, wave []Plugin, resources *Resources, report *Report) ([]Diagnostic, int, error) {
	var diags []Diagnostic
	var diagErr error
	created := 0

	for _, p := range wave {
		if p.Metadata().Exclusive {
			d, n, err := o.runOne(ctx, phase, p, resources, report)
			diags = append(diags, d...)
			created += n
			diagErr = multierr.Append(diagErr, err)
		}
	}

	var concurrent []Plugin
	for _, p := range wave {
		if !p.Metadata().Exclusive {
			concurrent = append(concurrent, p)
		}
	}
	if len(concurrent) == 0 {
		return diags, created, diagErr
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workerLimit())
	diagResults := make([][]Diagnostic, len(concurrent))
	countResults := make([]int, len(concurrent))
	for i, p := range concurrent {
		i, p := i, p
		g.Go(func() error {
			d, n, err := o.runOne(gctx, phase, p, resources, report)
			diagResults[i] = d
			countResults[i] = n
			return err
		})
	}
	runErr := g.Wait()
	for i, d := range diagResults {
		diags = append(diags, d...)
		created += countResults[i]
	}
	return diags, created, multierr.Append(diagErr, runErr)
}

func (o *Orchestrator) runOne(ctx context.Context, phase Phase, p Plugin, resources *Resources, report *Report) ([]Diagnostic, int, error) {
	meta := p.Metadata()
	if meta.Deprecated != "" {
		o.log.Warnf("plugin %s is deprecated: %s", meta.Name, meta.Deprecated)
	}

	pc := &Context{
		Client:     o.client,
		Batch:      client.NewBatcher(o.client, o.cfg.BatchSize),
		Log:        logging.Get(logging.CategoryPlugin).Sugar().With("plugin", meta.Name),
		Resources:  resources,
		StrictMode: o.cfg.StrictMode,
		Config:     o.cfg,
		phase:      phase,
	}

	result, err := p.Execute(ctx, pc)
	if err != nil {
		return nil, 0, fmt.Errorf("orchestrator: plugin %s: %w", meta.Name, err)
	}
	if err := pc.Batch.Flush(ctx); err != nil {
		return nil, 0, fmt.Errorf("orchestrator: plugin %s: flush: %w", meta.Name, err)
	}

	resources.AppendStrings(ResourceCovers, meta.Covers)
	report.PluginRuns++
	return result.Errors, result.NodesCreated + result.EdgesCreated, nil
}

// runEnrichment runs ENRICHMENT's waves, then re-queues every ENRICHMENT
// plugin that declares a dependency (its inputs may have changed) until a
// pass creates nothing new or EnrichmentMaxIterations is hit, spec.md
// §4.4.2.
func (o *Orchestrator) runEnrichment(ctx context.Context, plugins []Plugin, resources *Resources, report *Report) ([]Diagnostic, error) {
	maxIter := o.cfg.EnrichmentMaxIterations
	if maxIter <= 0 {
		maxIter = 8
	}

	diags, created, err := o.runPhase(ctx, PhaseEnrichment, plugins, resources, report)
	if err != nil {
		return diags, err
	}

	requeue := dependentPlugins(plugins)
	for iter := 1; created > 0 && len(requeue) > 0; iter++ {
		if iter >= maxIter {
			names := make([]string, len(requeue))
			for i, p := range requeue {
				names[i] = p.Metadata().Name
			}
			return diags, &EnrichmentOverrun{MaxIterations: maxIter, Pending: names}
		}
		var d []Diagnostic
		d, created, err = o.runPhase(ctx, PhaseEnrichment, requeue, resources, report)
		if err != nil {
			return diags, err
		}
		diags = append(diags, d...)
	}

	return diags, nil
}

// dependentPlugins returns the subset of plugins that declare at least one
// dependency, whether or not it names a plugin in the same set: the ones
// worth a second look once their dependencies have written their output.
func dependentPlugins(plugins []Plugin) []Plugin {
	var out []Plugin
	for _, p := range plugins {
		if len(p.Metadata().Dependencies) > 0 {
			out = append(out, p)
		}
	}
	return out
}

func fatalDiagnostics(diags []Diagnostic) []Diagnostic {
	var fatal []Diagnostic
	for _, d := range diags {
		if d.Severity == SeverityFatal {
			fatal = append(fatal, d)
		}
	}
	return fatal
}
