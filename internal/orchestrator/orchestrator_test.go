package orchestrator

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"graphkb/internal/config"
	"graphkb/internal/graph"
	"graphkb/internal/server"
	"graphkb/pkg/client"
)

func startTestServerAndClient(t *testing.T) *client.Client {
	t.Helper()

	store, err := graph.Open("")
	require.NoError(t, err)

	dir := t.TempDir()
	sockPath := filepath.Join(dir, "test.sock")

	srv := server.New(store)
	ctx, cancel := context.WithCancel(context.Background())

	ready := make(chan struct{})
	go func() {
		close(ready)
		srv.ListenAndServe(ctx, sockPath)
	}()
	<-ready

	for i := 0; i < 50; i++ {
		conn, derr := net.Dial("unix", sockPath)
		if derr == nil {
			conn.Close()
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	c, err := client.Dial(sockPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		c.Close()
		cancel()
		store.Close()
	})
	return c
}

// nodeWritingPlugin adds one node per Execute call, for observing that a
// phase's writes are visible after its barrier flush.
type nodeWritingPlugin struct {
	meta Metadata
	id   string
	kind string
}

func (p nodeWritingPlugin) Metadata() Metadata { return p.meta }

func (p nodeWritingPlugin) Execute(ctx context.Context, pc *Context) (Result, error) {
	if err := pc.Batch.AddNode(ctx, client.NodeArg{ID: p.id, Kind: p.kind}); err != nil {
		return Result{}, err
	}
	return Result{NodesCreated: 1}, nil
}

func TestRegisterRejectsDuplicateNames(t *testing.T) {
	c := startTestServerAndClient(t)
	o := New(c, config.Default().Orchestrator)

	p := nodeWritingPlugin{meta: Metadata{Name: "dup", Phase: PhaseAnalysis}, id: "n1", kind: "FUNCTION"}
	require.NoError(t, o.Register(p))

	err := o.Register(p)
	require.ErrorIs(t, err, ErrDuplicatePlugin)
}

func TestRunFlushesBetweenPhases(t *testing.T) {
	c := startTestServerAndClient(t)
	o := New(c, config.Default().Orchestrator)

	require.NoError(t, o.Register(nodeWritingPlugin{
		meta: Metadata{Name: "disc", Phase: PhaseDiscovery}, id: "n:disc", kind: "MODULE",
	}))
	require.NoError(t, o.Register(nodeWritingPlugin{
		meta: Metadata{Name: "analysis", Phase: PhaseAnalysis}, id: "n:analysis", kind: "FUNCTION",
	}))

	ctx := context.Background()
	report, err := o.Run(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, 2, report.PluginRuns)

	counts, err := c.CountNodesByType(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, counts["MODULE"])
	require.Equal(t, 1, counts["FUNCTION"])
}

// faultyEnrichmentPlugin always reports a fatal diagnostic, exercising the
// strict-mode barrier after ENRICHMENT.
type faultyEnrichmentPlugin struct{}

func (faultyEnrichmentPlugin) Metadata() Metadata {
	return Metadata{Name: "faulty", Phase: PhaseEnrichment}
}

func (faultyEnrichmentPlugin) Execute(ctx context.Context, pc *Context) (Result, error) {
	return Result{Errors: []Diagnostic{{
		Code:     "STRICT_UNRESOLVED_CALL",
		Severity: SeverityFatal,
		Plugin:   "faulty",
		Message:  "boom",
	}}}, nil
}

func TestRunStrictModeBarrierHaltsOnFatalDiagnostics(t *testing.T) {
	c := startTestServerAndClient(t)
	cfg := config.Default().Orchestrator
	cfg.StrictMode = true
	o := New(c, cfg)
	require.NoError(t, o.Register(faultyEnrichmentPlugin{}))

	report, err := o.Run(context.Background(), nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrStrictModeViolation))
	require.Equal(t, 1, report.FatalCount)
}

// alwaysCreatesPlugin reports one creation per call, forcing the ENRICHMENT
// re-queue loop to keep iterating until EnrichmentMaxIterations is hit.
type alwaysCreatesPlugin struct{}

func (alwaysCreatesPlugin) Metadata() Metadata {
	return Metadata{Name: "loops", Phase: PhaseEnrichment, Dependencies: []string{"loops-dep"}}
}

func (alwaysCreatesPlugin) Execute(ctx context.Context, pc *Context) (Result, error) {
	return Result{EdgesCreated: 1}, nil
}

func TestRunEnrichmentOverrun(t *testing.T) {
	c := startTestServerAndClient(t)
	cfg := config.Default().Orchestrator
	cfg.EnrichmentMaxIterations = 2
	o := New(c, cfg)
	require.NoError(t, o.Register(alwaysCreatesPlugin{}))

	_, err := o.Run(context.Background(), nil)
	require.Error(t, err)
	var overrun *EnrichmentOverrun
	require.True(t, errors.As(err, &overrun))
	require.Equal(t, 2, overrun.MaxIterations)
}
