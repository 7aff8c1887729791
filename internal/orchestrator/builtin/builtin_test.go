package builtin

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"graphkb/internal/config"
	"graphkb/internal/graph"
	"graphkb/internal/orchestrator"
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

func TestPipelineDiscoversAnalysesAndResolvesCalls(t *testing.T) {
	root := t.TempDir()
	src := `package widget

func helper() int {
	return 1
}

func main() {
	helper()
	fmt.Println("hi")
}
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "widget.go"), []byte(src), 0o644))

	c := startTestServerAndClient(t)
	cfg := config.Default().Orchestrator
	o := orchestrator.New(c, cfg)

	require.NoError(t, o.Register(DiscoveryPlugin{}))
	require.NoError(t, o.Register(NewAnalysisPlugin()))
	require.NoError(t, o.Register(ResolvePlugin{}))
	require.NoError(t, o.Register(NewCoveragePlugin(config.Default().Coverage)))

	ctx := context.Background()
	report, err := o.Run(ctx, []string{root})
	require.NoError(t, err)
	require.Equal(t, 4, report.PluginRuns)

	counts, err := c.CountNodesByType(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, counts["FUNCTION"])

	edgeCounts, err := c.CountEdgesByType(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, edgeCounts["CALLS"], 2)
}

func TestResolvePluginDiagnosticUsesCallSiteLineNotFunctionDeclLine(t *testing.T) {
	root := t.TempDir()
	src := `package widget

func helper() int {
	return 1
}

func main() {
	helper()
	doesNotExist()
}
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "widget.go"), []byte(src), 0o644))

	c := startTestServerAndClient(t)
	cfg := config.Default().Orchestrator
	cfg.StrictMode = true
	o := orchestrator.New(c, cfg)

	require.NoError(t, o.Register(DiscoveryPlugin{}))
	require.NoError(t, o.Register(NewAnalysisPlugin()))
	require.NoError(t, o.Register(ResolvePlugin{}))

	ctx := context.Background()
	report, err := o.Run(ctx, []string{root})
	require.Error(t, err, "strict mode should fail the run on the unresolved doesNotExist() call")

	calls, err := c.FindByType(ctx, "CALL")
	require.NoError(t, err)
	var wantLine int
	for _, n := range calls {
		if n.Attributes["callee"] == "doesNotExist" {
			wantLine = n.Line
		}
	}
	require.Equal(t, 9, wantLine, "sanity check: doesNotExist() is called on line 9 of the fixture source")

	var diag orchestrator.Diagnostic
	var found bool
	for _, d := range report.Diagnostics {
		if d.Code == "STRICT_UNRESOLVED_CALL" {
			diag, found = d, true
		}
	}
	require.True(t, found, "expected a STRICT_UNRESOLVED_CALL diagnostic for doesNotExist()")
	require.Equal(t, wantLine, diag.Line, "diagnostic should report the call's own line, not the enclosing function's declaration line")
	require.NotEqual(t, 7, diag.Line, "the enclosing function declaration is on line 7; the diagnostic must not report that line")
}

func TestCoveragePluginFlagsUncoveredImport(t *testing.T) {
	root := t.TempDir()
	src := `package widget

import (
	"fmt"
	"github.com/acme/widgets"
)

func main() {
	fmt.Println(widgets.New())
}
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "widget.go"), []byte(src), 0o644))

	c := startTestServerAndClient(t)
	cfg := config.Default()
	o := orchestrator.New(c, cfg.Orchestrator)

	require.NoError(t, o.Register(DiscoveryPlugin{}))
	require.NoError(t, o.Register(NewAnalysisPlugin()))
	require.NoError(t, o.Register(NewCoveragePlugin(cfg.Coverage)))

	ctx := context.Background()
	_, err := o.Run(ctx, []string{root})
	require.NoError(t, err)

	issues, err := c.FindByType(ctx, "ISSUE")
	require.NoError(t, err)

	var flagged bool
	for _, n := range issues {
		if n.Attributes["category"] == "coverage" {
			flagged = true
		}
	}
	require.True(t, flagged, "expected a coverage ISSUE for github.com/acme/widgets")
}

// TestCoveragePluginIssueIDsAreDeterministicAcrossRuns guards against the
// randomized Go map iteration order over CoveragePlugin's external-package
// set leaking into ISSUE node IDs: re-analysing the same unchanged source
// must assign the same sequence number to the same package every time.
func TestCoveragePluginIssueIDsAreDeterministicAcrossRuns(t *testing.T) {
	root := t.TempDir()
	src := `package widget

import (
	"github.com/zzz/last"
	"github.com/aaa/first"
	"github.com/mmm/middle"
)

func main() {
	first.Do()
	middle.Do()
	last.Do()
}
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "widget.go"), []byte(src), 0o644))

	runOnce := func() map[string]string {
		c := startTestServerAndClient(t)
		cfg := config.Default()
		o := orchestrator.New(c, cfg.Orchestrator)
		require.NoError(t, o.Register(DiscoveryPlugin{}))
		require.NoError(t, o.Register(NewAnalysisPlugin()))
		require.NoError(t, o.Register(NewCoveragePlugin(cfg.Coverage)))

		ctx := context.Background()
		_, err := o.Run(ctx, []string{root})
		require.NoError(t, err)

		issues, err := c.FindByType(ctx, "ISSUE")
		require.NoError(t, err)

		byID := make(map[string]string) // ISSUE node ID -> flagged package, via its Suggestion text
		for _, n := range issues {
			if n.Attributes["category"] == "coverage" {
				byID[n.ID] = n.Attributes["suggestion"].(string)
			}
		}
		return byID
	}

	// Sorted order of the three uncovered packages is aaa/first, mmm/middle,
	// zzz/last — the opposite of the source's import declaration order — so
	// an un-sorted map iteration would assign sequence numbers unpredictably.
	want := map[string]string{
		"ISSUE:coverage:1": "github.com/aaa/first",
		"ISSUE:coverage:2": "github.com/mmm/middle",
		"ISSUE:coverage:3": "github.com/zzz/last",
	}

	for i := 0; i < 2; i++ {
		got := runOnce()
		require.Len(t, got, 3, "expected one coverage ISSUE per uncovered import")
		for id, pkg := range want {
			require.Contains(t, got, id, "expected a deterministic ISSUE node ID %s", id)
			require.Contains(t, got[id], pkg, "ISSUE %s should flag %s, got suggestion %q", id, pkg, got[id])
		}
	}
}

func TestScopedPackageRoot(t *testing.T) {
	cases := map[string]string{
		"github.com/acme/widgets":        "github.com/acme/widgets",
		"@scope/pkg/subpath":             "@scope/pkg",
		"@scope/pkg":                     "@scope/pkg",
		"lodash":                         "lodash",
		"github.com/acme/widgets/v2/sub": "github.com/acme/widgets/v2/sub",
	}
	for in, want := range cases {
		if got := scopedPackageRoot(in); got != want {
			t.Errorf("scopedPackageRoot(%q) = %q, want %q", in, got, want)
		}
	}
}
