// Command graphd starts the Graph Server: it opens a Store, binds a Unix
// domain socket, and serves the wire protocol until interrupted. With
// --analyze, it runs the Orchestrator once against a file set before
// continuing to serve, the same way the teacher's cmd/nerd scan subcommand
// populates the knowledge base ahead of interactive use. The orchestrator
// writes through the same client protocol any other caller would use
// (spec.md §2), so graphd dials its own just-started server rather than
// handing the orchestrator a raw Store handle.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"graphkb/internal/config"
	"graphkb/internal/graph"
	"graphkb/internal/logging"
	"graphkb/internal/orchestrator"
	"graphkb/internal/orchestrator/builtin"
	"graphkb/internal/server"
	"graphkb/pkg/client"
)

var (
	configPath string
	verbose    bool
	analyze    []string
	strictFlag bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "graphd",
	Short: "graphd serves the code graph over a Unix domain socket",
	RunE:  runServe,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug-level logging")
	rootCmd.Flags().StringSliceVar(&analyze, "analyze", nil, "run the orchestrator over these root paths before serving")
	rootCmd.Flags().BoolVar(&strictFlag, "strict", false, "fail the analysis run on unresolved references (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if verbose {
		cfg.Logging.Debug = true
	}
	if cmd.Flags().Changed("strict") {
		cfg.Orchestrator.StrictMode = strictFlag
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Logging.Debug {
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	zlog, err := zapCfg.Build()
	if err != nil {
		return fmt.Errorf("graphd: build logger: %w", err)
	}
	defer zlog.Sync()
	logging.Configure(zlog)
	log := logging.Get(logging.CategoryServer).Sugar()

	store, err := graph.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("graphd: open store: %w", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.Remove(cfg.Server.SocketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("graphd: clear stale socket: %w", err)
	}

	srv := server.New(store)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe(ctx, cfg.Server.SocketPath)
	}()
	log.Infof("starting on %s", cfg.Server.SocketPath)

	if len(analyze) > 0 {
		if err := runAnalysis(ctx, cfg, log); err != nil {
			stop()
			<-serveErr
			return err
		}
	}

	if err := <-serveErr; err != nil {
		return fmt.Errorf("graphd: serve: %w", err)
	}
	log.Info("shut down cleanly")
	return nil
}

// runAnalysis dials the server graphd just started and runs the
// orchestrator through that connection, per spec.md §2's "through a client
// that speaks the Server protocol".
func runAnalysis(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) error {
	c, err := dialWithRetry(cfg.Server.SocketPath, 2*time.Second)
	if err != nil {
		return fmt.Errorf("graphd: dial local server for analysis: %w", err)
	}
	defer c.Close()

	log.Infof("running orchestrator over %d root path(s)", len(analyze))
	orch := orchestrator.New(c, cfg.Orchestrator)
	for _, p := range []orchestrator.Plugin{
		builtin.DiscoveryPlugin{},
		builtin.NewAnalysisPlugin(),
		builtin.ResolvePlugin{},
		builtin.NewCoveragePlugin(cfg.Coverage),
	} {
		if err := orch.Register(p); err != nil {
			return fmt.Errorf("graphd: register plugin: %w", err)
		}
	}

	report, err := orch.Run(ctx, analyze)
	if err != nil {
		return fmt.Errorf("graphd: orchestrator run: %w", err)
	}
	log.Infof("orchestrator finished: %d diagnostics (%d fatal)", len(report.Diagnostics), report.FatalCount)
	return nil
}

// dialWithRetry retries client.Dial briefly while the just-spawned server
// goroutine finishes binding its socket.
func dialWithRetry(socketPath string, timeout time.Duration) (*client.Client, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		c, err := client.Dial(socketPath)
		if err == nil {
			return c, nil
		}
		lastErr = err
		time.Sleep(20 * time.Millisecond)
	}
	return nil, lastErr
}
