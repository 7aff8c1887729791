// Command graphctl is a raw-query client for the Graph Server: it dials the
// socket, issues one Datalog query, and prints the result. It carries no
// analysis logic of its own, it is a thin wiring demonstration of the
// pkg/client API, the same role the teacher's cmd/query-kb plays against its
// own store.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"graphkb/internal/didyoumean"
	"graphkb/pkg/client"
)

var (
	socketPath  string
	explainFlag bool
	jsonFlag    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "graphctl",
	Short: "graphctl talks to a running graphd over its Unix domain socket",
}

var queryCmd = &cobra.Command{
	Use:   "query [datalog-source]",
	Short: "evaluate a Datalog query or rule program against the graph",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runQuery,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "report countNodesByType/countEdgesByType for a running server",
	RunE:  runStatus,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "/tmp/graphkb.sock", "Graph Server Unix domain socket path")
	queryCmd.Flags().BoolVar(&explainFlag, "explain", false, "request explain-mode instrumentation")
	queryCmd.Flags().BoolVar(&jsonFlag, "json", false, "print results as JSON on stdout")
	rootCmd.AddCommand(queryCmd, statusCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		if explainFlag {
			fmt.Fprintln(os.Stderr, "warning: --explain has no effect without a query argument, ignoring")
		}
		return fmt.Errorf("graphctl query: a query or rule program argument is required")
	}
	source := args[0]

	c, err := client.Dial(socketPath)
	if err != nil {
		return fmt.Errorf("graphctl: %w", err)
	}
	defer c.Close()

	ctx := context.Background()
	resp, err := c.ExecuteDatalog(ctx, source, explainFlag)
	if err != nil {
		return fmt.Errorf("graphctl: %w", err)
	}

	if len(resp.Results) == 0 {
		for _, hint := range suggestionsForEmptyResult(ctx, c, source) {
			fmt.Fprintln(os.Stderr, hint)
		}
	}

	if jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp.Results)
	}

	for _, row := range resp.Results {
		fmt.Println(row.Bindings)
	}
	if resp.Explain != nil {
		fmt.Fprintf(os.Stderr, "explain: %d step(s), %d total micros\n", len(resp.Explain.Steps), resp.Explain.Profile.TotalMicros)
	}
	return nil
}

// suggestionsForEmptyResult implements spec.md §4.4.6's CLI-side
// did-you-mean path: extract quoted kind constants from source, compare
// against the server's known node/edge kinds.
func suggestionsForEmptyResult(ctx context.Context, c *client.Client, source string) []string {
	nodeCounts, err := c.CountNodesByType(ctx)
	if err != nil {
		return nil
	}
	edgeCounts, err := c.CountEdgesByType(ctx)
	if err != nil {
		return nil
	}
	available := make(map[string]int, len(nodeCounts)+len(edgeCounts))
	for k, v := range nodeCounts {
		available[k] = v
	}
	for k, v := range edgeCounts {
		available[k] += v
	}
	return didyoumean.SuggestKinds(source, available)
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := client.Dial(socketPath)
	if err != nil {
		return fmt.Errorf("graphctl: %w", err)
	}
	defer c.Close()

	ctx := context.Background()
	nodeCounts, err := c.CountNodesByType(ctx)
	if err != nil {
		return fmt.Errorf("graphctl: %w", err)
	}
	edgeCounts, err := c.CountEdgesByType(ctx)
	if err != nil {
		return fmt.Errorf("graphctl: %w", err)
	}

	fmt.Println("nodes:")
	for kind, n := range nodeCounts {
		fmt.Printf("  %s: %d\n", kind, n)
	}
	fmt.Println("edges:")
	for kind, n := range edgeCounts {
		fmt.Printf("  %s: %d\n", kind, n)
	}
	return nil
}
