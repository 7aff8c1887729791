package client

import (
	"context"
	"fmt"
)

// defaultBatchSize bounds how many nodes or edges accumulate client-side
// before an automatic flush to the server, keeping any single AddNodes/
// AddEdges wire frame well under the server's maxFrameBytes guard.
const defaultBatchSize = 500

// Batcher buffers AddNode/AddEdge calls from a single writer (an
// orchestrator plugin) and ships them to the server in bounded batches,
// rather than one request per node or edge. Not safe for concurrent use by
// multiple goroutines — each orchestrator plugin owns its own Batcher.
type Batcher struct {
	client    *Client
	batchSize int

	nodes []NodeArg
	edges []EdgeArg
}

// NewBatcher wraps c with client-side buffering. batchSize<=0 selects
// defaultBatchSize.
func NewBatcher(c *Client, batchSize int) *Batcher {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Batcher{client: c, batchSize: batchSize}
}

// AddNode buffers a node, then ships the node buffer to the server once it
// holds batchSize nodes.
func (b *Batcher) AddNode(ctx context.Context, n NodeArg) error {
	b.nodes = append(b.nodes, n)
	if len(b.nodes) >= b.batchSize {
		return b.flushNodes(ctx)
	}
	return nil
}

// AddEdge buffers an edge, then ships the edge buffer to the server once it
// holds batchSize edges.
func (b *Batcher) AddEdge(ctx context.Context, e EdgeArg) error {
	b.edges = append(b.edges, e)
	if len(b.edges) >= b.batchSize {
		return b.flushEdges(ctx)
	}
	return nil
}

func (b *Batcher) flushNodes(ctx context.Context) error {
	if len(b.nodes) == 0 {
		return nil
	}
	if err := b.client.AddNodes(ctx, b.nodes); err != nil {
		return fmt.Errorf("batcher: flush %d nodes: %w", len(b.nodes), err)
	}
	b.nodes = b.nodes[:0]
	return nil
}

func (b *Batcher) flushEdges(ctx context.Context) error {
	if len(b.edges) == 0 {
		return nil
	}
	if err := b.client.AddEdges(ctx, b.edges); err != nil {
		return fmt.Errorf("batcher: flush %d edges: %w", len(b.edges), err)
	}
	b.edges = b.edges[:0]
	return nil
}

// Flush ships any buffered nodes and edges, then issues the server-side
// Flush (dangling-edge resolution/rejection, spec.md §4.1.3). The
// orchestrator calls this when each plugin's Execute returns; its phase
// barrier then issues one more server-side Flush before the next phase.
func (b *Batcher) Flush(ctx context.Context) error {
	if err := b.flushNodes(ctx); err != nil {
		return err
	}
	if err := b.flushEdges(ctx); err != nil {
		return err
	}
	return b.client.Flush(ctx)
}
