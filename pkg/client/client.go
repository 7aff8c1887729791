// Package client is the Go client library for the Graph Server's socket
// protocol (spec.md §6.1), consumed by the Orchestrator's batching layer
// (internal/orchestrator) and by the graphctl CLI shell. Grounded on the
// teacher's internal/mcp transport call()/pendingReqs pattern, adapted from
// JSON-RPC-over-stdio to length-prefixed MessagePack-over-socket.
package client

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"

	"graphkb/internal/wire"
)

// NodeArg and EdgeArg alias the wire package's wire-safe node/edge shapes so
// callers of this package build requests without a second import.
type NodeArg = wire.NodeArg
type EdgeArg = wire.EdgeArg

// Client is a single connection to a Graph Server. It is safe for
// concurrent use: multiple goroutines may call its methods at once, each
// request/response pair is correlated by request ID regardless of
// interleaving with other callers.
type Client struct {
	conn net.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan wire.Response
	closed  bool
	closeCh chan struct{}
}

// Dial connects to a Graph Server listening on a Unix domain socket at
// socketPath.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", socketPath, err)
	}
	c := &Client{
		conn:    conn,
		pending: make(map[string]chan wire.Response),
		closeCh: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Close terminates the connection and fails any in-flight calls.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.closeCh)
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()
	return c.conn.Close()
}

func (c *Client) readLoop() {
	for {
		resp, err := wire.ReadResponse(c.conn)
		if err != nil {
			c.mu.Lock()
			for id, ch := range c.pending {
				close(ch)
				delete(c.pending, id)
			}
			c.mu.Unlock()
			return
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.RequestID]
		if ok {
			delete(c.pending, resp.RequestID)
		}
		c.mu.Unlock()

		if ok {
			ch <- resp
		}
	}
}

// call sends req (assigning a request ID if absent) and waits for its
// matching response, or for ctx to be cancelled.
func (c *Client) call(ctx context.Context, req wire.Request) (wire.Response, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	ch := make(chan wire.Response, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return wire.Response{}, fmt.Errorf("client: connection closed")
	}
	c.pending[req.RequestID] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	err := wire.WriteRequest(c.conn, req)
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, req.RequestID)
		c.mu.Unlock()
		return wire.Response{}, fmt.Errorf("client: write request: %w", err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return wire.Response{}, fmt.Errorf("client: connection closed while awaiting response")
		}
		if resp.Kind == wire.RespError {
			return resp, fmt.Errorf("client: server error %s: %s", resp.ErrorCode, resp.ErrorMessage)
		}
		return resp, nil
	case <-ctx.Done():
		return wire.Response{}, ctx.Err()
	case <-c.closeCh:
		return wire.Response{}, fmt.Errorf("client: connection closed while awaiting response")
	}
}

func (c *Client) AddNode(ctx context.Context, n wire.NodeArg) error {
	_, err := c.call(ctx, wire.Request{Kind: wire.KindAddNode, Node: &n})
	return err
}

func (c *Client) AddNodes(ctx context.Context, nodes []wire.NodeArg) error {
	if len(nodes) == 0 {
		return nil
	}
	_, err := c.call(ctx, wire.Request{Kind: wire.KindAddNodes, Nodes: nodes})
	return err
}

func (c *Client) AddEdge(ctx context.Context, e wire.EdgeArg) error {
	_, err := c.call(ctx, wire.Request{Kind: wire.KindAddEdge, Edge: &e})
	return err
}

func (c *Client) AddEdges(ctx context.Context, edges []wire.EdgeArg) error {
	if len(edges) == 0 {
		return nil
	}
	_, err := c.call(ctx, wire.Request{Kind: wire.KindAddEdges, Edges: edges})
	return err
}

func (c *Client) Flush(ctx context.Context) error {
	_, err := c.call(ctx, wire.Request{Kind: wire.KindFlush})
	return err
}

func (c *Client) Clear(ctx context.Context) error {
	_, err := c.call(ctx, wire.Request{Kind: wire.KindClear})
	return err
}

func (c *Client) GetNode(ctx context.Context, id string) (wire.NodeArg, bool, error) {
	resp, err := c.call(ctx, wire.Request{Kind: wire.KindGetNode, ID: id})
	if err != nil {
		if resp.Kind == wire.RespError && resp.ErrorCode == wire.ErrNotFound {
			return wire.NodeArg{}, false, nil
		}
		return wire.NodeArg{}, false, err
	}
	return *resp.Node, resp.Found, nil
}

func (c *Client) FindByType(ctx context.Context, kind string) ([]wire.NodeArg, error) {
	resp, err := c.call(ctx, wire.Request{Kind: wire.KindFindByType, TypeKind: kind})
	if err != nil {
		return nil, err
	}
	return resp.Nodes, nil
}

func (c *Client) OutgoingEdges(ctx context.Context, id string, kinds ...string) ([]wire.EdgeArg, error) {
	resp, err := c.call(ctx, wire.Request{Kind: wire.KindOutgoingEdges, ID: id, Kinds: kinds})
	if err != nil {
		return nil, err
	}
	return resp.Edges, nil
}

func (c *Client) IncomingEdges(ctx context.Context, id string, kinds ...string) ([]wire.EdgeArg, error) {
	resp, err := c.call(ctx, wire.Request{Kind: wire.KindIncomingEdges, ID: id, Kinds: kinds})
	if err != nil {
		return nil, err
	}
	return resp.Edges, nil
}

func (c *Client) CountNodesByType(ctx context.Context) (map[string]int, error) {
	resp, err := c.call(ctx, wire.Request{Kind: wire.KindCountNodesByType})
	if err != nil {
		return nil, err
	}
	return resp.Counts, nil
}

func (c *Client) CountEdgesByType(ctx context.Context) (map[string]int, error) {
	resp, err := c.call(ctx, wire.Request{Kind: wire.KindCountEdgesByType})
	if err != nil {
		return nil, err
	}
	return resp.Counts, nil
}

// DatalogQuery evaluates a single atom. explain opts into ExplainResult.
func (c *Client) DatalogQuery(ctx context.Context, query string, explain bool) (wire.Response, error) {
	return c.call(ctx, wire.Request{Kind: wire.KindDatalogQuery, Query: query, Explain: explain})
}

// ExecuteDatalog evaluates a rule program or a literal conjunction.
func (c *Client) ExecuteDatalog(ctx context.Context, source string, explain bool) (wire.Response, error) {
	return c.call(ctx, wire.Request{Kind: wire.KindExecuteDatalog, Source: source, Explain: explain})
}

// CheckGuarantee compiles ruleSource and runs its first rule's head as the
// query. Required to behave identically to ExecuteDatalog over the same
// rule program source (spec.md §9).
func (c *Client) CheckGuarantee(ctx context.Context, ruleSource string, explain bool) (wire.Response, error) {
	return c.call(ctx, wire.Request{Kind: wire.KindCheckGuarantee, RuleSource: ruleSource, Explain: explain})
}

func (c *Client) DatalogLoadRules(ctx context.Context, source string) error {
	_, err := c.call(ctx, wire.Request{Kind: wire.KindDatalogLoadRules, Source: source})
	return err
}

func (c *Client) DatalogClearRules(ctx context.Context) error {
	_, err := c.call(ctx, wire.Request{Kind: wire.KindDatalogClearRules})
	return err
}
