package client

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"graphkb/internal/graph"
	"graphkb/internal/server"
)

func startTestServer(t *testing.T) (sockPath string, cleanup func()) {
	t.Helper()

	store, err := graph.Open("")
	if err != nil {
		t.Fatalf("graph.Open: %v", err)
	}

	dir := t.TempDir()
	sockPath = filepath.Join(dir, "test.sock")

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

	cleanup = func() {
		cancel()
		srv.Close()
		store.Close()
	}
	return sockPath, cleanup
}

func TestAddNodeAndGetNode(t *testing.T) {
	sockPath, cleanup := startTestServer(t)
	defer cleanup()

	c, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	if err := c.AddNode(ctx, NodeArg{ID: "f1", Kind: "FUNCTION"}); err != nil {
		t.Fatalf("AddNode: %v", err)
	}

	n, found, err := c.GetNode(ctx, "f1")
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if !found || n.Kind != "FUNCTION" {
		t.Fatalf("GetNode = %+v, found=%v; want FUNCTION, true", n, found)
	}
}

func TestGetNodeNotFoundReturnsFalseNoError(t *testing.T) {
	sockPath, cleanup := startTestServer(t)
	defer cleanup()

	c, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	_, found, err := c.GetNode(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetNode returned error: %v", err)
	}
	if found {
		t.Fatalf("expected found=false")
	}
}

func TestConcurrentCallsAreCorrelatedByRequestID(t *testing.T) {
	sockPath, cleanup := startTestServer(t)
	defer cleanup()

	c, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		if err := c.AddNode(ctx, NodeArg{ID: string(rune('a' + i)), Kind: "FUNCTION"}); err != nil {
			t.Fatalf("AddNode %d: %v", i, err)
		}
	}

	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		id := string(rune('a' + i))
		go func() {
			_, found, err := c.GetNode(ctx, id)
			if err != nil {
				errs <- err
				return
			}
			if !found {
				errs <- fmt.Errorf("node not found: %s", id)
				return
			}
			errs <- nil
		}()
	}
	for i := 0; i < 20; i++ {
		if err := <-errs; err != nil {
			t.Errorf("concurrent GetNode: %v", err)
		}
	}
}

func TestDatalogQueryRoundTrip(t *testing.T) {
	sockPath, cleanup := startTestServer(t)
	defer cleanup()

	c, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	if err := c.AddNode(ctx, NodeArg{ID: "f1", Kind: "FUNCTION"}); err != nil {
		t.Fatalf("AddNode: %v", err)
	}

	resp, err := c.DatalogQuery(ctx, `node(X, "FUNCTION")`, false)
	if err != nil {
		t.Fatalf("DatalogQuery: %v", err)
	}
	if resp.Explain != nil {
		t.Errorf("Explain should be nil without opt-in")
	}
	if len(resp.Results) != 1 || resp.Results[0].Bindings["X"] != "f1" {
		t.Fatalf("results = %+v, want [{X: f1}]", resp.Results)
	}
}

func TestBatcherFlushesOnSize(t *testing.T) {
	sockPath, cleanup := startTestServer(t)
	defer cleanup()

	c, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	b := NewBatcher(c, 2)
	ctx := context.Background()
	if err := b.AddNode(ctx, NodeArg{ID: "n1", Kind: "FUNCTION"}); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if err := b.AddNode(ctx, NodeArg{ID: "n2", Kind: "FUNCTION"}); err != nil {
		t.Fatalf("AddNode: %v", err)
	}

	if _, found, _ := c.GetNode(ctx, "n1"); !found {
		t.Fatalf("expected n1 to be flushed to the server after hitting batch size")
	}
}

func TestBatcherFlushShipsRemainderAndResolvesEdges(t *testing.T) {
	sockPath, cleanup := startTestServer(t)
	defer cleanup()

	c, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	b := NewBatcher(c, 100)
	ctx := context.Background()
	if err := b.AddNode(ctx, NodeArg{ID: "a", Kind: "FUNCTION"}); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if err := b.AddNode(ctx, NodeArg{ID: "b", Kind: "FUNCTION"}); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if err := b.AddEdge(ctx, EdgeArg{Src: "a", Dst: "b", Kind: "CALLS"}); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}

	if err := b.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	edges, err := c.OutgoingEdges(ctx, "a")
	if err != nil {
		t.Fatalf("OutgoingEdges: %v", err)
	}
	if len(edges) != 1 || edges[0].Dst != "b" {
		t.Fatalf("edges = %+v, want a single a->b edge", edges)
	}
}
