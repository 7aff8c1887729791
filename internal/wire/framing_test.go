package wire

import (
	"bytes"
	"testing"
)

func TestRoundTripRequest(t *testing.T) {
	req := Request{
		RequestID: "req-1",
		Kind:      KindDatalogQuery,
		Query:     `node(X, "FUNCTION")`,
		Explain:   true,
	}

	var buf bytes.Buffer
	if err := WriteRequest(&buf, req); err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}

	got, err := ReadRequest(&buf)
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}
	if got.RequestID != req.RequestID || got.Kind != req.Kind || got.Query != req.Query || got.Explain != req.Explain {
		t.Errorf("got %+v, want %+v", got, req)
	}
}

func TestRoundTripResponseExplainOmittedWhenNotSet(t *testing.T) {
	resp := Response{
		RequestID: "req-1",
		Kind:      RespDatalogResults,
		Results:   []BindingSet{{Bindings: map[string]string{"X": "f1"}}},
	}

	var buf bytes.Buffer
	if err := WriteResponse(&buf, resp); err != nil {
		t.Fatalf("WriteResponse: %v", err)
	}
	got, err := ReadResponse(&buf)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if got.Explain != nil {
		t.Errorf("Explain should be nil when the response wasn't explain mode, got %+v", got.Explain)
	}
	if len(got.Results) != 1 || got.Results[0].Bindings["X"] != "f1" {
		t.Errorf("Results = %+v, want [{X: f1}]", got.Results)
	}
}

func TestMultipleFramesOnOneStream(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRequest(&buf, Request{RequestID: "1", Kind: KindFlush}); err != nil {
		t.Fatalf("WriteRequest 1: %v", err)
	}
	if err := WriteRequest(&buf, Request{RequestID: "2", Kind: KindClear}); err != nil {
		t.Fatalf("WriteRequest 2: %v", err)
	}

	first, err := ReadRequest(&buf)
	if err != nil {
		t.Fatalf("ReadRequest 1: %v", err)
	}
	second, err := ReadRequest(&buf)
	if err != nil {
		t.Fatalf("ReadRequest 2: %v", err)
	}
	if first.RequestID != "1" || second.RequestID != "2" {
		t.Errorf("got requestIDs %q, %q, want 1, 2", first.RequestID, second.RequestID)
	}
}

func TestFrameExceedingLimitErrors(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	if _, err := ReadRequest(&buf); err == nil {
		t.Errorf("expected an error for an oversized frame length")
	}
}
