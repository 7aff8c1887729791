package orchestrator

import (
	"graphkb/internal/graphmodel"
	"graphkb/pkg/client"
)

// NodeArgFrom flattens a graphmodel.Node's optional Location into the
// wire-safe client.NodeArg shape Analysis plugins hand to their Batcher.
func NodeArgFrom(n graphmodel.Node) client.NodeArg {
	arg := client.NodeArg{ID: n.ID, Kind: n.Kind, Attributes: n.Attributes}
	if n.Location != nil {
		arg.File = n.Location.File
		arg.Line = n.Location.Line
		arg.Column = n.Location.Column
	}
	return arg
}

// EdgeArgFrom converts a graphmodel.Edge to the wire-safe client.EdgeArg
// shape.
func EdgeArgFrom(e graphmodel.Edge) client.EdgeArg {
	return client.EdgeArg{Src: e.Src, Dst: e.Dst, Kind: e.Kind, Attributes: e.Attributes}
}
