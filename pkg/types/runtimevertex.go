package types

import (
	"encoding/json"
	"fmt"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
)

// RuntimeVertex identifies the vertex a walk is positioned on. Plain vertices
// carry only a name; iterator vertices additionally carry the iteration
// counters. The ledger encodes the variant under the "@variant" key and the
// counters as stringified u64.
type RuntimeVertex struct {
	Vertex TypeName

	// Iterator is nil for plain vertices.
	Iterator *VertexIterator
}

// VertexIterator is the iteration state of a WithIterator vertex.
type VertexIterator struct {
	Iteration uint64
	OutOf     uint64
}

// PlainVertex builds a plain runtime vertex from a name.
func PlainVertex(name string) RuntimeVertex {
	return RuntimeVertex{Vertex: NewTypeName(name)}
}

// IteratorVertex builds a WithIterator runtime vertex.
func IteratorVertex(name string, iteration, outOf uint64) RuntimeVertex {
	return RuntimeVertex{
		Vertex:   NewTypeName(name),
		Iterator: &VertexIterator{Iteration: iteration, OutOf: outOf},
	}
}

func (v RuntimeVertex) String() string {
	if v.Iterator == nil {
		return fmt.Sprintf("Plain(%s)", v.Vertex.Name)
	}
	return fmt.Sprintf("WithIterator(%s:%d:%d)", v.Vertex.Name, v.Iterator.Iteration, v.Iterator.OutOf)
}

type runtimeVertexWire struct {
	Variant   string           `json:"@variant"`
	Vertex    TypeName         `json:"vertex"`
	Iteration *chain.U64String `json:"iteration,omitempty"`
	OutOf     *chain.U64String `json:"out_of,omitempty"`
}

func (v RuntimeVertex) MarshalJSON() ([]byte, error) {
	wire := runtimeVertexWire{Variant: "Plain", Vertex: v.Vertex}
	if v.Iterator != nil {
		wire.Variant = "WithIterator"
		iter := chain.U64String(v.Iterator.Iteration)
		outOf := chain.U64String(v.Iterator.OutOf)
		wire.Iteration = &iter
		wire.OutOf = &outOf
	}
	return json.Marshal(wire)
}

func (v *RuntimeVertex) UnmarshalJSON(data []byte) error {
	var wire runtimeVertexWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	switch wire.Variant {
	case "Plain":
		*v = RuntimeVertex{Vertex: wire.Vertex}
	case "WithIterator":
		if wire.Iteration == nil || wire.OutOf == nil {
			return fmt.Errorf("runtime vertex: WithIterator requires iteration and out_of")
		}
		*v = RuntimeVertex{
			Vertex:   wire.Vertex,
			Iterator: &VertexIterator{Iteration: uint64(*wire.Iteration), OutOf: uint64(*wire.OutOf)},
		}
	default:
		return fmt.Errorf("runtime vertex: unknown variant %q", wire.Variant)
	}
	return nil
}
