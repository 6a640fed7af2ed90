package types

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/fqn"
)

// DefaultEntryGroup is the entry group the ledger creates implicitly with
// every new DAG. Entry vertices outside any declared group belong to it.
const DefaultEntryGroup = "_default_group"

// Dag is the JSON DAG definition file. Parsing it is the first line of
// validation before composition.
type Dag struct {
	Vertices      []Vertex       `json:"vertices"`
	Edges         []Edge         `json:"edges"`
	EntryVertices []EntryVertex  `json:"entry_vertices"`
	DefaultValues []DefaultValue `json:"default_values,omitempty"`
	// EntryGroups may be empty, in which case every entry vertex lives in
	// DefaultEntryGroup.
	EntryGroups []EntryGroup `json:"entry_groups,omitempty"`
	Outputs     []Output     `json:"outputs,omitempty"`
}

// VertexKindVariant discriminates vertex kinds in the DAG file.
type VertexKindVariant string

const (
	VertexOffChain VertexKindVariant = "off_chain"
	VertexOnChain  VertexKindVariant = "on_chain"
)

// VertexKind is the tagged vertex kind: off-chain vertices name a tool FQN.
type VertexKind struct {
	Variant VertexKindVariant `json:"variant"`
	ToolFqn fqn.ToolFqn       `json:"tool_fqn,omitempty"`
}

func (k *VertexKind) UnmarshalJSON(data []byte) error {
	type wire struct {
		Variant VertexKindVariant `json:"variant"`
		ToolFqn *fqn.ToolFqn      `json:"tool_fqn"`
	}
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Variant {
	case VertexOffChain:
		if w.ToolFqn == nil {
			return fmt.Errorf("dag vertex: off_chain kind requires tool_fqn")
		}
		*k = VertexKind{Variant: VertexOffChain, ToolFqn: *w.ToolFqn}
	case VertexOnChain:
		*k = VertexKind{Variant: VertexOnChain}
	default:
		return fmt.Errorf("dag vertex: unknown kind variant %q", w.Variant)
	}
	return nil
}

// Vertex is a DAG node.
type Vertex struct {
	Kind VertexKind `json:"kind"`
	Name string     `json:"name"`
}

// EntryVertex is a DAG node whose listed input ports are fed externally when
// execution begins.
type EntryVertex struct {
	Kind       VertexKind `json:"kind"`
	Name       string     `json:"name"`
	InputPorts []string   `json:"input_ports"`
}

// EntryGroup names a subset of entry vertices activated together.
type EntryGroup struct {
	Name     string   `json:"name"`
	Vertices []string `json:"vertices"`
}

// DefaultValue pins a constant onto an input port.
type DefaultValue struct {
	Vertex    string      `json:"vertex"`
	InputPort string      `json:"input_port"`
	Value     DefaultData `json:"value"`
	Encrypted bool        `json:"encrypted,omitempty"`
}

// DefaultData is the storage-tagged value of a default. Only inline values
// appear in DAG files.
type DefaultData struct {
	Storage StorageKind     `json:"storage"`
	Data    json.RawMessage `json:"data"`
}

// Edge connects an output port of one vertex to an input port of another.
type Edge struct {
	From      FromPort `json:"from"`
	To        ToPort   `json:"to"`
	Encrypted bool     `json:"encrypted,omitempty"`
}

// FromPort is the producing end of an edge.
type FromPort struct {
	Vertex        string `json:"vertex"`
	OutputVariant string `json:"output_variant"`
	OutputPort    string `json:"output_port"`
}

// ToPort is the consuming end of an edge.
type ToPort struct {
	Vertex    string `json:"vertex"`
	InputPort string `json:"input_port"`
}

// Output marks an output port whose values are collected as DAG results.
type Output struct {
	Vertex        string `json:"vertex"`
	OutputVariant string `json:"output_variant"`
	OutputPort    string `json:"output_port"`
	Encrypted     bool   `json:"encrypted,omitempty"`
}

// LoadDag reads and validates a DAG definition file.
func LoadDag(path string) (*Dag, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dag file: %w", err)
	}
	return ParseDag(data)
}

// ParseDag decodes and validates a DAG definition.
func ParseDag(data []byte) (*Dag, error) {
	var dag Dag
	if err := json.Unmarshal(data, &dag); err != nil {
		return nil, fmt.Errorf("parse dag: %w", err)
	}
	if err := dag.Validate(); err != nil {
		return nil, err
	}
	return &dag, nil
}

// Validate checks referential integrity: edges, defaults, groups and
// outputs must all name declared vertices, and names must be unique.
func (d *Dag) Validate() error {
	names := make(map[string]struct{}, len(d.Vertices)+len(d.EntryVertices))
	for _, v := range d.Vertices {
		if _, dup := names[v.Name]; dup {
			return fmt.Errorf("dag: duplicate vertex %q", v.Name)
		}
		names[v.Name] = struct{}{}
	}
	entries := make(map[string]struct{}, len(d.EntryVertices))
	for _, v := range d.EntryVertices {
		if _, dup := names[v.Name]; dup {
			return fmt.Errorf("dag: duplicate vertex %q", v.Name)
		}
		names[v.Name] = struct{}{}
		entries[v.Name] = struct{}{}
	}

	for _, e := range d.Edges {
		if _, ok := names[e.From.Vertex]; !ok {
			return fmt.Errorf("dag: edge from unknown vertex %q", e.From.Vertex)
		}
		if _, ok := names[e.To.Vertex]; !ok {
			return fmt.Errorf("dag: edge to unknown vertex %q", e.To.Vertex)
		}
	}
	for _, dv := range d.DefaultValues {
		if _, ok := names[dv.Vertex]; !ok {
			return fmt.Errorf("dag: default value for unknown vertex %q", dv.Vertex)
		}
	}
	for _, g := range d.EntryGroups {
		if g.Name == "" {
			return fmt.Errorf("dag: entry group with empty name")
		}
		for _, v := range g.Vertices {
			if _, ok := entries[v]; !ok {
				return fmt.Errorf("dag: entry group %q references non-entry vertex %q", g.Name, v)
			}
		}
	}
	for _, o := range d.Outputs {
		if _, ok := names[o.Vertex]; !ok {
			return fmt.Errorf("dag: output from unknown vertex %q", o.Vertex)
		}
	}
	return nil
}
