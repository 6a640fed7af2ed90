package txn

import (
	"encoding/json"
	"fmt"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/types"
)

// PublishDag composes the full publication of a DAG definition: one move
// call per DAG element, followed by sharing the finished object. Returns the
// handle of the public_share_object call.
func PublishDag(b *chain.Builder, objects *types.NexusObjects, dag *types.Dag) (chain.Argument, error) {
	if err := dag.Validate(); err != nil {
		return chain.Argument{}, err
	}

	wf := objects.WorkflowPkgID
	p := pures(b)

	current := b.MoveCall(wf, moduleDag, "empty", nil, nil)

	for _, v := range dag.Vertices {
		next, err := withVertex(b, p, wf, current, v.Kind, v.Name)
		if err != nil {
			return chain.Argument{}, err
		}
		current = next
	}
	for _, v := range dag.EntryVertices {
		next, err := withVertex(b, p, wf, current, v.Kind, v.Name)
		if err != nil {
			return chain.Argument{}, err
		}
		current = next
	}

	for _, dv := range dag.DefaultValues {
		data, err := json.Marshal(types.DataStorage{
			Kind:      dv.Value.Storage,
			JSON:      dv.Value.Data,
			Encrypted: dv.Encrypted,
		})
		if err != nil {
			return chain.Argument{}, fmt.Errorf("default value %s.%s: %w", dv.Vertex, dv.InputPort, err)
		}
		args := []chain.Argument{current, p.arg(dv.Vertex), p.arg(dv.InputPort), p.arg(data)}
		if p.err != nil {
			return chain.Argument{}, p.err
		}
		current = b.MoveCall(wf, moduleDag, "with_default_value", nil, args)
	}

	for _, e := range dag.Edges {
		function := "with_edge"
		if e.Encrypted {
			function = "with_encrypted_edge"
		}
		args := []chain.Argument{
			current,
			p.arg(e.From.Vertex), p.arg(e.From.OutputVariant), p.arg(e.From.OutputPort),
			p.arg(e.To.Vertex), p.arg(e.To.InputPort),
		}
		if p.err != nil {
			return chain.Argument{}, p.err
		}
		current = b.MoveCall(wf, moduleDag, function, nil, args)
	}

	for _, o := range dag.Outputs {
		function := "with_output"
		if o.Encrypted {
			function = "with_encrypted_output"
		}
		args := []chain.Argument{current, p.arg(o.Vertex), p.arg(o.OutputVariant), p.arg(o.OutputPort)}
		if p.err != nil {
			return chain.Argument{}, p.err
		}
		current = b.MoveCall(wf, moduleDag, function, nil, args)
	}

	ports := make(map[string][]string, len(dag.EntryVertices))
	for _, v := range dag.EntryVertices {
		ports[v.Name] = v.InputPorts
	}
	groups := dag.EntryGroups
	if len(groups) == 0 {
		// The ledger creates the default group implicitly; every entry
		// vertex joins it.
		group := types.EntryGroup{Name: types.DefaultEntryGroup}
		for _, v := range dag.EntryVertices {
			group.Vertices = append(group.Vertices, v.Name)
		}
		groups = []types.EntryGroup{group}
	}
	for _, g := range groups {
		for _, vertex := range g.Vertices {
			for _, port := range ports[vertex] {
				args := []chain.Argument{current, p.arg(g.Name), p.arg(vertex), p.arg(port)}
				if p.err != nil {
					return chain.Argument{}, p.err
				}
				current = b.MoveCall(wf, moduleDag, "with_entry_port_in_group", nil, args)
			}
		}
	}

	return publicShareObject(b, StructTypeTag(wf, moduleDag, "DAG"), current), nil
}

func withVertex(b *chain.Builder, p *pureBuf, wf chain.ObjectID, current chain.Argument, kind types.VertexKind, name string) (chain.Argument, error) {
	switch kind.Variant {
	case types.VertexOffChain:
		args := []chain.Argument{current, p.arg(name), p.arg(kind.ToolFqn.String())}
		if p.err != nil {
			return chain.Argument{}, p.err
		}
		return b.MoveCall(wf, moduleDag, "with_vertex", nil, args), nil
	case types.VertexOnChain:
		args := []chain.Argument{current, p.arg(name)}
		if p.err != nil {
			return chain.Argument{}, p.err
		}
		return b.MoveCall(wf, moduleDag, "with_on_chain_vertex", nil, args), nil
	default:
		return chain.Argument{}, fmt.Errorf("vertex %q: unknown kind variant %q", name, kind.Variant)
	}
}

// DagInput feeds one entry input port when execution begins. Data must
// already be committed to its storage location.
type DagInput struct {
	Vertex    string
	InputPort string
	Data      types.DataStorage
}

// composeDagInputs builds the on-ledger input map, one with_input call per
// port.
func composeDagInputs(b *chain.Builder, p *pureBuf, wf chain.ObjectID, inputs []DagInput) (chain.Argument, error) {
	current := b.MoveCall(wf, moduleDag, "empty_inputs", nil, nil)
	for _, in := range inputs {
		data, err := json.Marshal(in.Data)
		if err != nil {
			return chain.Argument{}, fmt.Errorf("input %s.%s: %w", in.Vertex, in.InputPort, err)
		}
		args := []chain.Argument{current, p.arg(in.Vertex), p.arg(in.InputPort), p.arg(data)}
		if p.err != nil {
			return chain.Argument{}, p.err
		}
		current = b.MoveCall(wf, moduleDag, "with_input", nil, args)
	}
	return current, nil
}

// ExecuteDag begins execution of a published DAG through the default TAP.
// An empty entryGroup selects the default group.
func ExecuteDag(b *chain.Builder, objects *types.NexusObjects, dagRef chain.ObjectRef, entryGroup string, inputs []DagInput) (chain.Argument, error) {
	if entryGroup == "" {
		entryGroup = types.DefaultEntryGroup
	}

	wf := objects.WorkflowPkgID
	p := pures(b)

	inputsArg, err := composeDagInputs(b, p, wf, inputs)
	if err != nil {
		return chain.Argument{}, err
	}

	tap := p.shared(objects.DefaultTap, true)
	dagArg := p.shared(dagRef, false)
	network := p.arg(chain.Address(objects.NetworkID))
	group := p.arg(entryGroup)
	if p.err != nil {
		return chain.Argument{}, p.err
	}

	return b.MoveCall(wf, moduleDefaultTap, "begin_dag_execution", nil,
		[]chain.Argument{tap, dagArg, network, group, inputsArg}), nil
}
