package nexus

import (
	"context"
	"sort"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/events"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/txn"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/types"
)

// WorkflowActions publishes DAG definitions and begins their execution.
type WorkflowActions struct {
	c *Client
}

// PublishResult reports a successful DAG publication.
type PublishResult struct {
	TxDigest chain.Digest
	DAGID    chain.ObjectID
}

// Publish validates and uploads a DAG definition, returning the shared
// object's identity.
func (a *WorkflowActions) Publish(ctx context.Context, dag *types.Dag) (*PublishResult, error) {
	b := chain.NewBuilder()
	if _, err := txn.PublishDag(b, a.c.objects, dag); err != nil {
		return nil, buildError(err)
	}

	exec, err := a.c.submit(ctx, b.Finish())
	if err != nil {
		return nil, err
	}

	for _, ev := range exec.Events {
		if created, ok := ev.Data.(*events.DAGCreatedEvent); ok {
			return &PublishResult{TxDigest: exec.Digest, DAGID: created.DAG}, nil
		}
	}
	if id, ok := exec.createdObject(a.c, "dag", "DAG"); ok {
		return &PublishResult{TxDigest: exec.Digest, DAGID: id}, nil
	}
	return nil, parsingf("DAGCreatedEvent not found in response")
}

// ExecuteParams selects the DAG, the entry group and the data for its entry
// input ports, keyed vertex -> port -> data. An empty EntryGroup uses the
// default group. Storage is only consulted for remote data.
type ExecuteParams struct {
	DAGID      chain.ObjectID
	EntryGroup string
	Inputs     map[string]map[string]types.NexusData
	Storage    types.StorageConf
}

// ExecuteResult reports a started DAG execution.
type ExecuteResult struct {
	TxDigest    chain.Digest
	ExecutionID chain.ObjectID
	// Execution carries the full submission outcome, including the walk
	// request events leaders will act on.
	Execution *Execution
}

// Execute commits the entry inputs to their storage locations and begins
// execution of a published DAG.
func (a *WorkflowActions) Execute(ctx context.Context, params ExecuteParams) (*ExecuteResult, error) {
	inputs, err := commitInputs(ctx, params.Inputs, params.Storage)
	if err != nil {
		return nil, err
	}

	dagRef, err := a.c.sharedRef(ctx, params.DAGID)
	if err != nil {
		return nil, err
	}

	b := chain.NewBuilder()
	if _, err := txn.ExecuteDag(b, a.c.objects, dagRef, params.EntryGroup, inputs); err != nil {
		return nil, buildError(err)
	}

	exec, err := a.c.submit(ctx, b.Finish())
	if err != nil {
		return nil, err
	}

	for _, ev := range exec.Events {
		if walk, ok := ev.Data.(*events.RequestWalkExecutionEvent); ok {
			return &ExecuteResult{TxDigest: exec.Digest, ExecutionID: walk.Execution, Execution: exec}, nil
		}
	}
	if id, ok := exec.createdObject(a.c, "dag", "DAGExecution"); ok {
		return &ExecuteResult{TxDigest: exec.Digest, ExecutionID: id, Execution: exec}, nil
	}
	return nil, parsingf("RequestWalkExecutionEvent not found in response")
}

// commitInputs pins every input artifact and flattens the nested map into
// composer inputs, ordered by vertex then port so transaction bytes are
// reproducible.
func commitInputs(ctx context.Context, inputs map[string]map[string]types.NexusData, storage types.StorageConf) ([]txn.DagInput, error) {
	vertices := make([]string, 0, len(inputs))
	for v := range inputs {
		vertices = append(vertices, v)
	}
	sort.Strings(vertices)

	var out []txn.DagInput
	for _, vertex := range vertices {
		ports := make([]string, 0, len(inputs[vertex]))
		for p := range inputs[vertex] {
			ports = append(ports, p)
		}
		sort.Strings(ports)

		for _, port := range ports {
			data, err := inputs[vertex][port].Commit(ctx, storage)
			if err != nil {
				return nil, configurationf("commit input %s.%s: %v", vertex, port, err)
			}
			out = append(out, txn.DagInput{Vertex: vertex, InputPort: port, Data: data})
		}
	}
	return out, nil
}
