package nexus

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/fqn"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/storage"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/txn"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/types"
)

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, Config{})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindConfiguration), "missing key")

	_, err = NewClient(ctx, Config{Key: testKey()})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindConfiguration), "missing objects")

	_, err = NewClient(ctx, Config{
		Key:       testKey(),
		Objects:   testObjects(),
		GasCoins:  []chain.ObjectRef{testGasCoin()},
		GasBudget: 1000,
	})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindConfiguration), "missing RPC endpoint")

	_, err = NewClient(ctx, Config{Key: testKey(), Objects: testObjects(), RPCURL: "http://localhost:1"})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindConfiguration), "missing gas coins")
}

func TestNewClientCachesReferenceGasPrice(t *testing.T) {
	fx := newRPCFixture(t)
	c := newTestClient(t, fx)

	assert.Equal(t, uint64(750), c.ReferenceGasPrice())
	assert.Equal(t, []string{"ledger_getEpoch"}, fx.calls)
}

func minimalDag() *types.Dag {
	return &types.Dag{
		Vertices: []types.Vertex{
			{
				Kind: types.VertexKind{Variant: types.VertexOffChain, ToolFqn: fqn.MustParse("xyz.math.add@1")},
				Name: "adder",
			},
		},
		EntryVertices: []types.EntryVertex{
			{
				Kind:       types.VertexKind{Variant: types.VertexOffChain, ToolFqn: fqn.MustParse("xyz.math.input@1")},
				Name:       "entry",
				InputPorts: []string{"a"},
			},
		},
		Edges: []types.Edge{
			{
				From: types.FromPort{Vertex: "entry", OutputVariant: "ok", OutputPort: "result"},
				To:   types.ToPort{Vertex: "adder", InputPort: "a"},
			},
		},
	}
}

func TestWorkflowPublish(t *testing.T) {
	objects := testObjects()
	fx := newRPCFixture(t)
	fx.handlers["transaction_execute"] = func(params []json.RawMessage) any {
		// txBytes ride as base64 of the canonical encoding; two params total.
		require.Len(t, params, 2)
		return executedTransaction(6, []any{
			map[string]any{
				"kind":        "created",
				"object_id":   "0x700",
				"version":     "1",
				"digest":      zeroDigest,
				"object_type": objects.WorkflowPkgID.String() + "::dag::DAG",
				"owner":       map[string]any{"Shared": map[string]any{"initial_shared_version": "1"}},
			},
		}, nil)
	}
	c := newTestClient(t, fx)

	result, err := c.Workflow().Publish(context.Background(), minimalDag())
	require.NoError(t, err)
	assert.Equal(t, chain.MustParseAddress("0x700"), result.DAGID)
	assert.Equal(t, zeroDigest, result.TxDigest)

	// The checkpoint hint short-circuits polling.
	assert.Equal(t, 0, fx.countCalls("transaction_getCheckpoint"))

	// The mutated gas coin went back to the pool at its new version.
	coin, err := c.Gas().Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(6), coin.Version)
}

func TestWorkflowPublishFailedExecution(t *testing.T) {
	fx := newRPCFixture(t)
	fx.results["transaction_execute"] = map[string]any{
		"digest":         zeroDigest,
		"status":         "failure",
		"error":          "InsufficientGas",
		"object_changes": []any{},
		"events":         []any{},
	}
	c := newTestClient(t, fx)

	_, err := c.Workflow().Publish(context.Background(), minimalDag())
	require.Error(t, err)
	assert.True(t, IsKind(err, KindWallet))
	assert.Contains(t, err.Error(), "InsufficientGas")

	// The coin is released even on failure.
	_, err = c.Gas().Acquire(context.Background())
	require.NoError(t, err)
}

func TestWorkflowExecute(t *testing.T) {
	objects := testObjects()
	dagID := chain.MustParseAddress("0x700")

	fx := newRPCFixture(t)
	fx.results["ledger_getObject"] = sharedObjectResult(dagID, 3)
	fx.handlers["transaction_execute"] = func(params []json.RawMessage) any {
		return executedTransaction(6, []any{
			map[string]any{
				"kind":        "created",
				"object_id":   "0x701",
				"version":     "1",
				"digest":      zeroDigest,
				"object_type": objects.WorkflowPkgID.String() + "::dag::DAGExecution",
			},
		}, nil)
	}
	c := newTestClient(t, fx)

	result, err := c.Workflow().Execute(context.Background(), ExecuteParams{
		DAGID: dagID,
		Inputs: map[string]map[string]types.NexusData{
			"entry": {"a": types.NewInline(json.RawMessage(`{"value": 1}`))},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, chain.MustParseAddress("0x701"), result.ExecutionID)
	assert.Equal(t, 1, fx.countCalls("ledger_getObject"))
}

func TestWorkflowExecuteOffloadsRemoteInputs(t *testing.T) {
	objects := testObjects()
	dagID := chain.MustParseAddress("0x700")

	fx := newRPCFixture(t)
	fx.results["ledger_getObject"] = sharedObjectResult(dagID, 3)
	fx.handlers["transaction_execute"] = func(params []json.RawMessage) any {
		return executedTransaction(6, []any{
			map[string]any{
				"kind":        "created",
				"object_id":   "0x701",
				"version":     "1",
				"digest":      zeroDigest,
				"object_type": objects.WorkflowPkgID.String() + "::dag::DAGExecution",
			},
		}, nil)
	}
	c := newTestClient(t, fx)

	store := storage.NewMemoryStore()
	_, err := c.Workflow().Execute(context.Background(), ExecuteParams{
		DAGID: dagID,
		Inputs: map[string]map[string]types.NexusData{
			"entry": {"a": types.NewRemote(json.RawMessage(`{"payload": "large"}`))},
		},
		Storage: types.StorageConf{Store: store},
	})
	require.NoError(t, err)

	// The remote input landed in the blob store; only its key rode on chain.
	assert.Equal(t, 1, store.Len())
}

func TestWorkflowExecuteRemoteInputWithoutStore(t *testing.T) {
	dagID := chain.MustParseAddress("0x700")
	fx := newRPCFixture(t)
	fx.results["ledger_getObject"] = sharedObjectResult(dagID, 3)
	c := newTestClient(t, fx)

	_, err := c.Workflow().Execute(context.Background(), ExecuteParams{
		DAGID: dagID,
		Inputs: map[string]map[string]types.NexusData{
			"entry": {"a": types.NewRemote(json.RawMessage(`{"payload": "large"}`))},
		},
	})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindConfiguration))
	assert.Contains(t, err.Error(), "no blob store configured")
}

func TestSchedulerCreateTaskWithInitialSchedule(t *testing.T) {
	objects := testObjects()
	taskID := chain.MustParseAddress("0x600")

	fx := newRPCFixture(t)
	fx.results["ledger_getObject"] = sharedObjectResult(taskID, 2)

	var executions int
	fx.handlers["transaction_execute"] = func(params []json.RawMessage) any {
		executions++
		switch executions {
		case 1:
			return executedTransaction(6, nil, []any{
				wrappedEvent(objects, "scheduler", "TaskCreatedEvent", map[string]any{
					"task":  taskID.String(),
					"owner": "0x1",
				}),
			})
		default:
			return executedTransaction(7, nil, []any{
				wrappedEvent(objects, "scheduler", "OccurrenceScheduledEvent", map[string]any{
					"task": taskID.String(),
					"generator": map[string]any{
						"variant": "Uid",
						"fields":  map[string]any{"pos0": taskID.String()},
					},
				}),
			})
		}
	}
	c := newTestClient(t, fx)

	start := uint64(1_700_000_000_000)
	result, err := c.Scheduler().CreateTask(context.Background(), CreateTaskParams{
		DAGID:             chain.MustParseAddress("0x700"),
		Generator:         txn.GeneratorQueue,
		ExecutionGasPrice: 750,
		InitialSchedule:   &txn.OccurrenceRequest{StartMs: &start, GasPrice: 750},
	})
	require.NoError(t, err)

	// Creation and the initial schedule are separate transactions.
	assert.Equal(t, 2, executions)
	assert.Equal(t, taskID, result.TaskID)
	require.NotNil(t, result.InitialSchedule)
	require.NotNil(t, result.InitialSchedule.Event)
	assert.Equal(t, taskID, result.InitialSchedule.Event.Task)
}

func TestSchedulerCreateTaskWithoutTaskEvent(t *testing.T) {
	fx := newRPCFixture(t)
	fx.results["transaction_execute"] = executedTransaction(6, nil, nil)
	c := newTestClient(t, fx)

	_, err := c.Scheduler().CreateTask(context.Background(), CreateTaskParams{
		DAGID:     chain.MustParseAddress("0x700"),
		Generator: txn.GeneratorQueue,
	})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindParsing))
	assert.Contains(t, err.Error(), "TaskCreatedEvent not found in response")
}

func TestSchedulerRejectsInitialScheduleForPeriodicTask(t *testing.T) {
	fx := newRPCFixture(t)
	c := newTestClient(t, fx)

	start := uint64(1)
	_, err := c.Scheduler().CreateTask(context.Background(), CreateTaskParams{
		DAGID:           chain.MustParseAddress("0x700"),
		Generator:       txn.GeneratorPeriodic,
		InitialSchedule: &txn.OccurrenceRequest{StartMs: &start},
	})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindConfiguration))
	assert.Contains(t, err.Error(), "Initial queue schedule can only be used with the queue generator")
}

func TestToolRegisterOffChainRejectsBadSchema(t *testing.T) {
	fx := newRPCFixture(t)
	c := newTestClient(t, fx)

	_, err := c.Tools().RegisterOffChain(context.Background(), RegisterOffChainParams{
		Meta: &types.ToolMeta{
			FQN:          fqn.MustParse("xyz.math.add@1"),
			URL:          "https://tools.example.com/add",
			InputSchema:  json.RawMessage(`{"type": 12}`),
			OutputSchema: json.RawMessage(`{"type": "object"}`),
		},
	})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindConfiguration))
	assert.Contains(t, err.Error(), "input_schema")

	// Validation fails before any ledger call beyond construction.
	assert.Equal(t, 0, fx.countCalls("transaction_execute"))
}
