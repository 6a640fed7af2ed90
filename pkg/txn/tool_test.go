package txn

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/fqn"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/types"
)

func testToolMeta() *types.ToolMeta {
	return &types.ToolMeta{
		FQN:          fqn.MustParse("xyz.math.add@1"),
		URL:          "https://tools.example.com/add",
		Description:  "adds numbers",
		InputSchema:  json.RawMessage(`{"type":"object"}`),
		OutputSchema: json.RawMessage(`{"type":"object"}`),
	}
}

func TestRegisterOffChainToolSequence(t *testing.T) {
	objects := testObjects()
	b := chain.NewBuilder()

	_, err := RegisterOffChainTool(b, objects, testToolMeta(), chain.MustParseAddress("0x900"), testRef("0x300"), 100)
	require.NoError(t, err)

	pt := b.Finish()
	require.Equal(t, [][2]string{
		{"ascii", "string"},
		{"tool_registry", "register_off_chain_tool"},
		{"gas", "deescalate"},
		{"gas", "set_single_invocation_cost_mist"},
		{"transfer", "public_transfer"},
		{"transfer", "public_transfer"},
	}, moveCalls(pt))

	// The gas capability handed to deescalate is the second element of the
	// registration result tuple.
	deescalate := pt.Commands[2].MoveCall
	capArg := deescalate.Args[1]
	assert.Equal(t, chain.ArgNestedResult, capArg.Kind)
	assert.Equal(t, uint16(1), capArg.Command)
	assert.Equal(t, uint16(1), capArg.Nested)

	// Both capability transfers carry CloneableOwnerCap type tags over the
	// workflow witnesses.
	overTool := pt.Commands[4].MoveCall.TypeArgs[0].Struct
	require.Equal(t, "CloneableOwnerCap", overTool.Name)
	assert.Equal(t, objects.PrimitivesPkgID, overTool.Address)
	assert.Equal(t, "OverTool", overTool.TypeParams[0].Struct.Name)

	overGas := pt.Commands[5].MoveCall.TypeArgs[0].Struct
	require.Equal(t, "CloneableOwnerCap", overGas.Name)
	assert.Equal(t, "OverGas", overGas.TypeParams[0].Struct.Name)
}

func TestRegisterOffChainToolRequiresFqn(t *testing.T) {
	meta := testToolMeta()
	meta.FQN = fqn.ToolFqn{}

	b := chain.NewBuilder()
	_, err := RegisterOffChainTool(b, testObjects(), meta, chain.MustParseAddress("0x900"), testRef("0x300"), 100)
	require.Error(t, err)
}

func TestRegisterOnChainTool(t *testing.T) {
	ref, err := fqn.ParseToolRef("0xabc::adder@0xdef")
	require.NoError(t, err)

	b := chain.NewBuilder()
	_, err = RegisterOnChainTool(b, testObjects(), fqn.MustParse("xyz.math.add@1"), ref,
		"adds numbers", []byte(`{}`), []byte(`{}`), chain.MustParseAddress("0x900"), testRef("0x300"))
	require.NoError(t, err)

	pt := b.Finish()
	calls := moveCalls(pt)
	assert.Contains(t, calls, [2]string{"tool_registry", "register_on_chain_tool"})

	register := pt.Commands[2].MoveCall
	require.Equal(t, "register_on_chain_tool", register.Function)
	assert.Len(t, register.Args, 10)
}

func TestRegisterOnChainToolRejectsURL(t *testing.T) {
	ref, err := fqn.ParseToolRef("https://tools.example.com/add")
	require.NoError(t, err)

	b := chain.NewBuilder()
	_, err = RegisterOnChainTool(b, testObjects(), fqn.MustParse("xyz.math.add@1"), ref,
		"", nil, nil, chain.MustParseAddress("0x900"), testRef("0x300"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an on-chain reference")
}

func TestUnregisterTool(t *testing.T) {
	b := chain.NewBuilder()
	_, err := UnregisterTool(b, testObjects(), fqn.MustParse("xyz.math.add@1"), testRef("0x400"))
	require.NoError(t, err)

	call := lastMoveCall(b.Finish())
	require.NotNil(t, call)
	assert.Equal(t, "tool_registry", call.Module)
	assert.Equal(t, "unregister_tool", call.Function)
	assert.Len(t, call.Args, 4)
}

func TestClaimCollateral(t *testing.T) {
	b := chain.NewBuilder()
	_, err := ClaimCollateral(b, testObjects(), fqn.MustParse("xyz.math.add@1"), testRef("0x400"))
	require.NoError(t, err)

	call := lastMoveCall(b.Finish())
	require.NotNil(t, call)
	assert.Equal(t, "claim_collateral_for_self", call.Function)
}

func TestSetInvocationCost(t *testing.T) {
	objects := testObjects()
	b := chain.NewBuilder()
	_, err := SetInvocationCost(b, objects, fqn.MustParse("xyz.math.add@1"), testRef("0x400"), 250)
	require.NoError(t, err)

	pt := b.Finish()
	call := lastMoveCall(pt)
	require.NotNil(t, call)
	assert.Equal(t, "gas", call.Module)
	assert.Equal(t, "set_single_invocation_cost_mist", call.Function)
	require.Len(t, call.Args, 5)

	gasService := pt.Inputs[call.Args[0].Input].Object
	require.NotNil(t, gasService)
	assert.True(t, gasService.Mutable)
	assert.Equal(t, objects.GasService.ObjectID, gasService.ID)
}
