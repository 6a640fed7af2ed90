package txn

import (
	"fmt"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/fqn"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/types"
)

// RegisterOffChainTool composes registration of an HTTP tool for the sender:
// register the tool against the registry, de-escalate the owner capability
// into a gas capability, set the single-invocation cost, and transfer both
// capabilities to the recipient.
//
// register_off_chain_tool returns (tool_id, owner_cap); the id is copyable
// and left unconsumed, the capability drives the rest of the sequence.
func RegisterOffChainTool(b *chain.Builder, objects *types.NexusObjects, meta *types.ToolMeta, recipient chain.Address, collateralCoin chain.ObjectRef, invocationCostMist uint64) (chain.Argument, error) {
	if meta.FQN.IsZero() {
		return chain.Argument{}, fmt.Errorf("register off-chain tool: fqn is required")
	}

	wf := objects.WorkflowPkgID
	p := pures(b)

	registry := p.shared(objects.ToolRegistry, true)
	fqnArg := asciiString(b, p, meta.FQN.String())
	args := []chain.Argument{
		registry,
		fqnArg,
		p.arg([]byte(meta.URL)),
		p.arg([]byte(meta.Description)),
		p.arg([]byte(meta.InputSchema)),
		p.arg([]byte(meta.OutputSchema)),
		p.owned(collateralCoin),
		p.clock(),
	}
	if p.err != nil {
		return chain.Argument{}, p.err
	}
	registered := b.MoveCall(wf, moduleToolRegistry, "register_off_chain_tool", nil, args)
	ownerCapOverTool := p.nested(registered, 1)

	ownerCapOverGas := b.MoveCall(wf, moduleGas, "deescalate", nil,
		[]chain.Argument{registry, ownerCapOverTool, fqnArg})

	gasService := p.shared(objects.GasService, true)
	cost := p.arg(invocationCostMist)
	if p.err != nil {
		return chain.Argument{}, p.err
	}
	b.MoveCall(wf, moduleGas, "set_single_invocation_cost_mist", nil,
		[]chain.Argument{gasService, registry, ownerCapOverGas, fqnArg, cost})

	recipientArg := p.arg(recipient)
	if p.err != nil {
		return chain.Argument{}, p.err
	}
	publicTransfer(b, cloneableCapType(objects, moduleToolRegistry, "OverTool"), ownerCapOverTool, recipientArg)
	return publicTransfer(b, cloneableCapType(objects, moduleGas, "OverGas"), ownerCapOverGas, recipientArg), nil
}

// RegisterOnChainTool composes registration of an on-ledger tool module for
// the sender and transfers the owner capability back.
func RegisterOnChainTool(b *chain.Builder, objects *types.NexusObjects, toolFqn fqn.ToolFqn, ref fqn.ToolRef, description string, inputSchema, outputSchema []byte, recipient chain.Address, collateralCoin chain.ObjectRef) (chain.Argument, error) {
	if !ref.IsOnChain() {
		return chain.Argument{}, fmt.Errorf("register on-chain tool %s: ref %s is not an on-chain reference", toolFqn, ref)
	}

	wf := objects.WorkflowPkgID
	p := pures(b)

	registry := p.shared(objects.ToolRegistry, true)
	moduleName := asciiString(b, p, ref.Module)
	fqnArg := asciiString(b, p, toolFqn.String())
	args := []chain.Argument{
		registry,
		p.arg(ref.Package),
		moduleName,
		p.arg(inputSchema),
		p.arg(outputSchema),
		fqnArg,
		p.arg([]byte(description)),
		p.arg(ref.WitnessID),
		p.owned(collateralCoin),
		p.clock(),
	}
	if p.err != nil {
		return chain.Argument{}, p.err
	}
	registered := b.MoveCall(wf, moduleToolRegistry, "register_on_chain_tool", nil, args)
	ownerCap := p.nested(registered, 1)

	recipientArg := p.arg(recipient)
	if p.err != nil {
		return chain.Argument{}, p.err
	}
	return publicTransfer(b, cloneableCapType(objects, moduleToolRegistry, "OverTool"), ownerCap, recipientArg), nil
}

// SetInvocationCost updates the single-invocation cost of a registered tool.
// The capability must be the gas capability obtained at registration.
func SetInvocationCost(b *chain.Builder, objects *types.NexusObjects, toolFqn fqn.ToolFqn, ownerCapOverGas chain.ObjectRef, costMist uint64) (chain.Argument, error) {
	wf := objects.WorkflowPkgID
	p := pures(b)

	gasService := p.shared(objects.GasService, true)
	registry := p.shared(objects.ToolRegistry, true)
	capArg := p.owned(ownerCapOverGas)
	fqnArg := asciiString(b, p, toolFqn.String())
	cost := p.arg(costMist)
	if p.err != nil {
		return chain.Argument{}, p.err
	}
	return b.MoveCall(wf, moduleGas, "set_single_invocation_cost_mist", nil,
		[]chain.Argument{gasService, registry, capArg, fqnArg, cost}), nil
}

// UnregisterTool removes a tool from the registry, consuming the owner
// capability.
func UnregisterTool(b *chain.Builder, objects *types.NexusObjects, toolFqn fqn.ToolFqn, ownerCapOverTool chain.ObjectRef) (chain.Argument, error) {
	wf := objects.WorkflowPkgID
	p := pures(b)

	registry := p.shared(objects.ToolRegistry, true)
	fqnArg := asciiString(b, p, toolFqn.String())
	capArg := p.owned(ownerCapOverTool)
	clock := p.clock()
	if p.err != nil {
		return chain.Argument{}, p.err
	}
	return b.MoveCall(wf, moduleToolRegistry, "unregister_tool", nil,
		[]chain.Argument{registry, fqnArg, capArg, clock}), nil
}

// ClaimCollateral returns an unregistered tool's collateral to the sender
// once the lock-up period has elapsed.
func ClaimCollateral(b *chain.Builder, objects *types.NexusObjects, toolFqn fqn.ToolFqn, ownerCapOverTool chain.ObjectRef) (chain.Argument, error) {
	wf := objects.WorkflowPkgID
	p := pures(b)

	registry := p.shared(objects.ToolRegistry, true)
	capArg := p.owned(ownerCapOverTool)
	fqnArg := asciiString(b, p, toolFqn.String())
	clock := p.clock()
	if p.err != nil {
		return chain.Argument{}, p.err
	}
	return b.MoveCall(wf, moduleToolRegistry, "claim_collateral_for_self", nil,
		[]chain.Argument{registry, capArg, fqnArg, clock}), nil
}
