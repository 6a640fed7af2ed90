package txn

import (
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/fqn"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/types"
)

// AddGasBudget deposits a coin into the gas service under the invoker's
// address scope. The coin is consumed whole; split it first if needed.
func AddGasBudget(b *chain.Builder, objects *types.NexusObjects, invoker chain.Address, coin chain.ObjectRef) (chain.Argument, error) {
	wf := objects.WorkflowPkgID
	p := pures(b)

	gasService := p.shared(objects.GasService, true)
	invokerArg := p.arg(invoker)
	coinArg := p.owned(coin)
	if p.err != nil {
		return chain.Argument{}, p.err
	}

	scope := b.MoveCall(wf, moduleGas, "scope_invoker_address", nil, []chain.Argument{invokerArg})
	balance := b.MoveCall(FrameworkPackageID, moduleCoin, "into_balance",
		[]chain.TypeTag{SuiCoinTypeTag()}, []chain.Argument{coinArg})

	return b.MoveCall(wf, moduleGas, "add_gas_budget", nil,
		[]chain.Argument{gasService, scope, balance}), nil
}

// EnableExpiry turns on the expiry gas extension for a tool. Callers need
// the gas capability obtained at registration.
func EnableExpiry(b *chain.Builder, objects *types.NexusObjects, toolFqn fqn.ToolFqn, ownerCapOverGas chain.ObjectRef, costPerMinute uint64) (chain.Argument, error) {
	wf := objects.WorkflowPkgID
	p := pures(b)

	gasService := p.shared(objects.GasService, true)
	registry := p.shared(objects.ToolRegistry, false)
	capArg := p.owned(ownerCapOverGas)
	cost := p.arg(costPerMinute)
	fqnArg := asciiString(b, p, toolFqn.String())
	if p.err != nil {
		return chain.Argument{}, p.err
	}
	return b.MoveCall(wf, moduleGasExtension, "enable_expiry", nil,
		[]chain.Argument{gasService, registry, capArg, cost, fqnArg}), nil
}

// DisableExpiry turns the expiry gas extension off for a tool.
func DisableExpiry(b *chain.Builder, objects *types.NexusObjects, toolFqn fqn.ToolFqn, ownerCapOverGas chain.ObjectRef) (chain.Argument, error) {
	wf := objects.WorkflowPkgID
	p := pures(b)

	gasService := p.shared(objects.GasService, true)
	registry := p.shared(objects.ToolRegistry, false)
	capArg := p.owned(ownerCapOverGas)
	fqnArg := asciiString(b, p, toolFqn.String())
	if p.err != nil {
		return chain.Argument{}, p.err
	}
	return b.MoveCall(wf, moduleGasExtension, "disable_expiry", nil,
		[]chain.Argument{gasService, registry, capArg, fqnArg}), nil
}

// BuyExpiryGasTicket buys a time-boxed gas ticket for a tool, paying with an
// owned coin.
func BuyExpiryGasTicket(b *chain.Builder, objects *types.NexusObjects, toolFqn fqn.ToolFqn, payWith chain.ObjectRef, minutes uint64) (chain.Argument, error) {
	wf := objects.WorkflowPkgID
	p := pures(b)

	gasService := p.shared(objects.GasService, true)
	registry := p.shared(objects.ToolRegistry, false)
	fqnArg := asciiString(b, p, toolFqn.String())
	minutesArg := p.arg(minutes)
	payArg := p.owned(payWith)
	clock := p.clock()
	if p.err != nil {
		return chain.Argument{}, p.err
	}
	return b.MoveCall(wf, moduleGasExtension, "buy_expiry_gas_ticket", nil,
		[]chain.Argument{gasService, registry, fqnArg, minutesArg, payArg, clock}), nil
}

// EnableLimitedInvocations turns on the limited-invocations gas extension
// for a tool, bounding ticket sizes to [min, max] invocations.
func EnableLimitedInvocations(b *chain.Builder, objects *types.NexusObjects, toolFqn fqn.ToolFqn, ownerCapOverGas chain.ObjectRef, costPerInvocation, minInvocations, maxInvocations uint64) (chain.Argument, error) {
	wf := objects.WorkflowPkgID
	p := pures(b)

	gasService := p.shared(objects.GasService, true)
	registry := p.shared(objects.ToolRegistry, false)
	capArg := p.owned(ownerCapOverGas)
	cost := p.arg(costPerInvocation)
	minArg := p.arg(minInvocations)
	maxArg := p.arg(maxInvocations)
	fqnArg := asciiString(b, p, toolFqn.String())
	if p.err != nil {
		return chain.Argument{}, p.err
	}
	return b.MoveCall(wf, moduleGasExtension, "enable_limited_invocations", nil,
		[]chain.Argument{gasService, registry, capArg, cost, minArg, maxArg, fqnArg}), nil
}

// DisableLimitedInvocations turns the limited-invocations gas extension off
// for a tool.
func DisableLimitedInvocations(b *chain.Builder, objects *types.NexusObjects, toolFqn fqn.ToolFqn, ownerCapOverGas chain.ObjectRef) (chain.Argument, error) {
	wf := objects.WorkflowPkgID
	p := pures(b)

	gasService := p.shared(objects.GasService, true)
	registry := p.shared(objects.ToolRegistry, false)
	capArg := p.owned(ownerCapOverGas)
	fqnArg := asciiString(b, p, toolFqn.String())
	if p.err != nil {
		return chain.Argument{}, p.err
	}
	return b.MoveCall(wf, moduleGasExtension, "disable_limited_invocations", nil,
		[]chain.Argument{gasService, registry, capArg, fqnArg}), nil
}

// BuyLimitedInvocationsGasTicket buys an invocation-count gas ticket for a
// tool, paying with an owned coin.
func BuyLimitedInvocationsGasTicket(b *chain.Builder, objects *types.NexusObjects, toolFqn fqn.ToolFqn, payWith chain.ObjectRef, invocations uint64) (chain.Argument, error) {
	wf := objects.WorkflowPkgID
	p := pures(b)

	gasService := p.shared(objects.GasService, true)
	registry := p.shared(objects.ToolRegistry, false)
	fqnArg := asciiString(b, p, toolFqn.String())
	invocationsArg := p.arg(invocations)
	payArg := p.owned(payWith)
	clock := p.clock()
	if p.err != nil {
		return chain.Argument{}, p.err
	}
	return b.MoveCall(wf, moduleGasExtension, "buy_limited_invocations_gas_ticket", nil,
		[]chain.Argument{gasService, registry, fqnArg, invocationsArg, payArg, clock}), nil
}
