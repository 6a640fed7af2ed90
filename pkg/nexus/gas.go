package nexus

import (
	"context"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/fqn"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/txn"
)

// GasActions manages the sender's gas budget and tool gas extensions.
type GasActions struct {
	c *Client
}

// AddBudget deposits a coin into the gas service under the sender's address
// scope. The coin is consumed whole.
func (a *GasActions) AddBudget(ctx context.Context, coinID chain.ObjectID) (*Execution, error) {
	coin, err := a.c.objectRef(ctx, coinID)
	if err != nil {
		return nil, err
	}

	b := chain.NewBuilder()
	if _, err := txn.AddGasBudget(b, a.c.objects, a.c.signer.Address(), coin); err != nil {
		return nil, buildError(err)
	}
	return a.c.submit(ctx, b.Finish())
}

// EnableExpiry turns on the expiry gas extension for a tool the sender owns
// the gas capability for.
func (a *GasActions) EnableExpiry(ctx context.Context, toolFqn fqn.ToolFqn, gasCapID chain.ObjectID, costPerMinute uint64) (*Execution, error) {
	capRef, err := a.c.objectRef(ctx, gasCapID)
	if err != nil {
		return nil, err
	}

	b := chain.NewBuilder()
	if _, err := txn.EnableExpiry(b, a.c.objects, toolFqn, capRef, costPerMinute); err != nil {
		return nil, buildError(err)
	}
	return a.c.submit(ctx, b.Finish())
}

// DisableExpiry turns the expiry gas extension off for a tool.
func (a *GasActions) DisableExpiry(ctx context.Context, toolFqn fqn.ToolFqn, gasCapID chain.ObjectID) (*Execution, error) {
	capRef, err := a.c.objectRef(ctx, gasCapID)
	if err != nil {
		return nil, err
	}

	b := chain.NewBuilder()
	if _, err := txn.DisableExpiry(b, a.c.objects, toolFqn, capRef); err != nil {
		return nil, buildError(err)
	}
	return a.c.submit(ctx, b.Finish())
}

// BuyExpiryTicket buys a time-boxed gas ticket for a tool, paying with an
// owned coin.
func (a *GasActions) BuyExpiryTicket(ctx context.Context, toolFqn fqn.ToolFqn, payWithCoinID chain.ObjectID, minutes uint64) (*Execution, error) {
	coin, err := a.c.objectRef(ctx, payWithCoinID)
	if err != nil {
		return nil, err
	}

	b := chain.NewBuilder()
	if _, err := txn.BuyExpiryGasTicket(b, a.c.objects, toolFqn, coin, minutes); err != nil {
		return nil, buildError(err)
	}
	return a.c.submit(ctx, b.Finish())
}

// EnableLimitedInvocations turns on the limited-invocations gas extension
// for a tool, bounding ticket sizes to [min, max] invocations.
func (a *GasActions) EnableLimitedInvocations(ctx context.Context, toolFqn fqn.ToolFqn, gasCapID chain.ObjectID, costPerInvocation, minInvocations, maxInvocations uint64) (*Execution, error) {
	capRef, err := a.c.objectRef(ctx, gasCapID)
	if err != nil {
		return nil, err
	}

	b := chain.NewBuilder()
	_, err = txn.EnableLimitedInvocations(b, a.c.objects, toolFqn, capRef, costPerInvocation, minInvocations, maxInvocations)
	if err != nil {
		return nil, buildError(err)
	}
	return a.c.submit(ctx, b.Finish())
}

// DisableLimitedInvocations turns the limited-invocations gas extension off
// for a tool.
func (a *GasActions) DisableLimitedInvocations(ctx context.Context, toolFqn fqn.ToolFqn, gasCapID chain.ObjectID) (*Execution, error) {
	capRef, err := a.c.objectRef(ctx, gasCapID)
	if err != nil {
		return nil, err
	}

	b := chain.NewBuilder()
	if _, err := txn.DisableLimitedInvocations(b, a.c.objects, toolFqn, capRef); err != nil {
		return nil, buildError(err)
	}
	return a.c.submit(ctx, b.Finish())
}

// BuyLimitedInvocationsTicket buys an invocation-count gas ticket for a
// tool, paying with an owned coin.
func (a *GasActions) BuyLimitedInvocationsTicket(ctx context.Context, toolFqn fqn.ToolFqn, payWithCoinID chain.ObjectID, invocations uint64) (*Execution, error) {
	coin, err := a.c.objectRef(ctx, payWithCoinID)
	if err != nil {
		return nil, err
	}

	b := chain.NewBuilder()
	if _, err := txn.BuyLimitedInvocationsGasTicket(b, a.c.objects, toolFqn, coin, invocations); err != nil {
		return nil, buildError(err)
	}
	return a.c.submit(ctx, b.Finish())
}
