package nexus

import (
	"bytes"
	"context"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/events"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/fqn"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/txn"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/types"
)

// ToolActions registers tools with the on-ledger registry and manages their
// cost and collateral.
type ToolActions struct {
	c *Client
}

// RegisterToolResult reports a registered tool.
type RegisterToolResult struct {
	TxDigest chain.Digest
	ToolID   chain.ObjectID
}

// RegisterOffChainParams describes an HTTP tool registration. The collateral
// coin is an owned coin consumed by the registry; the owner and gas
// capabilities are transferred back to the sender.
type RegisterOffChainParams struct {
	Meta               *types.ToolMeta
	CollateralCoin     chain.ObjectID
	InvocationCostMist uint64
}

// RegisterOffChain validates the tool's schemas and registers it.
func (a *ToolActions) RegisterOffChain(ctx context.Context, params RegisterOffChainParams) (*RegisterToolResult, error) {
	if params.Meta == nil {
		return nil, configurationf("tool metadata is required")
	}
	if err := validateSchema("input_schema", params.Meta.InputSchema); err != nil {
		return nil, err
	}
	if err := validateSchema("output_schema", params.Meta.OutputSchema); err != nil {
		return nil, err
	}

	coin, err := a.c.objectRef(ctx, params.CollateralCoin)
	if err != nil {
		return nil, err
	}

	b := chain.NewBuilder()
	_, err = txn.RegisterOffChainTool(b, a.c.objects, params.Meta, a.c.signer.Address(), coin, params.InvocationCostMist)
	if err != nil {
		return nil, buildError(err)
	}

	exec, err := a.c.submit(ctx, b.Finish())
	if err != nil {
		return nil, err
	}
	return toolResult(exec)
}

// RegisterOnChainParams describes registration of an on-ledger tool module.
type RegisterOnChainParams struct {
	Fqn            fqn.ToolFqn
	Ref            fqn.ToolRef
	Description    string
	InputSchema    []byte
	OutputSchema   []byte
	CollateralCoin chain.ObjectID
}

// RegisterOnChain validates the tool's schemas and registers an on-ledger
// tool module.
func (a *ToolActions) RegisterOnChain(ctx context.Context, params RegisterOnChainParams) (*RegisterToolResult, error) {
	if err := validateSchema("input_schema", params.InputSchema); err != nil {
		return nil, err
	}
	if err := validateSchema("output_schema", params.OutputSchema); err != nil {
		return nil, err
	}

	coin, err := a.c.objectRef(ctx, params.CollateralCoin)
	if err != nil {
		return nil, err
	}

	b := chain.NewBuilder()
	_, err = txn.RegisterOnChainTool(b, a.c.objects, params.Fqn, params.Ref,
		params.Description, params.InputSchema, params.OutputSchema,
		a.c.signer.Address(), coin)
	if err != nil {
		return nil, buildError(err)
	}

	exec, err := a.c.submit(ctx, b.Finish())
	if err != nil {
		return nil, err
	}
	return toolResult(exec)
}

// SetInvocationCost updates a tool's single-invocation cost. The capability
// is the gas capability received at registration.
func (a *ToolActions) SetInvocationCost(ctx context.Context, toolFqn fqn.ToolFqn, gasCapID chain.ObjectID, costMist uint64) (*Execution, error) {
	capRef, err := a.c.objectRef(ctx, gasCapID)
	if err != nil {
		return nil, err
	}

	b := chain.NewBuilder()
	if _, err := txn.SetInvocationCost(b, a.c.objects, toolFqn, capRef, costMist); err != nil {
		return nil, buildError(err)
	}
	return a.c.submit(ctx, b.Finish())
}

// Unregister removes a tool from the registry, consuming the owner
// capability. Collateral stays locked until ClaimCollateral.
func (a *ToolActions) Unregister(ctx context.Context, toolFqn fqn.ToolFqn, ownerCapID chain.ObjectID) (*Execution, error) {
	capRef, err := a.c.objectRef(ctx, ownerCapID)
	if err != nil {
		return nil, err
	}

	b := chain.NewBuilder()
	if _, err := txn.UnregisterTool(b, a.c.objects, toolFqn, capRef); err != nil {
		return nil, buildError(err)
	}
	return a.c.submit(ctx, b.Finish())
}

// ClaimCollateral returns an unregistered tool's collateral to the sender
// once its lock-up has elapsed.
func (a *ToolActions) ClaimCollateral(ctx context.Context, toolFqn fqn.ToolFqn, ownerCapID chain.ObjectID) (*Execution, error) {
	capRef, err := a.c.objectRef(ctx, ownerCapID)
	if err != nil {
		return nil, err
	}

	b := chain.NewBuilder()
	if _, err := txn.ClaimCollateral(b, a.c.objects, toolFqn, capRef); err != nil {
		return nil, buildError(err)
	}
	return a.c.submit(ctx, b.Finish())
}

func toolResult(exec *Execution) (*RegisterToolResult, error) {
	for _, ev := range exec.Events {
		if registered, ok := ev.Data.(*events.ToolRegisteredEvent); ok {
			return &RegisterToolResult{TxDigest: exec.Digest, ToolID: registered.Tool}, nil
		}
	}
	return nil, parsingf("ToolRegisteredEvent not found in response")
}

// validateSchema rejects tool schemas the registry would accept but no
// client could ever satisfy.
func validateSchema(name string, schema []byte) error {
	if len(schema) == 0 {
		return configurationf("tool %s is required", name)
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("https://nexus.schemas.local/tools/%s.json", name)
	if err := c.AddResource(url, bytes.NewReader(schema)); err != nil {
		return configurationf("tool %s: %v", name, err)
	}
	if _, err := c.Compile(url); err != nil {
		return configurationf("tool %s: %v", name, err)
	}
	return nil
}
