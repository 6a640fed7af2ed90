package txn

import (
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/fqn"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/types"
)

// KeyMaterial is the ed25519 public key and proof-of-possession signature
// registered on a key binding.
type KeyMaterial struct {
	PublicKey    [32]byte
	PopSignature [64]byte
}

// CreateToolBindingAndRegisterKey creates a key binding for an off-chain
// tool and registers its first key in one transaction. Proofs of identity
// are single-use, so the sequence mints one for the binding and a second for
// the key registration. The created binding is transferred to sender.
func CreateToolBindingAndRegisterKey(b *chain.Builder, objects *types.NexusObjects, sender chain.Address, toolFqn fqn.ToolFqn, ownerCapOverTool chain.ObjectRef, key KeyMaterial, description *[]byte) (chain.Argument, error) {
	wf := objects.WorkflowPkgID
	p := pures(b)

	registry := p.shared(objects.ToolRegistry, false)
	capArg := p.owned(ownerCapOverTool)

	fqnForBinding := asciiString(b, p, toolFqn.String())
	if p.err != nil {
		return chain.Argument{}, p.err
	}
	proofForBinding := b.MoveCall(wf, moduleNetworkAuth, "prove_offchain_tool", nil,
		[]chain.Argument{registry, capArg, fqnForBinding})

	binding, err := createBinding(b, p, objects, proofForBinding, description)
	if err != nil {
		return chain.Argument{}, err
	}

	fqnForKey := asciiString(b, p, toolFqn.String())
	if p.err != nil {
		return chain.Argument{}, p.err
	}
	proofForKey := b.MoveCall(wf, moduleNetworkAuth, "prove_offchain_tool", nil,
		[]chain.Argument{registry, capArg, fqnForKey})

	if err := registerKey(b, p, wf, binding, proofForKey, key); err != nil {
		return chain.Argument{}, err
	}

	recipient := p.arg(sender)
	if p.err != nil {
		return chain.Argument{}, p.err
	}
	b.TransferObjects([]chain.Argument{binding}, recipient)
	return binding, nil
}

// RegisterToolKey registers a new key on an existing off-chain tool binding,
// rotating the previous one out at its expiry.
func RegisterToolKey(b *chain.Builder, objects *types.NexusObjects, binding chain.ObjectRef, toolFqn fqn.ToolFqn, ownerCapOverTool chain.ObjectRef, key KeyMaterial) error {
	wf := objects.WorkflowPkgID
	p := pures(b)

	bindingArg := p.owned(binding)
	registry := p.shared(objects.ToolRegistry, false)
	capArg := p.owned(ownerCapOverTool)

	fqnArg := asciiString(b, p, toolFqn.String())
	if p.err != nil {
		return p.err
	}
	proof := b.MoveCall(wf, moduleNetworkAuth, "prove_offchain_tool", nil,
		[]chain.Argument{registry, capArg, fqnArg})

	return registerKey(b, p, wf, bindingArg, proof, key)
}

// CreateLeaderBindingAndRegisterKey creates a key binding for a network
// leader and registers its first key. The leader capability is a shared
// object. The created binding is transferred to sender.
func CreateLeaderBindingAndRegisterKey(b *chain.Builder, objects *types.NexusObjects, sender chain.Address, leaderCap chain.ObjectRef, key KeyMaterial, description *[]byte) (chain.Argument, error) {
	wf := objects.WorkflowPkgID
	p := pures(b)

	leaderCapArg := p.shared(leaderCap, false)
	if p.err != nil {
		return chain.Argument{}, p.err
	}
	proofForBinding := b.MoveCall(wf, moduleNetworkAuth, "prove_leader", nil,
		[]chain.Argument{leaderCapArg})

	binding, err := createBinding(b, p, objects, proofForBinding, description)
	if err != nil {
		return chain.Argument{}, err
	}

	proofForKey := b.MoveCall(wf, moduleNetworkAuth, "prove_leader", nil,
		[]chain.Argument{leaderCapArg})

	if err := registerKey(b, p, wf, binding, proofForKey, key); err != nil {
		return chain.Argument{}, err
	}

	recipient := p.arg(sender)
	if p.err != nil {
		return chain.Argument{}, p.err
	}
	b.TransferObjects([]chain.Argument{binding}, recipient)
	return binding, nil
}

// RegisterLeaderKey registers a new key on an existing leader binding.
func RegisterLeaderKey(b *chain.Builder, objects *types.NexusObjects, binding chain.ObjectRef, leaderCap chain.ObjectRef, key KeyMaterial) error {
	wf := objects.WorkflowPkgID
	p := pures(b)

	bindingArg := p.owned(binding)
	leaderCapArg := p.shared(leaderCap, false)
	if p.err != nil {
		return p.err
	}
	proof := b.MoveCall(wf, moduleNetworkAuth, "prove_leader", nil,
		[]chain.Argument{leaderCapArg})

	return registerKey(b, p, wf, bindingArg, proof, key)
}

// createBinding consumes a proof of identity and mints the KeyBinding.
func createBinding(b *chain.Builder, p *pureBuf, objects *types.NexusObjects, proof chain.Argument, description *[]byte) (chain.Argument, error) {
	registry := p.shared(objects.NetworkAuth, true)
	descArg := p.arg(description)
	if p.err != nil {
		return chain.Argument{}, p.err
	}
	return b.MoveCall(objects.WorkflowPkgID, moduleNetworkAuth, "create_binding", nil,
		[]chain.Argument{registry, proof, descArg}), nil
}

// registerKey builds the proof of key and registers it on the binding.
func registerKey(b *chain.Builder, p *pureBuf, wf chain.ObjectID, binding, proof chain.Argument, key KeyMaterial) error {
	publicKey := p.arg(key.PublicKey[:])
	signature := p.arg(key.PopSignature[:])
	if p.err != nil {
		return p.err
	}
	proofOfKey := b.MoveCall(wf, moduleNetworkAuth, "new_proof_of_key", nil,
		[]chain.Argument{binding, proof, publicKey, signature})

	clock := p.clock()
	if p.err != nil {
		return p.err
	}
	b.MoveCall(wf, moduleNetworkAuth, "register_key", nil,
		[]chain.Argument{binding, proof, proofOfKey, clock})
	return nil
}
