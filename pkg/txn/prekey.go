package txn

import (
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/types"
)

// ClaimPreKey requests a pre-key from the vault for the transaction sender.
// The vault rate-limits per address and requires gas budget on deposit, so
// the gas service rides along read-only.
func ClaimPreKey(b *chain.Builder, objects *types.NexusObjects) (chain.Argument, error) {
	p := pures(b)

	vault := p.shared(objects.PreKeyVault, true)
	gasService := p.shared(objects.GasService, false)
	clock := p.clock()
	if p.err != nil {
		return chain.Argument{}, p.err
	}
	return b.MoveCall(objects.WorkflowPkgID, modulePreKeyVault, "claim_pre_key_for_self", nil,
		[]chain.Argument{vault, gasService, clock}), nil
}

// FulfillPreKey answers a user's pending pre-key request with serialized
// bundle bytes. Requires the crypto owner capability.
func FulfillPreKey(b *chain.Builder, objects *types.NexusObjects, ownerCapOverCrypto chain.ObjectRef, requestedBy chain.Address, preKeyBytes []byte) (chain.Argument, error) {
	p := pures(b)

	vault := p.shared(objects.PreKeyVault, true)
	capArg := p.owned(ownerCapOverCrypto)
	requestedByArg := p.arg(requestedBy)
	bundle := p.arg(preKeyBytes)
	if p.err != nil {
		return chain.Argument{}, p.err
	}
	return b.MoveCall(objects.WorkflowPkgID, modulePreKeyVault, "fulfill_pre_key_for_user", nil,
		[]chain.Argument{vault, capArg, requestedByArg, bundle}), nil
}

// AssociatePreKey binds a claimed pre-key to the sender while delivering the
// serialized initial message of the session handshake.
func AssociatePreKey(b *chain.Builder, objects *types.NexusObjects, initialMessage []byte) (chain.Argument, error) {
	p := pures(b)

	vault := p.shared(objects.PreKeyVault, true)
	message := p.arg(initialMessage)
	if p.err != nil {
		return chain.Argument{}, p.err
	}
	return b.MoveCall(objects.WorkflowPkgID, modulePreKeyVault, "associate_pre_key", nil,
		[]chain.Argument{vault, message}), nil
}
