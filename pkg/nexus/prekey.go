package nexus

import (
	"context"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/crawler"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/txn"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/types"
)

// PreKeyActions drives the session handshake: users claim a pre-key from the
// vault, associate it with their initial message, and the leader fulfills
// pending requests.
type PreKeyActions struct {
	c *Client
}

// ClaimedPreKey reports a claimed pre-key and its serialized bundle.
type ClaimedPreKey struct {
	TxDigest chain.Digest
	PreKeyID chain.ObjectID
	Bundle   []byte
}

// preKeyContent projects the vault's PreKey object.
type preKeyContent struct {
	Bytes types.ByteArray `json:"bytes"`
}

// Claim requests a pre-key from the vault and fetches the bundle bytes of
// the object transferred to the sender.
func (a *PreKeyActions) Claim(ctx context.Context) (*ClaimedPreKey, error) {
	b := chain.NewBuilder()
	if _, err := txn.ClaimPreKey(b, a.c.objects); err != nil {
		return nil, buildError(err)
	}

	exec, err := a.c.submit(ctx, b.Finish())
	if err != nil {
		return nil, err
	}

	id, ok := exec.createdObject(a.c, "pre_key_vault", "PreKey")
	if !ok {
		return nil, parsingf("PreKey not found in response")
	}

	preKey, err := crawler.GetObject[preKeyContent](ctx, a.c.rpc, id)
	if err != nil {
		return nil, rpcError("fetch pre key "+id.String(), err)
	}

	return &ClaimedPreKey{TxDigest: exec.Digest, PreKeyID: id, Bundle: preKey.Data.Bytes}, nil
}

// Associate binds the sender's claimed pre-key to their session, delivering
// the serialized initial handshake message.
func (a *PreKeyActions) Associate(ctx context.Context, initialMessage []byte) (*Execution, error) {
	if len(initialMessage) == 0 {
		return nil, configurationf("an initial message is required")
	}

	b := chain.NewBuilder()
	if _, err := txn.AssociatePreKey(b, a.c.objects, initialMessage); err != nil {
		return nil, buildError(err)
	}
	return a.c.submit(ctx, b.Finish())
}

// Fulfill answers a user's pending pre-key request with serialized bundle
// bytes. Requires the crypto owner capability.
func (a *PreKeyActions) Fulfill(ctx context.Context, cryptoCapID chain.ObjectID, requestedBy chain.Address, preKeyBytes []byte) (*Execution, error) {
	if len(preKeyBytes) == 0 {
		return nil, configurationf("pre key bytes are required")
	}

	capRef, err := a.c.objectRef(ctx, cryptoCapID)
	if err != nil {
		return nil, err
	}

	b := chain.NewBuilder()
	if _, err := txn.FulfillPreKey(b, a.c.objects, capRef, requestedBy, preKeyBytes); err != nil {
		return nil, buildError(err)
	}
	return a.c.submit(ctx, b.Finish())
}
