package nexus

import (
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"os"
	"sort"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/crawler"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/fqn"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/signedhttp"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/txn"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/types"
)

// popDomainV1 separates proof-of-possession signatures from every other use
// of a message-signing key.
const popDomainV1 = "nexus_workflow.network_auth.pop_v1"

// keySchemeEd25519 is the only key scheme the registry accepts today.
const keySchemeEd25519 = 0

// NetworkAuthActions manages key bindings: registering message-signing keys
// for tools and leaders, and exporting the leader keys responders trust.
type NetworkAuthActions struct {
	c *Client
}

// RegisterKeyResult reports a registered message-signing key.
type RegisterKeyResult struct {
	TxDigest  chain.Digest
	BindingID chain.ObjectID
	KeyID     uint64
}

// RegisterToolKeyParams describes a key registration for an off-chain tool.
// A zero BindingID creates a new binding holding the key; otherwise the key
// is registered on the existing binding, rotating the previous one out.
type RegisterToolKeyParams struct {
	ToolFqn     fqn.ToolFqn
	OwnerCapID  chain.ObjectID
	BindingID   chain.ObjectID
	SigningKey  ed25519.PrivateKey
	Description []byte
}

// RegisterToolKey proves ownership of the tool, signs the proof of
// possession for the key's upcoming id and registers the key.
func (a *NetworkAuthActions) RegisterToolKey(ctx context.Context, params RegisterToolKeyParams) (*RegisterKeyResult, error) {
	capRef, err := a.c.objectRef(ctx, params.OwnerCapID)
	if err != nil {
		return nil, err
	}

	if params.BindingID == (chain.ObjectID{}) {
		material, err := keyMaterial(params.SigningKey, toolIdentity(params.ToolFqn), 0)
		if err != nil {
			return nil, err
		}

		b := chain.NewBuilder()
		_, err = txn.CreateToolBindingAndRegisterKey(b, a.c.objects, a.c.signer.Address(),
			params.ToolFqn, capRef, material, descriptionPtr(params.Description))
		if err != nil {
			return nil, buildError(err)
		}

		exec, err := a.c.submit(ctx, b.Finish())
		if err != nil {
			return nil, err
		}
		binding, ok := exec.createdObject(a.c, "network_auth", "KeyBinding")
		if !ok {
			return nil, parsingf("KeyBinding not found in response")
		}
		return &RegisterKeyResult{TxDigest: exec.Digest, BindingID: binding, KeyID: 0}, nil
	}

	binding, err := a.fetchBinding(ctx, params.BindingID)
	if err != nil {
		return nil, err
	}
	keyID := uint64(binding.Data.NextKeyID)

	material, err := keyMaterial(params.SigningKey, toolIdentity(params.ToolFqn), keyID)
	if err != nil {
		return nil, err
	}

	b := chain.NewBuilder()
	if err := txn.RegisterToolKey(b, a.c.objects, binding.Reference(), params.ToolFqn, capRef, material); err != nil {
		return nil, buildError(err)
	}

	exec, err := a.c.submit(ctx, b.Finish())
	if err != nil {
		return nil, err
	}
	return &RegisterKeyResult{TxDigest: exec.Digest, BindingID: params.BindingID, KeyID: keyID}, nil
}

// RegisterLeaderKeyParams describes a key registration for a network leader.
// The leader capability is a shared object.
type RegisterLeaderKeyParams struct {
	LeaderID    chain.Address
	LeaderCapID chain.ObjectID
	BindingID   chain.ObjectID
	SigningKey  ed25519.PrivateKey
	Description []byte
}

// RegisterLeaderKey is the leader-side counterpart of RegisterToolKey.
func (a *NetworkAuthActions) RegisterLeaderKey(ctx context.Context, params RegisterLeaderKeyParams) (*RegisterKeyResult, error) {
	capRef, err := a.c.sharedRef(ctx, params.LeaderCapID)
	if err != nil {
		return nil, err
	}

	if params.BindingID == (chain.ObjectID{}) {
		material, err := keyMaterial(params.SigningKey, leaderIdentity(params.LeaderID), 0)
		if err != nil {
			return nil, err
		}

		b := chain.NewBuilder()
		_, err = txn.CreateLeaderBindingAndRegisterKey(b, a.c.objects, a.c.signer.Address(),
			capRef, material, descriptionPtr(params.Description))
		if err != nil {
			return nil, buildError(err)
		}

		exec, err := a.c.submit(ctx, b.Finish())
		if err != nil {
			return nil, err
		}
		binding, ok := exec.createdObject(a.c, "network_auth", "KeyBinding")
		if !ok {
			return nil, parsingf("KeyBinding not found in response")
		}
		return &RegisterKeyResult{TxDigest: exec.Digest, BindingID: binding, KeyID: 0}, nil
	}

	binding, err := a.fetchBinding(ctx, params.BindingID)
	if err != nil {
		return nil, err
	}
	keyID := uint64(binding.Data.NextKeyID)

	material, err := keyMaterial(params.SigningKey, leaderIdentity(params.LeaderID), keyID)
	if err != nil {
		return nil, err
	}

	b := chain.NewBuilder()
	if err := txn.RegisterLeaderKey(b, a.c.objects, binding.Reference(), capRef, material); err != nil {
		return nil, buildError(err)
	}

	exec, err := a.c.submit(ctx, b.Finish())
	if err != nil {
		return nil, err
	}
	return &RegisterKeyResult{TxDigest: exec.Digest, BindingID: params.BindingID, KeyID: keyID}, nil
}

// LeaderBinding names one leader and its key binding object for export.
type LeaderBinding struct {
	LeaderID  chain.Address
	BindingID chain.ObjectID
}

// ExportAllowedLeaders crawls the named key bindings and assembles the
// allowed-leaders document responders load. Keys with foreign schemes or
// malformed material fail the export rather than silently dropping out.
func (a *NetworkAuthActions) ExportAllowedLeaders(ctx context.Context, bindings []LeaderBinding) (*signedhttp.AllowedLeadersFileV1, error) {
	file := &signedhttp.AllowedLeadersFileV1{Version: signedhttp.AllowedLeadersVersion}

	for _, lb := range bindings {
		binding, err := a.fetchBinding(ctx, lb.BindingID)
		if err != nil {
			return nil, err
		}

		records, err := crawler.GetDynamicFields(ctx, a.c.rpc, binding.Data.Keys)
		if err != nil {
			return nil, rpcError("expand key binding "+lb.BindingID.String(), err)
		}

		kids := make([]uint64, 0, len(records))
		for kid := range records {
			kids = append(kids, uint64(kid))
		}
		sort.Slice(kids, func(i, j int) bool { return kids[i] < kids[j] })

		leader := signedhttp.AllowedLeaderV1{LeaderID: lb.LeaderID.String()}
		for _, kid := range kids {
			record := records[chain.U64String(kid)]
			if record.Scheme != keySchemeEd25519 {
				return nil, parsingf("leader %s kid %d: unsupported key scheme %d", lb.LeaderID, kid, record.Scheme)
			}
			if len(record.PublicKey) != ed25519.PublicKeySize {
				return nil, parsingf("leader %s kid %d: public key must be %d bytes, got %d",
					lb.LeaderID, kid, ed25519.PublicKeySize, len(record.PublicKey))
			}
			leader.Keys = append(leader.Keys, signedhttp.AllowedLeaderKeyV1{
				Kid:       kid,
				PublicKey: hex.EncodeToString(record.PublicKey),
			})
		}
		file.Leaders = append(file.Leaders, leader)
	}

	return file, nil
}

// WriteAllowedLeaders persists an allowed-leaders document, readable by the
// owner only.
func WriteAllowedLeaders(path string, file *signedhttp.AllowedLeadersFileV1) error {
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return parsingf("encode allowed leaders: %v", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return configurationf("write allowed leaders: %v", err)
	}
	return nil
}

// keyBinding projects the registry's KeyBinding object.
type keyBinding struct {
	NextKeyID   chain.U64String                                `json:"next_key_id"`
	ActiveKeyID chain.OptionU64String                          `json:"active_key_id"`
	Keys        crawler.DynamicMap[chain.U64String, keyRecord] `json:"keys"`
}

// keyRecord is one registered key on a binding.
type keyRecord struct {
	Scheme    uint8           `json:"scheme"`
	PublicKey types.ByteArray `json:"public_key"`
}

func (a *NetworkAuthActions) fetchBinding(ctx context.Context, id chain.ObjectID) (*crawler.Response[keyBinding], error) {
	binding, err := crawler.GetObject[keyBinding](ctx, a.c.rpc, id)
	if err != nil {
		return nil, rpcError("fetch key binding "+id.String(), err)
	}
	return binding, nil
}

// toolIdentity is the canonical identity encoding of an off-chain tool: the
// tool variant tag followed by its length-prefixed FQN.
func toolIdentity(toolFqn fqn.ToolFqn) []byte {
	s := toolFqn.String()
	out := append([]byte{1}, appendULEB128(nil, uint64(len(s)))...)
	return append(out, s...)
}

// leaderIdentity is the canonical identity encoding of a leader: the leader
// variant tag followed by its address.
func leaderIdentity(leader chain.Address) []byte {
	return append([]byte{0}, leader[:]...)
}

// keyMaterial signs the proof of possession binding (identity, key id,
// public key) under the registration domain.
func keyMaterial(key ed25519.PrivateKey, identity []byte, keyID uint64) (txn.KeyMaterial, error) {
	if len(key) != ed25519.PrivateKeySize {
		return txn.KeyMaterial{}, configurationf("signing key must be %d bytes, got %d", ed25519.PrivateKeySize, len(key))
	}
	pub := key.Public().(ed25519.PublicKey)

	msg := make([]byte, 0, len(popDomainV1)+len(identity)+8+len(pub))
	msg = append(msg, popDomainV1...)
	msg = append(msg, identity...)
	msg = binary.LittleEndian.AppendUint64(msg, keyID)
	msg = append(msg, pub...)

	var material txn.KeyMaterial
	copy(material.PublicKey[:], pub)
	copy(material.PopSignature[:], ed25519.Sign(key, msg))
	return material, nil
}

func appendULEB128(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

func descriptionPtr(desc []byte) *[]byte {
	if len(desc) == 0 {
		return nil
	}
	return &desc
}
