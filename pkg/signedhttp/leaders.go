package signedhttp

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
)

// AllowedLeadersVersion is the only supported allowed-leaders file version.
const AllowedLeadersVersion = 1

// AllowedLeadersFileV1 is the on-disk document listing permitted invokers
// and their message-signing keys.
type AllowedLeadersFileV1 struct {
	Version int               `json:"version"`
	Leaders []AllowedLeaderV1 `json:"leaders"`
}

// AllowedLeaderV1 is one permitted invoker.
type AllowedLeaderV1 struct {
	LeaderID string               `json:"leader_id"`
	Keys     []AllowedLeaderKeyV1 `json:"keys"`
}

// AllowedLeaderKeyV1 is one key of an invoker: a numeric key id plus the
// 64-char hex public key.
type AllowedLeaderKeyV1 struct {
	Kid       uint64 `json:"kid"`
	PublicKey string `json:"public_key"`
}

// KeyResolver resolves a public key by (id, kid). Both sides of the protocol
// consult a resolver: the responder for invoker keys, the invoker for
// responder keys.
type KeyResolver interface {
	ResolveKey(id string, kid uint64) (ed25519.PublicKey, bool)
}

// StaticKeys is an in-memory KeyResolver.
type StaticKeys map[string]map[uint64]ed25519.PublicKey

func (s StaticKeys) ResolveKey(id string, kid uint64) (ed25519.PublicKey, bool) {
	keys, ok := s[id]
	if !ok {
		return nil, false
	}
	pub, ok := keys[kid]
	return pub, ok
}

// Add registers a key, replacing any previous key under the same kid.
func (s StaticKeys) Add(id string, kid uint64, pub ed25519.PublicKey) {
	if s[id] == nil {
		s[id] = make(map[uint64]ed25519.PublicKey)
	}
	s[id][kid] = pub
}

// ParseAllowedLeaders validates a v1 allowed-leaders document: version must
// be 1, public keys must be 64 hex chars, and kids are deduplicated per
// leader (first occurrence wins).
func ParseAllowedLeaders(data []byte) (StaticKeys, error) {
	var doc AllowedLeadersFileV1
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse allowed leaders: %w", err)
	}
	if doc.Version != AllowedLeadersVersion {
		return nil, fmt.Errorf("parse allowed leaders: unsupported version %d", doc.Version)
	}

	resolved := make(StaticKeys, len(doc.Leaders))
	for _, leader := range doc.Leaders {
		if leader.LeaderID == "" {
			return nil, fmt.Errorf("parse allowed leaders: empty leader_id")
		}
		for _, key := range leader.Keys {
			if _, ok := resolved[leader.LeaderID][key.Kid]; ok {
				continue
			}
			pub, err := ParsePublicKeyHex(key.PublicKey)
			if err != nil {
				return nil, fmt.Errorf("leader %s kid %d: %w", leader.LeaderID, key.Kid, err)
			}
			resolved.Add(leader.LeaderID, key.Kid, pub)
		}
	}
	return resolved, nil
}

// LoadAllowedLeaders reads and parses an allowed-leaders file. Loaded once
// per process.
func LoadAllowedLeaders(path string) (StaticKeys, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read allowed leaders file: %w", err)
	}
	return ParseAllowedLeaders(data)
}
