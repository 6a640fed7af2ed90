package types

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Transaction size bookkeeping for deciding when to offload artifacts.
const (
	// NexusBaseTransactionSize is the size of a walk-evaluation transaction
	// before any port data is attached.
	NexusBaseTransactionSize = 8 * 1024
	// MaxTransactionSize is the hard ledger limit per transaction.
	MaxTransactionSize = 128 * 1024
)

// StorageKind selects where port data lives.
type StorageKind string

const (
	// StorageInline keeps the payload in the transaction itself.
	StorageInline StorageKind = "inline"
	// StorageRemote offloads the payload to a content-addressed blob store
	// and inlines only its key.
	StorageRemote StorageKind = "remote"
)

// BlobStore is the content-addressed offload target. pkg/storage provides
// the S3, GCS and in-memory implementations.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// StorageConf selects the offload backend for remote data. A nil Store with
// remote data is a configuration error at commit/fetch time.
type StorageConf struct {
	Store BlobStore
}

// NexusData is an uncommitted port artifact. Its payload is only reachable
// through Commit, which pins the data into its storage location and yields
// the on-ledger DataStorage representation.
type NexusData struct {
	data DataStorage
}

// NewInline wraps a JSON value as inline, unencrypted data.
func NewInline(value json.RawMessage) NexusData {
	return NexusData{data: DataStorage{Kind: StorageInline, JSON: value}}
}

// NewInlineEncrypted wraps an already-encrypted JSON value as inline data.
func NewInlineEncrypted(value json.RawMessage) NexusData {
	return NexusData{data: DataStorage{Kind: StorageInline, JSON: value, Encrypted: true}}
}

// NewRemote wraps a JSON value destined for the blob store.
func NewRemote(value json.RawMessage) NexusData {
	return NexusData{data: DataStorage{Kind: StorageRemote, JSON: value}}
}

// NewRemoteEncrypted wraps an already-encrypted JSON value destined for the
// blob store.
func NewRemoteEncrypted(value json.RawMessage) NexusData {
	return NexusData{data: DataStorage{Kind: StorageRemote, JSON: value, Encrypted: true}}
}

// Commit pins the payload into its storage location. Inline data passes
// through; remote data is uploaded under its content hash.
func (d NexusData) Commit(ctx context.Context, conf StorageConf) (DataStorage, error) {
	storage := d.data
	if err := storage.commit(ctx, conf); err != nil {
		return DataStorage{}, err
	}
	return storage, nil
}

// CommitInlinePlain is the infallible shortcut for inline, unencrypted data.
// It panics on any other storage shape.
func (d NexusData) CommitInlinePlain() DataStorage {
	if d.data.Kind != StorageInline || d.data.Encrypted {
		panic("CommitInlinePlain is only valid for inline, unencrypted data")
	}
	return d.data
}

// DataStorage is the committed, on-ledger representation of a port artifact.
type DataStorage struct {
	Kind StorageKind
	// JSON holds the payload for inline data, or after a successful Fetch of
	// remote data.
	JSON json.RawMessage
	// Keys holds the content-addressed blob keys of remote data. Arrays are
	// stored as one blob holding the whole JSON array, with its key repeated
	// once per element.
	Keys []string
	// Encrypted marks payloads that are ciphertext for an established
	// session.
	Encrypted bool
}

// AsJSON returns the in-memory payload.
func (s DataStorage) AsJSON() json.RawMessage { return s.JSON }

// IsEncrypted reports the encryption flag.
func (s DataStorage) IsEncrypted() bool { return s.Encrypted }

func (s *DataStorage) commit(ctx context.Context, conf StorageConf) error {
	switch s.Kind {
	case StorageInline:
		return nil
	case StorageRemote:
		if conf.Store == nil {
			return fmt.Errorf("commit remote data: no blob store configured")
		}
		sum := sha256.Sum256(s.JSON)
		key := hex.EncodeToString(sum[:])
		if err := conf.Store.Put(ctx, key, s.JSON); err != nil {
			return fmt.Errorf("commit remote data: %w", err)
		}
		elems, isArray := splitJSONArray(s.JSON)
		if isArray {
			s.Keys = make([]string, len(elems))
			for i := range elems {
				s.Keys[i] = key
			}
		} else {
			s.Keys = []string{key}
		}
		return nil
	default:
		return fmt.Errorf("commit: unknown storage kind %q", s.Kind)
	}
}

// Fetch materializes remote data from the blob store. Inline data is a
// no-op.
func (s *DataStorage) Fetch(ctx context.Context, conf StorageConf) error {
	if s.Kind != StorageRemote {
		return nil
	}
	if conf.Store == nil {
		return fmt.Errorf("fetch remote data: no blob store configured")
	}
	if len(s.Keys) == 0 {
		return fmt.Errorf("fetch remote data: no keys recorded")
	}
	payload, err := conf.Store.Get(ctx, s.Keys[0])
	if err != nil {
		return fmt.Errorf("fetch remote data: %w", err)
	}
	s.JSON = payload
	return nil
}

type dataStorageWire struct {
	Storage   ByteArray   `json:"storage"`
	One       ByteArray   `json:"one"`
	Many      []ByteArray `json:"many"`
	Encrypted bool        `json:"encrypted"`
}

func (s DataStorage) MarshalJSON() ([]byte, error) {
	wire := dataStorageWire{
		Storage:   ByteArray(s.Kind),
		Many:      []ByteArray{},
		Encrypted: s.Encrypted,
	}

	switch s.Kind {
	case StorageInline:
		if elems, isArray := splitJSONArray(s.JSON); isArray {
			for _, e := range elems {
				wire.Many = append(wire.Many, ByteArray(e))
			}
		} else {
			wire.One = ByteArray(s.JSON)
		}
	case StorageRemote:
		switch len(s.Keys) {
		case 0:
			return nil, fmt.Errorf("data storage: remote data committed without keys")
		case 1:
			wire.One = ByteArray(s.Keys[0])
		default:
			for _, k := range s.Keys {
				wire.Many = append(wire.Many, ByteArray(k))
			}
		}
	default:
		return nil, fmt.Errorf("data storage: unknown kind %q", s.Kind)
	}

	return json.Marshal(wire)
}

func (s *DataStorage) UnmarshalJSON(data []byte) error {
	var wire dataStorageWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	kind := StorageKind(wire.Storage)
	switch kind {
	case StorageInline:
		out := DataStorage{Kind: kind, Encrypted: wire.Encrypted}
		if len(wire.Many) > 0 {
			elems := make([]json.RawMessage, len(wire.Many))
			for i, e := range wire.Many {
				elems[i] = json.RawMessage(e)
			}
			joined, err := json.Marshal(elems)
			if err != nil {
				return err
			}
			out.JSON = joined
		} else {
			out.JSON = json.RawMessage(wire.One)
		}
		*s = out
	case StorageRemote:
		out := DataStorage{Kind: kind, Encrypted: wire.Encrypted}
		if len(wire.Many) > 0 {
			for _, k := range wire.Many {
				out.Keys = append(out.Keys, string(k))
			}
		} else if len(wire.One) > 0 {
			out.Keys = []string{string(wire.One)}
		}
		*s = out
	default:
		return fmt.Errorf("data storage: unknown kind %q", kind)
	}
	return nil
}

// splitJSONArray returns the elements of a top-level JSON array, or
// (nil, false) for any other value.
func splitJSONArray(raw json.RawMessage) ([]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, false
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, false
	}
	return elems, true
}
