// Package chain provides the ledger data model and a JSON-RPC client used by
// the crawler, the event decoder and the transaction composer.
package chain

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// AddressLen is the byte length of a ledger address.
const AddressLen = 32

// Address is a 32-byte ledger address, rendered as 0x-prefixed lowercase hex.
type Address [AddressLen]byte

// ObjectID identifies a ledger object. Object IDs share the address space.
type ObjectID = Address

// ParseAddress parses a 0x-prefixed hex address. Short inputs are left-padded
// to 32 bytes, matching the ledger's display rules.
func ParseAddress(s string) (Address, error) {
	var a Address

	raw := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if raw == "" {
		return a, fmt.Errorf("parse address: empty input")
	}
	if len(raw) > 2*AddressLen {
		return a, fmt.Errorf("parse address: %d hex chars exceeds %d", len(raw), 2*AddressLen)
	}
	if len(raw)%2 == 1 {
		raw = "0" + raw
	}

	b, err := hex.DecodeString(raw)
	if err != nil {
		return a, fmt.Errorf("parse address: %w", err)
	}

	copy(a[AddressLen-len(b):], b)
	return a, nil
}

// MustParseAddress is ParseAddress that panics. Test helper.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Address) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Digest is a 32-byte content digest rendered as 0x-prefixed hex. Transaction
// digests, object digests and checkpoint digests share this representation.
type Digest string

// Bytes decodes the digest into its raw 32 bytes.
func (d Digest) Bytes() ([]byte, error) {
	raw := strings.TrimPrefix(string(d), "0x")
	b, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode digest: %w", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("decode digest: got %d bytes, want 32", len(b))
	}
	return b, nil
}

// DigestFromBytes renders 32 raw bytes as a Digest.
func DigestFromBytes(b []byte) Digest {
	return Digest("0x" + hex.EncodeToString(b))
}

// ObjectRef pins an object at an exact version: (object_id, version, digest).
type ObjectRef struct {
	ObjectID ObjectID `json:"object_id"`
	Version  uint64   `json:"version"`
	Digest   Digest   `json:"digest"`
}

// OwnerKind discriminates object ownership.
type OwnerKind uint8

const (
	OwnerAddress OwnerKind = iota
	OwnerShared
	OwnerImmutable
	OwnerObject
)

// Owner describes who controls an object. Shared ownership carries the
// initial shared version, which later calls must use when referencing the
// object as a shared transaction input.
type Owner struct {
	Kind                 OwnerKind
	Address              Address
	InitialSharedVersion uint64
}

func (o Owner) MarshalJSON() ([]byte, error) {
	switch o.Kind {
	case OwnerAddress:
		return json.Marshal(map[string]string{"AddressOwner": o.Address.String()})
	case OwnerShared:
		return json.Marshal(map[string]map[string]uint64{
			"Shared": {"initial_shared_version": o.InitialSharedVersion},
		})
	case OwnerImmutable:
		return json.Marshal("Immutable")
	case OwnerObject:
		return json.Marshal(map[string]string{"ObjectOwner": o.Address.String()})
	}
	return nil, fmt.Errorf("marshal owner: unknown kind %d", o.Kind)
}

func (o *Owner) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if s != "Immutable" {
			return fmt.Errorf("unmarshal owner: unknown variant %q", s)
		}
		o.Kind = OwnerImmutable
		return nil
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("unmarshal owner: %w", err)
	}

	if raw, ok := m["AddressOwner"]; ok {
		o.Kind = OwnerAddress
		return json.Unmarshal(raw, &o.Address)
	}
	if raw, ok := m["ObjectOwner"]; ok {
		o.Kind = OwnerObject
		return json.Unmarshal(raw, &o.Address)
	}
	if raw, ok := m["Shared"]; ok {
		var inner struct {
			InitialSharedVersion U64String `json:"initial_shared_version"`
		}
		if err := json.Unmarshal(raw, &inner); err != nil {
			return fmt.Errorf("unmarshal shared owner: %w", err)
		}
		o.Kind = OwnerShared
		o.InitialSharedVersion = uint64(inner.InitialSharedVersion)
		return nil
	}

	return fmt.Errorf("unmarshal owner: unrecognized shape %s", string(b))
}

// EventID locates an event within its transaction.
type EventID struct {
	TxDigest Digest    `json:"tx_digest"`
	EventSeq U64String `json:"event_seq"`
}

// Event is a raw ledger event prior to domain decoding.
type Event struct {
	ID                EventID         `json:"id"`
	PackageID         ObjectID        `json:"package_id"`
	TransactionModule string          `json:"transaction_module"`
	Sender            Address         `json:"sender"`
	Type              StructTag       `json:"type"`
	ParsedJSON        json.RawMessage `json:"parsed_json"`
	TimestampMs       *U64String      `json:"timestamp_ms,omitempty"`
}

// Epoch carries the fields of the ledger epoch the SDK cares about.
type Epoch struct {
	Epoch             U64String `json:"epoch"`
	ReferenceGasPrice U64String `json:"reference_gas_price"`
	EndOfEpochMs      U64String `json:"end_of_epoch_ms"`
}

// DynamicFieldInfo is one entry of a dynamic-field listing.
type DynamicFieldInfo struct {
	Name    json.RawMessage `json:"name"`
	ChildID ObjectID        `json:"child_id"`
	FieldID ObjectID        `json:"field_id"`
}
