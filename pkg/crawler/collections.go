package crawler

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
)

// Set projects the ledger's vector-backed set: `{contents: [v, …]}`.
type Set[T comparable] struct {
	Contents []T
}

func (s *Set[T]) UnmarshalJSON(data []byte) error {
	var wire struct {
		Contents []T `json:"contents"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	s.Contents = wire.Contents
	return nil
}

func (s Set[T]) MarshalJSON() ([]byte, error) {
	contents := s.Contents
	if contents == nil {
		contents = []T{}
	}
	return json.Marshal(map[string]any{"contents": contents})
}

// Has reports membership.
func (s Set[T]) Has(v T) bool {
	for _, e := range s.Contents {
		if e == v {
			return true
		}
	}
	return false
}

// Map projects the ledger's vector-backed map. Depending on the server
// version the wire shape is either `{contents: [{key, value}, …]}` or
// `{contents: {k: v, …}}`; both decode here.
type Map[K comparable, V any] struct {
	Contents map[K]V
}

type mapEntry[K comparable, V any] struct {
	Key   K `json:"key"`
	Value V `json:"value"`
}

func (m *Map[K, V]) UnmarshalJSON(data []byte) error {
	var entryWire struct {
		Contents []mapEntry[K, V] `json:"contents"`
	}
	if err := json.Unmarshal(data, &entryWire); err == nil {
		m.Contents = make(map[K]V, len(entryWire.Contents))
		for _, e := range entryWire.Contents {
			m.Contents[e.Key] = e.Value
		}
		return nil
	}

	var objectWire struct {
		Contents map[string]V `json:"contents"`
	}
	if err := json.Unmarshal(data, &objectWire); err != nil {
		return fmt.Errorf("map: unrecognized contents shape: %w", err)
	}
	m.Contents = make(map[K]V, len(objectWire.Contents))
	for rawKey, value := range objectWire.Contents {
		var key K
		if err := json.Unmarshal([]byte(strconv.Quote(rawKey)), &key); err != nil {
			return fmt.Errorf("map: decode key %q: %w", rawKey, err)
		}
		m.Contents[key] = value
	}
	return nil
}

func (m Map[K, V]) MarshalJSON() ([]byte, error) {
	entries := make([]mapEntry[K, V], 0, len(m.Contents))
	for k, v := range m.Contents {
		entries = append(entries, mapEntry[K, V]{Key: k, Value: v})
	}
	return json.Marshal(map[string]any{"contents": entries})
}

// uid decodes the ledger's object id wrapper, which arrives either as a
// plain address string or as `{id: "0x…"}`.
type uid struct {
	ID chain.ObjectID
}

func (u *uid) UnmarshalJSON(data []byte) error {
	var plain chain.ObjectID
	if err := json.Unmarshal(data, &plain); err == nil {
		u.ID = plain
		return nil
	}
	var wrapped struct {
		ID chain.ObjectID `json:"id"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return fmt.Errorf("object id: %w", err)
	}
	u.ID = wrapped.ID
	return nil
}

func (u uid) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.ID)
}

// handle is the `(id, size)` header every lazy collection carries.
type handle struct {
	ID   uid             `json:"id"`
	Size chain.U64String `json:"size"`
}

// Bag is a heterogeneous lazy collection; contents are fetched by dynamic
// field.
type Bag struct {
	handle
}

// ObjectBag is a Bag whose values are objects.
type ObjectBag struct {
	handle
}

// Table is a homogeneous lazy map.
type Table[K comparable, V any] struct {
	handle
}

// TableVec is a 0-indexed lazy vector backed by u64-named dynamic fields.
type TableVec[T any] struct {
	handle
}

// DynamicMap is a lazy map whose values live in dynamic fields.
type DynamicMap[K comparable, V any] struct {
	handle
}

// DynamicObjectMap is a lazy map whose values are objects referenced by
// dynamic fields.
type DynamicObjectMap[K comparable, V any] struct {
	handle
}

// ObjectID returns the parent object id of the collection.
func (h handle) ObjectID() chain.ObjectID { return h.ID.ID }

// Len returns the declared element count.
func (h handle) Len() uint64 { return uint64(h.Size) }

func newHandle(id chain.ObjectID, size uint64) handle {
	return handle{ID: uid{ID: id}, Size: chain.U64String(size)}
}

// NewTableVec builds a handle for a known `(id, size)` pair, for callers
// that track collection identity outside object content.
func NewTableVec[T any](id chain.ObjectID, size uint64) TableVec[T] {
	return TableVec[T]{handle: newHandle(id, size)}
}

// NewDynamicMap builds a DynamicMap handle.
func NewDynamicMap[K comparable, V any](id chain.ObjectID, size uint64) DynamicMap[K, V] {
	return DynamicMap[K, V]{handle: newHandle(id, size)}
}

// NewDynamicObjectMap builds a DynamicObjectMap handle.
func NewDynamicObjectMap[K comparable, V any](id chain.ObjectID, size uint64) DynamicObjectMap[K, V] {
	return DynamicObjectMap[K, V]{handle: newHandle(id, size)}
}
