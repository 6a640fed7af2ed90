// Package crawler fetches typed projections of ledger objects. Callers name
// a concrete Go target type; the crawler fetches raw content with a field
// mask and deserializes the server's value tree into that type. Traversal is
// strictly top-down: lazy collections are only expanded through the
// operations below, never followed autonomously.
package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
)

// Response wraps a fetched object: identity and metadata plus the typed
// content.
type Response[T any] struct {
	ObjectID chain.ObjectID
	Owner    chain.Owner
	Version  uint64
	Digest   chain.Digest
	Data     T
	Balance  *uint64
}

// Reference returns the owned-object input triple.
func (r *Response[T]) Reference() chain.ObjectRef {
	return chain.ObjectRef{ObjectID: r.ObjectID, Version: r.Version, Digest: r.Digest}
}

// InitialVersion returns the version a shared-object transaction input must
// carry: the object's initial shared version, not its current one.
func (r *Response[T]) InitialVersion() (uint64, error) {
	if r.Owner.Kind != chain.OwnerShared {
		return 0, fmt.Errorf("object %s is not shared", r.ObjectID)
	}
	return r.Owner.InitialSharedVersion, nil
}

// GetObject fetches one object and deserializes its content into T.
func GetObject[T any](ctx context.Context, c *chain.Client, id chain.ObjectID) (*Response[T], error) {
	raw, err := c.GetObject(ctx, id, chain.ContentFieldMask)
	if err != nil {
		if errors.Is(err, chain.ErrNotFound) {
			return nil, fmt.Errorf("object %s: %w", id, ErrObjectNotFound)
		}
		return nil, err
	}
	return parseResponse[T](raw, true)
}

// GetObjects batch-fetches objects, preserving order. Any missing id fails
// the whole call.
func GetObjects[T any](ctx context.Context, c *chain.Client, ids []chain.ObjectID) ([]Response[T], error) {
	raws, err := c.BatchGetObjects(ctx, ids, chain.ContentFieldMask)
	if err != nil {
		return nil, err
	}
	out := make([]Response[T], len(raws))
	for i, raw := range raws {
		if raw == nil {
			return nil, fmt.Errorf("object %s: %w", ids[i], ErrObjectNotFound)
		}
		resp, err := parseResponse[T](raw, true)
		if err != nil {
			return nil, err
		}
		out[i] = *resp
	}
	return out, nil
}

// Metadata is an object response without content.
type Metadata = Response[struct{}]

// GetObjectMetadata fetches identity and ownership only.
func GetObjectMetadata(ctx context.Context, c *chain.Client, id chain.ObjectID) (*Metadata, error) {
	raw, err := c.GetObject(ctx, id, chain.MetadataFieldMask)
	if err != nil {
		if errors.Is(err, chain.ErrNotFound) {
			return nil, fmt.Errorf("object %s: %w", id, ErrObjectNotFound)
		}
		return nil, err
	}
	return parseResponse[struct{}](raw, false)
}

// GetObjectsMetadata is the batch equivalent of GetObjectMetadata.
func GetObjectsMetadata(ctx context.Context, c *chain.Client, ids []chain.ObjectID) ([]Metadata, error) {
	raws, err := c.BatchGetObjects(ctx, ids, chain.MetadataFieldMask)
	if err != nil {
		return nil, err
	}
	out := make([]Metadata, len(raws))
	for i, raw := range raws {
		if raw == nil {
			return nil, fmt.Errorf("object %s: %w", ids[i], ErrObjectNotFound)
		}
		resp, err := parseResponse[struct{}](raw, false)
		if err != nil {
			return nil, err
		}
		out[i] = *resp
	}
	return out, nil
}

// fieldContent is the content shape of a dynamic-field child object.
type fieldContent struct {
	Name  json.RawMessage `json:"name"`
	Value json.RawMessage `json:"value"`
}

// GetDynamicFields expands a DynamicMap: list the parent's dynamic fields,
// batch-fetch the children and decode each `(name, value)` pair.
func GetDynamicFields[K comparable, V any](ctx context.Context, c *chain.Client, parent DynamicMap[K, V]) (map[K]V, error) {
	contents, err := fetchFieldContents(ctx, c, parent.handle)
	if err != nil {
		return nil, err
	}

	out := make(map[K]V, len(contents))
	for _, content := range contents {
		var key K
		if err := decodeValue(content.Name, &key); err != nil {
			return nil, fmt.Errorf("dynamic field key: %w", err)
		}
		var value V
		if err := decodeValue(content.Value, &value); err != nil {
			return nil, fmt.Errorf("dynamic field value: %w", err)
		}
		out[key] = value
	}
	return out, nil
}

// GetDynamicFieldObjects expands a DynamicObjectMap. Field values are object
// ids; each referenced object is fetched and returned as a full response.
func GetDynamicFieldObjects[K comparable, V any](ctx context.Context, c *chain.Client, parent DynamicObjectMap[K, V]) (map[K]Response[V], error) {
	contents, err := fetchFieldContents(ctx, c, parent.handle)
	if err != nil {
		return nil, err
	}

	keys := make([]K, 0, len(contents))
	ids := make([]chain.ObjectID, 0, len(contents))
	for _, content := range contents {
		var key K
		if err := decodeValue(content.Name, &key); err != nil {
			return nil, fmt.Errorf("dynamic field key: %w", err)
		}
		var valueID uid
		if err := decodeValue(content.Value, &valueID); err != nil {
			return nil, fmt.Errorf("dynamic field object id: %w", err)
		}
		keys = append(keys, key)
		ids = append(ids, valueID.ID)
	}

	values, err := GetObjects[V](ctx, c, ids)
	if err != nil {
		return nil, err
	}

	out := make(map[K]Response[V], len(values))
	for i, key := range keys {
		out[key] = values[i]
	}
	return out, nil
}

// GetTableVec reconstructs a 0-indexed vector from its dynamic fields. Every
// index in [0, size) must be present exactly once.
func GetTableVec[T any](ctx context.Context, c *chain.Client, parent TableVec[T]) ([]T, error) {
	contents, err := fetchFieldContents(ctx, c, parent.handle)
	if err != nil {
		return nil, err
	}

	size := parent.Len()
	out := make([]T, size)
	seen := make([]bool, size)
	for _, content := range contents {
		var index chain.U64String
		if err := decodeValue(content.Name, &index); err != nil {
			// Table vec indices may also arrive as bare numbers.
			var numeric uint64
			if err := decodeValue(content.Name, &numeric); err != nil {
				return nil, fmt.Errorf("table vec index: %w", err)
			}
			index = chain.U64String(numeric)
		}
		if uint64(index) >= size {
			return nil, fmt.Errorf("table vec index %d with size %d: %w", index, size, ErrIndexOutOfBounds)
		}
		if seen[index] {
			return nil, fmt.Errorf("table vec index %d duplicated", index)
		}
		seen[index] = true

		if err := decodeValue(content.Value, &out[index]); err != nil {
			return nil, fmt.Errorf("table vec element %d: %w", index, err)
		}
	}
	return out, nil
}

// fetchFieldContents lists a parent's dynamic fields, enforces the declared
// size and batch-fetches the child contents.
func fetchFieldContents(ctx context.Context, c *chain.Client, parent handle) ([]fieldContent, error) {
	fields, err := c.ListDynamicFields(ctx, parent.ObjectID())
	if err != nil {
		return nil, err
	}
	if got := uint64(len(fields)); got != parent.Len() {
		return nil, &SizeMismatchError{Expected: parent.Len(), Got: got}
	}
	if len(fields) == 0 {
		return nil, nil
	}

	ids := make([]chain.ObjectID, len(fields))
	for i, f := range fields {
		ids[i] = f.FieldID
	}

	raws, err := c.BatchGetObjects(ctx, ids, chain.ContentFieldMask)
	if err != nil {
		return nil, err
	}

	contents := make([]fieldContent, len(raws))
	for i, raw := range raws {
		if raw == nil {
			return nil, fmt.Errorf("dynamic field %s: %w", ids[i], ErrObjectNotFound)
		}
		if len(raw.JSON) == 0 {
			return nil, fmt.Errorf("dynamic field %s: %w", ids[i], ErrMetadataMissing)
		}
		if err := decodeValue(raw.JSON, &contents[i]); err != nil {
			return nil, fmt.Errorf("dynamic field %s: %w", ids[i], err)
		}
	}
	return contents, nil
}

func parseResponse[T any](raw *chain.RawObject, wantContent bool) (*Response[T], error) {
	resp := &Response[T]{
		ObjectID: raw.ObjectID,
		Owner:    raw.Owner,
		Version:  uint64(raw.Version),
		Digest:   raw.Digest,
		Balance:  raw.Balance.Ptr(),
	}
	if !wantContent {
		return resp, nil
	}
	if len(raw.JSON) == 0 {
		return nil, fmt.Errorf("object %s: %w", raw.ObjectID, ErrMetadataMissing)
	}
	if err := decodeValue(raw.JSON, &resp.Data); err != nil {
		return nil, fmt.Errorf("object %s: %w", raw.ObjectID, err)
	}
	return resp, nil
}

// decodeValue deserializes a server value tree. Numbers are kept in their
// decimal form end to end so u64 magnitudes survive the trip; the stringified
// codecs take over from there.
func decodeValue(raw json.RawMessage, out any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode value tree: %w", err)
	}
	return nil
}
