package events

import (
	"encoding/json"
	"fmt"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/types"
)

// The wrapper type every Nexus event is emitted under, defined by the
// primitives package.
const (
	eventWrapperModule = "event"
	eventWrapperName   = "EventWrapper"
)

// Parse decodes a raw ledger event into a NexusEvent.
//
// The event must come from one of the deployed Nexus packages and be wrapped
// in the primitives EventWrapper; its first type parameter names the inner
// event kind. For the generic scheduling wrapper the payload's nested
// `request` object carries no discriminator of its own, so Parse rewrites it
// into the tagged envelope shape before dispatching, descending the
// type-parameter tree as deep as the nesting goes.
func Parse(ev chain.Event, objects *types.NexusObjects) (*NexusEvent, error) {
	if !objects.IsNexusPackage(ev.PackageID) {
		return nil, fmt.Errorf("%w: emitted by foreign package %s", ErrNotNexusEvent, ev.PackageID)
	}
	if !isEventWrapper(ev.Type, objects) {
		return nil, fmt.Errorf("%w: type %s is not the event wrapper", ErrNotNexusEvent, ev.Type)
	}

	inner, err := structParam(ev.Type)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Event        json.RawMessage           `json:"event"`
		Distribution *DistributedEventMetadata `json:"distribution"`
	}
	if err := json.Unmarshal(ev.ParsedJSON, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(payload.Event) == 0 {
		return nil, fmt.Errorf("%w: missing event contents", ErrMalformedPayload)
	}

	event := payload.Event
	if inner.Name == ScheduledName {
		event, err = rewriteScheduled(*inner, event)
		if err != nil {
			return nil, err
		}
	}

	kind, err := decodeKind(inner.Name, event)
	if err != nil {
		return nil, err
	}

	return &NexusEvent{
		ID:           ev.ID,
		Generics:     inner.TypeParams,
		Data:         kind,
		Distribution: payload.Distribution,
	}, nil
}

// structParam extracts the wrapper's first type parameter as a struct tag.
func structParam(tag chain.StructTag) (*chain.StructTag, error) {
	if len(tag.TypeParams) == 0 {
		return nil, fmt.Errorf("%w: %s has no type parameter", ErrNotAStruct, tag.Name)
	}
	inner := tag.TypeParams[0].Struct
	if inner == nil {
		return nil, fmt.Errorf("%w: %s<%s>", ErrNotAStruct, tag.Name, tag.TypeParams[0])
	}
	return inner, nil
}

// rewriteScheduled embeds the discriminator of a scheduling wrapper's nested
// request into the payload. The wrapper's type parameter names the nested
// kind; when that kind is itself the scheduling wrapper, the rewrite recurses
// until it reaches the innermost non-generic event.
func rewriteScheduled(scheduledTag chain.StructTag, payload json.RawMessage) (json.RawMessage, error) {
	inner, err := structParam(scheduledTag)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("%w: scheduled payload: %v", ErrMalformedPayload, err)
	}
	request, ok := fields["request"]
	if !ok {
		return nil, fmt.Errorf("%w: scheduled payload has no request", ErrMalformedPayload)
	}

	if inner.Name == ScheduledName {
		request, err = rewriteScheduled(*inner, request)
		if err != nil {
			return nil, err
		}
	}

	wrapped, err := json.Marshal(envelopeWire{Type: inner.Name, Event: request})
	if err != nil {
		return nil, err
	}
	fields["request"] = wrapped

	return json.Marshal(fields)
}

func isEventWrapper(tag chain.StructTag, objects *types.NexusObjects) bool {
	return tag.Address == objects.PrimitivesPkgID &&
		tag.Module == eventWrapperModule &&
		tag.Name == eventWrapperName
}
