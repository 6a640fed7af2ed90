package types

import (
	"encoding/json"
	"fmt"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
)

// PolicySymbol is a scheduler policy alphabet symbol: either a type witness
// (fully-qualified name) or an object UID. The ledger has emitted two wire
// shapes over time; both decode here, and the enum shape is what we emit.
type PolicySymbol struct {
	Witness *MoveTypeName
	UID     *chain.ObjectID
}

// WitnessSymbol builds a witness-backed symbol.
func WitnessSymbol(qualifiedName string) PolicySymbol {
	return PolicySymbol{Witness: &MoveTypeName{Name: qualifiedName}}
}

// UIDSymbol builds a UID-backed symbol.
func UIDSymbol(id chain.ObjectID) PolicySymbol {
	return PolicySymbol{UID: &id}
}

// MatchesQualifiedName reports whether this is a witness symbol for the
// given fully-qualified name.
func (s PolicySymbol) MatchesQualifiedName(expected string) bool {
	return s.Witness != nil && s.Witness.MatchesQualifiedName(expected)
}

type enumSymbolWire struct {
	Variant string          `json:"variant"`
	Fields  enumSymbolField `json:"fields"`
}

type enumSymbolField struct {
	Pos0 json.RawMessage `json:"pos0"`
}

type legacySymbolWire struct {
	Kind    uint8           `json:"kind"`
	Witness *MoveTypeName   `json:"witness"`
	UID     *chain.ObjectID `json:"uid"`
}

func (s PolicySymbol) MarshalJSON() ([]byte, error) {
	switch {
	case s.Witness != nil:
		pos0, err := json.Marshal(s.Witness)
		if err != nil {
			return nil, err
		}
		return json.Marshal(enumSymbolWire{Variant: "Witness", Fields: enumSymbolField{Pos0: pos0}})
	case s.UID != nil:
		pos0, err := json.Marshal(s.UID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(enumSymbolWire{Variant: "Uid", Fields: enumSymbolField{Pos0: pos0}})
	default:
		return nil, fmt.Errorf("policy symbol: neither witness nor uid set")
	}
}

func (s *PolicySymbol) UnmarshalJSON(data []byte) error {
	var enum enumSymbolWire
	if err := json.Unmarshal(data, &enum); err == nil && enum.Variant != "" {
		switch enum.Variant {
		case "Witness":
			var name MoveTypeName
			if err := json.Unmarshal(enum.Fields.Pos0, &name); err != nil {
				return fmt.Errorf("policy symbol witness: %w", err)
			}
			*s = PolicySymbol{Witness: &name}
			return nil
		case "Uid":
			var id chain.ObjectID
			if err := json.Unmarshal(enum.Fields.Pos0, &id); err != nil {
				return fmt.Errorf("policy symbol uid: %w", err)
			}
			*s = PolicySymbol{UID: &id}
			return nil
		default:
			return fmt.Errorf("policy symbol: unknown variant %q", enum.Variant)
		}
	}

	var legacy legacySymbolWire
	if err := json.Unmarshal(data, &legacy); err != nil {
		return fmt.Errorf("policy symbol: %w", err)
	}
	switch {
	case legacy.Kind == 0 && legacy.Witness != nil:
		*s = PolicySymbol{Witness: legacy.Witness}
	case legacy.Kind == 1 && legacy.UID != nil:
		*s = PolicySymbol{UID: legacy.UID}
	default:
		return fmt.Errorf("policy symbol: invalid legacy representation")
	}
	return nil
}
