package chain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// U64String is a uint64 that crosses the ledger boundary as a decimal string,
// because the on-ledger numeric width exceeds JSON's safe-integer range.
type U64String uint64

func (u U64String) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatUint(uint64(u), 10))
}

func (u *U64String) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("stringified u64: %w", err)
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("stringified u64 %q: %w", s, err)
	}
	*u = U64String(v)
	return nil
}

// OptionU64String is an optional stringified u64. JSON null maps to unset.
type OptionU64String struct {
	Set   bool
	Value uint64
}

// SomeU64 wraps a value in a set OptionU64String.
func SomeU64(v uint64) OptionU64String {
	return OptionU64String{Set: true, Value: v}
}

func (o OptionU64String) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	return json.Marshal(strconv.FormatUint(o.Value, 10))
}

func (o *OptionU64String) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*o = OptionU64String{}
		return nil
	}
	var u U64String
	if err := u.UnmarshalJSON(b); err != nil {
		return err
	}
	*o = OptionU64String{Set: true, Value: uint64(u)}
	return nil
}

// Ptr returns the value as *uint64, nil when unset.
func (o OptionU64String) Ptr() *uint64 {
	if !o.Set {
		return nil
	}
	v := o.Value
	return &v
}
