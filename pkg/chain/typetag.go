package chain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TypeTag is a ledger type: either a primitive name (`u64`, `address`, …),
// a vector, or a struct tag. Only the struct arm matters to the SDK; the
// others are carried for completeness when parsing event generics.
type TypeTag struct {
	// Primitive holds the primitive name when Struct is nil.
	Primitive string
	Struct    *StructTag
}

// StructTag is a fully-qualified ledger struct type:
// `address::module::Name<T0, T1, …>`.
type StructTag struct {
	Address    Address
	Module     string
	Name       string
	TypeParams []TypeTag
}

func (t TypeTag) String() string {
	if t.Struct != nil {
		return t.Struct.String()
	}
	return t.Primitive
}

func (s StructTag) String() string {
	base := fmt.Sprintf("%s::%s::%s", s.Address, s.Module, s.Name)
	if len(s.TypeParams) == 0 {
		return base
	}
	params := make([]string, len(s.TypeParams))
	for i, p := range s.TypeParams {
		params[i] = p.String()
	}
	return base + "<" + strings.Join(params, ", ") + ">"
}

func (t TypeTag) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TypeTag) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseTypeTag(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (s StructTag) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *StructTag) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseStructTag(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStructTag parses `0xADDR::module::Name<...>` including nested
// generics.
func ParseStructTag(s string) (StructTag, error) {
	tag, rest, err := parseStructTag(strings.TrimSpace(s))
	if err != nil {
		return StructTag{}, err
	}
	if rest != "" {
		return StructTag{}, fmt.Errorf("parse struct tag: trailing input %q", rest)
	}
	return tag, nil
}

// ParseTypeTag parses either a primitive type name or a struct tag.
func ParseTypeTag(s string) (TypeTag, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "bool", "u8", "u16", "u32", "u64", "u128", "u256", "address", "signer":
		return TypeTag{Primitive: s}, nil
	}
	if strings.HasPrefix(s, "vector<") && strings.HasSuffix(s, ">") {
		return TypeTag{Primitive: s}, nil
	}
	tag, err := ParseStructTag(s)
	if err != nil {
		return TypeTag{}, err
	}
	return TypeTag{Struct: &tag}, nil
}

func parseStructTag(s string) (StructTag, string, error) {
	var tag StructTag

	parts := strings.SplitN(s, "::", 3)
	if len(parts) != 3 {
		return tag, "", fmt.Errorf("parse struct tag: expected address::module::Name, got %q", s)
	}

	addr, err := ParseAddress(parts[0])
	if err != nil {
		return tag, "", err
	}
	tag.Address = addr
	tag.Module = parts[1]

	name := parts[2]
	open := strings.IndexByte(name, '<')
	if open == -1 {
		// Struct name may be followed by generics of an enclosing tag.
		if i := strings.IndexAny(name, ",>"); i != -1 {
			tag.Name = strings.TrimSpace(name[:i])
			return tag, name[i:], nil
		}
		tag.Name = name
		return tag, "", nil
	}

	tag.Name = name[:open]
	rest := name[open+1:]

	for {
		var param TypeTag
		param, rest, err = parseTypeTagPrefix(rest)
		if err != nil {
			return tag, "", err
		}
		tag.TypeParams = append(tag.TypeParams, param)

		rest = strings.TrimSpace(rest)
		if strings.HasPrefix(rest, ",") {
			rest = strings.TrimSpace(rest[1:])
			continue
		}
		if strings.HasPrefix(rest, ">") {
			return tag, rest[1:], nil
		}
		return tag, "", fmt.Errorf("parse struct tag: unterminated generics in %q", s)
	}
}

func parseTypeTagPrefix(s string) (TypeTag, string, error) {
	s = strings.TrimSpace(s)

	for _, prim := range []string{"bool", "u8", "u16", "u32", "u64", "u128", "u256", "address", "signer"} {
		if strings.HasPrefix(s, prim) {
			rest := s[len(prim):]
			if rest == "" || rest[0] == ',' || rest[0] == '>' || rest[0] == ' ' {
				return TypeTag{Primitive: prim}, rest, nil
			}
		}
	}

	tag, rest, err := parseStructTag(s)
	if err != nil {
		return TypeTag{}, "", err
	}
	return TypeTag{Struct: &tag}, rest, nil
}
