// Package fqn implements fully-qualified tool names of the form
// domain.name@version, the canonical identifier of a tool within a registry.
package fqn

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ToolFqn is a parsed fully-qualified tool name. The zero value is invalid;
// use Parse or MustParse.
type ToolFqn struct {
	Domain  string
	Name    string
	Version uint32
}

// Parse validates and splits a domain.name@version string. The domain must
// have at least one dot-separated segment before the name; every segment is
// lowercase alphanumeric with hyphens or underscores; the version is a
// decimal u32.
func Parse(s string) (ToolFqn, error) {
	base, versionStr, ok := strings.Cut(s, "@")
	if !ok {
		return ToolFqn{}, fmt.Errorf("tool fqn %q: missing '@version' suffix", s)
	}

	version, err := strconv.ParseUint(versionStr, 10, 32)
	if err != nil {
		return ToolFqn{}, fmt.Errorf("tool fqn %q: invalid version %q", s, versionStr)
	}

	segments := strings.Split(base, ".")
	if len(segments) < 2 {
		return ToolFqn{}, fmt.Errorf("tool fqn %q: expected at least 'domain.name'", s)
	}
	for _, seg := range segments {
		if !validSegment(seg) {
			return ToolFqn{}, fmt.Errorf("tool fqn %q: invalid segment %q", s, seg)
		}
	}

	return ToolFqn{
		Domain:  strings.Join(segments[:len(segments)-1], "."),
		Name:    segments[len(segments)-1],
		Version: uint32(version),
	}, nil
}

// MustParse panics on invalid input. For constants and tests.
func MustParse(s string) ToolFqn {
	f, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return f
}

func validSegment(seg string) bool {
	if seg == "" {
		return false
	}
	for _, c := range seg {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}

func (f ToolFqn) String() string {
	return fmt.Sprintf("%s.%s@%d", f.Domain, f.Name, f.Version)
}

// IsZero reports whether the fqn is the invalid zero value.
func (f ToolFqn) IsZero() bool {
	return f.Domain == "" && f.Name == "" && f.Version == 0
}

func (f ToolFqn) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

func (f *ToolFqn) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
