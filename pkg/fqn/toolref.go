package fqn

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
)

// ToolRef locates a tool implementation: an HTTP(S) endpoint for off-chain
// tools, or package::module@witness for on-chain tools.
type ToolRef struct {
	// URL is set for off-chain tools.
	URL *url.URL

	// Package, Module and WitnessID are set for on-chain tools.
	Package   chain.Address
	Module    string
	WitnessID chain.Address
}

// ParseToolRef accepts either an http(s) URL or the
// 0x<package>::<module>@0x<witness> form.
func ParseToolRef(s string) (ToolRef, error) {
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		u, err := url.Parse(s)
		if err != nil {
			return ToolRef{}, fmt.Errorf("tool ref %q: %w", s, err)
		}
		return ToolRef{URL: u}, nil
	}

	pkgPart, rest, ok := strings.Cut(s, "::")
	if !ok {
		return ToolRef{}, fmt.Errorf("tool ref %q: expected URL or package::module@witness", s)
	}
	modulePart, witnessPart, ok := strings.Cut(rest, "@")
	if !ok {
		return ToolRef{}, fmt.Errorf("tool ref %q: on-chain refs require an @witness suffix", s)
	}

	pkg, err := chain.ParseAddress(pkgPart)
	if err != nil {
		return ToolRef{}, fmt.Errorf("tool ref %q: package: %w", s, err)
	}
	witness, err := chain.ParseAddress(witnessPart)
	if err != nil {
		return ToolRef{}, fmt.Errorf("tool ref %q: witness: %w", s, err)
	}
	if !validSegment(modulePart) {
		return ToolRef{}, fmt.Errorf("tool ref %q: invalid module name %q", s, modulePart)
	}

	return ToolRef{Package: pkg, Module: modulePart, WitnessID: witness}, nil
}

// IsOffChain reports whether the tool is reached over HTTP.
func (r ToolRef) IsOffChain() bool { return r.URL != nil }

// IsOnChain reports whether the tool is an on-ledger module.
func (r ToolRef) IsOnChain() bool { return r.URL == nil }

func (r ToolRef) String() string {
	if r.URL != nil {
		return r.URL.String()
	}
	return fmt.Sprintf("%s::%s@%s", r.Package, r.Module, r.WitnessID)
}

func (r ToolRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *ToolRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseToolRef(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
