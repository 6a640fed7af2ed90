// Package types holds the shared domain types of the SDK: ledger-side
// projections (type names, runtime vertices, policy symbols), the deployment
// object registry, DAG definitions and the port-data storage model.
package types

import "strings"

// TypeName mirrors the ledger's `{ name: string }` wrapper used for vertex
// names, port names and variant labels.
type TypeName struct {
	Name string `json:"name"`
}

// NewTypeName wraps a plain string.
func NewTypeName(name string) TypeName {
	return TypeName{Name: name}
}

// MoveTypeName is a fully-qualified ledger type name. Unlike TypeName the
// leading 0x of the address part is insignificant.
type MoveTypeName struct {
	Name string `json:"name"`
}

// MatchesQualifiedName compares two fully-qualified names, ignoring a
// leading 0x on either side.
func (n MoveTypeName) MatchesQualifiedName(expected string) bool {
	return strings.TrimPrefix(n.Name, "0x") == strings.TrimPrefix(expected, "0x")
}
