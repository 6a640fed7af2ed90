package types

import (
	"encoding/json"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/fqn"
)

// ToolMeta is the self-description a tool serves from its meta endpoint and
// registers on the ledger. Schemas are kept as raw JSON so they round-trip
// byte for byte into registration transactions.
type ToolMeta struct {
	FQN          fqn.ToolFqn     `json:"fqn"`
	URL          string          `json:"url"`
	Description  string          `json:"description"`
	InputSchema  json.RawMessage `json:"input_schema"`
	OutputSchema json.RawMessage `json:"output_schema"`
}
