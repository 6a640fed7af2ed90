package types

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
)

// NexusObjects holds the package IDs and object refs produced by a Nexus
// deployment. All components that touch the ledger are parameterized by one
// of these.
type NexusObjects struct {
	WorkflowPkgID   chain.ObjectID  `json:"workflow_pkg_id"`
	PrimitivesPkgID chain.ObjectID  `json:"primitives_pkg_id"`
	InterfacePkgID  chain.ObjectID  `json:"interface_pkg_id"`
	NetworkID       chain.ObjectID  `json:"network_id"`
	ToolRegistry    chain.ObjectRef `json:"tool_registry"`
	DefaultTap      chain.ObjectRef `json:"default_tap"`
	GasService      chain.ObjectRef `json:"gas_service"`
	PreKeyVault     chain.ObjectRef `json:"pre_key_vault"`
	NetworkAuth     chain.ObjectRef `json:"network_auth"`
}

// IsNexusPackage reports whether an address is one of the deployed Nexus
// package addresses.
func (o *NexusObjects) IsNexusPackage(addr chain.Address) bool {
	return addr == o.PrimitivesPkgID || addr == o.InterfacePkgID || addr == o.WorkflowPkgID
}

// LoadNexusObjects reads a deployment registry file.
func LoadNexusObjects(path string) (*NexusObjects, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read nexus objects file: %w", err)
	}
	var objects NexusObjects
	if err := json.Unmarshal(data, &objects); err != nil {
		return nil, fmt.Errorf("parse nexus objects file: %w", err)
	}
	return &objects, nil
}
