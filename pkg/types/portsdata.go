package types

import (
	"encoding/json"
	"sort"
)

// PortsData maps output ports to their committed data, mirroring the
// ledger's VecMap encoding `{contents: [{key, value}, …]}`.
type PortsData struct {
	Values map[TypeName]DataStorage
}

// NewPortsData builds a PortsData from a plain map.
func NewPortsData(values map[TypeName]DataStorage) PortsData {
	return PortsData{Values: values}
}

type portsDataEntry struct {
	Key   TypeName    `json:"key"`
	Value DataStorage `json:"value"`
}

type portsDataWire struct {
	Contents []portsDataEntry `json:"contents"`
}

func (p PortsData) MarshalJSON() ([]byte, error) {
	entries := make([]portsDataEntry, 0, len(p.Values))
	for key, value := range p.Values {
		entries = append(entries, portsDataEntry{Key: key, Value: value})
	}
	// Deterministic output for digests and tests.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key.Name < entries[j].Key.Name })
	return json.Marshal(portsDataWire{Contents: entries})
}

func (p *PortsData) UnmarshalJSON(data []byte) error {
	var wire portsDataWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	values := make(map[TypeName]DataStorage, len(wire.Contents))
	for _, entry := range wire.Contents {
		values[entry.Key] = entry.Value
	}
	*p = PortsData{Values: values}
	return nil
}
