package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
)

func TestRuntimeVertexPlainWire(t *testing.T) {
	v := PlainVertex("vertex_a")

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"@variant":"Plain","vertex":{"name":"vertex_a"}}`, string(data))

	var back RuntimeVertex
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, v, back)
	assert.Equal(t, "Plain(vertex_a)", back.String())
}

func TestRuntimeVertexIteratorWire(t *testing.T) {
	v := IteratorVertex("mapper", 2, 5)

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"@variant":"WithIterator","vertex":{"name":"mapper"},"iteration":"2","out_of":"5"}`,
		string(data),
	)

	var back RuntimeVertex
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, v, back)
	assert.Equal(t, "WithIterator(mapper:2:5)", back.String())
}

func TestRuntimeVertexRejectsUnknownVariant(t *testing.T) {
	var v RuntimeVertex
	err := json.Unmarshal([]byte(`{"@variant":"Looping","vertex":{"name":"x"}}`), &v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown variant")
}

func TestRuntimeVertexIteratorRequiresCounters(t *testing.T) {
	var v RuntimeVertex
	err := json.Unmarshal([]byte(`{"@variant":"WithIterator","vertex":{"name":"x"}}`), &v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "iteration and out_of")
}

func TestPolicySymbolEnumWire(t *testing.T) {
	witness := WitnessSymbol("0xabc::tap::AnyoneExecutesTap")

	data, err := json.Marshal(witness)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"variant":"Witness","fields":{"pos0":{"name":"0xabc::tap::AnyoneExecutesTap"}}}`,
		string(data),
	)

	var back PolicySymbol
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.MatchesQualifiedName("abc::tap::AnyoneExecutesTap"))

	id, err := chain.ParseAddress("0x42")
	require.NoError(t, err)
	uid := UIDSymbol(id)

	data, err = json.Marshal(uid)
	require.NoError(t, err)

	require.NoError(t, json.Unmarshal(data, &back))
	require.NotNil(t, back.UID)
	assert.Equal(t, id, *back.UID)
	assert.False(t, back.MatchesQualifiedName("abc::tap::AnyoneExecutesTap"))
}

func TestPolicySymbolLegacyWire(t *testing.T) {
	var witness PolicySymbol
	require.NoError(t, json.Unmarshal(
		[]byte(`{"kind":0,"witness":{"name":"0xabc::tap::Tap"},"uid":null}`),
		&witness,
	))
	assert.True(t, witness.MatchesQualifiedName("0xabc::tap::Tap"))

	var uid PolicySymbol
	require.NoError(t, json.Unmarshal(
		[]byte(`{"kind":1,"witness":null,"uid":"0x42"}`),
		&uid,
	))
	require.NotNil(t, uid.UID)

	var bad PolicySymbol
	err := json.Unmarshal([]byte(`{"kind":2,"witness":null,"uid":null}`), &bad)
	require.Error(t, err)
}

func TestMoveTypeNameMatching(t *testing.T) {
	name := MoveTypeName{Name: "0xdead::pkg::Witness"}

	assert.True(t, name.MatchesQualifiedName("dead::pkg::Witness"))
	assert.True(t, name.MatchesQualifiedName("0xdead::pkg::Witness"))
	assert.False(t, name.MatchesQualifiedName("0xbeef::pkg::Witness"))
}
