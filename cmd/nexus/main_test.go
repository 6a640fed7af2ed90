package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Run(append([]string{"nexus"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunWithoutArgs(t *testing.T) {
	code, _, stderr := runCLI(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "USAGE")
}

func TestRunUnknownCommand(t *testing.T) {
	code, _, stderr := runCLI(t, "frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Unknown command: frobnicate")
}

func TestRunHelp(t *testing.T) {
	code, stdout, _ := runCLI(t, "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "dag validate")
	assert.Contains(t, stdout, "leaders export")
}

func TestKeyGenerateInspectRoundTrip(t *testing.T) {
	code, stdout, stderr := runCLI(t, "key", "generate", "--json")
	require.Equal(t, 0, code, stderr)

	var generated struct {
		Address    string `json:"address"`
		PublicKey  string `json:"public_key"`
		PrivateKey string `json:"private_key"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &generated))
	require.NotEmpty(t, generated.PrivateKey)

	code, stdout, stderr = runCLI(t, "key", "inspect", "--key", generated.PrivateKey, "--json")
	require.Equal(t, 0, code, stderr)

	var inspected struct {
		Address   string `json:"address"`
		PublicKey string `json:"public_key"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &inspected))
	assert.Equal(t, generated.Address, inspected.Address)
	assert.Equal(t, generated.PublicKey, inspected.PublicKey)
}

func TestKeyGenerateWritesProtectedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nexus.key")
	code, stdout, stderr := runCLI(t, "key", "generate", "--out", path)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "written to "+path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestKeyInspectRejectsGarbage(t *testing.T) {
	code, _, stderr := runCLI(t, "key", "inspect", "--key", "not a key")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "configuration")
}

const validDagFile = `{
  "vertices": [
    {"kind": {"variant": "off_chain", "tool_fqn": "xyz.math.add@1"}, "name": "adder"}
  ],
  "entry_vertices": [
    {"kind": {"variant": "off_chain", "tool_fqn": "xyz.math.input@1"}, "name": "entry", "input_ports": ["a"]}
  ],
  "edges": [
    {"from": {"vertex": "entry", "output_variant": "ok", "output_port": "result"},
     "to": {"vertex": "adder", "input_port": "a"}}
  ]
}`

func TestDagValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dag.json")
	require.NoError(t, os.WriteFile(path, []byte(validDagFile), 0o644))

	code, stdout, stderr := runCLI(t, "dag", "validate", "--file", path, "--json")
	require.Equal(t, 0, code, stderr)

	var result struct {
		Valid    bool   `json:"valid"`
		Digest   string `json:"digest"`
		Vertices int    `json:"vertices"`
		Edges    int    `json:"edges"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.True(t, result.Valid)
	assert.NotEmpty(t, result.Digest)
	assert.Equal(t, 1, result.Vertices)
	assert.Equal(t, 1, result.Edges)
}

func TestDagValidateRejectsDanglingEdge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dag.json")
	broken := `{
  "vertices": [
    {"kind": {"variant": "off_chain", "tool_fqn": "xyz.math.add@1"}, "name": "adder"}
  ],
  "edges": [
    {"from": {"vertex": "ghost", "output_variant": "ok", "output_port": "r"},
     "to": {"vertex": "adder", "input_port": "a"}}
  ]
}`
	require.NoError(t, os.WriteFile(path, []byte(broken), 0o644))

	code, _, stderr := runCLI(t, "dag", "validate", "--file", path)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "ghost")
}

func TestDagValidateRequiresFile(t *testing.T) {
	code, _, stderr := runCLI(t, "dag", "validate")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "--file is required")
}

func TestConfInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.yaml")

	code, stdout, stderr := runCLI(t, "conf", "--init", "--path", path)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, path)

	code, stdout, stderr = runCLI(t, "conf", "--path", path, "--json")
	require.Equal(t, 0, code, stderr)

	var result struct {
		Fingerprint string `json:"fingerprint"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.NotEmpty(t, result.Fingerprint)
}

func TestFaucetWithoutURL(t *testing.T) {
	// A conf path with no file behind it resolves to defaults, which carry
	// no faucet URL.
	code, _, stderr := runCLI(t, "faucet",
		"--conf", filepath.Join(t.TempDir(), "conf.yaml"),
		"--address", "0x42",
	)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "faucet URL")
}

func TestLeadersExportRequiresBinding(t *testing.T) {
	code, _, stderr := runCLI(t, "leaders", "export")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "--binding is required")
}
