package nexus

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/types"
)

// rpcFixture serves canned JSON-RPC results keyed by method. A handler may
// be a func to vary the result across calls.
type rpcFixture struct {
	t        *testing.T
	results  map[string]any
	handlers map[string]func(params []json.RawMessage) any
	calls    []string
}

func newRPCFixture(t *testing.T) *rpcFixture {
	fx := &rpcFixture{
		t:        t,
		results:  make(map[string]any),
		handlers: make(map[string]func(params []json.RawMessage) any),
	}
	fx.results["ledger_getEpoch"] = map[string]any{
		"epoch":               "4",
		"reference_gas_price": "750",
		"end_of_epoch_ms":     "0",
	}
	return fx
}

func (f *rpcFixture) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     uint64            `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
	f.calls = append(f.calls, req.Method)

	var result any
	if h, ok := f.handlers[req.Method]; ok {
		result = h(req.Params)
	} else {
		var known bool
		result, known = f.results[req.Method]
		if !known {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"jsonrpc": "2.0", "id": req.ID,
				"error": map[string]any{"code": -32601, "message": "method not found"},
			})
			return
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"jsonrpc": "2.0", "id": req.ID, "result": result,
	})
}

func (f *rpcFixture) countCalls(method string) int {
	n := 0
	for _, m := range f.calls {
		if m == method {
			n++
		}
	}
	return n
}

var zeroDigest = chain.DigestFromBytes(make([]byte, 32))

func testObjects() *types.NexusObjects {
	ref := func(id string, version uint64) chain.ObjectRef {
		return chain.ObjectRef{
			ObjectID: chain.MustParseAddress(id),
			Version:  version,
			Digest:   zeroDigest,
		}
	}
	return &types.NexusObjects{
		WorkflowPkgID:   chain.MustParseAddress("0xaa"),
		PrimitivesPkgID: chain.MustParseAddress("0xbb"),
		InterfacePkgID:  chain.MustParseAddress("0xcc"),
		NetworkID:       chain.MustParseAddress("0xdd"),
		ToolRegistry:    ref("0x101", 7),
		DefaultTap:      ref("0x102", 8),
		GasService:      ref("0x103", 9),
		PreKeyVault:     ref("0x104", 10),
		NetworkAuth:     ref("0x105", 11),
	}
}

func testKey() ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed(bytes.Repeat([]byte{7}, ed25519.SeedSize))
}

func testGasCoin() chain.ObjectRef {
	return chain.ObjectRef{
		ObjectID: chain.MustParseAddress("0x99"),
		Version:  5,
		Digest:   zeroDigest,
	}
}

// newTestClient spins an httptest JSON-RPC server around the fixture and
// builds a facade client against it.
func newTestClient(t *testing.T, fx *rpcFixture) *Client {
	t.Helper()

	srv := httptest.NewServer(fx)
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), Config{
		Key:       testKey(),
		RPCURL:    srv.URL,
		Objects:   testObjects(),
		GasCoins:  []chain.ObjectRef{testGasCoin()},
		GasBudget: 10_000_000,
	})
	require.NoError(t, err)
	return c
}

// wrappedEvent builds the raw ledger form of a Nexus event: the primitives
// EventWrapper parameterized by the inner workflow event kind.
func wrappedEvent(objects *types.NexusObjects, module, name string, payload any) map[string]any {
	typeStr := fmt.Sprintf("%s::event::EventWrapper<%s::%s::%s>",
		objects.PrimitivesPkgID, objects.WorkflowPkgID, module, name)
	return map[string]any{
		"id":          map[string]any{"tx_digest": zeroDigest, "event_seq": "0"},
		"package_id":  objects.WorkflowPkgID.String(),
		"sender":      "0x1",
		"type":        typeStr,
		"parsed_json": map[string]any{"event": payload},
	}
}

// executedTransaction is the canned success response for one submission,
// with the gas coin advanced to version.
func executedTransaction(gasVersion uint64, extraChanges []any, events []any) map[string]any {
	changes := append([]any{
		map[string]any{
			"kind":        "mutated",
			"object_id":   testGasCoin().ObjectID.String(),
			"version":     fmt.Sprintf("%d", gasVersion),
			"digest":      zeroDigest,
			"object_type": "0x2::coin::Coin<0x2::sui::SUI>",
		},
	}, extraChanges...)
	if events == nil {
		events = []any{}
	}
	return map[string]any{
		"digest":         zeroDigest,
		"status":         "success",
		"object_changes": changes,
		"events":         events,
		"checkpoint":     "42",
	}
}

// sharedObjectResult is the canned metadata of a shared object.
func sharedObjectResult(id chain.ObjectID, initialVersion uint64) map[string]any {
	return map[string]any{
		"object_id": id.String(),
		"version":   "20",
		"digest":    zeroDigest,
		"owner": map[string]any{
			"Shared": map[string]any{"initial_shared_version": fmt.Sprintf("%d", initialVersion)},
		},
		"balance": nil,
	}
}
