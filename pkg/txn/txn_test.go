package txn

import (
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/types"
)

func testObjects() *types.NexusObjects {
	ref := func(id string, version uint64) chain.ObjectRef {
		return chain.ObjectRef{
			ObjectID: chain.MustParseAddress(id),
			Version:  version,
			Digest:   chain.Digest("digest-" + id),
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

func testRef(id string) chain.ObjectRef {
	return chain.ObjectRef{
		ObjectID: chain.MustParseAddress(id),
		Version:  42,
		Digest:   chain.Digest("digest-" + id),
	}
}

// moveCalls extracts the (module, function) pairs of every move call in
// order, skipping transfers and splits.
func moveCalls(pt chain.ProgrammableTransaction) [][2]string {
	var out [][2]string
	for _, cmd := range pt.Commands {
		if cmd.Kind == chain.CommandMoveCall {
			out = append(out, [2]string{cmd.MoveCall.Module, cmd.MoveCall.Function})
		}
	}
	return out
}

func lastMoveCall(pt chain.ProgrammableTransaction) *chain.MoveCall {
	for i := len(pt.Commands) - 1; i >= 0; i-- {
		if pt.Commands[i].Kind == chain.CommandMoveCall {
			return pt.Commands[i].MoveCall
		}
	}
	return nil
}

func u64(v uint64) *uint64 { return &v }
