// Package txn composes programmable ledger transactions for the Nexus
// workflow packages. Each template appends the move calls for one logical
// operation onto a chain.Builder and returns the argument handle of its last
// call, so callers can chain templates into a single transaction.
package txn

import (
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/types"
)

var (
	// MoveStdlibPackageID is the move standard library package address.
	MoveStdlibPackageID = chain.MustParseAddress("0x1")
	// FrameworkPackageID is the ledger framework package address.
	FrameworkPackageID = chain.MustParseAddress("0x2")
	// ClockObjectID is the singleton clock shared object.
	ClockObjectID = chain.MustParseAddress("0x6")
)

// The clock is shared at genesis, so its initial shared version is fixed.
const clockInitialVersion = 1

const (
	moduleDag          = "dag"
	moduleDefaultTap   = "default_tap"
	moduleScheduler    = "scheduler"
	moduleToolRegistry = "tool_registry"
	moduleGas          = "gas"
	moduleGasExtension = "gas_extension"
	moduleNetworkAuth  = "network_auth"
	modulePreKeyVault  = "pre_key_vault"
	moduleOwnerCap     = "owner_cap"
	moduleTransfer     = "transfer"
	moduleCoin         = "coin"
	moduleSui          = "sui"
	moduleAscii        = "ascii"
	moduleVecMap       = "vec_map"
	moduleString       = "string"
)

// StructTypeTag builds the type tag for `pkg::module::name<params…>`.
func StructTypeTag(pkg chain.ObjectID, module, name string, params ...chain.TypeTag) chain.TypeTag {
	return chain.TypeTag{Struct: &chain.StructTag{
		Address:    pkg,
		Module:     module,
		Name:       name,
		TypeParams: params,
	}}
}

// SuiCoinTypeTag is the native coin type, `0x2::sui::SUI`.
func SuiCoinTypeTag() chain.TypeTag {
	return StructTypeTag(FrameworkPackageID, moduleSui, "SUI")
}

// cloneableCapType is the owner capability type over a workflow witness:
// `primitives::owner_cap::CloneableOwnerCap<workflow::module::witness>`.
func cloneableCapType(objects *types.NexusObjects, module, witness string) chain.TypeTag {
	return StructTypeTag(objects.PrimitivesPkgID, moduleOwnerCap, "CloneableOwnerCap",
		StructTypeTag(objects.WorkflowPkgID, module, witness))
}

// publicShareObject appends `0x2::transfer::public_share_object<T>(obj)`.
func publicShareObject(b *chain.Builder, objectType chain.TypeTag, obj chain.Argument) chain.Argument {
	return b.MoveCall(FrameworkPackageID, moduleTransfer, "public_share_object",
		[]chain.TypeTag{objectType}, []chain.Argument{obj})
}

// publicTransfer appends `0x2::transfer::public_transfer<T>(obj, recipient)`.
func publicTransfer(b *chain.Builder, objectType chain.TypeTag, obj, recipient chain.Argument) chain.Argument {
	return b.MoveCall(FrameworkPackageID, moduleTransfer, "public_transfer",
		[]chain.TypeTag{objectType}, []chain.Argument{obj, recipient})
}

// pureBuf declares transaction inputs with a sticky error, so templates read
// linearly and no command is appended once an input fails to encode.
type pureBuf struct {
	b   *chain.Builder
	err error
}

func pures(b *chain.Builder) *pureBuf {
	return &pureBuf{b: b}
}

func (p *pureBuf) arg(v any) chain.Argument {
	if p.err != nil {
		return chain.Argument{}
	}
	a, err := p.b.Pure(v)
	if err != nil {
		p.err = err
		return chain.Argument{}
	}
	return a
}

func (p *pureBuf) obj(arg chain.ObjectArg) chain.Argument {
	if p.err != nil {
		return chain.Argument{}
	}
	a, err := p.b.Obj(arg)
	if err != nil {
		p.err = err
		return chain.Argument{}
	}
	return a
}

// shared declares a shared object input. The ref's version field carries the
// initial shared version, matching how deployment registries record refs.
func (p *pureBuf) shared(ref chain.ObjectRef, mutable bool) chain.Argument {
	return p.obj(chain.SharedObject(ref.ObjectID, ref.Version, mutable))
}

func (p *pureBuf) owned(ref chain.ObjectRef) chain.Argument {
	return p.obj(chain.OwnedObject(ref))
}

func (p *pureBuf) clock() chain.Argument {
	return p.obj(chain.SharedObject(ClockObjectID, clockInitialVersion, false))
}

// nested picks one element of a multi-value command result.
func (p *pureBuf) nested(a chain.Argument, idx uint16) chain.Argument {
	if p.err != nil {
		return chain.Argument{}
	}
	n, err := a.NestedResult(idx)
	if err != nil {
		p.err = err
		return chain.Argument{}
	}
	return n
}

// asciiString appends `0x1::ascii::string(bytes)`. Ledger entry points take
// fqn-style identifiers as ascii, not utf8, strings.
func asciiString(b *chain.Builder, p *pureBuf, s string) chain.Argument {
	arg := p.arg([]byte(s))
	if p.err != nil {
		return chain.Argument{}
	}
	return b.MoveCall(MoveStdlibPackageID, moduleAscii, "string", nil, []chain.Argument{arg})
}

// stringTypeTag is `0x1::string::String`.
func stringTypeTag() chain.TypeTag {
	return StructTypeTag(MoveStdlibPackageID, moduleString, "String")
}
