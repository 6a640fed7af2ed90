package chain

import (
	"fmt"
)

// ArgumentKind discriminates how a call argument is resolved.
type ArgumentKind uint8

const (
	ArgGasCoin ArgumentKind = iota
	ArgInput
	ArgResult
	ArgNestedResult
)

// Argument is a handle into the transaction being built: a declared input,
// the result of an earlier command, or one element of a multi-value result.
type Argument struct {
	Kind    ArgumentKind
	Input   uint16
	Command uint16
	Nested  uint16
}

// GasCoinArg references the transaction's gas coin.
func GasCoinArg() Argument { return Argument{Kind: ArgGasCoin} }

// NestedResult picks one tuple element from a multi-value command result.
func (a Argument) NestedResult(idx uint16) (Argument, error) {
	if a.Kind != ArgResult {
		return Argument{}, fmt.Errorf("nested result: argument is not a command result")
	}
	return Argument{Kind: ArgNestedResult, Command: a.Command, Nested: idx}, nil
}

// ObjectArgKind discriminates object inputs.
type ObjectArgKind uint8

const (
	ObjectOwned ObjectArgKind = iota
	ObjectShared
)

// ObjectArg is an object transaction input. Owned objects carry the full
// (id, version, digest) triple; shared objects carry the initial shared
// version the ledger reported when the object was first shared.
type ObjectArg struct {
	Kind                 ObjectArgKind
	Ref                  ObjectRef
	ID                   ObjectID
	InitialSharedVersion uint64
	Mutable              bool
}

// OwnedObject builds an owned object input.
func OwnedObject(ref ObjectRef) ObjectArg {
	return ObjectArg{Kind: ObjectOwned, Ref: ref, ID: ref.ObjectID}
}

// SharedObject builds a shared object input.
func SharedObject(id ObjectID, initialVersion uint64, mutable bool) ObjectArg {
	return ObjectArg{Kind: ObjectShared, ID: id, InitialSharedVersion: initialVersion, Mutable: mutable}
}

// CallArg is a declared transaction input: pure bytes or an object.
type CallArg struct {
	Pure   []byte
	Object *ObjectArg
}

// CommandKind discriminates builder commands.
type CommandKind uint8

const (
	CommandMoveCall CommandKind = iota
	CommandTransferObjects
	CommandSplitCoins
)

// MoveCall invokes `package::module::function<type_args>(args…)`.
type MoveCall struct {
	Package  ObjectID
	Module   string
	Function string
	TypeArgs []TypeTag
	Args     []Argument
}

// Command is one step of a programmable transaction.
type Command struct {
	Kind     CommandKind
	MoveCall *MoveCall
	Transfer *TransferObjects
	Split    *SplitCoins
}

// TransferObjects publicly transfers owned objects to a recipient.
type TransferObjects struct {
	Objects   []Argument
	Recipient Argument
}

// SplitCoins splits amounts off a coin, yielding one coin per amount.
type SplitCoins struct {
	Coin    Argument
	Amounts []Argument
}

// ProgrammableTransaction is the finished ordered call sequence.
type ProgrammableTransaction struct {
	Inputs   []CallArg
	Commands []Command
}

// Builder assembles an ordered sequence of ledger calls. Inputs referencing
// the same object are deduplicated; a later mutable use upgrades an earlier
// read-only shared input.
type Builder struct {
	inputs      []CallArg
	objectIndex map[ObjectID]uint16
	commands    []Command
}

func NewBuilder() *Builder {
	return &Builder{objectIndex: make(map[ObjectID]uint16)}
}

// Pure declares a pure input with canonical binary encoding.
func (b *Builder) Pure(v any) (Argument, error) {
	enc, err := EncodePure(v)
	if err != nil {
		return Argument{}, fmt.Errorf("pure input: %w", err)
	}
	b.inputs = append(b.inputs, CallArg{Pure: enc})
	return Argument{Kind: ArgInput, Input: uint16(len(b.inputs) - 1)}, nil
}

// Obj declares an object input, deduplicating by object id.
func (b *Builder) Obj(arg ObjectArg) (Argument, error) {
	if idx, ok := b.objectIndex[arg.ID]; ok {
		existing := b.inputs[idx].Object
		if existing.Kind != arg.Kind {
			return Argument{}, fmt.Errorf("object input %s: conflicting owned/shared usage", arg.ID)
		}
		if arg.Kind == ObjectShared {
			if existing.InitialSharedVersion != arg.InitialSharedVersion {
				return Argument{}, fmt.Errorf(
					"object input %s: conflicting initial shared versions %d and %d",
					arg.ID, existing.InitialSharedVersion, arg.InitialSharedVersion,
				)
			}
			existing.Mutable = existing.Mutable || arg.Mutable
		}
		return Argument{Kind: ArgInput, Input: idx}, nil
	}

	copied := arg
	b.inputs = append(b.inputs, CallArg{Object: &copied})
	idx := uint16(len(b.inputs) - 1)
	b.objectIndex[arg.ID] = idx
	return Argument{Kind: ArgInput, Input: idx}, nil
}

// MoveCall appends a move call command and returns its result handle.
func (b *Builder) MoveCall(pkg ObjectID, module, function string, typeArgs []TypeTag, args []Argument) Argument {
	b.commands = append(b.commands, Command{
		Kind: CommandMoveCall,
		MoveCall: &MoveCall{
			Package:  pkg,
			Module:   module,
			Function: function,
			TypeArgs: typeArgs,
			Args:     args,
		},
	})
	return Argument{Kind: ArgResult, Command: uint16(len(b.commands) - 1)}
}

// TransferObjects appends a public transfer command.
func (b *Builder) TransferObjects(objects []Argument, recipient Argument) {
	b.commands = append(b.commands, Command{
		Kind:     CommandTransferObjects,
		Transfer: &TransferObjects{Objects: objects, Recipient: recipient},
	})
}

// SplitCoins appends a coin split command and returns its result handle.
func (b *Builder) SplitCoins(coin Argument, amounts []Argument) Argument {
	b.commands = append(b.commands, Command{
		Kind:  CommandSplitCoins,
		Split: &SplitCoins{Coin: coin, Amounts: amounts},
	})
	return Argument{Kind: ArgResult, Command: uint16(len(b.commands) - 1)}
}

// CommandCount reports how many commands have been appended so far.
func (b *Builder) CommandCount() int {
	return len(b.commands)
}

// Finish seals the builder.
func (b *Builder) Finish() ProgrammableTransaction {
	return ProgrammableTransaction{Inputs: b.inputs, Commands: b.commands}
}
