package chain

import (
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Intent prefix for transaction signing: scope=transaction data, version 0,
// app id 0.
var txIntent = [3]byte{0, 0, 0}

// TransactionData is a fully-specified transaction ready for signing.
type TransactionData struct {
	Sender      Address
	GasPayment  []ObjectRef
	GasOwner    Address
	GasPrice    uint64
	GasBudget   uint64
	Transaction ProgrammableTransaction
}

// NewProgrammableTransactionData assembles transaction data with the sender
// also owning the gas payment.
func NewProgrammableTransactionData(
	sender Address,
	gasPayment []ObjectRef,
	pt ProgrammableTransaction,
	gasBudget uint64,
	gasPrice uint64,
) TransactionData {
	return TransactionData{
		Sender:      sender,
		GasPayment:  gasPayment,
		GasOwner:    sender,
		GasPrice:    gasPrice,
		GasBudget:   gasBudget,
		Transaction: pt,
	}
}

// Bytes is the canonical encoding submitted to the ledger, without the
// signing intent prefix.
func (td TransactionData) Bytes() ([]byte, error) {
	return td.encode()
}

// SigningMessage is the byte string a signer commits to: the intent prefix
// followed by the canonical encoding of the transaction data.
func (td TransactionData) SigningMessage() ([]byte, error) {
	enc, err := td.encode()
	if err != nil {
		return nil, err
	}
	msg := make([]byte, 0, len(txIntent)+len(enc))
	msg = append(msg, txIntent[:]...)
	msg = append(msg, enc...)
	return msg, nil
}

// Digest is the blake2b-256 hash of the signing message, which doubles as
// the transaction digest reported by the ledger.
func (td TransactionData) Digest() (Digest, error) {
	msg, err := td.SigningMessage()
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(msg)
	return DigestFromBytes(sum[:]), nil
}

func (td TransactionData) encode() ([]byte, error) {
	w := &bcsWriter{}

	// TransactionData::V1
	w.writeULEB128(0)

	// kind: ProgrammableTransaction
	w.writeULEB128(0)
	if err := encodeProgrammable(w, td.Transaction); err != nil {
		return nil, err
	}

	w.writeAddress(td.Sender)

	// gas data
	w.writeULEB128(uint64(len(td.GasPayment)))
	for _, ref := range td.GasPayment {
		if err := encodeObjectRef(w, ref); err != nil {
			return nil, err
		}
	}
	w.writeAddress(td.GasOwner)
	w.writeU64(td.GasPrice)
	w.writeU64(td.GasBudget)

	// expiration: none
	w.writeULEB128(0)

	return w.bytes(), nil
}

func encodeObjectRef(w *bcsWriter, ref ObjectRef) error {
	w.writeAddress(ref.ObjectID)
	w.writeU64(ref.Version)
	digest, err := ref.Digest.Bytes()
	if err != nil {
		return fmt.Errorf("object ref %s: %w", ref.ObjectID, err)
	}
	w.buf.Write(digest)
	return nil
}

func encodeProgrammable(w *bcsWriter, pt ProgrammableTransaction) error {
	w.writeULEB128(uint64(len(pt.Inputs)))
	for _, in := range pt.Inputs {
		switch {
		case in.Object == nil:
			w.writeULEB128(0)
			w.writeBytes(in.Pure)
		case in.Object.Kind == ObjectOwned:
			w.writeULEB128(1)
			w.writeULEB128(0)
			if err := encodeObjectRef(w, in.Object.Ref); err != nil {
				return err
			}
		default:
			w.writeULEB128(1)
			w.writeULEB128(1)
			w.writeAddress(in.Object.ID)
			w.writeU64(in.Object.InitialSharedVersion)
			w.writeBool(in.Object.Mutable)
		}
	}

	w.writeULEB128(uint64(len(pt.Commands)))
	for _, cmd := range pt.Commands {
		switch cmd.Kind {
		case CommandMoveCall:
			w.writeULEB128(0)
			mc := cmd.MoveCall
			w.writeAddress(mc.Package)
			w.writeString(mc.Module)
			w.writeString(mc.Function)
			w.writeULEB128(uint64(len(mc.TypeArgs)))
			for _, ta := range mc.TypeArgs {
				w.writeString(ta.String())
			}
			w.writeULEB128(uint64(len(mc.Args)))
			for _, a := range mc.Args {
				encodeArgument(w, a)
			}
		case CommandTransferObjects:
			w.writeULEB128(1)
			w.writeULEB128(uint64(len(cmd.Transfer.Objects)))
			for _, a := range cmd.Transfer.Objects {
				encodeArgument(w, a)
			}
			encodeArgument(w, cmd.Transfer.Recipient)
		case CommandSplitCoins:
			w.writeULEB128(2)
			encodeArgument(w, cmd.Split.Coin)
			w.writeULEB128(uint64(len(cmd.Split.Amounts)))
			for _, a := range cmd.Split.Amounts {
				encodeArgument(w, a)
			}
		default:
			return fmt.Errorf("encode transaction: unknown command kind %d", cmd.Kind)
		}
	}

	return nil
}

func encodeArgument(w *bcsWriter, a Argument) {
	switch a.Kind {
	case ArgGasCoin:
		w.writeULEB128(0)
	case ArgInput:
		w.writeULEB128(1)
		w.writeU16(a.Input)
	case ArgResult:
		w.writeULEB128(2)
		w.writeU16(a.Command)
	case ArgNestedResult:
		w.writeULEB128(3)
		w.writeU16(a.Command)
		w.writeU16(a.Nested)
	}
}
