package chain

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Canonical byte-order binary encoding for pure transaction inputs and for
// transaction data hashing. Integers are little-endian; sequences are
// prefixed with a ULEB128 length; options are a 0/1 byte prefix.

type bcsWriter struct {
	buf bytes.Buffer
}

func (w *bcsWriter) bytes() []byte { return w.buf.Bytes() }

func (w *bcsWriter) writeULEB128(v uint64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			w.buf.WriteByte(b | 0x80)
			continue
		}
		w.buf.WriteByte(b)
		return
	}
}

func (w *bcsWriter) writeBool(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

func (w *bcsWriter) writeU8(v uint8) { w.buf.WriteByte(v) }

func (w *bcsWriter) writeU16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *bcsWriter) writeU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *bcsWriter) writeU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *bcsWriter) writeBytes(b []byte) {
	w.writeULEB128(uint64(len(b)))
	w.buf.Write(b)
}

func (w *bcsWriter) writeString(s string) {
	w.writeBytes([]byte(s))
}

func (w *bcsWriter) writeAddress(a Address) {
	w.buf.Write(a[:])
}

func (w *bcsWriter) writeOptionU64(v *uint64) {
	if v == nil {
		w.buf.WriteByte(0)
		return
	}
	w.buf.WriteByte(1)
	w.writeU64(*v)
}

// EncodePure encodes a pure transaction input. The supported set matches
// what the composer templates need; anything else is a programming error
// surfaced as a typed failure, not a panic.
func EncodePure(v any) ([]byte, error) {
	w := &bcsWriter{}
	if err := encodePureInto(w, v); err != nil {
		return nil, err
	}
	return w.bytes(), nil
}

func encodePureInto(w *bcsWriter, v any) error {
	switch x := v.(type) {
	case bool:
		w.writeBool(x)
	case uint8:
		w.writeU8(x)
	case uint16:
		w.writeU16(x)
	case uint32:
		w.writeU32(x)
	case uint64:
		w.writeU64(x)
	case int:
		if x < 0 {
			return fmt.Errorf("encode pure: negative int %d cannot encode as u64", x)
		}
		w.writeU64(uint64(x))
	case string:
		w.writeString(x)
	case []byte:
		w.writeBytes(x)
	case Address:
		w.writeAddress(x)
	case *uint64:
		w.writeOptionU64(x)
	case *[]byte:
		if x == nil {
			w.buf.WriteByte(0)
		} else {
			w.buf.WriteByte(1)
			w.writeBytes(*x)
		}
	case OptionU64String:
		w.writeOptionU64(x.Ptr())
	case []string:
		w.writeULEB128(uint64(len(x)))
		for _, s := range x {
			w.writeString(s)
		}
	case [][]byte:
		w.writeULEB128(uint64(len(x)))
		for _, b := range x {
			w.writeBytes(b)
		}
	case []Address:
		w.writeULEB128(uint64(len(x)))
		for _, a := range x {
			w.writeAddress(a)
		}
	default:
		return fmt.Errorf("encode pure: unsupported type %T", v)
	}
	return nil
}
