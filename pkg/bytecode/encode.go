package bytecode

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// BytecodeVersion is the current compiled file format version.
const BytecodeVersion byte = 1

// Magic bytes for compiled bytecode files: "AOCB" (AOC Bytecode).
var BytecodeMagic = []byte{'A', 'O', 'C', 'B'}

// cborEncMode encodes in canonical mode, so the same bytecode always
// serializes to the same bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Encode serializes the bytecode into the compiled file format: the magic
// bytes, a format version byte and the CBOR encoded Bytecode.
func (b *Bytecode) Encode() ([]byte, error) {
	body, err := cborEncMode.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("bytecode: marshal: %w", err)
	}

	out := make([]byte, 0, len(BytecodeMagic)+1+len(body))
	out = append(out, BytecodeMagic...)
	out = append(out, BytecodeVersion)
	out = append(out, body...)

	return out, nil
}

// Decode reads bytecode from the compiled file format produced by Encode.
func Decode(data []byte) (*Bytecode, error) {
	headerLen := len(BytecodeMagic) + 1
	if len(data) < headerLen {
		return nil, fmt.Errorf("bytecode: file too short to hold a header")
	}
	if string(data[:len(BytecodeMagic)]) != string(BytecodeMagic) {
		return nil, fmt.Errorf("bytecode: invalid magic: expected %q, got %q",
			BytecodeMagic, data[:len(BytecodeMagic)])
	}
	if version := data[len(BytecodeMagic)]; version > BytecodeVersion {
		return nil, fmt.Errorf("bytecode: version %d is newer than supported version %d",
			version, BytecodeVersion)
	}

	var b Bytecode
	if err := cbor.Unmarshal(data[headerLen:], &b); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal: %w", err)
	}

	return &b, nil
}
