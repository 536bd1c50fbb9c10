package bytecode

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ImageVersion is the current image format version.
// Increment when making incompatible changes to the format.
const ImageVersion uint16 = 1

// ImageMagic tags serialized programs: "SVMI" (svm image).
const ImageMagic = "SVMI"

// Image decoding errors.
var (
	ErrInvalidMagic    = errors.New("invalid magic: expected " + ImageMagic)
	ErrVersionMismatch = errors.New("image version mismatch")
	ErrCorruptImage    = errors.New("corrupt image data")
)

// image is the on-disk form of a Program.
type image struct {
	Magic   string      `cbor:"1,keyasint"`
	Version uint16      `cbor:"2,keyasint"`
	Tokens  []wireToken `cbor:"3,keyasint"`
}

// wireToken encodes one Value. Op is set for instructions only; data tokens
// carry Kind plus the matching payload.
type wireToken struct {
	Op    *uint8  `cbor:"1,keyasint,omitempty"`
	Kind  uint8   `cbor:"2,keyasint,omitempty"`
	Int   int64   `cbor:"3,keyasint,omitempty"`
	Float float64 `cbor:"4,keyasint,omitempty"`
	Str   string  `cbor:"5,keyasint,omitempty"`
	Bool  bool    `cbor:"6,keyasint,omitempty"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalProgram serializes a Program to CBOR bytes.
func MarshalProgram(p *Program) ([]byte, error) {
	img := image{
		Magic:   ImageMagic,
		Version: ImageVersion,
		Tokens:  make([]wireToken, 0, p.Len()),
	}
	for _, v := range p.Values() {
		img.Tokens = append(img.Tokens, toWire(v))
	}
	return cborEncMode.Marshal(&img)
}

// UnmarshalProgram deserializes a Program from CBOR bytes.
func UnmarshalProgram(data []byte) (*Program, error) {
	var img image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal image: %w: %v", ErrCorruptImage, err)
	}
	if img.Magic != ImageMagic {
		return nil, ErrInvalidMagic
	}
	if img.Version != ImageVersion {
		return nil, fmt.Errorf("%w: got v%d, want v%d", ErrVersionMismatch, img.Version, ImageVersion)
	}

	values := make([]Value, len(img.Tokens))
	for i, t := range img.Tokens {
		v, err := fromWire(t)
		if err != nil {
			return nil, fmt.Errorf("bytecode: token %d: %w", i, err)
		}
		values[i] = v
	}
	return &Program{code: values}, nil
}

func toWire(v Value) wireToken {
	if op, ok := v.Opcode(); ok {
		b := uint8(op)
		return wireToken{Op: &b}
	}
	o, _ := v.Data()
	t := wireToken{Kind: uint8(o.kind)}
	switch o.kind {
	case KindInt:
		t.Int = o.n
	case KindFloat:
		t.Float = o.f
	case KindStr:
		t.Str = o.s
	case KindBool:
		t.Bool = o.n != 0
	}
	return t
}

func fromWire(t wireToken) (Value, error) {
	if t.Op != nil {
		op := Opcode(*t.Op)
		if !op.Valid() {
			return Value{}, fmt.Errorf("%w: unknown opcode 0x%02X", ErrCorruptImage, *t.Op)
		}
		if t.Kind != 0 || t.hasPayload(KindNull) {
			return Value{}, fmt.Errorf("%w: instruction %s carries operand fields", ErrCorruptImage, op)
		}
		return Instr(op), nil
	}
	if t.hasPayload(Kind(t.Kind)) {
		return Value{}, fmt.Errorf("%w: operand kind %d carries foreign payload", ErrCorruptImage, t.Kind)
	}
	switch Kind(t.Kind) {
	case KindNull:
		return Data(Null()), nil
	case KindInt:
		return Data(Int(t.Int)), nil
	case KindFloat:
		return Data(Float(t.Float)), nil
	case KindStr:
		return Data(Str(t.Str)), nil
	case KindBool:
		return Data(Bool(t.Bool)), nil
	default:
		return Value{}, fmt.Errorf("%w: unknown operand kind %d", ErrCorruptImage, t.Kind)
	}
}

// hasPayload reports whether t sets any payload field other than the one
// belonging to kind.
func (t wireToken) hasPayload(kind Kind) bool {
	return (kind != KindInt && t.Int != 0) ||
		(kind != KindFloat && t.Float != 0) ||
		(kind != KindStr && t.Str != "") ||
		(kind != KindBool && t.Bool)
}
