package bytecode

import "fmt"

// Value is one token of a program or one slot of the operand stack.
// It is either an instruction or a data operand, never both.
type Value struct {
	op      Opcode
	operand Operand
	isData  bool
}

// Instr wraps an opcode.
func Instr(op Opcode) Value { return Value{op: op} }

// Data wraps a literal operand.
func Data(o Operand) Value { return Value{operand: o, isData: true} }

// IsData reports whether v carries an operand.
func (v Value) IsData() bool { return v.isData }

// IsInstruction reports whether v carries an opcode.
func (v Value) IsInstruction() bool { return !v.isData }

// Opcode returns the wrapped opcode.
func (v Value) Opcode() (Opcode, bool) {
	if v.isData {
		return 0, false
	}
	return v.op, true
}

// Data returns the wrapped operand, or ErrNotData for an instruction.
func (v Value) Data() (Operand, error) {
	if !v.isData {
		return Operand{}, fmt.Errorf("%w: %s", ErrNotData, v.op)
	}
	return v.operand, nil
}

// Truth returns the boolean interpretation of a data value.
func (v Value) Truth() (bool, error) {
	o, err := v.Data()
	if err != nil {
		return false, err
	}
	return o.Truth()
}

// Equal reports structural equality.
func (v Value) Equal(w Value) bool {
	return v == w
}

// String returns the mnemonic of an instruction or the literal of an operand.
func (v Value) String() string {
	if v.isData {
		return v.operand.Literal()
	}
	return v.op.String()
}
