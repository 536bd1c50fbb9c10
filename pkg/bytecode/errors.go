package bytecode

import (
	"errors"
	"fmt"
)

// Value model errors. Operations wrap these with the operand kinds involved.
var (
	ErrNotData        = errors.New("value is an instruction, not data")
	ErrNotBoolean     = errors.New("operand is not boolean")
	ErrTypeMismatch   = errors.New("type mismatch")
	ErrDivisionByZero = errors.New("integer division by zero")
	ErrNotIndex       = errors.New("operand is not a program index")
)

func mismatch(op string, a, b Operand) error {
	return fmt.Errorf("%w: %s %s %s", ErrTypeMismatch, a.kind, op, b.kind)
}
