package vm

import (
	"fmt"
	"strings"
)

// ErrorKind classifies a fault raised by the engine.
type ErrorKind int

const (
	// ProgramOutOfBounds: fetch at or past the end of the program.
	ProgramOutOfBounds ErrorKind = iota + 1
	// InvalidProgramShape: a data token in opcode position, or an
	// instruction where an immediate was expected.
	InvalidProgramShape
	// StackUnderflow: too few values on the operand stack.
	StackUnderflow
	// TypeMismatch: incompatible operand kinds, or a non-boolean where a
	// boolean is required.
	TypeMismatch
	// InvalidCallTarget: call address not inside (0, len(program)).
	InvalidCallTarget
	// ReturnFromBaseFrame: RET with only the base frame live.
	ReturnFromBaseFrame
	// DivisionByZero: integer division by zero.
	DivisionByZero
	// InvalidJumpTarget: jump immediate that is not a non-negative int.
	InvalidJumpTarget
	// FrameOverflow: call depth exceeded the configured limit.
	FrameOverflow
	// OutputFailed: the WRITE sink returned an error.
	OutputFailed
)

var errorKindNames = map[ErrorKind]string{
	ProgramOutOfBounds:  "program out of bounds",
	InvalidProgramShape: "invalid program shape",
	StackUnderflow:      "stack underflow",
	TypeMismatch:        "type mismatch",
	InvalidCallTarget:   "invalid call target",
	ReturnFromBaseFrame: "return from base frame",
	DivisionByZero:      "division by zero",
	InvalidJumpTarget:   "invalid jump target",
	FrameOverflow:       "frame overflow",
	OutputFailed:        "output failed",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error lets a kind be used directly as an errors.Is target.
func (k ErrorKind) Error() string {
	return "vm: " + k.String()
}

// Sentinels for errors.Is.
var (
	ErrProgramOutOfBounds  = &Error{Kind: ProgramOutOfBounds}
	ErrInvalidProgramShape = &Error{Kind: InvalidProgramShape}
	ErrStackUnderflow      = &Error{Kind: StackUnderflow}
	ErrTypeMismatch        = &Error{Kind: TypeMismatch}
	ErrInvalidCallTarget   = &Error{Kind: InvalidCallTarget}
	ErrReturnFromBaseFrame = &Error{Kind: ReturnFromBaseFrame}
	ErrDivisionByZero      = &Error{Kind: DivisionByZero}
	ErrInvalidJumpTarget   = &Error{Kind: InvalidJumpTarget}
	ErrFrameOverflow       = &Error{Kind: FrameOverflow}
	ErrOutputFailed        = &Error{Kind: OutputFailed}
)

// Error is a fault raised while executing an instruction. Once a VM returns
// an Error it is faulted and every later Step or Run returns the same value.
type Error struct {
	Kind ErrorKind
	IP   int    // address of the instruction being executed
	Op   string // mnemonic, empty if no instruction was decoded
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("vm: ")
	sb.WriteString(e.Kind.String())
	fmt.Fprintf(&sb, " at %04d", e.IP)
	if e.Op != "" {
		sb.WriteString(" (")
		sb.WriteString(e.Op)
		sb.WriteString(")")
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error or an ErrorKind with the same kind.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case *Error:
		return t.Kind == e.Kind
	case ErrorKind:
		return t == e.Kind
	}
	return false
}
