// Package bytecode defines the program representation executed by the svm
// virtual machine.
//
// A program is a flat sequence of tokens. Each token is a Value holding
// either an instruction (an Opcode) or a literal Operand. Immediates are
// threaded inline: an opcode that takes an immediate is followed directly by
// the data token it consumes, so jump and call targets are plain indexes
// into the same sequence.
//
// # Operands
//
// An Operand is one of null, int (int64), float (float64), string or bool.
// Arithmetic promotes int to float when the other side is a float; strings
// concatenate under Add; logic is defined for booleans only; ordering is
// defined for two ints, two floats or two strings. Every incompatible pair
// yields an error wrapping ErrTypeMismatch rather than a coerced result.
//
// # Serialization
//
// Programs serialize to a canonical CBOR image ("SVMI") for storage and
// transport. See MarshalProgram and UnmarshalProgram.
package bytecode
