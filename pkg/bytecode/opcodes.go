package bytecode

import (
	"fmt"
	"sort"
	"strings"
)

// Opcode identifies an operation the VM can execute.
// The numeric values are part of the image format; append new opcodes at the end.
type Opcode byte

const (
	// ========================================================================
	// Control
	// ========================================================================

	OpHalt Opcode = iota // Stop execution

	// ========================================================================
	// Stack manipulation
	// ========================================================================

	OpPush // Push immediate: PUSH <operand>
	OpPop  // Pop top of stack
	OpDup  // Duplicate top of stack

	// ========================================================================
	// Arithmetic
	// ========================================================================

	OpAdd // Pop two, push sum (strings concatenate)
	OpSub // Pop two, push difference (a - b where b is TOS)
	OpMul // Pop two, push product
	OpDiv // Pop two, push quotient (a / b where b is TOS)

	// ========================================================================
	// Logical
	// ========================================================================

	OpNot // Negate boolean TOS
	OpAnd // Pop two booleans, push conjunction
	OpOr  // Pop two booleans, push disjunction

	// ========================================================================
	// Comparison
	// ========================================================================

	OpIseq // Pop two, push a == b
	OpIsgt // Pop two, push a > b
	OpIsge // Pop two, push a >= b

	// ========================================================================
	// Control flow
	// ========================================================================

	OpJmp // Unconditional jump: JMP <address>
	OpJif // Pop condition, jump if true: JIF <address>

	// ========================================================================
	// Frame variables
	// ========================================================================

	OpLoad  // Push frame variable: LOAD <key>
	OpStore // Pop and store to frame variable: STORE <key>

	// ========================================================================
	// Subroutines
	// ========================================================================

	OpCall // Enter subroutine with a fresh frame: CALL <address>
	OpRet  // Leave subroutine, resume after its CALL

	// ========================================================================
	// Output
	// ========================================================================

	OpWrite // Write TOS to the output sink without popping it
)

// OpcodeInfo provides metadata about each opcode for disassembly and loading.
type OpcodeInfo struct {
	Name       string // Mnemonic, upper case
	StackPop   int    // Values popped from the stack
	StackPush  int    // Values pushed to the stack
	Immediates int    // Data tokens that follow the opcode in the program
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpHalt: {"HALT", 0, 0, 0},

	OpPush: {"PUSH", 0, 1, 1},
	OpPop:  {"POP", 1, 0, 0},
	OpDup:  {"DUP", 1, 2, 0},

	OpAdd: {"ADD", 2, 1, 0},
	OpSub: {"SUB", 2, 1, 0},
	OpMul: {"MUL", 2, 1, 0},
	OpDiv: {"DIV", 2, 1, 0},

	OpNot: {"NOT", 1, 1, 0},
	OpAnd: {"AND", 2, 1, 0},
	OpOr:  {"OR", 2, 1, 0},

	OpIseq: {"ISEQ", 2, 1, 0},
	OpIsgt: {"ISGT", 2, 1, 0},
	OpIsge: {"ISGE", 2, 1, 0},

	OpJmp: {"JMP", 0, 0, 1},
	OpJif: {"JIF", 1, 0, 1},

	OpLoad:  {"LOAD", 0, 1, 1},
	OpStore: {"STORE", 1, 0, 1},

	OpCall: {"CALL", 0, 0, 1},
	OpRet:  {"RET", 0, 0, 0},

	OpWrite: {"WRITE", 0, 0, 0},
}

// mnemonics maps lower-case names back to opcodes.
var mnemonics = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeInfoTable))
	for op, info := range opcodeInfoTable {
		m[strings.ToLower(info.Name)] = op
	}
	return m
}()

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// LookupOpcode resolves a mnemonic, ignoring case.
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := mnemonics[strings.ToLower(name)]
	return op, ok
}

// String returns the mnemonic of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// Immediates returns the number of data tokens this opcode consumes.
func (op Opcode) Immediates() int {
	return GetOpcodeInfo(op).Immediates
}

// IsBinary returns true if this opcode pops two operands and pushes one result.
func (op Opcode) IsBinary() bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpAnd, OpOr, OpIseq, OpIsgt, OpIsge:
		return true
	}
	return false
}

// IsJump returns true if this opcode transfers control to an immediate address.
func (op Opcode) IsJump() bool {
	return op == OpJmp || op == OpJif || op == OpCall
}

// AllOpcodes returns every defined opcode in numeric order.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	sort.Slice(opcodes, func(i, j int) bool { return opcodes[i] < opcodes[j] })
	return opcodes
}
