package vm

import "github.com/ramyak-mehra/svm/pkg/bytecode"

// Frame holds the local variables of one active call and the address to
// resume at when it returns. Keys are Int or Str operands; Int(1) and
// Str("1") name different variables.
type Frame struct {
	vars          map[bytecode.Operand]bytecode.Operand
	returnAddress int
}

// NewFrame creates an empty frame.
func NewFrame(returnAddress int) *Frame {
	return &Frame{
		vars:          make(map[bytecode.Operand]bytecode.Operand),
		returnAddress: returnAddress,
	}
}

// Get returns the variable stored under key, or Null if it was never set.
func (f *Frame) Get(key bytecode.Operand) bytecode.Operand {
	return f.vars[key]
}

// Set stores value under key, replacing any previous value.
func (f *Frame) Set(key, value bytecode.Operand) {
	f.vars[key] = value
}

// ReturnAddress returns the ip restored by RET.
func (f *Frame) ReturnAddress() int {
	return f.returnAddress
}

// Values returns the stored operands in no particular order.
func (f *Frame) Values() []bytecode.Operand {
	out := make([]bytecode.Operand, 0, len(f.vars))
	for _, v := range f.vars {
		out = append(out, v)
	}
	return out
}

// Vars returns a snapshot keyed by each key's literal text, so a Str key
// appears quoted and an Int key bare.
func (f *Frame) Vars() map[string]bytecode.Operand {
	out := make(map[string]bytecode.Operand, len(f.vars))
	for k, v := range f.vars {
		out[k.Literal()] = v
	}
	return out
}

// Len returns the number of stored variables.
func (f *Frame) Len() int {
	return len(f.vars)
}
