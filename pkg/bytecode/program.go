package bytecode

// Program is an immutable sequence of values addressed by the instruction
// pointer. Opcodes and their immediates are interleaved in one flat sequence,
// so a jump target is simply an index into it.
type Program struct {
	code []Value
}

// NewProgram copies values into a new Program.
func NewProgram(values ...Value) *Program {
	code := make([]Value, len(values))
	copy(code, values)
	return &Program{code: code}
}

// Len returns the number of tokens.
func (p *Program) Len() int {
	if p == nil {
		return 0
	}
	return len(p.code)
}

// At returns the token at index i.
func (p *Program) At(i int) (Value, bool) {
	if p == nil || i < 0 || i >= len(p.code) {
		return Value{}, false
	}
	return p.code[i], true
}

// Values returns a copy of the tokens.
func (p *Program) Values() []Value {
	out := make([]Value, p.Len())
	if p != nil {
		copy(out, p.code)
	}
	return out
}

// Equal reports whether both programs hold the same tokens.
func (p *Program) Equal(q *Program) bool {
	if p.Len() != q.Len() {
		return false
	}
	for i := 0; i < p.Len(); i++ {
		if p.code[i] != q.code[i] {
			return false
		}
	}
	return true
}
