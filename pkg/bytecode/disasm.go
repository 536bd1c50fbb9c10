package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of the program.
func (p *Program) Disassemble() string {
	return p.DisassembleWithName("")
}

// DisassembleWithName returns a listing with a name header.
func (p *Program) DisassembleWithName(name string) string {
	var sb strings.Builder

	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	sb.WriteString(fmt.Sprintf("; svm program v%d, %d tokens, %d instructions\n", ImageVersion, p.Len(), p.InstructionCount()))

	for _, line := range p.DisassembleToLines() {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

// DisassembleToLines returns the listing as one line per instruction, each
// prefixed with its address.
func (p *Program) DisassembleToLines() []string {
	var lines []string
	offset := 0
	for offset < p.Len() {
		line, n := p.disassembleInstruction(offset)
		lines = append(lines, fmt.Sprintf("%04d  %s", offset, line))
		offset += n
	}
	return lines
}

// DisassembleInstruction returns the listing of the instruction at offset.
func (p *Program) DisassembleInstruction(offset int) string {
	line, _ := p.disassembleInstruction(offset)
	return line
}

// disassembleInstruction formats the instruction at offset and returns the
// number of tokens it spans. Data found where an opcode is expected is listed
// as a .data pseudo-instruction.
func (p *Program) disassembleInstruction(offset int) (string, int) {
	v, ok := p.At(offset)
	if !ok {
		return "<end of program>", 0
	}
	op, isOp := v.Opcode()
	if !isOp {
		return fmt.Sprintf(".data %s", v), 1
	}

	info := GetOpcodeInfo(op)
	parts := []string{info.Name}
	n := 1
	for i := 0; i < info.Immediates; i++ {
		imm, ok := p.At(offset + n)
		if !ok {
			parts = append(parts, "; missing immediate")
			break
		}
		if imm.IsInstruction() {
			parts = append(parts, "; expected immediate, found "+imm.String())
			break
		}
		parts = append(parts, imm.String())
		n++
	}

	line := strings.Join(parts, " ")
	if op.IsJump() && n == 2 {
		if target, ok := p.jumpTarget(offset + 1); ok {
			line += " ; -> " + target
		}
	}
	return line, n
}

func (p *Program) jumpTarget(immOffset int) (string, bool) {
	imm, _ := p.At(immOffset)
	o, err := imm.Data()
	if err != nil {
		return "", false
	}
	addr, err := o.Index()
	if err != nil {
		return "", false
	}
	target, ok := p.At(addr)
	if !ok {
		return fmt.Sprintf("%04d <out of range>", addr), true
	}
	return fmt.Sprintf("%04d %s", addr, target), true
}

// InstructionCount returns the number of instructions in the listing.
func (p *Program) InstructionCount() int {
	count := 0
	offset := 0
	for offset < p.Len() {
		_, n := p.disassembleInstruction(offset)
		offset += n
		count++
	}
	return count
}
