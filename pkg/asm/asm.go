// Package asm converts between svm assembly text and bytecode programs.
//
// Source is a sequence of whitespace-separated tokens; ';' and '#' start a
// comment that runs to the end of the line. Each token becomes one program
// token:
//
//	push 10        ; mnemonic (any case) -> instruction
//	push "a b"     ; quoted string       -> data
//	push 1.5       ; int, float, true, false, null -> data
//	loop:          ; label definition, marks the next token's address
//	jmp loop       ; bare identifier     -> data holding the label's address
//
// The assembler does not check immediate counts. Malformed programs are
// representable on purpose; the VM reports them when executed.
package asm

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/ramyak-mehra/svm/pkg/bytecode"
)

// Error reports an assembly failure at a source position.
type Error struct {
	Pos Position
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("asm: line %d:%d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

type fixup struct {
	index int
	label string
	pos   Position
}

// Assemble parses source into a program.
func Assemble(source string) (*bytecode.Program, error) {
	l := newLexer(source)
	var values []bytecode.Value
	labels := make(map[string]int)
	var fixups []fixup

	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokEOF {
			break
		}
		if tok.kind == tokString {
			values = append(values, bytecode.Data(bytecode.Str(tok.text)))
			continue
		}

		word := tok.text
		if name, ok := strings.CutSuffix(word, ":"); ok && name != "" {
			if err := checkLabel(name); err != nil {
				return nil, &Error{Pos: tok.pos, Msg: err.Error()}
			}
			if _, dup := labels[name]; dup {
				return nil, &Error{Pos: tok.pos, Msg: fmt.Sprintf("label %q redefined", name)}
			}
			labels[name] = len(values)
			continue
		}

		if op, ok := bytecode.LookupOpcode(word); ok {
			values = append(values, bytecode.Instr(op))
			continue
		}
		if msg := checkNumber(word); msg != "" {
			return nil, &Error{Pos: tok.pos, Msg: msg}
		}
		if o, ok := parseLiteral(word); ok {
			values = append(values, bytecode.Data(o))
			continue
		}
		if isIdentifier(word) {
			fixups = append(fixups, fixup{index: len(values), label: word, pos: tok.pos})
			values = append(values, bytecode.Data(bytecode.Int(0)))
			continue
		}
		return nil, &Error{Pos: tok.pos, Msg: fmt.Sprintf("invalid token %q", word)}
	}

	for _, f := range fixups {
		addr, ok := labels[f.label]
		if !ok {
			return nil, &Error{Pos: f.pos, Msg: fmt.Sprintf("undefined label %q", f.label)}
		}
		values[f.index] = bytecode.Data(bytecode.Int(int64(addr)))
	}

	return bytecode.NewProgram(values...), nil
}

// ParseOperand parses a single literal in assembler syntax.
func ParseOperand(text string) (bytecode.Operand, error) {
	l := newLexer(text)
	tok, err := l.next()
	if err != nil {
		return bytecode.Operand{}, err
	}
	if rest, _ := l.next(); rest.kind != tokEOF {
		return bytecode.Operand{}, &Error{Pos: rest.pos, Msg: "expected a single literal"}
	}

	switch tok.kind {
	case tokString:
		return bytecode.Str(tok.text), nil
	case tokWord:
		if msg := checkNumber(tok.text); msg != "" {
			return bytecode.Operand{}, &Error{Pos: tok.pos, Msg: msg}
		}
		if o, ok := parseLiteral(tok.text); ok {
			return o, nil
		}
		return bytecode.Operand{}, &Error{Pos: tok.pos, Msg: fmt.Sprintf("invalid literal %q", tok.text)}
	default:
		return bytecode.Operand{}, &Error{Pos: tok.pos, Msg: "empty literal"}
	}
}

func parseLiteral(word string) (bytecode.Operand, bool) {
	switch word {
	case "null":
		return bytecode.Null(), true
	case "true":
		return bytecode.Bool(true), true
	case "false":
		return bytecode.Bool(false), true
	}
	if n, err := strconv.ParseInt(word, 10, 64); err == nil {
		return bytecode.Int(n), true
	}
	if looksNumeric(word) {
		if f, err := strconv.ParseFloat(word, 64); err == nil {
			return bytecode.Float(f), true
		}
	}
	return bytecode.Operand{}, false
}

// checkNumber reports numeric words that would otherwise change type or
// value silently: digit separators and integers outside int64.
func checkNumber(word string) string {
	if !looksNumeric(word) {
		return ""
	}
	if strings.Contains(word, "_") {
		return fmt.Sprintf("digit separators are not allowed in %q", word)
	}
	if isIntegerSyntax(word) {
		if _, err := strconv.ParseInt(word, 10, 64); err != nil {
			return fmt.Sprintf("integer literal %q out of range", word)
		}
	}
	return ""
}

// isIntegerSyntax reports an optional sign followed only by decimal digits.
func isIntegerSyntax(word string) bool {
	if word[0] == '+' || word[0] == '-' {
		word = word[1:]
	}
	if word == "" {
		return false
	}
	for i := 0; i < len(word); i++ {
		if word[i] < '0' || word[i] > '9' {
			return false
		}
	}
	return true
}

// looksNumeric admits decimal floats plus the Inf and NaN spellings that
// Operand.Literal produces, and keeps identifiers like "nano" out.
func looksNumeric(word string) bool {
	switch strings.TrimLeft(word, "+-") {
	case "Inf", "NaN":
		return true
	}
	c := word[0]
	if c == '+' || c == '-' || c == '.' {
		if len(word) < 2 {
			return false
		}
		c = word[1]
	}
	return c >= '0' && c <= '9' || c == '.'
}

func isIdentifier(word string) bool {
	for i, r := range word {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && (unicode.IsDigit(r) || r == '.') {
			continue
		}
		return false
	}
	return word != ""
}

func checkLabel(name string) error {
	if !isIdentifier(name) {
		return fmt.Errorf("invalid label name %q", name)
	}
	if _, ok := bytecode.LookupOpcode(name); ok {
		return fmt.Errorf("label %q shadows a mnemonic", name)
	}
	if _, ok := parseLiteral(name); ok {
		return fmt.Errorf("label %q shadows a literal", name)
	}
	return nil
}

// Format renders a program as assembly source that Assemble reads back to
// an equal program. Each instruction goes on its own line with the
// immediates it consumes; data in opcode position gets a line of its own.
func Format(p *bytecode.Program) string {
	var sb strings.Builder
	offset := 0
	for offset < p.Len() {
		v, _ := p.At(offset)
		offset++
		sb.WriteString(fmtToken(v))

		if op, ok := v.Opcode(); ok {
			for i := 0; i < op.Immediates(); i++ {
				imm, ok := p.At(offset)
				if !ok || imm.IsInstruction() {
					break
				}
				sb.WriteByte(' ')
				sb.WriteString(fmtToken(imm))
				offset++
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func fmtToken(v bytecode.Value) string {
	if op, ok := v.Opcode(); ok {
		return strings.ToLower(op.String())
	}
	return v.String()
}
