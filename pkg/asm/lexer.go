package asm

import (
	"strconv"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: splits assembly source into words and quoted strings
// ---------------------------------------------------------------------------

// Position is a 1-based source location.
type Position struct {
	Line   int
	Column int
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokString
)

type token struct {
	kind tokenKind
	text string // raw word, or the unquoted string value
	pos  Position
}

type lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int
	col     int
}

func newLexer(input string) *lexer {
	l := &lexer{input: input, line: 1}
	l.readChar()
	return l
}

func (l *lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
		l.pos = l.readPos
		return
	}
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
	l.col++
}

func (l *lexer) position() Position {
	return Position{Line: l.line, Column: l.col}
}

func (l *lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

func (l *lexer) skipWhitespaceAndComments() {
	for !l.atEOF() {
		switch {
		case unicode.IsSpace(l.ch):
			l.readChar()
		case l.ch == ';' || l.ch == '#':
			for !l.atEOF() && l.ch != '\n' {
				l.readChar()
			}
		default:
			return
		}
	}
}

func isDelimiter(r rune) bool {
	return unicode.IsSpace(r) || r == ';' || r == '#' || r == '"' || r == '`'
}

// next returns the next token.
func (l *lexer) next() (token, error) {
	l.skipWhitespaceAndComments()
	pos := l.position()
	if l.atEOF() {
		return token{kind: tokEOF, pos: pos}, nil
	}

	if l.ch == '"' || l.ch == '`' {
		quoted, err := strconv.QuotedPrefix(l.input[l.pos:])
		if err != nil {
			return token{}, &Error{Pos: pos, Msg: "unterminated or invalid string literal"}
		}
		value, err := strconv.Unquote(quoted)
		if err != nil {
			return token{}, &Error{Pos: pos, Msg: err.Error()}
		}
		end := l.pos + len(quoted)
		for l.pos < end {
			l.readChar()
		}
		return token{kind: tokString, text: value, pos: pos}, nil
	}

	start := l.pos
	for !l.atEOF() && !isDelimiter(l.ch) {
		l.readChar()
	}
	return token{kind: tokWord, text: l.input[start:l.pos], pos: pos}, nil
}
