package bytecode

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind tags the variant held by an Operand.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindStr
	KindBool
)

// String returns a human-readable name for Kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindStr:
		return "str"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Operand is a literal value: null, int, float, string or bool.
//
// Operands are immutable and comparable. Only the payload field that matches
// kind is ever set, so == is structural equality (with IEEE semantics for
// floats). Bool payloads live in n as 0 or 1.
type Operand struct {
	kind Kind
	n    int64
	f    float64
	s    string
}

// Null returns the absent value.
func Null() Operand { return Operand{} }

// Int returns an integer operand.
func Int(v int64) Operand { return Operand{kind: KindInt, n: v} }

// Float returns a floating-point operand.
func Float(v float64) Operand { return Operand{kind: KindFloat, f: v} }

// Str returns a string operand.
func Str(v string) Operand { return Operand{kind: KindStr, s: v} }

// Bool returns a boolean operand.
func Bool(v bool) Operand {
	if v {
		return Operand{kind: KindBool, n: 1}
	}
	return Operand{kind: KindBool}
}

// Kind returns the variant tag.
func (a Operand) Kind() Kind { return a.kind }

// IsNull reports whether a is the absent value.
func (a Operand) IsNull() bool { return a.kind == KindNull }

// AsInt returns the integer payload.
func (a Operand) AsInt() (int64, bool) { return a.n, a.kind == KindInt }

// AsFloat returns the float payload.
func (a Operand) AsFloat() (float64, bool) { return a.f, a.kind == KindFloat }

// AsStr returns the string payload.
func (a Operand) AsStr() (string, bool) { return a.s, a.kind == KindStr }

// AsBool returns the boolean payload.
func (a Operand) AsBool() (bool, bool) { return a.n != 0, a.kind == KindBool }

// Truth returns the boolean interpretation of a. Only bool operands have one.
func (a Operand) Truth() (bool, error) {
	if a.kind != KindBool {
		return false, fmt.Errorf("%w: got %s", ErrNotBoolean, a.kind)
	}
	return a.n != 0, nil
}

// Index interprets a as a program address.
func (a Operand) Index() (int, error) {
	if a.kind != KindInt {
		return 0, fmt.Errorf("%w: got %s", ErrNotIndex, a.kind)
	}
	if a.n < 0 || uint64(a.n) > uint64(math.MaxInt) {
		return 0, fmt.Errorf("%w: %d out of range", ErrNotIndex, a.n)
	}
	return int(a.n), nil
}

// IsKey reports whether a can name a frame variable.
func (a Operand) IsKey() bool {
	return a.kind == KindInt || a.kind == KindStr
}

func (a Operand) isNumber() bool {
	return a.kind == KindInt || a.kind == KindFloat
}

// float widens an int payload; callers check isNumber first.
func (a Operand) float() float64 {
	if a.kind == KindInt {
		return float64(a.n)
	}
	return a.f
}

// numeric applies the promotion rules shared by the arithmetic operators:
// int op int stays int, any float promotes both sides to float.
func numeric(op string, a, b Operand, ints func(x, y int64) (int64, error), floats func(x, y float64) float64) (Operand, error) {
	switch {
	case a.kind == KindInt && b.kind == KindInt:
		n, err := ints(a.n, b.n)
		if err != nil {
			return Operand{}, err
		}
		return Int(n), nil
	case a.isNumber() && b.isNumber():
		return Float(floats(a.float(), b.float())), nil
	}
	return Operand{}, mismatch(op, a, b)
}

// Add returns a + b. Strings concatenate in order.
func (a Operand) Add(b Operand) (Operand, error) {
	if a.kind == KindStr && b.kind == KindStr {
		return Str(a.s + b.s), nil
	}
	return numeric("+", a, b,
		func(x, y int64) (int64, error) { return x + y, nil },
		func(x, y float64) float64 { return x + y })
}

// Sub returns a - b.
func (a Operand) Sub(b Operand) (Operand, error) {
	return numeric("-", a, b,
		func(x, y int64) (int64, error) { return x - y, nil },
		func(x, y float64) float64 { return x - y })
}

// Mul returns a * b.
func (a Operand) Mul(b Operand) (Operand, error) {
	return numeric("*", a, b,
		func(x, y int64) (int64, error) { return x * y, nil },
		func(x, y float64) float64 { return x * y })
}

// Div returns a / b. Integer division truncates toward zero and fails on a
// zero divisor; float division follows IEEE-754.
func (a Operand) Div(b Operand) (Operand, error) {
	return numeric("/", a, b,
		func(x, y int64) (int64, error) {
			if y == 0 {
				return 0, ErrDivisionByZero
			}
			return x / y, nil
		},
		func(x, y float64) float64 { return x / y })
}

// And returns the conjunction of two booleans.
func (a Operand) And(b Operand) (Operand, error) {
	if a.kind != KindBool || b.kind != KindBool {
		return Operand{}, mismatch("and", a, b)
	}
	return Bool(a.n != 0 && b.n != 0), nil
}

// Or returns the disjunction of two booleans.
func (a Operand) Or(b Operand) (Operand, error) {
	if a.kind != KindBool || b.kind != KindBool {
		return Operand{}, mismatch("or", a, b)
	}
	return Bool(a.n != 0 || b.n != 0), nil
}

// Not returns the negation of a boolean.
func (a Operand) Not() (Operand, error) {
	v, err := a.Truth()
	if err != nil {
		return Operand{}, err
	}
	return Bool(!v), nil
}

// Equal reports structural equality. Operands of different kinds are never
// equal; null equals null.
func (a Operand) Equal(b Operand) bool {
	return a == b
}

// Greater returns a > b for two ints, two floats or two strings.
func (a Operand) Greater(b Operand) (Operand, error) {
	switch {
	case a.kind == KindInt && b.kind == KindInt:
		return Bool(a.n > b.n), nil
	case a.kind == KindFloat && b.kind == KindFloat:
		return Bool(a.f > b.f), nil
	case a.kind == KindStr && b.kind == KindStr:
		return Bool(a.s > b.s), nil
	}
	return Operand{}, mismatch(">", a, b)
}

// GreaterEqual returns a >= b for two ints, two floats or two strings.
func (a Operand) GreaterEqual(b Operand) (Operand, error) {
	switch {
	case a.kind == KindInt && b.kind == KindInt:
		return Bool(a.n >= b.n), nil
	case a.kind == KindFloat && b.kind == KindFloat:
		return Bool(a.f >= b.f), nil
	case a.kind == KindStr && b.kind == KindStr:
		return Bool(a.s >= b.s), nil
	}
	return Operand{}, mismatch(">=", a, b)
}

// String returns the textual form written by the WRITE opcode.
// Strings are returned as-is.
func (a Operand) String() string {
	switch a.kind {
	case KindInt:
		return strconv.FormatInt(a.n, 10)
	case KindFloat:
		return strconv.FormatFloat(a.f, 'g', -1, 64)
	case KindStr:
		return a.s
	case KindBool:
		return strconv.FormatBool(a.n != 0)
	default:
		return "null"
	}
}

// Literal returns a in assembler syntax: strings are quoted and finite
// floats always carry a decimal point or exponent so they read back as floats.
func (a Operand) Literal() string {
	switch a.kind {
	case KindStr:
		return strconv.Quote(a.s)
	case KindFloat:
		s := a.String()
		if math.IsInf(a.f, 0) || math.IsNaN(a.f) {
			return s
		}
		if !strings.ContainsAny(s, ".e") {
			s += ".0"
		}
		return s
	default:
		return a.String()
	}
}
