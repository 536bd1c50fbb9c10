// Package scenario runs YAML conformance scenarios: small assembly programs
// paired with the final VM state they must produce.
//
//	scenarios:
//	  - name: add
//	    source: |
//	      push 10
//	      push 12
//	      add
//	      halt
//	    expect:
//	      stack: [22]
//	      ip: 6
//	      halted: true
//
// Expected operands take their kind from the YAML tag, so 1 is an int, 1.0 a
// float, "1" a string and ~ null. Locals are keyed the same way: a plain
// key names a string variable and an integer key an int variable.
package scenario

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ramyak-mehra/svm/pkg/asm"
	"github.com/ramyak-mehra/svm/pkg/bytecode"
	"github.com/ramyak-mehra/svm/runner"
	"github.com/ramyak-mehra/svm/vm"
)

// DefaultMaxSteps bounds scenarios that do not set max-steps.
const DefaultMaxSteps = 10000

// File is the top-level document.
type File struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// Scenario is one program and its expected outcome.
type Scenario struct {
	Name      string `yaml:"name"`
	Source    string `yaml:"source"`
	MaxSteps  int    `yaml:"max-steps,omitempty"`
	MaxFrames int    `yaml:"max-frames,omitempty"`
	Expect    Expect `yaml:"expect"`
}

// Expect lists the checked parts of the final state. Nil fields are not
// checked.
type Expect struct {
	Stack  *[]Literal `yaml:"stack,omitempty"`
	IP     *int       `yaml:"ip,omitempty"`
	Halted *bool      `yaml:"halted,omitempty"`
	Output *string    `yaml:"output,omitempty"`
	Locals Locals     `yaml:"locals,omitempty"`

	// Error is the expected fault kind ("stack underflow"), or "step budget
	// exhausted". Empty means the run must not fail.
	Error string `yaml:"error,omitempty"`
}

// Literal is an operand decoded from a YAML scalar.
type Literal struct {
	bytecode.Operand
}

func (l *Literal) UnmarshalYAML(value *yaml.Node) error {
	o, err := decodeOperand(value)
	if err != nil {
		return err
	}
	l.Operand = o
	return nil
}

func decodeOperand(n *yaml.Node) (bytecode.Operand, error) {
	if n.Kind != yaml.ScalarNode {
		return bytecode.Operand{}, fmt.Errorf("line %d: expected a scalar operand", n.Line)
	}
	switch n.ShortTag() {
	case "!!null":
		return bytecode.Null(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return bytecode.Operand{}, err
		}
		return bytecode.Bool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return bytecode.Operand{}, err
		}
		return bytecode.Int(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return bytecode.Operand{}, err
		}
		return bytecode.Float(f), nil
	case "!!str":
		return bytecode.Str(n.Value), nil
	}
	return bytecode.Operand{}, fmt.Errorf("line %d: unsupported operand tag %s", n.Line, n.ShortTag())
}

// Locals maps frame keys to expected values.
type Locals map[bytecode.Operand]bytecode.Operand

func (l *Locals) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: locals must be a mapping", value.Line)
	}
	out := make(Locals, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		k, err := decodeOperand(value.Content[i])
		if err != nil {
			return err
		}
		if !k.IsKey() {
			return fmt.Errorf("line %d: local key must be a name or an integer", value.Content[i].Line)
		}
		v, err := decodeOperand(value.Content[i+1])
		if err != nil {
			return err
		}
		out[k] = v
	}
	*l = out
	return nil
}

// Parse decodes and validates a scenario document.
func Parse(data []byte) ([]Scenario, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing scenarios: %w", err)
	}

	seen := make(map[string]bool, len(f.Scenarios))
	for i, s := range f.Scenarios {
		if s.Name == "" {
			return nil, fmt.Errorf("scenario %d: missing name", i+1)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("scenario %q: duplicate name", s.Name)
		}
		seen[s.Name] = true
	}
	return f.Scenarios, nil
}

// Load reads a scenario file.
func Load(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	scenarios, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return scenarios, nil
}

// Result is the outcome of running a scenario.
type Result struct {
	VM     *vm.VM
	Output string
	Stats  runner.Stats
	Err    error
}

// Run assembles and executes the scenario program.
func (s Scenario) Run(ctx context.Context, opts ...vm.Option) (*Result, error) {
	prog, err := asm.Assemble(s.Source)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
	}

	var out bytes.Buffer
	opts = append([]vm.Option{vm.WithOutput(&out), vm.WithMaxFrames(s.MaxFrames)}, opts...)
	machine := vm.New(prog, opts...)

	maxSteps := s.MaxSteps
	if maxSteps == 0 {
		maxSteps = DefaultMaxSteps
	}
	stats, runErr := runner.Run(ctx, machine, runner.Options{MaxSteps: maxSteps})
	if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
		return nil, runErr
	}

	return &Result{VM: machine, Output: out.String(), Stats: stats, Err: runErr}, nil
}

// Mismatch is a failed expectation.
type Mismatch struct {
	Field string
	Got   string
	Want  string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: got %s, want %s", m.Field, m.Got, m.Want)
}

// Failure reports every mismatch of one scenario.
type Failure struct {
	Name       string
	Mismatches []Mismatch
}

func (f *Failure) Error() string {
	parts := make([]string, len(f.Mismatches))
	for i, m := range f.Mismatches {
		parts[i] = m.String()
	}
	return fmt.Sprintf("scenario %q failed: %s", f.Name, strings.Join(parts, "; "))
}

// Check runs the scenario and compares the result with its expectations.
// It returns a *Failure on mismatch, or another error if the program could
// not be run at all.
func (s Scenario) Check(ctx context.Context, opts ...vm.Option) error {
	res, err := s.Run(ctx, opts...)
	if err != nil {
		return err
	}
	if ms := s.Expect.compare(res); len(ms) > 0 {
		return &Failure{Name: s.Name, Mismatches: ms}
	}
	return nil
}

func (e Expect) compare(res *Result) []Mismatch {
	var ms []Mismatch
	add := func(field, got, want string) {
		ms = append(ms, Mismatch{Field: field, Got: got, Want: want})
	}

	if got := errorName(res.Err); got != e.Error {
		add("error", quoteOrNone(got), quoteOrNone(e.Error))
	}

	m := res.VM
	if e.Stack != nil {
		got := m.Stack()
		want := *e.Stack
		if !sameStack(got, want) {
			add("stack", formatOperands(got), formatLiterals(want))
		}
	}
	if e.IP != nil && m.IP() != *e.IP {
		add("ip", fmt.Sprint(m.IP()), fmt.Sprint(*e.IP))
	}
	if e.Halted != nil && m.Halted() != *e.Halted {
		add("halted", fmt.Sprint(m.Halted()), fmt.Sprint(*e.Halted))
	}
	if e.Output != nil && res.Output != *e.Output {
		add("output", fmt.Sprintf("%q", res.Output), fmt.Sprintf("%q", *e.Output))
	}
	frame := m.CurrentFrame()
	for k, want := range e.Locals {
		if got := frame.Get(k); got != want {
			add("locals["+k.Literal()+"]", got.Literal(), want.Literal())
		}
	}
	return ms
}

// errorName maps a run error to the name used in Expect.Error.
func errorName(err error) string {
	var verr *vm.Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return verr.Kind.String()
	case errors.Is(err, runner.ErrBudgetExhausted):
		return "step budget exhausted"
	}
	return err.Error()
}

func quoteOrNone(s string) string {
	if s == "" {
		return "no error"
	}
	return fmt.Sprintf("%q", s)
}

func sameStack(got []bytecode.Operand, want []Literal) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i].Operand {
			return false
		}
	}
	return true
}

func formatOperands(ops []bytecode.Operand) string {
	parts := make([]string, len(ops))
	for i, o := range ops {
		parts[i] = o.Literal()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatLiterals(lits []Literal) string {
	ops := make([]bytecode.Operand, len(lits))
	for i, l := range lits {
		ops[i] = l.Operand
	}
	return formatOperands(ops)
}
