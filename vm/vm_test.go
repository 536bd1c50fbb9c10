package vm

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/ramyak-mehra/svm/pkg/bytecode"
)

var (
	halt  = bytecode.Instr(bytecode.OpHalt)
	push  = bytecode.Instr(bytecode.OpPush)
	pop   = bytecode.Instr(bytecode.OpPop)
	dup   = bytecode.Instr(bytecode.OpDup)
	add   = bytecode.Instr(bytecode.OpAdd)
	sub   = bytecode.Instr(bytecode.OpSub)
	mul   = bytecode.Instr(bytecode.OpMul)
	div   = bytecode.Instr(bytecode.OpDiv)
	not   = bytecode.Instr(bytecode.OpNot)
	and   = bytecode.Instr(bytecode.OpAnd)
	or    = bytecode.Instr(bytecode.OpOr)
	iseq  = bytecode.Instr(bytecode.OpIseq)
	isgt  = bytecode.Instr(bytecode.OpIsgt)
	isge  = bytecode.Instr(bytecode.OpIsge)
	jmp   = bytecode.Instr(bytecode.OpJmp)
	jif   = bytecode.Instr(bytecode.OpJif)
	load  = bytecode.Instr(bytecode.OpLoad)
	store = bytecode.Instr(bytecode.OpStore)
	call  = bytecode.Instr(bytecode.OpCall)
	ret   = bytecode.Instr(bytecode.OpRet)
	write = bytecode.Instr(bytecode.OpWrite)
)

func dInt(n int64) bytecode.Value     { return bytecode.Data(bytecode.Int(n)) }
func dFloat(f float64) bytecode.Value { return bytecode.Data(bytecode.Float(f)) }
func dStr(s string) bytecode.Value    { return bytecode.Data(bytecode.Str(s)) }
func dBool(b bool) bytecode.Value     { return bytecode.Data(bytecode.Bool(b)) }

func newVM(values ...bytecode.Value) *VM {
	return New(bytecode.NewProgram(values...))
}

// mustRun runs the program to completion and checks it halted.
func mustRun(t *testing.T, values ...bytecode.Value) *VM {
	t.Helper()
	vm := newVM(values...)
	if err := vm.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !vm.Halted() {
		t.Fatal("VM did not halt")
	}
	return vm
}

func checkIP(t *testing.T, vm *VM, want int) {
	t.Helper()
	if vm.IP() != want {
		t.Errorf("IP() = %d, want %d", vm.IP(), want)
	}
}

// checkStack compares the stack bottom first.
func checkStack(t *testing.T, vm *VM, want ...bytecode.Operand) {
	t.Helper()
	got := vm.Stack()
	if len(got) != len(want) {
		t.Fatalf("stack = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("stack[%d] = %s, want %s", i, got[i].Literal(), want[i].Literal())
		}
	}
}

// ---------------------------------------------------------------------------
// Straight-line programs
// ---------------------------------------------------------------------------

func TestPushHalt(t *testing.T) {
	vm := mustRun(t, push, dInt(10), push, dInt(12), halt)
	checkIP(t, vm, 5)
	checkStack(t, vm, bytecode.Int(10), bytecode.Int(12))
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name string
		op   bytecode.Value
		a, b int64
		want int64
	}{
		{"add", add, 10, 12, 22},
		{"sub", sub, 10, 12, -2},
		{"mul", mul, 10, 12, 120},
		{"div", div, 20, 2, 10},
		{"div truncates", div, -7, 2, -3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := mustRun(t, push, dInt(tt.a), push, dInt(tt.b), tt.op, halt)
			checkIP(t, vm, 6)
			checkStack(t, vm, bytecode.Int(tt.want))
		})
	}
}

func TestEvaluateRPN(t *testing.T) {
	// 1 2 3 MUL ADD 7 DIV => (1 + 2 * 3) / 7
	vm := mustRun(t,
		push, dInt(1),
		push, dInt(2),
		push, dInt(3),
		mul,
		add,
		push, dInt(7),
		div,
		halt,
	)
	checkIP(t, vm, 12)
	checkStack(t, vm, bytecode.Int(1))
}

func TestMixedArithmetic(t *testing.T) {
	vm := mustRun(t, push, dInt(1), push, dFloat(2.5), add, halt)
	checkStack(t, vm, bytecode.Float(3.5))

	vm = mustRun(t, push, dFloat(2.5), push, dInt(1), add, halt)
	checkStack(t, vm, bytecode.Float(3.5))

	vm = mustRun(t, push, dStr("ab"), push, dStr("cd"), add, halt)
	checkStack(t, vm, bytecode.Str("abcd"))

	vm = mustRun(t, push, dFloat(1), push, dInt(0), div, halt)
	checkStack(t, vm, bytecode.Float(math.Inf(1)))

	vm = mustRun(t, push, dInt(math.MaxInt64), push, dInt(1), add, halt)
	checkStack(t, vm, bytecode.Int(math.MinInt64))
}

func TestLogic(t *testing.T) {
	tests := []struct {
		name    string
		program []bytecode.Value
		want    bool
	}{
		{"not true", []bytecode.Value{push, dBool(true), not, halt}, false},
		{"not false", []bytecode.Value{push, dBool(false), not, halt}, true},
		{"and", []bytecode.Value{push, dBool(true), push, dBool(true), and, halt}, true},
		{"and false", []bytecode.Value{push, dBool(true), push, dBool(false), and, halt}, false},
		{"or", []bytecode.Value{push, dBool(true), push, dBool(false), or, halt}, true},
		{"or false", []bytecode.Value{push, dBool(false), push, dBool(false), or, halt}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := mustRun(t, tt.program...)
			checkIP(t, vm, len(tt.program))
			checkStack(t, vm, bytecode.Bool(tt.want))
		})
	}
}

func TestComparisons(t *testing.T) {
	tests := []struct {
		name string
		a, b bytecode.Value
		op   bytecode.Value
		want bool
	}{
		{"1 > 2", dInt(1), dInt(2), isgt, false},
		{"2 > 1", dInt(2), dInt(1), isgt, true},
		{"3 >= 2", dInt(3), dInt(2), isge, true},
		{"2 >= 2", dInt(2), dInt(2), isge, true},
		{"1 >= 2", dInt(1), dInt(2), isge, false},
		{"1 == 1", dInt(1), dInt(1), iseq, true},
		{"2 == 1", dInt(2), dInt(1), iseq, false},
		{"b > a", dStr("b"), dStr("a"), isgt, true},
		{"1.5 >= 1.5", dFloat(1.5), dFloat(1.5), isge, true},
		{"1 == 1.0", dInt(1), dFloat(1), iseq, false},
		{"null == null", bytecode.Data(bytecode.Null()), bytecode.Data(bytecode.Null()), iseq, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := mustRun(t, push, tt.a, push, tt.b, tt.op, halt)
			checkIP(t, vm, 6)
			checkStack(t, vm, bytecode.Bool(tt.want))
		})
	}
}

func TestPopDup(t *testing.T) {
	vm := mustRun(t, push, dInt(1), pop, halt)
	checkIP(t, vm, 4)
	checkStack(t, vm)

	vm = mustRun(t, push, dInt(1), dup, halt)
	checkIP(t, vm, 4)
	checkStack(t, vm, bytecode.Int(1), bytecode.Int(1))

	vm = mustRun(t, push, dStr("x"), push, dInt(2), dup, pop, halt)
	checkStack(t, vm, bytecode.Str("x"), bytecode.Int(2))
}

// ---------------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------------

func TestJump(t *testing.T) {
	vm := mustRun(t, jmp, dInt(3), halt, jmp, dInt(2))
	checkIP(t, vm, 3)
	if vm.Steps() != 3 {
		t.Errorf("Steps() = %d, want 3", vm.Steps())
	}
}

func TestJumpConditional(t *testing.T) {
	vm := mustRun(t,
		push, dBool(true),
		jif, dInt(5),
		pop,
		push, dBool(false),
		jif, dInt(4),
		halt,
	)
	checkIP(t, vm, 10)
	checkStack(t, vm)
}

func TestIf(t *testing.T) {
	// if (a > b) { c = a } else { c = b }
	vm := mustRun(t,
		push, dInt(6), store, dStr("a"),
		push, dInt(4), store, dStr("b"),
		load, dStr("a"),
		load, dStr("b"),
		isgt,
		jif, dInt(21),
		// else
		load, dStr("b"),
		store, dStr("c"),
		jmp, dInt(25),
		// then, address 21
		load, dStr("a"),
		store, dStr("c"),
		// address 25
		halt,
	)
	checkStack(t, vm)

	f := vm.CurrentFrame()
	for key, want := range map[string]int64{"a": 6, "b": 4, "c": 6} {
		if got := f.Get(bytecode.Str(key)); got != bytecode.Int(want) {
			t.Errorf("%s = %s, want %d", key, got, want)
		}
	}
}

// ---------------------------------------------------------------------------
// Variables
// ---------------------------------------------------------------------------

func TestLoadUndefined(t *testing.T) {
	vm := mustRun(t, load, dStr("a"), halt)
	checkIP(t, vm, 3)
	checkStack(t, vm, bytecode.Null())
}

func TestStore(t *testing.T) {
	vm := mustRun(t, push, dInt(42), store, dStr("a"), halt)
	checkIP(t, vm, 5)
	checkStack(t, vm)

	vals := vm.CurrentFrame().Values()
	if len(vals) != 1 || vals[0] != bytecode.Int(42) {
		t.Errorf("Values() = %v, want [42]", vals)
	}
}

func TestStoreAndLoad(t *testing.T) {
	vm := mustRun(t, push, dInt(42), store, dStr("a"), load, dStr("a"), halt)
	checkIP(t, vm, 7)
	checkStack(t, vm, bytecode.Int(42))

	locals := vm.Locals()
	if locals[`"a"`] != bytecode.Int(42) {
		t.Errorf("Locals() = %v", locals)
	}
}

func TestIntKeys(t *testing.T) {
	vm := mustRun(t, push, dStr("v"), store, dInt(0), load, dInt(0), load, dStr("0"), halt)
	checkStack(t, vm, bytecode.Str("v"), bytecode.Null())
}

func TestFrameIsolation(t *testing.T) {
	vm := mustRun(t,
		push, dInt(1), store, dStr("x"), // 0
		call, dInt(7), // 4
		halt,             // 6
		load, dStr("x"), // 7: callee sees its own empty frame
		ret,
	)
	checkStack(t, vm, bytecode.Null())
	if got := vm.CurrentFrame().Get(bytecode.Str("x")); got != bytecode.Int(1) {
		t.Errorf("base frame x = %s, want 1", got)
	}
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

func TestFuncNoArgumentsNoReturn(t *testing.T) {
	vm := mustRun(t, call, dInt(3), halt, ret)
	checkIP(t, vm, 3)
	checkStack(t, vm)
	if vm.FrameDepth() != 1 {
		t.Errorf("FrameDepth() = %d, want 1", vm.FrameDepth())
	}
}

func TestFuncNoArgumentsWithReturn(t *testing.T) {
	vm := mustRun(t, call, dInt(3), halt, push, dInt(7), ret)
	checkIP(t, vm, 3)
	checkStack(t, vm, bytecode.Int(7))
}

func TestFuncWithArgumentsReturn(t *testing.T) {
	vm := mustRun(t, push, dInt(3), call, dInt(5), halt, push, dInt(2), mul, ret)
	checkIP(t, vm, 5)
	checkStack(t, vm, bytecode.Int(6))
}

func TestMaxAB(t *testing.T) {
	vm := mustRun(t,
		push, dInt(6), // first argument
		push, dInt(4), // second argument
		call, dInt(7),
		halt,
		store, dStr("b"), // 7
		store, dStr("a"),
		load, dStr("a"),
		load, dStr("b"),
		isge,
		jif, dInt(21), // 16
		load, dStr("b"),
		ret,
		load, dStr("a"), // 21
		ret,
	)
	checkIP(t, vm, 7)
	checkStack(t, vm, bytecode.Int(6))
	if vm.CurrentFrame().Len() != 0 {
		t.Errorf("callee locals leaked into base frame: %v", vm.Locals())
	}
}

func TestCallDepthLimit(t *testing.T) {
	vm := New(bytecode.NewProgram(call, dInt(2), call, dInt(2)), WithMaxFrames(4))
	err := vm.Run()
	if !errors.Is(err, ErrFrameOverflow) {
		t.Fatalf("expected ErrFrameOverflow, got %v", err)
	}
	if vm.FrameDepth() != 4 {
		t.Errorf("FrameDepth() = %d, want 4", vm.FrameDepth())
	}
}

// ---------------------------------------------------------------------------
// Output
// ---------------------------------------------------------------------------

func TestWrite(t *testing.T) {
	var out bytes.Buffer
	vm := New(bytecode.NewProgram(
		push, dInt(3), write,
		push, dStr("hi"), write,
		push, dFloat(0.5), write,
		halt,
	), WithOutput(&out))
	if err := vm.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.String() != "3\nhi\n0.5\n" {
		t.Errorf("output = %q", out.String())
	}
	checkStack(t, vm, bytecode.Int(3), bytecode.Str("hi"), bytecode.Float(0.5))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteFailure(t *testing.T) {
	vm := New(bytecode.NewProgram(push, dInt(1), write, halt), WithOutput(failingWriter{}))
	err := vm.Run()
	if !errors.Is(err, ErrOutputFailed) {
		t.Fatalf("expected ErrOutputFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("cause missing from %q", err.Error())
	}
}

// ---------------------------------------------------------------------------
// Faults
// ---------------------------------------------------------------------------

func TestFaults(t *testing.T) {
	tests := []struct {
		name    string
		program []bytecode.Value
		want    error
	}{
		{"empty program", nil, ErrProgramOutOfBounds},
		{"run off the end", []bytecode.Value{push, dInt(1)}, ErrProgramOutOfBounds},
		{"jump past end", []bytecode.Value{jmp, dInt(10)}, ErrProgramOutOfBounds},
		{"missing immediate", []bytecode.Value{load}, ErrProgramOutOfBounds},
		{"data as opcode", []bytecode.Value{dInt(1)}, ErrInvalidProgramShape},
		{"instruction as immediate", []bytecode.Value{push, halt}, ErrInvalidProgramShape},
		{"sub underflow", []bytecode.Value{sub, halt}, ErrStackUnderflow},
		{"sub one operand", []bytecode.Value{push, dInt(1), sub, halt}, ErrStackUnderflow},
		{"not underflow", []bytecode.Value{not, halt}, ErrStackUnderflow},
		{"pop underflow", []bytecode.Value{pop, halt}, ErrStackUnderflow},
		{"dup underflow", []bytecode.Value{dup, halt}, ErrStackUnderflow},
		{"jif underflow", []bytecode.Value{jif, dInt(0)}, ErrStackUnderflow},
		{"store underflow", []bytecode.Value{store}, ErrStackUnderflow},
		{"store underflow with key", []bytecode.Value{store, dInt(0), halt}, ErrStackUnderflow},
		{"write underflow", []bytecode.Value{write}, ErrStackUnderflow},
		{"str + int", []bytecode.Value{push, dStr("a"), push, dInt(1), add}, ErrTypeMismatch},
		{"null arithmetic", []bytecode.Value{push, bytecode.Data(bytecode.Null()), push, dInt(1), add}, ErrTypeMismatch},
		{"int and", []bytecode.Value{push, dInt(1), push, dInt(1), and}, ErrTypeMismatch},
		{"not int", []bytecode.Value{push, dInt(1), not}, ErrTypeMismatch},
		{"order mixed kinds", []bytecode.Value{push, dInt(1), push, dFloat(1), isgt}, ErrTypeMismatch},
		{"jif int condition", []bytecode.Value{push, dInt(1), jif, dInt(0)}, ErrTypeMismatch},
		{"bool key", []bytecode.Value{load, dBool(true)}, ErrTypeMismatch},
		{"div by zero", []bytecode.Value{push, dInt(1), push, dInt(0), div}, ErrDivisionByZero},
		{"negative jump", []bytecode.Value{jmp, dInt(-1)}, ErrInvalidJumpTarget},
		{"string jump", []bytecode.Value{jmp, dStr("x")}, ErrInvalidJumpTarget},
		{"call zero", []bytecode.Value{call, dInt(0)}, ErrInvalidCallTarget},
		{"call past end", []bytecode.Value{call, dInt(2)}, ErrInvalidCallTarget},
		{"call string", []bytecode.Value{call, dStr("f"), halt}, ErrInvalidCallTarget},
		{"ret at base", []bytecode.Value{ret}, ErrReturnFromBaseFrame},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := newVM(tt.program...)
			err := vm.Run()
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			var verr *Error
			if !errors.As(err, &verr) {
				t.Fatalf("expected *Error, got %T", err)
			}
			if vm.Halted() {
				t.Error("faulted VM reports halted")
			}
			if vm.Err() != err {
				t.Errorf("Err() = %v, want %v", vm.Err(), err)
			}
		})
	}
}

func TestFaultDetails(t *testing.T) {
	vm := newVM(push, dInt(1), push, dStr("a"), sub)
	err := vm.Run()

	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if verr.Kind != TypeMismatch || verr.IP != 4 || verr.Op != "SUB" {
		t.Errorf("got %+v", verr)
	}
	if !errors.Is(err, TypeMismatch) {
		t.Error("errors.Is should match the bare kind")
	}
	if !errors.Is(err, bytecode.ErrTypeMismatch) {
		t.Error("errors.Is should reach the value-model cause")
	}
	if !strings.HasPrefix(err.Error(), "vm: type mismatch at 0004 (SUB): ") {
		t.Errorf("Error() = %q", err.Error())
	}
	if errors.Is(err, ErrStackUnderflow) {
		t.Error("kinds must not cross-match")
	}
}

func TestFaultIsSticky(t *testing.T) {
	vm := newVM(pop, halt)
	first := vm.Step()
	if first == nil {
		t.Fatal("expected fault")
	}
	ip, steps := vm.IP(), vm.Steps()

	if err := vm.Step(); err != first {
		t.Errorf("second Step = %v, want the original fault", err)
	}
	if err := vm.Run(); err != first {
		t.Errorf("Run = %v, want the original fault", err)
	}
	if vm.IP() != ip || vm.Steps() != steps {
		t.Error("faulted VM kept executing")
	}
}

func TestStepAfterHalt(t *testing.T) {
	vm := mustRun(t, push, dInt(1), halt)
	ip, steps := vm.IP(), vm.Steps()
	if err := vm.Step(); err != nil {
		t.Fatalf("Step after halt: %v", err)
	}
	if vm.IP() != ip || vm.Steps() != steps {
		t.Error("Step after halt changed state")
	}
}

func TestSingleStep(t *testing.T) {
	vm := newVM(push, dInt(2), push, dInt(3), add, halt)
	wantIP := []int{2, 4, 5, 6}
	for i, ip := range wantIP {
		if err := vm.Step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		checkIP(t, vm, ip)
	}
	if !vm.Halted() {
		t.Error("expected halt after four steps")
	}
}

// ---------------------------------------------------------------------------
// Inspection and tracing
// ---------------------------------------------------------------------------

func TestStackIsCopy(t *testing.T) {
	vm := mustRun(t, push, dInt(1), halt)
	s := vm.Stack()
	s[0] = bytecode.Int(99)
	if top, _ := vm.Peek(); top != bytecode.Int(1) {
		t.Error("Stack() aliases the operand stack")
	}
	if vm.StackDepth() != 1 {
		t.Errorf("StackDepth() = %d, want 1", vm.StackDepth())
	}
}

func TestTracer(t *testing.T) {
	var events []StepEvent
	vm := New(bytecode.NewProgram(push, dInt(1), push, dInt(2), add, pop, pop),
		WithTracer(TracerFunc(func(ev StepEvent) { events = append(events, ev) })))

	err := vm.Run()
	if !errors.Is(err, ErrStackUnderflow) {
		t.Fatalf("expected underflow, got %v", err)
	}
	if len(events) != 5 {
		t.Fatalf("got %d events, want 5", len(events))
	}

	addEv := events[2]
	if addEv.Seq != 3 || addEv.IP != 4 || addEv.Op != "ADD" || addEv.NextIP != 5 {
		t.Errorf("add event = %+v", addEv)
	}
	if addEv.StackDepth != 1 || addEv.Top != bytecode.Int(3) || addEv.FrameDepth != 1 {
		t.Errorf("add event state = %+v", addEv)
	}

	last := events[4]
	if last.Err == nil || last.Op != "POP" || last.IP != 6 {
		t.Errorf("fault event = %+v", last)
	}
}
