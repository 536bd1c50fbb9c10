package vm

import (
	"io"

	"github.com/tliron/commonlog"

	"github.com/ramyak-mehra/svm/pkg/bytecode"
)

// VM executes a single program. It is not safe for concurrent use; drive it
// from one goroutine or through runner.Worker.
type VM struct {
	program *bytecode.Program
	ip      int
	halted  bool
	err     error
	steps   int

	// Operand stack, top at the end. Only data ever reaches the stack, so
	// it holds operands rather than values.
	stack []bytecode.Operand

	// Frame stack, current frame at the end. frames[0] is the base frame
	// and is never popped.
	frames []*Frame

	// Decode state of the step in progress.
	cur   int
	curOp string

	out       io.Writer
	tracer    Tracer
	log       commonlog.Logger
	maxFrames int
}

// New creates a VM positioned at the start of program with an empty stack
// and a base frame whose return address is 0.
func New(program *bytecode.Program, opts ...Option) *VM {
	if program == nil {
		program = bytecode.NewProgram()
	}
	vm := &VM{
		program: program,
		stack:   make([]bytecode.Operand, 0, 16),
		frames:  []*Frame{NewFrame(0)},
		out:     io.Discard,
		log:     commonlog.GetLogger("svm.vm"),
	}
	for _, opt := range opts {
		opt(vm)
	}
	return vm
}

// Run steps until the program halts or a step fails, and returns the first
// failure. Run does not bound the number of steps; use runner.Run for a
// budget or cancellation.
func (vm *VM) Run() error {
	for !vm.halted {
		if err := vm.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Step executes one dispatch cycle. It is a no-op once the VM has halted,
// and returns the original fault once it has failed.
func (vm *VM) Step() error {
	if vm.err != nil {
		return vm.err
	}
	if vm.halted {
		return nil
	}

	vm.cur, vm.curOp = vm.ip, ""
	err := vm.execute()
	vm.steps++
	if err != nil {
		vm.err = err
		if vm.log.AllowLevel(commonlog.Debug) {
			vm.log.Debugf("fault after %d steps: %s", vm.steps, err)
		}
	}

	if vm.tracer != nil {
		ev := StepEvent{
			Seq:        vm.steps,
			IP:         vm.cur,
			Op:         vm.curOp,
			NextIP:     vm.ip,
			StackDepth: len(vm.stack),
			FrameDepth: len(vm.frames),
			Err:        err,
		}
		if top, ok := vm.Peek(); ok {
			ev.Top = top
		}
		vm.tracer.TraceStep(ev)
	}
	return err
}

// IP returns the index of the next token to fetch.
func (vm *VM) IP() int { return vm.ip }

// Halted reports whether HALT has executed.
func (vm *VM) Halted() bool { return vm.halted }

// Err returns the fault that stopped the VM, or nil.
func (vm *VM) Err() error { return vm.err }

// Steps returns the number of dispatch cycles executed, including a
// failed one.
func (vm *VM) Steps() int { return vm.steps }

// Program returns the program being executed.
func (vm *VM) Program() *bytecode.Program { return vm.program }

// Stack returns a copy of the operand stack, bottom first.
func (vm *VM) Stack() []bytecode.Operand {
	out := make([]bytecode.Operand, len(vm.stack))
	copy(out, vm.stack)
	return out
}

// StackDepth returns the number of operands on the stack.
func (vm *VM) StackDepth() int { return len(vm.stack) }

// Peek returns the top of the stack without removing it.
func (vm *VM) Peek() (bytecode.Operand, bool) {
	if len(vm.stack) == 0 {
		return bytecode.Operand{}, false
	}
	return vm.stack[len(vm.stack)-1], true
}

// FrameDepth returns the number of live frames, including the base frame.
func (vm *VM) FrameDepth() int { return len(vm.frames) }

// CurrentFrame returns the innermost frame. Callers must treat it as
// read-only.
func (vm *VM) CurrentFrame() *Frame { return vm.frames[len(vm.frames)-1] }

// Locals returns a snapshot of the current frame's variables keyed by
// literal text.
func (vm *VM) Locals() map[string]bytecode.Operand { return vm.CurrentFrame().Vars() }
