package vm

import (
	"errors"
	"fmt"
	"io"

	"github.com/tliron/commonlog"

	"github.com/ramyak-mehra/svm/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Fetch
// ---------------------------------------------------------------------------

func (vm *VM) fault(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, IP: vm.cur, Op: vm.curOp, Err: err}
}

// next fetches program[ip] and advances ip.
func (vm *VM) next() (bytecode.Value, error) {
	v, ok := vm.program.At(vm.ip)
	if !ok {
		return bytecode.Value{}, vm.fault(ProgramOutOfBounds,
			fmt.Errorf("fetch at %d, program length %d", vm.ip, vm.program.Len()))
	}
	vm.ip++
	return v, nil
}

// immediate fetches the data token following the current opcode.
func (vm *VM) immediate() (bytecode.Operand, error) {
	at := vm.ip
	v, err := vm.next()
	if err != nil {
		return bytecode.Operand{}, err
	}
	o, err := v.Data()
	if err != nil {
		return bytecode.Operand{}, vm.fault(InvalidProgramShape, fmt.Errorf("immediate at %04d: %w", at, err))
	}
	return o, nil
}

// key fetches an immediate naming a frame variable.
func (vm *VM) key() (bytecode.Operand, error) {
	k, err := vm.immediate()
	if err != nil {
		return k, err
	}
	if !k.IsKey() {
		return k, vm.fault(TypeMismatch, fmt.Errorf("%w: variable key must be int or str, got %s",
			bytecode.ErrTypeMismatch, k.Kind()))
	}
	return k, nil
}

// ---------------------------------------------------------------------------
// Stack helpers
// ---------------------------------------------------------------------------

func (vm *VM) push(o bytecode.Operand) {
	vm.stack = append(vm.stack, o)
}

func (vm *VM) need(n int) error {
	if len(vm.stack) < n {
		return vm.fault(StackUnderflow, fmt.Errorf("need %d, have %d", n, len(vm.stack)))
	}
	return nil
}

func (vm *VM) pop() (bytecode.Operand, error) {
	if err := vm.need(1); err != nil {
		return bytecode.Operand{}, err
	}
	top := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return top, nil
}

// ---------------------------------------------------------------------------
// Dispatch
// ---------------------------------------------------------------------------

func (vm *VM) execute() error {
	v, err := vm.next()
	if err != nil {
		return err
	}
	op, ok := v.Opcode()
	if !ok {
		return vm.fault(InvalidProgramShape, fmt.Errorf("data %s in opcode position", v))
	}
	vm.curOp = op.String()

	if op.IsBinary() {
		return vm.binary(op)
	}

	switch op {
	case bytecode.OpHalt:
		vm.halted = true
		if vm.log.AllowLevel(commonlog.Debug) {
			vm.log.Debugf("halt at %04d after %d steps", vm.cur, vm.steps+1)
		}
		return nil

	case bytecode.OpPush:
		o, err := vm.immediate()
		if err != nil {
			return err
		}
		vm.push(o)
		return nil

	case bytecode.OpPop:
		_, err := vm.pop()
		return err

	case bytecode.OpDup:
		top, err := vm.pop()
		if err != nil {
			return err
		}
		vm.push(top)
		vm.push(top)
		return nil

	case bytecode.OpNot:
		o, err := vm.pop()
		if err != nil {
			return err
		}
		r, err := o.Not()
		if err != nil {
			return vm.fault(TypeMismatch, err)
		}
		vm.push(r)
		return nil

	case bytecode.OpJmp:
		target, err := vm.jumpTarget()
		if err != nil {
			return err
		}
		vm.ip = target
		return nil

	case bytecode.OpJif:
		cond, err := vm.pop()
		if err != nil {
			return err
		}
		t, err := vm.immediate()
		if err != nil {
			return err
		}
		taken, err := cond.Truth()
		if err != nil {
			return vm.fault(TypeMismatch, err)
		}
		if !taken {
			return nil
		}
		target, err := t.Index()
		if err != nil {
			return vm.fault(InvalidJumpTarget, err)
		}
		vm.ip = target
		return nil

	case bytecode.OpLoad:
		k, err := vm.key()
		if err != nil {
			return err
		}
		vm.push(vm.CurrentFrame().Get(k))
		return nil

	case bytecode.OpStore:
		val, err := vm.pop()
		if err != nil {
			return err
		}
		k, err := vm.key()
		if err != nil {
			return err
		}
		vm.CurrentFrame().Set(k, val)
		return nil

	case bytecode.OpCall:
		return vm.call()

	case bytecode.OpRet:
		if len(vm.frames) <= 1 {
			return vm.fault(ReturnFromBaseFrame, nil)
		}
		f := vm.frames[len(vm.frames)-1]
		vm.frames[len(vm.frames)-1] = nil
		vm.frames = vm.frames[:len(vm.frames)-1]
		vm.ip = f.ReturnAddress()
		if vm.log.AllowLevel(commonlog.Debug) {
			vm.log.Debugf("ret to %04d, depth %d", vm.ip, len(vm.frames))
		}
		return nil

	case bytecode.OpWrite:
		top, ok := vm.Peek()
		if !ok {
			return vm.fault(StackUnderflow, errors.New("nothing to write"))
		}
		if _, err := io.WriteString(vm.out, top.String()+"\n"); err != nil {
			return vm.fault(OutputFailed, err)
		}
		return nil
	}

	return vm.fault(InvalidProgramShape, fmt.Errorf("unknown opcode %s", op))
}

func (vm *VM) binary(op bytecode.Opcode) error {
	if err := vm.need(2); err != nil {
		return err
	}
	right, _ := vm.pop()
	left, _ := vm.pop()

	var (
		r   bytecode.Operand
		err error
	)
	switch op {
	case bytecode.OpAdd:
		r, err = left.Add(right)
	case bytecode.OpSub:
		r, err = left.Sub(right)
	case bytecode.OpMul:
		r, err = left.Mul(right)
	case bytecode.OpDiv:
		r, err = left.Div(right)
	case bytecode.OpAnd:
		r, err = left.And(right)
	case bytecode.OpOr:
		r, err = left.Or(right)
	case bytecode.OpIseq:
		r = bytecode.Bool(left.Equal(right))
	case bytecode.OpIsgt:
		r, err = left.Greater(right)
	case bytecode.OpIsge:
		r, err = left.GreaterEqual(right)
	}
	if err != nil {
		if errors.Is(err, bytecode.ErrDivisionByZero) {
			return vm.fault(DivisionByZero, err)
		}
		return vm.fault(TypeMismatch, err)
	}
	vm.push(r)
	return nil
}

func (vm *VM) jumpTarget() (int, error) {
	t, err := vm.immediate()
	if err != nil {
		return 0, err
	}
	target, err := t.Index()
	if err != nil {
		return 0, vm.fault(InvalidJumpTarget, err)
	}
	return target, nil
}

func (vm *VM) call() error {
	t, err := vm.immediate()
	if err != nil {
		return err
	}
	addr, ok := t.AsInt()
	if !ok {
		return vm.fault(InvalidCallTarget, fmt.Errorf("%w: address is %s", bytecode.ErrNotIndex, t.Kind()))
	}
	if addr <= 0 || addr >= int64(vm.program.Len()) {
		return vm.fault(InvalidCallTarget, fmt.Errorf("address %d outside (0, %d)", addr, vm.program.Len()))
	}
	if vm.maxFrames > 0 && len(vm.frames) >= vm.maxFrames {
		return vm.fault(FrameOverflow, fmt.Errorf("depth limit %d", vm.maxFrames))
	}

	vm.frames = append(vm.frames, NewFrame(vm.ip))
	vm.ip = int(addr)
	if vm.log.AllowLevel(commonlog.Debug) {
		vm.log.Debugf("call %04d from %04d, depth %d", addr, vm.cur, len(vm.frames))
	}
	return nil
}
