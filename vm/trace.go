package vm

import "github.com/ramyak-mehra/svm/pkg/bytecode"

// StepEvent describes one executed dispatch cycle.
type StepEvent struct {
	Seq        int              // 1-based step number
	IP         int              // address the step started at
	Op         string           // mnemonic, empty if no instruction was decoded
	NextIP     int              // ip after the step
	StackDepth int              // operand stack depth after the step
	FrameDepth int              // live frames after the step
	Top        bytecode.Operand // top of stack after the step, Null if empty
	Err        error            // fault raised by the step, if any
}

// Tracer observes execution. TraceStep runs synchronously on the stepping
// goroutine, after the step's effects are applied.
type Tracer interface {
	TraceStep(ev StepEvent)
}

// TracerFunc adapts a function to Tracer.
type TracerFunc func(StepEvent)

func (f TracerFunc) TraceStep(ev StepEvent) { f(ev) }
