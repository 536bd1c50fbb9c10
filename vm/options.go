package vm

import (
	"io"

	"github.com/tliron/commonlog"
)

// Option configures a VM.
type Option func(*VM)

// WithOutput sets the sink written by WRITE. The default discards output.
func WithOutput(w io.Writer) Option {
	return func(vm *VM) {
		if w != nil {
			vm.out = w
		}
	}
}

// WithTracer installs a tracer called after every step.
func WithTracer(t Tracer) Option {
	return func(vm *VM) {
		vm.tracer = t
	}
}

// WithLogger replaces the default "svm.vm" logger.
func WithLogger(log commonlog.Logger) Option {
	return func(vm *VM) {
		if log != nil {
			vm.log = log
		}
	}
}

// WithMaxFrames limits call depth, counting the base frame. Zero means
// unlimited.
func WithMaxFrames(n int) Option {
	return func(vm *VM) {
		if n > 0 {
			vm.maxFrames = n
		}
	}
}
