// Package runner drives a VM from outside the engine: it adds the step
// budget, cancellation and goroutine ownership that the VM itself does not
// provide.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tliron/commonlog"

	"github.com/ramyak-mehra/svm/vm"
)

// ErrBudgetExhausted is returned when a program is still running after
// Options.MaxSteps steps.
var ErrBudgetExhausted = errors.New("runner: step budget exhausted")

var log = commonlog.GetLogger("svm.runner")

// Options controls a run.
type Options struct {
	// MaxSteps bounds the number of steps executed by this call. Zero means
	// unbounded.
	MaxSteps int

	// CheckEvery is how many steps run between context checks. Zero uses
	// the default of 1024.
	CheckEvery int
}

// Stats summarizes a run.
type Stats struct {
	Steps   int // steps executed by this call
	Halted  bool
	Elapsed time.Duration
}

func (s Stats) String() string {
	state := "running"
	if s.Halted {
		state = "halted"
	}
	return fmt.Sprintf("%d steps, %s, %s", s.Steps, state, s.Elapsed)
}

// Run steps v until it halts, faults, exhausts the budget or ctx is done.
// A VM fault is returned unchanged; a panic inside the engine is returned
// as an error.
func Run(ctx context.Context, v *vm.VM, opts Options) (stats Stats, err error) {
	every := opts.CheckEvery
	if every <= 0 {
		every = 1024
	}

	start := time.Now()
	base := v.Steps()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("runner: panic at ip %d: %v", v.IP(), r)
		}
		stats.Steps = v.Steps() - base
		stats.Halted = v.Halted()
		stats.Elapsed = time.Since(start)
		if err != nil {
			log.Debugf("run stopped after %d steps: %s", stats.Steps, err)
		} else {
			log.Debugf("run finished: %s", stats)
		}
	}()

	for !v.Halted() {
		n := v.Steps() - base
		if opts.MaxSteps > 0 && n >= opts.MaxSteps {
			return stats, fmt.Errorf("%w after %d steps at ip %d", ErrBudgetExhausted, n, v.IP())
		}
		if n%every == 0 {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
		}
		if err := v.Step(); err != nil {
			return stats, err
		}
	}
	return stats, nil
}
