package runner

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ramyak-mehra/svm/vm"
)

// ErrWorkerStopped is returned by Do after Stop.
var ErrWorkerStopped = errors.New("runner: worker stopped")

// request is a unit of work executed on the worker goroutine.
type request struct {
	fn   func(*vm.VM) (any, error)
	done chan result
}

type result struct {
	value any
	err   error
}

// Worker serializes all access to one VM through a single goroutine. The VM
// is not safe for concurrent use; a debugger or any other goroutine that
// wants to step or inspect it goes through Do.
type Worker struct {
	vm       *vm.VM
	requests chan request
	quit     chan struct{}
	stopOnce sync.Once
}

// NewWorker creates a Worker and starts its goroutine.
func NewWorker(v *vm.VM) *Worker {
	w := &Worker{
		vm:       v,
		requests: make(chan request, 16),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn on the VM, converting a panic into an error.
func (w *Worker) execute(fn func(*vm.VM) (any, error)) (res result) {
	defer func() {
		if r := recover(); r != nil {
			res.err = fmt.Errorf("runner: panic: %v", r)
		}
	}()
	res.value, res.err = fn(w.vm)
	return res
}

// Do runs fn on the worker goroutine and blocks until it completes.
func (w *Worker) Do(fn func(*vm.VM) (any, error)) (any, error) {
	select {
	case <-w.quit:
		return nil, ErrWorkerStopped
	default:
	}

	req := request{fn: fn, done: make(chan result, 1)}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, ErrWorkerStopped
	}
	select {
	case res := <-req.done:
		return res.value, res.err
	case <-w.quit:
		return nil, ErrWorkerStopped
	}
}

// Step executes one step on the worker goroutine.
func (w *Worker) Step() error {
	_, err := w.Do(func(v *vm.VM) (any, error) {
		return nil, v.Step()
	})
	return err
}

// Stop shuts down the worker goroutine. It is safe to call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
}
