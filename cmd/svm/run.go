package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/ramyak-mehra/svm/manifest"
	"github.com/ramyak-mehra/svm/runner"
	"github.com/ramyak-mehra/svm/trace"
	"github.com/ramyak-mehra/svm/vm"
)

// handleRunCommand processes the `svm run` subcommand.
// Usage:
//
//	svm run prog.svm
//	svm run -max-steps 1000 -print-stack prog.svmc
//	svm run -trace -trace-db runs.db prog.svm
func handleRunCommand(args []string, m *manifest.Manifest) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	maxSteps := fs.Int("max-steps", m.Run.MaxSteps, "Stop after this many steps (0 = unbounded)")
	maxFrames := fs.Int("max-frames", m.Run.MaxFrames, "Call depth limit (0 = unbounded)")
	traceOn := fs.Bool("trace", m.Trace.Enabled, "Record every step in the trace database")
	traceDB := fs.String("trace-db", m.TraceDBPath(), "Trace database path")
	printStack := fs.Bool("print-stack", false, "Print the final operand stack")
	showStats := fs.Bool("stats", false, "Print step count and elapsed time")
	fs.Parse(args)

	path, err := programArg(fs, m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	prog, err := loadProgram(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	var tracers []vm.Tracer
	if log.AllowLevel(commonlog.Debug) {
		tracers = append(tracers, trace.NewLogTracer(nil))
	}
	var rec *trace.Run
	if *traceOn {
		store, err := trace.Open(*traceDB)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		defer store.Close()
		if rec, err = store.Begin(filepath.Base(path)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		tracers = append(tracers, rec)
	}

	machine := vm.New(prog,
		vm.WithOutput(out),
		vm.WithMaxFrames(*maxFrames),
		vm.WithTracer(trace.Combine(tracers...)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	stats, runErr := runner.Run(ctx, machine, runner.Options{MaxSteps: *maxSteps})
	out.Flush()

	if rec != nil {
		if err := rec.Finish(machine.Halted(), runErr); err != nil {
			log.Errorf("saving trace: %s", err)
		} else {
			fmt.Fprintf(os.Stderr, "trace run %s saved to %s\n", rec.ID, *traceDB)
		}
	}

	if *printStack {
		fmt.Fprintln(out, formatStack(machine))
	}
	if *showStats {
		fmt.Fprintf(os.Stderr, "%s\n", stats)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		return 1
	}
	return 0
}

// formatStack renders the operand stack bottom first in literal syntax.
func formatStack(machine *vm.VM) string {
	stack := machine.Stack()
	parts := make([]string, len(stack))
	for i, o := range stack {
		parts[i] = o.Literal()
	}
	return "[" + strings.Join(parts, " ") + "]"
}
