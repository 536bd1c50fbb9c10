package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ramyak-mehra/svm/manifest"
	"github.com/ramyak-mehra/svm/runner"
	"github.com/ramyak-mehra/svm/vm"
)

// handleDebugCommand processes the `svm debug` subcommand.
func handleDebugCommand(args []string, m *manifest.Manifest) int {
	fs := flag.NewFlagSet("debug", flag.ExitOnError)
	maxSteps := fs.Int("max-steps", m.Run.MaxSteps, "Step budget for each continue (0 = unbounded)")
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

	// Program output goes to stderr so it does not interleave with the
	// debugger's own listing on stdout.
	w := runner.NewWorker(vm.New(prog, vm.WithOutput(os.Stderr), vm.WithMaxFrames(m.Run.MaxFrames)))
	defer w.Stop()

	fmt.Printf("svm debugger: %s (%d tokens). Type 'help' for commands.\n", path, prog.Len())
	d := &debugger{worker: w, out: os.Stdout, maxSteps: *maxSteps}
	d.loop(os.Stdin)
	return 0
}

type debugger struct {
	worker   *runner.Worker
	out      io.Writer
	maxSteps int
}

// loop reads commands until EOF or quit.
func (d *debugger) loop(in io.Reader) {
	scanner := bufio.NewScanner(in)
	d.showNext()
	for {
		fmt.Fprint(d.out, "(svm) ")
		if !scanner.Scan() {
			fmt.Fprintln(d.out)
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if !d.handle(fields[0], fields[1:]) {
			return
		}
	}
}

// handle runs one debugger command and reports whether to keep going.
func (d *debugger) handle(cmd string, args []string) bool {
	switch cmd {
	case "s", "step":
		n := 1
		if len(args) > 0 {
			v, err := strconv.Atoi(args[0])
			if err != nil || v < 1 {
				fmt.Fprintf(d.out, "invalid step count %q\n", args[0])
				return true
			}
			n = v
		}
		d.step(n)
	case "c", "continue":
		d.cont()
	case "stack":
		d.inspect(func(v *vm.VM) { fmt.Fprintln(d.out, formatStack(v)) })
	case "locals":
		d.inspect(d.printLocals)
	case "ip":
		d.inspect(func(v *vm.VM) {
			fmt.Fprintf(d.out, "ip=%d frames=%d steps=%d halted=%t\n", v.IP(), v.FrameDepth(), v.Steps(), v.Halted())
		})
	case "dis":
		d.inspect(d.printListing)
	case "q", "quit", "exit":
		return false
	case "h", "help":
		fmt.Fprintln(d.out, "Commands:")
		fmt.Fprintln(d.out, "  s, step [n]     Execute n steps (default 1)")
		fmt.Fprintln(d.out, "  c, continue     Run until halt, fault or step budget")
		fmt.Fprintln(d.out, "  stack           Show the operand stack, bottom first")
		fmt.Fprintln(d.out, "  locals          Show the current frame's variables")
		fmt.Fprintln(d.out, "  ip              Show ip, frame depth and step count")
		fmt.Fprintln(d.out, "  dis             Disassemble with the current ip marked")
		fmt.Fprintln(d.out, "  q, quit         Leave the debugger")
	default:
		fmt.Fprintf(d.out, "unknown command %q (try 'help')\n", cmd)
	}
	return true
}

func (d *debugger) step(n int) {
	for i := 0; i < n; i++ {
		done, err := d.worker.Do(func(v *vm.VM) (any, error) {
			if v.Halted() {
				return true, nil
			}
			return false, v.Step()
		})
		if err != nil {
			fmt.Fprintf(d.out, "fault: %v\n", err)
			return
		}
		if done.(bool) {
			fmt.Fprintln(d.out, "halted")
			return
		}
	}
	d.showNext()
}

func (d *debugger) cont() {
	res, err := d.worker.Do(func(v *vm.VM) (any, error) {
		return runner.Run(context.Background(), v, runner.Options{MaxSteps: d.maxSteps})
	})
	if stats, ok := res.(runner.Stats); ok {
		fmt.Fprintf(d.out, "%s\n", stats)
	}
	if err != nil {
		fmt.Fprintf(d.out, "stopped: %v\n", err)
		return
	}
	d.showNext()
}

// showNext prints the instruction at ip, or the final state.
func (d *debugger) showNext() {
	d.inspect(func(v *vm.VM) {
		switch {
		case v.Halted():
			fmt.Fprintf(d.out, "halted at %04d\n", v.IP())
		case v.IP() >= v.Program().Len():
			fmt.Fprintf(d.out, "%04d  <end of program>\n", v.IP())
		default:
			fmt.Fprintf(d.out, "%04d  %s\n", v.IP(), v.Program().DisassembleInstruction(v.IP()))
		}
	})
}

func (d *debugger) inspect(fn func(*vm.VM)) {
	if _, err := d.worker.Do(func(v *vm.VM) (any, error) {
		fn(v)
		return nil, nil
	}); err != nil {
		fmt.Fprintf(d.out, "error: %v\n", err)
	}
}

func (d *debugger) printLocals(v *vm.VM) {
	locals := v.Locals()
	if len(locals) == 0 {
		fmt.Fprintln(d.out, "(no locals)")
		return
	}
	keys := make([]string, 0, len(locals))
	for k := range locals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(d.out, "%s = %s\n", k, locals[k].Literal())
	}
}

func (d *debugger) printListing(v *vm.VM) {
	for _, line := range v.Program().DisassembleToLines() {
		marker := "  "
		if addr, err := strconv.Atoi(strings.Fields(line)[0]); err == nil && addr == v.IP() {
			marker = "=>"
		}
		fmt.Fprintf(d.out, "%s %s\n", marker, line)
	}
}
