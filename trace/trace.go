// Package trace provides vm.Tracer implementations: a structured step
// logger, a SQLite-backed step recorder and a fan-out combinator.
package trace

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/ramyak-mehra/svm/vm"
)

// LogTracer writes one log line per step at Debug level.
type LogTracer struct {
	log commonlog.Logger
}

// NewLogTracer returns a tracer writing to log, or to the "svm.trace"
// logger when log is nil.
func NewLogTracer(log commonlog.Logger) *LogTracer {
	if log == nil {
		log = commonlog.GetLogger("svm.trace")
	}
	return &LogTracer{log: log}
}

func (t *LogTracer) TraceStep(ev vm.StepEvent) {
	if !t.log.AllowLevel(commonlog.Debug) {
		return
	}
	t.log.Debug(FormatStep(ev))
}

// FormatStep renders a step event as a single line.
func FormatStep(ev vm.StepEvent) string {
	op := ev.Op
	if op == "" {
		op = "?"
	}
	line := fmt.Sprintf("#%d %04d %-5s -> %04d stack=%d frames=%d", ev.Seq, ev.IP, op, ev.NextIP, ev.StackDepth, ev.FrameDepth)
	if ev.StackDepth > 0 {
		line += " top=" + ev.Top.Literal()
	}
	if ev.Err != nil {
		line += " error=" + ev.Err.Error()
	}
	return line
}

// Multi fans each event out to several tracers in order.
type Multi []vm.Tracer

func (m Multi) TraceStep(ev vm.StepEvent) {
	for _, t := range m {
		t.TraceStep(ev)
	}
}

// Combine returns a tracer for the non-nil arguments, or nil if there are
// none.
func Combine(tracers ...vm.Tracer) vm.Tracer {
	var m Multi
	for _, t := range tracers {
		if t != nil {
			m = append(m, t)
		}
	}
	switch len(m) {
	case 0:
		return nil
	case 1:
		return m[0]
	}
	return m
}
