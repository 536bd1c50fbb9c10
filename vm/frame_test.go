package vm

import (
	"testing"

	"github.com/ramyak-mehra/svm/pkg/bytecode"
)

func TestFrameGetSet(t *testing.T) {
	f := NewFrame(7)
	if f.ReturnAddress() != 7 {
		t.Errorf("ReturnAddress() = %d, want 7", f.ReturnAddress())
	}

	if got := f.Get(bytecode.Str("missing")); !got.IsNull() {
		t.Errorf("missing key = %s, want null", got)
	}

	f.Set(bytecode.Str("a"), bytecode.Int(1))
	f.Set(bytecode.Str("a"), bytecode.Int(2))
	f.Set(bytecode.Int(1), bytecode.Str("one"))

	if got := f.Get(bytecode.Str("a")); got != bytecode.Int(2) {
		t.Errorf("a = %s, want 2", got)
	}
	if got := f.Get(bytecode.Str("1")); !got.IsNull() {
		t.Errorf(`Str("1") should not alias Int(1), got %s`, got)
	}
	if f.Len() != 2 {
		t.Errorf("Len() = %d, want 2", f.Len())
	}
}

func TestFrameSnapshots(t *testing.T) {
	f := NewFrame(0)
	f.Set(bytecode.Str("x"), bytecode.Float(1.5))
	f.Set(bytecode.Int(3), bytecode.Bool(true))

	vals := f.Values()
	if len(vals) != 2 {
		t.Fatalf("Values() has %d entries, want 2", len(vals))
	}

	vars := f.Vars()
	if vars[`"x"`] != bytecode.Float(1.5) {
		t.Errorf(`Vars()["\"x\""] = %s`, vars[`"x"`])
	}
	if vars["3"] != bytecode.Bool(true) {
		t.Errorf(`Vars()["3"] = %s`, vars["3"])
	}

	vars["y"] = bytecode.Int(0)
	if f.Len() != 2 {
		t.Error("Vars() snapshot aliases the frame")
	}
}
