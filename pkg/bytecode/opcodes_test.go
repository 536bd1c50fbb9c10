package bytecode

import (
	"strings"
	"testing"
)

func TestAllOpcodesHaveMetadata(t *testing.T) {
	for _, op := range AllOpcodes() {
		info := GetOpcodeInfo(op)
		if info.Name == "" || strings.HasPrefix(info.Name, "UNKNOWN") {
			t.Errorf("Opcode 0x%02X has no metadata", byte(op))
		}
	}
}

func TestOpcodeCount(t *testing.T) {
	if got := len(AllOpcodes()); got != 21 {
		t.Errorf("len(AllOpcodes()) = %d, want 21", got)
	}
}

func TestOpcodeNumbering(t *testing.T) {
	// The image format depends on these values.
	order := []Opcode{
		OpHalt, OpPush, OpPop, OpDup, OpAdd, OpSub, OpMul, OpDiv, OpNot, OpAnd, OpOr,
		OpIseq, OpIsgt, OpIsge, OpJmp, OpJif, OpLoad, OpStore, OpCall, OpRet, OpWrite,
	}
	for i, op := range order {
		if int(op) != i {
			t.Errorf("%s = %d, want %d", op, op, i)
		}
	}
	all := AllOpcodes()
	for i := range all {
		if all[i] != order[i] {
			t.Errorf("AllOpcodes()[%d] = %s, want %s", i, all[i], order[i])
		}
	}
}

func TestOpcodeString(t *testing.T) {
	tests := []struct {
		op   Opcode
		want string
	}{
		{OpHalt, "HALT"},
		{OpPush, "PUSH"},
		{OpIsge, "ISGE"},
		{OpJif, "JIF"},
		{OpStore, "STORE"},
		{OpWrite, "WRITE"},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Opcode(0x%02X).String() = %q, want %q", byte(tt.op), got, tt.want)
		}
	}
}

func TestUnknownOpcodeString(t *testing.T) {
	op := Opcode(0xEE)
	if got := op.String(); !strings.HasPrefix(got, "UNKNOWN") {
		t.Errorf("Unknown opcode should return UNKNOWN, got %q", got)
	}
	if op.Valid() {
		t.Error("Opcode(0xEE).Valid() = true")
	}
}

func TestOpcodeImmediates(t *testing.T) {
	withImmediate := map[Opcode]bool{
		OpPush: true, OpJmp: true, OpJif: true, OpLoad: true, OpStore: true, OpCall: true,
	}
	for _, op := range AllOpcodes() {
		want := 0
		if withImmediate[op] {
			want = 1
		}
		if got := op.Immediates(); got != want {
			t.Errorf("%s.Immediates() = %d, want %d", op, got, want)
		}
	}
}

func TestLookupOpcode(t *testing.T) {
	for _, op := range AllOpcodes() {
		for _, name := range []string{op.String(), strings.ToLower(op.String())} {
			got, ok := LookupOpcode(name)
			if !ok || got != op {
				t.Errorf("LookupOpcode(%q) = %s, %v", name, got, ok)
			}
		}
	}
	if _, ok := LookupOpcode("nop"); ok {
		t.Error("LookupOpcode(nop) should fail")
	}
}

func TestOpcodeCategories(t *testing.T) {
	for _, op := range []Opcode{OpAdd, OpSub, OpMul, OpDiv, OpAnd, OpOr, OpIseq, OpIsgt, OpIsge} {
		if !op.IsBinary() {
			t.Errorf("%s.IsBinary() = false", op)
		}
		info := GetOpcodeInfo(op)
		if info.StackPop != 2 || info.StackPush != 1 {
			t.Errorf("%s stack effect = %d/%d, want 2/1", op, info.StackPop, info.StackPush)
		}
	}
	if OpNot.IsBinary() {
		t.Error("NOT is unary")
	}
	for _, op := range []Opcode{OpJmp, OpJif, OpCall} {
		if !op.IsJump() {
			t.Errorf("%s.IsJump() = false", op)
		}
	}
	if OpRet.IsJump() {
		t.Error("RET takes no address")
	}
}
