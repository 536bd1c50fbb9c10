package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ramyak-mehra/svm/pkg/bytecode"
)

func TestLoadProgramSourceAndImage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "prog.svm")
	if err := os.WriteFile(src, []byte("push 1 push 2 add halt\n"), 0644); err != nil {
		t.Fatal(err)
	}

	fromSource, err := loadProgram(src)
	if err != nil {
		t.Fatalf("loadProgram(source): %v", err)
	}
	if fromSource.Len() != 6 {
		t.Errorf("Len() = %d, want 6", fromSource.Len())
	}

	data, err := bytecode.MarshalProgram(fromSource)
	if err != nil {
		t.Fatalf("MarshalProgram: %v", err)
	}
	img := imagePathFor(src)
	if img != filepath.Join(dir, "prog.svmc") {
		t.Errorf("imagePathFor = %q", img)
	}
	if err := os.WriteFile(img, data, 0644); err != nil {
		t.Fatal(err)
	}

	fromImage, err := loadProgram(img)
	if err != nil {
		t.Fatalf("loadProgram(image): %v", err)
	}
	if !fromImage.Equal(fromSource) {
		t.Error("image does not match source program")
	}
}

func TestLoadProgramErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := loadProgram(filepath.Join(dir, "missing.svm")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.svm")
	os.WriteFile(bad, []byte("push 1 jmp nowhere\n"), 0644)
	if _, err := loadProgram(bad); err == nil {
		t.Error("expected assembly error")
	}

	junk := filepath.Join(dir, "junk.SVMC")
	os.WriteFile(junk, []byte("not cbor"), 0644)
	if !isImage(junk) {
		t.Error("isImage should ignore extension case")
	}
	if _, err := loadProgram(junk); err == nil {
		t.Error("expected decode error")
	}
}
