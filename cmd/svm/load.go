package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ramyak-mehra/svm/pkg/asm"
	"github.com/ramyak-mehra/svm/pkg/bytecode"
)

const (
	sourceExt = ".svm"
	imageExt  = ".svmc"
)

// loadProgram reads a program, picking the loader by extension: .svmc is a
// binary image, anything else is assembly source.
func loadProgram(path string) (*bytecode.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var p *bytecode.Program
	if isImage(path) {
		p, err = bytecode.UnmarshalProgram(data)
	} else {
		p, err = asm.Assemble(string(data))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Debugf("loaded %s: %d tokens", path, p.Len())
	return p, nil
}

func isImage(path string) bool {
	return strings.EqualFold(filepath.Ext(path), imageExt)
}

// imagePathFor derives the default build output for a source file.
func imagePathFor(src string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + imageExt
}
