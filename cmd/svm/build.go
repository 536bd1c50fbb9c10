package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ramyak-mehra/svm/manifest"
	"github.com/ramyak-mehra/svm/pkg/bytecode"
)

// handleBuildCommand processes the `svm build` subcommand.
// Usage:
//
//	svm build                    # [program] entry -> [program] image
//	svm build prog.svm           # prog.svmc
//	svm build -o out.svmc prog.svm
func handleBuildCommand(args []string, m *manifest.Manifest) int {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	output := fs.String("o", "", "Output image path")
	fs.Parse(args)

	src, err := programArg(fs, m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if isImage(src) {
		fmt.Fprintf(os.Stderr, "Error: %s is already an image\n", src)
		return 2
	}

	dst := *output
	if dst == "" {
		if fs.NArg() == 0 && m.ImagePath() != "" {
			dst = m.ImagePath()
		} else {
			dst = imagePathFor(src)
		}
	}

	prog, err := loadProgram(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	data, err := bytecode.MarshalProgram(prog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding image: %v\n", err)
		return 1
	}

	if dir := filepath.Dir(dst); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing image: %v\n", err)
		return 1
	}

	log.Infof("wrote %s (%d tokens, %d bytes)", dst, prog.Len(), len(data))
	fmt.Printf("%s -> %s\n", src, dst)
	return 0
}
