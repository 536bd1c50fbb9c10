package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ramyak-mehra/svm/pkg/asm"
)

// handleDisCommand processes the `svm dis` subcommand. With -asm the
// program is printed as assembly source that `svm build` accepts.
func handleDisCommand(args []string) int {
	fs := flag.NewFlagSet("dis", flag.ExitOnError)
	asSource := fs.Bool("asm", false, "Print reassemblable source instead of a listing")
	fs.Parse(args)

	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: dis requires at least one program")
		return 2
	}

	code := 0
	for _, path := range fs.Args() {
		prog, err := loadProgram(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			code = 1
			continue
		}
		if *asSource {
			fmt.Print(asm.Format(prog))
		} else {
			fmt.Print(prog.DisassembleWithName(filepath.Base(path)))
		}
	}
	return code
}
