package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/ramyak-mehra/svm/scenario"
)

// handleCheckCommand processes the `svm check` subcommand: it runs every
// scenario in the given YAML files and exits non-zero if any fails.
func handleCheckCommand(args []string) int {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	verbose := fs.Bool("v", false, "List passing scenarios too")
	fs.Parse(args)

	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: check requires at least one scenario file")
		return 2
	}

	ctx := context.Background()
	passed, failed := 0, 0
	for _, path := range fs.Args() {
		scenarios, err := scenario.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}

		for _, s := range scenarios {
			err := s.Check(ctx)
			if err == nil {
				passed++
				if *verbose {
					fmt.Printf("ok    %s\n", s.Name)
				}
				continue
			}

			failed++
			var f *scenario.Failure
			if errors.As(err, &f) {
				fmt.Printf("FAIL  %s\n", s.Name)
				for _, m := range f.Mismatches {
					fmt.Printf("      %s\n", m)
				}
			} else {
				fmt.Printf("FAIL  %s: %v\n", s.Name, err)
			}
		}
	}

	fmt.Printf("%d passed, %d failed\n", passed, failed)
	if failed > 0 {
		return 1
	}
	return 0
}
