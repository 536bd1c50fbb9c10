// svm CLI - assembles, runs, disassembles and debugs svm programs
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/ramyak-mehra/svm/manifest"
)

var log = commonlog.GetLogger("svm.cli")

func main() {
	verbosity := flag.Int("v", 0, "Log verbosity (-4 to 2; 2 logs every step)")
	logFile := flag.String("log", "", "Write logs to this file instead of stderr")
	noManifest := flag.Bool("no-manifest", false, "Ignore svm.toml")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: svm [options] <command> [args]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  run [flags] [file]      Run a .svm or .svmc program (default: [program] entry)\n")
		fmt.Fprintf(os.Stderr, "  build [-o out] [file]   Assemble a .svm file into a .svmc image\n")
		fmt.Fprintf(os.Stderr, "  dis <file>              Disassemble a program\n")
		fmt.Fprintf(os.Stderr, "  check <file.yaml>...    Run conformance scenarios\n")
		fmt.Fprintf(os.Stderr, "  debug [file]            Step through a program interactively\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  svm prog.svm                     # Same as svm run prog.svm\n")
		fmt.Fprintf(os.Stderr, "  svm run -max-steps 1000 prog.svm # Stop runaway programs\n")
		fmt.Fprintf(os.Stderr, "  svm run -trace prog.svm          # Record every step in the trace database\n")
		fmt.Fprintf(os.Stderr, "  svm -v 2 run prog.svm            # Log every step\n")
	}
	flag.Parse()

	m := manifest.Default()
	if !*noManifest {
		found, err := manifest.FindAndLoad(".")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading manifest: %v\n", err)
			os.Exit(1)
		}
		if found != nil {
			m = found
		}
	}

	if err := overrideManifest(m, flag.CommandLine, *verbosity, *logFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	commonlog.Configure(m.Log.Verbosity, m.LogPath())
	if m.Dir != "" {
		log.Debugf("using manifest %s", m.Dir)
	}

	args := flag.Args()
	if len(args) == 0 {
		if m.Program.Entry == "" {
			flag.Usage()
			os.Exit(2)
		}
		args = []string{"run"}
	}

	var code int
	switch args[0] {
	case "run":
		code = handleRunCommand(args[1:], m)
	case "build":
		code = handleBuildCommand(args[1:], m)
	case "dis":
		code = handleDisCommand(args[1:])
	case "check":
		code = handleCheckCommand(args[1:])
	case "debug":
		code = handleDebugCommand(args[1:], m)
	case "help":
		flag.Usage()
	default:
		if _, err := os.Stat(args[0]); err == nil {
			code = handleRunCommand(args, m)
		} else {
			fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", args[0])
			code = 2
		}
	}

	os.Exit(code)
}

// overrideManifest applies the global flags that were set explicitly on top
// of the manifest and validates the result.
func overrideManifest(m *manifest.Manifest, fs *flag.FlagSet, verbosity int, logFile string) error {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "v":
			m.Log.Verbosity = verbosity
		case "log":
			m.Log.File = logFile
		}
	})
	return m.Validate()
}

// programArg returns the single file argument, or the manifest entry when
// none is given.
func programArg(fs *flag.FlagSet, m *manifest.Manifest) (string, error) {
	switch fs.NArg() {
	case 0:
		if p := m.EntryPath(); p != "" {
			return p, nil
		}
		return "", fmt.Errorf("no program given and no [program] entry in %s", manifest.FileName)
	case 1:
		return fs.Arg(0), nil
	}
	return "", fmt.Errorf("expected one program, got %d", fs.NArg())
}
