// Package manifest handles svm.toml project configuration.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the manifest file looked up by Load and FindAndLoad.
const FileName = "svm.toml"

// DefaultMaxFrames is the call depth limit used when run.max-frames is absent.
const DefaultMaxFrames = 1024

// ErrInvalid wraps manifest validation failures.
var ErrInvalid = errors.New("invalid manifest")

// Manifest represents an svm.toml project configuration.
type Manifest struct {
	Project Project     `toml:"project"`
	Program Program     `toml:"program"`
	Run     RunConfig   `toml:"run"`
	Log     LogConfig   `toml:"log"`
	Trace   TraceConfig `toml:"trace"`

	// Dir is the directory containing the svm.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Program locates the program to run.
type Program struct {
	Entry string `toml:"entry"` // .svm or .svmc file
	Image string `toml:"image"` // output of `svm build`
}

// RunConfig bounds execution.
type RunConfig struct {
	MaxSteps  int `toml:"max-steps"`  // 0 = unbounded
	MaxFrames int `toml:"max-frames"` // 0 = unbounded
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// TraceConfig configures the SQLite trace store.
type TraceConfig struct {
	Enabled bool   `toml:"enabled"`
	DB      string `toml:"db"`
}

// Default returns the configuration used when no svm.toml exists.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults(func(...string) bool { return false })
	return m
}

// applyDefaults fills unset fields. defined reports whether a key was
// present in the file, so an explicit max-frames = 0 stays unbounded.
func (m *Manifest) applyDefaults(defined func(key ...string) bool) {
	if !defined("run", "max-frames") {
		m.Run.MaxFrames = DefaultMaxFrames
	}
	if m.Trace.DB == "" {
		m.Trace.DB = filepath.Join(".svm", "trace.db")
	}
	if m.Program.Image == "" && m.Program.Entry != "" {
		m.Program.Image = strings.TrimSuffix(m.Program.Entry, filepath.Ext(m.Program.Entry)) + ".svmc"
	}
}

// Validate checks value ranges.
func (m *Manifest) Validate() error {
	if m.Run.MaxSteps < 0 {
		return fmt.Errorf("%w: run.max-steps must not be negative", ErrInvalid)
	}
	if m.Run.MaxFrames < 0 {
		return fmt.Errorf("%w: run.max-frames must not be negative", ErrInvalid)
	}
	if m.Log.Verbosity < -4 || m.Log.Verbosity > 2 {
		return fmt.Errorf("%w: log.verbosity must be between -4 and 2", ErrInvalid)
	}
	return nil
}

// Load parses an svm.toml file from the given directory. Unknown keys are
// rejected.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: unknown keys in %s: %s", ErrInvalid, path, strings.Join(keys, ", "))
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults(md.IsDefined)
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find an svm.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// resolve makes p absolute relative to the manifest directory.
func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// EntryPath returns the absolute path of the entry program, or "".
func (m *Manifest) EntryPath() string { return m.resolve(m.Program.Entry) }

// ImagePath returns the absolute path `svm build` writes to, or "".
func (m *Manifest) ImagePath() string { return m.resolve(m.Program.Image) }

// TraceDBPath returns the absolute path of the trace database.
func (m *Manifest) TraceDBPath() string { return m.resolve(m.Trace.DB) }

// LogPath returns the log file path for commonlog.Configure, or nil for
// stderr.
func (m *Manifest) LogPath() *string {
	if m.Log.File == "" {
		return nil
	}
	p := m.resolve(m.Log.File)
	return &p
}
