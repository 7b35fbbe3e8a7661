// Package manifest handles ampvm.toml run configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents an ampvm.toml run configuration.
type Manifest struct {
	Program Program `toml:"program"`
	Amplify Amplify `toml:"amplify"`
	Search  Search  `toml:"search"`
	Ledger  Ledger  `toml:"ledger"`

	// Dir is the directory containing the ampvm.toml file (set at load time).
	Dir string `toml:"-"`
}

// Program locates the program to run: a file of comma-separated integers or
// inline source text. Exactly one of the two must be set.
type Program struct {
	Path   string `toml:"path"`
	Source string `toml:"source"`
}

// Amplify configures the amplifier pipeline search.
type Amplify struct {
	Phases   []int64 `toml:"phases"`
	Feedback bool    `toml:"feedback"`
}

// Search configures the noun/verb configuration search. Target is a pointer
// so a configured target of zero is distinguishable from no target at all.
type Search struct {
	Target *int64 `toml:"target"`
}

// Ledger configures where completed runs are recorded.
type Ledger struct {
	Path string `toml:"path"`
}

// Load parses an ampvm.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "ampvm.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if m.Program.Path == "" && m.Program.Source == "" {
		return fmt.Errorf("program needs either path or source")
	}
	if m.Program.Path != "" && m.Program.Source != "" {
		return fmt.Errorf("program path and source are mutually exclusive")
	}
	for _, p := range m.Amplify.Phases {
		if p < 0 {
			return fmt.Errorf("negative phase setting %d", p)
		}
	}
	return nil
}

// ProgramText returns the program source, reading the configured file if the
// manifest does not carry inline source.
func (m *Manifest) ProgramText() (string, error) {
	if m.Program.Source != "" {
		return m.Program.Source, nil
	}
	path := m.Program.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.Dir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("cannot read program %s: %w", path, err)
	}
	return string(data), nil
}

// LedgerPath returns the absolute path of the run ledger, or "" when no
// ledger is configured.
func (m *Manifest) LedgerPath() string {
	if m.Ledger.Path == "" {
		return ""
	}
	if filepath.IsAbs(m.Ledger.Path) {
		return m.Ledger.Path
	}
	return filepath.Join(m.Dir, m.Ledger.Path)
}
