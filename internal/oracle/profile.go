package oracle

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profile is the oracle-specific classification table: which exit codes and
// output markers count as crash-like, and where the tool usually lives.
// Alternate oracles are substituted by pointing ORACLE_PROFILE at a YAML
// file; classification logic itself never changes.
type Profile struct {
	IntegrityArgs   []string `yaml:"integrity_args"`
	FatalExitCodes  []int    `yaml:"fatal_exit_codes"`
	OOMExitCodes    []int    `yaml:"oom_exit_codes"`
	CrashIndicators []string `yaml:"crash_indicators"`
	ToolNames       []string `yaml:"tool_names"`
	ToolCandidates  []string `yaml:"tool_candidates"`
}

// DefaultProfile describes 7-Zip: exit 0 is OK, 1 is warning, 2 is fatal
// error, 7 is command line error, 8 is not enough memory.
func DefaultProfile() *Profile {
	return &Profile{
		IntegrityArgs:  []string{"t"},
		FatalExitCodes: []int{2},
		OOMExitCodes:   []int{8},
		CrashIndicators: []string{
			"Exception",
			"Access violation",
			"Segmentation fault",
			"CRASH",
			"Stack overflow",
			"Heap corruption",
			"Fatal error",
			"Internal error",
		},
		ToolNames: []string{"7z", "7zz", "7za"},
		ToolCandidates: []string{
			"/usr/bin/7z",
			"/usr/local/bin/7z",
			"/usr/bin/7zz",
			"/usr/lib/p7zip/7z",
			`C:\Program Files\7-Zip\7z.exe`,
			`C:\Program Files (x86)\7-Zip\7z.exe`,
			`C:\Program Files\7-Zip\7zG.exe`,
			`C:\Program Files (x86)\7-Zip\7zG.exe`,
		},
	}
}

// LoadProfile reads a YAML profile, or returns the built-in 7-Zip profile
// when path is empty. Omitted fields keep their defaults.
func LoadProfile(path string) (*Profile, error) {
	profile := DefaultProfile()
	if path == "" {
		return profile, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read oracle profile: %w", err)
	}
	if err := yaml.Unmarshal(content, profile); err != nil {
		return nil, fmt.Errorf("failed to parse oracle profile: %w", err)
	}
	return profile, nil
}

// Classify applies the classification rules in priority order.
func (p *Profile) Classify(diag *Diagnostics) Verdict {
	if diag == nil || diag.TimedOut {
		// no response within the timeout is treated as a hang
		return CrashLike
	}

	for _, code := range p.FatalExitCodes {
		if diag.ExitCode == code {
			return CrashLike
		}
	}
	for _, code := range p.OOMExitCodes {
		if diag.ExitCode == code {
			return CrashLike
		}
	}
	for _, indicator := range p.CrashIndicators {
		if strings.Contains(diag.Stdout, indicator) || strings.Contains(diag.Stderr, indicator) {
			return CrashLike
		}
	}
	return Benign
}
