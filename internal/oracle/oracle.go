// Package oracle invokes the external archive tool against candidate
// buffers and classifies the outcome as crash-like or benign.
package oracle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"zipfuzz/config"
)

type Verdict int

const (
	Benign Verdict = iota
	CrashLike
)

func (v Verdict) String() string {
	if v == CrashLike {
		return "crash-like"
	}
	return "benign"
}

// Diagnostics captures one tool invocation. A timed-out invocation has no
// process output, so callers may receive nil diagnostics with a CrashLike
// verdict.
type Diagnostics struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
}

type Adapter struct {
	toolPath  string
	outputDir string
	timeout   time.Duration
	profile   *Profile
	logger    *zap.Logger
}

// NewAdapter resolves the tool binary and prepares the transient candidate
// directory. An unresolvable tool is a fatal configuration error.
func NewAdapter(cfg *config.AppConfig, logger *zap.Logger) *Adapter {
	profile, err := LoadProfile(cfg.OracleProfile)
	if err != nil {
		logger.Fatal("failed to load oracle profile", zap.Error(err))
	}

	toolPath := cfg.SevenZipPath
	if toolPath == "" {
		toolPath = discoverTool(profile)
	}
	if toolPath == "" {
		logger.Fatal("archive tool not found, set SEVENZIP_PATH")
	}
	if _, err := os.Stat(toolPath); err != nil {
		logger.Fatal("archive tool not usable", zap.String("path", toolPath), zap.Error(err))
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		logger.Fatal("failed to create output directory", zap.Error(err))
	}

	logger.Info("using archive tool", zap.String("path", toolPath))
	return &Adapter{
		toolPath:  toolPath,
		outputDir: cfg.OutputDir,
		timeout:   cfg.OracleTimeout,
		profile:   profile,
		logger:    logger,
	}
}

// discoverTool checks PATH and the profile's standard install locations.
func discoverTool(profile *Profile) string {
	for _, name := range profile.ToolNames {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	for _, path := range profile.ToolCandidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func (a *Adapter) ToolPath() string {
	return a.toolPath
}

// Evaluate writes the candidate to disk, runs the tool in integrity-check
// mode under the configured timeout, and classifies the result. Launch
// failures are benign for the iteration, not fatal to the run.
func (a *Adapter) Evaluate(ctx context.Context, iteration int, candidate []byte) (Verdict, *Diagnostics) {
	testFile := filepath.Join(a.outputDir, fmt.Sprintf("fuzz_%06d.zip", iteration))
	if err := os.WriteFile(testFile, candidate, 0644); err != nil {
		a.logger.Warn("failed to write candidate file", zap.Error(err))
		return Benign, nil
	}
	defer os.Remove(testFile)

	runCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	args := append(append([]string{}, a.profile.IntegrityArgs...), testFile)
	cmd := exec.CommandContext(runCtx, a.toolPath, args...)
	// do not wait on inherited pipes once the tool itself is killed
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if runCtx.Err() == context.DeadlineExceeded {
		a.logger.Warn("timeout testing candidate", zap.String("file", testFile))
		return CrashLike, nil
	}

	diag := &Diagnostics{
		Stdout: decodeOutput(stdout.Bytes()),
		Stderr: decodeOutput(stderr.Bytes()),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			diag.ExitCode = exitErr.ExitCode()
		} else {
			// tool failed to launch at all
			a.logger.Warn("failed to run archive tool", zap.Error(err))
			return Benign, nil
		}
	}

	verdict := a.profile.Classify(diag)
	if verdict == CrashLike {
		a.logger.Debug("crash-like behavior observed",
			zap.Int("exit_code", diag.ExitCode), zap.Int("iteration", iteration))
	}
	return verdict, diag
}

// decodeOutput is a best-effort text decode, dropping invalid byte sequences.
func decodeOutput(raw []byte) string {
	return strings.ToValidUTF8(string(raw), "")
}
