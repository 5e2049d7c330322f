// Package crash persists crash-like candidates durably: one uniquely named
// directory per crash, plus optional database and message queue fan-out.
package crash

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"zipfuzz/config"
	"zipfuzz/internal/oracle"
	"zipfuzz/internal/types"
	"zipfuzz/pkg/database"
	"zipfuzz/pkg/mq"
	"zipfuzz/pkg/watchdog"
)

type Manager struct {
	db       *gorm.DB
	rabbitMQ mq.RabbitMQ
	logger   *zap.Logger

	crashDir string
	toolPath string
	runID    types.RunID
}

type ManagerParams struct {
	fx.In
	Lc        fx.Lifecycle
	AppConfig *config.AppConfig
	DB        *gorm.DB    `optional:"true"`
	RabbitMQ  mq.RabbitMQ `optional:"true"`
	Logger    *zap.Logger
	Adapter   *oracle.Adapter
	RunID     types.RunID
}

func NewManager(p ManagerParams) *Manager {
	if err := os.MkdirAll(p.AppConfig.CrashDir, 0755); err != nil {
		// if we can't create the crash store, there's no point in continuing
		p.Logger.Fatal("failed to create crash store directory", zap.Error(err))
		return nil
	}

	m := &Manager{
		db:       p.DB,
		rabbitMQ: p.RabbitMQ,
		logger:   p.Logger,
		crashDir: p.AppConfig.CrashDir,
		toolPath: p.Adapter.ToolPath(),
		runID:    p.RunID,
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			m.startWatchdog(watchCtx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			return nil
		},
	})

	return m
}

// startWatchdog confirms crash artifact directories landing on disk. It is
// an observer only; the synchronous Archive path owns the crash count.
func (m *Manager) startWatchdog(ctx context.Context) {
	_, notifyChan, err := watchdog.New(ctx, m.logger, m.crashDir, func(path string) bool {
		return strings.HasPrefix(filepath.Base(path), "crash_")
	})
	if err != nil {
		m.logger.Warn("failed to start crash store watchdog", zap.Error(err))
		return
	}
	go func() {
		for path := range notifyChan {
			m.logger.Debug("crash artifact persisted", zap.String("path", path))
		}
	}()
}

// Archive persists one crash-like candidate with its diagnostics. All
// persistence is best-effort: failures are logged and never abort the run.
func (m *Manager) Archive(iteration int, data []byte, diag *oracle.Diagnostics) {
	now := time.Now()
	dirName := fmt.Sprintf("crash_%s_%06d_iter_%d",
		now.Format("20060102_150405"), now.Nanosecond()/1000, iteration)
	crashStore := filepath.Join(m.crashDir, dirName)

	hash := md5.Sum(data)
	hashHex := hex.EncodeToString(hash[:])

	m.logger.Warn("CRASH DETECTED",
		zap.Int("iteration", iteration),
		zap.String("dir", crashStore),
		zap.String("hash", hashHex))

	if err := m.writeArtifacts(crashStore, iteration, data, hashHex, now, diag); err != nil {
		m.logger.Error("failed to persist crash artifacts", zap.Error(err))
	}

	m.persistRecord(crashStore, iteration, hashHex, len(data), diag)
	m.publishNotification(crashStore, iteration, hashHex, len(data), diag)
}

func (m *Manager) writeArtifacts(crashStore string, iteration int, data []byte, hashHex string, now time.Time, diag *oracle.Diagnostics) error {
	if err := os.MkdirAll(crashStore, 0755); err != nil {
		return fmt.Errorf("failed to create crash directory: %w", err)
	}

	if err := os.WriteFile(filepath.Join(crashStore, "crash.zip"), data, 0644); err != nil {
		return fmt.Errorf("failed to write crash file: %w", err)
	}

	var info strings.Builder
	info.WriteString("zipfuzz crash report\n")
	fmt.Fprintf(&info, "Timestamp: %s\n", now.Format(time.RFC3339Nano))
	fmt.Fprintf(&info, "Iteration: %d\n", iteration)
	fmt.Fprintf(&info, "File size: %d bytes\n", len(data))
	fmt.Fprintf(&info, "File hash (MD5): %s\n", hashHex)
	fmt.Fprintf(&info, "Tool path: %s\n", m.toolPath)
	if err := os.WriteFile(filepath.Join(crashStore, "info.txt"), []byte(info.String()), 0644); err != nil {
		return fmt.Errorf("failed to write crash info: %w", err)
	}

	if diag != nil {
		var out strings.Builder
		out.WriteString("=== STDOUT ===\n")
		out.WriteString(diag.Stdout)
		out.WriteString("\n=== STDERR ===\n")
		out.WriteString(diag.Stderr)
		fmt.Fprintf(&out, "\n=== RETURN CODE: %d ===\n", diag.ExitCode)
		if err := os.WriteFile(filepath.Join(crashStore, "7z_output.txt"), []byte(out.String()), 0644); err != nil {
			return fmt.Errorf("failed to write tool output: %w", err)
		}
	}

	return nil
}

func (m *Manager) persistRecord(crashStore string, iteration int, hashHex string, size int, diag *oracle.Diagnostics) {
	if m.db == nil {
		return
	}
	exitCode, timedOut := diagSummary(diag)
	record := database.NewCrashRecord(string(m.runID), iteration, crashStore, hashHex, size, exitCode, timedOut)
	if err := database.AddCrashRecord(context.Background(), m.db, record); err != nil {
		m.logger.Error("failed to add crash record to database", zap.Error(err))
	}
}

func (m *Manager) publishNotification(crashStore string, iteration int, hashHex string, size int, diag *oracle.Diagnostics) {
	if m.rabbitMQ == nil {
		return
	}
	exitCode, timedOut := diagSummary(diag)
	body, err := json.Marshal(types.CrashNotification{
		RunID:     string(m.runID),
		Iteration: iteration,
		Path:      crashStore,
		Hash:      hashHex,
		Size:      size,
		ExitCode:  exitCode,
		TimedOut:  timedOut,
	})
	if err != nil {
		m.logger.Error("failed to marshal crash notification", zap.Error(err))
		return
	}
	if err := m.rabbitMQ.Publish(context.Background(), mq.CrashQueueName, body); err != nil {
		m.logger.Error("failed to publish crash notification", zap.Error(err))
	}
}

// diagSummary flattens diagnostics; a nil value means the tool never
// responded, which is recorded as a timeout.
func diagSummary(diag *oracle.Diagnostics) (exitCode int, timedOut bool) {
	if diag == nil {
		return 0, true
	}
	return diag.ExitCode, diag.TimedOut
}
