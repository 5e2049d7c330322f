package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"SEED_PATH", "ITERATIONS", "OUTPUT_DIR", "CRASH_DIR", "LOG_LEVEL", "DEBUG"} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()
	assert.Equal(t, "base.zip", cfg.SeedPath)
	assert.Equal(t, 10000, cfg.Iterations)
	assert.Equal(t, "fuzzed_files", cfg.OutputDir)
	assert.Equal(t, "crashes", cfg.CrashDir)
	assert.Equal(t, 15*time.Second, cfg.OracleTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "zipfuzz", cfg.ServiceName)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("ITERATIONS", "250")
	t.Setenv("SEED_PATH", "corpus/seed.zip")
	t.Setenv("ORACLE_TIMEOUT", "3s")
	t.Setenv("DEBUG", "true")

	cfg := LoadConfig()
	assert.Equal(t, 250, cfg.Iterations)
	assert.Equal(t, "corpus/seed.zip", cfg.SeedPath)
	assert.Equal(t, 3*time.Second, cfg.OracleTimeout)
	assert.Equal(t, "debug", cfg.LogLevel, "DEBUG forces debug logging")
}

func TestParseHelpersFallBackOnGarbage(t *testing.T) {
	assert.Equal(t, 5, parseInt("not-a-number", 5))
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	assert.False(t, parseBool("yep", false))
}
