package zipmodel

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"zipfuzz/config"
)

// Seed is the immutable well-formed archive every candidate derives from.
// It is loaded once at startup and never mutated in place.
type Seed []byte

// LoadSeed reads the configured seed archive, synthesizing a minimal
// well-formed one on disk if it does not exist yet.
func LoadSeed(cfg *config.AppConfig, logger *zap.Logger) (Seed, error) {
	if _, err := os.Stat(cfg.SeedPath); os.IsNotExist(err) {
		logger.Info("seed archive not found, synthesizing", zap.String("path", cfg.SeedPath))
		data, err := SynthesizeSeed()
		if err != nil {
			return nil, fmt.Errorf("failed to synthesize seed archive: %w", err)
		}
		if err := os.WriteFile(cfg.SeedPath, data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write seed archive: %w", err)
		}
	}

	data, err := os.ReadFile(cfg.SeedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed archive: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("seed archive %s is empty", cfg.SeedPath)
	}
	logger.Info("seed archive loaded", zap.String("path", cfg.SeedPath), zap.Int("bytes", len(data)))
	return Seed(data), nil
}

// SynthesizeSeed builds a small archive exercising a variety of entry
// shapes: plain text, binary, empty, nested path, and an unusually long name.
func SynthesizeSeed() ([]byte, error) {
	binData := make([]byte, 1000)
	for i := range binData {
		binData[i] = byte(i % 256)
	}

	entries := []struct {
		name string
		data []byte
	}{
		{"normal_file.txt", []byte(strings.Repeat("This is a normal text file for fuzzing", 10))},
		{"binary_data.bin", binData},
		{"empty_file.txt", nil},
		{"folder/nested_file.txt", []byte("Nested file content")},
		{"very_long_name_" + strings.Repeat("x", 100) + ".txt", []byte("File with long name")},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(e.data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
