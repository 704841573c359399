package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bsbernd/ql-fstest/internal/config"
)

func TestLoad_DefaultsOnly(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Load(dir, config.Config{Dir: "/mnt/test"}, config.FlagsSet{Dir: true})
	require.NoError(t, err)
	require.Equal(t, 90, cfg.Percent)
	require.Equal(t, -1, cfg.TimeoutSeconds)
	require.Equal(t, 20, cfg.MinBits)
	require.Equal(t, 30, cfg.MaxBits)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	contents := []byte(`{
		// stress profile for CI
		"percent": 70,
		"min_bits": 10,
		"max_bits": 12,
	}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), contents, 0o600))

	cfg, err := config.Load(dir, config.Config{Dir: "/mnt/test"}, config.FlagsSet{Dir: true})
	require.NoError(t, err)
	require.Equal(t, 70, cfg.Percent)
	require.Equal(t, 10, cfg.MinBits)
	require.Equal(t, 12, cfg.MaxBits)
}

func TestLoad_CLIOverridesFile(t *testing.T) {
	dir := t.TempDir()
	contents := []byte(`{"percent": 70}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), contents, 0o600))

	cfg, err := config.Load(dir, config.Config{Dir: "/mnt/test", Percent: 55}, config.FlagsSet{Dir: true, Percent: true})
	require.NoError(t, err)
	require.Equal(t, 55, cfg.Percent)
}

func TestLoad_RejectsBadPercent(t *testing.T) {
	dir := t.TempDir()
	_, err := config.Load(dir, config.Config{Dir: "/mnt/test", Percent: 0}, config.FlagsSet{Dir: true, Percent: true})
	require.Error(t, err)
}

func TestLoad_RejectsMissingDir(t *testing.T) {
	dir := t.TempDir()
	_, err := config.Load(dir, config.Config{}, config.FlagsSet{})
	require.Error(t, err)
}

func TestLoad_RejectsBitsOutOfOrder(t *testing.T) {
	dir := t.TempDir()
	_, err := config.Load(dir, config.Config{Dir: "/mnt/test", MinBits: 30, MaxBits: 20}, config.FlagsSet{Dir: true, MinBits: true, MaxBits: true})
	require.Error(t, err)
}
