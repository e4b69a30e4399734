package statecli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/statedb/cli"
	"go.dedis.ch/statedb/internal/testing/fake"
)

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig(cli.FlagSet{}, badReadFile)
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)

	path := filepath.Join(t.TempDir(), "config.yml")

	err = os.WriteFile(path, []byte("backend: leveldb\npath: /tmp/state\ncache_mb: 8\n"), 0o600)
	require.NoError(t, err)

	cfg, err = loadConfig(cli.FlagSet{flagConfig: path}, os.ReadFile)
	require.NoError(t, err)
	require.Equal(t, Config{
		Backend:  "leveldb",
		Path:     "/tmp/state",
		LogLevel: "info",
		CacheMB:  8,
	}, cfg)

	cfg, err = loadConfig(cli.FlagSet{
		flagConfig:   path,
		flagBackend:  "memory",
		flagPath:     "/other",
		flagLogLevel: "debug",
		flagCacheMB:  16,
	}, os.ReadFile)
	require.NoError(t, err)
	require.Equal(t, Config{
		Backend:  "memory",
		Path:     "/other",
		LogLevel: "debug",
		CacheMB:  16,
	}, cfg)
}

func TestLoadConfig_Failures(t *testing.T) {
	_, err := loadConfig(cli.FlagSet{flagConfig: "config.yml"}, badReadFile)
	require.EqualError(t, err, fake.Err("failed to read config file"))

	_, err = loadConfig(cli.FlagSet{flagConfig: "config.yml"}, func(string) ([]byte, error) {
		return []byte("unknown: field\n"), nil
	})
	require.Error(t, err)
	require.Regexp(t, "^failed to unmarshal config:", err.Error())

	_, err = loadConfig(cli.FlagSet{flagConfig: "config.yml"}, func(string) ([]byte, error) {
		return []byte("cache_mb: -1\n"), nil
	})
	require.EqualError(t, err, "invalid cache size: -1")
}

func TestConfig_Save(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")

	cfg := DefaultConfig()
	cfg.CacheMB = 4

	err := cfg.Save(path)
	require.NoError(t, err)

	loaded, err := loadConfig(cli.FlagSet{flagConfig: path}, os.ReadFile)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}

func TestAction_Config(t *testing.T) {
	action, _ := makeAction(nil)
	action.readFile = badReadFile

	err := action.getAction(cli.FlagSet{flagConfig: "config.yml"})
	require.EqualError(t, err,
		fake.Err("failed to load config: failed to read config file"))
}

// -----------------------------------------------------------------------------
// Utility functions

func badReadFile(string) ([]byte, error) {
	return nil, fake.GetError()
}
