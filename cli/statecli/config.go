package statecli

import (
	"os"

	"go.dedis.ch/statedb/cli"
	"go.dedis.ch/statedb/core/store/kv"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

// Config is the configuration of the database used by the commands. It can be
// read from a YAML file and each field can be overridden by a flag.
//
//	backend: leveldb
//	path: /var/lib/statedb
//	log_level: debug
//	cache_mb: 32
type Config struct {
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"`
	LogLevel string `yaml:"log_level"`
	CacheMB  int    `yaml:"cache_mb"`
}

// DefaultConfig returns the configuration used when neither a file nor a flag
// sets a field.
func DefaultConfig() Config {
	return Config{
		Backend:  string(kv.BoltBackend),
		Path:     "statedb.db",
		LogLevel: "info",
	}
}

// loadConfig reads the configuration file designated by the flags, if any, and
// applies the flags on top of it.
func loadConfig(flags cli.Flags, readFile func(string) ([]byte, error)) (Config, error) {
	cfg := DefaultConfig()

	path := flags.String(flagConfig)
	if path != "" {
		data, err := readFile(path)
		if err != nil {
			return cfg, xerrors.Errorf("failed to read config file: %v", err)
		}

		err = yaml.UnmarshalStrict(data, &cfg)
		if err != nil {
			return cfg, xerrors.Errorf("failed to unmarshal config: %v", err)
		}
	}

	if flags.String(flagBackend) != "" {
		cfg.Backend = flags.String(flagBackend)
	}

	if flags.String(flagPath) != "" {
		cfg.Path = flags.String(flagPath)
	}

	if flags.String(flagLogLevel) != "" {
		cfg.LogLevel = flags.String(flagLogLevel)
	}

	if flags.Int(flagCacheMB) > 0 {
		cfg.CacheMB = flags.Int(flagCacheMB)
	}

	if cfg.CacheMB < 0 {
		return cfg, xerrors.Errorf("invalid cache size: %d", cfg.CacheMB)
	}

	return cfg, nil
}

// Save writes the configuration in YAML to the path.
func (cfg Config) Save(path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return xerrors.Errorf("failed to marshal config: %v", err)
	}

	err = os.WriteFile(path, data, 0o600)
	if err != nil {
		return xerrors.Errorf("failed to write file: %v", err)
	}

	return nil
}
