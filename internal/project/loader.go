package project

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"
)

// Defaults applied when the configuration file omits a key.
const (
	DefaultBuildDirectory = "build"
	defaultContractsDir   = "contracts"
)

// FileLoader reads project configuration files in any format viper
// understands (YAML, JSON, TOML) based on the file extension.
type FileLoader struct{}

// Load reads configFile and resolves its directories. Relative paths are
// taken relative to the configuration file's directory. A missing
// contracts_build_directory defaults to "<build_directory>/contracts".
//
// A fresh viper instance is used on every call so repeated reloads never see
// stale keys.
func (FileLoader) Load(configFile string) (*Descriptor, error) {
	abs, err := filepath.Abs(configFile)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", configFile, err)
	}

	v := viper.New()
	v.SetConfigFile(abs)
	v.SetDefault("build_directory", DefaultBuildDirectory)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading project config %q: %w", abs, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling project config %q: %w", abs, err)
	}

	if cfg.BuildDirectory == "" {
		return nil, fmt.Errorf("project config %q: build_directory must not be empty", abs)
	}

	root := filepath.Dir(abs)
	cfg.BuildDirectory = resolve(root, cfg.BuildDirectory)

	if cfg.ContractsBuildDirectory == "" {
		cfg.ContractsBuildDirectory = filepath.Join(cfg.BuildDirectory, defaultContractsDir)
	} else {
		cfg.ContractsBuildDirectory = resolve(root, cfg.ContractsBuildDirectory)
	}

	return &Descriptor{ConfigFile: abs, Config: cfg}, nil
}

func resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}

	return filepath.Join(root, p)
}
