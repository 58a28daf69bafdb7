package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config is the usmtool defaults file (~/.config/usmtool/config.yaml).
// A value is only used when the matching flag was not given.
type Config struct {
	Key      string `yaml:"key"`
	Encoding string `yaml:"encoding"`
	LogLevel string `yaml:"log_level"`
	Output   string `yaml:"output"`
	Parallel *int   `yaml:"parallel"`
	Listen   string `yaml:"listen"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "usmtool", "config.yaml")
}

// LoadConfig reads the defaults file at path, or at the default location when path is
// empty. A missing default file yields a zero Config.
func LoadConfig(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = configPath()
	}
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		return Config{}, nil
	} else if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// applyGlobalConfig fills the root flags that were not set on the command line.
func applyGlobalConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.Encoding != "" && !c.IsSet("encoding") {
		encoding = cfg.Encoding
	}
}

func applyKeyConfig(c *cli.Command, cfg Config, key *string) {
	if cfg.Key != "" && !c.IsSet("key") {
		*key = cfg.Key
	}
}

func applyOutputConfig(c *cli.Command, cfg Config, output *string) {
	if cfg.Output != "" && !c.IsSet("output") {
		*output = cfg.Output
	}
}

func applyExtractConfig(c *cli.Command, cfg Config, key, output *string, parallel *int) {
	applyKeyConfig(c, cfg, key)
	applyOutputConfig(c, cfg, output)
	if cfg.Parallel != nil && !c.IsSet("parallel") {
		*parallel = *cfg.Parallel
	}
}

func applyServeConfig(c *cli.Command, cfg Config, key, listen *string) {
	applyKeyConfig(c, cfg, key)
	if cfg.Listen != "" && !c.IsSet("listen") {
		*listen = cfg.Listen
	}
}
