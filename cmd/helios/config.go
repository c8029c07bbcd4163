package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the helios configuration file
// (~/.config/helios/config.yaml). Fields are pointers where we need to
// distinguish "not set" from zero values.
type Config struct {
	ModelsDir string `yaml:"models_dir"`
	OutputDir string `yaml:"output_dir"`

	// Quantization defaults
	Format  string `yaml:"format"`
	Workers *int64 `yaml:"workers"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "helios", "config.yaml")
}

// applyQuantizeConfig applies config file defaults to quantize command
// variables when the corresponding CLI flag was not explicitly set.
func applyQuantizeConfig(c *cli.Command, cfg Config, outputDir *string, format *string, workers *int64) {
	if cfg.OutputDir != "" && !c.IsSet("output-dir") {
		*outputDir = cfg.OutputDir
	}
	if cfg.Format != "" && !c.IsSet("format") {
		*format = cfg.Format
	}
	if cfg.Workers != nil && !c.IsSet("workers") {
		*workers = *cfg.Workers
	}
	applyLoggingConfig(c, cfg)
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	if cfg.ModelsDir != "" && !c.IsSet("models-path") {
		modelsPath = cfg.ModelsDir
	}
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	applyLoggingConfig(c, cfg)
}

func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// LoadConfig reads the config file. Returns a zero Config if the file
// doesn't exist or cannot be parsed.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}
