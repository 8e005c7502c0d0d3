// Package config loads workspace settings from .tfvc/config.yaml and
// TFVC_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileName is the settings file inside the workspace metadata folder.
const FileName = "config.yaml"

// Config holds workspace settings.
type Config struct {
	ServerPath string    `yaml:"server_path,omitempty"`
	NoPrompt   bool      `yaml:"noprompt,omitempty"`
	IgnoreFile string    `yaml:"ignore_file,omitempty"`
	Log        LogConfig `yaml:"log"`
}

// LogConfig controls the rotating log file.
type LogConfig struct {
	// File is relative to the metadata folder unless absolute.
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Log: LogConfig{
			File:       filepath.Join("logs", "tfvc.log"),
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Load reads settings from metaDir/config.yaml, overlaid with TFVC_*
// environment variables (TFVC_LOG_LEVEL for log.level). An empty metaDir or
// a missing file yields defaults plus environment.
func Load(metaDir string) (Config, error) {
	def := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TFVC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server_path", def.ServerPath)
	v.SetDefault("noprompt", def.NoPrompt)
	v.SetDefault("ignore_file", def.IgnoreFile)
	v.SetDefault("log.file", def.Log.File)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.max_size_mb", def.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", def.Log.MaxBackups)

	if metaDir != "" {
		path := filepath.Join(metaDir, FileName)
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("reading %s: %w", path, err)
			}
		}
	}

	cfg := Config{
		ServerPath: v.GetString("server_path"),
		NoPrompt:   v.GetBool("noprompt"),
		IgnoreFile: v.GetString("ignore_file"),
		Log: LogConfig{
			File:       v.GetString("log.file"),
			Level:      v.GetString("log.level"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
		},
	}
	if metaDir != "" {
		cfg.Log.File = resolve(metaDir, cfg.Log.File)
		if cfg.IgnoreFile != "" {
			cfg.IgnoreFile = resolve(filepath.Dir(metaDir), cfg.IgnoreFile)
		}
	}
	return cfg, nil
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// Write saves cfg to metaDir/config.yaml.
func Write(metaDir string, cfg Config) error {
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	path := filepath.Join(metaDir, FileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
