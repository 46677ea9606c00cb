// Package config loads the daemon configuration and exposes the recording
// profile registry. Sources are layered: built-in defaults, then a YAML file,
// then DVRD_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Config is the daemon configuration.
type Config struct {
	DataDir string `koanf:"datadir" validate:"required"`
	Storage string `koanf:"storage" validate:"required"`
	Listen  string `koanf:"listen" validate:"required,hostname_port"`

	Log struct {
		Level string `koanf:"level"`
	} `koanf:"log"`

	DVR struct {
		RetentionDays int64 `koanf:"retention_days" validate:"gt=0"`
		ExtraTimePre  int64 `koanf:"extra_time_pre" validate:"gte=0"`
		ExtraTimePost int64 `koanf:"extra_time_post" validate:"gte=0"`
		UpdateWindow  int64 `koanf:"update_window" validate:"gt=0"`

		ChannelInTitle    bool `koanf:"channel_in_title"`
		OmitTitle         bool `koanf:"omit_title"`
		EpisodeInTitle    bool `koanf:"episode_in_title"`
		SubtitleInTitle   bool `koanf:"subtitle_in_title"`
		DateInTitle       bool `koanf:"date_in_title"`
		TimeInTitle       bool `koanf:"time_in_title"`
		EpisodeBeforeDate bool `koanf:"episode_before_date"`

		TitleDir   bool `koanf:"title_dir"`
		ChannelDir bool `koanf:"channel_dir"`
		DirPerDay  bool `koanf:"dir_per_day"`
	} `koanf:"dvr"`
}

func defaultConfig() Config {
	var c Config
	c.DataDir = "/var/lib/dvrd"
	c.Storage = "/var/lib/dvrd/recordings"
	c.Listen = "0.0.0.0:9981"
	c.Log.Level = "info"
	c.DVR.RetentionDays = 31
	c.DVR.UpdateWindow = 86400
	c.DVR.EpisodeInTitle = true
	c.DVR.DateInTitle = true
	c.DVR.TimeInTitle = true
	return c
}

func findConfigFile() string {
	if p := os.Getenv("DVRD_CONFIG"); p != "" {
		return p
	}
	for _, p := range []string{"dvrd.yaml", "dvrd.yml", "/etc/dvrd/dvrd.yaml"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Load builds the configuration from defaults, the optional config file and
// the environment, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// DVRD_DVR_RETENTION_DAYS -> dvr.retention_days: only the first
	// underscore separates the section from the key.
	err := k.Load(env.Provider("DVRD_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "DVRD_"))
		return strings.Replace(s, "_", ".", 1)
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// DefaultProfile derives the implicit recording profile from the daemon
// configuration.
func (c *Config) DefaultProfile() *Profile {
	return &Profile{
		UUID:          "default",
		Name:          DefaultProfileName,
		RetentionDays: c.DVR.RetentionDays,
		ExtraTimePre:  c.DVR.ExtraTimePre,
		ExtraTimePost: c.DVR.ExtraTimePost,
		UpdateWindow:  c.DVR.UpdateWindow,
		Container:     ContainerMatroska,
		Storage:       c.Storage,

		ChannelInTitle:    c.DVR.ChannelInTitle,
		OmitTitle:         c.DVR.OmitTitle,
		EpisodeInTitle:    c.DVR.EpisodeInTitle,
		SubtitleInTitle:   c.DVR.SubtitleInTitle,
		DateInTitle:       c.DVR.DateInTitle,
		TimeInTitle:       c.DVR.TimeInTitle,
		EpisodeBeforeDate: c.DVR.EpisodeBeforeDate,

		TitleDir:   c.DVR.TitleDir,
		ChannelDir: c.DVR.ChannelDir,
		DirPerDay:  c.DVR.DirPerDay,
	}
}
