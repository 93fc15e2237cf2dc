package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/theimaginaryfoundation/recap-o-bot/internal/cli"
	"github.com/theimaginaryfoundation/recap-o-bot/recap"
)

// Config is the scheduler's YAML file.
type Config struct {
	DBPath          string `yaml:"db_path"`
	Model           string `yaml:"model"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	Timezone        string `yaml:"timezone"`
	MonthlySchedule string `yaml:"monthly_schedule"`
	ExportDir       string `yaml:"export_dir"`
	MaxTopics       int    `yaml:"max_topics"`
	MaxFallback     int    `yaml:"max_fallback"`
	MaxYearlyPhotos int    `yaml:"max_yearly_photos"`
	LogLevel        string `yaml:"log_level"`
}

// Defaults runs at 06:00 on the first of each month, UTC.
func Defaults() Config {
	return Config{
		DBPath:          "./recap.db",
		Model:           cli.DefaultModel,
		Timezone:        "UTC",
		MonthlySchedule: "0 6 1 * *",
		MaxTopics:       recap.DefaultMaxTopics,
		MaxFallback:     recap.DefaultMaxFallback,
		MaxYearlyPhotos: recap.DefaultYearlyPhotos,
		LogLevel:        "info",
	}
}

// Load reads path over Defaults. RECAP_CONFIG overrides path and RECAP_DB overrides
// db_path. An empty path with no RECAP_CONFIG yields the defaults.
func Load(path string) (Config, error) {
	if envPath := os.Getenv("RECAP_CONFIG"); envPath != "" {
		path = envPath
	}

	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if envDB := os.Getenv("RECAP_DB"); envDB != "" {
		cfg.DBPath = envDB
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("db_path is required")
	}
	if c.Model == "" {
		return errors.New("model is required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	if _, err := cron.ParseStandard(c.MonthlySchedule); err != nil {
		return fmt.Errorf("invalid monthly_schedule %q: %w", c.MonthlySchedule, err)
	}
	if c.MaxTopics < 0 || c.MaxFallback < 0 || c.MaxYearlyPhotos < 0 {
		return errors.New("max_topics, max_fallback and max_yearly_photos must be >= 0")
	}
	if _, err := cli.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}
