package main

import (
	"errors"
	"path/filepath"

	"github.com/theimaginaryfoundation/recap-o-bot/internal/cli"
	"github.com/theimaginaryfoundation/recap-o-bot/recap"
)

type Config struct {
	DBPath      string
	Year        int
	Month       int
	Model       string
	APIKey      string
	EnvFile     string
	NoAI        bool
	MaxTopics   int
	MaxFallback int
	ExportDir   string
	Pretty      bool
	Overwrite   bool
	LogLevel    string

	TopicsPromptChars    int
	NarrativePromptChars int
}

func (c Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("missing -db")
	}
	if c.Year <= 0 {
		return errors.New("year must be > 0")
	}
	if c.Month < 1 || c.Month > 12 {
		return errors.New("month must be 1..12")
	}
	if c.Model == "" {
		return errors.New("missing -model")
	}
	if c.MaxTopics < 0 || c.MaxFallback < 0 {
		return errors.New("max-topics and max-fallback must be >= 0")
	}
	if c.TopicsPromptChars < 0 || c.NarrativePromptChars < 0 {
		return errors.New("prompt budgets must be >= 0")
	}
	if _, err := cli.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func defaultConfig() Config {
	budgets := recap.DefaultPromptBudgets()
	return Config{
		DBPath:               filepath.FromSlash("recap.db"),
		Model:                cli.DefaultModel,
		MaxTopics:            recap.DefaultMaxTopics,
		MaxFallback:          recap.DefaultMaxFallback,
		LogLevel:             "info",
		EnvFile:              ".env",
		TopicsPromptChars:    budgets.Topics,
		NarrativePromptChars: budgets.Monthly,
	}
}
