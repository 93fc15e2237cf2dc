package main

import (
	"errors"
	"path/filepath"

	"github.com/theimaginaryfoundation/recap-o-bot/internal/cli"
	"github.com/theimaginaryfoundation/recap-o-bot/recap"
)

type Config struct {
	DBPath    string
	Year      int
	Model     string
	APIKey    string
	EnvFile   string
	NoAI      bool
	MaxPhotos int
	ExportDir string
	// ExportMonths also re-exports every stored monthly pack of Year and writes index.jsonl.
	ExportMonths bool
	Pretty       bool
	Overwrite    bool
	LogLevel     string

	NarrativePromptChars int
}

func (c Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("missing -db")
	}
	if c.Year <= 0 {
		return errors.New("year must be > 0")
	}
	if c.Model == "" {
		return errors.New("missing -model")
	}
	if c.MaxPhotos < 0 {
		return errors.New("max-photos must be >= 0")
	}
	if c.NarrativePromptChars < 0 {
		return errors.New("narrative-prompt-chars must be >= 0")
	}
	if c.ExportMonths && c.ExportDir == "" {
		return errors.New("-export-months requires -export-dir")
	}
	if _, err := cli.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		DBPath:               filepath.FromSlash("recap.db"),
		Model:                cli.DefaultModel,
		MaxPhotos:            recap.DefaultYearlyPhotos,
		LogLevel:             "info",
		EnvFile:              ".env",
		NarrativePromptChars: recap.DefaultPromptBudgets().Yearly,
	}
}
