package main

import (
	"errors"
	"path/filepath"

	"github.com/theimaginaryfoundation/recap-o-bot/internal/cli"
)

type Config struct {
	InPath   string
	DBPath   string
	Analyze  bool
	LogLevel string
}

func (c Config) Validate() error {
	if c.InPath == "" {
		return errors.New("missing -in")
	}
	if c.DBPath == "" {
		return errors.New("missing -db")
	}
	if _, err := cli.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		DBPath:   filepath.FromSlash("recap.db"),
		LogLevel: "info",
	}
}
