package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/theimaginaryfoundation/recap-o-bot/internal/cli"
	"github.com/theimaginaryfoundation/recap-o-bot/recap"
	"github.com/theimaginaryfoundation/recap-o-bot/recap/storage"
)

func TestParseFlags_DefaultsToPreviousMonth(t *testing.T) {
	t.Parallel()

	fs := flag.NewFlagSet("monthly-recap", flag.ContinueOnError)
	cfg, err := parseFlags(fs, nil, time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.Year != 2024 || cfg.Month != 12 {
		t.Fatalf("year/month=%d/%d", cfg.Year, cfg.Month)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestParseFlags_Overrides(t *testing.T) {
	t.Parallel()

	fs := flag.NewFlagSet("monthly-recap", flag.ContinueOnError)
	cfg, err := parseFlags(fs, []string{
		"-db", "x/../data.db",
		"-year", "2023",
		"-month", "7",
		"-model", "m",
		"-no-ai",
		"-max-topics", "3",
		"-export-dir", "out/",
		"-pretty",
		"-overwrite",
		"-log-level", "debug",
		"-topics-prompt-chars", "500",
	}, time.Now())
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.DBPath != "data.db" || cfg.ExportDir != "out" {
		t.Fatalf("paths=%q %q", cfg.DBPath, cfg.ExportDir)
	}
	if cfg.Year != 2023 || cfg.Month != 7 || cfg.Model != "m" || !cfg.NoAI || cfg.MaxTopics != 3 {
		t.Fatalf("cfg=%+v", cfg)
	}
	if !cfg.Pretty || !cfg.Overwrite || cfg.LogLevel != "debug" || cfg.TopicsPromptChars != 500 {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "db", mutate: func(c *Config) { c.DBPath = "" }},
		{name: "month", mutate: func(c *Config) { c.Month = 13 }},
		{name: "year", mutate: func(c *Config) { c.Year = 0 }},
		{name: "topics", mutate: func(c *Config) { c.MaxTopics = -1 }},
		{name: "log_level", mutate: func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := defaultConfig()
			cfg.Year, cfg.Month = 2025, 3
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestRun_TemplatePathEndToEnd(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "recap.db")
	store, err := storage.New(dbPath)
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	err = store.SaveDayRecords(context.Background(), []recap.DayRecord{
		{Date: time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), Text: "Walked along the river.", Mood: recap.MoodGood, Starred: true,
			Keywords: []string{"river"}, Photos: []recap.PhotoRecord{{ID: "p1", FileReference: "p1.jpg", QualityScore: 0.7}}},
		{Date: time.Date(2025, time.March, 2, 0, 0, 0, 0, time.UTC), Text: "River again, then coffee.", Mood: recap.MoodGreat,
			Keywords: []string{"river", "coffee"}, Photos: []recap.PhotoRecord{{ID: "p2", FileReference: "p2.jpg", QualityScore: 0.4}}},
	})
	_ = store.Close()
	if err != nil {
		t.Fatalf("SaveDayRecords: %v", err)
	}

	cfg := defaultConfig()
	cfg.DBPath = dbPath
	cfg.Year, cfg.Month = 2025, 3
	cfg.NoAI = true
	cfg.ExportDir = filepath.Join(dir, "export")

	var out bytes.Buffer
	if err := run(context.Background(), cfg, &out, cli.NewLogger(io.Discard, 0)); err != nil {
		t.Fatalf("run: %v", err)
	}
	line := out.String()
	for _, want := range []string{"year=2025", "month=3", "days_with_entries=2", "topic_source=keywords", "generation=template"} {
		if !strings.Contains(line, want) {
			t.Fatalf("summary %q missing %q", line, want)
		}
	}
	md, err := os.ReadFile(filepath.Join(cfg.ExportDir, "recap_2025_03.md"))
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(md), "# March 2025") || !strings.Contains(string(md), "p1.jpg") {
		t.Fatalf("export:\n%s", md)
	}
}
