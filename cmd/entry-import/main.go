package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/theimaginaryfoundation/recap-o-bot/internal/cli"
	"github.com/theimaginaryfoundation/recap-o-bot/recap"
	"github.com/theimaginaryfoundation/recap-o-bot/recap/storage"
)

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	level, _ := cli.ParseLevel(cfg.LogLevel)
	logger := cli.NewLogger(os.Stderr, level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout, logger); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, stdout io.Writer, logger *slog.Logger) error {
	f, err := os.Open(cfg.InPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	entries, err := decodeEntries(f)
	if err != nil {
		return err
	}
	var analyzer recap.TextAnalyzer
	if cfg.Analyze {
		analyzer = recap.SimpleTextAnalyzer{}
	}
	records, st, err := toDayRecords(entries, analyzer)
	if err != nil {
		return err
	}

	store, err := storage.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.SaveDayRecords(ctx, records); err != nil {
		return err
	}
	logger.Info("entries imported", "in", cfg.InPath, "records", st.Records, "photos", st.Photos)

	fmt.Fprintf(stdout, "records_imported=%d photos=%d ids_assigned=%d db=%s\n",
		st.Records, st.Photos, st.IDsAssigned, cfg.DBPath)
	return nil
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()

	fs.SetOutput(os.Stderr)
	fs.StringVar(&cfg.InPath, "in", "", "Input file: JSON array or JSONL of day entries")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the SQLite database")
	fs.BoolVar(&cfg.Analyze, "analyze", false, "Derive keywords from text for entries without any")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug|info|warn|error")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.InPath != "" {
		cfg.InPath = filepath.Clean(cfg.InPath)
	}
	cfg.DBPath = filepath.Clean(cfg.DBPath)
	return cfg, nil
}
