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
	"time"

	"github.com/theimaginaryfoundation/recap-o-bot/internal/cli"
	"github.com/theimaginaryfoundation/recap-o-bot/recap"
	"github.com/theimaginaryfoundation/recap-o-bot/recap/storage"
)

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:], time.Now())
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	if err := cli.LoadEnvFile(cfg.EnvFile); err != nil {
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
	store, err := storage.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	apiKey := ""
	if !cfg.NoAI {
		apiKey = cli.APIKey(cfg.APIKey)
	}
	pipeline := &recap.YearlyPipeline{
		Packs:      store,
		Narratives: cli.NarrativeClient(apiKey, cfg.Model, logger),
		MaxPhotos:  cfg.MaxPhotos,
		Budgets:    recap.PromptBudgets{Yearly: cfg.NarrativePromptChars},
		Logger:     logger,
	}
	summary, err := pipeline.Generate(ctx, cfg.Year)
	if err != nil {
		return err
	}

	exported := 0
	if cfg.ExportDir != "" {
		opts := recap.ExportOptions{OutDir: cfg.ExportDir, Overwrite: cfg.Overwrite, Pretty: cfg.Pretty}
		var index []recap.ExportIndexRecord
		if cfg.ExportMonths {
			recs, err := store.MonthlyPackRecords(ctx, cfg.Year)
			if err != nil {
				return err
			}
			for _, rec := range recs {
				pack, err := rec.Decode()
				if err != nil {
					logger.Warn("skipping monthly pack export", "month", int(rec.Month), "error", err)
					continue
				}
				entry, err := recap.ExportMonthlyPack(pack, opts)
				if err != nil {
					return err
				}
				index = append(index, entry)
			}
		}
		entry, err := recap.ExportYearlySummary(summary, opts)
		if err != nil {
			return err
		}
		index = append(index, entry)
		if cfg.ExportMonths {
			if err := recap.WriteExportIndex(filepath.Join(cfg.ExportDir, "index.jsonl"), index, cfg.Overwrite); err != nil {
				return err
			}
		}
		exported = len(index)
	}

	fmt.Fprintf(stdout, "year=%d months_completed=%d days_with_entries=%d longest_streak=%d photos=%d generation=%s exported=%d\n",
		summary.Year, summary.Stats.MonthsCompleted, summary.Stats.DaysWithEntries,
		summary.Stats.LongestStreak, len(summary.Photos), summary.GenerationMethod, exported)
	return nil
}

// parseFlags defaults -year to the year before now.
func parseFlags(fs *flag.FlagSet, args []string, now time.Time) (Config, error) {
	cfg := defaultConfig()
	cfg.Year = now.Year() - 1

	fs.SetOutput(os.Stderr)
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the SQLite database")
	fs.IntVar(&cfg.Year, "year", cfg.Year, "Year to summarize (default: last year)")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "Model name for the yearly narrative")
	fs.StringVar(&cfg.APIKey, "api-key", "", "OpenAI API key (overrides OPENAI_API_KEY env var)")
	fs.StringVar(&cfg.EnvFile, "env-file", cfg.EnvFile, "Optional .env file read before OPENAI_API_KEY")
	fs.BoolVar(&cfg.NoAI, "no-ai", false, "Skip the model and use the template narrative")
	fs.IntVar(&cfg.MaxPhotos, "max-photos", cfg.MaxPhotos, "Max photos carried into the yearly summary")
	fs.StringVar(&cfg.ExportDir, "export-dir", "", "Optional directory for markdown/JSON export")
	fs.BoolVar(&cfg.ExportMonths, "export-months", false, "Also export the year's monthly packs and an index.jsonl")
	fs.BoolVar(&cfg.Pretty, "pretty", false, "Pretty-print exported JSON")
	fs.BoolVar(&cfg.Overwrite, "overwrite", false, "Overwrite existing export files")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug|info|warn|error")
	fs.IntVar(&cfg.NarrativePromptChars, "narrative-prompt-chars", cfg.NarrativePromptChars, "Character budget for the narrative prompt")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.DBPath = filepath.Clean(cfg.DBPath)
	if cfg.ExportDir != "" {
		cfg.ExportDir = filepath.Clean(cfg.ExportDir)
	}
	return cfg, nil
}
