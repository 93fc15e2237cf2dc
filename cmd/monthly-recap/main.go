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
	client := cli.NarrativeClient(apiKey, cfg.Model, logger)

	pipeline := &recap.MonthlyPipeline{
		Entries:     store,
		Packs:       store,
		Narratives:  client,
		Text:        recap.SimpleTextAnalyzer{},
		MaxTopics:   cfg.MaxTopics,
		MaxFallback: cfg.MaxFallback,
		Budgets: recap.PromptBudgets{
			Topics:  cfg.TopicsPromptChars,
			Monthly: cfg.NarrativePromptChars,
		},
		Logger: logger,
	}
	pack, err := pipeline.Generate(ctx, cfg.Year, time.Month(cfg.Month))
	if err != nil {
		return err
	}

	exported := "-"
	if cfg.ExportDir != "" {
		rec, err := recap.ExportMonthlyPack(pack, recap.ExportOptions{
			OutDir:    cfg.ExportDir,
			Overwrite: cfg.Overwrite,
			Pretty:    cfg.Pretty,
		})
		if err != nil {
			return err
		}
		exported = filepath.Join(cfg.ExportDir, rec.MarkdownFile)
	}

	fmt.Fprintf(stdout, "year=%d month=%d days_with_entries=%d themed_photos=%d topic_source=%s generation=%s export=%s\n",
		pack.Year, int(pack.Month), pack.Stats.DaysWithEntries, len(pack.ThemedPhotos),
		pack.TopicSource, pack.GenerationMethod, exported)
	return nil
}

// parseFlags defaults -year/-month to the month before now.
func parseFlags(fs *flag.FlagSet, args []string, now time.Time) (Config, error) {
	cfg := defaultConfig()
	prevYear, prevMonth := cli.PreviousMonth(now)
	cfg.Year, cfg.Month = prevYear, int(prevMonth)

	fs.SetOutput(os.Stderr)
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the SQLite database")
	fs.IntVar(&cfg.Year, "year", cfg.Year, "Year to recap (default: year of the previous month)")
	fs.IntVar(&cfg.Month, "month", cfg.Month, "Month to recap, 1-12 (default: previous month)")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "Model name for topics and narrative")
	fs.StringVar(&cfg.APIKey, "api-key", "", "OpenAI API key (overrides OPENAI_API_KEY env var)")
	fs.StringVar(&cfg.EnvFile, "env-file", cfg.EnvFile, "Optional .env file read before OPENAI_API_KEY")
	fs.BoolVar(&cfg.NoAI, "no-ai", false, "Skip the model entirely and use keyword topics and template narrative")
	fs.IntVar(&cfg.MaxTopics, "max-topics", cfg.MaxTopics, "Max themes per month")
	fs.IntVar(&cfg.MaxFallback, "max-fallback", cfg.MaxFallback, "Max photos chosen when no theme matches")
	fs.StringVar(&cfg.ExportDir, "export-dir", "", "Optional directory for markdown/JSON export")
	fs.BoolVar(&cfg.Pretty, "pretty", false, "Pretty-print exported JSON")
	fs.BoolVar(&cfg.Overwrite, "overwrite", false, "Overwrite existing export files")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug|info|warn|error")
	fs.IntVar(&cfg.TopicsPromptChars, "topics-prompt-chars", cfg.TopicsPromptChars, "Character budget for the topic prompt")
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
