package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/theimaginaryfoundation/recap-o-bot/internal/cli"
	"github.com/theimaginaryfoundation/recap-o-bot/recap"
	"github.com/theimaginaryfoundation/recap-o-bot/recap/storage"
)

type flags struct {
	ConfigPath string
	EnvFile    string
	Once       bool
}

func main() {
	f, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := cli.LoadEnvFile(f.EnvFile); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	cfg, err := Load(f.ConfigPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	level, _ := cli.ParseLevel(cfg.LogLevel)
	logger := cli.NewLogger(os.Stderr, level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, f.Once, os.Stdout, logger); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, once bool, stdout io.Writer, logger *slog.Logger) error {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("loading timezone %q: %w", cfg.Timezone, err)
	}
	store, err := storage.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	job := newJob(cfg, store, logger)

	if once {
		res, err := job.runFor(ctx, time.Now().In(loc))
		if err != nil {
			return err
		}
		printResult(stdout, res)
		return nil
	}

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(cfg.MonthlySchedule, func() {
		if _, err := job.runFor(ctx, time.Now().In(loc)); err != nil {
			logger.Error("scheduled recap failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("adding cron entry: %w", err)
	}
	logger.Info("recap scheduler started", "cron", cfg.MonthlySchedule, "timezone", loc.String())
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info("recap scheduler stopped")
	return nil
}

func newJob(cfg Config, store *storage.Store, logger *slog.Logger) *recapJob {
	client := cli.NarrativeClient(cli.APIKey(cfg.OpenAIAPIKey), cfg.Model, logger)
	return &recapJob{
		monthly: &recap.MonthlyPipeline{
			Entries:     store,
			Packs:       store,
			Narratives:  client,
			Text:        recap.SimpleTextAnalyzer{},
			MaxTopics:   cfg.MaxTopics,
			MaxFallback: cfg.MaxFallback,
			Logger:      logger,
		},
		yearly: &recap.YearlyPipeline{
			Packs:      store,
			Narratives: client,
			MaxPhotos:  cfg.MaxYearlyPhotos,
			Logger:     logger,
		},
		exportDir: cfg.ExportDir,
		logger:    logger,
	}
}

func printResult(w io.Writer, res runResult) {
	if res.Skipped {
		fmt.Fprintln(w, "skipped=true")
		return
	}
	year, month, generation := 0, 0, recap.GenerationMethod("-")
	if res.Monthly != nil {
		year, month, generation = res.Monthly.Year, int(res.Monthly.Month), res.Monthly.GenerationMethod
	}
	yearly := "-"
	if res.Yearly != nil {
		yearly = fmt.Sprintf("%d:%s", res.Yearly.Year, res.Yearly.GenerationMethod)
	}
	fmt.Fprintf(w, "year=%d month=%d generation=%s yearly=%s\n", year, month, generation, yearly)
}

func parseFlags(fs *flag.FlagSet, args []string) (flags, error) {
	var f flags
	fs.SetOutput(os.Stderr)
	fs.StringVar(&f.ConfigPath, "config", "", "Path to the YAML config (RECAP_CONFIG overrides)")
	fs.StringVar(&f.EnvFile, "env-file", ".env", "Optional .env file loaded before the config (RECAP_*, OPENAI_API_KEY)")
	fs.BoolVar(&f.Once, "once", false, "Run the recap for the previous month immediately and exit")
	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}
	return f, nil
}
