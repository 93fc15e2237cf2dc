package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/theimaginaryfoundation/recap-o-bot/internal/cli"
	"github.com/theimaginaryfoundation/recap-o-bot/recap"
)

// recapJob regenerates the previous month's pack and, in January, the previous year's
// summary. Runs never overlap; a trigger that fires while a run is active is skipped.
type recapJob struct {
	monthly   *recap.MonthlyPipeline
	yearly    *recap.YearlyPipeline
	exportDir string
	logger    *slog.Logger

	mu sync.Mutex
}

type runResult struct {
	Skipped bool
	Monthly *recap.MonthlyPack
	Yearly  *recap.YearlySummary
}

func (j *recapJob) runFor(ctx context.Context, now time.Time) (runResult, error) {
	if !j.mu.TryLock() {
		j.logger.Warn("recap run already in progress, skipping trigger", "now", now)
		return runResult{Skipped: true}, nil
	}
	defer j.mu.Unlock()

	var res runResult
	year, month := cli.PreviousMonth(now)
	pack, err := j.monthly.Generate(ctx, year, month)
	if err != nil {
		return res, err
	}
	res.Monthly = &pack
	if err := j.export(func(opts recap.ExportOptions) error {
		_, err := recap.ExportMonthlyPack(pack, opts)
		return err
	}); err != nil {
		return res, err
	}

	if now.Month() != time.January {
		return res, nil
	}
	summary, err := j.yearly.Generate(ctx, now.Year()-1)
	if err != nil {
		return res, err
	}
	res.Yearly = &summary
	if err := j.export(func(opts recap.ExportOptions) error {
		_, err := recap.ExportYearlySummary(summary, opts)
		return err
	}); err != nil {
		return res, err
	}
	return res, nil
}

func (j *recapJob) export(fn func(recap.ExportOptions) error) error {
	if j.exportDir == "" {
		return nil
	}
	return fn(recap.ExportOptions{OutDir: j.exportDir, Overwrite: true, Pretty: true})
}
