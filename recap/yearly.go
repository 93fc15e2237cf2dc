package recap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/theimaginaryfoundation/recap-o-bot/recap/provider"
)

// DefaultYearlyPhotos is the yearly photo count when MaxPhotos is unset.
const DefaultYearlyPhotos = 12

// YearlyPipeline rolls the stored monthly packs of a year into a YearlySummary.
type YearlyPipeline struct {
	Packs      PackStore
	Narratives *provider.NarrativeClient

	MaxPhotos int
	Budgets   PromptBudgets
	Logger    *slog.Logger
	Now       func() time.Time
}

// Generate builds and upserts the summary for year. Monthly packs whose stats no longer
// decode are skipped; a pack whose photos no longer decode contributes stats only.
func (p *YearlyPipeline) Generate(ctx context.Context, year int) (YearlySummary, error) {
	if p.Packs == nil {
		return YearlySummary{}, errors.New("YearlyPipeline.Generate: store is nil")
	}
	logger := p.logger().With("year", year)
	budgets := p.Budgets.withDefaults()

	recs, err := p.Packs.MonthlyPackRecords(ctx, year)
	if err != nil {
		return YearlySummary{}, fmt.Errorf("YearlyPipeline.Generate: load monthly packs: %w", err)
	}

	months := make([]yearlyMonth, 0, len(recs))
	for _, rec := range recs {
		stats, err := rec.DecodeStats()
		if err != nil {
			logger.Warn("skipping monthly pack with undecodable stats", "pack_month", int(rec.Month), "error", err)
			continue
		}
		photos, err := rec.DecodePhotos()
		if err != nil {
			logger.Warn("ignoring undecodable monthly photos", "pack_month", int(rec.Month), "error", err)
			photos = nil
		}
		months = append(months, yearlyMonth{Month: rec.Month, Stats: stats, Narrative: rec.NarrativeText, Photos: photos})
	}
	sort.SliceStable(months, func(i, j int) bool { return months[i].Month < months[j].Month })

	monthStats := make([]MonthlyStats, len(months))
	for i, m := range months {
		monthStats[i] = m.Stats
	}
	stats := ComputeYearlyStats(year, monthStats)

	maxPhotos := p.MaxPhotos
	if maxPhotos <= 0 {
		maxPhotos = DefaultYearlyPhotos
	}
	summary := YearlySummary{
		Year:        year,
		Stats:       stats,
		Photos:      spreadPhotos(months, maxPhotos),
		GeneratedAt: p.now(),
	}
	if text, ok := p.aiNarrative(ctx, logger, year, stats, months, budgets.Yearly); ok {
		summary.NarrativeText = text
		summary.GenerationMethod = GenerationAI
	} else {
		summary.NarrativeText = TemplateYearlyNarrative(year, stats).Paragraphs()
		summary.GenerationMethod = GenerationTemplate
	}

	rec, err := summary.Record()
	if err != nil {
		return YearlySummary{}, fmt.Errorf("YearlyPipeline.Generate: %w", err)
	}
	if err := p.Packs.UpsertYearlySummary(ctx, rec); err != nil {
		return YearlySummary{}, fmt.Errorf("YearlyPipeline.Generate: upsert: %w", err)
	}
	logger.Info("yearly summary generated",
		"months", len(months),
		"photos", len(summary.Photos),
		"generation_method", summary.GenerationMethod)
	return summary, nil
}

// spreadPhotos takes selections round-robin across months (each month's first selection,
// then each month's second, ...) until max are taken, skipping repeated photos.
func spreadPhotos(months []yearlyMonth, max int) []ThemedPhotoSelection {
	var out []ThemedPhotoSelection
	seen := map[string]struct{}{}
	for round := 0; len(out) < max; round++ {
		progressed := false
		for _, m := range months {
			if round >= len(m.Photos) {
				continue
			}
			progressed = true
			sel := m.Photos[round]
			if len(sel.Photos) == 0 {
				continue
			}
			key := photoKey(sel.Photos[0])
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, sel)
			if len(out) == max {
				break
			}
		}
		if !progressed {
			break
		}
	}
	return out
}

func (p *YearlyPipeline) aiNarrative(ctx context.Context, logger *slog.Logger, year int, stats YearlyStats, months []yearlyMonth, budget int) (string, bool) {
	if stats.DaysWithEntries == 0 {
		return "", false
	}
	prompt := fitPrompt(budget, func(n int) string { return buildYearlyNarrativePrompt(year, stats, months, n) })

	var resp yearlyNarrativeResponse
	err := p.Narratives.Generate(ctx, provider.Call{
		Name:           "YearlyNarrative",
		Instructions:   yearlyNarrativeInstructions,
		Prompt:         prompt,
		MaxPromptChars: budget,
		Schema:         yearlyNarrativeSchema(),
	}, &resp)
	if err == nil {
		err = checkNarrative(resp.Opening, resp.Closing)
	}
	if err != nil {
		logFallback(logger, "yearly_narrative", err)
		return "", false
	}
	return Narrative(resp).Marked(), true
}

func (p *YearlyPipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p *YearlyPipeline) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}
