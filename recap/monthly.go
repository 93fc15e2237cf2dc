package recap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/theimaginaryfoundation/recap-o-bot/recap/provider"
)

type monthlyNarrativeResponse struct {
	Opening    string   `json:"opening"`
	Journey    string   `json:"journey"`
	Milestones []string `json:"milestones"`
	Closing    string   `json:"closing"`
}

type yearlyNarrativeResponse struct {
	Opening    string   `json:"opening"`
	Journey    string   `json:"journey"`
	Milestones []string `json:"milestones"`
	Closing    string   `json:"closing"`
}

var (
	monthlyNarrativeSchema = sync.OnceValue(provider.GenerateSchema[monthlyNarrativeResponse])
	yearlyNarrativeSchema  = sync.OnceValue(provider.GenerateSchema[yearlyNarrativeResponse])
)

// errIncompleteNarrative rejects a decoded narrative missing its opening or closing.
var errIncompleteNarrative = errors.New("narrative response missing opening or closing")

// MonthlyPipeline generates and stores the pack for one month.
type MonthlyPipeline struct {
	Entries    EntryStore
	Packs      PackStore
	Narratives *provider.NarrativeClient

	// Topics defaults to AI topics through Narratives with keyword fallback.
	Topics TopicExtractor
	// Text fills missing keywords and counts words. Optional.
	Text TextAnalyzer
	// Tagger re-tags photos that carry no tags yet. Optional.
	Tagger PhotoTagger

	MaxTopics   int
	MaxFallback int
	Budgets     PromptBudgets
	Logger      *slog.Logger
	Now         func() time.Time
}

// Generate builds the pack for year/month and upserts it. Generator and tagger failures
// degrade to template or keyword output; only store errors are returned.
func (p *MonthlyPipeline) Generate(ctx context.Context, year int, month time.Month) (MonthlyPack, error) {
	if p.Entries == nil || p.Packs == nil {
		return MonthlyPack{}, errors.New("MonthlyPipeline.Generate: store is nil")
	}
	if month < time.January || month > time.December {
		return MonthlyPack{}, fmt.Errorf("MonthlyPipeline.Generate: invalid month %d", month)
	}
	logger := p.logger().With("year", year, "month", int(month))
	budgets := p.Budgets.withDefaults()

	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	records, err := p.Entries.FetchDayRecords(ctx, start, start.AddDate(0, 1, 0))
	if err != nil {
		return MonthlyPack{}, fmt.Errorf("MonthlyPipeline.Generate: fetch day records: %w", err)
	}
	records = p.prepare(ctx, logger, records)

	var countWords func(string) int
	if p.Text != nil {
		countWords = p.Text.CountWords
	}
	stats := ComputeMonthlyStats(year, month, records, countWords)

	extractor := p.Topics
	if extractor == nil {
		extractor = NewTopicExtractor(p.Narratives, budgets.Topics, logger)
	}
	topics, _ := extractor.ExtractTopics(ctx, records, p.MaxTopics)

	selections := SelectThemedPhotos(records, topics, SelectOptions{MaxFallback: p.MaxFallback}, NewSelectionState())

	pack := MonthlyPack{
		Year:         year,
		Month:        month,
		Stats:        stats,
		ThemedPhotos: selections,
		TopicSource:  topics.Source,
		GeneratedAt:  p.now(),
	}
	if text, ok := p.aiNarrative(ctx, logger, year, month, stats, records, selections, budgets.Monthly); ok {
		pack.NarrativeText = text
		pack.GenerationMethod = GenerationAI
	} else {
		pack.NarrativeText = TemplateMonthlyNarrative(year, month, stats).Paragraphs()
		pack.GenerationMethod = GenerationTemplate
	}

	rec, err := pack.Record()
	if err != nil {
		return MonthlyPack{}, fmt.Errorf("MonthlyPipeline.Generate: %w", err)
	}
	if err := p.Packs.UpsertMonthlyPack(ctx, rec); err != nil {
		return MonthlyPack{}, fmt.Errorf("MonthlyPipeline.Generate: upsert: %w", err)
	}
	logger.Info("monthly pack generated",
		"days_with_entries", stats.DaysWithEntries,
		"themed_photos", len(selections),
		"topic_source", topics.Source,
		"generation_method", pack.GenerationMethod)
	return pack, nil
}

// prepare normalizes records, re-tags untagged photos and fills missing keywords. Days are
// processed one at a time so tagging results are deterministic.
func (p *MonthlyPipeline) prepare(ctx context.Context, logger *slog.Logger, in []DayRecord) []DayRecord {
	out := make([]DayRecord, len(in))
	for i, d := range in {
		d.Keywords = append([]string(nil), d.Keywords...)
		d.Photos = append([]PhotoRecord(nil), d.Photos...)
		d.Normalize()

		if p.Tagger != nil {
			for j := range d.Photos {
				if d.Photos[j].Tagged() {
					continue
				}
				a, err := p.Tagger.Analyze(ctx, d.Photos[j])
				if err != nil {
					logger.Warn("photo tagging failed", "photo_id", d.Photos[j].ID, "error", err)
					continue
				}
				a.Apply(&d.Photos[j])
			}
		}
		if p.Text != nil && len(d.Keywords) == 0 && d.Text != "" {
			d.Keywords = NormalizeKeywords(p.Text.AnalyzeText(d.Text).Keywords)
		}
		out[i] = d
	}
	return out
}

func (p *MonthlyPipeline) aiNarrative(ctx context.Context, logger *slog.Logger, year int, month time.Month, stats MonthlyStats, records []DayRecord, selections []ThemedPhotoSelection, budget int) (string, bool) {
	if stats.DaysWithEntries == 0 {
		return "", false
	}
	days := entryDays(records)
	prompt := fitPrompt(budget, func(n int) string {
		return buildMonthlyNarrativePrompt(year, month, stats, days, selections, n)
	})

	var resp monthlyNarrativeResponse
	err := p.Narratives.Generate(ctx, provider.Call{
		Name:           "MonthlyNarrative",
		Instructions:   monthlyNarrativeInstructions,
		Prompt:         prompt,
		MaxPromptChars: budget,
		Schema:         monthlyNarrativeSchema(),
	}, &resp)
	if err == nil {
		err = checkNarrative(resp.Opening, resp.Closing)
	}
	if err != nil {
		logFallback(logger, "monthly_narrative", err)
		return "", false
	}
	return Narrative(resp).Marked(), true
}

func checkNarrative(opening, closing string) error {
	if strings.TrimSpace(opening) == "" || strings.TrimSpace(closing) == "" {
		return fmt.Errorf("%w: %w", provider.ErrParse, errIncompleteNarrative)
	}
	return nil
}

func (p *MonthlyPipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p *MonthlyPipeline) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}
