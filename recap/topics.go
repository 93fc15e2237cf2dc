package recap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/theimaginaryfoundation/recap-o-bot/recap/provider"
)

// DefaultMaxTopics is used when a caller passes maxTopics <= 0.
const DefaultMaxTopics = 5

// ErrNoTopics is returned by an extractor that produced nothing usable.
var ErrNoTopics = errors.New("no topics extracted")

// TopicExtractor turns a month of day records into an ordered topic list.
type TopicExtractor interface {
	ExtractTopics(ctx context.Context, records []DayRecord, maxTopics int) (TopicSet, error)
}

type topicListResponse struct {
	Topics []topicListItem `json:"topics"`
}

type topicListItem struct {
	Name    string `json:"name"`
	Days    []int  `json:"days"`
	Caption string `json:"caption"`
}

var topicListSchema = sync.OnceValue(provider.GenerateSchema[topicListResponse])

// AITopicExtractor asks the narrative generator to cluster days into named themes. Day
// references in the response are passed through unverified.
type AITopicExtractor struct {
	Client         *provider.NarrativeClient
	MaxPromptChars int
}

func (e *AITopicExtractor) ExtractTopics(ctx context.Context, records []DayRecord, maxTopics int) (TopicSet, error) {
	if maxTopics <= 0 {
		maxTopics = DefaultMaxTopics
	}
	days := entryDays(records)
	if len(days) == 0 {
		return TopicSet{Source: TopicSourceAI}, ErrNoTopics
	}

	budget := e.MaxPromptChars
	if budget <= 0 {
		budget = DefaultPromptBudgets().Topics
	}
	prompt := fitPrompt(budget, func(n int) string { return buildTopicPrompt(days, maxTopics, n) })

	var resp topicListResponse
	err := e.Client.Generate(ctx, provider.Call{
		Name:           "TopicList",
		Instructions:   topicInstructions,
		Prompt:         prompt,
		MaxPromptChars: budget,
		Schema:         topicListSchema(),
	}, &resp)
	if err != nil {
		return TopicSet{Source: TopicSourceAI}, fmt.Errorf("AITopicExtractor: %w", err)
	}

	set := TopicSet{Source: TopicSourceAI}
	for _, t := range resp.Topics {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			continue
		}
		set.Topics = append(set.Topics, Topic{
			Name:        name,
			Days:        t.Days,
			Description: strings.TrimSpace(t.Caption),
		})
		if len(set.Topics) == maxTopics {
			break
		}
	}
	if len(set.Topics) == 0 {
		return set, ErrNoTopics
	}
	return set, nil
}

// KeywordTopicExtractor names topics after the most frequent keywords. Its topics carry no
// days; photo selection resolves them by keyword containment.
type KeywordTopicExtractor struct{}

func (KeywordTopicExtractor) ExtractTopics(_ context.Context, records []DayRecord, maxTopics int) (TopicSet, error) {
	if maxTopics <= 0 {
		maxTopics = DefaultMaxTopics
	}
	set := TopicSet{Source: TopicSourceKeywords}
	for _, kc := range RankKeywords(KeywordFrequency(entryDays(records)), maxTopics) {
		set.Topics = append(set.Topics, Topic{Name: kc.Keyword})
	}
	return set, nil
}

// FallbackTopicExtractor tries Primary and falls back to Fallback on any error or an empty
// result. It never returns an error.
type FallbackTopicExtractor struct {
	Primary  TopicExtractor
	Fallback TopicExtractor
	Logger   *slog.Logger
}

// NewTopicExtractor returns the standard chain: AI topics through client, then keywords.
func NewTopicExtractor(client *provider.NarrativeClient, maxPromptChars int, logger *slog.Logger) *FallbackTopicExtractor {
	return &FallbackTopicExtractor{
		Primary:  &AITopicExtractor{Client: client, MaxPromptChars: maxPromptChars},
		Fallback: KeywordTopicExtractor{},
		Logger:   logger,
	}
}

func (e *FallbackTopicExtractor) ExtractTopics(ctx context.Context, records []DayRecord, maxTopics int) (TopicSet, error) {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if e.Primary != nil {
		set, err := e.Primary.ExtractTopics(ctx, records, maxTopics)
		if err == nil && len(set.Topics) > 0 {
			return set, nil
		}
		logFallback(logger, "topics", err)
	}

	fallback := e.Fallback
	if fallback == nil {
		fallback = KeywordTopicExtractor{}
	}
	set, err := fallback.ExtractTopics(ctx, records, maxTopics)
	if err != nil {
		logger.Warn("fallback topic extraction failed", "error", err)
		return TopicSet{Source: TopicSourceKeywords}, nil
	}
	return set, nil
}

// logFallback records why an AI path was abandoned. Unavailability is expected and is not
// logged above debug.
func logFallback(logger *slog.Logger, stage string, err error) {
	switch {
	case err == nil, errors.Is(err, ErrNoTopics):
		logger.Info("ai result empty, using fallback", "stage", stage)
	case errors.Is(err, provider.ErrUnavailable):
		logger.Debug("narrative generator unavailable, using fallback", "stage", stage)
	default:
		logger.Warn("ai path failed, using fallback", "stage", stage, "error", err)
	}
}

// entryDays returns the deduplicated, date-ordered records that have an entry.
func entryDays(records []DayRecord) []DayRecord {
	var out []DayRecord
	for _, d := range uniqueDays(records) {
		if d.HasEntry() {
			out = append(out, d)
		}
	}
	return out
}
