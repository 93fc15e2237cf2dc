package recap

import (
	"context"
	"sort"
	"strings"
	"unicode"
)

// TextAnalysis is the output of a text analyzer for one day's text.
type TextAnalysis struct {
	Sentiment float64
	Keywords  []string
	Entities  []string
}

// TextAnalyzer derives keywords and word counts from free text.
type TextAnalyzer interface {
	AnalyzeText(text string) TextAnalysis
	CountWords(text string) int
}

// PhotoAnalysis is the output of a photo tagger for one photo.
type PhotoAnalysis struct {
	Scenes       []string
	HasFaces     bool
	QualityScore float64
	OCRText      string
}

// Apply copies the analysis onto p.
func (a PhotoAnalysis) Apply(p *PhotoRecord) {
	p.DetectedScenes = append([]string(nil), a.Scenes...)
	p.HasFaces = a.HasFaces
	p.QualityScore = clamp01(a.QualityScore)
	p.OCRText = a.OCRText
}

// PhotoTagger classifies a photo. Implementations live outside this module; the pipeline
// only consumes their tags.
type PhotoTagger interface {
	Analyze(ctx context.Context, photo PhotoRecord) (PhotoAnalysis, error)
}

// SimpleTextAnalyzer is a deterministic TextAnalyzer: keywords are the most frequent
// non-stopword tokens, entities are capitalized tokens that do not start a sentence.
type SimpleTextAnalyzer struct {
	// MaxKeywords defaults to 8.
	MaxKeywords int
	// MinLength is the shortest token kept as a keyword (default 4 runes).
	MinLength int
}

func (a SimpleTextAnalyzer) CountWords(text string) int {
	return len(strings.Fields(text))
}

func (a SimpleTextAnalyzer) AnalyzeText(text string) TextAnalysis {
	maxKeywords := a.MaxKeywords
	if maxKeywords <= 0 {
		maxKeywords = 8
	}
	minLen := a.MinLength
	if minLen <= 0 {
		minLen = 4
	}

	type tokenStat struct {
		count int
		first int
	}
	stats := map[string]*tokenStat{}
	var entities []string
	seenEntity := map[string]struct{}{}

	sentenceStart := true
	for i, raw := range strings.Fields(text) {
		word := strings.TrimFunc(raw, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		endsSentence := strings.ContainsAny(raw, ".!?")
		if word == "" {
			sentenceStart = sentenceStart || endsSentence
			continue
		}

		first := []rune(word)[0]
		if unicode.IsUpper(first) && !sentenceStart {
			if _, ok := seenEntity[word]; !ok {
				seenEntity[word] = struct{}{}
				entities = append(entities, word)
			}
		}
		sentenceStart = endsSentence

		key := strings.ToLower(word)
		if len([]rune(key)) < minLen {
			continue
		}
		if _, stop := stopwords[key]; stop {
			continue
		}
		if s, ok := stats[key]; ok {
			s.count++
			continue
		}
		stats[key] = &tokenStat{count: 1, first: i}
	}

	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		si, sj := stats[keys[i]], stats[keys[j]]
		if si.count != sj.count {
			return si.count > sj.count
		}
		return si.first < sj.first
	})
	if len(keys) > maxKeywords {
		keys = keys[:maxKeywords]
	}
	return TextAnalysis{Keywords: keys, Entities: entities}
}

var stopwords = map[string]struct{}{
	"about": {}, "after": {}, "again": {}, "also": {}, "been": {}, "before": {}, "being": {},
	"could": {}, "didn": {}, "does": {}, "doing": {}, "down": {}, "each": {}, "even": {},
	"every": {}, "from": {}, "have": {}, "having": {}, "here": {}, "into": {}, "just": {},
	"like": {}, "made": {}, "make": {}, "many": {}, "more": {}, "most": {}, "much": {},
	"only": {}, "other": {}, "over": {}, "really": {}, "some": {}, "still": {}, "such": {},
	"than": {}, "that": {}, "their": {}, "them": {}, "then": {}, "there": {}, "these": {},
	"they": {}, "thing": {}, "things": {}, "this": {}, "those": {}, "through": {}, "today": {},
	"very": {}, "want": {}, "were": {}, "what": {}, "when": {}, "where": {}, "which": {},
	"while": {}, "will": {}, "with": {}, "would": {}, "your": {}, "yesterday": {},
}
