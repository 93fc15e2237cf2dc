package recap

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// MaxKeywordsPerDay bounds DayRecord.Keywords.
	MaxKeywordsPerDay = 20
	// MaxPhotosPerDay bounds DayRecord.Photos.
	MaxPhotosPerDay = 4
)

type Mood string

const (
	MoodGreat       Mood = "great"
	MoodGood        Mood = "good"
	MoodNeutral     Mood = "neutral"
	MoodChallenging Mood = "challenging"
	MoodDifficult   Mood = "difficult"
)

// Moods lists every mood from most to least positive.
var Moods = []Mood{MoodGreat, MoodGood, MoodNeutral, MoodChallenging, MoodDifficult}

// Valid reports whether m is one of the known moods. The empty mood is not valid.
func (m Mood) Valid() bool {
	switch m {
	case MoodGreat, MoodGood, MoodNeutral, MoodChallenging, MoodDifficult:
		return true
	}
	return false
}

// ParseMood maps free-form input onto a Mood. Unknown values map to the empty mood.
func ParseMood(s string) Mood {
	m := Mood(strings.ToLower(strings.TrimSpace(s)))
	if m.Valid() {
		return m
	}
	return ""
}

// PhotoRecord is one photo attached to a day, with the tags produced by the photo tagger.
type PhotoRecord struct {
	ID             string   `json:"id"`
	FileReference  string   `json:"file_reference"`
	DetectedScenes []string `json:"detected_scenes,omitempty"`
	HasFaces       bool     `json:"has_faces,omitempty"`
	QualityScore   float64  `json:"quality_score"`
	OCRText        string   `json:"ocr_text,omitempty"`
	Caption        string   `json:"caption,omitempty"`
}

// Tagged reports whether the photo tagger has already produced output for p.
func (p PhotoRecord) Tagged() bool {
	return len(p.DetectedScenes) > 0 || p.QualityScore > 0 || p.HasFaces || p.OCRText != ""
}

// DayRecord is everything recorded for one calendar day.
type DayRecord struct {
	Date     time.Time     `json:"date"`
	Text     string        `json:"text,omitempty"`
	Mood     Mood          `json:"mood,omitempty"`
	Starred  bool          `json:"starred,omitempty"`
	Keywords []string      `json:"keywords,omitempty"`
	Photos   []PhotoRecord `json:"photos,omitempty"`
}

// HasEntry reports whether anything was recorded for the day.
func (d DayRecord) HasEntry() bool {
	return strings.TrimSpace(d.Text) != "" || d.Mood != "" || len(d.Photos) > 0 || d.Starred
}

// Day returns the calendar date of the record at midnight UTC.
func (d DayRecord) Day() time.Time {
	return calendarDay(d.Date)
}

// Normalize enforces the record bounds: deduplicated keywords (at most MaxKeywordsPerDay),
// at most MaxPhotosPerDay photos, and quality scores clamped to [0,1].
func (d *DayRecord) Normalize() {
	d.Text = strings.TrimSpace(d.Text)
	if d.Mood != "" {
		d.Mood = ParseMood(string(d.Mood))
	}
	d.Keywords = NormalizeKeywords(d.Keywords)
	if len(d.Photos) > MaxPhotosPerDay {
		d.Photos = d.Photos[:MaxPhotosPerDay]
	}
	for i := range d.Photos {
		d.Photos[i].QualityScore = clamp01(d.Photos[i].QualityScore)
	}
}

// NormalizeKeywords trims, deduplicates case-insensitively (first spelling wins) and caps
// the list at MaxKeywordsPerDay.
func NormalizeKeywords(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, min(len(in), MaxKeywordsPerDay))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
		if len(out) == MaxKeywordsPerDay {
			break
		}
	}
	return out
}

type MonthlyStats struct {
	TotalDays         int            `json:"total_days"`
	DaysWithEntries   int            `json:"days_with_entries"`
	TotalPhotos       int            `json:"total_photos"`
	TotalWords        int            `json:"total_words"`
	LongestStreak     int            `json:"longest_streak"`
	StarredDaysCount  int            `json:"starred_days_count"`
	TopThemes         map[string]int `json:"top_themes"`
	MoodBreakdown     map[Mood]int   `json:"mood_breakdown"`
	MilestoneKeywords []string       `json:"milestone_keywords"`
	// MilestoneCounts is the number of starred days each milestone keyword came from.
	MilestoneCounts   map[string]int `json:"milestone_counts,omitempty"`
}

type YearlyStats struct {
	TotalDays        int            `json:"total_days"`
	DaysWithEntries  int            `json:"days_with_entries"`
	TotalPhotos      int            `json:"total_photos"`
	TotalWords       int            `json:"total_words"`
	LongestStreak    int            `json:"longest_streak"`
	MonthsCompleted  int            `json:"months_completed"`
	StarredDaysCount int            `json:"starred_days_count"`
	TopThemes        map[string]int `json:"top_themes"`
	MoodBreakdown    map[Mood]int   `json:"mood_breakdown"`
	Milestones       []string       `json:"milestones"`
}

// Topic is a named cluster of days. Days are day-of-month numbers and may be empty, in
// which case days are resolved by keyword containment during photo selection.
type Topic struct {
	Name        string `json:"name"`
	Days        []int  `json:"days,omitempty"`
	Description string `json:"description,omitempty"`
}

type TopicSource string

const (
	TopicSourceAI       TopicSource = "ai"
	TopicSourceKeywords TopicSource = "keywords"
)

type TopicSet struct {
	Topics []Topic
	Source TopicSource
}

// ThemedPhotoSelection binds one theme to its representative photos; Photos[0] is primary.
type ThemedPhotoSelection struct {
	Theme       string        `json:"theme"`
	Photos      []PhotoRecord `json:"photos"`
	Day         int           `json:"day,omitempty"`
	DayKeywords []string      `json:"day_keywords,omitempty"`
	Description string        `json:"description,omitempty"`
}

type GenerationMethod string

const (
	GenerationAI       GenerationMethod = "ai"
	GenerationTemplate GenerationMethod = "template"
)

type MonthlyPack struct {
	Year             int                    `json:"year"`
	Month            time.Month             `json:"month"`
	Stats            MonthlyStats           `json:"stats"`
	NarrativeText    string                 `json:"narrative_text"`
	GenerationMethod GenerationMethod       `json:"generation_method"`
	ThemedPhotos     []ThemedPhotoSelection `json:"themed_photos"`
	TopicSource      TopicSource            `json:"topic_source"`
	GeneratedAt      time.Time              `json:"generated_at"`
}

type YearlySummary struct {
	Year             int                    `json:"year"`
	Stats            YearlyStats            `json:"stats"`
	NarrativeText    string                 `json:"narrative_text"`
	GenerationMethod GenerationMethod       `json:"generation_method"`
	Photos           []ThemedPhotoSelection `json:"photos"`
	GeneratedAt      time.Time              `json:"generated_at"`
}

// ErrDecodeStats marks a persisted stats or photo blob that no longer decodes.
var ErrDecodeStats = errors.New("persisted stats blob does not decode")

// MonthlyPackRecord is the persisted shape of a MonthlyPack.
type MonthlyPackRecord struct {
	Year             int
	Month            time.Month
	Stats            json.RawMessage
	NarrativeText    string
	GenerationMethod GenerationMethod
	ThemedPhotos     json.RawMessage
	TopicSource      TopicSource
	GeneratedAt      time.Time
}

// YearlySummaryRecord is the persisted shape of a YearlySummary.
type YearlySummaryRecord struct {
	Year             int
	Stats            json.RawMessage
	NarrativeText    string
	GenerationMethod GenerationMethod
	Photos           json.RawMessage
	GeneratedAt      time.Time
}

func (p MonthlyPack) Record() (MonthlyPackRecord, error) {
	stats, err := json.Marshal(p.Stats)
	if err != nil {
		return MonthlyPackRecord{}, fmt.Errorf("MonthlyPack.Record: marshal stats: %w", err)
	}
	photos, err := json.Marshal(nonNilSelections(p.ThemedPhotos))
	if err != nil {
		return MonthlyPackRecord{}, fmt.Errorf("MonthlyPack.Record: marshal photos: %w", err)
	}
	return MonthlyPackRecord{
		Year:             p.Year,
		Month:            p.Month,
		Stats:            stats,
		NarrativeText:    p.NarrativeText,
		GenerationMethod: p.GenerationMethod,
		ThemedPhotos:     photos,
		TopicSource:      p.TopicSource,
		GeneratedAt:      p.GeneratedAt,
	}, nil
}

// DecodeStats decodes only the stats blob.
func (r MonthlyPackRecord) DecodeStats() (MonthlyStats, error) {
	var s MonthlyStats
	if len(r.Stats) == 0 {
		return s, fmt.Errorf("%04d-%02d: empty stats: %w", r.Year, int(r.Month), ErrDecodeStats)
	}
	if err := json.Unmarshal(r.Stats, &s); err != nil {
		return s, fmt.Errorf("%04d-%02d: %w: %v", r.Year, int(r.Month), ErrDecodeStats, err)
	}
	return s, nil
}

// DecodePhotos decodes only the themed photo blob. An empty blob decodes to no photos.
func (r MonthlyPackRecord) DecodePhotos() ([]ThemedPhotoSelection, error) {
	if len(r.ThemedPhotos) == 0 {
		return nil, nil
	}
	var out []ThemedPhotoSelection
	if err := json.Unmarshal(r.ThemedPhotos, &out); err != nil {
		return nil, fmt.Errorf("%04d-%02d photos: %w: %v", r.Year, int(r.Month), ErrDecodeStats, err)
	}
	return out, nil
}

// Decode converts the record back into a MonthlyPack. Any blob failure is returned.
func (r MonthlyPackRecord) Decode() (MonthlyPack, error) {
	stats, err := r.DecodeStats()
	if err != nil {
		return MonthlyPack{}, err
	}
	photos, err := r.DecodePhotos()
	if err != nil {
		return MonthlyPack{}, err
	}
	return MonthlyPack{
		Year:             r.Year,
		Month:            r.Month,
		Stats:            stats,
		NarrativeText:    r.NarrativeText,
		GenerationMethod: r.GenerationMethod,
		ThemedPhotos:     photos,
		TopicSource:      r.TopicSource,
		GeneratedAt:      r.GeneratedAt,
	}, nil
}

func (s YearlySummary) Record() (YearlySummaryRecord, error) {
	stats, err := json.Marshal(s.Stats)
	if err != nil {
		return YearlySummaryRecord{}, fmt.Errorf("YearlySummary.Record: marshal stats: %w", err)
	}
	photos, err := json.Marshal(nonNilSelections(s.Photos))
	if err != nil {
		return YearlySummaryRecord{}, fmt.Errorf("YearlySummary.Record: marshal photos: %w", err)
	}
	return YearlySummaryRecord{
		Year:             s.Year,
		Stats:            stats,
		NarrativeText:    s.NarrativeText,
		GenerationMethod: s.GenerationMethod,
		Photos:           photos,
		GeneratedAt:      s.GeneratedAt,
	}, nil
}

func (r YearlySummaryRecord) Decode() (YearlySummary, error) {
	var stats YearlyStats
	if err := json.Unmarshal(r.Stats, &stats); err != nil {
		return YearlySummary{}, fmt.Errorf("%04d: %w: %v", r.Year, ErrDecodeStats, err)
	}
	var photos []ThemedPhotoSelection
	if len(r.Photos) > 0 {
		if err := json.Unmarshal(r.Photos, &photos); err != nil {
			return YearlySummary{}, fmt.Errorf("%04d photos: %w: %v", r.Year, ErrDecodeStats, err)
		}
	}
	return YearlySummary{
		Year:             r.Year,
		Stats:            stats,
		NarrativeText:    r.NarrativeText,
		GenerationMethod: r.GenerationMethod,
		Photos:           photos,
		GeneratedAt:      r.GeneratedAt,
	}, nil
}

func nonNilSelections(in []ThemedPhotoSelection) []ThemedPhotoSelection {
	if in == nil {
		return []ThemedPhotoSelection{}
	}
	return in
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func clamp01(f float64) float64 {
	switch {
	case f != f, f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
