package recap

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	topThemesLimit       = 10
	yearlyMilestoneLimit = 10
	milestonesPerStarred = 3
)

// KeywordCount is one row of a keyword ranking.
type KeywordCount struct {
	Keyword string
	Count   int
}

// DaysIn returns the calendar length of month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DaysInYear returns 366 for leap years and 365 otherwise.
func DaysInYear(year int) int {
	if time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC).YearDay() == 366 {
		return 366
	}
	return 365
}

// ComputeMonthlyStats folds the records of one month into MonthlyStats. Records are sorted
// by date and deduplicated by calendar day (first occurrence wins) before counting, so the
// result does not depend on input order. countWords may be nil, in which case words are
// counted by whitespace splitting.
func ComputeMonthlyStats(year int, month time.Month, records []DayRecord, countWords func(string) int) MonthlyStats {
	if countWords == nil {
		countWords = func(s string) int { return len(strings.Fields(s)) }
	}

	days := uniqueDays(records)
	stats := MonthlyStats{
		TotalDays:         DaysIn(year, month),
		TopThemes:         map[string]int{},
		MoodBreakdown:     map[Mood]int{},
		MilestoneKeywords: []string{},
		MilestoneCounts:   map[string]int{},
	}

	var entryDates []time.Time
	seenMilestone := map[string]struct{}{}
	for _, d := range days {
		if !d.HasEntry() {
			continue
		}
		stats.DaysWithEntries++
		entryDates = append(entryDates, d.Date)
		stats.TotalPhotos += len(d.Photos)
		if d.Text != "" {
			stats.TotalWords += countWords(d.Text)
		}
		if d.Mood != "" {
			stats.MoodBreakdown[d.Mood]++
		}
		if d.Starred {
			stats.StarredDaysCount++
			for i, kw := range d.Keywords {
				if i == milestonesPerStarred {
					break
				}
				key := strings.ToLower(strings.TrimSpace(kw))
				if key == "" {
					continue
				}
				stats.MilestoneCounts[key]++
				if _, ok := seenMilestone[key]; ok {
					continue
				}
				seenMilestone[key] = struct{}{}
				stats.MilestoneKeywords = append(stats.MilestoneKeywords, key)
			}
		}
	}

	stats.LongestStreak = LongestStreak(entryDates)
	for _, kc := range RankKeywords(KeywordFrequency(days), topThemesLimit) {
		stats.TopThemes[kc.Keyword] = kc.Count
	}
	return stats
}

// ComputeYearlyStats re-aggregates monthly statistics. The yearly streak is the longest
// monthly streak; runs crossing a month boundary are not joined.
func ComputeYearlyStats(year int, months []MonthlyStats) YearlyStats {
	stats := YearlyStats{
		TotalDays:     DaysInYear(year),
		TopThemes:     map[string]int{},
		MoodBreakdown: map[Mood]int{},
		Milestones:    []string{},
	}

	themes := map[string]int{}
	milestones := map[string]int{}
	for _, m := range months {
		stats.DaysWithEntries += m.DaysWithEntries
		stats.TotalPhotos += m.TotalPhotos
		stats.TotalWords += m.TotalWords
		stats.StarredDaysCount += m.StarredDaysCount
		if m.LongestStreak > stats.LongestStreak {
			stats.LongestStreak = m.LongestStreak
		}
		if m.DaysWithEntries > 0 {
			stats.MonthsCompleted++
		}
		for k, v := range m.TopThemes {
			themes[k] += v
		}
		for k, v := range m.MoodBreakdown {
			stats.MoodBreakdown[k] += v
		}
		if len(m.MilestoneCounts) > 0 {
			for kw, n := range m.MilestoneCounts {
				milestones[kw] += n
			}
			continue
		}
		// Packs stored before per-day counts existed count once per month.
		for _, kw := range m.MilestoneKeywords {
			milestones[kw]++
		}
	}

	for _, kc := range RankKeywords(themes, topThemesLimit) {
		stats.TopThemes[kc.Keyword] = kc.Count
	}
	for _, kc := range RankKeywords(milestones, yearlyMilestoneLimit) {
		stats.Milestones = append(stats.Milestones, kc.Keyword)
	}
	return stats
}

// KeywordFrequency sums lower-cased keyword occurrences across records.
func KeywordFrequency(records []DayRecord) map[string]int {
	freq := map[string]int{}
	for _, r := range records {
		for _, kw := range r.Keywords {
			key := strings.ToLower(strings.TrimSpace(kw))
			if key == "" {
				continue
			}
			freq[key]++
		}
	}
	return freq
}

// RankKeywords orders freq by count descending, then keyword ascending, and keeps the
// first n (all when n <= 0).
func RankKeywords(freq map[string]int, n int) []KeywordCount {
	out := make([]KeywordCount, 0, len(freq))
	for k, v := range freq {
		out = append(out, KeywordCount{Keyword: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Keyword < out[j].Keyword
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// DominantMood returns the most frequent mood, ties broken toward the more positive mood.
// It returns the empty mood when no moods were recorded.
func DominantMood(breakdown map[Mood]int) Mood {
	var best Mood
	bestCount := 0
	for _, m := range Moods {
		if c := breakdown[m]; c > bestCount {
			best, bestCount = m, c
		}
	}
	return best
}

// uniqueDays returns records sorted by date with one record kept per calendar day. When
// several records share a day the richest one wins (see richerRecord), so the result does
// not depend on input order.
func uniqueDays(records []DayRecord) []DayRecord {
	sorted := append([]DayRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		di, dj := sorted[i].Day(), sorted[j].Day()
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return richerRecord(sorted[i], sorted[j])
	})

	out := sorted[:0]
	var last time.Time
	for i, r := range sorted {
		day := r.Day()
		if i > 0 && day.Equal(last) {
			continue
		}
		last = day
		out = append(out, r)
	}
	return out
}

// richerRecord orders same-day records: entries before blanks, then starred, more photos,
// longer text, more keywords, a set mood, and finally a lexical comparison of the content.
func richerRecord(a, b DayRecord) bool {
	if x, y := a.HasEntry(), b.HasEntry(); x != y {
		return x
	}
	if a.Starred != b.Starred {
		return a.Starred
	}
	if len(a.Photos) != len(b.Photos) {
		return len(a.Photos) > len(b.Photos)
	}
	if la, lb := utf8.RuneCountInString(a.Text), utf8.RuneCountInString(b.Text); la != lb {
		return la > lb
	}
	if len(a.Keywords) != len(b.Keywords) {
		return len(a.Keywords) > len(b.Keywords)
	}
	if (a.Mood != "") != (b.Mood != "") {
		return a.Mood != ""
	}
	if a.Text != b.Text {
		return a.Text < b.Text
	}
	if a.Mood != b.Mood {
		return moodRank(a.Mood) < moodRank(b.Mood)
	}
	if ka, kb := strings.Join(a.Keywords, "\x00"), strings.Join(b.Keywords, "\x00"); ka != kb {
		return ka < kb
	}
	return photoIDs(a.Photos) < photoIDs(b.Photos)
}

func moodRank(m Mood) int {
	for i, v := range Moods {
		if v == m {
			return i
		}
	}
	return len(Moods)
}

func photoIDs(photos []PhotoRecord) string {
	ids := make([]string, len(photos))
	for i, p := range photos {
		ids[i] = photoKey(p)
	}
	return strings.Join(ids, "\x00")
}
