package recap

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/theimaginaryfoundation/recap-o-bot/recap/fileutils"
)

// PromptBudgets are the per-call-site prompt ceilings in characters.
type PromptBudgets struct {
	Topics  int
	Monthly int
	Yearly  int
}

func DefaultPromptBudgets() PromptBudgets {
	return PromptBudgets{Topics: 12000, Monthly: 8000, Yearly: 10000}
}

func (b PromptBudgets) withDefaults() PromptBudgets {
	d := DefaultPromptBudgets()
	if b.Topics <= 0 {
		b.Topics = d.Topics
	}
	if b.Monthly <= 0 {
		b.Monthly = d.Monthly
	}
	if b.Yearly <= 0 {
		b.Yearly = d.Yearly
	}
	return b
}

// excerptSteps are the per-day text excerpt lengths tried, longest first, until a prompt
// fits its budget.
var excerptSteps = []int{240, 120, 60, 0}

const topicInstructions = `You group a person's journal days into themes.

Return JSON only, matching the schema:
- topics: up to the requested number of themes, most significant first.
- name: 1-3 words, concrete (e.g. "Beach trip", "New job"), no dates.
- days: day-of-month numbers taken ONLY from the days listed in the input.
- caption: one warm sentence (max 20 words) describing the theme, second person.

Do not invent events, people or places that are not in the input.`

const monthlyNarrativeInstructions = `You write a short monthly recap of a person's journal.

Return JSON only, matching the schema:
- opening: 1-2 sentences setting the tone of the month.
- journey: one paragraph (3-5 sentences) walking through the month in order.
- milestones: 0-5 short phrases naming notable moments (starred days first).
- closing: 1 sentence looking ahead.

Write in second person. Use only facts present in the input.`

const yearlyNarrativeInstructions = `You write a yearly recap of a person's journal from their monthly recaps.

Return JSON only, matching the schema:
- opening: 1-2 sentences capturing the year.
- journey: one paragraph (4-6 sentences) moving through the seasons in order.
- milestones: 0-8 short phrases naming the year's defining moments.
- closing: 1-2 sentences of reflection.

Write in second person. Use only facts present in the input.`

func buildTopicPrompt(records []DayRecord, maxTopics, excerptLen int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Requested themes: %d\n\nDays:\n", maxTopics)
	for _, d := range records {
		fmt.Fprintf(&b, "\nDay %d (%s)", d.Date.Day(), d.Date.Format("Mon Jan 2"))
		if d.Mood != "" {
			fmt.Fprintf(&b, " mood=%s", d.Mood)
		}
		if d.Starred {
			b.WriteString(" starred")
		}
		b.WriteString("\n")
		if excerptLen > 0 && d.Text != "" {
			fmt.Fprintf(&b, "  text: %s\n", fileutils.Truncate(fileutils.SanitizeNewlines(d.Text), excerptLen))
		}
		if len(d.Keywords) > 0 {
			fmt.Fprintf(&b, "  keywords: %s\n", strings.Join(d.Keywords, ", "))
		}
		for _, p := range d.Photos {
			if desc := photoDescription(p); desc != "" {
				fmt.Fprintf(&b, "  photo: %s\n", desc)
			}
		}
	}
	return b.String()
}

func photoDescription(p PhotoRecord) string {
	if c := strings.TrimSpace(p.Caption); c != "" {
		return fileutils.SanitizeNewlines(c)
	}
	words := descriptiveWords(4, p.DetectedScenes)
	if p.HasFaces {
		words = append(words, "people")
	}
	return strings.Join(words, ", ")
}

func buildMonthlyNarrativePrompt(year int, month time.Month, stats MonthlyStats, records []DayRecord, selections []ThemedPhotoSelection, excerptLen int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Month: %s %d\n", month, year)
	writeMonthlyStats(&b, stats)

	if len(selections) > 0 {
		b.WriteString("\nThemes:\n")
		for _, s := range selections {
			fmt.Fprintf(&b, "- %s", s.Theme)
			if s.Description != "" {
				fmt.Fprintf(&b, ": %s", fileutils.SanitizeNewlines(s.Description))
			}
			b.WriteString("\n")
		}
	}

	if excerptLen > 0 {
		b.WriteString("\nEntries:\n")
		for _, d := range records {
			if d.Text == "" {
				continue
			}
			star := ""
			if d.Starred {
				star = " *"
			}
			fmt.Fprintf(&b, "- %d%s: %s\n", d.Date.Day(), star, fileutils.Truncate(fileutils.SanitizeNewlines(d.Text), excerptLen))
		}
	}
	return b.String()
}

func writeMonthlyStats(b *strings.Builder, stats MonthlyStats) {
	fmt.Fprintf(b, "Days with entries: %d of %d\n", stats.DaysWithEntries, stats.TotalDays)
	fmt.Fprintf(b, "Photos: %d\nWords: %d\nLongest streak: %d\nStarred days: %d\n",
		stats.TotalPhotos, stats.TotalWords, stats.LongestStreak, stats.StarredDaysCount)
	if moods := formatMoods(stats.MoodBreakdown); moods != "" {
		fmt.Fprintf(b, "Moods: %s\n", moods)
	}
	if themes := RankKeywords(stats.TopThemes, 0); len(themes) > 0 {
		parts := make([]string, len(themes))
		for i, kc := range themes {
			parts[i] = fmt.Sprintf("%s (%d)", kc.Keyword, kc.Count)
		}
		fmt.Fprintf(b, "Top themes: %s\n", strings.Join(parts, ", "))
	}
	if len(stats.MilestoneKeywords) > 0 {
		fmt.Fprintf(b, "Milestone keywords: %s\n", strings.Join(stats.MilestoneKeywords, ", "))
	}
}

// yearlyMonth is one decoded month as seen by the yearly pipeline.
type yearlyMonth struct {
	Month     time.Month
	Stats     MonthlyStats
	Narrative string
	Photos    []ThemedPhotoSelection
}

func buildYearlyNarrativePrompt(year int, stats YearlyStats, months []yearlyMonth, excerptLen int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Year: %d\n", year)
	fmt.Fprintf(&b, "Days with entries: %d of %d\nMonths with entries: %d\n", stats.DaysWithEntries, stats.TotalDays, stats.MonthsCompleted)
	fmt.Fprintf(&b, "Photos: %d\nWords: %d\nLongest streak: %d\nStarred days: %d\n",
		stats.TotalPhotos, stats.TotalWords, stats.LongestStreak, stats.StarredDaysCount)
	if moods := formatMoods(stats.MoodBreakdown); moods != "" {
		fmt.Fprintf(&b, "Moods: %s\n", moods)
	}
	if len(stats.Milestones) > 0 {
		fmt.Fprintf(&b, "Milestones: %s\n", strings.Join(stats.Milestones, ", "))
	}

	b.WriteString("\nMonths:\n")
	for _, m := range months {
		fmt.Fprintf(&b, "- %s: %d days", m.Month, m.Stats.DaysWithEntries)
		if top := RankKeywords(m.Stats.TopThemes, 3); len(top) > 0 {
			names := make([]string, len(top))
			for i, kc := range top {
				names[i] = kc.Keyword
			}
			fmt.Fprintf(&b, "; themes: %s", strings.Join(names, ", "))
		}
		if excerptLen > 0 {
			n := ParseNarrative(m.Narrative)
			if summary := strings.TrimSpace(n.Opening + " " + n.Journey); summary != "" {
				fmt.Fprintf(&b, "; recap: %s", fileutils.Truncate(fileutils.SanitizeNewlines(summary), excerptLen))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatMoods(breakdown map[Mood]int) string {
	var parts []string
	for _, m := range Moods {
		if c := breakdown[m]; c > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", m, c))
		}
	}
	// Unknown moods that slipped past normalization still count.
	var extra []string
	for m, c := range breakdown {
		if !m.Valid() && c > 0 {
			extra = append(extra, fmt.Sprintf("%s=%d", m, c))
		}
	}
	sort.Strings(extra)
	return strings.Join(append(parts, extra...), ", ")
}

// fitPrompt returns the first prompt built with a decreasing excerpt length that fits
// budget, or the shortest one when none fits.
func fitPrompt(budget int, build func(excerptLen int) string) string {
	var prompt string
	for _, n := range excerptSteps {
		prompt = build(n)
		if budget <= 0 || len([]rune(prompt)) <= budget {
			return prompt
		}
	}
	return prompt
}
