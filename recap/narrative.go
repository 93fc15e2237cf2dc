package recap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	OpeningMarker    = "---OPENING---"
	MilestonesMarker = "---MILESTONES---"
	ClosingMarker    = "---CLOSING---"

	milestonePrefix = "- "
)

// Narrative is the structured form of a pack's narrative text.
type Narrative struct {
	Opening    string   `json:"opening"`
	Journey    string   `json:"journey"`
	Milestones []string `json:"milestones"`
	Closing    string   `json:"closing"`
}

// Marked renders n in the marker layout used for generated narratives:
//
//	opening
//	---OPENING---
//	journey
//	---MILESTONES---
//	- milestone
//	---CLOSING---
//	closing
//
// The milestones block is omitted when there are none, so journey text may itself hold
// "- " lines.
func (n Narrative) Marked() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(n.Opening))
	b.WriteString("\n" + OpeningMarker + "\n")
	b.WriteString(strings.TrimSpace(n.Journey))
	if ms := cleanLines(n.Milestones); len(ms) > 0 {
		b.WriteString("\n" + MilestonesMarker)
		for _, m := range ms {
			b.WriteString("\n" + milestonePrefix + m)
		}
	}
	b.WriteString("\n" + ClosingMarker + "\n")
	b.WriteString(strings.TrimSpace(n.Closing))
	return b.String()
}

// Paragraphs renders n as blank-line separated paragraphs, the template layout.
func (n Narrative) Paragraphs() string {
	var parts []string
	for _, p := range []string{n.Opening, n.Journey} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if ms := cleanLines(n.Milestones); len(ms) > 0 {
		parts = append(parts, "Milestones: "+strings.Join(ms, ", ")+".")
	}
	if c := strings.TrimSpace(n.Closing); c != "" {
		parts = append(parts, c)
	}
	return strings.Join(parts, "\n\n")
}

// ParseNarrative reads either layout. Marker text yields all four parts. Paragraph text
// yields the first paragraph as opening, the last as closing and everything between as
// journey; a single paragraph is all opening.
func ParseNarrative(text string) Narrative {
	text = strings.ReplaceAll(strings.TrimSpace(text), "\r\n", "\n")
	if text == "" {
		return Narrative{}
	}

	if oi := strings.Index(text, OpeningMarker); oi >= 0 {
		if ci := strings.LastIndex(text, ClosingMarker); ci > oi {
			n := Narrative{
				Opening: strings.TrimSpace(text[:oi]),
				Closing: strings.TrimSpace(text[ci+len(ClosingMarker):]),
			}
			n.Journey, n.Milestones = splitMilestones(text[oi+len(OpeningMarker) : ci])
			return n
		}
	}

	var paras []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			paras = append(paras, p)
		}
	}
	switch len(paras) {
	case 0:
		return Narrative{}
	case 1:
		return Narrative{Opening: paras[0]}
	default:
		return Narrative{
			Opening: paras[0],
			Journey: strings.Join(paras[1:len(paras)-1], "\n\n"),
			Closing: paras[len(paras)-1],
		}
	}
}

// splitMilestones separates the journey from the "- " lines after the last
// MilestonesMarker. Without the marker the whole body is journey.
func splitMilestones(body string) (string, []string) {
	mi := strings.LastIndex(body, MilestonesMarker)
	if mi < 0 {
		return strings.TrimSpace(body), nil
	}
	var ms []string
	for _, l := range strings.Split(body[mi+len(MilestonesMarker):], "\n") {
		l = strings.TrimSpace(l)
		if !strings.HasPrefix(l, milestonePrefix) {
			continue
		}
		if m := strings.TrimSpace(strings.TrimPrefix(l, milestonePrefix)); m != "" {
			ms = append(ms, m)
		}
	}
	return strings.TrimSpace(body[:mi]), ms
}

func cleanLines(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(strings.Join(strings.Fields(s), " ")); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// TemplateMonthlyNarrative builds a narrative from stats alone.
func TemplateMonthlyNarrative(year int, month time.Month, stats MonthlyStats) Narrative {
	period := fmt.Sprintf("%s %d", month, year)
	if stats.DaysWithEntries == 0 {
		return Narrative{Opening: fmt.Sprintf("No entries were recorded in %s.", period)}
	}

	n := Narrative{
		Opening: fmt.Sprintf("In %s you wrote on %d of %d days (%d%%), adding %s words and %s.",
			period,
			stats.DaysWithEntries, stats.TotalDays, percent(stats.DaysWithEntries, stats.TotalDays),
			humanize.Comma(int64(stats.TotalWords)),
			plural(stats.TotalPhotos, "photo")),
		Journey:    templateJourney(stats.MoodBreakdown, stats.TopThemes, stats.LongestStreak),
		Milestones: stats.MilestoneKeywords,
	}
	if stats.StarredDaysCount > 0 {
		n.Closing = fmt.Sprintf("You starred %s as highlights. On to the next month.", plural(stats.StarredDaysCount, "day"))
	} else {
		n.Closing = "On to the next month."
	}
	return n
}

// TemplateYearlyNarrative builds a yearly narrative from stats alone.
func TemplateYearlyNarrative(year int, stats YearlyStats) Narrative {
	if stats.DaysWithEntries == 0 {
		return Narrative{Opening: fmt.Sprintf("No entries were recorded in %d.", year)}
	}

	n := Narrative{
		Opening: fmt.Sprintf("%d in review: %s across %s, %d%% of the year, with %s words and %s.",
			year,
			plural(stats.DaysWithEntries, "day"),
			plural(stats.MonthsCompleted, "month"),
			percent(stats.DaysWithEntries, stats.TotalDays),
			humanize.Comma(int64(stats.TotalWords)),
			plural(stats.TotalPhotos, "photo")),
		Journey:    templateJourney(stats.MoodBreakdown, stats.TopThemes, stats.LongestStreak),
		Milestones: stats.Milestones,
	}
	if stats.StarredDaysCount > 0 {
		n.Closing = fmt.Sprintf("You starred %s along the way. Here is to %d.", plural(stats.StarredDaysCount, "day"), year+1)
	} else {
		n.Closing = fmt.Sprintf("Here is to %d.", year+1)
	}
	return n
}

func templateJourney(moods map[Mood]int, themes map[string]int, streak int) string {
	var sentences []string
	if m := DominantMood(moods); m != "" {
		sentences = append(sentences, fmt.Sprintf("Most days felt %s.", m))
	}
	if top := RankKeywords(themes, 3); len(top) > 0 {
		names := make([]string, len(top))
		for i, kc := range top {
			names[i] = kc.Keyword
		}
		sentences = append(sentences, fmt.Sprintf("Recurring themes were %s.", joinAnd(names)))
	}
	if streak > 1 {
		sentences = append(sentences, fmt.Sprintf("Your longest streak ran %d days in a row.", streak))
	}
	return strings.Join(sentences, " ")
}

func percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return part * 100 / total
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return humanize.Comma(int64(n)) + " " + noun + "s"
}

func joinAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}
