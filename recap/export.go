package recap

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/theimaginaryfoundation/recap-o-bot/recap/fileutils"
)

// ExportOptions controls where rendered recaps are written.
type ExportOptions struct {
	OutDir    string
	Overwrite bool
	// Pretty indents the JSON copy written next to each markdown file.
	Pretty bool
}

// ExportIndexRecord maps one exported pack or summary to its files.
type ExportIndexRecord struct {
	Kind             string           `json:"kind"`
	Year             int              `json:"year"`
	Month            int              `json:"month,omitempty"`
	MarkdownFile     string           `json:"markdown_file"`
	JSONFile         string           `json:"json_file"`
	GenerationMethod GenerationMethod `json:"generation_method"`
	Opening          string           `json:"opening,omitempty"`
	Themes           []string         `json:"themes,omitempty"`
	GeneratedAt      time.Time        `json:"generated_at"`
}

// ExportMonthlyPack writes recap_YYYY_MM.md and recap_YYYY_MM.json under opts.OutDir.
func ExportMonthlyPack(pack MonthlyPack, opts ExportOptions) (ExportIndexRecord, error) {
	base := fmt.Sprintf("recap_%04d_%02d", pack.Year, int(pack.Month))
	md := renderMonthlyMarkdown(pack)
	if err := writeExport(opts, base, md, pack); err != nil {
		return ExportIndexRecord{}, fmt.Errorf("ExportMonthlyPack: %w", err)
	}
	return ExportIndexRecord{
		Kind:             "monthly",
		Year:             pack.Year,
		Month:            int(pack.Month),
		MarkdownFile:     base + ".md",
		JSONFile:         base + ".json",
		GenerationMethod: pack.GenerationMethod,
		Opening:          fileutils.Truncate(ParseNarrative(pack.NarrativeText).Opening, 400),
		Themes:           themeNames(pack.ThemedPhotos),
		GeneratedAt:      pack.GeneratedAt,
	}, nil
}

// ExportYearlySummary writes recap_YYYY.md and recap_YYYY.json under opts.OutDir.
func ExportYearlySummary(s YearlySummary, opts ExportOptions) (ExportIndexRecord, error) {
	base := fmt.Sprintf("recap_%04d", s.Year)
	md := renderYearlyMarkdown(s)
	if err := writeExport(opts, base, md, s); err != nil {
		return ExportIndexRecord{}, fmt.Errorf("ExportYearlySummary: %w", err)
	}
	return ExportIndexRecord{
		Kind:             "yearly",
		Year:             s.Year,
		MarkdownFile:     base + ".md",
		JSONFile:         base + ".json",
		GenerationMethod: s.GenerationMethod,
		Opening:          fileutils.Truncate(ParseNarrative(s.NarrativeText).Opening, 400),
		Themes:           themeNames(s.Photos),
		GeneratedAt:      s.GeneratedAt,
	}, nil
}

// WriteExportIndex writes records as JSONL.
func WriteExportIndex(path string, records []ExportIndexRecord, overwrite bool) error {
	if path == "" {
		return errors.New("WriteExportIndex: path is empty")
	}
	if !overwrite && fileutils.FileExists(path) {
		return fmt.Errorf("WriteExportIndex: file exists: %s", path)
	}
	var b strings.Builder
	for _, r := range records {
		line, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("WriteExportIndex: marshal: %w", err)
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	if err := fileutils.WriteFileAtomicSameDir(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("WriteExportIndex: write: %w", err)
	}
	return nil
}

func writeExport(opts ExportOptions, base, markdown string, v any) error {
	if opts.OutDir == "" {
		return errors.New("OutDir is empty")
	}
	mdPath := filepath.Join(opts.OutDir, base+".md")
	jsonPath := filepath.Join(opts.OutDir, base+".json")
	if !opts.Overwrite {
		for _, p := range []string{mdPath, jsonPath} {
			if fileutils.FileExists(p) {
				return fmt.Errorf("file exists: %s", p)
			}
		}
	}
	if err := fileutils.WriteFileAtomicSameDir(mdPath, []byte(markdown), 0o644); err != nil {
		return fmt.Errorf("write markdown: %w", err)
	}
	if err := fileutils.WriteJSONFileAtomic(jsonPath, v, opts.Pretty); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

func renderMonthlyMarkdown(pack MonthlyPack) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s %d\n\n", pack.Month, pack.Year)
	writeGenerated(&b, pack.GenerationMethod, pack.GeneratedAt)
	writeNarrative(&b, ParseNarrative(pack.NarrativeText), "The month")

	s := pack.Stats
	b.WriteString("## By the numbers\n\n")
	fmt.Fprintf(&b, "- days with entries: %d of %d\n", s.DaysWithEntries, s.TotalDays)
	fmt.Fprintf(&b, "- words: %s\n", humanize.Comma(int64(s.TotalWords)))
	fmt.Fprintf(&b, "- photos: %s\n", humanize.Comma(int64(s.TotalPhotos)))
	fmt.Fprintf(&b, "- longest streak: %d\n", s.LongestStreak)
	fmt.Fprintf(&b, "- starred days: %d\n", s.StarredDaysCount)
	if moods := formatMoods(s.MoodBreakdown); moods != "" {
		fmt.Fprintf(&b, "- moods: %s\n", moods)
	}
	b.WriteString("\n")

	writeHighlights(&b, pack.ThemedPhotos, func(day int) string {
		return fmt.Sprintf("%s %s", pack.Month, humanize.Ordinal(day))
	})
	return b.String()
}

func renderYearlyMarkdown(s YearlySummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %d\n\n", s.Year)
	writeGenerated(&b, s.GenerationMethod, s.GeneratedAt)
	writeNarrative(&b, ParseNarrative(s.NarrativeText), "The year")

	st := s.Stats
	b.WriteString("## By the numbers\n\n")
	fmt.Fprintf(&b, "- days with entries: %s of %d\n", humanize.Comma(int64(st.DaysWithEntries)), st.TotalDays)
	fmt.Fprintf(&b, "- months with entries: %d\n", st.MonthsCompleted)
	fmt.Fprintf(&b, "- words: %s\n", humanize.Comma(int64(st.TotalWords)))
	fmt.Fprintf(&b, "- photos: %s\n", humanize.Comma(int64(st.TotalPhotos)))
	fmt.Fprintf(&b, "- longest streak: %d\n", st.LongestStreak)
	if moods := formatMoods(st.MoodBreakdown); moods != "" {
		fmt.Fprintf(&b, "- moods: %s\n", moods)
	}
	b.WriteString("\n")

	writeHighlights(&b, s.Photos, func(day int) string {
		return "the " + humanize.Ordinal(day)
	})
	return b.String()
}

func writeGenerated(b *strings.Builder, method GenerationMethod, at time.Time) {
	if at.IsZero() {
		fmt.Fprintf(b, "_generation: %s_\n\n", method)
		return
	}
	fmt.Fprintf(b, "_generation: %s, %s_\n\n", method, at.UTC().Format(time.RFC3339))
}

func writeNarrative(b *strings.Builder, n Narrative, journeyHeading string) {
	if n.Opening != "" {
		b.WriteString(n.Opening)
		b.WriteString("\n\n")
	}
	if n.Journey != "" {
		fmt.Fprintf(b, "## %s\n\n%s\n\n", journeyHeading, n.Journey)
	}
	if len(n.Milestones) > 0 {
		b.WriteString("## Milestones\n\n")
		for _, m := range n.Milestones {
			fmt.Fprintf(b, "- %s\n", fileutils.SanitizeNewlines(m))
		}
		b.WriteString("\n")
	}
	if n.Closing != "" {
		b.WriteString(n.Closing)
		b.WriteString("\n\n")
	}
}

func writeHighlights(b *strings.Builder, selections []ThemedPhotoSelection, dayLabel func(int) string) {
	if len(selections) == 0 {
		return
	}
	b.WriteString("## Highlights\n\n")
	for _, sel := range selections {
		fmt.Fprintf(b, "### %s\n\n", fileutils.SanitizeNewlines(sel.Theme))
		if sel.Day > 0 {
			fmt.Fprintf(b, "_%s_\n\n", dayLabel(sel.Day))
		}
		if sel.Description != "" {
			fmt.Fprintf(b, "%s\n\n", fileutils.SanitizeNewlines(sel.Description))
		}
		for _, p := range sel.Photos {
			fmt.Fprintf(b, "- photo `%s`", p.FileReference)
			if p.Caption != "" {
				fmt.Fprintf(b, ": %s", fileutils.SanitizeNewlines(p.Caption))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n---\n\n")
	}
}

func themeNames(selections []ThemedPhotoSelection) []string {
	out := make([]string, 0, len(selections))
	for _, s := range selections {
		out = append(out, s.Theme)
	}
	return out
}
