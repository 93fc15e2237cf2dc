package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/theimaginaryfoundation/recap-o-bot/recap"
)

// entryInput is one day as exported by a journaling app. Date is "2006-01-02" or RFC3339.
type entryInput struct {
	Date     string              `json:"date"`
	Text     string              `json:"text"`
	Mood     string              `json:"mood"`
	Starred  bool                `json:"starred"`
	Keywords []string            `json:"keywords"`
	Photos   []recap.PhotoRecord `json:"photos"`
}

type importStats struct {
	Records     int
	Photos      int
	IDsAssigned int
}

// decodeEntries reads either a JSON array of entries or one entry per line (JSONL).
func decodeEntries(r io.Reader) ([]entryInput, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}

	dec := json.NewDecoder(br)
	var out []entryInput
	if first == '[' {
		if err := dec.Decode(&out); err != nil {
			return nil, fmt.Errorf("decode entries: %w", err)
		}
		return out, nil
	}
	for n := 1; ; n++ {
		var e entryInput
		if err := dec.Decode(&e); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("decode entry %d: %w", n, err)
		}
		out = append(out, e)
	}
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

func parseEntryDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD or RFC3339)", s)
	}
	// Keep the writer's local calendar day.
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

// toDayRecords converts inputs to DayRecords. Photos without an id get a random one so
// selections stay distinguishable; keywords are derived from text when analyzer is set
// and the entry has none.
func toDayRecords(in []entryInput, analyzer recap.TextAnalyzer) ([]recap.DayRecord, importStats, error) {
	var st importStats
	out := make([]recap.DayRecord, 0, len(in))
	for i, e := range in {
		date, err := parseEntryDate(e.Date)
		if err != nil {
			return nil, st, fmt.Errorf("entry %d: %w", i+1, err)
		}
		d := recap.DayRecord{
			Date:     date,
			Text:     e.Text,
			Mood:     recap.ParseMood(e.Mood),
			Starred:  e.Starred,
			Keywords: e.Keywords,
			Photos:   append([]recap.PhotoRecord(nil), e.Photos...),
		}
		for j := range d.Photos {
			if strings.TrimSpace(d.Photos[j].ID) == "" {
				d.Photos[j].ID = uuid.NewString()
				st.IDsAssigned++
			}
		}
		if analyzer != nil && len(d.Keywords) == 0 && strings.TrimSpace(d.Text) != "" {
			d.Keywords = analyzer.AnalyzeText(d.Text).Keywords
		}
		d.Normalize()
		st.Photos += len(d.Photos)
		out = append(out, d)
	}
	st.Records = len(out)
	return out, st, nil
}
