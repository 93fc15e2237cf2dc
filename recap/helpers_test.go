package recap

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/theimaginaryfoundation/recap-o-bot/recap/provider"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func photo(id string, quality float64, faces bool, scenes ...string) PhotoRecord {
	return PhotoRecord{ID: id, FileReference: id + ".jpg", QualityScore: quality, HasFaces: faces, DetectedScenes: scenes}
}

// marchRecords is ten March days: three starred, moods great:4 good:3 neutral:3, one photo each.
func marchRecords() []DayRecord {
	d := func(day int, mood Mood, starred bool, kws []string, p PhotoRecord) DayRecord {
		return DayRecord{
			Date:     date(2025, time.March, day),
			Text:     "a few words about the day",
			Mood:     mood,
			Starred:  starred,
			Keywords: kws,
			Photos:   []PhotoRecord{p},
		}
	}
	return []DayRecord{
		d(3, MoodGreat, false, []string{"work", "coffee"}, photo("d3", 0.5, false, "desk")),
		d(4, MoodGreat, true, []string{"beach", "family"}, photo("d4", 0.8, false, "shore")),
		d(5, MoodGreat, false, []string{"beach", "sunset"}, photo("d5", 0.9, false, "ocean")),
		d(6, MoodGood, false, []string{"beach", "family"}, photo("d6", 0.6, true, "sand")),
		d(7, MoodGood, false, []string{"work"}, photo("d7", 0.4, false, "office")),
		d(10, MoodGood, true, []string{"family", "dinner"}, photo("d10", 0.7, true, "table")),
		d(12, MoodNeutral, false, []string{"hike"}, photo("d12", 0.5, false, "trail")),
		d(15, MoodNeutral, false, []string{"work", "coffee"}, photo("d15", 0.45, false, "cup")),
		d(20, MoodNeutral, true, []string{"hike", "family"}, photo("d20", 0.6, false, "mountain")),
		d(28, MoodGreat, false, []string{"sunset", "beach"}, photo("d28", 0.85, false, "sky")),
	}
}

type fakeGenerator struct {
	mu        sync.Mutex
	available bool
	outputs   map[string]string
	failFirst map[string]int
	calls     map[string]int
}

func newFakeGenerator(available bool) *fakeGenerator {
	return &fakeGenerator{available: available, outputs: map[string]string{}, failFirst: map[string]int{}, calls: map[string]int{}}
}

func (g *fakeGenerator) Available(context.Context) bool { return g.available }

func (g *fakeGenerator) Generate(_ context.Context, req provider.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[req.Name]++
	if g.calls[req.Name] <= g.failFirst[req.Name] {
		return "", errors.New("503 service unavailable")
	}
	out, ok := g.outputs[req.Name]
	if !ok {
		return "", errors.New("no scripted output for " + req.Name)
	}
	return out, nil
}

func (g *fakeGenerator) callCount(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[name]
}

func testClient(g provider.Generator) *provider.NarrativeClient {
	return &provider.NarrativeClient{
		Generator: g,
		Sleep:     func(context.Context, time.Duration) error { return nil },
	}
}

type memStore struct {
	mu        sync.Mutex
	days      []DayRecord
	monthly   map[[2]int]MonthlyPackRecord
	yearly    map[int]YearlySummaryRecord
	upsertErr error
}

func newMemStore(days []DayRecord) *memStore {
	return &memStore{days: days, monthly: map[[2]int]MonthlyPackRecord{}, yearly: map[int]YearlySummaryRecord{}}
}

func (s *memStore) FetchDayRecords(_ context.Context, start, end time.Time) ([]DayRecord, error) {
	var out []DayRecord
	for _, d := range s.days {
		if !d.Date.Before(start) && d.Date.Before(end) {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *memStore) UpsertMonthlyPack(_ context.Context, rec MonthlyPackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.monthly[[2]int{rec.Year, int(rec.Month)}] = rec
	return nil
}

func (s *memStore) UpsertYearlySummary(_ context.Context, rec YearlySummaryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.yearly[rec.Year] = rec
	return nil
}

func (s *memStore) MonthlyPackRecords(_ context.Context, year int) ([]MonthlyPackRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []MonthlyPackRecord
	for k, v := range s.monthly {
		if k[0] == year {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}
