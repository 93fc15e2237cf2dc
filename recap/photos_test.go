package recap

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func assertExclusive(t *testing.T, sels []ThemedPhotoSelection, checkDays bool) {
	t.Helper()
	ids := map[string]string{}
	days := map[int]string{}
	for _, s := range sels {
		for _, p := range s.Photos {
			if prev, ok := ids[p.ID]; ok {
				t.Fatalf("photo %q used by %q and %q", p.ID, prev, s.Theme)
			}
			ids[p.ID] = s.Theme
		}
		if checkDays {
			if prev, ok := days[s.Day]; ok {
				t.Fatalf("day %d used by %q and %q", s.Day, prev, s.Theme)
			}
			days[s.Day] = s.Theme
		}
	}
}

func TestSelectThemedPhotos_KeywordPathMarch(t *testing.T) {
	t.Parallel()

	topics, err := KeywordTopicExtractor{}.ExtractTopics(t.Context(), marchRecords(), 5)
	if err != nil {
		t.Fatalf("ExtractTopics: %v", err)
	}
	sels := SelectThemedPhotos(marchRecords(), topics, SelectOptions{}, NewSelectionState())

	want := []struct{ theme, photo string }{
		{"beach", "d4"},
		{"family", "d10"},
		{"work", "d3"},
		{"coffee", "d15"},
		{"hike", "d20"},
	}
	if len(sels) != len(want) {
		t.Fatalf("len(sels)=%d want %d: %+v", len(sels), len(want), sels)
	}
	for i, w := range want {
		if sels[i].Theme != w.theme || sels[i].Photos[0].ID != w.photo {
			t.Fatalf("sels[%d]=%s/%s want %s/%s", i, sels[i].Theme, sels[i].Photos[0].ID, w.theme, w.photo)
		}
		if sels[i].Description == "" {
			t.Fatalf("sels[%d] has no description", i)
		}
	}
	assertExclusive(t, sels, false)
}

func TestSelectThemedPhotos_DayPathConsumesDays(t *testing.T) {
	t.Parallel()

	records := []DayRecord{
		{Date: date(2025, time.May, 1), Photos: []PhotoRecord{photo("a1", 0.5, false), photo("a2", 0.7, false)}},
		{Date: date(2025, time.May, 2), Starred: true, Photos: []PhotoRecord{photo("b1", 0.5, false)}},
		{Date: date(2025, time.May, 3), Photos: []PhotoRecord{photo("c1", 0.2, true)}},
	}
	topics := TopicSet{Source: TopicSourceAI, Topics: []Topic{
		{Name: "First", Days: []int{1, 2}, Description: "first caption"},
		{Name: "Second", Days: []int{2, 3}},
		{Name: "Third", Days: []int{2}},
		{Name: "Ghost", Days: []int{31}},
	}}
	state := NewSelectionState()
	sels := SelectThemedPhotos(records, topics, SelectOptions{}, state)

	// First: day 2 scores 0.8, day 1's best 0.7. Second: day 2 consumed, day 3 only.
	// Third: day 2 consumed, dropped. Ghost: day does not exist, dropped.
	if len(sels) != 2 {
		t.Fatalf("len(sels)=%d: %+v", len(sels), sels)
	}
	if sels[0].Photos[0].ID != "b1" || sels[0].Day != 2 || sels[0].Description != "first caption" {
		t.Fatalf("sels[0]=%+v", sels[0])
	}
	if sels[1].Photos[0].ID != "c1" || sels[1].Day != 3 {
		t.Fatalf("sels[1]=%+v", sels[1])
	}
	if sels[1].Description == "" {
		t.Fatalf("generic caption missing for topic without description")
	}
	if _, ok := state.UsedDays[2]; !ok {
		t.Fatalf("day 2 not consumed")
	}
	if _, ok := state.UsedPhotoIDs["a2"]; ok {
		t.Fatalf("unselected photo marked used")
	}
	assertExclusive(t, sels, true)
}

func TestSelectThemedPhotos_TieKeepsFirstSeen(t *testing.T) {
	t.Parallel()

	records := []DayRecord{
		{Date: date(2025, time.May, 1), Photos: []PhotoRecord{photo("x", 0.5, false), photo("y", 0.5, false)}},
	}
	sels := SelectThemedPhotos(records, TopicSet{Source: TopicSourceAI, Topics: []Topic{{Name: "t", Days: []int{1}}}}, SelectOptions{}, nil)
	if len(sels) != 1 || sels[0].Photos[0].ID != "x" {
		t.Fatalf("sels=%+v", sels)
	}
}

func TestSelectThemedPhotos_SceneBonus(t *testing.T) {
	t.Parallel()

	records := []DayRecord{
		{Date: date(2025, time.June, 1), Keywords: []string{"dogs"}, Photos: []PhotoRecord{photo("plain", 0.6, false, "park")}},
		{Date: date(2025, time.June, 2), Keywords: []string{"dog walk"}, Photos: []PhotoRecord{photo("scene", 0.5, false, "Dog")}},
	}
	sels := SelectThemedPhotos(records, TopicSet{Source: TopicSourceKeywords, Topics: []Topic{{Name: "dog"}}}, SelectOptions{}, nil)
	if len(sels) != 1 || sels[0].Photos[0].ID != "scene" {
		t.Fatalf("sels=%+v", sels)
	}
}

func TestSelectThemedPhotos_KeywordPathSkipsDaysFromDayPath(t *testing.T) {
	t.Parallel()

	records := []DayRecord{
		{Date: date(2025, time.June, 1), Keywords: []string{"garden"}, Photos: []PhotoRecord{photo("p1", 0.9, false), photo("p2", 0.8, false)}},
		{Date: date(2025, time.June, 2), Keywords: []string{"garden"}, Photos: []PhotoRecord{photo("p3", 0.1, false)}},
	}
	topics := TopicSet{Source: TopicSourceAI, Topics: []Topic{
		{Name: "Spring", Days: []int{1}},
		{Name: "garden"},
	}}
	sels := SelectThemedPhotos(records, topics, SelectOptions{}, nil)
	if len(sels) != 2 || sels[0].Photos[0].ID != "p1" || sels[1].Photos[0].ID != "p3" {
		t.Fatalf("sels=%+v", sels)
	}
}

func TestSelectThemedPhotos_FinalFallback(t *testing.T) {
	t.Parallel()

	var records []DayRecord
	for i := 1; i <= 8; i++ {
		records = append(records, DayRecord{
			Date:     date(2025, time.July, i),
			Keywords: []string{"document", "lake"},
			Photos: []PhotoRecord{
				photo(fmt.Sprintf("p%d", i), float64(i)/10, false, "texture"),
				photo(fmt.Sprintf("q%d", i), 0.05, false),
			},
		})
	}
	records = append(records, DayRecord{Date: date(2025, time.July, 20), Text: "no photos"})

	sels := SelectThemedPhotos(records, TopicSet{Source: TopicSourceKeywords, Topics: []Topic{{Name: "nomatch"}}}, SelectOptions{}, nil)
	if len(sels) != DefaultMaxFallback {
		t.Fatalf("len(sels)=%d", len(sels))
	}
	if sels[0].Photos[0].ID != "p8" || sels[1].Photos[0].ID != "p7" {
		t.Fatalf("fallback not ranked by score: %s, %s", sels[0].Photos[0].ID, sels[1].Photos[0].ID)
	}
	for i, s := range sels {
		if s.Theme != "Lake" {
			t.Fatalf("sels[%d].Theme=%q", i, s.Theme)
		}
		low := strings.ToLower(s.Description)
		if strings.Contains(low, "texture") || strings.Contains(low, "document") || !strings.Contains(low, "lake") {
			t.Fatalf("sels[%d].Description=%q", i, s.Description)
		}
	}
	if sels[0].Description == sels[1].Description {
		t.Fatalf("time phrases do not rotate: %q", sels[0].Description)
	}
	assertExclusive(t, sels, true)

	few := SelectThemedPhotos(records[:2], TopicSet{}, SelectOptions{}, nil)
	if len(few) != 2 {
		t.Fatalf("fallback count should equal days with photos, got %d", len(few))
	}
}

func TestSelectThemedPhotos_NoPhotos(t *testing.T) {
	t.Parallel()

	records := []DayRecord{{Date: date(2025, time.July, 1), Text: "hi", Keywords: []string{"hi"}}}
	if sels := SelectThemedPhotos(records, TopicSet{Topics: []Topic{{Name: "hi"}}}, SelectOptions{}, nil); len(sels) != 0 {
		t.Fatalf("sels=%+v", sels)
	}
	if sels := SelectThemedPhotos(nil, TopicSet{}, SelectOptions{}, nil); len(sels) != 0 {
		t.Fatalf("sels=%+v", sels)
	}
}

func TestSelectThemedPhotos_ExclusivityAcrossManyTopics(t *testing.T) {
	t.Parallel()

	var records []DayRecord
	for d := 1; d <= 20; d++ {
		var photos []PhotoRecord
		for k := 0; k < d%4+1; k++ {
			photos = append(photos, photo(fmt.Sprintf("%d-%d", d, k), float64((d*7+k*3)%10)/10, (d+k)%3 == 0))
		}
		records = append(records, DayRecord{
			Date:     date(2025, time.August, d),
			Starred:  d%5 == 0,
			Keywords: []string{fmt.Sprintf("k%d", d%3), "shared"},
			Photos:   photos,
		})
	}

	var topics []Topic
	for i := 0; i < 12; i++ {
		topics = append(topics, Topic{Name: fmt.Sprintf("t%d", i), Days: []int{i + 1, (i*3)%20 + 1, (i*7)%20 + 1}})
	}
	ai := SelectThemedPhotos(records, TopicSet{Source: TopicSourceAI, Topics: topics}, SelectOptions{}, nil)
	if len(ai) == 0 {
		t.Fatalf("expected selections")
	}
	assertExclusive(t, ai, true)

	kw := SelectThemedPhotos(records, TopicSet{Source: TopicSourceKeywords, Topics: []Topic{
		{Name: "shared"}, {Name: "shared"}, {Name: "k1"}, {Name: "k2"}, {Name: "K0"},
	}}, SelectOptions{}, nil)
	if len(kw) != 5 {
		t.Fatalf("len(kw)=%d", len(kw))
	}
	assertExclusive(t, kw, false)
}
