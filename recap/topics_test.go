package recap

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/theimaginaryfoundation/recap-o-bot/recap/provider"
)

type failingExtractor struct{ err error }

func (f failingExtractor) ExtractTopics(context.Context, []DayRecord, int) (TopicSet, error) {
	return TopicSet{}, f.err
}

func TestKeywordTopicExtractor(t *testing.T) {
	t.Parallel()

	set, err := KeywordTopicExtractor{}.ExtractTopics(t.Context(), marchRecords(), 3)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if set.Source != TopicSourceKeywords {
		t.Fatalf("Source=%q", set.Source)
	}
	var names []string
	for _, tp := range set.Topics {
		if len(tp.Days) != 0 {
			t.Fatalf("keyword topic %q carries days", tp.Name)
		}
		names = append(names, tp.Name)
	}
	if strings.Join(names, ",") != "beach,family,work" {
		t.Fatalf("names=%v", names)
	}
}

func TestAITopicExtractor_DecodesAndCaps(t *testing.T) {
	t.Parallel()

	g := newFakeGenerator(true)
	g.outputs["TopicList"] = `Sure! {"topics":[
		{"name":"Beach days","days":[4,5,99],"caption":"Salt air."},
		{"name":"  ","days":[1],"caption":"dropped"},
		{"name":"Family","days":[10],"caption":"Dinner together."},
		{"name":"Work","days":[3],"caption":"Busy."}
	]}`
	e := &AITopicExtractor{Client: testClient(g)}

	set, err := e.ExtractTopics(t.Context(), marchRecords(), 2)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if set.Source != TopicSourceAI || len(set.Topics) != 2 {
		t.Fatalf("set=%+v", set)
	}
	if set.Topics[0].Name != "Beach days" || len(set.Topics[0].Days) != 3 || set.Topics[0].Description != "Salt air." {
		t.Fatalf("Topics[0]=%+v", set.Topics[0])
	}
	if set.Topics[1].Name != "Family" {
		t.Fatalf("Topics[1]=%+v", set.Topics[1])
	}
}

func TestAITopicExtractor_PromptFitsBudget(t *testing.T) {
	t.Parallel()

	records := marchRecords()
	for i := range records {
		records[i].Text = strings.Repeat("long text ", 200)
	}
	g := newFakeGenerator(true)
	g.outputs["TopicList"] = `{"topics":[{"name":"A","days":[3],"caption":"c"}]}`
	e := &AITopicExtractor{Client: testClient(g), MaxPromptChars: 2500}

	if _, err := e.ExtractTopics(t.Context(), records, 3); err != nil {
		t.Fatalf("err=%v", err)
	}

	tiny := &AITopicExtractor{Client: testClient(g), MaxPromptChars: 50}
	_, err := tiny.ExtractTopics(t.Context(), records, 3)
	if !errors.Is(err, provider.ErrPromptTooLong) {
		t.Fatalf("err=%v", err)
	}
}

func TestFallbackTopicExtractor(t *testing.T) {
	t.Parallel()

	malformed := newFakeGenerator(true)
	malformed.outputs["TopicList"] = "I could not find any themes."
	empty := newFakeGenerator(true)
	empty.outputs["TopicList"] = `{"topics":[]}`
	failing := newFakeGenerator(true)
	failing.failFirst["TopicList"] = 100

	cases := []struct {
		name      string
		primary   TopicExtractor
		fallback  TopicExtractor
		wantSrc   TopicSource
		wantCalls func() int
		calls     int
	}{
		{name: "unavailable", primary: &AITopicExtractor{Client: testClient(newFakeGenerator(false))}, wantSrc: TopicSourceKeywords},
		{name: "nil_client", primary: &AITopicExtractor{}, wantSrc: TopicSourceKeywords},
		{name: "malformed", primary: &AITopicExtractor{Client: testClient(malformed)}, wantSrc: TopicSourceKeywords,
			wantCalls: func() int { return malformed.callCount("TopicList") }, calls: 1},
		{name: "empty", primary: &AITopicExtractor{Client: testClient(empty)}, wantSrc: TopicSourceKeywords},
		{name: "always_failing", primary: &AITopicExtractor{Client: testClient(failing)}, wantSrc: TopicSourceKeywords,
			wantCalls: func() int { return failing.callCount("TopicList") }, calls: provider.DefaultMaxAttempts},
		{name: "fallback_errors_too", primary: failingExtractor{err: errors.New("x")}, fallback: failingExtractor{err: errors.New("y")}, wantSrc: TopicSourceKeywords},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			e := &FallbackTopicExtractor{Primary: tc.primary, Fallback: tc.fallback}
			set, err := e.ExtractTopics(t.Context(), marchRecords(), 4)
			if err != nil {
				t.Fatalf("err=%v", err)
			}
			if set.Source != tc.wantSrc {
				t.Fatalf("Source=%q", set.Source)
			}
			if tc.fallback == nil && len(set.Topics) != 4 {
				t.Fatalf("len(Topics)=%d", len(set.Topics))
			}
			if tc.wantCalls != nil && tc.wantCalls() != tc.calls {
				t.Fatalf("calls=%d want %d", tc.wantCalls(), tc.calls)
			}
		})
	}
}

func TestFallbackTopicExtractor_EmptyInput(t *testing.T) {
	t.Parallel()

	e := NewTopicExtractor(testClient(newFakeGenerator(true)), 0, nil)
	set, err := e.ExtractTopics(t.Context(), nil, 3)
	if err != nil || set.Source != TopicSourceKeywords || len(set.Topics) != 0 {
		t.Fatalf("set=%+v err=%v", set, err)
	}
}
