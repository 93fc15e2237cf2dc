package provider

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeGenerator struct {
	available bool
	failFirst int
	output    string

	calls int
}

func (g *fakeGenerator) Available(context.Context) bool { return g.available }

func (g *fakeGenerator) Generate(_ context.Context, _ Request) (string, error) {
	g.calls++
	if g.calls <= g.failFirst {
		return "", errors.New("503 service unavailable")
	}
	return g.output, nil
}

type narrativeOut struct {
	Opening string `json:"opening"`
	Closing string `json:"closing"`
}

func newTestClient(g Generator) (*NarrativeClient, *[]time.Duration) {
	var waits []time.Duration
	c := &NarrativeClient{
		Generator: g,
		Sleep: func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		},
	}
	return c, &waits
}

func TestNarrativeClient_UnavailableShortCircuits(t *testing.T) {
	t.Parallel()

	g := &fakeGenerator{available: false, output: `{"opening":"a","closing":"b"}`}
	c, _ := newTestClient(g)

	var out narrativeOut
	err := c.Generate(context.Background(), Call{Name: "MonthlyNarrative", Prompt: "p"}, &out)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err=%v", err)
	}
	if g.calls != 0 {
		t.Fatalf("calls=%d, want 0", g.calls)
	}
}

func TestNarrativeClient_NilClientIsUnavailable(t *testing.T) {
	t.Parallel()

	var c *NarrativeClient
	if c.Available(context.Background()) {
		t.Fatalf("nil client reported available")
	}
}

func TestNarrativeClient_PromptTooLongFailsFast(t *testing.T) {
	t.Parallel()

	g := &fakeGenerator{available: true, output: `{}`}
	c, _ := newTestClient(g)

	var out narrativeOut
	err := c.Generate(context.Background(), Call{Name: "TopicList", Prompt: strings.Repeat("é", 11), MaxPromptChars: 10}, &out)
	if !errors.Is(err, ErrPromptTooLong) {
		t.Fatalf("err=%v", err)
	}
	var tooLong *PromptTooLongError
	if !errors.As(err, &tooLong) || tooLong.Chars != 11 || tooLong.Max != 10 {
		t.Fatalf("tooLong=%+v", tooLong)
	}
	if g.calls != 0 {
		t.Fatalf("calls=%d, want 0", g.calls)
	}
}

func TestNarrativeClient_RetryBound(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		failFirst int
		wantErr   error
		wantCalls int
		wantWaits []time.Duration
	}{
		{name: "first_try", failFirst: 0, wantCalls: 1},
		{name: "fails_twice_then_succeeds", failFirst: 2, wantCalls: 3, wantWaits: []time.Duration{2 * time.Second, 4 * time.Second}},
		{name: "fails_every_attempt", failFirst: 10, wantErr: ErrGeneration, wantCalls: 3, wantWaits: []time.Duration{2 * time.Second, 4 * time.Second}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			g := &fakeGenerator{available: true, failFirst: tc.failFirst, output: `{"opening":"hi","closing":"bye"}`}
			c, waits := newTestClient(g)

			var out narrativeOut
			err := c.Generate(context.Background(), Call{Name: "MonthlyNarrative", Prompt: "p"}, &out)
			if tc.wantErr == nil && err != nil {
				t.Fatalf("err=%v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("err=%v want %v", err, tc.wantErr)
			}
			if g.calls != tc.wantCalls {
				t.Fatalf("calls=%d want %d", g.calls, tc.wantCalls)
			}
			if len(*waits) != len(tc.wantWaits) {
				t.Fatalf("waits=%v want %v", *waits, tc.wantWaits)
			}
			for i := range tc.wantWaits {
				if (*waits)[i] != tc.wantWaits[i] {
					t.Fatalf("waits=%v want %v", *waits, tc.wantWaits)
				}
			}
			if tc.wantErr == nil && (out.Opening != "hi" || out.Closing != "bye") {
				t.Fatalf("out=%+v", out)
			}
		})
	}
}

func TestNarrativeClient_MaxAttemptsIsClamped(t *testing.T) {
	t.Parallel()

	g := &fakeGenerator{available: true, failFirst: 100}
	c, _ := newTestClient(g)
	c.MaxAttempts = 10

	var out narrativeOut
	_ = c.Generate(context.Background(), Call{Name: "YearlyNarrative", Prompt: "p"}, &out)
	if g.calls != DefaultMaxAttempts {
		t.Fatalf("calls=%d want %d", g.calls, DefaultMaxAttempts)
	}
}

func TestNarrativeClient_ParseFailureIsNotRetried(t *testing.T) {
	t.Parallel()

	g := &fakeGenerator{available: true, output: "Here is your summary: it was a good month."}
	c, waits := newTestClient(g)

	var out narrativeOut
	err := c.Generate(context.Background(), Call{Name: "MonthlyNarrative", Prompt: "p"}, &out)
	if !errors.Is(err, ErrParse) {
		t.Fatalf("err=%v", err)
	}
	if errors.Is(err, ErrGeneration) {
		t.Fatalf("parse failure reported as generation failure: %v", err)
	}
	if g.calls != 1 || len(*waits) != 0 {
		t.Fatalf("calls=%d waits=%v", g.calls, *waits)
	}
}

func TestNarrativeClient_ExtractsWrappedJSON(t *testing.T) {
	t.Parallel()

	g := &fakeGenerator{available: true, output: "```json\n{\"opening\":\"March began\",\"closing\":\"and ended\"}\n```"}
	c, _ := newTestClient(g)

	var out narrativeOut
	if err := c.Generate(context.Background(), Call{Name: "MonthlyNarrative", Prompt: "p"}, &out); err != nil {
		t.Fatalf("err=%v", err)
	}
	if out.Opening != "March began" {
		t.Fatalf("out=%+v", out)
	}
}

func TestNarrativeClient_CancelledWhileWaiting(t *testing.T) {
	t.Parallel()

	g := &fakeGenerator{available: true, failFirst: 10}
	c := &NarrativeClient{
		Generator: g,
		Sleep: func(ctx context.Context, _ time.Duration) error {
			return context.Canceled
		},
	}

	var out narrativeOut
	err := c.Generate(context.Background(), Call{Name: "TopicList", Prompt: "p"}, &out)
	if !errors.Is(err, ErrGeneration) || !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
	if g.calls != 1 {
		t.Fatalf("calls=%d", g.calls)
	}
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want string
	}{
		{err: errors.New("429 Too Many Requests"), want: "rate_limit"},
		{err: errors.New("500 Internal Server Error"), want: "server"},
		{err: errors.New("dial tcp: connection refused"), want: "other"},
	}
	for _, tc := range cases {
		if got := classifyError(tc.err); got != tc.want {
			t.Fatalf("classifyError(%v)=%q want %q", tc.err, got, tc.want)
		}
	}
}
