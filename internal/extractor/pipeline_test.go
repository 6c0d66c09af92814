package extractor

import (
	"context"
	"testing"
)

func heuristicAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(Config{
		Mode:                 ModeHeuristic,
		MinMessageLength:     3,
		SkipPatterns:         []string{`^help$`, `^test$`},
		MinFactConfidence:    0.6,
		MinEpisodeConfidence: 0.6,
	}, nil)
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	return a
}

func TestAnalyzeExtractsDeclarativeFactsAndOutcome(t *testing.T) {
	a := heuristicAnalyzer(t)
	result, dropped, err := a.Analyze(context.Background(),
		"The api_endpoint=https://example.com/v1 and retries = 3",
		"Great, this worked after bumping timeout=30")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if dropped != (Dropped{}) {
		t.Fatalf("expected nothing dropped, got %+v", dropped)
	}
	if len(result.Facts) == 0 {
		t.Error("expected at least one fact candidate")
	}
	if len(result.Episodes) == 0 {
		t.Error("expected an episode candidate from 'this worked'")
	}
}

func TestAnalyzeDropsShortMessages(t *testing.T) {
	a := heuristicAnalyzer(t)
	_, dropped, err := a.Analyze(context.Background(), "hi", "ok")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !dropped.TooShort {
		t.Error("expected TooShort for a short exchange")
	}
}

func TestAnalyzeDropsShortUserMessageRegardlessOfAgentResponseLength(t *testing.T) {
	a, err := NewAnalyzer(Config{
		Mode:                 ModeHeuristic,
		MinMessageLength:     10,
		MinFactConfidence:    0.6,
		MinEpisodeConfidence: 0.6,
	}, nil)
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	_, dropped, err := a.Analyze(context.Background(),
		"ok",
		"Sure, I went ahead and bumped the connection timeout to 30 seconds and reran the full suite.")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !dropped.TooShort {
		t.Error("expected TooShort: a 2-character user message must be dropped even paired with a long agent response")
	}
}

func TestAnalyzeDropsSkipPatterns(t *testing.T) {
	a := heuristicAnalyzer(t)
	_, dropped, err := a.Analyze(context.Background(), "help", "how can I help")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if dropped.SkipMatched == "" {
		t.Error("expected a skip-pattern match for 'help'")
	}
}

func TestAnalyzeGatesLowConfidenceCandidates(t *testing.T) {
	a, err := NewAnalyzer(Config{
		Mode:                 ModeHeuristic,
		MinMessageLength:     3,
		MinFactConfidence:    0.99,
		MinEpisodeConfidence: 0.99,
	}, nil)
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}

	result, _, err := a.Analyze(context.Background(), "the port is 8080 and this worked great today", "noted")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(result.Facts) != 0 || len(result.Episodes) != 0 {
		t.Errorf("expected confidence gate to drop everything, got %+v", result)
	}
}

func TestAnalyzeRecognizesPreferenceAndDecision(t *testing.T) {
	a := heuristicAnalyzer(t)
	result, _, err := a.Analyze(context.Background(),
		"I prefer pnpm over npm for this project. We decided to use postgres for storage.",
		"Understood, noting both.")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	var sawPreference, sawDecision bool
	for _, f := range result.Facts {
		if f.Scope == "preferences" {
			sawPreference = true
		}
		if f.Category == "decisions" {
			sawDecision = true
		}
	}
	if !sawPreference {
		t.Error("expected a preference fact candidate")
	}
	if !sawDecision {
		t.Error("expected a decision fact candidate")
	}
}

// fakeCompleter lets model-assisted tests avoid a live API call.
type fakeCompleter struct {
	response string
	err      error
}

func (f fakeCompleter) Complete(_ context.Context, _ string) (string, error) {
	return f.response, f.err
}

func TestAnalyzeModelAssistedParsesStructuredOutput(t *testing.T) {
	a, err := NewAnalyzer(Config{
		Mode:                 ModeModel,
		MinMessageLength:     1,
		MinFactConfidence:    0.5,
		MinEpisodeConfidence: 0.5,
	}, fakeCompleter{response: `{"facts":[{"scope":"global","category":"declarative","key":"runtime","value":"go 1.24","confidence":0.9}],"episodes":[]}`})
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}

	result, _, err := a.Analyze(context.Background(), "the runtime is go 1.24", "ack")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(result.Facts) != 1 || result.Facts[0].Key != "runtime" {
		t.Fatalf("Analyze() facts = %+v, want the model's runtime fact", result.Facts)
	}
}

func TestAnalyzeModelAssistedFallsBackOnParseFailure(t *testing.T) {
	a, err := NewAnalyzer(Config{
		Mode:                 ModeModel,
		MinMessageLength:     1,
		MinFactConfidence:    0.5,
		MinEpisodeConfidence: 0.5,
	}, fakeCompleter{response: "not json at all"})
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}

	result, _, err := a.Analyze(context.Background(), "the timeout=30 applies here", "ok")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(result.Facts) == 0 {
		t.Error("expected fallback to heuristic extraction to find the key=value fact")
	}
}
