package extractor

import (
	"context"
	"regexp"
	"strings"

	"github.com/kayis-rahman/synapse/internal/debug"
)

// Mode selects between the always-available heuristic tier and the
// optional model-assisted tier.
type Mode string

const (
	ModeHeuristic Mode = "heuristic"
	ModeModel     Mode = "model"
)

// Analyzer runs the filtering pipeline from length filter,
// skip-pattern filter, extraction, confidence gate. Dedup (step 5) is left
// to the caller, since it requires consulting the symbolic/episodic
// stores and the analyzer is a pure function.
type Analyzer struct {
	mode                 Mode
	completer            Completer
	minMessageLength     int
	skipPatterns         []*regexp.Regexp
	minFactConfidence    float64
	minEpisodeConfidence float64
}

// Config collects the tunables Analyzer needs from the resolved
// configuration document.
type Config struct {
	Mode                 Mode
	MinMessageLength     int
	SkipPatterns         []string
	MinFactConfidence    float64
	MinEpisodeConfidence float64
}

// NewAnalyzer compiles the skip patterns once at construction. completer
// may be nil when mode is ModeHeuristic.
func NewAnalyzer(cfg Config, completer Completer) (*Analyzer, error) {
	compiled := make([]*regexp.Regexp, 0, len(cfg.SkipPatterns))
	for _, pat := range cfg.SkipPatterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, re)
	}
	return &Analyzer{
		mode:                 cfg.Mode,
		completer:            completer,
		minMessageLength:     cfg.MinMessageLength,
		skipPatterns:         compiled,
		minFactConfidence:    cfg.MinFactConfidence,
		minEpisodeConfidence: cfg.MinEpisodeConfidence,
	}, nil
}

// Dropped records why Analyze produced nothing, for callers that want to
// surface it in logs or diagnostics; the zero value means nothing was
// dropped before extraction ran.
type Dropped struct {
	TooShort    bool
	SkipMatched string
}

// Analyze runs steps 1-4 of the filtering pipeline over one (user_message,
// agent_response) exchange and returns the surviving candidates.
func (a *Analyzer) Analyze(ctx context.Context, userMessage, agentResponse string) (AnalysisResult, Dropped, error) {
	exchange := strings.TrimSpace(userMessage + "\n" + agentResponse)

	if len(userMessage) < a.minMessageLength {
		return AnalysisResult{}, Dropped{TooShort: true}, nil
	}
	for _, pat := range a.skipPatterns {
		if pat.MatchString(strings.TrimSpace(userMessage)) {
			return AnalysisResult{}, Dropped{SkipMatched: pat.String()}, nil
		}
	}

	result, err := a.extract(ctx, exchange)
	if err != nil {
		return AnalysisResult{}, Dropped{}, err
	}

	return a.gateConfidence(result), Dropped{}, nil
}

func (a *Analyzer) extract(ctx context.Context, exchange string) (AnalysisResult, error) {
	if a.mode != ModeModel || a.completer == nil {
		return runHeuristics(exchange), nil
	}

	result, err := runModel(ctx, a.completer, exchange)
	if err != nil {
		debug.Logf("extractor: model-assisted extraction failed, falling back to heuristic: %v", err)
		return runHeuristics(exchange), nil
	}
	return result, nil
}

func (a *Analyzer) gateConfidence(in AnalysisResult) AnalysisResult {
	var out AnalysisResult
	for _, f := range in.Facts {
		if f.Confidence >= a.minFactConfidence {
			out.Facts = append(out.Facts, f)
		}
	}
	for _, e := range in.Episodes {
		if e.Confidence >= a.minEpisodeConfidence {
			out.Episodes = append(out.Episodes, e)
		}
	}
	return out
}
