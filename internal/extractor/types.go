// Package extractor implements the Conversation Analyzer:
// given a user/agent exchange, it produces candidate facts and episodes
// for the caller to commit to the symbolic and episodic stores.
//
// A two-tier heuristic/model-assisted pipeline: regex recognizers are
// always available, and an optional model-assisted tier (backed by
// anthropic-sdk-go) replaces them in model mode; the recognizers run in
// model mode only when the model call or its parse fails.
package extractor

import "github.com/kayis-rahman/synapse/internal/types"

// FactCandidate is a candidate row for the symbolic store.
type FactCandidate struct {
	Scope      string
	Category   string
	Key        string
	Value      string
	Confidence float64
}

// EpisodeCandidate is a candidate row for the episodic store.
type EpisodeCandidate struct {
	Situation  string
	Action     string
	Outcome    string
	Lesson     string
	LessonType types.LessonType
	Confidence float64
	Quality    float64
}

// AnalysisResult is the pure output of Analyze: the analyzer never writes
// to a store itself, the caller decides whether to commit.
type AnalysisResult struct {
	Facts    []FactCandidate
	Episodes []EpisodeCandidate
}

// Recognizer is one heuristic pattern family (declarative facts,
// preferences, decisions, outcomes). Each recognizer inspects the full
// exchange and appends whatever candidates it finds.
type Recognizer interface {
	Recognize(exchange string) AnalysisResult
}
