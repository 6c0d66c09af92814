package extractor

import (
	"regexp"
	"strings"

	"github.com/kayis-rahman/synapse/internal/types"
)

// heuristicRecognizers returns the fixed set of pattern-based recognizers
// that make up the always-available extraction mode.
func heuristicRecognizers() []Recognizer {
	return []Recognizer{
		declarativeRecognizer{},
		preferenceRecognizer{},
		decisionRecognizer{},
		outcomeRecognizer{},
	}
}

func runHeuristics(exchange string) AnalysisResult {
	var out AnalysisResult
	for _, r := range heuristicRecognizers() {
		res := r.Recognize(exchange)
		out.Facts = append(out.Facts, res.Facts...)
		out.Episodes = append(out.Episodes, res.Episodes...)
	}
	return out
}

// declarativeRecognizer matches "X is Y" statements, bare URLs,
// key=value pairs, and "<name> version <n>" mentions. URLs, versions, and
// key=value pairs are the most surface-certain (0.85-0.9); "X is Y" gets
// 0.7.
type declarativeRecognizer struct{}

var (
	isPattern      = regexp.MustCompile(`(?i)\b([A-Za-z][\w .-]{1,40}?)\s+is\s+([\w./:-]{1,80})\b`)
	urlPattern     = regexp.MustCompile(`https?://[^\s)]+`)
	keyValPattern  = regexp.MustCompile(`\b([a-zA-Z_][\w.-]{0,30})\s*=\s*([^\s,;]{1,80})`)
	versionPattern = regexp.MustCompile(`(?i)\b([\w-]+)\s+version\s+(v?\d+(?:\.\d+){1,3})\b`)
)

func (declarativeRecognizer) Recognize(exchange string) AnalysisResult {
	var out AnalysisResult

	for _, m := range isPattern.FindAllStringSubmatch(exchange, -1) {
		out.Facts = append(out.Facts, FactCandidate{
			Scope: "global", Category: "declarative",
			Key: normalizeKey(m[1]), Value: strings.TrimSpace(m[2]),
			Confidence: 0.7,
		})
	}
	for _, url := range urlPattern.FindAllString(exchange, -1) {
		out.Facts = append(out.Facts, FactCandidate{
			Scope: "global", Category: "reference",
			Key: "url", Value: url, Confidence: 0.9,
		})
	}
	for _, m := range keyValPattern.FindAllStringSubmatch(exchange, -1) {
		out.Facts = append(out.Facts, FactCandidate{
			Scope: "global", Category: "configuration",
			Key: normalizeKey(m[1]), Value: m[2], Confidence: 0.85,
		})
	}
	for _, m := range versionPattern.FindAllStringSubmatch(exchange, -1) {
		out.Facts = append(out.Facts, FactCandidate{
			Scope: "global", Category: "version",
			Key: normalizeKey(m[1]), Value: m[2], Confidence: 0.9,
		})
	}
	return out
}

// preferenceRecognizer matches "I prefer X over Y".
type preferenceRecognizer struct{}

var preferPattern = regexp.MustCompile(`(?i)\bI\s+prefer\s+(.{1,60}?)\s+over\s+(.{1,60}?)[.\n]`)

func (preferenceRecognizer) Recognize(exchange string) AnalysisResult {
	var out AnalysisResult
	for _, m := range preferPattern.FindAllStringSubmatch(exchange+"\n", -1) {
		out.Facts = append(out.Facts, FactCandidate{
			Scope: "preferences", Category: "stated",
			Key:        normalizeKey(m[1]),
			Value:      "preferred over " + strings.TrimSpace(m[2]),
			Confidence: 0.75,
		})
	}
	return out
}

// decisionRecognizer matches "we decided to use X" / "decided on X".
type decisionRecognizer struct{}

var decisionPattern = regexp.MustCompile(`(?i)\bwe\s+decided\s+(?:to\s+use|on)\s+(.{1,60}?)[.\n]`)

func (decisionRecognizer) Recognize(exchange string) AnalysisResult {
	var out AnalysisResult
	for _, m := range decisionPattern.FindAllStringSubmatch(exchange+"\n", -1) {
		out.Facts = append(out.Facts, FactCandidate{
			Scope: "global", Category: "decisions",
			Key: "decision", Value: strings.TrimSpace(m[1]), Confidence: 0.8,
		})
	}
	return out
}

// outcomeRecognizer matches "this worked" / "this didn't work" / "lesson
// learned: X" and turns them into episode candidates.
type outcomeRecognizer struct{}

var (
	workedPattern  = regexp.MustCompile(`(?i)\bthis\s+worked\b`)
	failedPattern  = regexp.MustCompile(`(?i)\bthis\s+(?:didn't|did not)\s+work\b`)
	lessonPattern  = regexp.MustCompile(`(?i)\blesson\s+learned\s*:\s*(.{1,200}?)[.\n]`)
)

func (outcomeRecognizer) Recognize(exchange string) AnalysisResult {
	var out AnalysisResult

	switch {
	case workedPattern.MatchString(exchange):
		out.Episodes = append(out.Episodes, EpisodeCandidate{
			Situation: firstSentence(exchange), Action: "applied the described change",
			Outcome: "worked", Lesson: "approach succeeded as applied",
			LessonType: types.LessonPattern, Confidence: 0.7, Quality: 0.6,
		})
	case failedPattern.MatchString(exchange):
		out.Episodes = append(out.Episodes, EpisodeCandidate{
			Situation: firstSentence(exchange), Action: "applied the described change",
			Outcome: "did not work", Lesson: "approach failed as applied",
			LessonType: types.LessonAntipattern, Confidence: 0.7, Quality: 0.6,
		})
	}

	for _, m := range lessonPattern.FindAllStringSubmatch(exchange+"\n", -1) {
		out.Episodes = append(out.Episodes, EpisodeCandidate{
			Situation: firstSentence(exchange), Action: "observed during the exchange",
			Outcome: "lesson recorded", Lesson: strings.TrimSpace(m[1]),
			LessonType: types.LessonProcedure, Confidence: 0.8, Quality: 0.7,
		})
	}
	return out
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func firstSentence(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".\n"); i > 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
