// Package reader implements the Memory Reader: given a
// query, it merges results from the symbolic, episodic, and semantic
// stores into one ranked, typed answer set under a fixed authority model.
//
// A thin read-side package sitting above the three storage packages it
// composes, owning no schema of its own.
package reader

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kayis-rahman/synapse/internal/episodic"
	"github.com/kayis-rahman/synapse/internal/semantic"
	"github.com/kayis-rahman/synapse/internal/symbolic"
	"github.com/kayis-rahman/synapse/internal/types"
	"github.com/kayis-rahman/synapse/internal/vectorindex"
)

// SourceType identifies which memory substrate produced a Result.
type SourceType string

const (
	SourceSymbolic SourceType = "symbolic"
	SourceEpisodic SourceType = "episodic"
	SourceSemantic SourceType = "semantic"
)

// sourcePriority breaks authority ties: symbolic > episodic > semantic
//.
var sourcePriority = map[SourceType]int{
	SourceSymbolic: 3,
	SourceEpisodic: 2,
	SourceSemantic: 1,
}

// Result is one ranked candidate from the merged answer set.
type Result struct {
	SourceType  SourceType
	Content     string
	Authority   float64
	Explanation string
	recency     int64
}

// Conflict reports a symbolic fact contradicted by an episodic or
// semantic candidate; it does not affect ranking.
type Conflict struct {
	Key           string
	SymbolicValue string
	OtherValue    string
	OtherSource   SourceType
}

// Options narrows a Query call: top_k, per-memory enable flags, and
// filters.
type Options struct {
	TopK            int
	EnableSymbolic  bool
	EnableEpisodic  bool
	EnableSemantic  bool
	Scope           string
	Category        string
	SemanticFilter  map[string]string
}

// Weights fixes the authority model: symbolic is flat
// ground truth, episodic is flat advisory, semantic is scaled by cosine
// similarity. The three constants are configurable and not checked
// against each other; with the defaults (1.00 / 0.85 / 0.90) a semantic
// hit with cosine above about 0.94 outranks an episodic lesson.
type Weights struct {
	Symbolic float64
	Episodic float64
	Semantic float64
}

// Reader merges the three stores behind one project's handle.
type Reader struct {
	handle   *vectorindex.ProjectHandle
	embedder semantic.Embedder
	weights  Weights
}

// New builds a Reader over an already-open project handle.
func New(handle *vectorindex.ProjectHandle, embedder semantic.Embedder, weights Weights) *Reader {
	return &Reader{handle: handle, embedder: embedder, weights: weights}
}

// Query produces the merged, ranked answer set plus any detected
// conflicts.
func (r *Reader) Query(ctx context.Context, projectID, query string, opts Options) ([]Result, []Conflict, error) {
	var results []Result
	var facts []*types.Fact

	if opts.EnableSymbolic {
		var err error
		facts, err = r.handle.Symbolic.QueryMemory(ctx, projectID, symbolic.Filter{Scope: opts.Scope, Category: opts.Category})
		if err != nil {
			return nil, nil, fmt.Errorf("querying symbolic store: %w", err)
		}
		for _, f := range facts {
			results = append(results, Result{
				SourceType:  SourceSymbolic,
				Content:     fmt.Sprintf("%s.%s.%s = %s", f.Scope, f.Category, f.Key, f.Value),
				Authority:   r.weights.Symbolic,
				Explanation: fmt.Sprintf("stated fact (confidence %.2f, source %s)", f.Confidence, f.Source),
				recency:     f.UpdatedAt,
			})
		}
	}

	var episodes []*types.Episode
	if opts.EnableEpisodic {
		var err error
		episodes, err = r.handle.Episodic.QueryEpisodes(ctx, projectID, episodic.EpisodeFilter{}, opts.TopK)
		if err != nil {
			return nil, nil, fmt.Errorf("querying episodic store: %w", err)
		}
		for _, e := range episodes {
			results = append(results, Result{
				SourceType:  SourceEpisodic,
				Content:     e.Lesson,
				Authority:   r.weights.Episodic,
				Explanation: fmt.Sprintf("lesson from %s (confidence %.2f, quality %.2f)", e.LessonType, e.Confidence, e.Quality),
				recency:     e.UpdatedAt,
			})
		}
	}

	var semanticHits []semantic.SearchResult
	if opts.EnableSemantic {
		queryEmbedding, err := r.embedder.Embed(ctx, query)
		if err != nil {
			return nil, nil, fmt.Errorf("embedding query: %w", err)
		}
		semanticHits, err = r.handle.Semantic.Search(ctx, projectID, queryEmbedding, opts.TopK, opts.SemanticFilter)
		if err != nil {
			return nil, nil, fmt.Errorf("querying semantic store: %w", err)
		}
		for _, hit := range semanticHits {
			clipped := hit.Score
			if clipped < 0 {
				clipped = 0
			}
			if clipped > 1 {
				clipped = 1
			}
			results = append(results, Result{
				SourceType:  SourceSemantic,
				Content:     hit.Text,
				Authority:   clipped * r.weights.Semantic,
				Explanation: fmt.Sprintf("semantic match (cosine %.2f)", hit.Score),
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Authority != results[j].Authority {
			return results[i].Authority > results[j].Authority
		}
		if sourcePriority[results[i].SourceType] != sourcePriority[results[j].SourceType] {
			return sourcePriority[results[i].SourceType] > sourcePriority[results[j].SourceType]
		}
		return results[i].recency > results[j].recency
	})

	if opts.TopK > 0 && len(results) > opts.TopK {
		results = results[:opts.TopK]
	}

	conflicts := detectConflicts(facts, episodes, semanticHits)
	return results, conflicts, nil
}

var assertionPattern = regexp.MustCompile(`(?i)\b([\w .-]{1,40}?)\s+is\s+([\w./:-]{1,80})\b`)

// detectConflicts flags episodic/semantic content that asserts a
// different value for a symbolic fact's key (symbolic asserts X=a,
// semantic suggests X=b). Detection is best-effort pattern matching, not
// full entailment.
func detectConflicts(facts []*types.Fact, episodes []*types.Episode, hits []semantic.SearchResult) []Conflict {
	if len(facts) == 0 {
		return nil
	}
	var conflicts []Conflict
	for _, f := range facts {
		key := strings.ToLower(f.Key)
		for _, e := range episodes {
			if other, ok := contradicts(e.Lesson, key, f.Value); ok {
				conflicts = append(conflicts, Conflict{Key: f.Key, SymbolicValue: f.Value, OtherValue: other, OtherSource: SourceEpisodic})
			}
		}
		for _, h := range hits {
			if other, ok := contradicts(h.Text, key, f.Value); ok {
				conflicts = append(conflicts, Conflict{Key: f.Key, SymbolicValue: f.Value, OtherValue: other, OtherSource: SourceSemantic})
			}
		}
	}
	return conflicts
}

func contradicts(text, key, symbolicValue string) (string, bool) {
	for _, m := range assertionPattern.FindAllStringSubmatch(text, -1) {
		if strings.ToLower(strings.TrimSpace(m[1])) != key {
			continue
		}
		other := strings.TrimSpace(m[2])
		if !strings.EqualFold(other, symbolicValue) {
			return other, true
		}
	}
	return "", false
}
