package reader

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/kayis-rahman/synapse/internal/config"
	"github.com/kayis-rahman/synapse/internal/types"
	"github.com/kayis-rahman/synapse/internal/vectorindex"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const testProject = "acme-1a2b3c4d"

type fixedEmbedder struct{ v []float32 }

func (f fixedEmbedder) Embed(_ context.Context, _ string) ([]float32, error) { return f.v, nil }

func setup(t *testing.T) *vectorindex.ProjectHandle {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "synapse-reader-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	cfg := config.Default(tmpDir)
	cfg.PoolSize = 1
	cfg.EmbeddingDim = 4
	m := vectorindex.NewManager(cfg)
	t.Cleanup(m.CloseAll)

	h, err := m.Acquire(context.Background(), testProject)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	return h
}

func TestQueryOrdersByAuthorityThenPriority(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	embed := fixedEmbedder{v: []float32{1, 0, 0, 0}}

	if _, err := h.Symbolic.AddFact(ctx, testProject, "global", "preferences", "editor", "vim", 0.9, types.SourceUser); err != nil {
		t.Fatalf("AddFact: %v", err)
	}
	if _, err := h.Episodic.AddEpisode(ctx, testProject, "sess-1", &types.Episode{
		Situation: "editor crashed", Action: "restarted", Outcome: "resolved",
		Lesson: "restart fixes the crash", LessonType: types.LessonProcedure, Confidence: 0.8, Quality: 0.7,
	}); err != nil {
		t.Fatalf("AddEpisode: %v", err)
	}
	if _, err := h.Semantic.AddDocument(ctx, testProject, "notes", "text", "the editor documentation explains configuration", 10, 0, nil, embed); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	r := New(h, embed, Weights{Symbolic: 1.00, Episodic: 0.85, Semantic: 0.90})
	results, _, err := r.Query(ctx, testProject, "editor", Options{TopK: 10, EnableSymbolic: true, EnableEpisodic: true, EnableSemantic: true})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Query() returned %d results, want 3", len(results))
	}
	if results[0].SourceType != SourceSymbolic {
		t.Errorf("highest-ranked result = %s, want symbolic (authority 1.00)", results[0].SourceType)
	}
	if results[1].SourceType != SourceSemantic {
		t.Errorf("second-ranked result = %s, want semantic (authority 0.90 at cosine 1.0, above episodic 0.85)", results[1].SourceType)
	}
}

func TestQueryRespectsEnableFlags(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	embed := fixedEmbedder{v: []float32{1, 0, 0, 0}}

	if _, err := h.Symbolic.AddFact(ctx, testProject, "global", "preferences", "editor", "vim", 0.9, types.SourceUser); err != nil {
		t.Fatalf("AddFact: %v", err)
	}

	r := New(h, embed, Weights{Symbolic: 1.00, Episodic: 0.85, Semantic: 0.90})
	results, _, err := r.Query(ctx, testProject, "editor", Options{TopK: 10, EnableSymbolic: false, EnableEpisodic: true, EnableSemantic: false})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	for _, res := range results {
		if res.SourceType == SourceSymbolic {
			t.Error("symbolic results should be excluded when EnableSymbolic is false")
		}
	}
}

func TestQueryDetectsConflicts(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	embed := fixedEmbedder{v: []float32{1, 0, 0, 0}}

	if _, err := h.Symbolic.AddFact(ctx, testProject, "global", "preferences", "editor", "vim", 0.9, types.SourceUser); err != nil {
		t.Fatalf("AddFact: %v", err)
	}
	if _, err := h.Episodic.AddEpisode(ctx, testProject, "sess-1", &types.Episode{
		Situation: "checked settings", Action: "reviewed config", Outcome: "found mismatch",
		Lesson: "editor is emacs according to the config file", LessonType: types.LessonWarning, Confidence: 0.8, Quality: 0.7,
	}); err != nil {
		t.Fatalf("AddEpisode: %v", err)
	}

	r := New(h, embed, Weights{Symbolic: 1.00, Episodic: 0.85, Semantic: 0.90})
	_, conflicts, err := r.Query(ctx, testProject, "editor", Options{TopK: 10, EnableSymbolic: true, EnableEpisodic: true})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(conflicts) == 0 {
		t.Fatal("expected a conflict between the symbolic fact and the episodic lesson")
	}
	if !strings.EqualFold(conflicts[0].SymbolicValue, "vim") {
		t.Errorf("conflict.SymbolicValue = %q, want vim", conflicts[0].SymbolicValue)
	}
}
