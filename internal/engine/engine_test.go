package engine

import (
	"context"
	"fmt"
	"math"
	"os"
	"testing"

	"github.com/kayis-rahman/synapse/internal/config"
	"github.com/kayis-rahman/synapse/internal/types"
)

// hashEmbedder is a deterministic stand-in for the external embedding
// collaborator: it derives a fixed-dimension vector from the
// text's character codes so similar text scores higher under cosine
// similarity, without pulling in a real model.
type hashEmbedder struct{ dim int }

func (e hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, e.dim)
	for i, r := range text {
		v[i%e.dim] += float32(r % 97)
	}
	var norm float64
	for _, f := range v {
		norm += float64(f) * float64(f)
	}
	if norm == 0 {
		v[0] = 1
		return v, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v, nil
}

func newTestHandle(t *testing.T) *Handle {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "synapse-engine-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	cfg := config.Default(tmpDir)
	cfg.PoolSize = 1
	cfg.EmbeddingDim = 4

	h, err := Init(cfg, hashEmbedder{dim: cfg.EmbeddingDim}, nil)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = Shutdown(h) })
	return h
}

// Seed scenario 1: insert-then-query fact.
func TestSeedScenarioInsertThenQueryFact(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()
	const project = "proj-abc12345"

	if _, err := h.MemFactAdd(ctx, project, "project", "fact", "language", "python", 1.0, types.SourceUser); err != nil {
		t.Fatalf("MemFactAdd: %v", err)
	}

	facts, err := h.MemFactQuery(ctx, project, FactQueryOptions{Scope: "project"})
	if err != nil {
		t.Fatalf("MemFactQuery: %v", err)
	}
	if len(facts) != 1 {
		t.Fatalf("MemFactQuery() returned %d facts, want 1", len(facts))
	}
	if facts[0].Value != "python" || facts[0].Confidence != 1.0 {
		t.Errorf("fact = %+v, want value=python confidence=1.0", facts[0])
	}
}

// Seed scenario 2: overwrite with lower confidence rejected.
func TestSeedScenarioOverwriteLowerConfidenceRejected(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()
	const project = "proj-abc12345"

	if _, err := h.MemFactAdd(ctx, project, "project", "fact", "language", "python", 1.0, types.SourceUser); err != nil {
		t.Fatalf("MemFactAdd (seed): %v", err)
	}
	res, err := h.MemFactAdd(ctx, project, "project", "fact", "language", "rust", 0.6, types.SourceExtractor)
	if err != nil {
		t.Fatalf("MemFactAdd (overwrite attempt): %v", err)
	}
	if res.Replaced {
		t.Error("lower-confidence, lower-rank write should not replace the existing fact")
	}

	facts, err := h.MemFactQuery(ctx, project, FactQueryOptions{Scope: "project"})
	if err != nil {
		t.Fatalf("MemFactQuery: %v", err)
	}
	if len(facts) != 1 || facts[0].Value != "python" {
		t.Fatalf("MemFactQuery() = %+v, want value still python", facts)
	}
}

// Seed scenario 3: episode dedup per day.
func TestSeedScenarioEpisodeDedupPerDay(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()
	const project = "proj-abc12345"

	ep := func() *types.Episode {
		return &types.Episode{Situation: "A", Action: "B", Outcome: "ok", Lesson: "it worked", LessonType: types.LessonProcedure, Confidence: 0.8, Quality: 0.7}
	}

	if _, err := h.MemEpAdd(ctx, project, "sess-1", ep()); err != nil {
		t.Fatalf("MemEpAdd (first): %v", err)
	}
	res, err := h.MemEpAdd(ctx, project, "sess-2", ep())
	if err != nil {
		t.Fatalf("MemEpAdd (second): %v", err)
	}
	if !res.Deduped {
		t.Error("identical episode within the same day should dedup")
	}

	vh, _, err := h.acquire(ctx, project, false)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	episodes, err := vh.Episodic.ListRecentEpisodes(ctx, project, 10)
	if err != nil {
		t.Fatalf("ListRecentEpisodes: %v", err)
	}
	if len(episodes) != 1 {
		t.Fatalf("ListRecentEpisodes() returned %d episodes, want 1", len(episodes))
	}
	if episodes[0].RefCount != 2 {
		t.Errorf("episode.RefCount = %d, want 2", episodes[0].RefCount)
	}
}

// Seed scenario 4: semantic round-trip: every produced chunk is fetched
// back by id with identical, non-empty text, and ordinals are contiguous
// from 0.
func TestSeedScenarioSemanticRoundTrip(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()
	const project = "proj-abc12345"
	h.cfg.ChunkSize = 500
	h.cfg.ChunkOverlap = 50

	words := make([]string, 1200)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	var text string
	for i, w := range words {
		if i > 0 {
			text += " "
		}
		text += w
	}

	res, err := h.MemIngest(ctx, project, text, "notes.txt", "text", nil)
	if err != nil {
		t.Fatalf("MemIngest: %v", err)
	}
	if res.ChunkCount < 1 {
		t.Fatalf("ChunkCount = %d, want at least 1", res.ChunkCount)
	}

	vh, _, err := h.acquire(ctx, project, false)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	hits, err := vh.Semantic.Search(ctx, project, hashEmbedderVec(t, h, "w0 w1"), res.ChunkCount, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != res.ChunkCount {
		t.Fatalf("Search returned %d hits, want %d (the full chunk set)", len(hits), res.ChunkCount)
	}

	seen := make(map[int]bool)
	for _, hit := range hits {
		chunk, err := vh.Semantic.GetChunkByID(ctx, project, hit.ChunkID)
		if err != nil {
			t.Fatalf("GetChunkByID: %v", err)
		}
		if chunk.Text != hit.Text {
			t.Errorf("round-trip mismatch: GetChunkByID text %q != search hit text %q", chunk.Text, hit.Text)
		}
		if chunk.Text == "" {
			t.Error("chunk text should never be empty")
		}
		seen[chunk.Ordinal] = true
	}
	for i := 0; i < res.ChunkCount; i++ {
		if !seen[i] {
			t.Errorf("ordinal %d missing: ordinals should be contiguous from 0", i)
		}
	}
}

func hashEmbedderVec(t *testing.T, h *Handle, text string) []float32 {
	t.Helper()
	v, err := h.embedder.Embed(context.Background(), text)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	return v
}

// Seed scenario 5: cache hit after warm.
func TestSeedScenarioCacheHitAfterWarm(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()
	const project = "proj-abc12345"

	if _, err := h.MemFactAdd(ctx, project, "global", "preferences", "editor", "vim", 0.9, types.SourceUser); err != nil {
		t.Fatalf("MemFactAdd: %v", err)
	}

	first, err := h.CtxGet(ctx, project, "q", 3)
	if err != nil {
		t.Fatalf("CtxGet (first): %v", err)
	}
	if first.CacheHit {
		t.Error("first ctx.get call should be a cache miss")
	}
	statsAfterFirst := h.cache.Stats()

	second, err := h.CtxGet(ctx, project, "q", 3)
	if err != nil {
		t.Fatalf("CtxGet (second): %v", err)
	}
	if !second.CacheHit {
		t.Error("second identical ctx.get call should hit the cache")
	}
	statsAfterSecond := h.cache.Stats()
	if statsAfterSecond.Size != statsAfterFirst.Size {
		t.Errorf("cache size changed across a hit: %d -> %d", statsAfterFirst.Size, statsAfterSecond.Size)
	}
	if statsAfterSecond.Hits != statsAfterFirst.Hits+1 {
		t.Errorf("cache hits = %d, want %d", statsAfterSecond.Hits, statsAfterFirst.Hits+1)
	}
}

// Seed scenario 6: cross-project isolation.
func TestSeedScenarioCrossProjectIsolation(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()
	const projA = "proj-a-11111111"
	const projB = "proj-b-22222222"

	if _, err := h.MemIngest(ctx, projA, "alpha document about rockets", "a.txt", "text", nil); err != nil {
		t.Fatalf("MemIngest A: %v", err)
	}
	if _, err := h.MemIngest(ctx, projB, "bravo document about gardens", "b.txt", "text", nil); err != nil {
		t.Fatalf("MemIngest B: %v", err)
	}

	resA, err := h.MemSearch(ctx, projA, "rockets", MemSearchOptions{MemoryType: "semantic", TopK: 10})
	if err != nil {
		t.Fatalf("MemSearch A: %v", err)
	}
	resB, err := h.MemSearch(ctx, projB, "rockets", MemSearchOptions{MemoryType: "semantic", TopK: 10})
	if err != nil {
		t.Fatalf("MemSearch B: %v", err)
	}
	for _, r := range resA {
		if r.Content == "" {
			t.Error("unexpected empty content in project A results")
		}
	}
	for _, r := range resB {
		if containsSubstring(r.Content, "rockets") {
			t.Error("project B results leaked project A's content")
		}
	}
}

func containsSubstring(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func TestDeleteProjectRemovesFromRegistry(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()
	const project = "proj-abc12345"

	if _, err := h.MemFactAdd(ctx, project, "global", "fact", "k", "v", 0.9, types.SourceUser); err != nil {
		t.Fatalf("MemFactAdd: %v", err)
	}
	projectDir := h.cfg.ProjectDir(project)
	if _, err := os.Stat(projectDir); err != nil {
		t.Fatalf("project directory %s should exist before delete: %v", projectDir, err)
	}
	if err := h.DeleteProject(ctx, project); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	ids, err := h.ProjList(ctx)
	if err != nil {
		t.Fatalf("ProjList: %v", err)
	}
	for _, id := range ids {
		if id == project {
			t.Fatal("deleted project still present in proj.list")
		}
	}
	if _, err := os.Stat(projectDir); !os.IsNotExist(err) {
		t.Fatalf("project directory %s should be removed after delete, stat err = %v", projectDir, err)
	}
}
