package symbolic

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kayis-rahman/synapse/internal/pool"
	"github.com/kayis-rahman/synapse/internal/types"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "synapse-symbolic-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	p, err := pool.Open(filepath.Join(tmpDir, "relational.db"), 2)
	if err != nil {
		t.Fatalf("pool.Open: %v", err)
	}
	t.Cleanup(p.CloseAll)

	s := New(p)
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return s
}

const testProject = "acme-1a2b3c4d"

func TestAddFactFirstInsertHasNoHistory(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	res, err := s.AddFact(ctx, testProject, "global", "preferences", "editor", "vim", 0.9, types.SourceUser)
	if err != nil {
		t.Fatalf("AddFact: %v", err)
	}
	if !res.Replaced {
		t.Error("first insert should report Replaced=true")
	}

	hist, err := s.History(ctx, res.FactID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 0 {
		t.Errorf("History() after first insert = %d entries, want 0", len(hist))
	}
}

func TestAddFactHigherConfidenceOverwrites(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	first, err := s.AddFact(ctx, testProject, "global", "preferences", "editor", "vim", 0.5, types.SourceExtractor)
	if err != nil {
		t.Fatalf("AddFact #1: %v", err)
	}

	second, err := s.AddFact(ctx, testProject, "global", "preferences", "editor", "emacs", 0.9, types.SourceExtractor)
	if err != nil {
		t.Fatalf("AddFact #2: %v", err)
	}
	if !second.Replaced {
		t.Error("higher confidence write should overwrite")
	}
	if second.FactID != first.FactID {
		t.Error("overwrite should reuse the same fact id")
	}

	facts, err := s.QueryMemory(ctx, testProject, Filter{Key: "editor"})
	if err != nil {
		t.Fatalf("QueryMemory: %v", err)
	}
	if len(facts) != 1 || facts[0].Value != "emacs" {
		t.Fatalf("QueryMemory() = %+v, want single fact with value emacs", facts)
	}

	hist, err := s.History(ctx, first.FactID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 1 {
		t.Fatalf("History() = %d entries, want 1", len(hist))
	}
	if hist[0].Reason != "overwritten" {
		t.Errorf("history reason = %q, want overwritten", hist[0].Reason)
	}
}

// Mirrors the seed scenario: a low-confidence, low-authority write against
// an existing user-sourced fact is rejected but still recorded in history.
func TestAddFactLowerAuthorityIsRejectedButAudited(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	first, err := s.AddFact(ctx, testProject, "global", "preferences", "editor", "vim", 1.0, types.SourceUser)
	if err != nil {
		t.Fatalf("AddFact #1: %v", err)
	}

	second, err := s.AddFact(ctx, testProject, "global", "preferences", "editor", "emacs", 0.6, types.SourceExtractor)
	if err != nil {
		t.Fatalf("AddFact #2: %v", err)
	}
	if second.Replaced {
		t.Error("lower-confidence, lower-authority write should not overwrite")
	}
	if second.Existing == nil || second.Existing.Value != "vim" {
		t.Fatalf("Existing = %+v, want the original vim fact", second.Existing)
	}

	hist, err := s.History(ctx, first.FactID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 1 {
		t.Fatalf("History() = %d entries, want exactly 1", len(hist))
	}
	if hist[0].Reason != "observed_no_change" {
		t.Errorf("history reason = %q, want observed_no_change", hist[0].Reason)
	}

	facts, err := s.QueryMemory(ctx, testProject, Filter{Key: "editor"})
	if err != nil {
		t.Fatalf("QueryMemory: %v", err)
	}
	if facts[0].Value != "vim" {
		t.Errorf("value after rejected overwrite = %q, want vim", facts[0].Value)
	}
}

func TestAddFactEqualConfidenceAndRankOverwrites(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	first, err := s.AddFact(ctx, testProject, "global", "preferences", "editor", "vim", 0.8, types.SourceUser)
	if err != nil {
		t.Fatalf("AddFact #1: %v", err)
	}
	second, err := s.AddFact(ctx, testProject, "global", "preferences", "editor", "emacs", 0.8, types.SourceUser)
	if err != nil {
		t.Fatalf("AddFact #2: %v", err)
	}
	if !second.Replaced {
		t.Error("a tie in confidence and source rank should favor the incoming write")
	}
	_ = first
}

func TestQueryMemoryExcludesDeleted(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	res, err := s.AddFact(ctx, testProject, "global", "preferences", "editor", "vim", 0.8, types.SourceUser)
	if err != nil {
		t.Fatalf("AddFact: %v", err)
	}
	if err := s.DeleteFact(ctx, testProject, res.FactID); err != nil {
		t.Fatalf("DeleteFact: %v", err)
	}

	facts, err := s.QueryMemory(ctx, testProject, Filter{})
	if err != nil {
		t.Fatalf("QueryMemory: %v", err)
	}
	if len(facts) != 0 {
		t.Errorf("QueryMemory() after delete = %v, want empty", facts)
	}

	// A fresh write against the same identity is allowed once the prior
	// row is soft-deleted, since the unique index only covers deleted=0.
	if _, err := s.AddFact(ctx, testProject, "global", "preferences", "editor", "neovim", 0.8, types.SourceUser); err != nil {
		t.Fatalf("AddFact after delete: %v", err)
	}
}

func TestDeleteUnknownFactReturnsNotFound(t *testing.T) {
	s := setupStore(t)
	err := s.DeleteFact(context.Background(), testProject, "does-not-exist")
	if err == nil {
		t.Fatal("expected not_found error deleting an unknown fact")
	}
}

func TestConfidenceIsClipped(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	res, err := s.AddFact(ctx, testProject, "global", "preferences", "editor", "vim", 1.5, types.SourceUser)
	if err != nil {
		t.Fatalf("AddFact: %v", err)
	}
	facts, err := s.QueryMemory(ctx, testProject, Filter{Key: "editor"})
	if err != nil {
		t.Fatalf("QueryMemory: %v", err)
	}
	if facts[0].Confidence != 1.0 {
		t.Errorf("Confidence = %v, want clipped to 1.0", facts[0].Confidence)
	}
	_ = res
}

func TestListScopesAndCategories(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	if _, err := s.AddFact(ctx, testProject, "global", "preferences", "editor", "vim", 0.8, types.SourceUser); err != nil {
		t.Fatalf("AddFact: %v", err)
	}
	if _, err := s.AddFact(ctx, testProject, "project-x", "build", "target", "linux", 0.8, types.SourceUser); err != nil {
		t.Fatalf("AddFact: %v", err)
	}

	scopes, err := s.ListScopes(ctx, testProject)
	if err != nil {
		t.Fatalf("ListScopes: %v", err)
	}
	if len(scopes) != 2 {
		t.Errorf("ListScopes() = %v, want 2 entries", scopes)
	}

	cats, err := s.ListCategories(ctx, testProject, "global")
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(cats) != 1 || cats[0] != "preferences" {
		t.Errorf("ListCategories(global) = %v, want [preferences]", cats)
	}
}
