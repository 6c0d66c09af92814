package types

import (
	"fmt"

	"github.com/kayis-rahman/synapse/internal/synerr"
)

// Source ranks the trust of the caller who produced a Fact. In the symbolic
// store's upsert policy a higher-ranked source overwrites the active row
// whatever its confidence.
type Source string

const (
	SourceUser      Source = "user"
	SourceAgent     Source = "agent"
	SourceExtractor Source = "extractor"
	SourceImport    Source = "import"
)

// sourceRank orders Source for the "sources rank higher" overwrite rule.
// Higher number wins.
var sourceRank = map[Source]int{
	SourceUser:      4,
	SourceAgent:     3,
	SourceExtractor: 2,
	SourceImport:    1,
}

// Rank returns the authority rank of a source; unknown sources rank lowest.
func (s Source) Rank() int {
	if r, ok := sourceRank[s]; ok {
		return r
	}
	return 0
}

func (s Source) Valid() bool {
	_, ok := sourceRank[s]
	return ok
}

// maxScopeCategoryLen bounds scope/category validation.
const maxScopeCategoryLen = 64

// FactHistoryEntry is one append-only audit row.
type FactHistoryEntry struct {
	Timestamp      int64
	PrevValue      string
	PrevConfidence float64
	Reason         string
}

// Fact is a symbolic memory row.
type Fact struct {
	ID           string
	ProjectID    string
	Scope        string
	Category     string
	Key          string
	Value        string
	Confidence   float64
	Source       Source
	CreatedAt    int64
	UpdatedAt    int64
	History      []FactHistoryEntry
	Deleted      bool
}

// ClipConfidence clamps a confidence value into the valid [0,1] range.
func ClipConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// ValidateFactInput validates the caller-supplied fields of add_fact before
// any storage access: scope/category are free-form but
// non-empty and bounded; project_id must match the grammar.
func ValidateFactInput(projectID, scope, category, key string, source Source) error {
	if err := ValidateProjectID(projectID); err != nil {
		return err
	}
	if scope == "" || len(scope) > maxScopeCategoryLen {
		return synerr.New(synerr.InvalidInput, "", "scope must be non-empty and <= %d chars", maxScopeCategoryLen)
	}
	if category == "" || len(category) > maxScopeCategoryLen {
		return synerr.New(synerr.InvalidInput, "", "category must be non-empty and <= %d chars", maxScopeCategoryLen)
	}
	if key == "" {
		return synerr.New(synerr.InvalidInput, "", "key must be non-empty")
	}
	if !source.Valid() {
		return synerr.New(synerr.InvalidInput, "", "unknown fact source %q", source)
	}
	return nil
}

func (f *Fact) String() string {
	return fmt.Sprintf("Fact{%s/%s/%s/%s=%s conf=%.2f src=%s}", f.ProjectID, f.Scope, f.Category, f.Key, f.Value, f.Confidence, f.Source)
}
