// Package types holds the entities shared by every memory substrate:
// Project, Fact, Episode, Document, and Chunk, plus the validation rules
// that keep them consistent across stores.
package types

import (
	"regexp"

	"github.com/kayis-rahman/synapse/internal/synerr"
)

// projectIDPattern enforces the "name-shortUUID" grammar: 1..32 lowercase
// alphanumerics/hyphens, a literal hyphen, then 8 hex characters.
var projectIDPattern = regexp.MustCompile(`^[a-z0-9-]{1,32}-[0-9a-f]{8}$`)

// ValidateProjectID checks the project_id grammar without touching storage.
func ValidateProjectID(projectID string) error {
	if !projectIDPattern.MatchString(projectID) {
		return synerr.New(synerr.InvalidInput, "", "invalid project_id %q: must match name-shortUUID (1..32 lower-alphanumeric/hyphen name, 8 hex chars)", projectID)
	}
	return nil
}

// Project is the tenant root. Every stored entity belongs to exactly one.
type Project struct {
	ID        string
	CreatedAt int64 // unix seconds
}
