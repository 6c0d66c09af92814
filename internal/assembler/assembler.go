// Package assembler implements the Context Assembler:
// formats a Memory Reader result set into an injection payload with
// three labeled sections and a per-section cap, never truncating a unit
// mid-way.
package assembler

import (
	"fmt"
	"strings"

	"github.com/kayis-rahman/synapse/internal/reader"
)

// Caps bounds each section's assembled character length: a configurable
// per-section cap.
type Caps struct {
	Facts     int
	Lessons   int
	Reference int
}

// DefaultCaps matches the reference hardware budget implied by the // performance targets: generous enough for a handful of units per
// section without unbounded growth.
var DefaultCaps = Caps{Facts: 2000, Lessons: 2000, Reference: 3000}

// Assemble formats results into the three labeled sections. A unit that
// would overflow its section's cap is dropped whole, never truncated
//.
func Assemble(results []reader.Result, caps Caps) string {
	var facts, lessons, refs []string

	for _, r := range results {
		switch r.SourceType {
		case reader.SourceSymbolic:
			facts = appendWithinCap(facts, r.Content, caps.Facts)
		case reader.SourceEpisodic:
			lessons = appendWithinCap(lessons, r.Content, caps.Lessons)
		case reader.SourceSemantic:
			refs = appendWithinCap(refs, r.Content, caps.Reference)
		}
	}

	var b strings.Builder
	writeSection(&b, "Facts", facts)
	writeSection(&b, "Lessons", lessons)
	writeSection(&b, "Reference", refs)
	return b.String()
}

// appendWithinCap appends unit to units only if doing so keeps the
// section's total at or under maxLen, counting each unit's length plus one
// separator character (the "## " header and "- " bullet prefixes are not
// counted); a maxLen of 0 means unbounded.
func appendWithinCap(units []string, unit string, maxLen int) []string {
	if maxLen <= 0 {
		return append(units, unit)
	}
	total := 0
	for _, u := range units {
		total += len(u) + 1
	}
	if total+len(unit)+1 > maxLen {
		return units
	}
	return append(units, unit)
}

func writeSection(b *strings.Builder, label string, units []string) {
	if len(units) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n", label)
	for _, u := range units {
		fmt.Fprintf(b, "- %s\n", u)
	}
}
