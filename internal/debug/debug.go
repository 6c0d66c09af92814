// Package debug provides a cheap, env-gated tracer for internal plumbing
// (pool acquisition, cache evictions, index lazy-init) that is too chatty
// for the structured operation logs but useful when diagnosing a stuck
// project. Enable with SYNAPSE_DEBUG=1.
package debug

import (
	"fmt"
	"os"
	"sync"
)

var (
	once    sync.Once
	enabled bool
)

func isEnabled() bool {
	once.Do(func() {
		v := os.Getenv("SYNAPSE_DEBUG")
		enabled = v == "1" || v == "true"
	})
	return enabled
}

// Logf writes a trace line to stderr if SYNAPSE_DEBUG is set.
func Logf(format string, args ...any) {
	if isEnabled() {
		fmt.Fprintf(os.Stderr, "[synapse debug] "+format+"\n", args...)
	}
}
