// Package engine wires the symbolic, episodic, and semantic stores, the
// Project Index Manager, the query cache, the Memory Reader, the Context
// Assembler, and the Conversation Analyzer into the tool surface.
//
// There is no package-level global state: this package exposes an explicit
// Init(config) -> Handle and Shutdown(Handle) lifecycle. Every dependency a
// Handle needs is constructed inside Init and torn down inside Shutdown, so
// more than one Handle can coexist in a process (e.g. in tests) without
// racing on shared state.
package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kayis-rahman/synapse/internal/cache"
	"github.com/kayis-rahman/synapse/internal/config"
	"github.com/kayis-rahman/synapse/internal/extractor"
	"github.com/kayis-rahman/synapse/internal/reader"
	"github.com/kayis-rahman/synapse/internal/registry"
	"github.com/kayis-rahman/synapse/internal/semantic"
	"github.com/kayis-rahman/synapse/internal/synerr"
	"github.com/kayis-rahman/synapse/internal/vectorindex"
)

// Handle bundles every dependency the tool surface needs. It carries no
// package-level state; every field is constructed by Init.
type Handle struct {
	cfg      *config.Config
	registry *registry.Registry
	vecMgr   *vectorindex.Manager
	cache    *cache.Cache
	analyzer *extractor.Analyzer
	embedder semantic.Embedder
	log      zerolog.Logger
}

// Init constructs a Handle from cfg. embedder is the external embedding
// collaborator; completer may be nil when cfg.ExtractionMode is
// "heuristic".
func Init(cfg *config.Config, embedder semantic.Embedder, completer extractor.Completer) (*Handle, error) {
	reg, err := registry.Open(cfg.DataRoot)
	if err != nil {
		return nil, fmt.Errorf("opening registry: %w", err)
	}

	analyzer, err := extractor.NewAnalyzer(extractor.Config{
		Mode:                 extractor.Mode(cfg.ExtractionMode),
		MinMessageLength:     cfg.MinMessageLength,
		SkipPatterns:         cfg.SkipPatterns,
		MinFactConfidence:    cfg.MinFactConfidence,
		MinEpisodeConfidence: cfg.MinEpisodeConfidence,
	}, completer)
	if err != nil {
		_ = reg.Close()
		return nil, fmt.Errorf("building conversation analyzer: %w", err)
	}

	log := zerolog.New(os.Stderr).With().Timestamp().Str("component", "engine").Logger()

	return &Handle{
		cfg:      cfg,
		registry: reg,
		vecMgr:   vectorindex.NewManager(cfg),
		cache:    cache.New(cfg.CacheMaxSize, cfg.CacheTTL()),
		analyzer: analyzer,
		embedder: embedder,
		log:      log,
	}, nil
}

// Shutdown tears down every resource Init opened.
func Shutdown(h *Handle) error {
	h.vecMgr.CloseAll()
	return h.registry.Close()
}

// newTraceID mints a correlation handle for one tool-surface call; every
// response carries one.
func newTraceID() string { return uuid.NewString() }

// weights builds the Memory Reader's authority model from the resolved
// configuration.
func (h *Handle) weights() reader.Weights {
	return reader.Weights{
		Symbolic: h.cfg.SymbolicAuthority,
		Episodic: h.cfg.EpisodicAuthority,
		Semantic: h.cfg.SemanticAuthority,
	}
}

// acquire resolves a project's handle, registering the project on first
// write when ensureRegistered is true; read-only operations instead fail
// not_found against a project the registry has never seen.
func (h *Handle) acquire(ctx context.Context, projectID string, ensureRegistered bool) (*vectorindex.ProjectHandle, string, error) {
	traceID := newTraceID()

	if ensureRegistered {
		if _, err := h.registry.EnsureProject(ctx, projectID); err != nil {
			return nil, traceID, asEngineError(err, traceID)
		}
	} else {
		known, err := h.registry.List(ctx)
		if err != nil {
			return nil, traceID, asEngineError(err, traceID)
		}
		if !containsString(known, projectID) {
			return nil, traceID, synerr.New(synerr.NotFound, traceID, "project %s not found", projectID)
		}
	}

	vh, err := h.vecMgr.Acquire(ctx, projectID)
	if err != nil {
		return nil, traceID, asEngineError(err, traceID)
	}
	return vh, traceID, nil
}

func containsString(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}

// asEngineError stamps traceID onto any error that isn't already a
// *synerr.Error, so every failure path the tool surface returns carries
// one.
func asEngineError(err error, traceID string) error {
	if err == nil {
		return nil
	}
	if se, ok := err.(*synerr.Error); ok {
		if se.TraceID == "" {
			se.TraceID = traceID
		}
		return se
	}
	return synerr.Wrap(synerr.ExternalFailure, traceID, err, "internal error")
}

// assembleOptions derives reader.Options for ctx.get: every substrate
// enabled, scoped by nothing (the unrestricted merged view).
func assembleOptions(topK int) reader.Options {
	if topK <= 0 {
		topK = 10
	}
	return reader.Options{
		TopK:            topK,
		EnableSymbolic:  true,
		EnableEpisodic:  true,
		EnableSemantic:  true,
	}
}
